// Package gittest runs git in tests with a fixed identity and configuration.
package gittest

import (
	"maps"
	"slices"
	"strconv"
)

// _config is applied to every git command in tests,
// regardless of the user's own configuration.
var _config = map[string]string{
	"init.defaultBranch":    "main",
	"commit.gpgSign":        "false",
	"tag.gpgSign":           "false",
	"core.autocrlf":         "false",
	"advice.detachedHead":   "false",
	"log.excludeDecoration": "refs/remotes/*/HEAD",
}

// DefaultEnv returns the environment for git commands in tests.
// Configuration is passed with GIT_CONFIG_KEY_<n> and GIT_CONFIG_VALUE_<n>,
// and commits are authored by "Test <test@example.com>".
// Scripts can change the author with [CmdAs].
func DefaultEnv() map[string]string {
	env := map[string]string{
		"GIT_AUTHOR_NAME":     "Test",
		"GIT_AUTHOR_EMAIL":    "test@example.com",
		"GIT_COMMITTER_NAME":  "Test",
		"GIT_COMMITTER_EMAIL": "test@example.com",
	}

	// Sorted so the numbering is stable.
	keys := slices.Sorted(maps.Keys(_config))
	for i, k := range keys {
		n := strconv.Itoa(i)
		env["GIT_CONFIG_KEY_"+n] = k
		env["GIT_CONFIG_VALUE_"+n] = _config[k]
	}
	env["GIT_CONFIG_COUNT"] = strconv.Itoa(len(keys))
	return env
}

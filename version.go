package main

import (
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/alecthomas/kong"
)

type versionCmd struct {
	Short bool `help:"Print only the version number"`
}

func (cmd *versionCmd) Run(app *kong.Kong) error {
	if cmd.Short {
		fmt.Fprintln(app.Stdout, _version)
		app.Exit(0)
		return nil
	}

	fmt.Fprint(app.Stdout, "git-cl ", _version)
	if report := _generateBuildReport(); report != "" {
		fmt.Fprintf(app.Stdout, " (%s)", report)
	}
	fmt.Fprintln(app.Stdout)
	fmt.Fprintln(app.Stdout, "This program comes with ABSOLUTELY NO WARRANTY")
	app.Exit(0)
	return nil
}

type versionFlag bool

func (v versionFlag) BeforeReset(app *kong.Kong) error {
	return (&versionCmd{}).Run(app)
}

var _debugReadBuildInfo = debug.ReadBuildInfo

// _generateBuildReport describes the commit the binary was built from,
// or returns "" if that is unknown.
var _generateBuildReport = func() string {
	info, ok := _debugReadBuildInfo()
	if !ok {
		return ""
	}

	var (
		revision string
		dirty    bool
		time     string
	)
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		case "vcs.time":
			time = s.Value
		}
	}

	var report []string
	if revision != "" {
		if dirty {
			revision += "-dirty"
		}
		report = append(report, revision)
	}
	if time != "" {
		report = append(report, time)
	}
	return strings.Join(report, " ")
}

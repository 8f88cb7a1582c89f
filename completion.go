package main

import (
	"context"
	"time"

	"go.abhg.dev/gitcl/internal/git"
	"go.abhg.dev/gitcl/internal/text"
	"go.abhg.dev/komplete"
)

type completionCmd struct {
	*komplete.Command `embed:""`
}

func (*completionCmd) Help() string {
	return text.Dedent(`
		To set up shell completion, eval the output of this command
		from your shell's rc file.
		For example:

			# bash
			eval "$(git-cl completion bash)"

			# zsh
			eval "$(git-cl completion zsh)"

			# fish
			git-cl completion fish | source

		If shell name is not provided, the current shell is guessed
		using a heuristic.
	`)
}

func predictBranches(komplete.Args) []string {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	repo, err := git.Open(ctx, ".", git.OpenOptions{})
	if err != nil {
		return nil
	}

	branches, err := repo.LocalBranches(ctx)
	if err != nil {
		return nil
	}
	return branches
}

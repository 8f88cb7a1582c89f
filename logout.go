package main

import (
	"fmt"
	"net/url"

	"go.abhg.dev/gitcl/internal/auth"
	"go.abhg.dev/gitcl/internal/gerrit"
	"go.abhg.dev/gitcl/internal/secret"
	"go.abhg.dev/gitcl/internal/silog"
)

type logoutCmd struct{}

func (*logoutCmd) Run(log *silog.Logger, client *gerrit.Client, stash secret.Stash) error {
	u, err := url.Parse(client.Server())
	if err != nil {
		return fmt.Errorf("parse server URL: %w", err)
	}
	if err := auth.Logout(stash, u.Host); err != nil {
		return fmt.Errorf("log out of %v: %w", u.Host, err)
	}
	log.Infof("Forgot the credentials for %v", u.Host)
	return nil
}

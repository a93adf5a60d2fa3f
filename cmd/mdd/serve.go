package main

import (
	"github.com/spf13/cobra"

	"github.com/panyam/mddclient/devserver"
)

func (a *app) serveDevCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve-dev",
		Short: "Run the in-memory development API server",
		Long: `serve-dev runs an in-memory implementation of the MDD API for local
development. Data is lost when the process exits. Without dev.jwt_secret a
random signing secret is used, so tokens do not survive a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			srv, err := devserver.New(&devserver.Config{
				JWTSecret:    a.cfg.Dev.JWTSecret,
				CookieSecure: a.cfg.Dev.CookieSecure,
			}, devserver.WithLogger(a.logger))
			if err != nil {
				return err
			}
			return srv.ListenAndServe(cmd.Context(), a.cfg.Dev.Addr)
		},
	}
	cmd.Flags().String("addr", "", "Listen address")
	cmd.Flags().String("jwt-secret", "", "Secret for signing access tokens")
	bindFlags(a.v, cmd.Flags(), map[string]string{
		"addr":       "dev.addr",
		"jwt-secret": "dev.jwt_secret",
	})
	return cmd
}

package main

import (
	"github.com/spf13/cobra"

	"github.com/panyam/mddclient/api"
)

func (a *app) profileCmd() *cobra.Command {
	profile := &cobra.Command{
		Use:   "profile",
		Short: "Show or update your profile",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show your profile and subscriptions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.svc.GetProfile(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), p)
		},
	}

	update := &cobra.Command{
		Use:   "update",
		Short: "Change your email, username or password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var req api.UpdateUserRequest
			flags := cmd.Flags()
			if flags.Changed("email") {
				v, _ := flags.GetString("email")
				req.Email = &v
			}
			if flags.Changed("username") {
				v, _ := flags.GetString("username")
				req.Username = &v
			}
			if flags.Changed("password") {
				v, _ := flags.GetString("password")
				req.Password = &v
			}
			user, err := a.svc.UpdateProfile(cmd.Context(), req)
			if err != nil {
				return describe(err)
			}
			return printJSON(cmd.OutOrStdout(), user)
		},
	}
	update.Flags().String("email", "", "New email address")
	update.Flags().String("username", "", "New username")
	update.Flags().String("password", "", "New password")

	profile.AddCommand(show, update)
	return profile
}

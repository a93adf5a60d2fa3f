package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/url"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/panyam/mddclient/api"
	"github.com/panyam/mddclient/client"
	"github.com/panyam/mddclient/client/stores/fs"
	"github.com/panyam/mddclient/devserver"
)

// app carries what every command needs once configuration is loaded
type app struct {
	v          *viper.Viper
	configFile string

	cfg     *config
	logger  *slog.Logger
	storage *fs.FSStorage
	svc     *api.Service
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:           "mdd",
		Short:         "Command-line client for the MDD API",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "Path to a config file (default ./mdd.yaml)")
	flags.String("api-base-url", "", "Base URL of the MDD API")
	flags.String("credentials", "", "Path to the credentials file")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	bindFlags(a.v, flags, map[string]string{
		"api-base-url": "api_base_url",
		"credentials":  "credentials_path",
		"log-level":    "log_level",
	})

	root.AddCommand(
		a.loginCmd(),
		a.registerCmd(),
		a.logoutCmd(),
		a.tokenCmd(),
		a.feedCmd(),
		a.subjectsCmd(),
		a.subscribeCmd(),
		a.unsubscribeCmd(),
		a.postCmd(),
		a.commentCmd(),
		a.profileCmd(),
		a.serveDevCmd(),
	)
	return root
}

// init loads configuration and wires the token store, cookie jar and API client
func (a *app) init(cmd *cobra.Command) error {
	cfg, err := loadConfig(a.v, a.configFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = newLogger(cfg)

	baseURL, err := url.Parse(cfg.APIBaseURL)
	if err != nil || baseURL.Scheme == "" || baseURL.Host == "" {
		return fmt.Errorf("invalid api_base_url %q", cfg.APIBaseURL)
	}

	a.storage, err = fs.NewFSStorage(cfg.CredentialsPath, "mdd")
	if err != nil {
		return err
	}

	jar := newPersistentJar(a.storage, baseURL, devserver.DefaultRefreshCookieName, a.logger, nil)
	ac := client.NewAuthClient(cfg.APIBaseURL,
		client.NewTokenStore(a.storage, client.WithStoreLogger(a.logger)),
		client.WithCookieJar(jar),
		client.WithLogger(a.logger),
		client.WithNavigator(client.NavigatorFunc(func(route string) {
			fmt.Fprintln(cmd.ErrOrStderr(), "Session expired. Run `mdd login` to sign in again.")
		})),
	)
	a.svc = api.NewService(ac, api.WithServiceLogger(a.logger))
	return nil
}

// printJSON writes v indented to w
func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "MDD"

type devConfig struct {
	Addr         string `mapstructure:"addr"`
	JWTSecret    string `mapstructure:"jwt_secret"`
	CookieSecure bool   `mapstructure:"cookie_secure"`
}

type config struct {
	APIBaseURL      string    `mapstructure:"api_base_url"`
	CredentialsPath string    `mapstructure:"credentials_path"`
	LogLevel        string    `mapstructure:"log_level"`
	Dev             devConfig `mapstructure:"dev"`
}

// bindFlags binds each flag name in keys to its config key. Flags missing
// from fs are skipped.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) {
	for name, key := range keys {
		if f := fs.Lookup(name); f != nil {
			v.BindPFlag(key, f)
		}
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_base_url", "http://localhost:8080")
	v.SetDefault("credentials_path", "")
	v.SetDefault("log_level", "warn")
	v.SetDefault("dev.addr", ":8080")
	v.SetDefault("dev.jwt_secret", "")
	v.SetDefault("dev.cookie_secure", false)
}

// loadConfig reads flags already bound to v, MDD_* environment variables and
// an optional mdd.yaml. An explicit configFile must exist.
func loadConfig(v *viper.Viper, configFile string) (*config, error) {
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("mdd")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(dir + "/mdd")
		}
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configFile != "" {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.APIBaseURL == "" {
		return nil, fmt.Errorf("api_base_url is required")
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log_level %q: %w", s, err)
	}
	return level, nil
}

func newLogger(cfg *config) *slog.Logger {
	level, _ := parseLevel(cfg.LogLevel)
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

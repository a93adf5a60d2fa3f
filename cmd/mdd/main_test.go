package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/panyam/mddclient/client/stores/fs"
	"github.com/panyam/mddclient/devserver"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type cliEnv struct {
	serverURL   string
	credentials string
	clock       *testClock
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	clock := &testClock{now: time.Now().UTC()}
	srv, err := devserver.New(&devserver.Config{JWTSecret: "cli-secret"},
		devserver.WithClock(clock.Now),
		devserver.WithBcryptCost(bcrypt.MinCost),
		devserver.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatalf("devserver.New() error = %v", err)
	}
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	return &cliEnv{
		serverURL:   ts.URL,
		credentials: filepath.Join(t.TempDir(), "credentials.json"),
		clock:       clock,
	}
}

// run executes one mdd invocation, each with a fresh process-like state
func (env *cliEnv) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--api-base-url", env.serverURL, "--credentials", env.credentials, "--log-level", "error"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLI_Session(t *testing.T) {
	env := newCLIEnv(t)

	if out, err := env.run(t, "", "register", "alice", "--email", "alice@example.com", "-p", "Passw0rd!"); err != nil {
		t.Fatalf("register error = %v, output %s", err, out)
	}
	out, err := env.run(t, "Passw0rd!\n", "login", "alice")
	if err != nil {
		t.Fatalf("login error = %v, output %s", err, out)
	}
	if !strings.Contains(out, "Logged in as alice") {
		t.Errorf("login output = %q", out)
	}

	// The token and refresh cookie are persisted for the next invocation
	storage, err := fs.NewFSStorage(env.credentials, "")
	if err != nil {
		t.Fatalf("NewFSStorage() error = %v", err)
	}
	saved, ok, _ := storage.GetItem("access_token")
	if !ok {
		t.Error("access token not persisted")
	}
	if out, err := env.run(t, "", "token"); err != nil || strings.TrimSpace(out) != saved {
		t.Errorf("token = %q, %v, want the persisted token", out, err)
	}
	if _, ok, _ := storage.GetItem(refreshCookieKey); !ok {
		t.Error("refresh cookie not persisted")
	}

	out, err = env.run(t, "", "subjects")
	if err != nil {
		t.Fatalf("subjects error = %v", err)
	}
	if !strings.Contains(out, `"name": "Go"`) {
		t.Errorf("subjects output = %q", out)
	}

	if out, err := env.run(t, "", "subscribe", "1"); err != nil {
		t.Fatalf("subscribe error = %v, output %s", err, out)
	}
	if out, err := env.run(t, "", "post", "create", "--subject", "1", "--title", "Hi", "--content", "there"); err != nil {
		t.Fatalf("post create error = %v, output %s", err, out)
	}

	// Expire the access token: the next command refreshes with the saved cookie
	env.clock.Advance(devserver.DefaultAccessTokenTTL + time.Minute)
	out, err = env.run(t, "", "feed", "--sort", "asc")
	if err != nil {
		t.Fatalf("feed after expiry error = %v, output %s", err, out)
	}
	if !strings.Contains(out, `"title": "Hi"`) {
		t.Errorf("feed output = %q", out)
	}

	out, err = env.run(t, "", "logout")
	if err != nil || !strings.Contains(out, "Logged out") {
		t.Fatalf("logout error = %v, output %q", err, out)
	}
	storage, _ = fs.NewFSStorage(env.credentials, "")
	if _, ok, _ := storage.GetItem("access_token"); ok {
		t.Error("access token should be removed by logout")
	}
	if _, err := env.run(t, "", "token"); err == nil {
		t.Error("token after logout should fail")
	}
	if _, ok, _ := storage.GetItem(refreshCookieKey); ok {
		t.Error("refresh cookie should be removed by logout")
	}

	out, err = env.run(t, "", "profile", "show")
	if err == nil {
		t.Fatal("profile show after logout should fail")
	}
	if !strings.Contains(out, "Session expired") {
		t.Errorf("output = %q, want a login hint", out)
	}
}

func TestCLI_ValidationErrorsListFields(t *testing.T) {
	env := newCLIEnv(t)
	out, err := env.run(t, "", "register", "al", "--email", "nope", "-p", "weak")
	if err == nil {
		t.Fatal("register with invalid input should fail")
	}
	for _, field := range []string{"email", "username", "password"} {
		if !strings.Contains(err.Error(), field+":") {
			t.Errorf("error %q does not list field %s (output %s)", err, field, out)
		}
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("env overrides default", func(t *testing.T) {
		t.Setenv("MDD_API_BASE_URL", "http://api.example.com")
		t.Setenv("MDD_DEV_ADDR", ":9999")
		cfg, err := loadConfig(freshViper(), "")
		if err != nil {
			t.Fatalf("loadConfig() error = %v", err)
		}
		if cfg.APIBaseURL != "http://api.example.com" {
			t.Errorf("APIBaseURL = %q", cfg.APIBaseURL)
		}
		if cfg.Dev.Addr != ":9999" {
			t.Errorf("Dev.Addr = %q", cfg.Dev.Addr)
		}
		if cfg.LogLevel != "warn" {
			t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
		}
	})

	t.Run("config file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "mdd.yaml")
		os.WriteFile(path, []byte("api_base_url: http://file.example.com\nlog_level: debug\ndev:\n  jwt_secret: s3cret\n"), 0600)
		cfg, err := loadConfig(freshViper(), path)
		if err != nil {
			t.Fatalf("loadConfig() error = %v", err)
		}
		if cfg.APIBaseURL != "http://file.example.com" || cfg.LogLevel != "debug" || cfg.Dev.JWTSecret != "s3cret" {
			t.Errorf("cfg = %+v", cfg)
		}
	})

	t.Run("missing explicit file", func(t *testing.T) {
		if _, err := loadConfig(freshViper(), filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
			t.Error("loadConfig() should fail for a missing explicit config file")
		}
	})

	t.Run("bad log level", func(t *testing.T) {
		t.Setenv("MDD_LOG_LEVEL", "loud")
		if _, err := loadConfig(freshViper(), ""); err == nil {
			t.Error("loadConfig() should reject an unknown log level")
		}
	})
}

func freshViper() *viper.Viper {
	return viper.New()
}

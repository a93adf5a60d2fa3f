package devserver

import (
	"net/http"
	"time"
)

// Default token lifetimes and cookie settings
const (
	DefaultAccessTokenTTL    = 15 * time.Minute
	DefaultRefreshTokenTTL   = 7 * 24 * time.Hour
	DefaultRefreshCookieName = "refresh_token"
	DefaultCookiePath        = "/api/auth"
)

// Config holds the dev server's token and cookie settings
type Config struct {
	// JWTSecret signs access tokens and keys refresh token fingerprints.
	// A random secret is generated when empty, so tokens do not survive a restart.
	JWTSecret string
	JWTIssuer string

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	RefreshCookieName string
	CookiePath        string
	CookieSecure      bool
	CookieSameSite    http.SameSite

	// Subjects seeds the subject catalog. DefaultSubjects is used when nil.
	Subjects []SubjectSeed
}

// SubjectSeed is a subject created at startup
type SubjectSeed struct {
	Name        string
	Description string
}

// DefaultSubjects is the catalog a fresh server starts with
var DefaultSubjects = []SubjectSeed{
	{Name: "Go", Description: "The Go programming language"},
	{Name: "JavaScript", Description: "Browsers, Node and everything in between"},
	{Name: "DevOps", Description: "Build, ship and run"},
	{Name: "Security", Description: "Authentication, authorization and secure coding"},
}

// DefaultConfig returns a Config with default lifetimes and cookie settings
func DefaultConfig() *Config {
	c := &Config{}
	c.EnsureDefaults()
	return c
}

// EnsureDefaults fills zero values with defaults
func (c *Config) EnsureDefaults() {
	if c.AccessTokenTTL <= 0 {
		c.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if c.RefreshTokenTTL <= 0 {
		c.RefreshTokenTTL = DefaultRefreshTokenTTL
	}
	if c.RefreshCookieName == "" {
		c.RefreshCookieName = DefaultRefreshCookieName
	}
	if c.CookiePath == "" {
		c.CookiePath = DefaultCookiePath
	}
	if c.CookieSameSite == 0 {
		c.CookieSameSite = http.SameSiteLaxMode
	}
	if c.Subjects == nil {
		c.Subjects = DefaultSubjects
	}
}

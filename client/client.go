package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
)

// maxAuthResponseSize bounds how much of a refresh/logout response is read
const maxAuthResponseSize = 1 << 20

// AuthClient is an HTTP client for the MDD API with bearer token management:
// it owns the token store, the refresh coordinator and the interceptor transport.
type AuthClient struct {
	baseURL       string
	store         TokenStore
	httpClient    *http.Client
	baseTransport http.RoundTripper
	jar           http.CookieJar
	navigator     Navigator
	loginRoute    string
	logger        *slog.Logger

	coordinator *Coordinator
	transport   *Transport
}

// ClientOption configures an AuthClient
type ClientOption func(*AuthClient)

// WithHTTPClient sets a custom base HTTP client (for timeouts, TLS config, etc.)
// The transport from this client will be wrapped with auth handling, and its
// cookie jar, if any, becomes the jar used for API credentials.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *AuthClient) {
		if client == nil {
			return
		}
		if client.Transport != nil {
			c.baseTransport = client.Transport
		}
		if client.Jar != nil {
			c.jar = client.Jar
		}
		c.httpClient.Timeout = client.Timeout
		c.httpClient.CheckRedirect = client.CheckRedirect
	}
}

// WithTransport sets a custom base transport (for connection pooling, proxies, etc.)
func WithTransport(transport http.RoundTripper) ClientOption {
	return func(c *AuthClient) {
		c.baseTransport = transport
	}
}

// WithCookieJar sets the jar holding credential cookies (the refresh cookie)
func WithCookieJar(jar http.CookieJar) ClientOption {
	return func(c *AuthClient) {
		c.jar = jar
	}
}

// WithNavigator sets where the client is redirected when a refresh fails
func WithNavigator(n Navigator) ClientOption {
	return func(c *AuthClient) {
		c.navigator = n
	}
}

// WithLoginRoute overrides the route passed to the Navigator
func WithLoginRoute(route string) ClientOption {
	return func(c *AuthClient) {
		if route != "" {
			c.loginRoute = route
		}
	}
}

// WithLogger sets the logger for the client and its pipeline
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *AuthClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewAuthClient creates an authenticated HTTP client for the API rooted at baseURL.
// An empty baseURL is not useful for outgoing calls; a trailing slash is dropped.
func NewAuthClient(baseURL string, store TokenStore, opts ...ClientOption) *AuthClient {
	if store == nil {
		store = NewMemoryTokenStore()
	}

	c := &AuthClient{
		baseURL:       strings.TrimRight(baseURL, "/"),
		store:         store,
		httpClient:    &http.Client{},
		baseTransport: http.DefaultTransport,
		loginRoute:    DefaultLoginRoute,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.jar == nil {
		// cookiejar.New only fails on a bad PublicSuffixList
		c.jar, _ = cookiejar.New(nil)
	}
	if c.navigator == nil {
		c.navigator = NavigatorFunc(func(route string) {
			c.logger.Info("session ended, navigate to login", "route", route)
		})
	}

	c.coordinator = NewCoordinator(c.requestRefresh, c.store,
		WithNavigatorFor(c.navigator),
		WithRefreshLoginRoute(c.loginRoute),
		WithRefreshLogger(c.logger),
	)

	// Wrap the base transport with auth handling
	c.transport = &Transport{
		Base:        c.baseTransport,
		BaseURL:     parseBaseURL(c.baseURL),
		Store:       c.store,
		Coordinator: c.coordinator,
		Jar:         c.jar,
		Logger:      c.logger,
	}
	c.httpClient.Transport = c.transport

	return c
}

// HTTPClient returns the underlying HTTP client with auth handling
func (c *AuthClient) HTTPClient() *http.Client {
	return c.httpClient
}

// BaseURL returns the API base URL this client is configured for
func (c *AuthClient) BaseURL() string {
	return c.baseURL
}

// URL joins path onto the API base URL
func (c *AuthClient) URL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

// Coordinator returns the refresh coordinator shared by every request of this client
func (c *AuthClient) Coordinator() *Coordinator {
	return c.coordinator
}

// Store returns the token store
func (c *AuthClient) Store() TokenStore {
	return c.store
}

// Jar returns the cookie jar holding API credentials
func (c *AuthClient) Jar() http.CookieJar {
	return c.jar
}

// AccessToken returns the stored bearer token
func (c *AuthClient) AccessToken() (string, bool) {
	return c.store.Get()
}

// SetAccessToken stores token (e.g. after a successful login) and forgets
// any earlier refresh failure
func (c *AuthClient) SetAccessToken(token string) {
	c.store.Set(token)
	c.coordinator.Reset()
}

// ClearAccessToken removes the stored token
func (c *AuthClient) ClearAccessToken() {
	c.store.Clear()
}

// IsLoggedIn returns true if a token is stored. Validity is only learned from the server.
func (c *AuthClient) IsLoggedIn() bool {
	_, ok := c.store.Get()
	return ok
}

// Refresh obtains a new access token, joining any refresh already in flight
func (c *AuthClient) Refresh(ctx context.Context) (string, error) {
	return c.coordinator.Await(ctx)
}

// Logout ends the server session. The local token is cleared whatever the outcome.
func (c *AuthClient) Logout(ctx context.Context) error {
	defer c.store.Clear()

	resp, err := c.postAuth(ctx, logoutPath)
	if err != nil {
		return fmt.Errorf("logout request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxAuthResponseSize))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("logout failed: HTTP %d", resp.StatusCode)
	}
	return nil
}

// TokenSource exposes the stored token as an oauth2.TokenSource
func (c *AuthClient) TokenSource() oauth2.TokenSource {
	return storeTokenSource{store: c.store}
}

// requestRefresh makes the single refresh call of a cycle. It goes through the
// pipeline as an auth endpoint: cookies are sent, no bearer is attached and a
// failure never triggers a nested refresh.
func (c *AuthClient) requestRefresh(ctx context.Context) (string, error) {
	resp, err := c.postAuth(ctx, refreshPath)
	if err != nil {
		return "", &RefreshError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAuthResponseSize))
	if err != nil {
		return "", &RefreshError{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &RefreshError{StatusCode: resp.StatusCode}
	}

	token := gjson.GetBytes(body, "accessToken").String()
	if token == "" {
		return "", &RefreshError{StatusCode: resp.StatusCode, Err: ErrNoToken}
	}
	return token, nil
}

func (c *AuthClient) postAuth(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(path), strings.NewReader("{}"))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.httpClient.Do(req)
}

// parseBaseURL returns nil when raw is not an absolute URL
func parseBaseURL(raw string) *url.URL {
	u, err := url.Parse(raw + "/")
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil
	}
	return u
}

// storeTokenSource reads the current token from a TokenStore on every call
type storeTokenSource struct {
	store TokenStore
}

func (s storeTokenSource) Token() (*oauth2.Token, error) {
	token, ok := s.store.Get()
	if !ok {
		return nil, ErrNoToken
	}
	return &oauth2.Token{AccessToken: token, TokenType: "Bearer"}, nil
}

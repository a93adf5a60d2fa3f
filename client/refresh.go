package client

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// RefreshFunc exchanges the current session for a new bearer token
type RefreshFunc func(ctx context.Context) (string, error)

// Navigator performs the client-side redirect issued when a refresh fails
type Navigator interface {
	Navigate(route string)
}

// NavigatorFunc adapts a function to Navigator
type NavigatorFunc func(route string)

// Navigate implements Navigator
func (f NavigatorFunc) Navigate(route string) {
	f(route)
}

// refreshCycle resolves exactly once, for every waiter, when done is closed
type refreshCycle struct {
	done     chan struct{}
	token    string
	err      error
	waiters  int    // callers that joined, including the one that started it
	rejected string // token held when the cycle started
}

func (cy *refreshCycle) wait(ctx context.Context) (string, error) {
	select {
	case <-cy.done:
		return cy.token, cy.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Coordinator serializes token refreshes. However many requests fail with
// 401 at once, only one refresh call is made per cycle and every caller
// receives its result.
type Coordinator struct {
	refresh    RefreshFunc
	store      TokenStore
	navigator  Navigator
	loginRoute string
	logger     *slog.Logger

	mu     sync.Mutex
	cycle  *refreshCycle // nil when idle
	latest string

	// failure of the last cycle and the token it was started for. A request
	// rejected with that same token gets failure back instead of a new cycle.
	failure   *RefreshError
	failedFor string
}

// CoordinatorOption configures a Coordinator
type CoordinatorOption func(*Coordinator)

// WithNavigatorFor sets the Navigator called on refresh failure
func WithNavigatorFor(n Navigator) CoordinatorOption {
	return func(c *Coordinator) {
		c.navigator = n
	}
}

// WithRefreshLoginRoute sets the route passed to the Navigator (defaults to DefaultLoginRoute)
func WithRefreshLoginRoute(route string) CoordinatorOption {
	return func(c *Coordinator) {
		if route != "" {
			c.loginRoute = route
		}
	}
}

// WithRefreshLogger sets the coordinator's logger
func WithRefreshLogger(logger *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCoordinator creates an idle Coordinator that calls refresh and records
// its outcome in store
func NewCoordinator(refresh RefreshFunc, store TokenStore, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		refresh:    refresh,
		store:      store,
		loginRoute: DefaultLoginRoute,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Await joins the refresh cycle in flight, or starts one, and returns its
// token. A cancelled ctx releases this caller only; the cycle itself runs
// to completion.
func (c *Coordinator) Await(ctx context.Context) (string, error) {
	return c.acquire(ctx, "", false)
}

// Renew is Await for a request rejected while carrying the token rejected.
// If no cycle is running and the store already holds a different token, a
// cycle finished after the request was sent, so that token is returned
// without a new refresh. If instead the last cycle failed for rejected, its
// *RefreshError is returned and no refresh is made.
func (c *Coordinator) Renew(ctx context.Context, rejected string) (string, error) {
	return c.acquire(ctx, rejected, true)
}

func (c *Coordinator) acquire(ctx context.Context, rejected string, checkLate bool) (string, error) {
	c.mu.Lock()
	if cy := c.cycle; cy != nil {
		cy.waiters++
		c.mu.Unlock()
		return cy.wait(ctx)
	}
	if checkLate {
		if current, ok := c.store.Get(); ok && current != rejected {
			c.mu.Unlock()
			return current, nil
		}
		if c.failure != nil && rejected == c.failedFor {
			err := c.failure
			c.mu.Unlock()
			return "", err
		}
	} else {
		rejected, _ = c.store.Get()
	}
	cy := &refreshCycle{done: make(chan struct{}), waiters: 1, rejected: rejected}
	c.cycle = cy
	c.latest = ""
	c.mu.Unlock()

	go c.run(context.WithoutCancel(ctx), cy)
	return cy.wait(ctx)
}

// run performs the single refresh call of cycle cy and resolves it
func (c *Coordinator) run(ctx context.Context, cy *refreshCycle) {
	c.logger.Info("refreshing access token")

	token, err := c.refresh(ctx)
	if err == nil && token == "" {
		err = &RefreshError{Err: ErrNoToken}
	}

	if err != nil {
		var refreshErr *RefreshError
		if !errors.As(err, &refreshErr) {
			refreshErr = &RefreshError{Err: err}
		}
		c.logger.Warn("access token refresh failed, logging out", "err", refreshErr)

		c.store.Clear()
		if c.navigator != nil {
			c.navigator.Navigate(c.loginRoute)
		}

		c.mu.Lock()
		c.latest = ""
		c.cycle = nil
		c.failure = refreshErr
		c.failedFor = cy.rejected
		cy.err = refreshErr
		close(cy.done)
		c.mu.Unlock()
		return
	}

	c.store.Set(token)

	c.mu.Lock()
	c.latest = token
	c.cycle = nil
	c.failure = nil
	c.failedFor = ""
	cy.token = token
	close(cy.done)
	c.mu.Unlock()

	c.logger.Info("access token refreshed")
}

// Latest returns the token published by the most recent successful cycle.
// It is reset to none when a new cycle starts and when a cycle fails.
func (c *Coordinator) Latest() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest, c.latest != ""
}

// Refreshing reports whether a refresh cycle is in flight
func (c *Coordinator) Refreshing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cycle != nil
}

// Waiters returns how many callers joined the cycle in flight, 0 when idle
func (c *Coordinator) Waiters() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cycle == nil {
		return 0
	}
	return c.cycle.waiters
}

// Reset forgets the last published token and the last failure. It does
// nothing while a cycle is running.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cycle == nil {
		c.latest = ""
		c.failure = nil
		c.failedFor = ""
	}
}

package client

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestIsAPIPath(t *testing.T) {
	tests := []struct {
		name string
		path string
		want bool
	}{
		{name: "feed", path: "/api/feed", want: true},
		{name: "auth", path: "/api/auth/login", want: true},
		{name: "api root without slash", path: "/api", want: false},
		{name: "lookalike prefix", path: "/apifoo/bar", want: false},
		{name: "asset", path: "/assets/logo.png", want: false},
		{name: "empty", path: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsAPIPath(tt.path); got != tt.want {
				t.Errorf("IsAPIPath(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestIsAuthPath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{path: "/api/auth/login", want: true},
		{path: "/api/auth/register", want: true},
		{path: "/api/auth/refresh", want: true},
		{path: "/api/auth/logout", want: true},
		{path: "/api/authors", want: false},
		{path: "/api/feed", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := IsAuthPath(tt.path); got != tt.want {
				t.Errorf("IsAuthPath(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestShouldAttemptRefresh(t *testing.T) {
	tests := []struct {
		name   string
		status int
		path   string
		want   bool
	}{
		{name: "401 protected", status: 401, path: "/api/subjects", want: true},
		{name: "401 auth endpoint", status: 401, path: "/api/auth/refresh", want: false},
		{name: "401 non api", status: 401, path: "/login", want: false},
		{name: "403 protected", status: 403, path: "/api/subjects", want: false},
		{name: "500 protected", status: 500, path: "/api/subjects", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldAttemptRefresh(tt.status, tt.path); got != tt.want {
				t.Errorf("shouldAttemptRefresh(%d, %q) = %v, want %v", tt.status, tt.path, got, tt.want)
			}
		})
	}
}

// failingStorage simulates restricted storage: every call fails
type failingStorage struct{}

var errStorageDenied = errors.New("storage access denied")

func (failingStorage) GetItem(key string) (string, bool, error) {
	return "", false, errStorageDenied
}

func (failingStorage) SetItem(key, value string) error {
	return errStorageDenied
}

func (failingStorage) RemoveItem(key string) error {
	return errStorageDenied
}

func TestTokenStore_SetGetClear(t *testing.T) {
	store := NewMemoryTokenStore()

	if _, ok := store.Get(); ok {
		t.Error("Get() on new store should report absence")
	}

	store.Set("token-abc")
	if got, ok := store.Get(); !ok || got != "token-abc" {
		t.Errorf("Get() = %q, %v, want token-abc, true", got, ok)
	}

	store.Clear()
	if _, ok := store.Get(); ok {
		t.Error("Get() after Clear() should report absence")
	}

	// Clearing an empty store is a no-op
	store.Clear()
	if _, ok := store.Get(); ok {
		t.Error("Get() after second Clear() should report absence")
	}
}

func TestTokenStore_FailingStorage(t *testing.T) {
	store := NewTokenStore(failingStorage{})

	// None of these may panic or surface the failure
	store.Set("token-abc")
	if _, ok := store.Get(); ok {
		t.Error("Get() should report absence when storage fails")
	}
	store.Clear()
}

func TestTokenStore_CustomKey(t *testing.T) {
	storage := NewMemoryStorage()
	store := NewTokenStore(storage, WithTokenKey("mdd_token"))

	store.Set("token-abc")

	if _, ok, _ := storage.GetItem(DefaultTokenKey); ok {
		t.Errorf("token should not be stored under %q", DefaultTokenKey)
	}
	if v, ok, _ := storage.GetItem("mdd_token"); !ok || v != "token-abc" {
		t.Errorf("GetItem(mdd_token) = %q, %v, want token-abc, true", v, ok)
	}
}

func TestTokenStore_EmptyValueIsAbsent(t *testing.T) {
	storage := NewMemoryStorage()
	storage.SetItem(DefaultTokenKey, "")
	store := NewTokenStore(storage)

	if _, ok := store.Get(); ok {
		t.Error("an empty stored value should read as absence")
	}
}

// countingNavigator records every route it is sent to
type countingNavigator struct {
	mu     sync.Mutex
	routes []string
}

func (n *countingNavigator) Navigate(route string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.routes = append(n.routes, route)
}

func (n *countingNavigator) Routes() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.routes...)
}

// waitForWaiters blocks until n callers joined the coordinator's cycle
func waitForWaiters(t *testing.T, c *Coordinator, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for c.Waiters() < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d waiters, have %d", n, c.Waiters())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestCoordinator_SingleRefreshForConcurrentCallers(t *testing.T) {
	const callers = 10

	var calls int32
	release := make(chan struct{})
	store := NewMemoryTokenStore()
	coord := NewCoordinator(func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "new-token", nil
	}, store)

	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = coord.Await(context.Background())
		}(i)
	}

	waitForWaiters(t, coord, callers)
	if !coord.Refreshing() {
		t.Error("Refreshing() = false while the refresh call is blocked")
	}
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("refresh called %d times, want 1", got)
	}
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Errorf("caller %d error = %v", i, errs[i])
		}
		if tokens[i] != "new-token" {
			t.Errorf("caller %d token = %q, want new-token", i, tokens[i])
		}
	}
	if got, ok := store.Get(); !ok || got != "new-token" {
		t.Errorf("store token = %q, %v, want new-token, true", got, ok)
	}
	if got, ok := coord.Latest(); !ok || got != "new-token" {
		t.Errorf("Latest() = %q, %v, want new-token, true", got, ok)
	}
	if coord.Refreshing() {
		t.Error("Refreshing() = true after the cycle resolved")
	}
}

func TestCoordinator_FailureReleasesAllWaiters(t *testing.T) {
	const callers = 5

	var calls int32
	release := make(chan struct{})
	store := NewMemoryTokenStore()
	store.Set("old-token")
	nav := &countingNavigator{}
	coord := NewCoordinator(func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "", &RefreshError{StatusCode: 401}
	}, store, WithNavigatorFor(nav))

	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = coord.Await(context.Background())
		}(i)
	}

	waitForWaiters(t, coord, callers)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("refresh called %d times, want 1", got)
	}
	for i, err := range errs {
		var refreshErr *RefreshError
		if !errors.As(err, &refreshErr) {
			t.Errorf("caller %d error = %v, want *RefreshError", i, err)
			continue
		}
		if refreshErr.StatusCode != 401 {
			t.Errorf("caller %d StatusCode = %d, want 401", i, refreshErr.StatusCode)
		}
		if !errors.Is(err, ErrRefreshFailed) {
			t.Errorf("caller %d error should match ErrRefreshFailed", i)
		}
	}
	if _, ok := store.Get(); ok {
		t.Error("store should be cleared after a failed refresh")
	}
	if routes := nav.Routes(); len(routes) != 1 || routes[0] != DefaultLoginRoute {
		t.Errorf("navigator routes = %v, want [%s]", routes, DefaultLoginRoute)
	}
	if _, ok := coord.Latest(); ok {
		t.Error("Latest() should be none after a failed cycle")
	}
}

func TestCoordinator_WrapsPlainErrors(t *testing.T) {
	cause := errors.New("connection refused")
	coord := NewCoordinator(func(ctx context.Context) (string, error) {
		return "", cause
	}, NewMemoryTokenStore())

	_, err := coord.Await(context.Background())
	var refreshErr *RefreshError
	if !errors.As(err, &refreshErr) {
		t.Fatalf("Await() error = %v, want *RefreshError", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("Await() error should wrap the cause, got %v", err)
	}
}

func TestCoordinator_EmptyTokenIsFailure(t *testing.T) {
	store := NewMemoryTokenStore()
	store.Set("old-token")
	coord := NewCoordinator(func(ctx context.Context) (string, error) {
		return "", nil
	}, store)

	_, err := coord.Await(context.Background())
	if !errors.Is(err, ErrNoToken) {
		t.Errorf("Await() error = %v, want ErrNoToken", err)
	}
	if _, ok := store.Get(); ok {
		t.Error("store should be cleared when refresh yields no token")
	}
}

func TestCoordinator_SequentialCyclesRefreshAgain(t *testing.T) {
	var calls int32
	coord := NewCoordinator(func(ctx context.Context) (string, error) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			return "token-1", nil
		}
		return "token-2", nil
	}, NewMemoryTokenStore())

	first, _ := coord.Await(context.Background())
	second, _ := coord.Await(context.Background())

	if first != "token-1" || second != "token-2" {
		t.Errorf("tokens = %q, %q, want token-1, token-2", first, second)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("refresh called %d times, want 2", got)
	}
}

func TestCoordinator_RenewLateRejection(t *testing.T) {
	var calls int32
	store := NewMemoryTokenStore()
	store.Set("token-b")
	coord := NewCoordinator(func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "token-c", nil
	}, store)

	// Rejected with an older token: the stored one is reused
	got, err := coord.Renew(context.Background(), "token-a")
	if err != nil {
		t.Fatalf("Renew() error = %v", err)
	}
	if got != "token-b" {
		t.Errorf("Renew() = %q, want token-b", got)
	}
	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Errorf("refresh called %d times, want 0", n)
	}

	// Rejected with the current token: a real refresh
	got, err = coord.Renew(context.Background(), "token-b")
	if err != nil {
		t.Fatalf("Renew() error = %v", err)
	}
	if got != "token-c" {
		t.Errorf("Renew() = %q, want token-c", got)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("refresh called %d times, want 1", n)
	}
}

func TestCoordinator_RenewAfterFailure(t *testing.T) {
	var calls int32
	fail := true
	store := NewMemoryTokenStore()
	store.Set("token-a")
	nav := &countingNavigator{}
	coord := NewCoordinator(func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		if fail {
			return "", &RefreshError{StatusCode: 401}
		}
		return "token-c", nil
	}, store, WithNavigatorFor(nav))

	_, first := coord.Renew(context.Background(), "token-a")
	if !errors.Is(first, ErrRefreshFailed) {
		t.Fatalf("Renew() error = %v, want ErrRefreshFailed", first)
	}

	// A late 401 for the token that already failed shares the failure
	_, second := coord.Renew(context.Background(), "token-a")
	if second != first {
		t.Errorf("late Renew() error = %v, want the first cycle's error", second)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("refresh called %d times, want 1", n)
	}
	if routes := nav.Routes(); len(routes) != 1 {
		t.Errorf("navigations = %v, want one", routes)
	}

	// A request rejected with a newer token starts a fresh cycle
	fail = false
	store.Set("token-b")
	got, err := coord.Renew(context.Background(), "token-b")
	if err != nil || got != "token-c" {
		t.Errorf("Renew() = %q, %v, want token-c, nil", got, err)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("refresh called %d times, want 2", n)
	}
}

func TestCoordinator_ResetForgetsFailure(t *testing.T) {
	var calls int32
	store := NewMemoryTokenStore()
	coord := NewCoordinator(func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", &RefreshError{StatusCode: 401}
	}, store)

	coord.Renew(context.Background(), "")
	coord.Reset()
	coord.Renew(context.Background(), "")

	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("refresh called %d times, want 2 after Reset()", n)
	}
}

func TestCoordinator_CancelledWaiterDoesNotAbortCycle(t *testing.T) {
	release := make(chan struct{})
	done := make(chan struct{})
	store := NewMemoryTokenStore()
	coord := NewCoordinator(func(ctx context.Context) (string, error) {
		defer close(done)
		<-release
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "new-token", nil
	}, store)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := coord.Await(ctx)
		errCh <- err
	}()

	waitForWaiters(t, coord, 1)
	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Await() error = %v, want context.Canceled", err)
	}

	close(release)
	<-done
	deadline := time.Now().Add(5 * time.Second)
	for coord.Refreshing() {
		if time.Now().After(deadline) {
			t.Fatal("cycle never resolved")
		}
		time.Sleep(time.Millisecond)
	}
	if got, ok := store.Get(); !ok || got != "new-token" {
		t.Errorf("store token = %q, %v, want new-token, true", got, ok)
	}
}

func TestCoordinator_Reset(t *testing.T) {
	coord := NewCoordinator(func(ctx context.Context) (string, error) {
		return "new-token", nil
	}, NewMemoryTokenStore())

	coord.Await(context.Background())
	if _, ok := coord.Latest(); !ok {
		t.Fatal("Latest() should hold the refreshed token")
	}

	coord.Reset()
	if _, ok := coord.Latest(); ok {
		t.Error("Latest() should be none after Reset()")
	}
}

func TestRefreshError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *RefreshError
		want string
	}{
		{name: "status", err: &RefreshError{StatusCode: 401}, want: "token refresh failed: HTTP 401"},
		{name: "cause", err: &RefreshError{Err: errors.New("boom")}, want: "token refresh failed: boom"},
		{name: "both", err: &RefreshError{StatusCode: 200, Err: ErrNoToken}, want: "token refresh failed: HTTP 200: no access token"},
		{name: "bare", err: &RefreshError{}, want: "token refresh failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

package client

import (
	"errors"
	"fmt"
)

var (
	// ErrNoToken is returned when an operation needs a stored token and there is none
	ErrNoToken = errors.New("no access token")

	// ErrRefreshFailed is matched (errors.Is) by every *RefreshError
	ErrRefreshFailed = errors.New("token refresh failed")
)

// RefreshError reports a failed refresh cycle. Every request that triggered
// or waited on the cycle receives the same RefreshError.
type RefreshError struct {
	// StatusCode of the refresh response, 0 if the call never got one
	StatusCode int

	// Err is the underlying cause, if any
	Err error
}

func (e *RefreshError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("token refresh failed: HTTP %d: %v", e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("token refresh failed: HTTP %d", e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("token refresh failed: %v", e.Err)
	}
	return "token refresh failed"
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrRefreshFailed) hold for any RefreshError
func (e *RefreshError) Is(target error) bool {
	return target == ErrRefreshFailed
}

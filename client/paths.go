package client

import (
	"net/http"
	"strings"
)

// Path prefixes used to classify outgoing requests
const (
	APIPrefix  = "/api/"
	AuthPrefix = "/api/auth/"

	// DefaultLoginRoute is where the Navigator is sent when a refresh fails
	DefaultLoginRoute = "/login"

	refreshPath = "/api/auth/refresh"
	logoutPath  = "/api/auth/logout"
)

// IsAPIPath reports whether path is under the API namespace
func IsAPIPath(path string) bool {
	return strings.HasPrefix(path, APIPrefix)
}

// IsAuthPath reports whether path is an authentication endpoint
// (login, register, refresh, logout). These never carry a bearer token
// and never trigger a refresh.
func IsAuthPath(path string) bool {
	return strings.HasPrefix(path, AuthPrefix)
}

// shouldAttemptRefresh is true only for a 401 on a protected API path
func shouldAttemptRefresh(status int, path string) bool {
	return status == http.StatusUnauthorized && IsAPIPath(path) && !IsAuthPath(path)
}

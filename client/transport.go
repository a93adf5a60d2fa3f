package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
)

type credentialsKey struct{}

// IncludesCredentials reports whether req was marked by Transport to carry
// cookie credentials (the API namespace only)
func IncludesCredentials(req *http.Request) bool {
	v, _ := req.Context().Value(credentialsKey{}).(bool)
	return v
}

// Transport is an http.RoundTripper that mediates every outgoing call:
// it attaches credentials and bearer tokens to API requests and turns a 401
// on a protected API path into a coordinated refresh and a single retry.
// The caller's request is never modified.
type Transport struct {
	// Base performs the actual round trips. Defaults to http.DefaultTransport.
	Base http.RoundTripper

	// Store supplies the bearer token
	Store TokenStore

	// Coordinator runs refresh cycles. If nil, 401s are returned unchanged.
	Coordinator *Coordinator

	// Jar holds cookie credentials for API requests. May be nil.
	Jar http.CookieJar

	// BaseURL resolves requests whose URL has no scheme or host. May be nil.
	BaseURL *url.URL

	Logger *slog.Logger
}

// RoundTrip implements http.RoundTripper
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.BaseURL != nil && (req.URL.Scheme == "" || req.URL.Host == "") {
		resolved := req.Clone(req.Context())
		resolved.URL = t.BaseURL.ResolveReference(req.URL)
		resolved.Host = ""
		req = resolved
	}

	path := req.URL.Path
	if !IsAPIPath(path) {
		return t.base().RoundTrip(req)
	}

	orig, err := replayable(req)
	if err != nil {
		return nil, err
	}

	out := withCredentials(orig)
	var sent string
	if !IsAuthPath(path) && t.Store != nil {
		if token, ok := t.Store.Get(); ok {
			out.Header.Set("Authorization", "Bearer "+token)
			sent = token
		}
	}

	resp, err := t.send(out)
	if err != nil {
		return nil, err
	}

	if !shouldAttemptRefresh(resp.StatusCode, path) || t.Coordinator == nil {
		return resp, nil
	}

	// The 401 is replaced by the retry's outcome
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()

	t.logger().Debug("unauthorized API response, awaiting refresh", "method", req.Method, "path", path)
	token, err := t.Coordinator.Renew(req.Context(), sent)
	if err != nil {
		return nil, err
	}

	retry, err := withBearer(orig, token)
	if err != nil {
		return nil, err
	}
	return t.send(retry)
}

// send dispatches req through the base transport, attaching and recording
// cookies when req carries credentials
func (t *Transport) send(req *http.Request) (*http.Response, error) {
	creds := t.Jar != nil && IncludesCredentials(req)
	if creds {
		for _, cookie := range t.Jar.Cookies(req.URL) {
			req.AddCookie(cookie)
		}
	}

	resp, err := t.base().RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if creds {
		if cookies := resp.Cookies(); len(cookies) > 0 {
			t.Jar.SetCookies(req.URL, cookies)
		}
	}
	return resp, nil
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.Default()
}

// replayable returns a copy of req whose body can be produced again via GetBody
func replayable(req *http.Request) (*http.Request, error) {
	orig := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return orig, nil
	}

	data, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to buffer request body: %w", err)
	}

	orig.Body = io.NopCloser(bytes.NewReader(data))
	orig.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	orig.ContentLength = int64(len(data))
	return orig, nil
}

// withCredentials clones req, marking the clone to include cookie credentials
func withCredentials(req *http.Request) *http.Request {
	return req.Clone(context.WithValue(req.Context(), credentialsKey{}, true))
}

// withBearer builds a fresh retry of orig carrying token
func withBearer(orig *http.Request, token string) (*http.Request, error) {
	retry := withCredentials(orig)
	retry.Header.Set("Authorization", "Bearer "+token)
	if orig.GetBody != nil {
		body, err := orig.GetBody()
		if err != nil {
			return nil, fmt.Errorf("failed to replay request body: %w", err)
		}
		retry.Body = body
	}
	return retry, nil
}

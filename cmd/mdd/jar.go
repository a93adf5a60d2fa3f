package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/panyam/mddclient/client"
)

const refreshCookieKey = "refresh_cookie"

// savedCookie is the persisted form of the refresh cookie
type savedCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path"`
	Expires  time.Time `json:"expires,omitzero"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"httpOnly,omitempty"`
}

// expired reports whether an expiring cookie is past its expiry at now
func (c savedCookie) expired(now time.Time) bool {
	return !c.Expires.IsZero() && !now.Before(c.Expires)
}

// persistentJar is an in-memory cookie jar that also saves the refresh cookie
// to storage, so the session outlives a single command
type persistentJar struct {
	mu         sync.Mutex
	jar        *cookiejar.Jar
	storage    client.Storage
	cookieName string
	logger     *slog.Logger
	now        func() time.Time
}

// newPersistentJar restores the saved refresh cookie unless it expired.
// now is the clock used for expiry; nil means time.Now.
func newPersistentJar(storage client.Storage, baseURL *url.URL, cookieName string, logger *slog.Logger, now func() time.Time) *persistentJar {
	if now == nil {
		now = time.Now
	}
	// cookiejar.New only fails on a bad PublicSuffixList
	jar, _ := cookiejar.New(nil)
	j := &persistentJar{jar: jar, storage: storage, cookieName: cookieName, logger: logger, now: now}

	raw, ok, err := storage.GetItem(refreshCookieKey)
	if err != nil {
		logger.Debug("refresh cookie unreadable", "err", err)
		return j
	}
	if !ok {
		return j
	}
	var saved savedCookie
	if err := json.Unmarshal([]byte(raw), &saved); err != nil || saved.Value == "" {
		logger.Debug("discarding invalid saved refresh cookie", "err", err)
		return j
	}
	if saved.expired(now()) {
		logger.Debug("saved refresh cookie expired", "expires", saved.Expires)
		if err := storage.RemoveItem(refreshCookieKey); err != nil {
			logger.Debug("failed to remove refresh cookie", "err", err)
		}
		return j
	}
	u := *baseURL
	u.Path = saved.Path
	jar.SetCookies(&u, []*http.Cookie{{
		Name:     saved.Name,
		Value:    saved.Value,
		Path:     saved.Path,
		Expires:  saved.Expires,
		Secure:   saved.Secure,
		HttpOnly: saved.HttpOnly,
	}})
	return j
}

func (j *persistentJar) Cookies(u *url.URL) []*http.Cookie {
	return j.jar.Cookies(u)
}

func (j *persistentJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.jar.SetCookies(u, cookies)

	j.mu.Lock()
	defer j.mu.Unlock()
	for _, c := range cookies {
		if c.Name != j.cookieName {
			continue
		}
		if c.MaxAge < 0 || c.Value == "" {
			if err := j.storage.RemoveItem(refreshCookieKey); err != nil {
				j.logger.Debug("failed to remove refresh cookie", "err", err)
			}
			continue
		}
		path := c.Path
		if path == "" {
			path = u.Path
		}
		saved := savedCookie{Name: c.Name, Value: c.Value, Path: path, Secure: c.Secure, HttpOnly: c.HttpOnly}
		switch {
		case c.MaxAge > 0:
			saved.Expires = j.now().Add(time.Duration(c.MaxAge) * time.Second).UTC()
		case !c.Expires.IsZero():
			saved.Expires = c.Expires.UTC()
		}
		data, _ := json.Marshal(saved)
		if err := j.storage.SetItem(refreshCookieKey, string(data)); err != nil {
			j.logger.Debug("failed to save refresh cookie", "err", err)
		}
	}
}

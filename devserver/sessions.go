package devserver

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	errSessionNotFound = errors.New("refresh token is invalid")
	errSessionRevoked  = errors.New("session has been revoked")
	errSessionExpired  = errors.New("session has expired")
)

// session is a refresh session keyed by the fingerprint of its current refresh token
type session struct {
	ID        string
	UserID    int64
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt time.Time
}

func (s *session) revoked() bool {
	return !s.RevokedAt.IsZero()
}

// sessionStore holds refresh sessions in memory
type sessionStore struct {
	mu     sync.Mutex
	byHash map[string]*session
}

func newSessionStore() *sessionStore {
	return &sessionStore{byHash: make(map[string]*session)}
}

func (st *sessionStore) create(userID int64, tokenHash string, now, expiresAt time.Time) *session {
	st.mu.Lock()
	defer st.mu.Unlock()

	sess := &session{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: tokenHash,
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}
	st.byHash[tokenHash] = sess
	return sess
}

// rotate replaces the session's token fingerprint. The old token stops working
// immediately, so of two concurrent rotations with the same token only one wins.
func (st *sessionStore) rotate(oldHash, newHash string, now, expiresAt time.Time) (*session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	sess, ok := st.byHash[oldHash]
	if !ok {
		return nil, errSessionNotFound
	}
	if sess.revoked() {
		return nil, errSessionRevoked
	}
	if !now.Before(sess.ExpiresAt) {
		return nil, errSessionExpired
	}

	delete(st.byHash, oldHash)
	sess.TokenHash = newHash
	sess.ExpiresAt = expiresAt
	st.byHash[newHash] = sess
	return sess, nil
}

// revoke marks the session revoked. Unknown tokens are ignored.
func (st *sessionStore) revoke(tokenHash string, now time.Time) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if sess, ok := st.byHash[tokenHash]; ok && !sess.revoked() {
		sess.RevokedAt = now
	}
}

// active counts sessions of userID that are neither revoked nor expired
func (st *sessionStore) active(userID int64, now time.Time) int {
	st.mu.Lock()
	defer st.mu.Unlock()

	n := 0
	for _, sess := range st.byHash {
		if sess.UserID == userID && !sess.revoked() && now.Before(sess.ExpiresAt) {
			n++
		}
	}
	return n
}

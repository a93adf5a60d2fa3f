package devserver

import (
	"errors"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/panyam/mddclient/api"
)

const invalidCredentialsMessage = "Invalid username or password"

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// handleRegister handles POST /api/auth/register
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := validateRegister(&req); err != nil {
		s.writeError(w, r, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	u, err := s.store.createUser(req.Email, req.Username, string(hash))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info("user registered", "user_id", u.ID)
	writeJSON(w, http.StatusCreated, toAPIUser(u))
}

// handleLogin handles POST /api/auth/login. The identifier is an email or a username.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := validateLogin(&req); err != nil {
		s.writeError(w, r, err)
		return
	}

	u, ok := s.store.userByIdentifier(req.Identifier)
	if !ok {
		s.writeError(w, r, unauthorized(invalidCredentialsMessage))
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		s.writeError(w, r, unauthorized(invalidCredentialsMessage))
		return
	}

	refreshToken, err := generateRefreshToken()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	now := s.now()
	s.sessions.create(u.ID, s.fingerprint(refreshToken), now, now.Add(s.config.RefreshTokenTTL))

	accessToken, err := s.createAccessToken(u.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.setRefreshCookie(w, refreshToken)
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, api.LoginResponse{AccessToken: accessToken, User: toAPIUser(u)})
}

// handleRefresh handles POST /api/auth/refresh: the refresh cookie is rotated
// and a new access token issued
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	presented := s.refreshCookie(r)
	if presented == "" {
		s.writeError(w, r, unauthorized("Refresh token is missing"))
		return
	}

	next, err := generateRefreshToken()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	now := s.now()
	sess, err := s.sessions.rotate(s.fingerprint(presented), s.fingerprint(next), now, now.Add(s.config.RefreshTokenTTL))
	if err != nil {
		if errors.Is(err, errSessionNotFound) || errors.Is(err, errSessionRevoked) || errors.Is(err, errSessionExpired) {
			s.writeError(w, r, unauthorized(err.Error()))
			return
		}
		s.writeError(w, r, err)
		return
	}

	accessToken, err := s.createAccessToken(sess.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.setRefreshCookie(w, next)
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, refreshResponse{AccessToken: accessToken})
}

// handleLogout handles POST /api/auth/logout. It always succeeds and clears the cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if presented := s.refreshCookie(r); presented != "" {
		s.sessions.revoke(s.fingerprint(presented), s.now())
	}
	s.clearRefreshCookie(w)
	writeJSON(w, http.StatusOK, messageResponse{Message: "You have been logged out"})
}

func (s *Server) refreshCookie(r *http.Request) string {
	cookie, err := r.Cookie(s.config.RefreshCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (s *Server) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.RefreshCookieName,
		Value:    token,
		Path:     s.config.CookiePath,
		MaxAge:   int(s.config.RefreshTokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.config.CookieSecure,
		SameSite: s.config.CookieSameSite,
	})
}

func (s *Server) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.config.RefreshCookieName,
		Value:    "",
		Path:     s.config.CookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.config.CookieSecure,
		SameSite: s.config.CookieSameSite,
	})
}

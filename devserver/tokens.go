package devserver

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const refreshTokenBytes = 64

// createAccessToken creates a signed JWT access token for userID
func (s *Server) createAccessToken(userID int64) (string, error) {
	now := s.now()

	claims := jwt.MapClaims{
		"sub":  strconv.FormatInt(userID, 10),
		"type": "access",
		"jti":  uuid.NewString(),
		"iat":  now.Unix(),
		"exp":  now.Add(s.config.AccessTokenTTL).Unix(),
	}
	if s.config.JWTIssuer != "" {
		claims["iss"] = s.config.JWTIssuer
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// validateAccessToken verifies a JWT access token and returns its user id
func (s *Server) validateAccessToken(tokenString string) (int64, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.JWTSecret), nil
	}, jwt.WithExpirationRequired(), jwt.WithTimeFunc(s.now))
	if err != nil {
		return 0, err
	}
	if !token.Valid {
		return 0, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, fmt.Errorf("invalid claims")
	}
	if tokenType, ok := claims["type"].(string); !ok || tokenType != "access" {
		return 0, fmt.Errorf("invalid token type")
	}
	if s.config.JWTIssuer != "" {
		if iss, ok := claims["iss"].(string); !ok || iss != s.config.JWTIssuer {
			return 0, fmt.Errorf("invalid issuer")
		}
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return 0, fmt.Errorf("missing subject")
	}
	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid subject: %w", err)
	}
	return userID, nil
}

// generateRefreshToken returns 64 random bytes, URL-safe base64 without padding
func generateRefreshToken() (string, error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// fingerprint is the stored form of a refresh token. The plaintext is never stored.
func (s *Server) fingerprint(token string) string {
	mac := hmac.New(sha256.New, []byte(s.config.JWTSecret))
	mac.Write([]byte(token))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// randomSecret is used when no JWT secret is configured
func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

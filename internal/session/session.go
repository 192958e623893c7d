// Package session reads and stores the BaaS JWT that identifies the user.
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Clark-Hu/lopperater/internal/apperr"
	"github.com/Clark-Hu/lopperater/internal/domain"
)

// ErrNoSession is returned when no token has been saved.
var ErrNoSession = errors.New("session: not logged in")

// Claims are the JWT claims issued by the BaaS account service.
type Claims struct {
	UserID    string   `json:"userId"`
	SessionID string   `json:"sessionId"`
	Name      string   `json:"name,omitempty"`
	Email     string   `json:"email,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Session is a parsed token.
type Session struct {
	Token     string
	UserID    string
	SessionID string
	Name      string
	Email     string
	Roles     []domain.Role
	ExpiresAt time.Time
}

// Parse decodes token without verifying its signature; the BaaS verifies it
// on every request.
func Parse(token string) (Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Session{}, ErrNoSession
	}
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Session{}, apperr.NewAuthentication(fmt.Sprintf("parse session token: %v", err))
	}
	return fromClaims(token, claims)
}

// Verify parses token and checks its HMAC signature and expiry.
func Verify(token string, secret []byte) (Session, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Session{}, apperr.NewAuthentication(fmt.Sprintf("verify session token: %v", err))
	}
	return fromClaims(token, claims)
}

// Issue signs a token for user. Used by the development BaaS.
func Issue(user domain.User, sessionID string, ttl time.Duration, secret []byte) (string, error) {
	now := time.Now()
	roles := make([]string, len(user.Roles))
	for i, r := range user.Roles {
		roles[i] = string(r)
	}
	claims := Claims{
		UserID:    user.ID,
		SessionID: sessionID,
		Name:      user.Name,
		Email:     user.Email,
		Roles:     roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func fromClaims(token string, claims *Claims) (Session, error) {
	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return Session{}, apperr.NewAuthentication("session token has no user id")
	}
	s := Session{
		Token:     token,
		UserID:    userID,
		SessionID: claims.SessionID,
		Name:      claims.Name,
		Email:     claims.Email,
	}
	for _, r := range claims.Roles {
		s.Roles = append(s.Roles, domain.Role(r))
	}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}

// Expired reports whether the token has an expiry at or before now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// User returns the account the session belongs to.
func (s Session) User() domain.User {
	return domain.User{ID: s.UserID, Name: s.Name, Email: s.Email, Roles: s.Roles}
}

// FileStore keeps the token in a file readable only by the owner.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Save validates token and writes it.
func (f *FileStore) Save(token string) (Session, error) {
	s, err := Parse(token)
	if err != nil {
		return Session{}, err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return Session{}, fmt.Errorf("create session dir: %w", err)
	}
	if err := os.WriteFile(f.path, []byte(s.Token+"\n"), 0o600); err != nil {
		return Session{}, fmt.Errorf("write session: %w", err)
	}
	return s, nil
}

// Load reads and parses the saved token. Expired tokens are reported as
// authentication errors.
func (f *FileStore) Load(now time.Time) (Session, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("read session: %w", err)
	}
	s, err := Parse(string(raw))
	if err != nil {
		return Session{}, err
	}
	if s.Expired(now) {
		return Session{}, apperr.NewAuthentication("session expired, log in again")
	}
	return s, nil
}

// Clear removes the saved token.
func (f *FileStore) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

// Package service holds the authentication service and the login attempt
// guard that backs it.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/pbkdf2"

	"github.com/medidesk/clinic-server/internal/errs"
	"github.com/medidesk/clinic-server/internal/models"
	"github.com/medidesk/clinic-server/internal/repository"
	"github.com/medidesk/clinic-server/internal/storage"
)

// ErrInvalidCredentials is returned on a failed login without revealing
// which of username or password was wrong.
var ErrInvalidCredentials = errors.New("incorrect username or password")

const pbkdf2Iterations = 4096

// Auth orchestrates credential validation, password hashing, the login
// guard and the session lifecycle.
type Auth struct {
	store *storage.Store
	users *repository.Users
	guard *LoginGuard

	jwtSecret     []byte
	hashSalt      []byte
	loginDelay    time.Duration
	tokenDuration time.Duration
}

// NewAuth creates the authentication service. loginDelay is an artificial
// pause between a successful credential check and session creation; zero
// disables it.
func NewAuth(store *storage.Store, users *repository.Users, guard *LoginGuard, jwtSecret, hashSalt string, loginDelay time.Duration) *Auth {
	return &Auth{
		store:         store,
		users:         users,
		guard:         guard,
		jwtSecret:     []byte(jwtSecret),
		hashSalt:      []byte(hashSalt),
		loginDelay:    loginDelay,
		tokenDuration: 24 * time.Hour,
	}
}

// HashPassword derives a deterministic one-way hash of the password. The
// determinism (fixed application salt) is what allows credential lookup by
// (username, hash) against the store.
func (a *Auth) HashPassword(password string) string {
	key := pbkdf2.Key([]byte(password), a.hashSalt, pbkdf2Iterations, 32, sha256.New)
	return hex.EncodeToString(key)
}

// Login authenticates a user and creates the current session. The lockout
// check runs first and records no attempt itself; validation and credential
// failures each record a failed attempt.
func (a *Auth) Login(ctx context.Context, username, password string) (*models.Session, error) {
	if a.guard.IsLocked(username) {
		return nil, &errs.LockoutError{Username: username}
	}

	var messages []string
	if len(username) < 3 {
		messages = append(messages, "username must contain at least 3 characters")
	}
	if len(password) < 6 {
		messages = append(messages, "password must contain at least 6 characters")
	}
	if len(messages) > 0 {
		if err := a.guard.RecordAttempt(username, false); err != nil {
			return nil, err
		}
		return nil, &errs.ValidationError{Messages: messages}
	}

	user, err := a.users.FindByCredentials(username, a.HashPassword(password))
	if err != nil {
		return nil, err
	}
	if user == nil {
		if err := a.guard.RecordAttempt(username, false); err != nil {
			return nil, err
		}
		return nil, ErrInvalidCredentials
	}

	if err := a.guard.RecordAttempt(username, true); err != nil {
		return nil, err
	}

	if a.loginDelay > 0 {
		select {
		case <-time.After(a.loginDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	session := &models.Session{
		ID:        uuid.New().String(),
		Username:  user.Username,
		LoginTime: time.Now().UTC(),
	}
	rec, err := storage.Encode(session)
	if err != nil {
		return nil, err
	}
	if err := a.store.SaveSession(rec); err != nil {
		return nil, err
	}
	return session, nil
}

// Register creates a new user account. It does not log the user in.
func (a *Auth) Register(ctx context.Context, username, password, confirmPassword string) (*models.User, error) {
	if password != confirmPassword {
		return nil, errs.NewValidation("passwords do not match")
	}

	var messages []string
	if len(username) < 3 {
		messages = append(messages, "username must contain at least 3 characters")
	}
	if len(password) < 6 {
		messages = append(messages, "password must contain at least 6 characters")
	} else if len(password) < 8 {
		messages = append(messages, "password must contain at least 8 characters for better security")
	}
	if len(messages) > 0 {
		return nil, &errs.ValidationError{Messages: messages}
	}

	return a.users.Create(username, a.HashPassword(password))
}

// Logout destroys the current session. It is idempotent when no session
// exists.
func (a *Auth) Logout() error {
	return a.store.ClearSession()
}

// CurrentSession returns the active session, if any.
func (a *Auth) CurrentSession() (*models.Session, bool) {
	rec, ok := a.store.LoadSession()
	if !ok {
		return nil, false
	}
	var session models.Session
	if err := storage.Decode(rec, &session); err != nil {
		return nil, false
	}
	return &session, true
}

// SessionToken signs a bearer token for the HTTP layer carrying the session
// identity.
func (a *Auth) SessionToken(session *models.Session) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": session.Username,
		"sid": session.ID,
		"exp": now.Add(a.tokenDuration).Unix(),
		"iat": now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.jwtSecret)
}

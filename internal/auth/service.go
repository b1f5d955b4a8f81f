// Package auth signs users in against the booking API and keeps the result
// in an encrypted cookie. Passwords are never stored or checked here.
package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/ridebook/internal/backend"
	"github.com/example/ridebook/internal/booking"
)

// ErrInvalidCredentials is the only login failure users ever see.
var ErrInvalidCredentials = errors.New("invalid credentials")

// API is the part of the booking API used for accounts.
type API interface {
	Signup(ctx context.Context, in backend.SignupRequest) (backend.Profile, error)
	Login(ctx context.Context, email, password string) (backend.Token, error)
	Me(ctx context.Context, token string) (backend.Profile, error)
}

type Service struct {
	store *Store
	api   API
	log   *zap.Logger
	now   func() time.Time
}

func NewService(store *Store, api API, log *zap.Logger) *Service {
	return &Service{store: store, api: api, log: log, now: time.Now}
}

func (s *Service) Store() *Store { return s.store }

// Login exchanges credentials for a token, fetches the profile and sets the
// session cookie. Every failure is reported as ErrInvalidCredentials except
// an unreachable API, which callers may want to treat differently.
func (s *Service) Login(ctx context.Context, w http.ResponseWriter, r *http.Request, email, password string) (Session, error) {
	tok, err := s.api.Login(ctx, email, password)
	if err != nil {
		if errors.Is(err, backend.ErrUnavailable) {
			return Session{}, err
		}
		s.log.Info("login rejected", zap.String("email", email), zap.Error(err))
		return Session{}, ErrInvalidCredentials
	}
	claims, err := ParseClaims(tok.AccessToken)
	if err != nil {
		s.log.Warn("access token unreadable", zap.Error(err))
		return Session{}, ErrInvalidCredentials
	}
	prof, err := s.api.Me(ctx, tok.AccessToken)
	if err != nil {
		s.log.Warn("fetch profile after login", zap.Error(err))
		return Session{}, ErrInvalidCredentials
	}
	sess := Session{
		AccessToken: tok.AccessToken,
		Role:        firstNonEmpty(prof.Role, claims.Role),
		Subject:     claims.Subject,
		Profile:     &prof,
		ExpiresAt:   claims.ExpiresAt,
	}
	if !sess.Valid(s.now()) {
		return Session{}, ErrInvalidCredentials
	}
	if err := s.store.SetSession(w, r, sess); err != nil {
		return Session{}, fmt.Errorf("set session: %w", err)
	}
	return sess, nil
}

func (s *Service) Logout(w http.ResponseWriter) {
	s.store.ClearSession(w)
}

func (s *Service) Signup(ctx context.Context, f SignupForm) error {
	_, err := s.api.Signup(ctx, backend.SignupRequest{
		Email:       f.Email,
		FullName:    f.FullName,
		PhoneNumber: f.Phone,
		Password:    f.Password,
	})
	return err
}

// EnsureResult tells the contact step what to do next.
type EnsureResult int

const (
	// Created means a new account was made and the user is now signed in.
	Created EnsureResult = iota
	// Exists means the email is registered; the user must log in first.
	Exists
)

// EnsureUserAndLogin creates an account for an anonymous booker with a
// random password and signs them in. Existing accounts are never touched.
func (s *Service) EnsureUserAndLogin(ctx context.Context, w http.ResponseWriter, r *http.Request, c booking.Contact) (EnsureResult, error) {
	pw, err := randomPassword(16)
	if err != nil {
		return 0, err
	}
	_, err = s.api.Signup(ctx, backend.SignupRequest{
		Email:       c.Email,
		FullName:    c.Name,
		PhoneNumber: digitsOnly(c.Phone),
		Password:    pw,
	})
	if errors.Is(err, backend.ErrUserExists) {
		return Exists, nil
	}
	if err != nil {
		return 0, fmt.Errorf("user creation failed: %w", err)
	}
	if _, err := s.Login(ctx, w, r, c.Email, pw); err != nil {
		return 0, fmt.Errorf("unable to log in after account creation: %w", err)
	}
	return Created, nil
}

const pwAlphabet = "useandom-26T198340PX75pxJACKVERYMINDBUSHWOLF_GQZbfghjklqvwyzrict"

func randomPassword(n int) (string, error) {
	var b strings.Builder
	size := big.NewInt(int64(len(pwAlphabet)))
	for i := 0; i < n; i++ {
		k, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", err
		}
		b.WriteByte(pwAlphabet[k.Int64()])
	}
	return b.String(), nil
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

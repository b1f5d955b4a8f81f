package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"

	"github.com/example/ridebook/internal/backend"
)

const cookieName = "ridebook_session"

// maxSessionAge caps the cookie even when the token lives longer.
const maxSessionAge = 14 * 24 * time.Hour

// Session is what the site remembers about a signed-in user.
type Session struct {
	AccessToken string           `json:"access_token"`
	Role        string           `json:"role,omitempty"`
	Subject     string           `json:"sub,omitempty"`
	Profile     *backend.Profile `json:"profile,omitempty"`
	ExpiresAt   time.Time        `json:"expires_at"`
}

// Valid reports a non-empty token that has not expired. A zero ExpiresAt
// means the token carried no exp claim.
func (s Session) Valid(now time.Time) bool {
	if s.AccessToken == "" {
		return false
	}
	return s.ExpiresAt.IsZero() || now.Before(s.ExpiresAt)
}

// SkipContact decides whether the booking wizard may omit the contact step:
// only for a live session whose profile was fetched.
func SkipContact(s Session, ok bool, now time.Time) bool {
	return ok && s.Valid(now) && s.Profile != nil && s.Profile.Email != ""
}

type Store struct {
	sc *securecookie.SecureCookie
}

func NewStore(hashKey, blockKey []byte) *Store {
	sc := securecookie.New(hashKey, blockKey)
	sc.SetSerializer(securecookie.JSONEncoder{})
	sc.MaxAge(int(maxSessionAge.Seconds()))
	return &Store{sc: sc}
}

func (s *Store) SetSession(w http.ResponseWriter, r *http.Request, sess Session) error {
	encoded, err := s.sc.Encode(cookieName, sess)
	if err != nil {
		return err
	}
	age := maxSessionAge
	if !sess.ExpiresAt.IsZero() {
		if d := time.Until(sess.ExpiresAt); d < age {
			age = d
		}
	}
	if age < time.Second {
		age = time.Second
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
		MaxAge:   int(age.Seconds()),
	})
	return nil
}

func (s *Store) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

func (s *Store) GetSession(r *http.Request) (Session, bool) {
	c, err := r.Cookie(cookieName)
	if err != nil {
		return Session{}, false
	}
	var sess Session
	if err := s.sc.Decode(cookieName, c.Value, &sess); err != nil {
		return Session{}, false
	}
	if !sess.Valid(time.Now()) {
		return Session{}, false
	}
	return sess, true
}

type ctxKey string

const sessionKey ctxKey = "session"

// Load puts the current session, if any, into the request context.
func (s *Store) Load(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sess, ok := s.GetSession(r); ok {
			r = r.WithContext(context.WithValue(r.Context(), sessionKey, sess))
		}
		next.ServeHTTP(w, r)
	})
}

func FromContext(ctx context.Context) (Session, bool) {
	sess, ok := ctx.Value(sessionKey).(Session)
	return sess, ok
}

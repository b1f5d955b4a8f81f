package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/example/ridebook/internal/backend"
	"github.com/example/ridebook/internal/booking"
)

func token(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": exp.Unix(),
	}).SignedString([]byte("backend-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

type fakeAPI struct {
	users    map[string]string // email -> password
	tokenFor func(email string) string
	signups  []backend.SignupRequest
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /users/signup", func(w http.ResponseWriter, r *http.Request) {
		var in backend.SignupRequest
		_ = json.NewDecoder(r.Body).Decode(&in)
		f.signups = append(f.signups, in)
		if _, ok := f.users[in.Email]; ok {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"detail":"The user with this email already exists in the system"}`))
			return
		}
		f.users[in.Email] = in.Password
		_ = json.NewEncoder(w).Encode(backend.Profile{ID: 1, Email: in.Email, FullName: in.FullName})
	})
	mux.HandleFunc("POST /login/access-token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		email := r.PostForm.Get("username")
		if pw, ok := f.users[email]; !ok || pw != r.PostForm.Get("password") {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"detail":"Incorrect email or password"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(backend.Token{AccessToken: f.tokenFor(email), TokenType: "bearer"})
	})
	mux.HandleFunc("GET /users/me", func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("authorization"), "Bearer ") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(backend.Profile{ID: 7, Email: "ana@example.com", FullName: "Ana Puig", PhoneNumber: "600123456", Role: "user"})
	})
	return mux
}

func newService(t *testing.T, api *fakeAPI) *Service {
	t.Helper()
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)
	store := NewStore([]byte(strings.Repeat("h", 32)), []byte(strings.Repeat("b", 32)))
	return NewService(store, backend.New(srv.URL, time.Second), zap.NewNop())
}

func TestLoginSetsSession(t *testing.T) {
	api := &fakeAPI{
		users:    map[string]string{"ana@example.com": "S3cret!pw"},
		tokenFor: func(string) string { return token(t, "7", time.Now().Add(time.Hour)) },
	}
	svc := newService(t, api)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	sess, err := svc.Login(context.Background(), rec, req, "ana@example.com", "S3cret!pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if sess.Subject != "7" || sess.Role != "user" || sess.Profile == nil {
		t.Fatalf("unexpected session: %+v", sess)
	}

	next := httptest.NewRequest(http.MethodGet, "/booking", nil)
	for _, c := range rec.Result().Cookies() {
		next.AddCookie(c)
	}
	got, ok := svc.Store().GetSession(next)
	if !ok || got.AccessToken != sess.AccessToken {
		t.Fatalf("session did not round-trip: ok=%v", ok)
	}
	if !SkipContact(got, ok, time.Now()) {
		t.Fatalf("signed-in user with profile should skip contact")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	api := &fakeAPI{users: map[string]string{"ana@example.com": "S3cret!pw"}}
	svc := newService(t, api)
	rec := httptest.NewRecorder()
	_, err := svc.Login(context.Background(), rec, httptest.NewRequest(http.MethodPost, "/login", nil), "ana@example.com", "nope-nope")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatalf("cookie set on failed login")
	}
}

func TestLoginExpiredToken(t *testing.T) {
	api := &fakeAPI{
		users:    map[string]string{"ana@example.com": "S3cret!pw"},
		tokenFor: func(string) string { return token(t, "7", time.Now().Add(-time.Minute)) },
	}
	svc := newService(t, api)
	_, err := svc.Login(context.Background(), httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/login", nil), "ana@example.com", "S3cret!pw")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for expired token, got %v", err)
	}
}

func TestEnsureUserAndLogin(t *testing.T) {
	api := &fakeAPI{
		users:    map[string]string{"known@example.com": "whatever1"},
		tokenFor: func(string) string { return token(t, "9", time.Now().Add(time.Hour)) },
	}
	svc := newService(t, api)
	ctx := context.Background()

	res, err := svc.EnsureUserAndLogin(ctx, httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil),
		booking.Contact{Name: "Known", Email: "known@example.com", Phone: "+34 600 000 000"})
	if err != nil || res != Exists {
		t.Fatalf("existing user: res=%v err=%v", res, err)
	}

	rec := httptest.NewRecorder()
	res, err = svc.EnsureUserAndLogin(ctx, rec, httptest.NewRequest(http.MethodPost, "/", nil),
		booking.Contact{Name: "New Person", Email: "new@example.com", Phone: "+34 600 111 222"})
	if err != nil || res != Created {
		t.Fatalf("new user: res=%v err=%v", res, err)
	}
	if len(rec.Result().Cookies()) == 0 {
		t.Fatalf("new user not signed in")
	}
	last := api.signups[len(api.signups)-1]
	if len(last.Password) != 16 || last.PhoneNumber != "34600111222" {
		t.Fatalf("unexpected signup payload: %+v", last)
	}
}

func TestSkipContactNeedsProfile(t *testing.T) {
	now := time.Now()
	s := Session{AccessToken: "x", ExpiresAt: now.Add(time.Hour)}
	if SkipContact(s, true, now) {
		t.Fatalf("no profile should not skip")
	}
	s.Profile = &backend.Profile{Email: "a@b.c"}
	if SkipContact(s, false, now) {
		t.Fatalf("missing session should not skip")
	}
	s.ExpiresAt = now.Add(-time.Second)
	if SkipContact(s, true, now) {
		t.Fatalf("expired session should not skip")
	}
}

func TestSafeCallback(t *testing.T) {
	cases := map[string]string{
		"":                      "/",
		"/booking?step=payment": "/booking?step=payment",
		"https://evil.example":  "/",
		"//evil.example/x":      "/",
		"/\\evil.example":       "/",
		"relative":              "/",
	}
	for in, want := range cases {
		if got := SafeCallback(in); got != want {
			t.Fatalf("SafeCallback(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSignupFormMessages(t *testing.T) {
	f := SignupForm{Email: "a@b.co", FullName: "Al", Password: "password", Phone: "12ab"}
	err := f.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "Full name must be at least 3 characters long.") {
		t.Fatalf("unexpected message: %v", err)
	}
	if !strings.Contains(err.Error(), "Phone number should contain only digits.") {
		t.Fatalf("unexpected message: %v", err)
	}
}

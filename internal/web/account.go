package web

import (
	"errors"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/example/ridebook/internal/auth"
	"github.com/example/ridebook/internal/backend"
	"github.com/example/ridebook/internal/forms"
)

var notices = map[string]string{
	"exists":     "An account with this email already exists. Please log in to continue your booking.",
	"registered": "Your account has been created. Please log in.",
}

func (s *Server) loginData(r *http.Request, form auth.LoginForm) tmplData {
	return tmplData{
		Title:       "Log in",
		Form:        form,
		CallbackURL: auth.SafeCallback(r.FormValue("callbackUrl")),
		Flash:       notices[r.URL.Query().Get("notice")],
	}
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.FromContext(r.Context()); ok {
		http.Redirect(w, r, auth.SafeCallback(r.URL.Query().Get("callbackUrl")), http.StatusFound)
		return
	}
	s.render(w, r, "login.html", s.loginData(r, auth.LoginForm{}))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	f := auth.LoginForm{Email: r.PostFormValue("email"), Password: r.PostFormValue("password")}
	if err := f.Validate(); err != nil {
		data := s.loginData(r, auth.LoginForm{Email: f.Email})
		data.Errors = forms.Fields(err)
		s.renderStatus(w, r, http.StatusUnprocessableEntity, "login.html", data)
		return
	}
	_, err := s.Auth.Login(r.Context(), w, r, f.Email, f.Password)
	if errors.Is(err, backend.ErrUnavailable) {
		s.unavailable(w, r, "login", err)
		return
	}
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			logFor(r.Context(), s.Log).Error("login", zap.Error(err))
		}
		data := s.loginData(r, auth.LoginForm{Email: f.Email})
		data.Flash = "Invalid credentials."
		s.renderStatus(w, r, http.StatusUnauthorized, "login.html", data)
		return
	}
	http.Redirect(w, r, auth.SafeCallback(r.PostFormValue("callbackUrl")), http.StatusSeeOther)
}

func (s *Server) handleSignupForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "signup.html", tmplData{Title: "Sign up", Form: auth.SignupForm{}})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	f := auth.SignupForm{
		Email:    r.PostFormValue("email"),
		FullName: r.PostFormValue("full_name"),
		Password: r.PostFormValue("password"),
		Phone:    r.PostFormValue("phone_number"),
	}
	redisplay := func(status int, mutate func(*tmplData)) {
		shown := f
		shown.Password = ""
		data := tmplData{Title: "Sign up", Form: shown}
		mutate(&data)
		s.renderStatus(w, r, status, "signup.html", data)
	}
	if err := f.Validate(); err != nil {
		redisplay(http.StatusUnprocessableEntity, func(t *tmplData) { t.Errors = forms.Fields(err) })
		return
	}
	err := s.Auth.Signup(r.Context(), f)
	var ae *backend.APIError
	switch {
	case err == nil:
		http.Redirect(w, r, "/login?"+url.Values{"notice": {"registered"}}.Encode(), http.StatusSeeOther)
	case errors.Is(err, backend.ErrUserExists):
		redisplay(http.StatusConflict, func(t *tmplData) {
			t.Errors = map[string]string{"email": "An account with this email already exists."}
		})
	case errors.Is(err, backend.ErrUnavailable):
		s.unavailable(w, r, "signup", err)
	case errors.As(err, &ae) && ae.Detail != "":
		redisplay(http.StatusBadRequest, func(t *tmplData) { t.Flash = ae.Detail })
	default:
		logFor(r.Context(), s.Log).Error("signup", zap.Error(err))
		redisplay(http.StatusBadGateway, func(t *tmplData) { t.Flash = "Sign up failed. Please try again." })
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.Auth.Logout(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

package auth

import (
	"net/url"
	"strings"

	"github.com/example/ridebook/internal/forms"
)

type LoginForm struct {
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required,min=8"`
}

func (f *LoginForm) Validate() error {
	f.Email = strings.TrimSpace(f.Email)
	return forms.Validate(f, nil)
}

type SignupForm struct {
	Email    string `form:"email" validate:"required,email"`
	FullName string `form:"full_name" validate:"required,min=3,max=40"`
	Password string `form:"password" validate:"required,min=8,max=40,strongpw"`
	Phone    string `form:"phone_number" validate:"required,max=15,numeric"`
}

var signupMessages = forms.Messages{
	"full_name.min":         "Full name must be at least 3 characters long.",
	"full_name.max":         "Full name cannot exceed 40 characters.",
	"password.min":          "Password must be at least 8 characters long.",
	"password.max":          "Password cannot exceed 40 characters.",
	"phone_number.max":      "Phone number is too long.",
	"phone_number.numeric":  "Phone number should contain only digits.",
	"phone_number.required": "Phone number should contain only digits.",
}

func (f *SignupForm) Validate() error {
	f.Email = strings.TrimSpace(f.Email)
	f.FullName = strings.TrimSpace(f.FullName)
	f.Phone = strings.TrimSpace(f.Phone)
	return forms.Validate(f, signupMessages)
}

// SafeCallback keeps post-login redirects on this site.
func SafeCallback(raw string) string {
	if raw == "" {
		return "/"
	}
	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(raw, "//") || strings.Contains(raw, "\\") {
		return "/"
	}
	return u.RequestURI()
}

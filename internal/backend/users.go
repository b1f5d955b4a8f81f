package backend

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
)

type SignupRequest struct {
	Email       string `json:"email"`
	FullName    string `json:"full_name"`
	PhoneNumber string `json:"phone_number"`
	Password    string `json:"password"`
}

type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Profile is the signed-in user as returned by /users/me.
type Profile struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	FullName    string `json:"full_name"`
	PhoneNumber string `json:"phone_number"`
	Role        string `json:"role"`
}

func (c *Client) Signup(ctx context.Context, in SignupRequest) (Profile, error) {
	rq, err := c.jsonRequest("signup", http.MethodPost, "/users/signup", in)
	if err != nil {
		return Profile{}, err
	}
	var p Profile
	if err := c.do(ctx, rq, &p); err != nil {
		var ae *APIError
		if errors.As(err, &ae) && ae.Status == http.StatusBadRequest && strings.Contains(ae.Detail, "already exists") {
			return Profile{}, ErrUserExists
		}
		return Profile{}, err
	}
	return p, nil
}

// Login exchanges credentials for an access token (OAuth2 password form).
func (c *Client) Login(ctx context.Context, email, password string) (Token, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)
	rq := request{
		op:          "login",
		method:      http.MethodPost,
		path:        "/login/access-token",
		contentType: "application/x-www-form-urlencoded",
		body:        []byte(form.Encode()),
	}
	var t Token
	if err := c.do(ctx, rq, &t); err != nil {
		switch statusOf(err) {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusUnprocessableEntity:
			return Token{}, ErrInvalidCredentials
		}
		return Token{}, err
	}
	if t.AccessToken == "" {
		return Token{}, ErrInvalidCredentials
	}
	return t, nil
}

func (c *Client) Me(ctx context.Context, token string) (Profile, error) {
	var p Profile
	err := c.do(ctx, request{op: "users/me", method: http.MethodGet, path: "/users/me", token: token}, &p)
	return p, err
}

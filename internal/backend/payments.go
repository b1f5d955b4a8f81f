package backend

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

var ErrNoSessionURL = errors.New("checkout: session URL missing from response")

type CheckoutRequest struct {
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	Phone             string    `json:"phone"`
	Notes             string    `json:"notes,omitempty"`
	Price             float64   `json:"price"`
	SelectedVehicle   string    `json:"selected_vehicle"`
	Passengers        int       `json:"passengers"`
	PickupLocation    string    `json:"pickup_location"`
	Destination       string    `json:"destination"`
	ScheduledTime     time.Time `json:"scheduled_time"`
	EstimatedDistance float64   `json:"estimatedDistance"`
	EstimatedDuration float64   `json:"estimatedDuration"`
	PaymentMethod     string    `json:"payment_method"`
}

type CheckoutSession struct {
	URL       string `json:"url"`
	SessionID string `json:"session_id,omitempty"`
}

func (c *Client) CreateCheckoutSession(ctx context.Context, token string, in CheckoutRequest) (CheckoutSession, error) {
	rq, err := c.jsonRequest("checkout", http.MethodPost, "/payments/create-checkout-session", in)
	if err != nil {
		return CheckoutSession{}, err
	}
	rq.token = token
	var s CheckoutSession
	if err := c.do(ctx, rq, &s); err != nil {
		return CheckoutSession{}, err
	}
	if s.URL == "" {
		return CheckoutSession{}, ErrNoSessionURL
	}
	if s.SessionID == "" {
		s.SessionID = SessionIDFromURL(s.URL)
	}
	return s, nil
}

// SessionIDFromURL takes the cs_ id from a hosted checkout URL such as
// https://checkout.stripe.com/c/pay/cs_test_a1b2#fid. It returns "" when
// the URL carries none.
func SessionIDFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if id := path.Base(u.Path); strings.HasPrefix(id, "cs_") {
		return id
	}
	return ""
}

type Verification struct {
	Valid     bool   `json:"valid"`
	BookingID string `json:"booking_id,omitempty"`
}

// VerifyPayment asks whether the checkout session was paid.
func (c *Client) VerifyPayment(ctx context.Context, sessionID string) (Verification, error) {
	q := url.Values{}
	q.Set("session_id", sessionID)
	var v Verification
	err := c.do(ctx, request{op: "verify", method: http.MethodGet, path: "/payments/verify-session", query: q}, &v)
	return v, err
}

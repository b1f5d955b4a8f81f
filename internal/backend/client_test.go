package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/ridebook/internal/booking"
)

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", time.Second)
}

func TestQuote(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/directions", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("origin") != "Sagrada Familia" {
			t.Errorf("origin = %q", r.URL.Query().Get("origin"))
		}
		_, _ = w.Write([]byte(`{"distance_km":14.2,"duration_min":21.6}`))
	})
	var got EstimateRequest
	mux.HandleFunc("POST /bookings/estimate", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		_, _ = w.Write([]byte(`[{"category":"economy","estimated_fare":31},{"category":"van","estimated_fare":55.5}]`))
	})
	c := newTestClient(t, mux)

	when := time.Date(2025, 7, 14, 10, 30, 0, 0, time.FixedZone("CEST", 2*3600))
	q, err := c.Quote(context.Background(), QuoteRequest{
		Origin:        "Sagrada Familia",
		Destination:   "Barcelona Airport T1",
		Passengers:    3,
		ScheduledTime: when,
		IsAirport:     true,
	})
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if len(q.Estimates) != 2 || q.Estimates[1].Category != booking.Van || q.DistanceKm != 14.2 {
		t.Fatalf("unexpected quote: %+v", q)
	}
	if got.DurationMinutes != 22 || got.PassengerCount != 3 || !got.IsAirport || got.IsHoliday {
		t.Fatalf("unexpected estimate request: %+v", got)
	}
	if !got.ScheduledTime.Equal(when) || got.ScheduledTime.Location() != time.UTC {
		t.Fatalf("scheduled time not sent as UTC: %v", got.ScheduledTime)
	}
}

func TestQuoteServerError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/directions", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"detail":"maps quota exceeded"}`))
	})
	c := newTestClient(t, mux)
	_, err := c.Quote(context.Background(), QuoteRequest{Origin: "a", Destination: "b", Passengers: 1})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("5xx should be ErrUnavailable, got %v", err)
	}
	var ae *APIError
	if !errors.As(err, &ae) || ae.Detail != "maps quota exceeded" {
		t.Fatalf("detail not kept: %v", err)
	}
}

func TestUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := New(srv.URL, 200*time.Millisecond)
	if _, err := c.VerifyPayment(context.Background(), "cs_1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestSignupExisting(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /users/signup", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail":"The user with this email already exists in the system"}`))
	})
	c := newTestClient(t, mux)
	_, err := c.Signup(context.Background(), SignupRequest{Email: "ana@example.com"})
	if !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestSignupValidationDetail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /users/signup", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":[{"loc":["body","email"],"msg":"value is not a valid email address"}]}`))
	})
	c := newTestClient(t, mux)
	_, err := c.Signup(context.Background(), SignupRequest{Email: "nope"})
	var ae *APIError
	if !errors.As(err, &ae) || ae.Status != 422 || ae.Detail != "value is not a valid email address" {
		t.Fatalf("unexpected error: %v", err)
	}
	if errors.Is(err, ErrUnavailable) {
		t.Fatalf("4xx must not look like an outage")
	}
}

func TestLogin(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login/access-token", func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("content-type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("content-type = %q", ct)
		}
		_ = r.ParseForm()
		if r.PostForm.Get("username") != "ana@example.com" || r.PostForm.Get("password") != "S3cret!pw" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"detail":"Incorrect email or password"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"bearer"}`))
	})
	c := newTestClient(t, mux)

	tok, err := c.Login(context.Background(), "ana@example.com", "S3cret!pw")
	if err != nil || tok.AccessToken != "tok" {
		t.Fatalf("Login = %+v, %v", tok, err)
	}
	if _, err := c.Login(context.Background(), "ana@example.com", "wrong-pw"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestCreateCheckoutSession(t *testing.T) {
	mux := http.NewServeMux()
	var sent map[string]any
	mux.HandleFunc("POST /payments/create-checkout-session", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&sent)
		_, _ = w.Write([]byte(`{"url":"https://pay.example.com/c/cs_1","session_id":"cs_1"}`))
	})
	c := newTestClient(t, mux)

	cs, err := c.CreateCheckoutSession(context.Background(), "tok", CheckoutRequest{
		Name:            "Ana Puig",
		Price:           38.5,
		SelectedVehicle: "standard",
		PickupLocation:  "Sagrada Familia-Carrer de Mallorca 401",
		PaymentMethod:   "card",
	})
	if err != nil {
		t.Fatalf("CreateCheckoutSession: %v", err)
	}
	if cs.SessionID != "cs_1" {
		t.Fatalf("session id = %q", cs.SessionID)
	}
	for _, k := range []string{"selected_vehicle", "pickup_location", "estimatedDistance", "payment_method"} {
		if _, ok := sent[k]; !ok {
			t.Errorf("request missing %q", k)
		}
	}
}

func TestCreateCheckoutSessionWithoutURL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /payments/create-checkout-session", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	c := newTestClient(t, mux)
	if _, err := c.CreateCheckoutSession(context.Background(), "tok", CheckoutRequest{}); !errors.Is(err, ErrNoSessionURL) {
		t.Fatalf("expected ErrNoSessionURL, got %v", err)
	}
}

func TestCreateCheckoutSessionIDFromURL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /payments/create-checkout-session", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"url":"https://checkout.stripe.com/c/pay/cs_test_a1B2c3#fidkdWxOYHwnPyd1blpxYHZxWjA0"}`))
	})
	c := newTestClient(t, mux)
	cs, err := c.CreateCheckoutSession(context.Background(), "tok", CheckoutRequest{})
	if err != nil {
		t.Fatalf("CreateCheckoutSession: %v", err)
	}
	if cs.SessionID != "cs_test_a1B2c3" {
		t.Fatalf("session id = %q", cs.SessionID)
	}
}

func TestSessionIDFromURL(t *testing.T) {
	for raw, want := range map[string]string{
		"https://checkout.stripe.com/c/pay/cs_live_9Z#frag": "cs_live_9Z",
		"https://pay.example.com/c/cs_1":                    "cs_1",
		"https://pay.example.com/checkout?id=42":            "",
		"::not a url":                                       "",
	} {
		if got := SessionIDFromURL(raw); got != want {
			t.Errorf("SessionIDFromURL(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestVerifyPayment(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /payments/verify-session", func(w http.ResponseWriter, r *http.Request) {
		ok := r.URL.Query().Get("session_id") == "cs_1"
		_ = json.NewEncoder(w).Encode(Verification{Valid: ok, BookingID: "BK-1042"})
	})
	c := newTestClient(t, mux)

	v, err := c.VerifyPayment(context.Background(), "cs_1")
	if err != nil || !v.Valid || v.BookingID != "BK-1042" {
		t.Fatalf("VerifyPayment = %+v, %v", v, err)
	}
	v, err = c.VerifyPayment(context.Background(), "cs_other")
	if err != nil || v.Valid {
		t.Fatalf("other session should not verify: %+v, %v", v, err)
	}
}

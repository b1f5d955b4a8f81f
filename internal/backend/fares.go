package backend

import (
	"context"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/example/ridebook/internal/booking"
)

type Route struct {
	DistanceKm  float64 `json:"distance_km"`
	DurationMin float64 `json:"duration_min"`
}

func (c *Client) Directions(ctx context.Context, origin, destination string) (Route, error) {
	q := url.Values{}
	q.Set("origin", origin)
	q.Set("destination", destination)
	var r Route
	err := c.do(ctx, request{op: "directions", method: http.MethodGet, path: "/api/directions", query: q}, &r)
	return r, err
}

type EstimateRequest struct {
	DistanceKm      float64   `json:"distance_km"`
	DurationMinutes int       `json:"duration_minutes"`
	ScheduledTime   time.Time `json:"scheduled_time"`
	PassengerCount  int       `json:"passenger_count"`
	IsAirport       bool      `json:"is_airport"`
	IsHoliday       bool      `json:"is_holiday"`
}

func (c *Client) EstimateFare(ctx context.Context, in EstimateRequest) ([]booking.FareEstimate, error) {
	rq, err := c.jsonRequest("estimate", http.MethodPost, "/bookings/estimate", in)
	if err != nil {
		return nil, err
	}
	var out []booking.FareEstimate
	if err := c.do(ctx, rq, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type QuoteRequest struct {
	Origin        string
	Destination   string
	Passengers    int
	ScheduledTime time.Time
	IsAirport     bool
	IsHoliday     bool
}

type Quote struct {
	Estimates   []booking.FareEstimate
	DistanceKm  float64
	DurationMin float64
}

// Quote looks up the route and then prices it. Neither call is retried.
func (c *Client) Quote(ctx context.Context, in QuoteRequest) (Quote, error) {
	route, err := c.Directions(ctx, in.Origin, in.Destination)
	if err != nil {
		return Quote{}, err
	}
	ests, err := c.EstimateFare(ctx, EstimateRequest{
		DistanceKm:      route.DistanceKm,
		DurationMinutes: int(math.Round(route.DurationMin)),
		ScheduledTime:   in.ScheduledTime.UTC(),
		PassengerCount:  in.Passengers,
		IsAirport:       in.IsAirport,
		IsHoliday:       in.IsHoliday,
	})
	if err != nil {
		return Quote{}, err
	}
	return Quote{Estimates: ests, DistanceKm: route.DistanceKm, DurationMin: route.DurationMin}, nil
}

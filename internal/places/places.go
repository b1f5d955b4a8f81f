// Package places resolves free-text addresses through the Google Places
// web service for the landing page search box.
package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/ridebook/internal/booking"
)

const defaultBaseURL = "https://maps.googleapis.com/maps/api/place"

var (
	ErrDisabled = errors.New("places: no API key configured")
	ErrNotFound = errors.New("places: not found")
)

type Prediction struct {
	PlaceID     string `json:"place_id"`
	Description string `json:"description"`
}

type Client struct {
	hc     *http.Client
	base   string
	key    string
	region string
	cache  Cache
	ttl    time.Duration
	log    *zap.Logger
}

type Option func(*Client)

func WithBaseURL(u string) Option { return func(c *Client) { c.base = strings.TrimRight(u, "/") } }
func WithRegion(r string) Option  { return func(c *Client) { c.region = r } }
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// WithCache stores lookups for ttl.
func WithCache(cache Cache, ttl time.Duration) Option {
	return func(c *Client) { c.cache, c.ttl = cache, ttl }
}

func New(apiKey string, log *zap.Logger, opts ...Option) *Client {
	c := &Client{
		hc:     &http.Client{Timeout: 5 * time.Second},
		base:   defaultBaseURL,
		key:    apiKey,
		region: "es",
		log:    log,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Enabled() bool { return c != nil && c.key != "" }

func (c *Client) Autocomplete(ctx context.Context, input string) ([]Prediction, error) {
	input = strings.TrimSpace(input)
	if len([]rune(input)) < 3 {
		return []Prediction{}, nil
	}
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	var out []Prediction
	err := c.cached(ctx, "places:ac:"+strings.ToLower(input), &out, func() error {
		q := url.Values{}
		q.Set("input", input)
		q.Set("components", "country:"+c.region)
		var res struct {
			Status      string       `json:"status"`
			Predictions []Prediction `json:"predictions"`
		}
		if err := c.get(ctx, "/autocomplete/json", q, &res); err != nil {
			return err
		}
		if err := statusErr(res.Status); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		out = res.Predictions
		if out == nil {
			out = []Prediction{}
		}
		return nil
	})
	return out, err
}

func (c *Client) Details(ctx context.Context, placeID string) (booking.Place, error) {
	if placeID == "" {
		return booking.Place{}, ErrNotFound
	}
	if !c.Enabled() {
		return booking.Place{}, ErrDisabled
	}
	var out booking.Place
	err := c.cached(ctx, "places:details:"+placeID, &out, func() error {
		q := url.Values{}
		q.Set("place_id", placeID)
		q.Set("fields", "formatted_address,name,geometry,types")
		var res struct {
			Status string `json:"status"`
			Result struct {
				FormattedAddress string   `json:"formatted_address"`
				Name             string   `json:"name"`
				Types            []string `json:"types"`
				Geometry         struct {
					Location struct {
						Lat float64 `json:"lat"`
						Lng float64 `json:"lng"`
					} `json:"location"`
				} `json:"geometry"`
			} `json:"result"`
		}
		if err := c.get(ctx, "/details/json", q, &res); err != nil {
			return err
		}
		if err := statusErr(res.Status); err != nil {
			return err
		}
		out = booking.Place{
			FormattedAddress: res.Result.FormattedAddress,
			Name:             res.Result.Name,
			Lat:              res.Result.Geometry.Location.Lat,
			Lng:              res.Result.Geometry.Location.Lng,
			Types:            res.Result.Types,
		}
		return nil
	})
	return out, err
}

// Resolve turns a search box entry into a Place. With a place id the
// details lookup is used; otherwise, or when the lookup is unavailable, the
// typed text stands for both name and address.
func (c *Client) Resolve(ctx context.Context, text, placeID string) booking.Place {
	text = strings.TrimSpace(text)
	if placeID != "" && c.Enabled() {
		p, err := c.Details(ctx, placeID)
		if err == nil {
			return p
		}
		c.log.Warn("place details", zap.String("place_id", placeID), zap.Error(err))
	}
	name := text
	if i := strings.IndexByte(text, ','); i > 0 {
		name = strings.TrimSpace(text[:i])
	}
	return booking.Place{Name: name, FormattedAddress: text}
}

func (c *Client) cached(ctx context.Context, key string, out any, fetch func() error) error {
	if c.cache != nil {
		b, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			c.log.Debug("places cache get", zap.String("key", key), zap.Error(err))
		} else if ok && json.Unmarshal(b, out) == nil {
			return nil
		}
	}
	if err := fetch(); err != nil {
		return err
	}
	if c.cache != nil {
		if b, err := json.Marshal(out); err == nil {
			if err := c.cache.Set(ctx, key, b, c.ttl); err != nil {
				c.log.Debug("places cache set", zap.String("key", key), zap.Error(err))
			}
		}
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	q.Set("key", c.key)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	res, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("places %s: %w", path, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("places %s: http %d", path, res.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func statusErr(status string) error {
	switch status {
	case "OK":
		return nil
	case "ZERO_RESULTS", "NOT_FOUND":
		return ErrNotFound
	case "":
		return errors.New("places: empty status")
	}
	return fmt.Errorf("places: status %s", status)
}

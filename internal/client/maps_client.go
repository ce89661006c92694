package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"parking_market/internal/domain"

	"github.com/sirupsen/logrus"
)

var (
	ErrMapsProvider = errors.New("mapping provider error")
	ErrNoRoute      = errors.New("no route found")
)

// Geocoder resolves free-text place names to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, query string) ([]domain.GeocodeResult, error)
}

// Router computes a route overlay between two coordinates.
type Router interface {
	Directions(ctx context.Context, from, to domain.Coordinate) (domain.Route, error)
}

// MapsConfig holds mapping provider settings
type MapsConfig struct {
	BaseURL     string
	AccessToken string
	Country     string
	Limit       int
	Timeout     time.Duration
}

// MapsClient talks to a Mapbox-compatible geocoding and directions API.
type MapsClient struct {
	baseURL string
	token   string
	country string
	limit   int
	client  *http.Client
	logger  *logrus.Logger
}

func NewMapsClient(cfg MapsConfig, logger *logrus.Logger) *MapsClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = 5
	}
	return &MapsClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.AccessToken,
		country: cfg.Country,
		limit:   limit,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type geocodeResponse struct {
	Features []struct {
		PlaceName string    `json:"place_name"`
		Center    []float64 `json:"center"`
	} `json:"features"`
}

// Geocode returns up to the configured number of place matches.
func (c *MapsClient) Geocode(ctx context.Context, query string) ([]domain.GeocodeResult, error) {
	q := url.Values{}
	q.Set("access_token", c.token)
	q.Set("limit", fmt.Sprintf("%d", c.limit))
	if c.country != "" {
		q.Set("country", c.country)
	}
	endpoint := fmt.Sprintf("%s/geocoding/v5/mapbox.places/%s.json?%s", c.baseURL, url.PathEscape(query), q.Encode())

	var body geocodeResponse
	if err := c.getJSON(ctx, endpoint, &body); err != nil {
		return nil, err
	}

	results := make([]domain.GeocodeResult, 0, len(body.Features))
	for _, f := range body.Features {
		if len(f.Center) < 2 {
			continue
		}
		results = append(results, domain.GeocodeResult{
			Longitude: f.Center[0],
			Latitude:  f.Center[1],
			Address:   f.PlaceName,
		})
	}
	return results, nil
}

type directionsResponse struct {
	Routes []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"routes"`
}

// Directions returns the first driving route between two points.
func (c *MapsClient) Directions(ctx context.Context, from, to domain.Coordinate) (domain.Route, error) {
	q := url.Values{}
	q.Set("access_token", c.token)
	q.Set("geometries", "geojson")
	q.Set("overview", "full")
	endpoint := fmt.Sprintf("%s/directions/v5/mapbox/driving/%f,%f;%f,%f?%s",
		c.baseURL, from.Longitude, from.Latitude, to.Longitude, to.Latitude, q.Encode())

	var body directionsResponse
	if err := c.getJSON(ctx, endpoint, &body); err != nil {
		return domain.Route{}, err
	}
	if len(body.Routes) == 0 {
		return domain.Route{}, ErrNoRoute
	}

	r := body.Routes[0]
	return domain.Route{
		From:     from,
		To:       to,
		Geometry: r.Geometry.Coordinates,
		Distance: r.Distance,
		Duration: r.Duration,
	}, nil
}

func (c *MapsClient) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMapsProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.WithField("status", resp.StatusCode).Warn("Mapping provider returned non-OK status")
		return fmt.Errorf("%w: status %d", ErrMapsProvider, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse mapping response: %w", err)
	}
	return nil
}

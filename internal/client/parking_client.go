package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"parking_market/internal/domain"

	"github.com/sirupsen/logrus"
)

var ErrUpstream = errors.New("parking data service error")

// ParkingDataClient fetches listings from the parking data REST service.
type ParkingDataClient interface {
	GetAllSpaces(ctx context.Context, window *domain.TimeWindow, onlineOnly bool) ([]domain.ParkingSpace, error)
	GetNearbySpaces(ctx context.Context, lat, lng float64, window *domain.TimeWindow, onlineOnly bool) ([]domain.ParkingSpace, error)
}

// ParkingAPIConfig holds connection settings for the parking data service
type ParkingAPIConfig struct {
	BaseURL string
	Timeout time.Duration
}

type ParkingAPIClient struct {
	baseURL string
	client  *http.Client
	logger  *logrus.Logger
}

// NewParkingAPIClient creates a REST client for the parking data service
func NewParkingAPIClient(cfg ParkingAPIConfig, logger *logrus.Logger) *ParkingAPIClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &ParkingAPIClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// GetAllSpaces lists every space, optionally constrained to a booking window.
func (c *ParkingAPIClient) GetAllSpaces(ctx context.Context, window *domain.TimeWindow, onlineOnly bool) ([]domain.ParkingSpace, error) {
	q := url.Values{}
	addWindow(q, window, onlineOnly)
	return c.fetch(ctx, "/parking", q)
}

// GetNearbySpaces lists spaces around a coordinate.
func (c *ParkingAPIClient) GetNearbySpaces(ctx context.Context, lat, lng float64, window *domain.TimeWindow, onlineOnly bool) ([]domain.ParkingSpace, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lng", strconv.FormatFloat(lng, 'f', -1, 64))
	addWindow(q, window, onlineOnly)
	return c.fetch(ctx, "/parking/nearby", q)
}

func addWindow(q url.Values, window *domain.TimeWindow, onlineOnly bool) {
	if window != nil {
		q.Set("startTime", window.Start.UTC().Format(time.RFC3339))
		q.Set("endTime", window.End.UTC().Format(time.RFC3339))
	}
	if onlineOnly {
		q.Set("onlineOnly", "true")
	}
}

func (c *ParkingAPIClient) fetch(ctx context.Context, path string, q url.Values) ([]domain.ParkingSpace, error) {
	endpoint := c.baseURL + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.WithFields(logrus.Fields{
			"path":   path,
			"status": resp.StatusCode,
		}).Warn("Parking data service returned non-OK status")
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	spaces, err := decodeSpaces(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"path":  path,
		"count": len(spaces),
	}).Debug("Fetched parking spaces")
	return spaces, nil
}

// decodeSpaces accepts a bare array, {"data": [...]} or {"spaces": [...]}.
// Anything else decodes to an empty list.
func decodeSpaces(body []byte) ([]domain.ParkingSpace, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return []domain.ParkingSpace{}, nil
	}
	if body[0] == '[' {
		var spaces []domain.ParkingSpace
		if err := json.Unmarshal(body, &spaces); err != nil {
			return nil, err
		}
		return spaces, nil
	}

	var wrapped struct {
		Data   json.RawMessage `json:"data"`
		Spaces json.RawMessage `json:"spaces"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, err
	}
	for _, raw := range []json.RawMessage{wrapped.Data, wrapped.Spaces} {
		raw = bytes.TrimSpace(raw)
		if len(raw) > 0 && raw[0] == '[' {
			var spaces []domain.ParkingSpace
			if err := json.Unmarshal(raw, &spaces); err != nil {
				return nil, err
			}
			return spaces, nil
		}
	}
	return []domain.ParkingSpace{}, nil
}

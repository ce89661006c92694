package service

import (
	"context"
	"errors"
	"time"

	"parking_market/internal/domain"

	"github.com/sirupsen/logrus"
)

type PermissionState string

const (
	PermissionGranted     PermissionState = "granted"
	PermissionPrompt      PermissionState = "prompt"
	PermissionDenied      PermissionState = "denied"
	PermissionUnsupported PermissionState = "unsupported"
)

var (
	ErrPermissionDenied    = errors.New("location permission denied")
	ErrPositionUnavailable = errors.New("position unavailable")
)

type PositionOptions struct {
	EnableHighAccuracy bool
	Timeout            time.Duration
	MaximumAge         time.Duration
}

func DefaultPositionOptions() PositionOptions {
	return PositionOptions{EnableHighAccuracy: true, Timeout: 10 * time.Second, MaximumAge: 5 * time.Minute}
}

type Position struct {
	Coordinate domain.Coordinate
	Accuracy   float64
	Timestamp  time.Time
}

// PositionSource is the device location capability.
type PositionSource interface {
	Permission(ctx context.Context) (PermissionState, error)
	CurrentPosition(ctx context.Context, opts PositionOptions) (Position, error)
}

// ReportedPosition is a position the UI client sent along with its
// permission state.
type ReportedPosition struct {
	State    PermissionState
	Position *Position
}

func (r ReportedPosition) Permission(ctx context.Context) (PermissionState, error) {
	if r.State == "" {
		return PermissionUnsupported, nil
	}
	return r.State, nil
}

func (r ReportedPosition) CurrentPosition(ctx context.Context, opts PositionOptions) (Position, error) {
	if r.State == PermissionDenied {
		return Position{}, ErrPermissionDenied
	}
	if r.Position == nil {
		return Position{}, ErrPositionUnavailable
	}
	return *r.Position, nil
}

// GeoLocationProvider resolves the buyer's position, falling back to a
// fixed coordinate when the capability is missing or refused.
type GeoLocationProvider struct {
	fallback domain.Coordinate
	opts     PositionOptions
	now      func() time.Time
	logger   *logrus.Logger
}

func NewGeoLocationProvider(fallback domain.Coordinate, opts PositionOptions, logger *logrus.Logger) *GeoLocationProvider {
	return &GeoLocationProvider{fallback: fallback, opts: opts, now: time.Now, logger: logger}
}

func (g *GeoLocationProvider) Fallback() domain.Coordinate { return g.fallback }

// Locate returns the device coordinate and true, or the fallback and false.
func (g *GeoLocationProvider) Locate(ctx context.Context, src PositionSource) (domain.Coordinate, bool) {
	if src == nil {
		return g.fallback, false
	}

	state, err := src.Permission(ctx)
	if err != nil || state == PermissionDenied || state == PermissionUnsupported {
		g.logger.WithField("permission", state).Debug("Geolocation unavailable, using fallback")
		return g.fallback, false
	}

	if g.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
	}

	pos, err := src.CurrentPosition(ctx, g.opts)
	if err != nil {
		g.logger.WithError(err).Debug("Geolocation lookup failed, using fallback")
		return g.fallback, false
	}
	if g.opts.MaximumAge > 0 && !pos.Timestamp.IsZero() && g.now().Sub(pos.Timestamp) > g.opts.MaximumAge {
		g.logger.Debug("Reported position is older than the maximum age, using fallback")
		return g.fallback, false
	}
	return pos.Coordinate, true
}

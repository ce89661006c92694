package service

import (
	"context"
	"testing"
	"time"

	"parking_market/internal/domain"

	"github.com/stretchr/testify/assert"
)

func TestGeoLocationProvider_Locate(t *testing.T) {
	here := domain.Coordinate{Latitude: 16.05, Longitude: 108.2}
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		src        PositionSource
		expected   domain.Coordinate
		fromDevice bool
	}{
		{"No capability", nil, fallbackCoord, false},
		{"Unsupported", ReportedPosition{}, fallbackCoord, false},
		{"Denied", ReportedPosition{State: PermissionDenied, Position: &Position{Coordinate: here}}, fallbackCoord, false},
		{"Granted without fix", ReportedPosition{State: PermissionGranted}, fallbackCoord, false},
		{"Granted", ReportedPosition{State: PermissionGranted, Position: &Position{Coordinate: here, Timestamp: now}}, here, true},
		{"Prompt with fix", ReportedPosition{State: PermissionPrompt, Position: &Position{Coordinate: here}}, here, true},
		{"Stale fix", ReportedPosition{State: PermissionGranted, Position: &Position{Coordinate: here, Timestamp: now.Add(-time.Hour)}}, fallbackCoord, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGeoLocationProvider(fallbackCoord, DefaultPositionOptions(), quietLogger())
			g.now = func() time.Time { return now }

			coord, fromDevice := g.Locate(context.Background(), tt.src)
			assert.Equal(t, tt.expected, coord)
			assert.Equal(t, tt.fromDevice, fromDevice)
		})
	}
}

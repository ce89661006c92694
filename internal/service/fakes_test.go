package service

import (
	"context"
	"io"
	"sync"
	"testing"

	"parking_market/internal/domain"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v4"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func space(id string, spots int64) domain.ParkingSpace {
	return domain.ParkingSpace{
		ID:             domain.SpaceID(id),
		Title:          "Lot " + id,
		Status:         "submitted",
		IsOnline:       true,
		Location:       domain.NewGeoPoint(10.77, 106.70),
		AvailableSpots: null.IntFrom(spots),
		PricePerHour:   null.FloatFrom(20),
	}
}

func event(t *testing.T, payload string) domain.RealtimeEvent {
	t.Helper()
	ev, err := domain.DecodeRealtimeEvent([]byte(payload))
	require.NoError(t, err)
	return ev
}

type dataCall struct {
	nearby bool
	lat    float64
	lng    float64
	window *domain.TimeWindow
}

type fakeDataClient struct {
	mu     sync.Mutex
	spaces []domain.ParkingSpace
	err    error
	calls  []dataCall
}

func (f *fakeDataClient) GetAllSpaces(ctx context.Context, window *domain.TimeWindow, onlineOnly bool) ([]domain.ParkingSpace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, dataCall{window: window})
	return domain.CloneSpaces(f.spaces), f.err
}

func (f *fakeDataClient) GetNearbySpaces(ctx context.Context, lat, lng float64, window *domain.TimeWindow, onlineOnly bool) ([]domain.ParkingSpace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, dataCall{nearby: true, lat: lat, lng: lng, window: window})
	if f.err != nil {
		return nil, f.err
	}
	return domain.CloneSpaces(f.spaces), nil
}

func (f *fakeDataClient) set(spaces []domain.ParkingSpace, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spaces = spaces
	f.err = err
}

func (f *fakeDataClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeDataClient) lastCall() dataCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

type fakeGeocoder struct {
	mu      sync.Mutex
	queries []string
	results []domain.GeocodeResult
	err     error
}

func (f *fakeGeocoder) Geocode(ctx context.Context, query string) ([]domain.GeocodeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	return f.results, f.err
}

func (f *fakeGeocoder) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

type fakeRouter struct {
	route domain.Route
	err   error
}

func (f *fakeRouter) Directions(ctx context.Context, from, to domain.Coordinate) (domain.Route, error) {
	r := f.route
	r.From, r.To = from, to
	return r, f.err
}

type fakePublisher struct {
	mu       sync.Mutex
	payloads map[string][]interface{}
}

func (f *fakePublisher) PublishToSession(sessionID string, payload interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.payloads == nil {
		f.payloads = map[string][]interface{}{}
	}
	f.payloads[sessionID] = append(f.payloads[sessionID], payload)
}

func (f *fakePublisher) count(sessionID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads[sessionID])
}

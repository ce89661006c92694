package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"parking_market/internal/api/middleware"
	"parking_market/internal/clock"
	"parking_market/internal/domain"
	"parking_market/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gopkg.in/guregu/null.v4"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func approvedSpace(id string) domain.ParkingSpace {
	return domain.ParkingSpace{
		ID:             domain.SpaceID(id),
		Title:          "Lot " + id,
		Status:         "submitted",
		IsOnline:       true,
		Location:       domain.NewGeoPoint(10.77, 106.70),
		AvailableSpots: null.IntFrom(3),
		PricePerHour:   null.FloatFrom(20),
	}
}

type stubData struct {
	mu     sync.Mutex
	spaces []domain.ParkingSpace
	err    error
}

func (s *stubData) GetAllSpaces(ctx context.Context, window *domain.TimeWindow, onlineOnly bool) ([]domain.ParkingSpace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.CloneSpaces(s.spaces), s.err
}

func (s *stubData) GetNearbySpaces(ctx context.Context, lat, lng float64, window *domain.TimeWindow, onlineOnly bool) ([]domain.ParkingSpace, error) {
	return s.GetAllSpaces(ctx, window, onlineOnly)
}

type stubMaps struct{}

func (stubMaps) Geocode(ctx context.Context, query string) ([]domain.GeocodeResult, error) {
	return []domain.GeocodeResult{{Latitude: 10.8, Longitude: 106.6, Address: query}}, nil
}

func (stubMaps) Directions(ctx context.Context, from, to domain.Coordinate) (domain.Route, error) {
	return domain.Route{From: from, To: to, Distance: 1200, Duration: 300}, nil
}

type nopPublisher struct{}

func (nopPublisher) PublishToSession(sessionID string, payload interface{}) {}

type fixture struct {
	t        *testing.T
	router   *gin.Engine
	sessions *service.SessionService
	clock    *clock.Fake
	data     *stubData
}

var testUser = domain.User{ID: "u-1", Username: "buyer", Role: "user"}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := quietLogger()
	fake := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	data := &stubData{spaces: []domain.ParkingSpace{approvedSpace("a"), approvedSpace("b")}}

	sessions := service.NewSessionService(service.BuyerDeps{
		Data:      data,
		Geocoder:  stubMaps{},
		Router:    stubMaps{},
		Location:  service.NewGeoLocationProvider(domain.Coordinate{Latitude: 10.76, Longitude: 106.66}, service.DefaultPositionOptions(), logger),
		Clock:     fake,
		Publisher: nopPublisher{},
		Logger:    logger,
	}, nil)

	sessionH := NewSessionHandler(sessions, logger)
	searchH := NewSearchHandler(sessions)
	windowH := NewTimeWindowHandler(sessions)
	sheetH := NewSheetHandler(sessions)

	withUser := func(c *gin.Context) {
		c.Set(middleware.UserKey, testUser)
		c.Next()
	}

	r := gin.New()
	s := r.Group("/sessions")
	s.POST("", sessionH.CreateSession)
	s.GET("/:id", sessionH.GetSession)
	s.DELETE("/:id", sessionH.CloseSession)
	s.PUT("/:id/filters", sessionH.SetFilters)
	s.POST("/:id/selection/:space_id", sessionH.Select)
	s.DELETE("/:id/selection", sessionH.Deselect)
	s.GET("/:id/route/:space_id", sessionH.Route)
	s.GET("/:id/notifications", sessionH.Notifications)
	s.POST("/:id/bookings/:space_id", sessionH.StartBooking)
	s.POST("/:id/authed/bookings/:space_id", withUser, sessionH.StartBooking)
	s.POST("/:id/details/:space_id", withUser, sessionH.OpenDetail)
	s.POST("/:id/search", searchH.SetQuery)
	s.GET("/:id/search", searchH.GetState)
	s.POST("/:id/search/select", searchH.SelectResult)
	s.PUT("/:id/time-window/:bound", windowH.SetBound)
	s.POST("/:id/time-window/apply", windowH.Apply)
	s.DELETE("/:id/time-window", windowH.Clear)
	s.POST("/:id/sheets/:sheet/:action", sheetH.Action)
	r.GET("/details/:id", sessionH.GetDetail)

	return &fixture{t: t, router: r, sessions: sessions, clock: fake, data: data}
}

func (f *fixture) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	f.t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(f.t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

type sessionBody struct {
	SessionID string            `json:"session_id"`
	Location  domain.Coordinate `json:"location"`
	Spaces    []json.RawMessage `json:"spaces"`
	Selected  json.RawMessage   `json:"selected"`
}

func (f *fixture) createSession() sessionBody {
	f.t.Helper()
	w := f.do(http.MethodPost, "/sessions", gin.H{"permission": "granted", "latitude": 10.7, "longitude": 106.7})
	require.Equal(f.t, http.StatusCreated, w.Code, w.Body.String())
	var body sessionBody
	require.NoError(f.t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

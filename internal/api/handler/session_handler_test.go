package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"parking_market/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionHandler_CreateSession(t *testing.T) {
	f := newFixture(t)
	body := f.createSession()

	assert.NotEmpty(t, body.SessionID)
	assert.Len(t, body.Spaces, 2)
	assert.Equal(t, domain.Coordinate{Latitude: 10.7, Longitude: 106.7}, body.Location)
}

func TestSessionHandler_CreateSessionWithoutBodyUsesFallback(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodPost, "/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var body sessionBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, domain.Coordinate{Latitude: 10.76, Longitude: 106.66}, body.Location)
}

func TestSessionHandler_FailedFirstLoadStillCreatesSession(t *testing.T) {
	f := newFixture(t)
	f.data.err = errors.New("boom")

	w := f.do(http.MethodPost, "/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var body sessionBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Empty(t, body.Spaces)
	assert.Equal(t, 1, f.sessions.Count())
}

func TestSessionHandler_UnknownSession(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		method string
		path   string
	}{
		{"Get", http.MethodGet, "/sessions/missing"},
		{"Delete", http.MethodDelete, "/sessions/missing"},
		{"Select", http.MethodPost, "/sessions/missing/selection/a"},
		{"Notifications", http.MethodGet, "/sessions/missing/notifications"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(tt.method, tt.path, nil)
			assert.Equal(t, http.StatusNotFound, w.Code)
		})
	}
}

func TestSessionHandler_SelectAndDeselect(t *testing.T) {
	f := newFixture(t)
	id := f.createSession().SessionID

	w := f.do(http.MethodPost, "/sessions/"+id+"/selection/b", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodPost, "/sessions/"+id+"/selection/zzz", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(http.MethodDelete, "/sessions/"+id+"/selection", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(http.MethodGet, "/sessions/"+id, nil)
	var body sessionBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "null", string(body.Selected))
}

func TestSessionHandler_Route(t *testing.T) {
	f := newFixture(t)
	id := f.createSession().SessionID

	w := f.do(http.MethodGet, "/sessions/"+id+"/route/a", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var route domain.Route
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &route))
	assert.Equal(t, 1200.0, route.Distance)
}

func TestSessionHandler_SetFiltersRejectsInvertedRange(t *testing.T) {
	f := newFixture(t)
	id := f.createSession().SessionID

	w := f.do(http.MethodPut, "/sessions/"+id+"/filters", gin.H{"min_price": 50, "max_price": 10, "active": true})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodPut, "/sessions/"+id+"/filters", gin.H{"min_price": 0, "max_price": 30, "active": true})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSessionHandler_BookingRequiresUser(t *testing.T) {
	f := newFixture(t)
	id := f.createSession().SessionID

	w := f.do(http.MethodPost, "/sessions/"+id+"/bookings/a", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(http.MethodPost, "/sessions/"+id+"/authed/bookings/a", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var handoff domain.BookingHandoff
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &handoff))
	assert.Equal(t, domain.SpaceID("a"), handoff.SpaceID)
	assert.Equal(t, testUser.ID, handoff.UserID)
}

func TestSessionHandler_OpenDetail(t *testing.T) {
	f := newFixture(t)
	id := f.createSession().SessionID

	w := f.do(http.MethodPost, "/sessions/"+id+"/details/a", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var detail struct {
		ID        string `json:"id"`
		Available bool   `json:"available"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	require.NotEmpty(t, detail.ID)

	w = f.do(http.MethodGet, "/details/"+detail.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodGet, "/details/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionHandler_NotificationsAreDrained(t *testing.T) {
	f := newFixture(t)
	id := f.createSession().SessionID

	view, err := f.sessions.Get(id)
	require.NoError(t, err)
	view.Notifier().Info("hello")

	var first struct {
		Notifications []domain.Notification `json:"notifications"`
	}
	w := f.do(http.MethodGet, "/sessions/"+id+"/notifications", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	require.Len(t, first.Notifications, 1)
	assert.Equal(t, "hello", first.Notifications[0].Message)

	var second struct {
		Notifications []domain.Notification `json:"notifications"`
	}
	w = f.do(http.MethodGet, "/sessions/"+id+"/notifications", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	assert.Empty(t, second.Notifications)
}

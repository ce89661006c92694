package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"parking_market/internal/clock"
	"parking_market/internal/domain"
	"parking_market/internal/realtime"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSessionService(t *testing.T, fake *clock.Fake, spaces ...domain.ParkingSpace) (*SessionService, *realtime.Hub) {
	t.Helper()
	hub := realtime.NewHub(nil, quietLogger())
	deps := BuyerDeps{
		Data:     &fakeDataClient{spaces: spaces},
		Geocoder: &fakeGeocoder{},
		Router:   &fakeRouter{},
		Location: NewGeoLocationProvider(fallbackCoord, PositionOptions{}, quietLogger()),
		Clock:    fake,
		Logger:   quietLogger(),
	}
	return NewSessionService(deps, hub), hub
}

func TestSessionService_Lifecycle(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	svc, hub := newTestSessionService(t, fake, space("a", 1))

	view, err := svc.Create(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, view.Snapshot().Spaces, 1)
	assert.Equal(t, 1, hub.SubscriberCount())

	got, err := svc.Get(view.ID())
	require.NoError(t, err)
	assert.Same(t, view, got)

	require.NoError(t, svc.Close(view.ID()))
	assert.Equal(t, 0, hub.SubscriberCount())
	_, err = svc.Get(view.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, svc.Close(view.ID()), ErrSessionNotFound)
}

func TestSessionService_SweepIdle(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	svc, _ := newTestSessionService(t, fake)

	stale, _ := svc.Create(context.Background(), nil)
	fake.Advance(20 * time.Minute)
	fresh, _ := svc.Create(context.Background(), nil)

	closed := svc.SweepIdle(fake.Now().Add(15*time.Minute), 30*time.Minute)
	assert.Equal(t, 1, closed)

	_, err := svc.Get(stale.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = svc.Get(fresh.ID())
	assert.NoError(t, err)
}

func TestSessionService_Details(t *testing.T) {
	fake := clock.NewFake(time.Now())
	svc, hub := newTestSessionService(t, fake)

	detail := svc.OpenDetail("", domain.DetailHandoff{Space: space("a", 1), User: domain.User{ID: "u"}})
	assert.Equal(t, 1, hub.SubscriberCount())

	got, err := svc.GetDetail(detail.ID())
	require.NoError(t, err)
	assert.Same(t, detail, got)

	require.NoError(t, svc.CloseDetail(detail.ID()))
	_, err = svc.GetDetail(detail.ID())
	assert.ErrorIs(t, err, ErrDetailNotFound)
}

func TestSessionService_SweepIdleClosesDetails(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	svc, hub := newTestSessionService(t, fake)

	detail := svc.OpenDetail("", domain.DetailHandoff{Space: space("a", 1), User: domain.User{ID: "u"}})
	require.Equal(t, 1, hub.SubscriberCount())

	closed := svc.SweepIdle(fake.Now().Add(48*time.Hour), 30*time.Minute)
	assert.Equal(t, 1, closed)
	assert.Equal(t, 0, hub.SubscriberCount())
	_, err := svc.GetDetail(detail.ID())
	assert.ErrorIs(t, err, ErrDetailNotFound)
}

func TestSessionService_GetDetailKeepsDetailAlive(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	svc, _ := newTestSessionService(t, fake)

	detail := svc.OpenDetail("", domain.DetailHandoff{Space: space("a", 1), User: domain.User{ID: "u"}})
	fake.Advance(25 * time.Minute)
	_, err := svc.GetDetail(detail.ID())
	require.NoError(t, err)

	assert.Equal(t, 0, svc.SweepIdle(fake.Now().Add(10*time.Minute), 30*time.Minute))
}

func TestSessionService_CloseClosesDetails(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	svc, hub := newTestSessionService(t, fake, space("a", 1))

	view, err := svc.Create(context.Background(), nil)
	require.NoError(t, err)
	detail := svc.OpenDetail(view.ID(), domain.DetailHandoff{Space: space("a", 1), User: domain.User{ID: "u"}})
	other := svc.OpenDetail("another", domain.DetailHandoff{Space: space("a", 1), User: domain.User{ID: "u"}})
	require.Equal(t, 3, hub.SubscriberCount())

	require.NoError(t, svc.Close(view.ID()))
	_, err = svc.GetDetail(detail.ID())
	assert.ErrorIs(t, err, ErrDetailNotFound)
	_, err = svc.GetDetail(other.ID())
	assert.NoError(t, err, "details of other sessions stay open")
	assert.Equal(t, 1, hub.SubscriberCount())
}

type fakeWatchers struct {
	mu           sync.Mutex
	watched      map[string]bool
	disconnected []string
}

func (f *fakeWatchers) HasWatchers(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.watched[id]
}

func (f *fakeWatchers) Disconnect(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = append(f.disconnected, id)
}

func TestSessionService_SweepIdleSparesWatchedViews(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	svc, _ := newTestSessionService(t, fake)

	watched, _ := svc.Create(context.Background(), nil)
	idle, _ := svc.Create(context.Background(), nil)
	watchedDetail := svc.OpenDetail("", domain.DetailHandoff{Space: space("a", 1), User: domain.User{ID: "u"}})
	watchers := &fakeWatchers{watched: map[string]bool{watched.ID(): true, watchedDetail.ID(): true}}
	svc.SetWatchers(watchers)

	closed := svc.SweepIdle(fake.Now().Add(48*time.Hour), 30*time.Minute)
	assert.Equal(t, 1, closed)

	_, err := svc.Get(watched.ID())
	assert.NoError(t, err)
	_, err = svc.GetDetail(watchedDetail.ID())
	assert.NoError(t, err)
	_, err = svc.Get(idle.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, []string{idle.ID()}, watchers.disconnected)
}

func TestSessionService_CloseDisconnectsWatchers(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	svc, _ := newTestSessionService(t, fake)
	watchers := &fakeWatchers{}
	svc.SetWatchers(watchers)

	view, _ := svc.Create(context.Background(), nil)
	detail := svc.OpenDetail(view.ID(), domain.DetailHandoff{Space: space("a", 1), User: domain.User{ID: "u"}})

	require.NoError(t, svc.Close(view.ID()))
	assert.Equal(t, []string{view.ID(), detail.ID()}, watchers.disconnected)
}

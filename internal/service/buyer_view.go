package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"parking_market/internal/client"
	"parking_market/internal/clock"
	"parking_market/internal/domain"
	"parking_market/internal/sheet"

	"github.com/sirupsen/logrus"
)

var ErrUnknownSheet = errors.New("unknown sheet")

// ErrFetchSuperseded is returned by a fetch whose result was discarded
// because a newer fetch started after it.
var ErrFetchSuperseded = errors.New("fetch superseded by a newer request")

// UpdatePublisher pushes render state to the UI clients of a session.
// Declared here so the service does not depend on the transport.
type UpdatePublisher interface {
	PublishToSession(sessionID string, payload interface{})
}

// BuyerDeps are the collaborators of a buyer view.
type BuyerDeps struct {
	Data      client.ParkingDataClient
	Geocoder  client.Geocoder
	Router    client.Router
	Location  *GeoLocationProvider
	Clock     clock.Clock
	Publisher UpdatePublisher
	Logger    *logrus.Logger
}

// BuyerSnapshot is everything the map screen renders.
type BuyerSnapshot struct {
	SessionID          string                    `json:"session_id"`
	Viewport           domain.Viewport           `json:"viewport"`
	Location           domain.Coordinate         `json:"location"`
	LocationFromDevice bool                      `json:"location_from_device"`
	Spaces             []domain.ParkingSpace     `json:"spaces"`
	Filtered           []domain.ParkingSpace     `json:"filtered"`
	Selected           *domain.ParkingSpace      `json:"selected"`
	Route              *domain.Route             `json:"route"`
	Window             *domain.TimeWindow        `json:"window"`
	TimeFilter         TimeFilterState           `json:"time_filter"`
	Filters            domain.FilterState        `json:"filters"`
	Search             SearchState               `json:"search"`
	Sheets             map[string]sheet.Snapshot `json:"sheets"`
	Map                domain.MapScene           `json:"map"`
	Loading            bool                      `json:"loading"`
	Loaded             bool                      `json:"loaded"`
	UpdatedAt          time.Time                 `json:"updated_at"`
}

// BuyerView is one buyer's map screen: the space collection, its filtered
// mirror, the selected space and the controllers that drive them.
type BuyerView struct {
	id   string
	deps BuyerDeps

	mu         sync.Mutex
	spaces     []domain.ParkingSpace
	filtered   []domain.ParkingSpace
	selected   *domain.ParkingSpace
	route      *domain.Route
	window     *domain.TimeWindow
	filters    domain.FilterState
	location   domain.Coordinate
	fromDevice bool
	center     *domain.Coordinate
	viewport   domain.Viewport
	loading    bool
	loaded     bool
	fetchSeq   uint64
	lastActive time.Time

	notifier    *Notifier
	search      *SearchController
	timeFilter  *TimeFilterController
	listSheet   *sheet.Controller
	filterSheet *sheet.Controller
}

func NewBuyerView(id string, deps BuyerDeps) *BuyerView {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	v := &BuyerView{
		id:       id,
		deps:     deps,
		spaces:   []domain.ParkingSpace{},
		filtered: []domain.ParkingSpace{},
		filters:  domain.DefaultFilterState(),
		notifier: NewNotifier(deps.Clock),
	}
	if deps.Location != nil {
		v.location = deps.Location.Fallback()
	}
	v.viewport = domain.ViewportAt(v.location, domain.DefaultZoom)
	v.lastActive = deps.Clock.Now()

	v.search = NewSearchController(deps.Geocoder, deps.Clock, v.notifier, deps.Logger, v.searchSelected, v.publish)
	v.timeFilter = NewTimeFilterController(deps.Clock, v.notifier, v.reload)
	v.listSheet = sheet.New(sheet.ListConfig(), deps.Clock)
	v.filterSheet = sheet.New(sheet.FilterConfig(), deps.Clock)
	v.listSheet.Open()
	return v
}

func (v *BuyerView) ID() string { return v.id }

func (v *BuyerView) Notifier() *Notifier { return v.notifier }

func (v *BuyerView) Search() *SearchController { return v.search }

func (v *BuyerView) TimeFilter() *TimeFilterController { return v.timeFilter }

// Sheet returns the named bottom sheet ("list" or "filters").
func (v *BuyerView) Sheet(name string) (*sheet.Controller, error) {
	switch name {
	case sheet.ListConfig().Name:
		return v.listSheet, nil
	case sheet.FilterConfig().Name:
		return v.filterSheet, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSheet, name)
}

// Load resolves the buyer's position and fetches the spaces around it.
// A failed first load leaves an empty collection.
func (v *BuyerView) Load(ctx context.Context, src PositionSource) error {
	v.mu.Lock()
	coord, fromDevice := v.location, false
	v.mu.Unlock()
	if v.deps.Location != nil {
		coord, fromDevice = v.deps.Location.Locate(ctx, src)
	}

	v.mu.Lock()
	v.location = coord
	v.fromDevice = fromDevice
	v.center = &coord
	v.viewport = domain.ViewportAt(coord, domain.DefaultZoom)
	v.mu.Unlock()

	_, err := v.reload(ctx, nil)
	if errors.Is(err, ErrFetchSuperseded) {
		return nil
	}
	if err != nil {
		v.notifier.Error("Could not load parking spaces. Please try again.", "fetch_failed")
	}
	return err
}

// Refresh refetches with the current center and window.
func (v *BuyerView) Refresh(ctx context.Context) (int, error) {
	v.mu.Lock()
	window := v.window
	v.mu.Unlock()

	n, err := v.reload(ctx, window)
	if errors.Is(err, ErrFetchSuperseded) {
		return 0, nil
	}
	if err != nil {
		v.notifier.Error("Could not refresh parking spaces.", "fetch_failed")
	}
	return n, err
}

// reload fetches around the current center and replaces the collection.
func (v *BuyerView) reload(ctx context.Context, window *domain.TimeWindow) (int, error) {
	v.mu.Lock()
	var center *domain.Coordinate
	if v.center != nil {
		c := *v.center
		center = &c
	}
	v.mu.Unlock()
	return v.fetchInto(ctx, center, window)
}

func (v *BuyerView) fetchInto(ctx context.Context, center *domain.Coordinate, window *domain.TimeWindow) (int, error) {
	v.mu.Lock()
	v.fetchSeq++
	seq := v.fetchSeq
	v.loading = true
	v.mu.Unlock()
	v.publish()

	spaces, err := v.fetch(ctx, center, window)

	v.mu.Lock()
	if seq != v.fetchSeq {
		v.mu.Unlock()
		v.deps.Logger.WithField("session_id", v.id).Debug("Discarding superseded fetch result")
		return 0, ErrFetchSuperseded
	}
	v.loading = false
	if err != nil {
		if !v.loaded {
			v.spaces = []domain.ParkingSpace{}
			v.filtered = []domain.ParkingSpace{}
		}
		v.loaded = true
		v.mu.Unlock()
		v.deps.Logger.WithError(err).WithField("session_id", v.id).Warn("Failed to fetch parking spaces")
		v.publish()
		return 0, err
	}
	v.spaces = spaces
	// the filtered projection mirrors the full collection
	v.filtered = domain.CloneSpaces(spaces)
	v.window = window
	v.loaded = true
	v.mu.Unlock()

	v.deps.Logger.WithFields(logrus.Fields{
		"session_id": v.id,
		"count":      len(spaces),
		"windowed":   window != nil,
	}).Info("Parking spaces loaded")
	v.publish()
	return len(spaces), nil
}

// fetch runs the data pipeline: fetch, annotate prices, keep approved spaces,
// and under a window keep only those with free spots.
func (v *BuyerView) fetch(ctx context.Context, center *domain.Coordinate, window *domain.TimeWindow) ([]domain.ParkingSpace, error) {
	var (
		raw []domain.ParkingSpace
		err error
	)
	if center != nil {
		raw, err = v.deps.Data.GetNearbySpaces(ctx, center.Latitude, center.Longitude, window, true)
	} else {
		raw, err = v.deps.Data.GetAllSpaces(ctx, window, true)
	}
	if err != nil {
		return nil, err
	}

	spaces := domain.FilterApproved(domain.AnnotateAll(raw))
	if window != nil {
		spaces = domain.FilterAvailable(spaces)
	}
	return spaces, nil
}

func (v *BuyerView) searchSelected(ctx context.Context, r domain.GeocodeResult) error {
	coord := r.Coordinate()
	v.mu.Lock()
	v.center = &coord
	v.viewport = domain.ViewportAt(coord, domain.SearchZoom)
	window := v.window
	v.mu.Unlock()

	n, err := v.fetchInto(ctx, &coord, window)
	if errors.Is(err, ErrFetchSuperseded) {
		return nil
	}
	if err != nil {
		v.notifier.Error("Could not load parking spaces for this location.", "fetch_failed")
		return err
	}
	v.notifier.Success(fmt.Sprintf("Found %d parking spaces near %s", n, r.Address))
	return nil
}

// ApplyRealtime patches the full list, the filtered list and the selected
// space with one event.
func (v *BuyerView) ApplyRealtime(name string, ev domain.RealtimeEvent) bool {
	v.mu.Lock()
	windowActive := v.window != nil
	full := Reconcile(ListProjection{Spaces: &v.spaces}, ev, windowActive)
	filtered := Reconcile(ListProjection{Spaces: &v.filtered}, ev, windowActive)
	selected := Reconcile(SlotProjection{Slot: &v.selected}, ev, windowActive)
	if selected == Removed && v.route != nil && v.route.SpaceID == ev.ID {
		v.route = nil
	}
	changed := full != Ignored || filtered != Ignored || selected != Ignored
	v.mu.Unlock()

	if changed {
		v.deps.Logger.WithFields(logrus.Fields{
			"session_id": v.id,
			"event":      name,
			"space_id":   ev.ID,
			"full":       full.String(),
			"filtered":   filtered.String(),
			"selected":   selected.String(),
		}).Debug("Realtime event applied")
		v.publish()
	}
	return changed
}

// Select marks a space as selected and recenters the map on it.
func (v *BuyerView) Select(id domain.SpaceID) (domain.ParkingSpace, error) {
	v.mu.Lock()
	space := ListProjection{Spaces: &v.spaces}.Lookup(id)
	if space == nil {
		v.mu.Unlock()
		return domain.ParkingSpace{}, domain.ErrSpaceNotFound
	}
	chosen := *space
	v.selected = &chosen
	v.route = nil
	if chosen.Location.Valid() {
		v.viewport = domain.ViewportAt(chosen.Location.Coordinate(), v.viewport.Zoom)
	}
	v.mu.Unlock()
	v.publish()
	return chosen, nil
}

func (v *BuyerView) Deselect() {
	v.mu.Lock()
	v.selected = nil
	v.route = nil
	v.mu.Unlock()
	v.publish()
}

// SetFilters stores the amenity/price filter. It does not narrow the
// filtered projection, which keeps mirroring the full list.
func (v *BuyerView) SetFilters(f domain.FilterState) {
	if f.Amenities == nil {
		f.Amenities = map[string]bool{}
	}
	v.mu.Lock()
	v.filters = f
	v.mu.Unlock()
	v.publish()
}

func (v *BuyerView) SetViewport(vp domain.Viewport) {
	v.mu.Lock()
	v.viewport = vp
	v.mu.Unlock()
}

// Route fetches driving directions from the buyer's location to a space.
func (v *BuyerView) Route(ctx context.Context, id domain.SpaceID) (domain.Route, error) {
	v.mu.Lock()
	space := v.findLocked(id)
	from := v.location
	v.mu.Unlock()
	if space == nil {
		return domain.Route{}, domain.ErrSpaceNotFound
	}
	if !space.Location.Valid() {
		return domain.Route{}, fmt.Errorf("%w: space %s has no location", client.ErrNoRoute, id)
	}

	route, err := v.deps.Router.Directions(ctx, from, space.Location.Coordinate())
	if err != nil {
		v.notifier.Error("Could not load directions to this parking space.", "route_failed")
		return domain.Route{}, err
	}
	route.SpaceID = id

	v.mu.Lock()
	v.route = &route
	v.mu.Unlock()
	v.publish()
	return route, nil
}

// BookingHandoff builds the state handed to the booking flow.
func (v *BuyerView) BookingHandoff(id domain.SpaceID, user domain.User) (domain.BookingHandoff, error) {
	v.mu.Lock()
	space := v.findLocked(id)
	v.mu.Unlock()
	if space == nil {
		return domain.BookingHandoff{}, domain.ErrSpaceNotFound
	}
	return domain.BookingHandoff{SpaceID: space.ID, UserID: user.ID}, nil
}

// DetailHandoff builds the state handed to the detail screen.
func (v *BuyerView) DetailHandoff(id domain.SpaceID, user domain.User) (domain.DetailHandoff, error) {
	v.mu.Lock()
	space := v.findLocked(id)
	v.mu.Unlock()
	if space == nil {
		return domain.DetailHandoff{}, domain.ErrSpaceNotFound
	}
	return domain.DetailHandoff{Space: *space, User: user}, nil
}

// findLocked returns a copy of a space from the collection or the selection.
func (v *BuyerView) findLocked(id domain.SpaceID) *domain.ParkingSpace {
	if s := (ListProjection{Spaces: &v.spaces}).Lookup(id); s != nil {
		c := *s
		return &c
	}
	if s := (SlotProjection{Slot: &v.selected}).Lookup(id); s != nil {
		c := *s
		return &c
	}
	return nil
}

// Touch records client activity for the idle sweep.
func (v *BuyerView) Touch() {
	now := v.deps.Clock.Now()
	v.mu.Lock()
	v.lastActive = now
	v.mu.Unlock()
}

func (v *BuyerView) LastActive() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastActive
}

func (v *BuyerView) Snapshot() BuyerSnapshot {
	search := v.search.State()
	timeFilter := v.timeFilter.State()
	sheets := map[string]sheet.Snapshot{
		"list":    v.listSheet.Snapshot(),
		"filters": v.filterSheet.Snapshot(),
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	snap := BuyerSnapshot{
		SessionID:          v.id,
		Viewport:           v.viewport,
		Location:           v.location,
		LocationFromDevice: v.fromDevice,
		Spaces:             domain.CloneSpaces(v.spaces),
		Filtered:           domain.CloneSpaces(v.filtered),
		TimeFilter:         timeFilter,
		Filters:            v.filters,
		Search:             search,
		Sheets:             sheets,
		Loading:            v.loading,
		Loaded:             v.loaded,
		UpdatedAt:          v.deps.Clock.Now(),
	}
	if v.selected != nil {
		s := *v.selected
		snap.Selected = &s
	}
	if v.route != nil {
		r := *v.route
		snap.Route = &r
	}
	if v.window != nil {
		w := *v.window
		snap.Window = &w
	}
	snap.Map = domain.BuildMapScene(snap.Viewport, snap.Location, snap.Filtered, snap.Selected, snap.Route)
	return snap
}

func (v *BuyerView) publish() {
	if v.deps.Publisher == nil {
		return
	}
	v.deps.Publisher.PublishToSession(v.id, v.Snapshot())
}

// Close stops timers and detaches sheet listeners.
func (v *BuyerView) Close() {
	v.search.Stop()
	v.listSheet.Close()
	v.filterSheet.Close()
}

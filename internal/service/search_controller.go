package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"parking_market/internal/client"
	"parking_market/internal/clock"
	"parking_market/internal/debounce"
	"parking_market/internal/domain"

	"github.com/sirupsen/logrus"
)

const (
	SearchDebounce       = 300 * time.Millisecond
	MinSearchQueryLength = 3
	geocodeTimeout       = 10 * time.Second
)

var ErrInvalidSearchResult = errors.New("search result index out of range")

// SearchState is the render state of the search overlay.
type SearchState struct {
	Query   string                 `json:"query"`
	Active  bool                   `json:"active"`
	Pending bool                   `json:"pending"`
	Results []domain.GeocodeResult `json:"results"`
}

// SearchController geocodes the buyer's free-text query and recenters the
// view on a chosen result.
type SearchController struct {
	mu        sync.Mutex
	geocoder  client.Geocoder
	debouncer *debounce.Debouncer
	notifier  *Notifier
	logger    *logrus.Logger

	// onSelect performs the proximity fetch around a chosen result.
	onSelect func(ctx context.Context, r domain.GeocodeResult) error
	onChange func()

	query   string
	active  bool
	results []domain.GeocodeResult
	seq     uint64
}

func NewSearchController(
	geocoder client.Geocoder,
	c clock.Clock,
	notifier *Notifier,
	logger *logrus.Logger,
	onSelect func(ctx context.Context, r domain.GeocodeResult) error,
	onChange func(),
) *SearchController {
	if onChange == nil {
		onChange = func() {}
	}
	return &SearchController{
		geocoder:  geocoder,
		debouncer: debounce.New(c, SearchDebounce),
		notifier:  notifier,
		logger:    logger,
		onSelect:  onSelect,
		onChange:  onChange,
		results:   []domain.GeocodeResult{},
	}
}

// SetQuery records a keystroke. Short queries clear the results at once;
// longer ones are geocoded after the debounce window.
func (s *SearchController) SetQuery(query string) {
	s.mu.Lock()
	s.query = query
	s.active = true
	s.seq++
	seq := s.seq
	trimmed := strings.TrimSpace(query)
	short := utf8.RuneCountInString(trimmed) < MinSearchQueryLength
	if short {
		s.results = []domain.GeocodeResult{}
	}
	s.mu.Unlock()

	if short {
		s.debouncer.Cancel()
		s.onChange()
		return
	}
	s.debouncer.Schedule(func() { s.run(seq, trimmed) })
}

func (s *SearchController) run(seq uint64, query string) {
	ctx, cancel := context.WithTimeout(context.Background(), geocodeTimeout)
	defer cancel()

	results, err := s.geocoder.Geocode(ctx, query)

	s.mu.Lock()
	if seq != s.seq {
		s.mu.Unlock()
		s.logger.WithField("query", query).Debug("Discarding stale geocode response")
		return
	}
	if err != nil {
		s.results = []domain.GeocodeResult{}
		s.mu.Unlock()
		s.logger.WithError(err).WithField("query", query).Warn("Geocode failed")
		s.notifier.Error("Location search failed. Please try again.", "geocode_failed")
		s.onChange()
		return
	}
	if results == nil {
		results = []domain.GeocodeResult{}
	}
	s.results = results
	s.mu.Unlock()
	s.onChange()
}

// Select recenters on results[index] and leaves search mode.
func (s *SearchController) Select(ctx context.Context, index int) error {
	s.mu.Lock()
	if index < 0 || index >= len(s.results) {
		s.mu.Unlock()
		return ErrInvalidSearchResult
	}
	chosen := s.results[index]
	s.active = false
	s.query = chosen.Address
	s.results = []domain.GeocodeResult{}
	s.seq++
	s.mu.Unlock()

	s.debouncer.Cancel()
	s.onChange()
	return s.onSelect(ctx, chosen)
}

// Dismiss leaves search mode without changing the view.
func (s *SearchController) Dismiss() {
	s.debouncer.Cancel()
	s.mu.Lock()
	s.active = false
	s.seq++
	s.mu.Unlock()
	s.onChange()
}

func (s *SearchController) State() SearchState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SearchState{
		Query:   s.query,
		Active:  s.active,
		Pending: s.debouncer.Pending(),
		Results: append([]domain.GeocodeResult{}, s.results...),
	}
}

// Stop cancels any pending geocode.
func (s *SearchController) Stop() {
	s.debouncer.Cancel()
}

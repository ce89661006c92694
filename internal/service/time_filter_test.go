package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"parking_market/internal/clock"
	"parking_market/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loaderSpy struct {
	windows []*domain.TimeWindow
	n       int
	err     error
}

func (l *loaderSpy) load(ctx context.Context, w *domain.TimeWindow) (int, error) {
	l.windows = append(l.windows, w)
	return l.n, l.err
}

func newTestTimeFilter() (*TimeFilterController, *loaderSpy, *Notifier, time.Time) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	fake := clock.NewFake(now)
	spy := &loaderSpy{n: 4}
	notifier := NewNotifier(fake)
	return NewTimeFilterController(fake, notifier, spy.load), spy, notifier, now
}

func TestTimeFilter_RejectsInvalidWindowsWithoutFetching(t *testing.T) {
	tests := []struct {
		name  string
		start time.Duration
		end   time.Duration
		code  string
	}{
		{"Past start", -time.Hour, time.Hour, domain.CodeStartInPast},
		{"End before start", 2 * time.Hour, time.Hour, domain.CodeEndNotAfter},
		{"Ten minutes", time.Hour, time.Hour + 10*time.Minute, domain.CodeDurationTooShort},
		{"Beyond horizon", 31 * 24 * time.Hour, 31*24*time.Hour + time.Hour, domain.CodeBeyondHorizon},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tf, spy, notifier, now := newTestTimeFilter()
			tf.SetStart(now.Add(tt.start))
			tf.SetEnd(now.Add(tt.end))

			_, err := tf.Apply(context.Background())

			var verr *domain.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.code, verr.Code)
			assert.Empty(t, spy.windows, "no fetch is issued")
			assert.Nil(t, tf.Applied())

			notes := notifier.Drain()
			require.Len(t, notes, 1)
			assert.Equal(t, tt.code, notes[0].Code)
		})
	}
}

func TestTimeFilter_IncompleteWindow(t *testing.T) {
	tf, spy, _, now := newTestTimeFilter()
	tf.SetStart(now.Add(time.Hour))

	_, err := tf.Apply(context.Background())
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, domain.CodeIncomplete, verr.Code)
	assert.Empty(t, spy.windows)
}

func TestTimeFilter_StartChangeRecomputesMinEnd(t *testing.T) {
	tf, _, _, now := newTestTimeFilter()
	assert.Nil(t, tf.MinEnd())

	tf.SetStart(now.Add(time.Hour))
	tf.SetEnd(now.Add(2 * time.Hour))
	require.NotNil(t, tf.MinEnd())
	assert.Equal(t, now.Add(90*time.Minute), *tf.MinEnd())

	tf.SetStart(now.Add(90 * time.Minute))
	assert.NotNil(t, tf.State().End, "end after the new start is kept")

	tf.SetStart(now.Add(2 * time.Hour))
	assert.Nil(t, tf.State().End, "end equal to the new start is cleared")
	assert.Equal(t, now.Add(150*time.Minute), *tf.MinEnd())
}

func TestTimeFilter_ApplyAndClear(t *testing.T) {
	tf, spy, notifier, now := newTestTimeFilter()
	tf.SetStart(now.Add(time.Hour))
	tf.SetEnd(now.Add(3 * time.Hour))

	n, err := tf.Apply(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	require.Len(t, spy.windows, 1)
	require.NotNil(t, spy.windows[0])
	assert.Equal(t, now.Add(time.Hour), spy.windows[0].Start)
	require.NotNil(t, tf.Applied())

	_, err = tf.Clear(context.Background())
	require.NoError(t, err)
	require.Len(t, spy.windows, 2)
	assert.Nil(t, spy.windows[1], "clear refetches without a window")
	assert.Nil(t, tf.Applied())
	assert.Nil(t, tf.State().Start)

	notes := notifier.Drain()
	require.Len(t, notes, 2)
	assert.Equal(t, domain.NotifySuccess, notes[0].Level)
}

func TestTimeFilter_FetchFailureKeepsPreviousWindow(t *testing.T) {
	tf, spy, notifier, now := newTestTimeFilter()
	spy.err = errors.New("upstream down")
	tf.SetStart(now.Add(time.Hour))
	tf.SetEnd(now.Add(2 * time.Hour))

	_, err := tf.Apply(context.Background())
	assert.Error(t, err)
	assert.Nil(t, tf.Applied())
	notes := notifier.Drain()
	require.Len(t, notes, 1)
	assert.Equal(t, "fetch_failed", notes[0].Code)
}

func TestTimeFilter_ClearFailureKeepsAppliedWindow(t *testing.T) {
	tf, spy, notifier, now := newTestTimeFilter()
	tf.SetStart(now.Add(time.Hour))
	tf.SetEnd(now.Add(3 * time.Hour))
	_, err := tf.Apply(context.Background())
	require.NoError(t, err)
	notifier.Drain()

	spy.err = errors.New("upstream down")
	_, err = tf.Clear(context.Background())
	assert.Error(t, err)

	require.NotNil(t, tf.Applied(), "the windowed results are still shown")
	assert.Equal(t, now.Add(time.Hour), tf.Applied().Start)
	require.NotNil(t, tf.State().Start)
	notes := notifier.Drain()
	require.Len(t, notes, 1)
	assert.Equal(t, "fetch_failed", notes[0].Code)
}

func TestTimeFilter_SupersededApplyIsNotApplied(t *testing.T) {
	tf, spy, notifier, now := newTestTimeFilter()
	spy.err = ErrFetchSuperseded
	tf.SetStart(now.Add(time.Hour))
	tf.SetEnd(now.Add(3 * time.Hour))

	_, err := tf.Apply(context.Background())
	assert.ErrorIs(t, err, ErrFetchSuperseded)
	assert.Nil(t, tf.Applied())
	assert.Empty(t, notifier.Drain(), "a replaced fetch reports nothing")
}

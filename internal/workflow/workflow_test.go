package workflow

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-track-viewer/internal/domain"
	"github.com/couchcryptid/storm-track-viewer/internal/observability"
	"github.com/couchcryptid/storm-track-viewer/internal/query"
	"github.com/couchcryptid/storm-track-viewer/internal/spatial"
)

// stubExecutor serves canned collections, routing by whether the
// pipeline aggregates tracks.
type stubExecutor struct {
	mu     sync.Mutex
	points domain.FeatureCollection
	tracks domain.FeatureCollection
	errs   []error // popped per call; nil entries mean success
	calls  int
}

func (e *stubExecutor) Execute(_ context.Context, p query.Pipeline) (domain.FeatureCollection, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++

	if len(e.errs) > 0 {
		err := e.errs[0]
		e.errs = e.errs[1:]
		if err != nil {
			return domain.FeatureCollection{}, err
		}
	}

	for _, s := range p.Stages {
		if s.Op == query.OpAggregateLine {
			return e.tracks, nil
		}
	}
	return e.points, nil
}

type recordingPublisher struct {
	mu      sync.Mutex
	dataset string
	year    int
	tracks  []domain.Feature
	calls   int
	err     error
}

func (p *recordingPublisher) PublishTracks(_ context.Context, dataset string, year int, tracks []domain.Feature) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.dataset = dataset
	p.year = year
	p.tracks = tracks
	return p.err
}

func seasonData() (points, tracks domain.FeatureCollection) {
	points = domain.NewFeatureCollection()
	points.Add(domain.NewPointFeature(-81.5, 24.5, map[string]any{
		domain.PropStormID:   "AL112017",
		domain.PropTimestamp: "2017-09-10T13:00:00Z",
	}))
	points.Add(domain.NewPointFeature(-83.0, 27.9, map[string]any{
		domain.PropStormID:   "AL112017",
		domain.PropTimestamp: "2017-09-11T12:00:00Z",
	}))

	tracks = domain.NewFeatureCollection()
	tracks.Add(domain.NewLineFeature("AL112017",
		[]domain.Position{{-81.5, 24.5}, {-83.0, 27.9}},
		map[string]any{domain.PropStormID: "AL112017", domain.PropPointCount: 2}))
	return points, tracks
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestWorkflow(t *testing.T, exec *stubExecutor, opts Options) (*Workflow, *spatial.Index) {
	t.Helper()
	index := spatial.NewIndex()
	wf := New(exec, index, opts, testLogger(), observability.NewMetricsForTesting())
	return wf, index
}

func TestRefreshOnce(t *testing.T) {
	points, tracks := seasonData()
	exec := &stubExecutor{points: points, tracks: tracks}
	clock := clockwork.NewFakeClock()

	wf, index := newTestWorkflow(t, exec, Options{
		Dataset: "noaa/hurricanes/atlantic",
		Year:    2017,
		Clock:   clock,
	})

	_, ok := wf.Snapshot()
	assert.False(t, ok)
	assert.Error(t, wf.CheckReadiness(context.Background()))

	require.NoError(t, wf.RefreshOnce(context.Background()))

	snap, ok := wf.Snapshot()
	require.True(t, ok)
	assert.Equal(t, 2, snap.Points.Len())
	assert.Equal(t, 1, snap.Tracks.Len())
	assert.Equal(t, clock.Now(), snap.FetchedAt)

	assert.Equal(t, 2, index.Size(), "points must be indexed for viewport queries")
	assert.NoError(t, wf.CheckReadiness(context.Background()))
	assert.Equal(t, 2, exec.calls, "one query per pipeline")
}

func TestRefreshOnce_PublishesTracks(t *testing.T) {
	points, tracks := seasonData()
	exec := &stubExecutor{points: points, tracks: tracks}
	pub := &recordingPublisher{}

	wf, _ := newTestWorkflow(t, exec, Options{
		Dataset:   "noaa/hurricanes/atlantic",
		Year:      2017,
		Publisher: pub,
	})

	require.NoError(t, wf.RefreshOnce(context.Background()))

	assert.Equal(t, 1, pub.calls)
	assert.Equal(t, "noaa/hurricanes/atlantic", pub.dataset)
	assert.Equal(t, 2017, pub.year)
	require.Len(t, pub.tracks, 1)
	assert.Equal(t, "AL112017", pub.tracks[0].ID)
}

func TestRefreshOnce_PublishFailureIsNonFatal(t *testing.T) {
	points, tracks := seasonData()
	exec := &stubExecutor{points: points, tracks: tracks}
	pub := &recordingPublisher{err: fmt.Errorf("broker unreachable")}

	wf, _ := newTestWorkflow(t, exec, Options{Dataset: "test", Year: 2017, Publisher: pub})

	require.NoError(t, wf.RefreshOnce(context.Background()))

	_, ok := wf.Snapshot()
	assert.True(t, ok, "the view must still be served when publishing fails")
}

func TestRefreshOnce_FetchError(t *testing.T) {
	exec := &stubExecutor{errs: []error{fmt.Errorf("backend down")}}
	wf, _ := newTestWorkflow(t, exec, Options{Dataset: "test", Year: 2017})

	err := wf.RefreshOnce(context.Background())
	require.Error(t, err)

	_, ok := wf.Snapshot()
	assert.False(t, ok)
	assert.Error(t, wf.CheckReadiness(context.Background()))
}

func TestRun_RetriesInitialRefresh(t *testing.T) {
	points, tracks := seasonData()
	exec := &stubExecutor{
		points: points,
		tracks: tracks,
		errs:   []error{fmt.Errorf("transient"), nil, nil},
	}

	wf, _ := newTestWorkflow(t, exec, Options{Dataset: "test", Year: 2017})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- wf.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, ok := wf.Snapshot()
		return ok
	}, 5*time.Second, 10*time.Millisecond, "the initial refresh should succeed after a retry")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("workflow did not stop after cancellation")
	}
}

func TestRun_StopsDuringBackoff(t *testing.T) {
	exec := &stubExecutor{errs: []error{
		fmt.Errorf("down"), fmt.Errorf("down"), fmt.Errorf("down"),
		fmt.Errorf("down"), fmt.Errorf("down"), fmt.Errorf("down"),
	}}
	wf, _ := newTestWorkflow(t, exec, Options{Dataset: "test", Year: 2017})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- wf.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("workflow did not stop during backoff")
	}
}

func TestRun_PeriodicRefresh(t *testing.T) {
	points, tracks := seasonData()
	exec := &stubExecutor{points: points, tracks: tracks}

	wf, _ := newTestWorkflow(t, exec, Options{
		Dataset:         "test",
		Year:            2017,
		RefreshInterval: 20 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- wf.Run(ctx) }()

	require.Eventually(t, func() bool {
		exec.mu.Lock()
		defer exec.mu.Unlock()
		return exec.calls >= 4
	}, 5*time.Second, 10*time.Millisecond, "ticker should drive repeated refreshes")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("workflow did not stop")
	}
}

func TestNextBackoff(t *testing.T) {
	assert.Equal(t, 400*time.Millisecond, nextBackoff(200*time.Millisecond, 5*time.Second))
	assert.Equal(t, 5*time.Second, nextBackoff(3*time.Second, 5*time.Second))
	assert.Equal(t, 5*time.Second, nextBackoff(5*time.Second, 5*time.Second))
}

// Package workflow orchestrates the viewer's data path: establish a
// session, evaluate the point and track pipelines, index the points
// for viewport queries, and optionally publish synthesized tracks.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/storm-track-viewer/internal/adapter/geoquery"
	"github.com/couchcryptid/storm-track-viewer/internal/domain"
	"github.com/couchcryptid/storm-track-viewer/internal/observability"
	"github.com/couchcryptid/storm-track-viewer/internal/query"
	"github.com/couchcryptid/storm-track-viewer/internal/spatial"
)

// TrackPublisher forwards synthesized track features to a sink.
type TrackPublisher interface {
	PublishTracks(ctx context.Context, dataset string, year int, tracks []domain.Feature) error
}

// Snapshot is one consistent fetch of points and tracks.
type Snapshot struct {
	Points    domain.FeatureCollection
	Tracks    domain.FeatureCollection
	FetchedAt time.Time
}

// Workflow runs the fetch-synthesize-index cycle and tracks readiness.
type Workflow struct {
	executor  geoquery.Executor
	index     *spatial.Index
	publisher TrackPublisher // nil disables publishing
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock

	dataset         string
	year            int
	refreshInterval time.Duration

	mu       sync.RWMutex
	snapshot *Snapshot
	ready    atomic.Bool
}

// Options configures a Workflow.
type Options struct {
	Dataset         string
	Year            int
	RefreshInterval time.Duration // zero disables periodic refresh
	Publisher       TrackPublisher
	Clock           clockwork.Clock
}

// New creates a Workflow. A nil Options.Clock uses the real clock.
func New(executor geoquery.Executor, index *spatial.Index, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Workflow {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Workflow{
		executor:        executor,
		index:           index,
		publisher:       opts.Publisher,
		logger:          logger,
		metrics:         metrics,
		clock:           clock,
		dataset:         opts.Dataset,
		year:            opts.Year,
		refreshInterval: opts.RefreshInterval,
	}
}

// CheckReadiness returns nil once at least one refresh has completed.
func (w *Workflow) CheckReadiness(_ context.Context) error {
	if !w.ready.Load() {
		return errors.New("no data loaded yet")
	}
	return nil
}

// Snapshot returns the latest fetched data, and false before the first
// successful refresh.
func (w *Workflow) Snapshot() (Snapshot, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.snapshot == nil {
		return Snapshot{}, false
	}
	return *w.snapshot, true
}

// RefreshOnce evaluates both pipelines and swaps in a new snapshot.
func (w *Workflow) RefreshOnce(ctx context.Context) error {
	points, err := w.executor.Execute(ctx, query.PointsForYear(w.dataset, w.year))
	if err != nil {
		return fmt.Errorf("fetch points: %w", err)
	}

	tracks, err := w.executor.Execute(ctx, query.TracksForYear(w.dataset, w.year))
	if err != nil {
		return fmt.Errorf("fetch tracks: %w", err)
	}

	w.index.Load(points)

	w.mu.Lock()
	w.snapshot = &Snapshot{Points: points, Tracks: tracks, FetchedAt: w.clock.Now()}
	w.mu.Unlock()

	w.metrics.FeaturesFetched.Add(float64(points.Len()))
	w.metrics.TracksSynthesized.Add(float64(tracks.Len()))

	if w.publisher != nil {
		if err := w.publisher.PublishTracks(ctx, w.dataset, w.year, tracks.Features); err != nil {
			// Publishing is best-effort; the view still renders.
			w.logger.Warn("publish tracks failed", "error", err)
		}
	}

	if w.ready.CompareAndSwap(false, true) {
		w.metrics.WorkflowReady.Set(1)
	}

	w.logger.Info("data refreshed",
		"dataset", w.dataset,
		"year", w.year,
		"points", points.Len(),
		"tracks", tracks.Len(),
	)
	return nil
}

// Run performs the initial refresh, retrying with exponential backoff,
// then refreshes periodically when an interval is configured. It
// returns nil when the context is cancelled.
func (w *Workflow) Run(ctx context.Context) error {
	defer w.metrics.WorkflowReady.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		err := w.RefreshOnce(ctx)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return nil
		}
		w.metrics.RefreshFailures.Inc()
		w.logger.Error("refresh failed", "error", err, "retry_in", backoff)
		if !sleepWithContext(ctx, backoff) {
			return nil
		}
		backoff = nextBackoff(backoff, maxBackoff)
	}

	if w.refreshInterval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(w.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("workflow stopping", "reason", ctx.Err())
			return nil
		case <-ticker.C:
			if err := w.RefreshOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				w.metrics.RefreshFailures.Inc()
				w.logger.Error("refresh failed", "error", err)
			}
		}
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smileynet/envdash/internal/cache"
	"github.com/smileynet/envdash/internal/source"
)

// RefreshNow performs an out-of-band refresh of the polled window using the
// initial retry budget. It shares the cache with the polling cycle, so a
// manual refresh and a concurrently due poll collapse into one fetch.
//
// The refresh is abandoned with ErrCancelled when ctx ends or the
// orchestrator stops. A *RefreshError is returned when every attempt fails.
func (o *Orchestrator) RefreshNow(ctx context.Context) error {
	ctx, cancel := o.bind(ctx)
	defer cancel()
	return o.refresh(ctx, TriggerManual)
}

// InvalidateAndReload asks the data source to re-collect sourceID, clears
// the whole cache, and schedules a reload of the polled window after the
// settle delay. The reload is dropped if the orchestrator stops before the
// delay elapses.
//
// If the trigger fails its error is returned and the cache is left intact.
func (o *Orchestrator) InvalidateAndReload(ctx context.Context, sourceID string) error {
	if o.isStopped() {
		return ErrStopped
	}

	tctx, cancel := o.bind(ctx)
	defer cancel()
	ack, err := o.source.RefreshDataSource(tctx, sourceID)
	if err != nil {
		log.Warnw("Source refresh trigger failed", "source", sourceID, "err", err)
		return fmt.Errorf("triggering refresh of %s: %w", sourceID, err)
	}
	log.Infow("Source refresh triggered", "source", sourceID, "ack", ack, "settle", o.settleDelay)

	o.store.Invalidate()
	if o.isStopped() {
		return nil
	}
	go o.reloadAfterSettle(sourceID)
	return nil
}

// Get returns the dashboard for an arbitrary window through the shared
// cache. The window is part of the cache key, so windows never share
// entries. Get does not publish state. A non-positive window selects the
// polled one.
func (o *Orchestrator) Get(ctx context.Context, windowHours int) (*source.Dashboard, error) {
	if o.isStopped() {
		return nil, ErrStopped
	}
	if windowHours <= 0 {
		windowHours = o.windowHours
	}

	ctx, cancel := o.bind(ctx)
	defer cancel()
	entry, err := o.store.GetOrStart(ctx, cache.Key("dashboard", windowHours), o.ttl, o.fetch(windowHours))
	if err != nil {
		return nil, err
	}
	return entry.Value, nil
}

// refresh runs one logical refresh: up to budget attempts through the
// cache, publishing loading on entry and the outcome on exit.
func (o *Orchestrator) refresh(ctx context.Context, trig Trigger) error {
	seq, ok := o.begin(trig)
	if !ok {
		return ErrStopped
	}

	budget := o.initialBudget
	if trig.background() {
		budget = o.pollBudget
	}

	var lastErr error
	for attempt := 1; attempt <= budget; attempt++ {
		if attempt > 1 {
			if err := o.sleep(ctx, o.backoff(attempt)); err != nil {
				o.finish(seq, nil)
				return ErrCancelled
			}
		}

		entry, err := o.store.GetOrStart(ctx, o.key, o.ttl, o.fetch(o.windowHours))
		if err == nil {
			o.finish(seq, func(s *State) {
				s.Data = entry.Value
				s.LastUpdated = entry.FetchedAt
				s.Error = ""
			})
			log.Debugw("Refresh succeeded", "trigger", trig, "attempt", attempt, "fetched_at", entry.FetchedAt)
			return nil
		}
		if ctx.Err() != nil || o.isStopped() {
			o.finish(seq, nil)
			log.Debugw("Refresh cancelled", "trigger", trig, "attempt", attempt)
			return ErrCancelled
		}

		lastErr = err
		log.Warnw("Dashboard fetch failed", "trigger", trig, "attempt", attempt, "budget", budget, "err", err)
	}

	rerr := &RefreshError{Trigger: trig, Attempts: budget, Err: lastErr}
	o.finish(seq, func(s *State) { s.Error = rerr.Error() })
	log.Errorw("Refresh failed", "trigger", trig, "attempts", budget, "err", lastErr)
	return rerr
}

// begin registers a refresh and publishes the loading state. Manual,
// initial and reload refreshes clear a previous error; polls leave it
// visible. It reports false once stopped.
func (o *Orchestrator) begin(trig Trigger) (uint64, bool) {
	var seq uint64
	ok := o.publish(func(s *State) bool {
		o.seq++
		seq = o.seq
		o.inflight++
		s.Loading = true
		if !trig.background() {
			s.Error = ""
		}
		return true
	})
	return seq, ok
}

// finish ends the refresh with the given sequence. apply, if non-nil, is
// the refresh outcome; it is skipped when a newer outcome was already
// applied.
func (o *Orchestrator) finish(seq uint64, apply func(*State)) {
	o.publish(func(s *State) bool {
		o.inflight--
		changed := false
		if apply != nil && seq > o.applied {
			o.applied = seq
			apply(s)
			changed = true
		}
		if loading := o.inflight > 0; s.Loading != loading {
			s.Loading = loading
			changed = true
		}
		return changed
	})
}

// reloadAfterSettle waits out the settle delay, then force-reloads the
// polled window.
func (o *Orchestrator) reloadAfterSettle(sourceID string) {
	if err := o.sleep(o.ctx, o.settleDelay); err != nil {
		log.Debugw("Reload dropped before settle delay elapsed", "source", sourceID)
		return
	}
	// A poll may have refilled the key while we waited.
	o.store.Invalidate(o.key)
	if err := o.refresh(o.ctx, TriggerReload); err != nil && !errors.Is(err, ErrStopped) {
		log.Debugw("Reload finished with error", "source", sourceID, "err", err)
	}
}

// fetch builds the shared cache fetch for a window. It outlives the trigger
// that started it but not the orchestrator.
func (o *Orchestrator) fetch(windowHours int) cache.FetchFunc[*source.Dashboard] {
	return func(ctx context.Context) (*source.Dashboard, error) {
		ctx, cancel := o.bind(ctx)
		defer cancel()
		return o.source.FetchDashboard(ctx, windowHours)
	}
}

// sleep waits d on the orchestrator clock. It returns ctx.Err() if ctx ends
// first.
func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := o.clock.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.Chan():
		return nil
	}
}

// bind derives a context that ends when either ctx ends or the orchestrator
// stops.
func (o *Orchestrator) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	unlink := context.AfterFunc(o.ctx, cancel)
	return ctx, func() {
		unlink()
		cancel()
	}
}

func (o *Orchestrator) isStopped() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stopped
}

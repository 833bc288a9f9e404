// Package orchestrator keeps a dashboard snapshot fresh: it polls the data
// source on a fixed cadence through a de-duplicating cache, retries failed
// fetches within a bounded budget, and publishes the latest state to
// observers.
package orchestrator

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/jonboulle/clockwork"
	"github.com/smileynet/envdash/internal/cache"
	"github.com/smileynet/envdash/internal/source"
)

var log = logging.Logger("orchestrator")

// Defaults applied by New.
const (
	DefaultWindowHours   = 24
	DefaultTTL           = 5 * time.Minute
	DefaultInitialBudget = 3
	DefaultPollBudget    = 2
	DefaultSettleDelay   = 2 * time.Second
)

// Source fetches dashboard snapshots and triggers upstream re-collection.
// Defined here (the consumer) per Go convention: accept interfaces, return structs.
type Source interface {
	FetchDashboard(ctx context.Context, windowHours int) (*source.Dashboard, error)
	RefreshDataSource(ctx context.Context, sourceID string) (string, error)
}

// State is a full snapshot of the orchestrator's published state.
type State struct {
	Data        *source.Dashboard // Last successful payload; nil until one succeeds.
	Loading     bool              // A refresh is outstanding.
	Error       string            // Last failure after retries; cleared on success.
	LastUpdated time.Time         // Completion time of the fetch that produced Data.
}

// Observer receives every published State, in publication order.
// Observers run synchronously on the publishing goroutine and must not call
// Stop.
type Observer func(State)

type subscriber struct {
	id uint64
	fn Observer
}

// Orchestrator drives periodic and on-demand refreshes of one dashboard
// window.
type Orchestrator struct {
	source        Source
	store         *cache.Store[*source.Dashboard]
	clock         clockwork.Clock
	windowHours   int
	key           string
	ttl           time.Duration
	initialBudget int
	pollBudget    int
	backoff       func(attempt int) time.Duration
	settleDelay   time.Duration

	// ctx is cancelled by Stop; every refresh and scheduled reload runs
	// under it.
	ctx    context.Context
	cancel context.CancelFunc

	// notifyMu is held while observers run, so Stop can wait out a
	// publication already in progress.
	notifyMu sync.Mutex

	mu          sync.Mutex
	state       State
	inflight    int
	seq         uint64 // Last sequence issued to a refresh.
	applied     uint64 // Sequence of the last outcome applied to state.
	subscribers []subscriber
	nextSub     uint64
	running     bool
	stopped     bool
	unlink      func() bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// New creates an Orchestrator that fetches from src.
func New(src Source, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		source:        src,
		clock:         clockwork.NewRealClock(),
		windowHours:   DefaultWindowHours,
		ttl:           DefaultTTL,
		initialBudget: DefaultInitialBudget,
		pollBudget:    DefaultPollBudget,
		backoff:       func(int) time.Duration { return 0 },
		settleDelay:   DefaultSettleDelay,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.ctx, o.cancel = context.WithCancel(context.Background())
	if o.store == nil {
		o.store = cache.New[*source.Dashboard](cache.WithClock(o.clock), cache.WithContext(o.ctx))
	}
	o.key = cache.Key("dashboard", o.windowHours)
	return o
}

// WithStore sets the cache store. By default each Orchestrator gets its own.
func WithStore(s *cache.Store[*source.Dashboard]) Option {
	return func(o *Orchestrator) { o.store = s }
}

// WithClock sets the clock used for poll, retry and settle timers.
func WithClock(c clockwork.Clock) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithWindowHours sets the dashboard window that is polled.
func WithWindowHours(h int) Option {
	return func(o *Orchestrator) {
		if h > 0 {
			o.windowHours = h
		}
	}
}

// WithTTL sets how long a successful fetch is served from cache.
func WithTTL(d time.Duration) Option {
	return func(o *Orchestrator) { o.ttl = d }
}

// WithRetryBudgets sets the attempt budgets. initial applies to the first
// load, manual refreshes and reloads; poll applies to timer-driven refreshes.
func WithRetryBudgets(initial, poll int) Option {
	return func(o *Orchestrator) {
		o.initialBudget = max(initial, 1)
		o.pollBudget = max(poll, 1)
	}
}

// WithBackoff sets the delay before retry attempt n (n >= 2).
// The default retries immediately.
func WithBackoff(fn func(attempt int) time.Duration) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.backoff = fn
		}
	}
}

// WithSettleDelay sets how long InvalidateAndReload waits before reloading.
func WithSettleDelay(d time.Duration) Option {
	return func(o *Orchestrator) { o.settleDelay = max(d, 0) }
}

// Start fires an immediate refresh and then polls every interval until Stop
// is called or ctx is done. Only one polling cycle may run per Orchestrator.
//
// The poll timer is re-armed only after each refresh finishes, including its
// retries, so the cadence drifts by the refresh duration: polls start
// interval + fetch time apart, never at fixed wall-clock multiples of
// interval.
func (o *Orchestrator) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("orchestrator: poll interval must be positive, got %v", interval)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		return ErrStopped
	}
	if o.running {
		return ErrAlreadyRunning
	}
	o.running = true
	o.unlink = context.AfterFunc(ctx, o.Stop)

	log.Infow("Polling started", "key", o.key, "interval", interval, "ttl", o.ttl)
	go o.poll(interval)
	return nil
}

// Stop cancels the polling cycle, pending retry and settle timers, and any
// refresh in flight. Results of fetches still running are discarded. No
// state is published after Stop returns. Stop is idempotent.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	wasStopped := o.stopped
	o.stopped = true
	unlink := o.unlink
	o.mu.Unlock()

	if !wasStopped {
		o.cancel()
		if unlink != nil {
			unlink()
		}
		log.Infow("Orchestrator stopped", "key", o.key)
	}

	// Wait for a publication that passed the stopped check before we set it.
	o.notifyMu.Lock()
	o.notifyMu.Unlock() //nolint:staticcheck // SA2001
}

// Subscribe registers fn to receive every subsequent State. The returned
// function removes the registration.
func (o *Orchestrator) Subscribe(fn Observer) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.nextSub++
	id := o.nextSub
	o.subscribers = append(o.subscribers, subscriber{id: id, fn: fn})
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		o.subscribers = slices.DeleteFunc(o.subscribers, func(s subscriber) bool { return s.id == id })
	}
}

// State returns the current snapshot.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// WindowHours returns the dashboard window being polled.
func (o *Orchestrator) WindowHours() int {
	return o.windowHours
}

// poll runs the initial refresh and the timer-driven cycle.
func (o *Orchestrator) poll(interval time.Duration) {
	ctx := o.ctx
	_ = o.refresh(ctx, TriggerInitial)

	timer := o.clock.NewTimer(interval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.Chan():
			if n := o.store.Purge(); n > 0 {
				log.Debugw("Purged expired cache entries", "count", n)
			}
			_ = o.refresh(ctx, TriggerPoll)
			timer.Reset(interval)
		}
	}
}

// publish applies fn to the state and delivers the resulting snapshot to
// subscribers. fn runs under o.mu and reports whether the state changed.
// Nothing is applied or delivered once stopped; publish reports whether fn
// ran.
func (o *Orchestrator) publish(fn func(*State) bool) bool {
	o.notifyMu.Lock()
	defer o.notifyMu.Unlock()

	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return false
	}
	if !fn(&o.state) {
		o.mu.Unlock()
		return true
	}
	snap := o.state
	subs := slices.Clone(o.subscribers)
	o.mu.Unlock()

	for _, s := range subs {
		s.fn(snap)
	}
	return true
}

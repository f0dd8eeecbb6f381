package analytics

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// ErrBusy is returned when a refresh is requested while one is running.
var ErrBusy = errors.New("analytics refresh already in progress")

// Refresher recomputes the default dashboard on an interval and on demand.
// At most one refresh runs at a time; overlapping requests are dropped.
type Refresher struct {
	svc      *Service
	interval time.Duration
	log      zerolog.Logger
	now      func() time.Time

	inFlight atomic.Bool
	lastRun  atomic.Pointer[time.Time]

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRefresher(svc *Service, interval time.Duration, log zerolog.Logger) *Refresher {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Refresher{
		svc:      svc,
		interval: interval,
		log:      log.With().Str("component", "analytics_refresher").Logger(),
		now:      time.Now,
	}
}

// Refresh recomputes the default dashboard unless another refresh holds the slot.
func (r *Refresher) Refresh(ctx context.Context) (Dashboard, error) {
	if !r.inFlight.CompareAndSwap(false, true) {
		return Dashboard{}, ErrBusy
	}
	defer r.inFlight.Store(false)

	started := r.now()
	d, err := r.svc.Compute(ctx, DefaultFilter(started))
	if err != nil {
		return Dashboard{}, err
	}
	r.lastRun.Store(&started)
	r.log.Debug().Dur("took", r.now().Sub(started)).Msg("analytics refreshed")
	return d, nil
}

// Busy reports whether a refresh currently holds the slot.
func (r *Refresher) Busy() bool {
	return r.inFlight.Load()
}

func (r *Refresher) LastRun() (time.Time, bool) {
	t := r.lastRun.Load()
	if t == nil {
		return time.Time{}, false
	}
	return *t, true
}

// Start launches the periodic loop. Calling Start twice is a no-op.
func (r *Refresher) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	go r.loop(loopCtx, r.done)
}

// Stop cancels the loop and waits for it to exit.
func (r *Refresher) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (r *Refresher) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Refresh(ctx); err != nil {
				switch {
				case errors.Is(err, ErrBusy):
					r.log.Debug().Msg("skipping tick, refresh in progress")
				case ctx.Err() != nil:
					return
				default:
					r.log.Error().Err(err).Msg("analytics refresh failed")
				}
			}
		}
	}
}

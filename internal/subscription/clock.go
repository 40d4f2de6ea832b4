package subscription

import (
	"context"
	"sync"
	"time"
)

// Clock abstracts wall-clock time so the publishing loop can be driven by
// simulated time in tests (spec.md §9 "Timer abstraction").
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RealClock is the production Clock backed by time.Now.
var RealClock Clock = realClock{}

// Scheduler drives a Subscription's periodic tick and supports requesting
// an immediate extra tick for back-to-back drain (spec.md §4.1 step 7).
// A single implementation is owned per subscription; ticks on one
// subscription never run concurrently with each other (spec.md §5).
type Scheduler interface {
	// Start begins invoking tick once per interval until Stop is called.
	Start(ctx context.Context, interval time.Duration, tick func(time.Time))
	// Reschedule requests an out-of-band extra tick as soon as possible.
	Reschedule()
	// SetInterval changes the ticking period, restarting the timer
	// (Subscription.Modify always restarts the timer per spec.md §4.1).
	SetInterval(interval time.Duration)
	Stop()
}

// TickerScheduler is the production Scheduler, backed by time.Ticker and a
// worker goroutine serializing all ticks for one subscription.
type TickerScheduler struct {
	clock Clock

	mu       sync.Mutex
	interval time.Duration
	ticker   *time.Ticker
	reset    chan time.Duration
	extra    chan struct{}
	stopped  chan struct{}
	done     chan struct{}
	once     sync.Once
}

// NewTickerScheduler creates a scheduler that has not yet started ticking.
func NewTickerScheduler(clock Clock) *TickerScheduler {
	if clock == nil {
		clock = RealClock
	}
	return &TickerScheduler{
		clock:   clock,
		reset:   make(chan time.Duration, 1),
		extra:   make(chan struct{}, 1),
		stopped: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (s *TickerScheduler) Start(ctx context.Context, interval time.Duration, tick func(time.Time)) {
	s.mu.Lock()
	s.interval = interval
	s.ticker = time.NewTicker(interval)
	ticker := s.ticker
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopped:
				return
			case newInterval := <-s.reset:
				ticker.Reset(newInterval)
			case <-s.extra:
				tick(s.clock.Now())
			case now := <-ticker.C:
				tick(now)
			}
		}
	}()
}

func (s *TickerScheduler) Reschedule() {
	select {
	case s.extra <- struct{}{}:
	default:
	}
}

func (s *TickerScheduler) SetInterval(interval time.Duration) {
	s.mu.Lock()
	s.interval = interval
	s.mu.Unlock()

	select {
	case s.reset <- interval:
	default:
	}
}

func (s *TickerScheduler) Stop() {
	s.once.Do(func() {
		close(s.stopped)
	})
}

package opcua

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopcua/opcua/ua"
	"github.com/rs/zerolog"
)

// DataSource reads the current value of a node for the sampling loop to
// push into its monitored item's buffer. Grounded on the teacher's
// domain.ProtocolManager.ReadTags seam (internal/service/polling.go):
// one narrow collaborator the scheduler calls on every tick, with the
// actual device/protocol I/O owned entirely outside this package.
type DataSource interface {
	ReadValue(ctx context.Context, nodeID *ua.NodeID) (*ua.DataValue, error)
}

// SamplingScheduler runs one ticker per registered SampledItem at its own
// SamplingInterval, reading through a DataSource and pushing the result
// into the item's buffer. Grounded on the teacher's PollingService
// (internal/service/polling.go): a bounded worker pool plus one
// goroutine-per-entity ticker loop, generalized from "poll a device on
// its configured interval" to "sample a monitored item on its revised
// sampling interval".
type SamplingScheduler struct {
	source     DataSource
	logger     zerolog.Logger
	workerPool chan struct{}

	mu    sync.Mutex
	items map[uint32]*samplerEntry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	started atomic.Bool
}

type samplerEntry struct {
	item     *SampledItem
	stopChan chan struct{}
	running  atomic.Bool
}

// NewSamplingScheduler creates a scheduler bounded to maxConcurrentReads
// simultaneous DataSource.ReadValue calls.
func NewSamplingScheduler(source DataSource, maxConcurrentReads int, logger zerolog.Logger) *SamplingScheduler {
	if maxConcurrentReads <= 0 {
		maxConcurrentReads = 10
	}
	return &SamplingScheduler{
		source:     source,
		logger:     logger.With().Str("component", "sampling-scheduler").Logger(),
		workerPool: make(chan struct{}, maxConcurrentReads),
		items:      make(map[uint32]*samplerEntry),
	}
}

// Start begins sampling every item already registered.
func (s *SamplingScheduler) Start(ctx context.Context) {
	if s.started.Load() {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.started.Store(true)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.items {
		s.startEntryLocked(e)
	}
}

// Stop halts every sampling loop and waits for in-flight reads to drain.
func (s *SamplingScheduler) Stop() {
	if !s.started.Load() {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.started.Store(false)
}

// Register adds item to the sampling loop. If the scheduler is already
// running, sampling for item begins immediately.
func (s *SamplingScheduler) Register(item *SampledItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := &samplerEntry{item: item, stopChan: make(chan struct{})}
	s.items[item.MonitoredItemID()] = e
	if s.started.Load() {
		s.startEntryLocked(e)
	}
}

// Unregister stops sampling item and removes it from the scheduler.
func (s *SamplingScheduler) Unregister(monitoredItemID uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[monitoredItemID]
	if !ok {
		return
	}
	if e.running.Load() {
		close(e.stopChan)
	}
	delete(s.items, monitoredItemID)
}

func (s *SamplingScheduler) startEntryLocked(e *samplerEntry) {
	if e.running.Load() {
		return
	}
	e.running.Store(true)
	s.wg.Add(1)

	interval := time.Duration(e.item.SamplingInterval()) * time.Millisecond
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	go func() {
		defer s.wg.Done()
		defer e.running.Store(false)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-e.stopChan:
				return
			case <-ticker.C:
				s.sample(e)
			}
		}
	}()
}

func (s *SamplingScheduler) sample(e *samplerEntry) {
	select {
	case s.workerPool <- struct{}{}:
		defer func() { <-s.workerPool }()
	case <-s.ctx.Done():
		return
	}

	value, err := s.source.ReadValue(s.ctx, e.item.NodeID())
	if err != nil {
		s.logger.Warn().Err(err).
			Uint32("monitored_item_id", e.item.MonitoredItemID()).
			Msg("sampling read failed")
		return
	}
	e.item.PushDataChange(value)
}

package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const recordTimeout = 5 * time.Second

// Dispatcher forwards events to a Repository from a background goroutine so
// that request handlers never wait on storage. Events are dropped when the
// buffer is full.
type Dispatcher struct {
	repo      Repository
	logger    *slog.Logger
	ch        chan Event
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher starts a dispatcher with the given buffer size.
func NewDispatcher(repo Repository, bufferSize int, logger *slog.Logger) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		repo:   repo,
		logger: logger,
		ch:     make(chan Event, bufferSize),
		done:   make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.ch:
			d.record(event)
		case <-d.done:
			for {
				select {
				case event := <-d.ch:
					d.record(event)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) record(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if err := d.repo.Record(ctx, event); err != nil {
		d.logger.Warn("record auth event", "kind", event.Kind, "error", err)
	}
}

// Emit queues event without blocking.
func (d *Dispatcher) Emit(event Event) {
	if d == nil || d.closed.Load() {
		return
	}

	select {
	case d.ch <- event:
	case <-d.done:
	default:
		d.dropped.Add(1)
	}
}

// Close drains queued events and stops the background goroutine.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped returns how many events were discarded because the buffer was full.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

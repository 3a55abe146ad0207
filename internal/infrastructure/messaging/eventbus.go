// Package messaging implements the in-process event bus that carries committed
// progression events to their handlers.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/esat-hub/skills-hub/internal/domain/shared"
	"github.com/esat-hub/skills-hub/pkg/logger"
)

var (
	ErrEventBusClosed = errors.New("event bus is closed")
	ErrHandlerPanic   = errors.New("handler panicked")
)

// InMemoryEventBusConfig configures NewInMemoryEventBus.
type InMemoryEventBusConfig struct {
	// AsyncMode makes Publish return before handlers run. Handler errors are
	// then only logged.
	AsyncMode bool

	// WorkerPoolSize caps concurrent async handlers. Defaults to 10.
	WorkerPoolSize int

	Logger *logger.Logger
}

// InMemoryEventBus delivers each event to the handlers subscribed to its type.
type InMemoryEventBus struct {
	async   bool
	workers *semaphore.Weighted
	log     *logger.Logger

	mu       sync.RWMutex
	handlers map[shared.EventType][]shared.EventHandler
	closed   bool
	inflight sync.WaitGroup
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)

func NewInMemoryEventBus(cfg InMemoryEventBusConfig) *InMemoryEventBus {
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = 10
	}
	return &InMemoryEventBus{
		async:    cfg.AsyncMode,
		workers:  semaphore.NewWeighted(int64(cfg.WorkerPoolSize)),
		log:      cfg.Logger.With(logger.Component("eventbus")),
		handlers: make(map[shared.EventType][]shared.EventHandler),
	}
}

func (b *InMemoryEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrEventBusClosed
	}
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	b.log.Debug("subscribed handler", logger.String("event_type", string(eventType)))
	return nil
}

// Publish runs the handlers for event.EventType(). In sync mode it returns
// every handler error joined; a panicking handler yields ErrHandlerPanic.
func (b *InMemoryEventBus) Publish(event shared.Event) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrEventBusClosed
	}
	handlers := append([]shared.EventHandler(nil), b.handlers[event.EventType()]...)
	if b.async {
		// Added under the read lock so Close cannot miss it.
		b.inflight.Add(len(handlers))
	}
	b.mu.RUnlock()

	if b.async {
		for _, h := range handlers {
			go b.runAsync(event, h)
		}
		return nil
	}

	var errs []error
	for _, h := range handlers {
		if err := run(event, h); err != nil {
			b.log.Error("handler error", logger.String("event_type", string(event.EventType())), logger.Err(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *InMemoryEventBus) runAsync(event shared.Event, h shared.EventHandler) {
	defer b.inflight.Done()

	// Never fails: the context is not cancellable.
	_ = b.workers.Acquire(context.Background(), 1)
	defer b.workers.Release(1)

	if err := run(event, h); err != nil {
		b.log.Error("async handler error",
			logger.String("event_type", string(event.EventType())),
			logger.Err(err),
		)
	}
}

func run(event shared.Event, h shared.EventHandler) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, p)
		}
	}()
	return h(event)
}

// Close rejects further Publish and Subscribe calls, then waits for async
// handlers that are already queued.
func (b *InMemoryEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.inflight.Wait()
	b.log.Info("event bus closed")
	return nil
}

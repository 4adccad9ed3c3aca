package dispatch

import (
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/openpredict/termfeed/internal/metrics"
	"github.com/openpredict/termfeed/internal/protocol"
)

// Handler consumes one decoded feed message.
type Handler func(msg protocol.Inbound)

// Bus delivers decoded messages to registered handlers.
type Bus interface {
	// Register adds a handler and returns a function that removes it.
	Register(h Handler) (unregister func())

	// Dispatch delivers msg to every registered handler in registration order.
	Dispatch(msg protocol.Inbound)

	// Stats returns current dispatch statistics.
	Stats() BusStats
}

// BusStats contains runtime statistics.
type BusStats struct {
	Dispatched    int64
	HandlerPanics int64
}

// bus is the internal implementation.
type bus struct {
	logger *slog.Logger

	mu       sync.RWMutex
	handlers []registration
	nextID   uint64

	dispatched atomic.Int64
	panics     atomic.Int64
}

type registration struct {
	id uint64
	fn Handler
}

// NewBus creates a new dispatch bus.
func NewBus(logger *slog.Logger) Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &bus{logger: logger}
}

// Register adds a handler. The returned function removes it again; calling
// it more than once is harmless.
func (b *bus) Register(h Handler) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers = append(b.handlers, registration{id: id, fn: h})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, reg := range b.handlers {
			if reg.id == id {
				b.handlers = append(b.handlers[:i], b.handlers[i+1:]...)
				return
			}
		}
	}
}

// Dispatch delivers msg to every handler registered at the time of the call.
// A handler removed mid-dispatch still receives the current message.
func (b *bus) Dispatch(msg protocol.Inbound) {
	b.mu.RLock()
	snapshot := make([]registration, len(b.handlers))
	copy(snapshot, b.handlers)
	b.mu.RUnlock()

	for _, reg := range snapshot {
		b.invoke(reg.fn, msg)
	}

	b.dispatched.Add(1)
}

// invoke runs one handler, converting a panic into a log entry.
func (b *bus) invoke(h Handler, msg protocol.Inbound) {
	defer func() {
		if r := recover(); r != nil {
			b.panics.Add(1)
			metrics.HandlerPanic(string(msg.MessageType()))
			b.logger.Error("feed handler panicked",
				"type", msg.MessageType(),
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()

	h(msg)
}

// Stats returns current statistics.
func (b *bus) Stats() BusStats {
	return BusStats{
		Dispatched:    b.dispatched.Load(),
		HandlerPanics: b.panics.Load(),
	}
}

package subscription

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/openpredict/termfeed/internal/metrics"
	"github.com/openpredict/termfeed/internal/model"
	"github.com/openpredict/termfeed/internal/protocol"
)

// Sender transmits an encoded command frame over the live session.
// Send fails when no transport is open; the registry treats that as
// recorded intent and relies on the reconnect replay.
type Sender interface {
	Send(frame []byte) error
}

// Registry is the desired-subscription set.
type Registry interface {
	// Subscribe records interest in a channel and sends the wire command
	// if a sender is attached. Repeat calls with the same key are no-ops.
	Subscribe(sub model.Subscription) error

	// Unsubscribe removes a channel and sends the wire command if a sender
	// is attached. Unknown keys are no-ops.
	Unsubscribe(sub model.Subscription) error

	// Contains reports whether the channel is currently registered.
	Contains(sub model.Subscription) bool

	// Active returns the registered subscriptions in insertion order.
	Active() []model.Subscription

	// Commands returns the encoded subscribe frames in insertion order,
	// ready for replay after a reconnect.
	Commands() [][]byte

	// Len returns the number of registered subscriptions.
	Len() int

	// SetSender attaches the session used for wire commands.
	SetSender(s Sender)
}

// entry pairs a subscription with its pre-encoded subscribe frame.
type entry struct {
	sub   model.Subscription
	frame []byte
}

// registry is the internal implementation.
type registry struct {
	logger *slog.Logger

	mu      sync.Mutex
	entries []entry
	keys    map[string]struct{}
	sender  Sender
}

// NewRegistry creates an empty subscription registry.
func NewRegistry(logger *slog.Logger) Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &registry{
		logger: logger,
		keys:   make(map[string]struct{}),
	}
}

// Subscribe records interest in a channel. The subscribe frame is encoded
// up front so replay cannot fail later.
func (r *registry) Subscribe(sub model.Subscription) error {
	frame, err := protocol.EncodeSubscribe(sub)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", sub.Key(), err)
	}

	key := sub.Key()

	r.mu.Lock()
	if _, ok := r.keys[key]; ok {
		r.mu.Unlock()
		return nil
	}
	r.keys[key] = struct{}{}
	r.entries = append(r.entries, entry{sub: sub, frame: frame})
	n := len(r.entries)
	sender := r.sender
	r.mu.Unlock()

	metrics.SetActiveSubscriptions(n)
	r.logger.Debug("subscription added", "key", key)

	if sender == nil {
		return nil
	}
	if err := sender.Send(frame); err != nil {
		// Intent stays recorded; the on-open replay catches up.
		r.logger.Warn("subscribe command not sent", "key", key, "error", err)
	}
	return nil
}

// Unsubscribe removes a channel regardless of how many consumers asked for
// it; fan-out to multiple consumers happens at the dispatch bus, not here.
func (r *registry) Unsubscribe(sub model.Subscription) error {
	key := sub.Key()

	r.mu.Lock()
	if _, ok := r.keys[key]; !ok {
		r.mu.Unlock()
		return nil
	}
	delete(r.keys, key)

	var stored model.Subscription
	for i, e := range r.entries {
		if e.sub.Key() == key {
			stored = e.sub
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			break
		}
	}
	n := len(r.entries)
	sender := r.sender
	r.mu.Unlock()

	metrics.SetActiveSubscriptions(n)
	r.logger.Debug("subscription removed", "key", key)

	if sender == nil {
		return nil
	}
	frame, err := protocol.EncodeUnsubscribe(stored)
	if err != nil {
		return fmt.Errorf("unsubscribe %s: %w", key, err)
	}
	if err := sender.Send(frame); err != nil {
		r.logger.Warn("unsubscribe command not sent", "key", key, "error", err)
	}
	return nil
}

// Contains reports whether the channel is currently registered.
func (r *registry) Contains(sub model.Subscription) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.keys[sub.Key()]
	return ok
}

// Active returns the registered subscriptions in insertion order.
func (r *registry) Active() []model.Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]model.Subscription, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.sub
	}
	return out
}

// Commands returns the encoded subscribe frames in insertion order.
func (r *registry) Commands() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([][]byte, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.frame
	}
	return out
}

// Len returns the number of registered subscriptions.
func (r *registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// SetSender attaches the session used for wire commands.
func (r *registry) SetSender(s Sender) {
	r.mu.Lock()
	r.sender = s
	r.mu.Unlock()
}

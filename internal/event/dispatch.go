package event

import (
	"context"
	"sync"

	"github.com/capitalize-ai/whatsapp-platform/internal/model"
)

// Handler processes the data of a canonical event.
type Handler func(ctx context.Context, data model.EventData) error

// Subscription identifies one registered handler. Function values are not
// comparable in Go, so the subscription token is the handler's identity:
// holding it is what allows deregistration, and a token can only ever be
// registered once.
type Subscription struct {
	typ     model.EventType
	handler Handler
}

// Type returns the event type the subscription is registered for.
func (s *Subscription) Type() model.EventType {
	return s.typ
}

// Dispatcher routes canonical events to registered handlers. Handlers for a
// type run sequentially in registration order; the first handler error
// aborts the remainder of the emit and is returned to the caller, who owns
// the propagation policy.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[model.EventType][]*Subscription
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[model.EventType][]*Subscription),
	}
}

// On registers handler for typ and returns its subscription token.
func (d *Dispatcher) On(typ model.EventType, handler Handler) *Subscription {
	sub := &Subscription{typ: typ, handler: handler}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[typ] = append(d.handlers[typ], sub)
	return sub
}

// Off deregisters the subscription. Unknown or already-removed tokens are a
// no-op.
func (d *Dispatcher) Off(sub *Subscription) {
	if sub == nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	subs := d.handlers[sub.typ]
	for i, s := range subs {
		if s == sub {
			d.handlers[sub.typ] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// HandlerCount returns the number of handlers registered for typ.
func (d *Dispatcher) HandlerCount(typ model.EventType) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.handlers[typ])
}

// Emit invokes every handler registered for the event's type, awaiting each
// before starting the next. No registered handlers is a no-op. A handler
// error stops the chain immediately.
func (d *Dispatcher) Emit(ctx context.Context, ev model.Event) error {
	d.mu.RLock()
	subs := make([]*Subscription, len(d.handlers[ev.Type]))
	copy(subs, d.handlers[ev.Type])
	d.mu.RUnlock()

	for _, sub := range subs {
		if err := sub.handler(ctx, ev.Data); err != nil {
			return err
		}
	}
	return nil
}

package events

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/stubborncoder/vdocs/internal/verrors"
)

// Bus is a small, typed, in-process event bus used for cross-component
// notifications that are not part of a single run's ProgressEvent stream
// (e.g. the Job Registry notifying adapters that a job reached a terminal
// state). It is not durable and is not a substitute for the Job Registry's
// own persisted records.
type Bus struct {
	mu       sync.RWMutex
	subs     map[reflect.Type]map[uint64]*subscriber
	nextID   atomic.Uint64
	isClosed atomic.Bool
	once     sync.Once
}

type subscriber struct {
	send  func(ctx context.Context, evt any) error
	close func()
}

// NewBus constructs an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[reflect.Type]map[uint64]*subscriber)}
}

// Subscribe registers a subscription for events of type T. For concrete T,
// only events of that exact type are delivered.
func Subscribe[T any](b *Bus, buffer int) (<-chan T, func()) {
	eventType := reflect.TypeFor[T]()
	ch := make(chan T, buffer)

	if b.isClosed.Load() {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID.Add(1)

	var closeOnce sync.Once
	closeChannel := func() { closeOnce.Do(func() { close(ch) }) }

	var unsubOnce sync.Once
	unsubscribe := func() {
		unsubOnce.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if typeSubs, ok := b.subs[eventType]; ok {
				delete(typeSubs, id)
				if len(typeSubs) == 0 {
					delete(b.subs, eventType)
				}
			}
			closeChannel()
		})
	}

	sub := &subscriber{
		send: func(ctx context.Context, evt any) error {
			v, ok := evt.(T)
			if !ok {
				return verrors.Internal("event type mismatch", nil).
					WithContext("expected", eventType.String())
			}
			select {
			case ch <- v:
				return nil
			case <-ctx.Done():
				return verrors.Wrap(ctx.Err(), verrors.CategoryInternal, verrors.SeverityWarning, "event publish canceled")
			}
		},
		close: closeChannel,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.isClosed.Load() {
		closeChannel()
		return ch, func() {}
	}
	if b.subs[eventType] == nil {
		b.subs[eventType] = make(map[uint64]*subscriber)
	}
	b.subs[eventType][id] = sub
	return ch, unsubscribe
}

// Publish delivers evt to every subscriber of its concrete type. Publish
// blocks until each subscriber has accepted the event or ctx is canceled.
func (b *Bus) Publish(ctx context.Context, evt any) error {
	if evt == nil {
		return verrors.InvalidInput("event", "cannot be nil")
	}
	if b.isClosed.Load() {
		return verrors.New(verrors.CategoryInternal, verrors.SeverityWarning, "event bus is closed")
	}

	evtType := reflect.TypeOf(evt)
	b.mu.RLock()
	targets := make([]*subscriber, 0, len(b.subs[evtType]))
	for _, s := range b.subs[evtType] {
		targets = append(targets, s)
	}
	b.mu.RUnlock()

	for _, s := range targets {
		if err := s.send(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the bus and every subscription channel.
func (b *Bus) Close() {
	b.once.Do(func() {
		b.isClosed.Store(true)
		b.mu.Lock()
		toClose := make([]*subscriber, 0)
		for _, typeSubs := range b.subs {
			for _, s := range typeSubs {
				toClose = append(toClose, s)
			}
		}
		b.subs = make(map[reflect.Type]map[uint64]*subscriber)
		b.mu.Unlock()
		for _, s := range toClose {
			s.close()
		}
	})
}

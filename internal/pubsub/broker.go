package pubsub

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultBufferSize is the default channel buffer for subscribers.
const DefaultBufferSize = 64

// BrokerOption configures a Broker.
type BrokerOption[T any] func(*Broker[T])

// WithBufferSize sets the subscriber channel buffer size.
func WithBufferSize[T any](size int) BrokerOption[T] {
	return func(b *Broker[T]) {
		b.bufferSize = size
	}
}

// WithDropPolicy sets whether to drop events when a subscriber is full.
// Window buses disable dropping; message loss there would break a handshake.
func WithDropPolicy[T any](drop bool) BrokerOption[T] {
	return func(b *Broker[T]) {
		b.dropOnFull = drop
	}
}

// WithOnDrop registers a callback invoked for every event dropped on a full subscriber.
func WithOnDrop[T any](fn func(Event[T])) BrokerOption[T] {
	return func(b *Broker[T]) {
		b.onDrop = fn
	}
}

type subscription[T any] struct {
	ch chan Event[T]
}

// Broker fans typed events out to subscribers. Subscriptions end when their
// context is cancelled or the broker shuts down.
type Broker[T any] struct { //nolint:govet // fieldalignment: preserving logical field order
	name       string
	bufferSize int
	dropOnFull bool
	onDrop     func(Event[T])

	mu   sync.RWMutex
	subs map[*subscription[T]]struct{}
	done chan struct{}
	once sync.Once

	published atomic.Int64
	dropped   atomic.Int64
	current   atomic.Int32
	peak      atomic.Int32
}

// NewBroker creates a new typed broker with optional configuration.
func NewBroker[T any](name string, opts ...BrokerOption[T]) *Broker[T] {
	b := &Broker[T]{
		name:       name,
		bufferSize: DefaultBufferSize,
		dropOnFull: true,
		subs:       make(map[*subscription[T]]struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the broker's name.
func (b *Broker[T]) Name() string {
	return b.name
}

// Subscribe returns a channel of events that is closed when ctx is done or
// the broker shuts down.
func (b *Broker[T]) Subscribe(ctx context.Context) <-chan Event[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.IsShutdown() {
		ch := make(chan Event[T])
		close(ch)
		return ch
	}

	sub := &subscription[T]{ch: make(chan Event[T], b.bufferSize)}
	b.subs[sub] = struct{}{}
	b.trackPeak(b.current.Add(1))

	go func() {
		select {
		case <-ctx.Done():
		case <-b.done:
		}
		b.remove(sub)
	}()

	return sub.ch
}

// SubscribeFunc calls fn for every event on a dedicated goroutine until ctx
// is done. The returned channel closes once fn will no longer be called.
func (b *Broker[T]) SubscribeFunc(ctx context.Context, fn func(Event[T])) <-chan struct{} {
	events := b.Subscribe(ctx)
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		for e := range events {
			fn(e)
		}
	}()
	return stopped
}

func (b *Broker[T]) remove(sub *subscription[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub.ch)
	b.current.Add(-1)
}

func (b *Broker[T]) trackPeak(curr int32) {
	for {
		peak := b.peak.Load()
		if curr <= peak || b.peak.CompareAndSwap(peak, curr) {
			return
		}
	}
}

// Publish delivers an event to every subscriber. With the default drop
// policy slow subscribers miss events; otherwise Publish blocks.
func (b *Broker[T]) Publish(eventType EventType, payload T) {
	event := Event[T]{
		Type:      eventType,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	// Holding the read lock while sending keeps remove from closing a
	// channel mid-send.
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.IsShutdown() {
		return
	}
	b.published.Add(1)

	for sub := range b.subs {
		if !b.dropOnFull {
			select {
			case sub.ch <- event:
			case <-b.done:
				return
			}
			continue
		}
		select {
		case sub.ch <- event:
		default:
			b.dropped.Add(1)
			if b.onDrop != nil {
				b.onDrop(event)
			}
		}
	}
}

// PublishAsync publishes an event on a new goroutine.
func (b *Broker[T]) PublishAsync(eventType EventType, payload T) {
	go b.Publish(eventType, payload)
}

// Shutdown closes every subscriber channel. It is safe to call more than once.
func (b *Broker[T]) Shutdown() {
	b.once.Do(func() {
		close(b.done)
	})

	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		delete(b.subs, sub)
		close(sub.ch)
	}
	b.current.Store(0)
}

// IsShutdown returns true if the broker has been shut down.
func (b *Broker[T]) IsShutdown() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

// SubscriberCount returns the current number of subscribers.
func (b *Broker[T]) SubscriberCount() int {
	return int(b.current.Load())
}

// Metrics returns the broker's counters.
func (b *Broker[T]) Metrics() BrokerMetrics {
	return BrokerMetrics{
		Name:            b.name,
		PublishCount:    b.published.Load(),
		DropCount:       b.dropped.Load(),
		SubscriberCount: int(b.current.Load()),
		SubscriberPeak:  int(b.peak.Load()),
	}
}

// BrokerMetrics contains broker statistics.
type BrokerMetrics struct {
	Name            string
	PublishCount    int64
	DropCount       int64
	SubscriberCount int
	SubscriberPeak  int
}

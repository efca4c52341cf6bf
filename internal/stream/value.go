// Package stream provides a latest-value broadcast with explicit subscription lifecycle.
//
// Every subscriber owns a one-slot buffer. When a subscriber falls behind, the
// older pending value is dropped so the buffer always holds the most recent one.
// Publishing is serialized, so all subscribers observe values in the same order.
package stream

import "sync"

// Value holds the latest published value and fans it out to subscribers.
type Value[T any] struct {
	mu     sync.Mutex
	latest T
	has    bool
	closed bool
	subs   map[chan T]struct{}
}

func NewValue[T any]() *Value[T] {
	return &Value[T]{subs: map[chan T]struct{}{}}
}

// Publish stores v and delivers it to every subscriber.
func (v *Value[T]) Publish(val T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.latest = val
	v.has = true
	for ch := range v.subs {
		offer(ch, val)
	}
}

// Latest returns the last published value.
func (v *Value[T]) Latest() (T, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.latest, v.has
}

// Subscribe registers a new subscriber. The latest value, if any, is delivered first.
func (v *Value[T]) Subscribe() *Subscription[T] {
	ch := make(chan T, 1)

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		close(ch)
		return &Subscription[T]{ch: ch, cancel: func() {}}
	}
	if v.has {
		ch <- v.latest
	}
	v.subs[ch] = struct{}{}

	return &Subscription[T]{ch: ch, cancel: func() { v.unsubscribe(ch) }}
}

// Subscribers returns the number of live subscriptions.
func (v *Value[T]) Subscribers() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.subs)
}

// Close ends every subscription. Later publishes are ignored.
func (v *Value[T]) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.closed = true
	for ch := range v.subs {
		close(ch)
		delete(v.subs, ch)
	}
}

func (v *Value[T]) unsubscribe(ch chan T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.subs[ch]; ok {
		delete(v.subs, ch)
		close(ch)
	}
}

// offer performs a drop-oldest send. Callers must be the only sender on ch.
func offer[T any](ch chan T, val T) {
	select {
	case ch <- val:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- val:
	default:
	}
}

// Subscription is a receive side of a Value or of a derived stream.
type Subscription[T any] struct {
	ch        <-chan T
	closeOnce sync.Once
	cancel    func()
}

// C returns the delivery channel. It is closed when the subscription ends.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription[T]) Close() {
	s.closeOnce.Do(s.cancel)
}

// Map derives a subscription whose values are f applied to src's values.
// Closing the derived subscription closes src.
func Map[T, R any](src *Subscription[T], f func(T) R) *Subscription[R] {
	out := make(chan R, 1)
	go func() {
		defer close(out)
		for val := range src.C() {
			offer(out, f(val))
		}
	}()
	return &Subscription[R]{ch: out, cancel: src.Close}
}

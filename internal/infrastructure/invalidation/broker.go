// Package invalidation tracks which views are stale. Each key carries a
// version that increases on every Invalidate; readers compare versions to
// decide whether to re-fetch, and subscribers are told about new versions.
package invalidation

import (
	"context"
	"errors"
	"sync"

	"todoapp/internal/domain/todo"
)

var ErrClosed = errors.New("invalidation broker closed")

type Broker struct {
	mu       sync.Mutex
	versions map[string]uint64
	subs     map[string]map[*subscription]struct{}
	closed   bool
}

type subscription struct {
	ch chan uint64
}

var _ todo.Invalidator = (*Broker)(nil)

func NewBroker() *Broker {
	return &Broker{
		versions: make(map[string]uint64),
		subs:     make(map[string]map[*subscription]struct{}),
	}
}

// Invalidate bumps the version of key and notifies its subscribers.
// Subscribers that have not drained the previous signal only keep the newest version.
func (b *Broker) Invalidate(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	b.versions[key]++
	v := b.versions[key]

	for s := range b.subs[key] {
		select {
		case s.ch <- v:
		default:
			// drop the stale pending version, then deliver the new one
			select {
			case <-s.ch:
			default:
			}
			s.ch <- v
		}
	}
	return nil
}

// Version returns the current version of key. Zero means never invalidated.
func (b *Broker) Version(key string) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.versions[key]
}

// Subscribe returns a channel receiving new versions of key and a cancel func.
// The channel is closed by cancel or Close.
func (b *Broker) Subscribe(key string) (<-chan uint64, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := &subscription{ch: make(chan uint64, 1)}
	if b.closed {
		close(s.ch)
		return s.ch, func() {}
	}

	if b.subs[key] == nil {
		b.subs[key] = make(map[*subscription]struct{})
	}
	b.subs[key][s] = struct{}{}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[key][s]; ok {
				delete(b.subs[key], s)
				close(s.ch)
			}
		})
	}
	return s.ch, cancel
}

// Close closes every subscription. Later Invalidate calls return ErrClosed.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for key, set := range b.subs {
		for s := range set {
			close(s.ch)
		}
		delete(b.subs, key)
	}
}

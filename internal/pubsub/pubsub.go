// Package pubsub provides a small typed publisher for fanning events out to any number of
// subscribers over channels. Slow subscribers never block the publisher: a send that cannot be
// buffered is dropped for that subscriber only.
package pubsub

import "sync"

type Receiver[T any] interface {
	Receive() <-chan T
}

type Closer interface {
	Close()
}

type ReceiverCloser[T any] interface {
	Receiver[T]
	Closer
}

const DefaultSubscriberBufSize = 16

type Publisher[T any] struct {
	mu          sync.Mutex
	subscribers map[*subscription[T]]struct{}
	closed      bool
}

func NewPublisher[T any]() *Publisher[T] {
	return &Publisher[T]{subscribers: make(map[*subscription[T]]struct{})}
}

// Subscribe registers a new subscriber. The returned ReceiverCloser must be closed when no
// longer needed, or the publisher will keep delivering into its buffer.
func (p *Publisher[T]) Subscribe() ReceiverCloser[T] {
	return p.SubscribeBufSize(DefaultSubscriberBufSize)
}

func (p *Publisher[T]) SubscribeBufSize(bufSize int) ReceiverCloser[T] {
	s := &subscription[T]{publisher: p, ch: make(chan T, bufSize)}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		close(s.ch)
		s.closed = true
		return s
	}
	p.subscribers[s] = struct{}{}
	return s
}

// Send delivers the value to every subscriber that has buffer space, returning false once the
// publisher is closed.
func (p *Publisher[T]) Send(msg T) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	for s := range p.subscribers {
		select {
		case s.ch <- msg:
		default:
			// Buffer full; the subscriber misses this message rather than stalling everyone.
		}
	}
	return true
}

// Close idempotently shuts down the publisher, closing all subscriber channels.
func (p *Publisher[T]) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for s := range p.subscribers {
		s.closed = true
		close(s.ch)
		delete(p.subscribers, s)
	}
}

type subscription[T any] struct {
	publisher *Publisher[T]
	ch        chan T
	closed    bool
}

func (s *subscription[T]) Receive() <-chan T {
	return s.ch
}

func (s *subscription[T]) Close() {
	s.publisher.mu.Lock()
	defer s.publisher.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
	delete(s.publisher.subscribers, s)
}

package session

import (
	"sync"

	"github.com/slok/deploywatch/internal/model"
)

// subscriber delivers updates to a single observer. Updates are queued without
// bound so a slow observer never blocks the polling loop.
type subscriber struct {
	mu     sync.Mutex
	queue  []model.Update
	closed bool

	signal chan struct{}
	stop   chan struct{}
	out    chan model.Update
}

func newSubscriber() *subscriber {
	s := &subscriber{
		signal: make(chan struct{}, 1),
		stop:   make(chan struct{}),
		out:    make(chan model.Update),
	}
	go s.pump()
	return s
}

func (s *subscriber) push(u model.Update) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, u)
	s.mu.Unlock()

	s.notify()
}

// close ends the subscription once the queued updates are delivered.
func (s *subscriber) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.notify()
}

// abort ends the subscription dropping any queued update.
func (s *subscriber) abort() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
	}
	s.queue = nil
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
}

func (s *subscriber) notify() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *subscriber) pump() {
	defer close(s.out)

	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return
			}

			select {
			case <-s.signal:
			case <-s.stop:
				return
			}
			continue
		}

		u := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- u:
		case <-s.stop:
			return
		}
	}
}

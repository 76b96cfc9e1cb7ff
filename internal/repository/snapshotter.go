package repository

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"groupcart/pkg/log"
	"groupcart/pkg/utils"
)

// Persister is what in-memory stores call after every mutation
type Persister interface {
	Persist(name string, v interface{})
}

// Snapshotter writes snapshots in the background. Persist encodes the value
// immediately so later mutations cannot leak into it, then hands the bytes
// to a single writer goroutine. Pending writes for the same name coalesce,
// so only the newest payload of a burst reaches the store.
type Snapshotter struct {
	store   SnapshotStore
	timeout time.Duration
	onError func(name string, err error)

	mu      sync.Mutex
	cond    *sync.Cond
	pending map[string][]byte
	order   []string
	writing bool
	closed  bool
	wake    chan struct{}
	done    chan struct{}
}

// SnapshotterOption configures a Snapshotter
type SnapshotterOption func(*Snapshotter)

// WithWriteTimeout bounds each store write
func WithWriteTimeout(d time.Duration) SnapshotterOption {
	return func(s *Snapshotter) {
		s.timeout = d
	}
}

// WithErrorHook is called for every failed write, e.g. to count failures
func WithErrorHook(fn func(name string, err error)) SnapshotterOption {
	return func(s *Snapshotter) {
		s.onError = fn
	}
}

// NewSnapshotter starts the writer goroutine
func NewSnapshotter(store SnapshotStore, opts ...SnapshotterOption) *Snapshotter {
	s := &Snapshotter{
		store:   store,
		timeout: 5 * time.Second,
		pending: make(map[string][]byte),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	for _, opt := range opts {
		opt(s)
	}

	go s.run()
	return s
}

// Persist schedules v to be written under name. Failures are logged and
// never surface to the caller.
func (s *Snapshotter) Persist(name string, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		s.fail(name, utils.WrapError(err, utils.CodePersistence, "encode snapshot"))
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		log.WithField("snapshot", name).Warn("Snapshot dropped after shutdown")
		return
	}
	if _, queued := s.pending[name]; !queued {
		s.order = append(s.order, name)
	}
	s.pending[name] = payload

	// sent under the lock so Close cannot close wake in between
	select {
	case s.wake <- struct{}{}:
	default:
	}
	s.mu.Unlock()
}

// Flush blocks until every scheduled write has been attempted
func (s *Snapshotter) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.pending) > 0 || s.writing {
		s.cond.Wait()
	}
}

// Close flushes pending writes and stops the writer
func (s *Snapshotter) Close() {
	s.Flush()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.wake)
	s.mu.Unlock()

	<-s.done
}

func (s *Snapshotter) run() {
	defer close(s.done)

	for range s.wake {
		for {
			s.mu.Lock()
			if len(s.order) == 0 {
				s.writing = false
				s.cond.Broadcast()
				s.mu.Unlock()
				break
			}
			name := s.order[0]
			s.order = s.order[1:]
			payload := s.pending[name]
			delete(s.pending, name)
			s.writing = true
			s.mu.Unlock()

			s.write(name, payload)
		}
	}
}

func (s *Snapshotter) write(name string, payload []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.store.Save(ctx, name, payload); err != nil {
		s.fail(name, utils.WrapError(err, utils.CodePersistence, "write snapshot"))
	}
}

func (s *Snapshotter) fail(name string, err error) {
	log.WithFields(log.Fields{
		"snapshot": name,
		"error":    err.Error(),
	}).Error("Failed to persist snapshot")

	if s.onError != nil {
		s.onError(name, err)
	}
}

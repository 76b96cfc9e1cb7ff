package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"groupcart/pkg/log"
)

// MemoryQueue in-process topic queue, one subscriber per topic
type MemoryQueue struct {
	config *MemoryQueueConfig
	mu     sync.RWMutex
	topics map[string]*topic
	closed bool
	wg     sync.WaitGroup

	sent    atomic.Int64
	recv    atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64
}

type topic struct {
	name       string
	messages   chan []byte
	subscribed bool
}

// MemoryQueueConfig memory queue configuration
type MemoryQueueConfig struct {
	BufferSize int           `json:"buffer_size"`
	Timeout    time.Duration `json:"timeout"`
}

// NewMemoryQueue creates a new memory queue instance
func NewMemoryQueue(config *MemoryQueueConfig) *MemoryQueue {
	if config == nil {
		config = &MemoryQueueConfig{}
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 256
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}

	return &MemoryQueue{
		config: config,
		topics: make(map[string]*topic),
	}
}

// topicLocked must be called with mq.mu held for writing
func (mq *MemoryQueue) topicLocked(name string) *topic {
	t, exists := mq.topics[name]
	if !exists {
		t = &topic{
			name:     name,
			messages: make(chan []byte, mq.config.BufferSize),
		}
		mq.topics[name] = t
	}
	return t
}

func (mq *MemoryQueue) getTopic(name string) (*topic, error) {
	mq.mu.RLock()
	if mq.closed {
		mq.mu.RUnlock()
		return nil, ErrQueueClosed
	}
	t, ok := mq.topics[name]
	mq.mu.RUnlock()
	if ok {
		return t, nil
	}

	mq.mu.Lock()
	defer mq.mu.Unlock()
	if mq.closed {
		return nil, ErrQueueClosed
	}
	return mq.topicLocked(name), nil
}

// Publish publishes a message to the queue, waiting up to the configured timeout
func (mq *MemoryQueue) Publish(ctx context.Context, topicName string, message []byte) error {
	t, err := mq.getTopic(topicName)
	if err != nil {
		return err
	}

	// the read lock keeps Close from closing the channel under us
	mq.mu.RLock()
	defer mq.mu.RUnlock()
	if mq.closed {
		return ErrQueueClosed
	}

	timer := time.NewTimer(mq.config.Timeout)
	defer timer.Stop()

	select {
	case t.messages <- message:
		mq.sent.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrPublishTimeout
	}
}

// TryPublish publishes a message if buffer space is available
func (mq *MemoryQueue) TryPublish(topicName string, message []byte) error {
	t, err := mq.getTopic(topicName)
	if err != nil {
		return err
	}

	mq.mu.RLock()
	defer mq.mu.RUnlock()
	if mq.closed {
		return ErrQueueClosed
	}

	select {
	case t.messages <- message:
		mq.sent.Add(1)
		return nil
	default:
		mq.dropped.Add(1)
		return ErrTopicFull
	}
}

// Subscribe starts a goroutine delivering the topic's messages to handler
// until ctx is cancelled or the queue is closed.
func (mq *MemoryQueue) Subscribe(ctx context.Context, topicName string, handler MessageHandler) error {
	mq.mu.Lock()
	defer mq.mu.Unlock()

	if mq.closed {
		return ErrQueueClosed
	}

	t := mq.topicLocked(topicName)
	if t.subscribed {
		return ErrAlreadySubscribed
	}
	t.subscribed = true

	mq.wg.Add(1)
	go func() {
		defer mq.wg.Done()
		for {
			select {
			case message, ok := <-t.messages:
				if !ok {
					return
				}
				mq.recv.Add(1)
				if err := handler(ctx, topicName, message); err != nil {
					mq.failed.Add(1)
					log.WithFields(log.Fields{
						"topic": topicName,
						"error": err.Error(),
					}).Warn("Queue handler failed")
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Close closes every topic and waits for subscribers to drain
func (mq *MemoryQueue) Close() error {
	mq.mu.Lock()
	if mq.closed {
		mq.mu.Unlock()
		return nil
	}
	mq.closed = true
	for _, t := range mq.topics {
		close(t.messages)
	}
	mq.mu.Unlock()

	mq.wg.Wait()
	return nil
}

// Health checks the health of the queue
func (mq *MemoryQueue) Health() error {
	mq.mu.RLock()
	defer mq.mu.RUnlock()

	if mq.closed {
		return ErrQueueClosed
	}
	return nil
}

// GetStats returns queue statistics
func (mq *MemoryQueue) GetStats() Stats {
	mq.mu.RLock()
	defer mq.mu.RUnlock()

	return Stats{
		Topics:       len(mq.topics),
		Connected:    !mq.closed,
		MessagesSent: mq.sent.Load(),
		MessagesRecv: mq.recv.Load(),
		Dropped:      mq.dropped.Load(),
		Failed:       mq.failed.Load(),
	}
}

package queue

import (
	"context"
	"errors"
)

// Queue defines the interface for message queue operations
type Queue interface {
	// Publish publishes a message to the specified topic, waiting for buffer space
	Publish(ctx context.Context, topic string, message []byte) error

	// TryPublish publishes without waiting, ErrTopicFull when the buffer is full
	TryPublish(topic string, message []byte) error

	// Subscribe subscribes to messages from the specified topic
	Subscribe(ctx context.Context, topic string, handler MessageHandler) error

	// Close closes the queue
	Close() error

	// Health checks the health of the queue
	Health() error
}

// MessageHandler handles incoming messages
type MessageHandler func(ctx context.Context, topic string, message []byte) error

// Stats represents queue statistics
type Stats struct {
	Topics       int   `json:"topics"`
	Connected    bool  `json:"connected"`
	MessagesSent int64 `json:"messages_sent"`
	MessagesRecv int64 `json:"messages_received"`
	Dropped      int64 `json:"dropped"`
	Failed       int64 `json:"failed"`
}

// Common errors
var (
	ErrQueueClosed       = errors.New("queue is closed")
	ErrTopicFull         = errors.New("topic buffer is full")
	ErrPublishTimeout    = errors.New("publish timeout")
	ErrAlreadySubscribed = errors.New("topic already has a subscriber")
)

package notification

import (
	"context"
	"strings"
	"sync"
	"time"

	"groupcart/internal/model"
	"groupcart/internal/monitor"
	"groupcart/internal/repository"
	"groupcart/pkg/log"
	"groupcart/pkg/snowflake"
	"groupcart/pkg/utils"
)

const bellPrefix = "🔔 "

// NotificationService append-only notification ledger
type NotificationService interface {
	// Create appends a generic notification; type defaults to "info"
	Create(ctx context.Context, target, message, kind string) (*model.Notification, error)

	// Append stores a prepared notification verbatim, assigning id and
	// timestamp when unset
	Append(ctx context.Context, n model.Notification) model.Notification

	// ListFor returns the target's notifications in insertion order
	ListFor(ctx context.Context, target string) []model.Notification

	// MarkRead flips the read flag
	MarkRead(ctx context.Context, id int64) (*model.Notification, error)

	// Restore replaces the ledger with a loaded snapshot
	Restore(items []model.Notification)
}

// notificationService notification service implementation
type notificationService struct {
	mu        sync.RWMutex
	items     []*model.Notification
	byID      map[int64]*model.Notification
	ids       *snowflake.IDGenerator
	persister repository.Persister
	metrics   *monitor.MetricsCollector
	now       func() time.Time
}

// NewNotificationService creates a notification ledger
func NewNotificationService(ids *snowflake.IDGenerator, persister repository.Persister, metrics *monitor.MetricsCollector) NotificationService {
	return &notificationService{
		byID:      make(map[int64]*model.Notification),
		ids:       ids,
		persister: persister,
		metrics:   metrics,
		now:       time.Now,
	}
}

func (s *notificationService) Create(ctx context.Context, target, message, kind string) (*model.Notification, error) {
	target = strings.TrimSpace(target)
	if target == "" || strings.TrimSpace(message) == "" {
		return nil, utils.Validation("user_id and message are required")
	}
	if kind == "" {
		kind = model.NotificationInfo
	}

	n := s.Append(ctx, model.Notification{
		UserID:  target,
		Message: bellPrefix + message,
		Type:    kind,
	})
	return &n, nil
}

func (s *notificationService) Append(ctx context.Context, n model.Notification) model.Notification {
	if n.ID == 0 {
		n.ID = s.ids.NextID()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = s.now().UTC()
	}
	n.IsRead = false

	s.mu.Lock()
	stored := n
	s.items = append(s.items, &stored)
	s.byID[n.ID] = &stored
	s.persistLocked()
	s.mu.Unlock()

	s.metrics.RecordNotification(n.Type)
	log.WithFields(log.Fields{
		"id":      n.ID,
		"user_id": n.UserID,
		"type":    n.Type,
	}).Info("Notification created")

	return n
}

func (s *notificationService) ListFor(ctx context.Context, target string) []model.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Notification, 0)
	for _, n := range s.items {
		if n.UserID == target {
			out = append(out, *n)
		}
	}
	return out
}

func (s *notificationService) MarkRead(ctx context.Context, id int64) (*model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.byID[id]
	if !ok {
		return nil, utils.NotFound("Notification not found")
	}
	if !n.IsRead {
		n.IsRead = true
		s.persistLocked()
	}

	out := *n
	return &out, nil
}

func (s *notificationService) Restore(items []model.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make([]*model.Notification, 0, len(items))
	s.byID = make(map[int64]*model.Notification, len(items))
	for i := range items {
		n := items[i]
		if _, dup := s.byID[n.ID]; dup || n.ID == 0 {
			continue
		}
		s.items = append(s.items, &n)
		s.byID[n.ID] = &n
	}
}

func (s *notificationService) persistLocked() {
	if s.persister == nil {
		return
	}
	items := make([]model.Notification, 0, len(s.items))
	for _, n := range s.items {
		items = append(items, *n)
	}
	s.persister.Persist(repository.SnapshotNotifications, items)
}

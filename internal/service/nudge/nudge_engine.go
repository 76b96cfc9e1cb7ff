package nudge

import (
	"context"
	"strings"
	"sync"
	"time"

	"groupcart/internal/model"
	"groupcart/internal/monitor"
	"groupcart/internal/service/conversation"
	"groupcart/internal/service/notification"
	"groupcart/pkg/log"
)

// Defaults applied when Config leaves a field zero
const (
	DefaultHistorySize = 10
	DefaultThreshold   = 0.4
	DefaultCooldown    = 5 * time.Minute
)

// Outcome result of one evaluation
type Outcome string

const (
	OutcomeEmpty      Outcome = "empty"
	OutcomeError      Outcome = "error"
	OutcomeRejected   Outcome = "rejected"
	OutcomeSuppressed Outcome = "suppressed"
	OutcomeSent       Outcome = "sent"
)

// Theme detector verdict for a conversation summary
type Theme struct {
	Theme      string  `json:"theme"`
	Similarity float64 `json:"similarity"`
	Nudge      string  `json:"nudge"`
}

// ThemeDetector nudge theme collaborator
type ThemeDetector interface {
	Detect(ctx context.Context, summary string) (*Theme, error)
}

// Broadcaster delivers an event to every socket in a room
type Broadcaster interface {
	Broadcast(roomID, event string, data interface{})
}

// Config engine tuning
type Config struct {
	HistorySize int
	// Threshold minimum theme similarity; zero accepts any theme and a
	// negative value selects DefaultThreshold
	Threshold float64
	Cooldown  time.Duration
}

// Engine decides whether a room gets a proactive nudge
type Engine interface {
	Evaluate(ctx context.Context, roomID string) Outcome
}

// roomState is Idle while lastTime is zero or older than the cooldown, and
// Suppressed for lastTheme until the cooldown elapses
type roomState struct {
	lastTheme string
	lastTime  time.Time
}

type engine struct {
	cfg           Config
	window        conversation.Window
	detector      ThemeDetector
	notifications notification.NotificationService
	broadcaster   Broadcaster
	metrics       *monitor.MetricsCollector
	now           func() time.Time

	mu     sync.Mutex
	states map[string]*roomState
}

// NewEngine creates a nudge engine
func NewEngine(
	cfg Config,
	window conversation.Window,
	detector ThemeDetector,
	notifications notification.NotificationService,
	broadcaster Broadcaster,
	metrics *monitor.MetricsCollector,
) Engine {
	return newEngine(cfg, window, detector, notifications, broadcaster, metrics, time.Now)
}

func newEngine(
	cfg Config,
	window conversation.Window,
	detector ThemeDetector,
	notifications notification.NotificationService,
	broadcaster Broadcaster,
	metrics *monitor.MetricsCollector,
	now func() time.Time,
) *engine {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultHistorySize
	}
	if cfg.Threshold < 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	return &engine{
		cfg:           cfg,
		window:        window,
		detector:      detector,
		notifications: notifications,
		broadcaster:   broadcaster,
		metrics:       metrics,
		now:           now,
		states:        make(map[string]*roomState),
	}
}

func (e *engine) Evaluate(ctx context.Context, roomID string) Outcome {
	outcome := e.evaluate(ctx, roomID)
	e.metrics.RecordNudge(string(outcome))
	return outcome
}

func (e *engine) evaluate(ctx context.Context, roomID string) Outcome {
	summary := strings.TrimSpace(strings.Join(e.window.Activity(roomID, e.cfg.HistorySize), " "))
	if summary == "" || e.detector == nil {
		return OutcomeEmpty
	}

	theme, err := e.detector.Detect(ctx, summary)
	if err != nil {
		log.WithFields(log.Fields{
			"room_id": roomID,
			"error":   err.Error(),
		}).Warn("Failed to detect nudge theme")
		return OutcomeError
	}
	if theme == nil || strings.TrimSpace(theme.Nudge) == "" || theme.Similarity < e.cfg.Threshold {
		return OutcomeRejected
	}

	now := e.now()

	e.mu.Lock()
	state, ok := e.states[roomID]
	if !ok {
		state = &roomState{}
		e.states[roomID] = state
	}
	if state.lastTheme == theme.Theme && !state.lastTime.IsZero() && now.Sub(state.lastTime) < e.cfg.Cooldown {
		e.mu.Unlock()
		log.WithFields(log.Fields{
			"room_id": roomID,
			"theme":   theme.Theme,
		}).Debug("Nudge suppressed during cooldown")
		return OutcomeSuppressed
	}
	state.lastTheme = theme.Theme
	state.lastTime = now
	e.mu.Unlock()

	n := e.notifications.Append(ctx, model.Notification{
		UserID:    roomID,
		Message:   theme.Nudge,
		Type:      model.NotificationNudge,
		Timestamp: now.UTC(),
	})

	if e.broadcaster != nil {
		e.broadcaster.Broadcast(roomID, model.EventNudge, model.NudgeEvent{
			Nudge:     theme.Nudge,
			Theme:     theme.Theme,
			Timestamp: n.Timestamp,
			ID:        n.ID,
		})
	}

	log.WithFields(log.Fields{
		"room_id":    roomID,
		"theme":      theme.Theme,
		"similarity": theme.Similarity,
	}).Info("Nudge sent")

	return OutcomeSent
}

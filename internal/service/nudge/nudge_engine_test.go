package nudge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"groupcart/internal/model"
	"groupcart/internal/service/conversation"
	"groupcart/internal/service/notification"
	"groupcart/pkg/snowflake"
)

// MockDetector mock theme detector
type MockDetector struct {
	mock.Mock
}

func (m *MockDetector) Detect(ctx context.Context, summary string) (*Theme, error) {
	args := m.Called(ctx, summary)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Theme), args.Error(1)
}

type broadcast struct {
	roomID string
	event  string
	data   interface{}
}

type recordingBroadcaster struct {
	mu   sync.Mutex
	sent []broadcast
}

func (b *recordingBroadcaster) Broadcast(roomID, event string, data interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, broadcast{roomID, event, data})
}

type fixture struct {
	engine        *engine
	window        conversation.Window
	detector      *MockDetector
	notifications notification.NotificationService
	broadcaster   *recordingBroadcaster
	clock         time.Time
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithConfig(t, Config{Threshold: -1})
}

func newFixtureWithConfig(t *testing.T, cfg Config) *fixture {
	ids, err := snowflake.NewIDGenerator(1)
	require.NoError(t, err)

	f := &fixture{
		window:        conversation.NewWindow(20),
		detector:      new(MockDetector),
		notifications: notification.NewNotificationService(ids, nil, nil),
		broadcaster:   &recordingBroadcaster{},
		clock:         time.Date(2025, 10, 20, 18, 0, 0, 0, time.UTC),
	}
	f.engine = newEngine(cfg, f.window, f.detector, f.notifications, f.broadcaster, nil, func() time.Time { return f.clock })
	return f
}

func (f *fixture) say(roomID, text string) {
	f.window.Append(model.Message{Username: "alice", Text: text, RoomID: roomID})
}

var diwali = &Theme{Theme: "diwali", Similarity: 0.7, Nudge: "Diwali is close, light up the cart!"}

func TestEvaluateSends(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.say("festive-123", "diwali lights")
	f.say("festive-123", "and sweets")
	f.say("travel-9", "beach bag")

	f.detector.On("Detect", mock.Anything, "diwali lights and sweets").Return(diwali, nil).Once()

	assert.Equal(t, OutcomeSent, f.engine.Evaluate(ctx, "festive-123"))

	stored := f.notifications.ListFor(ctx, "festive-123")
	require.Len(t, stored, 1)
	assert.Equal(t, "Diwali is close, light up the cart!", stored[0].Message)
	assert.Equal(t, model.NotificationNudge, stored[0].Type)

	require.Len(t, f.broadcaster.sent, 1)
	sent := f.broadcaster.sent[0]
	assert.Equal(t, "festive-123", sent.roomID)
	assert.Equal(t, model.EventNudge, sent.event)
	ev := sent.data.(model.NudgeEvent)
	assert.Equal(t, "diwali", ev.Theme)
	assert.Equal(t, stored[0].ID, ev.ID)
	assert.Equal(t, f.clock, ev.Timestamp)

	f.detector.AssertExpectations(t)
}

func TestEvaluateSummaryUsesLastTen(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 12; i++ {
		f.say("r", string(rune('a'+i)))
	}
	f.detector.On("Detect", mock.Anything, "c d e f g h i j k l").Return(nil, errors.New("boom")).Once()

	assert.Equal(t, OutcomeError, f.engine.Evaluate(context.Background(), "r"))
	f.detector.AssertExpectations(t)
}

func TestEvaluateIncludesCartActivity(t *testing.T) {
	f := newFixture(t)
	f.say("r", "need a gift")
	f.window.Append(model.Message{Username: "bob", Text: "bob added Silk Saree to cart", RoomID: "r", Kind: model.EntryCart})

	f.detector.On("Detect", mock.Anything, "need a gift bob added Silk Saree to cart").Return(&Theme{Theme: "gift", Similarity: 0.1, Nudge: "x"}, nil).Once()
	assert.Equal(t, OutcomeRejected, f.engine.Evaluate(context.Background(), "r"))
}

func TestEvaluateNoOps(t *testing.T) {
	ctx := context.Background()

	t.Run("EmptyRoom", func(t *testing.T) {
		f := newFixture(t)
		assert.Equal(t, OutcomeEmpty, f.engine.Evaluate(ctx, "quiet"))
		f.detector.AssertNotCalled(t, "Detect", mock.Anything, mock.Anything)
	})

	tests := []struct {
		name  string
		theme *Theme
	}{
		{"LowSimilarity", &Theme{Theme: "diwali", Similarity: 0.39, Nudge: "n"}},
		{"EmptyNudge", &Theme{Theme: "diwali", Similarity: 0.9, Nudge: " "}},
		{"NilTheme", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.say("r", "hello")
			f.detector.On("Detect", mock.Anything, "hello").Return(tt.theme, nil)

			assert.Equal(t, OutcomeRejected, f.engine.Evaluate(ctx, "r"))
			assert.Empty(t, f.broadcaster.sent)
			assert.Empty(t, f.notifications.ListFor(ctx, "r"))
		})
	}

	t.Run("ThresholdIsInclusive", func(t *testing.T) {
		f := newFixture(t)
		f.say("r", "hello")
		f.detector.On("Detect", mock.Anything, "hello").Return(&Theme{Theme: "t", Similarity: 0.4, Nudge: "n"}, nil)
		assert.Equal(t, OutcomeSent, f.engine.Evaluate(ctx, "r"))
	})

	t.Run("ZeroThresholdAcceptsAnyTheme", func(t *testing.T) {
		f := newFixtureWithConfig(t, Config{Threshold: 0})
		f.say("r", "hello")
		f.detector.On("Detect", mock.Anything, "hello").Return(&Theme{Theme: "t", Similarity: 0.01, Nudge: "n"}, nil)
		assert.Equal(t, OutcomeSent, f.engine.Evaluate(ctx, "r"))
	})
}

func TestCooldown(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.say("festive-123", "diwali")

	f.detector.On("Detect", mock.Anything, "diwali").Return(diwali, nil)

	assert.Equal(t, OutcomeSent, f.engine.Evaluate(ctx, "festive-123"))

	f.clock = f.clock.Add(4*time.Minute + 59*time.Second)
	assert.Equal(t, OutcomeSuppressed, f.engine.Evaluate(ctx, "festive-123"))

	f.clock = f.clock.Add(time.Second)
	assert.Equal(t, OutcomeSent, f.engine.Evaluate(ctx, "festive-123"))

	assert.Len(t, f.broadcaster.sent, 2)
	assert.Len(t, f.notifications.ListFor(ctx, "festive-123"), 2)
}

func TestCooldownIsPerThemeAndRoom(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.say("a", "x")
	f.say("b", "y")

	f.detector.On("Detect", mock.Anything, "x").Return(diwali, nil).Once()
	f.detector.On("Detect", mock.Anything, "y").Return(diwali, nil).Once()
	f.detector.On("Detect", mock.Anything, "x").Return(&Theme{Theme: "wedding", Similarity: 0.8, Nudge: "Shaadi season!"}, nil).Once()

	assert.Equal(t, OutcomeSent, f.engine.Evaluate(ctx, "a"))
	assert.Equal(t, OutcomeSent, f.engine.Evaluate(ctx, "b"))
	assert.Equal(t, OutcomeSent, f.engine.Evaluate(ctx, "a"))
	f.detector.AssertExpectations(t)
}

// within any cooldown-long span a room gets at most one nudge per theme
func TestCooldownProperty(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.say("r", "diwali")
	f.detector.On("Detect", mock.Anything, "diwali").Return(diwali, nil)

	var sentAt []time.Time
	start := f.clock
	for step := 0; step < 120; step++ {
		f.clock = start.Add(time.Duration(step*17) * time.Second)
		if f.engine.Evaluate(ctx, "r") == OutcomeSent {
			sentAt = append(sentAt, f.clock)
		}
	}

	require.NotEmpty(t, sentAt)
	for i := 1; i < len(sentAt); i++ {
		assert.GreaterOrEqual(t, sentAt[i].Sub(sentAt[i-1]), DefaultCooldown)
	}
}

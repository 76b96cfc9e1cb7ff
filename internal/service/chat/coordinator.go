package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"groupcart/internal/model"
	"groupcart/internal/monitor"
	"groupcart/internal/service/cart"
	"groupcart/internal/service/conversation"
	"groupcart/internal/service/suggestion"
	"groupcart/pkg/log"
	"groupcart/pkg/utils"
)

// Canned AI texts
const (
	AIStatusMessage   = "AI-powered suggestions are active"
	CartCommandNotice = "Product image generation is currently unavailable."
)

// maxClockSkew how far ahead of the server a client timestamp may be
const maxClockSkew = 5 * time.Second

var cartCommandRegex = regexp.MustCompile(`(add|remove)\s+(\d+)?\s*([a-z]+)`)

// Fanout realtime delivery used by the coordinator
type Fanout interface {
	Join(clientID, roomID, username string) bool
	Member(clientID string) (username, roomID string, ok bool)
	Broadcast(roomID, event string, data interface{})
	Send(clientID, event string, data interface{}) bool
}

// Classifier maps a message to product categories
type Classifier interface {
	Classify(ctx context.Context, message string) ([]string, error)
}

// Translator turns Hindi text into English
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Publisher queues background work
type Publisher interface {
	TryPublish(topic string, message []byte) error
}

// Config coordinator tuning
type Config struct {
	// ContextSize number of room messages joined into the suggestion window
	ContextSize int
	// AIDelay pause before AI suggestion messages are broadcast
	AIDelay time.Duration
	// NudgeTopic queue topic for nudge evaluations; empty disables them
	NudgeTopic string
}

// Coordinator applies inbound realtime events to room state
type Coordinator struct {
	cfg        Config
	fanout     Fanout
	window     conversation.Window
	suggester  suggestion.Orchestrator
	carts      cart.CartService
	classifier Classifier
	translator Translator
	publisher  Publisher
	metrics    *monitor.MetricsCollector
	tracer     *monitor.Tracer

	now   func() time.Time
	after func(d time.Duration, f func())
	async func(f func())
}

// Options optional collaborators; nil fields disable the feature
type Options struct {
	Classifier Classifier
	Translator Translator
	Publisher  Publisher
	Metrics    *monitor.MetricsCollector
	Tracer     *monitor.Tracer
}

// NewCoordinator creates a chat coordinator
func NewCoordinator(
	cfg Config,
	fanout Fanout,
	window conversation.Window,
	suggester suggestion.Orchestrator,
	carts cart.CartService,
	opts Options,
) *Coordinator {
	if cfg.ContextSize <= 0 {
		cfg.ContextSize = 3
	}
	return &Coordinator{
		cfg:        cfg,
		fanout:     fanout,
		window:     window,
		suggester:  suggester,
		carts:      carts,
		classifier: opts.Classifier,
		translator: opts.Translator,
		publisher:  opts.Publisher,
		metrics:    opts.Metrics,
		tracer:     opts.Tracer,
		now:        time.Now,
		after:      delayed,
		async:      func(f func()) { go f() },
	}
}

func delayed(d time.Duration, f func()) {
	if d <= 0 {
		f()
		return
	}
	time.AfterFunc(d, f)
}

// HandleConnect greets a new socket with the AI status
func (c *Coordinator) HandleConnect(ctx context.Context, clientID string) {
	c.fanout.Send(clientID, model.EventAIStatus, model.AIStatus{
		Initialized: true,
		Message:     AIStatusMessage,
	})
}

// HandleEvent decodes and routes one inbound event
func (c *Coordinator) HandleEvent(ctx context.Context, clientID, event string, data json.RawMessage) {
	_, roomID, _ := c.fanout.Member(clientID)
	ctx, span := c.tracer.StartEventSpan(ctx, event, roomID)
	defer span.End()

	var err error
	switch event {
	case model.EventJoin:
		var p JoinPayload
		if err = decode(data, &p); err == nil {
			c.Join(ctx, clientID, p)
		}
	case model.EventMessage:
		var p MessagePayload
		if err = decode(data, &p); err == nil {
			c.Message(ctx, clientID, p)
		}
	case model.EventAddToCart:
		var p CartAddPayload
		if err = decode(data, &p); err == nil {
			c.AddToCart(ctx, clientID, p)
		}
	case model.EventIncrementCartItem:
		var p CartItemPayload
		if err = decode(data, &p); err == nil {
			c.IncrementCartItem(ctx, p)
		}
	case model.EventDecrementCartItem:
		var p CartItemPayload
		if err = decode(data, &p); err == nil {
			c.DecrementCartItem(ctx, p)
		}
	case model.EventRemoveFromCart:
		var p CartRemovePayload
		if err = decode(data, &p); err == nil {
			c.RemoveFromCart(ctx, p)
		}
	case model.EventGetMessages:
		c.RecentMessages(ctx, clientID)
	default:
		log.WithFields(log.Fields{
			"client_id": clientID,
			"event":     event,
		}).Debug("Ignoring unknown realtime event")
		return
	}

	if err != nil {
		monitor.RecordError(span, err)
		c.fanout.Send(clientID, model.EventError, model.ErrorEvent{Message: "Invalid " + event + " payload"})
	}
}

// HandleDisconnect announces the departure
func (c *Coordinator) HandleDisconnect(ctx context.Context, clientID, username, roomID string) {
	c.Leave(ctx, clientID, username, roomID)
}

// Join registers the socket in the room, sends it the cart and announces it
func (c *Coordinator) Join(ctx context.Context, clientID string, p JoinPayload) {
	roomID := strings.TrimSpace(p.RoomID)
	c.fanout.Join(clientID, roomID, p.Username)
	if roomID == "" {
		return
	}

	c.fanout.Send(clientID, model.EventCartUpdate, c.carts.Snapshot(ctx, roomID))
	c.fanout.Broadcast(roomID, model.EventUserJoined, model.Presence{ID: clientID, Username: p.Username})

	log.WithFields(log.Fields{
		"client_id": clientID,
		"username":  p.Username,
		"room_id":   roomID,
	}).Info("User joined room")
}

// Leave announces a departed socket to its room
func (c *Coordinator) Leave(ctx context.Context, clientID, username, roomID string) {
	if roomID == "" {
		return
	}
	c.fanout.Broadcast(roomID, model.EventUserLeft, model.Presence{ID: clientID, Username: username})
}

// Message handles one chat line: store, fan out, suggest, schedule a nudge
// evaluation. Only translation runs before the window append; classification
// happens after the fanout.
func (c *Coordinator) Message(ctx context.Context, clientID string, p MessagePayload) {
	username, memberRoom, _ := c.fanout.Member(clientID)
	roomID := strings.TrimSpace(p.RoomID)
	if roomID == "" {
		roomID = memberRoom
	}
	if roomID == "" {
		c.fanout.Send(clientID, model.EventError, model.ErrorEvent{Message: "roomId is required"})
		return
	}

	text := strings.TrimSpace(p.Text)
	if text == "" {
		return
	}

	msg := model.Message{
		ID:        clientID,
		Username:  username,
		Text:      text,
		RoomID:    roomID,
		Timestamp: clampTimestamp(p.Timestamp, c.now().UTC()),
	}

	translated := c.translate(ctx, &msg)

	c.window.Append(msg)
	c.metrics.RecordChatMessage(translated)
	c.fanout.Broadcast(roomID, model.EventMessage, msg)
	c.classifyLater(ctx, msg)

	if IsCartCommand(msg.Text) {
		c.broadcastAI(roomID, CartCommandNotice, nil)
	}

	history := conversation.JoinTexts(c.window.Recent(roomID, c.cfg.ContextSize))

	result := c.suggester.Suggest(ctx, roomID, msg.Text, history)
	due := c.suggester.Tick()
	if result.IsCombo() && !result.Empty() {
		c.later(func() { c.broadcastAI(roomID, suggestion.ComboBanner, result.Suggestions) })
		return
	}

	if due {
		periodic := c.suggester.SuggestNoCombo(ctx, roomID, history)
		if !periodic.Empty() {
			c.later(func() { c.broadcastAI(roomID, suggestion.PeriodicBanner, periodic.Suggestions) })
		}
	}

	c.scheduleNudge(roomID)
}

// AddToCart adds a product for its contributor and broadcasts the cart
func (c *Coordinator) AddToCart(ctx context.Context, clientID string, p CartAddPayload) {
	addedBy := strings.TrimSpace(p.AddedBy)
	if addedBy == "" {
		addedBy, _, _ = c.fanout.Member(clientID)
	}

	items, err := c.carts.Add(ctx, p.RoomID, p.Product, addedBy)
	if err != nil {
		c.fanout.Send(clientID, model.EventError, model.ErrorEvent{Message: utils.GetErrorMessage(err)})
		return
	}
	c.metrics.RecordCartMutation("add")

	// cart additions count as room activity for nudges
	c.window.Append(model.Message{
		Username:  addedBy,
		Text:      fmt.Sprintf("%s added %s to the cart", addedBy, p.Name),
		RoomID:    p.RoomID,
		Timestamp: c.now().UTC(),
		Kind:      model.EntryCart,
	})

	c.fanout.Broadcast(p.RoomID, model.EventCartUpdate, items)
}

// IncrementCartItem raises a line item by one
func (c *Coordinator) IncrementCartItem(ctx context.Context, p CartItemPayload) {
	if items, ok := c.carts.Increment(ctx, p.RoomID, p.ItemID, p.AddedBy); ok {
		c.metrics.RecordCartMutation("increment")
		c.fanout.Broadcast(p.RoomID, model.EventCartUpdate, items)
	}
}

// DecrementCartItem lowers a line item by one
func (c *Coordinator) DecrementCartItem(ctx context.Context, p CartItemPayload) {
	if items, ok := c.carts.Decrement(ctx, p.RoomID, p.ItemID, p.AddedBy); ok {
		c.metrics.RecordCartMutation("decrement")
		c.fanout.Broadcast(p.RoomID, model.EventCartUpdate, items)
	}
}

// RemoveFromCart drops every line item of a product
func (c *Coordinator) RemoveFromCart(ctx context.Context, p CartRemovePayload) {
	if items, ok := c.carts.Remove(ctx, p.RoomID, p.ProductID); ok {
		c.metrics.RecordCartMutation("remove")
		c.fanout.Broadcast(p.RoomID, model.EventCartUpdate, items)
	}
}

// RecentMessages sends the socket the buffered chat of its room, or the
// whole buffer before it has joined one
func (c *Coordinator) RecentMessages(ctx context.Context, clientID string) {
	_, roomID, _ := c.fanout.Member(clientID)

	var msgs []model.Message
	if roomID != "" {
		msgs = c.window.Recent(roomID, c.window.Capacity())
	} else {
		msgs = c.window.All()
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	c.fanout.Send(clientID, model.EventMessages, msgs)
}

// IsCartCommand reports whether text reads like "add 2 saree" or "remove kurta"
func IsCartCommand(text string) bool {
	return cartCommandRegex.MatchString(strings.ToLower(text))
}

func (c *Coordinator) translate(ctx context.Context, msg *model.Message) bool {
	if c.translator == nil || !utils.ContainsDevanagari(msg.Text) {
		return false
	}

	out, err := c.translator.Translate(ctx, msg.Text)
	if err != nil {
		log.WithFields(log.Fields{
			"room_id": msg.RoomID,
			"error":   err.Error(),
		}).Warn("Failed to translate message, keeping original text")
		return false
	}
	if strings.TrimSpace(out) == "" {
		return false
	}

	msg.OriginalText = msg.Text
	msg.Text = out
	return true
}

// classifyLater tags the message with product categories off the chat path
// and tells the room once they are known
func (c *Coordinator) classifyLater(ctx context.Context, msg model.Message) {
	if c.classifier == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	c.async(func() {
		categories, err := c.classifier.Classify(ctx, msg.Text)
		if err != nil {
			log.WithFields(log.Fields{
				"room_id": msg.RoomID,
				"error":   err.Error(),
			}).Warn("Failed to classify message")
			return
		}
		if len(categories) == 0 {
			return
		}
		c.fanout.Broadcast(msg.RoomID, model.EventMessageCategories, model.MessageCategories{
			ID:         msg.ID,
			RoomID:     msg.RoomID,
			Timestamp:  msg.Timestamp,
			Categories: categories,
		})
	})
}

// clampTimestamp keeps the client clock unless it is missing or runs ahead
// of the server
func clampTimestamp(client, now time.Time) time.Time {
	if client.IsZero() || client.After(now.Add(maxClockSkew)) {
		return now
	}
	return client.UTC()
}

func (c *Coordinator) broadcastAI(roomID, text string, suggestions []model.Suggestion) {
	c.fanout.Broadcast(roomID, model.EventMessage, model.Message{
		ID:          uuid.NewString(),
		Username:    model.AIUsername,
		Text:        text,
		RoomID:      roomID,
		Timestamp:   c.now().UTC(),
		Suggestions: suggestions,
		IsAI:        true,
	})
}

func (c *Coordinator) later(f func()) {
	c.after(c.cfg.AIDelay, f)
}

func (c *Coordinator) scheduleNudge(roomID string) {
	if c.publisher == nil || c.cfg.NudgeTopic == "" {
		return
	}
	if err := c.publisher.TryPublish(c.cfg.NudgeTopic, []byte(roomID)); err != nil {
		log.WithFields(log.Fields{
			"room_id": roomID,
			"error":   err.Error(),
		}).Warn("Failed to schedule nudge evaluation")
	}
}

func decode(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return fmt.Errorf("empty payload")
	}
	return json.Unmarshal(data, v)
}

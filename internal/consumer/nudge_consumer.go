package consumer

import (
	"context"
	"strings"
	"sync"
	"time"

	"groupcart/internal/monitor"
	"groupcart/internal/service/nudge"
	"groupcart/pkg/log"
	"groupcart/pkg/queue"
)

var logger = log.Component("nudge-consumer")

// NudgeTopic queue topic carrying room ids due for a nudge evaluation
const NudgeTopic = "nudge"

// Source queue the consumer reads from
type Source interface {
	Subscribe(ctx context.Context, topic string, handler queue.MessageHandler) error
	GetStats() queue.Stats
}

// NudgeConsumer runs nudge evaluations off the chat path
type NudgeConsumer struct {
	engine        nudge.Engine
	source        Source
	topic         string
	metrics       *monitor.MetricsCollector
	statsInterval time.Duration

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewNudgeConsumer creates a nudge consumer; an empty topic uses NudgeTopic
func NewNudgeConsumer(engine nudge.Engine, source Source, topic string, metrics *monitor.MetricsCollector) *NudgeConsumer {
	if topic == "" {
		topic = NudgeTopic
	}
	return &NudgeConsumer{
		engine:        engine,
		source:        source,
		topic:         topic,
		metrics:       metrics,
		statsInterval: 15 * time.Second,
		stopCh:        make(chan struct{}),
	}
}

// Start subscribes to the topic and starts the stats reporter
func (c *NudgeConsumer) Start(ctx context.Context) error {
	logger.WithField("topic", c.topic).Info("Starting nudge consumer")

	if err := c.source.Subscribe(ctx, c.topic, c.handle); err != nil {
		return err
	}

	c.wg.Add(1)
	go c.reportStats(ctx)
	return nil
}

// Stop stops the stats reporter; the subscription ends with the queue
func (c *NudgeConsumer) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
	c.publishStats()
	logger.Info("Nudge consumer stopped")
}

func (c *NudgeConsumer) handle(ctx context.Context, topic string, message []byte) error {
	roomID := strings.TrimSpace(string(message))
	if roomID == "" {
		return nil
	}

	outcome := c.engine.Evaluate(ctx, roomID)
	logger.WithFields(log.Fields{
		"room_id": roomID,
		"outcome": outcome,
	}).Debug("Nudge evaluated")
	return nil
}

func (c *NudgeConsumer) reportStats(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.publishStats()
		}
	}
}

func (c *NudgeConsumer) publishStats() {
	s := c.source.GetStats()
	c.metrics.SetQueueStats(s.MessagesSent, s.MessagesRecv, s.Dropped, s.Failed)
}

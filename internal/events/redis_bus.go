package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"cardcircle/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisEventBus publishes envelopes on container channels and dispatches
// everything it receives on channel:* to local subscribers. Handlers run on
// every instance, so a message sent through one API node reaches websocket
// clients connected to any node.
type RedisEventBus struct {
	client   *redis.Client
	resolver ChannelResolver
	handlers map[EventType][]EventHandler
	pubsub   *redis.PubSub
	logger   *logger.Logger
	mu       sync.RWMutex
	ctx      context.Context
	cancel   context.CancelFunc
	running  bool
}

func NewRedisEventBus(client *redis.Client, resolver ChannelResolver, l *logger.Logger) *RedisEventBus {
	if l == nil {
		l = logger.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisEventBus{
		client:   client,
		resolver: resolver,
		handlers: make(map[EventType][]EventHandler),
		logger:   l,
		ctx:      ctx,
		cancel:   cancel,
	}
}

func (b *RedisEventBus) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pubsub = b.client.PSubscribe(b.ctx, "channel:*")
	if _, err := b.pubsub.Receive(b.ctx); err != nil {
		return fmt.Errorf("subscribe channel:*: %w", err)
	}
	b.running = true
	go b.listen()
	return nil
}

func (b *RedisEventBus) Stop() error {
	b.cancel()
	b.mu.Lock()
	b.running = false
	b.mu.Unlock()
	if b.pubsub != nil {
		return b.pubsub.Close()
	}
	return nil
}

func (b *RedisEventBus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	running := b.running
	b.mu.RUnlock()
	if !running {
		return fmt.Errorf("event bus not started")
	}

	channels := b.resolver.ResolveChannels(event)
	if len(channels) == 0 {
		return nil
	}

	env, err := NewEnvelope(event)
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	var firstErr error
	for _, channel := range channels {
		if err := b.client.Publish(ctx, channel, data).Err(); err != nil {
			b.logger.WithContext(ctx).Warn("publish failed", zap.String("channel", channel), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (b *RedisEventBus) Subscribe(eventType EventType, handler EventHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	return nil
}

func (b *RedisEventBus) listen() {
	ch := b.pubsub.Channel()
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if msg == nil {
				continue
			}
			b.handlePayload(msg.Channel, []byte(msg.Payload))
		}
	}
}

func (b *RedisEventBus) handlePayload(channel string, payload []byte) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		b.logger.Logger.Debug("skipping non-envelope payload", zap.String("channel", channel))
		return
	}
	event, err := env.Decode()
	if err != nil {
		b.logger.Logger.Debug("skipping unknown event", zap.String("channel", channel), zap.Error(err))
		return
	}
	b.dispatch(event)
}

func (b *RedisEventBus) dispatch(event Event) {
	b.mu.RLock()
	handlers := b.handlers[event.EventType()]
	b.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler.Handle(b.ctx, event); err != nil {
			b.logger.Logger.Warn("event handler failed",
				zap.String("event_type", string(event.EventType())),
				zap.Error(err))
		}
	}
}

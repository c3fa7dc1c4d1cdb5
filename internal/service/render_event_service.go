package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/talentscope-api/internal/dto"
)

const renderEventBufferSize = 8

// RenderEventService fans render job state changes out across processes and to live subscribers.
type RenderEventService interface {
	Start(ctx context.Context)
	Publish(ctx context.Context, event dto.RenderStatusEvent) error
	Subscribe(assignmentID uint) (<-chan dto.RenderStatusEvent, func())
}

type renderEventService struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	broker       *renderEventBroker
	nodeID       string
}

type renderEventEnvelope struct {
	Source string                `json:"source"`
	Event  dto.RenderStatusEvent `json:"event"`
	SentAt time.Time             `json:"sent_at"`
}

type renderEventBroker struct {
	mu          sync.RWMutex
	subscribers map[uint]map[chan dto.RenderStatusEvent]struct{}
}

// NewRenderEventService constructs the event service. Either transport may be nil.
func NewRenderEventService(redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) RenderEventService {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":render-status"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".render-status"
	}

	return &renderEventService{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       logger.With().Str("component", "render_event_service").Logger(),
		broker: &renderEventBroker{
			subscribers: make(map[uint]map[chan dto.RenderStatusEvent]struct{}),
		},
		nodeID: uuid.NewString(),
	}
}

func (s *renderEventService) Start(ctx context.Context) {
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
		return
	}
	if s.redis != nil && s.redisChannel != "" {
		go s.consumeRedis(ctx)
	}
}

// Publish delivers the event to local subscribers and to other processes.
func (s *renderEventService) Publish(ctx context.Context, event dto.RenderStatusEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	s.broker.broadcast(event)

	payload, err := json.Marshal(renderEventEnvelope{Source: s.nodeID, Event: event, SentAt: time.Now().UTC()})
	if err != nil {
		return err
	}

	if s.nats != nil && s.natsSubject != "" {
		return s.nats.Publish(s.natsSubject, payload)
	}
	if s.redis != nil && s.redisChannel != "" {
		return s.redis.Publish(ctx, s.redisChannel, payload).Err()
	}
	return nil
}

func (s *renderEventService) Subscribe(assignmentID uint) (<-chan dto.RenderStatusEvent, func()) {
	channel := make(chan dto.RenderStatusEvent, renderEventBufferSize)
	s.broker.subscribe(assignmentID, channel)

	var once sync.Once
	cleanup := func() {
		once.Do(func() { s.broker.unsubscribe(assignmentID, channel) })
	}
	return channel, cleanup
}

func (s *renderEventService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisChannel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.logger.Error().Err(err).Msg("render status redis subscription closed")
			return
		}
		s.handleEvent([]byte(msg.Payload))
	}
}

func (s *renderEventService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.Subscribe(s.natsSubject, func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to render status subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain render status subscription")
		}
	}()
}

func (s *renderEventService) handleEvent(payload []byte) {
	var envelope renderEventEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		s.logger.Warn().Err(err).Msg("invalid render status payload")
		return
	}
	if envelope.Source == s.nodeID {
		return
	}
	s.broker.broadcast(envelope.Event)
}

func (b *renderEventBroker) subscribe(assignmentID uint, ch chan dto.RenderStatusEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[assignmentID]; !exists {
		b.subscribers[assignmentID] = make(map[chan dto.RenderStatusEvent]struct{})
	}
	b.subscribers[assignmentID][ch] = struct{}{}
}

func (b *renderEventBroker) unsubscribe(assignmentID uint, ch chan dto.RenderStatusEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subscribers, ok := b.subscribers[assignmentID]; ok {
		delete(subscribers, ch)
		close(ch)
		if len(subscribers) == 0 {
			delete(b.subscribers, assignmentID)
		}
	}
}

func (b *renderEventBroker) broadcast(event dto.RenderStatusEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[event.AssignmentID] {
		select {
		case ch <- event:
		default:
		}
	}
}

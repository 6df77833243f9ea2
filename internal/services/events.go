package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/models"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/pkg/logger"
)

const (
	eventProducer = "overboard-chat"

	// MessageCreatedKey is the routing key and event type for new chat messages
	MessageCreatedKey = "chat.message.created"
)

// EventMeta identifies one published event
type EventMeta struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Time          time.Time `json:"time"`
	Producer      string    `json:"producer"`
	CorrelationID *string   `json:"correlation_id,omitempty"`
}

type Envelope struct {
	Meta EventMeta `json:"meta"`
	Data any       `json:"data"`
}

// MessageCreatedData is the payload downstream push notification workers consume
type MessageCreatedData struct {
	MessageID      string             `json:"message_id"`
	ConversationID string             `json:"conversation_id"`
	SenderID       string             `json:"sender_id"`
	SenderRole     models.Role        `json:"sender_role"`
	Preview        string             `json:"preview"`
	Attachments    int                `json:"attachments"`
	SystemType     *models.SystemType `json:"system_type,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
}

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// EventPublisher sends chat events to a RabbitMQ topic exchange
type EventPublisher struct {
	conn     *amqp091.Connection
	open     func() (amqpChannel, error)
	exchange string
	log      zerolog.Logger
}

// NewEventPublisher dials url and declares exchange as a durable topic exchange
func NewEventPublisher(url, exchange string) (*EventPublisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	p := &EventPublisher{
		conn:     conn,
		exchange: exchange,
		log:      logger.Component("events"),
	}
	p.open = func() (amqpChannel, error) { return conn.Channel() }
	return p, nil
}

// Publish sends env under key. A channel is opened per publish; amqp channels
// are not safe for concurrent use.
func (p *EventPublisher) Publish(ctx context.Context, key string, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", key, err)
	}

	ch, err := p.open()
	if err != nil {
		return fmt.Errorf("open amqp channel: %w", err)
	}
	defer ch.Close()

	correlationID := uuid.NewString()
	if env.Meta.CorrelationID != nil {
		correlationID = *env.Meta.CorrelationID
	}

	err = ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp091.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp091.Persistent,
		MessageId:     env.Meta.ID,
		CorrelationId: correlationID,
		Timestamp:     env.Meta.Time,
		Body:          body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	p.log.Debug().Str("key", key).Str("exchange", p.exchange).Str("event_id", env.Meta.ID).Msg("published")
	return nil
}

// MessageCreated implements chat.Notifier
func (p *EventPublisher) MessageCreated(ctx context.Context, m models.Message) error {
	return p.Publish(ctx, MessageCreatedKey, NewMessageCreatedEnvelope(m, nil))
}

func NewMessageCreatedEnvelope(m models.Message, correlationID *string) Envelope {
	return Envelope{
		Meta: EventMeta{
			ID:            uuid.NewString(),
			Type:          MessageCreatedKey,
			Time:          time.Now().UTC(),
			Producer:      eventProducer,
			CorrelationID: correlationID,
		},
		Data: MessageCreatedData{
			MessageID:      m.ID,
			ConversationID: m.ConversationID,
			SenderID:       m.SenderID,
			SenderRole:     m.SenderRole,
			Preview:        m.Preview(),
			Attachments:    len(m.Attachments),
			SystemType:     m.SystemType,
			CreatedAt:      m.CreatedAt,
		},
	}
}

func (p *EventPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}

package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/metrics"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/models"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/session"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/pkg/logger"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/pkg/utils"
)

// Composer builds and sends the viewer's outgoing messages and typing state
type Composer struct {
	errorState

	backend  Backend
	session  *session.Session
	notifier Notifier
	log      zerolog.Logger

	mu      sync.RWMutex
	sending int
	canned  []models.CannedReply
}

// NewComposer binds a composer to sess. notifier may be nil.
func NewComposer(backend Backend, sess *session.Session, notifier Notifier) *Composer {
	if sess == nil {
		sess = session.Anonymous()
	}
	return &Composer{
		backend:  backend,
		session:  sess,
		notifier: notifier,
		log:      logger.Component("composer"),
	}
}

// Sending reports whether a send is in flight. It is advisory; concurrent sends are not serialised.
func (c *Composer) Sending() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sending > 0
}

func (c *Composer) beginSend() {
	c.mu.Lock()
	c.sending++
	c.mu.Unlock()
}

func (c *Composer) endSend() {
	c.mu.Lock()
	c.sending--
	c.mu.Unlock()
}

// SendMessage inserts a message from the viewer into conversationID and returns it.
// systemType is nil for ordinary messages.
func (c *Composer) SendMessage(ctx context.Context, conversationID, body string, attachments []models.Attachment, systemType *models.SystemType) (*models.Message, error) {
	c.beginSend()
	defer c.endSend()

	if !c.session.Authenticated() {
		c.setErr("You must be signed in to send messages")
		return nil, ErrNotAuthenticated
	}
	if !c.session.HasKnownKind() {
		c.setErr("Unable to determine your account type")
		return nil, ErrUnknownRole
	}
	if systemType != nil && !systemType.Valid() {
		c.setErr("Invalid message type")
		return nil, ErrInvalidSystemType
	}

	body = utils.SanitizeMessageBody(body)
	atts := make([]models.Attachment, 0, len(attachments))
	for _, a := range attachments {
		if strings.TrimSpace(a.URL) == "" {
			continue
		}
		atts = append(atts, a)
	}
	if body == "" && len(atts) == 0 {
		c.setErr("Message cannot be empty")
		return nil, ErrEmptyMessage
	}
	c.clearErr()

	m := &models.Message{
		ID:             newID("msg"),
		ConversationID: conversationID,
		SenderID:       c.session.UserID,
		SenderRole:     c.session.Kind,
		Body:           body,
		Attachments:    atts,
		CreatedAt:      now(),
		SystemType:     systemType,
	}
	if err := c.backend.InsertMessage(ctx, m); err != nil {
		metrics.SendFailures.Inc()
		c.log.Error().Err(err).
			Str("conversation_id", conversationID).
			Str("user_id", c.session.UserID).
			Msg("failed to send message")
		c.setErr("Failed to send message")
		return nil, fmt.Errorf("send message: %w", err)
	}
	metrics.MessagesSent.Inc()

	m.SenderName = c.session.DisplayName
	m.SenderAvatar = c.session.AvatarURL
	m.ReadBy = []string{}

	if c.notifier != nil {
		if err := c.notifier.MessageCreated(ctx, *m); err != nil {
			c.log.Warn().Err(err).Str("message_id", m.ID).Msg("failed to publish message event")
		}
	}
	return m, nil
}

// SendTypingIndicator records whether the viewer is composing in conversationID
func (c *Composer) SendTypingIndicator(ctx context.Context, conversationID string, isTyping bool) {
	if !c.session.Authenticated() {
		return
	}
	if err := c.backend.UpsertTyping(ctx, conversationID, c.session.UserID, isTyping, now()); err != nil {
		c.log.Warn().Err(err).
			Str("conversation_id", conversationID).
			Str("user_id", c.session.UserID).
			Msg("failed to update typing indicator")
		c.setErr("Failed to update typing status")
	}
}

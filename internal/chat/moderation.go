package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/models"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/session"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/pkg/logger"
)

// Moderator files blocks and reports on behalf of the viewer
type Moderator struct {
	errorState

	backend Backend
	session *session.Session
}

func NewModerator(backend Backend, sess *session.Session) *Moderator {
	if sess == nil {
		sess = session.Anonymous()
	}
	return &Moderator{backend: backend, session: sess}
}

// BlockUser stops new conversations between the viewer and targetUserID
func (m *Moderator) BlockUser(ctx context.Context, targetUserID, reason string) error {
	if !m.session.Authenticated() {
		m.setErr(ErrNotAuthenticated.Error())
		return ErrNotAuthenticated
	}
	if targetUserID == "" || targetUserID == m.session.UserID {
		m.setErr("Invalid user")
		return ErrInvalidModerationReq
	}
	return m.file(ctx, &models.BlockReport{
		ReporterID:   m.session.UserID,
		TargetUserID: targetUserID,
		Kind:         models.BlockKindBlock,
		Reason:       strings.TrimSpace(reason),
	})
}

// ReportConversation flags conversationID for review. The viewer must be a participant.
func (m *Moderator) ReportConversation(ctx context.Context, conversationID, reason string) error {
	if !m.session.Authenticated() {
		m.setErr(ErrNotAuthenticated.Error())
		return ErrNotAuthenticated
	}
	conv, err := m.backend.GetConversation(ctx, conversationID)
	if err != nil {
		logger.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to load reported conversation")
		m.setErr("Failed to report conversation")
		return fmt.Errorf("report conversation: %w", err)
	}
	if !conv.HasParticipant(m.session.UserID) {
		m.setErr("You are not part of this conversation")
		return ErrPermissionDenied
	}

	var target string
	for _, p := range conv.Participants {
		if p.UserID != m.session.UserID {
			target = p.UserID
			break
		}
	}
	id := conv.ID
	return m.file(ctx, &models.BlockReport{
		ReporterID:     m.session.UserID,
		TargetUserID:   target,
		ConversationID: &id,
		Kind:           models.BlockKindReport,
		Reason:         strings.TrimSpace(reason),
	})
}

func (m *Moderator) file(ctx context.Context, b *models.BlockReport) error {
	if err := m.backend.InsertBlockReport(ctx, b); err != nil {
		logger.Error().Err(err).
			Str("user_id", b.ReporterID).
			Str("kind", string(b.Kind)).
			Msg("failed to file block or report")
		m.setErr("Failed to submit. Please try again")
		return fmt.Errorf("file %s: %w", b.Kind, err)
	}
	m.clearErr()
	logger.Info().Str("user_id", b.ReporterID).Str("kind", string(b.Kind)).Str("id", b.ID).Msg("moderation request filed")
	return nil
}

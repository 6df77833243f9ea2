package handlers

import (
	stderrors "errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/chat"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/middleware"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/models"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/services"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/session"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/store"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/pkg/errors"
)

// ChatHandler serves the chat API. Each request builds its own session and
// chat components; nothing per-viewer outlives the request.
type ChatHandler struct {
	Backend     chat.Backend
	Feed        chat.Feed
	Directory   *session.Directory
	Notifier    chat.Notifier
	Uploader    *services.Uploader
	Attachments AttachmentPolicy

	TypingTimeout  time.Duration
	MaxUploadBytes int64
	// ReadWait bounds how long GET messages waits for its receipts to be written
	ReadWait time.Duration
}

func abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// session resolves the viewer from the claims the auth middleware stored
func (h *ChatHandler) session(c *gin.Context) (*session.Session, bool) {
	sess, err := h.Directory.Start(c.Request.Context(), c.GetString(middleware.UserIDKey), models.Role(c.GetString(middleware.RoleKey)))
	if err != nil {
		abort(c, errors.Forbidden("Unable to determine your account type"))
		return nil, false
	}
	if !sess.Authenticated() {
		abort(c, errors.Unauthorized("You must be signed in to use chat"))
		return nil, false
	}
	return sess, true
}

// member loads the conversation and checks the viewer belongs to it
func (h *ChatHandler) member(c *gin.Context, sess *session.Session, conversationID string) (*models.Conversation, bool) {
	conv, err := h.Backend.GetConversation(c.Request.Context(), conversationID)
	if stderrors.Is(err, store.ErrNotFound) {
		abort(c, errors.NotFound("Conversation not found"))
		return nil, false
	}
	if err != nil {
		abort(c, errors.Internal("Failed to load conversation").Wrap(err))
		return nil, false
	}
	if !conv.HasParticipant(sess.UserID) {
		abort(c, errors.Forbidden("You are not part of this conversation"))
		return nil, false
	}
	return conv, true
}

// ListConversations handles GET /conversations?filter=&q=
func (h *ChatHandler) ListConversations(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	filter, ok := chat.ParseFilter(c.Query("filter"))
	if !ok {
		abort(c, errors.BadRequest("Unknown filter"))
		return
	}

	list := chat.NewConversationStore(h.Backend, sess)
	list.LoadConversations(c.Request.Context(), filter)
	if msg := list.Err(); msg != "" {
		abort(c, errors.Internal(msg))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"filter":        filter,
		"conversations": list.SearchConversations(c.Query("q")),
	})
}

type participantRequest struct {
	UserID      string      `json:"userId" binding:"required"`
	Role        models.Role `json:"role" binding:"required"`
	DisplayName string      `json:"displayName"`
	AvatarURL   string      `json:"avatarUrl"`
}

type createConversationRequest struct {
	Type         models.ConversationType `json:"type" binding:"required"`
	OrderID      *string                 `json:"orderId"`
	Participants []participantRequest    `json:"participants" binding:"dive"`
}

// CreateConversation handles POST /conversations
func (h *ChatHandler) CreateConversation(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req createConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, errors.BadRequest("Invalid request"))
		return
	}

	participants := make([]models.ConversationParticipant, 0, len(req.Participants))
	for _, p := range req.Participants {
		if !p.Role.Valid() {
			abort(c, errors.BadRequest("Invalid participant role"))
			return
		}
		part := models.ConversationParticipant{UserID: p.UserID, Role: p.Role, DisplayName: p.DisplayName, AvatarURL: p.AvatarURL}
		if part.DisplayName == "" {
			if profile, err := h.Directory.Lookup(c.Request.Context(), p.Role, p.UserID); err == nil {
				part.DisplayName, part.AvatarURL = profile.DisplayName, profile.AvatarURL
			}
		}
		participants = append(participants, part)
	}

	ch := chat.NewChannel(h.Backend, nil, h.Directory, sess)
	id, err := ch.CreateOrOpenConversation(c.Request.Context(), chat.CreateParams{
		Type:         req.Type,
		OrderID:      req.OrderID,
		Participants: participants,
	})
	switch {
	case err == nil:
	case stderrors.Is(err, chat.ErrInvalidConversation):
		abort(c, errors.BadRequest(ch.Err()))
		return
	case stderrors.Is(err, chat.ErrConversationBlocked):
		abort(c, errors.Forbidden(ch.Err()))
		return
	default:
		abort(c, errors.Internal(ch.Err()).Wrap(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversationId": id})
}

// ArchiveConversation handles POST /conversations/:id/archive
func (h *ChatHandler) ArchiveConversation(c *gin.Context) {
	h.setArchived(c, true)
}

// UnarchiveConversation handles POST /conversations/:id/unarchive
func (h *ChatHandler) UnarchiveConversation(c *gin.Context) {
	h.setArchived(c, false)
}

func (h *ChatHandler) setArchived(c *gin.Context, archived bool) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if _, ok := h.member(c, sess, id); !ok {
		return
	}

	list := chat.NewConversationStore(h.Backend, sess)
	if archived {
		list.ArchiveConversation(c.Request.Context(), id)
	} else {
		list.UnarchiveConversation(c.Request.Context(), id)
	}
	if msg := list.Err(); msg != "" {
		abort(c, errors.Internal(msg))
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversationId": id, "archived": archived})
}

// GetMessages handles GET /conversations/:id/messages. Opening the
// conversation marks the other participants' messages as read.
func (h *ChatHandler) GetMessages(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if _, ok := h.member(c, sess, id); !ok {
		return
	}

	ch := chat.NewChannel(h.Backend, nil, h.Directory, sess)
	defer ch.Close()
	ch.OpenConversation(c.Request.Context(), id)
	if msg := ch.Err(); msg != "" || ch.State() != chat.StateOpen {
		abort(c, errors.Internal("Failed to load conversation"))
		return
	}

	wait := h.ReadWait
	if wait <= 0 {
		wait = 2 * time.Second
	}
	select {
	case <-ch.ReadsSettled():
	case <-time.After(wait):
	case <-c.Request.Context().Done():
	}

	c.JSON(http.StatusOK, gin.H{
		"conversation": ch.Conversation(),
		"messages":     ch.Messages(),
	})
}

type sendMessageRequest struct {
	Body        string              `json:"body"`
	Attachments []models.Attachment `json:"attachments"`
	SystemType  *models.SystemType  `json:"systemType"`
}

// SendMessage handles POST /conversations/:id/messages
func (h *ChatHandler) SendMessage(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if _, ok := h.member(c, sess, id); !ok {
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, errors.BadRequest("Invalid request"))
		return
	}
	if req.SystemType != nil && !canPostSystem(sess) {
		abort(c, errors.Forbidden("Only vendors and staff can post system messages"))
		return
	}
	for _, att := range req.Attachments {
		if err := h.Attachments.Validate(att); err != nil {
			abort(c, errors.BadRequest(err.Error()))
			return
		}
	}

	composer := chat.NewComposer(h.Backend, sess, h.Notifier)
	m, err := composer.SendMessage(c.Request.Context(), id, req.Body, req.Attachments, req.SystemType)
	if err != nil {
		abort(c, sendError(err, composer.Err()))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": m})
}

// canPostSystem reports whether the viewer may post status lines or notes
func canPostSystem(sess *session.Session) bool {
	return sess.Kind == models.RoleVendor || sess.Kind == models.RoleAdmin
}

func sendError(err error, msg string) *errors.AppError {
	switch {
	case stderrors.Is(err, chat.ErrEmptyMessage), stderrors.Is(err, chat.ErrInvalidSystemType):
		return errors.BadRequest(msg)
	case stderrors.Is(err, chat.ErrNotAuthenticated):
		return errors.Unauthorized(msg)
	case stderrors.Is(err, chat.ErrUnknownRole):
		return errors.Forbidden(msg)
	}
	return errors.Internal(msg).Wrap(err)
}

// SetTyping handles PUT /conversations/:id/typing
func (h *ChatHandler) SetTyping(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if _, ok := h.member(c, sess, id); !ok {
		return
	}

	var req struct {
		IsTyping bool `json:"isTyping"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, errors.BadRequest("Invalid request"))
		return
	}

	composer := chat.NewComposer(h.Backend, sess, nil)
	composer.SendTypingIndicator(c.Request.Context(), id, req.IsTyping)
	if msg := composer.Err(); msg != "" {
		abort(c, errors.Internal(msg))
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkRead handles POST /messages/:id/read
func (h *ChatHandler) MarkRead(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	m, err := h.Backend.GetMessage(c.Request.Context(), c.Param("id"))
	if stderrors.Is(err, store.ErrNotFound) {
		abort(c, errors.NotFound("Message not found"))
		return
	}
	if err != nil {
		abort(c, errors.Internal("Failed to load message").Wrap(err))
		return
	}
	if _, ok := h.member(c, sess, m.ConversationID); !ok {
		return
	}

	ch := chat.NewChannel(h.Backend, nil, nil, sess)
	ch.MarkAsRead(c.Request.Context(), m.ID)
	if msg := ch.Err(); msg != "" {
		abort(c, errors.Internal(msg))
		return
	}
	c.Status(http.StatusNoContent)
}

// CannedReplies handles GET /canned-replies?vendorId=. Vendors get their own
// templates when no vendor is named; only admins may name another vendor.
func (h *ChatHandler) CannedReplies(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	vendorID := c.Query("vendorId")
	if vendorID == "" && sess.Kind == models.RoleVendor {
		vendorID = sess.UserID
	}
	if vendorID != "" && vendorID != sess.UserID && sess.Kind != models.RoleAdmin {
		abort(c, errors.Forbidden("You can only view your own canned replies"))
		return
	}

	composer := chat.NewComposer(h.Backend, sess, nil)
	composer.LoadCannedReplies(c.Request.Context(), vendorID)
	if msg := composer.Err(); msg != "" {
		abort(c, errors.Internal(msg))
		return
	}
	c.JSON(http.StatusOK, gin.H{"cannedReplies": composer.CannedReplies()})
}

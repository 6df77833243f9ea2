package handlers

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/chat"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/store"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/pkg/errors"
)

type moderationRequest struct {
	UserID string `json:"userId"`
	Reason string `json:"reason" binding:"max=1000"`
}

// BlockUser handles POST /blocks
func (h *ChatHandler) BlockUser(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req moderationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, errors.BadRequest("Invalid request"))
		return
	}

	mod := chat.NewModerator(h.Backend, sess)
	if err := mod.BlockUser(c.Request.Context(), req.UserID, req.Reason); err != nil {
		if stderrors.Is(err, chat.ErrInvalidModerationReq) {
			abort(c, errors.BadRequest(mod.Err()))
			return
		}
		abort(c, errors.Internal(mod.Err()).Wrap(err))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"blocked": req.UserID})
}

// ReportConversation handles POST /conversations/:id/report
func (h *ChatHandler) ReportConversation(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req moderationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, errors.BadRequest("Invalid request"))
		return
	}

	mod := chat.NewModerator(h.Backend, sess)
	err := mod.ReportConversation(c.Request.Context(), c.Param("id"), req.Reason)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, gin.H{"reported": c.Param("id")})
	case stderrors.Is(err, chat.ErrPermissionDenied):
		abort(c, errors.Forbidden(mod.Err()))
	case stderrors.Is(err, store.ErrNotFound):
		abort(c, errors.NotFound("Conversation not found"))
	default:
		abort(c, errors.Internal(mod.Err()).Wrap(err))
	}
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/chat"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/services"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/pkg/errors"
)

// UploadAttachment handles POST /attachments?kind=image|document. The stored
// file comes back as an attachment ready to put on a message.
func (h *ChatHandler) UploadAttachment(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	kind := chat.AssetKind(c.DefaultQuery("kind", string(chat.AssetDocument)))
	if !kind.Valid() {
		abort(c, errors.BadRequest("kind must be image or document"))
		return
	}
	if h.Uploader == nil {
		abort(c, errors.NewAppError(http.StatusServiceUnavailable, "Attachment storage is not configured"))
		return
	}

	if h.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes+1<<20)
	}
	header, err := c.FormFile("file")
	if err != nil {
		abort(c, errors.BadRequest("No file provided"))
		return
	}
	if h.MaxUploadBytes > 0 && header.Size > h.MaxUploadBytes {
		abort(c, errors.NewAppError(http.StatusRequestEntityTooLarge, "File is too large"))
		return
	}

	composer := chat.NewComposer(h.Backend, sess, nil)
	picker := services.NewUploadPicker(h.Uploader, header, "")

	pick := composer.PickDocument
	if kind == chat.AssetImage {
		pick = composer.PickImage
	}
	attachment := pick(c.Request.Context(), picker)
	if attachment == nil {
		msg := composer.Err()
		if msg == "" {
			msg = "No file provided"
		}
		abort(c, errors.BadRequest(msg))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"attachment": attachment})
}

package chat

import (
	"context"

	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/models"
)

// LoadCannedReplies loads the templates for vendorID together with the shared
// defaults, newest first. An empty vendorID loads the defaults only.
func (c *Composer) LoadCannedReplies(ctx context.Context, vendorID string) {
	if vendorID == "" {
		vendorID = models.DefaultVendorID
	}
	replies, err := c.backend.ListCannedReplies(ctx, vendorID)
	if err != nil {
		c.log.Error().Err(err).Str("vendor_id", vendorID).Msg("failed to load canned replies")
		c.setErr("Failed to load quick replies")
		return
	}
	c.clearErr()

	c.mu.Lock()
	c.canned = replies
	c.mu.Unlock()
}

// CannedReplies returns the last loaded templates
func (c *Composer) CannedReplies() []models.CannedReply {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.CannedReply(nil), c.canned...)
}

// UseCannedReply returns the text to place in the compose field
func UseCannedReply(reply models.CannedReply) string {
	return reply.Body
}

package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/models"
)

type AssetKind string

const (
	AssetImage    AssetKind = "image"
	AssetDocument AssetKind = "document"
)

func (k AssetKind) Valid() bool {
	return k == AssetImage || k == AssetDocument
}

// Asset is what a picker hands back. Filename, MimeType and Size may be empty.
type Asset struct {
	URI      string
	Filename string
	MimeType string
	Size     int64
}

// Picker selects a single asset. It returns ErrPickerCancelled when the user backs
// out and an error wrapping ErrPermissionDenied when access is refused.
type Picker interface {
	Pick(ctx context.Context, kind AssetKind) (*Asset, error)
}

// PickImage runs picker for an image and maps the result to an attachment.
// It returns nil on cancellation or failure; failures are recorded in Err().
func (c *Composer) PickImage(ctx context.Context, picker Picker) *models.Attachment {
	return c.pick(ctx, picker, AssetImage)
}

// PickDocument is PickImage for arbitrary files
func (c *Composer) PickDocument(ctx context.Context, picker Picker) *models.Attachment {
	return c.pick(ctx, picker, AssetDocument)
}

func (c *Composer) pick(ctx context.Context, picker Picker, kind AssetKind) *models.Attachment {
	asset, err := picker.Pick(ctx, kind)
	switch {
	case err == nil && asset != nil:
	case err == nil, errors.Is(err, ErrPickerCancelled):
		return nil
	case errors.Is(err, ErrPermissionDenied):
		c.log.Warn().Err(err).Str("kind", string(kind)).Msg("picker permission denied")
		c.setErr(fmt.Sprintf("Permission to access your %s library was denied", libraryName(kind)))
		return nil
	default:
		c.log.Error().Err(err).Str("kind", string(kind)).Msg("failed to pick attachment")
		c.setErr(fmt.Sprintf("Failed to pick %s", kind))
		return nil
	}

	c.clearErr()
	att := AttachmentFromAsset(kind, *asset)
	return &att
}

func libraryName(kind AssetKind) string {
	if kind == AssetImage {
		return "photo"
	}
	return "file"
}

// AttachmentFromAsset fills in the defaults for fields the picker left empty
func AttachmentFromAsset(kind AssetKind, a Asset) models.Attachment {
	att := models.Attachment{
		URL:      a.URI,
		Filename: a.Filename,
		MimeType: a.MimeType,
		Size:     a.Size,
	}
	if att.Filename == "" {
		if kind == AssetImage {
			att.Filename = fmt.Sprintf("image_%d.jpg", now().UnixMilli())
		} else {
			att.Filename = "document"
		}
	}
	if att.MimeType == "" {
		if kind == AssetImage {
			att.MimeType = "image/jpeg"
		} else {
			att.MimeType = "application/octet-stream"
		}
	}
	if att.Size < 0 {
		att.Size = 0
	}
	return att
}

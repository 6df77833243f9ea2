package services

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/chat"
)

// ChatAttachmentFolder is the bucket prefix for chat uploads
const ChatAttachmentFolder = "overboard/chat"

var ErrUnsupportedType = errors.New("unsupported attachment type")

// UploadPicker is the server-side chat.Picker: the "selection" is the file the
// client posted, and picking it stores it in the bucket.
type UploadPicker struct {
	uploader *Uploader
	header   *multipart.FileHeader
	folder   string
}

// NewUploadPicker wraps an uploaded form file. uploader may be nil when storage
// is not configured; header may be nil when no file was sent.
func NewUploadPicker(uploader *Uploader, header *multipart.FileHeader, folder string) *UploadPicker {
	if folder == "" {
		folder = ChatAttachmentFolder
	}
	return &UploadPicker{uploader: uploader, header: header, folder: folder}
}

func (p *UploadPicker) Pick(ctx context.Context, kind chat.AssetKind) (*chat.Asset, error) {
	if p.header == nil {
		return nil, chat.ErrPickerCancelled
	}
	if p.uploader == nil {
		return nil, ErrStorageUnavailable
	}

	contentType := detectContentType(p.header)
	if kind == chat.AssetImage && !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("%w: %s is not an image", ErrUnsupportedType, contentType)
	}

	file, err := p.header.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	obj, err := p.uploader.Upload(ctx, p.folder+"/"+string(kind)+"s", p.header.Filename, contentType, file, p.header.Size)
	if err != nil {
		return nil, err
	}
	return &chat.Asset{
		URI:      obj.URL,
		Filename: obj.Filename,
		MimeType: obj.ContentType,
		Size:     obj.Size,
	}, nil
}

// detectContentType trusts the part header and falls back to the file extension
func detectContentType(h *multipart.FileHeader) string {
	if ct := h.Header.Get("Content-Type"); ct != "" && ct != "application/octet-stream" {
		if media, _, err := mime.ParseMediaType(ct); err == nil {
			return media
		}
	}
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(h.Filename))); ct != "" {
		if media, _, err := mime.ParseMediaType(ct); err == nil {
			return media
		}
	}
	return ""
}

package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/models"
)

func uploadRequest(t *testing.T, path, filename, contentType, content, token string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req, err := http.NewRequest("POST", path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestUploadAttachment_Image(t *testing.T) {
	s := setupChatServer(t)
	token := tokenFor(t, customerID, models.RoleCustomer)

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, uploadRequest(t, "/api/chat/attachments?kind=image", "lamp.png", "image/png", "pixels", token))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Attachment models.Attachment `json:"attachment"`
	}
	decode(t, w, &resp)
	assert.Equal(t, "lamp.png", resp.Attachment.Filename)
	assert.Equal(t, "image/png", resp.Attachment.MimeType)
	assert.EqualValues(t, 6, resp.Attachment.Size)
	assert.True(t, strings.HasPrefix(resp.Attachment.URL, "https://cdn.overboard.test/overboard/chat/images/"))

	require.Len(t, s.objects.keys, 1)
	// The stored URL passes the message attachment policy
	assert.NoError(t, s.handler.Attachments.Validate(resp.Attachment))
}

func TestUploadAttachment_Errors(t *testing.T) {
	s := setupChatServer(t)
	token := tokenFor(t, customerID, models.RoleCustomer)

	tests := []struct {
		name        string
		path        string
		filename    string
		contentType string
		content     string
		want        int
	}{
		{"unknown kind", "/api/chat/attachments?kind=video", "clip.mp4", "video/mp4", "frames", http.StatusBadRequest},
		{"no file", "/api/chat/attachments", "", "", "", http.StatusBadRequest},
		{"not an image", "/api/chat/attachments?kind=image", "notes.txt", "text/plain", "hello", http.StatusBadRequest},
		{"too large", "/api/chat/attachments", "big.bin", "application/octet-stream", strings.Repeat("x", 3<<19), http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			s.router.ServeHTTP(w, uploadRequest(t, tt.path, tt.filename, tt.contentType, tt.content, token))
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
	assert.Empty(t, s.objects.keys)
}

func TestUploadAttachment_StorageNotConfigured(t *testing.T) {
	s := setupChatServer(t)
	s.handler.Uploader = nil

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, uploadRequest(t, "/api/chat/attachments", "a.pdf", "application/pdf", "%PDF", tokenFor(t, customerID, models.RoleCustomer)))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

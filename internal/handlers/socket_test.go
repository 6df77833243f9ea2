package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/chat"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/models"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/pkg/errors"
)

// socketFor builds the per-connection state OnConnect would create for userID
func (s *testServer) socketFor(t *testing.T, userID string, role models.Role) *socketConn {
	t.Helper()
	sess, err := s.handler.Directory.Start(context.Background(), userID, role)
	require.NoError(t, err)
	return &socketConn{
		session:  sess,
		channel:  chat.NewChannel(s.store, nil, s.handler.Directory, sess),
		composer: chat.NewComposer(s.store, sess, nil),
		typists:  make(map[string]*chat.Typist),
	}
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	appErr, ok := errors.As(err)
	require.True(t, ok, "expected AppError, got %v", err)
	return appErr.Code
}

func TestSocketTyping_RequiresMembership(t *testing.T) {
	s := setupChatServer(t)
	convID := s.startConversation(t)
	ctx := context.Background()

	outsider := s.socketFor(t, otherID, models.RoleCustomer)
	err := s.handler.socketTyping(ctx, outsider, typingPayload{ConversationID: convID, IsTyping: true})
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
	assert.Empty(t, outsider.typists)

	err = s.handler.socketTyping(ctx, outsider, typingPayload{ConversationID: "conv_missing", IsTyping: true})
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))

	rows, err := s.store.TypingRows(ctx, convID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSocketTyping_StopDropsTypist(t *testing.T) {
	s := setupChatServer(t)
	convID := s.startConversation(t)
	ctx := context.Background()
	vendor := s.socketFor(t, vendorID, models.RoleVendor)

	require.NoError(t, s.handler.socketTyping(ctx, vendor, typingPayload{ConversationID: convID, IsTyping: true}))
	require.NoError(t, s.handler.socketTyping(ctx, vendor, typingPayload{ConversationID: convID, IsTyping: true}))
	assert.Len(t, vendor.typists, 1)

	rows, err := s.store.TypingRows(ctx, convID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].IsTyping)

	require.NoError(t, s.handler.socketTyping(ctx, vendor, typingPayload{ConversationID: convID}))
	assert.Empty(t, vendor.typists)

	rows, err = s.store.TypingRows(ctx, convID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].IsTyping)
}

func TestSocketSend(t *testing.T) {
	s := setupChatServer(t)
	convID := s.startConversation(t)
	ctx := context.Background()
	status := models.SystemStatus

	customer := s.socketFor(t, customerID, models.RoleCustomer)
	_, err := s.handler.socketSend(ctx, customer, sendPayload{ConversationID: convID, Body: "Order refunded", SystemType: &status})
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))

	outsider := s.socketFor(t, otherID, models.RoleCustomer)
	_, err = s.handler.socketSend(ctx, outsider, sendPayload{ConversationID: convID, Body: "let me in"})
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))

	_, err = s.handler.socketSend(ctx, customer, sendPayload{ConversationID: convID, Body: "   "})
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))

	msgs, err := s.store.ListMessages(ctx, convID)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	vendor := s.socketFor(t, vendorID, models.RoleVendor)
	require.NoError(t, s.handler.socketTyping(ctx, vendor, typingPayload{ConversationID: convID, IsTyping: true}))
	m, err := s.handler.socketSend(ctx, vendor, sendPayload{ConversationID: convID, Body: "Order shipped", SystemType: &status})
	require.NoError(t, err)
	assert.Equal(t, models.RoleVendor, m.SenderRole)
	require.NotNil(t, m.SystemType)
	assert.Equal(t, models.SystemStatus, *m.SystemType)
	assert.Empty(t, vendor.typists)
}

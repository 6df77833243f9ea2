package chat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/models"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/session"
)

func TestBlockUser_PreventsNewConversations(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	require.NoError(t, NewModerator(env.store, vendor).BlockUser(ctx, customerID, " spam "))

	var rows []models.BlockReport
	require.NoError(t, env.store.DB().Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, models.BlockKindBlock, rows[0].Kind)
	assert.Equal(t, "spam", rows[0].Reason)
	assert.NotEmpty(t, rows[0].ID)

	ch := NewChannel(env.store, env.hub, nil, customer)
	_, err := ch.CreateOrOpenConversation(ctx, CreateParams{
		Type:         models.ConversationGeneral,
		Participants: []models.ConversationParticipant{participant(vendor)},
	})
	assert.ErrorIs(t, err, ErrConversationBlocked)
	assert.Equal(t, "You can't message this user", ch.Err())

	id, err := ch.CreateOrOpenConversation(ctx, CreateParams{
		Type:         models.ConversationGeneral,
		Participants: []models.ConversationParticipant{participant(other)},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestBlockUser_Rejects(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()

	m := NewModerator(env.store, customer)
	assert.ErrorIs(t, m.BlockUser(ctx, customerID, ""), ErrInvalidModerationReq)
	assert.ErrorIs(t, m.BlockUser(ctx, "", ""), ErrInvalidModerationReq)
	assert.ErrorIs(t, NewModerator(env.store, session.Anonymous()).BlockUser(ctx, vendorID, ""), ErrNotAuthenticated)
}

func TestReportConversation(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	env.seedConversation(t, "conv_a", models.ConversationOrder, strPtr("ORD-3"), nil, customer, vendor)

	assert.ErrorIs(t, NewModerator(env.store, other).ReportConversation(ctx, "conv_a", "not mine"), ErrPermissionDenied)

	m := NewModerator(env.store, customer)
	require.NoError(t, m.ReportConversation(ctx, "conv_a", "asked to pay off-platform"))
	assert.Empty(t, m.Err())

	var rows []models.BlockReport
	require.NoError(t, env.store.DB().Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, models.BlockKindReport, rows[0].Kind)
	assert.Equal(t, vendorID, rows[0].TargetUserID)
	require.NotNil(t, rows[0].ConversationID)
	assert.Equal(t, "conv_a", *rows[0].ConversationID)

	assert.Error(t, m.ReportConversation(ctx, "conv_missing", ""))
	assert.Equal(t, "Failed to report conversation", m.Err())
}

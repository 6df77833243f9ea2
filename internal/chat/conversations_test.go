package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/models"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/session"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/store"
)

func conversationIDs(convs []models.Conversation) []string {
	ids := make([]string, len(convs))
	for i, c := range convs {
		ids[i] = c.ID
	}
	return ids
}

func TestLoadConversations_OrderedByActivityNullsLast(t *testing.T) {
	env := setupTestEnv(t)
	now := time.Now().UTC()

	env.seedConversation(t, "conv_quiet", models.ConversationGeneral, nil, nil, customer, vendor)
	env.seedConversation(t, "conv_old", models.ConversationOrder, strPtr("ORD-1"), timePtr(now.Add(-2*time.Hour)), customer, vendor)
	env.seedConversation(t, "conv_new", models.ConversationSupport, nil, timePtr(now.Add(-time.Minute)), customer, vendor)
	env.seedConversation(t, "conv_foreign", models.ConversationGeneral, nil, timePtr(now), other, vendor)

	s := NewConversationStore(env.store, customer)
	s.LoadConversations(context.Background(), FilterAll)

	assert.Empty(t, s.Err())
	assert.False(t, s.Loading())
	assert.Equal(t, []string{"conv_new", "conv_old", "conv_quiet"}, conversationIDs(s.Conversations()))
}

func TestLoadConversations_Filters(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	now := time.Now().UTC()

	env.seedConversation(t, "conv_order", models.ConversationOrder, strPtr("ORD-7"), nil, customer, vendor)
	env.seedConversation(t, "conv_support", models.ConversationSupport, nil, nil, customer, vendor)
	env.seedConversation(t, "conv_archived", models.ConversationGeneral, nil, nil, customer, vendor)
	require.NoError(t, env.store.SetArchived(ctx, "conv_archived", customerID, true))

	env.seedMessage(t, "msg_1", "conv_order", vendor, "your order shipped", now.Add(-time.Hour))
	env.seedMessage(t, "msg_2", "conv_support", vendor, "how can we help?", now.Add(-30*time.Minute))
	_, err := env.store.UpsertReadReceipt(ctx, "msg_2", customerID, now)
	require.NoError(t, err)

	s := NewConversationStore(env.store, customer)

	tests := []struct {
		filter Filter
		want   []string
	}{
		{FilterAll, []string{"conv_support", "conv_order"}},
		{FilterOrders, []string{"conv_order"}},
		{FilterSupport, []string{"conv_support"}},
		{FilterArchived, []string{"conv_archived"}},
		{FilterUnread, []string{"conv_order"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.filter), func(t *testing.T) {
			s.LoadConversations(ctx, tt.filter)
			assert.Empty(t, s.Err())
			assert.Equal(t, tt.filter, s.Filter())
			assert.Equal(t, tt.want, conversationIDs(s.Conversations()))
		})
	}

	s.LoadConversations(ctx, FilterAll)
	for _, c := range s.Conversations() {
		switch c.ID {
		case "conv_order":
			assert.EqualValues(t, 1, c.UnreadCount)
		case "conv_support":
			assert.EqualValues(t, 0, c.UnreadCount)
		}
	}
}

func TestLoadConversations_UnauthenticatedIsNoop(t *testing.T) {
	env := setupTestEnv(t)
	env.seedConversation(t, "conv_a", models.ConversationGeneral, nil, nil, customer, vendor)

	s := NewConversationStore(env.store, session.Anonymous())
	s.LoadConversations(context.Background(), FilterAll)

	assert.Empty(t, s.Conversations())
	assert.Empty(t, s.Err())
}

type failingList struct {
	*store.Store
}

func (failingList) ListConversations(context.Context, store.ConversationQuery) ([]models.Conversation, error) {
	return nil, errors.New("connection reset")
}

func TestLoadConversations_BackendFailureKeepsList(t *testing.T) {
	env := setupTestEnv(t)
	env.seedConversation(t, "conv_a", models.ConversationGeneral, nil, nil, customer, vendor)

	s := NewConversationStore(env.store, customer)
	s.LoadConversations(context.Background(), FilterAll)
	require.Len(t, s.Conversations(), 1)

	s.backend = failingList{env.store}
	s.LoadConversations(context.Background(), FilterAll)

	assert.Equal(t, "Failed to load conversations", s.Err())
	assert.Len(t, s.Conversations(), 1)
	assert.False(t, s.Loading())
}

func TestSearchConversations(t *testing.T) {
	env := setupTestEnv(t)
	now := time.Now().UTC()
	env.seedConversation(t, "conv_order", models.ConversationOrder, strPtr("ORD-4411"), timePtr(now.Add(-time.Hour)), customer, vendor)
	env.seedConversation(t, "conv_other", models.ConversationGeneral, nil, timePtr(now), customer, other)

	s := NewConversationStore(env.store, customer)
	s.LoadConversations(context.Background(), FilterAll)

	assert.Equal(t, []string{"conv_other", "conv_order"}, conversationIDs(s.SearchConversations("")))
	assert.Equal(t, []string{"conv_order"}, conversationIDs(s.SearchConversations("harbor")))
	assert.Equal(t, []string{"conv_order"}, conversationIDs(s.SearchConversations("ord-44")))
	assert.Equal(t, []string{"conv_other"}, conversationIDs(s.SearchConversations("MORGAN")))
	assert.Len(t, s.SearchConversations("SEEDED"), 2)
	assert.Empty(t, s.SearchConversations("nobody"))

	anon := NewConversationStore(env.store, session.Anonymous())
	assert.Empty(t, anon.SearchConversations("harbor"))
}

func TestArchiveAndUnarchiveConversation(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	env.seedConversation(t, "conv_a", models.ConversationGeneral, nil, nil, customer, vendor)
	env.seedConversation(t, "conv_b", models.ConversationGeneral, nil, nil, customer, vendor)

	s := NewConversationStore(env.store, customer)
	s.LoadConversations(ctx, FilterAll)
	require.Len(t, s.Conversations(), 2)

	s.ArchiveConversation(ctx, "conv_a")
	assert.Empty(t, s.Err())
	assert.Equal(t, []string{"conv_b"}, conversationIDs(s.Conversations()))

	conv, err := env.store.GetConversation(ctx, "conv_a")
	require.NoError(t, err)
	assert.True(t, conv.IsArchivedBy(customerID))
	assert.False(t, conv.IsArchivedBy(vendorID))

	// archiving is per user
	vs := NewConversationStore(env.store, vendor)
	vs.LoadConversations(ctx, FilterAll)
	assert.Len(t, vs.Conversations(), 2)

	s.LoadConversations(ctx, FilterArchived)
	require.Equal(t, []string{"conv_a"}, conversationIDs(s.Conversations()))

	s.UnarchiveConversation(ctx, "conv_a")
	assert.Empty(t, s.Err())
	assert.Equal(t, FilterArchived, s.Filter())
	assert.Empty(t, s.Conversations())

	s.LoadConversations(ctx, FilterAll)
	assert.Len(t, s.Conversations(), 2)
}

type failingArchive struct {
	*store.Store
}

func (failingArchive) SetArchived(context.Context, string, string, bool) error {
	return errors.New("write timeout")
}

func TestArchiveConversation_RestoresOnFailure(t *testing.T) {
	env := setupTestEnv(t)
	ctx := context.Background()
	env.seedConversation(t, "conv_a", models.ConversationGeneral, nil, nil, customer, vendor)

	s := NewConversationStore(env.store, customer)
	s.LoadConversations(ctx, FilterAll)
	s.backend = failingArchive{env.store}

	s.ArchiveConversation(ctx, "conv_a")
	assert.Equal(t, "Failed to archive conversation", s.Err())
	assert.Equal(t, []string{"conv_a"}, conversationIDs(s.Conversations()))
}

func TestParseFilter(t *testing.T) {
	f, ok := ParseFilter("")
	assert.True(t, ok)
	assert.Equal(t, FilterAll, f)

	f, ok = ParseFilter(" Orders ")
	assert.True(t, ok)
	assert.Equal(t, FilterOrders, f)

	_, ok = ParseFilter("starred")
	assert.False(t, ok)
}

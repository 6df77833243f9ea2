package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/models"
)

func TestChatRoutes_RequireAuth(t *testing.T) {
	s := setupChatServer(t)

	w := performRequest(s.router, "GET", "/api/chat/conversations", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = performRequest(s.router, "GET", "/api/chat/conversations", nil, tokenFor(t, customerID, "shopper"))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCreateConversation_ReusesExisting(t *testing.T) {
	s := setupChatServer(t)

	first := s.startConversation(t)
	second := s.startConversation(t)
	assert.Equal(t, first, second)

	conv, err := s.store.GetConversation(context.Background(), first)
	require.NoError(t, err)
	require.Len(t, conv.Participants, 2)
	assert.Equal(t, customerID, conv.Participants[0].UserID)
	// Names come from the profile tables when the client leaves them out
	assert.Equal(t, "Harbor Goods", conv.Participants[1].DisplayName)
}

func TestCreateConversation_Validation(t *testing.T) {
	s := setupChatServer(t)
	token := tokenFor(t, customerID, models.RoleCustomer)

	tests := []struct {
		name string
		body map[string]interface{}
		want int
	}{
		{"missing type", map[string]interface{}{"participants": []map[string]string{{"userId": vendorID, "role": "vendor"}}}, http.StatusBadRequest},
		{"bad role", map[string]interface{}{"type": "general", "participants": []map[string]string{{"userId": vendorID, "role": "pirate"}}}, http.StatusBadRequest},
		{"order without order id", map[string]interface{}{"type": "order", "participants": []map[string]string{{"userId": vendorID, "role": "vendor"}}}, http.StatusBadRequest},
		{"unknown type", map[string]interface{}{"type": "gossip", "participants": []map[string]string{{"userId": vendorID, "role": "vendor"}}}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := performRequest(s.router, "POST", "/api/chat/conversations", tt.body, token)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestCreateConversation_Blocked(t *testing.T) {
	s := setupChatServer(t)
	w := performRequest(s.router, "POST", "/api/chat/blocks", map[string]string{"userId": customerID},
		tokenFor(t, vendorID, models.RoleVendor))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = performRequest(s.router, "POST", "/api/chat/conversations", map[string]interface{}{
		"type":         "general",
		"participants": []map[string]string{{"userId": vendorID, "role": "vendor"}},
	}, tokenFor(t, customerID, models.RoleCustomer))
	assert.Equal(t, http.StatusForbidden, w.Code)

	var resp map[string]string
	decode(t, w, &resp)
	assert.Equal(t, "You can't message this user", resp["error"])
}

func TestSendMessage(t *testing.T) {
	s := setupChatServer(t)
	convID := s.startConversation(t)

	m := s.send(t, convID, customerID, models.RoleCustomer, "  Is the <b>lamp</b> still available?  ")
	assert.Equal(t, "Is the lamp still available?", m.Body)
	assert.Equal(t, customerID, m.SenderID)
	assert.Equal(t, models.RoleCustomer, m.SenderRole)
	assert.Equal(t, "Casey Rivers", m.SenderName)
	assert.Empty(t, m.ReadBy)

	conv, err := s.store.GetConversation(context.Background(), convID)
	require.NoError(t, err)
	assert.Equal(t, "Is the lamp still available?", conv.LastMessage)
}

func TestSendMessage_Errors(t *testing.T) {
	s := setupChatServer(t)
	convID := s.startConversation(t)
	customer := tokenFor(t, customerID, models.RoleCustomer)

	w := performRequest(s.router, "POST", "/api/chat/conversations/"+convID+"/messages",
		map[string]interface{}{"body": "   "}, customer)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp map[string]string
	decode(t, w, &resp)
	assert.Equal(t, "Message cannot be empty", resp["error"])

	w = performRequest(s.router, "POST", "/api/chat/conversations/"+convID+"/messages",
		map[string]interface{}{"body": "hi", "systemType": "banner"}, tokenFor(t, vendorID, models.RoleVendor))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = performRequest(s.router, "POST", "/api/chat/conversations/"+convID+"/messages", map[string]interface{}{
		"attachments": []map[string]interface{}{{"url": "javascript:alert(1)", "filename": "x"}},
	}, customer)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = performRequest(s.router, "POST", "/api/chat/conversations/"+convID+"/messages",
		map[string]interface{}{"body": "let me in"}, tokenFor(t, otherID, models.RoleCustomer))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = performRequest(s.router, "POST", "/api/chat/conversations/conv_missing/messages",
		map[string]interface{}{"body": "hello?"}, customer)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSendMessage_SystemTypeRequiresVendor(t *testing.T) {
	s := setupChatServer(t)
	convID := s.startConversation(t)
	path := "/api/chat/conversations/" + convID + "/messages"

	w := performRequest(s.router, "POST", path,
		map[string]interface{}{"body": "Order refunded", "systemType": "status"}, tokenFor(t, customerID, models.RoleCustomer))
	assert.Equal(t, http.StatusForbidden, w.Code)

	msgs, err := s.store.ListMessages(context.Background(), convID)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	w = performRequest(s.router, "POST", path,
		map[string]interface{}{"body": "Order shipped", "systemType": "status"}, tokenFor(t, vendorID, models.RoleVendor))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		Message models.Message `json:"message"`
	}
	decode(t, w, &resp)
	require.NotNil(t, resp.Message.SystemType)
	assert.Equal(t, models.SystemStatus, *resp.Message.SystemType)
}

func TestSendMessage_AttachmentOnly(t *testing.T) {
	s := setupChatServer(t)
	convID := s.startConversation(t)

	w := performRequest(s.router, "POST", "/api/chat/conversations/"+convID+"/messages", map[string]interface{}{
		"attachments": []map[string]interface{}{{
			"url": "https://cdn.overboard.test/chat/receipt.pdf", "filename": "receipt.pdf", "mimeType": "application/pdf", "size": 2048,
		}},
	}, tokenFor(t, vendorID, models.RoleVendor))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	conv, err := s.store.GetConversation(context.Background(), convID)
	require.NoError(t, err)
	assert.Equal(t, "Attachment: receipt.pdf", conv.LastMessage)
}

func TestGetMessages_MarksOthersRead(t *testing.T) {
	s := setupChatServer(t)
	convID := s.startConversation(t)
	s.send(t, convID, customerID, models.RoleCustomer, "Hello!")
	reply := s.send(t, convID, vendorID, models.RoleVendor, "Hi Casey, how can I help?")

	w := performRequest(s.router, "GET", "/api/chat/conversations/"+convID+"/messages", nil,
		tokenFor(t, customerID, models.RoleCustomer))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Conversation models.Conversation `json:"conversation"`
		Messages     []models.Message    `json:"messages"`
	}
	decode(t, w, &resp)
	assert.Equal(t, convID, resp.Conversation.ID)
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "Hello!", resp.Messages[0].Body)
	assert.Equal(t, "Harbor Goods", resp.Messages[1].SenderName)
	assert.Contains(t, resp.Messages[1].ReadBy, customerID)
	assert.Empty(t, resp.Messages[0].ReadBy)

	readers, err := s.store.ReadersOf(context.Background(), []string{reply.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{customerID}, readers[reply.ID])
}

func TestListConversations_Filters(t *testing.T) {
	s := setupChatServer(t)
	convID := s.startConversation(t)
	s.send(t, convID, vendorID, models.RoleVendor, "Your order shipped today")
	customer := tokenFor(t, customerID, models.RoleCustomer)

	type listResp struct {
		Filter        string                `json:"filter"`
		Conversations []models.Conversation `json:"conversations"`
	}

	w := performRequest(s.router, "GET", "/api/chat/conversations?filter=unread", nil, customer)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var unread listResp
	decode(t, w, &unread)
	assert.Equal(t, "unread", unread.Filter)
	require.Len(t, unread.Conversations, 1)
	assert.EqualValues(t, 1, unread.Conversations[0].UnreadCount)

	w = performRequest(s.router, "GET", "/api/chat/conversations?q=harbor", nil, customer)
	var search listResp
	decode(t, w, &search)
	assert.Len(t, search.Conversations, 1)

	w = performRequest(s.router, "GET", "/api/chat/conversations?q=nothing-here", nil, customer)
	var none listResp
	decode(t, w, &none)
	assert.Empty(t, none.Conversations)

	w = performRequest(s.router, "GET", "/api/chat/conversations?filter=orders", nil, customer)
	var orders listResp
	decode(t, w, &orders)
	assert.Empty(t, orders.Conversations)

	w = performRequest(s.router, "GET", "/api/chat/conversations?filter=bogus", nil, customer)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestArchiveConversation(t *testing.T) {
	s := setupChatServer(t)
	convID := s.startConversation(t)
	customer := tokenFor(t, customerID, models.RoleCustomer)

	w := performRequest(s.router, "POST", "/api/chat/conversations/"+convID+"/archive", nil, customer)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var list struct {
		Conversations []models.Conversation `json:"conversations"`
	}
	w = performRequest(s.router, "GET", "/api/chat/conversations", nil, customer)
	decode(t, w, &list)
	assert.Empty(t, list.Conversations)

	w = performRequest(s.router, "GET", "/api/chat/conversations?filter=archived", nil, customer)
	decode(t, w, &list)
	require.Len(t, list.Conversations, 1)
	assert.Contains(t, list.Conversations[0].ArchivedBy, customerID)

	// Archiving is per viewer
	w = performRequest(s.router, "GET", "/api/chat/conversations", nil, tokenFor(t, vendorID, models.RoleVendor))
	decode(t, w, &list)
	assert.Len(t, list.Conversations, 1)

	w = performRequest(s.router, "POST", "/api/chat/conversations/"+convID+"/unarchive", nil, customer)
	require.Equal(t, http.StatusOK, w.Code)
	w = performRequest(s.router, "GET", "/api/chat/conversations", nil, customer)
	decode(t, w, &list)
	assert.Len(t, list.Conversations, 1)

	w = performRequest(s.router, "POST", "/api/chat/conversations/"+convID+"/archive", nil, tokenFor(t, otherID, models.RoleCustomer))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSetTyping(t *testing.T) {
	s := setupChatServer(t)
	convID := s.startConversation(t)

	w := performRequest(s.router, "PUT", "/api/chat/conversations/"+convID+"/typing",
		map[string]bool{"isTyping": true}, tokenFor(t, vendorID, models.RoleVendor))
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	rows, err := s.store.TypingRows(context.Background(), convID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, vendorID, rows[0].UserID)
	assert.True(t, rows[0].IsTyping)
}

func TestMarkRead_Idempotent(t *testing.T) {
	s := setupChatServer(t)
	convID := s.startConversation(t)
	m := s.send(t, convID, vendorID, models.RoleVendor, "Thanks for your order!")
	customer := tokenFor(t, customerID, models.RoleCustomer)

	for i := 0; i < 2; i++ {
		w := performRequest(s.router, "POST", "/api/chat/messages/"+m.ID+"/read", nil, customer)
		require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	}

	readers, err := s.store.ReadersOf(context.Background(), []string{m.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{customerID}, readers[m.ID])
}

func TestMarkRead_RequiresMembership(t *testing.T) {
	s := setupChatServer(t)
	convID := s.startConversation(t)
	m := s.send(t, convID, vendorID, models.RoleVendor, "Thanks for your order!")

	w := performRequest(s.router, "POST", "/api/chat/messages/"+m.ID+"/read", nil, tokenFor(t, otherID, models.RoleCustomer))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = performRequest(s.router, "POST", "/api/chat/messages/msg_does_not_exist/read", nil, tokenFor(t, customerID, models.RoleCustomer))
	assert.Equal(t, http.StatusNotFound, w.Code)

	readers, err := s.store.ReadersOf(context.Background(), []string{m.ID})
	require.NoError(t, err)
	assert.Empty(t, readers[m.ID])
}

func TestCannedReplies(t *testing.T) {
	s := setupChatServer(t)
	ctx := context.Background()
	require.NoError(t, s.store.InsertCannedReply(ctx, &models.CannedReply{VendorID: models.DefaultVendorID, Title: "Thanks", Body: "Thanks for your order!"}))
	require.NoError(t, s.store.InsertCannedReply(ctx, &models.CannedReply{VendorID: vendorID, Title: "Pickup", Body: "Pickup is Saturday."}))

	var resp struct {
		CannedReplies []models.CannedReply `json:"cannedReplies"`
	}

	// Vendors default to their own templates plus the shared ones
	w := performRequest(s.router, "GET", "/api/chat/canned-replies", nil, tokenFor(t, vendorID, models.RoleVendor))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &resp)
	titles := make([]string, 0, len(resp.CannedReplies))
	for _, r := range resp.CannedReplies {
		titles = append(titles, r.Title)
	}
	assert.ElementsMatch(t, []string{"Thanks", "Pickup"}, titles)

	resp.CannedReplies = nil
	w = performRequest(s.router, "GET", "/api/chat/canned-replies", nil, tokenFor(t, customerID, models.RoleCustomer))
	decode(t, w, &resp)
	require.Len(t, resp.CannedReplies, 1)
	assert.Equal(t, "Thanks", resp.CannedReplies[0].Title)
}

func TestCannedReplies_OtherVendorForbidden(t *testing.T) {
	s := setupChatServer(t)
	require.NoError(t, s.store.InsertCannedReply(context.Background(), &models.CannedReply{VendorID: vendorID, Title: "Pickup", Body: "Pickup is Saturday."}))

	w := performRequest(s.router, "GET", "/api/chat/canned-replies?vendorId="+vendorID, nil, tokenFor(t, customerID, models.RoleCustomer))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = performRequest(s.router, "GET", "/api/chat/canned-replies?vendorId="+vendorID, nil, tokenFor(t, vendorID, models.RoleVendor))
	assert.Equal(t, http.StatusOK, w.Code)
}

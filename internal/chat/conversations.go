package chat

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/models"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/session"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/store"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/pkg/logger"
)

type Filter string

const (
	FilterAll      Filter = "all"
	FilterUnread   Filter = "unread"
	FilterOrders   Filter = "orders"
	FilterSupport  Filter = "support"
	FilterArchived Filter = "archived"
)

// ParseFilter maps a query value to a Filter; "" means all
func ParseFilter(s string) (Filter, bool) {
	switch f := Filter(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FilterAll, true
	case FilterAll, FilterUnread, FilterOrders, FilterSupport, FilterArchived:
		return f, true
	}
	return "", false
}

func (f Filter) query(userID string) store.ConversationQuery {
	q := store.ConversationQuery{UserID: userID, Archived: f == FilterArchived}
	switch f {
	case FilterOrders:
		t := models.ConversationOrder
		q.Type = &t
	case FilterSupport:
		t := models.ConversationSupport
		q.Type = &t
	}
	return q
}

// ConversationStore holds the viewer's conversation list
type ConversationStore struct {
	errorState

	backend Backend
	session *session.Session
	log     zerolog.Logger

	mu            sync.RWMutex
	conversations []models.Conversation
	filter        Filter
	loading       bool
}

func NewConversationStore(backend Backend, sess *session.Session) *ConversationStore {
	if sess == nil {
		sess = session.Anonymous()
	}
	return &ConversationStore{
		backend: backend,
		session: sess,
		filter:  FilterAll,
		log:     logger.Component("conversations"),
	}
}

// Conversations returns a copy of the loaded list
func (s *ConversationStore) Conversations() []models.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Conversation, len(s.conversations))
	copy(out, s.conversations)
	return out
}

func (s *ConversationStore) Filter() Filter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter
}

func (s *ConversationStore) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// LoadConversations replaces the loaded list with the viewer's conversations
// for filter. Failures are recorded in Err and leave the previous list in place.
func (s *ConversationStore) LoadConversations(ctx context.Context, filter Filter) {
	if !s.session.Authenticated() {
		return
	}

	s.mu.Lock()
	s.filter = filter
	s.loading = true
	s.mu.Unlock()
	s.clearErr()

	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	userID := s.session.UserID
	convs, err := s.backend.ListConversations(ctx, filter.query(userID))
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Str("filter", string(filter)).Msg("failed to load conversations")
		s.setErr("Failed to load conversations")
		return
	}

	result := make([]models.Conversation, 0, len(convs))
	for _, conv := range convs {
		unread, err := s.backend.CountUnread(ctx, conv.ID, userID)
		if err != nil {
			s.log.Warn().Err(err).Str("conversation_id", conv.ID).Msg("failed to count unread messages")
		}
		conv.UnreadCount = unread
		if filter == FilterUnread && conv.UnreadCount == 0 {
			continue
		}
		result = append(result, conv)
	}

	s.mu.Lock()
	s.conversations = result
	s.mu.Unlock()
}

// SearchConversations filters the loaded list without querying the backend
func (s *ConversationStore) SearchConversations(query string) []models.Conversation {
	list := s.Conversations()
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" || !s.session.Authenticated() {
		return list
	}

	matches := make([]models.Conversation, 0, len(list))
	for i := range list {
		if list[i].Matches(needle) {
			matches = append(matches, list[i])
		}
	}
	return matches
}

// ArchiveConversation hides the conversation for the viewer. It leaves the
// loaded list immediately and comes back if the backend write fails.
func (s *ConversationStore) ArchiveConversation(ctx context.Context, id string) {
	if !s.session.Authenticated() {
		return
	}
	s.clearErr()

	s.mu.Lock()
	index := -1
	var removed models.Conversation
	for i := range s.conversations {
		if s.conversations[i].ID == id {
			index, removed = i, s.conversations[i]
			s.conversations = append(s.conversations[:i:i], s.conversations[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	if err := s.backend.SetArchived(ctx, id, s.session.UserID, true); err != nil {
		s.log.Error().Err(err).Str("conversation_id", id).Msg("failed to archive conversation")
		s.setErr("Failed to archive conversation")
		if index >= 0 {
			s.mu.Lock()
			if index > len(s.conversations) {
				index = len(s.conversations)
			}
			s.conversations = append(s.conversations[:index:index], append([]models.Conversation{removed}, s.conversations[index:]...)...)
			s.mu.Unlock()
		}
	}
}

// UnarchiveConversation restores the conversation for the viewer and reloads
// the list with the current filter.
func (s *ConversationStore) UnarchiveConversation(ctx context.Context, id string) {
	if !s.session.Authenticated() {
		return
	}
	s.clearErr()

	if err := s.backend.SetArchived(ctx, id, s.session.UserID, false); err != nil {
		s.log.Error().Err(err).Str("conversation_id", id).Msg("failed to unarchive conversation")
		s.setErr("Failed to unarchive conversation")
		return
	}
	s.LoadConversations(ctx, s.Filter())
}

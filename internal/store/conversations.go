package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/models"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/realtime"
)

// ConversationQuery selects the conversations a user participates in
type ConversationQuery struct {
	UserID   string
	Archived bool
	Type     *models.ConversationType
}

// ConversationLookup finds existing conversations for create-or-open
type ConversationLookup struct {
	Type    models.ConversationType
	OrderID *string
	UserID  string
}

func (s *Store) withMembers(tx *gorm.DB) *gorm.DB {
	return tx.
		Preload("Participants", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Archives")
}

// ListConversations returns q.UserID's conversations, most recent activity
// first with never-messaged conversations last.
func (s *Store) ListConversations(ctx context.Context, q ConversationQuery) ([]models.Conversation, error) {
	memberOf := s.db.Model(&models.ConversationParticipant{}).Select("conversation_id").Where("user_id = ?", q.UserID)
	archived := s.db.Model(&models.ConversationArchive{}).Select("conversation_id").Where("user_id = ?", q.UserID)

	tx := s.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("conversations.id IN (?)", memberOf)
	if q.Archived {
		tx = tx.Where("conversations.id IN (?)", archived)
	} else {
		tx = tx.Where("conversations.id NOT IN (?)", archived)
	}
	if q.Type != nil {
		tx = tx.Where("conversations.type = ?", *q.Type)
	}

	var convs []models.Conversation
	err := s.withMembers(tx).
		Order("conversations.last_message_at IS NULL").
		Order("conversations.last_message_at DESC").
		Order("conversations.created_at DESC").
		Find(&convs).Error
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	for i := range convs {
		fillArchivedBy(&convs[i])
	}
	return convs, nil
}

func (s *Store) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var conv models.Conversation
	if err := s.withMembers(s.db.WithContext(ctx)).First(&conv, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("get conversation %s: %w", id, notFound(err))
	}
	fillArchivedBy(&conv)
	return &conv, nil
}

// FindConversations returns conversations of the given type and order that
// l.UserID participates in, oldest first.
func (s *Store) FindConversations(ctx context.Context, l ConversationLookup) ([]models.Conversation, error) {
	memberOf := s.db.Model(&models.ConversationParticipant{}).Select("conversation_id").Where("user_id = ?", l.UserID)

	tx := s.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("type = ?", l.Type).
		Where("id IN (?)", memberOf)
	if l.OrderID != nil {
		tx = tx.Where("order_id = ?", *l.OrderID)
	} else {
		tx = tx.Where("order_id IS NULL")
	}

	var convs []models.Conversation
	if err := s.withMembers(tx).Order("created_at ASC").Find(&convs).Error; err != nil {
		return nil, fmt.Errorf("find conversations: %w", err)
	}
	for i := range convs {
		fillArchivedBy(&convs[i])
	}
	return convs, nil
}

// InsertConversation creates the conversation together with its participants
func (s *Store) InsertConversation(ctx context.Context, conv *models.Conversation) error {
	for i := range conv.Participants {
		conv.Participants[i].ConversationID = conv.ID
		conv.Participants[i].Position = i
	}
	if err := s.db.WithContext(ctx).Create(conv).Error; err != nil {
		return fmt.Errorf("insert conversation %s: %w", conv.ID, err)
	}
	s.publish(ctx, TableConversations, realtime.EventInsert, conv, map[string]string{"id": conv.ID})
	return nil
}

// SetArchived adds or removes userID from the conversation's archived-by set
func (s *Store) SetArchived(ctx context.Context, conversationID, userID string, archived bool) error {
	db := s.db.WithContext(ctx)
	var err error
	if archived {
		err = db.Clauses(clause.OnConflict{DoNothing: true}).Create(&models.ConversationArchive{
			ConversationID: conversationID,
			UserID:         userID,
			ArchivedAt:     time.Now().UTC(),
		}).Error
	} else {
		err = db.Where("conversation_id = ? AND user_id = ?", conversationID, userID).
			Delete(&models.ConversationArchive{}).Error
	}
	if err != nil {
		return fmt.Errorf("set archived on %s: %w", conversationID, err)
	}

	s.publish(ctx, TableConversations, realtime.EventUpdate,
		map[string]any{"id": conversationID, "userId": userID, "archived": archived},
		map[string]string{"id": conversationID, "user_id": userID})
	return nil
}

// CountUnread counts messages from other senders with no receipt for userID
func (s *Store) CountUnread(ctx context.Context, conversationID, userID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id <> ?", conversationID, userID).
		Where("NOT EXISTS (SELECT 1 FROM read_receipts rr WHERE rr.message_id = messages.id AND rr.user_id = ?)", userID).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count unread in %s: %w", conversationID, err)
	}
	return n, nil
}

func fillArchivedBy(c *models.Conversation) {
	c.ArchivedBy = make([]string, 0, len(c.Archives))
	for _, a := range c.Archives {
		c.ArchivedBy = append(c.ArchivedBy, a.UserID)
	}
}

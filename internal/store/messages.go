package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/metrics"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/models"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/realtime"
)

// ListMessages returns a conversation's history oldest first
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	var msgs []models.Message
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("list messages in %s: %w", conversationID, err)
	}
	return msgs, nil
}

// GetMessage loads a single message by ID
func (s *Store) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	var m models.Message
	if err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("get message %s: %w", id, notFound(err))
	}
	return &m, nil
}

// InsertMessage appends m and moves the conversation's last-message preview
func (s *Store) InsertMessage(ctx context.Context, m *models.Message) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		res := tx.Model(&models.Conversation{}).
			Where("id = ?", m.ConversationID).
			Updates(map[string]interface{}{
				"last_message":    m.Preview(),
				"last_message_at": m.CreatedAt,
				"updated_at":      m.CreatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("insert message into %s: %w", m.ConversationID, err)
	}

	s.publish(ctx, TableMessages, realtime.EventInsert, m, map[string]string{
		"conversation_id": m.ConversationID,
		"sender_id":       m.SenderID,
	})
	return nil
}

// ReadersOf maps each message ID to the users holding a receipt for it
func (s *Store) ReadersOf(ctx context.Context, messageIDs []string) (map[string][]string, error) {
	readers := make(map[string][]string, len(messageIDs))
	if len(messageIDs) == 0 {
		return readers, nil
	}

	var receipts []models.ReadReceipt
	err := s.db.WithContext(ctx).
		Where("message_id IN ?", messageIDs).
		Order("read_at ASC").
		Find(&receipts).Error
	if err != nil {
		return nil, fmt.Errorf("load read receipts: %w", err)
	}
	for _, r := range receipts {
		readers[r.MessageID] = append(readers[r.MessageID], r.UserID)
	}
	return readers, nil
}

// UpsertReadReceipt records that userID read messageID. It reports whether a new
// receipt was written; repeating the call leaves the first receipt untouched.
func (s *Store) UpsertReadReceipt(ctx context.Context, messageID, userID string, at time.Time) (bool, error) {
	receipt := models.ReadReceipt{MessageID: messageID, UserID: userID, ReadAt: at}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "message_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&receipt)
	if res.Error != nil {
		return false, fmt.Errorf("upsert receipt for %s: %w", messageID, res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}

	metrics.ReceiptsWritten.Inc()
	s.publish(ctx, TableReceipts, realtime.EventInsert, receipt, map[string]string{
		"message_id": messageID,
		"user_id":    userID,
	})
	return true, nil
}

// UpsertTyping writes the (conversation, user) typing row
func (s *Store) UpsertTyping(ctx context.Context, conversationID, userID string, isTyping bool, at time.Time) error {
	row := models.TypingIndicator{
		ConversationID: conversationID,
		UserID:         userID,
		IsTyping:       isTyping,
		UpdatedAt:      at,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "conversation_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"is_typing", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert typing for %s: %w", conversationID, err)
	}

	s.publish(ctx, TableTyping, realtime.EventUpdate, row, map[string]string{
		"conversation_id": conversationID,
		"user_id":         userID,
	})
	return nil
}

// TypingRows returns the typing rows of a conversation
func (s *Store) TypingRows(ctx context.Context, conversationID string) ([]models.TypingIndicator, error) {
	var rows []models.TypingIndicator
	if err := s.db.WithContext(ctx).Where("conversation_id = ?", conversationID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list typing rows: %w", err)
	}
	return rows, nil
}

package models

import (
	"strings"
	"time"
)

type ConversationType string

const (
	ConversationOrder   ConversationType = "order"
	ConversationSupport ConversationType = "support"
	ConversationGeneral ConversationType = "general"
)

func (t ConversationType) Valid() bool {
	switch t {
	case ConversationOrder, ConversationSupport, ConversationGeneral:
		return true
	}
	return false
}

// Conversation is a thread between a fixed set of participants, optionally tied to an order.
// ArchivedBy and UnreadCount are computed per viewer and never written back.
type Conversation struct {
	ID            string           `gorm:"primaryKey;type:text" json:"id"`
	Type          ConversationType `gorm:"type:text;not null;index:idx_conversation_lookup" json:"type"`
	OrderID       *string          `gorm:"type:text;index:idx_conversation_lookup" json:"orderId"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
	LastMessage   string           `gorm:"type:text" json:"lastMessage"`
	LastMessageAt *time.Time       `gorm:"index" json:"lastMessageAt"`

	Participants []ConversationParticipant `gorm:"foreignKey:ConversationID" json:"participants"`
	Archives     []ConversationArchive     `gorm:"foreignKey:ConversationID" json:"-"`

	ArchivedBy  []string `gorm:"-" json:"archivedBy"`
	UnreadCount int64    `gorm:"-" json:"unreadCount"`
}

// ConversationParticipant is immutable once the conversation exists
type ConversationParticipant struct {
	ConversationID string `gorm:"primaryKey;type:text" json:"-"`
	UserID         string `gorm:"primaryKey;type:text;index" json:"userId"`
	Role           Role   `gorm:"type:text;not null" json:"role"`
	DisplayName    string `gorm:"type:text" json:"displayName"`
	AvatarURL      string `gorm:"type:text" json:"avatarUrl"`
	Position       int    `json:"-"`
}

// ConversationArchive marks a conversation archived for a single user
type ConversationArchive struct {
	ConversationID string    `gorm:"primaryKey;type:text"`
	UserID         string    `gorm:"primaryKey;type:text;index"`
	ArchivedAt     time.Time `json:"archivedAt"`
}

// HasParticipant reports whether userID is one of the conversation members
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// IsArchivedBy reports whether userID archived the conversation
func (c *Conversation) IsArchivedBy(userID string) bool {
	for _, id := range c.ArchivedBy {
		if id == userID {
			return true
		}
	}
	return false
}

// Matches does a case-insensitive substring match over participant names,
// the last message preview and the order reference. needle must be lower case.
func (c *Conversation) Matches(needle string) bool {
	for _, p := range c.Participants {
		if strings.Contains(strings.ToLower(p.DisplayName), needle) {
			return true
		}
	}
	if strings.Contains(strings.ToLower(c.LastMessage), needle) {
		return true
	}
	return c.OrderID != nil && strings.Contains(strings.ToLower(*c.OrderID), needle)
}

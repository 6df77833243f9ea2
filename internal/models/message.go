package models

import (
	"time"

	"gorm.io/datatypes"
)

type SystemType string

const (
	SystemStatus SystemType = "status"
	SystemNote   SystemType = "note"
)

func (t SystemType) Valid() bool {
	return t == SystemStatus || t == SystemNote
}

// Attachment is stored inline on its message; it is never shared between messages
type Attachment struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
}

// Message is append-only. Edits set EditedAt; read state lives in ReadReceipt rows.
type Message struct {
	ID             string                          `gorm:"primaryKey;type:text" json:"id"`
	ConversationID string                          `gorm:"type:text;not null;index:idx_messages_conversation_created" json:"conversationId"`
	SenderID       string                          `gorm:"type:text;not null;index" json:"senderId"`
	SenderRole     Role                            `gorm:"type:text;not null" json:"senderRole"`
	Body           string                          `gorm:"type:text" json:"body"`
	Attachments    datatypes.JSONSlice[Attachment] `json:"attachments"`
	CreatedAt      time.Time                       `gorm:"index:idx_messages_conversation_created" json:"createdAt"`
	EditedAt       *time.Time                      `json:"editedAt"`
	SystemType     *SystemType                     `gorm:"type:text" json:"systemType"`

	SenderName   string   `gorm:"-" json:"senderName"`
	SenderAvatar string   `gorm:"-" json:"senderAvatar"`
	ReadBy       []string `gorm:"-" json:"readBy"`
}

// Preview is the text shown as the conversation's last message
func (m *Message) Preview() string {
	if m.Body != "" {
		if len([]rune(m.Body)) > 120 {
			return string([]rune(m.Body)[:120])
		}
		return m.Body
	}
	if len(m.Attachments) > 0 {
		return "Attachment: " + m.Attachments[0].Filename
	}
	return ""
}

// IsReadBy reports whether userID holds a receipt for the message
func (m *Message) IsReadBy(userID string) bool {
	for _, id := range m.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}

// ReadReceipt is keyed by (message, user); a second write for the same pair is a no-op
type ReadReceipt struct {
	MessageID string    `gorm:"primaryKey;type:text" json:"messageId"`
	UserID    string    `gorm:"primaryKey;type:text;index" json:"userId"`
	ReadAt    time.Time `json:"readAt"`
}

// TypingIndicator is ephemeral presence data, one row per (conversation, user)
type TypingIndicator struct {
	ConversationID string    `gorm:"primaryKey;type:text" json:"conversationId"`
	UserID         string    `gorm:"primaryKey;type:text" json:"userId"`
	IsTyping       bool      `gorm:"not null;default:false" json:"isTyping"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

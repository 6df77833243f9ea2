package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is the kind of account acting in a conversation
type Role string

const (
	RoleCustomer Role = "customer"
	RoleVendor   Role = "vendor"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleVendor, RoleAdmin:
		return true
	}
	return false
}

// Customer is a shopper profile; ID is the auth user ID
type Customer struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	Name      string    `gorm:"type:text" json:"name"`
	Email     string    `gorm:"type:text;index" json:"email"`
	AvatarURL string    `gorm:"type:text" json:"avatarUrl"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// VendorProfile is a booth owner's public profile; ID is the auth user ID
type VendorProfile struct {
	ID           string    `gorm:"primaryKey;type:text" json:"id"`
	BusinessName string    `gorm:"type:text;not null" json:"businessName"`
	OwnerName    string    `gorm:"type:text" json:"ownerName"`
	LogoURL      string    `gorm:"type:text" json:"logoUrl"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// DefaultVendorID scopes canned replies shared by every vendor
const DefaultVendorID = "DEFAULT"

// CannedReply is a message template a vendor can drop into the compose field
type CannedReply struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	VendorID  string    `gorm:"type:text;not null;index" json:"vendorId"`
	Title     string    `gorm:"type:text;not null" json:"title"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	Category  string    `gorm:"type:text" json:"category"`
	CreatedAt time.Time `json:"createdAt"`
}

func (r *CannedReply) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return
}

type BlockReportKind string

const (
	BlockKindBlock  BlockReportKind = "block"
	BlockKindReport BlockReportKind = "report"
)

// BlockReport records a user blocking or reporting another user
type BlockReport struct {
	ID             string          `gorm:"primaryKey;type:text" json:"id"`
	ReporterID     string          `gorm:"type:text;not null;index" json:"reporterId"`
	TargetUserID   string          `gorm:"type:text;index" json:"targetUserId"`
	ConversationID *string         `gorm:"type:text" json:"conversationId"`
	Kind           BlockReportKind `gorm:"type:text;not null" json:"kind"`
	Reason         string          `gorm:"type:text" json:"reason"`
	CreatedAt      time.Time       `json:"createdAt"`
}

func (BlockReport) TableName() string {
	return "blocks_reports"
}

func (b *BlockReport) BeforeCreate(tx *gorm.DB) (err error) {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	return
}

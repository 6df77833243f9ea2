package store

import (
	"context"
	"fmt"

	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/models"
)

func (s *Store) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	var c models.Customer
	if err := s.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("get customer %s: %w", id, notFound(err))
	}
	return &c, nil
}

func (s *Store) GetVendorProfile(ctx context.Context, id string) (*models.VendorProfile, error) {
	var v models.VendorProfile
	if err := s.db.WithContext(ctx).First(&v, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("get vendor profile %s: %w", id, notFound(err))
	}
	return &v, nil
}

// ListCannedReplies returns the vendor's templates plus the shared defaults, newest first
func (s *Store) ListCannedReplies(ctx context.Context, vendorID string) ([]models.CannedReply, error) {
	scopes := []string{models.DefaultVendorID}
	if vendorID != "" && vendorID != models.DefaultVendorID {
		scopes = append(scopes, vendorID)
	}

	var replies []models.CannedReply
	err := s.db.WithContext(ctx).
		Where("vendor_id IN ?", scopes).
		Order("created_at DESC").
		Find(&replies).Error
	if err != nil {
		return nil, fmt.Errorf("list canned replies: %w", err)
	}
	return replies, nil
}

func (s *Store) InsertCannedReply(ctx context.Context, r *models.CannedReply) error {
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("insert canned reply: %w", err)
	}
	return nil
}

func (s *Store) InsertBlockReport(ctx context.Context, b *models.BlockReport) error {
	if err := s.db.WithContext(ctx).Create(b).Error; err != nil {
		return fmt.Errorf("insert %s: %w", b.Kind, err)
	}
	return nil
}

// IsBlocked reports whether either user has blocked the other
func (s *Store) IsBlocked(ctx context.Context, a, b string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.BlockReport{}).
		Where("kind = ?", models.BlockKindBlock).
		Where("(reporter_id = ? AND target_user_id = ?) OR (reporter_id = ? AND target_user_id = ?)", a, b, b, a).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check block between %s and %s: %w", a, b, err)
	}
	return n > 0, nil
}

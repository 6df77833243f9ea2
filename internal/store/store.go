package store

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/realtime"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/pkg/logger"
)

// Table names used on the change feed
const (
	TableConversations = "conversations"
	TableMessages      = "messages"
	TableTyping        = "typing_indicators"
	TableReceipts      = "read_receipts"
)

var ErrNotFound = errors.New("record not found")

// Store is the row-oriented backend for the messaging service. Every
// successful write is published to the change feed after it commits.
type Store struct {
	db   *gorm.DB
	feed realtime.Publisher
	log  zerolog.Logger
}

// New returns a Store on db. feed may be nil, in which case nothing is published.
func New(db *gorm.DB, feed realtime.Publisher) *Store {
	return &Store{
		db:   db,
		feed: feed,
		log:  logger.Component("store"),
	}
}

// DB exposes the underlying handle for migrations and health checks
func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) publish(ctx context.Context, table string, event realtime.Event, row any, keys map[string]string) {
	if s.feed == nil {
		return
	}
	change, err := realtime.NewChange(table, event, row, keys)
	if err != nil {
		s.log.Error().Err(err).Str("table", table).Msg("failed to encode change")
		return
	}
	if err := s.feed.Publish(context.WithoutCancel(ctx), change); err != nil {
		s.log.Warn().Err(err).Str("table", table).Msg("failed to publish change")
	}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

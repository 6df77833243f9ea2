package migrations

import (
	"gorm.io/gorm"
)

// Migration002ChatIndexes adds indexes for hot-path chat queries:
// 1. Block checks before a conversation starts (reporter_id, target_user_id, kind)
// 2. Unread counts (read_receipts by user, then message)
// 3. Active typists in a conversation
//
// All indexes are idempotent (IF NOT EXISTS) and valid on PostgreSQL and SQLite.
func Migration002ChatIndexes() Migration {
	return Migration{
		ID:        "002_chat_indexes",
		Name:      "Add indexes for block checks, unread counts and typing",
		DependsOn: []string{"001_chat_foreign_keys"},
		Up: func(db *gorm.DB) error {
			return execAll(db,
				`CREATE INDEX IF NOT EXISTS idx_blocks_reports_pair
				ON blocks_reports (reporter_id, target_user_id, kind)`,
				`CREATE INDEX IF NOT EXISTS idx_read_receipts_user_message
				ON read_receipts (user_id, message_id)`,
				`CREATE INDEX IF NOT EXISTS idx_typing_indicators_active
				ON typing_indicators (conversation_id) WHERE is_typing`,
			)
		},
		Down: func(db *gorm.DB) error {
			return execAll(db,
				`DROP INDEX IF EXISTS idx_typing_indicators_active`,
				`DROP INDEX IF EXISTS idx_read_receipts_user_message`,
				`DROP INDEX IF EXISTS idx_blocks_reports_pair`,
			)
		},
	}
}

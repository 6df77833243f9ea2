package migrations

import (
	"fmt"

	"gorm.io/gorm"
)

type foreignKey struct {
	name, table, column, ref string
}

// Child rows go with their conversation or message. Participants are left out:
// a conversation never loses members.
var chatForeignKeys = []foreignKey{
	{"fk_messages_conversation", "messages", "conversation_id", "conversations(id)"},
	{"fk_read_receipts_message", "read_receipts", "message_id", "messages(id)"},
	{"fk_typing_indicators_conversation", "typing_indicators", "conversation_id", "conversations(id)"},
	{"fk_conversation_archives_conversation", "conversation_archives", "conversation_id", "conversations(id)"},
}

// Migration001ChatForeignKeys adds cascading foreign keys on PostgreSQL.
// SQLite cannot add constraints to existing tables, so it is a no-op there.
func Migration001ChatForeignKeys() Migration {
	return Migration{
		ID:   "001_chat_foreign_keys",
		Name: "Add cascading foreign keys to chat tables",
		Up: func(db *gorm.DB) error {
			if !isPostgres(db) {
				return nil
			}
			for _, fk := range chatForeignKeys {
				var count int64
				checkSQL := `
					SELECT COUNT(*)
					FROM information_schema.table_constraints
					WHERE constraint_name = ? AND table_name = ?
				`
				if err := db.Raw(checkSQL, fk.name, fk.table).Scan(&count).Error; err != nil {
					return err
				}
				if count > 0 {
					continue
				}

				// Orphans would fail the constraint
				cleanup := fmt.Sprintf(`DELETE FROM %s WHERE %s NOT IN (SELECT id FROM %s)`,
					fk.table, fk.column, refTable(fk.ref))
				add := fmt.Sprintf(`ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s ON DELETE CASCADE`,
					fk.table, fk.name, fk.column, fk.ref)
				if err := execAll(db, cleanup, add); err != nil {
					return err
				}
			}
			return nil
		},
		Down: func(db *gorm.DB) error {
			if !isPostgres(db) {
				return nil
			}
			for i := len(chatForeignKeys) - 1; i >= 0; i-- {
				fk := chatForeignKeys[i]
				stmt := fmt.Sprintf(`ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s`, fk.table, fk.name)
				if err := db.Exec(stmt).Error; err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func refTable(ref string) string {
	for i, r := range ref {
		if r == '(' {
			return ref[:i]
		}
	}
	return ref
}

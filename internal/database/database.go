package database

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/config"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

const sqlitePrefix = "sqlite://"

// TableModels lists every table owned by the messaging service, in creation order
var TableModels = []interface{}{
	&models.Customer{},
	&models.VendorProfile{},
	&models.Conversation{},
	&models.ConversationParticipant{},
	&models.ConversationArchive{},
	&models.Message{},
	&models.ReadReceipt{},
	&models.TypingIndicator{},
	&models.CannedReply{},
	&models.BlockReport{},
}

func Connect() {
	db, err := Open(config.AppConfig.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	DB = db
}

// Open connects to PostgreSQL, or to SQLite when the URL starts with sqlite://
func Open(dsn string) (*gorm.DB, error) {
	if strings.HasPrefix(dsn, sqlitePrefix) {
		return OpenSQLite(strings.TrimPrefix(dsn, sqlitePrefix))
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	log.Println("Connected to PostgreSQL with connection pooling (max: 25, idle: 10)")
	return db, nil
}

// OpenSQLite opens a SQLite database on a single connection, which keeps
// in-memory databases alive and serialises writers.
func OpenSQLite(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// Migrate creates or updates every service table
func Migrate(db *gorm.DB) error {
	for _, m := range TableModels {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("migrate %T: %w", m, err)
		}
	}
	return nil
}

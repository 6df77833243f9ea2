package main

import (
	"context"
	"fmt"
	"log"

	"gorm.io/gorm/clause"

	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/config"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/database"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/models"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/session"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/store"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/pkg/utils"
)

var defaultReplies = []models.CannedReply{
	{ID: "canned_default_thanks", Title: "Thanks for your order", Category: "orders",
		Body: "Thank you for your order! I'll get it packed up and shipped out as soon as possible."},
	{ID: "canned_default_shipped", Title: "Order shipped", Category: "orders",
		Body: "Good news, your order is on its way. You can follow it with the tracking number on your order page."},
	{ID: "canned_default_custom", Title: "Custom requests", Category: "products",
		Body: "I'd be happy to look at a custom piece. Could you share the size, colors and timeline you have in mind?"},
	{ID: "canned_default_pickup", Title: "Local pickup", Category: "shipping",
		Body: "Local pickup is available. Let me know a day and time that works and I'll confirm the details."},
	{ID: "canned_default_away", Title: "Away message", Category: "general",
		Body: "Thanks for reaching out! I'm away from my booth right now and will reply within one business day."},
}

var demoCustomers = []models.Customer{
	{ID: "demo_customer", Name: "Casey Rivers", Email: "casey@example.com"},
}

var demoVendors = []models.VendorProfile{
	{ID: "demo_vendor", BusinessName: "Harbor Goods", OwnerName: "Jordan Lake"},
}

func main() {
	config.LoadConfig()
	database.Connect()

	log.Println("🔄 Running migrations (just in case)...")
	if err := database.Migrate(database.DB); err != nil {
		log.Fatalf("❌ Failed to migrate: %v", err)
	}

	ctx := context.Background()
	database.InitRedis(ctx)
	s := store.New(database.DB, nil)

	log.Println("💬 Seeding default quick replies...")
	for _, r := range defaultReplies {
		r.VendorID = models.DefaultVendorID
		res := database.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&r)
		if res.Error != nil {
			log.Printf("❌ Failed to create reply %s: %v", r.Title, res.Error)
			continue
		}
		if res.RowsAffected > 0 {
			log.Printf("   📝 Reply Added: %s", r.Title)
		}
	}

	log.Println("👤 Seeding demo profiles...")
	for _, c := range demoCustomers {
		if err := database.DB.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&c).Error; err != nil {
			log.Fatalf("❌ Failed to create customer %s: %v", c.ID, err)
		}
		forget(ctx, models.RoleCustomer, c.ID)
	}
	for _, v := range demoVendors {
		if err := database.DB.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&v).Error; err != nil {
			log.Fatalf("❌ Failed to create vendor %s: %v", v.ID, err)
		}
		forget(ctx, models.RoleVendor, v.ID)
	}

	replies, err := s.ListCannedReplies(ctx, models.DefaultVendorID)
	if err != nil {
		log.Fatalf("❌ Failed to read back replies: %v", err)
	}
	log.Printf("✅ Seeding complete: %d default replies", len(replies))

	if config.AppConfig.JWTSecret == "" {
		return
	}
	fmt.Println("\nDevelopment tokens:")
	for _, c := range demoCustomers {
		printToken(c.ID, models.RoleCustomer)
	}
	for _, v := range demoVendors {
		printToken(v.ID, models.RoleVendor)
	}
}

// forget drops a cached profile so running servers pick up the seeded names
func forget(ctx context.Context, kind models.Role, userID string) {
	if err := session.ForgetProfile(ctx, kind, userID); err != nil {
		log.Printf("⚠️  Failed to clear cached profile %s: %v", userID, err)
	}
}

func printToken(userID string, role models.Role) {
	token, err := utils.GenerateToken(userID, string(role))
	if err != nil {
		log.Printf("❌ Failed to sign token for %s: %v", userID, err)
		return
	}
	fmt.Printf("  %-8s %-14s %s\n", role, userID, token)
}

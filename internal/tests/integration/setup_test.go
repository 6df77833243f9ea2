package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/config"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/database"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/handlers"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/middleware"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/migrations"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/models"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/realtime"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/routes"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/session"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/store"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/pkg/logger"
	"github.com/deanapikala-art/rork-overboard-market-1-sub001/pkg/utils"
)

func TestMain(m *testing.M) {
	logger.Init("test")
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type testApp struct {
	router    *gin.Engine
	store     *store.Store
	hub       *realtime.Hub
	directory *session.Directory
}

// setupTestApp builds the service the way cmd/server does, on in-memory SQLite
func setupTestApp(t *testing.T) *testApp {
	t.Helper()
	config.AppConfig = &config.Config{
		JWTSecret: "test_secret_key_12345",
	}

	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	require.NoError(t, migrations.NewMigrator(db).Run())

	hub := realtime.NewHub()
	t.Cleanup(func() {
		hub.Close()
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	st := store.New(db, hub)
	dir := session.NewDirectory(st, time.Minute)
	h := &handlers.ChatHandler{
		Backend:       st,
		Feed:          hub,
		Directory:     dir,
		Attachments:   handlers.NewAttachmentPolicy("https://cdn.overboard.test"),
		TypingTimeout: 500 * time.Millisecond,
		ReadWait:      time.Second,
	}

	r := gin.New()
	r.Use(middleware.ErrorHandlerMiddleware())
	routes.RegisterChatRoutes(r.Group("/api"), h)

	return &testApp{router: r, store: st, hub: hub, directory: dir}
}

func createTestCustomer(t *testing.T, app *testApp, id, name string) string {
	t.Helper()
	require.NoError(t, app.store.DB().Create(&models.Customer{ID: id, Name: name, Email: id + "@test.com"}).Error)
	return tokenFor(t, id, models.RoleCustomer)
}

func createTestVendor(t *testing.T, app *testApp, id, business string) string {
	t.Helper()
	require.NoError(t, app.store.DB().Create(&models.VendorProfile{ID: id, BusinessName: business}).Error)
	return tokenFor(t, id, models.RoleVendor)
}

func tokenFor(t *testing.T, id string, role models.Role) string {
	token, err := utils.GenerateToken(id, string(role))
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	return token
}

func performRequest(r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reader io.Reader = http.NoBody
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reader = bytes.NewReader(jsonBytes)
	}

	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

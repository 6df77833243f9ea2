package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/config"
)

// Expo web dev servers; native apps send no Origin
var devOrigins = []string{"http://localhost:8081", "http://localhost:19006"}

func allowedOrigins(frontendURL string) []string {
	origins := make([]string, 0, len(devOrigins)+1)
	if frontendURL != "" {
		origins = append(origins, frontendURL)
	}
	for _, o := range devOrigins {
		if o != frontendURL {
			origins = append(origins, o)
		}
	}
	return origins
}

func CORSMiddleware() gin.HandlerFunc {
	cfg := cors.Config{
		AllowOrigins:     allowedOrigins(config.AppConfig.FrontendURL),
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	return cors.New(cfg)
}

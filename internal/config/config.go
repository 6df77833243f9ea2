package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"GO_ENV"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	JWTSecret   string `mapstructure:"JWT_SECRET"`
	FrontendURL string `mapstructure:"FRONTEND_URL"`

	// Redis (profile cache + cross-instance change feed)
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	// R2 / S3 for chat attachments
	R2AccountID       string `mapstructure:"R2_ACCOUNT_ID"`
	R2AccessKeyID     string `mapstructure:"R2_ACCESS_KEY_ID"`
	R2SecretAccessKey string `mapstructure:"R2_SECRET_ACCESS_KEY"`
	R2BucketName      string `mapstructure:"R2_BUCKET_NAME"`
	R2PublicURL       string `mapstructure:"R2_PUBLIC_URL"` // Custom domain

	// Downstream chat events, disabled when empty
	AMQPURL      string `mapstructure:"AMQP_URL"`
	AMQPExchange string `mapstructure:"AMQP_EXCHANGE"`

	TypingTimeout   time.Duration `mapstructure:"CHAT_TYPING_TIMEOUT"`
	ProfileCacheTTL time.Duration `mapstructure:"PROFILE_CACHE_TTL"`
	MaxUploadBytes  int64         `mapstructure:"MAX_UPLOAD_BYTES"`
}

var AppConfig *Config

func setDefaults() {
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("GO_ENV", "development")
	viper.SetDefault("FRONTEND_URL", "http://localhost:8081")
	viper.SetDefault("AMQP_EXCHANGE", "chat.events")
	viper.SetDefault("CHAT_TYPING_TIMEOUT", 3*time.Second)
	viper.SetDefault("PROFILE_CACHE_TTL", 10*time.Minute)
	viper.SetDefault("MAX_UPLOAD_BYTES", 20<<20)
}

func LoadConfig() {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	// AutomaticEnv only resolves keys viper already knows about
	for _, key := range []string{
		"DATABASE_URL", "JWT_SECRET", "REDIS_ADDR", "REDIS_PASSWORD",
		"R2_ACCOUNT_ID", "R2_ACCESS_KEY_ID", "R2_SECRET_ACCESS_KEY", "R2_BUCKET_NAME", "R2_PUBLIC_URL",
		"AMQP_URL",
	} {
		_ = viper.BindEnv(key)
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Unable to decode config: %v", err)
	}
}

// StorageConfigured reports whether attachment uploads can reach R2
func (c *Config) StorageConfigured() bool {
	return c.R2AccountID != "" && c.R2BucketName != "" && c.R2AccessKeyID != ""
}

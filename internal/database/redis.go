package database

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/deanapikala-art/rork-overboard-market-1-sub001/internal/config"
	"github.com/redis/go-redis/v9"
)

var Redis *redis.Client

// InitRedis connects when REDIS_ADDR is set. Without Redis the profile cache
// is skipped and the change feed stays in-process.
func InitRedis(ctx context.Context) {
	if config.AppConfig.RedisAddr == "" {
		log.Println("REDIS_ADDR not set, caching and cross-instance delivery disabled")
		return
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       0,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v. Caching and cross-instance delivery will be disabled.", err)
		client.Close()
		return
	}
	log.Println("Connected to Redis successfully")
	Redis = client
}

// Caching

func CacheSet(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if Redis == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return Redis.Set(ctx, key, data, expiration).Err()
}

// CacheGet returns redis.Nil on a miss or when Redis is not configured
func CacheGet(ctx context.Context, key string, dest interface{}) error {
	if Redis == nil {
		return redis.Nil
	}
	val, err := Redis.Get(ctx, key).Result()
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(val), dest)
}

func CacheInvalidate(ctx context.Context, pattern string) error {
	if Redis == nil {
		return nil
	}
	keys, err := Redis.Keys(ctx, pattern).Result()
	if err != nil {
		return err
	}
	if len(keys) > 0 {
		return Redis.Del(ctx, keys...).Err()
	}
	return nil
}

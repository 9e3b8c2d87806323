package db

import (
	"context"
	"fmt"
	"time"

	"streamflow/config"

	"github.com/go-redis/redis/v8"
)

// ConnectRedis opens a Redis connection and verifies it with a ping.
func ConnectRedis(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// PingRedis tests an existing Redis connection with a set/get/del cycle.
func PingRedis(client *redis.Client) error {
	if client == nil {
		return fmt.Errorf("redis client not initialized")
	}

	ctx := context.Background()

	err := client.Set(ctx, "streamflow_ping", "ok", 5*time.Minute).Err()
	if err != nil {
		return fmt.Errorf("failed to set Redis key: %w", err)
	}

	val, err := client.Get(ctx, "streamflow_ping").Result()
	if err != nil {
		return fmt.Errorf("failed to get Redis key: %w", err)
	}
	if val != "ok" {
		return fmt.Errorf("unexpected value from Redis: got %s", val)
	}

	_, err = client.Del(ctx, "streamflow_ping").Result()
	if err != nil {
		return fmt.Errorf("failed to delete Redis key: %w", err)
	}

	return nil
}

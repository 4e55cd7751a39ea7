package database

import (
	"context"
	"log"
	"time"

	"campus_wall/internal/pkg/config"

	"github.com/redis/go-redis/v9"
)

// NewRedisOptions 连接池参数取自配置，未配置的项交给 go-redis 默认值
func NewRedisOptions(cfg config.RedisConfig) *redis.Options {
	return &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolTimeout:  cfg.PoolTimeout,
	}
}

// InitRedis 按配置建立 Redis 连接，连不上直接退出
func InitRedis() *redis.Client {
	cfg := config.GlobalConfig.Redis
	rdb := redis.NewClient(NewRedisOptions(cfg))

	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis at %s: %v", cfg.Addr, err)
	}

	log.Printf("Redis connection established (pool=%d)", rdb.Options().PoolSize)
	return rdb
}

package cache

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/pbrusco/musicians-helper/config"

	"github.com/go-redis/redis/v8"
)

const (
	pingTimeout = 5 * time.Second
	keyPrefix   = "musicians-helper:"
)

// RedisClient 是全局Redis客户端
var RedisClient *redis.Client

// Options 由配置生成客户端参数
func Options(cfg *config.Config) *redis.Options {
	return &redis.Options{
		Addr:         net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  pingTimeout,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	}
}

// ConnectRedis 初始化Redis连接，连接失败时客户端保持为空
func ConnectRedis(cfg *config.Config) error {
	client := redis.NewClient(Options(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("failed to connect to Redis at %s: %w", client.Options().Addr, err)
	}
	RedisClient = client
	return nil
}

// CloseRedis 关闭Redis连接
func CloseRedis() error {
	if RedisClient == nil {
		return nil
	}
	err := RedisClient.Close()
	RedisClient = nil
	return err
}

// TestRedis 在一个事务里写入、读取并删除探测键
func TestRedis(ctx context.Context) error {
	if RedisClient == nil {
		return fmt.Errorf("Redis client not initialized")
	}

	key := keyPrefix + "ping"
	want := time.Now().Format(time.RFC3339Nano)

	var get *redis.StringCmd
	_, err := RedisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, want, time.Minute)
		get = pipe.Get(ctx, key)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis round trip failed: %w", err)
	}
	if got := get.Val(); got != want {
		return fmt.Errorf("unexpected value from Redis: got %q", got)
	}
	return nil
}

// Redis 缓存：AI 生成结果缓存
package database

import (
	"context"
	"time"

	"feedback-triage/monitoring"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "feedback:gen:"

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisCache stores generated artifact texts keyed by prompt fingerprint.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(ctx context.Context, opts RedisOptions) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     100, //连接池大小
		MinIdleConns: 5,   //最小空闲连接数
		DialTimeout:  10 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "Redis连接失败 %s", opts.Addr)
	}
	return &RedisCache{client: client, ttl: opts.TTL}, nil
}

// Get 从 Redis 获取数据，key 不存在时 ok 为 false
func (c *RedisCache) Get(ctx context.Context, key string) (val string, ok bool, err error) {
	err = monitoring.RecordRedisTime("GetFromCache", func() error {
		val, err = c.client.Get(ctx, cacheKeyPrefix+key).Result()
		return err
	})
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Set 将数据写入 Redis
func (c *RedisCache) Set(ctx context.Context, key, value string) error {
	return monitoring.RecordRedisTime("SetToCache", func() error {
		return c.client.Set(ctx, cacheKeyPrefix+key, value, c.ttl).Err()
	})
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

package tabular

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Generations hands out cache tokens per sheet. Each call returns a value no
// earlier call returned for that sheet, so a freshly bumped token can never
// name a snapshot another session cached.
type Generations interface {
	Next(ctx context.Context, sheet string) (int64, error)
}

// LocalGenerations counts in process. Enough when the cache is in process too.
type LocalGenerations struct {
	mu   sync.Mutex
	last map[string]int64
}

func NewLocalGenerations() *LocalGenerations {
	return &LocalGenerations{last: make(map[string]int64)}
}

func (g *LocalGenerations) Next(ctx context.Context, sheet string) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.last[sheet]++
	return g.last[sheet], nil
}

// RedisGenerations counts with INCR so instances sharing a redis cache never reuse a token.
type RedisGenerations struct {
	client *redis.Client
	prefix string
}

func NewRedisGenerations(client *redis.Client, prefix string) *RedisGenerations {
	return &RedisGenerations{client: client, prefix: prefix}
}

func (g *RedisGenerations) Next(ctx context.Context, sheet string) (int64, error) {
	return g.client.Incr(ctx, g.prefix+"gen:"+sheet).Result()
}

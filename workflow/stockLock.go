package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/mmdatafocus/shop_inventory/config"
	"github.com/mmdatafocus/shop_inventory/models"
)

const (
	stockLockTTL     = 30 * time.Second
	stockLockRetries = 100
)

var ErrStockLockBusy = errors.New("stock is being updated by another request, try again")

// LocalStockLocker serializes per key inside one process.
type LocalStockLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock

	metrics *Metrics
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

func NewLocalStockLocker(metrics *Metrics) *LocalStockLocker {
	return &LocalStockLocker{locks: make(map[string]*keyLock), metrics: metrics}
}

func (l *LocalStockLocker) Lock(ctx context.Context, key string) (func(), error) {
	start := time.Now()
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, kl, false)
		return nil, ctx.Err()
	}
	l.metrics.waited(time.Since(start).Seconds())

	var once sync.Once
	return func() {
		once.Do(func() { l.release(key, kl, true) })
	}, nil
}

func (l *LocalStockLocker) release(key string, kl *keyLock, held bool) {
	if held {
		<-kl.ch
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}

// RedisStockLocker serializes per key across instances sharing one redis.
type RedisStockLocker struct {
	client  *redislock.Client
	ttl     time.Duration
	logger  *logrus.Logger
	metrics *Metrics
}

func NewRedisStockLocker(client *redislock.Client, logger *logrus.Logger, metrics *Metrics) *RedisStockLocker {
	return &RedisStockLocker{client: client, ttl: stockLockTTL, logger: logger, metrics: metrics}
}

func (l *RedisStockLocker) Lock(ctx context.Context, key string) (func(), error) {
	start := time.Now()
	lockKey := fmt.Sprintf("stock:%s", key)
	lock, err := l.client.Obtain(ctx, lockKey, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(50*time.Millisecond), stockLockRetries),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		config.LogError(l.logger, "workflow", "RedisStockLocker.Lock", "could not obtain stock lock", key, err)
		return nil, ErrStockLockBusy
	} else if err != nil {
		config.LogError(l.logger, "workflow", "RedisStockLocker.Lock", "error obtaining stock lock", key, err)
		return nil, err
	}
	l.metrics.waited(time.Since(start).Seconds())

	releaseCtx := context.WithoutCancel(ctx)
	return func() {
		if err := lock.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			config.LogWarn(l.logger, "workflow", "RedisStockLocker.Lock", "release stock lock", key, err)
		}
	}, nil
}

// NewStockLocker picks redis when connected, a MySQL advisory lock when the
// store itself is MySQL, and an in-process lock otherwise.
func NewStockLocker(db *gorm.DB, logger *logrus.Logger, metrics *Metrics) models.StockLocker {
	if rl := config.GetRedisLock(); rl != nil {
		return NewRedisStockLocker(rl, logger, metrics)
	}
	if db != nil && config.StoreDriver() == config.StoreDriverMySQL {
		return NewMySQLStockLocker(db, logger)
	}
	return NewLocalStockLocker(metrics)
}

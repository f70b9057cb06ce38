package workflow

import (
	"context"
	"crypto/sha1"
	"database/sql"
	"encoding/hex"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/mmdatafocus/shop_inventory/config"
)

const mysqlLockTimeoutSeconds = 30

// MySQLStockLocker serializes stock updates across instances using MySQL advisory locks.
// NOTE: GET_LOCK is connection-scoped, so the lock pins one pooled connection until released.
type MySQLStockLocker struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewMySQLStockLocker(db *gorm.DB, logger *logrus.Logger) *MySQLStockLocker {
	return &MySQLStockLocker{db: db, logger: logger}
}

// lock names are limited to 64 characters
func stockLockName(key string) string {
	sum := sha1.Sum([]byte(key))
	return "stock:" + hex.EncodeToString(sum[:])
}

func (l *MySQLStockLocker) Lock(ctx context.Context, key string) (func(), error) {
	sqlDB, err := l.db.DB()
	if err != nil {
		return nil, err
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return nil, err
	}

	lockName := stockLockName(key)
	var ok sql.NullInt64
	if err := conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, ?)", lockName, mysqlLockTimeoutSeconds).Scan(&ok); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if !ok.Valid || ok.Int64 != 1 {
		_ = conn.Close()
		config.LogError(l.logger, "workflow", "MySQLStockLocker.Lock", "could not acquire stock lock", key, ErrStockLockBusy)
		return nil, fmt.Errorf("%w: %s", ErrStockLockBusy, key)
	}

	releaseCtx := context.WithoutCancel(ctx)
	return func() {
		var released sql.NullInt64
		if err := conn.QueryRowContext(releaseCtx, "SELECT RELEASE_LOCK(?)", lockName).Scan(&released); err != nil {
			config.LogWarn(l.logger, "workflow", "MySQLStockLocker.Lock", "release stock lock", key, err)
		}
		_ = conn.Close()
	}, nil
}

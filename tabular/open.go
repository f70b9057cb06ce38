package tabular

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/mmdatafocus/shop_inventory/config"
)

const (
	cachePrefix     = "inventory"
	memoryCacheSize = 256
)

// Open connects the store selected by STORE_DRIVER. For mysql the database is connected
// through config and the row tables are migrated.
func Open(ctx context.Context, logger *logrus.Logger) (Store, error) {
	switch driver := config.StoreDriver(); driver {
	case config.StoreDriverMemory:
		logger.WithFields(logrus.Fields{"module": "tabular", "driver": driver}).Warn("using in-memory store; data is lost on restart")
		return NewMemoryStore(), nil
	case config.StoreDriverMySQL:
		if err := config.ConnectDatabaseWithRetry(ctx); err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		store := NewSQLStore(config.GetDB())
		if err := store.Migrate(); err != nil {
			return nil, fmt.Errorf("migrate row tables: %w", err)
		}
		return store, nil
	default:
		svc, drv, err := config.GetSheetsServices(ctx)
		if err != nil {
			return nil, fmt.Errorf("sheets client: %w", err)
		}
		store, err := OpenSpreadsheet(ctx, svc, drv, config.SpreadsheetId(), config.SpreadsheetName())
		if err != nil {
			return nil, err
		}
		logger.WithFields(logrus.Fields{
			"module":         "tabular",
			"spreadsheet_id": store.SpreadsheetId(),
		}).Info("spreadsheet opened")
		return store, nil
	}
}

// OpenCache uses redis when it is connected and an in-process LRU otherwise.
func OpenCache() Cache {
	if rdb := config.GetRedisDB(); rdb != nil {
		return NewRedisCache(rdb, cachePrefix, config.CacheTTL())
	}
	return NewMemoryCache(memoryCacheSize, config.CacheTTL())
}

// OpenGenerations pairs with OpenCache: tokens are shared through redis
// whenever cached reads are.
func OpenGenerations() Generations {
	if rdb := config.GetRedisDB(); rdb != nil {
		return NewRedisGenerations(rdb, cachePrefix)
	}
	return NewLocalGenerations()
}

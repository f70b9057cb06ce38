package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreDriverSheets = "sheets"
	StoreDriverMySQL  = "mysql"
	StoreDriverMemory = "memory"

	NotifyDriverSMTP   = "smtp"
	NotifyDriverPubSub = "pubsub"
	NotifyDriverLog    = "log"
)

// StoreDriver selects the tabular store backing every table.
//
// Set via env:
// - STORE_DRIVER=sheets|mysql|memory (default sheets)
func StoreDriver() string {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("STORE_DRIVER")))
	switch v {
	case StoreDriverMySQL, StoreDriverMemory:
		return v
	default:
		return StoreDriverSheets
	}
}

// NotifyDriver selects the low-stock notification sink.
//
// Set via env:
// - NOTIFY_DRIVER=smtp|pubsub|log (default smtp when SMTP_HOST is set, log otherwise)
func NotifyDriver() string {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("NOTIFY_DRIVER")))
	switch v {
	case NotifyDriverSMTP, NotifyDriverPubSub, NotifyDriverLog:
		return v
	}
	if strings.TrimSpace(os.Getenv("SMTP_HOST")) != "" {
		return NotifyDriverSMTP
	}
	return NotifyDriverLog
}

// CacheTTL is the staleness window of cached table reads.
//
// Set via env:
// - CACHE_TTL_SECONDS (default 300)
func CacheTTL() time.Duration {
	return time.Duration(intFromEnv("CACHE_TTL_SECONDS", 300)) * time.Second
}

// RejectOversell makes checkout refuse carts whose quantities exceed current stock.
// Off by default: exits clamp stock at zero.
//
// Set via env:
// - CHECKOUT_REJECT_OVERSELL=true
func RejectOversell() bool {
	return boolFromEnv("CHECKOUT_REJECT_OVERSELL")
}

// LowStockCron is the cron spec (with seconds) of the periodic low-stock check; empty disables it.
//
// Set via env:
// - LOW_STOCK_CRON="0 0 8 * * *"
func LowStockCron() string {
	return strings.TrimSpace(os.Getenv("LOW_STOCK_CRON"))
}

func boolFromEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

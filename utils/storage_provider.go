package utils

import (
	"os"
	"strings"
)

const (
	StorageProviderGCS   = "gcs"
	StorageProviderLocal = "local"

	defaultLocalStorageDir = "uploads"
)

func GetStorageProvider() string {
	provider := strings.TrimSpace(strings.ToLower(os.Getenv("STORAGE_PROVIDER")))
	if provider == "" {
		return StorageProviderLocal
	}
	return provider
}

// LocalStorageDir is where the local provider writes objects (STORAGE_LOCAL_DIR).
func LocalStorageDir() string {
	return StringOr(os.Getenv("STORAGE_LOCAL_DIR"), defaultLocalStorageDir)
}

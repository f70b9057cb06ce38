package utils

import (
	"net/url"
	"os"
	"strings"
)

// BuildObjectAccessURL turns an object key into the URL stored in the Image column.
// STORAGE_ACCESS_BASE_URL may contain an {objectKey} placeholder or end in a query.
func BuildObjectAccessURL(objectKey string) string {
	base := strings.TrimSpace(os.Getenv("STORAGE_ACCESS_BASE_URL"))
	if base != "" {
		if strings.Contains(base, "{objectKey}") {
			escaped := objectKey
			if strings.Contains(base, "?") {
				escaped = url.QueryEscape(objectKey)
			}
			return strings.ReplaceAll(base, "{objectKey}", escaped)
		}
		if strings.Contains(base, "?") {
			return base + url.QueryEscape(objectKey)
		}
		return strings.TrimRight(base, "/") + "/" + objectKey
	}

	if GetStorageProvider() == StorageProviderGCS {
		if bucket := strings.TrimSpace(os.Getenv("GCS_BUCKET")); bucket != "" {
			host := StringOr(os.Getenv("GCS_URL"), "storage.googleapis.com")
			return "https://" + host + "/" + bucket + "/" + objectKey
		}
	}
	return "/files/" + objectKey
}

// ValidObjectKey rejects absolute keys and path traversal.
func ValidObjectKey(objectKey string) bool {
	return objectKey != "" && !strings.Contains(objectKey, "..") && !strings.HasPrefix(objectKey, "/")
}

package utils

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// getGoogleClient initializes a Google Cloud Storage client
func getGoogleClient(ctx context.Context) (*storage.Client, error) {
	// Prefer ADC; GCS_CREDENTIALS_JSON is for running outside GCP.
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		return storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	}
	return storage.NewClient(ctx)
}

func gcsBucket() (string, error) {
	bucketName := strings.TrimSpace(os.Getenv("GCS_BUCKET"))
	if bucketName == "" {
		return "", errors.New("GCS_BUCKET is required")
	}
	return bucketName, nil
}

func UploadBytesToGCS(ctx context.Context, objectName string, data []byte, contentType string) error {
	bucketName, err := gcsBucket()
	if err != nil {
		return err
	}
	client, err := getGoogleClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	wc := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	wc.ContentType = contentType
	if _, err := wc.Write(data); err != nil {
		return fmt.Errorf("failed to upload bytes to Google Cloud Storage: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	return nil
}

func saveLocalObject(objectName string, data []byte) error {
	target := filepath.Join(LocalStorageDir(), filepath.FromSlash(objectName))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	return os.WriteFile(target, data, 0o644)
}

// SaveObject stores data under objectName with the configured provider and returns its access URL.
func SaveObject(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	if !ValidObjectKey(objectName) {
		return "", fmt.Errorf("invalid object key %q", objectName)
	}
	switch provider := GetStorageProvider(); provider {
	case StorageProviderGCS:
		if err := UploadBytesToGCS(ctx, objectName, data, contentType); err != nil {
			return "", err
		}
	case StorageProviderLocal:
		if err := saveLocalObject(objectName, data); err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("storage provider %q not supported", provider)
	}
	return BuildObjectAccessURL(objectName), nil
}

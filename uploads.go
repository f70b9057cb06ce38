package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mmdatafocus/shop_inventory/utils"
)

const (
	maxUploadSizeBytes int64 = 5 * 1024 * 1024

	productImageWidth = 800
	thumbnailWidth    = 200
)

var imageMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

type productImageResponse struct {
	ImageURL           string `json:"imageUrl"`
	ThumbnailURL       string `json:"thumbnailUrl"`
	ObjectKey          string `json:"objectKey"`
	ThumbnailObjectKey string `json:"thumbnailObjectKey"`
}

// productImageHandler takes a multipart "file", scales it down, stores it with a thumbnail
// and returns the URL to put in the product's Image column.
func productImageHandler(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := requestIDFromHeaders(c)

		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
			return
		}
		if fileHeader.Size > maxUploadSizeBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file size exceeds 5MB limit"})
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
			return
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, maxUploadSizeBytes+1))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
			return
		}
		if int64(len(data)) > maxUploadSizeBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file size exceeds 5MB limit"})
			return
		}
		mimeType := http.DetectContentType(data)
		if !imageMimeTypes[mimeType] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported image type"})
			return
		}

		resp, err := storeProductImage(c.Request.Context(), productImageKey(fileHeader.Filename, time.Now()), data)
		if err != nil {
			logUploadError(logger, err, utils.GetStorageProvider(), requestID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store image"})
			return
		}
		c.JSON(http.StatusCreated, resp)
	}
}

func storeProductImage(ctx context.Context, objectKey string, data []byte) (*productImageResponse, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	full, err := encodeJPEG(fitWidth(img, productImageWidth))
	if err != nil {
		return nil, err
	}
	imageURL, err := utils.SaveObject(ctx, objectKey, full, "image/jpeg")
	if err != nil {
		return nil, err
	}

	thumb, err := encodeJPEG(fitWidth(img, thumbnailWidth))
	if err != nil {
		return nil, err
	}
	thumbKey := thumbnailObjectKey(objectKey)
	thumbURL, err := utils.SaveObject(ctx, thumbKey, thumb, "image/jpeg")
	if err != nil {
		return nil, err
	}

	return &productImageResponse{
		ImageURL:           imageURL,
		ThumbnailURL:       thumbURL,
		ObjectKey:          objectKey,
		ThumbnailObjectKey: thumbKey,
	}, nil
}

// fitWidth only ever shrinks.
func fitWidth(img image.Image, width int) image.Image {
	if img.Bounds().Dx() <= width {
		return img
	}
	return imaging.Resize(img, width, 0, imaging.Lanczos)
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), nil
}

func productImageKey(filename string, now time.Time) string {
	base := strings.TrimSuffix(path.Base(filename), path.Ext(filename))
	base = sanitizeSegment(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(base)), " ", "_"))
	if base == "" {
		base = "image"
	}
	return fmt.Sprintf("products/%s/%s_%s.jpg", now.Format("200601"), base, uuid.NewString()[:8])
}

func thumbnailObjectKey(objectKey string) string {
	dir := path.Dir(objectKey)
	filename := path.Base(objectKey)
	return path.Join(dir, "thumbnails", filename)
}

func sanitizeSegment(input string) string {
	var out strings.Builder
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			out.WriteRune(r)
		}
	}
	return out.String()
}

func logUploadError(logger *logrus.Logger, err error, provider string, requestID string) {
	if logger == nil || err == nil {
		return
	}
	logger.WithFields(logrus.Fields{
		"error":      err.Error(),
		"provider":   provider,
		"request_id": requestID,
	}).Error("[upload.error]")
}

func requestIDFromHeaders(c *gin.Context) string {
	if id := strings.TrimSpace(c.GetHeader("X-Correlation-Id")); id != "" {
		return id
	}
	if id := strings.TrimSpace(c.GetHeader("X-Request-Id")); id != "" {
		return id
	}
	return fmt.Sprintf("upload-%d", time.Now().UnixNano())
}

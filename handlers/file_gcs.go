package handlers

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/storage"
)

// saveFileGCS writes the multipart "file" field to the configured GCS bucket
// and returns its public URL.
func saveFileGCS(r *http.Request, prefix string) (string, string, error) {
	bucketName := os.Getenv("GCS_BUCKET")
	if bucketName == "" {
		return "", "", fmt.Errorf("GCS_BUCKET is not configured")
	}

	if err := r.ParseMultipartForm(50 << 20); err != nil {
		return "", "", fmt.Errorf("bad multipart form: %w", err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return "", "", fmt.Errorf("missing file field: %w", err)
	}
	defer file.Close()

	ctx := r.Context()
	client, err := storage.NewClient(ctx)
	if err != nil {
		return "", "", fmt.Errorf("failed to create storage client: %w", err)
	}
	defer client.Close()

	timestamp := time.Now().Format("20060102-150405")
	objectName := fmt.Sprintf("%s/%s-%s", prefix, timestamp, header.Filename)

	wc := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	wc.ContentType = header.Header.Get("Content-Type")
	if _, err := io.Copy(wc, file); err != nil {
		wc.Close()
		return "", "", fmt.Errorf("failed to upload file: %w", err)
	}
	if err := wc.Close(); err != nil {
		return "", "", fmt.Errorf("failed to finalize upload: %w", err)
	}

	url := fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucketName, objectName)
	return url, objectName, nil
}

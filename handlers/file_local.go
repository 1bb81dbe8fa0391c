package handlers

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const (
	uploadDir = "./uploads" // Local directory for file storage
)

// saveFileLocal writes the multipart "file" field to the local uploads
// directory. Used in development when no GCS credentials are configured.
func saveFileLocal(r *http.Request, prefix string) (string, string, error) {
	dir := filepath.Join(uploadDir, prefix)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	// Parse the multipart form (max 50MB)
	if err := r.ParseMultipartForm(50 << 20); err != nil {
		return "", "", fmt.Errorf("bad multipart form: %w", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", "", fmt.Errorf("missing file field: %w", err)
	}
	defer file.Close()

	// Timestamp prefix avoids collisions
	timestamp := time.Now().Format("20060102-150405")
	filename := fmt.Sprintf("%s-%s", timestamp, header.Filename)
	dst, err := os.Create(filepath.Join(dir, filename))
	if err != nil {
		return "", "", fmt.Errorf("failed to create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		return "", "", fmt.Errorf("failed to save file: %w", err)
	}

	url := fmt.Sprintf("/uploads/%s/%s", prefix, filename)
	return url, filename, nil
}

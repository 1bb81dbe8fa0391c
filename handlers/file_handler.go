package handlers

import (
	"net/http"
	"os"
)

// useGCS reports whether uploads should go to Google Cloud Storage.
// Cloud Run sets K_SERVICE; GOOGLE_APPLICATION_CREDENTIALS covers everything
// else running with a service account.
func useGCS() bool {
	return os.Getenv("USE_GCS") == "true" ||
		os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "" ||
		os.Getenv("K_SERVICE") != ""
}

// saveUploadedFile stores the multipart "file" field under the given prefix
// and returns the public URL and stored filename.
func saveUploadedFile(r *http.Request, prefix string) (string, string, error) {
	if useGCS() {
		return saveFileGCS(r, prefix)
	}
	return saveFileLocal(r, prefix)
}

// UploadFileHandler routes to the appropriate upload backend based on environment
func UploadFileHandler(w http.ResponseWriter, r *http.Request) {
	url, filename, err := saveUploadedFile(r, "files")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"url":      url,
		"filename": filename,
	})
}

package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"p9e.in/fixflow/handlers"
	"p9e.in/fixflow/middleware"
)

// RegisterRoutes sets up all application routes
func RegisterRoutes() http.Handler {
	r := mux.NewRouter()

	// =====================================================
	// Public Routes (no authentication)
	// =====================================================
	r.HandleFunc("/register", handlers.Register).Methods("POST")
	r.HandleFunc("/login", handlers.Login).Methods("POST")
	r.PathPrefix("/uploads/").Handler(
		http.StripPrefix("/uploads/", http.FileServer(http.Dir("./uploads"))),
	)

	// =====================================================
	// Protected API Routes (require JWT authentication)
	// =====================================================
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.JWTMiddleware)

	api.HandleFunc("/me", handlers.GetCurrentUser).Methods("GET")
	api.HandleFunc("/change-password", handlers.ChangePassword).Methods("POST")

	registerJobRoutes(api)
	registerQuotationRoutes(api)
	registerUsageRoutes(api)
	registerNotificationRoutes(api)

	api.HandleFunc("/files/upload", handlers.UploadFileHandler).Methods("POST")

	return r
}

// registerJobRoutes registers the job lifecycle endpoints
func registerJobRoutes(api *mux.Router) {
	api.HandleFunc("/jobs", handlers.ListJobs).Methods("GET")
	api.HandleFunc("/jobs", handlers.CreateJob).Methods("POST")
	api.HandleFunc("/jobs/{id}", handlers.GetJob).Methods("GET")
	api.HandleFunc("/jobs/{id}", handlers.PatchJob).Methods("PATCH")
	api.HandleFunc("/jobs/{id}/status", handlers.UpdateJobStatus).Methods("PUT")
	api.HandleFunc("/jobs/{id}/status/validate", handlers.ValidateJobTransition).Methods("POST")
	api.HandleFunc("/jobs/{id}/history", handlers.GetJobHistory).Methods("GET")
	api.HandleFunc("/jobs/{id}/assign", handlers.AssignProvider).Methods("POST")
	api.HandleFunc("/jobs/{id}/archive", handlers.ArchiveJob).Methods("POST")
	api.HandleFunc("/jobs/{id}/images", handlers.AttachJobImage).Methods("POST")
	api.HandleFunc("/jobs/{id}/quotations", handlers.ListJobQuotations).Methods("GET")
}

// registerQuotationRoutes registers the quotation workflow endpoints
func registerQuotationRoutes(api *mux.Router) {
	api.HandleFunc("/quotations", handlers.SubmitQuotation).Methods("POST")
	api.HandleFunc("/quotations/{id}", handlers.GetQuotation).Methods("GET")
	api.HandleFunc("/quotations/{id}/respond", handlers.RespondToQuotation).Methods("POST")
	api.HandleFunc("/quotations/{id}/history", handlers.GetQuotationHistory).Methods("GET")
	api.HandleFunc("/quotations/{id}/document", handlers.UploadQuotationDocument).Methods("POST")
}

// registerUsageRoutes registers quota visibility endpoints
func registerUsageRoutes(api *mux.Router) {
	api.HandleFunc("/usage", handlers.GetUsageSummary).Methods("GET")
	api.HandleFunc("/usage/export", handlers.ExportUsageStatement).Methods("GET")
}

// registerNotificationRoutes registers in-app notification endpoints
func registerNotificationRoutes(api *mux.Router) {
	api.HandleFunc("/notifications", handlers.ListNotifications).Methods("GET")
	api.HandleFunc("/notifications/unread-count", handlers.GetUnreadCount).Methods("GET")
	api.HandleFunc("/notifications/{id}/read", handlers.MarkNotificationRead).Methods("POST")
	api.HandleFunc("/notifications/read-all", handlers.MarkAllNotificationsRead).Methods("POST")
}

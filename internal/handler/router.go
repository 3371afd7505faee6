package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// Handlers groups the route handlers NewRouter mounts.
type Handlers struct {
	Auth         *AuthHandler
	Subscription *SubscriptionHandler
	Usage        *UsageHandler
	Billing      *BillingHandler
	Admin        *AdminHandler
	Metrics      http.Handler
}

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(h Handlers, authMiddleware func(http.Handler) http.Handler, allowedOrigins []string) http.Handler {
	router := mux.NewRouter()

	// Health check endpoint (no auth required)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "storytime-api"})
	}).Methods(http.MethodGet)

	if h.Metrics != nil {
		router.Handle("/metrics", h.Metrics).Methods(http.MethodGet)
	}

	api := router.PathPrefix("/api/v1").Subrouter()

	// Public routes
	api.HandleFunc("/plans", h.Subscription.ListPlans).Methods(http.MethodGet)
	api.HandleFunc("/billing/webhook", h.Billing.Webhook).Methods(http.MethodPost)
	if h.Admin != nil {
		api.HandleFunc("/admin/users/{id}/usage/reset", h.Admin.ResetUsage).Methods(http.MethodPost)
	}

	// Protected routes (require authentication)
	protected := api.PathPrefix("").Subrouter()
	protected.Use(authMiddleware)

	protected.HandleFunc("/auth/profile", h.Auth.GetProfile).Methods(http.MethodGet)
	protected.HandleFunc("/subscription", h.Subscription.GetSubscription).Methods(http.MethodGet)
	protected.HandleFunc("/subscription/features/{feature}", h.Subscription.GetFeature).Methods(http.MethodGet)
	protected.HandleFunc("/usage/stories", h.Usage.RecordStory).Methods(http.MethodPost)
	protected.HandleFunc("/billing/checkout", h.Billing.CreateCheckout).Methods(http.MethodPost)
	protected.HandleFunc("/billing/portal", h.Billing.CreatePortal).Methods(http.MethodPost)

	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
		},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	})

	return c.Handler(router)
}

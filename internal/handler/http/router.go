package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scalemako/crm-backend/internal/auth"
	"github.com/scalemako/crm-backend/internal/service"
	"github.com/scalemako/crm-backend/internal/session"
	"github.com/scalemako/crm-backend/pkg/health"
	"github.com/scalemako/crm-backend/pkg/middleware"
)

// NewRouter creates a chi router with all CRM backend routes registered.
func NewRouter(
	authService *service.AuthService,
	apiKeyService *service.APIKeyService,
	leadService *service.LeadService,
	tokens *auth.TokenManager,
	cookies *session.CookieManager,
	healthHandler *health.Handler,
	logger *slog.Logger,
	corsConfig CORSConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(CORS(corsConfig))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics("crm"))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Auth endpoints (public)
	authHandler := NewAuthHandler(authService, cookies, logger)
	r.Route("/auth", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/signup", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Get("/session", authHandler.Session)
		r.Post("/reset-password", authHandler.ResetPassword)
	})

	// Provider webhooks (public; Twilio posts form-encoded bodies, so no
	// JSON content-type gate here)
	webhookHandler := NewWebhookHandler(leadService, logger)
	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/vapi", webhookHandler.Vapi)
		r.Post("/twilio", webhookHandler.Twilio)
	})

	// Session-gated API
	apiKeyHandler := NewAPIKeyHandler(apiKeyService, logger)
	leadHandler := NewLeadHandler(leadService, logger)
	r.Route("/api", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(SessionAuth(tokens))

		r.Get("/leads", leadHandler.List)
		r.Post("/leads", leadHandler.Create)
		r.Patch("/leads/{id}", leadHandler.UpdateStatus)
		r.Get("/calls", leadHandler.ListCalls)

		r.Get("/keys", apiKeyHandler.List)
		r.Post("/keys", apiKeyHandler.Save)
		r.Get("/keys/{service}", apiKeyHandler.Get)
		r.Delete("/keys/{service}", apiKeyHandler.Delete)
	})

	return r
}

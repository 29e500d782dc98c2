package storefront

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/joao-fontenele/storefront/internal/session"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

// NewRouter registers the storefront routes. Every page and form goes
// through the session middleware; health, static files and the payment
// webhook do not need a visitor session.
func NewRouter(h *Handler, sessions *session.Manager, staticDir string, logger *slog.Logger) http.Handler {
	pages := http.NewServeMux()
	pages.HandleFunc("GET /{$}", telemetry.WithHTTPRoute(h.HandleHome))
	pages.HandleFunc("POST /send-email", telemetry.WithHTTPRoute(h.HandleSendEmail))
	pages.HandleFunc("POST /add-to-cart/{productId}", telemetry.WithHTTPRoute(h.HandleAddToCart))
	pages.HandleFunc("GET /checkout", telemetry.WithHTTPRoute(h.HandleCheckout))
	pages.HandleFunc("GET /remove-item/{productId}", telemetry.WithHTTPRoute(h.HandleRemoveItem))
	pages.HandleFunc("POST /change-qty/{productId}", telemetry.WithHTTPRoute(h.HandleChangeQuantity))
	pages.HandleFunc("POST /order", telemetry.WithHTTPRoute(h.HandleOrder))
	pages.HandleFunc("POST /successful-purchase", telemetry.WithHTTPRoute(h.HandleSuccessfulPurchase))
	pages.HandleFunc("GET /privacy-policy", telemetry.WithHTTPRoute(h.HandlePrivacyPolicy))
	pages.HandleFunc("/", telemetry.WithHTTPRoute(h.HandleNotFound))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", telemetry.WithHTTPRoute(h.HandleHealth))
	mux.HandleFunc("GET /smartpost", telemetry.WithHTTPRoute(h.HandleSmartpost))
	mux.HandleFunc("POST /order-notifications", telemetry.WithHTTPRoute(h.HandleOrderNotification))
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	mux.Handle("/", sessions.Middleware(pages))

	var handler http.Handler = mux
	handler = securityHeaders(handler)
	handler = requestLogger(logger)(handler)
	handler = middleware.Recoverer(handler)
	handler = middleware.RealIP(handler)
	handler = middleware.RequestID(handler)
	return handler
}

package router

import (
	"net/http"
	"strings"

	"storefront/internal/handler"
	"storefront/internal/metrics"
	"storefront/internal/middleware"

	"github.com/rs/zerolog"
)

// New creates a new HTTP router with all routes and middleware configured.
func New(
	cartHandler *handler.CartHandler,
	checkoutHandler *handler.CheckoutHandler,
	orderHandler *handler.OrderHandler,
	webhookHandler *handler.WebhookHandler,
	serverMetrics *metrics.ServerMetrics,
	apiKey string,
	jwtSecret string,
	logger zerolog.Logger,
) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint (no authentication required)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})

	mux.Handle("/metrics", metrics.Handler())

	// Cart routes
	mux.HandleFunc("/api/cart", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			cartHandler.List(w, r)
		case http.MethodDelete:
			cartHandler.Clear(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/api/cart/merge", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		cartHandler.Merge(w, r)
	})

	cartItemsHandler := func(w http.ResponseWriter, r *http.Request) {
		// POST /api/cart/items adds; item rows are addressed by product id.
		if r.URL.Path == "/api/cart/items" || r.URL.Path == "/api/cart/items/" {
			if r.Method != http.MethodPost {
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			cartHandler.Add(w, r)
			return
		}

		switch r.Method {
		case http.MethodPut:
			cartHandler.Update(w, r)
		case http.MethodDelete:
			cartHandler.Remove(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}
	mux.HandleFunc("/api/cart/items", cartItemsHandler)
	mux.HandleFunc("/api/cart/items/", cartItemsHandler)

	// Checkout route
	mux.HandleFunc("/api/checkout", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		checkoutHandler.Checkout(w, r)
	})

	// Order routes: /api/orders, /api/orders/{id}, /api/orders/{id}/cancel,
	// /api/orders/{id}/status
	mux.HandleFunc("/api/orders", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		orderHandler.List(w, r)
	})
	mux.HandleFunc("/api/orders/", func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/orders/")
		switch {
		case strings.HasSuffix(rest, "/cancel"):
			if r.Method != http.MethodPost {
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			orderHandler.Cancel(w, r)
		case strings.HasSuffix(rest, "/status"):
			if r.Method != http.MethodPatch {
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			orderHandler.UpdateStatus(w, r)
		case rest != "":
			if r.Method != http.MethodGet {
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			orderHandler.GetByID(w, r)
		default:
			http.Error(w, "not found", http.StatusNotFound)
		}
	})

	// Payment webhook (authenticated by HMAC signature, not API key)
	mux.HandleFunc("/api/webhooks/payment", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		webhookHandler.HandlePayment(w, r)
	})

	// Apply middleware in order:
	// Recovery -> Logging -> Metrics -> CORS -> APIKeyAuth -> JWTAuth
	var h http.Handler = mux
	h = middleware.JWTAuth(jwtSecret, logger)(h)
	h = middleware.APIKeyAuth(apiKey, logger)(h)
	h = middleware.CORS(h)
	h = middleware.Metrics(serverMetrics)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.Recovery(logger)(h)

	return h
}

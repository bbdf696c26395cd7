/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Recoverer:  Panic recovery (500 instead of crash)
  2. RequestID:  Unique ID per request for tracing
  3. Logger:     Structured request logging via zap
  4. CORS:       Cross-origin requests for the storefront frontend
  5. Session:    session_id cookie issuance (applied to /api)

ROUTE GROUPS:
  /api/products/*        Catalog listing, lookup, search
  /api/cart/*            Session-scoped cart
  /api/checkout          Stock reservation transaction
  /api/orders/*          Order confirmation lookup
  /api/wishlist/*        Session-scoped wishlist
  /api/subscribe         Mailing list
  /api/optimize-image    Image proxy/resize

SEE ALSO:
  - handlers.go: Handler implementations
  - session.go: Session middleware
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true, // the session cookie crosses origins
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(SessionMiddleware)

		// Catalog routes
		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.Get("/{id}", h.GetProduct)
		})
		r.Get("/search", h.SearchProducts)
		r.Get("/optimize-image", h.OptimizeImage)

		// Cart routes
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Post("/", h.AddToCart)
			r.Put("/{productID}", h.UpdateCartItem)
			r.Delete("/{productID}", h.RemoveCartItem)
		})

		// Checkout routes
		r.Post("/checkout", h.Checkout)
		r.Get("/orders/{id}", h.GetOrder)

		// Wishlist routes
		r.Route("/wishlist", func(r chi.Router) {
			r.Get("/", h.GetWishlist)
			r.Post("/", h.AddToWishlist)
			r.Delete("/{productID}", h.RemoveFromWishlist)
		})

		// Mailing list
		r.Post("/subscribe", h.Subscribe)
	})

	return r
}

// requestLogger logs one structured line per request.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"patrimonio-api/internal/handler"
	"patrimonio-api/internal/middleware"
)

// QRCodePath is where label QR images are served.
const QRCodePath = "/labels/qr.png"

// Config holds the configuration for creating a router.
type Config struct {
	Logger           logrus.FieldLogger
	AllowedOrigins   []string
	Handler          *handler.Handler
	InventoryHandler *handler.InventoryHandler
	AdminHandler     *handler.AdminHandler
	AuthHandler      *handler.AuthHandler
	OAuthHandler     *handler.OAuthHandler
	LabelHandler     *handler.LabelHandler
	SessionAuth      func(http.Handler) http.Handler
	StoreGate        func(http.Handler) http.Handler
	UploadsDir       string // served under /uploads when set
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.NewRecovery(cfg.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.NewLogging(cfg.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", middleware.RequestIDHeader, handler.IdempotencyHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader, handler.ReplayedHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// PUBLIC routes (no auth required)
	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
		r.Get("/api/v1/health", cfg.Handler.Health)
		r.Get("/api/v1/ready", cfg.Handler.Ready)
	}

	if cfg.UploadsDir != "" {
		fileServer := http.FileServer(http.Dir(cfg.UploadsDir))
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", fileServer))
	}

	// Routes touching the row store fail fast while it is unreachable
	r.Group(func(r chi.Router) {
		if cfg.StoreGate != nil {
			r.Use(cfg.StoreGate)
		}

		if cfg.OAuthHandler != nil {
			r.Get("/auth/google/login", cfg.OAuthHandler.Login)
			r.Get("/auth/google/callback", cfg.OAuthHandler.Callback)
		}

		if cfg.AuthHandler != nil {
			r.Route("/api/v1/auth", func(r chi.Router) {
				r.Post("/register", cfg.AuthHandler.Register)
				r.Post("/login", cfg.AuthHandler.Login)
				r.Get("/session", cfg.AuthHandler.Session)
				if cfg.SessionAuth != nil {
					r.With(cfg.SessionAuth).Post("/logout", cfg.AuthHandler.Logout)
				} else {
					r.Post("/logout", cfg.AuthHandler.Logout)
				}
			})
		}

		// AUTHENTICATED routes
		r.Group(func(r chi.Router) {
			if cfg.SessionAuth != nil {
				r.Use(cfg.SessionAuth)
			}

			if cfg.InventoryHandler != nil {
				r.Route("/api/v1/items", func(r chi.Router) {
					r.Post("/", cfg.InventoryHandler.Register)
					r.Get("/", cfg.InventoryHandler.List)
					r.Get("/export.xlsx", cfg.InventoryHandler.Export)
					r.Get("/{id}", cfg.InventoryHandler.Get)
					r.Put("/{id}", cfg.InventoryHandler.Update)
					r.Delete("/{id}", cfg.InventoryHandler.Delete)
				})
			}

			if cfg.AdminHandler != nil {
				r.Get("/api/v1/admin/stats", cfg.AdminHandler.GetStats)
			}
		})
	})

	// Labels don't read the store
	if cfg.LabelHandler != nil {
		r.Group(func(r chi.Router) {
			if cfg.SessionAuth != nil {
				r.Use(cfg.SessionAuth)
			}
			r.Get("/labels", cfg.LabelHandler.Page)
			r.Get(QRCodePath, cfg.LabelHandler.QRCode)
		})
	}

	return r
}

package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/gorilla/mux"

	"github.com/mcoot/gamelobby/internal/api/apierr"
	"github.com/mcoot/gamelobby/internal/api/handler"
	"github.com/mcoot/gamelobby/internal/api/middleware"
	"github.com/mcoot/gamelobby/internal/services/auth"
	"github.com/mcoot/gamelobby/internal/services/lobby"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger      *slog.Logger
	AuthService *auth.Service
	Coordinator lobby.CoordinatorInterface
	Storage     handler.Pinger

	// CORSOrigins lists allowed browser origins; empty disables CORS headers
	CORSOrigins []string
	// RateLimitPerMinute caps requests per client IP; zero disables limiting
	RateLimitPerMinute int
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		apierr.WriteError(w, apierr.NewNotFoundError())
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		apierr.WriteError(w, apierr.NewMethodNotAllowedError())
	})

	// Create handlers
	accountHandler := handler.NewAccountHandler(cfg.AuthService)
	roomHandler := handler.NewRoomHandler(cfg.Coordinator)
	healthHandler := handler.NewHealthHandler(cfg.Storage, cfg.Logger)

	// Create middleware
	authMiddleware := middleware.Auth(cfg.AuthService)
	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(recoveryMiddleware)
	api.Use(loggingMiddleware)

	// Account routes (no auth required for registering/logging in)
	api.HandleFunc("/accounts/register", accountHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/accounts/login", accountHandler.Login).Methods(http.MethodPost)

	// Protected account routes
	accounts := api.PathPrefix("/accounts").Subrouter()
	accounts.Use(authMiddleware)
	accounts.HandleFunc("/me", accountHandler.GetMe).Methods(http.MethodGet)

	// Room routes (all require auth)
	rooms := api.PathPrefix("/rooms").Subrouter()
	rooms.Use(authMiddleware)
	rooms.HandleFunc("", roomHandler.Host).Methods(http.MethodPost)
	rooms.HandleFunc("/{code}", roomHandler.Get).Methods(http.MethodGet)
	rooms.HandleFunc("/{code}", roomHandler.Close).Methods(http.MethodDelete)
	rooms.HandleFunc("/{code}/players", roomHandler.Join).Methods(http.MethodPost)
	rooms.HandleFunc("/{code}/players", roomHandler.ListPlayers).Methods(http.MethodGet)
	rooms.HandleFunc("/{code}/players/{name}/ready", roomHandler.ToggleReady).Methods(http.MethodPost)
	rooms.HandleFunc("/{code}/start", roomHandler.Start).Methods(http.MethodPost)

	// Health check endpoint (no auth)
	api.HandleFunc("/health", healthHandler.Get).Methods(http.MethodGet)

	// Rate limiting and CORS wrap the whole router so that they also apply
	// to preflight and unmatched requests
	var h http.Handler = r
	if cfg.RateLimitPerMinute > 0 {
		h = httprate.Limit(cfg.RateLimitPerMinute, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
				apierr.WriteError(w, apierr.NewRateLimitedError())
			}),
		)(h)
	}
	if len(cfg.CORSOrigins) > 0 {
		h = cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
			MaxAge:         300,
		})(h)
	}

	return h
}

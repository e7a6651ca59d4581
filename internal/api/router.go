package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/bananaclick/internal/api/handler"
	"github.com/mcoot/bananaclick/internal/api/middleware"
	"github.com/mcoot/bananaclick/internal/api/response"
	"github.com/mcoot/bananaclick/internal/model"
	"github.com/mcoot/bananaclick/internal/realtime"
	"github.com/mcoot/bananaclick/internal/services/accounts"
	"github.com/mcoot/bananaclick/internal/services/auth"
	"github.com/mcoot/bananaclick/internal/services/shop"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger         *slog.Logger
	AuthService    *auth.Service
	AccountService *accounts.Service
	ShopService    *shop.Service
	Ranking        handler.Ranker
	Realtime       *realtime.Controller
	// TopN is the leaderboard size served by /api/users/rankings
	TopN int
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create handlers
	authHandler := handler.NewAuthHandler(cfg.AuthService)
	userHandler := handler.NewUserHandler(cfg.AccountService, cfg.Ranking, cfg.TopN)
	shopHandler := handler.NewShopHandler(cfg.ShopService)

	// Create middleware
	authMiddleware := middleware.Auth(cfg.AuthService)
	adminOnly := middleware.RequireRole(model.RoleAdmin)
	playerOnly := middleware.RequireRole(model.RolePlayer)
	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	r.Use(recoveryMiddleware)
	r.Use(loggingMiddleware)

	// Realtime channel; authenticates with its own handshake frame
	r.HandleFunc("/ws", cfg.Realtime.ServeWS).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	// Auth routes (no auth required for register/login)
	api.HandleFunc("/auth/register", authHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", authHandler.Login).Methods(http.MethodPost)
	api.Handle("/auth/logout", authMiddleware(http.HandlerFunc(authHandler.Logout))).Methods(http.MethodPost)

	// User routes (all require auth); fixed paths before /{id}
	users := api.PathPrefix("/users").Subrouter()
	users.Use(authMiddleware)
	users.HandleFunc("/me", userHandler.Me).Methods(http.MethodGet)
	users.HandleFunc("/rankings", userHandler.Rankings).Methods(http.MethodGet)
	users.Handle("/active", adminOnly(http.HandlerFunc(userHandler.Active))).Methods(http.MethodGet)
	users.Handle("", adminOnly(http.HandlerFunc(userHandler.List))).Methods(http.MethodGet)
	users.Handle("", adminOnly(http.HandlerFunc(userHandler.Create))).Methods(http.MethodPost)
	users.Handle("/{id}", adminOnly(http.HandlerFunc(userHandler.Get))).Methods(http.MethodGet)
	users.Handle("/{id}", adminOnly(http.HandlerFunc(userHandler.Update))).Methods(http.MethodPut)
	users.Handle("/{id}", adminOnly(http.HandlerFunc(userHandler.Delete))).Methods(http.MethodDelete)
	users.Handle("/{id}/block", adminOnly(http.HandlerFunc(userHandler.Block))).Methods(http.MethodPatch)

	// Shop routes (players only)
	shopRoutes := api.PathPrefix("/shop").Subrouter()
	shopRoutes.Use(authMiddleware, playerOnly)
	shopRoutes.HandleFunc("", shopHandler.Catalog).Methods(http.MethodGet)
	shopRoutes.HandleFunc("/{upgrade}", shopHandler.Buy).Methods(http.MethodPost)

	// Health check endpoint (no auth)
	api.HandleFunc("/health", healthHandler(cfg.Realtime)).Methods(http.MethodGet)

	return r
}

func healthHandler(rt *realtime.Controller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, http.StatusOK, response.Health{
			Status:      "ok",
			Connections: rt.Hub().Len(),
		})
	}
}

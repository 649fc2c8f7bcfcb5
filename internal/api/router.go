package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/skillswap/backend/internal/auth"
	"github.com/skillswap/backend/internal/middleware"
	"go.uber.org/zap"
)

// Router holds all handlers and creates the chi router
type Router struct {
	authHandler      *AuthHandler
	oauthHandler     *GoogleOAuthHandler
	userHandler      *UserHandler
	requestHandler   *RequestHandler
	healthHandler    *HealthHandler
	websocketHandler *WebSocketHandler
	jwtManager       *auth.JWTManager
	users            middleware.UserLookup
	corsOrigins      []string
	uploadDir        string
	logger           *zap.Logger
}

// RouterConfig lists the router's dependencies
type RouterConfig struct {
	AuthHandler *AuthHandler
	// GoogleOAuthHandler is optional; nil leaves the browser redirect flow unmounted
	GoogleOAuthHandler *GoogleOAuthHandler
	UserHandler        *UserHandler
	RequestHandler     *RequestHandler
	HealthHandler      *HealthHandler
	WebSocketHandler   *WebSocketHandler
	JWTManager         *auth.JWTManager
	Users              middleware.UserLookup
	CORSOrigins        []string
	// UploadDir is served under /uploads when avatars are stored on local disk
	UploadDir string
	Logger    *zap.Logger
}

// NewRouter creates a new router
func NewRouter(cfg RouterConfig) *Router {
	return &Router{
		authHandler:      cfg.AuthHandler,
		oauthHandler:     cfg.GoogleOAuthHandler,
		userHandler:      cfg.UserHandler,
		requestHandler:   cfg.RequestHandler,
		healthHandler:    cfg.HealthHandler,
		websocketHandler: cfg.WebSocketHandler,
		jwtManager:       cfg.JWTManager,
		users:            cfg.Users,
		corsOrigins:      cfg.CORSOrigins,
		uploadDir:        cfg.UploadDir,
		logger:           cfg.Logger,
	}
}

// Setup configures and returns the chi router
func (rt *Router) Setup() *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RecoveryMiddleware(rt.logger))
	r.Use(middleware.LoggingMiddleware(rt.logger))
	r.Use(middleware.CORSMiddleware(rt.corsOrigins))

	// Health endpoints (no auth required)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", rt.healthHandler.Health)
		r.Get("/ready", rt.healthHandler.Ready)
		r.Get("/live", rt.healthHandler.Live)
	})

	if rt.websocketHandler != nil {
		r.With(middleware.WebSocketAuthMiddleware(rt.jwtManager, rt.users)).Get("/ws", rt.websocketHandler.Connect)
	}

	if rt.uploadDir != "" {
		r.Handle("/uploads/*", noSniff(http.StripPrefix("/uploads/", http.FileServer(http.Dir(rt.uploadDir)))))
	}

	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Compress(5))
		r.Route("/api", rt.routes)
		// Also expose the API at root level for compatibility
		rt.routes(r)
	})

	return r
}

func (rt *Router) routes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", rt.authHandler.Register)
		r.Post("/login", rt.authHandler.Login)
		r.Post("/refresh", rt.authHandler.Refresh)
		r.Post("/google", rt.authHandler.GoogleLogin)
		if rt.oauthHandler != nil {
			r.Get("/google/login", rt.oauthHandler.Login)
			r.Get("/google/callback", rt.oauthHandler.Callback)
		}
	})

	r.Route("/users", func(r chi.Router) {
		// The directory is public; a token only lets owners see their own private profile
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuthMiddleware(rt.jwtManager, rt.users))
			r.Get("/", rt.userHandler.Search)
			r.Get("/skills", rt.userHandler.Skills)
			r.Get("/{id}", rt.userHandler.Get)
			r.Get("/{id}/stats", rt.userHandler.Stats)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(rt.jwtManager, rt.users))
			r.Put("/me", rt.userHandler.UpdateMe)
			r.Put("/me/avatar", rt.userHandler.UpdateAvatar)
		})
	})

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(rt.jwtManager, rt.users))

		r.Get("/me", rt.authHandler.Me)
		r.Put("/me/device-token", rt.userHandler.SetDeviceToken)

		r.Route("/requests", func(r chi.Router) {
			r.Post("/", rt.requestHandler.Create)
			r.Get("/", rt.requestHandler.List)
			r.Get("/pending", rt.requestHandler.Pending)
			r.Get("/{id}", rt.requestHandler.Get)
			r.Put("/{id}/accept", rt.requestHandler.Accept)
			r.Put("/{id}/reject", rt.requestHandler.Reject)
			r.Put("/{id}/complete", rt.requestHandler.Complete)
			r.Post("/{id}/rate", rt.requestHandler.Rate)
			r.Delete("/{id}", rt.requestHandler.Cancel)
		})
	})
}

// noSniff stops browsers from reinterpreting uploaded files as another type
func noSniff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		next.ServeHTTP(w, r)
	})
}

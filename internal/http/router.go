package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/signalix/vault/internal/auth"
	"github.com/signalix/vault/internal/envelope"
	"github.com/signalix/vault/internal/http/handlers"
	"github.com/signalix/vault/internal/middleware"
	"github.com/signalix/vault/internal/repo"
	"github.com/signalix/vault/internal/session"
)

// Deps is everything the router wires into handlers.
type Deps struct {
	Logger     *slog.Logger
	Sessions   session.Store
	Dispatcher *envelope.Dispatcher
	Auth       *auth.AuthService
	JWT        *auth.JWTService
	Users      repo.UserRepo
	Data       repo.DataRepo

	OTPRequestLimiter *middleware.RateLimiter
	OTPVerifyLimiter  *middleware.RateLimiter

	// DBConnected reports the connection manager state on /health; nil without a database.
	DBConnected     func() bool
	CORSOrigins     []string
	OTPInResponse   bool
	DataRequireAuth bool
}

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(d Deps) *chi.Mux {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: d.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", envelope.SessionHeader},
	}).Handler)

	healthHandler := handlers.NewHealthHandler(d.DBConnected)
	sessionHandler := handlers.NewSessionHandler(d.Sessions)
	authHandler := handlers.NewAuthHandler(d.Auth, d.Dispatcher, d.OTPInResponse)
	dataHandler := handlers.NewDataHandler(d.Data, d.Dispatcher)

	r.Get("/health", healthHandler.ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())

	// Mode none
	r.Get("/public-key", sessionHandler.HandlePublicKey)
	r.Post("/key-exchange", sessionHandler.HandleKeyExchange)
	r.Post("/logout", authHandler.HandleLogout)

	// Password mode
	r.With(d.Dispatcher.Password()).Post("/register", authHandler.HandleRegister)

	// Session mode
	r.Group(func(r chi.Router) {
		r.Use(d.Dispatcher.Session())

		otpRequest := r.With()
		otpVerify := r.With()
		if d.OTPRequestLimiter != nil {
			otpRequest = r.With(middleware.RateLimitMiddleware(d.OTPRequestLimiter, middleware.GetIPKey))
		}
		if d.OTPVerifyLimiter != nil {
			otpVerify = r.With(middleware.RateLimitMiddleware(d.OTPVerifyLimiter, middleware.GetIPKey))
		}
		otpRequest.Post("/login-otp", authHandler.HandleRequestOTP)
		otpVerify.Post("/verify-otp", authHandler.HandleVerifyOTP)
		r.Post("/loginWithPassword", authHandler.HandleLoginWithPassword)

		r.Group(func(r chi.Router) {
			if d.DataRequireAuth {
				r.Use(middleware.RequireAuthenticatedSession(d.Sessions))
			}
			r.Get("/getData/{id}", dataHandler.HandleGetData)
			r.Post("/addData", dataHandler.HandleAddData)
			r.Put("/updateData/{id}", dataHandler.HandleUpdateData)
		})
	})

	// Protected routes (require valid JWT)
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(d.JWT, d.Users))
		r.Get("/me", authHandler.HandleMe)
	})

	return r
}

package http

import (
	"net/http"

	"github.com/carematch/carematch-api/internal/application/auth"
	"github.com/carematch/carematch-api/internal/application/identity"
	"github.com/carematch/carematch-api/internal/application/user"
	"github.com/carematch/carematch-api/internal/application/verification"
	"github.com/carematch/carematch-api/internal/config"
	"github.com/carematch/carematch-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/carematch/carematch-api/internal/infrastructure/jwt"
	"github.com/carematch/carematch-api/internal/infrastructure/sns"
	"github.com/carematch/carematch-api/internal/infrastructure/wechat"
	"github.com/carematch/carematch-api/internal/transport/http/handler"
	appmiddleware "github.com/carematch/carematch-api/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo    *dynamo.UserRepo
	CodeStore   *verification.Store
	JWTProvider *jwtinfra.Provider
	WeChat      *wechat.Client
	SMSSender   sns.SMSSender
}

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	resolver := identity.NewResolver(deps.UserRepo)
	authSvc := auth.NewService(auth.ServiceDeps{
		Resolver:  resolver,
		CodeStore: deps.CodeStore,
		Tokens:    deps.JWTProvider,
		Broker:    deps.WeChat,
		SMSSender: deps.SMSSender,
	})
	userSvc := user.NewService(deps.UserRepo, resolver, deps.CodeStore)

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(authSvc)
	userH := handler.NewUserHandler(userSvc)

	authMw := appmiddleware.Auth(deps.JWTProvider, resolver)

	// 5 requests/second, burst of 10, applied to sensitive public endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/ping", healthH.Ping)
		r.With(sensitiveRL.Limit).Post("/auth/register", authH.Register)
		r.With(sensitiveRL.Limit).Post("/auth/login", authH.Login)
		r.With(sensitiveRL.Limit).Post("/auth/phone/send-code", authH.SendPhoneCode)
		r.With(sensitiveRL.Limit).Post("/auth/phone/verify", authH.VerifyPhone)
		r.With(sensitiveRL.Limit).Post("/auth/wechat", authH.WeChatLogin)
		r.Post("/auth/refresh", authH.Refresh)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/users/me", userH.Me)
			r.Put("/users/me", userH.CompleteProfile)
			r.Post("/users/me/phone", userH.LinkPhone)
		})
	})

	return r
}

package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"nyscmate/internal/pkg/auth/jwt"
	"nyscmate/internal/pkg/limiter"
	"nyscmate/internal/pkg/logx"
	"nyscmate/internal/pkg/resp"
)

// Router sets up the routing table of the development server.
// The rate limiter's cleanup loop runs until ctx is canceled.
func Router(ctx context.Context, deps *AppDeps) http.Handler {
	authLimiter := limiter.NewIPRateLimiter(ctx, rate.Limit(deps.Config.AuthRateLimit), deps.Config.AuthRateBurst)

	r := chi.NewRouter()

	corsAllowedOrigins := []string{}
	if deps.Config.Environment == "development" {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger("/health"))
	r.Use(middleware.Recoverer)
	r.Use(jwt.IdentityExtractorMiddleware(deps.Config.JWTSecret))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, map[string]string{
			"status":  "ok",
			"service": "NYSC Assistant",
		})
	})

	r.Route("/auth", func(auth chi.Router) {
		auth.With(authLimiter.Middleware).Post("/signup", HandleSignup(deps))
		auth.With(authLimiter.Middleware).Post("/login", HandleLogin(deps))
		auth.With(authLimiter.Middleware).Post("/social-login", HandleSocialLogin(deps))

		auth.With(jwt.RequireUser).Get("/me", HandleMe(deps))
		auth.With(jwt.RequireUser).Put("/profile", HandleUpdateProfile(deps))
	})

	r.With(authLimiter.Middleware).Post("/ask", HandleAsk(deps))

	r.Route("/api", func(api chi.Router) {
		api.Get("/news", HandleNews(deps))
		api.With(jwt.RequireUser).Get("/timeline", HandleTimeline(deps))
	})

	r.Route("/resources", func(res chi.Router) {
		res.Get("/", HandleListResources(deps))
		res.With(jwt.RequireUser).Post("/", HandleAddResource(deps))
	})

	r.Route("/clearance", func(cl chi.Router) {
		cl.Use(jwt.RequireUser)
		cl.Post("/request", HandleRequestClearance(deps))
		cl.Get("/my-history", HandleClearanceHistory(deps))
		cl.Get("/pending", HandlePendingClearances(deps))
		cl.Put("/{id}/action", HandleClearanceAction(deps))
	})

	r.Route("/admin", func(admin chi.Router) {
		admin.Use(jwt.RequireUser)
		admin.Get("/stats", HandleAdminStats(deps))
		admin.Get("/users", HandleAdminUsers(deps))
		admin.Post("/news", HandlePostNews(deps))
	})

	return r
}

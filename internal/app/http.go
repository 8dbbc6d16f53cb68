package app

import (
	"context"
	"net/http"
	"time"

	"rifftube/internal/auth/authority"
	"rifftube/internal/auth/credentials"
	"rifftube/internal/auth/handler"
	"rifftube/internal/auth/provider"
	"rifftube/internal/auth/provider/google"
	"rifftube/internal/auth/resolver"
	"rifftube/internal/config"
	"rifftube/internal/logger"
	"rifftube/internal/metrics"
	"rifftube/internal/middleware"
	"rifftube/internal/redirect"
	"rifftube/internal/session"
	"rifftube/internal/user"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// routerDeps is everything the router needs once infrastructure is up.
type routerDeps struct {
	cfg       config.Config
	guard     *redirect.Guard
	origins   []string
	users     user.Repository
	sessions  session.Store
	providers *provider.Registry
	registry  *prometheus.Registry
}

func setupHTTP(ctx context.Context, cfg config.Config, guard *redirect.Guard, origins []string) (*gin.Engine, func() error, error) {

	infra, err := setupInfra(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	providers, err := setupProviders(ctx, cfg)
	if err != nil {
		infra.Close()
		return nil, nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	router, err := newRouter(routerDeps{
		cfg:       cfg,
		guard:     guard,
		origins:   origins,
		users:     infra.Users,
		sessions:  infra.Sessions,
		providers: providers,
		registry:  registry,
	})
	if err != nil {
		infra.Close()
		return nil, nil, err
	}

	return router, infra.Close, nil
}

func setupProviders(ctx context.Context, cfg config.Config) (*provider.Registry, error) {
	if !cfg.GoogleEnabled() {
		logger.Warn("google sign-in disabled; GOOGLE_CLIENT_ID/SECRET unset", nil)
		return provider.NewRegistry(), nil
	}

	googleProvider, err := google.New(
		ctx,
		cfg.GoogleClientID,
		cfg.GoogleClientSecret,
		cfg.GoogleRedirectURL(),
	)
	if err != nil {
		return nil, err
	}

	return provider.NewRegistry(googleProvider), nil
}

func newRouter(d routerDeps) (*gin.Engine, error) {
	codec, err := session.NewCodec([]byte(d.cfg.SessionSecret))
	if err != nil {
		return nil, err
	}

	cookies := session.NewCookies(codec, session.CookieOptions{
		Secure: d.cfg.Production(),
	})

	authMetrics := metrics.NewAuth(d.registry)

	authHandler := handler.NewHandler(handler.Deps{
		Authority: authority.New(
			credentials.NewService(d.users),
			d.users,
			d.sessions,
			authority.WithTTL(d.cfg.SessionTTL),
			authority.WithMetrics(authMetrics),
		),
		Providers:     d.providers,
		Resolver:      resolver.NewUserResolver(d.users),
		Guard:         d.guard,
		Cookies:       cookies,
		Limiter:       middleware.NewRateLimiter(d.cfg.LoginRatePerMinute, authMetrics),
		Metrics:       authMetrics,
		SecureCookies: d.cfg.Production(),
	})

	// ----------------------------
	// Router
	// ----------------------------

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger())
	router.Use(cors.New(corsConfig(d.origins)))

	// ----------------------------
	// Public Routes
	// ----------------------------

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{})))

	// ----------------------------
	// API Routes
	// ----------------------------

	authHandler.RegisterRoutes(router)

	return router, nil
}

func corsConfig(origins []string) cors.Config {
	if len(origins) == 0 {
		origins = []string{redirect.DevDefaultOrigin}
	}
	return cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           10 * time.Minute,
	}
}

package app

import (
	"context"
	"net/http"
	"time"

	"rifftube/internal/config"
	"rifftube/internal/logger"
	"rifftube/internal/redirect"

	"github.com/gin-gonic/gin"
)

type App struct {
	httpServer *http.Server
	cleanup    func() error
}

// New validates configuration, connects infrastructure and builds the
// HTTP server. Any configuration problem stops here, before serving.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	guard, err := redirect.NewGuard(redirect.Policy{
		Raw:          cfg.FrontendURL,
		Production:   cfg.Production(),
		AllowedHosts: cfg.FrontendAllowedHosts,
	})
	if err != nil {
		return nil, err
	}

	origins, err := redirect.ParseOrigins(cfg.FrontendOrigins, cfg.Production())
	if err != nil {
		return nil, err
	}

	logger.Info("frontend configured", map[string]any{
		"frontend_url": guard.FrontendBaseURL().String(),
		"origins":      origins,
	})

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	router, cleanup, err := setupHTTP(ctx, cfg, guard, origins)
	if err != nil {
		return nil, err
	}

	server := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		httpServer: server,
		cleanup:    cleanup,
	}, nil
}

func (a *App) Run() error {
	return a.httpServer.ListenAndServe()
}

func (a *App) Shutdown(ctx context.Context) error {
	if err := a.httpServer.Shutdown(ctx); err != nil {
		return err
	}
	if a.cleanup != nil {
		return a.cleanup()
	}
	return nil
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kiranshivaraju/insightdesk/internal/api"
	"github.com/kiranshivaraju/insightdesk/internal/api/handler"
	mw "github.com/kiranshivaraju/insightdesk/internal/api/middleware"
	"github.com/kiranshivaraju/insightdesk/internal/apikey"
	"github.com/kiranshivaraju/insightdesk/internal/cache"
	"github.com/kiranshivaraju/insightdesk/internal/config"
	"github.com/kiranshivaraju/insightdesk/internal/metric"
	"github.com/kiranshivaraju/insightdesk/internal/oauth"
	"github.com/kiranshivaraju/insightdesk/internal/store"
	"github.com/kiranshivaraju/insightdesk/internal/users"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	var skipMigrations bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return run(cmd.Context(), cfg, !skipMigrations)
		},
	}

	cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "Do not apply migrations on startup")

	return cmd
}

func run(ctx context.Context, cfg *config.Config, migrate bool) error {
	slog.Info("config loaded", "env", cfg.Server.Env, "apikey_secret_size", cfg.APIKey.SecretSize)

	// 1. Connect to database
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 2. Run migrations
	if migrate {
		if err := store.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsDir); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		slog.Info("database migrations applied")
	}

	// 3. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 4. Credentials and tokens
	pgStore := store.NewPostgresStore(pool)
	dir := users.NewCachedDirectory(pgStore, redisCache, 0)
	keys := apikey.NewRepository(pgStore, cfg.APIKey.HMACSecret,
		apikey.WithSecretSize(cfg.APIKey.SecretSize),
		apikey.WithLogger(slog.Default().With("component", "apikey")))

	signingKey, err := tokenSigningKey(cfg)
	if err != nil {
		return err
	}
	issuer := oauth.NewIssuer(signingKey, cfg.Token.Issuer, cfg.Token.Lifetime)
	clients := oauth.NewClients(cfg.Token.Clients)
	if !clients.Enabled() {
		slog.Warn("no OAuth clients configured, token endpoint accepts anonymous clients")
	}
	grants := oauth.NewGrantValidator(keys, dir, slog.Default().With("component", "oauth"))

	// 5. Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metric.Register(reg)

	// 6. Build router with dependencies
	keyHandler := handler.NewKeyHandler(keys)
	router := api.NewRouter(api.Dependencies{
		Auth:           mw.NewAuth(keys, dir, issuer),
		RateLimit:      mw.NewRateLimit(redisCache, cfg.RateLimit.RequestsPerMinute),
		TokenRateLimit: mw.LimitByIP(cfg.RateLimit.TokenRequestsPerMinute),

		HealthHandler:    handler.Health(pgStore, redisCache),
		MetricsHandler:   metric.Handler(reg),
		TokenHandler:     oauth.NewTokenHandler(grants, issuer, clients),
		MeHandler:        handler.Me,
		CreateKeyHandler: keyHandler.Create,
		ListKeysHandler:  keyHandler.List,
		RevokeKeyHandler: keyHandler.Revoke,
	})

	// 7. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, draining connections...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("server stopped gracefully")
	return nil
}

// tokenSigningKey returns the configured signing key, or one derived from
// the HMAC secret.
func tokenSigningKey(cfg *config.Config) ([]byte, error) {
	if cfg.Token.SigningKey != "" {
		return []byte(cfg.Token.SigningKey), nil
	}
	key, err := oauth.DeriveSigningKey(cfg.APIKey.HMACSecret)
	if err != nil {
		return nil, fmt.Errorf("derive token signing key: %w", err)
	}
	return key, nil
}

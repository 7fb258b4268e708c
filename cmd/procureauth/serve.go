package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/procureauth"
	"github.com/MrEthical07/procureauth/blacklist"
	"github.com/MrEthical07/procureauth/internal/rate"
	"github.com/MrEthical07/procureauth/metrics/export/otel"
	"github.com/MrEthical07/procureauth/server"
	"github.com/MrEthical07/procureauth/store"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const sweepInterval = 10 * time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the auth HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context) error {
	s, closeDB, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	builder := procureauth.New().
		WithConfig(cfg.EngineConfig()).
		WithCredentialStore(s).
		WithMFAStore(s).
		WithLogger(log)

	var limiter rate.Limiter
	switch {
	case cfg.Redis.URL != "":
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("parsing redis url: %w", err)
		}
		client := redis.NewClient(opts)
		defer func() { _ = client.Close() }()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		builder.WithRedis(client)
		limiter = rate.NewRedis(client, "procureauth:rl:")
	case cfg.Database.Driver == store.DriverPostgres:
		// Without redis, postgres still gives every replica one revocation list.
		bl := blacklist.NewGorm(s.DB())
		if err := bl.Migrate(); err != nil {
			return fmt.Errorf("migrating blacklist: %w", err)
		}
		builder.WithBlacklist(bl)
		go sweepBlacklist(ctx, bl)
	}

	engine, err := builder.Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	for _, w := range engine.SecurityWarnings() {
		log.Warn("insecure setting", map[string]interface{}{"code": w.Code, "detail": w.Message})
	}

	if cfg.Otel.Endpoint != "" {
		shutdown, err := startOTel(ctx, engine)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	server.SetGinMode(cfg.Server.Production)
	router := server.NewRouter(server.Config{
		Engine:     engine,
		Limiter:    limiter,
		Log:        log,
		Production: cfg.Server.Production,
	})
	srv := server.New(fmt.Sprintf(":%d", cfg.Server.Port), router, cfg.Server.ShutdownTimeout, log)
	return srv.Run(ctx)
}

func startOTel(ctx context.Context, engine *procureauth.Engine) (func(), error) {
	provider, err := otel.NewMeterProvider(ctx, otel.ProviderConfig{
		ServiceName: cfg.Otel.ServiceName,
		Endpoint:    cfg.Otel.Endpoint,
		Insecure:    cfg.Otel.Insecure,
		Interval:    cfg.Otel.Interval,
	})
	if err != nil {
		return nil, err
	}
	exporter, err := otel.NewOTelExporter(provider.Meter("procureauth"), engine)
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, err
	}
	log.Info("otel metrics enabled", map[string]interface{}{"endpoint": cfg.Otel.Endpoint})
	return func() {
		_ = exporter.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("otel shutdown failed")
		}
	}, nil
}

func sweepBlacklist(ctx context.Context, bl *blacklist.Gorm) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := bl.Sweep(ctx)
			if err != nil {
				log.WithError(err).Warn("blacklist sweep failed")
				continue
			}
			if n > 0 {
				log.Debug("blacklist swept", map[string]interface{}{"removed": n})
			}
		}
	}
}

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/uropathway/internal/config"
	"github.com/ehr/uropathway/internal/domain/labs"
	"github.com/ehr/uropathway/internal/domain/mdt"
	"github.com/ehr/uropathway/internal/domain/notes"
	"github.com/ehr/uropathway/internal/domain/pathway"
	"github.com/ehr/uropathway/internal/domain/patient"
	"github.com/ehr/uropathway/internal/domain/scheduling"
	"github.com/ehr/uropathway/internal/platform/auth"
	"github.com/ehr/uropathway/internal/platform/blobstore"
	"github.com/ehr/uropathway/internal/platform/db"
	"github.com/ehr/uropathway/internal/platform/lock"
	"github.com/ehr/uropathway/internal/platform/middleware"
	"github.com/ehr/uropathway/internal/platform/queue"
	"github.com/ehr/uropathway/migrations"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "uropathway-server",
		Short: "Urology care pathway transition server",
	}
	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(ctx context.Context, m *db.Migrator) error {
				count, err := m.Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				printStatus(cmd.OutOrStdout(), statuses)
				return nil
			})
		},
	})

	return cmd
}

func withMigrator(fn func(context.Context, *db.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(ctx, db.NewMigrator(pool, migrations.FS))
}

func printStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func newLogger(env string, out io.Writer) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

func rateLimitConfig(cfg *config.Config) middleware.RateLimitConfig {
	rl := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rl.RequestsPerSecond = cfg.RateLimitRPS
	}
	if cfg.RateLimitBurst > 0 {
		rl.BurstSize = cfg.RateLimitBurst
	}
	return rl
}

func authMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	if cfg.IsDev() {
		return auth.DevAuthMiddleware()
	}
	jwtCfg := auth.JWTConfig{
		Issuer:   cfg.AuthIssuer,
		Audience: cfg.AuthAudience,
		JWKSURL:  cfg.AuthJWKSURL,
	}
	if cfg.AuthSigningKey != "" {
		jwtCfg.SigningKey = []byte(cfg.AuthSigningKey)
	}
	return auth.JWTMiddleware(jwtCfg)
}

// infra holds the optional backing services. Nil fields are disabled.
type infra struct {
	redis  *redis.Client
	locker *lock.RedisLocker
	review *queue.Publisher
	blobs  blobstore.BlobStore
}

func (in *infra) Close() {
	if in.redis != nil {
		in.redis.Close()
	}
	if in.review != nil {
		in.review.Close()
	}
}

func connectInfra(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*infra, error) {
	in := &infra{}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		in.redis = redis.NewClient(opts)
		in.locker = lock.NewRedisLocker(in.redis, "pathway:")
		if err := in.locker.Ping(ctx); err != nil {
			in.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		logger.Info().Msg("pathway locking enabled")
	} else {
		logger.Warn().Msg("REDIS_URL not set, pathway transitions are not locked")
	}

	if cfg.AMQPURL != "" {
		pub, err := queue.Dial(cfg.AMQPURL, cfg.ReviewQueueName)
		if err != nil {
			in.Close()
			return nil, err
		}
		in.review = pub
		logger.Info().Str("queue", cfg.ReviewQueueName).Msg("review queue enabled")
	}

	if cfg.MinioEndpoint != "" {
		store, err := blobstore.NewMinioBlobStore(blobstore.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			in.Close()
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			in.Close()
			return nil, err
		}
		in.blobs = store
	} else {
		in.blobs = blobstore.NewInMemoryBlobStore()
	}

	return in, nil
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env, os.Stdout)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	in, err := connectInfra(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect backing services")
	}
	defer in.Close()

	e := newServer(cfg, pool, in, logger)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}
	return nil
}

func newServer(cfg *config.Config, pool *pgxpool.Pool, in *infra, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.RateLimit(rateLimitConfig(cfg)))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	health := db.NewHealth(3 * time.Second)
	health.Register("database", db.PoolCheck(pool))
	if in.locker != nil {
		health.Register("redis", in.locker.Ping)
	}
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", health.Handler())

	api := e.Group("/api/v1", authMiddleware(cfg))

	patientSvc := patient.NewService(patient.NewPatientRepoPG(pool), in.blobs)
	schedulingSvc := scheduling.NewService(scheduling.NewAppointmentRepoPG(pool))
	notesSvc := notes.NewService(notes.NewNoteRepoPG(pool))
	labsSvc := labs.NewService(labs.NewPSARepoPG(pool))
	mdtSvc := mdt.NewService(mdt.NewMeetingRepoPG(pool))

	deps := pathway.Deps{
		Patients:     patientSvc,
		Appointments: pathway.Appointments{Svc: schedulingSvc},
		Notes:        notesSvc,
		Meetings:     mdtSvc,
		Identity:     auth.ContextIdentity{},
	}
	if in.locker != nil {
		deps.Locker = in.locker
	}
	if in.review != nil {
		deps.Review = pathway.NewQueueReview(in.review)
	}
	pathwaySvc := pathway.NewService(deps, pathway.Options{
		MaxAttempts: cfg.EnrichmentMaxAttempts,
		Backoff:     cfg.EnrichmentBackoff(),
		LockTTL:     cfg.PathwayLockTTL(),
	}, logger)

	patient.NewHandler(patientSvc).RegisterRoutes(api)
	scheduling.NewHandler(schedulingSvc).RegisterRoutes(api)
	notes.NewHandler(notesSvc).RegisterRoutes(api)
	labs.NewHandler(labsSvc).RegisterRoutes(api)
	mdt.NewHandler(mdtSvc).RegisterRoutes(api)
	pathway.NewHandler(pathwaySvc, labsSvc).RegisterRoutes(api)

	return e
}

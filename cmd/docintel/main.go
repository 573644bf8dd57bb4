package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/foresight/docintel/internal/config"
	"github.com/foresight/docintel/internal/domain/documents"
	"github.com/foresight/docintel/internal/pipeline"
	"github.com/foresight/docintel/internal/platform/auth"
	"github.com/foresight/docintel/internal/platform/db"
	"github.com/foresight/docintel/internal/platform/middleware"
	"github.com/foresight/docintel/internal/platform/queue"
	"github.com/foresight/docintel/migrations"
)

// Lambda handler names accepted by the lambda command.
const (
	handlerCompletion    = "completion"
	handlerUpload        = "upload"
	handlerInsuranceCard = "insurance-card"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "docintel",
		Short: "Document intelligence pipeline",
	}

	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(lambdaCmd())
	root.AddCommand(consumeCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			migrator, closeFn, err := openMigrator(ctx, schema, dir)
			if err != nil {
				return err
			}
			defer closeFn()

			fmt.Printf("Running migrations on schema: %s\n", schema)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", "public", "Target schema for migrations")
	upCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			migrator, closeFn, err := openMigrator(ctx, schema, dir)
			if err != nil {
				return err
			}
			defer closeFn()

			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("schema", "public", "Target schema for migrations")
	statusCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(statusCmd)

	return cmd
}

func openMigrator(ctx context.Context, schema, dir string) (*db.Migrator, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{MaxConns: 2, AppName: "docintel-migrate"})
	if err != nil {
		return nil, nil, err
	}
	if dir != "" {
		return db.NewDirMigrator(pool, dir, schema), pool.Close, nil
	}
	return db.NewMigrator(pool, migrations.FS, schema), pool.Close, nil
}

func lambdaCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "lambda {completion|upload|insurance-card}",
		Short:     "Run one pipeline stage as a Lambda handler",
		ValidArgs: []string{handlerCompletion, handlerUpload, handlerInsuranceCard},
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(context.Background())
			if err != nil {
				return err
			}
			defer a.close()

			a.logger.Info().Str("handler", args[0]).Msg("starting lambda handler")
			switch args[0] {
			case handlerCompletion:
				lambda.Start(a.completionConsumer().HandleSQS)
			case handlerUpload:
				lambda.Start(a.uploadProcessor().HandleS3)
			case handlerInsuranceCard:
				lambda.Start(a.cardProcessor().HandleS3)
			}
			return nil
		},
	}
}

func consumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "consume",
		Short: "Poll the completion queue and process analysis notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if a.cfg.CompletionQueueURL == "" {
				return errors.New("COMPLETION_QUEUE_URL is required to consume notifications")
			}

			poller := queue.NewPoller(
				sqs.NewFromConfig(a.aws),
				queue.Options{QueueURL: a.cfg.CompletionQueueURL},
				a.completionConsumer().HandleSQS,
				a.logger,
			)
			a.logger.Info().Str("queue", a.cfg.CompletionQueueURL).Msg("consuming completion notifications")
			return poller.Run(ctx)
		},
	}
}

func runServer() error {
	a, err := newApp(context.Background())
	if err != nil {
		return err
	}
	defer a.close()
	logger := a.logger

	e := newServer(a)

	go func() {
		addr := ":" + a.cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

func newServer(a *app) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: a.cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(a.pool))

	apiV1 := e.Group("/api/v1")
	apiV1.Use(authMiddleware(a))
	apiV1.Use(middleware.RequestTimeout(60 * time.Second))

	documents.NewHandler(a.docs).RegisterRoutes(apiV1)
	pipeline.NewHandler(a.cardProcessor(), a.cfg.DocumentBucket).RegisterRoutes(apiV1)

	return e
}

func jwtConfig(cfg *config.Config) auth.JWTConfig {
	jc := auth.JWTConfig{
		Issuer:   cfg.AuthIssuer,
		Audience: cfg.AuthAudience,
		JWKSURL:  cfg.AuthJWKSURL,
	}
	if cfg.AuthSigningKey != "" {
		jc.SigningKey = []byte(cfg.AuthSigningKey)
	}
	return jc
}

// authMiddleware verifies caller tokens. A development environment without
// any verification source runs open.
func authMiddleware(a *app) echo.MiddlewareFunc {
	jc := jwtConfig(a.cfg)
	if !jc.Enabled() && a.cfg.IsDev() {
		a.logger.Warn().Msg("no token verification configured; API is open in development")
		return auth.DevAuthMiddleware()
	}
	return auth.JWTMiddleware(jc)
}

// Package server wires the memeforge components together and runs the
// public HTTP API, the ops gRPC API and the background workers until a
// termination signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dmitrijs2005/memeforge/internal/cryptox"
	"github.com/dmitrijs2005/memeforge/internal/logging"
	"github.com/dmitrijs2005/memeforge/internal/server/caption"
	"github.com/dmitrijs2005/memeforge/internal/server/config"
	"github.com/dmitrijs2005/memeforge/internal/server/httpapi"
	"github.com/dmitrijs2005/memeforge/internal/server/imagegen"
	"github.com/dmitrijs2005/memeforge/internal/server/models"
	"github.com/dmitrijs2005/memeforge/internal/server/ratelimit"
	"github.com/dmitrijs2005/memeforge/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/memeforge/internal/server/safety"
	"github.com/dmitrijs2005/memeforge/internal/server/services"
	"github.com/dmitrijs2005/memeforge/internal/server/storage"

	gs "github.com/dmitrijs2005/memeforge/internal/server/grpc"
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	db         *sql.DB
	limiter    *ratelimit.Limiter
	reconciler *services.Reconciler
	httpServer *httpapi.Server
	grpcServer *gs.OpsGRPCServer
}

func newLogger(level string) logging.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	return logging.NewJSONLogger(os.Stdout, l)
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := newLogger(c.LogLevel)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	keyring, err := cryptox.NewKeyringFromHex(c.EncryptionKeys, c.EncryptionKeyVersion)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("keyring error: %w", err)
	}
	logger.Info(ctx, "keyring loaded", "current_version", keyring.CurrentVersion(), "versions", len(c.EncryptionKeys))

	store, err := storage.NewS3Store(ctx, c)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	compositor, err := caption.NewCompositor()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("caption init error: %w", err)
	}

	var fallback *models.ResolvedCredential
	if c.FallbackAPIKey != "" {
		fallback = &models.ResolvedCredential{Provider: models.Provider(c.FallbackProvider), APIKey: c.FallbackAPIKey}
	}

	vault := services.NewVaultService(db, rm, keyring, logger)
	agents := services.NewAgentService(db, rm, vault, c.AgentCacheTTL, logger)
	generation := services.NewGenerationService(db, rm, services.GenerationDeps{
		Screener:  safety.NewKeywordScreener(safety.DefaultCategories),
		Captioner: compositor,
		Store:     store,
		Providers: imagegen.NewFactory(imagegen.Config{
			Timeout:          c.ProviderTimeout,
			HuggingFaceModel: c.HuggingFaceModel,
			ReplicateModel:   c.ReplicateModel,
		}, logger),
		Credentials: vault,
		Fallback:    fallback,
		Deadline:    c.GenerationDeadline,
	}, logger)
	reconciler := services.NewReconciler(db, rm, store, logger)
	limiter := ratelimit.New(ratelimit.DefaultPolicies)

	httpServer := httpapi.NewServer(c.EndpointAddrHTTP, httpapi.Deps{
		Feed:      services.NewFeedService(db, rm),
		Generator: generation,
		Voter:     services.NewVotingService(db, rm, logger),
		Vault:     vault,
		Agents:    agents,
		Limiter:   limiter,
		DB:        db,
		JWTSecret: []byte(c.SecretKey),
		Logger:    logger,
	})
	grpcServer := gs.NewOpsGRPCServer(c.EndpointAddrGRPC, logger, generation, agents, reconciler,
		c.OrphanGracePeriod, c.SecretKey)

	return &App{
		config:     c,
		logger:     logger,
		db:         db,
		limiter:    limiter,
		reconciler: reconciler,
		httpServer: httpServer,
		grpcServer: grpcServer,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run blocks until a signal arrives or a server fails, then stops every
// component and closes the database.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	app.limiter.Start(ctx)
	defer app.limiter.Stop()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.reconciler.Run(ctx, app.config.ReconcileInterval, app.config.OrphanGracePeriod)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.grpcServer.Run(ctx); err != nil {
			app.logger.Error(ctx, "gRPC server failed", "error", err)
			cancelFunc()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.httpServer.Run(ctx); err != nil {
			app.logger.Error(ctx, "HTTP server failed", "error", err)
			cancelFunc()
		}
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Warn(context.WithoutCancel(ctx), "db close", "error", err)
	}
	app.logger.Info(context.WithoutCancel(ctx), "Stopped")
}

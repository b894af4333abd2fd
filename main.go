package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tutorgo/internal/api"
	"tutorgo/internal/auth"
	"tutorgo/internal/config"
	"tutorgo/internal/generator"
	"tutorgo/internal/redis"
	"tutorgo/internal/service/ai"
	"tutorgo/internal/service/learning"
	"tutorgo/internal/storage"
	"tutorgo/internal/tutor"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load(os.Getenv("TUTORGO_CONFIG"))
	if err != nil {
		fatal("load config", err)
	}

	dbType := cfg.BasicConfig.Database
	dialect, err := storage.ParseDialect(dbType)
	if err != nil {
		fatal("parse database type", err)
	}
	slog.Info("opening database", "type", dbType)
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		fatal("open database", err)
	}
	defer db.Close()

	if dialect == storage.Postgres {
		sub, err := fs.Sub(migrationsFS, "migrations/postgres")
		if err != nil {
			fatal("load migrations", err)
		}
		if err := storage.RunMigrations(storage.PostgresURL(cfg.Databases[dbType]), sub); err != nil {
			fatal("migrate database", err)
		}
	} else if err := storage.Migrate(db, dbType); err != nil {
		fatal("migrate database", err)
	}

	rdb, err := redis.NewRedisClient(cfg)
	if err != nil {
		fatal("create redis client", err)
	}
	defer rdb.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	learningSvc := learning.NewService(db, dialect)
	authSvc := auth.NewService(db, dialect, rdb, time.Duration(cfg.BasicConfig.TokenTTLHours)*time.Hour)

	prov, err := cfg.Provider()
	if err != nil {
		fatal("resolve provider", err)
	}
	chatModel, err := ai.NewChatModel(ctx, cfg.Tutor.Provider, prov)
	if err != nil {
		fatal("init chat model", err)
	}
	tutorSvc, err := ai.NewTutorService(ctx, chatModel, ai.Tools(ctx, cfg.Tutor.WebSearchEnabled), logger)
	if err != nil {
		fatal("init tutor service", err)
	}
	notes, err := ai.NewNotesLoader(ctx)
	if err != nil {
		fatal("init notes loader", err)
	}

	inbox := tutor.NewInbox(config.NotificationInboxSize)
	manager := tutor.NewManager(tutor.ManagerConfig{
		Endpoint:    tutorSvc,
		Store:       learningSvc,
		Logs:        learningSvc,
		Notifier:    inbox,
		Tutor:       cfg.Tutor,
		Logger:      logger,
		Broadcaster: tutor.NewRedisBroadcaster(rdb),
	})
	defer manager.Close()
	go func() {
		if err := manager.Listen(ctx); err != nil {
			slog.Error("invalidation listener stopped", "error", err)
		}
	}()

	handlers := api.NewHandler(api.Deps{
		Learning:  learningSvc,
		Auth:      authSvc,
		Tutors:    manager,
		Inbox:     inbox,
		Generator: generator.New(ai.NewCompleter(chatModel), learningSvc, manager, cfg.Retry, logger),
		Notes:     notes,
		UploadDir: cfg.BasicConfig.UploadDir,
		Logger:    logger,
	})

	router := gin.Default()
	handlers.RegisterRoutes(router)

	// tutor replies can take up to the model request timeout
	srv := &http.Server{
		Addr:         cfg.BasicConfig.ServerAddress,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: config.RequestTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		slog.Info("server listening", "addr", srv.Addr, "provider", cfg.Tutor.Provider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("server stopped", err)
		}
	}()

	<-ctx.Done()
	stop()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/krisefikser/internal/config"
	"github.com/iliyamo/krisefikser/internal/database"
	"github.com/iliyamo/krisefikser/internal/handler"
	"github.com/iliyamo/krisefikser/internal/middleware"
	"github.com/iliyamo/krisefikser/internal/queue"
	"github.com/iliyamo/krisefikser/internal/repository"
	"github.com/iliyamo/krisefikser/internal/router"
	"github.com/iliyamo/krisefikser/internal/service"
	"github.com/iliyamo/krisefikser/internal/token"
	"github.com/iliyamo/krisefikser/internal/utils"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func newLogger(env string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if env == "dev" {
		opts.Level = slog.LevelDebug
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := database.Migrate(ctx, db); err != nil {
		return err
	}
	roles := repository.NewRoleRepo(db)
	if err := roles.Seed(ctx); err != nil {
		return err
	}

	key, err := token.NewSigningKey(cfg.JWTSecret)
	if err != nil {
		return err
	}
	codec := token.NewCodec(key, cfg.AccessTTL, cfg.RefreshTTL)
	tx := repository.NewTxManager(db)

	deps := service.Deps{
		Users:  repository.NewUserRepo(db),
		Roles:  roles,
		Tokens: repository.NewTokenRepo(db, tx),
		Tx:     tx,
		Hasher: utils.NewBcryptHasher(cfg.BcryptCost),
		Codec:  codec,
		Logger: logger.With("component", "session"),
	}
	if cfg.AMQPURL != "" {
		deps.Events = queue.NewPublisher(cfg.AMQPURL, logger.With("component", "publisher"))
	}
	sessions := service.NewSessionService(deps)

	if cfg.SuperAdminEmail != "" {
		if _, err := sessions.EnsureSuperAdmin(ctx, cfg.SuperAdminEmail, cfg.SuperAdminPassword); err != nil {
			return err
		}
	}

	rlCfg, err := config.LoadRateLimitConfig()
	if err != nil {
		return err
	}
	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn("redis unavailable, auth rate limiting disabled")
	} else {
		defer func() { _ = rdb.Close() }()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.LogAttrs(c.Request().Context(), level, "request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("request_id", v.RequestID),
			)
			return nil
		},
	}))

	router.RegisterRoutes(e, db)
	router.RegisterAuth(e,
		handler.NewAuthHandler(sessions, logger.With("component", "http")),
		middleware.Authenticate(codec, sessions, logger.With("component", "authn")),
		middleware.NewTokenBucket(rlCfg, rdb, logger.With("component", "ratelimit")),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		logger.Info("listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return service.NewTokenReaper(sessions, cfg.PruneEvery, logger).Run(gctx)
	})
	if cfg.AMQPURL != "" {
		g.Go(func() error {
			return queue.NewAuditConsumer(cfg.AMQPURL, cfg.AuditLog, logger.With("component", "audit")).Run(gctx)
		})
	}
	return g.Wait()
}

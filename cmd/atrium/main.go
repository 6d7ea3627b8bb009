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

	"golang.org/x/sync/errgroup"

	"github.com/atriumhq/atrium/internal/app"
	"github.com/atriumhq/atrium/internal/audit"
	"github.com/atriumhq/atrium/internal/auth"
	"github.com/atriumhq/atrium/internal/authz"
	"github.com/atriumhq/atrium/internal/catalog"
	"github.com/atriumhq/atrium/internal/notify"
	"github.com/atriumhq/atrium/internal/observability"
	"github.com/atriumhq/atrium/internal/platform/cache"
	"github.com/atriumhq/atrium/internal/platform/db"
	"github.com/atriumhq/atrium/internal/roles"
	"github.com/atriumhq/atrium/internal/sessions"
	"github.com/atriumhq/atrium/internal/users"
	"github.com/atriumhq/atrium/internal/workspaces"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	provider := catalog.Base()

	sessionManager := sessions.NewManager(sessions.NewStore(pool), redisClient, cfg.SessionTTL)
	auditLog := audit.NewLogger(pool, logger)
	dispatcher := notify.NewDispatcher(cfg.RedisAddr)
	defer func() {
		if err := dispatcher.Close(); err != nil {
			logger.Warn("dispatcher close", slog.Any("error", err))
		}
	}()

	userService := users.NewService(users.NewRepository(pool))
	roleService := roles.NewService(roles.NewRepository(pool), provider)
	workspaceService := workspaces.NewService(workspaces.NewRepository(pool), userService, roleService, dispatcher, logger)
	authService := auth.NewService(userService, sessionManager)

	checker := authz.NewChecker(userService, sessionManager, roleService, workspaceService, logger)
	metrics := observability.NewMetrics()
	gate := authz.NewGate(checker, sessionManager, userService, workspaceService, logger, cfg.SessionCookieName, metrics)

	authHandler := auth.NewHandler(logger, authService, cfg.SessionCookieName, cfg.IsProduction())
	catalogHandler := catalog.NewHandler(provider)
	usersHandler := users.NewHandler(logger, userService, authService)
	globalRolesHandler := roles.NewHandler(logger, roleService, auditLog, roles.GlobalScopeResolver, gate, catalog.ItemRole)
	workspaceRolesHandler := roles.NewHandler(logger, roleService, auditLog, roles.WorkspaceScopeResolver(authz.WorkspaceParam), gate, catalog.ItemWSRole)
	workspacesHandler := workspaces.NewHandler(logger, workspaceService, auditLog, gate, workspaceRolesHandler)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Gate:              gate,
		AuthHandler:       authHandler,
		CatalogHandler:    catalogHandler,
		RolesHandler:      globalRolesHandler,
		UsersHandler:      usersHandler,
		WorkspacesHandler: workspacesHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("server", slog.Any("error", err))
		os.Exit(1)
	}
}

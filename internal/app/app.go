package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/batchcoord/internal/data/db"
	"github.com/yungbote/batchcoord/internal/data/repos/folders"
	"github.com/yungbote/batchcoord/internal/data/repos/jobs"
	"github.com/yungbote/batchcoord/internal/data/repos/locks"
	"github.com/yungbote/batchcoord/internal/data/repos/nodes"
	"github.com/yungbote/batchcoord/internal/http/handlers"
	"github.com/yungbote/batchcoord/internal/http/middleware"
	"github.com/yungbote/batchcoord/internal/observability"
	"github.com/yungbote/batchcoord/internal/platform/clock"
	"github.com/yungbote/batchcoord/internal/platform/logger"
	"github.com/yungbote/batchcoord/internal/realtime/bus"
	"github.com/yungbote/batchcoord/internal/server"
	foldersvc "github.com/yungbote/batchcoord/internal/services/folders"
	jobsvc "github.com/yungbote/batchcoord/internal/services/jobs"
	locksvc "github.com/yungbote/batchcoord/internal/services/locks"
	"github.com/yungbote/batchcoord/internal/services/registry"
	"github.com/yungbote/batchcoord/internal/sweeper"
)

// App wires every component named in §2's dependency order into a runnable
// process: store → event bus → repos → services → sweeper → router.
type App struct {
	Log    *logger.Logger
	Cfg    Config
	Store  *db.Store
	Bus    bus.Bus
	Router *gin.Engine

	sweeper      *sweeper.Sweeper
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("loading configuration")
	cfg := LoadConfig(log)
	if cfg.JWTSigningKey == "" {
		log.Sync()
		return nil, fmt.Errorf("JWT_SIGNING_KEY is required")
	}
	if cfg.AdminSigningKey == "" {
		log.Sync()
		return nil, fmt.Errorf("ADMIN_TOKEN_SIGNING_SECRET is required")
	}

	store, err := db.New(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init store: %w", err)
	}
	if err := store.AutoMigrate(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("automigrate: %w", err)
	}

	eventBus, err := wireBus(cfg, log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init event bus: %w", err)
	}

	clk := clock.System{}

	nodeRepo := nodes.NewNodeRepo(store.DB(), log)
	jobRepo := jobs.NewJobRepo(store.DB(), log)
	lockRepo := locks.NewLockRepo(store.DB(), log)
	folderRepo := folders.NewFolderRepo(store.DB(), log)

	tokens := registry.NewTokenIssuer(cfg.JWTSigningKey, cfg.AdminSigningKey, cfg.AuthTokenLifetime, clk)
	registrySvc := registry.New(store.DB(), nodeRepo, tokens, eventBus, clk, cfg.HeartbeatLiveWindow, log)
	lockSvc := locksvc.New(lockRepo, eventBus, clk, cfg.LockExpiryWindow, log)
	folderSvc := foldersvc.New(folderRepo, eventBus, clk, log)
	jobSvc := jobsvc.New(jobRepo, folderRepo, registrySvc, eventBus, clk, log)

	sw := sweeper.New(nodeRepo, lockRepo, eventBus, clk, cfg.SweeperInterval, cfg.HeartbeatLiveWindow, cfg.LockExpiryWindow, log)

	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: cfg.OtelServiceID,
	})

	authMW := middleware.NewAuthMiddleware(log, tokens)
	h := server.Handlers{
		Auth:     handlers.NewAuthHandler(log, registrySvc),
		Nodes:    handlers.NewNodeHandler(log, registrySvc),
		Tasks:    handlers.NewTaskHandler(log, jobSvc),
		Folders:  handlers.NewFolderHandler(log, folderSvc, jobSvc),
		Locks:    handlers.NewFileLockHandler(log, lockSvc),
		Health:   handlers.NewHealthHandler(log, store, eventBus),
		Realtime: handlers.NewRealtimeHandler(log, eventBus),
	}
	router := server.NewRouter(h, authMW, log, cfg.CorsOrigins, cfg.OtelEnabled)

	return &App{
		Log:          log,
		Cfg:          cfg,
		Store:        store,
		Bus:          eventBus,
		Router:       router,
		sweeper:      sw,
		otelShutdown: otelShutdown,
	}, nil
}

func wireBus(cfg Config, log *logger.Logger) (bus.Bus, error) {
	if cfg.RedisAddr == "" {
		return bus.NewHub(log), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return bus.NewRedisBus(ctx, cfg.RedisAddr, cfg.RedisChannel, log)
}

// Start launches the liveness sweeper as a background goroutine.
func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	go a.sweeper.Run(ctx)
}

func (a *App) Run(addr string) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Router.Run(addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.otelShutdown(ctx)
		cancel()
	}
	if a.Bus != nil {
		_ = a.Bus.Close()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}

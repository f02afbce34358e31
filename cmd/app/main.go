package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rps_arena/internal/config"
	"rps_arena/internal/db"
	"rps_arena/internal/economy"
	"rps_arena/internal/game"
	httpServer "rps_arena/internal/http"
	"rps_arena/internal/http/handlers"
	"rps_arena/internal/http/middleware"
	"rps_arena/internal/logger"
	"rps_arena/internal/matchmaking"
	"rps_arena/internal/repository"
	"rps_arena/internal/service"
	"rps_arena/internal/ws"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
)

const version = "1.0.0"

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)
	service.InitJWT(cfg.JWTSecret)

	checks := map[string]handlers.Pinger{}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(ctx).Err()
		cancel()
		if err != nil {
			logger.Warn("redis unavailable, running without it", "addr", cfg.RedisAddr, "error", err)
			_ = rdb.Close()
			rdb = nil
		} else {
			defer rdb.Close()
			checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
			logger.Info("redis connected", "addr", cfg.RedisAddr)
		}
	}
	middleware.InitRedisRateLimiter(rdb)

	hub := ws.NewHub()
	var (
		gateway  economy.Gateway
		balances handlers.Balances
		history  handlers.MatchHistory
		stmts    handlers.Statements
		opts     = []game.Option{}
	)

	switch cfg.EconomyBackend {
	case config.BackendPostgres:
		dbPool := db.Connect(cfg.DatabaseURL)
		defer dbPool.Close()
		checks["database"] = dbPool.Ping

		ledger := economy.NewLedger(dbPool)
		matches := repository.NewMatchRepository(dbPool)
		gateway, balances, history, stmts = ledger, ledger, matches, ledger
		opts = append(opts, game.WithArchiver(matches))
	default:
		bank := economy.NewMemory(economy.WithSeedBalance(cfg.SeedBalance))
		gateway, stmts = bank, bank
		balances = handlers.BalanceFunc(func(_ context.Context, id int64) (int64, error) {
			return bank.Balance(id), nil
		})
		logger.Warn("using in-memory economy; balances are lost on restart")
	}
	if rdb != nil {
		opts = append(opts, game.WithStore(repository.NewSessionStore(rdb, 0)))
	}

	engine := game.NewEngine(cfg.Engine(), gateway, hub, opts...)
	if n, err := engine.Restore(context.Background()); err != nil {
		logger.Error("restore matches failed", "error", err)
	} else if n > 0 {
		logger.Info("matches restored", "count", n)
	}
	coord := matchmaking.NewCoordinator(cfg.Matchmaking(), engine, hub)

	janitor, err := game.StartJanitor(engine, 30*time.Second)
	if err != nil {
		logger.Fatal("failed to start janitor", "error", err)
	}

	r := gin.Default()

	// CORS for production (frontend on different domain)
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && (cfg.AllowedOrigin == "" || origin == cfg.AllowedOrigin) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		}
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	httpServer.RegisterRoutes(r, httpServer.Routes{
		Handler: &handlers.Handler{
			Engine:        engine,
			Coordinator:   coord,
			Balances:      balances,
			History:       history,
			Statements:    stmts,
			AllowedOrigin: cfg.AllowedOrigin,
		},
		Health: handlers.NewHealthHandler(version, checks, func() map[string]int {
			return map[string]int{"connections": hub.Len()}
		}),
		Hub:           hub,
		Router:        ws.NewRouter(engine, coord),
		APIRateLimit:  cfg.APIRateLimit,
		APIRateWindow: cfg.APIRateWindow,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: r,
	}

	go func() {
		logger.Info("server started", "port", cfg.AppPort, "economy", cfg.EconomyBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	if err := janitor.Stop(); err != nil {
		logger.Warn("janitor shutdown", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}

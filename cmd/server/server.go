package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/thereayou/artem-chat/internal/config"
	"github.com/thereayou/artem-chat/internal/database"
	"github.com/thereayou/artem-chat/internal/handlers"
	"github.com/thereayou/artem-chat/internal/logger"
	"github.com/thereayou/artem-chat/internal/middleware"
	"github.com/thereayou/artem-chat/internal/ratelimit"
	"github.com/thereayou/artem-chat/internal/services"
	ws "github.com/thereayou/artem-chat/internal/websocket"
	"github.com/thereayou/artem-chat/pkg/auth"
)

type Server struct {
	cfg      *config.Config
	log      *logger.Logger
	Router   *gin.Engine
	DB       *database.Database
	Redis    *redis.Client
	Registry *ws.Registry
	Sweeper  *services.Sweeper
	http     *http.Server
}

func NewServer(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Server, error) {
	db, err := database.Open(cfg.Storage, log.WithStr("component", "storage"))
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	// после падения процесса в базе остаются онлайн-флаги
	if err := db.ResetPresence(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	jwtMgr := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
	authSvc := services.NewAuthService(
		db,
		auth.NewPasswordHasher(cfg.Auth.BcryptCost),
		jwtMgr,
		services.AuthOptions{
			MinPasswordLength: cfg.Auth.MinPasswordLength,
			MaxUsernameLength: cfg.Limits.MaxUsernameLength,
		},
		log.WithStr("component", "auth"),
	)

	if cfg.Owner.Enabled() {
		created, err := authSvc.EnsureOwner(ctx, cfg.Owner.Username, cfg.Owner.Tag, cfg.Owner.Password)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		if !created {
			log.Debug().Msg("owner already exists")
		}
	}

	rdb, limiter, err := newLimiter(ctx, cfg, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	registry := ws.NewRegistry()
	messageH := handlers.NewMessageHandler(db, authSvc, registry, limiter, handlers.Limits{
		MaxMessageLength: cfg.Limits.MaxMessageLength,
		HistoryLimit:     cfg.Limits.HistoryLimit,
		SearchLimit:      cfg.Limits.SearchLimit,
		PreviewLength:    cfg.Limits.PreviewLength,
	}, log.WithStr("component", "dispatcher"))

	wsH := handlers.NewWebSocketHandler(authSvc, db, registry, messageH, handlers.WebSocketOptions{
		Client: ws.Options{
			WriteWait: cfg.Server.WriteWait,
			PongWait:  cfg.Server.PongWait,
			ReadLimit: cfg.Server.ReadLimit,
			QueueSize: cfg.Server.SendQueueSize,
		},
		AuthTimeout:    cfg.Server.AuthTimeout,
		EvictOnRebind:  cfg.Server.EvictOnRebind,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		ListLimit:      cfg.Limits.SearchLimit,
		PreviewLength:  cfg.Limits.PreviewLength,
	}, log.WithStr("component", "gateway"))

	if !cfg.Log.Pretty {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RequestLogger(log.WithStr("component", "http")), middleware.Recovery(log))
	APIEndpoints(router, wsH, handlers.NewHealthHandler(db, registry))

	return &Server{
		cfg:      cfg,
		log:      log,
		Router:   router,
		DB:       db,
		Redis:    rdb,
		Registry: registry,
		Sweeper:  services.NewSweeper(db, cfg.Maintenance.SweepInterval, log.WithStr("component", "sweeper")),
		http: &http.Server{
			Addr:              ":" + cfg.Server.Port,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// newLimiter выбирает лимитер: redis, если задан REDIS_URL, иначе в памяти.
func newLimiter(ctx context.Context, cfg *config.Config, log *logger.Logger) (*redis.Client, ratelimit.Limiter, error) {
	limit := cfg.Limits.MessagesPerMinute
	if limit == 0 {
		return nil, ratelimit.Unlimited{}, nil
	}
	if cfg.Redis.URL == "" {
		return nil, ratelimit.NewMemoryLimiter(limit, time.Minute), nil
	}

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis connect failed: %w", err)
	}
	log.Info().Str("addr", opts.Addr).Msg("rate limiter uses redis")
	return rdb, ratelimit.NewRedisLimiter(rdb, limit, time.Minute), nil
}

// Run слушает порт до отмены ctx, затем останавливает сервер.
func (s *Server) Run(ctx context.Context) error {
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go s.Sweeper.Run(sweepCtx)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.http.Addr).Msg("server starting")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			s.close()
			return fmt.Errorf("server run error: %w", err)
		}
	case <-ctx.Done():
	}
	return s.Shutdown()
}

func (s *Server) Shutdown() error {
	s.log.Info().Msg("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	err := s.http.Shutdown(ctx)
	// WebSocket соединения захвачены и Shutdown их не ждёт
	s.Registry.CloseAll()
	s.close()
	return err
}

func (s *Server) close() {
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			s.log.Warn().Err(err).Msg("close redis")
		}
	}
	resetCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.DB.ResetPresence(resetCtx); err != nil {
		s.log.Warn().Err(err).Msg("reset presence")
	}
	if err := s.DB.Close(); err != nil {
		s.log.Warn().Err(err).Msg("close storage")
	}
}

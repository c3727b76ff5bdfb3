package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/leandro-lugaresi/hub"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/quartzchat/quartz/repository"
	gormrepo "github.com/quartzchat/quartz/repository/gorm"
	"github.com/quartzchat/quartz/router"
	"github.com/quartzchat/quartz/service"
	"github.com/quartzchat/quartz/service/cache"
	"github.com/quartzchat/quartz/service/message"
	"github.com/quartzchat/quartz/service/notification"
	"github.com/quartzchat/quartz/service/presence"
	"github.com/quartzchat/quartz/service/ratelimit"
	"github.com/quartzchat/quartz/service/relay"
	"github.com/quartzchat/quartz/service/room"
	"github.com/quartzchat/quartz/service/unread"
	"github.com/quartzchat/quartz/service/ws"
	"github.com/quartzchat/quartz/utils/gormzap"
	"github.com/quartzchat/quartz/utils/jwt"
	"github.com/quartzchat/quartz/utils/random"
)

// serveCommand サーバー起動コマンド
func serveCommand() *cobra.Command {
	cmd := cobra.Command{
		Use:   "serve",
		Short: "Serve Quartz API",
		Run: func(cmd *cobra.Command, args []string) {
			// Logger
			logger := getLogger()
			defer logger.Sync()

			logger.Info(fmt.Sprintf("Quartz %s (revision %s)", Version, Revision))

			// Message Hub
			hub := hub.New()

			// Database
			logger.Info("connecting database...")
			engine, err := c.getDatabase(gormzap.New(logger.Named("gorm")))
			if err != nil {
				logger.Fatal("failed to connect database", zap.Error(err))
			}
			db, err := engine.DB()
			if err != nil {
				logger.Fatal("failed to get *sql.DB", zap.Error(err))
			}
			defer db.Close()
			logger.Info("database connection was established")

			// Repository
			logger.Info("setting up repository...")
			repo, err := gormrepo.NewGormRepository(engine, logger)
			if err != nil {
				logger.Fatal("failed to initialize repository", zap.Error(err))
			}
			logger.Info("repository was set up")

			// Redis
			rdb := c.getRedis()
			defer rdb.Close()
			{
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := rdb.Ping(ctx).Err(); err != nil {
					logger.Fatal("failed to connect redis", zap.Error(err))
				}
				cancel()
			}
			logger.Info("redis connection was established")

			// JWT
			if priv := c.JWT.Keys.Private; priv != "" {
				privRaw, err := os.ReadFile(priv)
				if err != nil {
					logger.Fatal("failed to read jwt private key", zap.Error(err))
				}
				if err := jwt.SetupSigner(privRaw); err != nil {
					logger.Fatal("failed to setup signer", zap.Error(err))
				}
			} else {
				// 一時鍵を発行
				privRaw, pubRaw := random.GenerateECDSAKey()
				_ = jwt.SetupSigner(privRaw)
				logger.Warn("a temporary key for JWT was generated. This key is valid only during this running.", zap.String("public_key", string(pubRaw)))
			}

			// サーバー作成
			server, err := newServer(hub, repo, rdb, logger, &c)
			if err != nil {
				logger.Fatal("failed to create server", zap.Error(err))
			}

			go func() {
				if err := server.Start(fmt.Sprintf(":%d", c.Port)); err != nil {
					logger.Info("shutting down the server")
				}
			}()

			logger.Info("Quartz started")
			waitSIGINT()
			logger.Info("Quartz shutting down...")

			ctx, cancel := context.WithTimeout(context.Background(), time.Duration(c.ShutdownTimeout)*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				logger.Warn("abnormal shutdown", zap.Error(err))
			}
			logger.Info("Quartz shutdown")
		},
	}

	return &cmd
}

type Server struct {
	L      *zap.Logger
	SS     *service.Services
	Router *echo.Echo
	Hub    *hub.Hub
	Repo   repository.Repository

	// cancel バックグラウンドループ(スイーパー・リレー)停止用
	cancel context.CancelFunc
}

func newServer(h *hub.Hub, repo repository.Repository, rdb *redis.Client, logger *zap.Logger, c *Config) (*Server, error) {
	ctx, cancel := context.WithCancel(context.Background())

	appCache, err := cache.NewCache(c.Cache.FastSize, cache.NewRedisDurable(rdb, "quartz:cache:"), logger)
	if err != nil {
		cancel()
		return nil, err
	}
	go appCache.RunSweeper(ctx, time.Duration(c.Cache.SweepIntervalSeconds)*time.Second)

	registry := room.NewRegistry()
	limiter := ratelimit.NewLimiter(c.RateLimit.Ceiling, time.Duration(c.RateLimit.WindowSeconds)*time.Second)
	ledger := unread.NewLedger(repo, logger)
	tracker := presence.NewTracker(h)

	manager, err := message.NewMessageManager(repo, h, appCache, logger)
	if err != nil {
		cancel()
		return nil, err
	}

	streamer := ws.NewStreamer(h, registry, limiter, manager, ledger, logger)
	ns := notification.NewService(repo, h, logger, streamer, registry, ledger)
	rl := relay.NewRelay(ctx, rdb, h, logger)

	ss := &service.Services{
		Cache:          appCache,
		MessageManager: manager,
		Notification:   ns,
		Presence:       tracker,
		RateLimiter:    limiter,
		Relay:          rl,
		RoomRegistry:   registry,
		UnreadLedger:   ledger,
		WS:             streamer,
	}

	e := router.Setup(h, repo, ss, logger, provideRouterConfig(c))

	return &Server{
		L:      logger,
		SS:     ss,
		Router: e,
		Hub:    h,
		Repo:   repo,
		cancel: cancel,
	}, nil
}

func (s *Server) Start(address string) error {
	return s.Router.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		err := s.Router.Shutdown(ctx)
		s.L.Info("Router shutdown")
		return err
	})
	eg.Go(func() error {
		err := s.SS.WS.Close()
		s.L.Info("WebSocket shutdown")
		return err
	})
	err := eg.Wait()
	s.cancel()
	s.Hub.Close()
	return err
}

func waitSIGINT() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
}

package router

import (
	"net/http"

	"github.com/gofrs/uuid"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/leandro-lugaresi/hub"
	"go.uber.org/zap"

	"github.com/quartzchat/quartz/repository"
	"github.com/quartzchat/quartz/router/consts"
	"github.com/quartzchat/quartz/router/extension"
	"github.com/quartzchat/quartz/router/middlewares"
	"github.com/quartzchat/quartz/service"
)

// Setup APIサーバーのルーティングを構築します
func Setup(hub *hub.Hub, repo repository.Repository, ss *service.Services, logger *zap.Logger, config *Config) *echo.Echo {
	e := newEcho(logger.Named("router"), config)

	api := e.Group("/api")
	api.GET("/metrics", echoprometheus.NewHandler())
	api.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, http.StatusText(http.StatusOK)) })

	authed := api.Group("", middlewares.UserAuthenticate(repo, ss.Cache))
	authed.GET("/ws", func(c echo.Context) error {
		ss.WS.ServeHTTP(c.Response(), c.Request())
		return nil
	})
	authed.GET("/stats", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"liveConnections": ss.WS.SessionCount(),
			"roomMembers":     ss.RoomRegistry.Counts(),
			"onlineUsers":     ss.Presence.OnlineUserIDs(),
		})
	})
	authed.GET("/users/me/unreads", func(c echo.Context) error {
		userID := c.Get(consts.KeyUserID).(uuid.UUID)
		return c.JSON(http.StatusOK, ss.UnreadLedger.GetSummary(userID))
	})

	return e
}

func newEcho(logger *zap.Logger, config *Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = extension.ErrorHandler(logger)

	// ミドルウェア設定
	e.Use(middlewares.ServerVersion(config.Version))
	e.Use(middlewares.RequestID())
	if config.AccessLogging {
		e.Use(middlewares.AccessLogging(logger.Named("access_log"), config.Development))
	}
	e.Use(middlewares.Recovery(logger))
	if config.Gzipped {
		e.Use(middlewares.Gzip())
	}
	e.Use(middlewares.RequestCounter())
	corsConfig := middleware.CORSConfig{
		ExposeHeaders: []string{consts.HeaderVersion, echo.HeaderXRequestID},
		AllowHeaders:  []string{echo.HeaderContentType, echo.HeaderAuthorization},
		MaxAge:        3600,
	}
	if len(config.Origin) > 0 {
		corsConfig.AllowOrigins = []string{config.Origin}
	}
	e.Use(middleware.CORSWithConfig(corsConfig))
	e.Use(echoprometheus.NewMiddleware("echo"))

	return e
}

// Package api 提供 Okto 的 HTTP 接口。
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/iabetor/okto/internal/auth"
	"github.com/iabetor/okto/internal/feed"
	"github.com/iabetor/okto/internal/logger"
	"github.com/iabetor/okto/internal/profile"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

const (
	AppName = "Okto API"
	Version = "0.1.0"
)

// ProfileService 画像读写。
type ProfileService interface {
	Get(ctx context.Context, userID int64) (*profile.Profile, error)
	Update(ctx context.Context, userID int64, u profile.Update) (*profile.Profile, error)
}

// Options 构造 Server 所需的依赖。
type Options struct {
	Auth        *auth.Service
	Profiles    ProfileService
	Feed        *feed.Service
	CORSOrigins []string
}

// Server 封装 echo 实例和业务依赖。
type Server struct {
	echo     *echo.Echo
	auth     *auth.Service
	profiles ProfileService
	feed     *feed.Service
}

// New 创建 HTTP 服务并注册全部路由。
func New(opts Options) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{echo: e, auth: opts.Auth, profiles: opts.Profiles, feed: opts.Feed}
	e.HTTPErrorHandler = s.handleError

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(requestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: origins}))

	s.routes()
	return s
}

func (s *Server) routes() {
	e := s.echo
	e.GET("/", s.handleRoot)
	e.GET("/health", s.handleHealth)

	e.POST("/auth/signup", s.handleSignup)
	e.POST("/auth/login", s.handleLogin)

	e.GET("/users/me", s.handleMe, s.requireAuth)
	e.GET("/users/:user_id/profile", s.handleGetProfile, s.requireAuth)
	e.PUT("/users/:user_id/profile", s.handleUpdateProfile, s.requireAuth)
	e.GET("/news/feed", s.handleFeed, s.requireAuth)
	e.POST("/news/refresh", s.handleRefresh, s.requireAuth)
	e.GET("/news/sources", s.handleSources, s.requireAuth)
	e.GET("/insights/:user_id", s.handleInsights, s.requireAuth)
}

// Handler 返回底层 http.Handler，主要用于测试。
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start 监听 addr 直到 Shutdown 被调用。
func (s *Server) Start(addr string) error {
	logger.Infof("[api] HTTP 服务启动: %s", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown 优雅关闭，等待进行中的请求完成。
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// handleError 统一输出 {"detail": "..."}。
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	detail := "Internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if msg, ok := he.Message.(string); ok {
			detail = msg
		} else {
			detail = http.StatusText(code)
		}
	} else {
		logger.Errorf("[api] %s %s 处理失败: %v", c.Request().Method, c.Request().URL.Path, err)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, map[string]string{"detail": detail})
	}
	if err != nil {
		logger.Warnf("[api] 写入错误响应失败: %v", err)
	}
}

func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURIPath:   true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,

		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("path", v.URIPath),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				logger.Z.Warn("[api] 请求失败", append(fields, zap.Error(v.Error))...)
				return nil
			}
			logger.Z.Debug("[api] 请求完成", fields...)
			return nil
		},
	})
}

// Package app 按配置组装 Okto 的各个组件。
package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/iabetor/okto/internal/api"
	"github.com/iabetor/okto/internal/auth"
	"github.com/iabetor/okto/internal/config"
	"github.com/iabetor/okto/internal/database"
	"github.com/iabetor/okto/internal/feed"
	"github.com/iabetor/okto/internal/logger"
	"github.com/iabetor/okto/internal/news"
	"github.com/iabetor/okto/internal/profile"
)

// App 持有数据库连接和全部服务。
type App struct {
	cfg *config.Config

	DB       *database.DB
	Articles *news.Store
	Cache    *news.CacheManager
	Profiles *profile.Store
	Auth     *auth.Service
	Feed     *feed.Service
}

// New 打开数据库、执行迁移并组装服务。
func New(cfg *config.Config) (*App, error) {
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}

	a := &App{cfg: cfg, DB: db}

	a.Articles = news.NewStore(db)
	a.Cache = news.NewCacheManager(a.Articles, newFetcher(cfg.News), news.CacheOptions{
		Query:           cfg.News.Query,
		PageSize:        cfg.News.PageSize,
		FreshnessWindow: cfg.News.FreshnessWindow(),
		Retention:       cfg.News.Retention(),
	})

	a.Profiles = profile.NewStore(db)

	secret := cfg.Auth.SecretKey
	if secret == "" {
		secret = uuid.NewString()
		logger.Warn("[app] 未配置 auth.secret_key，使用随机密钥，重启后令牌将失效")
	}
	a.Auth = auth.NewService(auth.NewUserStore(db), a.Profiles, auth.NewTokenIssuer(secret, cfg.Auth.AccessTokenTTL()))

	a.Feed = feed.NewService(a.Cache, a.Articles, a.Profiles, cfg.News.MaxAge())

	return a, nil
}

// newFetcher 组合 NewsAPI 和配置的 RSS 源。
func newFetcher(cfg config.NewsConfig) news.Fetcher {
	fetchers := news.MultiFetcher{
		news.NewNewsAPIFetcher(news.NewsAPIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout(),
		}),
	}
	if len(cfg.RSSFeeds) > 0 {
		feeds := make([]news.FeedSource, 0, len(cfg.RSSFeeds))
		for _, f := range cfg.RSSFeeds {
			feeds = append(feeds, news.FeedSource{Name: f.Name, URL: f.URL})
		}
		fetchers = append(fetchers, news.NewRSSFetcher(feeds, cfg.Timeout()))
		logger.Infof("[app] 已启用 %d 个 RSS 源", len(feeds))
	}
	return fetchers
}

// Server 创建 HTTP 服务。
func (a *App) Server() *api.Server {
	return api.New(api.Options{
		Auth:        a.Auth,
		Profiles:    a.Profiles,
		Feed:        a.Feed,
		CORSOrigins: a.cfg.Server.CORSOrigins,
	})
}

// RunEviction 在后台定期清理过期文章，直到 ctx 结束。
func (a *App) RunEviction(ctx context.Context) {
	a.Cache.RunEviction(ctx, a.cfg.News.EvictionInterval())
}

// Close 关闭数据库连接。
func (a *App) Close() error {
	if err := a.DB.Close(); err != nil {
		return fmt.Errorf("关闭数据库失败: %w", err)
	}
	logger.Info("[app] 已关闭")
	return nil
}

// Package feed 组装个性化新闻流：刷新缓存、读取近期文章、按画像过滤。
package feed

import (
	"context"
	"errors"
	"time"

	"github.com/iabetor/okto/internal/logger"
	"github.com/iabetor/okto/internal/news"
	"github.com/iabetor/okto/internal/profile"
)

// DefaultLimit 是未指定条数时返回的文章数。
const DefaultLimit = 20

// Refresher 负责让缓存保持新鲜。
type Refresher interface {
	EnsureFresh(ctx context.Context, forceRefresh bool) error
}

// ArticleReader 读取缓存文章。
type ArticleReader interface {
	ReadRecent(ctx context.Context, q news.RecentQuery) ([]news.Article, error)
	Sources(ctx context.Context) ([]string, error)
}

// ProfileReader 读取用户画像，不存在时返回 nil, nil。
type ProfileReader interface {
	Get(ctx context.Context, userID int64) (*profile.Profile, error)
}

// Service 新闻流服务。
type Service struct {
	cache    Refresher
	articles ArticleReader
	profiles ProfileReader
	maxAge   time.Duration
}

// NewService 创建新闻流服务。maxAge 为读取窗口，<=0 时为 24 小时。
func NewService(cache Refresher, articles ArticleReader, profiles ProfileReader, maxAge time.Duration) *Service {
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return &Service{cache: cache, articles: articles, profiles: profiles, maxAge: maxAge}
}

// GetFeed 返回用户的个性化新闻流，最多 limit 条（同时不超过过滤上限）。
// 刷新失败只记录日志，仍然使用已有缓存。
func (s *Service) GetFeed(ctx context.Context, userID int64, limit int) ([]news.Article, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	if err := s.cache.EnsureFresh(ctx, false); err != nil {
		if errors.Is(err, news.ErrMissingAPIKey) {
			logger.Debugf("[feed] 未配置 NewsAPI Key，使用已有缓存")
		} else {
			logger.Errorf("[feed] 刷新新闻缓存失败: %v", err)
		}
	}

	articles, err := s.articles.ReadRecent(ctx, news.RecentQuery{
		Category: news.CategoryFinance,
		MaxAge:   s.maxAge,
		Limit:    limit * 2,
	})
	if err != nil {
		return nil, err
	}

	p, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	filtered := news.Filter(articles, CriteriaFor(p))
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}
	logger.Debugf("[feed] 用户 %d: 候选 %d 篇，返回 %d 篇", userID, len(articles), len(filtered))
	return filtered, nil
}

// Refresh 强制刷新缓存并返回错误，供手动刷新接口使用。
func (s *Service) Refresh(ctx context.Context) error {
	return s.cache.EnsureFresh(ctx, true)
}

// Sources 返回缓存中出现过的来源名称。
func (s *Service) Sources(ctx context.Context) ([]string, error) {
	return s.articles.Sources(ctx)
}

// CriteriaFor 从画像提取过滤条件，nil 画像得到空条件。
func CriteriaFor(p *profile.Profile) news.Criteria {
	if p == nil {
		return news.Criteria{}
	}
	return news.Criteria{
		NumLoans:     p.NumLoansValue(),
		HousingType:  p.HousingTypeValue(),
		SavingsTypes: p.SavingsTypes,
		VehicleType:  p.VehicleTypeValue(),
	}
}

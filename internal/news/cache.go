package news

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iabetor/okto/internal/logger"
	"golang.org/x/sync/singleflight"
)

const (
	defaultQuery           = "finance economy stock market"
	defaultPageSize        = 30
	defaultFreshnessWindow = 6 * time.Hour
	defaultRetention       = 30 * 24 * time.Hour
)

// CacheOptions 是缓存管理器的可调参数。
type CacheOptions struct {
	Query           string
	PageSize        int
	FreshnessWindow time.Duration
	Retention       time.Duration
}

// CacheManager 决定何时刷新缓存，并把抓取结果去重后写入存储。
type CacheManager struct {
	store   *Store
	fetcher Fetcher
	opts    CacheOptions
	group   singleflight.Group
}

// NewCacheManager 创建缓存管理器。
func NewCacheManager(store *Store, fetcher Fetcher, opts CacheOptions) *CacheManager {
	if opts.Query == "" {
		opts.Query = defaultQuery
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.FreshnessWindow <= 0 {
		opts.FreshnessWindow = defaultFreshnessWindow
	}
	if opts.Retention <= 0 {
		opts.Retention = defaultRetention
	}
	return &CacheManager{store: store, fetcher: fetcher, opts: opts}
}

// EnsureFresh 在缓存过期或 forceRefresh 为 true 时抓取并写入新文章。
// 并发调用共享同一次检查和抓取；即使重复写入，URL 去重也保证结果幂等。
func (m *CacheManager) EnsureFresh(ctx context.Context, forceRefresh bool) error {
	key := "implicit"
	if forceRefresh {
		key = "forced"
	}
	_, err, shared := m.group.Do(key, func() (interface{}, error) {
		return nil, m.refresh(context.WithoutCancel(ctx), forceRefresh)
	})
	if shared {
		logger.Debugf("[news] 复用进行中的 %s 刷新", key)
	}
	return err
}

func (m *CacheManager) refresh(ctx context.Context, forceRefresh bool) error {
	if !forceRefresh {
		latest, ok, err := m.store.LatestCachedAt(ctx)
		if err != nil {
			return err
		}
		if ok && m.store.now().Sub(latest) < m.opts.FreshnessWindow {
			logger.Debugf("[news] 缓存仍然新鲜（最近写入 %s），跳过抓取", latest.Format(time.RFC3339))
			return nil
		}
	}

	fetched, fetchErr := m.fetcher.Fetch(ctx, m.opts.Query, 1, m.opts.PageSize)
	if len(fetched) > 0 {
		n, err := m.Ingest(ctx, fetched)
		if err != nil {
			return errors.Join(fetchErr, err)
		}
		logger.Infof("[news] 抓取 %d 篇文章，新增缓存 %d 篇", len(fetched), n)
	}
	if fetchErr != nil {
		return fmt.Errorf("抓取新闻失败: %w", fetchErr)
	}
	return nil
}

// Ingest 去重后写入一批文章，返回新增数量。
// 单条数据异常只会跳过该条；整批写入在同一个事务中提交。
func (m *CacheManager) Ingest(ctx context.Context, fetched []FetchedArticle) (int, error) {
	now := m.store.now().UTC()
	seen := make(map[string]struct{}, len(fetched))
	batch := make([]Article, 0, len(fetched))

	for _, fa := range fetched {
		a, err := normalizeFetched(fa, now)
		if err != nil {
			logger.Warnf("[news] 跳过无效文章 %q: %v", fa.Title, err)
			continue
		}
		// 同一批次内重复的 URL 也只保留第一条
		if _, dup := seen[a.URL]; dup {
			continue
		}
		seen[a.URL] = struct{}{}
		batch = append(batch, a)
	}

	if len(batch) == 0 {
		return 0, nil
	}
	n, err := m.store.InsertNew(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("写入缓存失败: %w", err)
	}
	return n, nil
}

// Evict 删除超过保留期的文章。
func (m *CacheManager) Evict(ctx context.Context) (int64, error) {
	cutoff := m.store.now().Add(-m.opts.Retention)
	n, err := m.store.DeleteCachedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logger.Infof("[news] 已清理 %d 篇过期缓存文章", n)
	}
	return n, nil
}

// RunEviction 按固定间隔执行清理，直到 ctx 结束。
func (m *CacheManager) RunEviction(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := m.Evict(ctx); err != nil && ctx.Err() == nil {
			logger.Warnf("[news] 清理过期缓存失败: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func normalizeFetched(fa FetchedArticle, now time.Time) (Article, error) {
	url := strings.TrimSpace(fa.URL)
	if url == "" {
		return Article{}, errors.New("缺少 url")
	}
	category := fa.Category
	if category == "" {
		category = CategoryFinance
	}
	return Article{
		Source:      fa.Source,
		Title:       fa.Title,
		Description: fa.Description,
		URL:         url,
		ImageURL:    fa.ImageURL,
		PublishedAt: parsePublishedAt(fa.PublishedAt, now),
		Category:    category,
		Author:      fa.Author,
		Content:     fa.Content,
		CachedAt:    now,
	}, nil
}

// parsePublishedAt 解析带 Z 后缀的 ISO-8601 时间。
// 缺失或无法解析时使用 fallback（通常是当前时间）。
func parsePublishedAt(raw string, fallback time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC()
	}
	// 没有时区的时间按 UTC 处理
	if t, err := time.Parse("2006-01-02T15:04:05.999999999", raw); err == nil {
		return t.UTC()
	}
	logger.Debugf("[news] 无法解析发布时间 %q，使用当前时间", raw)
	return fallback
}

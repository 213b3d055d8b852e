// Package news 负责财经新闻的抓取、缓存、去重和基于画像的关键词过滤。
package news

import (
	"context"
	"time"
)

// CategoryFinance 是所有抓取文章统一使用的分类。
// 外部 API 的分类体系比本应用宽泛，不予采信。
const CategoryFinance = "finance"

// Article 是已缓存的新闻文章，以 URL 唯一标识。
type Article struct {
	ID          int64     `json:"id"`
	Source      string    `json:"source"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	ImageURL    *string   `json:"image_url"`
	PublishedAt time.Time `json:"published_at"`
	Category    string    `json:"category"`
	Author      *string   `json:"author"`
	Content     *string   `json:"content,omitempty"`
	CachedAt    time.Time `json:"cached_at"`
}

// FetchedArticle 是抓取器归一化后、入库前的文章。
// PublishedAt 保留源数据中的 ISO-8601 字符串，入库时再解析。
type FetchedArticle struct {
	Source      string
	Title       string
	Description string
	URL         string
	ImageURL    *string
	PublishedAt string
	Category    string
	Author      *string
	Content     *string
}

// Fetcher 从外部数据源获取文章。
// 返回的切片总是可用的（失败时为空），error 仅用于报告失败原因。
type Fetcher interface {
	Fetch(ctx context.Context, query string, page, pageSize int) ([]FetchedArticle, error)
}

// optional 把空字符串视为缺失。
func optional(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

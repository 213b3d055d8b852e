package news

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/iabetor/okto/internal/logger"
	"github.com/mmcdole/gofeed"
)

// FeedSource 是一个补充的 RSS/Atom 订阅源。
type FeedSource struct {
	Name string
	URL  string
}

// RSSFetcher 从配置的 RSS/Atom 源获取文章，作为 NewsAPI 的补充。
type RSSFetcher struct {
	feeds  []FeedSource
	parser *gofeed.Parser
	client *http.Client
}

// NewRSSFetcher 创建 RSS 抓取器。
func NewRSSFetcher(feeds []FeedSource, timeout time.Duration) *RSSFetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &RSSFetcher{
		feeds:  feeds,
		parser: gofeed.NewParser(),
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch 依次抓取所有订阅源，每个源最多取 pageSize 条。
// RSS 没有搜索语义，query 和 page 被忽略。
func (f *RSSFetcher) Fetch(ctx context.Context, _ string, _ int, pageSize int) ([]FetchedArticle, error) {
	var (
		all  []FetchedArticle
		errs []error
	)
	for _, src := range f.feeds {
		feed, err := f.parseFeed(ctx, src.URL)
		if err != nil {
			logger.Warnf("[news] 抓取订阅源 %s 失败: %v", src.Name, err)
			errs = append(errs, fmt.Errorf("订阅源 %s: %w", src.Name, err))
			continue
		}
		all = append(all, convertFeedItems(feed, src, pageSize)...)
	}
	return all, errors.Join(errs...)
}

// Validate 拉取并解析 url，返回 Feed 标题。用于添加订阅源前的检查。
func (f *RSSFetcher) Validate(ctx context.Context, url string) (string, error) {
	feed, err := f.parseFeed(ctx, url)
	if err != nil {
		return "", fmt.Errorf("无效的订阅源: %w", err)
	}
	return feed.Title, nil
}

// parseFeed 解析 Feed URL。
func (f *RSSFetcher) parseFeed(ctx context.Context, url string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Okto/0.1 RSS Reader")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	return f.parser.Parse(resp.Body)
}

// convertFeedItems 将 gofeed 条目转换为 FetchedArticle。
func convertFeedItems(feed *gofeed.Feed, src FeedSource, limit int) []FetchedArticle {
	source := src.Name
	if source == "" {
		source = feed.Title
	}

	n := len(feed.Items)
	if limit > 0 && n > limit {
		n = limit
	}

	items := make([]FetchedArticle, 0, n)
	for _, item := range feed.Items[:n] {
		description := htmlToText(item.Description)
		content := htmlToText(item.Content)
		if description == "" {
			description = content
		}

		published := ""
		if item.PublishedParsed != nil {
			published = item.PublishedParsed.UTC().Format(time.RFC3339)
		} else if item.UpdatedParsed != nil {
			published = item.UpdatedParsed.UTC().Format(time.RFC3339)
		}

		items = append(items, FetchedArticle{
			Source:      source,
			Title:       strings.TrimSpace(item.Title),
			Description: description,
			URL:         strings.TrimSpace(item.Link),
			ImageURL:    optional(itemImage(item)),
			PublishedAt: published,
			Category:    CategoryFinance,
			Author:      optional(itemAuthor(item)),
			Content:     optional(&content),
		})
	}
	return items
}

func itemImage(item *gofeed.Item) *string {
	if item.Image != nil && item.Image.URL != "" {
		return &item.Image.URL
	}
	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") {
			return &enc.URL
		}
	}
	return nil
}

func itemAuthor(item *gofeed.Item) *string {
	if item.Author != nil && item.Author.Name != "" {
		return &item.Author.Name
	}
	for _, p := range item.Authors {
		if p != nil && p.Name != "" {
			return &p.Name
		}
	}
	return nil
}

// htmlToText 剥离 HTML 标签和实体，合并连续空白。
func htmlToText(s string) string {
	if strings.ContainsAny(s, "<&") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			s = doc.Text()
		}
	}
	return strings.Join(strings.Fields(s), " ")
}

package news

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/iabetor/okto/internal/logger"
)

const (
	defaultNewsAPIBaseURL = "https://newsapi.org/v2"
	defaultFetchTimeout   = 10 * time.Second
	maxErrorBodyBytes     = 4 << 10
)

var (
	// ErrMissingAPIKey 表示未配置 NewsAPI Key，抓取直接跳过。
	ErrMissingAPIKey = errors.New("未配置 NewsAPI Key")
	// ErrAPIStatus 表示 NewsAPI 返回了非 ok 状态。
	ErrAPIStatus = errors.New("NewsAPI 返回错误状态")
)

// NewsAPIConfig 是 NewsAPI 抓取器的显式配置。
type NewsAPIConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// NewsAPIFetcher 调用 NewsAPI 的 everything 搜索接口。
type NewsAPIFetcher struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewNewsAPIFetcher 创建 NewsAPI 抓取器。
func NewNewsAPIFetcher(cfg NewsAPIConfig) *NewsAPIFetcher {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultNewsAPIBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &NewsAPIFetcher{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// newsAPIResponse NewsAPI 响应。
type newsAPIResponse struct {
	Status   string           `json:"status"`
	Code     string           `json:"code"`
	Message  string           `json:"message"`
	Articles []newsAPIArticle `json:"articles"`
}

type newsAPIArticle struct {
	Source struct {
		Name *string `json:"name"`
	} `json:"source"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	URL         string  `json:"url"`
	URLToImage  *string `json:"urlToImage"`
	PublishedAt string  `json:"publishedAt"`
	Author      *string `json:"author"`
	Content     *string `json:"content"`
}

// Fetch 按发布时间倒序搜索英文新闻。
// 任何失败都降级为空结果，错误只用于报告。
func (f *NewsAPIFetcher) Fetch(ctx context.Context, query string, page, pageSize int) ([]FetchedArticle, error) {
	if f.apiKey == "" {
		logger.Warn("[news] NEWSAPI_KEY 未设置，跳过抓取")
		return nil, ErrMissingAPIKey
	}

	articles, err := f.fetch(ctx, query, page, pageSize)
	if err != nil {
		logger.Errorf("[news] 从 NewsAPI 抓取失败: %v", err)
		return nil, err
	}
	return articles, nil
}

func (f *NewsAPIFetcher) fetch(ctx context.Context, query string, page, pageSize int) ([]FetchedArticle, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("sortBy", "publishedAt")
	params.Set("language", "en")
	params.Set("apiKey", f.apiKey)
	params.Set("page", strconv.Itoa(page))
	params.Set("pageSize", strconv.Itoa(pageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/everything?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("User-Agent", "Okto/0.1 news fetcher")
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求 NewsAPI 失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		var apiErr newsAPIResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("NewsAPI 返回 HTTP %d: %s", resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("NewsAPI 返回 HTTP %d", resp.StatusCode)
	}

	var data newsAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("解析 NewsAPI 响应失败: %w", err)
	}
	if data.Status != "ok" {
		return nil, fmt.Errorf("%w: %s %s", ErrAPIStatus, data.Code, data.Message)
	}

	articles := make([]FetchedArticle, 0, len(data.Articles))
	for _, a := range data.Articles {
		articles = append(articles, a.normalize())
	}
	return articles, nil
}

// normalize 把 NewsAPI 条目转换为 FetchedArticle。
func (a newsAPIArticle) normalize() FetchedArticle {
	source := deref(a.Source.Name)
	if source == "" {
		source = "Unknown"
	}
	return FetchedArticle{
		Source:      source,
		Title:       deref(a.Title),
		Description: deref(a.Description),
		URL:         a.URL,
		ImageURL:    optional(a.URLToImage),
		PublishedAt: a.PublishedAt,
		Category:    CategoryFinance,
		Author:      optional(a.Author),
		Content:     optional(a.Content),
	}
}

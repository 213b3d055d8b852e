package news

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// stubFetcher 记录调用次数并返回固定结果。
type stubFetcher struct {
	calls    atomic.Int32
	articles []FetchedArticle
	err      error
	delay    time.Duration

	mu        sync.Mutex
	lastQuery string
	lastPage  int
	lastSize  int
}

func (f *stubFetcher) Fetch(ctx context.Context, query string, page, pageSize int) ([]FetchedArticle, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.lastQuery, f.lastPage, f.lastSize = query, page, pageSize
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.articles, f.err
}

func fetched(url, title string) FetchedArticle {
	return FetchedArticle{
		Source:      "Reuters",
		Title:       title,
		URL:         url,
		PublishedAt: "2026-03-02T10:00:00Z",
		Category:    CategoryFinance,
	}
}

func TestEnsureFreshFetchesWhenCacheEmpty(t *testing.T) {
	store, _ := newTestStore(t)
	fetcher := &stubFetcher{articles: []FetchedArticle{fetched("https://a.dk/1", "Rates")}}
	m := NewCacheManager(store, fetcher, CacheOptions{})

	if err := m.EnsureFresh(context.Background(), false); err != nil {
		t.Fatalf("EnsureFresh 失败: %v", err)
	}
	if fetcher.calls.Load() != 1 {
		t.Fatalf("空缓存应触发抓取，调用 %d 次", fetcher.calls.Load())
	}
	if fetcher.lastQuery != "finance economy stock market" || fetcher.lastPage != 1 || fetcher.lastSize != 30 {
		t.Errorf("抓取参数不匹配: %q page=%d size=%d", fetcher.lastQuery, fetcher.lastPage, fetcher.lastSize)
	}
	if n, _ := store.Count(context.Background()); n != 1 {
		t.Fatalf("期望缓存 1 篇，得到 %d", n)
	}
}

func TestEnsureFreshSkipsWhenFresh(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()
	fetcher := &stubFetcher{articles: []FetchedArticle{fetched("https://a.dk/1", "Rates")}}
	m := NewCacheManager(store, fetcher, CacheOptions{})

	if _, err := m.Ingest(ctx, []FetchedArticle{fetched("https://a.dk/0", "Old")}); err != nil {
		t.Fatalf("Ingest 失败: %v", err)
	}
	clock.Advance(5*time.Hour + 59*time.Minute)

	if err := m.EnsureFresh(ctx, false); err != nil {
		t.Fatalf("EnsureFresh 失败: %v", err)
	}
	if fetcher.calls.Load() != 0 {
		t.Fatalf("缓存新鲜时不应抓取，调用 %d 次", fetcher.calls.Load())
	}
}

func TestEnsureFreshFetchesWhenStale(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()
	fetcher := &stubFetcher{articles: []FetchedArticle{fetched("https://a.dk/1", "Rates")}}
	m := NewCacheManager(store, fetcher, CacheOptions{})

	m.Ingest(ctx, []FetchedArticle{fetched("https://a.dk/0", "Old")})
	clock.Advance(6 * time.Hour)

	if err := m.EnsureFresh(ctx, false); err != nil {
		t.Fatalf("EnsureFresh 失败: %v", err)
	}
	if fetcher.calls.Load() != 1 {
		t.Fatalf("缓存过期应抓取，调用 %d 次", fetcher.calls.Load())
	}
}

func TestEnsureFreshForcedBypassesFreshCache(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	fetcher := &stubFetcher{articles: []FetchedArticle{fetched("https://a.dk/1", "Rates")}}
	m := NewCacheManager(store, fetcher, CacheOptions{})

	m.Ingest(ctx, []FetchedArticle{fetched("https://a.dk/0", "Just cached")})

	if err := m.EnsureFresh(ctx, true); err != nil {
		t.Fatalf("EnsureFresh 失败: %v", err)
	}
	if fetcher.calls.Load() != 1 {
		t.Fatalf("强制刷新必须抓取，调用 %d 次", fetcher.calls.Load())
	}
}

func TestEnsureFreshReportsFetchError(t *testing.T) {
	store, _ := newTestStore(t)
	boom := errors.New("upstream down")
	fetcher := &stubFetcher{
		articles: []FetchedArticle{fetched("https://a.dk/partial", "Partial")},
		err:      boom,
	}
	m := NewCacheManager(store, fetcher, CacheOptions{})

	err := m.EnsureFresh(context.Background(), true)
	if !errors.Is(err, boom) {
		t.Fatalf("期望返回抓取错误，得到 %v", err)
	}
	// 部分成功的结果仍然写入
	if n, _ := store.Count(context.Background()); n != 1 {
		t.Fatalf("部分结果应被缓存，得到 %d", n)
	}
}

func TestIngestDedupIsIdempotent(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()
	m := NewCacheManager(store, &stubFetcher{}, CacheOptions{})
	first := clock.Now()

	n, err := m.Ingest(ctx, []FetchedArticle{fetched("https://a.dk/1", "First")})
	if err != nil || n != 1 {
		t.Fatalf("第一次 Ingest: n=%d err=%v", n, err)
	}

	clock.Advance(2 * time.Hour)
	n, err = m.Ingest(ctx, []FetchedArticle{fetched("https://a.dk/1", "Second")})
	if err != nil || n != 0 {
		t.Fatalf("第二次 Ingest: n=%d err=%v", n, err)
	}

	if count, _ := store.Count(ctx); count != 1 {
		t.Fatalf("期望只有 1 份，得到 %d", count)
	}
	got, _ := store.FindByURL(ctx, "https://a.dk/1")
	if !got.CachedAt.Equal(first) {
		t.Errorf("cached_at 应为首次写入时间 %v，得到 %v", first, got.CachedAt)
	}
	if got.Title != "First" {
		t.Errorf("先写入者胜出，得到 %s", got.Title)
	}
}

func TestIngestDuplicatesWithinBatch(t *testing.T) {
	store, _ := newTestStore(t)
	m := NewCacheManager(store, &stubFetcher{}, CacheOptions{})

	n, err := m.Ingest(context.Background(), []FetchedArticle{
		fetched("https://a.dk/1", "First"),
		fetched("https://a.dk/1", "Again"),
	})
	if err != nil {
		t.Fatalf("Ingest 失败: %v", err)
	}
	if n != 1 {
		t.Fatalf("批次内重复应只写入 1 篇，得到 %d", n)
	}
}

func TestIngestSkipsMalformedAndContinues(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()
	m := NewCacheManager(store, &stubFetcher{}, CacheOptions{})

	bad := fetched("https://a.dk/bad-time", "Bad time")
	bad.PublishedAt = "yesterday"
	noURL := fetched("   ", "No url")

	n, err := m.Ingest(ctx, []FetchedArticle{noURL, bad, fetched("https://a.dk/ok", "Ok")})
	if err != nil {
		t.Fatalf("Ingest 失败: %v", err)
	}
	if n != 2 {
		t.Fatalf("期望写入 2 篇，得到 %d", n)
	}

	got, _ := store.FindByURL(ctx, "https://a.dk/bad-time")
	if got == nil {
		t.Fatal("时间无效的文章应被写入")
	}
	if !got.PublishedAt.Equal(clock.Now()) {
		t.Errorf("无效时间应回退为当前时间，得到 %v", got.PublishedAt)
	}
	if got.Category != CategoryFinance {
		t.Errorf("分类应为 finance，得到 %s", got.Category)
	}
}

func TestEnsureFreshCollapsesConcurrentRequests(t *testing.T) {
	for _, force := range []bool{false, true} {
		t.Run(fmt.Sprintf("force=%v", force), func(t *testing.T) {
			store, _ := newTestStore(t)
			fetcher := &stubFetcher{
				articles: []FetchedArticle{fetched("https://a.dk/1", "A"), fetched("https://a.dk/2", "B")},
				delay:    100 * time.Millisecond,
			}
			m := NewCacheManager(store, fetcher, CacheOptions{})

			start := make(chan struct{})
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					if err := m.EnsureFresh(context.Background(), force); err != nil {
						t.Errorf("EnsureFresh 失败: %v", err)
					}
				}()
			}
			close(start)
			wg.Wait()

			if calls := fetcher.calls.Load(); calls != 1 {
				t.Fatalf("并发刷新应合并为 1 次抓取，得到 %d 次", calls)
			}
			if n, _ := store.Count(context.Background()); n != 2 {
				t.Fatalf("并发刷新后应只有 2 篇，得到 %d", n)
			}
		})
	}
}

func TestEvictRemovesArticlesPastRetention(t *testing.T) {
	store, clock := newTestStore(t)
	ctx := context.Background()
	m := NewCacheManager(store, &stubFetcher{}, CacheOptions{Retention: 48 * time.Hour})

	m.Ingest(ctx, []FetchedArticle{fetched("https://a.dk/old", "Old")})
	clock.Advance(72 * time.Hour)
	m.Ingest(ctx, []FetchedArticle{fetched("https://a.dk/new", "New")})

	n, err := m.Evict(ctx)
	if err != nil {
		t.Fatalf("Evict 失败: %v", err)
	}
	if n != 1 {
		t.Fatalf("期望清理 1 篇，得到 %d", n)
	}
	if got, _ := store.FindByURL(ctx, "https://a.dk/new"); got == nil {
		t.Fatal("新文章不应被清理")
	}
}

func TestRunEvictionStopsOnCancel(t *testing.T) {
	store, _ := newTestStore(t)
	m := NewCacheManager(store, &stubFetcher{}, CacheOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.RunEviction(ctx, time.Millisecond)
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunEviction 未在取消后退出")
	}
}

func TestParsePublishedAt(t *testing.T) {
	fallback := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{"utc z suffix", "2026-03-01T08:30:00Z", time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)},
		{"fractional seconds", "2026-03-01T08:30:00.5Z", time.Date(2026, 3, 1, 8, 30, 0, 500000000, time.UTC)},
		{"offset", "2026-03-01T10:30:00+02:00", time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)},
		{"no zone", "2026-03-01T08:30:00", time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)},
		{"empty", "", fallback},
		{"garbage", "not a date", fallback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parsePublishedAt(tt.raw, fallback)
			if !got.Equal(tt.want) {
				t.Errorf("parsePublishedAt(%q) = %v, want %v", tt.raw, got, tt.want)
			}
			if got.Location() != time.UTC {
				t.Errorf("结果应为 UTC: %v", got.Location())
			}
		})
	}
}

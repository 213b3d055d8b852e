package news

import (
	"context"
	"errors"
)

// MultiFetcher 按顺序合并多个抓取器的结果。
// 单个源失败不影响其他源，错误合并后一并返回。
type MultiFetcher []Fetcher

// Fetch 实现 Fetcher 接口。
func (m MultiFetcher) Fetch(ctx context.Context, query string, page, pageSize int) ([]FetchedArticle, error) {
	var (
		all  []FetchedArticle
		errs []error
	)
	for _, f := range m {
		items, err := f.Fetch(ctx, query, page, pageSize)
		all = append(all, items...)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return all, errors.Join(errs...)
}

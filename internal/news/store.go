package news

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iabetor/okto/internal/database"
)

const articleColumns = `id, source, title, description, url, image_url, published_at, category, author, content, cached_at`

// Store 是缓存文章的 SQLite 存储。
type Store struct {
	db  *database.DB
	now func() time.Time
}

// NewStore 创建文章存储。
func NewStore(db *database.DB) *Store {
	return &Store{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// RecentQuery 描述一次按缓存时间过滤的读取。
type RecentQuery struct {
	Category string
	MaxAge   time.Duration
	Limit    int
}

// FindByURL 按 URL 精确查找文章，不存在时返回 nil, nil。
func (s *Store) FindByURL(ctx context.Context, url string) (*Article, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM cached_news WHERE url = ?`, url)
	a, err := scanArticle(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("查询文章失败: %w", err)
	}
	return a, nil
}

// LatestCachedAt 返回最近一次写入的缓存时间，缓存为空时 ok 为 false。
func (s *Store) LatestCachedAt(ctx context.Context) (t time.Time, ok bool, err error) {
	err = s.db.QueryRowContext(ctx, `SELECT cached_at FROM cached_news ORDER BY cached_at DESC LIMIT 1`).Scan(&t)
	if err != nil {
		if err == sql.ErrNoRows {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("查询缓存时间失败: %w", err)
	}
	return t, true, nil
}

// InsertNew 在同一个事务中写入一批文章。
// 已存在相同 URL 的文章被跳过，不做合并或更新。返回实际新增的数量。
func (s *Store) InsertNew(ctx context.Context, articles []Article) (int, error) {
	inserted := 0
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		lookup, err := tx.PrepareContext(ctx, `SELECT 1 FROM cached_news WHERE url = ?`)
		if err != nil {
			return err
		}
		defer lookup.Close()

		insert, err := tx.PrepareContext(ctx, `
			INSERT INTO cached_news (source, title, description, url, image_url, published_at, category, author, content, cached_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(url) DO NOTHING`)
		if err != nil {
			return err
		}
		defer insert.Close()

		for _, a := range articles {
			var exists int
			err := lookup.QueryRowContext(ctx, a.URL).Scan(&exists)
			if err == nil {
				continue
			}
			if err != sql.ErrNoRows {
				return fmt.Errorf("查询文章 %s 失败: %w", a.URL, err)
			}

			res, err := insert.ExecContext(ctx,
				a.Source, a.Title, a.Description, a.URL, a.ImageURL,
				a.PublishedAt.UTC(), a.Category, a.Author, a.Content, a.CachedAt.UTC(),
			)
			if err != nil {
				return fmt.Errorf("写入文章 %s 失败: %w", a.URL, err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// ReadRecent 读取指定分类中缓存时间在 MaxAge 以内的文章，按发布时间倒序。
func (s *Store) ReadRecent(ctx context.Context, q RecentQuery) ([]Article, error) {
	if q.Category == "" {
		q.Category = CategoryFinance
	}
	if q.MaxAge <= 0 {
		q.MaxAge = 24 * time.Hour
	}
	if q.Limit <= 0 {
		q.Limit = 20
	}
	cutoff := s.now().UTC().Add(-q.MaxAge)

	rows, err := s.db.QueryContext(ctx, `SELECT `+articleColumns+` FROM cached_news
		WHERE category = ? AND cached_at >= ?
		ORDER BY published_at DESC
		LIMIT ?`, q.Category, cutoff, q.Limit)
	if err != nil {
		return nil, fmt.Errorf("查询缓存文章失败: %w", err)
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("读取文章失败: %w", err)
		}
		articles = append(articles, *a)
	}
	return articles, rows.Err()
}

// Sources 返回曾经缓存过的所有来源名称（去重、非空、升序）。
func (s *Store) Sources(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT source FROM cached_news WHERE source != '' ORDER BY source`)
	if err != nil {
		return nil, fmt.Errorf("查询来源失败: %w", err)
	}
	defer rows.Close()

	sources := make([]string, 0)
	for rows.Next() {
		var src string
		if err := rows.Scan(&src); err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// DeleteCachedBefore 删除缓存时间早于 cutoff 的文章，返回删除数量。
func (s *Store) DeleteCachedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cached_news WHERE cached_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("清理过期文章失败: %w", err)
	}
	return res.RowsAffected()
}

// Count 返回缓存文章总数。
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cached_news`).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanArticle(row rowScanner) (*Article, error) {
	var (
		a                      Article
		image, author, content sql.NullString
	)
	err := row.Scan(&a.ID, &a.Source, &a.Title, &a.Description, &a.URL, &image,
		&a.PublishedAt, &a.Category, &author, &content, &a.CachedAt)
	if err != nil {
		return nil, err
	}
	a.ImageURL = nullString(image)
	a.Author = nullString(author)
	a.Content = nullString(content)
	return &a, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

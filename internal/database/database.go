package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/iabetor/okto/internal/logger"
	_ "modernc.org/sqlite"
)

// DB 是统一的 SQLite 数据库连接。
// 用户、画像和新闻缓存共享同一个数据库文件。
type DB struct {
	*sql.DB
	path string
}

// Open 打开或创建数据库。
// dbPath 为空时使用 ~/.okto/okto.db。
func Open(dbPath string) (*DB, error) {
	if dbPath == "" {
		home, _ := os.UserHomeDir()
		if home != "" {
			dbPath = filepath.Join(home, ".okto", "okto.db")
		} else {
			dbPath = "./okto.db"
		}
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("创建数据库目录失败: %w", err)
	}

	// _time_format=sqlite 让时间以可按字典序比较的格式写入
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("设置 WAL 模式失败: %w", err)
	}

	logger.Infof("[database] 数据库已打开: %s", dbPath)
	return &DB{DB: db, path: dbPath}, nil
}

// Path 返回数据库文件路径。
func (db *DB) Path() string {
	return db.path
}

// Migrate 运行数据库迁移。
func (db *DB) Migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT NOT NULL UNIQUE,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			hashed_password TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS profiles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
			age INTEGER,
			region TEXT,
			employment TEXT,
			annual_gross_income TEXT,
			housing_type TEXT,
			housing_value TEXT,
			loan_types TEXT,
			num_loans INTEGER,
			total_debt TEXT,
			interest_rate_type TEXT,
			vehicle_type TEXT,
			savings_types TEXT,
			insurance_types TEXT,
			breaking_news BOOLEAN NOT NULL DEFAULT 1,
			daily_digest BOOLEAN NOT NULL DEFAULT 1,
			ai_insights BOOLEAN NOT NULL DEFAULT 1,
			updated_at DATETIME NOT NULL
		)`,
		// url 是去重键，整个生命周期内唯一
		`CREATE TABLE IF NOT EXISTS cached_news (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			url TEXT NOT NULL UNIQUE,
			image_url TEXT,
			published_at DATETIME NOT NULL,
			category TEXT NOT NULL,
			author TEXT,
			content TEXT,
			cached_at DATETIME NOT NULL
		)`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("数据库迁移失败: %w", err)
		}
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_cached_news_source ON cached_news(source)`,
		`CREATE INDEX IF NOT EXISTS idx_cached_news_cached_at ON cached_news(cached_at)`,
		`CREATE INDEX IF NOT EXISTS idx_cached_news_category_published ON cached_news(category, published_at DESC)`,
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			logger.Warnf("[database] 创建索引失败: %v", err)
		}
	}

	logger.Info("[database] 数据库迁移完成")
	return nil
}

// InTx 在一个事务中执行 fn，fn 返回错误时整体回滚。
func (db *DB) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}
	return nil
}

// Close 关闭数据库连接。
func (db *DB) Close() error {
	if db.DB != nil {
		return db.DB.Close()
	}
	return nil
}

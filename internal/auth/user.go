// Package auth 负责用户注册、登录和访问令牌。
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iabetor/okto/internal/database"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// User 已注册用户。
type User struct {
	ID             int64     `json:"id"`
	Email          string    `json:"email"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	HashedPassword string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

// UserStore 用户存储（SQLite）。
type UserStore struct {
	db *database.DB
}

// NewUserStore 创建用户存储。
func NewUserStore(db *database.DB) *UserStore {
	return &UserStore{db: db}
}

// execer 是 *database.DB 和 *sql.Tx 共有的写入方法。
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Create 写入新用户并回填 ID。邮箱重复时返回 ErrEmailTaken。
func (s *UserStore) Create(ctx context.Context, u *User) error {
	return s.create(ctx, s.db, u)
}

// CreateTx 与 Create 相同，但在调用方的事务中执行。
func (s *UserStore) CreateTx(ctx context.Context, tx *sql.Tx, u *User) error {
	return s.create(ctx, tx, u)
}

func (s *UserStore) create(ctx context.Context, ex execer, u *User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	res, err := ex.ExecContext(ctx,
		`INSERT INTO users (email, first_name, last_name, hashed_password, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.Email, u.FirstName, u.LastName, u.HashedPassword, u.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("创建用户失败: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("获取用户 ID 失败: %w", err)
	}
	u.ID = id
	return nil
}

// GetByEmail 按邮箱查找用户，不存在时返回 nil, nil。
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.get(ctx, `WHERE email = ?`, email)
}

// GetByID 按 ID 查找用户，不存在时返回 nil, nil。
func (s *UserStore) GetByID(ctx context.Context, id int64) (*User, error) {
	return s.get(ctx, `WHERE id = ?`, id)
}

// List 按注册顺序返回全部用户。
func (s *UserStore) List(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, email, first_name, last_name, hashed_password, created_at FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("查询用户列表失败: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.HashedPassword, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("读取用户失败: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *UserStore) get(ctx context.Context, where string, arg interface{}) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, first_name, last_name, hashed_password, created_at FROM users `+where, arg,
	).Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.HashedPassword, &u.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iabetor/okto/internal/logger"
)

var (
	ErrEmailTaken         = errors.New("邮箱已注册")
	ErrInvalidCredentials = errors.New("邮箱或密码错误")
	ErrInvalidToken       = errors.New("无效的令牌")
	ErrInvalidInput       = errors.New("邮箱和密码不能为空")
)

// ProfileCreator 在注册事务中为新用户创建空画像。
type ProfileCreator interface {
	CreateTx(ctx context.Context, tx *sql.Tx, userID int64) error
}

// SignupRequest 注册参数。
type SignupRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// Session 是注册或登录成功后的结果。
type Session struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	UserID      int64  `json:"user_id"`
}

// Service 组合用户存储、画像创建和令牌签发。
type Service struct {
	users    *UserStore
	profiles ProfileCreator
	tokens   *TokenIssuer
}

// NewService 创建认证服务。
func NewService(users *UserStore, profiles ProfileCreator, tokens *TokenIssuer) *Service {
	return &Service{users: users, profiles: profiles, tokens: tokens}
}

// Signup 注册新用户，创建空画像并返回访问令牌。
func (s *Service) Signup(ctx context.Context, req SignupRequest) (*Session, error) {
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		return nil, ErrInvalidInput
	}

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	u := &User{
		Email:          email,
		FirstName:      strings.TrimSpace(req.FirstName),
		LastName:       strings.TrimSpace(req.LastName),
		HashedPassword: hash,
	}
	// 用户和画像同时写入，画像失败时不留下孤立用户
	err = s.users.db.InTx(ctx, func(tx *sql.Tx) error {
		if err := s.users.CreateTx(ctx, tx, u); err != nil {
			return err
		}
		return s.profiles.CreateTx(ctx, tx, u.ID)
	})
	if err != nil {
		return nil, err
	}

	logger.Infof("[auth] 新用户注册: id=%d", u.ID)
	return s.session(u)
}

// Login 校验邮箱和密码并返回访问令牌。
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, err
	}
	if u == nil || !CheckPassword(u.HashedPassword, password) {
		return nil, ErrInvalidCredentials
	}
	return s.session(u)
}

// Authenticate 解析令牌并返回对应用户。
// 令牌有效但用户已不存在时同样返回 ErrInvalidToken。
func (s *Service) Authenticate(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	email, err := s.tokens.Parse(token)
	if err != nil {
		logger.Debugf("[auth] 令牌校验失败: %v", err)
		return nil, ErrInvalidToken
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrInvalidToken
	}
	return u, nil
}

// GetUser 按 ID 读取用户。
func (s *Service) GetUser(ctx context.Context, id int64) (*User, error) {
	return s.users.GetByID(ctx, id)
}

// ListUsers 返回全部用户。
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.users.List(ctx)
}

func (s *Service) session(u *User) (*Session, error) {
	token, err := s.tokens.Issue(u.Email)
	if err != nil {
		return nil, err
	}
	return &Session{AccessToken: token, TokenType: "bearer", UserID: u.ID}, nil
}

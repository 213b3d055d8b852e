package auth

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/iabetor/okto/internal/database"
	"github.com/iabetor/okto/internal/profile"
)

func newTestService(t *testing.T) (*Service, *profile.Store) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "okto.db"))
	if err != nil {
		t.Fatalf("打开数据库失败: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("迁移失败: %v", err)
	}
	profiles := profile.NewStore(db)
	return NewService(NewUserStore(db), profiles, NewTokenIssuer("test-secret", time.Hour)), profiles
}

func TestSignupCreatesUserAndProfile(t *testing.T) {
	svc, profiles := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Signup(ctx, SignupRequest{FirstName: "Mette", LastName: "Jensen", Email: "mette@example.dk", Password: "hemmelig"})
	if err != nil {
		t.Fatalf("Signup 失败: %v", err)
	}
	if sess.AccessToken == "" || sess.TokenType != "bearer" || sess.UserID == 0 {
		t.Fatalf("会话字段不完整: %+v", sess)
	}

	p, err := profiles.Get(ctx, sess.UserID)
	if err != nil || p == nil {
		t.Fatalf("注册后应创建空画像: p=%v err=%v", p, err)
	}

	u, err := svc.Authenticate(ctx, sess.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate 失败: %v", err)
	}
	if u.ID != sess.UserID || u.FirstName != "Mette" {
		t.Errorf("用户不匹配: %+v", u)
	}
	if u.HashedPassword == "hemmelig" {
		t.Error("密码不应明文存储")
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	req := SignupRequest{Email: "a@example.dk", Password: "pw"}

	if _, err := svc.Signup(ctx, req); err != nil {
		t.Fatalf("第一次 Signup 失败: %v", err)
	}
	if _, err := svc.Signup(ctx, req); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("期望 ErrEmailTaken，得到 %v", err)
	}
}

// failingProfiles 模拟画像写入失败。
type failingProfiles struct{}

func (failingProfiles) CreateTx(context.Context, *sql.Tx, int64) error {
	return errors.New("disk full")
}

func TestSignupRollsBackUserWhenProfileFails(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "okto.db"))
	if err != nil {
		t.Fatalf("打开数据库失败: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("迁移失败: %v", err)
	}
	users := NewUserStore(db)
	svc := NewService(users, failingProfiles{}, NewTokenIssuer("test-secret", time.Hour))
	ctx := context.Background()

	if _, err := svc.Signup(ctx, SignupRequest{Email: "a@example.dk", Password: "pw"}); err == nil {
		t.Fatal("画像创建失败时 Signup 应返回错误")
	}
	u, err := users.GetByEmail(ctx, "a@example.dk")
	if err != nil {
		t.Fatalf("GetByEmail 失败: %v", err)
	}
	if u != nil {
		t.Fatalf("画像失败后不应留下用户: %+v", u)
	}

	// 回滚后同一邮箱可以重新注册
	ok := NewService(users, profile.NewStore(db), NewTokenIssuer("test-secret", time.Hour))
	if _, err := ok.Signup(ctx, SignupRequest{Email: "a@example.dk", Password: "pw"}); err != nil {
		t.Fatalf("重新注册失败: %v", err)
	}
}

func TestUserStoreCreateDetectsDuplicateEmail(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "okto.db"))
	if err != nil {
		t.Fatalf("打开数据库失败: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("迁移失败: %v", err)
	}
	users := NewUserStore(db)
	ctx := context.Background()

	if err := users.Create(ctx, &User{Email: "dup@example.dk", HashedPassword: "x"}); err != nil {
		t.Fatalf("第一次 Create 失败: %v", err)
	}
	err = users.Create(ctx, &User{Email: "dup@example.dk", HashedPassword: "y"})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("期望 ErrEmailTaken，得到 %v", err)
	}
	if isUniqueViolation(errors.New("UNIQUE constraint failed")) {
		t.Error("只应按 SQLite 错误码识别唯一约束冲突")
	}
}

func TestSignupRequiresEmailAndPassword(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Signup(context.Background(), SignupRequest{Email: " "}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("期望 ErrInvalidInput，得到 %v", err)
	}
}

func TestLogin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	svc.Signup(ctx, SignupRequest{Email: "b@example.dk", Password: "korrekt"})

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"ok", "b@example.dk", "korrekt", nil},
		{"wrong password", "b@example.dk", "forkert", ErrInvalidCredentials},
		{"unknown email", "nobody@example.dk", "korrekt", ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess, err := svc.Login(ctx, tt.email, tt.password)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("期望 %v，得到 %v", tt.wantErr, err)
			}
			if tt.wantErr == nil && sess.AccessToken == "" {
				t.Fatal("登录成功应返回令牌")
			}
		})
	}
}

func TestAuthenticateRejectsBadTokens(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	svc.Signup(ctx, SignupRequest{Email: "c@example.dk", Password: "pw"})

	other := NewTokenIssuer("other-secret", time.Hour)
	forged, _ := other.Issue("c@example.dk")
	ghost, _ := svc.tokens.Issue("ghost@example.dk")

	for name, token := range map[string]string{
		"empty":        "",
		"garbage":      "not.a.jwt",
		"wrong secret": forged,
		"unknown user": ghost,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.Authenticate(ctx, token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("期望 ErrInvalidToken，得到 %v", err)
			}
		})
	}
}

func TestTokenExpiry(t *testing.T) {
	ti := NewTokenIssuer("s", time.Minute)
	issued := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	ti.now = func() time.Time { return issued }

	token, err := ti.Issue("d@example.dk")
	if err != nil {
		t.Fatalf("Issue 失败: %v", err)
	}
	if email, err := ti.Parse(token); err != nil || email != "d@example.dk" {
		t.Fatalf("Parse 失败: email=%s err=%v", email, err)
	}

	ti.now = func() time.Time { return issued.Add(2 * time.Minute) }
	if _, err := ti.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("过期令牌应返回 ErrInvalidToken，得到 %v", err)
	}
}

func TestCheckPassword(t *testing.T) {
	hash, err := HashPassword("pw")
	if err != nil {
		t.Fatalf("HashPassword 失败: %v", err)
	}
	if !CheckPassword(hash, "pw") {
		t.Error("正确密码应通过校验")
	}
	if CheckPassword(hash, "PW") {
		t.Error("错误密码不应通过校验")
	}
}

func TestListUsers(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	for _, email := range []string{"first@example.dk", "second@example.dk"} {
		if _, err := svc.Signup(ctx, SignupRequest{Email: email, Password: "pw"}); err != nil {
			t.Fatalf("Signup 失败: %v", err)
		}
	}

	users, err := svc.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers 失败: %v", err)
	}
	if len(users) != 2 || users[0].Email != "first@example.dk" || users[1].Email != "second@example.dk" {
		t.Fatalf("用户列表不匹配: %+v", users)
	}
}

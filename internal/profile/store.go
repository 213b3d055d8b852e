package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iabetor/okto/internal/database"
	"github.com/iabetor/okto/internal/logger"
)

// ErrNotFound 表示用户没有画像。
var ErrNotFound = errors.New("画像不存在")

const profileColumns = `id, user_id, age, region, employment, annual_gross_income, housing_type, housing_value,
	loan_types, num_loans, total_debt, interest_rate_type, vehicle_type, savings_types, insurance_types,
	breaking_news, daily_digest, ai_insights, updated_at`

// Store 画像存储（SQLite）。
type Store struct {
	db *database.DB
}

// NewStore 创建画像存储。
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Create 为用户创建一个空画像，通知类偏好默认开启。已存在时不做修改。
func (s *Store) Create(ctx context.Context, userID int64) error {
	return s.create(ctx, s.db, userID)
}

// CreateTx 与 Create 相同，但在调用方的事务中执行。
func (s *Store) CreateTx(ctx context.Context, tx *sql.Tx, userID int64) error {
	return s.create(ctx, tx, userID)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (s *Store) create(ctx context.Context, ex execer, userID int64) error {
	_, err := ex.ExecContext(ctx, `INSERT INTO profiles (user_id, updated_at) VALUES (?, ?)
		ON CONFLICT(user_id) DO NOTHING`, userID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("创建画像失败: %w", err)
	}
	return nil
}

// Get 按用户 ID 读取画像，不存在时返回 nil, nil。
func (s *Store) Get(ctx context.Context, userID int64) (*Profile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE user_id = ?`, userID)

	var (
		p                             Profile
		loanTypes, savings, insurance sql.NullString
	)
	err := row.Scan(
		&p.ID, &p.UserID, &p.Age, &p.Region, &p.Employment, &p.AnnualGrossIncome, &p.HousingType, &p.HousingValue,
		&loanTypes, &p.NumLoans, &p.TotalDebt, &p.InterestRateType, &p.VehicleType, &savings, &insurance,
		&p.BreakingNews, &p.DailyDigest, &p.AIInsights, &p.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("查询画像失败: %w", err)
	}

	p.LoanTypes = decodeList(loanTypes)
	p.SavingsTypes = decodeList(savings)
	p.InsuranceTypes = decodeList(insurance)
	return &p, nil
}

// Update 部分更新画像，只写入 u 中出现的字段。
func (s *Store) Update(ctx context.Context, userID int64, u Update) (*Profile, error) {
	p, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotFound
	}

	u.Apply(p)
	p.UpdatedAt = time.Now().UTC()

	_, err = s.db.ExecContext(ctx, `UPDATE profiles SET
		age = ?, region = ?, employment = ?, annual_gross_income = ?, housing_type = ?, housing_value = ?,
		loan_types = ?, num_loans = ?, total_debt = ?, interest_rate_type = ?, vehicle_type = ?,
		savings_types = ?, insurance_types = ?, breaking_news = ?, daily_digest = ?, ai_insights = ?,
		updated_at = ?
		WHERE user_id = ?`,
		p.Age, p.Region, p.Employment, p.AnnualGrossIncome, p.HousingType, p.HousingValue,
		encodeList(p.LoanTypes), p.NumLoans, p.TotalDebt, p.InterestRateType, p.VehicleType,
		encodeList(p.SavingsTypes), encodeList(p.InsuranceTypes), p.BreakingNews, p.DailyDigest, p.AIInsights,
		p.UpdatedAt, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("更新画像失败: %w", err)
	}

	logger.Debugf("[profile] 用户 %d 的画像已更新", userID)
	return p, nil
}

// encodeList 把列表编码为 JSON 文本，nil 列表存为 NULL。
func encodeList(list []string) interface{} {
	if list == nil {
		return nil
	}
	data, _ := json.Marshal(list)
	return string(data)
}

func decodeList(ns sql.NullString) []string {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	var list []string
	if err := json.Unmarshal([]byte(ns.String), &list); err != nil {
		logger.Warnf("[profile] 无法解析列表字段 %q: %v", ns.String, err)
		return nil
	}
	return list
}

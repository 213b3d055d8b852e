// Package profile 保存用户自填的财务画像，供新闻过滤和洞察使用。
package profile

import (
	"time"

	"github.com/shopspring/decimal"
)

// Profile 用户财务画像。所有可选字段用指针表示“未填写”。
type Profile struct {
	ID                int64            `json:"id"`
	UserID            int64            `json:"user_id"`
	Age               *int             `json:"age"`
	Region            *string          `json:"region"`
	Employment        *string          `json:"employment"`
	AnnualGrossIncome *decimal.Decimal `json:"annual_gross_income"`
	HousingType       *string          `json:"housing_type"`
	HousingValue      *decimal.Decimal `json:"housing_value"`
	LoanTypes         []string         `json:"loan_types"`
	NumLoans          *int             `json:"num_loans"`
	TotalDebt         *decimal.Decimal `json:"total_debt"`
	InterestRateType  *string          `json:"interest_rate_type"`
	VehicleType       *string          `json:"vehicle_type"`
	SavingsTypes      []string         `json:"savings_types"`
	InsuranceTypes    []string         `json:"insurance_types"`
	BreakingNews      bool             `json:"breaking_news"`
	DailyDigest       bool             `json:"daily_digest"`
	AIInsights        bool             `json:"ai_insights"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// Update 是部分更新请求，nil 字段保持原值。
type Update struct {
	Age               *int             `json:"age"`
	Region            *string          `json:"region"`
	Employment        *string          `json:"employment"`
	AnnualGrossIncome *decimal.Decimal `json:"annual_gross_income"`
	HousingType       *string          `json:"housing_type"`
	HousingValue      *decimal.Decimal `json:"housing_value"`
	LoanTypes         []string         `json:"loan_types"`
	NumLoans          *int             `json:"num_loans"`
	TotalDebt         *decimal.Decimal `json:"total_debt"`
	InterestRateType  *string          `json:"interest_rate_type"`
	VehicleType       *string          `json:"vehicle_type"`
	SavingsTypes      []string         `json:"savings_types"`
	InsuranceTypes    []string         `json:"insurance_types"`
	BreakingNews      *bool            `json:"breaking_news"`
	DailyDigest       *bool            `json:"daily_digest"`
	AIInsights        *bool            `json:"ai_insights"`
}

// Apply 把 u 中出现的字段写入 p。
func (u Update) Apply(p *Profile) {
	if u.Age != nil {
		p.Age = u.Age
	}
	if u.Region != nil {
		p.Region = u.Region
	}
	if u.Employment != nil {
		p.Employment = u.Employment
	}
	if u.AnnualGrossIncome != nil {
		p.AnnualGrossIncome = u.AnnualGrossIncome
	}
	if u.HousingType != nil {
		p.HousingType = u.HousingType
	}
	if u.HousingValue != nil {
		p.HousingValue = u.HousingValue
	}
	if u.LoanTypes != nil {
		p.LoanTypes = u.LoanTypes
	}
	if u.NumLoans != nil {
		p.NumLoans = u.NumLoans
	}
	if u.TotalDebt != nil {
		p.TotalDebt = u.TotalDebt
	}
	if u.InterestRateType != nil {
		p.InterestRateType = u.InterestRateType
	}
	if u.VehicleType != nil {
		p.VehicleType = u.VehicleType
	}
	if u.SavingsTypes != nil {
		p.SavingsTypes = u.SavingsTypes
	}
	if u.InsuranceTypes != nil {
		p.InsuranceTypes = u.InsuranceTypes
	}
	if u.BreakingNews != nil {
		p.BreakingNews = *u.BreakingNews
	}
	if u.DailyDigest != nil {
		p.DailyDigest = *u.DailyDigest
	}
	if u.AIInsights != nil {
		p.AIInsights = *u.AIInsights
	}
}

// NumLoansValue 返回贷款数量，未填写为 0。
func (p *Profile) NumLoansValue() int {
	if p == nil || p.NumLoans == nil {
		return 0
	}
	return *p.NumLoans
}

// HousingTypeValue 返回住房类型，未填写为空字符串。
func (p *Profile) HousingTypeValue() string {
	if p == nil || p.HousingType == nil {
		return ""
	}
	return *p.HousingType
}

// VehicleTypeValue 返回车辆类型，未填写为空字符串。
func (p *Profile) VehicleTypeValue() string {
	if p == nil || p.VehicleType == nil {
		return ""
	}
	return *p.VehicleType
}

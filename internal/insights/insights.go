// Package insights 根据用户画像生成固定模板的提示。
package insights

import "github.com/iabetor/okto/internal/profile"

// Insight 一条提示。
type Insight struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

// Generate 按画像生成提示列表，nil 画像返回空列表。
func Generate(p *profile.Profile) []Insight {
	out := make([]Insight, 0, 3)
	if p == nil {
		return out
	}
	if p.NumLoansValue() > 0 {
		out = append(out, Insight{
			Title:       "Loan Opportunity",
			Description: "Interest rates are dropping. Consider refinancing your loans for better terms.",
			Type:        "opportunity",
		})
	}
	if p.VehicleTypeValue() == "Elbil" {
		out = append(out, Insight{
			Title:       "EV Tax Benefits",
			Description: "New EV tax benefits are available. You may be eligible for additional deductions.",
			Type:        "benefit",
		})
	}
	if p.HousingTypeValue() == "Andelsbolig" {
		out = append(out, Insight{
			Title:       "Housing Market Update",
			Description: "Co-housing properties in your region have increased in value by 4.2% this quarter.",
			Type:        "market",
		})
	}
	return out
}

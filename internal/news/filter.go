package news

import "strings"

// MaxFilteredArticles 是过滤结果的上限。
const MaxFilteredArticles = 20

// Criteria 是从用户画像中提取的过滤条件。
type Criteria struct {
	NumLoans     int
	HousingType  string
	SavingsTypes []string
	VehicleType  string
}

// relevanceRule 是一条关键词规则，applies 为 nil 表示无条件生效。
type relevanceRule struct {
	name     string
	applies  func(c Criteria) bool
	keywords []string
}

// 规则顺序只表示优先级，不影响是否入选。
var relevanceRules = []relevanceRule{
	{
		name:     "loans",
		applies:  func(c Criteria) bool { return c.NumLoans > 0 },
		keywords: []string{"loan", "mortgage", "interest", "rate"},
	},
	{
		name:     "housing",
		applies:  func(c Criteria) bool { return c.HousingType != "" },
		keywords: []string{"housing", "real estate", "property", "apartment", "home"},
	},
	{
		name:     "savings",
		applies:  func(c Criteria) bool { return len(c.SavingsTypes) > 0 },
		keywords: []string{"investment", "stock", "fund", "savings", "portfolio"},
	},
	{
		name:     "economy",
		keywords: []string{"tax", "economic", "economy", "government"},
	},
	{
		name:     "electric_vehicle",
		applies:  func(c Criteria) bool { return c.VehicleType == "Elbil" },
		keywords: []string{"electric", "ev", "vehicle", "car", "tax", "subsidy"},
	},
}

// Filter 返回与画像相关的文章，保持输入顺序，最多 MaxFilteredArticles 篇。
func Filter(articles []Article, c Criteria) []Article {
	filtered := make([]Article, 0, min(len(articles), MaxFilteredArticles))
	for _, a := range articles {
		if _, ok := MatchRule(a, c); !ok {
			continue
		}
		filtered = append(filtered, a)
		if len(filtered) == MaxFilteredArticles {
			break
		}
	}
	return filtered
}

// MatchRule 返回第一条命中的规则名。
// 匹配是普通子串包含，不考虑单词边界（"rate" 也会命中 "moderate"）。
func MatchRule(a Article, c Criteria) (string, bool) {
	text := searchableText(a)
	for _, r := range relevanceRules {
		if r.applies != nil && !r.applies(c) {
			continue
		}
		if containsAny(text, r.keywords) {
			return r.name, true
		}
	}
	return "", false
}

func searchableText(a Article) string {
	return strings.ToLower(a.Title) + " " +
		strings.ToLower(a.Description) + " " +
		strings.ToLower(deref(a.Content))
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

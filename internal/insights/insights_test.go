package insights

import (
	"testing"

	"github.com/iabetor/okto/internal/profile"
)

func ptr[T any](v T) *T { return &v }

func TestGenerate(t *testing.T) {
	tests := []struct {
		name string
		p    *profile.Profile
		want []string
	}{
		{"nil profile", nil, nil},
		{"empty profile", &profile.Profile{}, nil},
		{"loans", &profile.Profile{NumLoans: ptr(1)}, []string{"Loan Opportunity"}},
		{"zero loans", &profile.Profile{NumLoans: ptr(0)}, nil},
		{"ev is case sensitive", &profile.Profile{VehicleType: ptr("elbil")}, nil},
		{
			"all",
			&profile.Profile{NumLoans: ptr(2), VehicleType: ptr("Elbil"), HousingType: ptr("Andelsbolig")},
			[]string{"Loan Opportunity", "EV Tax Benefits", "Housing Market Update"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Generate(tt.p)
			if got == nil {
				t.Fatal("结果不应为 nil")
			}
			if len(got) != len(tt.want) {
				t.Fatalf("期望 %v，得到 %+v", tt.want, got)
			}
			for i, title := range tt.want {
				if got[i].Title != title {
					t.Errorf("第 %d 条期望 %s，得到 %s", i, title, got[i].Title)
				}
			}
		})
	}
}

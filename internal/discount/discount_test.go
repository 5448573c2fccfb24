package discount

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/utafrali/pos-register/internal/domain"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		discount *domain.Discount
		subtotal string
		want     string
	}{
		{
			name:     "nil discount",
			discount: nil,
			subtotal: "100.00",
			want:     "0.00",
		},
		{
			name:     "senior citizen overrides type and value",
			discount: &domain.Discount{Name: "Senior Citizen Discount", Type: "amount", Value: 5},
			subtotal: "100.00",
			want:     "20.00",
		},
		{
			name:     "senior matched case-insensitively",
			discount: &domain.Discount{Name: "SENIOR", Type: "percent", Value: "50"},
			subtotal: "12.345",
			want:     "2.47",
		},
		{
			name:     "percent rounds half up",
			discount: &domain.Discount{Name: "Happy hour", Type: "percent", Value: 10},
			subtotal: "92.49",
			want:     "9.25",
		},
		{
			name:     "amount",
			discount: &domain.Discount{Name: "Coupon", Type: "amount", Value: "3.999"},
			subtotal: "50.00",
			want:     "4.00",
		},
		{
			name:     "amount may exceed subtotal",
			discount: &domain.Discount{Name: "Comp", Type: "amount", Value: 80},
			subtotal: "50.00",
			want:     "80.00",
		},
		{
			name:     "malformed value",
			discount: &domain.Discount{Name: "Broken", Type: "percent", Value: "abc"},
			subtotal: "50.00",
			want:     "0.00",
		},
		{
			name:     "zero value",
			discount: &domain.Discount{Name: "Senior", Type: "amount", Value: 0},
			subtotal: "50.00",
			want:     "0.00",
		},
		{
			name:     "negative value",
			discount: &domain.Discount{Name: "Odd", Type: "amount", Value: -3},
			subtotal: "50.00",
			want:     "0.00",
		},
		{
			name:     "zero subtotal",
			discount: &domain.Discount{Name: "Coupon", Type: "amount", Value: 5},
			subtotal: "0",
			want:     "0.00",
		},
		{
			name:     "explicit category wins over name",
			discount: &domain.Discount{Name: "Seniority bonus", Type: "amount", Value: 5, Category: domain.DiscountCategoryStandard},
			subtotal: "100.00",
			want:     "5.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.discount, decimal.RequireFromString(tt.subtotal))
			assert.Equal(t, tt.want, got.StringFixed(2))
		})
	}
}

func TestClassify(t *testing.T) {
	d := &domain.Discount{Name: "senior citizen"}
	d.Classify()
	assert.Equal(t, domain.DiscountCategorySeniorCitizen, d.Category)

	d = &domain.Discount{Name: "Staff"}
	d.Classify()
	assert.Equal(t, domain.DiscountCategoryStandard, d.Category)
}

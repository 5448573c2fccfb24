package domain

import "strings"

// Discount types as stored by the back office.
const (
	DiscountTypePercent = "percent"
	DiscountTypeAmount  = "amount"
)

// DiscountCategory selects the pricing rule a discount resolves with.
type DiscountCategory string

// Discount categories. The zero value means the record has not been
// classified yet.
const (
	DiscountCategoryUnclassified  DiscountCategory = ""
	DiscountCategoryStandard      DiscountCategory = "standard"
	DiscountCategorySeniorCitizen DiscountCategory = "senior_citizen"
)

// SeniorCitizenMarker is matched case-insensitively against discount names.
const SeniorCitizenMarker = "senior"

// Discount is a back-office discount definition. Value is kept as decoded
// (number or string) because upstream data is not trusted to be numeric.
type Discount struct {
	ID       int64            `json:"id"`
	Name     string           `json:"name"`
	Type     string           `json:"type"`
	Value    any              `json:"value"`
	Category DiscountCategory `json:"category,omitempty"`
}

// ClassifyDiscountName maps a discount label to its category.
func ClassifyDiscountName(name string) DiscountCategory {
	if strings.Contains(strings.ToLower(name), SeniorCitizenMarker) {
		return DiscountCategorySeniorCitizen
	}
	return DiscountCategoryStandard
}

// Classify sets Category from Name when it has not been set and returns d.
func (d *Discount) Classify() *Discount {
	if d != nil && d.Category == DiscountCategoryUnclassified {
		d.Category = ClassifyDiscountName(d.Name)
	}
	return d
}

// EffectiveCategory returns the category, classifying by name when unset.
func (d *Discount) EffectiveCategory() DiscountCategory {
	if d.Category != DiscountCategoryUnclassified {
		return d.Category
	}
	return ClassifyDiscountName(d.Name)
}

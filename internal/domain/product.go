package domain

// Product is the catalog snapshot a line item is created from. Price is kept
// as decoded; it is coerced when the item is added.
type Product struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Price     any    `json:"price"`
	IsTaxable *bool  `json:"is_taxable,omitempty"`
}

// Taxable reports whether the product is taxable. Products are taxable unless
// they explicitly say otherwise.
func (p Product) Taxable() bool {
	return p.IsTaxable == nil || *p.IsTaxable
}

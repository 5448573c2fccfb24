package checkout

import (
	"github.com/utafrali/pos-register/internal/domain"
	"github.com/utafrali/pos-register/internal/money"
)

// OrderStatusCompleted is the only status the register submits.
const OrderStatusCompleted = "completed"

// OrderPayload is the body of the back office create-order call.
type OrderPayload struct {
	Order OrderHeader `json:"order"`
	Items []OrderItem `json:"items"`
}

// OrderHeader carries the totals and tender of a submitted order.
type OrderHeader struct {
	StoreID        string  `json:"storeId"`
	UserID         string  `json:"userId"`
	CustomerID     *int64  `json:"customerId"`
	Status         string  `json:"status"`
	Subtotal       float64 `json:"subtotal"`
	Tax            float64 `json:"tax"`
	Discount       float64 `json:"discount"`
	Total          float64 `json:"total"`
	PaymentMethod  string  `json:"paymentMethod"`
	AmountTendered float64 `json:"amountTendered"`
	Change         float64 `json:"change"`
}

// OrderItem is one submitted line.
type OrderItem struct {
	ProductID  int64   `json:"productId"`
	Quantity   int     `json:"quantity"`
	Price      float64 `json:"price"`
	Name       string  `json:"name"`
	TotalPrice float64 `json:"totalPrice"`
}

// BuildOrderPayload packages a cart and its tender for submission.
func BuildOrderPayload(cart domain.Cart, tender domain.TenderResult, storeID, userID string) OrderPayload {
	items := make([]OrderItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, OrderItem{
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			Price:      money.Round2(item.UnitPrice).InexactFloat64(),
			Name:       item.Name,
			TotalPrice: money.Round2(item.LineTotal).InexactFloat64(),
		})
	}

	return OrderPayload{
		Order: OrderHeader{
			StoreID:        storeID,
			UserID:         userID,
			CustomerID:     cart.CustomerID,
			Status:         OrderStatusCompleted,
			Subtotal:       money.Round2(cart.Subtotal).InexactFloat64(),
			Tax:            money.Round2(cart.Tax).InexactFloat64(),
			Discount:       money.Round2(cart.Discount).InexactFloat64(),
			Total:          money.Round2(cart.Total).InexactFloat64(),
			PaymentMethod:  tender.PaymentMethod,
			AmountTendered: money.Round2(tender.AmountTendered).InexactFloat64(),
			Change:         money.Round2(tender.Change).InexactFloat64(),
		},
		Items: items,
	}
}

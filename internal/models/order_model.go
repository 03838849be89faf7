package models

import (
	"time"

	"github.com/anmilktea/storefront-api/pkg"
)

// Customer is the sanitized customer block attached to an order.
type Customer struct {
	Name      string   `json:"name"`
	Phone     string   `json:"phone"`
	Address   string   `json:"address,omitempty"`
	Note      string   `json:"note,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// ItemOption is one configured choice on an order item (sweetness, ice,
// topping, ...). Toppings carry a price adjustment.
type ItemOption struct {
	OptionID   string  `json:"optionId"`
	OptionName string  `json:"optionName"`
	ChoiceID   string  `json:"choiceId"`
	ChoiceName string  `json:"choiceName"`
	Price      float64 `json:"price"`
}

// OrderItem is one line of an order after sanitization.
type OrderItem struct {
	ProductID string       `json:"productId"`
	PosID     string       `json:"posId"`
	PosCode   string       `json:"posCode"`
	PosUnitID string       `json:"posUnitId"`
	ItemType  int          `json:"itemType"`
	UnitName  string       `json:"unitName"`
	Name      string       `json:"name"`
	Quantity  int          `json:"quantity"`
	Price     float64      `json:"price"`
	Amount    float64      `json:"amount"`
	Note      string       `json:"note,omitempty"`
	Options   []ItemOption `json:"options,omitempty"`
}

// Order is the typed, sanitized order flowing to the POS and retry queue.
type Order struct {
	OrderNo     string        `json:"orderNo"`
	OrderType   pkg.OrderType `json:"orderType"`
	Customer    Customer      `json:"customer"`
	Items       []OrderItem   `json:"items"`
	Subtotal    float64       `json:"subtotal"`
	DeliveryFee float64       `json:"deliveryFee"`
	Total       float64       `json:"total"`
}

// PendingOrder is an order that failed to reach the POS, parked in the retry
// queue. Only the queue mutates it.
type PendingOrder struct {
	ID         int64           `json:"id"`
	Order      Order           `json:"order"`
	Status     pkg.OrderStatus `json:"status"`
	RetryCount int             `json:"retryCount"`
	LastError  string          `json:"lastError,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

package views

// Request DTOs bound from JSON bodies. Binding tags give the first layer of
// validation; the sanitizer and order service apply the rest.

type CustomerRequest struct {
	Name      string   `json:"name" binding:"required"`
	Phone     string   `json:"phone" binding:"required"`
	Address   string   `json:"address"`
	Note      string   `json:"note"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type ItemOptionRequest struct {
	OptionID   string  `json:"optionId"`
	OptionName string  `json:"optionName"`
	ChoiceID   string  `json:"choiceId"`
	ChoiceName string  `json:"choiceName"`
	Price      float64 `json:"price"`
}

type OrderItemRequest struct {
	ProductID string              `json:"productId"`
	PosID     string              `json:"posId"`
	PosCode   string              `json:"posCode"`
	PosUnitID string              `json:"posUnitId"`
	ItemType  int                 `json:"itemType"`
	UnitName  string              `json:"unitName"`
	Name      string              `json:"name" binding:"required"`
	Quantity  int                 `json:"quantity" binding:"required,min=1"`
	Price     float64             `json:"price" binding:"min=0"`
	Amount    float64             `json:"amount" binding:"min=0"`
	Note      string              `json:"note"`
	Options   []ItemOptionRequest `json:"options"`
}

type CreateOrderRequest struct {
	OrderType   string             `json:"orderType" binding:"required,oneof=delivery pickup"`
	Customer    CustomerRequest    `json:"customer" binding:"required"`
	Items       []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
	Subtotal    float64            `json:"subtotal" binding:"min=0"`
	DeliveryFee float64            `json:"deliveryFee" binding:"min=0"`
	Total       float64            `json:"total" binding:"required,gt=0"`
}

type RetryRequest struct {
	Cleanup bool `json:"cleanup"`
}

// APIResponse is the success envelope shared by every handler.
type APIResponse struct {
	Data map[string]any `json:"data"`
}

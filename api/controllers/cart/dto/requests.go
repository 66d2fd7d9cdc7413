package dto

// Quantity bounds mirror cart.MaxLineQuantity.

// AddItemRequest is the POST /api/v1/cart body. Quantity defaults to one.
type AddItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,min=1"`
	Quantity  *int  `json:"quantity" validate:"omitempty,min=1,max=10000"`
}

func (r AddItemRequest) QuantityOrDefault() int {
	if r.Quantity == nil {
		return 1
	}
	return *r.Quantity
}

// UpdateItemRequest is the PATCH /api/v1/cart/{lineId} body.
type UpdateItemRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1,max=10000"`
}

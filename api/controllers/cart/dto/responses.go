package dto

type CountResponse struct {
	ItemCount int64 `json:"item_count"`
}

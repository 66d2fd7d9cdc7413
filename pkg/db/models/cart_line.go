package models

import "time"

// CartLine is one (user, product) entry in a user's cart. The schema keeps at
// most one row per pair and rejects quantities below 1.
type CartLine struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	UserID    string    `gorm:"column:user_id;type:varchar(255);not null"`
	ProductID int64     `gorm:"column:product_id;not null"`
	Quantity  int       `gorm:"column:quantity;not null;default:1"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (CartLine) TableName() string {
	return "cart_lines"
}

package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/shopcart-backend/pkg/db"
	"github.com/angelmondragon/shopcart-backend/pkg/db/models"
	"gorm.io/gorm"
)

// upsertLineSQL merges an add into the existing (user, product) line in one
// statement; the unique index arbitrates concurrent inserts. A merge that
// would exceed the cap matches no row and leaves the line untouched.
const upsertLineSQL = `INSERT INTO cart_lines (user_id, product_id, quantity, created_at, updated_at) ` +
	`VALUES (?, ?, ?, ?, ?) ` +
	`ON CONFLICT (user_id, product_id) DO UPDATE SET quantity = cart_lines.quantity + excluded.quantity, updated_at = excluded.updated_at ` +
	`WHERE cart_lines.quantity + excluded.quantity <= ?`

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Repository implements Store on top of gorm (Postgres or SQLite).
type Repository struct {
	db  *gorm.DB
	tx  txRunner
	now func() time.Time
}

// NewRepository constructs a cart repository bound to the provided client.
func NewRepository(client *db.Client) *Repository {
	return &Repository{
		db:  client.DB(),
		tx:  client,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// ListLines returns the user's lines ordered by id.
func (r *Repository) ListLines(ctx context.Context, userID string) ([]models.CartLine, error) {
	lines := []models.CartLine{}
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&lines).Error; err != nil {
		return nil, err
	}
	return lines, nil
}

// FindLine loads a line owned by userID; (nil, nil) when absent or foreign.
func (r *Repository) FindLine(ctx context.Context, userID string, lineID int64) (*models.CartLine, error) {
	return takeOwnedLine(r.db.WithContext(ctx), userID, lineID)
}

// UpsertLine adds delta to the (user, product) line, creating it when absent.
// ErrQuantityLimit reports a merge that would pass MaxLineQuantity.
func (r *Repository) UpsertLine(ctx context.Context, userID string, productID int64, delta int) (*models.CartLine, error) {
	if delta < 1 {
		return nil, fmt.Errorf("quantity delta must be at least 1, got %d", delta)
	}
	if delta > MaxLineQuantity {
		return nil, ErrQuantityLimit
	}
	now := r.now()
	var line models.CartLine
	err := r.tx.WithTx(ctx, func(tx *gorm.DB) error {
		res := tx.Exec(upsertLineSQL, userID, productID, delta, now, now, MaxLineQuantity)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrQuantityLimit
		}
		return tx.Where("user_id = ? AND product_id = ?", userID, productID).Take(&line).Error
	})
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// SetQuantity overwrites the quantity of an owned line; (nil, nil) when no row matched.
func (r *Repository) SetQuantity(ctx context.Context, userID string, lineID int64, quantity int) (*models.CartLine, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("quantity must be at least 1, got %d", quantity)
	}
	if quantity > MaxLineQuantity {
		return nil, ErrQuantityLimit
	}
	var line *models.CartLine
	err := r.tx.WithTx(ctx, func(tx *gorm.DB) error {
		res := tx.Model(&models.CartLine{}).
			Where("id = ? AND user_id = ?", lineID, userID).
			Updates(map[string]any{
				"quantity":   quantity,
				"updated_at": r.now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		found, err := takeOwnedLine(tx, userID, lineID)
		if err != nil {
			return err
		}
		line = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

// DeleteLine removes an owned line and reports whether a row was deleted.
func (r *Repository) DeleteLine(ctx context.Context, userID string, lineID int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", lineID, userID).
		Delete(&models.CartLine{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ClearUser deletes every line the user owns.
func (r *Repository) ClearUser(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.CartLine{}).Error
}

// CountItems sums quantities across the user's lines.
func (r *Repository) CountItems(ctx context.Context, userID string) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&models.CartLine{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func takeOwnedLine(conn *gorm.DB, userID string, lineID int64) (*models.CartLine, error) {
	var line models.CartLine
	if err := conn.Where("id = ? AND user_id = ?", lineID, userID).Take(&line).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &line, nil
}

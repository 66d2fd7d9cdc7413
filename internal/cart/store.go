package cart

import (
	"context"
	"errors"

	"github.com/angelmondragon/shopcart-backend/pkg/db/models"
)

// MaxLineQuantity caps a single line. It keeps quantities inside a 32-bit
// INTEGER column and line subtotals far from int64 overflow.
const MaxLineQuantity = 10_000

// ErrQuantityLimit is returned by UpsertLine when merging would push the line
// past MaxLineQuantity. The stored line is left unchanged.
var ErrQuantityLimit = errors.New("cart line quantity limit exceeded")

// Store is the persistence contract for cart lines. Every mutation that
// names a line is scoped by user id inside the statement itself, so a line
// owned by someone else is indistinguishable from a missing one.
type Store interface {
	ListLines(ctx context.Context, userID string) ([]models.CartLine, error)
	FindLine(ctx context.Context, userID string, lineID int64) (*models.CartLine, error)
	UpsertLine(ctx context.Context, userID string, productID int64, delta int) (*models.CartLine, error)
	SetQuantity(ctx context.Context, userID string, lineID int64, quantity int) (*models.CartLine, error)
	DeleteLine(ctx context.Context, userID string, lineID int64) (bool, error)
	ClearUser(ctx context.Context, userID string) error
	CountItems(ctx context.Context, userID string) (int64, error)
}

// Catalog resolves products referenced by cart lines.
type Catalog interface {
	FindByID(ctx context.Context, id int64) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []int64) (map[int64]*models.Product, error)
}

package cart

import (
	"github.com/angelmondragon/shopcart-backend/pkg/db/models"
	"github.com/angelmondragon/shopcart-backend/pkg/money"
)

// LinePair joins a stored line with the product it references.
type LinePair struct {
	Line    models.CartLine
	Product models.Product
}

// LineView is the priced, client-facing rendering of one cart line.
type LineView struct {
	ID                int64  `json:"id"`
	ProductID         int64  `json:"product_id"`
	ProductName       string `json:"product_name"`
	ProductPriceCents int64  `json:"product_price_cents"`
	ProductPrice      string `json:"product_price"`
	Quantity          int    `json:"quantity"`
	SubtotalCents     int64  `json:"subtotal_cents"`
	Subtotal          string `json:"subtotal"`
}

// Summary is the derived view of a whole cart. It is never persisted.
type Summary struct {
	Items      []LineView `json:"items"`
	TotalCents int64      `json:"total_cents"`
	Total      string     `json:"total"`
	ItemCount  int64      `json:"item_count"`
}

// NewLineView prices a single line against its product. It fails with
// money.ErrOutOfRange when the subtotal does not fit in int64 cents.
func NewLineView(line models.CartLine, product models.Product) (LineView, error) {
	subtotal, err := money.LineTotal(product.PriceCents, line.Quantity)
	if err != nil {
		return LineView{}, err
	}
	return LineView{
		ID:                line.ID,
		ProductID:         line.ProductID,
		ProductName:       product.Name,
		ProductPriceCents: product.PriceCents,
		ProductPrice:      money.Format(product.PriceCents),
		Quantity:          line.Quantity,
		SubtotalCents:     subtotal,
		Subtotal:          money.Format(subtotal),
	}, nil
}

// Summarize aggregates pairs in the order given.
func Summarize(pairs []LinePair) (Summary, error) {
	items := make([]LineView, 0, len(pairs))
	var total, count int64
	for _, pair := range pairs {
		view, err := NewLineView(pair.Line, pair.Product)
		if err != nil {
			return Summary{}, err
		}
		if total, err = money.Add(total, view.SubtotalCents); err != nil {
			return Summary{}, err
		}
		items = append(items, view)
		count += int64(view.Quantity)
	}
	return Summary{
		Items:      items,
		TotalCents: total,
		Total:      money.Format(total),
		ItemCount:  count,
	}, nil
}

package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/angelmondragon/shopcart-backend/pkg/db"
	"github.com/angelmondragon/shopcart-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shopcart-backend/pkg/errors"
	"github.com/angelmondragon/shopcart-backend/pkg/logger"
	"github.com/angelmondragon/shopcart-backend/pkg/metrics"
	"github.com/angelmondragon/shopcart-backend/pkg/money"
)

const (
	opGet    = "get"
	opAdd    = "add"
	opUpdate = "update"
	opRemove = "remove"
	opClear  = "clear"
	opCount  = "count"

	tracerName = "github.com/angelmondragon/shopcart-backend/internal/cart"

	msgProductNotFound = "product not found"
	msgLineNotFound    = "cart line not found"
	msgOutOfRange      = "cart amount exceeds the supported range"
)

// Service exposes the cart operations used by the HTTP layer.
type Service interface {
	GetCart(ctx context.Context, userID string) (*Summary, error)
	AddToCart(ctx context.Context, userID string, input AddItemInput) (*LineView, error)
	UpdateQuantity(ctx context.Context, userID string, lineID int64, quantity int) (*LineView, error)
	RemoveFromCart(ctx context.Context, userID string, lineID int64) error
	ClearCart(ctx context.Context, userID string) error
	CountItems(ctx context.Context, userID string) (int64, error)
}

// AddItemInput is the add-to-cart command after boundary decoding.
type AddItemInput struct {
	ProductID int64
	Quantity  int
}

// ServiceParams wires the service collaborators.
type ServiceParams struct {
	Store   Store
	Catalog Catalog
	Metrics *metrics.CartMetrics
	Logger  *logger.Logger
	// Tracer defaults to the global provider's tracer.
	Tracer trace.Tracer
}

type service struct {
	store   Store
	catalog Catalog
	metrics *metrics.CartMetrics
	logg    *logger.Logger
	tracer  trace.Tracer
}

// NewService builds a cart service backed by the provided stack.
func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("product catalog required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	tracer := params.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return &service{
		store:   params.Store,
		catalog: params.Catalog,
		metrics: params.Metrics,
		logg:    logg,
		tracer:  tracer,
	}, nil
}

func (s *service) GetCart(ctx context.Context, userID string) (summary *Summary, err error) {
	ctx, span := s.startSpan(ctx, opGet)
	defer s.observe(span, opGet, time.Now(), &err)
	if err := requireUser(userID); err != nil {
		return nil, err
	}

	lines, err := s.store.ListLines(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list cart lines")
	}
	if len(lines) == 0 {
		return &Summary{Items: []LineView{}, Total: money.Format(0)}, nil
	}

	ids := make([]int64, 0, len(lines))
	seen := make(map[int64]struct{}, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		ids = append(ids, line.ProductID)
	}

	products, err := s.catalog.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}

	pairs := make([]LinePair, 0, len(lines))
	for _, line := range lines {
		product, ok := products[line.ProductID]
		if !ok || product == nil {
			return nil, s.integrityFault(ctx, userID, line)
		}
		pairs = append(pairs, LinePair{Line: line, Product: *product})
	}

	result, err := Summarize(pairs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, msgOutOfRange)
	}
	return &result, nil
}

func (s *service) AddToCart(ctx context.Context, userID string, input AddItemInput) (view *LineView, err error) {
	ctx, span := s.startSpan(ctx, opAdd)
	defer s.observe(span, opAdd, time.Now(), &err)
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if input.ProductID < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_id must be a positive integer")
	}
	if err := validateQuantity(input.Quantity); err != nil {
		return nil, err
	}

	product, err := s.findProduct(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}
	// any line of this product, up to the cap, must price without overflow
	if _, err := money.LineTotal(product.PriceCents, MaxLineQuantity); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, msgOutOfRange)
	}

	line, err := s.store.UpsertLine(ctx, userID, input.ProductID, input.Quantity)
	switch {
	case errors.Is(err, ErrQuantityLimit):
		return nil, quantityLimitError(err)
	case db.IsForeignKeyViolation(err):
		// product removed between the lookup and the insert
		return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, msgProductNotFound)
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "add cart line")
	}

	return lineView(*line, *product)
}

func (s *service) UpdateQuantity(ctx context.Context, userID string, lineID int64, quantity int) (view *LineView, err error) {
	ctx, span := s.startSpan(ctx, opUpdate)
	defer s.observe(span, opUpdate, time.Now(), &err)
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if err := validateQuantity(quantity); err != nil {
		return nil, err
	}
	if lineID < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, msgLineNotFound)
	}

	line, err := s.store.SetQuantity(ctx, userID, lineID, quantity)
	if errors.Is(err, ErrQuantityLimit) {
		return nil, quantityLimitError(err)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update cart line")
	}
	if line == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, msgLineNotFound)
	}

	product, err := s.findProduct(ctx, line.ProductID)
	if err != nil {
		return nil, err
	}

	return lineView(*line, *product)
}

func (s *service) RemoveFromCart(ctx context.Context, userID string, lineID int64) (err error) {
	ctx, span := s.startSpan(ctx, opRemove)
	defer s.observe(span, opRemove, time.Now(), &err)
	if err := requireUser(userID); err != nil {
		return err
	}
	if lineID < 1 {
		return pkgerrors.New(pkgerrors.CodeNotFound, msgLineNotFound)
	}

	deleted, err := s.store.DeleteLine(ctx, userID, lineID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove cart line")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, msgLineNotFound)
	}
	return nil
}

func (s *service) ClearCart(ctx context.Context, userID string) (err error) {
	ctx, span := s.startSpan(ctx, opClear)
	defer s.observe(span, opClear, time.Now(), &err)
	if err := requireUser(userID); err != nil {
		return err
	}
	if err := s.store.ClearUser(ctx, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
	}
	return nil
}

func (s *service) CountItems(ctx context.Context, userID string) (count int64, err error) {
	ctx, span := s.startSpan(ctx, opCount)
	defer s.observe(span, opCount, time.Now(), &err)
	if err := requireUser(userID); err != nil {
		return 0, err
	}
	count, err = s.store.CountItems(ctx, userID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count cart items")
	}
	return count, nil
}

func (s *service) findProduct(ctx context.Context, productID int64) (*models.Product, error) {
	product, err := s.catalog.FindByID(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if product == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, msgProductNotFound)
	}
	return product, nil
}

func (s *service) integrityFault(ctx context.Context, userID string, line models.CartLine) error {
	err := pkgerrors.Newf(pkgerrors.CodeIntegrity, "cart line %d references unknown product %d", line.ID, line.ProductID)
	ctx = s.logg.WithFields(ctx, map[string]any{
		"user_id":    userID,
		"line_id":    line.ID,
		"product_id": line.ProductID,
	})
	s.logg.Error(ctx, "cart line references unresolvable product", err)
	return err
}

func (s *service) startSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	ctx = s.logg.WithOperation(ctx, "cart."+op)
	return s.tracer.Start(ctx, "cart."+op, trace.WithAttributes(attribute.String("cart.operation", op)))
}

// observe ends the operation span and records the outcome metric.
func (s *service) observe(span trace.Span, op string, start time.Time, errp *error) {
	outcome := metrics.OutcomeSuccess
	if errp != nil && *errp != nil {
		code := pkgerrors.CodeOf(*errp)
		outcome = strings.ToLower(string(code))
		span.RecordError(*errp)
		span.SetStatus(codes.Error, string(code))
	}
	span.SetAttributes(attribute.String("cart.outcome", outcome))
	span.End()
	s.metrics.Observe(op, outcome, time.Since(start))
}

func validateQuantity(quantity int) error {
	switch {
	case quantity < 1:
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	case quantity > MaxLineQuantity:
		return pkgerrors.Newf(pkgerrors.CodeValidation, "quantity must be at most %d", MaxLineQuantity)
	}
	return nil
}

func quantityLimitError(err error) error {
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("a cart line holds at most %d items", MaxLineQuantity)).
		WithDetails(map[string]any{"max_quantity": MaxLineQuantity})
}

func lineView(line models.CartLine, product models.Product) (*LineView, error) {
	view, err := NewLineView(line, product)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, msgOutOfRange)
	}
	return &view, nil
}

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	return nil
}

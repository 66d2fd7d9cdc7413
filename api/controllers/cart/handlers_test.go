package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	cartdto "github.com/angelmondragon/shopcart-backend/api/controllers/cart/dto"
	"github.com/angelmondragon/shopcart-backend/api/middleware"
	"github.com/angelmondragon/shopcart-backend/api/responses"
	cartsvc "github.com/angelmondragon/shopcart-backend/internal/cart"
	pkgerrors "github.com/angelmondragon/shopcart-backend/pkg/errors"
)

type stubCartService struct {
	summary *cartsvc.Summary
	line    *cartsvc.LineView
	count   int64
	err     error

	lastUser     string
	lastAdd      cartsvc.AddItemInput
	lastLineID   int64
	lastQuantity int
	cleared      bool
}

func (s *stubCartService) GetCart(ctx context.Context, userID string) (*cartsvc.Summary, error) {
	s.lastUser = userID
	return s.summary, s.err
}

func (s *stubCartService) AddToCart(ctx context.Context, userID string, input cartsvc.AddItemInput) (*cartsvc.LineView, error) {
	s.lastUser = userID
	s.lastAdd = input
	return s.line, s.err
}

func (s *stubCartService) UpdateQuantity(ctx context.Context, userID string, lineID int64, quantity int) (*cartsvc.LineView, error) {
	s.lastUser = userID
	s.lastLineID = lineID
	s.lastQuantity = quantity
	return s.line, s.err
}

func (s *stubCartService) RemoveFromCart(ctx context.Context, userID string, lineID int64) error {
	s.lastUser = userID
	s.lastLineID = lineID
	return s.err
}

func (s *stubCartService) ClearCart(ctx context.Context, userID string) error {
	s.lastUser = userID
	s.cleared = true
	return s.err
}

func (s *stubCartService) CountItems(ctx context.Context, userID string) (int64, error) {
	s.lastUser = userID
	return s.count, s.err
}

func newRequest(method, target, body, userID string, params map[string]string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	ctx := req.Context()
	if userID != "" {
		ctx = middleware.WithUserID(ctx, userID)
	}
	if len(params) > 0 {
		rctx := chi.NewRouteContext()
		for k, v := range params {
			rctx.URLParams.Add(k, v)
		}
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}
	return req.WithContext(ctx)
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) responses.APIError {
	t.Helper()
	var env responses.ErrorEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return env.Error
}

func TestCartFetchSuccess(t *testing.T) {
	svc := &stubCartService{summary: &cartsvc.Summary{
		Items:      []cartsvc.LineView{{ID: 1, ProductID: 1, Quantity: 3, SubtotalCents: 3000, Subtotal: "30.00"}},
		TotalCents: 3000,
		Total:      "30.00",
		ItemCount:  3,
	}}
	resp := httptest.NewRecorder()
	CartFetch(svc, nil).ServeHTTP(resp, newRequest(http.MethodGet, "/api/v1/cart", "", "user-a", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data cartsvc.Summary `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Total != "30.00" || envelope.Data.ItemCount != 3 || len(envelope.Data.Items) != 1 {
		t.Fatalf("unexpected summary %+v", envelope.Data)
	}
	if svc.lastUser != "user-a" {
		t.Fatalf("expected user-a, got %q", svc.lastUser)
	}
}

func TestCartFetchRequiresUser(t *testing.T) {
	resp := httptest.NewRecorder()
	CartFetch(&stubCartService{}, nil).ServeHTTP(resp, newRequest(http.MethodGet, "/api/v1/cart", "", "", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestCartFetchWithoutServiceFails(t *testing.T) {
	resp := httptest.NewRecorder()
	CartFetch(nil, nil).ServeHTTP(resp, newRequest(http.MethodGet, "/api/v1/cart", "", "user-a", nil))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
}

func TestCartAddDefaultsQuantity(t *testing.T) {
	svc := &stubCartService{line: &cartsvc.LineView{ID: 7, ProductID: 2, Quantity: 1}}
	resp := httptest.NewRecorder()
	CartAdd(svc, nil).ServeHTTP(resp, newRequest(http.MethodPost, "/api/v1/cart", `{"product_id":2}`, "user-a", nil))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.lastAdd.ProductID != 2 || svc.lastAdd.Quantity != 1 {
		t.Fatalf("unexpected add input %+v", svc.lastAdd)
	}
}

func TestCartAddPassesQuantity(t *testing.T) {
	svc := &stubCartService{line: &cartsvc.LineView{ID: 7, ProductID: 2, Quantity: 4}}
	resp := httptest.NewRecorder()
	CartAdd(svc, nil).ServeHTTP(resp, newRequest(http.MethodPost, "/api/v1/cart", `{"product_id":2,"quantity":4}`, "user-a", nil))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", resp.Code)
	}
	if svc.lastAdd.Quantity != 4 {
		t.Fatalf("expected quantity 4, got %d", svc.lastAdd.Quantity)
	}
}

func TestCartAddRejectsInvalidBodies(t *testing.T) {
	cases := map[string]string{
		"missing product": `{"quantity":2}`,
		"zero quantity":   `{"product_id":1,"quantity":0}`,
		"negative qty":    `{"product_id":1,"quantity":-3}`,
		"unknown field":   `{"product_id":1,"color":"red"}`,
		"malformed":       `{"product_id":`,
		"fractional qty":  `{"product_id":1,"quantity":1.5}`,
		"string qty":      `{"product_id":1,"quantity":"2"}`,
		"qty over cap":    fmt.Sprintf(`{"product_id":1,"quantity":%d}`, cartsvc.MaxLineQuantity+1),
		"qty past int32":  `{"product_id":1,"quantity":10000000000000000}`,
		"qty past int64":  `{"product_id":1,"quantity":1e20}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			svc := &stubCartService{}
			resp := httptest.NewRecorder()
			CartAdd(svc, nil).ServeHTTP(resp, newRequest(http.MethodPost, "/api/v1/cart", body, "user-a", nil))
			if resp.Code != http.StatusBadRequest {
				t.Fatalf("expected 400 got %d", resp.Code)
			}
			if got := decodeError(t, resp).Code; got != string(pkgerrors.CodeValidation) {
				t.Fatalf("expected validation code, got %s", got)
			}
			if svc.lastUser != "" {
				t.Fatal("service must not be called for invalid input")
			}
		})
	}
}

func TestCartAddUnknownProduct(t *testing.T) {
	svc := &stubCartService{err: pkgerrors.New(pkgerrors.CodeNotFound, "product not found")}
	resp := httptest.NewRecorder()
	CartAdd(svc, nil).ServeHTTP(resp, newRequest(http.MethodPost, "/api/v1/cart", `{"product_id":99}`, "user-a", nil))

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
	if msg := decodeError(t, resp).Message; msg != "product not found" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestCartUpdateItem(t *testing.T) {
	svc := &stubCartService{line: &cartsvc.LineView{ID: 5, Quantity: 9}}
	resp := httptest.NewRecorder()
	req := newRequest(http.MethodPatch, "/api/v1/cart/5", `{"quantity":9}`, "user-a", map[string]string{lineIDParam: "5"})
	CartUpdateItem(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.lastLineID != 5 || svc.lastQuantity != 9 {
		t.Fatalf("unexpected update call line=%d qty=%d", svc.lastLineID, svc.lastQuantity)
	}
}

func TestCartAddAcceptsQuantityAtCap(t *testing.T) {
	svc := &stubCartService{line: &cartsvc.LineView{ID: 7, ProductID: 1, Quantity: cartsvc.MaxLineQuantity}}
	resp := httptest.NewRecorder()
	body := fmt.Sprintf(`{"product_id":1,"quantity":%d}`, cartsvc.MaxLineQuantity)
	CartAdd(svc, nil).ServeHTTP(resp, newRequest(http.MethodPost, "/api/v1/cart", body, "user-a", nil))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.lastAdd.Quantity != cartsvc.MaxLineQuantity {
		t.Fatalf("expected quantity %d, got %d", cartsvc.MaxLineQuantity, svc.lastAdd.Quantity)
	}
}

func TestCartUpdateItemTreatsBadLineIDAsMissing(t *testing.T) {
	for _, raw := range []string{"abc", "0", "-1"} {
		svc := &stubCartService{}
		resp := httptest.NewRecorder()
		req := newRequest(http.MethodPatch, "/api/v1/cart/"+raw, `{"quantity":1}`, "user-a", map[string]string{lineIDParam: raw})
		CartUpdateItem(svc, nil).ServeHTTP(resp, req)
		if resp.Code != http.StatusNotFound {
			t.Fatalf("line %q: expected 404 got %d", raw, resp.Code)
		}
		if svc.lastUser != "" {
			t.Fatalf("line %q: service must not be called", raw)
		}
	}
}

func TestCartUpdateItemRejectsInvalidQuantities(t *testing.T) {
	cases := map[string]string{
		"zero":       `{"quantity":0}`,
		"fractional": `{"quantity":1.5}`,
		"string":     `{"quantity":"2"}`,
		"over cap":   fmt.Sprintf(`{"quantity":%d}`, cartsvc.MaxLineQuantity+1),
		"past int64": `{"quantity":1e20}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			svc := &stubCartService{}
			resp := httptest.NewRecorder()
			req := newRequest(http.MethodPatch, "/api/v1/cart/5", body, "user-a", map[string]string{lineIDParam: "5"})
			CartUpdateItem(svc, nil).ServeHTTP(resp, req)
			if resp.Code != http.StatusBadRequest {
				t.Fatalf("expected 400 got %d", resp.Code)
			}
			if got := decodeError(t, resp).Code; got != string(pkgerrors.CodeValidation) {
				t.Fatalf("expected validation code, got %s", got)
			}
			if svc.lastUser != "" {
				t.Fatal("service must not be called for invalid input")
			}
		})
	}
}

func TestCartRemoveItemTreatsBadLineIDAsMissing(t *testing.T) {
	for _, raw := range []string{"abc", "0", "-3"} {
		svc := &stubCartService{}
		resp := httptest.NewRecorder()
		req := newRequest(http.MethodDelete, "/api/v1/cart/"+raw, "", "user-a", map[string]string{lineIDParam: raw})
		CartRemoveItem(svc, nil).ServeHTTP(resp, req)
		if resp.Code != http.StatusNotFound {
			t.Fatalf("line %q: expected 404 got %d", raw, resp.Code)
		}
		if got := decodeError(t, resp).Code; got != string(pkgerrors.CodeNotFound) {
			t.Fatalf("line %q: expected not-found code, got %s", raw, got)
		}
	}
}

func TestCartRemoveItemForeignLine(t *testing.T) {
	svc := &stubCartService{err: pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")}
	resp := httptest.NewRecorder()
	req := newRequest(http.MethodDelete, "/api/v1/cart/8", "", "user-b", map[string]string{lineIDParam: "8"})
	CartRemoveItem(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestCartRemoveItemSuccess(t *testing.T) {
	svc := &stubCartService{}
	resp := httptest.NewRecorder()
	req := newRequest(http.MethodDelete, "/api/v1/cart/8", "", "user-a", map[string]string{lineIDParam: "8"})
	CartRemoveItem(svc, nil).ServeHTTP(resp, req)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", resp.Code)
	}
	if svc.lastLineID != 8 {
		t.Fatalf("expected line 8, got %d", svc.lastLineID)
	}
}

func TestCartClear(t *testing.T) {
	svc := &stubCartService{}
	resp := httptest.NewRecorder()
	CartClear(svc, nil).ServeHTTP(resp, newRequest(http.MethodDelete, "/api/v1/cart", "", "user-a", nil))
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", resp.Code)
	}
	if !svc.cleared {
		t.Fatal("expected clear to be called")
	}
}

func TestCartCount(t *testing.T) {
	svc := &stubCartService{count: 6}
	resp := httptest.NewRecorder()
	CartCount(svc, nil).ServeHTTP(resp, newRequest(http.MethodGet, "/api/v1/cart/count", "", "user-a", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var envelope struct {
		Data cartdto.CountResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.ItemCount != 6 {
		t.Fatalf("expected 6 items, got %d", envelope.Data.ItemCount)
	}
}

func TestCartCountStoreFailureIsHidden(t *testing.T) {
	svc := &stubCartService{err: pkgerrors.New(pkgerrors.CodeInternal, "select failed: connection reset")}
	resp := httptest.NewRecorder()
	CartCount(svc, nil).ServeHTTP(resp, newRequest(http.MethodGet, "/api/v1/cart/count", "", "user-a", nil))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
	if msg := decodeError(t, resp).Message; msg != "internal server error" {
		t.Fatalf("internal message leaked: %q", msg)
	}
}

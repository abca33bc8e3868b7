package cart

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"

	"treadline/checkout"
	"treadline/globals"
	"treadline/models"
	"treadline/selection"
)

type fakeCarts struct {
	mu       sync.Mutex
	cart     models.Cart
	updates  []models.CartItemRequest
	services map[string]selection.ServiceSelection
	cleared  bool
	err      error
}

func (f *fakeCarts) GetCart(_ context.Context, _ string) (models.Cart, error) {
	return f.cart, f.err
}

func (f *fakeCarts) AddItem(_ context.Context, _ string, req models.CartItemRequest) error {
	f.cart.Items = append(f.cart.Items, models.CartItem{Product: req.Product, ProductType: req.ProductType, Quantity: req.Quantity, AvailableStock: 8})
	return nil
}

func (f *fakeCarts) UpdateItem(_ context.Context, _ string, req models.CartItemRequest) error {
	f.updates = append(f.updates, req)
	return nil
}

func (f *fakeCarts) RemoveItem(_ context.Context, _ string, productID string) error {
	items := f.cart.Items[:0]
	for _, it := range f.cart.Items {
		if it.Product != productID {
			items = append(items, it)
		}
	}
	f.cart.Items = items
	return nil
}

func (f *fakeCarts) ClearCart(context.Context, string) error {
	f.cleared = true
	f.cart.Items = nil
	return nil
}

func (f *fakeCarts) UpdateItemServices(_ context.Context, _ string, productID string, choice selection.ServiceSelection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.services == nil {
		f.services = map[string]selection.ServiceSelection{}
	}
	f.services[productID] = choice
	return nil
}

type fakeGateway struct {
	calls int
	req   checkout.PaymentRequest
	err   error
}

func (g *fakeGateway) CreatePayment(_ context.Context, req checkout.PaymentRequest, _ string) (checkout.PaymentSession, error) {
	g.calls++
	g.req = req
	if g.err != nil {
		return checkout.PaymentSession{}, g.err
	}
	return checkout.PaymentSession{URL: "https://pay.example/s/1"}, nil
}

func testCart() models.Cart {
	inst := 20.0
	return models.Cart{
		ID:         "c1",
		User:       "u1",
		TotalPrice: 200,
		Items: []models.CartItem{{
			Product:        "p1",
			ProductType:    models.ProductTire,
			Quantity:       2,
			Price:          100,
			AvailableStock: 4,
			ProductDetails: models.ProductDetails{
				Price:             110,
				InstallationPrice: &inst,
				AddonServices:     []models.AddonService{{Name: "Balancing", Price: 15}},
			},
		}},
	}
}

func setup() (*httprouter.Router, *fakeCarts, *selection.Repository, *fakeGateway) {
	return setupWithStore(selection.NewMemoryStore())
}

func setupWithStore(store selection.Store) (*httprouter.Router, *fakeCarts, *selection.Repository, *fakeGateway) {
	carts := &fakeCarts{cart: testCart()}
	repo := selection.NewRepository(store)
	gw := &fakeGateway{}
	h := NewHandler(carts, repo, checkout.NewSubmitter(gw, "https://shop.example/checkout/cancel"))

	router := httprouter.New()
	router.GET("/api/cart", h.GetCart)
	router.POST("/api/cart/items", h.AddItem)
	router.PATCH("/api/cart/items/:productId", h.UpdateItem)
	router.DELETE("/api/cart/items/:productId", h.RemoveItem)
	router.POST("/api/cart/clear", h.ClearCart)
	router.POST("/api/cart/services/:productId/installation", h.ToggleInstallation)
	router.POST("/api/cart/services/:productId/addons/:index", h.ToggleAddon)
	router.POST("/api/checkout", h.CreatePayment)
	return router, carts, repo, gw
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req = req.WithContext(context.WithValue(req.Context(), globals.UserIDKey, "u1"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) View {
	t.Helper()
	var v View
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode view: %v (%s)", err, rec.Body.String())
	}
	return v
}

func TestGetCartComputesTotals(t *testing.T) {
	router, _, repo, _ := setup()

	rec := do(router, http.MethodGet, "/api/cart", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	v := decodeView(t, rec)
	if v.Display.Total != "200.00" {
		t.Fatalf("expected 200.00, got %s", v.Display.Total)
	}
	if !v.ShowSavings || v.Display.Savings != "20.00" {
		t.Fatalf("expected savings 20.00, got %v %q", v.ShowSavings, v.Display.Savings)
	}
	if _, ok := repo.Load(context.Background(), "u1")["p1"]; !ok {
		t.Fatal("loading the cart should persist an all-false entry for each line")
	}
}

func TestToggleInstallationPersistsAndMirrors(t *testing.T) {
	router, carts, repo, _ := setup()

	rec := do(router, http.MethodPost, "/api/cart/services/p1/installation", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := decodeView(t, rec).Display.Total; got != "240.00" {
		t.Fatalf("expected 240.00, got %s", got)
	}
	if !repo.Load(context.Background(), "u1").For("p1").Installation {
		t.Fatal("toggle should be persisted")
	}
	if !carts.services["p1"].Installation {
		t.Fatal("toggle should be mirrored to the cart api")
	}

	rec = do(router, http.MethodPost, "/api/cart/services/p1/installation", "")
	if got := decodeView(t, rec).Display.Total; got != "200.00" {
		t.Fatalf("double toggle should restore 200.00, got %s", got)
	}
}

func TestToggleAddon(t *testing.T) {
	router, _, _, _ := setup()

	rec := do(router, http.MethodPost, "/api/cart/services/p1/addons/0", "")
	if got := decodeView(t, rec).Display.Total; got != "230.00" {
		t.Fatalf("expected 230.00, got %s", got)
	}

	if rec := do(router, http.MethodPost, "/api/cart/services/p1/addons/3", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown addon index should be rejected, got %d", rec.Code)
	}
	if rec := do(router, http.MethodPost, "/api/cart/services/p1/addons/x", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("non-numeric index should be rejected, got %d", rec.Code)
	}
	if rec := do(router, http.MethodPost, "/api/cart/services/nope/installation", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown line should be 404, got %d", rec.Code)
	}
}

func TestUpdateItemRespectsStock(t *testing.T) {
	router, carts, _, _ := setup()

	if rec := do(router, http.MethodPatch, "/api/cart/items/p1", `{"quantity":5}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("quantity above stock should be rejected, got %d", rec.Code)
	}
	if rec := do(router, http.MethodPatch, "/api/cart/items/p1", `{"quantity":0}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("quantity below 1 should be rejected, got %d", rec.Code)
	}
	if len(carts.updates) != 0 {
		t.Fatal("rejected updates must not reach the cart api")
	}

	if rec := do(router, http.MethodPatch, "/api/cart/items/p1", `{"quantity":4}`); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(carts.updates) != 1 || carts.updates[0].Quantity != 4 || carts.updates[0].ProductType != models.ProductTire {
		t.Fatalf("unexpected updates %+v", carts.updates)
	}
}

func TestRemoveAndClear(t *testing.T) {
	router, carts, repo, _ := setup()
	ctx := context.Background()

	do(router, http.MethodPost, "/api/cart/services/p1/installation", "")
	if rec := do(router, http.MethodDelete, "/api/cart/items/p1", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if _, ok := repo.Load(ctx, "u1")["p1"]; ok {
		t.Fatal("selection entry should go with the line")
	}

	carts.cart = testCart()
	do(router, http.MethodPost, "/api/cart/services/p1/installation", "")
	if rec := do(router, http.MethodPost, "/api/cart/clear", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !carts.cleared || len(repo.Load(ctx, "u1")) != 0 {
		t.Fatal("clear should empty the cart and the stored selection")
	}
}

func TestCartUpstreamFailure(t *testing.T) {
	router, carts, _, _ := setup()
	carts.err = errors.New("connection refused")

	if rec := do(router, http.MethodGet, "/api/cart", ""); rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}

func TestCheckoutUsesStoredSelection(t *testing.T) {
	router, _, _, gw := setup()
	do(router, http.MethodPost, "/api/cart/services/p1/installation", "")

	body := `{"billingAddress":{"street":"1 Main","city":"Springfield","state":"IL","postalCode":"62701","country":"US"},"sameAsBilling":true,"paymentMethod":"stripe"}`
	rec := do(router, http.MethodPost, "/api/checkout", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var res checkout.Result
	json.Unmarshal(rec.Body.Bytes(), &res)
	if res.RedirectURL != "https://pay.example/s/1" || res.DisplayTotal != "240.00" {
		t.Fatalf("unexpected result %+v", res)
	}
	if !gw.req.SelectedServices.For("p1").Installation || gw.req.CartID != "c1" {
		t.Fatalf("unexpected payment request %+v", gw.req)
	}
}

func TestCheckoutBlockedOnMissingAddress(t *testing.T) {
	router, _, _, gw := setup()

	body := `{"billingAddress":{"street":"1 Main","city":"","state":"IL","postalCode":"62701","country":"US"},"sameAsBilling":true,"paymentMethod":"stripe"}`
	rec := do(router, http.MethodPost, "/api/checkout", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "billing.city") {
		t.Fatalf("message should name the missing field: %s", rec.Body.String())
	}
	if gw.calls != 0 {
		t.Fatal("no payment call may be made")
	}
}

// slowStore holds every read long enough for two toggles to overlap.
type slowStore struct {
	*selection.MemoryStore
}

func (s slowStore) Get(ctx context.Context, key string) ([]byte, error) {
	time.Sleep(10 * time.Millisecond)
	return s.MemoryStore.Get(ctx, key)
}

func TestConcurrentTogglesKeepBothChanges(t *testing.T) {
	router, _, repo, _ := setupWithStore(slowStore{selection.NewMemoryStore()})

	paths := []string{"/api/cart/services/p1/installation", "/api/cart/services/p1/addons/0"}
	codes := make([]int, len(paths))
	var wg sync.WaitGroup
	for i, p := range paths {
		wg.Add(1)
		go func(i int, p string) {
			defer wg.Done()
			codes[i] = do(router, http.MethodPost, p, "").Code
		}(i, p)
	}
	wg.Wait()

	for i, c := range codes {
		if c != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", paths[i], c)
		}
	}
	got := repo.Load(context.Background(), "u1").For("p1")
	if !got.Installation || !got.HasAddon(0) {
		t.Fatalf("both toggles should be stored, got %+v", got)
	}

	rec := do(router, http.MethodGet, "/api/cart", "")
	if total := decodeView(t, rec).Display.Total; total != "270.00" {
		t.Fatalf("expected 270.00, got %s", total)
	}
}

func TestCheckoutPaymentFailureRedirectsToCancel(t *testing.T) {
	router, _, _, gw := setup()
	gw.err = errors.New("provider down")

	body := `{"billingAddress":{"street":"1 Main","city":"Springfield","state":"IL","postalCode":"62701","country":"US"},"sameAsBilling":true,"paymentMethod":"paypal"}`
	rec := do(router, http.MethodPost, "/api/checkout", body)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", rec.Code, rec.Body.String())
	}

	var res map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res["redirect"] != "https://shop.example/checkout/cancel" || res["error"] == "" {
		t.Fatalf("unexpected body %v", res)
	}
	if gw.calls != 1 {
		t.Fatalf("payment creation must not be retried, calls=%d", gw.calls)
	}
}

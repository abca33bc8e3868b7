package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"treadline/models"
	"treadline/selection"
)

type fakeGateway struct {
	calls   int
	lastReq PaymentRequest
	lastKey string
	session PaymentSession
	err     error
}

func (f *fakeGateway) CreatePayment(_ context.Context, req PaymentRequest, key string) (PaymentSession, error) {
	f.calls++
	f.lastReq = req
	f.lastKey = key
	return f.session, f.err
}

func fullAddress() models.Address {
	return models.Address{Street: "1 Main St", City: "Springfield", State: "IL", PostalCode: "62701", Country: "US"}
}

func cartWithInstall() models.Cart {
	inst := 20.0
	return models.Cart{
		ID:         "c1",
		TotalPrice: 200,
		Items: []models.CartItem{{
			Product:        "p1",
			ProductType:    models.ProductTire,
			Quantity:       2,
			Price:          100,
			AvailableStock: 4,
			ProductDetails: models.ProductDetails{Price: 100, InstallationPrice: &inst},
		}},
	}
}

func TestSubmitBlockedOnMissingField(t *testing.T) {
	fields := []func(*models.Address){
		func(a *models.Address) { a.Street = "" },
		func(a *models.Address) { a.City = "" },
		func(a *models.Address) { a.State = "" },
		func(a *models.Address) { a.PostalCode = "" },
		func(a *models.Address) { a.Country = "" },
	}
	for i, blank := range fields {
		gw := &fakeGateway{session: PaymentSession{URL: "https://pay.example/s"}}
		s := NewSubmitter(gw, "https://shop.example/checkout/cancel")

		billing := fullAddress()
		blank(&billing)
		_, err := s.Submit(context.Background(), Submission{
			Cart:          cartWithInstall(),
			Billing:       billing,
			SameAsBilling: true,
			Method:        MethodStripe,
		})

		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("case %d: expected ValidationError, got %v", i, err)
		}
		if gw.calls != 0 {
			t.Fatalf("case %d: gateway must not be called, got %d calls", i, gw.calls)
		}
	}
}

func TestValidateShippingOnlyWhenSeparate(t *testing.T) {
	if err := ValidateAddresses(fullAddress(), models.Address{}, true); err != nil {
		t.Fatalf("same-as-billing should skip shipping, got %v", err)
	}
	err := ValidateAddresses(fullAddress(), models.Address{City: "X"}, false)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Missing) != 4 || verr.Missing[0] != "shipping.street" {
		t.Fatalf("unexpected missing list %v", verr.Missing)
	}
}

func TestSubmitStripe(t *testing.T) {
	gw := &fakeGateway{session: PaymentSession{URL: "https://checkout.stripe.example/s/1"}}
	s := NewSubmitter(gw, "/cancel")

	sel := selection.New()
	sel.ToggleInstallation("p1")

	res, err := s.Submit(context.Background(), Submission{
		UserID:        "u1",
		Cart:          cartWithInstall(),
		Billing:       fullAddress(),
		SameAsBilling: true,
		Method:        MethodStripe,
		Selection:     sel,
	})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if res.RedirectURL != "https://checkout.stripe.example/s/1" {
		t.Fatalf("unexpected redirect %q", res.RedirectURL)
	}
	if res.Total != 240 || res.DisplayTotal != "240.00" {
		t.Fatalf("unexpected total %v / %s", res.Total, res.DisplayTotal)
	}
	if gw.lastReq.ShippingAddress != fullAddress() {
		t.Fatal("same-as-billing should copy billing into shipping")
	}
	if !gw.lastReq.SelectedServices.For("p1").Installation {
		t.Fatal("selected services should be forwarded")
	}
	if gw.lastKey == "" || gw.lastKey != res.AttemptID {
		t.Fatalf("attempt id should be sent as idempotency key, got %q vs %q", gw.lastKey, res.AttemptID)
	}
}

func TestSubmitPayPalLinks(t *testing.T) {
	gw := &fakeGateway{session: PaymentSession{Links: []Link{
		{Rel: "self", Href: "https://api.paypal.example/o/1"},
		{Rel: "approve", Href: "https://paypal.example/approve/1"},
	}}}
	res, err := NewSubmitter(gw, "/cancel").Submit(context.Background(), Submission{
		Cart:          cartWithInstall(),
		Billing:       fullAddress(),
		SameAsBilling: true,
		Method:        MethodPayPal,
		AttemptID:     "fixed",
	})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if res.RedirectURL != "https://paypal.example/approve/1" {
		t.Fatalf("unexpected redirect %q", res.RedirectURL)
	}
	if res.AttemptID != "fixed" || gw.lastKey != "fixed" {
		t.Fatal("caller supplied attempt id should be kept")
	}
}

func TestSubmitFailureIsTerminal(t *testing.T) {
	cases := map[string]*fakeGateway{
		"gateway error": {err: errors.New("boom")},
		"no redirect":   {session: PaymentSession{Links: []Link{{Rel: "self", Href: "x"}}}},
	}
	for name, gw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewSubmitter(gw, "https://shop.example/checkout/cancel").Submit(context.Background(), Submission{
				Cart:          cartWithInstall(),
				Billing:       fullAddress(),
				SameAsBilling: true,
				Method:        MethodStripe,
			})
			var perr *PaymentError
			if !errors.As(err, &perr) {
				t.Fatalf("expected PaymentError, got %v", err)
			}
			if perr.CancelURL != "https://shop.example/checkout/cancel" {
				t.Fatalf("unexpected cancel url %q", perr.CancelURL)
			}
			if gw.calls != 1 {
				t.Fatalf("expected exactly one attempt, got %d", gw.calls)
			}
		})
	}
}

func TestSubmitRejectsEmptyCartAndBadMethod(t *testing.T) {
	gw := &fakeGateway{}
	s := NewSubmitter(gw, "/cancel")

	if _, err := s.Submit(context.Background(), Submission{Billing: fullAddress(), SameAsBilling: true, Method: MethodStripe}); !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
	if _, err := s.Submit(context.Background(), Submission{Cart: cartWithInstall(), Billing: fullAddress(), SameAsBilling: true, Method: "cash"}); !errors.Is(err, ErrInvalidMethod) {
		t.Fatalf("expected ErrInvalidMethod, got %v", err)
	}
	if gw.calls != 0 {
		t.Fatal("gateway must not be called")
	}
}

func TestHTTPGatewaySendsIdempotencyKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/create" || r.Header.Get("Idempotency-Key") != "k1" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var req PaymentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CartID != "c1" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"url":"https://pay.example/s"}`))
	}))
	defer srv.Close()

	gw := NewHTTPGateway(srv.URL, time.Second)
	sess, err := gw.CreatePayment(context.Background(), PaymentRequest{CartID: "c1", PaymentMethod: MethodStripe}, "k1")
	if err != nil {
		t.Fatalf("CreatePayment returned error: %v", err)
	}
	if u, _ := sess.RedirectURL(); u != "https://pay.example/s" {
		t.Fatalf("unexpected url %q", u)
	}
}

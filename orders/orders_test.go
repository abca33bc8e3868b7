package orders

import (
	"bytes"
	"context"
	"mime"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julienschmidt/httprouter"

	"treadline/apiclient"
	"treadline/globals"
	"treadline/models"
)

type fakeOrders map[string]models.Order

func (f fakeOrders) GetOrder(_ context.Context, id string) (models.Order, error) {
	o, ok := f[id]
	if !ok {
		return models.Order{}, &apiclient.APIError{Status: http.StatusNotFound, Message: "Order not found"}
	}
	return o, nil
}

func (f fakeOrders) ListOrders(context.Context) ([]models.Order, error) {
	out := make([]models.Order, 0, len(f))
	for _, o := range f {
		out = append(out, o)
	}
	return out, nil
}

func router() *httprouter.Router {
	h := NewHandler(fakeOrders{
		"o1": {ID: "o1", User: "u1", Status: models.OrderPending, Items: []models.OrderItem{{Name: "Tire", Quantity: 2, Price: 80}}},
	})
	r := httprouter.New()
	r.GET("/api/orders/:id", h.GetOrder)
	r.GET("/api/orders/:id/invoice", h.DownloadInvoice)
	return r
}

func get(path, userID string, roles ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	ctx := context.WithValue(req.Context(), globals.UserIDKey, userID)
	ctx = context.WithValue(ctx, globals.RoleKey, roles)
	rec := httptest.NewRecorder()
	router().ServeHTTP(rec, req.WithContext(ctx))
	return rec
}

func TestOrderAccess(t *testing.T) {
	if rec := get("/api/orders/o1", "u1"); rec.Code != http.StatusOK {
		t.Fatalf("owner should see the order, got %d", rec.Code)
	}
	if rec := get("/api/orders/o1", "u2"); rec.Code != http.StatusForbidden {
		t.Fatalf("other users should be forbidden, got %d", rec.Code)
	}
	if rec := get("/api/orders/o1", "admin1", "admin"); rec.Code != http.StatusOK {
		t.Fatalf("admins should see any order, got %d", rec.Code)
	}
	if rec := get("/api/orders/missing", "u1"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 pass-through, got %d", rec.Code)
	}
}

func TestDownloadInvoice(t *testing.T) {
	rec := get("/api/orders/o1/invoice", "u1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")) {
		t.Fatal("body is not a PDF")
	}
	disp, params, err := mime.ParseMediaType(rec.Header().Get("Content-Disposition"))
	if err != nil || disp != "attachment" || params["filename"] != "invoice-o1.pdf" {
		t.Fatalf("unexpected content disposition %q", rec.Header().Get("Content-Disposition"))
	}
}

func TestInvoiceFilenameIsQuoted(t *testing.T) {
	h := NewHandler(fakeOrders{"a b;c": {ID: "a b;c", User: "u1"}})
	r := httprouter.New()
	r.GET("/api/orders/:id/invoice", h.DownloadInvoice)

	req := httptest.NewRequest(http.MethodGet, "/api/orders/a%20b%3Bc/invoice", nil)
	req = req.WithContext(context.WithValue(req.Context(), globals.UserIDKey, "u1"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	_, params, err := mime.ParseMediaType(rec.Header().Get("Content-Disposition"))
	if err != nil || params["filename"] != "invoice-a b;c.pdf" {
		t.Fatalf("filename not preserved: %q (%v)", rec.Header().Get("Content-Disposition"), err)
	}
}

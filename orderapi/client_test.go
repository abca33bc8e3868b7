package orderapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"treadline/apiclient"
	"treadline/models"
)

func TestGetOrderAndList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/orders/o1":
			w.Write([]byte(`{"order":{"_id":"o1","user":"u1","status":"shipped","totalPrice":240,"items":[]}}`))
		case "/orders":
			w.Write([]byte(`[{"_id":"o1"},{"_id":"o2"}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	ctx := context.Background()

	o, err := c.GetOrder(ctx, "o1")
	if err != nil {
		t.Fatalf("GetOrder returned error: %v", err)
	}
	if o.ID != "o1" || o.Status != models.OrderShipped || o.TotalPrice != 240 {
		t.Fatalf("unexpected order %+v", o)
	}

	list, err := c.ListOrders(ctx)
	if err != nil {
		t.Fatalf("ListOrders returned error: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(list))
	}

	if _, err := c.GetOrder(ctx, "missing"); !apiclient.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

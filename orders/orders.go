// Package orders serves read-only order pages and invoice downloads.
package orders

import (
	"bytes"
	"context"
	"mime"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"treadline/invoice"
	"treadline/models"
	"treadline/utils"
)

// OrderSource is the order collaborator.
type OrderSource interface {
	GetOrder(ctx context.Context, id string) (models.Order, error)
	ListOrders(ctx context.Context) ([]models.Order, error)
}

type Handler struct {
	Orders OrderSource
}

func NewHandler(orders OrderSource) *Handler {
	return &Handler{Orders: orders}
}

// fetch loads an order the caller is allowed to see; it has already written
// the error response when ok is false.
func (h *Handler) fetch(ctx context.Context, w http.ResponseWriter, r *http.Request, id string) (models.Order, bool) {
	userID := utils.GetUserIDFromRequest(r)
	if userID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return models.Order{}, false
	}
	order, err := h.Orders.GetOrder(ctx, id)
	if err != nil {
		utils.RespondWithUpstreamError(w, err, "Could not retrieve order")
		return models.Order{}, false
	}
	if order.User != userID && !utils.IsAdmin(r) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return models.Order{}, false
	}
	return order, true
}

// GET /api/orders/:id
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	order, ok := h.fetch(ctx, w, r, ps.ByName("id"))
	if !ok {
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, order)
}

// GET /api/admin/orders
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	orders, err := h.Orders.ListOrders(ctx)
	if err != nil {
		utils.RespondWithUpstreamError(w, err, "Could not retrieve orders")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]any{"orders": orders, "count": len(orders)})
}

// GET /api/orders/:id/invoice
func (h *Handler) DownloadInvoice(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	order, ok := h.fetch(ctx, w, r, ps.ByName("id"))
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := invoice.Render(&buf, order); err != nil {
		zap.L().Error("render invoice", zap.String("order_id", order.ID), zap.Error(err))
		http.Error(w, "Failed to generate PDF", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": invoice.Filename(order)}))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

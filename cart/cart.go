package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"treadline/models"
	"treadline/pricing"
	"treadline/selection"
	"treadline/utils"
)

// View is what the cart page renders.
type View struct {
	Cart             models.Cart         `json:"cart"`
	SelectedServices selection.Selection `json:"selectedServices"`
	Pricing          pricing.Breakdown   `json:"pricing"`
	Display          pricing.Display     `json:"display"`
	ShowSavings      bool                `json:"showSavings"`
}

func newView(cart models.Cart, sel selection.Selection) View {
	b := pricing.Compute(cart.Items, sel, cart.TotalPrice)
	return View{
		Cart:             cart,
		SelectedServices: sel,
		Pricing:          b,
		Display:          b.Display(),
		ShowSavings:      b.ShowSavings(),
	}
}

// load fetches the cart and the reconciled selection, persisting the selection
// when reconciliation changed it.
func (h *Handler) load(ctx context.Context, userID string) (models.Cart, selection.Selection, error) {
	cart, err := h.Carts.GetCart(ctx, userID)
	if err != nil {
		return models.Cart{}, nil, err
	}
	sel := h.Selections.Load(ctx, userID)
	if !sel.Reconcile(cart.Items) {
		return cart, sel, nil
	}
	// re-read under the lock so a concurrent toggle is not overwritten
	updated, err := h.Selections.Update(ctx, userID, func(s selection.Selection) error {
		s.Reconcile(cart.Items)
		return nil
	})
	if err != nil {
		zap.L().Warn("persist reconciled selection", zap.String("user_id", userID), zap.Error(err))
		return cart, sel, nil
	}
	return cart, updated, nil
}

// GetCart returns the cart with the shopper's service choices and computed totals.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID := utils.GetUserIDFromRequest(r)
	if userID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	cart, sel, err := h.load(ctx, userID)
	if err != nil {
		utils.RespondWithUpstreamError(w, err, "Could not retrieve cart")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, newView(cart, sel))
}

// AddItem adds a product line to the cart.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID := utils.GetUserIDFromRequest(r)
	if userID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req models.CartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if req.Product == "" || !req.ProductType.Valid() || req.Quantity < 1 {
		utils.RespondWithError(w, http.StatusBadRequest, "Missing or invalid fields")
		return
	}

	if err := h.Carts.AddItem(ctx, userID, req); err != nil {
		utils.RespondWithUpstreamError(w, err, "Failed to add to cart")
		return
	}
	zap.L().Info("cart item added", zap.String("user_id", userID), zap.String("product_id", req.Product), zap.Int("quantity", req.Quantity))
	h.respondWithView(ctx, w, userID, http.StatusCreated)
}

// UpdateItem changes a line's quantity within 1..availableStock.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID := utils.GetUserIDFromRequest(r)
	if userID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	productID := ps.ByName("productId")

	var body struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if body.Quantity < 1 {
		utils.RespondWithError(w, http.StatusBadRequest, "Quantity must be at least 1")
		return
	}

	cart, err := h.Carts.GetCart(ctx, userID)
	if err != nil {
		utils.RespondWithUpstreamError(w, err, "Could not retrieve cart")
		return
	}
	item, ok := cart.Item(productID)
	if !ok {
		utils.RespondWithError(w, http.StatusNotFound, "Item not in cart")
		return
	}
	if body.Quantity > item.AvailableStock {
		utils.RespondWithError(w, http.StatusBadRequest, fmt.Sprintf("Only %d left in stock", item.AvailableStock))
		return
	}

	req := models.CartItemRequest{Product: productID, ProductType: item.ProductType, Quantity: body.Quantity}
	if err := h.Carts.UpdateItem(ctx, userID, req); err != nil {
		utils.RespondWithUpstreamError(w, err, "Failed to update cart")
		return
	}
	h.respondWithView(ctx, w, userID, http.StatusOK)
}

// RemoveItem deletes a line and its service choice.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID := utils.GetUserIDFromRequest(r)
	if userID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	productID := ps.ByName("productId")

	if err := h.Carts.RemoveItem(ctx, userID, productID); err != nil {
		utils.RespondWithUpstreamError(w, err, "Failed to remove item")
		return
	}

	if _, err := h.Selections.Update(ctx, userID, func(sel selection.Selection) error {
		sel.Remove(productID)
		return nil
	}); err != nil {
		zap.L().Warn("persist selection after remove", zap.String("user_id", userID), zap.Error(err))
	}
	h.respondWithView(ctx, w, userID, http.StatusOK)
}

// ClearCart empties the cart and forgets the stored selection.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID := utils.GetUserIDFromRequest(r)
	if userID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.Carts.ClearCart(ctx, userID); err != nil {
		utils.RespondWithUpstreamError(w, err, "Failed to clear cart")
		return
	}
	if err := h.Selections.Delete(ctx, userID); err != nil {
		zap.L().Warn("delete selection", zap.String("user_id", userID), zap.Error(err))
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// ToggleInstallation flips installation for one line.
func (h *Handler) ToggleInstallation(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.toggle(w, r, ps.ByName("productId"), func(item models.CartItem, sel selection.Selection) error {
		sel.ToggleInstallation(item.Product)
		return nil
	})
}

// ToggleAddon adds or removes one addon index for one line.
func (h *Handler) ToggleAddon(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	index, err := strconv.Atoi(ps.ByName("index"))
	if err != nil || index < 0 {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid addon index")
		return
	}
	h.toggle(w, r, ps.ByName("productId"), func(item models.CartItem, sel selection.Selection) error {
		if _, ok := item.ProductDetails.Addon(index); !ok {
			return errUnknownAddon
		}
		sel.ToggleAddon(item.Product, index)
		return nil
	})
}

var errUnknownAddon = errors.New("product has no addon service at that index")

// toggle applies one mutation under the user's selection lock, persists it and
// answers with the recomputed totals.
func (h *Handler) toggle(w http.ResponseWriter, r *http.Request, productID string, mutate func(models.CartItem, selection.Selection) error) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID := utils.GetUserIDFromRequest(r)
	if userID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	cart, err := h.Carts.GetCart(ctx, userID)
	if err != nil {
		utils.RespondWithUpstreamError(w, err, "Could not retrieve cart")
		return
	}
	item, ok := cart.Item(productID)
	if !ok {
		utils.RespondWithError(w, http.StatusNotFound, "Item not in cart")
		return
	}

	sel, err := h.Selections.Update(ctx, userID, func(sel selection.Selection) error {
		sel.Reconcile(cart.Items)
		return mutate(item, sel)
	})
	switch {
	case errors.Is(err, errUnknownAddon):
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		zap.L().Error("persist selection", zap.String("user_id", userID), zap.Error(err))
		utils.RespondWithError(w, http.StatusServiceUnavailable, "Could not save your selection, please try again")
		return
	}
	if err := h.Carts.UpdateItemServices(ctx, userID, productID, sel.For(productID)); err != nil {
		zap.L().Warn("mirror item services to cart api", zap.String("user_id", userID), zap.String("product_id", productID), zap.Error(err))
	}

	utils.RespondWithJSON(w, http.StatusOK, newView(cart, sel))
}

func (h *Handler) respondWithView(ctx context.Context, w http.ResponseWriter, userID string, status int) {
	cart, sel, err := h.load(ctx, userID)
	if err != nil {
		// the mutation went through; the refreshed view is best effort
		zap.L().Warn("reload cart after mutation", zap.String("user_id", userID), zap.Error(err))
		utils.RespondWithJSON(w, status, map[string]string{"status": "ok"})
		return
	}
	utils.RespondWithJSON(w, status, newView(cart, sel))
}

package cart

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"treadline/checkout"
	"treadline/models"
	"treadline/mq"
	"treadline/utils"
)

type checkoutRequest struct {
	ShippingAddress models.Address         `json:"shippingAddress"`
	BillingAddress  models.Address         `json:"billingAddress"`
	SameAsBilling   bool                   `json:"sameAsBilling"`
	PaymentMethod   checkout.PaymentMethod `json:"paymentMethod"`
}

// CreatePayment submits the checkout page: the cart and stored service
// selection are re-read here so the total matches what the cart page showed.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 20*time.Second)
	defer cancel()

	userID := utils.GetUserIDFromRequest(r)
	if userID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid checkout payload")
		return
	}
	// blocked before any collaborator is contacted
	if err := checkout.ValidateAddresses(req.BillingAddress, req.ShippingAddress, req.SameAsBilling); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	cart, sel, err := h.load(ctx, userID)
	if err != nil {
		utils.RespondWithUpstreamError(w, err, "Could not retrieve cart")
		return
	}

	res, err := h.Checkout.Submit(ctx, checkout.Submission{
		UserID:        userID,
		Cart:          cart,
		Billing:       req.BillingAddress,
		Shipping:      req.ShippingAddress,
		SameAsBilling: req.SameAsBilling,
		Method:        req.PaymentMethod,
		Selection:     sel,
		AttemptID:     r.Header.Get("Idempotency-Key"),
	})

	var verr *checkout.ValidationError
	var perr *checkout.PaymentError
	switch {
	case err == nil:
		h.Events.Emit(ctx, mq.Event{
			Name:     mq.CheckoutCreated,
			UserID:   userID,
			EntityID: res.AttemptID,
			Data:     map[string]any{"cartId": cart.ID, "total": res.Total, "method": req.PaymentMethod},
		})
		utils.RespondWithJSON(w, http.StatusOK, res)
	case errors.As(err, &verr), errors.Is(err, checkout.ErrEmptyCart), errors.Is(err, checkout.ErrInvalidMethod):
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &perr):
		utils.RespondWithJSON(w, http.StatusBadGateway, map[string]string{
			"error":    perr.Message,
			"redirect": perr.CancelURL,
		})
	default:
		utils.RespondWithError(w, http.StatusInternalServerError, "Checkout failed")
	}
}

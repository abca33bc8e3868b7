// Package checkout turns the final cart, addresses and service selection into
// a payment-creation request and resolves where the shopper is redirected.
package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"treadline/models"
	"treadline/pricing"
	"treadline/selection"
)

var (
	ErrEmptyCart     = errors.New("your cart is empty")
	ErrInvalidMethod = errors.New("unsupported payment method")
)

// Submission is everything gathered on the checkout page.
type Submission struct {
	UserID        string
	Cart          models.Cart
	Billing       models.Address
	Shipping      models.Address
	SameAsBilling bool
	Method        PaymentMethod
	Selection     selection.Selection
	AttemptID     string // optional; generated when empty
}

// Result tells the caller where to send the browser.
type Result struct {
	RedirectURL  string  `json:"redirect"`
	Total        float64 `json:"total"`
	DisplayTotal string  `json:"displayTotal"`
	AttemptID    string  `json:"attemptId"`
}

// PaymentError is a failed payment creation. The attempt is over; the shopper
// is sent to CancelURL and has to submit again.
type PaymentError struct {
	Message   string
	CancelURL string
	Err       error
}

func (e *PaymentError) Error() string {
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *PaymentError) Unwrap() error { return e.Err }

type Submitter struct {
	gateway   Gateway
	cancelURL string
}

func NewSubmitter(gateway Gateway, cancelURL string) *Submitter {
	return &Submitter{gateway: gateway, cancelURL: cancelURL}
}

// Submit validates locally and, only if that passes, makes exactly one
// payment-creation call.
func (s *Submitter) Submit(ctx context.Context, sub Submission) (Result, error) {
	if len(sub.Cart.Items) == 0 {
		return Result{}, ErrEmptyCart
	}
	if !sub.Method.Valid() {
		return Result{}, ErrInvalidMethod
	}
	if err := ValidateAddresses(sub.Billing, sub.Shipping, sub.SameAsBilling); err != nil {
		return Result{}, err
	}

	shipping := sub.Shipping
	if sub.SameAsBilling {
		shipping = sub.Billing
	}
	sel := sub.Selection
	if sel == nil {
		sel = selection.New()
	}

	total := pricing.Total(sub.Cart.Items, sel, sub.Cart.TotalPrice)
	attempt := sub.AttemptID
	if attempt == "" {
		attempt = uuid.NewString()
	}

	req := PaymentRequest{
		CartID:           sub.Cart.ID,
		ShippingAddress:  shipping,
		BillingAddress:   sub.Billing,
		PaymentMethod:    sub.Method,
		SelectedServices: sel,
	}

	log := zap.L().With(
		zap.String("user_id", sub.UserID),
		zap.String("cart_id", sub.Cart.ID),
		zap.String("attempt_id", attempt),
		zap.String("method", string(sub.Method)),
	)

	session, err := s.gateway.CreatePayment(ctx, req, attempt)
	if err == nil {
		var redirect string
		redirect, err = session.RedirectURL()
		if err == nil {
			log.Info("payment created", zap.Float64("total", total))
			return Result{
				RedirectURL:  redirect,
				Total:        total,
				DisplayTotal: pricing.FormatMoney(total),
				AttemptID:    attempt,
			}, nil
		}
	}

	log.Warn("payment creation failed", zap.Error(err))
	return Result{}, &PaymentError{
		Message:   "Failed to create payment. Please try again.",
		CancelURL: s.cancelURL,
		Err:       err,
	}
}

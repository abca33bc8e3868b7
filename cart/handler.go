// Package cart exposes the cart, service toggles and checkout over HTTP.
package cart

import (
	"context"

	"treadline/checkout"
	"treadline/models"
	"treadline/mq"
	"treadline/selection"
)

// CartSource is the cart collaborator.
type CartSource interface {
	GetCart(ctx context.Context, userID string) (models.Cart, error)
	AddItem(ctx context.Context, userID string, req models.CartItemRequest) error
	UpdateItem(ctx context.Context, userID string, req models.CartItemRequest) error
	RemoveItem(ctx context.Context, userID, productID string) error
	ClearCart(ctx context.Context, userID string) error
	UpdateItemServices(ctx context.Context, userID, productID string, choice selection.ServiceSelection) error
}

// Handler holds the collaborators the cart endpoints need.
type Handler struct {
	Carts      CartSource
	Selections *selection.Repository
	Checkout   *checkout.Submitter
	Events     mq.Emitter
}

func NewHandler(carts CartSource, selections *selection.Repository, submitter *checkout.Submitter) *Handler {
	return &Handler{Carts: carts, Selections: selections, Checkout: submitter, Events: mq.Nop{}}
}

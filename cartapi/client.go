// Package cartapi talks to the backend that owns cart documents.
package cartapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"treadline/apiclient"
	"treadline/models"
	"treadline/selection"
)

// Client is the cart collaborator.
type Client struct {
	api *apiclient.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{api: apiclient.New(baseURL, timeout)}
}

func cartPath(userID string) string {
	return "/cart/" + url.PathEscape(userID)
}

func itemPath(userID, productID string) string {
	return cartPath(userID) + "/items/" + url.PathEscape(productID)
}

// GetCart returns the user's cart. A missing cart is returned as an empty one.
func (c *Client) GetCart(ctx context.Context, userID string) (models.Cart, error) {
	var raw json.RawMessage
	if err := c.api.Do(ctx, http.MethodGet, cartPath(userID), nil, &raw); err != nil {
		if apiclient.IsNotFound(err) {
			return models.Cart{User: userID, Items: []models.CartItem{}}, nil
		}
		return models.Cart{}, err
	}

	// the backend answers either with the bare cart or {"cart": {...}}
	var wrapped struct {
		Cart *models.Cart `json:"cart"`
	}
	var cart models.Cart
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Cart != nil {
		cart = *wrapped.Cart
	} else if err := json.Unmarshal(raw, &cart); err != nil {
		return models.Cart{}, fmt.Errorf("decode cart: %w", err)
	}
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}
	return cart, nil
}

func (c *Client) AddItem(ctx context.Context, userID string, req models.CartItemRequest) error {
	return c.api.Do(ctx, http.MethodPost, cartPath(userID)+"/items", req, nil)
}

func (c *Client) UpdateItem(ctx context.Context, userID string, req models.CartItemRequest) error {
	return c.api.Do(ctx, http.MethodPatch, itemPath(userID, req.Product), req, nil)
}

func (c *Client) RemoveItem(ctx context.Context, userID, productID string) error {
	return c.api.Do(ctx, http.MethodDelete, itemPath(userID, productID), nil, nil)
}

func (c *Client) ClearCart(ctx context.Context, userID string) error {
	return c.api.Do(ctx, http.MethodPost, cartPath(userID)+"/clear", nil, nil)
}

// UpdateItemServices mirrors one line's service choice to the backend.
func (c *Client) UpdateItemServices(ctx context.Context, userID, productID string, choice selection.ServiceSelection) error {
	body := struct {
		Installation  bool  `json:"installation"`
		AddonServices []int `json:"addonServices"`
	}{
		Installation:  choice.Installation,
		AddonServices: choice.Addons,
	}
	if body.AddonServices == nil {
		body.AddonServices = []int{}
	}
	return c.api.Do(ctx, http.MethodPatch, itemPath(userID, productID)+"/services", body, nil)
}

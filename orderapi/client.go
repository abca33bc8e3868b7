// Package orderapi reads orders from the backend; orders are never written here.
package orderapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"treadline/apiclient"
	"treadline/models"
)

type Client struct {
	api *apiclient.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{api: apiclient.New(baseURL, timeout)}
}

func (c *Client) GetOrder(ctx context.Context, id string) (models.Order, error) {
	var raw json.RawMessage
	if err := c.api.Do(ctx, http.MethodGet, "/orders/"+url.PathEscape(id), nil, &raw); err != nil {
		return models.Order{}, err
	}
	var wrapped struct {
		Order *models.Order `json:"order"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Order != nil {
		return *wrapped.Order, nil
	}
	var o models.Order
	if err := json.Unmarshal(raw, &o); err != nil {
		return models.Order{}, fmt.Errorf("decode order: %w", err)
	}
	return o, nil
}

// ListOrders returns every order; callers gate this on the admin role.
func (c *Client) ListOrders(ctx context.Context) ([]models.Order, error) {
	var raw json.RawMessage
	if err := c.api.Do(ctx, http.MethodGet, "/orders", nil, &raw); err != nil {
		return nil, err
	}
	var wrapped struct {
		Orders []models.Order `json:"orders"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Orders != nil {
		return wrapped.Orders, nil
	}
	var orders []models.Order
	if err := json.Unmarshal(raw, &orders); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return orders, nil
}

// Package reviewapi is the review collaborator: CRUD keyed by product and product type.
package reviewapi

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

func basePath(productType models.ProductType, productID string) string {
	return "/reviews/" + url.PathEscape(string(productType)) + "/" + url.PathEscape(productID)
}

func (c *Client) List(ctx context.Context, productType models.ProductType, productID string) ([]models.Review, error) {
	var raw json.RawMessage
	if err := c.api.Do(ctx, http.MethodGet, basePath(productType, productID), nil, &raw); err != nil {
		if apiclient.IsNotFound(err) {
			return []models.Review{}, nil
		}
		return nil, err
	}
	var wrapped struct {
		Reviews []models.Review `json:"reviews"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Reviews != nil {
		return wrapped.Reviews, nil
	}
	var out []models.Review
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode reviews: %w", err)
	}
	if out == nil {
		out = []models.Review{}
	}
	return out, nil
}

func (c *Client) Create(ctx context.Context, r models.Review) (models.Review, error) {
	var out models.Review
	if err := c.api.Do(ctx, http.MethodPost, basePath(r.ProductType, r.Product), r, &out); err != nil {
		return models.Review{}, err
	}
	if out.ID == "" {
		return r, nil
	}
	return out, nil
}

// Update changes rating and comment of an existing review.
func (c *Client) Update(ctx context.Context, r models.Review) (models.Review, error) {
	body := struct {
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
	}{r.Rating, r.Comment}

	var out models.Review
	path := basePath(r.ProductType, r.Product) + "/" + url.PathEscape(r.ID)
	if err := c.api.Do(ctx, http.MethodPut, path, body, &out); err != nil {
		return models.Review{}, err
	}
	if out.ID == "" {
		return r, nil
	}
	return out, nil
}

func (c *Client) Delete(ctx context.Context, productType models.ProductType, productID, reviewID string) error {
	path := basePath(productType, productID) + "/" + url.PathEscape(reviewID)
	return c.api.Do(ctx, http.MethodDelete, path, nil, nil)
}

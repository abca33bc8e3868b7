package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Address is a plain postal address value.
type Address struct {
	Street     string `json:"street" bson:"street"`
	City       string `json:"city" bson:"city"`
	State      string `json:"state" bson:"state"`
	PostalCode string `json:"postalCode" bson:"postalCode"`
	Country    string `json:"country" bson:"country"`
}

// Lines returns the address formatted for printing, skipping empty parts.
func (a Address) Lines() []string {
	var out []string
	if s := strings.TrimSpace(a.Street); s != "" {
		out = append(out, s)
	}
	locality := strings.TrimSpace(strings.Join(nonEmpty(a.City, a.State, a.PostalCode), ", "))
	if locality != "" {
		out = append(out, locality)
	}
	if c := strings.TrimSpace(a.Country); c != "" {
		out = append(out, c)
	}
	return out
}

func nonEmpty(parts ...string) []string {
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

// ServiceCharge is an installation or addon service recorded on an order line.
type ServiceCharge struct {
	Name  string  `json:"name" bson:"name"`
	Price float64 `json:"price" bson:"price"` // per unit
}

// OrderItem is a purchased line, including the services chosen at checkout.
type OrderItem struct {
	Product       string          `json:"product" bson:"product"`
	ProductType   ProductType     `json:"productType" bson:"productType"`
	Name          string          `json:"name" bson:"name"`
	Quantity      int             `json:"quantity" bson:"quantity"`
	Price         float64         `json:"price" bson:"price"`
	Thumbnail     string          `json:"thumbnail,omitempty" bson:"thumbnail,omitempty"`
	Installation  *ServiceCharge  `json:"installation,omitempty" bson:"installation,omitempty"`
	AddonServices []ServiceCharge `json:"addonServices,omitempty" bson:"addonServices,omitempty"`
}

// Order is read-only here; the backend creates and mutates it.
type Order struct {
	ID              string          `json:"_id" bson:"_id"`
	User            string          `json:"user" bson:"user"`
	Payment         json.RawMessage `json:"payment,omitempty" bson:"-"`
	Items           []OrderItem     `json:"items" bson:"items"`
	TotalPrice      float64         `json:"totalPrice" bson:"totalPrice"`
	TotalItems      int             `json:"totalItems" bson:"totalItems"`
	Status          OrderStatus     `json:"status" bson:"status"`
	ShippingAddress Address         `json:"shippingAddress" bson:"shippingAddress"`
	BillingAddress  Address         `json:"billingAddress" bson:"billingAddress"`
	TrackingNumber  string          `json:"trackingNumber,omitempty" bson:"trackingNumber,omitempty"`
	CreatedAt       time.Time       `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt" bson:"updatedAt"`
}

// Package pricing computes the displayed cart total from the cart lines and
// the shopper's optional service choices.
//
// Unit prices arrive with the bulk discount already applied by the backend, so
// the engine only adds: base price, installation and addon services, each
// multiplied by the line quantity. Values are accumulated as float64 and only
// rounded when formatted for display.
package pricing

import (
	"treadline/models"
	"treadline/selection"
)

// Line is the price breakdown of one cart line.
type Line struct {
	Product      string  `json:"product"`
	Quantity     int     `json:"quantity"`
	Base         float64 `json:"base"`
	Installation float64 `json:"installation"`
	Addons       float64 `json:"addons"`
	Total        float64 `json:"total"`
	Savings      float64 `json:"savings"`
}

// Breakdown is the result of Compute.
type Breakdown struct {
	Lines        []Line  `json:"lines"`
	Base         float64 `json:"base"`
	Installation float64 `json:"installation"`
	Addons       float64 `json:"addons"`
	Total        float64 `json:"total"`
	Savings      float64 `json:"savings"`
}

// ShowSavings reports whether the savings figure should be displayed.
func (b Breakdown) ShowSavings() bool {
	return b.Savings > 0
}

// Compute prices items under sel. An empty cart falls back to the backend
// total so a cart that has not finished loading never shows 0.
func Compute(items []models.CartItem, sel selection.Selection, fallback float64) Breakdown {
	if len(items) == 0 {
		return Breakdown{Lines: []Line{}, Total: fallback}
	}

	b := Breakdown{Lines: make([]Line, 0, len(items))}
	for _, it := range items {
		l := priceLine(it, sel.For(it.Product))
		b.Lines = append(b.Lines, l)
		b.Base += l.Base
		b.Installation += l.Installation
		b.Addons += l.Addons
		b.Total += l.Total
	}
	b.Savings = Savings(items)
	return b
}

// Total is Compute(...).Total.
func Total(items []models.CartItem, sel selection.Selection, fallback float64) float64 {
	return Compute(items, sel, fallback).Total
}

// Savings sums (list price - charged price) x quantity. It is informational
// only and never feeds into the total.
func Savings(items []models.CartItem) float64 {
	var s float64
	for _, it := range items {
		s += lineSavings(it)
	}
	return s
}

func priceLine(it models.CartItem, choice selection.ServiceSelection) Line {
	qty := float64(it.Quantity)
	l := Line{
		Product:  it.Product,
		Quantity: it.Quantity,
		Base:     it.Price * qty,
		Savings:  lineSavings(it),
	}
	if choice.Installation && it.ProductDetails.HasInstallation() {
		l.Installation = it.ProductDetails.InstallationCost() * qty
	}
	for _, idx := range choice.Addons {
		// indexes that no longer resolve contribute nothing
		if addon, ok := it.ProductDetails.Addon(idx); ok {
			l.Addons += addon.Price * qty
		}
	}
	l.Total = l.Base + l.Installation + l.Addons
	return l
}

func lineSavings(it models.CartItem) float64 {
	return (it.ProductDetails.Price - it.Price) * float64(it.Quantity)
}

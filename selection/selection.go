// Package selection tracks which optional services (installation, addons) a
// shopper has switched on for each cart line, and persists that choice so the
// checkout step sees the same selection the cart page showed.
package selection

import (
	"slices"

	"treadline/models"
)

// ServiceSelection is the per-line choice. Addons is a sorted set of indexes
// into the product's addon list.
type ServiceSelection struct {
	Installation bool  `json:"installation"`
	Addons       []int `json:"addons,omitempty"`
}

// HasAddon reports whether addon index i is selected.
func (s ServiceSelection) HasAddon(i int) bool {
	_, found := slices.BinarySearch(s.Addons, i)
	return found
}

func (s ServiceSelection) clone() ServiceSelection {
	if len(s.Addons) == 0 {
		return ServiceSelection{Installation: s.Installation}
	}
	return ServiceSelection{Installation: s.Installation, Addons: slices.Clone(s.Addons)}
}

// Selection maps product ID to that line's service choice.
type Selection map[string]ServiceSelection

// New returns an empty selection.
func New() Selection {
	return make(Selection)
}

// For returns the choice for productID; the zero value when none is recorded.
func (s Selection) For(productID string) ServiceSelection {
	return s[productID]
}

// ToggleInstallation flips the installation flag for productID.
func (s Selection) ToggleInstallation(productID string) {
	cur := s[productID]
	cur.Installation = !cur.Installation
	s[productID] = cur
}

// ToggleAddon adds index to the line's addon set, or removes it if already present.
// Negative indexes are ignored.
func (s Selection) ToggleAddon(productID string, index int) {
	if index < 0 {
		return
	}
	cur := s[productID].clone()
	pos, found := slices.BinarySearch(cur.Addons, index)
	if found {
		cur.Addons = slices.Delete(cur.Addons, pos, pos+1)
		if len(cur.Addons) == 0 {
			cur.Addons = nil
		}
	} else {
		cur.Addons = slices.Insert(cur.Addons, pos, index)
	}
	s[productID] = cur
}

// Remove drops the entry for productID.
func (s Selection) Remove(productID string) {
	delete(s, productID)
}

// Reconcile aligns the selection with the cart: lines without an entry get an
// all-false one, entries for lines no longer in the cart are dropped. It
// reports whether anything changed.
func (s Selection) Reconcile(items []models.CartItem) bool {
	changed := false
	present := make(map[string]struct{}, len(items))
	for _, it := range items {
		present[it.Product] = struct{}{}
		if _, ok := s[it.Product]; !ok {
			s[it.Product] = ServiceSelection{}
			changed = true
		}
	}
	for id := range s {
		if _, ok := present[id]; !ok {
			delete(s, id)
			changed = true
		}
	}
	return changed
}

// Clone returns a deep copy.
func (s Selection) Clone() Selection {
	out := make(Selection, len(s))
	for id, sel := range s {
		out[id] = sel.clone()
	}
	return out
}

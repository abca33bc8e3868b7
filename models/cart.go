package models

// ProductType distinguishes the two sellable catalog entities.
type ProductType string

const (
	ProductTire  ProductType = "tire"
	ProductWheel ProductType = "wheel"
)

// Valid reports whether t is one of the known product types.
func (t ProductType) Valid() bool {
	return t == ProductTire || t == ProductWheel
}

// AddonService is an optional paid extra attached to a product, e.g. balancing.
type AddonService struct {
	Name  string  `json:"name" bson:"name"`
	Price float64 `json:"price" bson:"price"`
}

// ProductDetails is the part of the full product record the cart needs for pricing.
type ProductDetails struct {
	ID                  string         `json:"_id,omitempty" bson:"_id,omitempty"`
	Price               float64        `json:"price" bson:"price"` // list price before bulk discount
	InstallationPrice   *float64       `json:"installationPrice,omitempty" bson:"installationPrice,omitempty"`
	InstallationService string         `json:"installationService,omitempty" bson:"installationService,omitempty"`
	AddonServices       []AddonService `json:"addonServices,omitempty" bson:"addonServices,omitempty"`
}

// InstallationCost returns the per-unit installation price, zero when the product has none.
func (p ProductDetails) InstallationCost() float64 {
	if p.InstallationPrice == nil {
		return 0
	}
	return *p.InstallationPrice
}

// HasInstallation reports whether the product offers installation at all.
func (p ProductDetails) HasInstallation() bool {
	return p.InstallationPrice != nil
}

// Addon returns the addon at index i; ok is false for out-of-range indexes.
func (p ProductDetails) Addon(i int) (AddonService, bool) {
	if i < 0 || i >= len(p.AddonServices) {
		return AddonService{}, false
	}
	return p.AddonServices[i], true
}

// CartItem is a single cart line as returned by the cart API.
type CartItem struct {
	Product        string         `json:"product" bson:"product"`
	ProductType    ProductType    `json:"productType" bson:"productType"`
	Quantity       int            `json:"quantity" bson:"quantity"`
	Price          float64        `json:"price" bson:"price"` // unit price, bulk discount already applied
	Name           string         `json:"name" bson:"name"`
	Thumbnail      string         `json:"thumbnail,omitempty" bson:"thumbnail,omitempty"`
	ProductDetails ProductDetails `json:"productDetails" bson:"productDetails"`
	AvailableStock int            `json:"availableStock" bson:"availableStock"`
}

// Cart is the cart document owned by the backend, keyed by user.
type Cart struct {
	ID         string     `json:"_id,omitempty" bson:"_id,omitempty"`
	User       string     `json:"user" bson:"user"`
	Items      []CartItem `json:"items" bson:"items"`
	TotalItems int        `json:"totalItems" bson:"totalItems"`
	TotalPrice float64    `json:"totalPrice" bson:"totalPrice"`
}

// Item returns the cart line for productID.
func (c Cart) Item(productID string) (CartItem, bool) {
	for _, it := range c.Items {
		if it.Product == productID {
			return it, true
		}
	}
	return CartItem{}, false
}

// CartItemRequest is the body sent to the cart API when adding or updating a line.
type CartItemRequest struct {
	Product     string      `json:"product"`
	ProductType ProductType `json:"productType"`
	Quantity    int         `json:"quantity"`
}

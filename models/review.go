package models

import "time"

// Review of a tire or wheel. One review per user per product is a convention
// checked before creation, not something the backend guarantees.
type Review struct {
	ID          string      `json:"_id,omitempty" bson:"_id,omitempty"`
	Product     string      `json:"product" bson:"product"`
	ProductType ProductType `json:"productType" bson:"productType"`
	Rating      int         `json:"rating" bson:"rating"` // 1..5
	Comment     string      `json:"comment" bson:"comment"`
	User        string      `json:"user" bson:"user"`
	CreatedAt   time.Time   `json:"createdAt,omitempty" bson:"createdAt,omitempty"`
	UpdatedAt   time.Time   `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
}

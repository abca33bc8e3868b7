package models

import "time"

// IdempotencyRecord is a stored Idempotency-Key and, once the handler finished, its response.
type IdempotencyRecord struct {
	Key         string              `bson:"key" json:"key"`
	Method      string              `bson:"method" json:"method"`
	Path        string              `bson:"path" json:"path"`
	UserID      string              `bson:"userid" json:"userid"`
	RequestHash string              `bson:"request_hash" json:"request_hash"`
	Response    *IdempotentResponse `bson:"response,omitempty" json:"response,omitempty"`
	CreatedAt   time.Time           `bson:"created_at" json:"created_at"`
	ExpiresAt   time.Time           `bson:"expires_at" json:"expires_at"`
}

// IdempotentResponse is the captured status and body replayed for duplicate requests.
type IdempotentResponse struct {
	Status int    `bson:"status" json:"status"`
	Body   []byte `bson:"body" json:"body"`
}

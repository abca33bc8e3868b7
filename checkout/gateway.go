package checkout

import (
	"context"
	"errors"
	"net/http"
	"time"

	"treadline/apiclient"
	"treadline/models"
	"treadline/selection"
)

// PaymentMethod selects the payment collaborator flow.
type PaymentMethod string

const (
	MethodStripe PaymentMethod = "stripe"
	MethodPayPal PaymentMethod = "paypal"
)

func (m PaymentMethod) Valid() bool {
	return m == MethodStripe || m == MethodPayPal
}

// PaymentRequest is the payment-creation payload.
type PaymentRequest struct {
	CartID           string              `json:"cartId"`
	ShippingAddress  models.Address      `json:"shippingAddress"`
	BillingAddress   models.Address      `json:"billingAddress"`
	PaymentMethod    PaymentMethod       `json:"paymentMethod"`
	SelectedServices selection.Selection `json:"selectedServices"`
}

// Link is one entry of a PayPal-style HATEOAS link list.
type Link struct {
	Rel    string `json:"rel"`
	Href   string `json:"href"`
	Method string `json:"method,omitempty"`
}

// PaymentSession is the collaborator's answer: a Stripe-style url or PayPal-style links.
type PaymentSession struct {
	URL   string `json:"url,omitempty"`
	Links []Link `json:"links,omitempty"`
}

var ErrNoRedirect = errors.New("payment provider returned no redirect")

// RedirectURL picks where to send the shopper.
func (s PaymentSession) RedirectURL() (string, error) {
	if s.URL != "" {
		return s.URL, nil
	}
	for _, rel := range []string{"approve", "approval_url", "payer-action"} {
		for _, l := range s.Links {
			if l.Rel == rel && l.Href != "" {
				return l.Href, nil
			}
		}
	}
	return "", ErrNoRedirect
}

// Gateway creates payments.
type Gateway interface {
	CreatePayment(ctx context.Context, req PaymentRequest, idempotencyKey string) (PaymentSession, error)
}

// HTTPGateway is the payment collaborator reached over HTTP.
type HTTPGateway struct {
	api *apiclient.Client
}

func NewHTTPGateway(baseURL string, timeout time.Duration) *HTTPGateway {
	return &HTTPGateway{api: apiclient.New(baseURL, timeout)}
}

func (g *HTTPGateway) CreatePayment(ctx context.Context, req PaymentRequest, idempotencyKey string) (PaymentSession, error) {
	var headers http.Header
	if idempotencyKey != "" {
		headers = http.Header{"Idempotency-Key": []string{idempotencyKey}}
	}
	var out PaymentSession
	if err := g.api.DoWithHeaders(ctx, http.MethodPost, "/create", headers, req, &out); err != nil {
		return PaymentSession{}, err
	}
	return out, nil
}

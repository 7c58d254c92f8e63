// Package yookassa is a small client for the YooKassa v3 payments API.
package yookassa

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"content-proxy/api/internal/provider"
)

const DefaultBaseURL = "https://api.yookassa.ru/v3"

const (
	EventPaymentSucceeded = "payment.succeeded"
	ConfirmationRedirect  = "redirect"
	CurrencyRUB           = "RUB"
)

type Amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type Confirmation struct {
	Type            string `json:"type"`
	ReturnURL       string `json:"return_url,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

type ReceiptItem struct {
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	Amount      Amount `json:"amount"`
	VatCode     int    `json:"vat_code"`
}

type Customer struct {
	Email string `json:"email,omitempty"`
}

type Receipt struct {
	Customer Customer      `json:"customer"`
	Items    []ReceiptItem `json:"items"`
}

type PaymentMethodData struct {
	Type string `json:"type"`
}

type CreatePaymentRequest struct {
	Amount            Amount             `json:"amount"`
	Confirmation      Confirmation       `json:"confirmation"`
	Capture           bool               `json:"capture"`
	Description       string             `json:"description,omitempty"`
	Metadata          map[string]string  `json:"metadata,omitempty"`
	Receipt           *Receipt           `json:"receipt,omitempty"`
	PaymentMethodData *PaymentMethodData `json:"payment_method_data,omitempty"`
}

type Payment struct {
	ID                  string            `json:"id"`
	Status              string            `json:"status"`
	Paid                bool              `json:"paid"`
	Amount              Amount            `json:"amount"`
	Confirmation        *Confirmation     `json:"confirmation,omitempty"`
	Description         string            `json:"description,omitempty"`
	Metadata            map[string]string `json:"metadata,omitempty"`
	ReceiptRegistration string            `json:"receipt_registration,omitempty"`
}

// ConfirmationURL is empty when the payment needs no redirect.
func (p Payment) ConfirmationURL() string {
	if p.Confirmation == nil {
		return ""
	}
	return p.Confirmation.ConfirmationURL
}

// Notification is the webhook envelope.
type Notification struct {
	Type   string  `json:"type"`
	Event  string  `json:"event"`
	Object Payment `json:"object"`
}

type Client struct {
	ShopID    string
	SecretKey string
	BaseURL   string
	httpc     *http.Client
	newKey    func() string
}

func New(shopID, secretKey string) *Client {
	return &Client{
		ShopID:    shopID,
		SecretKey: secretKey,
		BaseURL:   DefaultBaseURL,
		httpc:     provider.NewHTTPClient(30 * time.Second),
		newKey:    uuid.NewString,
	}
}

func (c *Client) WithBaseURL(u string) *Client {
	c.BaseURL = strings.TrimRight(u, "/")
	return c
}

func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.httpc = h
	return c
}

func (c *Client) Configured() bool { return c.ShopID != "" && c.SecretKey != "" }

func (c *Client) do(ctx context.Context, method, op, path string, body any) (Payment, error) {
	if !c.Configured() {
		if c.ShopID == "" {
			return Payment{}, &provider.ConfigError{Env: "YOOKASSA_SHOP_ID"}
		}
		return Payment{}, &provider.ConfigError{Env: "YOOKASSA_SECRET_KEY"}
	}
	req, err := provider.NewJSONRequest(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return Payment{}, err
	}
	req.SetBasicAuth(c.ShopID, c.SecretKey)
	if method == http.MethodPost {
		req.Header.Set("Idempotence-Key", c.newKey())
	}
	raw, _, err := provider.Do(c.httpc, "yookassa", op, req)
	if err != nil {
		return Payment{}, err
	}
	var p Payment
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payment{}, fmt.Errorf("yookassa %s: bad JSON: %w", op, err)
	}
	return p, nil
}

// CreatePayment sends a new payment with a fresh idempotence key.
func (c *Client) CreatePayment(ctx context.Context, in CreatePaymentRequest) (Payment, error) {
	return c.do(ctx, http.MethodPost, "create", "/payments", in)
}

func (c *Client) GetPayment(ctx context.Context, id string) (Payment, error) {
	return c.do(ctx, http.MethodGet, "get", "/payments/"+url.PathEscape(id), nil)
}

// RUB formats an amount in roubles.
func RUB(v float64) Amount {
	return Amount{Value: fmt.Sprintf("%.2f", v), Currency: CurrencyRUB}
}

package paystack

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/sokoplace/sokoplace-backend/pkg/errors"
)

const (
	defaultBaseURL              = "https://api.paystack.co"
	requestBodyReadLimit  int64 = 2048
	SignatureHeader             = "X-Paystack-Signature"
)

// Client wraps the Paystack REST API surface the platform depends on:
// transaction initialize/verify and refunds.
type Client struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds a Paystack client given the account secret key.
func NewClient(secretKey string, opts ...Option) (*Client, error) {
	trimmedKey := strings.TrimSpace(secretKey)
	if trimmedKey == "" {
		return nil, fmt.Errorf("paystack secret key is required")
	}

	client := &Client{
		secretKey:  trimmedKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client, nil
}

// InitializeRequest describes a transaction-initialize call. Amount is in
// naira; the client converts to kobo at the wire boundary.
type InitializeRequest struct {
	Email       string
	Amount      decimal.Decimal
	Reference   string
	CallbackURL string
}

// Authorization is the redirect handle returned by initialize.
type Authorization struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

// Transaction is the normalized verify/charge payload.
type Transaction struct {
	Reference string
	Status    string
	Amount    decimal.Decimal
	PaidAt    string
	Channel   string
}

// Refund is the normalized refund payload.
type Refund struct {
	Reference      string
	TransactionRef string
	Status         string
	Amount         decimal.Decimal
}

// ToKobo converts a naira amount to the gateway's integer minor units (x100).
func ToKobo(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// FromKobo converts gateway minor units back to naira.
func FromKobo(kobo int64) decimal.Decimal {
	return decimal.NewFromInt(kobo).Div(decimal.NewFromInt(100))
}

// VerifySignature checks the webhook HMAC-SHA512 signature over the raw body.
func VerifySignature(body []byte, signature, secret string) bool {
	if strings.TrimSpace(signature) == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature)))
}

// Initialize starts a hosted-checkout transaction and returns the redirect URL.
func (c *Client) Initialize(ctx context.Context, req InitializeRequest) (*Authorization, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "paystack client not configured")
	}
	if strings.TrimSpace(req.Email) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer email is required")
	}
	if strings.TrimSpace(req.Reference) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference is required")
	}
	if !req.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	payload := map[string]any{
		"email":     req.Email,
		"amount":    ToKobo(req.Amount),
		"reference": req.Reference,
		"currency":  "NGN",
	}
	if req.CallbackURL != "" {
		payload["callback_url"] = req.CallbackURL
	}

	var apiResp struct {
		Data struct {
			AuthorizationURL string `json:"authorization_url"`
			AccessCode       string `json:"access_code"`
			Reference        string `json:"reference"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", payload, &apiResp); err != nil {
		return nil, err
	}

	return &Authorization{
		AuthorizationURL: apiResp.Data.AuthorizationURL,
		AccessCode:       apiResp.Data.AccessCode,
		Reference:        apiResp.Data.Reference,
	}, nil
}

// Verify fetches the gateway's view of a transaction by reference.
func (c *Client) Verify(ctx context.Context, reference string) (*Transaction, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "paystack client not configured")
	}
	trimmed := strings.TrimSpace(reference)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference is required")
	}

	var apiResp struct {
		Data struct {
			Reference string `json:"reference"`
			Status    string `json:"status"`
			Amount    int64  `json:"amount"`
			PaidAt    string `json:"paid_at"`
			Channel   string `json:"channel"`
		} `json:"data"`
	}
	path := "/transaction/verify/" + url.PathEscape(trimmed)
	if err := c.do(ctx, http.MethodGet, path, nil, &apiResp); err != nil {
		return nil, err
	}

	return &Transaction{
		Reference: apiResp.Data.Reference,
		Status:    apiResp.Data.Status,
		Amount:    FromKobo(apiResp.Data.Amount),
		PaidAt:    apiResp.Data.PaidAt,
		Channel:   apiResp.Data.Channel,
	}, nil
}

// RefundRequest asks the gateway to return funds for a transaction. A zero
// Amount refunds the full transaction.
type RefundRequest struct {
	TransactionRef string
	Amount         decimal.Decimal
	Reason         string
}

// CreateRefund submits a refund. Paystack may settle it asynchronously; the
// returned status can be "processed", "pending" or "processing".
func (c *Client) CreateRefund(ctx context.Context, req RefundRequest) (*Refund, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "paystack client not configured")
	}
	if strings.TrimSpace(req.TransactionRef) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction reference is required")
	}

	payload := map[string]any{
		"transaction": req.TransactionRef,
	}
	if req.Amount.IsPositive() {
		payload["amount"] = ToKobo(req.Amount)
	}
	if strings.TrimSpace(req.Reason) != "" {
		payload["merchant_note"] = req.Reason
	}

	var apiResp struct {
		Data struct {
			Reference   string `json:"reference"`
			Transaction struct {
				Reference string `json:"reference"`
			} `json:"transaction"`
			Status string `json:"status"`
			Amount int64  `json:"amount"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/refund", payload, &apiResp); err != nil {
		return nil, err
	}

	return &Refund{
		Reference:      apiResp.Data.Reference,
		TransactionRef: apiResp.Data.Transaction.Reference,
		Status:         apiResp.Data.Status,
		Amount:         FromKobo(apiResp.Data.Amount),
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any, dest any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal paystack request")
		}
		body = bytes.NewReader(raw)
	}

	endpoint := strings.TrimRight(c.baseURL, "/") + "/" + strings.TrimLeft(path, "/")
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build paystack request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute paystack request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, requestBodyReadLimit))
		return pkgerrors.Wrap(
			pkgerrors.CodeDependency,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
			"paystack request failed",
		)
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode paystack response")
	}
	return nil
}

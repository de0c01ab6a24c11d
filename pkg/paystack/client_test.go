package paystack

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/sokoplace/sokoplace-backend/pkg/errors"
)

func TestToKoboMultipliesByHundred(t *testing.T) {
	cases := []struct {
		naira string
		kobo  int64
	}{
		{"0", 0},
		{"1", 100},
		{"25.5", 2550},
		{"1234.56", 123456},
		{"13400", 1340000},
		{"0.01", 1},
	}
	for _, tc := range cases {
		amount, err := decimal.NewFromString(tc.naira)
		require.NoError(t, err)
		assert.Equal(t, tc.kobo, ToKobo(amount), "naira %s", tc.naira)
	}
}

func TestFromKoboDividesByHundred(t *testing.T) {
	assert.True(t, FromKobo(1340000).Equal(decimal.NewFromInt(13400)))
	assert.True(t, FromKobo(2550).Equal(decimal.RequireFromString("25.5")))
	assert.True(t, FromKobo(1).Equal(decimal.RequireFromString("0.01")))
}

func TestKoboRoundTrip(t *testing.T) {
	for _, raw := range []string{"500", "999.99", "0.05", "78200.4"} {
		amount := decimal.RequireFromString(raw)
		assert.True(t, FromKobo(ToKobo(amount)).Equal(amount), "round trip %s", raw)
	}
}

func TestVerifySignature(t *testing.T) {
	secret := "sk_test_secret"
	body := []byte(`{"event":"charge.success","data":{"reference":"SOKO-1001"}}`)

	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	signature := hex.EncodeToString(mac.Sum(nil))

	assert.True(t, VerifySignature(body, signature, secret))
	assert.False(t, VerifySignature(body, signature, "other_secret"))
	assert.False(t, VerifySignature([]byte(`{"tampered":true}`), signature, secret))
	assert.False(t, VerifySignature(body, "", secret))
}

func TestInitializeSendsKoboAmount(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transaction/initialize", r.URL.Path)
		require.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": true,
			"data": map[string]any{
				"authorization_url": "https://checkout.paystack.com/abc123",
				"access_code":       "abc123",
				"reference":         "SOKO-1001",
			},
		})
	}))
	defer server.Close()

	client, err := NewClient("sk_test_123", WithBaseURL(server.URL))
	require.NoError(t, err)

	auth, err := client.Initialize(context.Background(), InitializeRequest{
		Email:     "buyer@example.com",
		Amount:    decimal.RequireFromString("13400"),
		Reference: "SOKO-1001",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://checkout.paystack.com/abc123", auth.AuthorizationURL)
	assert.Equal(t, "SOKO-1001", auth.Reference)
	// 13,400 naira must cross the wire as 1,340,000 kobo.
	assert.Equal(t, float64(1340000), captured["amount"])
	assert.Equal(t, "NGN", captured["currency"])
}

func TestInitializeValidatesInput(t *testing.T) {
	client, err := NewClient("sk_test_123")
	require.NoError(t, err)

	_, err = client.Initialize(context.Background(), InitializeRequest{
		Amount:    decimal.NewFromInt(100),
		Reference: "SOKO-1",
	})
	assert.Error(t, err, "missing email")

	_, err = client.Initialize(context.Background(), InitializeRequest{
		Email:     "buyer@example.com",
		Amount:    decimal.Zero,
		Reference: "SOKO-1",
	})
	assert.Error(t, err, "non-positive amount")
}

func TestVerifyNormalizesAmountToNaira(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transaction/verify/SOKO-1001", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": true,
			"data": map[string]any{
				"reference": "SOKO-1001",
				"status":    "success",
				"amount":    1340000,
				"paid_at":   "2026-08-28T10:15:00.000Z",
				"channel":   "card",
			},
		})
	}))
	defer server.Close()

	client, err := NewClient("sk_test_123", WithBaseURL(server.URL))
	require.NoError(t, err)

	txn, err := client.Verify(context.Background(), "SOKO-1001")
	require.NoError(t, err)

	assert.Equal(t, "success", txn.Status)
	assert.True(t, txn.Amount.Equal(decimal.NewFromInt(13400)), "amount %s", txn.Amount)
}

func TestVerifySurfacesGatewayErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"status":false,"message":"Transaction reference not found"}`))
	}))
	defer server.Close()

	client, err := NewClient("sk_test_123", WithBaseURL(server.URL))
	require.NoError(t, err)

	_, err = client.Verify(context.Background(), "SOKO-missing")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeDependency, pkgerrors.As(err).Code())
	require.NotNil(t, errors.Unwrap(err), "gateway response carried as the cause")
	assert.Contains(t, errors.Unwrap(err).Error(), "status 404")
	assert.Contains(t, errors.Unwrap(err).Error(), "Transaction reference not found")
}

func TestCreateRefund(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/refund", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": true,
			"data": map[string]any{
				"reference":   "RF-77",
				"transaction": map[string]any{"reference": "SOKO-1001"},
				"status":      "pending",
				"amount":      1340000,
			},
		})
	}))
	defer server.Close()

	client, err := NewClient("sk_test_123", WithBaseURL(server.URL))
	require.NoError(t, err)

	refund, err := client.CreateRefund(context.Background(), RefundRequest{
		TransactionRef: "SOKO-1001",
		Amount:         decimal.NewFromInt(13400),
		Reason:         "order cancelled",
	})
	require.NoError(t, err)

	assert.Equal(t, "SOKO-1001", captured["transaction"])
	assert.Equal(t, float64(1340000), captured["amount"])
	assert.Equal(t, "pending", refund.Status)
	assert.Equal(t, "SOKO-1001", refund.TransactionRef)
}

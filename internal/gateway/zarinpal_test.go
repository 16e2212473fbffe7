package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davazhoo/storefront/internal/config"
)

func TestClient_CreatePayment_Success(t *testing.T) {
	var captured requestPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"code":100,"authority":"A0001"},"errors":[]}`))
	}))
	defer server.Close()

	c := NewClientWithURLs("merchant-1", server.URL, server.URL, "https://pay.example/start/", nil)
	intent, err := c.CreatePayment(context.Background(), PaymentRequest{
		Amount:      315_000,
		Description: "Order 20260901-AB12CD",
		CallbackURL: "http://localhost:3000/payments/callback",
		Mobile:      "09121234567",
		OrderNumber: "20260901-AB12CD",
	})

	require.NoError(t, err)
	assert.Equal(t, "A0001", intent.Authority)
	assert.Equal(t, "https://pay.example/start/A0001", intent.PaymentURL)

	assert.Equal(t, "merchant-1", captured.MerchantID)
	assert.EqualValues(t, 3_150_000, captured.Amount, "Toman converts to Rial on the wire")
	assert.Equal(t, "09121234567", captured.Metadata.Mobile)
	assert.Equal(t, "20260901-AB12CD", captured.Metadata.OrderID)
}

func TestClient_CreatePayment_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[],"errors":{"code":-9,"message":"The input params invalid"}}`))
	}))
	defer server.Close()

	c := NewClientWithURLs("merchant-1", server.URL, server.URL, "https://pay.example/start/", nil)
	_, err := c.CreatePayment(context.Background(), PaymentRequest{Amount: 1000})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "The input params invalid")
}

func TestClient_CreatePayment_TransportError(t *testing.T) {
	server := httptest.NewServer(nil)
	server.Close() // refuse connections

	c := NewClientWithURLs("merchant-1", server.URL, server.URL, "https://pay.example/start/", nil)
	_, err := c.CreatePayment(context.Background(), PaymentRequest{Amount: 1000})

	require.Error(t, err)
}

func TestClient_Verify_Fresh(t *testing.T) {
	var captured verifyPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"code":100,"ref_id":201,"card_pan":"502229******1234","fee":1000},"errors":[]}`))
	}))
	defer server.Close()

	c := NewClientWithURLs("merchant-1", server.URL, server.URL, "https://pay.example/start/", nil)
	result, err := c.Verify(context.Background(), "A0001", 315_000)

	require.NoError(t, err)
	assert.True(t, result.Verified)
	assert.False(t, result.AlreadyVerified)
	assert.Equal(t, "201", result.RefID)
	assert.Equal(t, "502229******1234", result.CardPan)
	assert.EqualValues(t, 3_150_000, captured.Amount)
	assert.Equal(t, "A0001", captured.Authority)
}

func TestClient_Verify_AlreadyVerified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"code":101,"ref_id":201},"errors":[]}`))
	}))
	defer server.Close()

	c := NewClientWithURLs("merchant-1", server.URL, server.URL, "https://pay.example/start/", nil)
	result, err := c.Verify(context.Background(), "A0001", 315_000)

	require.NoError(t, err)
	assert.True(t, result.Verified, "code 101 still counts as success")
	assert.True(t, result.AlreadyVerified)
}

func TestClient_Verify_Declined(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[],"errors":{"code":-51,"message":"Session is not valid, session is not active paid try."}}`))
	}))
	defer server.Close()

	c := NewClientWithURLs("merchant-1", server.URL, server.URL, "https://pay.example/start/", nil)
	result, err := c.Verify(context.Background(), "A0001", 315_000)

	require.NoError(t, err, "a decline is an answer, not a transport failure")
	assert.False(t, result.Verified)
	assert.Equal(t, -51, result.Code)
	assert.Contains(t, result.Message, "Session is not valid")
}

func TestNewClient_SandboxEndpoints(t *testing.T) {
	c := NewClient(config.GatewayConfig{Sandbox: true, Timeout: 10})

	assert.Equal(t, sandboxRequestURL, c.requestURL)
	assert.Equal(t, sandboxVerifyURL, c.verifyURL)
	assert.NotEmpty(t, c.merchantID, "sandbox fills in a placeholder merchant id")
}

func TestNewClient_ProductionEndpoints(t *testing.T) {
	c := NewClient(config.GatewayConfig{MerchantID: "merchant-1", Sandbox: false, Timeout: 10})

	assert.Equal(t, productionRequestURL, c.requestURL)
	assert.Equal(t, productionVerifyURL, c.verifyURL)
	assert.Equal(t, "merchant-1", c.merchantID)
}

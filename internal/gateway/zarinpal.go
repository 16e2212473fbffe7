// Package gateway implements the ZarinPal v4 payment-gateway client. All
// currency conversion lives here: the storefront works in Toman, the gateway
// expects Rial (×10).
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/davazhoo/storefront/internal/config"
)

const (
	sandboxRequestURL  = "https://sandbox.zarinpal.com/pg/v4/payment/request.json"
	sandboxVerifyURL   = "https://sandbox.zarinpal.com/pg/v4/payment/verify.json"
	sandboxStartPayURL = "https://sandbox.zarinpal.com/pg/StartPay/"

	productionRequestURL  = "https://api.zarinpal.com/pg/v4/payment/request.json"
	productionVerifyURL   = "https://api.zarinpal.com/pg/v4/payment/verify.json"
	productionStartPayURL = "https://www.zarinpal.com/pg/StartPay/"

	// verification response codes
	codeVerified        = 100
	codeAlreadyVerified = 101
)

// PaymentRequest carries everything needed to open a payment intent.
type PaymentRequest struct {
	Amount      int64 // Toman
	Description string
	CallbackURL string
	Mobile      string
	OrderNumber string
}

// PaymentIntent is the gateway's answer to a successful payment request.
type PaymentIntent struct {
	Authority  string
	PaymentURL string
}

// VerifyResult is the outcome of payment verification. AlreadyVerified marks
// the gateway's duplicate-verification answer, which counts as success
// without repeating any side effects.
type VerifyResult struct {
	Verified        bool
	AlreadyVerified bool
	RefID           string
	CardPan         string
	Code            int
	Message         string
}

// Client talks to the ZarinPal REST API with a bounded timeout.
type Client struct {
	merchantID  string
	requestURL  string
	verifyURL   string
	startPayURL string
	httpClient  *http.Client
}

// NewClient creates a Client from configuration, selecting sandbox or
// production endpoints.
func NewClient(cfg config.GatewayConfig) *Client {
	c := &Client{
		merchantID: cfg.MerchantID,
		httpClient: &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second},
	}
	if cfg.Sandbox {
		c.requestURL = sandboxRequestURL
		c.verifyURL = sandboxVerifyURL
		c.startPayURL = sandboxStartPayURL
		if c.merchantID == "" {
			// sandbox accepts any well-formed merchant id
			c.merchantID = "xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx"
		}
	} else {
		c.requestURL = productionRequestURL
		c.verifyURL = productionVerifyURL
		c.startPayURL = productionStartPayURL
	}
	return c
}

// NewClientWithURLs creates a Client against explicit endpoints.
// Primarily used for testing.
func NewClientWithURLs(merchantID, requestURL, verifyURL, startPayURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		merchantID:  merchantID,
		requestURL:  requestURL,
		verifyURL:   verifyURL,
		startPayURL: startPayURL,
		httpClient:  httpClient,
	}
}

type requestPayload struct {
	MerchantID  string          `json:"merchant_id"`
	Amount      int64           `json:"amount"`
	Description string          `json:"description"`
	CallbackURL string          `json:"callback_url"`
	Metadata    requestMetadata `json:"metadata"`
}

type requestMetadata struct {
	Mobile  string `json:"mobile,omitempty"`
	OrderID string `json:"order_id,omitempty"`
}

type verifyPayload struct {
	MerchantID string `json:"merchant_id"`
	Authority  string `json:"authority"`
	Amount     int64  `json:"amount"`
}

type gatewayResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors json.RawMessage `json:"errors"`
}

type requestData struct {
	Code      int    `json:"code"`
	Authority string `json:"authority"`
}

type verifyData struct {
	Code    int             `json:"code"`
	RefID   json.Number     `json:"ref_id"`
	CardPan string          `json:"card_pan"`
	Fee     json.RawMessage `json:"fee"`
}

type gatewayError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *Client) post(ctx context.Context, url string, payload any, out *gatewayResponse) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal gateway payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call gateway: %w", err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gateway response: %w", err)
	}
	return nil
}

func decodeError(raw json.RawMessage) gatewayError {
	var ge gatewayError
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &ge)
	}
	if ge.Message == "" {
		ge.Message = "unexpected gateway response"
	}
	return ge
}

// CreatePayment opens a payment intent and returns the authority token plus
// the redirect URL for the customer.
func (c *Client) CreatePayment(ctx context.Context, req PaymentRequest) (*PaymentIntent, error) {
	payload := requestPayload{
		MerchantID:  c.merchantID,
		Amount:      req.Amount * 10, // Toman to Rial
		Description: req.Description,
		CallbackURL: req.CallbackURL,
		Metadata: requestMetadata{
			Mobile:  req.Mobile,
			OrderID: req.OrderNumber,
		},
	}

	log.Info().
		Str("order_number", req.OrderNumber).
		Int64("amount_rial", payload.Amount).
		Msg("requesting payment intent")

	var resp gatewayResponse
	if err := c.post(ctx, c.requestURL, payload, &resp); err != nil {
		return nil, err
	}

	var data requestData
	if len(resp.Data) > 0 {
		_ = json.Unmarshal(resp.Data, &data)
	}
	if data.Authority == "" {
		ge := decodeError(resp.Errors)
		log.Error().
			Int("code", ge.Code).
			Str("message", ge.Message).
			Str("order_number", req.OrderNumber).
			Msg("payment request rejected")
		return nil, fmt.Errorf("payment request rejected: %s (code %d)", ge.Message, ge.Code)
	}

	return &PaymentIntent{
		Authority:  data.Authority,
		PaymentURL: c.startPayURL + data.Authority,
	}, nil
}

// Verify confirms a payment with the gateway. Code 100 is a fresh
// verification; code 101 means already verified, which still counts as
// success. Any other code yields Verified=false with the gateway's reason.
func (c *Client) Verify(ctx context.Context, authority string, amount int64) (*VerifyResult, error) {
	payload := verifyPayload{
		MerchantID: c.merchantID,
		Authority:  authority,
		Amount:     amount * 10, // Toman to Rial
	}

	var resp gatewayResponse
	if err := c.post(ctx, c.verifyURL, payload, &resp); err != nil {
		return nil, err
	}

	var data verifyData
	if len(resp.Data) > 0 {
		_ = json.Unmarshal(resp.Data, &data)
	}

	switch data.Code {
	case codeVerified:
		return &VerifyResult{
			Verified: true,
			RefID:    data.RefID.String(),
			CardPan:  data.CardPan,
			Code:     data.Code,
		}, nil
	case codeAlreadyVerified:
		return &VerifyResult{
			Verified:        true,
			AlreadyVerified: true,
			RefID:           data.RefID.String(),
			Code:            data.Code,
		}, nil
	default:
		ge := decodeError(resp.Errors)
		log.Warn().
			Int("code", ge.Code).
			Str("message", ge.Message).
			Msg("payment verification declined")
		return &VerifyResult{
			Verified: false,
			Code:     ge.Code,
			Message:  ge.Message,
		}, nil
	}
}

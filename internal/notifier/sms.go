// Package notifier delivers customer SMS notifications through Kavenegar.
// Delivery is best-effort: callers log failures and never roll back state.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/davazhoo/storefront/internal/config"
)

const defaultBaseURL = "https://api.kavenegar.com"

// Sender sends SMS messages. With Debug set, messages are logged instead of
// hitting the provider, matching local development behavior.
type Sender struct {
	apiKey     string
	sender     string
	debug      bool
	baseURL    string
	httpClient *http.Client
}

// NewSender creates a Sender from configuration.
func NewSender(cfg config.SMSConfig) *Sender {
	return &Sender{
		apiKey:     cfg.APIKey,
		sender:     cfg.Sender,
		debug:      cfg.Debug,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second},
	}
}

// NewSenderWithBaseURL creates a Sender against an explicit endpoint.
// Primarily used for testing.
func NewSenderWithBaseURL(apiKey, sender, baseURL string, httpClient *http.Client) *Sender {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Sender{
		apiKey:     apiKey,
		sender:     sender,
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

// Configured reports whether the provider credentials are present.
func (s *Sender) Configured() bool {
	return s.apiKey != "" && s.sender != ""
}

type providerResponse struct {
	Return struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"return"`
}

// Send delivers one SMS to the given phone number.
func (s *Sender) Send(ctx context.Context, phone, message string) error {
	if s.debug {
		log.Info().Str("phone", phone).Str("message", message).Msg("sms suppressed in debug mode")
		return nil
	}
	if !s.Configured() {
		return fmt.Errorf("sms provider not configured")
	}

	endpoint := fmt.Sprintf("%s/v1/%s/sms/send.json", s.baseURL, s.apiKey)
	form := url.Values{
		"receptor": {phone},
		"message":  {message},
		"sender":   {s.sender},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	defer resp.Body.Close()

	var pr providerResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return fmt.Errorf("decode sms response: %w", err)
	}
	if pr.Return.Status != 200 {
		return fmt.Errorf("sms provider rejected message: %s (status %d)", pr.Return.Message, pr.Return.Status)
	}
	return nil
}

// NotifyStatusChange tells the customer their order moved between statuses.
func (s *Sender) NotifyStatusChange(ctx context.Context, phone, customerName, itemsSummary, oldStatus, newStatus string) error {
	message := fmt.Sprintf(
		"Dear %s,\nyour order for %s changed from %q to %q.\nDavazhoo",
		customerName, itemsSummary, oldStatus, newStatus,
	)
	return s.Send(ctx, phone, message)
}

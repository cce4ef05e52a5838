package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Webhook event types pushed by the payment provider.
const (
	EventCheckoutCompleted     = "checkout.completed"
	EventPaymentSucceeded      = "payment.succeeded"
	EventPaymentFailed         = "payment.failed"
	EventSubscriptionCancelled = "subscription.cancelled"
)

// PaymentProviderService handles all payment provider API interactions.
// Credentials are loaded once at construction and the client is passed by
// reference; nothing is read from process globals per call.
type PaymentProviderService interface {
	CreateCheckoutSession(ctx context.Context, req *CheckoutSessionRequest) (*CheckoutSessionResponse, error)
	VerifyWebhookSignature(payload []byte, signature string) bool
	ParseWebhookEvent(payload []byte) (*ProviderEvent, error)
}

type providerService struct {
	apiKey        string
	apiSecret     string
	webhookSecret string
	baseURL       string
	http          *http.Client
}

// CheckoutSessionRequest asks the provider for a hosted checkout page. The
// external reference is echoed back in webhook payloads and is the join key
// until the provider-assigned subscription id is known locally.
type CheckoutSessionRequest struct {
	ExternalReference string  `json:"external_reference"`
	PlanName          string  `json:"plan_name"`
	Amount            float64 `json:"amount"`
	Currency          string  `json:"currency"`
	BillingInterval   string  `json:"billing_interval"`
}

type CheckoutSessionResponse struct {
	ID                     string `json:"id"`
	CheckoutURL            string `json:"checkout_url"`
	ProviderSubscriptionID string `json:"provider_subscription_id,omitempty"`
}

// ProviderEvent is one asynchronous provider notification. Delivery may be
// duplicated and out of order; ID is the idempotency key.
type ProviderEvent struct {
	ID   string            `json:"provider_event_id"`
	Type string            `json:"event_type"`
	Data ProviderEventData `json:"data"`
}

type ProviderEventData struct {
	ProviderSubscriptionID string  `json:"provider_subscription_id,omitempty"`
	ExternalReference      string  `json:"external_reference,omitempty"`
	Amount                 float64 `json:"amount,omitempty"`
	Currency               string  `json:"currency,omitempty"`
}

// NewPaymentProviderService creates a provider client with a bounded request
// timeout. A timed-out checkout call surfaces as ErrProviderUnavailable and
// is never retried internally.
func NewPaymentProviderService(apiKey, apiSecret, webhookSecret, baseURL string, timeout time.Duration) PaymentProviderService {
	return &providerService{
		apiKey:        apiKey,
		apiSecret:     apiSecret,
		webhookSecret: webhookSecret,
		baseURL:       baseURL,
		http:          &http.Client{Timeout: timeout},
	}
}

// CreateCheckoutSession requests a provider-hosted checkout handle tagged
// with the external reference.
func (s *providerService) CreateCheckoutSession(ctx context.Context, req *CheckoutSessionRequest) (*CheckoutSessionResponse, error) {
	body, err := s.makeRequest(ctx, http.MethodPost, "/checkout/sessions", req)
	if err != nil {
		return nil, err
	}

	var resp CheckoutSessionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse checkout session response: %w", err)
	}
	if resp.CheckoutURL == "" {
		return nil, errors.Join(ErrProviderUnavailable, errors.New("checkout session response missing checkout_url"))
	}
	return &resp, nil
}

// VerifyWebhookSignature checks the HMAC-SHA256 signature of an inbound
// webhook body using constant time comparison to prevent timing attacks.
func (s *providerService) VerifyWebhookSignature(payload []byte, signature string) bool {
	hash := hmac.New(sha256.New, []byte(s.webhookSecret))
	hash.Write(payload)
	expected := hex.EncodeToString(hash.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}

// ParseWebhookEvent decodes a verified webhook body.
func (s *providerService) ParseWebhookEvent(payload []byte) (*ProviderEvent, error) {
	var event ProviderEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to parse webhook payload: %w", err)
	}
	if event.ID == "" || event.Type == "" {
		return nil, fmt.Errorf("webhook payload missing provider_event_id or event_type")
	}
	return &event, nil
}

func (s *providerService) makeRequest(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewBuffer(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return nil, err
	}

	req.SetBasicAuth(s.apiKey, s.apiSecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		// Timeouts and connection failures are retryable by the caller.
		return nil, errors.Join(ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Join(ErrProviderUnavailable, err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, errors.Join(ErrProviderUnavailable, fmt.Errorf("provider returned %d", resp.StatusCode))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("provider rejected request with %d", resp.StatusCode)
	}

	return respBody, nil
}

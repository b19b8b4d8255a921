package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// StripeService wraps the Stripe REST API calls the billing flow needs:
// checkout sessions for paid-plan activation, provider-side cancellation, and
// webhook signature verification.
type StripeService interface {
	CreateCheckoutSession(ctx context.Context, params *CheckoutParams) (*CheckoutSession, error)
	CancelSubscription(ctx context.Context, subscriptionID string, atPeriodEnd bool) error
	ResumeSubscription(ctx context.Context, subscriptionID string) error
	VerifyWebhookSignature(payload []byte, sigHeader string) (*StripeEvent, error)
}

type CheckoutParams struct {
	TenantID       uuid.UUID
	SubscriptionID uuid.UUID
	PlanCode       string
	AmountMinor    int64
	Currency       string
	IsYearly       bool
	CustomerEmail  string
}

type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// StripeEvent is the envelope Stripe posts to the webhook endpoint.
type StripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
	Created int64 `json:"created"`
}

// CheckoutSessionObject is the subset of a completed checkout session the
// webhook handler reads.
type CheckoutSessionObject struct {
	ID           string            `json:"id"`
	Subscription string            `json:"subscription"`
	Metadata     map[string]string `json:"metadata"`
}

// SubscriptionObject is the subset of a provider subscription the webhook
// handler reads from deletion events.
type SubscriptionObject struct {
	ID string `json:"id"`
}

type stripeService struct {
	apiKey        string
	webhookSecret string
	baseURL       string
	successURL    string
	cancelURL     string
	http          *http.Client
}

func NewStripeService(apiKey, webhookSecret, baseURL, successURL, cancelURL string) StripeService {
	if baseURL == "" {
		baseURL = "https://api.stripe.com/v1"
	}
	return &stripeService{
		apiKey:        apiKey,
		webhookSecret: webhookSecret,
		baseURL:       baseURL,
		successURL:    successURL,
		cancelURL:     cancelURL,
		http:          &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *stripeService) CreateCheckoutSession(ctx context.Context, params *CheckoutParams) (*CheckoutSession, error) {
	interval := "month"
	if params.IsYearly {
		interval = "year"
	}

	form := url.Values{}
	form.Set("mode", "subscription")
	form.Set("success_url", s.successURL)
	form.Set("cancel_url", s.cancelURL)
	form.Set("customer_email", params.CustomerEmail)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", params.Currency)
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(params.AmountMinor, 10))
	form.Set("line_items[0][price_data][recurring][interval]", interval)
	form.Set("line_items[0][price_data][product_data][name]", params.PlanCode)
	form.Set("metadata[tenant_id]", params.TenantID.String())
	form.Set("metadata[subscription_id]", params.SubscriptionID.String())

	body, err := s.makeRequest(ctx, http.MethodPost, "/checkout/sessions", form)
	if err != nil {
		return nil, err
	}

	var session CheckoutSession
	if err := json.Unmarshal(body, &session); err != nil {
		return nil, fmt.Errorf("failed to parse checkout session: %w", err)
	}
	return &session, nil
}

func (s *stripeService) CancelSubscription(ctx context.Context, subscriptionID string, atPeriodEnd bool) error {
	if atPeriodEnd {
		form := url.Values{}
		form.Set("cancel_at_period_end", "true")
		_, err := s.makeRequest(ctx, http.MethodPost, "/subscriptions/"+subscriptionID, form)
		return err
	}
	_, err := s.makeRequest(ctx, http.MethodDelete, "/subscriptions/"+subscriptionID, nil)
	return err
}

// ResumeSubscription undoes a scheduled period-end cancellation.
func (s *stripeService) ResumeSubscription(ctx context.Context, subscriptionID string) error {
	form := url.Values{}
	form.Set("cancel_at_period_end", "false")
	_, err := s.makeRequest(ctx, http.MethodPost, "/subscriptions/"+subscriptionID, form)
	return err
}

// VerifyWebhookSignature checks the Stripe-Signature header (t=...,v1=...)
// against an HMAC-SHA256 of "<t>.<payload>" and rejects stale timestamps.
func (s *stripeService) VerifyWebhookSignature(payload []byte, sigHeader string) (*StripeEvent, error) {
	var timestamp string
	var signatures []string
	for _, part := range strings.Split(sigHeader, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return nil, fmt.Errorf("malformed signature header")
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed signature timestamp")
	}
	if d := time.Since(time.Unix(ts, 0)); d > 5*time.Minute || d < -5*time.Minute {
		return nil, fmt.Errorf("signature timestamp outside tolerance")
	}

	mac := hmac.New(sha256.New, []byte(s.webhookSecret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	valid := false
	for _, sig := range signatures {
		if hmac.Equal([]byte(expected), []byte(sig)) {
			valid = true
			break
		}
	}
	if !valid {
		return nil, fmt.Errorf("signature verification failed")
	}

	var event StripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to parse webhook event: %w", err)
	}
	return &event, nil
}

func (s *stripeService) makeRequest(ctx context.Context, method, path string, form url.Values) ([]byte, error) {
	var reqBody io.Reader
	if form != nil {
		reqBody = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stripe request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("stripe API returned %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

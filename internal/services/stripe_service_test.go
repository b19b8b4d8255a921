package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWebhookSecret = "whsec_unit_test"

func signWebhook(secret string, ts int64, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func webhookVerifier() StripeService {
	return NewStripeService("sk_test_key", testWebhookSecret, "", "https://app.example.com/ok", "https://app.example.com/cancel")
}

func TestVerifyWebhookSignature_ValidHeader(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_123","subscription":"sub_456","metadata":{"tenant_id":"t"}}}}`)
	ts := time.Now().Unix()
	header := fmt.Sprintf("t=%d,v1=%s", ts, signWebhook(testWebhookSecret, ts, payload))

	event, err := webhookVerifier().VerifyWebhookSignature(payload, header)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, "checkout.session.completed", event.Type)

	var session CheckoutSessionObject
	require.NoError(t, json.Unmarshal(event.Data.Object, &session))
	assert.Equal(t, "cs_123", session.ID)
	assert.Equal(t, "sub_456", session.Subscription)
}

// Stripe sends multiple v1 entries during secret rotation; one match is
// enough.
func TestVerifyWebhookSignature_AnyMatchingV1Accepted(t *testing.T) {
	payload := []byte(`{"id":"evt_2","type":"invoice.paid"}`)
	ts := time.Now().Unix()
	header := fmt.Sprintf("t=%d,v1=%s,v1=%s", ts, "0000000000000000", signWebhook(testWebhookSecret, ts, payload))

	event, err := webhookVerifier().VerifyWebhookSignature(payload, header)
	assert.NoError(t, err)
	assert.Equal(t, "evt_2", event.ID)
}

func TestVerifyWebhookSignature_RejectsBadSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_3"}`)
	ts := time.Now().Unix()
	header := fmt.Sprintf("t=%d,v1=%s", ts, signWebhook("whsec_other", ts, payload))

	_, err := webhookVerifier().VerifyWebhookSignature(payload, header)
	assert.ErrorContains(t, err, "signature verification failed")
}

func TestVerifyWebhookSignature_RejectsTamperedPayload(t *testing.T) {
	ts := time.Now().Unix()
	header := fmt.Sprintf("t=%d,v1=%s", ts, signWebhook(testWebhookSecret, ts, []byte(`{"amount":100}`)))

	_, err := webhookVerifier().VerifyWebhookSignature([]byte(`{"amount":100000}`), header)
	assert.ErrorContains(t, err, "signature verification failed")
}

func TestVerifyWebhookSignature_RejectsStaleTimestamp(t *testing.T) {
	payload := []byte(`{"id":"evt_4"}`)
	ts := time.Now().Add(-10 * time.Minute).Unix()
	header := fmt.Sprintf("t=%d,v1=%s", ts, signWebhook(testWebhookSecret, ts, payload))

	_, err := webhookVerifier().VerifyWebhookSignature(payload, header)
	assert.ErrorContains(t, err, "outside tolerance")
}

func TestVerifyWebhookSignature_RejectsFutureTimestamp(t *testing.T) {
	payload := []byte(`{"id":"evt_5"}`)
	ts := time.Now().Add(10 * time.Minute).Unix()
	header := fmt.Sprintf("t=%d,v1=%s", ts, signWebhook(testWebhookSecret, ts, payload))

	_, err := webhookVerifier().VerifyWebhookSignature(payload, header)
	assert.ErrorContains(t, err, "outside tolerance")
}

func TestVerifyWebhookSignature_RejectsMalformedHeader(t *testing.T) {
	payload := []byte(`{"id":"evt_6"}`)

	for _, header := range []string{
		"",
		"v1=deadbeef",
		fmt.Sprintf("t=%d", time.Now().Unix()),
		"t=yesterday,v1=deadbeef",
	} {
		_, err := webhookVerifier().VerifyWebhookSignature(payload, header)
		assert.Error(t, err, "header %q", header)
	}
}

func TestCreateCheckoutSession_PostsFormAndParsesSession(t *testing.T) {
	tenantID := uuid.New()
	subscriptionID := uuid.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/checkout/sessions", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_key", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "subscription", r.PostForm.Get("mode"))
		assert.Equal(t, "9900", r.PostForm.Get("line_items[0][price_data][unit_amount]"))
		assert.Equal(t, "month", r.PostForm.Get("line_items[0][price_data][recurring][interval]"))
		assert.Equal(t, "usd", r.PostForm.Get("line_items[0][price_data][currency]"))
		assert.Equal(t, "owner@example.com", r.PostForm.Get("customer_email"))
		assert.Equal(t, tenantID.String(), r.PostForm.Get("metadata[tenant_id]"))
		assert.Equal(t, subscriptionID.String(), r.PostForm.Get("metadata[subscription_id]"))
		fmt.Fprint(w, `{"id":"cs_123","url":"https://checkout.stripe.com/c/pay/cs_123"}`)
	}))
	defer srv.Close()

	svc := NewStripeService("sk_test_key", testWebhookSecret, srv.URL, "https://app.example.com/ok", "https://app.example.com/cancel")
	session, err := svc.CreateCheckoutSession(context.Background(), &CheckoutParams{
		TenantID:       tenantID,
		SubscriptionID: subscriptionID,
		PlanCode:       "growth",
		AmountMinor:    9900,
		Currency:       "usd",
		CustomerEmail:  "owner@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_123", session.ID)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_123", session.URL)
}

func TestCreateCheckoutSession_SurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"No such customer"}}`)
	}))
	defer srv.Close()

	svc := NewStripeService("sk_test_key", testWebhookSecret, srv.URL, "", "")
	_, err := svc.CreateCheckoutSession(context.Background(), &CheckoutParams{AmountMinor: 100, Currency: "usd"})
	assert.ErrorContains(t, err, "400")
}

func TestCancelSubscription_AtPeriodEndPostsFlag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/subscriptions/sub_123", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "true", r.PostForm.Get("cancel_at_period_end"))
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	svc := NewStripeService("sk_test_key", testWebhookSecret, srv.URL, "", "")
	assert.NoError(t, svc.CancelSubscription(context.Background(), "sub_123", true))
}

func TestCancelSubscription_ImmediateDeletes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/subscriptions/sub_123", r.URL.Path)
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	svc := NewStripeService("sk_test_key", testWebhookSecret, srv.URL, "", "")
	assert.NoError(t, svc.CancelSubscription(context.Background(), "sub_123", false))
}

func TestResumeSubscription_ClearsFlag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "false", r.PostForm.Get("cancel_at_period_end"))
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	svc := NewStripeService("sk_test_key", testWebhookSecret, srv.URL, "", "")
	assert.NoError(t, svc.ResumeSubscription(context.Background(), "sub_123"))
}

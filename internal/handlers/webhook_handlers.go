package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"shopsuite/internal/common"
	"shopsuite/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// WebhookHandlers receives payment provider callbacks. These routes carry no
// session; authenticity comes from the signature over the raw body.
type WebhookHandlers struct {
	subscriptionService services.SubscriptionService
	stripeService       services.StripeService
}

func NewWebhookHandlers(subscriptionService services.SubscriptionService, stripeService services.StripeService) *WebhookHandlers {
	return &WebhookHandlers{
		subscriptionService: subscriptionService,
		stripeService:       stripeService,
	}
}

// StripeWebhook handles POST /webhooks/stripe. Only completed checkouts are
// acted on; everything else is acknowledged and dropped. Replays are safe:
// confirming an already-active subscription is a no-op.
func (h *WebhookHandlers) StripeWebhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return common.SendClientError(c, "failed to read request body")
	}

	event, err := h.stripeService.VerifyWebhookSignature(body, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		log.Warn().Err(err).Msg("stripe webhook rejected")
		return c.JSON(http.StatusUnauthorized, common.CreateErrorResponse("INVALID_SIGNATURE", "webhook signature verification failed", nil))
	}

	switch event.Type {
	case "checkout.session.completed":
		return h.handleCheckoutCompleted(c, event)
	case "customer.subscription.deleted":
		return h.handleSubscriptionDeleted(c, event)
	default:
		log.Debug().Str("event_type", event.Type).Msg("stripe event ignored")
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "received"})
}

func (h *WebhookHandlers) handleCheckoutCompleted(c echo.Context, event *services.StripeEvent) error {
	ctx := c.Request().Context()

	var session services.CheckoutSessionObject
	if err := json.Unmarshal(event.Data.Object, &session); err != nil {
		return common.SendClientError(c, "malformed checkout session payload")
	}

	tenantID, err := uuid.Parse(session.Metadata["tenant_id"])
	if err != nil {
		log.Error().Str("event_id", event.ID).Msg("checkout session missing tenant metadata")
		return common.SendClientError(c, "checkout session missing tenant metadata")
	}
	subscriptionID, err := uuid.Parse(session.Metadata["subscription_id"])
	if err != nil {
		log.Error().Str("event_id", event.ID).Msg("checkout session missing subscription metadata")
		return common.SendClientError(c, "checkout session missing subscription metadata")
	}

	if err := h.subscriptionService.ConfirmPayment(ctx, tenantID, subscriptionID, session.Subscription); err != nil {
		// A non-2xx makes the provider retry, which is what we want for
		// transient failures.
		log.Error().
			Err(err).
			Str("tenant_id", tenantID.String()).
			Str("subscription_id", subscriptionID.String()).
			Msg("payment confirmation failed")
		return common.SendDomainError(c, err)
	}

	log.Info().
		Str("tenant_id", tenantID.String()).
		Str("subscription_id", subscriptionID.String()).
		Msg("payment confirmed")
	return c.JSON(http.StatusOK, map[string]string{"status": "received"})
}

// handleSubscriptionDeleted reverts the tenant to the free tier when the
// provider reports the paid subscription gone (period end after a scheduled
// cancellation, or a cancellation made in the provider dashboard).
func (h *WebhookHandlers) handleSubscriptionDeleted(c echo.Context, event *services.StripeEvent) error {
	var sub services.SubscriptionObject
	if err := json.Unmarshal(event.Data.Object, &sub); err != nil || sub.ID == "" {
		return common.SendClientError(c, "malformed subscription payload")
	}

	if err := h.subscriptionService.HandleProviderCancellation(c.Request().Context(), sub.ID); err != nil {
		log.Error().
			Err(err).
			Str("stripe_subscription_id", sub.ID).
			Msg("provider cancellation handling failed")
		return common.SendDomainError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "received"})
}

package handlers

import (
	"io"
	"log"
	"net/http"

	"vendora/internal/services"

	"github.com/labstack/echo/v4"
)

// WebhookHandlers handles HTTP requests for payment provider webhooks
type WebhookHandlers struct {
	providerService   services.PaymentProviderService
	reconcilerService services.WebhookReconciler
}

// NewWebhookHandlers creates a new webhook handlers instance
func NewWebhookHandlers(providerService services.PaymentProviderService, reconcilerService services.WebhookReconciler) *WebhookHandlers {
	return &WebhookHandlers{
		providerService:   providerService,
		reconcilerService: reconcilerService,
	}
}

// PaymentWebhook handles POST /webhooks/payments.
//
// The status code is the whole contract: 503 asks the provider to redeliver
// after a transient fault, 401/400 reject events we never want redelivered
// (unauthenticated or malformed), and 200 acknowledges the event for good
// whether it was applied, a duplicate, or discarded.
func (h *WebhookHandlers) PaymentWebhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Failed to read request body")
	}

	signature := c.Request().Header.Get("X-Webhook-Signature")
	if signature == "" {
		log.Printf("WARN: webhook rejected: missing signature from %s", c.RealIP())
		return echo.NewHTTPError(http.StatusUnauthorized, "Missing webhook signature")
	}

	if !h.providerService.VerifyWebhookSignature(body, signature) {
		log.Printf("WARN: webhook rejected: invalid signature from %s", c.RealIP())
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid webhook signature")
	}

	event, err := h.providerService.ParseWebhookEvent(body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Malformed webhook payload")
	}

	result, err := h.reconcilerService.ProcessEvent(c.Request().Context(), event, body)
	if err != nil {
		log.Printf("WARN: webhook %s not acknowledged: %v", event.ID, err)
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Event could not be processed, retry later")
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": string(result),
		"event":  event.ID,
	})
}

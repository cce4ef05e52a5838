package handlers

import (
	"errors"
	"net/http"

	"vendora/internal/common"
	"vendora/internal/services"

	"github.com/labstack/echo/v4"
)

// SubscriptionHandlers handles HTTP requests for subscriptions
type SubscriptionHandlers struct {
	checkoutService  services.CheckoutService
	lifecycleService services.LifecycleService
}

// NewSubscriptionHandlers creates a new subscription handlers instance
func NewSubscriptionHandlers(checkoutService services.CheckoutService, lifecycleService services.LifecycleService) *SubscriptionHandlers {
	return &SubscriptionHandlers{
		checkoutService:  checkoutService,
		lifecycleService: lifecycleService,
	}
}

// StartCheckout handles POST /v1/checkout
func (h *SubscriptionHandlers) StartCheckout(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	var req struct {
		PlanID   string `json:"plan_id"`
		Interval string `json:"interval"`
	}
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if req.PlanID == "" {
		return common.SendValidationError(c, "plan_id", "plan_id is required")
	}
	if req.Interval == "" {
		return common.SendValidationError(c, "interval", "interval is required")
	}

	intent, err := h.checkoutService.StartCheckout(ctx, userID, req.PlanID, req.Interval)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidPlan):
			return common.SendValidationError(c, "plan_id", err.Error())
		case errors.Is(err, services.ErrAlreadySubscribed):
			return common.SendConflictError(c, "An active subscription already exists for this user")
		case errors.Is(err, services.ErrProviderUnavailable):
			return c.JSON(http.StatusServiceUnavailable, common.CreateErrorResponse("PROVIDER_UNAVAILABLE", "Payment provider is unavailable, please retry", nil))
		default:
			return common.SendServerError(c, "Failed to start checkout")
		}
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"subscription": intent.Subscription,
		"checkout_url": intent.CheckoutURL,
	})
}

// ListPlans handles GET /v1/plans
func (h *SubscriptionHandlers) ListPlans(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"plans": services.AvailablePlans(),
	})
}

// GetSubscription handles GET /v1/subscriptions/:id
func (h *SubscriptionHandlers) GetSubscription(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	subscriptionID, err := common.ValidateUUID(c.Param("id"), "subscription id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	subscription, err := h.lifecycleService.GetByID(ctx, subscriptionID, userID)
	if err != nil {
		return h.mapLifecycleError(c, err)
	}

	return c.JSON(http.StatusOK, subscription)
}

// GetCurrentSubscription handles GET /v1/subscriptions/current
func (h *SubscriptionHandlers) GetCurrentSubscription(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	subscription, err := h.lifecycleService.GetCurrent(ctx, userID)
	if err != nil {
		return h.mapLifecycleError(c, err)
	}

	return c.JSON(http.StatusOK, subscription)
}

// CancelSubscription handles POST /v1/subscriptions/:id/cancel
func (h *SubscriptionHandlers) CancelSubscription(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	subscriptionID, err := common.ValidateUUID(c.Param("id"), "subscription id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	var req struct {
		Immediate bool `json:"immediate"`
	}
	// Body is optional, default is cancel at period end
	_ = c.Bind(&req)

	subscription, err := h.lifecycleService.RequestCancellation(ctx, subscriptionID, userID, req.Immediate)
	if err != nil {
		return h.mapLifecycleError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":      "Cancellation requested",
		"subscription": subscription,
	})
}

// ReactivateSubscription handles POST /v1/subscriptions/:id/reactivate
func (h *SubscriptionHandlers) ReactivateSubscription(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	subscriptionID, err := common.ValidateUUID(c.Param("id"), "subscription id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	subscription, err := h.lifecycleService.RequestReactivation(ctx, subscriptionID, userID)
	if err != nil {
		return h.mapLifecycleError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":      "Subscription reactivated",
		"subscription": subscription,
	})
}

// mapLifecycleError translates service sentinels into HTTP responses
func (h *SubscriptionHandlers) mapLifecycleError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, services.ErrSubscriptionNotFound):
		return common.SendNotFoundError(c, "Subscription")
	case errors.Is(err, services.ErrNotOwner):
		return common.SendForbiddenError(c, "Subscription belongs to another user")
	case errors.Is(err, services.ErrNotCancellable):
		return common.SendConflictError(c, "Subscription cannot be cancelled in its current state")
	case errors.Is(err, services.ErrNotReactivatable):
		return common.SendConflictError(c, "Subscription has no pending cancellation to revert")
	case errors.Is(err, services.ErrConflict):
		return common.SendConflictError(c, "Subscription was modified concurrently, please retry")
	default:
		return common.SendServerError(c, "Failed to process subscription request")
	}
}

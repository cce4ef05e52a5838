package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"vendora/internal/common"
	"vendora/internal/services"

	"github.com/labstack/echo/v4"
)

// BillingHandlers handles HTTP requests for billing history and receipts
type BillingHandlers struct {
	billingHistoryService services.BillingHistoryService
}

// NewBillingHandlers creates a new billing handlers instance
func NewBillingHandlers(billingHistoryService services.BillingHistoryService) *BillingHandlers {
	return &BillingHandlers{
		billingHistoryService: billingHistoryService,
	}
}

// GetBillingHistory handles GET /v1/billing/history
func (h *BillingHandlers) GetBillingHistory(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	limit := 10
	offset := 0
	if limitParam := c.QueryParam("limit"); limitParam != "" {
		if l, err := strconv.Atoi(limitParam); err == nil && l > 0 {
			limit = l
		}
	}
	if offsetParam := c.QueryParam("offset"); offsetParam != "" {
		if o, err := strconv.Atoi(offsetParam); err == nil && o >= 0 {
			offset = o
		}
	}

	limit, offset, err := common.ValidatePaginationParams(limit, offset)
	if err != nil {
		return common.SendClientError(c, err.Error())
	}

	history, err := h.billingHistoryService.History(ctx, userID, limit, offset)
	if err != nil {
		return common.SendServerError(c, "Failed to load billing history")
	}

	return c.JSON(http.StatusOK, history)
}

// GetReceipt handles GET /v1/billing/transactions/:id/receipt
func (h *BillingHandlers) GetReceipt(c echo.Context) error {
	ctx := c.Request().Context()

	userID, ok := common.GetUserIDFromContext(ctx)
	if !ok {
		return common.SendUnauthorizedError(c)
	}

	transactionID, err := common.ValidateUUID(c.Param("id"), "transaction id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	url, err := h.billingHistoryService.ReceiptURL(ctx, userID, transactionID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTransactionNotFound):
			return common.SendNotFoundError(c, "Receipt")
		case errors.Is(err, services.ErrNotOwner):
			return common.SendForbiddenError(c, "Transaction belongs to another user")
		default:
			return common.SendServerError(c, "Failed to generate receipt")
		}
	}

	return c.JSON(http.StatusOK, map[string]string{
		"receipt_url": url,
	})
}

package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"vendora/internal/caching"
	"vendora/internal/models"
	"vendora/internal/repositories"

	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf"
)

const (
	billingHistoryTTL = 5 * time.Minute
	receiptURLExpiry  = 15 * time.Minute
)

// BillingHistory is the read-only projection served to the UI: subscription
// summaries in reverse chronological order with their payment transactions.
type BillingHistory struct {
	Entries []*BillingHistoryEntry `json:"entries"`
	Limit   int                    `json:"limit"`
	Offset  int                    `json:"offset"`
}

type BillingHistoryEntry struct {
	Subscription *models.Subscription  `json:"subscription"`
	PlanName     string                `json:"plan_name"`
	Transactions []*models.Transaction `json:"transactions"`
}

// BillingHistoryService joins completed transactions to a user for display.
// It never mutates subscription state.
type BillingHistoryService interface {
	History(ctx context.Context, userID uuid.UUID, limit, offset int) (*BillingHistory, error)
	ReceiptURL(ctx context.Context, userID, transactionID uuid.UUID) (string, error)
}

type billingHistoryService struct {
	subscriptionRepo repositories.SubscriptionRepository
	transactionRepo  repositories.TransactionRepository
	cacheSvc         caching.CacheService
	storageSvc       StorageService
	receiptBucket    string
}

// NewBillingHistoryService creates a new BillingHistoryService instance.
func NewBillingHistoryService(
	subscriptionRepo repositories.SubscriptionRepository,
	transactionRepo repositories.TransactionRepository,
	cacheSvc caching.CacheService,
	storageSvc StorageService,
	receiptBucket string,
) BillingHistoryService {
	return &billingHistoryService{
		subscriptionRepo: subscriptionRepo,
		transactionRepo:  transactionRepo,
		cacheSvc:         cacheSvc,
		storageSvc:       storageSvc,
		receiptBucket:    receiptBucket,
	}
}

// History returns a paginated page of the user's subscriptions with their
// transactions, served from cache when possible.
func (s *billingHistoryService) History(ctx context.Context, userID uuid.UUID, limit, offset int) (*BillingHistory, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	if cached, err := s.cacheSvc.GetBillingHistory(ctx, userID, limit, offset); err == nil && cached != nil {
		history := &BillingHistory{}
		if err := json.Unmarshal(cached, history); err == nil {
			return history, nil
		}
	}

	subscriptions, err := s.subscriptionRepo.ListByUserID(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	history := &BillingHistory{
		Entries: make([]*BillingHistoryEntry, 0, len(subscriptions)),
		Limit:   limit,
		Offset:  offset,
	}
	for _, subscription := range subscriptions {
		transactions, err := s.transactionRepo.ListBySubscriptionID(ctx, subscription.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list transactions for subscription %s: %w", subscription.ID, err)
		}
		planName := subscription.PlanID
		if plan, ok := LookupPlan(subscription.PlanID); ok {
			planName = plan.Name
		}
		history.Entries = append(history.Entries, &BillingHistoryEntry{
			Subscription: subscription,
			PlanName:     planName,
			Transactions: transactions,
		})
	}

	if data, err := json.Marshal(history); err == nil {
		if err := s.cacheSvc.SetBillingHistory(ctx, userID, limit, offset, data, billingHistoryTTL); err != nil {
			log.Printf("WARN: failed to cache billing history for user %s: %v", userID.String(), err)
		}
	}

	return history, nil
}

// ReceiptURL renders a PDF receipt for a succeeded transaction, uploads it
// to object storage, and returns a short-lived presigned download URL.
func (s *billingHistoryService) ReceiptURL(ctx context.Context, userID, transactionID uuid.UUID) (string, error) {
	transaction, err := s.transactionRepo.GetByID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return "", ErrTransactionNotFound
		}
		return "", err
	}

	subscription, err := s.subscriptionRepo.GetByID(ctx, transaction.SubscriptionID)
	if err != nil {
		return "", fmt.Errorf("failed to load subscription for transaction %s: %w", transactionID, err)
	}
	if subscription.UserID != userID {
		return "", ErrNotOwner
	}
	if transaction.Status != models.TransactionSucceeded {
		return "", fmt.Errorf("%w: no receipt for a %s transaction", ErrTransactionNotFound, transaction.Status)
	}

	pdfBytes, err := s.generateReceiptPDF(transaction, subscription)
	if err != nil {
		return "", fmt.Errorf("failed to generate receipt: %w", err)
	}

	objectName := fmt.Sprintf("%s/%s.pdf", userID.String(), transactionID.String())
	if err := UploadBytes(ctx, s.storageSvc, s.receiptBucket, objectName, "application/pdf", pdfBytes); err != nil {
		return "", fmt.Errorf("failed to upload receipt: %w", err)
	}

	return s.storageSvc.GetPresignedURL(ctx, s.receiptBucket, objectName, receiptURLExpiry)
}

// generateReceiptPDF creates a payment receipt document
func (s *billingHistoryService) generateReceiptPDF(transaction *models.Transaction, subscription *models.Subscription) ([]byte, error) {
	planName := subscription.PlanID
	if plan, ok := LookupPlan(subscription.PlanID); ok {
		planName = plan.Name
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	marginX := 20.0
	marginY := 20.0
	pdf.SetMargins(marginX, marginY, marginX)
	pdf.SetAutoPageBreak(true, marginY)

	pdf.SetFont("Arial", "B", 16)
	pdf.SetTextColor(33, 37, 41)
	pdf.SetXY(marginX, marginY)
	pdf.Cell(0, 10, "VENDORA PAYMENT RECEIPT")
	pdf.Ln(15)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Receipt Number: %s", transaction.ID.String()))
	pdf.Ln(8)
	pdf.Cell(0, 8, fmt.Sprintf("Payment Date: %s", transaction.OccurredAt.Format("02-Jan-2006")))
	pdf.Ln(8)
	pdf.Cell(0, 8, fmt.Sprintf("Subscription: %s", subscription.ID.String()))
	pdf.Ln(13)

	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(240, 240, 240)
	headers := []string{"Description", "Interval", "Amount"}
	colWidths := []float64{90, 40, 40}
	for i, header := range headers {
		pdf.CellFormat(colWidths[i], 8, header, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 10)
	pdf.SetFillColor(255, 255, 255)
	pdf.CellFormat(colWidths[0], 8, fmt.Sprintf("%s subscription", planName), "1", 0, "L", false, 0, "")
	pdf.CellFormat(colWidths[1], 8, subscription.BillingInterval, "1", 0, "C", false, 0, "")
	pdf.CellFormat(colWidths[2], 8, fmt.Sprintf("%.2f %s", transaction.Amount, transaction.Currency), "1", 0, "R", false, 0, "")
	pdf.Ln(12)

	pdf.SetFont("Arial", "B", 11)
	pdf.Cell(0, 8, fmt.Sprintf("Total Paid: %.2f %s", transaction.Amount, transaction.Currency))
	pdf.Ln(12)

	pdf.SetFont("Arial", "I", 9)
	pdf.Cell(0, 6, "Thank you for selling on Vendora.")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

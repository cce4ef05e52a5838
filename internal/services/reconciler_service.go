package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"vendora/internal/caching"
	"vendora/internal/models"
	"vendora/internal/repositories"

	"github.com/google/uuid"
)

// ReconcileResult tells the webhook endpoint what happened to an event.
// Everything except an error is acknowledged to the provider with success,
// because redelivery of duplicates and discards would change nothing.
type ReconcileResult string

const (
	ReconcileApplied   ReconcileResult = "applied"
	ReconcileDuplicate ReconcileResult = "duplicate"
	ReconcileDiscarded ReconcileResult = "discarded"
)

// WebhookReconciler applies asynchronous provider notifications to the local
// subscription records under idempotency and ordering rules. It never trusts
// arrival order: transitions fire only from their required source state.
type WebhookReconciler interface {
	ProcessEvent(ctx context.Context, event *ProviderEvent, payload []byte) (ReconcileResult, error)
}

type reconcilerService struct {
	subscriptionRepo repositories.SubscriptionRepository
	eventRepo        repositories.WebhookEventRepository
	transactionRepo  repositories.TransactionRepository
	cacheSvc         caching.CacheService
}

// NewWebhookReconciler creates a new WebhookReconciler instance.
func NewWebhookReconciler(
	subscriptionRepo repositories.SubscriptionRepository,
	eventRepo repositories.WebhookEventRepository,
	transactionRepo repositories.TransactionRepository,
	cacheSvc caching.CacheService,
) WebhookReconciler {
	return &reconcilerService{
		subscriptionRepo: subscriptionRepo,
		eventRepo:        eventRepo,
		transactionRepo:  transactionRepo,
		cacheSvc:         cacheSvc,
	}
}

// ProcessEvent records the provider event id in the append-only ledger,
// resolves the target subscription, and applies the guarded transition with
// one optimistic retry. A non-nil error means a transient local fault; the
// caller should answer with a retry-me status so the provider redelivers.
func (s *reconcilerService) ProcessEvent(ctx context.Context, event *ProviderEvent, payload []byte) (ReconcileResult, error) {
	inserted, err := s.eventRepo.Record(ctx, &models.WebhookEvent{
		ProviderEventID: event.ID,
		EventType:       event.Type,
		Payload:         payload,
	})
	if err != nil {
		return "", fmt.Errorf("failed to record webhook event %s: %w", event.ID, err)
	}
	if !inserted {
		// Providers redeliver on any ambiguous response; a known event id
		// is a no-op success, not an error.
		return ReconcileDuplicate, nil
	}

	result, err := s.reconcile(ctx, event)
	if err != nil {
		// The ledger row must not outlive a failed application: a recorded
		// id means applied, so drop it before asking for redelivery.
		if releaseErr := s.eventRepo.Release(ctx, event.ID); releaseErr != nil {
			log.Printf("WARN: failed to release webhook event %s after fault: %v", event.ID, releaseErr)
		}
		return "", err
	}
	return result, nil
}

func (s *reconcilerService) reconcile(ctx context.Context, event *ProviderEvent) (ReconcileResult, error) {
	subscription, err := s.resolveSubscription(ctx, event)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			// Expected under retried delivery for references we never
			// issued or already swept away.
			log.Printf("webhook %s (%s): no matching subscription, discarding", event.ID, event.Type)
			return ReconcileDiscarded, nil
		}
		return "", fmt.Errorf("failed to resolve subscription for webhook %s: %w", event.ID, err)
	}

	result, err := s.apply(ctx, subscription, event)
	if errors.Is(err, repositories.ErrVersionConflict) {
		// A concurrent writer won the version race; re-read once and
		// re-check the guards against the fresh state.
		subscription, err = s.subscriptionRepo.GetByID(ctx, subscription.ID)
		if err != nil {
			return "", fmt.Errorf("failed to re-read subscription after conflict: %w", err)
		}
		result, err = s.apply(ctx, subscription, event)
		if errors.Is(err, repositories.ErrVersionConflict) {
			return "", fmt.Errorf("webhook %s: %w", event.ID, ErrConflict)
		}
	}
	if err != nil {
		return "", err
	}

	if result == ReconcileApplied {
		s.cacheSvc.InvalidateBillingHistory(ctx, subscription.UserID)
	}
	return result, nil
}

// resolveSubscription prefers the provider-canonical subscription id once it
// is known locally and falls back to the external reference minted at
// checkout time.
func (s *reconcilerService) resolveSubscription(ctx context.Context, event *ProviderEvent) (*models.Subscription, error) {
	if event.Data.ProviderSubscriptionID != "" {
		subscription, err := s.subscriptionRepo.GetByProviderID(ctx, event.Data.ProviderSubscriptionID)
		if err == nil {
			return subscription, nil
		}
		if !errors.Is(err, repositories.ErrNotFound) {
			return nil, err
		}
	}
	if event.Data.ExternalReference != "" {
		return s.subscriptionRepo.GetByExternalReference(ctx, event.Data.ExternalReference)
	}
	return nil, repositories.ErrNotFound
}

func (s *reconcilerService) apply(ctx context.Context, subscription *models.Subscription, event *ProviderEvent) (ReconcileResult, error) {
	switch event.Type {
	case EventCheckoutCompleted, EventPaymentSucceeded:
		return s.applySuccess(ctx, subscription, event)
	case EventPaymentFailed:
		return s.applyFailure(ctx, subscription, event)
	case EventSubscriptionCancelled:
		return s.applyProviderCancel(ctx, subscription, event)
	default:
		log.Printf("webhook %s: unknown event type %q, discarding", event.ID, event.Type)
		return ReconcileDiscarded, nil
	}
}

// applySuccess confirms a pending subscription or extends an active one.
func (s *reconcilerService) applySuccess(ctx context.Context, subscription *models.Subscription, event *ProviderEvent) (ReconcileResult, error) {
	now := time.Now().UTC()

	switch {
	case subscription.CanActivate():
		subscription.Status = models.SubscriptionActive
		periodEnd := models.NextPeriodEnd(now, subscription.BillingInterval)
		subscription.CurrentPeriodEnd = &periodEnd
	case subscription.CanRenew() && event.Type == EventPaymentSucceeded:
		from := now
		if subscription.CurrentPeriodEnd != nil && subscription.CurrentPeriodEnd.After(now) {
			from = *subscription.CurrentPeriodEnd
		}
		periodEnd := models.NextPeriodEnd(from, subscription.BillingInterval)
		subscription.CurrentPeriodEnd = &periodEnd
	default:
		// A replayed or late success for a subscription that already moved
		// on. Terminal states are immutable; discard without mutation.
		log.Printf("webhook %s: success event for %s subscription %s, discarding", event.ID, subscription.Status, subscription.ID)
		return ReconcileDiscarded, nil
	}

	s.backfillProviderID(subscription, event)
	if err := s.subscriptionRepo.Update(ctx, subscription); err != nil {
		return "", err
	}
	if err := s.recordTransaction(ctx, subscription, event, models.TransactionSucceeded); err != nil {
		return "", err
	}
	return ReconcileApplied, nil
}

// applyFailure terminates a subscription after a failed charge. A failure
// carrying only the external reference belongs to the initial checkout
// attempt and is a no-op once the subscription is active, regardless of the
// order the two notifications arrived in.
func (s *reconcilerService) applyFailure(ctx context.Context, subscription *models.Subscription, event *ProviderEvent) (ReconcileResult, error) {
	recurring := event.Data.ProviderSubscriptionID != ""
	if subscription.Status.IsTerminal() || (subscription.Status == models.SubscriptionActive && !recurring) {
		log.Printf("webhook %s: failure event for %s subscription %s, discarding", event.ID, subscription.Status, subscription.ID)
		return ReconcileDiscarded, nil
	}

	subscription.Status = models.SubscriptionPaymentFailed
	subscription.CancelAtPeriodEnd = false
	s.backfillProviderID(subscription, event)
	if err := s.subscriptionRepo.Update(ctx, subscription); err != nil {
		return "", err
	}
	if err := s.recordTransaction(ctx, subscription, event, models.TransactionFailed); err != nil {
		return "", err
	}
	return ReconcileApplied, nil
}

func (s *reconcilerService) applyProviderCancel(ctx context.Context, subscription *models.Subscription, event *ProviderEvent) (ReconcileResult, error) {
	if subscription.Status != models.SubscriptionActive {
		log.Printf("webhook %s: cancel event for %s subscription %s, discarding", event.ID, subscription.Status, subscription.ID)
		return ReconcileDiscarded, nil
	}

	subscription.Status = models.SubscriptionCancelled
	subscription.CancelAtPeriodEnd = false
	if err := s.subscriptionRepo.Update(ctx, subscription); err != nil {
		return "", err
	}
	return ReconcileApplied, nil
}

// backfillProviderID records the provider-assigned subscription id the first
// time a webhook carries it, so later events resolve without the reference.
func (s *reconcilerService) backfillProviderID(subscription *models.Subscription, event *ProviderEvent) {
	if subscription.ProviderSubscriptionID == nil && event.Data.ProviderSubscriptionID != "" {
		id := event.Data.ProviderSubscriptionID
		subscription.ProviderSubscriptionID = &id
	}
}

func (s *reconcilerService) recordTransaction(ctx context.Context, subscription *models.Subscription, event *ProviderEvent, status string) error {
	transaction := &models.Transaction{
		ID:                uuid.New(),
		SubscriptionID:    subscription.ID,
		ExternalReference: subscription.ExternalReference,
		ProviderEventID:   event.ID,
		Amount:            event.Data.Amount,
		Currency:          event.Data.Currency,
		Status:            status,
		OccurredAt:        time.Now().UTC(),
	}
	if err := s.transactionRepo.Create(ctx, transaction); err != nil {
		return fmt.Errorf("failed to record transaction for webhook %s: %w", event.ID, err)
	}
	return nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"vendora/internal/models"
	"vendora/internal/repositories"

	"github.com/google/uuid"
)

// CheckoutService starts the paid subscription flow: it persists a pending
// subscription and hands the user off to the provider-hosted checkout page.
type CheckoutService interface {
	StartCheckout(ctx context.Context, userID uuid.UUID, planID, interval string) (*CheckoutIntent, error)
}

// CheckoutIntent is returned to the caller so the UI can redirect the user.
type CheckoutIntent struct {
	Subscription *models.Subscription `json:"subscription"`
	CheckoutURL  string               `json:"checkout_url"`
}

type checkoutService struct {
	subscriptionRepo repositories.SubscriptionRepository
	providerSvc      PaymentProviderService
	graceWindow      time.Duration
}

// NewCheckoutService creates a new CheckoutService instance. graceWindow is
// how long a pending subscription stays reusable before the stale-pending
// sweep gives up on it.
func NewCheckoutService(
	subscriptionRepo repositories.SubscriptionRepository,
	providerSvc PaymentProviderService,
	graceWindow time.Duration,
) CheckoutService {
	return &checkoutService{
		subscriptionRepo: subscriptionRepo,
		providerSvc:      providerSvc,
		graceWindow:      graceWindow,
	}
}

// StartCheckout persists the pending subscription before calling the
// provider. If the provider call fails the pending row is deliberately kept:
// a retried checkout reuses the same external reference, and a late webhook
// for a previously issued checkout handle still resolves against it.
func (s *checkoutService) StartCheckout(ctx context.Context, userID uuid.UUID, planID, interval string) (*CheckoutIntent, error) {
	plan, ok := LookupPlan(planID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPlan, planID)
	}
	if !plan.SupportsInterval(interval) {
		return nil, fmt.Errorf("%w: plan %s does not support %s billing", ErrInvalidPlan, planID, interval)
	}

	// One active subscription per user; re-subscribing means a new
	// subscription only after the current one reaches a terminal state.
	if _, err := s.subscriptionRepo.GetActiveByUserID(ctx, userID); err == nil {
		return nil, ErrAlreadySubscribed
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}

	subscription, err := s.pendingSubscription(ctx, userID, planID, interval)
	if err != nil {
		return nil, err
	}

	session, err := s.providerSvc.CreateCheckoutSession(ctx, &CheckoutSessionRequest{
		ExternalReference: subscription.ExternalReference,
		PlanName:          plan.Name,
		Amount:            plan.Amount,
		Currency:          plan.Currency,
		BillingInterval:   interval,
	})
	if err != nil {
		// The pending row stays in place so a retry reuses the same
		// reference instead of minting an orphaned duplicate.
		return nil, fmt.Errorf("failed to create checkout session for %s: %w", subscription.ExternalReference, err)
	}

	if session.ProviderSubscriptionID != "" && subscription.ProviderSubscriptionID == nil {
		subscription.ProviderSubscriptionID = &session.ProviderSubscriptionID
		if err := s.subscriptionRepo.Update(ctx, subscription); err != nil {
			// The webhook reconciler backfills the provider id anyway.
			log.Printf("WARN: failed to record provisional provider id for %s: %v", subscription.ID, err)
		}
	}

	return &CheckoutIntent{Subscription: subscription, CheckoutURL: session.CheckoutURL}, nil
}

// pendingSubscription returns a live pending subscription for the user and
// plan, or creates one with a fresh single-use external reference.
func (s *checkoutService) pendingSubscription(ctx context.Context, userID uuid.UUID, planID, interval string) (*models.Subscription, error) {
	since := time.Now().UTC().Add(-s.graceWindow)
	existing, err := s.subscriptionRepo.GetPendingByUserID(ctx, userID, planID, since)
	if err == nil && existing.BillingInterval == interval {
		return existing, nil
	}
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}

	subscription := &models.Subscription{
		ID:                uuid.New(),
		UserID:            userID,
		PlanID:            planID,
		Status:            models.SubscriptionPending,
		ExternalReference: uuid.NewString(),
		BillingInterval:   interval,
	}
	if err := s.subscriptionRepo.Create(ctx, subscription); err != nil {
		return nil, fmt.Errorf("failed to create pending subscription: %w", err)
	}
	return subscription, nil
}

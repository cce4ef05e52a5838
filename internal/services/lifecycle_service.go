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

// OwnershipPredicate confirms whether the acting user may operate on the
// subscription. The auth collaborator is a black box returning bool-or-error;
// the default predicate compares the owner reference on the record.
type OwnershipPredicate func(ctx context.Context, actingUserID uuid.UUID, subscription *models.Subscription) (bool, error)

// DefaultOwnershipPredicate authorizes the recorded owner and nobody else.
func DefaultOwnershipPredicate(_ context.Context, actingUserID uuid.UUID, subscription *models.Subscription) (bool, error) {
	return subscription.UserID == actingUserID, nil
}

// LifecycleService exposes the user-initiated subscription transitions and
// the time-driven sweeps. All writes go through the per-subscription version
// check so they cannot race the webhook reconciler into a lost update.
type LifecycleService interface {
	GetByID(ctx context.Context, subscriptionID, actingUserID uuid.UUID) (*models.Subscription, error)
	GetCurrent(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	RequestCancellation(ctx context.Context, subscriptionID, actingUserID uuid.UUID, immediate bool) (*models.Subscription, error)
	RequestReactivation(ctx context.Context, subscriptionID, actingUserID uuid.UUID) (*models.Subscription, error)
	RunPeriodEndSweep(ctx context.Context) (int, error)
	RunStalePendingSweep(ctx context.Context) (int, error)
}

type lifecycleService struct {
	subscriptionRepo repositories.SubscriptionRepository
	cacheSvc         caching.CacheService
	authorize        OwnershipPredicate
	graceWindow      time.Duration
	sweepBatchSize   int
}

// NewLifecycleService creates a new LifecycleService instance.
func NewLifecycleService(
	subscriptionRepo repositories.SubscriptionRepository,
	cacheSvc caching.CacheService,
	authorize OwnershipPredicate,
	graceWindow time.Duration,
) LifecycleService {
	if authorize == nil {
		authorize = DefaultOwnershipPredicate
	}
	return &lifecycleService{
		subscriptionRepo: subscriptionRepo,
		cacheSvc:         cacheSvc,
		authorize:        authorize,
		graceWindow:      graceWindow,
		sweepBatchSize:   500,
	}
}

// GetByID returns the subscription if the acting user owns it.
func (s *lifecycleService) GetByID(ctx context.Context, subscriptionID, actingUserID uuid.UUID) (*models.Subscription, error) {
	subscription, err := s.load(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if err := s.checkOwnership(ctx, actingUserID, subscription); err != nil {
		return nil, err
	}
	return subscription, nil
}

// GetCurrent returns the user's active subscription, if any.
func (s *lifecycleService) GetCurrent(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	subscription, err := s.subscriptionRepo.GetActiveByUserID(ctx, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrSubscriptionNotFound
	}
	return subscription, err
}

// RequestCancellation flags an active subscription to end at period end, or
// terminates it immediately when immediate is set. The guard is re-checked
// at write time: if a webhook finalized the subscription between read and
// write, the request fails cleanly instead of clobbering the newer state.
func (s *lifecycleService) RequestCancellation(ctx context.Context, subscriptionID, actingUserID uuid.UUID, immediate bool) (*models.Subscription, error) {
	return s.transition(ctx, subscriptionID, actingUserID, func(subscription *models.Subscription) error {
		if immediate {
			if !subscription.CanCancelNow() {
				return ErrNotCancellable
			}
			subscription.Status = models.SubscriptionCancelled
			subscription.CancelAtPeriodEnd = false
			return nil
		}
		if !subscription.CanScheduleCancellation() {
			return ErrNotCancellable
		}
		// The terminal transition itself is performed by the period-end
		// sweep; this only records the trigger.
		subscription.CancelAtPeriodEnd = true
		return nil
	})
}

// RequestReactivation clears a scheduled cancellation while the subscription
// is still active. Once the sweep has run the state is final; the user must
// start a fresh checkout instead.
func (s *lifecycleService) RequestReactivation(ctx context.Context, subscriptionID, actingUserID uuid.UUID) (*models.Subscription, error) {
	return s.transition(ctx, subscriptionID, actingUserID, func(subscription *models.Subscription) error {
		if !subscription.CanReactivate() {
			return ErrNotReactivatable
		}
		subscription.CancelAtPeriodEnd = false
		return nil
	})
}

// transition runs a guarded mutation with one optimistic retry. The mutate
// callback re-runs against freshly read state after a version conflict, so
// guards always see the state that will actually be overwritten.
func (s *lifecycleService) transition(ctx context.Context, subscriptionID, actingUserID uuid.UUID, mutate func(*models.Subscription) error) (*models.Subscription, error) {
	subscription, err := s.load(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if err := s.checkOwnership(ctx, actingUserID, subscription); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < 2; attempt++ {
		if err := mutate(subscription); err != nil {
			return nil, err
		}
		err = s.subscriptionRepo.Update(ctx, subscription)
		if err == nil {
			s.cacheSvc.InvalidateBillingHistory(ctx, subscription.UserID)
			return subscription, nil
		}
		if !errors.Is(err, repositories.ErrVersionConflict) {
			return nil, err
		}
		subscription, err = s.load(ctx, subscriptionID)
		if err != nil {
			return nil, err
		}
	}
	return nil, ErrConflict
}

// RunPeriodEndSweep performs the scheduled active to cancelled transitions
// for subscriptions whose paid interval has lapsed with cancellation flagged.
// Rows that lose their version race are skipped; the next run picks them up
// again if they are still due.
func (s *lifecycleService) RunPeriodEndSweep(ctx context.Context) (int, error) {
	due, err := s.subscriptionRepo.ListDueForCancellation(ctx, time.Now().UTC(), s.sweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list subscriptions due for cancellation: %w", err)
	}

	swept := 0
	for _, subscription := range due {
		subscription.Status = models.SubscriptionCancelled
		subscription.CancelAtPeriodEnd = false
		if err := s.subscriptionRepo.Update(ctx, subscription); err != nil {
			if errors.Is(err, repositories.ErrVersionConflict) {
				log.Printf("period-end sweep: subscription %s changed concurrently, skipping", subscription.ID)
				continue
			}
			return swept, err
		}
		s.cacheSvc.InvalidateBillingHistory(ctx, subscription.UserID)
		swept++
	}
	return swept, nil
}

// RunStalePendingSweep garbage-collects pending subscriptions whose checkout
// was abandoned: no webhook activity within the grace window means the
// provider will never confirm them.
func (s *lifecycleService) RunStalePendingSweep(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.graceWindow)
	stale, err := s.subscriptionRepo.ListStalePending(ctx, cutoff, s.sweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale pending subscriptions: %w", err)
	}

	swept := 0
	for _, subscription := range stale {
		subscription.Status = models.SubscriptionPaymentFailed
		subscription.CancelAtPeriodEnd = false
		if err := s.subscriptionRepo.Update(ctx, subscription); err != nil {
			if errors.Is(err, repositories.ErrVersionConflict) {
				log.Printf("stale-pending sweep: subscription %s changed concurrently, skipping", subscription.ID)
				continue
			}
			return swept, err
		}
		s.cacheSvc.InvalidateBillingHistory(ctx, subscription.UserID)
		swept++
	}
	return swept, nil
}

func (s *lifecycleService) load(ctx context.Context, subscriptionID uuid.UUID) (*models.Subscription, error) {
	subscription, err := s.subscriptionRepo.GetByID(ctx, subscriptionID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrSubscriptionNotFound
	}
	return subscription, err
}

func (s *lifecycleService) checkOwnership(ctx context.Context, actingUserID uuid.UUID, subscription *models.Subscription) error {
	ok, err := s.authorize(ctx, actingUserID, subscription)
	if err != nil {
		return fmt.Errorf("authorization check failed: %w", err)
	}
	if !ok {
		return ErrNotOwner
	}
	return nil
}

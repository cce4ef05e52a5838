package repositories

import (
	"context"
	"time"

	"vendora/internal/models"

	"github.com/google/uuid"
)

type SubscriptionRepository interface {
	Create(ctx context.Context, subscription *models.Subscription) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error)
	GetByExternalReference(ctx context.Context, reference string) (*models.Subscription, error)
	GetByProviderID(ctx context.Context, providerID string) (*models.Subscription, error)
	GetActiveByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	GetPendingByUserID(ctx context.Context, userID uuid.UUID, planID string, since time.Time) (*models.Subscription, error)
	Update(ctx context.Context, subscription *models.Subscription) error
	ListByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Subscription, error)
	ListDueForCancellation(ctx context.Context, now time.Time, limit int) ([]*models.Subscription, error)
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*models.Subscription, error)
}

type subscriptionRepo struct {
	db DB
}

func NewSubscriptionRepo(db DB) SubscriptionRepository {
	return &subscriptionRepo{db: db}
}

const subscriptionColumns = `id, user_id, plan_id, status, external_reference, provider_subscription_id, billing_interval, cancel_at_period_end, current_period_end, version, created_at, updated_at`

func (r *subscriptionRepo) Create(ctx context.Context, subscription *models.Subscription) error {
	query := `
		INSERT INTO subscriptions (id, user_id, plan_id, status, external_reference, provider_subscription_id, billing_interval, cancel_at_period_end, current_period_end, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1, NOW(), NOW())
	`
	_, err := r.db.Exec(ctx, query, subscription.ID, subscription.UserID, subscription.PlanID, subscription.Status, subscription.ExternalReference, subscription.ProviderSubscriptionID, subscription.BillingInterval, subscription.CancelAtPeriodEnd, subscription.CurrentPeriodEnd)
	if err != nil {
		return err
	}
	subscription.Version = 1
	return nil
}

func (r *subscriptionRepo) scanOne(ctx context.Context, query string, args ...any) (*models.Subscription, error) {
	subscription := &models.Subscription{}
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&subscription.ID, &subscription.UserID, &subscription.PlanID, &subscription.Status,
		&subscription.ExternalReference, &subscription.ProviderSubscriptionID, &subscription.BillingInterval,
		&subscription.CancelAtPeriodEnd, &subscription.CurrentPeriodEnd, &subscription.Version,
		&subscription.CreatedAt, &subscription.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return subscription, nil
}

func (r *subscriptionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`
	return r.scanOne(ctx, query, id)
}

func (r *subscriptionRepo) GetByExternalReference(ctx context.Context, reference string) (*models.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE external_reference = $1`
	return r.scanOne(ctx, query, reference)
}

func (r *subscriptionRepo) GetByProviderID(ctx context.Context, providerID string) (*models.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE provider_subscription_id = $1`
	return r.scanOne(ctx, query, providerID)
}

func (r *subscriptionRepo) GetActiveByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = $1 AND status = 'active'`
	return r.scanOne(ctx, query, userID)
}

func (r *subscriptionRepo) GetPendingByUserID(ctx context.Context, userID uuid.UUID, planID string, since time.Time) (*models.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE user_id = $1 AND plan_id = $2 AND status = 'pending' AND created_at > $3
		ORDER BY created_at DESC
		LIMIT 1
	`
	return r.scanOne(ctx, query, userID, planID, since)
}

// Update writes the mutable fields under an optimistic version check. The row
// is matched on both id and the version the caller read; zero affected rows
// means a concurrent writer got there first, and ErrVersionConflict is
// returned without mutating anything.
func (r *subscriptionRepo) Update(ctx context.Context, subscription *models.Subscription) error {
	query := `
		UPDATE subscriptions
		SET status = $1, provider_subscription_id = $2, cancel_at_period_end = $3, current_period_end = $4, version = version + 1, updated_at = NOW()
		WHERE id = $5 AND version = $6
	`
	tag, err := r.db.Exec(ctx, query, subscription.Status, subscription.ProviderSubscriptionID, subscription.CancelAtPeriodEnd, subscription.CurrentPeriodEnd, subscription.ID, subscription.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	subscription.Version++
	return nil
}

func (r *subscriptionRepo) scanMany(ctx context.Context, query string, args ...any) ([]*models.Subscription, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subscriptions []*models.Subscription
	for rows.Next() {
		subscription := &models.Subscription{}
		if err := rows.Scan(
			&subscription.ID, &subscription.UserID, &subscription.PlanID, &subscription.Status,
			&subscription.ExternalReference, &subscription.ProviderSubscriptionID, &subscription.BillingInterval,
			&subscription.CancelAtPeriodEnd, &subscription.CurrentPeriodEnd, &subscription.Version,
			&subscription.CreatedAt, &subscription.UpdatedAt,
		); err != nil {
			return nil, err
		}
		subscriptions = append(subscriptions, subscription)
	}
	return subscriptions, rows.Err()
}

func (r *subscriptionRepo) ListByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	return r.scanMany(ctx, query, userID, limit, offset)
}

func (r *subscriptionRepo) ListDueForCancellation(ctx context.Context, now time.Time, limit int) ([]*models.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE status = 'active' AND cancel_at_period_end = TRUE AND current_period_end <= $1
		ORDER BY current_period_end ASC
		LIMIT $2
	`
	return r.scanMany(ctx, query, now, limit)
}

func (r *subscriptionRepo) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*models.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	return r.scanMany(ctx, query, cutoff, limit)
}

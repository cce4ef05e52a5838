package repositories

import (
	"context"

	"vendora/internal/models"

	"github.com/google/uuid"
)

type TransactionRepository interface {
	// Create inserts the transaction. Inserting a second transaction for the
	// same provider event id is a silent no-op, so replayed webhooks never
	// duplicate billing history.
	Create(ctx context.Context, transaction *models.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	ListBySubscriptionID(ctx context.Context, subscriptionID uuid.UUID) ([]*models.Transaction, error)
	ListByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Transaction, error)
}

type transactionRepo struct {
	db DB
}

func NewTransactionRepo(db DB) TransactionRepository {
	return &transactionRepo{db: db}
}

const transactionColumns = `id, subscription_id, external_reference, provider_event_id, amount, currency, status, occurred_at`

func (r *transactionRepo) Create(ctx context.Context, transaction *models.Transaction) error {
	query := `
		INSERT INTO transactions (id, subscription_id, external_reference, provider_event_id, amount, currency, status, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (provider_event_id) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query, transaction.ID, transaction.SubscriptionID, transaction.ExternalReference, transaction.ProviderEventID, transaction.Amount, transaction.Currency, transaction.Status, transaction.OccurredAt)
	return err
}

func (r *transactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	transaction := &models.Transaction{}
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	err := r.db.QueryRow(ctx, query, id).Scan(
		&transaction.ID, &transaction.SubscriptionID, &transaction.ExternalReference,
		&transaction.ProviderEventID, &transaction.Amount, &transaction.Currency,
		&transaction.Status, &transaction.OccurredAt,
	)
	if err != nil {
		return nil, err
	}
	return transaction, nil
}

func (r *transactionRepo) scanMany(ctx context.Context, query string, args ...any) ([]*models.Transaction, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []*models.Transaction
	for rows.Next() {
		transaction := &models.Transaction{}
		if err := rows.Scan(
			&transaction.ID, &transaction.SubscriptionID, &transaction.ExternalReference,
			&transaction.ProviderEventID, &transaction.Amount, &transaction.Currency,
			&transaction.Status, &transaction.OccurredAt,
		); err != nil {
			return nil, err
		}
		transactions = append(transactions, transaction)
	}
	return transactions, rows.Err()
}

func (r *transactionRepo) ListBySubscriptionID(ctx context.Context, subscriptionID uuid.UUID) ([]*models.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE subscription_id = $1
		ORDER BY occurred_at DESC
	`
	return r.scanMany(ctx, query, subscriptionID)
}

func (r *transactionRepo) ListByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Transaction, error) {
	query := `
		SELECT t.id, t.subscription_id, t.external_reference, t.provider_event_id, t.amount, t.currency, t.status, t.occurred_at
		FROM transactions t
		JOIN subscriptions s ON s.id = t.subscription_id
		WHERE s.user_id = $1
		ORDER BY t.occurred_at DESC
		LIMIT $2 OFFSET $3
	`
	return r.scanMany(ctx, query, userID, limit, offset)
}

package repositories

import (
	"context"

	"vendora/internal/models"
)

type WebhookEventRepository interface {
	// Record appends the event to the ledger. The second return value is
	// false when the provider event id was already recorded, which is the
	// idempotency signal for the reconciler.
	Record(ctx context.Context, event *models.WebhookEvent) (bool, error)
	// Release removes a recorded event id so the provider's redelivery is
	// processed again. Only valid for events whose transition was never
	// applied; a recorded id must mean applied, not merely received.
	Release(ctx context.Context, providerEventID string) error
}

type webhookEventRepo struct {
	db DB
}

func NewWebhookEventRepo(db DB) WebhookEventRepository {
	return &webhookEventRepo{db: db}
}

func (r *webhookEventRepo) Record(ctx context.Context, event *models.WebhookEvent) (bool, error) {
	query := `
		INSERT INTO webhook_events (provider_event_id, event_type, payload, received_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (provider_event_id) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query, event.ProviderEventID, event.EventType, event.Payload)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *webhookEventRepo) Release(ctx context.Context, providerEventID string) error {
	query := `DELETE FROM webhook_events WHERE provider_event_id = $1`
	_, err := r.db.Exec(ctx, query, providerEventID)
	return err
}

package models

import "time"

// WebhookEvent is one row of the provider event ledger used for idempotent
// webhook processing. The ledger is append-only; the unique constraint on
// ProviderEventID is the deduplication check.
type WebhookEvent struct {
	ID              int64     `json:"id" db:"id"`
	ProviderEventID string    `json:"provider_event_id" db:"provider_event_id"`
	EventType       string    `json:"event_type" db:"event_type"`
	Payload         []byte    `json:"payload" db:"payload"`
	ReceivedAt      time.Time `json:"received_at" db:"received_at"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// Transaction statuses as reported by the payment provider.
const (
	TransactionSucceeded = "succeeded"
	TransactionFailed    = "failed"
)

// Transaction is an immutable record of one completed or failed payment
// event. ProviderEventID carries a unique constraint so that redelivered
// webhooks never produce duplicate rows.
type Transaction struct {
	ID                uuid.UUID `json:"id" db:"id"`
	SubscriptionID    uuid.UUID `json:"subscription_id" db:"subscription_id"`
	ExternalReference string    `json:"external_reference" db:"external_reference"`
	ProviderEventID   string    `json:"provider_event_id" db:"provider_event_id"`
	Amount            float64   `json:"amount" db:"amount"`
	Currency          string    `json:"currency" db:"currency"`
	Status            string    `json:"status" db:"status"`
	OccurredAt        time.Time `json:"occurred_at" db:"occurred_at"`
}

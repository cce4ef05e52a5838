package models

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus is the lifecycle state of a subscription.
type SubscriptionStatus string

const (
	SubscriptionPending       SubscriptionStatus = "pending"
	SubscriptionActive        SubscriptionStatus = "active"
	SubscriptionCancelled     SubscriptionStatus = "cancelled"
	SubscriptionPaymentFailed SubscriptionStatus = "payment_failed"
)

// IsTerminal reports whether the status is final. Terminal subscriptions are
// never mutated again; history is extended by creating new subscriptions.
func (s SubscriptionStatus) IsTerminal() bool {
	return s == SubscriptionCancelled || s == SubscriptionPaymentFailed
}

// Billing intervals supported by the plan catalog.
const (
	BillingIntervalMonth = "month"
	BillingIntervalYear  = "year"
)

type Subscription struct {
	ID                     uuid.UUID          `json:"id" db:"id"`
	UserID                 uuid.UUID          `json:"user_id" db:"user_id"`
	PlanID                 string             `json:"plan_id" db:"plan_id"`
	Status                 SubscriptionStatus `json:"status" db:"status"`
	ExternalReference      string             `json:"external_reference" db:"external_reference"`
	ProviderSubscriptionID *string            `json:"provider_subscription_id" db:"provider_subscription_id"`
	BillingInterval        string             `json:"billing_interval" db:"billing_interval"`
	CancelAtPeriodEnd      bool               `json:"cancel_at_period_end" db:"cancel_at_period_end"`
	CurrentPeriodEnd       *time.Time         `json:"current_period_end" db:"current_period_end"`
	Version                int64              `json:"version" db:"version"`
	CreatedAt              time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt              time.Time          `json:"updated_at" db:"updated_at"`
}

// CanActivate reports whether a provider success event may confirm this
// subscription. Only pending subscriptions are confirmable.
func (s *Subscription) CanActivate() bool {
	return s.Status == SubscriptionPending
}

// CanRenew reports whether a recurring charge may extend the current period.
func (s *Subscription) CanRenew() bool {
	return s.Status == SubscriptionActive
}

// CanScheduleCancellation reports whether the owner may flag the subscription
// to end at period end. The flag is only meaningful while active and unset.
func (s *Subscription) CanScheduleCancellation() bool {
	return s.Status == SubscriptionActive && !s.CancelAtPeriodEnd
}

// CanReactivate reports whether a scheduled cancellation may still be undone.
func (s *Subscription) CanReactivate() bool {
	return s.Status == SubscriptionActive && s.CancelAtPeriodEnd
}

// CanCancelNow reports whether an immediate terminal cancellation is valid.
func (s *Subscription) CanCancelNow() bool {
	return s.Status == SubscriptionActive
}

// PeriodDue reports whether a scheduled cancellation is ready for the
// period-end sweep at the given instant.
func (s *Subscription) PeriodDue(now time.Time) bool {
	return s.Status == SubscriptionActive && s.CancelAtPeriodEnd &&
		s.CurrentPeriodEnd != nil && !s.CurrentPeriodEnd.After(now)
}

// NextPeriodEnd computes the period end one billing interval after from.
func NextPeriodEnd(from time.Time, interval string) time.Time {
	if interval == BillingIntervalYear {
		return from.AddDate(1, 0, 0)
	}
	return from.AddDate(0, 1, 0)
}

package model

import "time"

type RecipientStatus string

const (
	RecipientDraft     RecipientStatus = "draft"
	RecipientPending   RecipientStatus = "pending"
	RecipientSent      RecipientStatus = "sent"
	RecipientDelivered RecipientStatus = "delivered"
	RecipientFailed    RecipientStatus = "failed"
	RecipientRejected  RecipientStatus = "rejected"
)

func (s RecipientStatus) String() string {
	return string(s)
}

func (s RecipientStatus) Valid() bool {
	switch s {
	case RecipientDraft, RecipientPending, RecipientSent, RecipientDelivered, RecipientFailed, RecipientRejected:
		return true
	}
	return false
}

// Succeeded reports whether the status counts toward success_count and total_cost.
func (s RecipientStatus) Succeeded() bool {
	return s == RecipientSent || s == RecipientDelivered
}

// Terminal reports whether the status was produced by a dispatch attempt or a
// delivery report (as opposed to draft/pending bookkeeping states).
func (s RecipientStatus) Terminal() bool {
	switch s {
	case RecipientSent, RecipientDelivered, RecipientFailed, RecipientRejected:
		return true
	}
	return false
}

// rank orders statuses so that delivery reports can only move a recipient
// forward: sent may be refined to delivered, but a success is never
// downgraded by a late or duplicate webhook.
func (s RecipientStatus) rank() int {
	switch s {
	case RecipientDraft:
		return 0
	case RecipientPending:
		return 1
	case RecipientFailed, RecipientRejected:
		return 2
	case RecipientSent:
		return 3
	case RecipientDelivered:
		return 4
	}
	return 0
}

// ProtectedStatuses returns the statuses an update to next must not overwrite.
// A write is applied only when the current status is not in this set.
func ProtectedStatuses(next RecipientStatus) []RecipientStatus {
	protected := make([]RecipientStatus, 0, 2)
	for _, cur := range []RecipientStatus{RecipientSent, RecipientDelivered} {
		if cur.rank() >= next.rank() {
			protected = append(protected, cur)
		}
	}
	return protected
}

// CanTransition reports whether a write of next over cur would be applied.
// Re-applying an equal non-success status is allowed (idempotent rewrite).
func CanTransition(cur, next RecipientStatus) bool {
	for _, p := range ProtectedStatuses(next) {
		if cur == p {
			return false
		}
	}
	return true
}

// Recipient is one row of a campaign's recipient list. Phone keeps the raw
// number as entered; normalization happens at dispatch time and is not
// persisted separately.
type Recipient struct {
	ID                int64           `db:"id"`
	CampaignID        string          `db:"campaign_id"`
	Name              string          `db:"name"`
	Phone             string          `db:"phone"`
	Status            RecipientStatus `db:"status"`
	FailureReason     string          `db:"failure_reason"`
	ProviderMessageID string          `db:"provider_message_id"`
	Cost              float64         `db:"cost"`
	DispatchToken     string          `db:"dispatch_token"`
	CreatedAt         time.Time       `db:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at"`
}

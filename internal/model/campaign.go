package model

import "time"

type CampaignState string

const (
	CampaignDraft   CampaignState = "draft"
	CampaignQueued  CampaignState = "queued"
	CampaignSending CampaignState = "sending"
	CampaignDone    CampaignState = "done"
	CampaignPartial CampaignState = "partial"
	CampaignFailed  CampaignState = "failed"
)

func (s CampaignState) String() string { return string(s) }

func (s CampaignState) Valid() bool {
	switch s {
	case CampaignDraft, CampaignQueued, CampaignSending, CampaignDone, CampaignPartial, CampaignFailed:
		return true
	}
	return false
}

// Sendable reports whether a send (or re-send) may be started from this state.
func (s CampaignState) Sendable() bool {
	return s == CampaignDraft || s == CampaignFailed || s == CampaignPartial
}

// Campaign is one bulk send: a shared body plus its recipient list.
// The aggregate columns are derived from the recipient rows and are always
// recomputed as a whole, never incremented in place.
type Campaign struct {
	ID             string        `db:"id"` // ULID
	TenantID       int64         `db:"tenant_id"`
	Body           string        `db:"body"`
	State          CampaignState `db:"state"`
	RecipientCount int           `db:"recipient_count"`
	SuccessCount   int           `db:"success_count"`
	FailedCount    int           `db:"failed_count"`
	TotalCost      float64       `db:"total_cost"`
	CreatedAt      time.Time     `db:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at"`
}

// FinalState derives the campaign state from its aggregates after a dispatch
// round has completed.
func (c Campaign) FinalState() CampaignState {
	switch {
	case c.RecipientCount == 0:
		return CampaignFailed
	case c.SuccessCount == 0:
		return CampaignFailed
	case c.SuccessCount >= c.RecipientCount:
		return CampaignDone
	default:
		return CampaignPartial
	}
}

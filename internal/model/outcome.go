package model

// FailureKind is the internal taxonomy for per-recipient failures. Handlers
// and repositories reference kinds, never raw provider codes; the raw code is
// only kept as the human-readable failure reason.
type FailureKind string

const (
	FailureInvalidNumber       FailureKind = "invalid-number"
	FailureBlacklisted         FailureKind = "blacklisted"
	FailureInsufficientBalance FailureKind = "insufficient-balance"
	FailureInvalidSender       FailureKind = "invalid-sender"
	FailureAuthentication      FailureKind = "authentication"
	FailureSandboxRestriction  FailureKind = "sandbox-restriction"
	FailureServerError         FailureKind = "server-error"
)

func (k FailureKind) String() string { return string(k) }

type OutcomeKind string

const (
	OutcomeSent      OutcomeKind = "sent"
	OutcomeDelivered OutcomeKind = "delivered"
	OutcomeFailed    OutcomeKind = "failed"
	OutcomeRejected  OutcomeKind = "rejected"
)

// Outcome is the transient result of one delivery attempt for one recipient,
// keyed by the dispatch token. Produced by the response parser (or the
// dispatcher itself for pre-flight and transport failures), consumed once by
// the reconciliation sink.
type Outcome struct {
	Token             string
	Kind              OutcomeKind
	Failure           FailureKind // set when Kind is failed/rejected
	Reason            string      // raw provider status or diagnostic text
	ProviderMessageID string
	Cost              float64
}

// RecipientStatus maps the outcome onto the persisted recipient status.
func (o Outcome) RecipientStatus() RecipientStatus {
	switch o.Kind {
	case OutcomeSent:
		return RecipientSent
	case OutcomeDelivered:
		return RecipientDelivered
	case OutcomeRejected:
		return RecipientRejected
	default:
		return RecipientFailed
	}
}

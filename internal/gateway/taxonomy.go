package gateway

import "github.com/jkarimi/sms-campaigns/internal/model"

// Single source of truth for Africa's Talking status semantics. Everything
// outside this file deals in model.FailureKind / model.RecipientStatus.

// sendFailureByStatus maps a per-recipient status from the bulk-send response
// to the internal failure taxonomy.
var sendFailureByStatus = map[string]model.FailureKind{
	"InvalidPhoneNumber":   model.FailureInvalidNumber,
	"NotNetworkSubscriber": model.FailureInvalidNumber,
	"UserInBlacklist":      model.FailureBlacklisted,
	"InsufficientBalance":  model.FailureInsufficientBalance,
	"InvalidSenderId":      model.FailureInvalidSender,
	"UserAccountSuspended": model.FailureAuthentication,
	"AuthenticationFailed": model.FailureAuthentication,
	"NumberNotWhitelisted": model.FailureSandboxRestriction, // sandbox restriction
}

var successStatuses = map[string]struct{}{
	"Success": {},
}

// SendFailureKind classifies a non-success send status. Unknown codes map to
// server-error rather than being dropped, so the raw code stays visible in
// the stored failure reason.
func SendFailureKind(status string) model.FailureKind {
	if k, ok := sendFailureByStatus[status]; ok {
		return k
	}
	return model.FailureServerError
}

func IsSuccessStatus(status string) bool {
	_, ok := successStatuses[status]
	return ok
}

// DeliveryRecipientStatus maps a free-text delivery-webhook status onto the
// persisted recipient status. This is the delivery-specific table; it is
// distinct from the send-path taxonomy above.
func DeliveryRecipientStatus(status string) model.RecipientStatus {
	switch status {
	case "Delivered":
		return model.RecipientDelivered
	case "Success", "Sent":
		return model.RecipientSent
	case "Rejected":
		return model.RecipientRejected
	default: // "Failed" and anything unrecognized
		return model.RecipientFailed
	}
}

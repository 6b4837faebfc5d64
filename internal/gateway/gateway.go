package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/jkarimi/sms-campaigns/internal/model"
)

// ErrTransport marks a failure where the gateway never produced per-recipient
// results: timeout, connection error, or an unparseable body. The whole chunk
// degrades to server-error; there is no partial credit and no retry here.
var ErrTransport = errors.New("gateway unreachable")

// Result is one per-number record from the provider's bulk-send response.
// The provider may reorder recipients; matching back to tokens is done by
// normalized number, never by position.
type Result struct {
	StatusCode int    `json:"statusCode"`
	Number     string `json:"number"`
	Status     string `json:"status"`
	Cost       string `json:"cost"` // "<CURRENCY> <amount>", e.g. "KES 0.8000"
	MessageID  string `json:"messageId"`
}

// SendResponse is the parsed bulk-send payload. It may have been carried
// inside a non-2xx HTTP response: gateways return structured per-recipient
// failures either way.
type SendResponse struct {
	Message    string
	Recipients []Result
}

// RecipientRef identifies one recipient of a dispatch attempt: the opaque
// per-attempt token plus the raw phone number as entered.
type RecipientRef struct {
	Token string
	Phone string
}

// Provider is a bulk SMS gateway. Implementations own endpoint selection
// (sandbox/production), credential injection, timeouts, and network-failure
// classification. The tenant configuration is an explicit argument on every
// call.
type Provider interface {
	Name() string
	SendBatch(ctx context.Context, cfg model.GatewayConfig, to []string, message string) (*SendResponse, error)
	Balance(ctx context.Context, cfg model.GatewayConfig) (string, error)
}

// ForConfig selects the provider implementation named by the tenant
// configuration. Empty defaults to Africa's Talking.
func ForConfig(cfg model.GatewayConfig, opts ATOpts) (Provider, error) {
	switch cfg.Provider {
	case "", "africastalking":
		return NewAfricasTalking(opts), nil
	default:
		return nil, fmt.Errorf("unknown sms provider %q", cfg.Provider)
	}
}

package dispatcher

import (
	"context"

	"github.com/jkarimi/sms-campaigns/internal/gateway"
	"github.com/jkarimi/sms-campaigns/internal/metrics"
	"github.com/jkarimi/sms-campaigns/internal/model"
	"github.com/jkarimi/sms-campaigns/internal/util"
)

// DefaultBatchMax is the provider's bulk-send ceiling per call.
const DefaultBatchMax = 500

// Dispatcher turns a campaign's pending recipients into per-recipient
// outcomes: normalize numbers, chunk at the provider ceiling, one gateway
// call per chunk, parse each payload. Chunks go out sequentially; a
// transport failure degrades its whole chunk and only that chunk.
type Dispatcher struct {
	provider gateway.Provider
	batchMax int
}

func New(p gateway.Provider, batchMax int) *Dispatcher {
	if batchMax <= 0 {
		batchMax = DefaultBatchMax
	}
	return &Dispatcher{provider: p, batchMax: batchMax}
}

// Dispatch sends body to every recipient and returns exactly one outcome per
// input recipient. The only error return is a pre-flight configuration
// failure; per-recipient gateway errors never propagate as errors.
func (d *Dispatcher) Dispatch(ctx context.Context, cfg model.GatewayConfig, body string, recipients []gateway.RecipientRef) ([]model.Outcome, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	outcomes := make([]model.Outcome, 0, len(recipients))

	// Recipients whose number is empty after normalization fail immediately,
	// without a network call.
	normalized := make(map[string]string, len(recipients))
	sendable := make([]gateway.RecipientRef, 0, len(recipients))
	for _, ref := range recipients {
		n := util.NormalizePhone(ref.Phone, cfg.CountryCode)
		if n == "" {
			outcomes = append(outcomes, model.Outcome{
				Token:   ref.Token,
				Kind:    model.OutcomeFailed,
				Failure: model.FailureInvalidNumber,
				Reason:  "invalid or missing phone number",
			})
			continue
		}
		normalized[ref.Token] = n
		sendable = append(sendable, ref)
	}

	for start := 0; start < len(sendable); start += d.batchMax {
		end := start + d.batchMax
		if end > len(sendable) {
			end = len(sendable)
		}
		outcomes = append(outcomes, d.sendChunk(ctx, cfg, body, sendable[start:end], normalized)...)
	}

	for _, o := range outcomes {
		if o.Kind == model.OutcomeSent {
			metrics.OutcomesTotal.WithLabelValues("sent").Inc()
		} else {
			metrics.OutcomesTotal.WithLabelValues(o.Failure.String()).Inc()
		}
	}

	return outcomes, nil
}

func (d *Dispatcher) sendChunk(ctx context.Context, cfg model.GatewayConfig, body string, chunk []gateway.RecipientRef, normalized map[string]string) []model.Outcome {
	to := make([]string, 0, len(chunk))
	for _, ref := range chunk {
		to = append(to, normalized[ref.Token])
	}

	resp, err := d.provider.SendBatch(ctx, cfg, to, body)
	if err != nil {
		// No per-recipient information came back: the entire chunk fails
		// with server-error. Single-shot, no retry.
		metrics.GatewayCallsTotal.WithLabelValues("send", "transport_error").Inc()
		failed := make([]model.Outcome, 0, len(chunk))
		for _, ref := range chunk {
			failed = append(failed, model.Outcome{
				Token:   ref.Token,
				Kind:    model.OutcomeFailed,
				Failure: model.FailureServerError,
				Reason:  "could not reach sms gateway",
			})
		}
		return failed
	}

	metrics.GatewayCallsTotal.WithLabelValues("send", "ok").Inc()
	return gateway.ParseOutcomes(resp, chunk, normalized)
}

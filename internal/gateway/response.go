package gateway

import (
	"log"
	"strconv"
	"strings"

	"github.com/jkarimi/sms-campaigns/internal/model"
)

// ParseCost parses the provider cost string ("KES 0.8000") to a float. The
// amount is the last whitespace-delimited token; anything unparsable is 0.0
// and logged, never fatal.
func ParseCost(s string) float64 {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0.0
	}
	v, err := strconv.ParseFloat(fields[len(fields)-1], 64)
	if err != nil {
		log.Printf("[gateway] unparseable cost string %q", s)
		return 0.0
	}
	return v
}

// ParseOutcomes matches one bulk-send response back to the chunk's dispatch
// tokens. The gateway returns per-number records in arbitrary order, so
// matching is by normalized phone number (normalized maps token to the
// normalized form used in the request). Every token in the chunk receives
// exactly one outcome; a number the gateway did not report on becomes a
// server-error failure.
func ParseOutcomes(resp *SendResponse, chunk []RecipientRef, normalized map[string]string) []model.Outcome {
	byNumber := make(map[string]Result, len(resp.Recipients))
	for _, rec := range resp.Recipients {
		if n := strings.TrimSpace(rec.Number); n != "" {
			byNumber[n] = rec
		}
	}

	outcomes := make([]model.Outcome, 0, len(chunk))
	for _, ref := range chunk {
		rec, ok := byNumber[normalized[ref.Token]]
		if !ok {
			outcomes = append(outcomes, model.Outcome{
				Token:   ref.Token,
				Kind:    model.OutcomeFailed,
				Failure: model.FailureServerError,
				Reason:  "no result returned for number",
			})
			continue
		}

		if IsSuccessStatus(rec.Status) {
			outcomes = append(outcomes, model.Outcome{
				Token:             ref.Token,
				Kind:              model.OutcomeSent,
				ProviderMessageID: rec.MessageID,
				Cost:              ParseCost(rec.Cost),
			})
			continue
		}

		outcomes = append(outcomes, model.Outcome{
			Token:             ref.Token,
			Kind:              model.OutcomeFailed,
			Failure:           SendFailureKind(rec.Status),
			Reason:            rec.Status, // raw provider status kept as diagnostic
			ProviderMessageID: rec.MessageID,
			Cost:              0,
		})
	}
	return outcomes
}

// Package reconcile applies dispatch outcomes and delivery reports to
// recipient records. Both entry points are idempotent against the dispatch
// token and safe under concurrent, duplicated, or reordered invocation.
package reconcile

import (
	"context"
	"fmt"

	"github.com/jkarimi/sms-campaigns/internal/gateway"
	"github.com/jkarimi/sms-campaigns/internal/logger"
	"github.com/jkarimi/sms-campaigns/internal/metrics"
	"github.com/jkarimi/sms-campaigns/internal/model"
	"github.com/jkarimi/sms-campaigns/internal/repository"
	"go.uber.org/zap"
)

type Sink struct {
	recipients repository.RecipientsRepository
	campaigns  repository.CampaignsRepository
	events     repository.DeliveryEventsRepository // optional audit trail
}

func NewSink(
	recipientsRepo repository.RecipientsRepository,
	campaignsRepo repository.CampaignsRepository,
	eventsRepo repository.DeliveryEventsRepository,
) *Sink {
	return &Sink{
		recipients: recipientsRepo,
		campaigns:  campaignsRepo,
		events:     eventsRepo,
	}
}

// ApplySendOutcomes is the synchronous path, called right after a dispatch
// round. Each outcome writes the recipient's terminal status; the campaign
// aggregates are then recomputed once, from scratch.
func (s *Sink) ApplySendOutcomes(ctx context.Context, campaignID string, outcomes []model.Outcome) error {
	for _, o := range outcomes {
		reason := ""
		cost := o.Cost
		if o.Kind != model.OutcomeSent && o.Kind != model.OutcomeDelivered {
			reason = o.Reason
			cost = 0
		}
		applied, err := s.recipients.ApplyOutcome(ctx, o.Token, o.RecipientStatus(), reason, o.ProviderMessageID, cost)
		if err != nil {
			return fmt.Errorf("apply outcome token=%s: %w", o.Token, err)
		}
		if !applied {
			// already terminal at an equal or higher rank; duplicate apply
			logger.Log.Debug("send outcome not applied", zap.String("token", o.Token))
		}
	}

	if err := s.campaigns.RecomputeAggregates(ctx, campaignID); err != nil {
		return fmt.Errorf("recompute aggregates campaign=%s: %w", campaignID, err)
	}
	return nil
}

// ApplyDeliveryUpdate is the asynchronous path, invoked per inbound delivery
// webhook. An unknown token is a no-op, not an error: the provider may ping
// for records that were purged or never existed. The event is still counted
// and archived for operational visibility.
func (s *Sink) ApplyDeliveryUpdate(ctx context.Context, token, providerStatus, providerMessageID, phone, networkCode string) error {
	ev := model.DeliveryEvent{
		Token:             token,
		ProviderStatus:    providerStatus,
		ProviderMessageID: providerMessageID,
		Phone:             phone,
		NetworkCode:       networkCode,
	}

	rec, err := s.recipients.GetByToken(ctx, token)
	if err != nil {
		return fmt.Errorf("lookup token=%s: %w", token, err)
	}
	if rec == nil {
		ev.Result = model.DeliveryUnknownToken
		metrics.WebhookEventsTotal.WithLabelValues(model.DeliveryUnknownToken).Inc()
		logger.Log.Info("delivery report for unknown token",
			zap.String("token", token), zap.String("status", providerStatus))
		s.archive(ctx, ev)
		return nil
	}
	ev.CampaignID = rec.CampaignID

	next := gateway.DeliveryRecipientStatus(providerStatus)

	// a refinement to delivered keeps the cost captured at send time
	cost := rec.Cost
	reason := ""
	if !next.Succeeded() {
		cost = 0
		reason = providerStatus
	}

	applied, err := s.recipients.ApplyOutcome(ctx, token, next, reason, providerMessageID, cost)
	if err != nil {
		return fmt.Errorf("apply delivery token=%s: %w", token, err)
	}
	if applied {
		ev.Result = model.DeliveryApplied
		metrics.WebhookEventsTotal.WithLabelValues(model.DeliveryApplied).Inc()
	} else {
		// current status outranks the report (late failure after success,
		// duplicate delivered, out-of-order webhook)
		ev.Result = model.DeliveryStale
		metrics.WebhookEventsTotal.WithLabelValues(model.DeliveryStale).Inc()
	}
	s.archive(ctx, ev)

	if err := s.campaigns.RecomputeAggregates(ctx, rec.CampaignID); err != nil {
		return fmt.Errorf("recompute aggregates campaign=%s: %w", rec.CampaignID, err)
	}
	return nil
}

// archive is best-effort: a ClickHouse hiccup must not fail reconciliation.
func (s *Sink) archive(ctx context.Context, ev model.DeliveryEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Insert(ctx, ev); err != nil {
		logger.Log.Warn("delivery event archive failed", zap.Error(err))
	}
}

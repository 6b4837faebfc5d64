// Package worker runs the dispatch side of a campaign send: it consumes
// dispatch jobs from Kafka (relayed there from the outbox table), calls the
// SMS gateway, and reconciles the results back into MySQL.
package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jkarimi/sms-campaigns/internal/dispatcher"
	"github.com/jkarimi/sms-campaigns/internal/gateway"
	"github.com/jkarimi/sms-campaigns/internal/kafka"
	"github.com/jkarimi/sms-campaigns/internal/logger"
	"github.com/jkarimi/sms-campaigns/internal/model"
	"github.com/jkarimi/sms-campaigns/internal/repository"
	"github.com/jkarimi/sms-campaigns/internal/service/reconcile"
	"go.uber.org/zap"
)

// DispatchWorker:
// - fetches dispatch jobs from Kafka,
// - sends the campaign through the tenant's gateway in capped batches,
// - applies the per-recipient outcomes and derives the final campaign state.
//
// Jobs are committed whether they succeed or not; redelivery is harmless
// because outcome application never regresses a recipient.
type DispatchWorker struct {
	Consumer   *kafka.Consumer
	Tenants    repository.TenantsRepository
	Campaigns  repository.CampaignsRepository
	Recipients repository.RecipientsRepository
	Sink       *reconcile.Sink

	GatewayOpts gateway.ATOpts
	BatchMax    int
	Workers     int
}

func NewDispatchWorker(
	consumer *kafka.Consumer,
	tenantsRepo repository.TenantsRepository,
	campaignsRepo repository.CampaignsRepository,
	recipientsRepo repository.RecipientsRepository,
	sink *reconcile.Sink,
	opts gateway.ATOpts,
	batchMax int,
) *DispatchWorker {
	return &DispatchWorker{
		Consumer:    consumer,
		Tenants:     tenantsRepo,
		Campaigns:   campaignsRepo,
		Recipients:  recipientsRepo,
		Sink:        sink,
		GatewayOpts: opts,
		BatchMax:    batchMax,
		Workers:     4,
	}
}

// Run starts the worker and blocks until ctx is cancelled.
func (w *DispatchWorker) Run(ctx context.Context) error {
	if w.Workers <= 0 {
		w.Workers = 4
	}

	msgCh := make(chan kafka.Message, w.Workers)

	go func() {
		defer close(msgCh)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				m, err := w.Consumer.Fetch(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					logger.Log.Error("kafka fetch failed", zap.Error(err))
					time.Sleep(200 * time.Millisecond)
					continue
				}
				msgCh <- m
			}
		}
	}()

	for i := 0; i < w.Workers; i++ {
		go w.runProcessor(ctx, msgCh)
	}

	<-ctx.Done()
	return nil
}

func (w *DispatchWorker) runProcessor(ctx context.Context, in <-chan kafka.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-in:
			if !ok {
				return
			}
			w.processOne(ctx, m)
		}
	}
}

func (w *DispatchWorker) processOne(ctx context.Context, m kafka.Message) {
	// commit regardless of outcome; a poison job must not wedge the partition
	defer func() {
		if err := w.Consumer.Commit(ctx, m); err != nil {
			logger.Log.Error("kafka commit failed", zap.Error(err))
		}
	}()

	var job model.DispatchJob
	if err := json.Unmarshal(m.Value, &job); err != nil || job.CampaignID == "" {
		logger.Log.Warn("bad dispatch job payload", zap.Error(err))
		return
	}

	log := logger.Log.With(zap.String("campaign_id", job.CampaignID))

	if err := w.dispatchCampaign(ctx, job); err != nil {
		log.Error("campaign dispatch failed", zap.Error(err))
	}
}

func (w *DispatchWorker) dispatchCampaign(ctx context.Context, job model.DispatchJob) error {
	log := logger.Log.With(zap.String("campaign_id", job.CampaignID))

	c, err := w.Campaigns.GetByID(ctx, job.CampaignID)
	if err != nil {
		return err
	}
	if c == nil {
		log.Warn("dispatch job for unknown campaign")
		return nil
	}
	// only queued jobs are fresh; sending means a previous attempt crashed
	// mid-flight and at-least-once redelivery is finishing it
	if c.State != model.CampaignQueued && c.State != model.CampaignSending {
		log.Info("dispatch job for already-settled campaign", zap.String("state", c.State.String()))
		return nil
	}

	tenant, err := w.Tenants.GetByID(ctx, job.TenantID)
	if err != nil {
		return err
	}
	if tenant == nil {
		log.Error("dispatch job for unknown tenant", zap.Int64("tenant_id", job.TenantID))
		return w.Campaigns.UpdateState(ctx, nil, c.ID, model.CampaignFailed)
	}

	pending, err := w.Recipients.ListByCampaignAndStatus(ctx, c.ID, []model.RecipientStatus{model.RecipientPending})
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		log.Info("no pending recipients, settling campaign")
		return w.settle(ctx, c.ID)
	}

	if err := w.Campaigns.UpdateState(ctx, nil, c.ID, model.CampaignSending); err != nil {
		return err
	}

	refs := make([]gateway.RecipientRef, 0, len(pending))
	for _, r := range pending {
		refs = append(refs, gateway.RecipientRef{Token: r.DispatchToken, Phone: r.Phone})
	}

	outcomes, err := w.dispatch(ctx, tenant.GatewayConfig, c.Body, refs)
	if err != nil {
		return err
	}

	if err := w.Sink.ApplySendOutcomes(ctx, c.ID, outcomes); err != nil {
		return err
	}

	log.Info("campaign dispatched", zap.Int("recipients", len(refs)))
	return w.settle(ctx, c.ID)
}

func (w *DispatchWorker) dispatch(ctx context.Context, cfg model.GatewayConfig, body string, refs []gateway.RecipientRef) ([]model.Outcome, error) {
	provider, err := gateway.ForConfig(cfg, w.GatewayOpts)
	if err == nil {
		var outcomes []model.Outcome
		outcomes, err = dispatcher.New(provider, w.BatchMax).Dispatch(ctx, cfg, body, refs)
		if err == nil {
			return outcomes, nil
		}
	}

	// misconfiguration fails the whole attempt before any network call; every
	// pending recipient gets a terminal outcome so the campaign still settles
	outcomes := make([]model.Outcome, 0, len(refs))
	for _, ref := range refs {
		outcomes = append(outcomes, model.Outcome{
			Token:   ref.Token,
			Kind:    model.OutcomeFailed,
			Failure: model.FailureAuthentication,
			Reason:  err.Error(),
		})
	}
	return outcomes, nil
}

// settle recomputes aggregates and derives the final state from them.
func (w *DispatchWorker) settle(ctx context.Context, campaignID string) error {
	if err := w.Campaigns.RecomputeAggregates(ctx, campaignID); err != nil {
		return err
	}
	c, err := w.Campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return err
	}
	if c == nil {
		return nil
	}
	return w.Campaigns.UpdateState(ctx, nil, campaignID, c.FinalState())
}

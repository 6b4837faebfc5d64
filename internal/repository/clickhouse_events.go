package repository

import (
	"context"

	"github.com/jkarimi/sms-campaigns/internal/model"
	"github.com/jmoiron/sqlx"
)

// DeliveryEventsRepository archives inbound delivery webhooks in ClickHouse.
// Append-only: every webhook is recorded, including ones for unknown tokens,
// so operators can see what the provider actually posted.
type DeliveryEventsRepository interface {
	Insert(ctx context.Context, ev model.DeliveryEvent) error
	ListByCampaign(ctx context.Context, campaignID string, limit, offset int) ([]model.DeliveryEvent, error)
}

type deliveryEventsRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewDeliveryEventsRepository(ch *sqlx.DB) DeliveryEventsRepository {
	return &deliveryEventsRepository{ch: ch}
}

func (r *deliveryEventsRepository) Insert(ctx context.Context, ev model.DeliveryEvent) error {
	const q = `
		INSERT INTO smsc.delivery_events
		    (token, campaign_id, provider_status, provider_message_id, phone, network_code, result, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, now())
	`
	_, err := r.ch.ExecContext(ctx, q,
		ev.Token, ev.CampaignID, ev.ProviderStatus, ev.ProviderMessageID,
		ev.Phone, ev.NetworkCode, ev.Result,
	)
	return err
}

func (r *deliveryEventsRepository) ListByCampaign(ctx context.Context, campaignID string, limit, offset int) ([]model.DeliveryEvent, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var rows []model.DeliveryEvent
	err := r.ch.SelectContext(ctx, &rows, `
		SELECT token, campaign_id, provider_status, provider_message_id, phone, network_code, result
		  FROM smsc.delivery_events
		 WHERE campaign_id = ?
		 ORDER BY received_at DESC
		 LIMIT ? OFFSET ?
	`, campaignID, limit, offset)
	return rows, err
}

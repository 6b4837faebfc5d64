package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jkarimi/sms-campaigns/internal/model"
	"github.com/jmoiron/sqlx"
)

type CampaignsRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, c model.Campaign) error
	GetByID(ctx context.Context, id string) (*model.Campaign, error)
	UpdateState(ctx context.Context, tx *sqlx.Tx, id string, state model.CampaignState) error

	// RecomputeAggregates folds the recipient rows into the campaign's
	// derived counters from scratch. Never incremental: duplicate or
	// out-of-order webhooks cannot double-count.
	RecomputeAggregates(ctx context.Context, id string) error
}

type CampaignsRepositoryImpl struct {
	db *sqlx.DB
}

func NewCampaignsRepository(db *sqlx.DB) *CampaignsRepositoryImpl {
	return &CampaignsRepositoryImpl{db: db}
}

var _ CampaignsRepository = (*CampaignsRepositoryImpl)(nil)

func (r *CampaignsRepositoryImpl) withTx(ctx context.Context, tx *sqlx.Tx, fn func(*sqlx.Tx) error) error {
	if tx != nil {
		return fn(tx)
	}
	t, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = t.Rollback() }()
	if err := fn(t); err != nil {
		return err
	}
	return t.Commit()
}

func (r *CampaignsRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, c model.Campaign) error {
	const q = `
		INSERT INTO campaigns
		    (id, tenant_id, body, state, created_at, updated_at)
		VALUES
		    (?,  ?,         ?,    ?,     NOW(),      NOW())
	`
	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q, c.ID, c.TenantID, c.Body, c.State.String())
		return err
	})
}

func (r *CampaignsRepositoryImpl) GetByID(ctx context.Context, id string) (*model.Campaign, error) {
	var c model.Campaign
	err := r.db.GetContext(ctx, &c, `
		SELECT id, tenant_id, body, state,
		       recipient_count, success_count, failed_count, total_cost,
		       created_at, updated_at
		  FROM campaigns
		 WHERE id = ? LIMIT 1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CampaignsRepositoryImpl) UpdateState(ctx context.Context, tx *sqlx.Tx, id string, state model.CampaignState) error {
	const q = `UPDATE campaigns SET state = ?, updated_at = NOW() WHERE id = ?`
	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q, state.String(), id)
		return err
	})
}

func (r *CampaignsRepositoryImpl) RecomputeAggregates(ctx context.Context, id string) error {
	const q = `
		UPDATE campaigns c
		SET c.recipient_count = (
		        SELECT COUNT(*) FROM recipients r WHERE r.campaign_id = c.id
		    ),
		    c.success_count = (
		        SELECT COUNT(*) FROM recipients r
		         WHERE r.campaign_id = c.id AND r.status IN ('sent', 'delivered')
		    ),
		    c.failed_count = (
		        SELECT COUNT(*) FROM recipients r
		         WHERE r.campaign_id = c.id AND r.status IN ('failed', 'rejected')
		    ),
		    c.total_cost = (
		        SELECT COALESCE(SUM(r.cost), 0) FROM recipients r
		         WHERE r.campaign_id = c.id AND r.status IN ('sent', 'delivered')
		    ),
		    c.updated_at = NOW()
		WHERE c.id = ?
	`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}

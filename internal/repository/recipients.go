package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jkarimi/sms-campaigns/internal/model"
	"github.com/jmoiron/sqlx"
)

type RecipientsRepository interface {
	BulkInsert(ctx context.Context, tx *sqlx.Tx, recipients []model.Recipient) error
	ListByCampaign(ctx context.Context, campaignID string) ([]model.Recipient, error)
	ListByCampaignAndStatus(ctx context.Context, campaignID string, statuses []model.RecipientStatus) ([]model.Recipient, error)
	GetByToken(ctx context.Context, token string) (*model.Recipient, error)

	// MarkPending assigns a fresh dispatch token to each (id, token) pair and
	// moves the row to pending. A retried send mints new tokens; stale
	// webhooks for the old attempt no longer match.
	MarkPending(ctx context.Context, tx *sqlx.Tx, tokens map[int64]string) error

	// ApplyOutcome writes a terminal status for the row holding token, unless
	// the current status outranks the update (no regression from a success).
	// Returns whether a row was actually written.
	ApplyOutcome(ctx context.Context, token string, status model.RecipientStatus, reason, providerMessageID string, cost float64) (bool, error)
}

type RecipientsRepositoryImpl struct {
	db *sqlx.DB
}

func NewRecipientsRepository(db *sqlx.DB) *RecipientsRepositoryImpl {
	return &RecipientsRepositoryImpl{db: db}
}

var _ RecipientsRepository = (*RecipientsRepositoryImpl)(nil)

func (r *RecipientsRepositoryImpl) withTx(ctx context.Context, tx *sqlx.Tx, fn func(*sqlx.Tx) error) error {
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

func (r *RecipientsRepositoryImpl) BulkInsert(ctx context.Context, tx *sqlx.Tx, recipients []model.Recipient) error {
	if len(recipients) == 0 {
		return nil
	}
	const q = `
		INSERT INTO recipients
		    (campaign_id, name, phone, status, dispatch_token, created_at, updated_at)
		VALUES
		    (:campaign_id, :name, :phone, :status, :dispatch_token, NOW(), NOW())
	`
	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, q, recipients)
		return err
	})
}

const recipientColumns = `
	id, campaign_id, name, phone, status, failure_reason,
	provider_message_id, cost, dispatch_token, created_at, updated_at
`

func (r *RecipientsRepositoryImpl) ListByCampaign(ctx context.Context, campaignID string) ([]model.Recipient, error) {
	var rows []model.Recipient
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+recipientColumns+`
		  FROM recipients
		 WHERE campaign_id = ?
		 ORDER BY id
	`, campaignID)
	return rows, err
}

func (r *RecipientsRepositoryImpl) ListByCampaignAndStatus(ctx context.Context, campaignID string, statuses []model.RecipientStatus) ([]model.Recipient, error) {
	if len(statuses) == 0 {
		return r.ListByCampaign(ctx, campaignID)
	}
	query, args, err := sqlx.In(`
		SELECT `+recipientColumns+`
		  FROM recipients
		 WHERE campaign_id = ? AND status IN (?)
		 ORDER BY id
	`, campaignID, statuses)
	if err != nil {
		return nil, err
	}
	query = r.db.Rebind(query)

	var rows []model.Recipient
	err = r.db.SelectContext(ctx, &rows, query, args...)
	return rows, err
}

func (r *RecipientsRepositoryImpl) GetByToken(ctx context.Context, token string) (*model.Recipient, error) {
	var rec model.Recipient
	err := r.db.GetContext(ctx, &rec, `
		SELECT `+recipientColumns+`
		  FROM recipients
		 WHERE dispatch_token = ? LIMIT 1
	`, token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *RecipientsRepositoryImpl) MarkPending(ctx context.Context, tx *sqlx.Tx, tokens map[int64]string) error {
	const q = `
		UPDATE recipients
		   SET status = 'pending', dispatch_token = ?,
		       failure_reason = '', provider_message_id = '', cost = 0,
		       updated_at = NOW()
		 WHERE id = ?
	`
	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		for id, token := range tokens {
			if _, err := tx.ExecContext(ctx, q, token, id); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *RecipientsRepositoryImpl) ApplyOutcome(ctx context.Context, token string, status model.RecipientStatus, reason, providerMessageID string, cost float64) (bool, error) {
	// The guard set depends on the incoming status: a success is never
	// overwritten by a failure, delivered is never downgraded to sent.
	protected := model.ProtectedStatuses(status)

	query, args, err := sqlx.In(`
		UPDATE recipients
		   SET status = ?,
		       failure_reason = ?,
		       provider_message_id = IF(? <> '', ?, provider_message_id),
		       cost = ?,
		       updated_at = NOW()
		 WHERE dispatch_token = ? AND status NOT IN (?)
	`, status.String(), reason, providerMessageID, providerMessageID, cost, token, protected)
	if err != nil {
		return false, err
	}
	query = r.db.Rebind(query)

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Package campaign owns the campaign lifecycle on the API side: creation,
// recipient ingestion, and handing a send over to the dispatch worker through
// the transactional outbox.
package campaign

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jkarimi/sms-campaigns/internal/model"
	"github.com/jkarimi/sms-campaigns/internal/repository"
	"github.com/jkarimi/sms-campaigns/internal/util"
	"github.com/jmoiron/sqlx"
)

var (
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrNotSendable      = errors.New("campaign is not in a sendable state")
	ErrNoRecipients     = errors.New("campaign has no recipients to send to")
	ErrEmptyBody        = errors.New("campaign body is empty")
)

// DispatchTopic is the Kafka topic the outbox relay publishes send jobs to.
const DispatchTopic = "campaign.dispatch"

type Service struct {
	db         *sqlx.DB
	campaigns  repository.CampaignsRepository
	recipients repository.RecipientsRepository
	outbox     repository.OutboxRepository
}

func NewService(
	db *sqlx.DB,
	campaignsRepo repository.CampaignsRepository,
	recipientsRepo repository.RecipientsRepository,
	outboxRepo repository.OutboxRepository,
) *Service {
	return &Service{
		db:         db,
		campaigns:  campaignsRepo,
		recipients: recipientsRepo,
		outbox:     outboxRepo,
	}
}

// Create registers a draft campaign for the tenant.
func (s *Service) Create(ctx context.Context, tenantID int64, body string) (*model.Campaign, error) {
	if strings.TrimSpace(body) == "" {
		return nil, ErrEmptyBody
	}
	c := model.Campaign{
		ID:       util.NewID(),
		TenantID: tenantID,
		Body:     body,
		State:    model.CampaignDraft,
	}
	if err := s.campaigns.Insert(ctx, nil, c); err != nil {
		return nil, fmt.Errorf("insert campaign: %w", err)
	}
	return &c, nil
}

// RecipientInput is one (name, phone) pair as submitted by the caller. The
// phone is stored raw; normalization happens at dispatch time so the original
// input stays visible.
type RecipientInput struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// ParseManualNumbers splits a free-form numbers field on commas and newlines.
// Blank entries are dropped.
func ParseManualNumbers(raw string) []RecipientInput {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r' || r == ';'
	})
	var out []RecipientInput
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		out = append(out, RecipientInput{Phone: f})
	}
	return out
}

// AddRecipients appends recipients to a draft campaign. Each row gets its own
// dispatch token up front so the unique index holds from the first insert.
func (s *Service) AddRecipients(ctx context.Context, tenantID int64, campaignID string, inputs []RecipientInput) (int, error) {
	c, err := s.getOwned(ctx, tenantID, campaignID)
	if err != nil {
		return 0, err
	}
	if c.State != model.CampaignDraft {
		return 0, ErrNotSendable
	}

	recs := make([]model.Recipient, 0, len(inputs))
	for _, in := range inputs {
		phone := strings.TrimSpace(in.Phone)
		if phone == "" {
			continue
		}
		recs = append(recs, model.Recipient{
			CampaignID:    campaignID,
			Name:          strings.TrimSpace(in.Name),
			Phone:         phone,
			Status:        model.RecipientDraft,
			DispatchToken: util.NewDispatchToken(),
		})
	}
	if len(recs) == 0 {
		return 0, nil
	}
	if err := s.recipients.BulkInsert(ctx, nil, recs); err != nil {
		return 0, fmt.Errorf("insert recipients: %w", err)
	}
	if err := s.campaigns.RecomputeAggregates(ctx, campaignID); err != nil {
		return 0, fmt.Errorf("recompute aggregates: %w", err)
	}
	return len(recs), nil
}

// Send queues the campaign for dispatch. Every non-success recipient gets a
// fresh dispatch token, the campaign moves to queued, and a dispatch job lands
// in the outbox. All of it commits in one transaction: the job exists iff the
// state change does.
func (s *Service) Send(ctx context.Context, tenantID int64, campaignID string) (*model.Campaign, error) {
	c, err := s.getOwned(ctx, tenantID, campaignID)
	if err != nil {
		return nil, err
	}
	if !c.State.Sendable() {
		return nil, ErrNotSendable
	}

	// a re-send of a partial/failed campaign only re-dispatches the rows
	// that have not succeeded yet
	pending, err := s.recipients.ListByCampaignAndStatus(ctx, campaignID, []model.RecipientStatus{
		model.RecipientDraft, model.RecipientPending, model.RecipientFailed, model.RecipientRejected,
	})
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}
	if len(pending) == 0 {
		return nil, ErrNoRecipients
	}

	tokens := make(map[int64]string, len(pending))
	for _, r := range pending {
		tokens[r.ID] = util.NewDispatchToken()
	}

	job, err := json.Marshal(model.DispatchJob{CampaignID: campaignID, TenantID: tenantID})
	if err != nil {
		return nil, fmt.Errorf("marshal dispatch job: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.recipients.MarkPending(ctx, tx, tokens); err != nil {
		return nil, fmt.Errorf("mark pending: %w", err)
	}
	if err := s.campaigns.UpdateState(ctx, tx, campaignID, model.CampaignQueued); err != nil {
		return nil, fmt.Errorf("update state: %w", err)
	}
	if err := s.outbox.Insert(ctx, tx, "campaign", campaignID, DispatchTopic, job); err != nil {
		return nil, fmt.Errorf("enqueue dispatch job: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	c.State = model.CampaignQueued
	return c, nil
}

// Get returns a campaign owned by the tenant.
func (s *Service) Get(ctx context.Context, tenantID int64, campaignID string) (*model.Campaign, error) {
	return s.getOwned(ctx, tenantID, campaignID)
}

// Recipients lists the campaign's recipient rows.
func (s *Service) Recipients(ctx context.Context, tenantID int64, campaignID string) ([]model.Recipient, error) {
	if _, err := s.getOwned(ctx, tenantID, campaignID); err != nil {
		return nil, err
	}
	return s.recipients.ListByCampaign(ctx, campaignID)
}

func (s *Service) getOwned(ctx context.Context, tenantID int64, campaignID string) (*model.Campaign, error) {
	c, err := s.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	// a campaign belonging to another tenant is indistinguishable from a
	// missing one
	if c == nil || c.TenantID != tenantID {
		return nil, ErrCampaignNotFound
	}
	return c, nil
}

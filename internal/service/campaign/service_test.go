package campaign

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/jkarimi/sms-campaigns/internal/model"
	"github.com/jmoiron/sqlx"
)

type memCampaigns struct {
	byID map[string]*model.Campaign
}

func (m *memCampaigns) Insert(_ context.Context, _ *sqlx.Tx, c model.Campaign) error {
	m.byID[c.ID] = &c
	return nil
}

func (m *memCampaigns) GetByID(_ context.Context, id string) (*model.Campaign, error) {
	c, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *memCampaigns) UpdateState(_ context.Context, _ *sqlx.Tx, id string, state model.CampaignState) error {
	if c, ok := m.byID[id]; ok {
		c.State = state
	}
	return nil
}

func (m *memCampaigns) RecomputeAggregates(context.Context, string) error { return nil }

type memRecipients struct {
	rows []model.Recipient
}

func (m *memRecipients) BulkInsert(_ context.Context, _ *sqlx.Tx, recs []model.Recipient) error {
	m.rows = append(m.rows, recs...)
	return nil
}

func (m *memRecipients) ListByCampaign(_ context.Context, campaignID string) ([]model.Recipient, error) {
	var out []model.Recipient
	for _, r := range m.rows {
		if r.CampaignID == campaignID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRecipients) ListByCampaignAndStatus(ctx context.Context, campaignID string, statuses []model.RecipientStatus) ([]model.Recipient, error) {
	all, _ := m.ListByCampaign(ctx, campaignID)
	var out []model.Recipient
	for _, r := range all {
		for _, s := range statuses {
			if r.Status == s {
				out = append(out, r)
				break
			}
		}
	}
	return out, nil
}

func (m *memRecipients) GetByToken(context.Context, string) (*model.Recipient, error) {
	return nil, nil
}

func (m *memRecipients) MarkPending(context.Context, *sqlx.Tx, map[int64]string) error { return nil }

func (m *memRecipients) ApplyOutcome(context.Context, string, model.RecipientStatus, string, string, float64) (bool, error) {
	return false, nil
}

type memOutbox struct{ inserts int }

func (m *memOutbox) Insert(context.Context, *sqlx.Tx, string, string, string, []byte) error {
	m.inserts++
	return nil
}

func newTestService() (*Service, *memCampaigns, *memRecipients) {
	camps := &memCampaigns{byID: map[string]*model.Campaign{}}
	recs := &memRecipients{}
	return NewService(nil, camps, recs, &memOutbox{}), camps, recs
}

func TestParseManualNumbers(t *testing.T) {
	got := ParseManualNumbers("0727374660, 0727374661\n+254727374662;\n\n")
	want := []RecipientInput{
		{Phone: "0727374660"},
		{Phone: "0727374661"},
		{Phone: "+254727374662"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseManualNumbers = %+v, want %+v", got, want)
	}

	if got := ParseManualNumbers("  \n ,, "); got != nil {
		t.Errorf("blank input should yield nothing, got %+v", got)
	}
}

func TestCreateRejectsEmptyBody(t *testing.T) {
	svc, _, _ := newTestService()
	if _, err := svc.Create(context.Background(), 1, "   "); !errors.Is(err, ErrEmptyBody) {
		t.Errorf("err = %v, want ErrEmptyBody", err)
	}
}

func TestCreateAssignsIDAndDraftState(t *testing.T) {
	svc, camps, _ := newTestService()
	c, err := svc.Create(context.Background(), 7, "hello")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if c.ID == "" {
		t.Error("campaign ID not assigned")
	}
	if c.State != model.CampaignDraft {
		t.Errorf("state = %s, want draft", c.State)
	}
	if camps.byID[c.ID] == nil {
		t.Error("campaign not persisted")
	}
}

func TestAddRecipientsMintsTokens(t *testing.T) {
	svc, _, recs := newTestService()
	ctx := context.Background()
	c, _ := svc.Create(ctx, 1, "hello")

	n, err := svc.AddRecipients(ctx, 1, c.ID, []RecipientInput{
		{Name: "alice", Phone: "0727374660"},
		{Phone: "  "},
		{Name: "bob", Phone: "0727374661"},
	})
	if err != nil {
		t.Fatalf("AddRecipients: %v", err)
	}
	if n != 2 {
		t.Errorf("added = %d, want 2 (blank phone dropped)", n)
	}

	seen := map[string]bool{}
	for _, r := range recs.rows {
		if r.DispatchToken == "" {
			t.Errorf("recipient %q has no dispatch token", r.Phone)
		}
		if seen[r.DispatchToken] {
			t.Errorf("duplicate dispatch token %q", r.DispatchToken)
		}
		seen[r.DispatchToken] = true
		if r.Status != model.RecipientDraft {
			t.Errorf("recipient status = %s, want draft", r.Status)
		}
	}
}

func TestTenantOwnershipIsEnforced(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	c, _ := svc.Create(ctx, 1, "hello")

	if _, err := svc.Get(ctx, 2, c.ID); !errors.Is(err, ErrCampaignNotFound) {
		t.Errorf("foreign tenant Get err = %v, want ErrCampaignNotFound", err)
	}
	if _, err := svc.AddRecipients(ctx, 2, c.ID, []RecipientInput{{Phone: "0727374660"}}); !errors.Is(err, ErrCampaignNotFound) {
		t.Errorf("foreign tenant AddRecipients err = %v, want ErrCampaignNotFound", err)
	}
}

func TestSendGuards(t *testing.T) {
	svc, camps, _ := newTestService()
	ctx := context.Background()
	c, _ := svc.Create(ctx, 1, "hello")

	// no recipients yet
	if _, err := svc.Send(ctx, 1, c.ID); !errors.Is(err, ErrNoRecipients) {
		t.Errorf("err = %v, want ErrNoRecipients", err)
	}

	// not sendable once queued
	camps.byID[c.ID].State = model.CampaignQueued
	if _, err := svc.Send(ctx, 1, c.ID); !errors.Is(err, ErrNotSendable) {
		t.Errorf("err = %v, want ErrNotSendable", err)
	}
	camps.byID[c.ID].State = model.CampaignSending
	if _, err := svc.Send(ctx, 1, c.ID); !errors.Is(err, ErrNotSendable) {
		t.Errorf("err = %v, want ErrNotSendable", err)
	}

	// missing campaign
	if _, err := svc.Send(ctx, 1, "nope"); !errors.Is(err, ErrCampaignNotFound) {
		t.Errorf("err = %v, want ErrCampaignNotFound", err)
	}
}

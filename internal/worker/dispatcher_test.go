package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jkarimi/sms-campaigns/internal/gateway"
	"github.com/jkarimi/sms-campaigns/internal/model"
	"github.com/jkarimi/sms-campaigns/internal/service/reconcile"
	"github.com/jmoiron/sqlx"
)

type stubTenants struct {
	tenant *model.Tenant
}

func (s *stubTenants) GetByAPIKey(context.Context, string) (*model.Tenant, error) {
	return s.tenant, nil
}

func (s *stubTenants) GetByID(_ context.Context, id int64) (*model.Tenant, error) {
	if s.tenant != nil && s.tenant.ID == id {
		return s.tenant, nil
	}
	return nil, nil
}

type stubCampaigns struct {
	campaign   *model.Campaign
	recipients *stubRecipients
}

func (s *stubCampaigns) Insert(context.Context, *sqlx.Tx, model.Campaign) error { return nil }

func (s *stubCampaigns) GetByID(_ context.Context, id string) (*model.Campaign, error) {
	if s.campaign != nil && s.campaign.ID == id {
		cp := *s.campaign
		return &cp, nil
	}
	return nil, nil
}

func (s *stubCampaigns) UpdateState(_ context.Context, _ *sqlx.Tx, id string, state model.CampaignState) error {
	if s.campaign != nil && s.campaign.ID == id {
		s.campaign.State = state
	}
	return nil
}

func (s *stubCampaigns) RecomputeAggregates(ctx context.Context, id string) error {
	recs, _ := s.recipients.ListByCampaign(ctx, id)
	c := s.campaign
	c.RecipientCount = len(recs)
	c.SuccessCount = 0
	c.FailedCount = 0
	c.TotalCost = 0
	for _, r := range recs {
		switch {
		case r.Status.Succeeded():
			c.SuccessCount++
			c.TotalCost += r.Cost
		case r.Status == model.RecipientFailed || r.Status == model.RecipientRejected:
			c.FailedCount++
		}
	}
	return nil
}

type stubRecipients struct {
	byToken map[string]*model.Recipient
}

func (s *stubRecipients) BulkInsert(context.Context, *sqlx.Tx, []model.Recipient) error { return nil }

func (s *stubRecipients) ListByCampaign(_ context.Context, campaignID string) ([]model.Recipient, error) {
	var out []model.Recipient
	for _, r := range s.byToken {
		if r.CampaignID == campaignID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *stubRecipients) ListByCampaignAndStatus(ctx context.Context, campaignID string, statuses []model.RecipientStatus) ([]model.Recipient, error) {
	all, _ := s.ListByCampaign(ctx, campaignID)
	var out []model.Recipient
	for _, r := range all {
		for _, st := range statuses {
			if r.Status == st {
				out = append(out, r)
				break
			}
		}
	}
	return out, nil
}

func (s *stubRecipients) GetByToken(_ context.Context, token string) (*model.Recipient, error) {
	r, ok := s.byToken[token]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (s *stubRecipients) MarkPending(context.Context, *sqlx.Tx, map[int64]string) error { return nil }

func (s *stubRecipients) ApplyOutcome(_ context.Context, token string, status model.RecipientStatus, reason, providerMessageID string, cost float64) (bool, error) {
	r, ok := s.byToken[token]
	if !ok {
		return false, nil
	}
	if !model.CanTransition(r.Status, status) {
		return false, nil
	}
	r.Status = status
	r.FailureReason = reason
	if providerMessageID != "" {
		r.ProviderMessageID = providerMessageID
	}
	r.Cost = cost
	return true, nil
}

func workerFixture(gatewayBase string) (*DispatchWorker, *stubCampaigns, *stubRecipients) {
	recs := &stubRecipients{byToken: map[string]*model.Recipient{
		"tok-1": {ID: 1, CampaignID: "c1", DispatchToken: "tok-1", Phone: "0727374660", Status: model.RecipientPending},
		"tok-2": {ID: 2, CampaignID: "c1", DispatchToken: "tok-2", Phone: "0727374661", Status: model.RecipientPending},
	}}
	camps := &stubCampaigns{
		campaign:   &model.Campaign{ID: "c1", TenantID: 1, Body: "hello", State: model.CampaignQueued},
		recipients: recs,
	}
	tenants := &stubTenants{tenant: &model.Tenant{
		ID: 1,
		GatewayConfig: model.GatewayConfig{
			Username:    "sandbox",
			APIKey:      "key",
			Environment: model.EnvSandbox,
			CountryCode: "254",
		},
	}}
	sink := reconcile.NewSink(recs, camps, nil)
	w := NewDispatchWorker(nil, tenants, camps, recs, sink, gateway.ATOpts{SandboxBase: gatewayBase}, 500)
	return w, camps, recs
}

func successServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		if err := req.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		numbers := strings.Split(req.PostForm.Get("to"), ",")
		type rec struct {
			StatusCode int    `json:"statusCode"`
			Number     string `json:"number"`
			Status     string `json:"status"`
			Cost       string `json:"cost"`
			MessageID  string `json:"messageId"`
		}
		var out []rec
		for i, n := range numbers {
			out = append(out, rec{
				StatusCode: 101, Number: n, Status: "Success",
				Cost: "KES 0.8000", MessageID: fmt.Sprintf("ATXid_%d", i),
			})
		}
		_ = json.NewEncoder(rw).Encode(map[string]any{
			"SMSMessageData": map[string]any{"Message": "Sent", "Recipients": out},
		})
	}))
}

func TestDispatchCampaignSettlesDone(t *testing.T) {
	srv := successServer(t)
	defer srv.Close()

	w, camps, recs := workerFixture(srv.URL)
	job := model.DispatchJob{CampaignID: "c1", TenantID: 1}

	if err := w.dispatchCampaign(context.Background(), job); err != nil {
		t.Fatalf("dispatchCampaign: %v", err)
	}

	if camps.campaign.State != model.CampaignDone {
		t.Errorf("state = %s, want done", camps.campaign.State)
	}
	if camps.campaign.SuccessCount != 2 || camps.campaign.TotalCost != 1.6 {
		t.Errorf("aggregates: %+v", camps.campaign)
	}
	for tok, r := range recs.byToken {
		if r.Status != model.RecipientSent || r.Cost != 0.8 {
			t.Errorf("recipient %s: %+v", tok, r)
		}
	}
}

func TestDispatchCampaignRedeliveryIsIdempotent(t *testing.T) {
	srv := successServer(t)
	defer srv.Close()

	w, camps, _ := workerFixture(srv.URL)
	job := model.DispatchJob{CampaignID: "c1", TenantID: 1}
	ctx := context.Background()

	if err := w.dispatchCampaign(ctx, job); err != nil {
		t.Fatalf("first: %v", err)
	}
	first := *camps.campaign

	// the campaign is done; a redelivered job must be a no-op
	if err := w.dispatchCampaign(ctx, job); err != nil {
		t.Fatalf("second: %v", err)
	}
	if *camps.campaign != first {
		t.Errorf("redelivery changed the campaign: %+v vs %+v", *camps.campaign, first)
	}
}

func TestDispatchCampaignMissingCredentialsFailsAllRecipients(t *testing.T) {
	srv := successServer(t)
	defer srv.Close()

	w, camps, recs := workerFixture(srv.URL)
	w.Tenants.(*stubTenants).tenant.GatewayConfig = model.GatewayConfig{}

	if err := w.dispatchCampaign(context.Background(), model.DispatchJob{CampaignID: "c1", TenantID: 1}); err != nil {
		t.Fatalf("dispatchCampaign: %v", err)
	}

	if camps.campaign.State != model.CampaignFailed {
		t.Errorf("state = %s, want failed", camps.campaign.State)
	}
	for tok, r := range recs.byToken {
		if r.Status != model.RecipientFailed {
			t.Errorf("recipient %s status = %s, want failed", tok, r.Status)
		}
	}
}

func TestDispatchCampaignUnknownTenantFailsCampaign(t *testing.T) {
	w, camps, _ := workerFixture("http://invalid.test")

	if err := w.dispatchCampaign(context.Background(), model.DispatchJob{CampaignID: "c1", TenantID: 99}); err != nil {
		t.Fatalf("dispatchCampaign: %v", err)
	}
	if camps.campaign.State != model.CampaignFailed {
		t.Errorf("state = %s, want failed", camps.campaign.State)
	}
}

package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/jkarimi/sms-campaigns/internal/gateway"
	"github.com/jkarimi/sms-campaigns/internal/model"
)

// fakeProvider records each SendBatch call and replays canned responses.
type fakeProvider struct {
	calls   [][]string
	respond func(to []string) (*gateway.SendResponse, error)
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) SendBatch(_ context.Context, _ model.GatewayConfig, to []string, _ string) (*gateway.SendResponse, error) {
	f.calls = append(f.calls, to)
	return f.respond(to)
}

func (f *fakeProvider) Balance(context.Context, model.GatewayConfig) (string, error) {
	return "", nil
}

// allSuccess answers Success for every number in the request.
func allSuccess(to []string) (*gateway.SendResponse, error) {
	resp := &gateway.SendResponse{}
	for i, n := range to {
		resp.Recipients = append(resp.Recipients, gateway.Result{
			Number: n, Status: "Success", Cost: "KES 0.8000",
			MessageID: fmt.Sprintf("ATXid_%d", i),
		})
	}
	return resp, nil
}

func cfg() model.GatewayConfig {
	return model.GatewayConfig{
		Username:    "sandbox",
		APIKey:      "key",
		Environment: model.EnvSandbox,
		CountryCode: "254",
	}
}

func refs(n int) []gateway.RecipientRef {
	out := make([]gateway.RecipientRef, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, gateway.RecipientRef{
			Token: fmt.Sprintf("tok-%d", i),
			Phone: fmt.Sprintf("+2547273%05d", i),
		})
	}
	return out
}

func TestDispatchChunksAtBatchMax(t *testing.T) {
	fp := &fakeProvider{respond: allSuccess}
	d := New(fp, 500)

	outcomes, err := d.Dispatch(context.Background(), cfg(), "hello", refs(1200))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(outcomes) != 1200 {
		t.Fatalf("got %d outcomes, want 1200", len(outcomes))
	}
	if len(fp.calls) != 3 {
		t.Fatalf("got %d gateway calls, want 3", len(fp.calls))
	}
	for i, want := range []int{500, 500, 200} {
		if len(fp.calls[i]) != want {
			t.Errorf("call %d carried %d numbers, want %d", i, len(fp.calls[i]), want)
		}
	}
}

func TestDispatchInvalidNumbersFailWithoutNetworkCall(t *testing.T) {
	fp := &fakeProvider{respond: allSuccess}
	d := New(fp, 500)

	recipients := []gateway.RecipientRef{
		{Token: "tok-good", Phone: "0727374660"},
		{Token: "tok-empty", Phone: "   "},
		{Token: "tok-junk", Phone: "n/a"},
	}
	outcomes, err := d.Dispatch(context.Background(), cfg(), "hello", recipients)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(outcomes) != 3 {
		t.Fatalf("got %d outcomes, want 3 (one per input recipient)", len(outcomes))
	}

	byToken := map[string]model.Outcome{}
	for _, o := range outcomes {
		byToken[o.Token] = o
	}
	for _, tok := range []string{"tok-empty", "tok-junk"} {
		if o := byToken[tok]; o.Kind != model.OutcomeFailed || o.Failure != model.FailureInvalidNumber {
			t.Errorf("%s: want failed/invalid-number, got %+v", tok, o)
		}
	}
	if o := byToken["tok-good"]; o.Kind != model.OutcomeSent {
		t.Errorf("tok-good: want sent, got %+v", o)
	}
	if len(fp.calls) != 1 || len(fp.calls[0]) != 1 {
		t.Errorf("only the valid number may hit the gateway, calls=%v", fp.calls)
	}
}

func TestDispatchTransportFailureDegradesWholeChunk(t *testing.T) {
	calls := 0
	fp := &fakeProvider{respond: func(to []string) (*gateway.SendResponse, error) {
		calls++
		if calls == 2 {
			return nil, fmt.Errorf("%w: dial timeout", gateway.ErrTransport)
		}
		return allSuccess(to)
	}}
	d := New(fp, 10)

	outcomes, err := d.Dispatch(context.Background(), cfg(), "hello", refs(25))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(outcomes) != 25 {
		t.Fatalf("got %d outcomes, want 25", len(outcomes))
	}

	var sent, failed int
	for _, o := range outcomes {
		switch o.Kind {
		case model.OutcomeSent:
			sent++
		case model.OutcomeFailed:
			failed++
			if o.Failure != model.FailureServerError {
				t.Errorf("transport failure must map to server-error, got %s", o.Failure)
			}
			if o.Cost != 0 || o.ProviderMessageID != "" {
				t.Errorf("degraded outcome carries cost/provider id: %+v", o)
			}
		}
	}
	// chunk 2 of 10 failed; chunks 1 and 3 (10 + 5) succeeded
	if sent != 15 || failed != 10 {
		t.Errorf("sent=%d failed=%d, want 15/10", sent, failed)
	}
}

func TestDispatchMissingConfigFailsFast(t *testing.T) {
	fp := &fakeProvider{respond: allSuccess}
	d := New(fp, 500)

	bad := cfg()
	bad.Username = ""
	_, err := d.Dispatch(context.Background(), bad, "hello", refs(3))
	if !errors.Is(err, model.ErrConfigurationMissing) {
		t.Fatalf("want ErrConfigurationMissing, got %v", err)
	}
	if len(fp.calls) != 0 {
		t.Error("no gateway call may be made without credentials")
	}
}

func TestDispatchEndToEndScenario(t *testing.T) {
	// 3 recipients: two Success at KES 0.5000, one InsufficientBalance.
	fp := &fakeProvider{respond: func(to []string) (*gateway.SendResponse, error) {
		return &gateway.SendResponse{Recipients: []gateway.Result{
			{Number: to[0], Status: "Success", Cost: "KES 0.5000", MessageID: "ATXid_1"},
			{Number: to[1], Status: "Success", Cost: "KES 0.5000", MessageID: "ATXid_2"},
			{Number: to[2], Status: "InsufficientBalance", Cost: "0"},
		}}, nil
	}}
	d := New(fp, 500)

	outcomes, err := d.Dispatch(context.Background(), cfg(), "hello", refs(3))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(outcomes) != 3 {
		t.Fatalf("got %d outcomes, want 3", len(outcomes))
	}

	var total float64
	var sent, failed int
	for _, o := range outcomes {
		switch o.Kind {
		case model.OutcomeSent:
			sent++
			total += o.Cost
		case model.OutcomeFailed:
			failed++
			if o.Failure != model.FailureInsufficientBalance {
				t.Errorf("want insufficient-balance, got %s", o.Failure)
			}
			if o.Cost != 0 {
				t.Errorf("failed outcome must cost 0, got %v", o.Cost)
			}
		}
	}
	if sent != 2 || failed != 1 {
		t.Errorf("sent=%d failed=%d, want 2/1", sent, failed)
	}
	if math.Abs(total-1.0) > 1e-9 {
		t.Errorf("total cost = %v, want 1.0", total)
	}
}

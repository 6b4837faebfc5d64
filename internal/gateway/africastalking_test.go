package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jkarimi/sms-campaigns/internal/model"
)

func testConfig(env string) model.GatewayConfig {
	return model.GatewayConfig{
		Username:    "sandbox",
		APIKey:      "test-key",
		SenderID:    "TESTORG",
		Environment: env,
		CountryCode: "254",
	}
}

func TestSendBatchRequestShape(t *testing.T) {
	var gotForm map[string]string
	var gotAPIKey string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotAPIKey = r.Header.Get("apiKey")
		gotForm = map[string]string{
			"username":    r.PostFormValue("username"),
			"to":          r.PostFormValue("to"),
			"message":     r.PostFormValue("message"),
			"bulkSMSMode": r.PostFormValue("bulkSMSMode"),
			"from":        r.PostFormValue("from"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"SMSMessageData":{"Message":"Sent to 2/2","Recipients":[
			{"statusCode":101,"number":"+254727374660","status":"Success","cost":"KES 0.8000","messageId":"ATXid_1"},
			{"statusCode":101,"number":"+254727374661","status":"Success","cost":"KES 0.8000","messageId":"ATXid_2"}
		]}}`))
	}))
	defer srv.Close()

	p := NewAfricasTalking(ATOpts{SandboxBase: srv.URL})
	resp, err := p.SendBatch(context.Background(), testConfig(model.EnvSandbox),
		[]string{"+254727374660", "+254727374661"}, "hello")
	if err != nil {
		t.Fatalf("SendBatch: %v", err)
	}

	if gotAPIKey != "test-key" {
		t.Errorf("apiKey header = %q", gotAPIKey)
	}
	if gotForm["username"] != "sandbox" || gotForm["bulkSMSMode"] != "1" || gotForm["from"] != "TESTORG" {
		t.Errorf("unexpected form: %+v", gotForm)
	}
	if gotForm["to"] != "+254727374660,+254727374661" {
		t.Errorf("to = %q", gotForm["to"])
	}
	if len(resp.Recipients) != 2 || resp.Recipients[0].MessageID != "ATXid_1" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestSendBatchParsesErrorBodyOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"SMSMessageData":{"Recipients":[
			{"number":"+254727374660","status":"AuthenticationFailed","cost":"0"}
		]}}`))
	}))
	defer srv.Close()

	p := NewAfricasTalking(ATOpts{SandboxBase: srv.URL})
	resp, err := p.SendBatch(context.Background(), testConfig(model.EnvSandbox), []string{"+254727374660"}, "hi")
	if err != nil {
		t.Fatalf("expected parseable error body to be returned, got err %v", err)
	}
	if len(resp.Recipients) != 1 || resp.Recipients[0].Status != "AuthenticationFailed" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestSendBatchTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	p := NewAfricasTalking(ATOpts{SandboxBase: srv.URL})
	_, err := p.SendBatch(context.Background(), testConfig(model.EnvSandbox), []string{"+254727374660"}, "hi")
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("want ErrTransport, got %v", err)
	}
}

func TestSendBatchUnparseableBodyIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>gateway timeout</html>"))
	}))
	defer srv.Close()

	p := NewAfricasTalking(ATOpts{SandboxBase: srv.URL})
	_, err := p.SendBatch(context.Background(), testConfig(model.EnvSandbox), []string{"+254727374660"}, "hi")
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("want ErrTransport, got %v", err)
	}
}

func TestSendBatchMissingCredentialsFailsFast(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	p := NewAfricasTalking(ATOpts{SandboxBase: srv.URL})
	cfg := testConfig(model.EnvSandbox)
	cfg.APIKey = ""
	_, err := p.SendBatch(context.Background(), cfg, []string{"+254727374660"}, "hi")
	if !errors.Is(err, model.ErrConfigurationMissing) {
		t.Fatalf("want ErrConfigurationMissing, got %v", err)
	}
	if called {
		t.Error("no network call may be made without credentials")
	}
}

func TestBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/version1/user" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("username") != "sandbox" {
			t.Errorf("username = %q", r.URL.Query().Get("username"))
		}
		if r.Header.Get("apiKey") != "test-key" {
			t.Errorf("apiKey = %q", r.Header.Get("apiKey"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"UserData":{"balance":"KES 1234.50"}}`))
	}))
	defer srv.Close()

	p := NewAfricasTalking(ATOpts{SandboxBase: srv.URL})
	bal, err := p.Balance(context.Background(), testConfig(model.EnvSandbox))
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if bal != "KES 1234.50" {
		t.Errorf("balance = %q", bal)
	}
}

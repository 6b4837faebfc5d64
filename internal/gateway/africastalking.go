package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jkarimi/sms-campaigns/internal/model"
)

const (
	atProductionBase = "https://api.africastalking.com"
	atSandboxBase    = "https://sandbox.africastalking.com"

	atMessagingPath = "/version1/messaging"
	atUserPath      = "/version1/user"
)

// ATOpts tunes the Africa's Talking client. Zero values get defaults.
type ATOpts struct {
	SendTimeout    time.Duration // default 30s
	BalanceTimeout time.Duration // default 10s
	ProductionBase string
	SandboxBase    string
}

// AfricasTalking sends via the AT bulk messaging API: form-encoded POST with
// an apiKey header, JSON response with one record per recipient.
type AfricasTalking struct {
	sendClient    *http.Client
	balanceClient *http.Client
	prodBase      string
	sandboxBase   string
}

func NewAfricasTalking(opts ATOpts) *AfricasTalking {
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 30 * time.Second
	}
	if opts.BalanceTimeout <= 0 {
		opts.BalanceTimeout = 10 * time.Second
	}
	if opts.ProductionBase == "" {
		opts.ProductionBase = atProductionBase
	}
	if opts.SandboxBase == "" {
		opts.SandboxBase = atSandboxBase
	}

	return &AfricasTalking{
		sendClient:    &http.Client{Timeout: opts.SendTimeout},
		balanceClient: &http.Client{Timeout: opts.BalanceTimeout},
		prodBase:      opts.ProductionBase,
		sandboxBase:   opts.SandboxBase,
	}
}

func (p *AfricasTalking) Name() string { return "africastalking" }

func (p *AfricasTalking) base(cfg model.GatewayConfig) string {
	if cfg.Sandbox() {
		return p.sandboxBase
	}
	return p.prodBase
}

// atSendEnvelope mirrors the AT response body:
//
//	{"SMSMessageData": {"Message": "...", "Recipients": [{...}]}}
type atSendEnvelope struct {
	SMSMessageData struct {
		Message    string   `json:"Message"`
		Recipients []Result `json:"Recipients"`
	} `json:"SMSMessageData"`
}

type atUserEnvelope struct {
	UserData struct {
		Balance string `json:"balance"`
	} `json:"UserData"`
}

// SendBatch performs one bulk-send call for an already-chunked set of
// normalized numbers. A non-2xx status with a parseable AT body is still
// returned as a SendResponse; only transport-level failures and unparseable
// bodies come back as ErrTransport.
func (p *AfricasTalking) SendBatch(ctx context.Context, cfg model.GatewayConfig, to []string, message string) (*SendResponse, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("username", cfg.Username)
	form.Set("to", strings.Join(to, ","))
	form.Set("message", message)
	form.Set("bulkSMSMode", "1")
	if cfg.SenderID != "" {
		form.Set("from", cfg.SenderID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.base(cfg)+atMessagingPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("apiKey", cfg.APIKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	res, err := p.sendClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}

	var env atSendEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: status=%d unparseable body", ErrTransport, res.StatusCode)
	}

	return &SendResponse{
		Message:    env.SMSMessageData.Message,
		Recipients: env.SMSMessageData.Recipients,
	}, nil
}

// Balance fetches the account credit balance string, e.g. "KES 1234.50".
func (p *AfricasTalking) Balance(ctx context.Context, cfg model.GatewayConfig) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	u := p.base(cfg) + atUserPath + "?username=" + url.QueryEscape(cfg.Username)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("apiKey", cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	res, err := p.balanceClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer res.Body.Close()

	if res.StatusCode/100 != 2 {
		return "", fmt.Errorf("%w: balance query status=%d", ErrTransport, res.StatusCode)
	}

	var env atUserEnvelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		return "", fmt.Errorf("%w: unparseable balance body", ErrTransport)
	}
	return env.UserData.Balance, nil
}

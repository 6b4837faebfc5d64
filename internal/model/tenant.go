package model

import (
	"errors"
	"time"
)

// ErrConfigurationMissing is returned before any network call is attempted
// when a tenant has no usable gateway credentials.
var ErrConfigurationMissing = errors.New("gateway credentials not configured")

const (
	EnvProduction = "production"
	EnvSandbox    = "sandbox"
)

// GatewayConfig is the per-tenant SMS provider configuration. It is passed
// explicitly into every gateway/dispatcher call; there is no ambient tenant.
// Username and APIKey must never appear in logs.
type GatewayConfig struct {
	Provider    string `db:"gw_provider"` // e.g. "africastalking"
	Username    string `db:"gw_username"`
	APIKey      string `db:"gw_api_key"`
	SenderID    string `db:"gw_sender_id"`
	Environment string `db:"gw_environment"`  // production | sandbox
	CountryCode string `db:"gw_country_code"` // default trunk country code, e.g. "254"
}

func (c GatewayConfig) Sandbox() bool {
	return c.Environment == EnvSandbox
}

// Validate fails fast on missing credentials, before any dispatch begins.
func (c GatewayConfig) Validate() error {
	if c.Username == "" || c.APIKey == "" {
		return ErrConfigurationMissing
	}
	return nil
}

type Tenant struct {
	ID           int64  `db:"id"`
	Name         string `db:"name"`
	APIKey       string `db:"api_key"` // authenticates calls to our API, not the gateway
	Status       string `db:"status"`  // active|suspended
	RateLimitRPS *int   `db:"rate_limit_rps"`

	// embedded so sqlx scans the gw_* columns directly off the tenants row
	GatewayConfig

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

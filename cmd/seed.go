package cmd

import (
	"fmt"
	"time"

	"github.com/jkarimi/sms-campaigns/internal/config"
	"github.com/jkarimi/sms-campaigns/internal/db"
	"github.com/jkarimi/sms-campaigns/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo tenants",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		sqlDB, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.MySQLOpts{
			MaxOpenConns:    cfg.MySQL.MaxOpenConns,
			MaxIdleConns:    cfg.MySQL.MaxIdleConns,
			ConnMaxLifetime: cfg.MySQL.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.MySQL.ConnMaxIdleTime,
			PingTimeout:     cfg.MySQL.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		fmt.Println(">> Seeding demo tenants...")
		if err := seedTenants(sqlDB); err != nil {
			return err
		}
		fmt.Println(">> Seed completed ✅")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

// seedTenants inserts deterministic demo tenants (idempotent). The gateway
// credentials point at the provider sandbox so demo sends never bill anyone.
func seedTenants(dbx *sqlx.DB) error {
	tenants := []model.Tenant{
		{
			Name:         "Acme Corp",
			APIKey:       "11111111111111111111111111111111",
			Status:       "active",
			RateLimitRPS: intptr(20),
			GatewayConfig: model.GatewayConfig{
				Provider:    "africastalking",
				Username:    "sandbox",
				APIKey:      "at-sandbox-key-acme",
				SenderID:    "ACME",
				Environment: model.EnvSandbox,
				CountryCode: "254",
			},
		},
		{
			Name:         "Foobar LLC",
			APIKey:       "22222222222222222222222222222222",
			Status:       "active",
			RateLimitRPS: intptr(50),
			GatewayConfig: model.GatewayConfig{
				Provider:    "africastalking",
				Username:    "sandbox",
				APIKey:      "at-sandbox-key-foobar",
				Environment: model.EnvSandbox,
				CountryCode: "255",
			},
		},
		{
			// no gateway credentials: sends fail fast with a config error
			Name:         "Unconfigured Ltd",
			APIKey:       "33333333333333333333333333333333",
			Status:       "active",
			RateLimitRPS: intptr(5),
		},
		{
			Name:   "Suspended Inc",
			APIKey: "44444444444444444444444444444444",
			Status: "suspended",
		},
	}

	// idempotent upsert based on api_key (UNIQUE)
	const q = `
INSERT INTO tenants
    (name, api_key, status, rate_limit_rps,
     gw_provider, gw_username, gw_api_key, gw_sender_id, gw_environment, gw_country_code,
     created_at, updated_at)
VALUES
    (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    name            = VALUES(name),
    status          = VALUES(status),
    rate_limit_rps  = VALUES(rate_limit_rps),
    gw_provider     = VALUES(gw_provider),
    gw_username     = VALUES(gw_username),
    gw_api_key      = VALUES(gw_api_key),
    gw_sender_id    = VALUES(gw_sender_id),
    gw_environment  = VALUES(gw_environment),
    gw_country_code = VALUES(gw_country_code),
    updated_at      = VALUES(updated_at)
`
	tx, err := dbx.Beginx()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now()
	for _, t := range tenants {
		if _, err := tx.Exec(q,
			t.Name, t.APIKey, t.Status, t.RateLimitRPS,
			t.Provider, t.Username, t.GatewayConfig.APIKey, t.SenderID, t.Environment, t.CountryCode,
			now, now,
		); err != nil {
			return fmt.Errorf("insert tenant %q: %w", t.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tenants: %w", err)
	}
	return nil
}

func intptr(i int) *int { return &i }

package model

// DispatchJob is the payload published to Kafka (via the Debezium outbox SMT)
// when a campaign send is requested.
type DispatchJob struct {
	CampaignID string `json:"campaign_id"`
	TenantID   int64  `json:"tenant_id"`
}

// DeliveryEvent is one inbound delivery-report webhook, archived as-is in
// ClickHouse for operational visibility (including reports for unknown
// tokens, which are applied nowhere else).
type DeliveryEvent struct {
	Token             string `db:"token"`
	CampaignID        string `db:"campaign_id"` // empty when the token is unknown
	ProviderStatus    string `db:"provider_status"`
	ProviderMessageID string `db:"provider_message_id"`
	Phone             string `db:"phone"`
	NetworkCode       string `db:"network_code"`
	Result            string `db:"result"` // applied | stale | unknown_token
}

const (
	DeliveryApplied      = "applied"
	DeliveryStale        = "stale"
	DeliveryUnknownToken = "unknown_token"
)

package common

import "time"

const DefaultRpcWaitTime = 30 * time.Second

const ServiceName = "pulse"

const (
	Env_MetricsEndpoint = "OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"
	Env_DiscordAlert    = "DISCORD_ALERT_WEBHOOK"
	Env_DiscordWarning  = "DISCORD_WARNING_WEBHOOK"
	Env_DiscordTest     = "DISCORD_TEST_WEBHOOK"
)

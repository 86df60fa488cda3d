package dashboards

import (
	"net/http"
	"time"

	"dashkeep/internal/config"
	"dashkeep/internal/core"
)

// Factory builds Clients bound to individual API keys, sharing one endpoint
// and timeout from configuration.
type Factory struct {
	endpoint string
	timeout  time.Duration
}

var _ core.APIClientFactory = (*Factory)(nil)

// NewFactory creates a Factory from API configuration.
func NewFactory(cfg config.APIConfig) *Factory {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Factory{
		endpoint: cfg.Endpoint,
		timeout:  timeout,
	}
}

// ClientForKey returns a DashboardAPI authenticated with the given API key.
func (f *Factory) ClientForKey(apiKey string) core.DashboardAPI {
	return &Client{
		endpoint: f.endpoint,
		apiKey:   apiKey,
		httpc:    &http.Client{Timeout: f.timeout},
	}
}

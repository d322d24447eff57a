package telemetry

import (
	"fmt"
	"time"

	"github.com/goto/salt/log"
	"github.com/newrelic/go-agent/v3/newrelic"
)

type NewRelicConfig struct {
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled" default:"false"`
	LicenseKey string `yaml:"licensekey" mapstructure:"licensekey" default:""`
	// SlowQueryThreshold marks the datastore segments reported as slow
	// queries.
	SlowQueryThreshold time.Duration `yaml:"slow_query_threshold" mapstructure:"slow_query_threshold" default:"500ms"`
}

func initNewRelicMonitor(cfg Config, logger log.Logger) (*newrelic.Application, error) {
	nrCfg := cfg.NewRelic
	if !nrCfg.Enabled {
		logger.Info("New Relic monitoring is disabled.")
		return nil, nil
	}

	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName(cfg.AppName),
		newrelic.ConfigLicense(nrCfg.LicenseKey),
		newrelic.ConfigDistributedTracerEnabled(true),
		func(c *newrelic.Config) {
			c.Labels = map[string]string{"environment": cfg.Environment}
			if nrCfg.SlowQueryThreshold > 0 {
				c.DatastoreTracer.SlowQuery.Threshold = nrCfg.SlowQueryThreshold
			}
		},
	)
	if err != nil {
		return nil, fmt.Errorf("init new relic monitor: %w", err)
	}

	logger.Info("NewRelic monitoring is enabled", "app", cfg.AppName, "environment", cfg.Environment)
	return app, nil
}

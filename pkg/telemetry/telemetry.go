package telemetry

import (
	"context"
	"time"

	"github.com/goto/salt/log"
	"github.com/newrelic/go-agent/v3/newrelic"
)

const gracePeriod = 5 * time.Second

type Config struct {
	AppVersion string `yaml:"-" mapstructure:"-"`

	AppName string `yaml:"app_name" mapstructure:"app_name" default:"sift"`
	// Environment is reported as deployment.environment and as a New Relic
	// label.
	Environment   string              `yaml:"environment" mapstructure:"environment" default:"development"`
	NewRelic      NewRelicConfig      `yaml:"newrelic" mapstructure:"newrelic"`
	OpenTelemetry OpenTelemetryConfig `yaml:"open_telemetry" mapstructure:"open_telemetry"`
}

// Init sets up the global otel providers and the newrelic application. The
// returned func flushes both and is safe to call when neither is enabled.
func Init(ctx context.Context, cfg Config, logger log.Logger) (nrApp *newrelic.Application, cleanUp func(), err error) {
	if logger == nil {
		logger = log.NewNoop()
	}

	var stack shutdownStack
	if err := initOTLP(ctx, cfg, logger, &stack); err != nil {
		stack.run()
		return nil, noOp, err
	}

	nrApp, err = initNewRelicMonitor(cfg, logger)
	if err != nil {
		stack.run()
		return nil, noOp, err
	}
	if nrApp != nil {
		stack.push(func() { nrApp.Shutdown(gracePeriod) })
	}

	return nrApp, stack.run, nil
}

// shutdownStack runs the registered funcs once, last registered first.
type shutdownStack struct {
	funcs []func()
}

func (s *shutdownStack) push(f func()) { s.funcs = append(s.funcs, f) }

func (s *shutdownStack) run() {
	for i := len(s.funcs) - 1; i >= 0; i-- {
		s.funcs[i]()
	}
	s.funcs = nil
}

func noOp() {}

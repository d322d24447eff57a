package workermanager

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/goto/salt/log"
	"github.com/goto/sift/pkg/worker"
	"github.com/goto/sift/pkg/worker/pgq"
	"github.com/goto/sift/pkg/worker/workermw"
	"github.com/newrelic/go-agent/v3/newrelic"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Manager struct {
	processor      *pgq.Processor
	initDone       atomic.Bool
	worker         Worker
	jobManagerPort int
	jobTimeout     time.Duration
	schedules      []Schedule
	location       *time.Location
	suggestions    SuggestionIndexer
	resources      ResourceIndexer
	nrApp          *newrelic.Application
	logger         log.Logger
}

//go:generate mockery --name=Worker -r --case underscore --with-expecter --structname Worker --filename worker_mock.go --output=./mocks

type Worker interface {
	Register(typ string, h worker.JobHandler) error
	Run(ctx context.Context) error
	Enqueue(ctx context.Context, jobs ...worker.JobSpec) error
}

type Config struct {
	Enabled           bool          `yaml:"enabled" mapstructure:"enabled"`
	WorkerCount       int           `yaml:"worker_count" mapstructure:"worker_count" default:"3"`
	PollInterval      time.Duration `yaml:"poll_interval" mapstructure:"poll_interval" default:"500ms"`
	ActivePollPercent float64       `yaml:"active_poll_percent" mapstructure:"active_poll_percent" default:"20"`
	JobTimeout        time.Duration `yaml:"job_timeout" mapstructure:"job_timeout" default:"30m"`
	PGQ               pgq.Config    `yaml:"pgq" mapstructure:"pgq"`
	JobManagerPort    int           `yaml:"job_manager_port" mapstructure:"job_manager_port"`
	// Timezone of the schedules, an IANA name.
	Timezone  string     `yaml:"timezone" mapstructure:"timezone" default:"UTC"`
	Schedules []Schedule `yaml:"schedules" mapstructure:"schedules"`
}

type Deps struct {
	Config      Config
	Suggestions SuggestionIndexer
	Resources   ResourceIndexer
	NewRelic    *newrelic.Application
	Logger      log.Logger
}

func New(ctx context.Context, deps Deps) (*Manager, error) {
	cfg := deps.Config
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("new worker manager: schedules timezone: %w", err)
	}

	processor, err := pgq.NewProcessor(ctx, cfg.PGQ)
	if err != nil {
		return nil, fmt.Errorf("new worker manager: %w", err)
	}

	w, err := worker.New(
		workermw.WithJobProcessorInstrumentation()(processor),
		worker.WithRunConfig(cfg.WorkerCount, cfg.PollInterval),
		worker.WithActivePollPercent(cfg.ActivePollPercent),
		worker.WithLogger(deps.Logger),
	)
	if err != nil {
		_ = processor.Close()
		return nil, fmt.Errorf("new worker manager: %w", err)
	}

	m := NewWithWorker(w, deps)
	m.processor = processor
	m.location = loc
	return m, nil
}

// NewWithWorker builds a manager over w. The dead jobs server and the job
// stats need the queue of New and stay off.
func NewWithWorker(w Worker, deps Deps) *Manager {
	m := &Manager{
		worker:         w,
		jobManagerPort: deps.Config.JobManagerPort,
		jobTimeout:     deps.Config.JobTimeout,
		schedules:      deps.Config.Schedules,
		location:       time.UTC,
		suggestions:    deps.Suggestions,
		resources:      deps.Resources,
		nrApp:          deps.NewRelic,
		logger:         deps.Logger,
	}
	if m.logger == nil {
		m.logger = log.NewNoop()
	}
	return m
}

// Run registers the job handlers, starts the schedules and runs the worker
// until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.init(); err != nil {
		return fmt.Errorf("run async worker: init: %w", err)
	}

	stopSchedules, err := m.startSchedules(ctx)
	if err != nil {
		return fmt.Errorf("run async worker: %w", err)
	}
	defer stopSchedules()

	if m.processor != nil && m.jobManagerPort != 0 {
		go m.serveJobManager(ctx)
	}

	return m.worker.Run(ctx)
}

func (m *Manager) init() error {
	if m.initDone.Load() {
		return nil
	}
	m.initDone.Store(true)

	jobHandlers := map[string]worker.JobHandler{
		jobIndexSuggestions: m.indexSuggestionsHandler(),
		jobIndexResources:   m.indexResourcesHandler(),
	}
	for typ, h := range jobHandlers {
		if err := m.worker.Register(typ, h); err != nil {
			return err
		}
	}

	if m.processor == nil {
		return nil
	}
	return m.registerStatsCallback(keys(jobHandlers))
}

func (m *Manager) serveJobManager(ctx context.Context) {
	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", m.jobManagerPort),
		Handler:        worker.DeadJobManagementHandler(m.processor),
		ReadTimeout:    3 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			m.logger.Warn("worker job manager shutdown", "err", err)
		}
	}()

	m.logger.Info("worker job manager listening", "port", m.jobManagerPort)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		m.logger.Error("worker job manager - listen and serve", "err", err)
	}
}

func (m *Manager) Close() error {
	if m.processor == nil {
		return nil
	}
	return m.processor.Close()
}

func (m *Manager) registerStatsCallback(jobTypes []string) error {
	const attrJobType = attribute.Key("job.type")

	meter := otel.Meter("github.com/goto/sift/internal/workermanager")
	activeJobs, err := meter.Int64ObservableGauge("sift.worker.active_jobs")
	handleOtelErr(err)

	deadJobs, err := meter.Int64ObservableGauge("sift.worker.dead_jobs")
	handleOtelErr(err)

	_, err = meter.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			stats, err := m.processor.Stats(ctx)
			if err != nil {
				return err
			}

			seen := make(map[string]struct{}, len(jobTypes))
			for _, st := range stats {
				seen[st.Type] = struct{}{}
				attr := metric.WithAttributes(attrJobType.String(st.Type))
				o.ObserveInt64(activeJobs, int64(st.Active), attr)
				o.ObserveInt64(deadJobs, int64(st.Dead), attr)
			}

			for _, typ := range jobTypes {
				if _, ok := seen[typ]; ok {
					continue
				}

				attr := metric.WithAttributes(attrJobType.String(typ))
				o.ObserveInt64(activeJobs, 0, attr)
				o.ObserveInt64(deadJobs, 0, attr)
			}

			return nil
		},
		activeJobs,
		deadJobs,
	)

	return err
}

func keys(handlers map[string]worker.JobHandler) []string {
	types := make([]string, 0, len(handlers))
	for typ := range handlers {
		types = append(types, typ)
	}
	return types
}

func handleOtelErr(err error) {
	if err != nil {
		otel.Handle(err)
	}
}

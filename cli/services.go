package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/goto/salt/log"
	"github.com/goto/sift/core/engine"
	"github.com/goto/sift/core/job"
	"github.com/goto/sift/core/query"
	"github.com/goto/sift/core/suggestion"
	"github.com/goto/sift/internal/indexer"
	"github.com/goto/sift/internal/store/postgres"
	"github.com/goto/sift/internal/store/redis"
)

// services holds the stores shared by the commands.
type services struct {
	pg          *postgres.Client
	engines     *postgres.EngineRepository
	suggesters  *postgres.SuggesterRepository
	resources   *postgres.ResourceRepository
	searchIndex *postgres.SearchIndexRepository
	settings    *postgres.SettingRepository
	suggestions *postgres.SuggestionRepository
	runs        *postgres.JobRunRepository
	fields      *postgres.FieldCache
	cache       suggestion.Cache

	batchSize int
	closers   []func() error
}

func initLogger(logLevel string) *log.Logrus {
	return log.NewLogrus(
		log.LogrusWithLevel(logLevel),
		log.LogrusWithWriter(os.Stdout),
	)
}

func initPostgres(ctx context.Context, logger log.Logger, cfg postgres.Config) (*postgres.Client, error) {
	pgClient, err := postgres.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres client: %w", err)
	}
	logger.Info("connected to postgres server", "host", cfg.Host, "port", cfg.Port)

	return pgClient, nil
}

func initSuggestCache(ctx context.Context, logger log.Logger, cfg redis.Config) (suggestion.Cache, func() error, error) {
	if !cfg.Enabled {
		logger.Info("suggest cache is disabled")
		return suggestion.NoopCache{}, func() error { return nil }, nil
	}

	client, err := redis.NewClient(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create suggest cache: %w", err)
	}
	logger.Info("connected to redis server", "addr", cfg.Addr)

	return redis.NewSuggestCache(client, cfg), client.Close, nil
}

func initServices(ctx context.Context, logger log.Logger, cfg *Config) (*services, error) {
	pgClient, err := initPostgres(ctx, logger, cfg.DB)
	if err != nil {
		return nil, err
	}

	s := &services{
		pg:        pgClient,
		fields:    postgres.NewFieldCache(pgClient),
		batchSize: cfg.Search.BatchSize,
		closers:   []func() error{pgClient.Close},
	}

	if err := s.initRepositories(); err != nil {
		s.close(logger)
		return nil, err
	}

	cache, closeCache, err := initSuggestCache(ctx, logger, cfg.Cache)
	if err != nil {
		s.close(logger)
		return nil, err
	}
	s.cache = cache
	s.closers = append(s.closers, closeCache)

	return s, nil
}

func (s *services) initRepositories() (err error) {
	if s.engines, err = postgres.NewEngineRepository(s.pg); err != nil {
		return fmt.Errorf("create new engine repository: %w", err)
	}
	if s.suggesters, err = postgres.NewSuggesterRepository(s.pg); err != nil {
		return fmt.Errorf("create new suggester repository: %w", err)
	}
	if s.resources, err = postgres.NewResourceRepository(s.pg); err != nil {
		return fmt.Errorf("create new resource repository: %w", err)
	}
	if s.searchIndex, err = postgres.NewSearchIndexRepository(s.pg); err != nil {
		return fmt.Errorf("create new search index repository: %w", err)
	}
	if s.settings, err = postgres.NewSettingRepository(s.pg); err != nil {
		return fmt.Errorf("create new setting repository: %w", err)
	}
	if s.suggestions, err = postgres.NewSuggestionRepository(s.pg); err != nil {
		return fmt.Errorf("create new suggestion repository: %w", err)
	}
	if s.runs, err = postgres.NewJobRunRepository(s.pg); err != nil {
		return fmt.Errorf("create new job run repository: %w", err)
	}
	return nil
}

// close releases the connections in the reverse order of their opening.
func (s *services) close(logger log.Logger) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			logger.Warn("close connection", "err", err)
		}
	}
}

func (s *services) runner(logger log.Logger) *job.Runner {
	return job.NewRunner(s.runs, logger)
}

func (s *services) suggestionIndexer(logger log.Logger) *indexer.SuggestionIndexer {
	return indexer.NewSuggestionIndexer(indexer.SuggestionIndexerDeps{
		Runner:      s.runner(logger),
		Engines:     s.engines,
		Suggesters:  s.suggesters,
		Resources:   s.resources,
		Suggestions: s.suggestions,
		Cache:       s.cache,
		BatchSize:   s.batchSize,
		Logger:      logger,
	})
}

func (s *services) resourceIndexer(logger log.Logger) *indexer.ResourceIndexer {
	return indexer.NewResourceIndexer(indexer.ResourceIndexerDeps{
		Runner:    s.runner(logger),
		Engines:   s.engines,
		Resources: s.resources,
		Index:     s.searchIndex,
		Fields:    s.fields,
		Logger:    logger,
	})
}

func (s *services) suggestService(logger log.Logger) *suggestion.Service {
	return suggestion.NewService(s.suggestions, s.suggesters,
		suggestion.ServiceWithCache(s.cache),
		suggestion.ServiceWithLogger(logger),
	)
}

// querier returns the querier serving the adapter of the engine, recording
// the duration of every query.
func (s *services) querier(ctx context.Context, logger log.Logger, engineID int64) (query.Querier, error) {
	eng, err := s.engines.GetByID(ctx, engineID)
	if err != nil {
		return nil, err
	}

	var base query.Querier
	switch eng.Adapter {
	case engine.AdapterNoop:
		base = query.NoopQuerier{}
	default:
		base, err = postgres.NewQuerier(s.pg, eng,
			postgres.QuerierWithLogger(logger),
			postgres.QuerierWithSettings(s.settings),
			postgres.QuerierWithFieldCache(s.fields),
		)
		if err != nil {
			return nil, err
		}
	}
	return query.WithInstrumentation(eng.Name)(base), nil
}

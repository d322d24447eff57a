package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/goto/salt/log"
	"github.com/goto/sift/core/engine"
	"github.com/goto/sift/core/job"
	"github.com/goto/sift/core/resource"
	"github.com/goto/sift/core/suggestion"
	"go.opentelemetry.io/otel/metric"
)

type SuggestionArgs struct {
	SearchSuggesterID int64 `json:"search_suggester_id"`
	Force             bool  `json:"force"`
}

// SuggestionIndexer rebuilds the suggestions of one suggester from the
// values of the resources its engine indexes.
type SuggestionIndexer struct {
	runner      *job.Runner
	engines     engine.Repository
	suggesters  engine.SuggesterRepository
	resources   resource.Repository
	suggestions suggestion.Repository
	cache       suggestion.Cache
	batchSize   int
	counters    counters
	logger      log.Logger
}

type SuggestionIndexerDeps struct {
	Runner      *job.Runner
	Engines     engine.Repository
	Suggesters  engine.SuggesterRepository
	Resources   resource.Repository
	Suggestions suggestion.Repository
	Cache       suggestion.Cache
	BatchSize   int
	Logger      log.Logger
}

func NewSuggestionIndexer(deps SuggestionIndexerDeps) *SuggestionIndexer {
	ix := &SuggestionIndexer{
		runner:      deps.Runner,
		engines:     deps.Engines,
		suggesters:  deps.Suggesters,
		resources:   deps.Resources,
		suggestions: deps.Suggestions,
		cache:       deps.Cache,
		batchSize:   deps.BatchSize,
		counters:    newCounters(),
		logger:      deps.Logger,
	}
	if ix.cache == nil {
		ix.cache = suggestion.NoopCache{}
	}
	if ix.batchSize <= 0 {
		ix.batchSize = DefaultBatchSize
	}
	if ix.logger == nil {
		ix.logger = log.NewNoop()
	}
	return ix
}

// Index replaces the suggestions of the suggester. Running it twice over the
// same resources stores the same rows.
func (ix *SuggestionIndexer) Index(ctx context.Context, args SuggestionArgs) (err error) {
	payload, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("index suggestions: marshal args: %w", err)
	}

	h, err := ix.runner.Start(ctx, job.ClassIndexSuggestions, payload, args.Force)
	if err != nil {
		return fmt.Errorf("index suggestions: %w", err)
	}

	var stopped bool
	defer func() { h.Finish(ctx, job.StatusFor(err, stopped)) }()

	logger := &runLogger{Logger: ix.logger, kv: []interface{}{"run_id", h.ID, "suggester_id", args.SearchSuggesterID}}

	sgst, types, fields, err := ix.prepare(ctx, args.SearchSuggesterID)
	if err != nil {
		if isConfigError(err) {
			logger.Info("nothing to index", "reason", err.Error())
			return nil
		}
		return fmt.Errorf("index suggestions: %w", err)
	}

	start := time.Now()
	logger.Info("indexing suggestions", "resource_types", types)

	agg := suggestion.NewAggregator(sgst.Settings)
	var afterID int64
	var total int
	for {
		batch, err := ix.resources.GetBatch(ctx, resource.Filter{
			Types:   types,
			AfterID: afterID,
			Limit:   ix.batchSize,
		})
		if err != nil {
			return fmt.Errorf("index suggestions: read resources after %d: %w", afterID, err)
		}
		if len(batch) == 0 {
			break
		}

		for _, res := range batch {
			for _, v := range res.Values {
				if !v.IsText() || !fields.keeps(v.Term) {
					continue
				}
				agg.Add(v.Value, res.PublicText(v), res.SiteIDs)
			}
		}
		total += len(batch)
		afterID = batch[len(batch)-1].ID
		logger.Debug("suggestion batch aggregated", "resources", total, "candidates", agg.Len(), "last_id", afterID)

		if h.StopRequested(ctx) {
			if err := ix.suggestions.DeleteBySuggester(context.WithoutCancel(ctx), sgst.ID); err != nil {
				return fmt.Errorf("index suggestions: clear stopped run: %w", err)
			}
			ix.invalidate(ctx, logger, sgst.ID)
			logger.Warn("suggestion indexing stopped, suggestions of the suggester were deleted", "last_id", afterID)
			stopped = true
			return nil
		}
		if len(batch) < ix.batchSize {
			break
		}
	}

	suggestions := agg.Suggestions()
	if err := ix.suggestions.Replace(ctx, sgst.ID, suggestions); err != nil {
		return fmt.Errorf("index suggestions: %w", err)
	}
	ix.invalidate(ctx, logger, sgst.ID)
	ix.counters.suggestions.Add(ctx, int64(len(suggestions)), metric.WithAttributes(attrSuggesterID.Int64(sgst.ID)))

	logger.Info("suggestions indexed",
		"resources", total,
		"candidates", agg.Len(),
		"suggestions", len(suggestions),
		"duration", time.Since(start).String(),
	)
	return nil
}

func (ix *SuggestionIndexer) prepare(ctx context.Context, suggesterID int64) (engine.Suggester, []string, fieldSet, error) {
	sgst, err := ix.suggesters.GetByID(ctx, suggesterID)
	if err != nil {
		return engine.Suggester{}, nil, fieldSet{}, err
	}
	eng, err := ix.engines.GetByID(ctx, sgst.EngineID)
	if err != nil {
		return engine.Suggester{}, nil, fieldSet{}, err
	}

	types := eng.IntersectTypes(sgst.Settings.ResourceTypes)
	if len(types) == 0 {
		return engine.Suggester{}, nil, fieldSet{}, ErrNoResourceType
	}

	excluded := append(append([]string{}, ExcludedFields...), sgst.Settings.ExcludedFields...)
	fields := newFieldSet(sgst.Settings.Fields, excluded)
	if fields.empty() {
		return engine.Suggester{}, nil, fieldSet{}, ErrNoField
	}
	return sgst, types, fields, nil
}

func (ix *SuggestionIndexer) invalidate(ctx context.Context, logger log.Logger, suggesterID int64) {
	if err := ix.cache.Invalidate(context.WithoutCancel(ctx), suggesterID); err != nil {
		logger.Warn("could not invalidate suggest cache", "err", err)
	}
}

func isConfigError(err error) bool {
	var nf engine.NotFoundError
	return errors.Is(err, ErrNoResourceType) ||
		errors.Is(err, ErrNoField) ||
		errors.As(err, &nf)
}

// fieldSet selects the property terms read. No selected term means every
// term not excluded.
type fieldSet struct {
	selected map[string]struct{}
	excluded map[string]struct{}
}

func newFieldSet(selected, excluded []string) fieldSet {
	fs := fieldSet{excluded: make(map[string]struct{}, len(excluded))}
	for _, term := range excluded {
		fs.excluded[term] = struct{}{}
	}
	if len(selected) == 0 {
		return fs
	}

	fs.selected = make(map[string]struct{}, len(selected))
	for _, term := range selected {
		if _, ok := fs.excluded[term]; !ok {
			fs.selected[term] = struct{}{}
		}
	}
	return fs
}

// empty reports whether every selected term was excluded.
func (fs fieldSet) empty() bool {
	return fs.selected != nil && len(fs.selected) == 0
}

func (fs fieldSet) keeps(term string) bool {
	if _, ok := fs.excluded[term]; ok {
		return false
	}
	if fs.selected == nil {
		return true
	}
	_, ok := fs.selected[term]
	return ok
}

// runLogger prefixes every entry with the keys of the run.
type runLogger struct {
	log.Logger
	kv []interface{}
}

func (l *runLogger) with(kv []interface{}) []interface{} {
	return append(append([]interface{}{}, l.kv...), kv...)
}

func (l *runLogger) Debug(msg string, kv ...interface{}) { l.Logger.Debug(msg, l.with(kv)...) }
func (l *runLogger) Info(msg string, kv ...interface{})  { l.Logger.Info(msg, l.with(kv)...) }
func (l *runLogger) Warn(msg string, kv ...interface{})  { l.Logger.Warn(msg, l.with(kv)...) }
func (l *runLogger) Error(msg string, kv ...interface{}) { l.Logger.Error(msg, l.with(kv)...) }

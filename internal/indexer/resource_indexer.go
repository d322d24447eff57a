package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/goto/salt/log"
	"github.com/goto/sift/core/engine"
	"github.com/goto/sift/core/job"
	"github.com/goto/sift/core/resource"
	"go.opentelemetry.io/otel/metric"
)

// SearchIndex stores the full text documents of an engine.
type SearchIndex interface {
	Index(ctx context.Context, engineID int64, fields []string, resources []resource.Resource) error
	Delete(ctx context.Context, engineID int64, resourceIDs []int64) error
	Clear(ctx context.Context, engineID int64, types []string, visibility resource.Visibility) error
}

// FieldCache forgets the property terms known before a run, so that the
// terms of newly indexed resources resolve.
type FieldCache interface {
	Invalidate()
}

type ResourceArgs struct {
	SearchEngineID  int64               `json:"search_engine_id"`
	StartResourceID int64               `json:"start_resource_id,omitempty"`
	ResourceIDs     []int64             `json:"resource_ids,omitempty"`
	ResourcesByStep int                 `json:"resources_by_step,omitempty"`
	ResourceTypes   []string            `json:"resource_types,omitempty"`
	Visibility      resource.Visibility `json:"visibility,omitempty"`
	Force           bool                `json:"force"`
}

// full reports whether the run rebuilds the index of the engine for its
// types and visibility.
func (a ResourceArgs) full() bool {
	return a.StartResourceID <= 1 && len(a.ResourceIDs) == 0
}

// ResourceIndexer refreshes the full text documents of an engine, batch by
// batch from a checkpoint id.
type ResourceIndexer struct {
	runner    *job.Runner
	engines   engine.Repository
	resources resource.Repository
	index     SearchIndex
	fields    FieldCache
	counters  counters
	logger    log.Logger
}

type ResourceIndexerDeps struct {
	Runner    *job.Runner
	Engines   engine.Repository
	Resources resource.Repository
	Index     SearchIndex
	Fields    FieldCache
	Logger    log.Logger
}

func NewResourceIndexer(deps ResourceIndexerDeps) *ResourceIndexer {
	ix := &ResourceIndexer{
		runner:    deps.Runner,
		engines:   deps.Engines,
		resources: deps.Resources,
		index:     deps.Index,
		fields:    deps.Fields,
		counters:  newCounters(),
		logger:    deps.Logger,
	}
	if ix.logger == nil {
		ix.logger = log.NewNoop()
	}
	return ix
}

func (ix *ResourceIndexer) Index(ctx context.Context, args ResourceArgs) (err error) {
	payload, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("index resources: marshal args: %w", err)
	}

	h, err := ix.runner.Start(ctx, job.ClassIndexResources, payload, args.Force)
	if err != nil {
		return fmt.Errorf("index resources: %w", err)
	}

	var (
		stopped bool
		total   int
	)
	defer func() {
		if total > 0 && ix.fields != nil {
			ix.fields.Invalidate()
		}
		h.Finish(ctx, job.StatusFor(err, stopped))
	}()

	logger := &runLogger{Logger: ix.logger, kv: []interface{}{"run_id", h.ID, "engine_id", args.SearchEngineID}}

	eng, err := ix.engines.GetByID(ctx, args.SearchEngineID)
	if err != nil {
		if isConfigError(err) {
			logger.Info("nothing to index", "reason", err.Error())
			return nil
		}
		return fmt.Errorf("index resources: %w", err)
	}
	types := eng.IntersectTypes(args.ResourceTypes)
	if len(types) == 0 {
		logger.Info("nothing to index", "reason", ErrNoResourceType.Error())
		return nil
	}

	step := args.ResourcesByStep
	if step <= 0 {
		step = DefaultBatchSize
	}

	if args.full() {
		if err := ix.index.Clear(ctx, eng.ID, types, args.Visibility); err != nil {
			return fmt.Errorf("index resources: %w", err)
		}
	}

	start := time.Now()
	logger.Info("indexing resources", "resource_types", types, "full", args.full())

	var afterID int64
	if args.StartResourceID > 0 {
		afterID = args.StartResourceID - 1
	}
	for {
		batch, err := ix.resources.GetBatch(ctx, resource.Filter{
			Types:      types,
			AfterID:    afterID,
			IDs:        args.ResourceIDs,
			Limit:      step,
			Visibility: args.Visibility,
		})
		if err != nil {
			return fmt.Errorf("index resources: read resources after %d: %w", afterID, err)
		}
		if len(batch) == 0 {
			break
		}

		if err := ix.index.Index(ctx, eng.ID, eng.Settings.DefaultFields, batch); err != nil {
			return fmt.Errorf("index resources: batch after %d: %w", afterID, err)
		}
		total += len(batch)
		afterID = batch[len(batch)-1].ID
		ix.counters.resources.Add(ctx, int64(len(batch)), metric.WithAttributes(attrEngineID.Int64(eng.ID)))
		logger.Debug("resource batch indexed", "resources", total, "last_id", afterID)

		if h.StopRequested(ctx) {
			logger.Warn("resource indexing stopped", "last_indexed_id", afterID, "resources", total)
			stopped = true
			return nil
		}
		if len(batch) < step {
			break
		}
	}

	if err := ix.dropMissing(ctx, eng.ID, types, args); err != nil {
		return fmt.Errorf("index resources: %w", err)
	}

	logger.Info("resources indexed",
		"resources", total,
		"last_id", afterID,
		"duration", time.Since(start).String(),
	)
	return nil
}

// dropMissing removes the requested ids that no longer match any resource
// from the index.
func (ix *ResourceIndexer) dropMissing(ctx context.Context, engineID int64, types []string, args ResourceArgs) error {
	if len(args.ResourceIDs) == 0 {
		return nil
	}

	found, err := ix.resources.GetIDs(ctx, resource.Filter{
		Types:      types,
		IDs:        args.ResourceIDs,
		Limit:      len(args.ResourceIDs),
		Visibility: args.Visibility,
	})
	if err != nil {
		return err
	}
	existing := make(map[int64]struct{}, len(found))
	for _, id := range found {
		existing[id] = struct{}{}
	}

	var missing []int64
	for _, id := range args.ResourceIDs {
		if _, ok := existing[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return ix.index.Delete(ctx, engineID, missing)
}

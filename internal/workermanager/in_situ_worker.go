package workermanager

import (
	"context"
	"fmt"

	"github.com/goto/sift/internal/indexer"
)

// InSituWorker runs the indexers in the caller's goroutine instead of
// queueing jobs.
type InSituWorker struct {
	suggestions SuggestionIndexer
	resources   ResourceIndexer
}

func NewInSituWorker(deps Deps) *InSituWorker {
	return &InSituWorker{
		suggestions: deps.Suggestions,
		resources:   deps.Resources,
	}
}

func (w *InSituWorker) EnqueueIndexSuggestionsJob(ctx context.Context, args indexer.SuggestionArgs) error {
	if err := w.suggestions.Index(ctx, args); err != nil {
		return fmt.Errorf("index suggestions of suggester %d: %w", args.SearchSuggesterID, err)
	}
	return nil
}

func (w *InSituWorker) EnqueueIndexResourcesJob(ctx context.Context, args indexer.ResourceArgs) error {
	if err := w.resources.Index(ctx, args); err != nil {
		return fmt.Errorf("index resources of engine %d: %w", args.SearchEngineID, err)
	}
	return nil
}

func (*InSituWorker) Close() error { return nil }

package suggestion

import "context"

// Cache stores the answers of the suggest read path. Entries of a suggester
// are invalidated as a whole after each reindex.
type Cache interface {
	Get(ctx context.Context, suggesterID int64, key string) ([]string, bool, error)
	Set(ctx context.Context, suggesterID int64, key string, texts []string) error
	Invalidate(ctx context.Context, suggesterID int64) error
}

type NoopCache struct{}

func (NoopCache) Get(context.Context, int64, string) ([]string, bool, error) { return nil, false, nil }
func (NoopCache) Set(context.Context, int64, string, []string) error         { return nil }
func (NoopCache) Invalidate(context.Context, int64) error                    { return nil }

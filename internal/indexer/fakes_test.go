package indexer_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goto/sift/core/engine"
	"github.com/goto/sift/core/job"
	"github.com/goto/sift/core/resource"
	"github.com/goto/sift/core/suggestion"
)

var ctx = context.Background()

type fakeJobRuns struct {
	mu   sync.Mutex
	runs map[int64]*job.Run
	next int64
	// stopAfter reports the run as stopping from the nth status read on.
	stopAfter int
	reads     int
}

func newFakeJobRuns() *fakeJobRuns {
	return &fakeJobRuns{runs: make(map[int64]*job.Run)}
}

func (f *fakeJobRuns) Create(_ context.Context, run *job.Run) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.next++
	r := *run
	r.ID = f.next
	r.StartedAt = time.Now()
	if r.Status == "" {
		r.Status = job.StatusStarting
	}
	f.runs[r.ID] = &r
	return r.ID, nil
}

func (f *fakeJobRuns) GetByID(_ context.Context, id int64) (job.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	r, ok := f.runs[id]
	if !ok {
		return job.Run{}, job.NotFoundError{RunID: id}
	}
	f.reads++
	if f.stopAfter > 0 && f.reads >= f.stopAfter && r.Status == job.StatusInProgress {
		r.Status = job.StatusStopping
	}
	return *r, nil
}

func (f *fakeJobRuns) List(_ context.Context, flt job.Filter) ([]job.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var runs []job.Run
	for _, r := range f.runs {
		if flt.Class != "" && r.Class != flt.Class {
			continue
		}
		if flt.ExcludeID != 0 && r.ID == flt.ExcludeID {
			continue
		}
		if len(flt.Statuses) > 0 && !hasStatus(flt.Statuses, r.Status) {
			continue
		}
		runs = append(runs, *r)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].ID > runs[j].ID })
	return runs, nil
}

func (f *fakeJobRuns) UpdateStatus(_ context.Context, id int64, status job.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	r, ok := f.runs[id]
	if !ok {
		return job.NotFoundError{RunID: id}
	}
	r.Status = status
	return nil
}

func (f *fakeJobRuns) Finish(ctx context.Context, id int64, status job.Status) error {
	if err := f.UpdateStatus(ctx, id, status); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	f.runs[id].EndedAt = &now
	return nil
}

// last returns the status of the newest run.
func (f *fakeJobRuns) last() job.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs[f.next].Status
}

func hasStatus(statuses []job.Status, status job.Status) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

type fakeEngines map[int64]engine.SearchEngine

func (f fakeEngines) GetByID(_ context.Context, id int64) (engine.SearchEngine, error) {
	e, ok := f[id]
	if !ok {
		return engine.SearchEngine{}, engine.NotFoundError{Kind: "search engine", ID: id}
	}
	return e, nil
}

func (f fakeEngines) GetAll(context.Context) ([]engine.SearchEngine, error) {
	var engines []engine.SearchEngine
	for _, e := range f {
		engines = append(engines, e)
	}
	return engines, nil
}

func (f fakeEngines) Upsert(_ context.Context, e *engine.SearchEngine) (int64, error) {
	f[e.ID] = *e
	return e.ID, nil
}

type fakeSuggesters map[int64]engine.Suggester

func (f fakeSuggesters) GetByID(_ context.Context, id int64) (engine.Suggester, error) {
	s, ok := f[id]
	if !ok {
		return engine.Suggester{}, engine.NotFoundError{Kind: "suggester", ID: id}
	}
	return s, nil
}

func (f fakeSuggesters) GetAll(context.Context) ([]engine.Suggester, error) {
	var suggesters []engine.Suggester
	for _, s := range f {
		suggesters = append(suggesters, s)
	}
	return suggesters, nil
}

func (f fakeSuggesters) Upsert(_ context.Context, s *engine.Suggester) (int64, error) {
	f[s.ID] = *s
	return s.ID, nil
}

// fakeResources holds resources in ascending id order.
type fakeResources []resource.Resource

func (f fakeResources) GetBatch(_ context.Context, flt resource.Filter) ([]resource.Resource, error) {
	var batch []resource.Resource
	for _, res := range f {
		if len(batch) == flt.Limit {
			break
		}
		if matches(res, flt) {
			batch = append(batch, res)
		}
	}
	return batch, nil
}

func (f fakeResources) GetIDs(ctx context.Context, flt resource.Filter) ([]int64, error) {
	batch, err := f.GetBatch(ctx, flt)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(batch))
	for _, res := range batch {
		ids = append(ids, res.ID)
	}
	return ids, nil
}

func matches(res resource.Resource, flt resource.Filter) bool {
	if res.ID <= flt.AfterID {
		return false
	}
	if len(flt.Types) > 0 && !contains(flt.Types, res.Type) {
		return false
	}
	if len(flt.IDs) > 0 && !containsID(flt.IDs, res.ID) {
		return false
	}
	switch flt.Visibility {
	case resource.VisibilityPublic:
		return res.IsPublic
	case resource.VisibilityPrivate:
		return !res.IsPublic
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsID(list []int64, id int64) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

type fakeSuggestions struct {
	stored   map[int64][]suggestion.Suggestion
	replaces int
}

func newFakeSuggestions() *fakeSuggestions {
	return &fakeSuggestions{stored: make(map[int64][]suggestion.Suggestion)}
}

func (f *fakeSuggestions) Replace(_ context.Context, suggesterID int64, suggestions []suggestion.Suggestion) error {
	f.replaces++
	f.stored[suggesterID] = suggestions
	return nil
}

func (f *fakeSuggestions) DeleteBySuggester(_ context.Context, suggesterID int64) error {
	delete(f.stored, suggesterID)
	return nil
}

func (f *fakeSuggestions) Search(context.Context, suggestion.SearchFilter) ([]string, error) {
	return nil, nil
}

func (f *fakeSuggestions) SearchValues(context.Context, suggestion.ValueFilter) ([]string, error) {
	return nil, nil
}

func (f *fakeSuggestions) Count(_ context.Context, suggesterID int64) (int, error) {
	return len(f.stored[suggesterID]), nil
}

type fakeCache struct {
	suggestion.NoopCache
	invalidated []int64
}

func (f *fakeCache) Invalidate(_ context.Context, suggesterID int64) error {
	f.invalidated = append(f.invalidated, suggesterID)
	return nil
}

// fakeFields counts the invalidations of the field cache.
type fakeFields struct {
	invalidated int
}

func (f *fakeFields) Invalidate() { f.invalidated++ }

type fakeIndex struct {
	docs    map[int64]resource.Resource
	fields  []string
	cleared []string
	batches int
}

func newFakeIndex(existing ...int64) *fakeIndex {
	idx := &fakeIndex{docs: make(map[int64]resource.Resource)}
	for _, id := range existing {
		idx.docs[id] = resource.Resource{ID: id}
	}
	return idx
}

func (f *fakeIndex) Index(_ context.Context, _ int64, fields []string, resources []resource.Resource) error {
	f.batches++
	f.fields = fields
	for _, res := range resources {
		f.docs[res.ID] = res
	}
	return nil
}

func (f *fakeIndex) Delete(_ context.Context, _ int64, ids []int64) error {
	for _, id := range ids {
		delete(f.docs, id)
	}
	return nil
}

func (f *fakeIndex) Clear(_ context.Context, _ int64, types []string, visibility resource.Visibility) error {
	f.cleared = types
	for id, doc := range f.docs {
		if doc.Type != "" && len(types) > 0 && !contains(types, doc.Type) {
			continue
		}
		if visibility != resource.VisibilityAny && doc.IsPublic != (visibility == resource.VisibilityPublic) {
			continue
		}
		delete(f.docs, id)
	}
	return nil
}

func (f *fakeIndex) seed(resources ...resource.Resource) *fakeIndex {
	for _, res := range resources {
		f.docs[res.ID] = res
	}
	return f
}

func (f *fakeIndex) ids() []int64 {
	ids := make([]int64, 0, len(f.docs))
	for id := range f.docs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

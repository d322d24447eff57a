package suggestion_test

import (
	"context"
	"errors"
	"testing"

	"github.com/goto/sift/core/engine"
	"github.com/goto/sift/core/suggestion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

type fakeRepo struct {
	searches []suggestion.SearchFilter
	values   []suggestion.ValueFilter
	texts    []string
	err      error
}

func (r *fakeRepo) Replace(context.Context, int64, []suggestion.Suggestion) error { return nil }
func (r *fakeRepo) DeleteBySuggester(context.Context, int64) error               { return nil }
func (r *fakeRepo) Count(context.Context, int64) (int, error)                    { return 0, nil }

func (r *fakeRepo) Search(_ context.Context, flt suggestion.SearchFilter) ([]string, error) {
	r.searches = append(r.searches, flt)
	return r.texts, r.err
}

func (r *fakeRepo) SearchValues(_ context.Context, flt suggestion.ValueFilter) ([]string, error) {
	r.values = append(r.values, flt)
	return r.texts, r.err
}

type fakeSuggesters map[int64]engine.Suggester

func (f fakeSuggesters) GetByID(_ context.Context, id int64) (engine.Suggester, error) {
	s, ok := f[id]
	if !ok {
		return engine.Suggester{}, engine.NotFoundError{Kind: "suggester", ID: id}
	}
	return s, nil
}

func (f fakeSuggesters) GetAll(context.Context) ([]engine.Suggester, error) { return nil, nil }

func (f fakeSuggesters) Upsert(context.Context, *engine.Suggester) (int64, error) { return 0, nil }

type mapCache map[string][]string

func (c mapCache) Get(_ context.Context, _ int64, key string) ([]string, bool, error) {
	v, ok := c[key]
	return v, ok, nil
}

func (c mapCache) Set(_ context.Context, _ int64, key string, texts []string) error {
	c[key] = texts
	return nil
}

func (c mapCache) Invalidate(context.Context, int64) error {
	for k := range c {
		delete(c, k)
	}
	return nil
}

func TestService_Suggest(t *testing.T) {
	suggesters := fakeSuggesters{
		7: {ID: 7, EngineID: 1, Name: "titles", Settings: engine.SuggesterSettings{ResourceTypes: []string{"items"}}},
	}

	t.Run("Validation", func(t *testing.T) {
		svc := suggestion.NewService(&fakeRepo{}, suggesters)

		_, err := svc.Suggest(ctx, suggestion.SuggestRequest{Prefix: "pa"})
		assert.ErrorIs(t, err, suggestion.ErrNoSuggester)

		_, err = svc.Suggest(ctx, suggestion.SuggestRequest{SuggesterID: 7, Prefix: " \n "})
		assert.ErrorIs(t, err, suggestion.ErrEmptyPrefix)

		_, err = svc.Suggest(ctx, suggestion.SuggestRequest{SuggesterID: 8, Prefix: "pa"})
		var nf engine.NotFoundError
		assert.ErrorAs(t, err, &nf)
	})

	t.Run("ReadsSuggestions", func(t *testing.T) {
		repo := &fakeRepo{texts: []string{"Paris", "Paris in"}}
		svc := suggestion.NewService(repo, suggesters)

		texts, err := svc.Suggest(ctx, suggestion.SuggestRequest{SuggesterID: 7, Prefix: "Pa", SiteID: 2, Public: true})
		require.NoError(t, err)
		assert.Equal(t, []string{"Paris", "Paris in"}, texts)
		assert.Equal(t, []suggestion.SearchFilter{
			{SuggesterID: 7, Prefix: "Pa", SiteID: 2, Public: true, Limit: suggestion.DefaultLimit},
		}, repo.searches)
		assert.Empty(t, repo.values)
	})

	t.Run("FieldReadsValues", func(t *testing.T) {
		repo := &fakeRepo{texts: []string{"Paris"}}
		svc := suggestion.NewService(repo, suggesters)

		_, err := svc.Suggest(ctx, suggestion.SuggestRequest{SuggesterID: 7, Prefix: "Pa", Field: "dcterms:title", Limit: 500})
		require.NoError(t, err)
		assert.Equal(t, []suggestion.ValueFilter{
			{Field: "dcterms:title", Prefix: "Pa", Types: []string{"items"}, Limit: suggestion.MaxLimit},
		}, repo.values)
		assert.Empty(t, repo.searches)
	})

	t.Run("CachedAnswer", func(t *testing.T) {
		repo := &fakeRepo{texts: []string{"Paris"}}
		cache := mapCache{}
		svc := suggestion.NewService(repo, suggesters, suggestion.ServiceWithCache(cache))

		for i := 0; i < 3; i++ {
			texts, err := svc.Suggest(ctx, suggestion.SuggestRequest{SuggesterID: 7, Prefix: "pa"})
			require.NoError(t, err)
			assert.Equal(t, []string{"Paris"}, texts)
		}
		assert.Len(t, repo.searches, 1)

		require.NoError(t, cache.Invalidate(ctx, 7))
		_, err := svc.Suggest(ctx, suggestion.SuggestRequest{SuggesterID: 7, Prefix: "PA"})
		require.NoError(t, err)
		assert.Len(t, repo.searches, 2)
	})

	t.Run("StoreError", func(t *testing.T) {
		repo := &fakeRepo{err: errors.New("connection refused")}
		svc := suggestion.NewService(repo, suggesters)

		_, err := svc.Suggest(ctx, suggestion.SuggestRequest{SuggesterID: 7, Prefix: "pa"})
		assert.ErrorContains(t, err, "suggest: connection refused")
	})
}

package indexer_test

import (
	"testing"

	"github.com/goto/sift/core/engine"
	"github.com/goto/sift/core/job"
	"github.com/goto/sift/core/resource"
	"github.com/goto/sift/internal/indexer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resourceFixture() fakeResources {
	return fakeResources{
		{ID: 1, Type: resource.TypeItems, IsPublic: true, Title: "one"},
		{ID: 2, Type: resource.TypeItems, IsPublic: false, Title: "two"},
		{ID: 3, Type: resource.TypeItemSets, IsPublic: true, Title: "three"},
		{ID: 4, Type: resource.TypeMedia, IsPublic: true, Title: "four"},
		{ID: 5, Type: resource.TypeItems, IsPublic: true, Title: "five"},
	}
}

type resourceEnv struct {
	runs    *fakeJobRuns
	index   *fakeIndex
	fields  *fakeFields
	indexer *indexer.ResourceIndexer
}

func newResourceEnv(index *fakeIndex) resourceEnv {
	env := resourceEnv{runs: newFakeJobRuns(), index: index, fields: &fakeFields{}}
	env.indexer = indexer.NewResourceIndexer(indexer.ResourceIndexerDeps{
		Runner: job.NewRunner(env.runs, nil),
		Engines: fakeEngines{1: {
			ID:      1,
			Name:    "main",
			Adapter: engine.AdapterInternal,
			Settings: engine.EngineSettings{
				ResourceTypes: []string{resource.TypeItems, resource.TypeItemSets},
				DefaultFields: []string{"dcterms:title"},
			},
		}},
		Resources: resourceFixture(),
		Index:     env.index,
		Fields:    env.fields,
	})
	return env
}

func TestResourceIndexer_Index(t *testing.T) {
	t.Run("FullReindexClearsThenIndexesInBatches", func(t *testing.T) {
		env := newResourceEnv(newFakeIndex(42))

		err := env.indexer.Index(ctx, indexer.ResourceArgs{SearchEngineID: 1, ResourcesByStep: 2})
		require.NoError(t, err)

		assert.Equal(t, []string{resource.TypeItems, resource.TypeItemSets}, env.index.cleared)
		assert.Equal(t, []int64{1, 2, 3, 5}, env.index.ids())
		assert.Equal(t, 2, env.index.batches)
		assert.Equal(t, []string{"dcterms:title"}, env.index.fields)
		assert.Equal(t, 1, env.fields.invalidated)
		assert.Equal(t, job.StatusCompleted, env.runs.last())
	})

	t.Run("ResumesFromTheCheckpoint", func(t *testing.T) {
		env := newResourceEnv(newFakeIndex(1))

		err := env.indexer.Index(ctx, indexer.ResourceArgs{SearchEngineID: 1, StartResourceID: 3})
		require.NoError(t, err)

		assert.Nil(t, env.index.cleared)
		assert.Equal(t, []int64{1, 3, 5}, env.index.ids())
	})

	t.Run("RestrictsTypesAndVisibility", func(t *testing.T) {
		fixture := resourceFixture()
		env := newResourceEnv(newFakeIndex().seed(fixture[0], fixture[1], fixture[2]))

		err := env.indexer.Index(ctx, indexer.ResourceArgs{
			SearchEngineID: 1,
			ResourceTypes:  []string{resource.TypeItems, resource.TypeMedia},
			Visibility:     resource.VisibilityPublic,
		})
		require.NoError(t, err)

		assert.Equal(t, []string{resource.TypeItems}, env.index.cleared)
		assert.Equal(t, []int64{1, 2, 3, 5}, env.index.ids())
		assert.Equal(t, fixture[1], env.index.docs[2])
	})

	t.Run("DropsRequestedIDsThatNoLongerExist", func(t *testing.T) {
		env := newResourceEnv(newFakeIndex(2, 99))

		err := env.indexer.Index(ctx, indexer.ResourceArgs{SearchEngineID: 1, ResourceIDs: []int64{2, 99}})
		require.NoError(t, err)

		assert.Nil(t, env.index.cleared)
		assert.Equal(t, []int64{2}, env.index.ids())
		assert.Equal(t, "two", env.index.docs[2].Title)
	})

	t.Run("StopsAfterTheCurrentBatch", func(t *testing.T) {
		env := newResourceEnv(newFakeIndex())
		env.runs.stopAfter = 1

		err := env.indexer.Index(ctx, indexer.ResourceArgs{SearchEngineID: 1, ResourcesByStep: 1})
		assert.NoError(t, err)

		assert.Equal(t, []int64{1}, env.index.ids())
		assert.Equal(t, 1, env.fields.invalidated)
		assert.Equal(t, job.StatusStopped, env.runs.last())
	})

	t.Run("UnknownEngineIsANoop", func(t *testing.T) {
		env := newResourceEnv(newFakeIndex(1))

		err := env.indexer.Index(ctx, indexer.ResourceArgs{SearchEngineID: 7})
		assert.NoError(t, err)

		assert.Equal(t, []int64{1}, env.index.ids())
		assert.Zero(t, env.fields.invalidated)
		assert.Equal(t, job.StatusCompleted, env.runs.last())
	})

	t.Run("RefusesConcurrentRuns", func(t *testing.T) {
		env := newResourceEnv(newFakeIndex())
		_, err := env.runs.Create(ctx, &job.Run{Class: job.ClassIndexResources, Status: job.StatusStopping})
		require.NoError(t, err)

		err = env.indexer.Index(ctx, indexer.ResourceArgs{SearchEngineID: 1})
		assert.ErrorIs(t, err, job.ErrAlreadyRunning)
		assert.Empty(t, env.index.ids())
	})
}

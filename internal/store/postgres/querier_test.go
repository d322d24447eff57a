package postgres_test

import (
	"context"
	"testing"

	"github.com/goto/salt/log"
	"github.com/goto/sift/core/engine"
	"github.com/goto/sift/core/query"
	"github.com/goto/sift/core/resource"
	"github.com/goto/sift/internal/store/postgres"
	"github.com/stretchr/testify/suite"
)

type QuerierTestSuite struct {
	suite.Suite
	ctx     context.Context
	client  *postgres.Client
	querier *postgres.Querier
	engine  engine.SearchEngine

	setA, setB            resource.Resource
	spring, night, bridge resource.Resource
	secret                resource.Resource
}

func (r *QuerierTestSuite) SetupSuite() {
	var err error

	logger := log.NewLogrus()
	r.client, err = newTestClient(r.T(), logger)
	if err != nil {
		r.T().Fatal(err)
	}

	r.ctx = context.TODO()
	r.engine, err = createEngine(r.ctx, r.client, "main", resource.TypeItems, resource.TypeItemSets)
	r.Require().NoError(err)

	r.seed()

	settings, err := postgres.NewSettingRepository(r.client)
	r.Require().NoError(err)
	r.querier, err = postgres.NewQuerier(r.client, r.engine,
		postgres.QuerierWithLogger(logger),
		postgres.QuerierWithSettings(settings),
	)
	r.Require().NoError(err)
}

func (r *QuerierTestSuite) seed() {
	resources, err := postgres.NewResourceRepository(r.client)
	r.Require().NoError(err)

	create := func(typ, title string, public bool, values ...resource.Value) resource.Resource {
		res, err := createResource(r.ctx, resources, typ, title, public, values...)
		r.Require().NoError(err)
		return res
	}

	r.setA = create(resource.TypeItemSets, "Set A", true)
	r.setB = create(resource.TypeItemSets, "Set B", true)
	r.spring = create(resource.TypeItems, "Paris in Spring", true,
		literal("dcterms:date", "1995-04-01"), literal("dcterms:type", "photo"),
		resource.Value{Term: "dcterms:isPartOf", Type: resource.ValueResource, ValueResourceID: r.setA.ID, IsPublic: true},
	)
	r.night = create(resource.TypeItems, "Paris at Night", true,
		literal("dcterms:date", "2014-05-01"), literal("dcterms:type", "photo"),
		resource.Value{Term: "dcterms:isPartOf", Type: resource.ValueResource, ValueResourceID: r.setA.ID, IsPublic: true},
	)
	r.bridge = create(resource.TypeItems, "London Bridge", true,
		literal("dcterms:date", "2011"), literal("dcterms:type", "map"),
		resource.Value{Term: "dcterms:subject", Type: resource.ValueLiteral, Value: "confidentialword", IsPublic: false},
		resource.Value{Term: "dcterms:isPartOf", Type: resource.ValueResource, ValueResourceID: r.setB.ID, IsPublic: true},
	)
	r.secret = create(resource.TypeItems, "Paris Secret", false,
		literal("dcterms:date", "1890"), literal("dcterms:type", "photo"),
	)

	r.Require().NoError(resources.AttachToItemSets(r.ctx, r.spring.ID, r.setA.ID))
	r.Require().NoError(resources.AttachToItemSets(r.ctx, r.night.ID, r.setA.ID, r.setB.ID))
	r.Require().NoError(resources.AttachToItemSets(r.ctx, r.bridge.ID, r.setB.ID))

	index, err := postgres.NewSearchIndexRepository(r.client)
	r.Require().NoError(err)
	batch, err := resources.GetBatch(r.ctx, resource.Filter{Limit: 100})
	r.Require().NoError(err)
	r.Require().NoError(index.Index(r.ctx, r.engine.ID, nil, batch))
}

func (r *QuerierTestSuite) search(q query.Query) query.Response {
	resp, err := r.querier.Query(r.ctx, q)
	r.Require().NoError(err)
	r.Require().True(resp.IsSuccess(), resp.Message)
	return resp
}

func resultIDs(results []query.Result) []int64 {
	ids := make([]int64, 0, len(results))
	for _, res := range results {
		ids = append(ids, res.ID)
	}
	return ids
}

func (r *QuerierTestSuite) TestResourceTypes() {
	r.Run("should return an error response when no type is indexed by the engine", func() {
		resp, err := r.querier.Query(r.ctx, query.Query{ResourceTypes: []string{resource.TypeMedia}, Text: "*"})
		r.NoError(err)
		r.False(resp.IsSuccess())
		r.Equal(query.ErrNoResourceType.Error(), resp.Message)
	})

	r.Run("should return totals per type", func() {
		resp := r.search(query.Query{ResourceTypes: []string{resource.TypeItems, resource.TypeItemSets}, Text: "*"})
		r.Equal(4, resp.Totals[resource.TypeItems])
		r.Equal(2, resp.Totals[resource.TypeItemSets])
		r.Equal(resourceIDs(r.spring, r.night, r.bridge, r.secret), resultIDs(resp.Results[resource.TypeItems]))
	})
}

func (r *QuerierTestSuite) TestItemSetMembership() {
	r.Run("should include resources attached to several item sets", func() {
		q := query.Query{ResourceTypes: []string{resource.TypeItems}}
		q.AddFilter("item_set_id", query.Filter{Op: query.OpEqual, Value: itoa(r.setA.ID)})

		resp := r.search(q)
		r.Equal(resourceIDs(r.spring, r.night), resultIDs(resp.Results[resource.TypeItems]))
	})

	r.Run("should include the shared item in the other set too", func() {
		q := query.Query{ResourceTypes: []string{resource.TypeItems}}
		q.AddFilter("item_set_id", query.Filter{Op: query.OpEqual, Value: itoa(r.setB.ID)})

		resp := r.search(q)
		r.Equal(resourceIDs(r.night, r.bridge), resultIDs(resp.Results[resource.TypeItems]))
	})
}

func (r *QuerierTestSuite) TestFilters() {
	r.Run("should compare dates on their leading year", func() {
		q := query.Query{ResourceTypes: []string{resource.TypeItems}}
		q.AddFilter("dcterms:date", query.Filter{Op: query.OpRange, Value: "2000..2012"})

		resp := r.search(q)
		r.Equal(resourceIDs(r.bridge), resultIDs(resp.Results[resource.TypeItems]))
	})

	r.Run("should exclude resources holding the value with nin", func() {
		q := query.Query{ResourceTypes: []string{resource.TypeItems}}
		q.AddFilter("dcterms:title", query.Filter{Op: query.OpNotContains, Value: "paris"})

		resp := r.search(q)
		r.Equal(resourceIDs(r.bridge), resultIDs(resp.Results[resource.TypeItems]))
	})

	r.Run("should follow linked resources with res", func() {
		q := query.Query{ResourceTypes: []string{resource.TypeItems}}
		q.AddFilter("dcterms:isPartOf", query.Filter{Op: query.OpResource, Value: itoa(r.setB.ID)})

		resp := r.search(q)
		r.Equal(resourceIDs(r.bridge), resultIDs(resp.Results[resource.TypeItems]))
	})

	r.Run("should ignore filters on unknown fields", func() {
		q := query.Query{ResourceTypes: []string{resource.TypeItems}}
		q.AddFilter("foaf:name", query.Filter{Op: query.OpEqual, Value: "x"})

		resp := r.search(q)
		r.Equal(4, resp.Totals[resource.TypeItems])
	})

	r.Run("should restrict anonymous callers to public resources", func() {
		q := query.Query{ResourceTypes: []string{resource.TypeItems}, Text: "*"}
		q.RestrictVisibility(false)

		resp := r.search(q)
		r.Equal(resourceIDs(r.spring, r.night, r.bridge), resultIDs(resp.Results[resource.TypeItems]))
	})
}

func (r *QuerierTestSuite) TestText() {
	r.Run("should match documents and score them", func() {
		q := query.Query{ResourceTypes: []string{resource.TypeItems}, Text: "paris"}
		q.RestrictVisibility(false)

		resp := r.search(q)
		results := resp.Results[resource.TypeItems]
		r.ElementsMatch(resourceIDs(r.spring, r.night), resultIDs(results))
		for _, res := range results {
			r.NotNil(res.Score)
		}
	})

	r.Run("should not match private values for anonymous callers", func() {
		q := query.Query{ResourceTypes: []string{resource.TypeItems}, Text: "confidentialword"}
		q.RestrictVisibility(false)

		resp := r.search(q)
		r.Equal(0, resp.Totals[resource.TypeItems])
		r.Empty(resp.Results[resource.TypeItems])
	})

	r.Run("should match private values for authenticated callers", func() {
		q := query.Query{ResourceTypes: []string{resource.TypeItems}, Text: "confidentialword"}
		q.RestrictVisibility(true)

		resp := r.search(q)
		r.Equal(resourceIDs(r.bridge), resultIDs(resp.Results[resource.TypeItems]))
	})
}

func (r *QuerierTestSuite) TestSortAndPages() {
	r.Run("should sort on a property", func() {
		q := query.Query{
			ResourceTypes: []string{resource.TypeItems},
			Text:          "*",
			Sort:          &query.Sort{Field: "dcterms:date", Direction: query.SortDesc},
		}

		resp := r.search(q)
		r.Equal(resourceIDs(r.night, r.bridge, r.spring, r.secret), resultIDs(resp.Results[resource.TypeItems]))
	})

	r.Run("should page results and keep the total", func() {
		q := query.Query{ResourceTypes: []string{resource.TypeItems}, Text: "*", Page: 2, PerPage: 3}

		resp := r.search(q)
		r.Equal(4, resp.Totals[resource.TypeItems])
		r.Equal(resourceIDs(r.secret), resultIDs(resp.Results[resource.TypeItems]))
	})
}

func (r *QuerierTestSuite) TestFacets() {
	r.Run("should count each facet without its own selection", func() {
		q := query.Query{
			ResourceTypes: []string{resource.TypeItems},
			Text:          "*",
			Facets: map[string]query.FacetConfig{
				"dcterms:type": {},
				"dcterms:date": {FirstDigits: query.FirstDigits{N: 3}},
			},
		}
		q.SelectFacet("dcterms:type", "photo")
		q.RestrictVisibility(false)

		resp := r.search(q)
		r.Equal(2, resp.Totals[resource.TypeItems])

		r.Equal([]query.FacetCount{
			{Value: "photo", Count: 2},
			{Value: "map", Count: 1},
		}, resp.FacetCounts["dcterms:type"])
		r.Equal(3, sumCounts(resp.FacetCounts["dcterms:type"]))

		r.Equal([]query.FacetCount{
			{Value: "199", Count: 1},
			{Value: "201", Count: 1},
		}, resp.FacetCounts["dcterms:date"])
		r.Equal(resp.Totals[resource.TypeItems], sumCounts(resp.FacetCounts["dcterms:date"]))
	})

	r.Run("should label resource facets with the linked title", func() {
		q := query.Query{
			ResourceTypes: []string{resource.TypeItems},
			Text:          "*",
			Facets: map[string]query.FacetConfig{
				"item_set_id": {Type: query.FacetTypeResource, Order: query.FacetOrderValueAsc},
			},
		}

		resp := r.search(q)
		r.Equal([]query.FacetCount{
			{Value: itoa(r.setA.ID), Label: "Set A", Count: 2},
			{Value: itoa(r.setB.ID), Label: "Set B", Count: 2},
		}, resp.FacetCounts["item_set_id"])
	})

	r.Run("should return no counts for unknown fields", func() {
		q := query.Query{
			ResourceTypes: []string{resource.TypeItems},
			Text:          "*",
			Facets:        map[string]query.FacetConfig{"foaf:name": {}},
		}

		resp := r.search(q)
		r.Empty(resp.FacetCounts["foaf:name"])
	})
}

func sumCounts(counts []query.FacetCount) int {
	var n int
	for _, c := range counts {
		n += c.Count
	}
	return n
}

func TestQuerier(t *testing.T) {
	suite.Run(t, &QuerierTestSuite{})
}

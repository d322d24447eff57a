package postgres_test

import (
	"context"
	"testing"

	"github.com/goto/salt/log"
	"github.com/goto/sift/core/engine"
	"github.com/goto/sift/core/resource"
	"github.com/goto/sift/core/suggestion"
	"github.com/goto/sift/internal/store/postgres"
	"github.com/stretchr/testify/suite"
)

type SuggestionRepositoryTestSuite struct {
	suite.Suite
	ctx        context.Context
	client     *postgres.Client
	repository *postgres.SuggestionRepository
	suggester  engine.Suggester
}

func (r *SuggestionRepositoryTestSuite) SetupSuite() {
	var err error

	logger := log.NewLogrus()
	r.client, err = newTestClient(r.T(), logger)
	if err != nil {
		r.T().Fatal(err)
	}

	r.ctx = context.TODO()
	r.repository, err = postgres.NewSuggestionRepository(r.client)
	r.Require().NoError(err)

	e, err := createEngine(r.ctx, r.client, "main", resource.TypeItems)
	r.Require().NoError(err)

	suggesters, err := postgres.NewSuggesterRepository(r.client)
	r.Require().NoError(err)
	r.suggester = engine.Suggester{EngineID: e.ID, Name: "titles"}
	r.suggester.ID, err = suggesters.Upsert(r.ctx, &r.suggester)
	r.Require().NoError(err)
}

func (r *SuggestionRepositoryTestSuite) SetupTest() {
	r.Require().NoError(r.repository.DeleteBySuggester(r.ctx, r.suggester.ID))
}

func (r *SuggestionRepositoryTestSuite) suggestions() []suggestion.Suggestion {
	return []suggestion.Suggestion{
		{Text: "Paris", TotalAll: 3, TotalPublic: 2, SiteIDs: []int64{1}},
		{Text: "Paris at", TotalAll: 1, TotalPublic: 0, SiteIDs: []int64{2}},
		{Text: "London", TotalAll: 1, TotalPublic: 1},
		{Text: "par_tial", TotalAll: 5, TotalPublic: 5},
	}
}

func (r *SuggestionRepositoryTestSuite) TestReplace() {
	r.Run("should be idempotent", func() {
		r.Require().NoError(r.repository.Replace(r.ctx, r.suggester.ID, r.suggestions()))
		first, err := r.repository.List(r.ctx, r.suggester.ID)
		r.Require().NoError(err)

		r.Require().NoError(r.repository.Replace(r.ctx, r.suggester.ID, r.suggestions()))
		second, err := r.repository.List(r.ctx, r.suggester.ID)
		r.Require().NoError(err)

		r.Len(second, len(first))
		for i := range first {
			r.Equal(first[i].Text, second[i].Text)
			r.Equal(first[i].TotalAll, second[i].TotalAll)
			r.Equal(first[i].TotalPublic, second[i].TotalPublic)
			r.Equal(first[i].SiteIDs, second[i].SiteIDs)
		}

		n, err := r.repository.Count(r.ctx, r.suggester.ID)
		r.NoError(err)
		r.Equal(4, n)
	})

	r.Run("should store site scopes", func() {
		r.Require().NoError(r.repository.Replace(r.ctx, r.suggester.ID, r.suggestions()))
		list, err := r.repository.List(r.ctx, r.suggester.ID)
		r.Require().NoError(err)

		scopes := make(map[string][]int64)
		for _, s := range list {
			scopes[s.Text] = s.SiteIDs
		}
		r.Equal([]int64{1}, scopes["Paris"])
		r.Equal([]int64{2}, scopes["Paris at"])
		r.Empty(scopes["London"])
	})
}

func (r *SuggestionRepositoryTestSuite) TestSearch() {
	r.Require().NoError(r.repository.Replace(r.ctx, r.suggester.ID, r.suggestions()))

	cases := []struct {
		description string
		filter      suggestion.SearchFilter
		expected    []string
	}{
		{
			description: "global scope ordered by total",
			filter:      suggestion.SearchFilter{Prefix: "par", Limit: 10},
			expected:    []string{"par_tial", "Paris", "Paris at"},
		},
		{
			description: "LIKE characters of the prefix are literal",
			filter:      suggestion.SearchFilter{Prefix: "par_", Limit: 10},
			expected:    []string{"par_tial"},
		},
		{
			description: "public partition drops suggestions without public total",
			filter:      suggestion.SearchFilter{Prefix: "paris", Public: true, Limit: 10},
			expected:    []string{"Paris"},
		},
		{
			description: "site scope",
			filter:      suggestion.SearchFilter{Prefix: "p", SiteID: 2, Limit: 10},
			expected:    []string{"Paris at"},
		},
		{
			description: "limit",
			filter:      suggestion.SearchFilter{Prefix: "p", Limit: 1},
			expected:    []string{"par_tial"},
		},
	}
	for _, tc := range cases {
		r.Run(tc.description, func() {
			tc.filter.SuggesterID = r.suggester.ID
			texts, err := r.repository.Search(r.ctx, tc.filter)
			r.NoError(err)
			r.Equal(tc.expected, texts)
		})
	}
}

func TestSuggestionRepository(t *testing.T) {
	suite.Run(t, &SuggestionRepositoryTestSuite{})
}

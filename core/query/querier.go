package query

import "context"

//go:generate mockery --name=Querier -r --case underscore --with-expecter --structname Querier --filename querier_mock.go --output=./mocks

// Querier executes a Query against one search engine configuration.
//
// Implementations return an error-status Response for conditions the caller
// can show, and a QuerierError for conditions they cannot recover from.
type Querier interface {
	Query(ctx context.Context, q Query) (Response, error)
}

// QuerierFunc adapts an ordinary function to a Querier.
type QuerierFunc func(context.Context, Query) (Response, error)

func (f QuerierFunc) Query(ctx context.Context, q Query) (Response, error) { return f(ctx, q) }

// NoopQuerier answers every query with an empty successful response.
type NoopQuerier struct{}

func (NoopQuerier) Query(_ context.Context, q Query) (Response, error) {
	resp := NewResponse()
	for _, typ := range q.ResourceTypes {
		resp.Results[typ] = []Result{}
		resp.Totals[typ] = 0
	}
	for field := range q.Facets {
		resp.FacetCounts[field] = []FacetCount{}
	}
	return resp, nil
}

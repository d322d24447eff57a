package indexer

import (
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// DefaultBatchSize is the number of resources read per batch.
const DefaultBatchSize = 100

// Configuration errors. A run hitting one of them logs a notice and ends
// without work.
var (
	ErrNoResourceType = errors.New("no resource type to index")
	ErrNoField        = errors.New("no field to index")
)

// ExcludedFields never feed suggestions: they hold long extracted or
// descriptive texts whose first words are noise.
var ExcludedFields = []string{
	"extracttext:extracted_text",
	"bibo:content",
	"dcterms:description",
	"dcterms:abstract",
	"dcterms:tableOfContents",
}

const (
	indexedResourcesCounter  = "sift.indexer.resources"
	storedSuggestionsCounter = "sift.indexer.suggestions"
)

const (
	attrEngineID    = attribute.Key("search.engine_id")
	attrSuggesterID = attribute.Key("search.suggester_id")
)

type counters struct {
	resources   metric.Int64Counter
	suggestions metric.Int64Counter
}

func newCounters() counters {
	meter := otel.Meter("github.com/goto/sift/internal/indexer")

	resources, err := meter.Int64Counter(indexedResourcesCounter)
	handleOtelErr(err)

	suggestions, err := meter.Int64Counter(storedSuggestionsCounter)
	handleOtelErr(err)

	return counters{resources: resources, suggestions: suggestions}
}

func handleOtelErr(err error) {
	if err != nil {
		otel.Handle(err)
	}
}

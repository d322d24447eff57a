package query

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const queryDurnHistogram = "sift.query.duration"

const (
	attrEngine    = attribute.Key("search.engine")
	attrStatus    = attribute.Key("search.status")
	attrOpSuccess = attribute.Key("operation.success")
)

type instrumentedQuerier struct {
	next   Querier
	engine string
	durn   metric.Float64Histogram
}

// WithInstrumentation wraps a Querier so that every call records its
// duration. It is applied after the base querier is built.
func WithInstrumentation(engine string) func(Querier) Querier {
	durn, err := otel.Meter("github.com/goto/sift/core/query").
		Float64Histogram(queryDurnHistogram)
	if err != nil {
		otel.Handle(err)
	}

	return func(next Querier) Querier {
		return instrumentedQuerier{next: next, engine: engine, durn: durn}
	}
}

func (iq instrumentedQuerier) Query(ctx context.Context, q Query) (resp Response, err error) {
	defer func(start time.Time) {
		if iq.durn == nil {
			return
		}
		ms := (float64)(time.Since(start)) / (float64)(time.Millisecond)
		iq.durn.Record(ctx, ms, metric.WithAttributes(
			attrEngine.String(iq.engine),
			attrStatus.String(string(resp.Status)),
			attrOpSuccess.Bool(err == nil),
		))
	}(time.Now())

	return iq.next.Query(ctx, q)
}

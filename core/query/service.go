package query

import (
	"context"
	"errors"
	"time"

	"github.com/goto/sift/pkg/statsd"
	"github.com/goto/salt/log"
)

type StatsDReporter interface {
	Incr(name string) *statsd.Metric
	Timing(name string, value time.Duration) *statsd.Metric
}

// Service is the entry point used by callers: it applies the caller's
// visibility, validates the query and turns querier failures into error
// responses.
type Service struct {
	querier Querier
	logger  log.Logger
	statsd  StatsDReporter
}

type ServiceOption func(*Service)

func ServiceWithLogger(l log.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func ServiceWithStatsDReporter(r StatsDReporter) ServiceOption {
	return func(s *Service) {
		s.statsd = r
	}
}

func NewService(querier Querier, opts ...ServiceOption) *Service {
	s := &Service{
		querier: querier,
		logger:  log.NewNoop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search runs q for a caller. Anonymous callers only see public resources.
func (s *Service) Search(ctx context.Context, q Query, authenticated bool) Response {
	start := time.Now()
	q.RestrictVisibility(authenticated)

	if err := q.Validate(); err != nil {
		s.publish("query.invalid", start, err)
		return ErrorResponse(err.Error())
	}

	resp, err := s.querier.Query(ctx, q)
	if err != nil {
		s.logger.Error("search failed", "query", q.String(), "err", err)
		s.publish("query", start, err)
		return ErrorResponse(userMessage(err))
	}
	if !resp.IsSuccess() {
		s.logger.Warn("search returned an error", "query", q.String(), "message", resp.Message)
	}

	s.publish("query", start, nil)
	return resp
}

func (s *Service) publish(name string, start time.Time, err error) {
	if s.statsd == nil {
		return
	}
	m := s.statsd.Timing(name, time.Since(start))
	if err != nil {
		m.Failure(err)
	} else {
		m.Success()
	}
	m.Publish()
}

func userMessage(err error) string {
	var qe QuerierError
	if errors.As(err, &qe) && qe.Op != "" {
		return "search engine error: " + qe.Op
	}
	return "search engine error"
}

package workermanager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	jobrun "github.com/goto/sift/core/job"
	"github.com/goto/sift/internal/indexer"
	"github.com/goto/sift/pkg/worker"
	"github.com/newrelic/go-agent/v3/newrelic"
)

const (
	jobIndexSuggestions = "index-suggestions"
	jobIndexResources   = "index-resources"
)

//go:generate mockery --name=SuggestionIndexer -r --case underscore --with-expecter --structname SuggestionIndexer --filename suggestion_indexer_mock.go --output=./mocks

type SuggestionIndexer interface {
	Index(ctx context.Context, args indexer.SuggestionArgs) error
}

//go:generate mockery --name=ResourceIndexer -r --case underscore --with-expecter --structname ResourceIndexer --filename resource_indexer_mock.go --output=./mocks

type ResourceIndexer interface {
	Index(ctx context.Context, args indexer.ResourceArgs) error
}

func (m *Manager) EnqueueIndexSuggestionsJob(ctx context.Context, args indexer.SuggestionArgs) error {
	payload, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("enqueue index suggestions job: marshal args: %w", err)
	}

	err = m.worker.Enqueue(ctx, worker.JobSpec{
		Type:    jobIndexSuggestions,
		Payload: payload,
	})
	if err != nil {
		return fmt.Errorf("enqueue index suggestions job: %w", err)
	}
	return nil
}

func (m *Manager) EnqueueIndexResourcesJob(ctx context.Context, args indexer.ResourceArgs) error {
	payload, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("enqueue index resources job: marshal args: %w", err)
	}

	err = m.worker.Enqueue(ctx, worker.JobSpec{
		Type:    jobIndexResources,
		Payload: payload,
	})
	if err != nil {
		return fmt.Errorf("enqueue index resources job: %w", err)
	}
	return nil
}

func (m *Manager) indexSuggestionsHandler() worker.JobHandler {
	return worker.JobHandler{
		Handle:  m.IndexSuggestions,
		JobOpts: worker.JobOptions{Timeout: m.jobTimeout},
	}
}

func (m *Manager) indexResourcesHandler() worker.JobHandler {
	return worker.JobHandler{
		Handle:  m.IndexResources,
		JobOpts: worker.JobOptions{Timeout: m.jobTimeout},
	}
}

// IndexSuggestions runs the suggestion indexer for a job. Arguments that do
// not decode and conflicting runs kill the job; other indexer failures are
// retried.
func (m *Manager) IndexSuggestions(ctx context.Context, job worker.JobSpec) error {
	var args indexer.SuggestionArgs
	if err := json.Unmarshal(job.Payload, &args); err != nil {
		return fmt.Errorf("index suggestions: decode args: %w", err)
	}

	ctx, end := m.startTransaction(ctx, job.Type)
	defer end()

	if err := m.suggestions.Index(ctx, args); err != nil {
		return m.indexFailure(fmt.Errorf("index suggestions of suggester %d: %w", args.SearchSuggesterID, err))
	}
	return nil
}

func (m *Manager) IndexResources(ctx context.Context, job worker.JobSpec) error {
	var args indexer.ResourceArgs
	if err := json.Unmarshal(job.Payload, &args); err != nil {
		return fmt.Errorf("index resources: decode args: %w", err)
	}

	ctx, end := m.startTransaction(ctx, job.Type)
	defer end()

	if err := m.resources.Index(ctx, args); err != nil {
		return m.indexFailure(fmt.Errorf("index resources of engine %d: %w", args.SearchEngineID, err))
	}
	return nil
}

// indexFailure retries the failed run unless another run of the same class
// holds the index.
func (m *Manager) indexFailure(err error) error {
	if errors.Is(err, jobrun.ErrAlreadyRunning) {
		m.logger.Error("index job conflicts with a running job", "err", err)
		return err
	}
	return &worker.RetryableError{Cause: err}
}

// startTransaction tags the attempt with a correlation id shared by its log
// entries and its newrelic transaction.
func (m *Manager) startTransaction(ctx context.Context, jobType string) (context.Context, func()) {
	correlationID := uuid.NewString()
	m.logger.Info("running job", "job_type", jobType, "correlation_id", correlationID)

	if m.nrApp == nil {
		return ctx, func() {}
	}
	txn := m.nrApp.StartTransaction("worker/" + jobType)
	txn.AddAttribute("correlation_id", correlationID)
	return newrelic.NewContext(ctx, txn), txn.End
}

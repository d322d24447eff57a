package workermw

import (
	"context"
	"sort"
	"time"

	"github.com/goto/sift/pkg/worker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	enqueueDurnHistogram    = "sift.worker.jobs.enqueue.duration"
	dequeueLatencyHistogram = "sift.worker.job.dequeue.latency"
	processDurnHistogram    = "sift.worker.job.process.duration"
	attemptsCounter         = "sift.worker.job.attempts"
)

const (
	attrJobTypes     = attribute.Key("job.types")
	attrJobType      = attribute.Key("job.type")
	attrOpSuccess    = attribute.Key("operation.success")
	attrJobAttemptNo = attribute.Key("job.attempt_number")
	attrJobStatus    = attribute.Key("job.status")
)

// JobProcessorInstrumentation records the enqueue and processing timings of
// a JobProcessor, and counts the attempts by outcome.
type JobProcessorInstrumentation struct {
	next worker.JobProcessor

	enqueueDurn    metric.Float64Histogram
	dequeueLatency metric.Float64Histogram
	processDurn    metric.Float64Histogram
	attempts       metric.Int64Counter
}

func WithJobProcessorInstrumentation() func(worker.JobProcessor) worker.JobProcessor {
	meter := otel.Meter("github.com/goto/sift/pkg/worker/workermw")

	enqueueDurn, err := meter.Float64Histogram(enqueueDurnHistogram, metric.WithUnit("ms"))
	handleOtelErr(err)

	dequeueLatency, err := meter.Float64Histogram(dequeueLatencyHistogram, metric.WithUnit("ms"))
	handleOtelErr(err)

	processDurn, err := meter.Float64Histogram(processDurnHistogram, metric.WithUnit("ms"))
	handleOtelErr(err)

	attempts, err := meter.Int64Counter(attemptsCounter)
	handleOtelErr(err)

	return func(next worker.JobProcessor) worker.JobProcessor {
		return JobProcessorInstrumentation{
			next:           next,
			enqueueDurn:    enqueueDurn,
			dequeueLatency: dequeueLatency,
			processDurn:    processDurn,
			attempts:       attempts,
		}
	}
}

func (mw JobProcessorInstrumentation) Enqueue(ctx context.Context, jobs ...worker.Job) (err error) {
	defer func(start time.Time) {
		mw.enqueueDurn.Record(ctx, millis(time.Since(start)), metric.WithAttributes(
			attrJobTypes.StringSlice(jobTypes(jobs)),
			attrOpSuccess.Bool(err == nil),
		))
	}(time.Now())

	return mw.next.Enqueue(ctx, jobs...)
}

func (mw JobProcessorInstrumentation) Process(ctx context.Context, types []string, fn worker.JobExecutorFunc) error {
	start := time.Now()
	wrappedFn := func(ctx context.Context, job worker.Job) (result worker.Job) {
		// Jobs resurrected or retried late may be picked long after RunAt.
		if latency := time.Since(job.RunAt); latency > 0 {
			mw.dequeueLatency.Record(ctx, millis(latency), metric.WithAttributes(
				attrJobType.String(job.Type),
			))
		}

		defer func() {
			status := attrJobStatus.String(jobStatus(result))
			mw.processDurn.Record(ctx, millis(time.Since(start)), metric.WithAttributes(
				attrJobType.String(job.Type),
				attrJobAttemptNo.Int(result.AttemptsDone),
				status,
				attrOpSuccess.Bool(result.Status == worker.StatusDone),
			))
			mw.attempts.Add(ctx, 1, metric.WithAttributes(attrJobType.String(job.Type), status))
		}()
		return fn(ctx, job)
	}
	return mw.next.Process(ctx, types, wrappedFn)
}

func (mw JobProcessorInstrumentation) Stats(ctx context.Context) ([]worker.JobTypeStats, error) {
	return mw.next.Stats(ctx)
}

// jobTypes returns the distinct types of jobs, sorted.
func jobTypes(jobs []worker.Job) []string {
	seen := make(map[string]struct{}, len(jobs))
	types := make([]string, 0, len(jobs))
	for _, j := range jobs {
		if _, ok := seen[j.Type]; ok {
			continue
		}
		seen[j.Type] = struct{}{}
		types = append(types, j.Type)
	}
	sort.Strings(types)
	return types
}

func jobStatus(j worker.Job) string {
	if j.Status == worker.StatusUnknown {
		return "retry"
	}
	return string(j.Status)
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func handleOtelErr(err error) {
	if err != nil {
		otel.Handle(err)
	}
}

package worker

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

//go:embed dead_jobs_page.html
var deadJobsPageSrc string

//go:generate mockery --name=DeadJobManager -r --case underscore --with-expecter --structname DeadJobManager --filename dead_job_manager_mock.go --output=./mocks

type DeadJobManager interface {
	DeadJobs(ctx context.Context, size, offset int) ([]Job, error)
	Resurrect(ctx context.Context, jobIDs []string) error
	ClearDeadJobs(ctx context.Context, jobIDs []string) error
}

const (
	listDeadJobsPath  = "/dead-jobs"
	resurrectJobsPath = "/resurrect-jobs"
	clearJobsPath     = "/clear-jobs"

	defaultDeadJobsPageSize = 20
)

// DeadJobManagementHandler serves the operator endpoints of the dead jobs:
//   - /dead-jobs lists them, as JSON when asked for, else as an HTML page;
//   - /resurrect-jobs queues the posted job_ids again;
//   - /clear-jobs drops the posted job_ids for good.
func DeadJobManagementHandler(mgr DeadJobManager) http.Handler {
	routes := map[string]http.Handler{
		listDeadJobsPath:  listDeadJobs(mgr),
		resurrectJobsPath: applyToJobs(mgr.Resurrect),
		clearJobsPath:     applyToJobs(mgr.ClearDeadJobs),
	}
	operations := map[string]string{
		listDeadJobsPath:  "list_dead_jobs",
		resurrectJobsPath: "resurrect_jobs",
		clearJobsPath:     "clear_jobs",
	}

	mux := http.NewServeMux()
	for path, h := range routes {
		mux.Handle(path, otelhttp.NewMiddleware(operations[path])(otelhttp.WithRouteTag(path, h)))
	}
	return mux
}

type deadJobView struct {
	Job
	Args string
}

func listDeadJobs(mgr DeadJobManager) http.HandlerFunc {
	page := template.Must(template.New("dead_jobs").Parse(deadJobsPageSrc))

	return func(w http.ResponseWriter, r *http.Request) {
		qry := r.URL.Query()
		size, err := strconv.Atoi(qry.Get("size"))
		if err != nil || size <= 0 {
			size = defaultDeadJobsPageSize
		}
		offset, err := strconv.Atoi(qry.Get("offset"))
		if err != nil || offset < 0 {
			offset = 0
		}

		jobs, err := mgr.DeadJobs(r.Context(), size, offset)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, err)
			return
		}

		if strings.Contains(r.Header.Get("Accept"), "application/json") {
			writeJSON(w, http.StatusOK, jobs)
			return
		}

		views := make([]deadJobView, 0, len(jobs))
		for _, j := range jobs {
			views = append(views, deadJobView{Job: j, Args: prettyArgs(j.Payload)})
		}

		var buf bytes.Buffer
		err = page.Execute(&buf, map[string]interface{}{
			"Jobs":     views,
			"PageSize": size,
			"Next":     offset + size,
			"Prev":     offset - size,
			"Error":    strings.TrimSpace(qry.Get("error")),
		})
		if err != nil {
			redirectWithError(w, r, err.Error())
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = buf.WriteTo(w)
	}
}

func applyToJobs(fn func(context.Context, []string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			redirectWithError(w, r, err.Error())
			return
		}

		ids := r.Form["job_ids"]
		if len(ids) == 0 {
			redirectWithError(w, r, "no job IDs specified")
			return
		}

		if err := fn(r.Context(), ids); err != nil {
			redirectWithError(w, r, err.Error())
			return
		}
		http.Redirect(w, r, listDeadJobsPath, http.StatusSeeOther)
	}
}

func redirectWithError(w http.ResponseWriter, r *http.Request, msg string) {
	http.Redirect(w, r, listDeadJobsPath+"?error="+url.QueryEscape(msg), http.StatusSeeOther)
}

// prettyArgs indents JSON job args and returns anything else unchanged.
func prettyArgs(payload []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, payload, "", "  "); err != nil {
		return string(payload)
	}
	return buf.String()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	if err, ok := v.(error); ok {
		v = map[string]string{"error": err.Error()}
	}

	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "encode response failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

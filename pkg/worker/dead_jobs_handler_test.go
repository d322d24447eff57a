package worker_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/goto/sift/internal/testutils"
	"github.com/goto/sift/pkg/worker"
	"github.com/goto/sift/pkg/worker/mocks"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
)

var ctx = context.Background()

func TestDeadJobManagementHandler(t *testing.T) {
	frozenTime := time.Unix(1654082526, 0).UTC()
	job := worker.Job{
		ID: ulid.MustParse("01H65SPDDWGN753S5W8S0YHYXD"),
		JobSpec: worker.JobSpec{
			Type:    "index-suggestions",
			Payload: []byte(`{"search_suggester_id":4}`),
			RunAt:   frozenTime,
		},
		CreatedAt:     frozenTime,
		UpdatedAt:     frozenTime,
		AttemptsDone:  3,
		LastAttemptAt: frozenTime,
		LastError:     "suggester 4 not reachable",
	}
	ids := []string{"01H65SPDDWGN753S5W8S0YHYXD", "01H63BQ5D0SZEWVX2S05K0A35C"}

	t.Run("ListAsJSON", func(t *testing.T) {
		cases := []struct {
			name     string
			query    string
			setup    func(mgr *mocks.DeadJobManager)
			expected response
		}{
			{
				name:  "SizeAndOffset",
				query: "size=10&offset=1",
				setup: func(mgr *mocks.DeadJobManager) {
					mgr.EXPECT().DeadJobs(testutils.OfTypeContext(), 10, 1).Return([]worker.Job{job}, nil)
				},
				expected: response{
					Status:  http.StatusOK,
					Headers: map[string]string{"Content-Type": "application/json"},
					Body:    `[{"id":"01H65SPDDWGN753S5W8S0YHYXD","type":"index-suggestions","args":"eyJzZWFyY2hfc3VnZ2VzdGVyX2lkIjo0fQ==","run_at":"2022-06-01T11:22:06Z","created_at":"2022-06-01T11:22:06Z","updated_at":"2022-06-01T11:22:06Z","attempts_done":3,"last_error":"suggester 4 not reachable","last_attempt_at":"2022-06-01T11:22:06Z"}]`,
				},
			},
			{
				name:  "InvalidSizeAndOffsetFallBackToDefaults",
				query: "size=-1&offset=-1",
				setup: func(mgr *mocks.DeadJobManager) {
					mgr.EXPECT().DeadJobs(testutils.OfTypeContext(), 20, 0).Return([]worker.Job{}, nil)
				},
				expected: response{
					Status:  http.StatusOK,
					Headers: map[string]string{"Content-Type": "application/json"},
					Body:    `[]`,
				},
			},
			{
				name: "ManagerError",
				setup: func(mgr *mocks.DeadJobManager) {
					mgr.EXPECT().DeadJobs(testutils.OfTypeContext(), 20, 0).Return(nil, errors.New("connection refused"))
				},
				expected: response{
					Status:  http.StatusInternalServerError,
					Headers: map[string]string{"Content-Type": "application/json"},
					Body:    `{"error":"connection refused"}`,
				},
			},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				mgr := mocks.NewDeadJobManager(t)
				tc.setup(mgr)

				req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "/dead-jobs?"+tc.query, nil)
				req.Header.Set("Accept", "application/json")

				res := recordResponse(worker.DeadJobManagementHandler(mgr), req)
				defer res.Body.Close()

				matchResponse(t, tc.expected, res)
			})
		}
	})

	t.Run("ListAsHTML", func(t *testing.T) {
		mgr := mocks.NewDeadJobManager(t)
		mgr.EXPECT().DeadJobs(testutils.OfTypeContext(), 20, 0).Return([]worker.Job{job}, nil)

		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "/dead-jobs", nil)
		req.Header.Set("Accept", "text/html")

		res := recordResponse(worker.DeadJobManagementHandler(mgr), req)
		defer res.Body.Close()

		assert.Equal(t, http.StatusOK, res.StatusCode)
		data, _ := io.ReadAll(res.Body)
		html := string(data)
		assert.Contains(t, html, "index-suggestions / 01H65SPDDWGN753S5W8S0YHYXD")
		assert.Contains(t, html, "&#34;search_suggester_id&#34;: 4")
		assert.Contains(t, html, "Last Error: suggester 4 not reachable")
	})

	for path, expect := range map[string]func(mgr *mocks.DeadJobManager, err error){
		"/resurrect-jobs": func(mgr *mocks.DeadJobManager, err error) {
			mgr.EXPECT().Resurrect(testutils.OfTypeContext(), ids).Return(err)
		},
		"/clear-jobs": func(mgr *mocks.DeadJobManager, err error) {
			mgr.EXPECT().ClearDeadJobs(testutils.OfTypeContext(), ids).Return(err)
		},
	} {
		path, expect := path, expect
		t.Run(strings.TrimPrefix(path, "/"), func(t *testing.T) {
			form := url.Values{"job_ids": ids}.Encode()
			cases := []struct {
				name     string
				body     io.Reader
				setup    func(mgr *mocks.DeadJobManager)
				location string
			}{
				{
					name:     "MalformedFormPost",
					setup:    func(*mocks.DeadJobManager) {},
					location: "/dead-jobs?error=" + url.QueryEscape("missing form body"),
				},
				{
					name:     "MissingJobIDs",
					body:     strings.NewReader(""),
					setup:    func(*mocks.DeadJobManager) {},
					location: "/dead-jobs?error=" + url.QueryEscape("no job IDs specified"),
				},
				{
					name:     "ManagerError",
					body:     strings.NewReader(form),
					setup:    func(mgr *mocks.DeadJobManager) { expect(mgr, errors.New("tx aborted")) },
					location: "/dead-jobs?error=" + url.QueryEscape("tx aborted"),
				},
				{
					name:     "Success",
					body:     strings.NewReader(form),
					setup:    func(mgr *mocks.DeadJobManager) { expect(mgr, nil) },
					location: "/dead-jobs",
				},
			}
			for _, tc := range cases {
				t.Run(tc.name, func(t *testing.T) {
					mgr := mocks.NewDeadJobManager(t)
					tc.setup(mgr)

					req, _ := http.NewRequestWithContext(ctx, http.MethodPost, path, tc.body)
					req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
					res := recordResponse(worker.DeadJobManagementHandler(mgr), req)
					defer res.Body.Close()

					matchResponse(t, response{
						Status:  http.StatusSeeOther,
						Headers: map[string]string{"Location": tc.location},
					}, res)
				})
			}
		})
	}
}

func recordResponse(h http.Handler, req *http.Request) *http.Response {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Result()
}

type response struct {
	Status  int
	Headers map[string]string
	Body    string
}

func matchResponse(t *testing.T, expected response, actual *http.Response) {
	t.Helper()

	assert.Equal(t, expected.Status, actual.StatusCode)
	for k, v := range expected.Headers {
		assert.Equal(t, v, actual.Header.Get(k))
	}

	body, err := io.ReadAll(actual.Body)
	if !assert.NoError(t, err) {
		return
	}
	if expected.Body == "" {
		assert.Empty(t, body)
		return
	}
	assert.JSONEq(t, expected.Body, string(body))
}

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sourceplane/litejob/internal/counter"
	"github.com/sourceplane/litejob/internal/logger"
	"github.com/sourceplane/litejob/internal/model"
	"github.com/sourceplane/litejob/internal/normalize"
	"github.com/sourceplane/litejob/internal/planner"
	"github.com/sourceplane/litejob/internal/trigger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDispatcher struct {
	mu   sync.Mutex
	jobs []model.PlanJob
	err  error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, job model.PlanJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func identityServerJob(t *testing.T) *model.NormalizedJob {
	t.Helper()
	job, err := normalize.NormalizeJob(&model.JobDefinition{
		Metadata: model.Metadata{Name: "identity-server-rs", Description: "Build and push to docker"},
		Spec: model.JobSpec{
			Trigger: model.Trigger{GitPush: model.GitPushTrigger{
				PathFilter: model.PatternSet{
					Exclude: []string{"README.md"},
					Include: []string{"*.json", "dockerfile/Dockerfile", "*.toml", "**/*.toml", "**/src/**"},
				},
			}},
			Resources: model.Resources{CPU: "4", Memory: "3000mb"},
			Build:     model.BuildSpec{Context: ".", File: "./docker/Dockerfile"},
			Push: model.PushSpec{
				Repository: "registry.example.com/backend/identity-server-rs",
				Tags:       []string{"version-0.$JB_SPACE_EXECUTION_NUMBER", "$BRANCH"},
			},
		},
	})
	require.NoError(t, err)
	return job
}

func newTestRouter(t *testing.T, dispatcher Dispatcher) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	jp, err := planner.NewJobPlanner(
		[]*model.NormalizedJob{identityServerJob(t)},
		planner.WithCounter(counter.NewMemory()),
	)
	require.NoError(t, err)

	return SetupRouter(&Dependencies{
		Logger:     logger.Discard(),
		Planner:    jp,
		Dispatcher: dispatcher,
	})
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	w := do(t, newTestRouter(t, &fakeDispatcher{}), http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","service":"litejob","jobs":1}`, w.Body.String())
}

func TestListAndGetJobs(t *testing.T) {
	r := newTestRouter(t, &fakeDispatcher{})

	w := do(t, r, http.MethodGet, "/api/v1/jobs", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var list struct {
		Jobs  []JobSummary `json:"jobs"`
		Count int          `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "identity-server-rs", list.Jobs[0].Name)
	assert.Equal(t, []string{"README.md"}, list.Jobs[0].Exclude)
	assert.Equal(t, "4 cpu, 2.93GiB memory", list.Jobs[0].Limits)

	w = do(t, r, http.MethodGet, "/api/v1/jobs/identity-server-rs", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodGet, "/api/v1/jobs/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMatchJob(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	r := newTestRouter(t, dispatcher)

	tests := []struct {
		name      string
		paths     []string
		wantFired bool
	}{
		{"readme only", []string{"README.md"}, false},
		{"root toml", []string{"README.md", "Cargo.toml"}, true},
		{"nested src", []string{"crates/core/src/lib.rs"}, true},
		{"nested json", []string{"config/app.json"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := PushEventRequest{Branch: "main", ChangedPaths: tt.paths}
			w := do(t, r, http.MethodPost, "/api/v1/jobs/identity-server-rs/match", body)
			require.Equal(t, http.StatusOK, w.Code)

			var result trigger.Result
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
			assert.Equal(t, tt.wantFired, result.Fired)
			assert.Len(t, result.Decisions, len(tt.paths))
		})
	}

	assert.Empty(t, dispatcher.jobs, "matching never dispatches")

	w := do(t, r, http.MethodPost, "/api/v1/jobs/missing/match", PushEventRequest{Branch: "main"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodPost, "/api/v1/jobs/identity-server-rs/match", `{"changedPaths": ["a"]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPushEvent_DispatchesFiredJobs(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	r := newTestRouter(t, dispatcher)

	body := PushEventRequest{Branch: "refs/heads/main", ChangedPaths: []string{"src/main.rs"}}
	w := do(t, r, http.MethodPost, "/api/v1/events/push", body)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var resp PushEventResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "push-main", resp.Plan)
	assert.Equal(t, 1, resp.Dispatched)
	require.Len(t, resp.Jobs, 1)
	assert.Equal(t, "identity-server-rs@1", resp.Jobs[0].ID)
	assert.Equal(t, []string{
		"registry.example.com/backend/identity-server-rs:version-0.1",
		"registry.example.com/backend/identity-server-rs:main",
	}, resp.Jobs[0].Images)

	// The counter advances on the next push
	w = do(t, r, http.MethodPost, "/api/v1/events/push", body)
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, dispatcher.jobs, 2)
	assert.Equal(t, int64(2), dispatcher.jobs[1].ExecutionNumber)
}

func TestPushEvent_NothingFired(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	r := newTestRouter(t, dispatcher)

	w := do(t, r, http.MethodPost, "/api/v1/events/push", PushEventRequest{Branch: "main", ChangedPaths: []string{"README.md"}})
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp PushEventResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Jobs)
	require.Len(t, resp.Skipped, 1)
	assert.Equal(t, trigger.ReasonNoPathMatched, resp.Skipped[0].Reason)
	assert.Empty(t, dispatcher.jobs)
}

func TestPushEvent_Errors(t *testing.T) {
	tests := []struct {
		name     string
		body     any
		dispatch error
		want     int
	}{
		{"malformed json", `{"branch": `, nil, http.StatusBadRequest},
		{"missing branch", PushEventRequest{ChangedPaths: []string{"src/a.rs"}}, nil, http.StatusBadRequest},
		{"negative execution number", `{"branch":"main","executionNumber":-1}`, nil, http.StatusBadRequest},
		{"explicit execution number", PushEventRequest{Branch: "main", ChangedPaths: []string{"src/a.rs"}, ExecutionNumber: 3}, nil, http.StatusAccepted},
		{"dispatch failure", PushEventRequest{Branch: "main", ChangedPaths: []string{"src/a.rs"}}, errors.New("broker down"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(t, &fakeDispatcher{err: tt.dispatch})
			w := do(t, r, http.MethodPost, "/api/v1/events/push", tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestPushEvent_PlanFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	job := identityServerJob(t)
	job.Definition.Spec.Push.Tags = []string{"$RELEASE"}

	jp, err := planner.NewJobPlanner([]*model.NormalizedJob{job})
	require.NoError(t, err)
	r := SetupRouter(&Dependencies{Logger: logger.Discard(), Planner: jp, Dispatcher: &fakeDispatcher{}})

	w := do(t, r, http.MethodPost, "/api/v1/events/push", PushEventRequest{Branch: "main", ChangedPaths: []string{"src/a.rs"}, ExecutionNumber: 1})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "RELEASE")
}

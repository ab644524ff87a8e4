package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/3leaps/queuectl/pkg/queue"
	"github.com/3leaps/queuectl/pkg/queuestore"
)

func newTestServer(t *testing.T) (*Server, *queue.Queue) {
	t.Helper()
	ctx := context.Background()

	db, err := queuestore.Open(ctx, queuestore.Config{
		Path: filepath.Join(t.TempDir(), "queue.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, queuestore.Migrate(ctx, db))

	q := queue.New(db, zap.NewNop())
	return New(q, 0, zap.NewNop()), q
}

func intPtr(v int) *int { return &v }

func seedJobs(t *testing.T, q *queue.Queue) {
	t.Helper()
	ctx := context.Background()

	job, err := q.Enqueue(ctx, queue.EnqueueParams{Command: "echo hi"})
	require.NoError(t, err)
	claimed, err := q.Claim(ctx)
	require.NoError(t, err)
	require.Equal(t, job.ID, claimed.ID)
	require.NoError(t, q.Complete(ctx, job.ID, "hi\n", 12))

	for i := 0; i < 2; i++ {
		_, err := q.Enqueue(ctx, queue.EnqueueParams{Command: "true"})
		require.NoError(t, err)
	}

	dead, err := q.Enqueue(ctx, queue.EnqueueParams{Command: "false", MaxRetries: intPtr(0)})
	require.NoError(t, err)
	require.NoError(t, q.Fail(ctx, dead.ID, "boom"))
}

func TestStatsEndpoint(t *testing.T) {
	srv, q := newTestServer(t)
	seedJobs(t, q)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 2, body["pending"])
	assert.EqualValues(t, 1, body["completed"])
	assert.EqualValues(t, 1, body["dead"])
	assert.EqualValues(t, 1, body["totalCompleted"])
	assert.EqualValues(t, 12, body["avgExecutionTime"])
	assert.EqualValues(t, 50, body["successRate"])
}

func TestJobsEndpoint(t *testing.T) {
	srv, q := newTestServer(t)
	seedJobs(t, q)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs?state=pending&limit=10", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var jobs []queue.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jobs))
	require.Len(t, jobs, 2)
	for _, j := range jobs {
		assert.Equal(t, queue.StatePending, j.State)
	}
}

func TestJobsEndpointEmptyQueueReturnsArray(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestJobsEndpointRejectsBadLimit(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs?limit=banana", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIndexRendersDashboard(t *testing.T) {
	srv, q := newTestServer(t)
	seedJobs(t, q)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "queuectl dashboard")
	assert.Contains(t, rec.Body.String(), "Dead-letter queue")
}

func TestUnknownPathIs404(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

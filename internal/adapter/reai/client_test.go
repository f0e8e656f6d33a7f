package reai

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reai-timetracker/internal/auth"
	"reai-timetracker/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "shared-secret", Options{}, testLogger())
}

func TestResolveEmployee(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/employee/detail", r.URL.Path)
		assert.Equal(t, "tok", r.Header.Get("Authorization"))
		switch r.URL.Query().Get("id") {
		case "7":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":7,"name":"Ada","email":"ada@example.com","tenantId":1}`))
		case "99":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	cred := auth.Credential{Token: "tok"}

	emp, err := c.ResolveEmployee(context.Background(), 7, cred)
	require.NoError(t, err)
	assert.Equal(t, int64(7), emp.ID)
	assert.Equal(t, "Ada", emp.Name)
	require.NotNil(t, emp.TenantID)
	assert.Equal(t, int64(1), *emp.TenantID)

	_, err = c.ResolveEmployee(context.Background(), 99, cred)
	assert.ErrorIs(t, err, domain.ErrAccessDenied)

	_, err = c.ResolveEmployee(context.Background(), 1, cred)
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
}

func TestListProjects(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/project/list-projects", r.URL.Path)
		assert.Equal(t, "Web", r.URL.Query().Get("name"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":3,"name":"Website"},{"id":4,"name":"Webshop"}]`))
	}))

	projects, err := c.ListProjects(context.Background(), "Web", auth.Credential{Token: "tok"})
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "Website", projects[0].Name)
}

func TestListProjectsSwallowsServerErrors(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	projects, err := c.ListProjects(context.Background(), "", auth.Credential{})
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestListProjectsPropagatesUnauthorized(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := c.ListProjects(context.Background(), "", auth.Credential{})
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
}

func TestPushTimeEntry(t *testing.T) {
	var got timesheetRequest
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/timesheet/create", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Idempotency-Key"))
		// No forwarded credential: the shared secret header must be set.
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.Equal(t, "shared-secret", r.Header.Get("X-Api-Secret"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, gojson.Unmarshal(body, &got))
		w.WriteHeader(http.StatusCreated)
	}))

	start := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)
	entry := domain.TimeEntry{ID: 1, EmployeeID: 7, Start: start, EntryDate: start, Description: "dev work"}
	entry.Close(start.Add(90 * time.Minute))

	ok := c.PushTimeEntry(context.Background(), entry, auth.Credential{})
	assert.True(t, ok)
	assert.Equal(t, int64(7), got.EmployeeID)
	assert.Equal(t, "2026-08-03", got.Date)
	assert.Equal(t, 1.5, got.Hours)
	assert.Equal(t, "dev work", got.Description)
}

func TestPushTimeEntryFailureIsFalseNotError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	ok := c.PushTimeEntry(context.Background(), domain.TimeEntry{ID: 1, EmployeeID: 7, Start: time.Now(), EntryDate: time.Now()}, auth.Credential{})
	assert.False(t, ok)
}

func TestPushTimeEntryBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	calls := 0
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))

	entry := domain.TimeEntry{ID: 1, EmployeeID: 7, Start: time.Now(), EntryDate: time.Now()}
	for i := 0; i < 8; i++ {
		assert.False(t, c.PushTimeEntry(context.Background(), entry, auth.Credential{}))
	}
	// After five consecutive failures the breaker opens and stops hitting
	// the server.
	assert.Equal(t, 5, calls)
}

package app

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	gojson "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"reai-timetracker/internal/auth"
	"reai-timetracker/internal/domain"
	"reai-timetracker/internal/usecase"
)

// HTTPServer returns a configured http.Server exposing the timer API.
// Call ListenAndServe on it in a goroutine and Shutdown it on exit.
func (a *App) HTTPServer(addr string) *http.Server {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(a.log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/time", func(r chi.Router) {
		r.Post("/start", a.handleStart)
		r.Post("/stop", a.handleStop)
		r.Get("/current", a.handleCurrent)
		r.Get("/entries", a.handleEntries)
		r.Get("/entries/all", a.handleAllEntries)
		r.Put("/entries/{id}", a.handleUpdateEntry)
		r.Post("/sync", a.handleSync)
	})
	r.Get("/api/projects", a.handleProjects)
	r.Get("/api/employees", a.handleEmployees)

	a.log.Info("http server configured", slog.String("addr", addr))
	return &http.Server{Addr: addr, Handler: r}
}

func (a *App) handleStart(w http.ResponseWriter, r *http.Request) {
	employeeID, err := queryInt64(r, "employeeId")
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	cred := credential(r)
	tenantID, err := a.tenantID(cred)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	entry, err := a.svc.StartTimer(r.Context(), employeeID, tenantID, projectRef(r), cred)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (a *App) handleStop(w http.ResponseWriter, r *http.Request) {
	employeeID, err := queryInt64(r, "employeeId")
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	cred := credential(r)
	tenantID, err := a.tenantID(cred)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	entry, err := a.svc.StopTimer(r.Context(), employeeID, tenantID, cred)
	if errors.Is(err, domain.ErrNoActiveTimer) {
		// Nothing to stop: record an instant entry so the caller still
		// gets a row back.
		entry, err = a.svc.CreateInstantEntry(r.Context(), employeeID, tenantID, projectRef(r), cred)
	}
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (a *App) handleCurrent(w http.ResponseWriter, r *http.Request) {
	employeeID, err := queryInt64(r, "employeeId")
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	tenantID, err := a.tenantID(credential(r))
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	entry, err := a.svc.GetCurrentTimer(r.Context(), employeeID, tenantID)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (a *App) handleEntries(w http.ResponseWriter, r *http.Request) {
	employeeID, err := queryInt64(r, "employeeId")
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	cred := credential(r)
	tenantID, err := a.tenantID(cred)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	entries, err := a.svc.GetTimeEntries(r.Context(), employeeID, tenantID, cred)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (a *App) handleAllEntries(w http.ResponseWriter, r *http.Request) {
	tenantID, err := a.tenantID(credential(r))
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	// Outside multi-tenant mode an explicit tenantId param may narrow the
	// listing.
	if tenantID == nil {
		if v, err := strconv.ParseInt(r.URL.Query().Get("tenantId"), 10, 64); err == nil {
			tenantID = &v
		}
	}
	entries, err := a.svc.GetAllTimeEntries(r.Context(), tenantID)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (a *App) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid entry id", http.StatusBadRequest)
		return
	}
	tenantID, err := a.tenantID(credential(r))
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	var body struct {
		Description *string `json:"description"`
		Billable    *bool   `json:"billable"`
	}
	if err := gojson.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	entry, err := a.svc.UpdateEntry(r.Context(), id, tenantID, body.Description, body.Billable)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (a *App) handleSync(w http.ResponseWriter, r *http.Request) {
	employeeID, err := queryInt64(r, "employeeId")
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	cred := credential(r)
	tenantID, err := a.tenantID(cred)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	synced, ok, err := a.svc.SyncAllProjectsForToday(r.Context(), employeeID, tenantID, cred)
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"synced": synced, "ok": ok})
}

func (a *App) handleProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := a.svc.ListProjects(r.Context(), r.URL.Query().Get("name"), credential(r))
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (a *App) handleEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := a.svc.ListEmployees(r.Context(), credential(r))
	if err != nil {
		writeError(w, a.log, err)
		return
	}
	writeJSON(w, http.StatusOK, employees)
}

// tenantID derives the tenant scope for a request. In multi-tenant mode it
// comes from the tenantId claim of the forwarded token; in single-tenant
// mode the scope is nil.
func (a *App) tenantID(cred auth.Credential) (*int64, error) {
	if !a.cfg.Timer.MultiTenant {
		return nil, nil
	}
	id, err := auth.TenantID(cred, a.cfg.Auth.JWTSecret)
	if err != nil {
		return nil, domain.ErrAccessDenied
	}
	return &id, nil
}

// credential extracts the bearer credential from the Authorization header or
// the access_token query parameter.
func credential(r *http.Request) auth.Credential {
	if h := r.Header.Get("Authorization"); h != "" {
		return auth.Credential{Token: strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))}
	}
	return auth.Credential{Token: r.URL.Query().Get("access_token")}
}

func projectRef(r *http.Request) domain.ProjectRef {
	ref := domain.ProjectRef{Name: r.URL.Query().Get("projectName")}
	if v, err := strconv.ParseInt(r.URL.Query().Get("projectId"), 10, 64); err == nil {
		ref.ID = &v
	}
	return ref
}

func queryInt64(r *http.Request, name string) (int64, error) {
	v, err := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	if err != nil {
		return 0, errBadParam(name)
	}
	return v, nil
}

type badParamError string

func (e badParamError) Error() string { return "missing or invalid parameter: " + string(e) }

func errBadParam(name string) error { return badParamError(name) }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = gojson.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed", slog.Any("error", err))
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = gojson.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func statusOf(err error) int {
	var bad badParamError
	switch {
	case errors.Is(err, domain.ErrAccessDenied):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrTimerConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNoActiveTimer), errors.Is(err, domain.ErrEntryNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrProjectRequired), errors.As(err, &bad):
		return http.StatusBadRequest
	case errors.Is(err, usecase.ErrSyncFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// requestLogger provides basic request logging.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.String("remote", r.RemoteAddr),
				slog.Duration("dur", time.Since(start)),
			)
		})
	}
}

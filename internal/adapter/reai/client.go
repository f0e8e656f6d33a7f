package reai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"

	"reai-timetracker/internal/auth"
	"reai-timetracker/internal/domain"
)

// Client implements ports.DirectoryClient against the ReAI platform API.
//
// Timesheet pushes go through a circuit breaker so a dead platform stops
// costing a full timeout per stop call; an open breaker is reported the same
// way as any other push failure.
type Client struct {
	baseURL   string
	apiSecret string
	http      *http.Client
	breaker   *gobreaker.CircuitBreaker[bool]
	log       *slog.Logger
}

// Options tunes the HTTP client. Zero values fall back to 10s dial / 30s
// overall timeouts.
type Options struct {
	DialTimeout time.Duration
	Timeout     time.Duration
}

func NewClient(baseURL, apiSecret string, opts Options, log *slog.Logger) *Client {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 10 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	c := &Client{
		baseURL:   baseURL,
		apiSecret: apiSecret,
		http: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: opts.DialTimeout}).DialContext,
			},
		},
		log: log,
	}
	c.breaker = gobreaker.NewCircuitBreaker[bool](gobreaker.Settings{
		Name:    "reai-timesheet",
		Timeout: 2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	return c
}

// ResolveEmployee fetches the employee record for id.
// Unauthorized and unknown-employee responses map to domain.ErrAccessDenied.
func (c *Client) ResolveEmployee(ctx context.Context, employeeID int64, cred auth.Credential) (*domain.Employee, error) {
	u, err := c.endpoint("/api/employee/detail", url.Values{"id": {strconv.FormatInt(employeeID, 10)}})
	if err != nil {
		return nil, err
	}
	var raw rawEmployee
	status, err := c.getJSON(ctx, u, cred, &raw)
	if err != nil {
		return nil, err
	}
	switch status {
	case http.StatusOK:
		return raw.toDomain(), nil
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return nil, domain.ErrAccessDenied
	default:
		return nil, fmt.Errorf("reai: employee detail returned status %d", status)
	}
}

// ListEmployees fetches every employee visible to the credential. Failures
// other than unauthorized are swallowed into an empty list.
func (c *Client) ListEmployees(ctx context.Context, cred auth.Credential) ([]domain.Employee, error) {
	u, err := c.endpoint("/api/employee/list-employees", nil)
	if err != nil {
		return nil, err
	}
	var raw []rawEmployee
	status, err := c.getJSON(ctx, u, cred, &raw)
	if err != nil || status != http.StatusOK {
		if status == http.StatusUnauthorized {
			return nil, domain.ErrAccessDenied
		}
		c.log.Error("listing employees failed", slog.Int("status", status), slog.Any("error", err))
		return []domain.Employee{}, nil
	}
	out := make([]domain.Employee, 0, len(raw))
	for _, r := range raw {
		out = append(out, *r.toDomain())
	}
	return out, nil
}

// ListProjects fetches projects, optionally filtered by name. Failures other
// than unauthorized are swallowed into an empty list.
func (c *Client) ListProjects(ctx context.Context, name string, cred auth.Credential) ([]domain.Project, error) {
	q := url.Values{}
	if name != "" {
		q.Set("name", name)
	}
	u, err := c.endpoint("/api/project/list-projects", q)
	if err != nil {
		return nil, err
	}
	var raw []rawProject
	status, err := c.getJSON(ctx, u, cred, &raw)
	if err != nil || status != http.StatusOK {
		if status == http.StatusUnauthorized {
			return nil, domain.ErrAccessDenied
		}
		c.log.Error("listing projects failed", slog.Int("status", status), slog.Any("error", err))
		return []domain.Project{}, nil
	}
	out := make([]domain.Project, 0, len(raw))
	for _, r := range raw {
		out = append(out, domain.Project{ID: r.ID, Name: r.Name, TenantID: r.TenantID})
	}
	return out, nil
}

// PushTimeEntry submits one timesheet record. It never returns an error:
// network problems, non-2xx responses, and an open breaker all come back as
// false, leaving the synced flag as the durable retry signal.
func (c *Client) PushTimeEntry(ctx context.Context, entry domain.TimeEntry, cred auth.Credential) bool {
	ok, err := c.breaker.Execute(func() (bool, error) {
		return c.pushTimeEntry(ctx, entry, cred)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.log.Warn("timesheet push rejected by circuit breaker", slog.Int64("entry", entry.ID))
		} else {
			c.log.Error("timesheet push failed", slog.Int64("entry", entry.ID), slog.Any("error", err))
		}
		return false
	}
	return ok
}

func (c *Client) pushTimeEntry(ctx context.Context, entry domain.TimeEntry, cred auth.Credential) (bool, error) {
	u, err := c.endpoint("/api/timesheet/create", nil)
	if err != nil {
		return false, err
	}
	body, err := gojson.Marshal(timesheetRequest{
		EmployeeID:  entry.EmployeeID,
		ProjectID:   entry.ProjectID,
		ProjectName: entry.ProjectName,
		Date:        entry.EntryDate.Format("2006-01-02"),
		Hours:       hoursOf(entry),
		StartTime:   entry.Start,
		EndTime:     entry.End,
		Description: entry.Description,
		Billable:    entry.Billable,
	})
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Idempotency-Key", uuid.NewString())
	c.authorize(req, cred)

	resp, err := c.http.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return false, fmt.Errorf("reai: timesheet create returned status %d: %s", resp.StatusCode, msg)
	}
	c.log.Info("timesheet entry pushed",
		slog.Int64("entry", entry.ID),
		slog.Int64("employee", entry.EmployeeID),
		slog.String("date", entry.EntryDate.Format("2006-01-02")),
	)
	return true, nil
}

// getJSON performs an authorized GET and decodes a 200 response into dst.
// The status code is returned for all responses; non-200 bodies are drained
// and discarded.
func (c *Client) getJSON(ctx context.Context, u string, cred auth.Credential, dst any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	c.authorize(req, cred)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return resp.StatusCode, nil
	}
	if err := gojson.NewDecoder(resp.Body).Decode(dst); err != nil {
		return resp.StatusCode, fmt.Errorf("reai: decode response: %w", err)
	}
	return resp.StatusCode, nil
}

// authorize forwards the caller's bearer credential when present and falls
// back to the static shared secret otherwise.
func (c *Client) authorize(req *http.Request, cred auth.Credential) {
	req.Header.Set("User-Agent", "ReAI-TimeTracker/1.0")
	if !cred.Empty() {
		req.Header.Set("Authorization", cred.Token)
		return
	}
	if c.apiSecret != "" {
		req.Header.Set("X-Api-Secret", c.apiSecret)
	}
}

func (c *Client) endpoint(path string, q url.Values) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	u.Path = path
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func hoursOf(e domain.TimeEntry) float64 {
	if e.TotalHours != nil {
		return *e.TotalHours
	}
	return 0
}

type rawEmployee struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Department string `json:"department"`
	TenantID   *int64 `json:"tenantId"`
}

func (r rawEmployee) toDomain() *domain.Employee {
	return &domain.Employee{
		ID:         r.ID,
		Name:       r.Name,
		Email:      r.Email,
		Department: r.Department,
		TenantID:   r.TenantID,
	}
}

type rawProject struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	TenantID *int64 `json:"tenantId"`
}

// timesheetRequest mirrors the JSON accepted by /api/timesheet/create.
type timesheetRequest struct {
	EmployeeID  int64      `json:"employeeId"`
	ProjectID   *int64     `json:"projectId,omitempty"`
	ProjectName string     `json:"projectName,omitempty"`
	Date        string     `json:"date"`
	Hours       float64    `json:"hours"`
	StartTime   time.Time  `json:"startTime"`
	EndTime     *time.Time `json:"endTime,omitempty"`
	Description string     `json:"description,omitempty"`
	Billable    bool       `json:"billable"`
}

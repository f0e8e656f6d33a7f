package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	driver "github.com/go-sql-driver/mysql"

	"reai-timetracker/internal/domain"
)

const dateLayout = "2006-01-02"

// Store implements ports.EntryStore on a MySQL table.
//
// The single-open-timer invariant is enforced twice: a SELECT ... FOR UPDATE
// check inside the insert transaction, and the uq_open_timer unique index
// over (employee_id, tenant_key, open_marker) as a backstop against
// concurrent starts that race past the check.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// NewStore opens a MySQL connection using the provided DSN.
// Example DSN: user:pass@tcp(host:3306)/dbname?parseTime=true&multiStatements=true
func NewStore(ctx context.Context, dsn string, log *slog.Logger) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("mysql: DSN is required")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	c, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(c); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, log: log}, nil
}

func tenantKey(tenantID *int64) int64 {
	if tenantID == nil {
		return 0
	}
	return *tenantID
}

const entryColumns = `id, employee_id, tenant_id, project_id, project_name, start_time, end_time, entry_date, description, billable, synced, duration_ms, total_hours`

// Insert persists a new entry and assigns its id. Inserting an open entry
// while another open entry exists for the same (employee, tenant) scope
// fails with domain.ErrTimerConflict.
func (s *Store) Insert(ctx context.Context, e *domain.TimeEntry) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if e.Active() {
		var existing int64
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM time_entries WHERE employee_id = ? AND tenant_key = ? AND end_time IS NULL FOR UPDATE`,
			e.EmployeeID, tenantKey(e.TenantID),
		).Scan(&existing)
		switch {
		case err == nil:
			return domain.ErrTimerConflict
		case errors.Is(err, sql.ErrNoRows):
			// No open timer, proceed.
		default:
			return err
		}
	}

	res, err := tx.ExecContext(ctx, `
INSERT INTO time_entries
  (employee_id, tenant_id, project_id, project_name, start_time, end_time, entry_date, description, billable, synced, duration_ms, total_hours)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
		e.EmployeeID,
		e.TenantID,
		e.ProjectID,
		e.ProjectName,
		e.Start.UTC(),
		nullTime(e.End),
		e.EntryDate.Format(dateLayout),
		nullString(e.Description),
		e.Billable,
		e.Synced,
		e.DurationMS,
		e.TotalHours,
	)
	if err != nil {
		if isDuplicate(err) {
			return domain.ErrTimerConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	e.ID = id
	return nil
}

// Update writes every mutable column of an existing entry.
func (s *Store) Update(ctx context.Context, e *domain.TimeEntry) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE time_entries SET
  project_id = ?, project_name = ?, start_time = ?, end_time = ?, entry_date = ?,
  description = ?, billable = ?, synced = ?, duration_ms = ?, total_hours = ?
WHERE id = ?;
`,
		e.ProjectID,
		e.ProjectName,
		e.Start.UTC(),
		nullTime(e.End),
		e.EntryDate.Format(dateLayout),
		nullString(e.Description),
		e.Billable,
		e.Synced,
		e.DurationMS,
		e.TotalHours,
		e.ID,
	)
	return err
}

// FindOpen returns the open entry for the scope, or domain.ErrNoActiveTimer.
func (s *Store) FindOpen(ctx context.Context, employeeID int64, tenantID *int64) (*domain.TimeEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM time_entries WHERE employee_id = ? AND tenant_key = ? AND end_time IS NULL`,
		employeeID, tenantKey(tenantID),
	)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNoActiveTimer
	}
	return e, err
}

// FindByID returns the entry by id within the tenant scope, or
// domain.ErrEntryNotFound.
func (s *Store) FindByID(ctx context.Context, id int64, tenantID *int64) (*domain.TimeEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM time_entries WHERE id = ? AND tenant_key = ?`,
		id, tenantKey(tenantID),
	)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrEntryNotFound
	}
	return e, err
}

// ListByEmployee returns the employee's entries, newest first.
func (s *Store) ListByEmployee(ctx context.Context, employeeID int64, tenantID *int64) ([]domain.TimeEntry, error) {
	return s.list(ctx,
		`SELECT `+entryColumns+` FROM time_entries WHERE employee_id = ? AND tenant_key = ? ORDER BY start_time DESC`,
		employeeID, tenantKey(tenantID),
	)
}

// ListByTenant returns every entry in the tenant scope, newest first.
func (s *Store) ListByTenant(ctx context.Context, tenantID *int64) ([]domain.TimeEntry, error) {
	return s.list(ctx,
		`SELECT `+entryColumns+` FROM time_entries WHERE tenant_key = ? ORDER BY start_time DESC`,
		tenantKey(tenantID),
	)
}

// ListUnsyncedClosed selects closed, unsynced entries for one employee and
// calendar day, oldest first. An empty project ref matches every project.
func (s *Store) ListUnsyncedClosed(ctx context.Context, employeeID int64, tenantID *int64, project domain.ProjectRef, date time.Time) ([]domain.TimeEntry, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + entryColumns + ` FROM time_entries
WHERE employee_id = ? AND tenant_key = ? AND entry_date = ? AND end_time IS NOT NULL AND synced = 0`)
	args := []any{employeeID, tenantKey(tenantID), date.Format(dateLayout)}
	switch {
	case project.ID != nil:
		b.WriteString(` AND project_id = ?`)
		args = append(args, *project.ID)
	case project.Name != "":
		b.WriteString(` AND project_name = ?`)
		args = append(args, project.Name)
	}
	b.WriteString(` ORDER BY start_time ASC`)
	return s.list(ctx, b.String(), args...)
}

// ListUnsynced returns every unsynced entry for the tenant, oldest first.
func (s *Store) ListUnsynced(ctx context.Context, tenantID *int64) ([]domain.TimeEntry, error) {
	return s.list(ctx,
		`SELECT `+entryColumns+` FROM time_entries WHERE tenant_key = ? AND synced = 0 ORDER BY start_time ASC`,
		tenantKey(tenantID),
	)
}

// MarkSynced flips the synced flag for all given ids in one transaction.
func (s *Store) MarkSynced(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE time_entries SET synced = 1 WHERE id IN (%s)`, placeholders),
		args...,
	); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.log.Debug("marked entries synced", slog.Int("count", len(ids)))
	return nil
}

// Close closes the underlying DB.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) list(ctx context.Context, query string, args ...any) ([]domain.TimeEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TimeEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(r rowScanner) (*domain.TimeEntry, error) {
	var (
		e        domain.TimeEntry
		tenant   sql.NullInt64
		project  sql.NullInt64
		end      sql.NullTime
		desc     sql.NullString
		duration sql.NullInt64
		hours    sql.NullFloat64
	)
	if err := r.Scan(
		&e.ID, &e.EmployeeID, &tenant, &project, &e.ProjectName,
		&e.Start, &end, &e.EntryDate, &desc, &e.Billable, &e.Synced,
		&duration, &hours,
	); err != nil {
		return nil, err
	}
	if tenant.Valid {
		v := tenant.Int64
		e.TenantID = &v
	}
	if project.Valid {
		v := project.Int64
		e.ProjectID = &v
	}
	if end.Valid {
		v := end.Time
		e.End = &v
	}
	if desc.Valid {
		e.Description = desc.String
	}
	if duration.Valid {
		v := duration.Int64
		e.DurationMS = &v
	}
	if hours.Valid {
		v := hours.Float64
		e.TotalHours = &v
	}
	return &e, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isDuplicate(err error) bool {
	var me *driver.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ppiankov/billspectre/internal/classifier"
	"github.com/ppiankov/billspectre/internal/finding"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by Get for an unknown run id.
var ErrNotFound = errors.New("run not found")

// SQLite implements Store on an SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens or creates the history database at path.
func NewSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Record(ctx context.Context, run *Run, findings []finding.Finding) (string, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now().UTC()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = run.FinishedAt
	}

	regions, err := encodeList(run.Regions)
	if err != nil {
		return "", err
	}
	categories, err := encodeList(run.Categories)
	if err != nil {
		return "", err
	}
	errs, err := encodeList(run.Errors)
	if err != nil {
		return "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin record: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at, period, billing_total, regions, categories,
		   resources, finding_count, savings, report_path, errors)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC(), run.FinishedAt.UTC(), run.Period, run.BillingTotal.String(),
		regions, categories, run.Resources, run.FindingCount, run.Savings.String(),
		run.ReportPath, errs,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for i, f := range findings {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO findings (run_id, position, finding_id, severity, category, subject_id, region,
			   title, action, impact, impact_amount)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, i, string(f.ID), string(f.Severity), string(f.Category), f.SubjectID, f.Region,
			f.Title, f.Action, f.EstimatedImpact, f.ImpactAmount.String(),
		)
		if err != nil {
			return "", fmt.Errorf("insert finding %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit record: %w", err)
	}
	return run.ID, nil
}

const runColumns = `id, started_at, finished_at, period, billing_total, regions, categories,
	resources, finding_count, savings, report_path, errors`

func (s *SQLite) List(ctx context.Context, limit int) ([]Run, error) {
	query := "SELECT " + runColumns + " FROM runs ORDER BY started_at DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

func (s *SQLite) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, err
}

func (s *SQLite) Findings(ctx context.Context, runID string) ([]finding.Finding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT finding_id, severity, category, subject_id, region, title, action, impact, impact_amount
		 FROM findings WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query findings: %w", err)
	}
	defer rows.Close()

	var out []finding.Finding
	for rows.Next() {
		var (
			f                    finding.Finding
			id, sev, cat, amount string
		)
		if err := rows.Scan(&id, &sev, &cat, &f.SubjectID, &f.Region, &f.Title, &f.Action,
			&f.EstimatedImpact, &amount); err != nil {
			return nil, fmt.Errorf("scan finding row: %w", err)
		}
		f.ID = finding.FindingID(id)
		f.Severity = finding.Severity(sev)
		f.Category = classifier.Category(cat)
		if f.ImpactAmount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse impact amount %q: %w", amount, err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		r                         Run
		total, savings            string
		regions, categories, errs string
	)
	err := row.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Period, &total, &regions, &categories,
		&r.Resources, &r.FindingCount, &savings, &r.ReportPath, &errs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run row: %w", err)
	}
	if r.BillingTotal, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("parse billing total %q: %w", total, err)
	}
	if r.Savings, err = decimal.NewFromString(savings); err != nil {
		return nil, fmt.Errorf("parse savings %q: %w", savings, err)
	}
	for _, f := range []struct {
		raw string
		dst *[]string
	}{{regions, &r.Regions}, {categories, &r.Categories}, {errs, &r.Errors}} {
		if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
			return nil, fmt.Errorf("decode run list: %w", err)
		}
	}
	return &r, nil
}

func encodeList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("encode run list: %w", err)
	}
	return string(b), nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/noalloc/internal/diag"
)

const runColumns = `id, seq, program_hash, ir_version, checker_version, sources, failures, warnings`

// ListRuns returns every run, oldest first.
// Returns an empty slice (not nil) if the history is empty.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	return s.queryRuns(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
}

// RunsForProgram returns the runs that checked the program with the given
// hash, oldest first.
func (s *Store) RunsForProgram(ctx context.Context, programHash string) ([]Run, error) {
	return s.queryRuns(ctx, `
		SELECT `+runColumns+`
		FROM runs
		WHERE program_hash = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, programHash)
}

// ReadRun retrieves a single run by ID.
// Returns an error wrapping ErrRunNotFound if it does not exist.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read run %s: %w", id, ErrRunNotFound)
	}
	return run, err
}

// LastRun returns the most recent run.
// Returns an error wrapping ErrRunNotFound if the history is empty.
func (s *Store) LastRun(ctx context.Context) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY seq DESC
		LIMIT 1
	`)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("last run: %w", ErrRunNotFound)
	}
	return run, err
}

// ResolveRunID expands a unique ID prefix to the full run ID.
func (s *Store) ResolveRunID(ctx context.Context, prefix string) (string, error) {
	if prefix == "" {
		return "", fmt.Errorf("resolve run: empty id")
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM runs
		WHERE substr(id, 1, ?) = ?
		ORDER BY seq ASC
		LIMIT 2
	`, len(prefix), prefix)
	if err != nil {
		return "", fmt.Errorf("resolve run: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("resolve run: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("resolve run: %w", err)
	}

	switch len(ids) {
	case 0:
		return "", fmt.Errorf("resolve run %s: %w", prefix, ErrRunNotFound)
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("resolve run: prefix %q is ambiguous", prefix)
	}
}

// ReadDiagnostics returns a run's diagnostics in report order.
// Returns an empty slice (not nil) if the run reported nothing.
func (s *Store) ReadDiagnostics(ctx context.Context, runID string) ([]diag.Diagnostic, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, kind, severity, method, message, args, file, line, col
		FROM diagnostics
		WHERE run_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query diagnostics: %w", err)
	}
	defer rows.Close()

	diags := []diag.Diagnostic{}
	for rows.Next() {
		d, err := scanDiagnostic(rows)
		if err != nil {
			return nil, err
		}
		diags = append(diags, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate diagnostics: %w", err)
	}
	return diags, nil
}

// Diff compares two runs by diagnostic ID.
func (s *Store) Diff(ctx context.Context, fromID, toID string) (RunDiff, error) {
	for _, id := range []string{fromID, toID} {
		if _, err := s.ReadRun(ctx, id); err != nil {
			return RunDiff{}, fmt.Errorf("diff: %w", err)
		}
	}
	from, err := s.ReadDiagnostics(ctx, fromID)
	if err != nil {
		return RunDiff{}, fmt.Errorf("diff: %w", err)
	}
	to, err := s.ReadDiagnostics(ctx, toID)
	if err != nil {
		return RunDiff{}, fmt.Errorf("diff: %w", err)
	}

	d := RunDiff{From: fromID, To: toID, Added: []diag.Diagnostic{}, Resolved: []diag.Diagnostic{}}
	d.Added = appendMissing(d.Added, to, from)
	d.Resolved = appendMissing(d.Resolved, from, to)
	return d, nil
}

// appendMissing appends the diagnostics of a whose ID does not occur in b.
func appendMissing(dst, a, b []diag.Diagnostic) []diag.Diagnostic {
	seen := make(map[string]bool, len(b))
	for _, d := range b {
		seen[d.ID] = true
	}
	for _, d := range a {
		if !seen[d.ID] {
			dst = append(dst, d)
		}
	}
	return dst
}

func (s *Store) queryRuns(ctx context.Context, query string, args ...any) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var run Run
	var sourcesJSON string
	err := sc.Scan(
		&run.ID,
		&run.Seq,
		&run.ProgramHash,
		&run.IRVersion,
		&run.CheckerVersion,
		&sourcesJSON,
		&run.Failures,
		&run.Warnings,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, err
	}
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.Sources, err = unmarshalSources(sourcesJSON)
	if err != nil {
		return Run{}, fmt.Errorf("scan run %s: %w", run.ID, err)
	}
	return run, nil
}

func scanDiagnostic(sc scanner) (diag.Diagnostic, error) {
	var d diag.Diagnostic
	var kind, severity, argsJSON string
	err := sc.Scan(
		&d.Seq,
		&d.ID,
		&kind,
		&severity,
		&d.Method,
		&d.Message,
		&argsJSON,
		&d.Pos.File,
		&d.Pos.Line,
		&d.Pos.Column,
	)
	if err != nil {
		return diag.Diagnostic{}, fmt.Errorf("scan diagnostic: %w", err)
	}
	d.Kind = diag.Kind(kind)
	d.Severity = diag.Severity(severity)
	d.Args, err = unmarshalArgs(argsJSON)
	if err != nil {
		return diag.Diagnostic{}, fmt.Errorf("scan diagnostic %d: %w", d.Seq, err)
	}
	return d, nil
}

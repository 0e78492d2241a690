package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/noalloc/internal/diag"
	"github.com/roach88/noalloc/internal/ir"
)

// RecordRun appends a run and its diagnostics in one transaction and
// returns the run as stored.
//
// Seq is assigned from the history (last seq + 1). An empty ID comes from
// the store's IDGenerator, and IRVersion and CheckerVersion default to the
// current versions. Failures and Warnings are counted from diags. Diagnostics keep the order
// given, each stored under its own Seq.
func (s *Store) RecordRun(ctx context.Context, run Run, diags []diag.Diagnostic) (Run, error) {
	if run.ID == "" {
		run.ID = s.newID()
	}
	if run.IRVersion == "" {
		run.IRVersion = ir.IRVersion
	}
	if run.CheckerVersion == "" {
		run.CheckerVersion = ir.CheckerVersion
	}
	run.Failures, run.Warnings = 0, 0
	for _, d := range diags {
		switch d.Severity {
		case diag.SeverityFailure:
			run.Failures++
		case diag.SeverityWarning:
			run.Warnings++
		}
	}

	sourcesJSON, err := marshalSources(run.Sources)
	if err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("record run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	seq, err := lastSeq(ctx, tx)
	if err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}
	run.Seq = seq + 1

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, seq, program_hash, ir_version, checker_version, sources, failures, warnings)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Seq,
		run.ProgramHash,
		run.IRVersion,
		run.CheckerVersion,
		sourcesJSON,
		run.Failures,
		run.Warnings,
	)
	if err != nil {
		return Run{}, fmt.Errorf("record run: insert run: %w", err)
	}

	for i, d := range diags {
		if err := writeDiagnostic(ctx, tx, run.ID, int64(i+1), d); err != nil {
			return Run{}, fmt.Errorf("record run: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("record run: commit: %w", err)
	}
	return run, nil
}

func writeDiagnostic(ctx context.Context, tx *sql.Tx, runID string, seq int64, d diag.Diagnostic) error {
	argsJSON, err := marshalArgs(d.Args)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO diagnostics
		(run_id, seq, id, kind, severity, method, message, args, file, line, col)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID,
		seq,
		d.ID,
		string(d.Kind),
		string(d.Severity),
		d.Method,
		d.Message,
		argsJSON,
		d.Pos.File,
		d.Pos.Line,
		d.Pos.Column,
	)
	if err != nil {
		return fmt.Errorf("insert diagnostic %d: %w", seq, err)
	}
	return nil
}

func lastSeq(ctx context.Context, tx *sql.Tx) (int64, error) {
	var seq sql.NullInt64
	if err := tx.QueryRowContext(ctx, `SELECT MAX(seq) FROM runs`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq.Int64, nil
}

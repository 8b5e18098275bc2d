package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/tracelayout/internal/ir"
	"github.com/roach88/tracelayout/internal/layout"
	"github.com/roach88/tracelayout/internal/scope"
)

// Key identifies one root scope tree of a recorded trace. Record is empty
// for packet scopes.
type Key struct {
	Trace  string
	Stream string
	Record string
	Scope  string
}

func (k Key) String() string {
	if k.Record == "" {
		return fmt.Sprintf("%s/%s/%s", k.Trace, k.Stream, k.Scope)
	}
	return fmt.Sprintf("%s/%s/%s/%s", k.Trace, k.Stream, k.Record, k.Scope)
}

// ProgramInfo describes the last recording of a trace.
type ProgramInfo struct {
	Trace              string
	Generation         int64
	TraceFingerprint   string
	ProgramFingerprint string
	Policy             string
	LayoutVersion      string
	CompilerVersion    string
}

// Layout is one ledger row without its tree.
type Layout struct {
	Key
	Position    int
	Fingerprint string
	Operations  int
	StaticSize  *uint // nil when the size depends on runtime values
	Compression Compression
	RawSize     int
}

// scopeRow is a root scope tree flattened out of a program.
type scopeRow struct {
	stream string
	record string
	scope  string
	tree   *layout.Compound
}

// programRows lists the scope trees of prog in emission order: the packet
// scopes of each stream, then the scopes of each of its records.
func programRows(prog *scope.Program) []scopeRow {
	var rows []scopeRow
	for _, s := range prog.Streams {
		for _, st := range s.Packet() {
			rows = append(rows, scopeRow{stream: s.Type.Name, scope: st.Scope.String(), tree: st.Tree})
		}
		for _, r := range s.Records {
			for _, st := range r.Actions() {
				rows = append(rows, scopeRow{stream: s.Type.Name, record: r.Type.Name, scope: st.Scope.String(), tree: st.Tree})
			}
		}
	}
	return rows
}

// RecordProgram replaces the recorded layouts of trace with those of prog
// and returns the new generation, starting at 1.
func (s *Store) RecordProgram(ctx context.Context, trace string, prog *scope.Program, c Compression) (int64, error) {
	traceFP, err := ir.TraceFingerprint(prog.Trace)
	if err != nil {
		return 0, fmt.Errorf("record program: %w", err)
	}
	progFP, err := scope.Fingerprint(prog)
	if err != nil {
		return 0, fmt.Errorf("record program: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("record program: begin: %w", err)
	}
	defer tx.Rollback()

	var generation int64
	err = tx.QueryRowContext(ctx, `SELECT generation FROM programs WHERE trace = ?`, trace).Scan(&generation)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("record program: read generation: %w", err)
	}
	generation++

	if _, err := tx.ExecContext(ctx, `DELETE FROM layouts WHERE trace = ?`, trace); err != nil {
		return 0, fmt.Errorf("record program: clear layouts: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO programs
		(trace, generation, trace_fingerprint, program_fingerprint, policy, layout_version, compiler_version)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(trace) DO UPDATE SET
			generation = excluded.generation,
			trace_fingerprint = excluded.trace_fingerprint,
			program_fingerprint = excluded.program_fingerprint,
			policy = excluded.policy,
			layout_version = excluded.layout_version,
			compiler_version = excluded.compiler_version
	`,
		trace,
		generation,
		traceFP,
		progFP,
		prog.Policy.String(),
		ir.LayoutVersion,
		ir.CompilerVersion,
	)
	if err != nil {
		return 0, fmt.Errorf("record program: %w", err)
	}

	for position, row := range programRows(prog) {
		if err := insertLayout(ctx, tx, trace, position, row, c); err != nil {
			return 0, fmt.Errorf("record program: %s/%s/%s: %w", row.stream, row.record, row.scope, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("record program: commit: %w", err)
	}
	return generation, nil
}

func insertLayout(ctx context.Context, tx *sql.Tx, trace string, position int, row scopeRow, c Compression) error {
	fp, err := layout.Fingerprint(row.tree)
	if err != nil {
		return err
	}
	raw, err := ir.MarshalCanonical(layout.Describe(row.tree))
	if err != nil {
		return fmt.Errorf("marshal tree: %w", err)
	}
	blob, tag, err := compress(raw, c)
	if err != nil {
		return err
	}
	digest := digestTree(raw)

	var staticSize sql.NullInt64
	if size, ok := layout.StaticSize(row.tree); ok {
		staticSize = sql.NullInt64{Int64: int64(size), Valid: true}
	}

	operations := 0
	layout.Walk(row.tree, func(layout.Operation) bool {
		operations++
		return true
	})

	_, err = tx.ExecContext(ctx, `
		INSERT INTO layouts
		(trace, stream, record, scope, position, fingerprint, operations, static_size, compression, raw_size, digest, tree)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		trace,
		row.stream,
		row.record,
		row.scope,
		position,
		fp,
		operations,
		staticSize,
		uint8(tag),
		len(raw),
		digest[:],
		blob,
	)
	return err
}

// LoadProgram returns the last recording of trace, or ErrNotFound.
func (s *Store) LoadProgram(ctx context.Context, trace string) (*ProgramInfo, error) {
	info := &ProgramInfo{Trace: trace}
	err := s.db.QueryRowContext(ctx, `
		SELECT generation, trace_fingerprint, program_fingerprint, policy, layout_version, compiler_version
		FROM programs
		WHERE trace = ?
	`, trace).Scan(
		&info.Generation,
		&info.TraceFingerprint,
		&info.ProgramFingerprint,
		&info.Policy,
		&info.LayoutVersion,
		&info.CompilerVersion,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("trace %q: %w", trace, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load program: %w", err)
	}
	return info, nil
}

// ListLayouts returns the recorded layouts of trace in emission order.
// Returns an empty slice (not nil) when the trace has none.
func (s *Store) ListLayouts(ctx context.Context, trace string) ([]Layout, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT stream, record, scope, position, fingerprint, operations, static_size, compression, raw_size
		FROM layouts
		WHERE trace = ?
		ORDER BY position ASC
	`, trace)
	if err != nil {
		return nil, fmt.Errorf("query layouts: %w", err)
	}
	defer rows.Close()

	layouts := []Layout{}
	for rows.Next() {
		l := Layout{Key: Key{Trace: trace}}
		var (
			staticSize sql.NullInt64
			tag        uint8
		)
		if err := rows.Scan(&l.Stream, &l.Record, &l.Scope, &l.Position, &l.Fingerprint,
			&l.Operations, &staticSize, &tag, &l.RawSize); err != nil {
			return nil, fmt.Errorf("scan layout: %w", err)
		}
		if staticSize.Valid {
			size := uint(staticSize.Int64)
			l.StaticSize = &size
		}
		l.Compression = Compression(tag)
		layouts = append(layouts, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate layouts: %w", err)
	}
	return layouts, nil
}

// LoadTree returns the canonical JSON of the tree recorded under key. The
// digest is checked after decompression.
func (s *Store) LoadTree(ctx context.Context, key Key) ([]byte, error) {
	var (
		tag     uint8
		rawSize int
		digest  []byte
		blob    []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT compression, raw_size, digest, tree
		FROM layouts
		WHERE trace = ? AND stream = ? AND record = ? AND scope = ?
	`, key.Trace, key.Stream, key.Record, key.Scope).Scan(&tag, &rawSize, &digest, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("layout %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load tree: %w", err)
	}

	raw, err := decompress(blob, Compression(tag), rawSize)
	if err != nil {
		return nil, fmt.Errorf("layout %s: %w", key, err)
	}
	if got := digestTree(raw); string(got[:]) != string(digest) {
		return nil, fmt.Errorf("layout %s: digest mismatch", key)
	}
	return raw, nil
}

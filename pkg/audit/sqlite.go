package audit

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists invocation records in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) a SQLite database at path and returns a
// store over it. The caller owns the returned store's Close.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store, err := NewSQLiteStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewSQLiteStore creates a SQLite-backed store over db and ensures schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("db is nil")
	}
	if err := ensureAuditSchema(db); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Record stores a single invocation record.
func (s *SQLiteStore) Record(ctx context.Context, rec Record) error {
	input, err := encodePayload(rec.Input)
	if err != nil {
		return err
	}
	output, err := encodePayload(rec.Output)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_records (
			record_id, call_id, tool, input_json, output_json, error_kind, error_text, duration_ns, started_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		rec.CallID,
		rec.Tool,
		string(input),
		string(output),
		rec.ErrorKind,
		rec.Error,
		int64(rec.Duration),
		normalizeTime(rec.StartedAt),
	)
	return err
}

// List returns records matching the filter, oldest first.
func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]Record, error) {
	query := `
		SELECT record_id, call_id, tool, input_json, output_json, error_kind, error_text, duration_ns, started_at
		FROM audit_records
	`
	var args []any
	where := ""
	addFilter := func(clause string, v any) {
		if where == "" {
			where = " WHERE " + clause
		} else {
			where += " AND " + clause
		}
		args = append(args, v)
	}
	if filter.Tool != "" {
		addFilter("tool = ?", filter.Tool)
	}
	if filter.CallID != "" {
		addFilter("call_id = ?", filter.CallID)
	}
	if filter.ErrorKind != "" {
		addFilter("error_kind = ?", filter.ErrorKind)
	}
	query += where + " ORDER BY started_at ASC, rowid ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec        Record
			inputJSON  string
			outputJSON string
			durationNs int64
			started    sql.NullTime
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.CallID,
			&rec.Tool,
			&inputJSON,
			&outputJSON,
			&rec.ErrorKind,
			&rec.Error,
			&durationNs,
			&started,
		); err != nil {
			return nil, err
		}
		if inputJSON != "" {
			if in, err := decodePayload([]byte(inputJSON)); err == nil {
				rec.Input = in
			}
		}
		if outputJSON != "" {
			if out, err := decodePayload([]byte(outputJSON)); err == nil {
				rec.Output = out
			}
		}
		rec.Duration = time.Duration(durationNs)
		if started.Valid {
			rec.StartedAt = started.Time
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func ensureAuditSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			record_id TEXT NOT NULL,
			call_id TEXT,
			tool TEXT NOT NULL,
			input_json TEXT,
			output_json TEXT,
			error_kind TEXT,
			error_text TEXT,
			duration_ns INTEGER,
			started_at TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_audit_tool ON audit_records(tool);
		CREATE INDEX IF NOT EXISTS idx_audit_call ON audit_records(call_id);
		CREATE INDEX IF NOT EXISTS idx_audit_error ON audit_records(error_kind);
	`)
	return err
}

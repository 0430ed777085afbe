package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"rulegraph/internal/extractor"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteStore struct {
	db *sql.DB
}

var _ SnapshotStore = (*SQLiteStore)(nil)

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			country TEXT PRIMARY KEY,
			version TEXT,
			created_at TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS sources (
			country TEXT,
			filepath TEXT,
			content TEXT,
			content_hash TEXT,
			PRIMARY KEY (country, filepath)
		);`,
		`CREATE TABLE IF NOT EXISTS variables (
			country TEXT,
			name TEXT,
			filepath TEXT,
			details JSON,
			PRIMARY KEY (country, name)
		);`,
		`CREATE TABLE IF NOT EXISTS enums (
			country TEXT,
			name TEXT,
			filepath TEXT,
			enum_values JSON,
			PRIMARY KEY (country, name, filepath)
		);`,
		`CREATE TABLE IF NOT EXISTS parameter_files (
			country TEXT,
			stage TEXT,
			stage_order INTEGER,
			relpath TEXT,
			data BLOB,
			PRIMARY KEY (country, stage, relpath)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_variables_file ON variables(country, filepath);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// SaveSnapshot replaces the stored snapshot of snap.Country in one
// transaction.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap *Snapshot) error {
	if snap == nil || snap.Country == "" {
		return errors.New("snapshot requires a country")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// 1. Drop the previous snapshot
	for _, table := range []string{"snapshots", "sources", "variables", "enums", "parameter_files"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE country = ?", snap.Country); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	createdAt := snap.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO snapshots (country, version, created_at) VALUES (?, ?, ?)",
		snap.Country, snap.Version, createdAt); err != nil {
		return err
	}

	// 2. Module sources, shared by every variable declared in the module
	srcStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sources (country, filepath, content, content_hash) VALUES (?, ?, ?, ?)
		ON CONFLICT(country, filepath) DO NOTHING
	`)
	if err != nil {
		return err
	}
	defer srcStmt.Close()

	varStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO variables (country, name, filepath, details) VALUES (?, ?, ?, ?)
		ON CONFLICT(country, name) DO NOTHING
	`)
	if err != nil {
		return err
	}
	defer varStmt.Close()

	for _, def := range snap.Variables {
		if _, err := srcStmt.ExecContext(ctx, snap.Country, def.Filepath, def.Source, def.ContentHash); err != nil {
			return err
		}
		details, err := json.Marshal(def)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", def.Name, err)
		}
		if _, err := varStmt.ExecContext(ctx, snap.Country, def.Name, def.Filepath, details); err != nil {
			return err
		}
	}

	// 3. Enums
	enumStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO enums (country, name, filepath, enum_values) VALUES (?, ?, ?, ?)
		ON CONFLICT(country, name, filepath) DO NOTHING
	`)
	if err != nil {
		return err
	}
	defer enumStmt.Close()

	for _, en := range snap.Enums {
		values, _ := json.Marshal(en.Values)
		if _, err := enumStmt.ExecContext(ctx, snap.Country, en.Name, en.Filepath, values); err != nil {
			return err
		}
	}

	// 4. Raw parameter documents
	paramStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO parameter_files (country, stage, stage_order, relpath, data) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(country, stage, relpath) DO UPDATE SET data=excluded.data
	`)
	if err != nil {
		return err
	}
	defer paramStmt.Close()

	for _, f := range snap.ParameterFiles {
		if _, err := paramStmt.ExecContext(ctx, snap.Country, f.Stage, f.Order, f.RelPath, f.Data); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LoadSnapshot reads a country's snapshot. Variables come back sorted by
// name with their module source restored.
func (s *SQLiteStore) LoadSnapshot(ctx context.Context, country string) (*Snapshot, error) {
	snap := &Snapshot{Country: country}
	row := s.db.QueryRowContext(ctx, "SELECT version, created_at FROM snapshots WHERE country = ?", country)
	if err := row.Scan(&snap.Version, &snap.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, country)
		}
		return nil, fmt.Errorf("failed to query snapshot: %w", err)
	}

	// 1. Load Variables with their sources
	rows, err := s.db.QueryContext(ctx, `
		SELECT v.details, COALESCE(src.content, '')
		FROM variables v
		LEFT JOIN sources src ON src.country = v.country AND src.filepath = v.filepath
		WHERE v.country = ?
		ORDER BY v.name
	`, country)
	if err != nil {
		return nil, fmt.Errorf("failed to query variables: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var details []byte
		var content string
		if err := rows.Scan(&details, &content); err != nil {
			return nil, fmt.Errorf("failed to scan variable: %w", err)
		}
		var def extractor.VariableDefinition
		if err := json.Unmarshal(details, &def); err != nil {
			return nil, fmt.Errorf("failed to decode variable: %w", err)
		}
		def.Source = content
		snap.Variables = append(snap.Variables, &def)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// 2. Load Enums
	enumRows, err := s.db.QueryContext(ctx, "SELECT name, filepath, enum_values FROM enums WHERE country = ? ORDER BY filepath, name", country)
	if err != nil {
		return nil, fmt.Errorf("failed to query enums: %w", err)
	}
	defer enumRows.Close()

	for enumRows.Next() {
		var en extractor.EnumDefinition
		var values []byte
		if err := enumRows.Scan(&en.Name, &en.Filepath, &values); err != nil {
			return nil, fmt.Errorf("failed to scan enum: %w", err)
		}
		if len(values) > 0 {
			_ = json.Unmarshal(values, &en.Values)
		}
		snap.Enums = append(snap.Enums, &en)
	}
	if err := enumRows.Err(); err != nil {
		return nil, err
	}

	// 3. Load parameter files
	paramRows, err := s.db.QueryContext(ctx, "SELECT stage, stage_order, relpath, data FROM parameter_files WHERE country = ? ORDER BY stage_order, relpath", country)
	if err != nil {
		return nil, fmt.Errorf("failed to query parameter files: %w", err)
	}
	defer paramRows.Close()

	for paramRows.Next() {
		var f ParameterFile
		if err := paramRows.Scan(&f.Stage, &f.Order, &f.RelPath, &f.Data); err != nil {
			return nil, fmt.Errorf("failed to scan parameter file: %w", err)
		}
		snap.ParameterFiles = append(snap.ParameterFiles, f)
	}
	return snap, paramRows.Err()
}

func (s *SQLiteStore) ListSnapshots(ctx context.Context) ([]SnapshotInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.country, s.version, s.created_at, COUNT(v.name)
		FROM snapshots s
		LEFT JOIN variables v ON v.country = s.country
		GROUP BY s.country, s.version, s.created_at
		ORDER BY s.country
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SnapshotInfo
	for rows.Next() {
		var info SnapshotInfo
		if err := rows.Scan(&info.Country, &info.Version, &info.CreatedAt, &info.Variables); err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

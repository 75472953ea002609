package main

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"photoGeotagger/model"
)

// DB wraps sql.DB to add custom methods
type DB struct {
	*sql.DB
}

func openAndInitDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1) // SQLite works best with single connection
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	db := &DB{sqlDB}

	schema := `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	reference_dir TEXT NOT NULL,
	targets_dir TEXT NOT NULL,
	reference_entries INTEGER NOT NULL DEFAULT 0,
	total INTEGER NOT NULL DEFAULT 0,
	tagged INTEGER NOT NULL DEFAULT 0,
	skipped INTEGER NOT NULL DEFAULT 0,
	failed INTEGER NOT NULL DEFAULT 0,
	error TEXT,
	started_at TEXT NOT NULL,
	finished_at TEXT
);
CREATE TABLE IF NOT EXISTS records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL REFERENCES runs(id),
	title TEXT NOT NULL,
	img TEXT NOT NULL,
	lat REAL NOT NULL,
	lon REAL NOT NULL,
	screenshot TEXT NOT NULL DEFAULT '',
	src_path TEXT NOT NULL,
	dest_path TEXT NOT NULL,
	metadata JSON NOT NULL DEFAULT '{}',
	created_at TEXT NOT NULL
);`
	if _, err := sqlDB.Exec(schema); err != nil {
		sqlDB.Close()
		return nil, err
	}

	// Ledgers written before providers were tracked lack the column.
	var providerCol int
	_ = sqlDB.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('records') WHERE name='provider'`).Scan(&providerCol)
	if providerCol == 0 {
		_, _ = sqlDB.Exec(`ALTER TABLE records ADD COLUMN provider TEXT NOT NULL DEFAULT ''`)
	}
	_, _ = sqlDB.Exec(`CREATE INDEX IF NOT EXISTS idx_records_run ON records(run_id)`)
	return db, nil
}

// markInterruptedRuns gives runs left 'running' by a previous process the
// status 'aborted'. Only call it before this process starts any run.
func (db *DB) markInterruptedRuns() (int64, error) {
	var n int64
	err := retryBusy(func() error {
		res, err := db.Exec(`UPDATE runs SET status='aborted', finished_at=? WHERE status='running'`, time.Now().UTC().Format(time.RFC3339))
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}

func (db *DB) clearDBTables() error {
	if _, err := db.Exec(`DELETE FROM records`); err != nil {
		return err
	}
	if _, err := db.Exec(`DELETE FROM runs`); err != nil {
		return err
	}
	return nil
}

// retryBusy runs fn up to three times while SQLite reports a locked database.
func retryBusy(fn func() error) error {
	maxRetries := 3
	var err error
	for i := 0; i < maxRetries; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		if errStr := err.Error(); !strings.Contains(errStr, "database is locked") && !strings.Contains(errStr, "SQLITE_BUSY") {
			return err
		}
		time.Sleep(time.Duration(i+1) * 50 * time.Millisecond)
	}
	return err
}

type RunRow struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	ReferenceDir     string `json:"referenceDir"`
	TargetsDir       string `json:"targetsDir"`
	ReferenceEntries int64  `json:"referenceEntries"`
	Total            int64  `json:"total"`
	Tagged           int64  `json:"tagged"`
	Skipped          int64  `json:"skipped"`
	Failed           int64  `json:"failed"`
	Error            string `json:"error,omitempty"`
	StartedAt        string `json:"startedAt"`
	FinishedAt       string `json:"finishedAt,omitempty"`
}

type RecordRow struct {
	ID        int64             `json:"id"`
	RunID     string            `json:"runId"`
	Record    model.PhotoRecord `json:"record"`
	Provider  string            `json:"provider"`
	SrcPath   string            `json:"srcPath"`
	DestPath  string            `json:"destPath"`
	Metadata  string            `json:"metadata"`
	CreatedAt string            `json:"createdAt"`
}

func (db *DB) insertRun(r RunRow) error {
	_, err := db.Exec(
		`INSERT INTO runs (id, status, reference_dir, targets_dir, started_at) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.Status, r.ReferenceDir, r.TargetsDir, r.StartedAt,
	)
	return err
}

// finishRun stores the final counters of a run.
func (db *DB) finishRun(r RunRow) error {
	return retryBusy(func() error {
		res, err := db.Exec(
			`UPDATE runs SET status=?, reference_entries=?, total=?, tagged=?, skipped=?, failed=?, error=?, finished_at=? WHERE id=?`,
			r.Status, r.ReferenceEntries, r.Total, r.Tagged, r.Skipped, r.Failed, nullIfEmpty(r.Error), time.Now().UTC().Format(time.RFC3339), r.ID,
		)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
}

func (db *DB) insertRecord(r RecordRow) (int64, error) {
	var id int64
	err := retryBusy(func() error {
		res, err := db.Exec(
			`INSERT INTO records (run_id, title, img, lat, lon, screenshot, provider, src_path, dest_path, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.RunID,
			r.Record.Title,
			r.Record.Img,
			r.Record.Lat,
			r.Record.Lon,
			r.Record.Screenshot,
			r.Provider,
			r.SrcPath,
			r.DestPath,
			r.Metadata,
			time.Now().UTC().Format(time.RFC3339),
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

func (db *DB) listRuns(offset, limit int64) ([]RunRow, error) {
	rows, err := db.Query(`SELECT id, status, reference_dir, targets_dir, reference_entries, total, tagged, skipped, failed, IFNULL(error,''), started_at, IFNULL(finished_at,'') FROM runs ORDER BY started_at DESC, id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []RunRow{}
	for rows.Next() {
		var r RunRow
		if err := rows.Scan(&r.ID, &r.Status, &r.ReferenceDir, &r.TargetsDir, &r.ReferenceEntries, &r.Total, &r.Tagged, &r.Skipped, &r.Failed, &r.Error, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const recordColumns = `id, run_id, title, img, lat, lon, screenshot, provider, src_path, dest_path, metadata, created_at`

func scanRecord(s interface{ Scan(...interface{}) error }) (RecordRow, error) {
	var r RecordRow
	err := s.Scan(&r.ID, &r.RunID, &r.Record.Title, &r.Record.Img, &r.Record.Lat, &r.Record.Lon, &r.Record.Screenshot, &r.Provider, &r.SrcPath, &r.DestPath, &r.Metadata, &r.CreatedAt)
	return r, err
}

// listRecords pages through records in insertion order; an empty runID
// lists every run.
func (db *DB) listRecords(runID string, offset, limit int64) ([]RecordRow, error) {
	query := `SELECT ` + recordColumns + ` FROM records`
	args := []interface{}{}
	if runID != "" {
		query += ` WHERE run_id = ?`
		args = append(args, runID)
	}
	query += ` ORDER BY id LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []RecordRow{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (db *DB) getRecordByID(id int64) (*RecordRow, error) {
	r, err := scanRecord(db.QueryRow(`SELECT `+recordColumns+` FROM records WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

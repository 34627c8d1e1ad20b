package report

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/ShayCichocki/switchboard/pkg/models"
)

// SQLiteFileName is the name of the SQLite export inside an export directory.
const SQLiteFileName = "report.db"

// Store persists report snapshots in an SQLite database.
type Store struct {
	conn *sql.DB
	path string
	mu   sync.RWMutex
}

// OpenStore opens an SQLite database at the given path.
// It creates the parent directories if they don't exist.
func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &Store{conn: conn, path: path}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}

// Path returns the path to the database file.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) migrate() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := s.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Reports},
		{2, migrationV2UsageRows},
		{3, migrationV3PipelineRuns},
		{4, migrationV4PipelineStages},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := s.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}
	return nil
}

const migrationV1Reports = `
CREATE TABLE IF NOT EXISTS reports (
	id TEXT PRIMARY KEY,
	generated_at DATETIME NOT NULL,
	total_cost TEXT NOT NULL,
	total_units INTEGER NOT NULL DEFAULT 0,
	utilization REAL NOT NULL DEFAULT 0.0,
	budget_status TEXT NOT NULL
);
`

const migrationV2UsageRows = `
CREATE TABLE IF NOT EXISTS usage_rows (
	report_id TEXT NOT NULL REFERENCES reports(id) ON DELETE CASCADE,
	tier TEXT NOT NULL,
	model TEXT NOT NULL,
	input_units INTEGER NOT NULL DEFAULT 0,
	output_units INTEGER NOT NULL DEFAULT 0,
	cost TEXT NOT NULL,
	request_count INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (report_id, tier, model)
);
`

const migrationV3PipelineRuns = `
CREATE TABLE IF NOT EXISTS pipeline_runs (
	report_id TEXT NOT NULL REFERENCES reports(id) ON DELETE CASCADE,
	id TEXT NOT NULL,
	name TEXT NOT NULL,
	status TEXT NOT NULL,
	planned_stages INTEGER NOT NULL,
	success_rate REAL NOT NULL,
	value_amount TEXT NOT NULL,
	value_realized INTEGER NOT NULL DEFAULT 0,
	value_degraded INTEGER NOT NULL DEFAULT 0,
	value_source TEXT,
	started_at DATETIME NOT NULL,
	finished_at DATETIME NOT NULL,
	PRIMARY KEY (report_id, id)
);

CREATE INDEX IF NOT EXISTS idx_pipeline_runs_status ON pipeline_runs(status);
`

const migrationV4PipelineStages = `
CREATE TABLE IF NOT EXISTS pipeline_stages (
	report_id TEXT NOT NULL,
	run_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	stage_name TEXT NOT NULL,
	worker_id TEXT NOT NULL,
	business_action TEXT,
	status TEXT NOT NULL,
	reason TEXT,
	error_kind TEXT,
	attempts INTEGER NOT NULL DEFAULT 0,
	priority_score INTEGER NOT NULL DEFAULT 0,
	payload TEXT,
	PRIMARY KEY (report_id, run_id, position),
	FOREIGN KEY (report_id, run_id) REFERENCES pipeline_runs(report_id, id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_pipeline_stages_worker_id ON pipeline_stages(worker_id);
`

// Save writes s as a new snapshot and returns its id.
func (s *Store) Save(sum Summary) (string, error) {
	id := uuid.NewString()
	err := s.transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO reports (id, generated_at, total_cost, total_units, utilization, budget_status)
			VALUES (?, ?, ?, ?, ?, ?)`,
			id, formatTime(sum.GeneratedAt), sum.TotalCost.String(), sum.TotalUnits,
			sum.Capacity.Utilization, sum.Budget.Status)
		if err != nil {
			return fmt.Errorf("insert report: %w", err)
		}

		for _, r := range sum.ByModel {
			_, err := tx.Exec(`INSERT INTO usage_rows (report_id, tier, model, input_units, output_units, cost, request_count)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				id, string(r.Tier), r.Model, r.InputUnits, r.OutputUnits, r.Cost.String(), r.RequestCount)
			if err != nil {
				return fmt.Errorf("insert usage row %s/%s: %w", r.Tier, r.Model, err)
			}
		}

		for _, run := range sum.PipelineRuns {
			if err := insertRun(tx, id, run); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func insertRun(tx *sql.Tx, reportID string, run models.PipelineRun) error {
	v := run.BusinessValue
	_, err := tx.Exec(`INSERT INTO pipeline_runs (id, report_id, name, status, planned_stages, success_rate,
			value_amount, value_realized, value_degraded, value_source, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, reportID, run.Name, string(run.Status), run.PlannedStages, run.SuccessRate,
		v.Amount.String(), v.Realized, v.Degraded, nullString(v.SourceStage),
		formatTime(run.StartedAt), formatTime(run.FinishedAt))
	if err != nil {
		return fmt.Errorf("insert pipeline run %s: %w", run.ID, err)
	}

	for i, st := range run.Stages {
		payload, err := sonic.MarshalString(st.Result.Payload)
		if err != nil {
			return fmt.Errorf("encode stage %s payload: %w", st.StageName, err)
		}
		_, err = tx.Exec(`INSERT INTO pipeline_stages (report_id, run_id, position, stage_name, worker_id, business_action,
				status, reason, error_kind, attempts, priority_score, payload)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			reportID, run.ID, i, st.StageName, st.WorkerID, st.BusinessAction,
			string(st.Result.Status), nullString(st.Result.Reason), nullString(string(st.Result.ErrorKind)),
			st.Result.Attempts, st.PriorityScore, payload)
		if err != nil {
			return fmt.Errorf("insert stage %s: %w", st.StageName, err)
		}
	}
	return nil
}

// UsageRows returns the billing rows of a snapshot ordered by tier and model.
func (s *Store) UsageRows(reportID string) ([]models.UsageRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.conn.Query(`SELECT tier, model, input_units, output_units, cost, request_count
		FROM usage_rows WHERE report_id = ? ORDER BY tier, model`, reportID)
	if err != nil {
		return nil, fmt.Errorf("query usage rows: %w", err)
	}
	defer rows.Close()

	var out []models.UsageRow
	for rows.Next() {
		var (
			r    models.UsageRow
			tier string
			cost string
		)
		if err := rows.Scan(&tier, &r.Model, &r.InputUnits, &r.OutputUnits, &cost, &r.RequestCount); err != nil {
			return nil, fmt.Errorf("scan usage row: %w", err)
		}
		r.Tier = models.Tier(tier)
		if r.Cost, err = decimal.NewFromString(cost); err != nil {
			return nil, fmt.Errorf("parse cost %q: %w", cost, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RunRecord is a stored pipeline run without its stages.
type RunRecord struct {
	ID            string
	Name          string
	Status        models.RunStatus
	PlannedStages int
	StageCount    int
	SuccessRate   float64
	Value         decimal.Decimal
	Realized      bool
	StartedAt     time.Time
}

// Runs returns the pipeline runs of a snapshot in start order.
func (s *Store) Runs(reportID string) ([]RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.conn.Query(`SELECT r.id, r.name, r.status, r.planned_stages, r.success_rate,
			r.value_amount, r.value_realized, r.started_at,
			(SELECT COUNT(*) FROM pipeline_stages s WHERE s.report_id = r.report_id AND s.run_id = r.id)
		FROM pipeline_runs r WHERE r.report_id = ? ORDER BY r.started_at, r.id`, reportID)
	if err != nil {
		return nil, fmt.Errorf("query pipeline runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var (
			rec     RunRecord
			status  string
			amount  string
			started string
		)
		if err := rows.Scan(&rec.ID, &rec.Name, &status, &rec.PlannedStages, &rec.SuccessRate,
			&amount, &rec.Realized, &started, &rec.StageCount); err != nil {
			return nil, fmt.Errorf("scan pipeline run: %w", err)
		}
		rec.Status = models.RunStatus(status)
		if rec.Value, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parse value %q: %w", amount, err)
		}
		if rec.StartedAt, err = parseTime(started); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Latest returns the id of the most recent snapshot, or "" when empty.
func (s *Store) Latest() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var id string
	err := s.conn.QueryRow("SELECT id FROM reports ORDER BY generated_at DESC, rowid DESC LIMIT 1").Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query latest report: %w", err)
	}
	return id, nil
}

func (s *Store) transaction(fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

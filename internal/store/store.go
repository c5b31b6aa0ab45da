// Package store provides the local SQLite database that holds synced
// experiment data.
//
// The database is opened in WAL mode for the duration of a sync run so
// readers can proceed while the writer commits batches. A clean Close
// checkpoints the WAL and converts the journal back to DELETE mode, leaving
// a single self-contained file that any SQLite client can read without
// write access to the directory.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/slaclab/elogfetch/internal/elog"
)

// DB wraps the SQLite connection for one sync run.
//
// The sync pipeline's batch writer is the only component that may issue
// writes; everything else reads.
type DB struct {
	conn *sql.DB
	path string

	runIDs      map[string]int64
	detectorIDs map[string]int64
}

// Open opens (or creates) the database at path and switches it to WAL mode.
//
// The caller MUST call Close() when done: besides releasing the connection,
// Close converts the journal mode back to the portable DELETE mode.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// One writer owns the connection; a single conn also guarantees the
	// journal-mode pragmas below apply to every statement.
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	db := &DB{
		conn:        conn,
		path:        path,
		runIDs:      make(map[string]int64),
		detectorIDs: make(map[string]int64),
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA cache_size=-64000",
	}
	for _, pragma := range pragmas {
		if _, err := db.conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// RawDB returns the underlying sql.DB connection.
func (db *DB) RawDB() *sql.DB {
	return db.conn
}

// Close checkpoints the WAL, converts the journal mode to DELETE for
// portability and closes the connection. Safe to call twice.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	// Best effort: an unclean run leaves WAL side files behind, and the
	// next clean open/close cycle repairs portability.
	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}
	if _, err := db.conn.Exec("PRAGMA journal_mode=DELETE"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to convert journal mode: %v\n", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	db.conn = nil
	return nil
}

// JournalMode returns the current journal mode ("wal", "delete", ...).
func (db *DB) JournalMode() (string, error) {
	var mode string
	if err := db.conn.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		return "", fmt.Errorf("failed to query journal mode: %w", err)
	}
	return mode, nil
}

// InitSchema creates all tables, indexes and views. Idempotent.
func (db *DB) InitSchema() error {
	return db.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the schema with context support.
func (db *DB) InitSchemaContext(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS Experiment (
		experiment_id TEXT PRIMARY KEY,
		name TEXT,
		instrument TEXT,
		start_time DATETIME,
		end_time DATETIME,
		pi TEXT,
		pi_email TEXT,
		leader_account TEXT,
		description TEXT,
		slack_channels TEXT,
		analysis_queues TEXT,
		urawi_proposal TEXT
	);

	CREATE TABLE IF NOT EXISTS Run (
		run_id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_number INTEGER NOT NULL,
		experiment_id TEXT NOT NULL,
		start_time DATETIME,
		end_time DATETIME,
		UNIQUE(run_number, experiment_id),
		FOREIGN KEY (experiment_id) REFERENCES Experiment(experiment_id)
	);

	CREATE TABLE IF NOT EXISTS RunProductionData (
		run_data_id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL UNIQUE,
		n_events INTEGER,
		n_damaged INTEGER,
		n_dropped INTEGER,
		prod_start DATETIME,
		prod_end DATETIME,
		number_of_files INTEGER,
		total_size_bytes INTEGER,
		FOREIGN KEY (run_id) REFERENCES Run(run_id)
	);

	CREATE TABLE IF NOT EXISTS Detector (
		detector_id INTEGER PRIMARY KEY AUTOINCREMENT,
		detector_name TEXT NOT NULL UNIQUE,
		description TEXT
	);

	CREATE TABLE IF NOT EXISTS RunDetector (
		run_detector_id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL,
		detector_id INTEGER NOT NULL,
		status TEXT NOT NULL,
		UNIQUE(run_id, detector_id),
		FOREIGN KEY (run_id) REFERENCES Run(run_id),
		FOREIGN KEY (detector_id) REFERENCES Detector(detector_id)
	);

	CREATE TABLE IF NOT EXISTS Logbook (
		log_id INTEGER PRIMARY KEY AUTOINCREMENT,
		experiment_id TEXT NOT NULL,
		run_id INTEGER,
		timestamp DATETIME NOT NULL,
		content TEXT,
		tags TEXT,
		author TEXT,
		FOREIGN KEY (experiment_id) REFERENCES Experiment(experiment_id),
		FOREIGN KEY (run_id) REFERENCES Run(run_id)
	);

	CREATE TABLE IF NOT EXISTS Questionnaire (
		questionnaire_id INTEGER PRIMARY KEY AUTOINCREMENT,
		experiment_id TEXT NOT NULL,
		proposal TEXT,
		category TEXT NOT NULL,
		field_id TEXT NOT NULL,
		field_name TEXT,
		field_value TEXT,
		modified_time DATETIME,
		modified_uid TEXT,
		UNIQUE(experiment_id, field_id),
		FOREIGN KEY (experiment_id) REFERENCES Experiment(experiment_id)
	);

	CREATE TABLE IF NOT EXISTS Workflow (
		workflow_id INTEGER PRIMARY KEY AUTOINCREMENT,
		experiment_id TEXT NOT NULL,
		mongo_id TEXT,
		name TEXT NOT NULL,
		executable TEXT,
		trigger TEXT,
		location TEXT,
		parameters TEXT,
		run_param_name TEXT,
		run_param_value TEXT,
		run_as_user TEXT,
		FOREIGN KEY (experiment_id) REFERENCES Experiment(experiment_id)
	);

	CREATE TABLE IF NOT EXISTS Metadata (
		key TEXT PRIMARY KEY,
		value TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_run_experiment ON Run(experiment_id);
	CREATE INDEX IF NOT EXISTS idx_logbook_experiment ON Logbook(experiment_id);
	CREATE INDEX IF NOT EXISTS idx_logbook_run ON Logbook(run_id);
	CREATE INDEX IF NOT EXISTS idx_questionnaire_experiment ON Questionnaire(experiment_id);
	CREATE INDEX IF NOT EXISTS idx_questionnaire_category ON Questionnaire(category);
	CREATE INDEX IF NOT EXISTS idx_questionnaire_proposal ON Questionnaire(proposal);
	CREATE INDEX IF NOT EXISTS idx_workflow_experiment ON Workflow(experiment_id);

	CREATE VIEW IF NOT EXISTS RunCompleteData AS
	SELECT
		r.run_id,
		r.run_number,
		r.experiment_id,
		r.start_time,
		r.end_time,
		rpd.n_events,
		rpd.n_damaged,
		rpd.n_dropped,
		rpd.prod_start,
		rpd.prod_end,
		rpd.number_of_files,
		rpd.total_size_bytes
	FROM Run r
	LEFT JOIN RunProductionData rpd ON r.run_id = rpd.run_id;
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Begin starts a write transaction. The batch writer wraps each batch of
// experiment bundles plus the metadata update in exactly one of these.
func (db *DB) Begin(ctx context.Context) (*sql.Tx, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// DeleteExperimentTx removes every row belonging to an experiment inside
// the given transaction, in foreign-key order. Used by incremental runs to
// replace an experiment's rows before re-inserting the fetched bundle.
func (db *DB) DeleteExperimentTx(ctx context.Context, tx *sql.Tx, experimentID string) error {
	rows, err := tx.QueryContext(ctx, "SELECT run_id FROM Run WHERE experiment_id = ?", experimentID)
	if err != nil {
		return fmt.Errorf("failed to query runs for %s: %w", experimentID, err)
	}
	var runIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan run id: %w", err)
		}
		runIDs = append(runIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating runs: %w", err)
	}

	for _, runID := range runIDs {
		if _, err := tx.ExecContext(ctx, "DELETE FROM RunDetector WHERE run_id = ?", runID); err != nil {
			return fmt.Errorf("failed to delete run detectors: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM RunProductionData WHERE run_id = ?", runID); err != nil {
			return fmt.Errorf("failed to delete run production data: %w", err)
		}
	}

	stmts := []string{
		"DELETE FROM Logbook WHERE experiment_id = ?",
		"DELETE FROM Run WHERE experiment_id = ?",
		"DELETE FROM Questionnaire WHERE experiment_id = ?",
		"DELETE FROM Workflow WHERE experiment_id = ?",
		"DELETE FROM Experiment WHERE experiment_id = ?",
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt, experimentID); err != nil {
			return fmt.Errorf("failed to delete experiment %s: %w", experimentID, err)
		}
	}

	// Cached run ids for this experiment are stale now.
	for key := range db.runIDs {
		if keyExperiment(key) == experimentID {
			delete(db.runIDs, key)
		}
	}
	return nil
}

// InsertBundleTx writes a complete experiment bundle inside the given
// transaction. Sub-resources for the same experiment are replaced
// wholesale (last write wins), never merged row by row.
func (db *DB) InsertBundleTx(ctx context.Context, tx *sql.Tx, bundle *elog.Bundle) error {
	if bundle.Info != nil {
		if err := db.upsertExperimentTx(ctx, tx, bundle.Info); err != nil {
			return err
		}
	}
	if len(bundle.Logbook) > 0 {
		if err := db.insertLogbookTx(ctx, tx, bundle.ExperimentID, bundle.Logbook); err != nil {
			return err
		}
	}
	if bundle.RunTable != nil {
		if err := db.insertRunTableTx(ctx, tx, bundle.RunTable); err != nil {
			return err
		}
	}
	if bundle.FileManager != nil {
		if err := db.insertFileManagerTx(ctx, tx, bundle.FileManager); err != nil {
			return err
		}
	}
	if bundle.Questionnaire != nil {
		if err := db.insertQuestionnaireTx(ctx, tx, bundle.Questionnaire); err != nil {
			return err
		}
	}
	if bundle.Workflows != nil {
		if err := db.insertWorkflowsTx(ctx, tx, bundle.Workflows); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) upsertExperimentTx(ctx context.Context, tx *sql.Tx, info *elog.ExperimentInfo) error {
	query := `
	INSERT INTO Experiment (
		experiment_id, name, instrument, start_time, end_time, pi, pi_email,
		leader_account, description, slack_channels, analysis_queues, urawi_proposal
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(experiment_id) DO UPDATE SET
		name = excluded.name,
		instrument = excluded.instrument,
		start_time = excluded.start_time,
		end_time = excluded.end_time,
		pi = excluded.pi,
		pi_email = excluded.pi_email,
		leader_account = excluded.leader_account,
		description = excluded.description,
		slack_channels = excluded.slack_channels,
		analysis_queues = excluded.analysis_queues,
		urawi_proposal = excluded.urawi_proposal
	`
	_, err := tx.ExecContext(ctx, query,
		info.ExperimentID, info.Name, info.Instrument,
		nullable(info.StartTime), nullable(info.EndTime),
		nullable(info.PI), nullable(info.PIEmail),
		nullable(info.LeaderAccount), nullable(info.Description),
		nullable(info.SlackChannels), nullable(info.AnalysisQueues),
		nullable(info.URAWIProposal),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert experiment %s: %w", info.ExperimentID, err)
	}
	return nil
}

func (db *DB) insertLogbookTx(ctx context.Context, tx *sql.Tx, experimentID string, entries []elog.LogbookEntry) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM Logbook WHERE experiment_id = ?", experimentID); err != nil {
		return fmt.Errorf("failed to clear logbook for %s: %w", experimentID, err)
	}

	for _, entry := range entries {
		var runID sql.NullInt64
		if entry.RunNumber != nil {
			id, err := db.getOrCreateRunTx(ctx, tx, experimentID, *entry.RunNumber)
			if err != nil {
				return err
			}
			runID = sql.NullInt64{Int64: id, Valid: true}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO Logbook (experiment_id, run_id, timestamp, content, tags, author)
			VALUES (?, ?, ?, ?, ?, ?)`,
			experimentID, runID, entry.Timestamp,
			nullable(entry.Content), nullable(entry.Tags), nullable(entry.Author),
		)
		if err != nil {
			return fmt.Errorf("failed to insert logbook entry for %s: %w", experimentID, err)
		}
	}
	return nil
}

func (db *DB) insertRunTableTx(ctx context.Context, tx *sql.Tx, table *elog.RunTable) error {
	for _, prod := range table.DataProduction {
		runID, err := db.getOrCreateRunTx(ctx, tx, table.ExperimentID, prod.RunNumber)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE Run SET start_time = ?, end_time = ? WHERE run_id = ?`,
			nullable(prod.StartTime), nullable(prod.EndTime), runID,
		)
		if err != nil {
			return fmt.Errorf("failed to update run times for %s run %d: %w", table.ExperimentID, prod.RunNumber, err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO RunProductionData (run_id, n_events, n_damaged, n_dropped, prod_start, prod_end)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(run_id) DO UPDATE SET
				n_events = COALESCE(excluded.n_events, n_events),
				n_damaged = COALESCE(excluded.n_damaged, n_damaged),
				n_dropped = COALESCE(excluded.n_dropped, n_dropped),
				prod_start = COALESCE(excluded.prod_start, prod_start),
				prod_end = COALESCE(excluded.prod_end, prod_end)`,
			runID,
			nullableInt(prod.NEvents), nullableInt(prod.NDamaged), nullableInt(prod.NDropped),
			nullable(prod.ProdStart), nullable(prod.ProdEnd),
		)
		if err != nil {
			return fmt.Errorf("failed to upsert production data for %s run %d: %w", table.ExperimentID, prod.RunNumber, err)
		}
	}

	for _, det := range table.Detectors {
		runID, err := db.getOrCreateRunTx(ctx, tx, table.ExperimentID, det.RunNumber)
		if err != nil {
			return err
		}
		for name, status := range det.Statuses {
			detectorID, err := db.getOrCreateDetectorTx(ctx, tx, name)
			if err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO RunDetector (run_id, detector_id, status)
				VALUES (?, ?, ?)
				ON CONFLICT(run_id, detector_id) DO UPDATE SET status = excluded.status`,
				runID, detectorID, status,
			)
			if err != nil {
				return fmt.Errorf("failed to upsert detector %s for run %d: %w", name, det.RunNumber, err)
			}
		}
	}
	return nil
}

func (db *DB) insertFileManagerTx(ctx context.Context, tx *sql.Tx, fm *elog.FileManager) error {
	for _, rec := range fm.Records {
		runID, err := db.getOrCreateRunTx(ctx, tx, fm.ExperimentID, rec.RunNumber)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO RunProductionData (run_id, number_of_files, total_size_bytes)
			VALUES (?, ?, ?)
			ON CONFLICT(run_id) DO UPDATE SET
				number_of_files = COALESCE(excluded.number_of_files, number_of_files),
				total_size_bytes = COALESCE(excluded.total_size_bytes, total_size_bytes)`,
			runID, rec.NumberOfFiles, rec.TotalSizeBytes,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert file data for %s run %d: %w", fm.ExperimentID, rec.RunNumber, err)
		}
	}
	return nil
}

func (db *DB) insertQuestionnaireTx(ctx context.Context, tx *sql.Tx, q *elog.Questionnaire) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM Questionnaire WHERE experiment_id = ?", q.ExperimentID); err != nil {
		return fmt.Errorf("failed to clear questionnaire for %s: %w", q.ExperimentID, err)
	}

	for _, f := range q.Fields {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO Questionnaire
				(experiment_id, proposal, category, field_id, field_name, field_value, modified_time, modified_uid)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(experiment_id, field_id) DO UPDATE SET
				proposal = excluded.proposal,
				category = excluded.category,
				field_name = excluded.field_name,
				field_value = excluded.field_value,
				modified_time = excluded.modified_time,
				modified_uid = excluded.modified_uid`,
			q.ExperimentID, nullable(q.ProposalNumber), f.Category, f.FieldID,
			nullable(f.FieldName), nullable(f.FieldValue),
			nullable(f.ModifiedTime), nullable(f.ModifiedUID),
		)
		if err != nil {
			return fmt.Errorf("failed to insert questionnaire field %s for %s: %w", f.FieldID, q.ExperimentID, err)
		}
	}
	return nil
}

func (db *DB) insertWorkflowsTx(ctx context.Context, tx *sql.Tx, w *elog.Workflows) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM Workflow WHERE experiment_id = ?", w.ExperimentID); err != nil {
		return fmt.Errorf("failed to clear workflows for %s: %w", w.ExperimentID, err)
	}

	for _, def := range w.Definitions {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO Workflow
				(experiment_id, mongo_id, name, executable, trigger, location,
				 parameters, run_param_name, run_param_value, run_as_user)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			w.ExperimentID, nullable(def.MongoID), def.Name,
			nullable(def.Executable), nullable(def.Trigger), nullable(def.Location),
			nullable(def.Parameters), nullable(def.RunParamName),
			nullable(def.RunParamValue), nullable(def.RunAsUser),
		)
		if err != nil {
			return fmt.Errorf("failed to insert workflow %s for %s: %w", def.Name, w.ExperimentID, err)
		}
	}
	return nil
}

// getOrCreateRunTx resolves the surrogate run id for (experiment, run
// number), creating the Run row on first sight. Resolved ids are cached
// for the lifetime of the DB handle.
func (db *DB) getOrCreateRunTx(ctx context.Context, tx *sql.Tx, experimentID string, runNumber int) (int64, error) {
	key := runKey(experimentID, runNumber)
	if id, ok := db.runIDs[key]; ok {
		return id, nil
	}

	var id int64
	err := tx.QueryRowContext(ctx,
		"SELECT run_id FROM Run WHERE experiment_id = ? AND run_number = ?",
		experimentID, runNumber,
	).Scan(&id)
	if err == sql.ErrNoRows {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO Run (experiment_id, run_number) VALUES (?, ?)",
			experimentID, runNumber,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to create run %d for %s: %w", runNumber, experimentID, err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("failed to read run id: %w", err)
		}
	} else if err != nil {
		return 0, fmt.Errorf("failed to look up run %d for %s: %w", runNumber, experimentID, err)
	}

	db.runIDs[key] = id
	return id, nil
}

func (db *DB) getOrCreateDetectorTx(ctx context.Context, tx *sql.Tx, name string) (int64, error) {
	if id, ok := db.detectorIDs[name]; ok {
		return id, nil
	}

	var id int64
	err := tx.QueryRowContext(ctx,
		"SELECT detector_id FROM Detector WHERE detector_name = ?", name,
	).Scan(&id)
	if err == sql.ErrNoRows {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO Detector (detector_name) VALUES (?)", name,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to create detector %s: %w", name, err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("failed to read detector id: %w", err)
		}
	} else if err != nil {
		return 0, fmt.Errorf("failed to look up detector %s: %w", name, err)
	}

	db.detectorIDs[name] = id
	return id, nil
}

// InvalidateCache drops the cached run and detector ids. Must be called
// after a rolled-back transaction, since ids resolved inside it never
// became real rows.
func (db *DB) InvalidateCache() {
	db.runIDs = make(map[string]int64)
	db.detectorIDs = make(map[string]int64)
}

// SetMetadataTx writes a metadata key inside the given transaction. The
// batch writer calls this so the last-synced timestamp commits atomically
// with the batch it describes.
func (db *DB) SetMetadataTx(ctx context.Context, tx *sql.Tx, key, value string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO Metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to set metadata %s: %w", key, err)
	}
	return nil
}

// SetMetadata writes a metadata key in its own transaction.
func (db *DB) SetMetadata(ctx context.Context, key, value string) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := db.SetMetadataTx(ctx, tx, key, value); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit metadata: %w", err)
	}
	return nil
}

// Metadata reads a metadata value. Returns "" when the key is absent.
func (db *DB) Metadata(ctx context.Context, key string) (string, error) {
	var value string
	err := db.conn.QueryRowContext(ctx, "SELECT value FROM Metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get metadata %s: %w", key, err)
	}
	return value, nil
}

// ExperimentIDs returns all experiment ids currently in the store.
func (db *DB) ExperimentIDs(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, "SELECT experiment_id FROM Experiment ORDER BY experiment_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query experiments: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan experiment id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating experiments: %w", err)
	}
	return ids, nil
}

// Stats returns row counts for the main tables.
func (db *DB) Stats(ctx context.Context) (map[string]int, error) {
	stats := make(map[string]int)
	for _, table := range []string{"Experiment", "Run", "Logbook", "Questionnaire", "Workflow"} {
		var count int
		// Table names come from the fixed list above, never from input.
		q := "SELECT COUNT(*) FROM " + table
		if err := db.conn.QueryRowContext(ctx, q).Scan(&count); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		stats[table] = count
	}
	return stats, nil
}

// LogbookCount returns the number of logbook rows for one experiment.
func (db *DB) LogbookCount(ctx context.Context, experimentID string) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM Logbook WHERE experiment_id = ?", experimentID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count logbook rows: %w", err)
	}
	return count, nil
}

func runKey(experimentID string, runNumber int) string {
	return fmt.Sprintf("%s\x00%d", experimentID, runNumber)
}

func keyExperiment(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == 0 {
			return key[:i]
		}
	}
	return key
}

func nullable(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullableInt(n *int64) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *n, Valid: true}
}

// Timestamp formats a time the way metadata values store it.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

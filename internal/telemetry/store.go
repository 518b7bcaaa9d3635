package telemetry

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS metacog_metrics (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     TEXT NOT NULL,
	ts_ms      INTEGER NOT NULL,
	trust      REAL NOT NULL,
	error_rate REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_metrics_run_ts ON metacog_metrics(run_id, ts_ms);

CREATE TABLE IF NOT EXISTS motivation_states (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id    TEXT NOT NULL,
	ts_ms     INTEGER NOT NULL,
	drive     TEXT NOT NULL,
	intensity REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_motivation_run_ts ON motivation_states(run_id, ts_ms);

CREATE TABLE IF NOT EXISTS reward_events (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id    TEXT NOT NULL,
	ts_ms     INTEGER NOT NULL,
	magnitude REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rewards_run_ts ON reward_events(run_id, ts_ms);

CREATE TABLE IF NOT EXISTS self_revisions (
	revision_id    TEXT PRIMARY KEY,
	run_id         TEXT NOT NULL,
	applied_at_ms  INTEGER NOT NULL,
	delta_json     TEXT NOT NULL,
	driver         TEXT NOT NULL,
	pre_magnitude  REAL NOT NULL DEFAULT 0,
	post_magnitude REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_revisions_run_applied ON self_revisions(run_id, applied_at_ms);

CREATE TABLE IF NOT EXISTS revision_outcomes (
	revision_id      TEXT PRIMARY KEY,
	evaluated_at_ms  INTEGER NOT NULL,
	outcome_class    TEXT NOT NULL,
	pre_trust        REAL NOT NULL,
	post_trust       REAL NOT NULL,
	pre_error        REAL NOT NULL,
	post_error       REAL NOT NULL,
	pre_reward_rate  REAL NOT NULL,
	post_reward_rate REAL NOT NULL,
	trust_delta      REAL NOT NULL,
	error_delta      REAL NOT NULL,
	FOREIGN KEY (revision_id) REFERENCES self_revisions(revision_id)
);

CREATE TABLE IF NOT EXISTS envelope_log (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     TEXT NOT NULL,
	from_state TEXT NOT NULL,
	to_state   TEXT NOT NULL,
	score      REAL NOT NULL,
	cap        REAL NOT NULL,
	ts_ms      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_envelope_run_ts ON envelope_log(run_id, ts_ms);
`

// #endregion schema

// ErrOutcomeExists is returned when a second outcome is inserted for a
// revision. The one-outcome-per-revision contract is enforced by schema;
// this sentinel lets callers tell the contract violation from I/O failure.
var ErrOutcomeExists = errors.New("revision already has an outcome")

// #region store-struct

// Store is the append-only telemetry log backed by SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor

// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStoreWithDB wraps an existing connection. Used for in-memory tests.
func NewStoreWithDB(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by inspection tooling.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion constructor

// #region inserts

// InsertMetric appends one metacognition reading.
func (s *Store) InsertMetric(m MetricSample) error {
	_, err := s.db.Exec(
		`INSERT INTO metacog_metrics (run_id, ts_ms, trust, error_rate) VALUES (?, ?, ?, ?)`,
		m.RunID, m.TsMs, m.Trust, m.ErrorRate,
	)
	if err != nil {
		return fmt.Errorf("insert metric: %w", err)
	}
	return nil
}

// InsertMotivation appends one motivation-state reading.
func (s *Store) InsertMotivation(m MotivationSample) error {
	_, err := s.db.Exec(
		`INSERT INTO motivation_states (run_id, ts_ms, drive, intensity) VALUES (?, ?, ?, ?)`,
		m.RunID, m.TsMs, m.Drive, m.Intensity,
	)
	if err != nil {
		return fmt.Errorf("insert motivation: %w", err)
	}
	return nil
}

// InsertReward appends one reward event.
func (s *Store) InsertReward(r RewardEvent) error {
	_, err := s.db.Exec(
		`INSERT INTO reward_events (run_id, ts_ms, magnitude) VALUES (?, ?, ?)`,
		r.RunID, r.TsMs, r.Magnitude,
	)
	if err != nil {
		return fmt.Errorf("insert reward: %w", err)
	}
	return nil
}

// InsertRevision appends one self-revision record.
func (s *Store) InsertRevision(r SelfRevision) error {
	_, err := s.db.Exec(
		`INSERT INTO self_revisions (revision_id, run_id, applied_at_ms, delta_json, driver, pre_magnitude, post_magnitude)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.RunID, r.AppliedAtMs, r.DeltaJSON, r.Driver, r.PreMagnitude, r.PostMagnitude,
	)
	if err != nil {
		return fmt.Errorf("insert revision: %w", err)
	}
	return nil
}

// InsertOutcome writes the single outcome row for a revision.
// A second insert for the same revision returns ErrOutcomeExists.
func (s *Store) InsertOutcome(o RevisionOutcome) error {
	var exists int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM revision_outcomes WHERE revision_id = ?`, o.RevisionID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check outcome: %w", err)
	}
	if exists > 0 {
		return ErrOutcomeExists
	}

	_, err = s.db.Exec(
		`INSERT INTO revision_outcomes
		 (revision_id, evaluated_at_ms, outcome_class, pre_trust, post_trust, pre_error, post_error,
		  pre_reward_rate, post_reward_rate, trust_delta, error_delta)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.RevisionID, o.EvaluatedAtMs, string(o.Class),
		o.PreTrust, o.PostTrust, o.PreError, o.PostError,
		o.PreRewardRate, o.PostRewardRate, o.TrustDelta, o.ErrorDelta,
	)
	if err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}

// LogEnvelopeTransition appends one envelope audit row.
func (s *Store) LogEnvelopeTransition(t EnvelopeTransition) error {
	_, err := s.db.Exec(
		`INSERT INTO envelope_log (run_id, from_state, to_state, score, cap, ts_ms)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.RunID, t.From, t.To, t.Score, t.Cap, t.TsMs,
	)
	if err != nil {
		return fmt.Errorf("log envelope transition: %w", err)
	}
	return nil
}

// #endregion inserts

// #region range-queries

// MetricsInRange returns metric samples with fromMs <= ts_ms < toMs, ordered by timestamp.
func (s *Store) MetricsInRange(runID string, fromMs, toMs int64) ([]MetricSample, error) {
	rows, err := s.db.Query(
		`SELECT run_id, ts_ms, trust, error_rate FROM metacog_metrics
		 WHERE run_id = ? AND ts_ms >= ? AND ts_ms < ? ORDER BY ts_ms`,
		runID, fromMs, toMs,
	)
	if err != nil {
		return nil, fmt.Errorf("query metrics: %w", err)
	}
	defer rows.Close()

	var out []MetricSample
	for rows.Next() {
		var m MetricSample
		if err := rows.Scan(&m.RunID, &m.TsMs, &m.Trust, &m.ErrorRate); err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MotivationsInRange returns motivation samples in [fromMs, toMs), ordered by timestamp.
func (s *Store) MotivationsInRange(runID string, fromMs, toMs int64) ([]MotivationSample, error) {
	rows, err := s.db.Query(
		`SELECT run_id, ts_ms, drive, intensity FROM motivation_states
		 WHERE run_id = ? AND ts_ms >= ? AND ts_ms < ? ORDER BY ts_ms`,
		runID, fromMs, toMs,
	)
	if err != nil {
		return nil, fmt.Errorf("query motivations: %w", err)
	}
	defer rows.Close()

	var out []MotivationSample
	for rows.Next() {
		var m MotivationSample
		if err := rows.Scan(&m.RunID, &m.TsMs, &m.Drive, &m.Intensity); err != nil {
			return nil, fmt.Errorf("scan motivation: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// RewardsInRange returns reward events in [fromMs, toMs), ordered by timestamp.
func (s *Store) RewardsInRange(runID string, fromMs, toMs int64) ([]RewardEvent, error) {
	rows, err := s.db.Query(
		`SELECT run_id, ts_ms, magnitude FROM reward_events
		 WHERE run_id = ? AND ts_ms >= ? AND ts_ms < ? ORDER BY ts_ms`,
		runID, fromMs, toMs,
	)
	if err != nil {
		return nil, fmt.Errorf("query rewards: %w", err)
	}
	defer rows.Close()

	var out []RewardEvent
	for rows.Next() {
		var r RewardEvent
		if err := rows.Scan(&r.RunID, &r.TsMs, &r.Magnitude); err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// #endregion range-queries

// #region revision-queries

// RevisionAppliedAt returns the applied-at timestamp of a revision.
func (s *Store) RevisionAppliedAt(revisionID string) (int64, error) {
	var ms int64
	err := s.db.QueryRow(
		`SELECT applied_at_ms FROM self_revisions WHERE revision_id = ?`, revisionID,
	).Scan(&ms)
	if err != nil {
		return 0, fmt.Errorf("revision applied at: %w", err)
	}
	return ms, nil
}

// PendingRevisions returns revisions without an outcome applied at or before
// beforeMs, oldest first.
func (s *Store) PendingRevisions(runID string, beforeMs int64) ([]SelfRevision, error) {
	rows, err := s.db.Query(
		`SELECT r.revision_id, r.run_id, r.applied_at_ms, r.delta_json, r.driver, r.pre_magnitude, r.post_magnitude
		 FROM self_revisions r
		 LEFT JOIN revision_outcomes o ON o.revision_id = r.revision_id
		 WHERE r.run_id = ? AND r.applied_at_ms <= ? AND o.revision_id IS NULL
		 ORDER BY r.applied_at_ms`,
		runID, beforeMs,
	)
	if err != nil {
		return nil, fmt.Errorf("query pending revisions: %w", err)
	}
	defer rows.Close()

	var out []SelfRevision
	for rows.Next() {
		var r SelfRevision
		if err := rows.Scan(&r.ID, &r.RunID, &r.AppliedAtMs, &r.DeltaJSON, &r.Driver, &r.PreMagnitude, &r.PostMagnitude); err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecentOutcomes returns the most recent n outcomes for a run, newest first.
func (s *Store) RecentOutcomes(runID string, n int) ([]RevisionOutcome, error) {
	rows, err := s.db.Query(
		`SELECT o.revision_id, o.evaluated_at_ms, o.outcome_class,
		        o.pre_trust, o.post_trust, o.pre_error, o.post_error,
		        o.pre_reward_rate, o.post_reward_rate, o.trust_delta, o.error_delta
		 FROM revision_outcomes o
		 JOIN self_revisions r ON r.revision_id = o.revision_id
		 WHERE r.run_id = ?
		 ORDER BY o.evaluated_at_ms DESC LIMIT ?`,
		runID, n,
	)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var out []RevisionOutcome
	for rows.Next() {
		var o RevisionOutcome
		var class string
		if err := rows.Scan(&o.RevisionID, &o.EvaluatedAtMs, &class,
			&o.PreTrust, &o.PostTrust, &o.PreError, &o.PostError,
			&o.PreRewardRate, &o.PostRewardRate, &o.TrustDelta, &o.ErrorDelta); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.Class = OutcomeClass(class)
		out = append(out, o)
	}
	return out, rows.Err()
}

// #endregion revision-queries

// #region envelope-queries

// EnvelopeTransitions returns the most recent envelope audit rows, newest first.
func (s *Store) EnvelopeTransitions(runID string, limit int) ([]EnvelopeTransition, error) {
	rows, err := s.db.Query(
		`SELECT run_id, from_state, to_state, score, cap, ts_ms FROM envelope_log
		 WHERE run_id = ? ORDER BY ts_ms DESC, id DESC LIMIT ?`,
		runID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query envelope log: %w", err)
	}
	defer rows.Close()

	var out []EnvelopeTransition
	for rows.Next() {
		var t EnvelopeTransition
		if err := rows.Scan(&t.RunID, &t.From, &t.To, &t.Score, &t.Cap, &t.TsMs); err != nil {
			return nil, fmt.Errorf("scan envelope row: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// #endregion envelope-queries

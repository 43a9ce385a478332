package modelservice

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Decision records why a routing resolution was made, mirroring the
// teacher's router.Decision shape but scoped to model-service selection
// instead of quality/cost scoring.
type Decision struct {
	RequestID       string    `json:"request_id"`
	Timestamp       time.Time `json:"timestamp"`
	RequestedModel  string    `json:"requested_model"`
	ResolvedService Service   `json:"resolved_service"`
	EffectiveModel  string    `json:"effective_model,omitempty"`
	Reasoning       string    `json:"reasoning"`

	LatencyMs  int64 `json:"latency_ms,omitempty"`
	Success    *bool `json:"success,omitempty"`
}

// Stats summarizes routing activity, mirroring the teacher's router.Stats.
type Stats struct {
	TotalRequests  int64            `json:"total_requests"`
	ServiceCounts  map[string]int64 `json:"service_counts"`
	FailureCount   int64            `json:"failure_count"`
}

// AuditLog is a SQLite-backed append-mostly ledger of routing decisions,
// using the pure-Go modernc.org/sqlite driver (kept distinct from
// internal/usage's cgo mattn/go-sqlite3 driver per SPEC_FULL.md's domain
// stack table, so the two stores don't share a driver-level connection
// pool assumption).
type AuditLog struct {
	db *sql.DB
}

// NewAuditLog opens (creating if necessary) a routing-decision ledger at
// dbPath.
func NewAuditLog(dbPath string) (*AuditLog, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open router audit database: %w", err)
	}
	a := &AuditLog{db: db}
	if err := a.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate router audit schema: %w", err)
	}
	return a, nil
}

// Close closes the underlying database connection.
func (a *AuditLog) Close() error {
	return a.db.Close()
}

func (a *AuditLog) migrate() error {
	_, err := a.db.Exec(`
	CREATE TABLE IF NOT EXISTS router_decisions (
		request_id       TEXT PRIMARY KEY,
		timestamp        TEXT NOT NULL,
		requested_model  TEXT NOT NULL,
		resolved_service TEXT NOT NULL,
		effective_model  TEXT,
		reasoning        TEXT,
		latency_ms       INTEGER,
		success          INTEGER,
		record_json      TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_router_decisions_ts ON router_decisions(timestamp);
	`)
	return err
}

// Record persists a new routing decision.
func (a *AuditLog) Record(d Decision) error {
	blob, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal routing decision: %w", err)
	}
	var successVal any
	if d.Success != nil {
		successVal = *d.Success
	}
	_, err = a.db.Exec(
		`INSERT OR REPLACE INTO router_decisions
			(request_id, timestamp, requested_model, resolved_service, effective_model, reasoning, latency_ms, success, record_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.RequestID, d.Timestamp.UTC().Format(time.RFC3339Nano), d.RequestedModel,
		string(d.ResolvedService), d.EffectiveModel, d.Reasoning, d.LatencyMs, successVal, string(blob),
	)
	if err != nil {
		return fmt.Errorf("insert routing decision: %w", err)
	}
	return nil
}

// RecordOutcome updates a previously-recorded decision with post-execution
// latency and success, mirroring the teacher's RecordOutcome.
func (a *AuditLog) RecordOutcome(requestID string, latencyMs int64, success bool) error {
	row := a.db.QueryRow(`SELECT record_json FROM router_decisions WHERE request_id = ?`, requestID)
	var blob string
	if err := row.Scan(&blob); err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return fmt.Errorf("lookup routing decision: %w", err)
	}
	var d Decision
	if err := json.Unmarshal([]byte(blob), &d); err != nil {
		return fmt.Errorf("unmarshal routing decision: %w", err)
	}
	d.LatencyMs = latencyMs
	d.Success = &success
	return a.Record(d)
}

// Explain returns the decision recorded for requestID, or nil if absent.
func (a *AuditLog) Explain(requestID string) (*Decision, error) {
	row := a.db.QueryRow(`SELECT record_json FROM router_decisions WHERE request_id = ?`, requestID)
	var blob string
	if err := row.Scan(&blob); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup routing decision: %w", err)
	}
	var d Decision
	if err := json.Unmarshal([]byte(blob), &d); err != nil {
		return nil, fmt.Errorf("unmarshal routing decision: %w", err)
	}
	return &d, nil
}

// Recent returns the most recent decisions, most-recent first, up to limit
// (0 or negative means "all").
func (a *AuditLog) Recent(limit int) ([]Decision, error) {
	query := `SELECT record_json FROM router_decisions ORDER BY timestamp DESC`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		query += ` LIMIT ?`
		rows, err = a.db.Query(query, limit)
	} else {
		rows, err = a.db.Query(query)
	}
	if err != nil {
		return nil, fmt.Errorf("query routing decisions: %w", err)
	}
	defer rows.Close()

	var out []Decision
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("scan routing decision: %w", err)
		}
		var d Decision
		if err := json.Unmarshal([]byte(blob), &d); err != nil {
			return nil, fmt.Errorf("unmarshal routing decision: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Stats aggregates routing activity across all recorded decisions.
func (a *AuditLog) Stats() (Stats, error) {
	stats := Stats{ServiceCounts: make(map[string]int64)}

	row := a.db.QueryRow(`SELECT COUNT(*) FROM router_decisions`)
	if err := row.Scan(&stats.TotalRequests); err != nil {
		return stats, fmt.Errorf("count routing decisions: %w", err)
	}

	rows, err := a.db.Query(`SELECT resolved_service, COUNT(*) FROM router_decisions GROUP BY resolved_service`)
	if err != nil {
		return stats, fmt.Errorf("aggregate routing decisions by service: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var svc string
		var count int64
		if err := rows.Scan(&svc, &count); err != nil {
			return stats, fmt.Errorf("scan service aggregate: %w", err)
		}
		stats.ServiceCounts[svc] = count
	}

	row = a.db.QueryRow(`SELECT COUNT(*) FROM router_decisions WHERE success = 0`)
	if err := row.Scan(&stats.FailureCount); err != nil {
		return stats, fmt.Errorf("count routing failures: %w", err)
	}

	return stats, rows.Err()
}

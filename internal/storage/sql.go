package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/alienxp03/tradedebate/internal/core"
)

// SQLStorage implements Storage on SQLite or PostgreSQL. Queries are
// written with "?" placeholders and rebound for PostgreSQL.
type SQLStorage struct {
	db     *sql.DB
	driver string
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLStorage, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	return openSQL(DriverSQLite, dbPath+"?_foreign_keys=on")
}

// NewPostgresStorage creates a storage instance on a PostgreSQL DSN.
func NewPostgresStorage(dsn string) (*SQLStorage, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres storage requires a DSN")
	}
	return openSQL(DriverPostgres, dsn)
}

func openSQL(driver, dsn string) (*SQLStorage, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &SQLStorage{db: db, driver: driver}, nil
}

// Driver returns the database driver name.
func (s *SQLStorage) Driver() string {
	return s.driver
}

// Initialize creates the database schema.
func (s *SQLStorage) Initialize() error {
	timestamp := "DATETIME"
	if s.driver == DriverPostgres {
		timestamp = "TIMESTAMPTZ"
	}

	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		topic TEXT NOT NULL,
		ticker TEXT NOT NULL DEFAULT '',
		backends_json TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		stage TEXT NOT NULL DEFAULT '',
		speaker TEXT NOT NULL DEFAULT '',
		turn_count INTEGER NOT NULL DEFAULT 0,
		max_turns INTEGER NOT NULL DEFAULT 0,
		financial_data TEXT NOT NULL DEFAULT '',
		news_data TEXT NOT NULL DEFAULT '',
		network_analysis TEXT NOT NULL DEFAULT '',
		supply_chain_data TEXT NOT NULL DEFAULT '',
		winner TEXT NOT NULL DEFAULT '',
		verdict_json TEXT,
		error TEXT NOT NULL DEFAULT '',
		created_at %[1]s NOT NULL,
		updated_at %[1]s NOT NULL,
		completed_at %[1]s
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		speaker TEXT NOT NULL,
		stage TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at %[1]s NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_run_id ON messages(run_id);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
	`, timestamp)

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLStorage) Close() error {
	return s.db.Close()
}

// rebind rewrites "?" placeholders to "$n" for PostgreSQL.
func (s *SQLStorage) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	return rebindDollar(query)
}

func rebindDollar(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func marshalVerdict(v *core.Verdict) (*string, string, error) {
	if v == nil {
		return nil, "", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal verdict: %w", err)
	}
	str := string(data)
	return &str, string(v.Winner), nil
}

// CreateRun creates a new run.
func (s *SQLStorage) CreateRun(run *core.Run) error {
	backendsJSON, err := json.Marshal(run.Backends)
	if err != nil {
		return fmt.Errorf("failed to marshal backends: %w", err)
	}
	verdictJSON, winner, err := marshalVerdict(run.Verdict)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO runs (id, topic, ticker, backends_json, status, stage, speaker, turn_count, max_turns,
		financial_data, news_data, network_analysis, supply_chain_data, winner, verdict_json, error,
		created_at, updated_at, completed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.Exec(s.rebind(query),
		run.ID,
		run.Topic,
		run.Ticker,
		string(backendsJSON),
		run.Status,
		run.Stage,
		run.Speaker,
		run.TurnCount,
		run.MaxTurns,
		run.FinancialData,
		run.NewsData,
		run.NetworkAnalysis,
		run.SupplyChainData,
		winner,
		verdictJSON,
		run.Error,
		run.CreatedAt,
		run.UpdatedAt,
		run.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	return nil
}

// GetRun retrieves a run by ID. It returns nil, nil when none exists.
func (s *SQLStorage) GetRun(id string) (*core.Run, error) {
	query := `
	SELECT id, topic, ticker, backends_json, status, stage, speaker, turn_count, max_turns,
		financial_data, news_data, network_analysis, supply_chain_data, verdict_json, error,
		created_at, updated_at, completed_at
	FROM runs
	WHERE id = ?
	`

	var run core.Run
	var backendsJSON string
	var verdictJSON sql.NullString
	var completedAt sql.NullTime

	err := s.db.QueryRow(s.rebind(query), id).Scan(
		&run.ID,
		&run.Topic,
		&run.Ticker,
		&backendsJSON,
		&run.Status,
		&run.Stage,
		&run.Speaker,
		&run.TurnCount,
		&run.MaxTurns,
		&run.FinancialData,
		&run.NewsData,
		&run.NetworkAnalysis,
		&run.SupplyChainData,
		&verdictJSON,
		&run.Error,
		&run.CreatedAt,
		&run.UpdatedAt,
		&completedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	if err := json.Unmarshal([]byte(backendsJSON), &run.Backends); err != nil {
		return nil, fmt.Errorf("failed to unmarshal backends: %w", err)
	}

	if verdictJSON.Valid {
		var verdict core.Verdict
		if err := json.Unmarshal([]byte(verdictJSON.String), &verdict); err != nil {
			return nil, fmt.Errorf("failed to unmarshal verdict: %w", err)
		}
		run.Verdict = &verdict
	}

	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}

	return &run, nil
}

// UpdateRun updates the mutable fields of an existing run.
func (s *SQLStorage) UpdateRun(run *core.Run) error {
	verdictJSON, winner, err := marshalVerdict(run.Verdict)
	if err != nil {
		return err
	}

	run.UpdatedAt = time.Now()

	query := `
	UPDATE runs
	SET status = ?, stage = ?, speaker = ?, turn_count = ?, max_turns = ?, winner = ?, verdict_json = ?,
		error = ?, updated_at = ?, completed_at = ?
	WHERE id = ?
	`

	_, err = s.db.Exec(s.rebind(query),
		run.Status,
		run.Stage,
		run.Speaker,
		run.TurnCount,
		run.MaxTurns,
		winner,
		verdictJSON,
		run.Error,
		run.UpdatedAt,
		run.CompletedAt,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	return nil
}

// DeleteRun deletes a run and its messages.
func (s *SQLStorage) DeleteRun(id string) error {
	_, err := s.db.Exec(s.rebind("DELETE FROM runs WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return nil
}

// ListRuns returns run summaries, newest first.
func (s *SQLStorage) ListRuns(limit, offset int) ([]*core.RunSummary, error) {
	query := `
	SELECT r.id, r.topic, r.ticker, r.status, r.winner, r.created_at,
		   (SELECT COUNT(*) FROM messages WHERE run_id = r.id) AS message_count
	FROM runs r
	ORDER BY r.created_at DESC
	LIMIT ? OFFSET ?
	`

	rows, err := s.db.Query(s.rebind(query), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var summaries []*core.RunSummary
	for rows.Next() {
		var summary core.RunSummary
		err := rows.Scan(
			&summary.ID,
			&summary.Topic,
			&summary.Ticker,
			&summary.Status,
			&summary.Winner,
			&summary.CreatedAt,
			&summary.MessageCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run summary: %w", err)
		}
		summaries = append(summaries, &summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return summaries, nil
}

// AddMessage appends a transcript entry to a run.
func (s *SQLStorage) AddMessage(msg *core.StoredMessage) error {
	query := `
	INSERT INTO messages (id, run_id, seq, speaker, stage, content, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(s.rebind(query),
		msg.ID,
		msg.RunID,
		msg.Seq,
		msg.Speaker,
		msg.Stage,
		msg.Content,
		msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	return nil
}

// GetMessages returns a run's transcript in order.
func (s *SQLStorage) GetMessages(runID string) ([]*core.StoredMessage, error) {
	query := `
	SELECT id, run_id, seq, speaker, stage, content, created_at
	FROM messages
	WHERE run_id = ?
	ORDER BY seq ASC
	`

	rows, err := s.db.Query(s.rebind(query), runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer rows.Close()

	var messages []*core.StoredMessage
	for rows.Next() {
		var msg core.StoredMessage
		err := rows.Scan(
			&msg.ID,
			&msg.RunID,
			&msg.Seq,
			&msg.Speaker,
			&msg.Stage,
			&msg.Content,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}

	return messages, nil
}

// GetLatestMessage returns the most recent message for a run.
func (s *SQLStorage) GetLatestMessage(runID string) (*core.StoredMessage, error) {
	query := `
	SELECT id, run_id, seq, speaker, stage, content, created_at
	FROM messages
	WHERE run_id = ?
	ORDER BY seq DESC
	LIMIT 1
	`

	var msg core.StoredMessage
	err := s.db.QueryRow(s.rebind(query), runID).Scan(
		&msg.ID,
		&msg.RunID,
		&msg.Seq,
		&msg.Speaker,
		&msg.Stage,
		&msg.Content,
		&msg.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest message: %w", err)
	}

	return &msg, nil
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/flipscout/appraisal-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db   *sql.DB
	caps *CapabilityCache
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string, caps *CapabilityCache) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, caps: caps}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS analyses (
	id                TEXT PRIMARY KEY,
	item_name         TEXT NOT NULL,
	category          TEXT NOT NULL,
	request           TEXT NOT NULL,
	detection         TEXT,
	evidence          TEXT,
	votes             TEXT NOT NULL,
	consensus         TEXT NOT NULL,
	decision          TEXT NOT NULL,
	estimated_value   REAL NOT NULL DEFAULT 0,
	quality           TEXT NOT NULL,
	market_confidence REAL,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_analyses_category ON analyses(category);
CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at);

CREATE TABLE IF NOT EXISTS benchmark_records (
	id                  TEXT PRIMARY KEY,
	analysis_id         TEXT NOT NULL,
	provider            TEXT NOT NULL,
	category            TEXT NOT NULL,
	value               REAL NOT NULL,
	decision            TEXT NOT NULL,
	confidence          REAL NOT NULL,
	ground_truth        REAL NOT NULL,
	ground_truth_source TEXT NOT NULL,
	abs_error           REAL NOT NULL,
	pct_error           REAL NOT NULL,
	direction           TEXT NOT NULL,
	decision_correct    INTEGER NOT NULL,
	latency_ms          INTEGER NOT NULL,
	scored_at           DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_bench_provider_scored ON benchmark_records(provider, scored_at);

CREATE TABLE IF NOT EXISTS weekly_scorecards (
	provider   TEXT NOT NULL,
	week_start DATETIME NOT NULL,
	card       TEXT NOT NULL,
	updated_at DATETIME NOT NULL,
	PRIMARY KEY (provider, week_start)
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveAnalysis mirrors the Postgres drift handling: an optional column the
// schema rejects is stripped, cached as unsupported, and the write retried
// exactly once.
func (s *SQLiteStore) SaveAnalysis(ctx context.Context, result *model.AnalysisResult) error {
	cols, err := s.analysisColumns(result)
	if err != nil {
		return err
	}
	cols = s.filterCached(cols)

	err = s.insertAnalysis(ctx, cols)
	if column, ok := sqliteMissingColumn(err); ok && optionalAnalysisColumns[column] {
		s.caps.MarkUnsupported(column)
		zap.L().Warn("sqlite: schema missing optional column, retrying without it",
			zap.String("column", column))
		err = s.insertAnalysis(ctx, dropColumn(cols, column))
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: save analysis %s", result.ID)
	}
	return nil
}

func (s *SQLiteStore) analysisColumns(result *model.AnalysisResult) ([]analysisColumn, error) {
	requestJSON, err := json.Marshal(result.Request)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal request")
	}
	votesJSON, err := json.Marshal(result.Votes)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal votes")
	}
	consensusJSON, err := json.Marshal(result.Consensus)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal consensus")
	}

	cols := []analysisColumn{
		{"id", result.ID},
		{"item_name", result.Request.ItemName},
		{"category", result.Detection.Category},
		{"request", string(requestJSON)},
		{"votes", string(votesJSON)},
		{"consensus", string(consensusJSON)},
		{"decision", string(result.Consensus.Decision)},
		{"estimated_value", result.Consensus.EstimatedValue},
		{"quality", string(result.Consensus.Quality)},
		{"created_at", result.CreatedAt},
	}

	if result.Evidence != nil {
		evidenceJSON, err := json.Marshal(result.Evidence)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: marshal evidence")
		}
		cols = append(cols,
			analysisColumn{"evidence", string(evidenceJSON)},
			analysisColumn{"market_confidence", result.Evidence.MarketConfidence})
	}

	detectionJSON, err := json.Marshal(result.Detection)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal detection")
	}
	cols = append(cols, analysisColumn{"detection", string(detectionJSON)})

	return cols, nil
}

func (s *SQLiteStore) filterCached(cols []analysisColumn) []analysisColumn {
	out := cols[:0]
	for _, c := range cols {
		if optionalAnalysisColumns[c.name] && s.caps != nil && s.caps.Unsupported(c.name) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (s *SQLiteStore) insertAnalysis(ctx context.Context, cols []analysisColumn) error {
	names := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		names[i] = c.name
		placeholders[i] = "?"
		args[i] = c.value
	}

	query := fmt.Sprintf("INSERT INTO analyses (%s) VALUES (%s)",
		strings.Join(names, ", "), strings.Join(placeholders, ", "))
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}

var sqliteMissingColumnRe = regexp.MustCompile(`(?:has no column named|no such column:?) (\w+)`)

// sqliteMissingColumn extracts the offending column from SQLite's
// unknown-column error text.
func sqliteMissingColumn(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	m := sqliteMissingColumnRe.FindStringSubmatch(err.Error())
	if m == nil {
		return "", false
	}
	return m[1], true
}

func (s *SQLiteStore) GetAnalysis(ctx context.Context, id string) (*model.AnalysisResult, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, item_name, category, request, detection, evidence, votes, consensus, created_at FROM analyses WHERE id = ?`,
		id)
	result, err := scanSQLiteAnalysis(row.Scan)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get analysis %s", id)
	}
	return result, nil
}

func (s *SQLiteStore) ListAnalyses(ctx context.Context, filter AnalysisFilter) ([]model.AnalysisResult, error) {
	query := `SELECT id, item_name, category, request, detection, evidence, votes, consensus, created_at FROM analyses WHERE true`
	args := []any{}

	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, filter.Category)
	}
	if filter.Decision != "" {
		query += ` AND decision = ?`
		args = append(args, string(filter.Decision))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list analyses")
	}
	defer rows.Close()

	var results []model.AnalysisResult
	for rows.Next() {
		result, err := scanSQLiteAnalysis(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan analysis")
		}
		results = append(results, *result)
	}
	return results, eris.Wrap(rows.Err(), "sqlite: list analyses iterate")
}

func scanSQLiteAnalysis(scan func(...any) error) (*model.AnalysisResult, error) {
	var r model.AnalysisResult
	var itemName, category, requestJSON, votesJSON, consensusJSON string
	var detectionJSON, evidenceJSON sql.NullString

	if err := scan(&r.ID, &itemName, &category, &requestJSON, &detectionJSON,
		&evidenceJSON, &votesJSON, &consensusJSON, &r.CreatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(requestJSON), &r.Request); err != nil {
		return nil, eris.Wrap(err, "unmarshal request")
	}
	if err := json.Unmarshal([]byte(votesJSON), &r.Votes); err != nil {
		return nil, eris.Wrap(err, "unmarshal votes")
	}
	if err := json.Unmarshal([]byte(consensusJSON), &r.Consensus); err != nil {
		return nil, eris.Wrap(err, "unmarshal consensus")
	}
	if detectionJSON.Valid {
		if err := json.Unmarshal([]byte(detectionJSON.String), &r.Detection); err != nil {
			return nil, eris.Wrap(err, "unmarshal detection")
		}
	}
	if evidenceJSON.Valid {
		r.Evidence = &model.EvidenceSummary{}
		if err := json.Unmarshal([]byte(evidenceJSON.String), r.Evidence); err != nil {
			return nil, eris.Wrap(err, "unmarshal evidence")
		}
	}
	return &r, nil
}

func (s *SQLiteStore) SaveBenchmarkRecords(ctx context.Context, records []model.BenchmarkRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO benchmark_records (id, analysis_id, provider, category, value, decision, confidence, ground_truth, ground_truth_source, abs_error, pct_error, direction, decision_correct, latency_ms, scored_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare benchmark insert")
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx,
			r.ID, r.AnalysisID, r.Provider, r.Category, r.Value, string(r.Decision),
			r.Confidence, r.GroundTruth, r.GroundTruthSource, r.AbsError,
			r.PctError, string(r.Direction), r.DecisionCorrect,
			r.Latency.Milliseconds(), r.ScoredAt); err != nil {
			return eris.Wrapf(err, "sqlite: insert benchmark record %s", r.ID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit benchmark records")
}

func (s *SQLiteStore) ListBenchmarkRecords(ctx context.Context, provider string, start, end time.Time) ([]model.BenchmarkRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, analysis_id, provider, category, value, decision, confidence, ground_truth, ground_truth_source, abs_error, pct_error, direction, decision_correct, latency_ms, scored_at FROM benchmark_records WHERE provider = ? AND scored_at >= ? AND scored_at < ?`,
		provider, start, end)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list benchmark records")
	}
	defer rows.Close()

	var records []model.BenchmarkRecord
	for rows.Next() {
		var r model.BenchmarkRecord
		var decision, direction string
		var latencyMs int64
		if err := rows.Scan(&r.ID, &r.AnalysisID, &r.Provider, &r.Category, &r.Value,
			&decision, &r.Confidence, &r.GroundTruth, &r.GroundTruthSource,
			&r.AbsError, &r.PctError, &direction, &r.DecisionCorrect,
			&latencyMs, &r.ScoredAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan benchmark record")
		}
		r.Decision = model.Decision(decision)
		r.Direction = model.ErrorDirection(direction)
		r.Latency = time.Duration(latencyMs) * time.Millisecond
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: list benchmark records iterate")
}

func (s *SQLiteStore) ListBenchmarkProviders(ctx context.Context, start, end time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT provider FROM benchmark_records WHERE scored_at >= ? AND scored_at < ? ORDER BY provider`,
		start, end)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list benchmark providers")
	}
	defer rows.Close()

	var providers []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan provider")
		}
		providers = append(providers, p)
	}
	return providers, eris.Wrap(rows.Err(), "sqlite: list benchmark providers iterate")
}

func (s *SQLiteStore) SaveScorecards(ctx context.Context, cards []model.WeeklyScorecard) error {
	if len(cards) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO weekly_scorecards (provider, week_start, card, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (provider, week_start) DO UPDATE SET card = excluded.card, updated_at = excluded.updated_at`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare scorecard upsert")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, c := range cards {
		cardJSON, err := json.Marshal(c)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal scorecard")
		}
		if _, err := stmt.ExecContext(ctx, c.Provider, c.WeekStart, string(cardJSON), now); err != nil {
			return eris.Wrapf(err, "sqlite: upsert scorecard %s", c.Provider)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit scorecards")
}

func (s *SQLiteStore) ListScorecards(ctx context.Context, weekStart time.Time) ([]model.WeeklyScorecard, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT card FROM weekly_scorecards WHERE week_start = ? ORDER BY provider`,
		weekStart)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list scorecards")
	}
	defer rows.Close()

	var cards []model.WeeklyScorecard
	for rows.Next() {
		var cardJSON string
		if err := rows.Scan(&cardJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan scorecard")
		}
		var card model.WeeklyScorecard
		if err := json.Unmarshal([]byte(cardJSON), &card); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal scorecard")
		}
		cards = append(cards, card)
	}
	return cards, eris.Wrap(rows.Err(), "sqlite: list scorecards iterate")
}

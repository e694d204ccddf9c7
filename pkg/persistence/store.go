// Package persistence archives finished pipeline runs in SQLite.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"maestro/pkg/logx"
)

// ErrRunNotFound is returned by GetRun for unknown ids.
var ErrRunNotFound = errors.New("run not found")

// Exchange is one archived sub-task.
type Exchange struct {
	Prompt      string `json:"prompt"`
	Result      string `json:"result"`
	SearchQuery string `json:"search_query,omitempty"`
}

// Run is one archived pipeline run.
type Run struct {
	ID                  string     `json:"id"`
	Objective           string     `json:"objective"`
	UseSearch           bool       `json:"use_search"`
	FinalText           string     `json:"final_text"`
	Refined             string     `json:"refined"`
	ProjectName         string     `json:"project_name"`
	IterationCapReached bool       `json:"iteration_cap_reached"`
	PromptTokens        int        `json:"prompt_tokens"`
	CompletionTokens    int        `json:"completion_tokens"`
	StartedAt           time.Time  `json:"started_at"`
	FinishedAt          time.Time  `json:"finished_at"`
	Exchanges           []Exchange `json:"exchanges,omitempty"`
}

// Store is an open run archive.
type Store struct {
	db     *sql.DB
	logger *logx.Logger
}

// Open opens (creating if needed) the archive at path. ":memory:" gives a
// private in-memory archive.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite only supports one writer; one connection also keeps ":memory:" shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s := &Store{db: db, logger: logx.NewLogger("archive")}
	s.logger.Debug("Run archive opened: %s", path)
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	return nil
}

// SaveRun stores run and its exchanges in one transaction, replacing any
// earlier record with the same id.
func (s *Store) SaveRun(ctx context.Context, run *Run) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM exchanges WHERE run_id = ?`, run.ID); err != nil {
		return fmt.Errorf("clear exchanges: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (id, objective, use_search, final_text, refined, project_name,
			iteration_cap_reached, prompt_tokens, completion_tokens, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Objective, run.UseSearch, run.FinalText, run.Refined, run.ProjectName,
		run.IterationCapReached, run.PromptTokens, run.CompletionTokens,
		run.StartedAt.UTC().Format(time.RFC3339Nano), run.FinishedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, ex := range run.Exchanges {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO exchanges (run_id, seq, prompt, result, search_query) VALUES (?, ?, ?, ?, ?)`,
			run.ID, i, ex.Prompt, ex.Result, ex.SearchQuery); err != nil {
			return fmt.Errorf("insert exchange %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	s.logger.Info("Archived run %s (%d exchanges)", run.ID, len(run.Exchanges))
	return nil
}

const runColumns = `id, objective, use_search, final_text, refined, project_name,
	iteration_cap_reached, prompt_tokens, completion_tokens, started_at, finished_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var run Run
	var started, finished string
	if err := row.Scan(&run.ID, &run.Objective, &run.UseSearch, &run.FinalText, &run.Refined, &run.ProjectName,
		&run.IterationCapReached, &run.PromptTokens, &run.CompletionTokens, &started, &finished); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap
	}
	run.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	run.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
	return &run, nil
}

// ListRuns returns the most recent runs first, without exchanges.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run with its exchanges in order.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT prompt, result, search_query FROM exchanges WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("get exchanges: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var ex Exchange
		if err := rows.Scan(&ex.Prompt, &ex.Result, &ex.SearchQuery); err != nil {
			return nil, fmt.Errorf("scan exchange: %w", err)
		}
		run.Exchanges = append(run.Exchanges, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get exchanges: %w", err)
	}
	return run, nil
}

// Package sqlite journals emitted signals and the evaluations behind them,
// and answers the outcome queries used for reporting.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Ijroy10/cubaYDsignal-sub001/internal/model"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond
)

// ErrNotFound is returned when a signal ID is not in the journal.
var ErrNotFound = errors.New("sqlite: signal not found")

// WriterConfig configures the journal.
type WriterConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/signals.db"
}

// Journal stores signals and evaluations in SQLite with WAL enabled. It
// implements model.SignalJournal and model.SignalReader.
type Journal struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (j *Journal) DB() *sql.DB { return j.db }

// New opens (creating if needed) the database and its schema.
func New(cfg WriterConfig) (*Journal, error) {
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: mkdir %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	// Single writer; readers share the same connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: schema: %w", err)
	}

	slog.Info("[sqlite] opened journal", "path", cfg.DBPath)
	return &Journal{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS signals (
			id            TEXT    PRIMARY KEY,
			instrument    TEXT    NOT NULL,
			timeframe     INTEGER NOT NULL,
			decision      TEXT    NOT NULL,
			effectiveness REAL    NOT NULL,
			entry_price   REAL    NOT NULL,
			entry_ts      INTEGER NOT NULL,
			expiry_ts     INTEGER NOT NULL,
			outcome       TEXT    NOT NULL,
			exit_price    REAL,
			patterns      TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_signals_pending ON signals (outcome, expiry_ts);
		CREATE INDEX IF NOT EXISTS idx_signals_instrument ON signals (instrument, entry_ts);

		CREATE TABLE IF NOT EXISTS evaluations (
			instrument    TEXT    NOT NULL,
			timeframe     INTEGER NOT NULL,
			ts            INTEGER NOT NULL,
			effectiveness REAL    NOT NULL,
			direction     TEXT    NOT NULL,
			decision      TEXT    NOT NULL,
			data          TEXT    NOT NULL,
			PRIMARY KEY (instrument, timeframe, ts)
		);
	`)
	return err
}

// NewID returns a fresh signal ID.
func NewID() string { return uuid.NewString() }

// Record stores a new signal. An empty ID is filled with a UUID.
func (j *Journal) Record(ctx context.Context, sig model.Signal) error {
	if sig.ID == "" {
		sig.ID = NewID()
	}
	if sig.Outcome == "" {
		sig.Outcome = model.OutcomePending
	}
	patterns, err := json.Marshal(sig.Patterns)
	if err != nil {
		return fmt.Errorf("sqlite: marshal patterns: %w", err)
	}
	_, err = j.db.ExecContext(ctx, `
		INSERT INTO signals (id, instrument, timeframe, decision, effectiveness, entry_price, entry_ts, expiry_ts, outcome, exit_price, patterns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sig.ID, sig.Instrument, sig.Timeframe, string(sig.Decision), sig.Effectiveness, sig.EntryPrice,
		sig.EntryTS.Unix(), sig.ExpiryTS.Unix(), string(sig.Outcome), sig.ExitPrice, string(patterns))
	if err != nil {
		return fmt.Errorf("sqlite: record %s: %w", sig.ID, err)
	}
	return nil
}

// Settle stores the outcome and exit price of a recorded signal.
func (j *Journal) Settle(ctx context.Context, sig model.Signal) error {
	res, err := j.db.ExecContext(ctx,
		`UPDATE signals SET outcome = ?, exit_price = ? WHERE id = ?`,
		string(sig.Outcome), sig.ExitPrice, sig.ID)
	if err != nil {
		return fmt.Errorf("sqlite: settle %s: %w", sig.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("sqlite: settle %s: %w", sig.ID, ErrNotFound)
	}
	return nil
}

// Run reads evaluations from evCh and inserts them in batched transactions.
// Flushes every batchSize evaluations OR every flushDelay, whichever first.
// Blocks until ctx is cancelled or evCh is closed.
func (j *Journal) Run(ctx context.Context, evCh <-chan model.Evaluation) {
	batch := make([]model.Evaluation, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		if err := j.insertEvaluations(batch); err != nil {
			slog.Error("[sqlite] evaluation batch insert failed", "error", err, "count", len(batch))
		} else {
			slog.Debug("[sqlite] committed evaluations", "count", len(batch), "took", time.Since(start))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case ev, ok := <-evCh:
			if !ok {
				flush()
				return
			}
			batch = append(batch, ev)
			if len(batch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

// insertEvaluations writes a batch in a single transaction. A re-scored bar
// replaces its earlier row.
func (j *Journal) insertEvaluations(evs []model.Evaluation) error {
	tx, err := j.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO evaluations (instrument, timeframe, ts, effectiveness, direction, decision, data)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, ev := range evs {
		_, err := stmt.Exec(ev.Instrument, ev.Timeframe, ev.TS.Unix(), ev.Effectiveness,
			string(ev.Direction), string(ev.Decision), string(ev.JSON()))
		if err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

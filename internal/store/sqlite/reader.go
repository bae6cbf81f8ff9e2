package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Ijroy10/cubaYDsignal-sub001/internal/model"
)

const signalColumns = `id, instrument, timeframe, decision, effectiveness, entry_price, entry_ts, expiry_ts, outcome, exit_price, patterns`

// Pending returns unsettled signals whose expiry is at or before now,
// oldest expiry first.
func (j *Journal) Pending(ctx context.Context, now time.Time) ([]model.Signal, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT `+signalColumns+`
		FROM signals
		WHERE outcome = ? AND expiry_ts <= ?
		ORDER BY expiry_ts ASC
	`, string(model.OutcomePending), now.Unix())
	if err != nil {
		return nil, fmt.Errorf("sqlite: query pending: %w", err)
	}
	return scanSignals(rows)
}

// Recent returns the newest signals, optionally for one instrument.
func (j *Journal) Recent(ctx context.Context, instrument string, limit int) ([]model.Signal, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT `+signalColumns+`
		FROM signals
		WHERE (? = '' OR instrument = ?)
		ORDER BY entry_ts DESC, id
		LIMIT ?
	`, instrument, instrument, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query recent: %w", err)
	}
	return scanSignals(rows)
}

// Get loads one signal by ID.
func (j *Journal) Get(ctx context.Context, id string) (model.Signal, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT `+signalColumns+` FROM signals WHERE id = ?`, id)
	if err != nil {
		return model.Signal{}, fmt.Errorf("sqlite: get %s: %w", id, err)
	}
	sigs, err := scanSignals(rows)
	if err != nil {
		return model.Signal{}, err
	}
	if len(sigs) == 0 {
		return model.Signal{}, ErrNotFound
	}
	return sigs[0], nil
}

// Stats aggregates signals entered at or after since, per instrument.
func (j *Journal) Stats(ctx context.Context, since time.Time) ([]model.InstrumentStats, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT instrument,
		       COUNT(*),
		       SUM(outcome = 'won'),
		       SUM(outcome = 'lost'),
		       SUM(outcome = 'draw'),
		       SUM(outcome = 'pending'),
		       SUM(outcome = 'void'),
		       AVG(effectiveness)
		FROM signals
		WHERE entry_ts >= ?
		GROUP BY instrument
		ORDER BY instrument
	`, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("sqlite: query stats: %w", err)
	}
	defer rows.Close()

	var out []model.InstrumentStats
	for rows.Next() {
		var s model.InstrumentStats
		if err := rows.Scan(&s.Instrument, &s.Total, &s.Won, &s.Lost, &s.Draw, &s.Pending, &s.Void, &s.AvgEffectiveness); err != nil {
			return nil, fmt.Errorf("sqlite: scan stats: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// LatestEvaluation returns the newest journaled evaluation of an instrument.
func (j *Journal) LatestEvaluation(ctx context.Context, instrument string) (model.Evaluation, error) {
	var data string
	err := j.db.QueryRowContext(ctx, `
		SELECT data FROM evaluations
		WHERE instrument = ?
		ORDER BY ts DESC
		LIMIT 1
	`, instrument).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Evaluation{}, ErrNotFound
	}
	if err != nil {
		return model.Evaluation{}, fmt.Errorf("sqlite: latest evaluation %s: %w", instrument, err)
	}
	var ev model.Evaluation
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		return model.Evaluation{}, fmt.Errorf("sqlite: unmarshal evaluation: %w", err)
	}
	return ev, nil
}

func scanSignals(rows *sql.Rows) ([]model.Signal, error) {
	defer rows.Close()
	var out []model.Signal
	for rows.Next() {
		var (
			s                 model.Signal
			decision, outcome string
			entry, expiry     int64
			exit              sql.NullFloat64
			patterns          sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.Instrument, &s.Timeframe, &decision, &s.Effectiveness, &s.EntryPrice,
			&entry, &expiry, &outcome, &exit, &patterns); err != nil {
			return nil, fmt.Errorf("sqlite: scan signal: %w", err)
		}
		s.Decision = model.Decision(decision)
		s.Outcome = model.Outcome(outcome)
		s.EntryTS = time.Unix(entry, 0).UTC()
		s.ExpiryTS = time.Unix(expiry, 0).UTC()
		s.ExitPrice = exit.Float64
		if patterns.Valid && patterns.String != "" {
			if err := json.Unmarshal([]byte(patterns.String), &s.Patterns); err != nil {
				return nil, fmt.Errorf("sqlite: unmarshal patterns: %w", err)
			}
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

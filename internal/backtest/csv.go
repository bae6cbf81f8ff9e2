package backtest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Ijroy10/cubaYDsignal-sub001/internal/model"
)

// LoadCSV reads candles with the columns time,open,high,low,close and an
// optional volume. time is RFC3339 or Unix seconds. A header row is
// detected and skipped. Rows are sorted by time; malformed rows are an
// error, while bars that break the OHLC invariant are kept for the
// evaluator to drop.
func LoadCSV(r io.Reader, instrument string, timeframe int) (model.Series, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var candles []model.Candle
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return model.Series{}, fmt.Errorf("backtest: csv line %d: %w", line, err)
		}
		if line == 1 && isHeader(rec) {
			continue
		}
		c, err := parseRow(rec)
		if err != nil {
			return model.Series{}, fmt.Errorf("backtest: csv line %d: %w", line, err)
		}
		candles = append(candles, c)
	}
	sort.SliceStable(candles, func(i, j int) bool { return candles[i].TS.Before(candles[j].TS) })
	return model.NewSeries(instrument, timeframe, candles), nil
}

func isHeader(rec []string) bool {
	if len(rec) == 0 {
		return false
	}
	_, err := strconv.ParseFloat(strings.TrimSpace(rec[len(rec)-1]), 64)
	return err != nil
}

func parseRow(rec []string) (model.Candle, error) {
	if len(rec) < 5 {
		return model.Candle{}, fmt.Errorf("want at least 5 columns, got %d", len(rec))
	}
	ts, err := parseTime(strings.TrimSpace(rec[0]))
	if err != nil {
		return model.Candle{}, err
	}
	var f [5]float64
	for i := 1; i < len(rec) && i <= 5; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
		if err != nil {
			return model.Candle{}, fmt.Errorf("column %d: %w", i+1, err)
		}
		f[i-1] = v
	}
	c := model.Candle{TS: ts, Open: f[0], High: f[1], Low: f[2], Close: f[3]}
	if len(rec) > 5 {
		c.Volume, c.HasVolume = f[4], true
	}
	return c, nil
}

func parseTime(s string) (time.Time, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(n, 0).UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad time %q", s)
	}
	return t.UTC(), nil
}

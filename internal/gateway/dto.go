package gateway

import (
	"encoding/json"

	"github.com/Ijroy10/cubaYDsignal-sub001/internal/model"
)

// StatsOut is the REST response row for /api/stats.
type StatsOut struct {
	model.InstrumentStats
	WinRate float64 `json:"win_rate"`
}

// SignalsOut is the REST response for /api/signals.
type SignalsOut struct {
	Count   int            `json:"count"`
	Signals []model.Signal `json:"signals"`
}

// MissedOut is the REST response for /api/missed.
type MissedOut struct {
	From      int64             `json:"from"`
	To        int64             `json:"to"`
	Envelopes []json.RawMessage `json:"envelopes"`
}

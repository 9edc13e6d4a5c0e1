package nightscout

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cast"

	"gitlab.com/tinyland/lab/glucose-pulse/pkg/cgm"
)

// Entry is one decoded element of the entries/sgv.json array.
type Entry struct {
	SGV       float64
	Delta     float64
	HasDelta  bool
	Date      time.Time
	Direction cgm.Direction
}

// Reading converts the entry to a domain reading with the given delta.
func (e Entry) Reading(delta float64) cgm.Reading {
	return cgm.Reading{
		SGV:       e.SGV,
		Direction: e.Direction,
		Timestamp: e.Date,
		Delta:     delta,
	}
}

var errMissingSGV = errors.New("entry has no sgv")

// parseEntry decodes a raw JSON object. Nightscout forks disagree on whether
// numbers are sent as numbers or strings, so every field goes through cast.
func parseEntry(raw map[string]interface{}) (Entry, error) {
	var e Entry

	sgvRaw, ok := raw["sgv"]
	if !ok || sgvRaw == nil {
		return e, errMissingSGV
	}
	sgv, err := cast.ToFloat64E(sgvRaw)
	if err != nil {
		return e, fmt.Errorf("sgv: %w", err)
	}
	e.SGV = sgv

	if d, ok := raw["delta"]; ok && d != nil {
		if delta, err := cast.ToFloat64E(d); err == nil {
			e.Delta = delta
			e.HasDelta = true
		}
	}

	e.Date, err = parseDate(raw)
	if err != nil {
		return e, err
	}

	e.Direction = cgm.ParseDirection(cast.ToString(raw["direction"]))
	return e, nil
}

// parseDate prefers the millisecond epoch "date" field and falls back to
// "dateString".
func parseDate(raw map[string]interface{}) (time.Time, error) {
	if v, ok := raw["date"]; ok && v != nil {
		if ms, err := cast.ToInt64E(v); err == nil && ms > 0 {
			return time.UnixMilli(ms), nil
		}
	}
	if v, ok := raw["dateString"]; ok && v != nil {
		t, err := cast.ToTimeE(v)
		if err != nil {
			return time.Time{}, fmt.Errorf("dateString: %w", err)
		}
		if !t.IsZero() {
			return t, nil
		}
	}
	return time.Time{}, errors.New("entry has no date")
}

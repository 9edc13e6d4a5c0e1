package cgm

import "time"

// Reading is one sensor glucose value (SGV) as reported by the CGM API.
// Values are kept in mg/dl, the API's native unit; conversion happens at
// render time.
type Reading struct {
	SGV       float64   `json:"sgv"`
	Direction Direction `json:"direction"`
	Timestamp time.Time `json:"timestamp"`
	Delta     float64   `json:"delta"`
}

// ElapsedMinutes returns whole minutes between the reading and now, floored.
// Readings stamped in the future (clock skew) report 0.
func (r Reading) ElapsedMinutes(now time.Time) int {
	d := now.Sub(r.Timestamp)
	if d < 0 {
		return 0
	}
	return int(d / time.Minute)
}

// IsStale reports whether the reading is older than threshold. A zero
// threshold disables staleness.
func (r Reading) IsStale(now time.Time, threshold time.Duration) bool {
	if threshold <= 0 {
		return false
	}
	return now.Sub(r.Timestamp) > threshold
}

// MarshalText encodes the direction as its config key so cached readings
// stay readable.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText accepts either the config key or the API token.
func (d *Direction) UnmarshalText(text []byte) error {
	*d = ParseDirection(string(text))
	return nil
}

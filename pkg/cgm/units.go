package cgm

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Units is the measurement unit glucose values are displayed in.
type Units string

const (
	UnitsMgDL  Units = "mg/dl"
	UnitsMmolL Units = "mmol/l"
)

// MgDLPerMmolL converts between mg/dl and mmol/l for glucose (molar mass
// ~180 g/mol). Nightscout and most CGM apps use 18.
const MgDLPerMmolL = 18.0

// ParseUnits validates a configured unit string. Only the exact literals
// mg/dl and mmol/l are accepted; anything else, including other casings or
// surrounding spaces, is a ConfigError.
func ParseUnits(s string) (Units, error) {
	switch Units(s) {
	case UnitsMgDL:
		return UnitsMgDL, nil
	case UnitsMmolL:
		return UnitsMmolL, nil
	}
	return "", &ConfigError{
		Field:  "sgv_measurement_units",
		Reason: fmt.Sprintf("unsupported unit %q (want %q or %q)", s, UnitsMgDL, UnitsMmolL),
	}
}

// Convert turns a mg/dl value into u.
func (u Units) Convert(mgdl float64) float64 {
	if u == UnitsMmolL {
		return mgdl / MgDLPerMmolL
	}
	return mgdl
}

// Format renders a mg/dl value in u: whole numbers (rounded half away from
// zero) for mg/dl, one decimal for mmol/l.
func (u Units) Format(mgdl float64) string {
	if u == UnitsMmolL {
		s := strconv.FormatFloat(u.Convert(mgdl), 'f', 1, 64)
		if s == "-0.0" {
			return "0.0"
		}
		return s
	}
	return strconv.Itoa(int(math.Round(mgdl)))
}

// FormatSigned is Format with a leading "+" for positive values.
func (u Units) FormatSigned(mgdl float64) string {
	s := u.Format(mgdl)
	if strings.HasPrefix(s, "-") || strings.Trim(s, "0.") == "" {
		return s
	}
	return "+" + s
}

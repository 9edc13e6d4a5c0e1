package cgm

import "strings"

// Direction is the CGM trend arrow reported with each reading.
type Direction int

const (
	DirectionUnknown Direction = iota
	DirectionDoubleUp
	DirectionSingleUp
	DirectionFortyFiveUp
	DirectionFlat
	DirectionFortyFiveDown
	DirectionSingleDown
	DirectionDoubleDown
)

// KnownDirections lists every direction that has a configurable icon, in
// display order from fastest rise to fastest fall.
var KnownDirections = []Direction{
	DirectionDoubleUp,
	DirectionSingleUp,
	DirectionFortyFiveUp,
	DirectionFlat,
	DirectionFortyFiveDown,
	DirectionSingleDown,
	DirectionDoubleDown,
}

// directionKeys maps each direction to its snake_case config key.
var directionKeys = map[Direction]string{
	DirectionUnknown:       "unknown",
	DirectionDoubleUp:      "double_up",
	DirectionSingleUp:      "single_up",
	DirectionFortyFiveUp:   "forty_five_up",
	DirectionFlat:          "flat",
	DirectionFortyFiveDown: "forty_five_down",
	DirectionSingleDown:    "single_down",
	DirectionDoubleDown:    "double_down",
}

// apiTokens maps Nightscout trend strings (lower-cased, separators removed)
// to directions.
var apiTokens = map[string]Direction{
	"doubleup":      DirectionDoubleUp,
	"singleup":      DirectionSingleUp,
	"fortyfiveup":   DirectionFortyFiveUp,
	"flat":          DirectionFlat,
	"fortyfivedown": DirectionFortyFiveDown,
	"singledown":    DirectionSingleDown,
	"doubledown":    DirectionDoubleDown,
}

// String returns the snake_case config key ("forty_five_up").
func (d Direction) String() string {
	if k, ok := directionKeys[d]; ok {
		return k
	}
	return "unknown"
}

// ParseDirection accepts both the Nightscout API form ("FortyFiveUp") and
// the config key form ("forty_five_up"). Anything else, including the API's
// "NOT COMPUTABLE", "RATE OUT OF RANGE" and "NONE", is DirectionUnknown.
func ParseDirection(s string) Direction {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("_", "", " ", "", "-", "").Replace(norm)
	if d, ok := apiTokens[norm]; ok {
		return d
	}
	return DirectionUnknown
}

// DirectionForKey resolves a config key to a known direction.
func DirectionForKey(key string) (Direction, bool) {
	for d, k := range directionKeys {
		if d != DirectionUnknown && k == key {
			return d, true
		}
	}
	return DirectionUnknown, false
}

// DefaultUnknownIcon is shown for trends without a configured glyph.
const DefaultUnknownIcon = "?"

// DefaultDirectionIcons returns the stock glyph per config key.
func DefaultDirectionIcons() map[string]string {
	return map[string]string{
		"double_up":       "⬆️⬆️",
		"single_up":       "⬆️",
		"forty_five_up":   "↗️",
		"flat":            "➡️",
		"forty_five_down": "↘️",
		"single_down":     "⬇️",
		"double_down":     "⬇️⬇️",
	}
}

// IconSet resolves directions to glyphs. The lookup is total: directions
// without a glyph fall back to the unknown icon.
type IconSet struct {
	icons   map[Direction]string
	unknown string
}

// NewIconSet builds an IconSet from config-key glyphs layered over the
// defaults. Unrecognised keys are ignored; the caller validates them.
func NewIconSet(byKey map[string]string, unknown string) IconSet {
	if unknown == "" {
		unknown = DefaultUnknownIcon
	}
	set := IconSet{icons: make(map[Direction]string, len(KnownDirections)), unknown: unknown}
	for k, glyph := range DefaultDirectionIcons() {
		d, _ := DirectionForKey(k)
		set.icons[d] = glyph
	}
	for k, glyph := range byKey {
		if d, ok := DirectionForKey(k); ok {
			set.icons[d] = glyph
		}
	}
	return set
}

// Glyph returns the icon for d.
func (s IconSet) Glyph(d Direction) string {
	if g, ok := s.icons[d]; ok {
		return g
	}
	if s.unknown == "" {
		return DefaultUnknownIcon
	}
	return s.unknown
}

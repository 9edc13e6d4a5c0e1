// Package format renders glucose label and tooltip templates. Templates use
// {name} placeholders resolved through a fixed token table; "{{" and "}}"
// produce literal braces. Placeholders not in the table are left verbatim so a
// typo stays visible instead of silently vanishing.
package format

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"gitlab.com/tinyland/lab/glucose-pulse/pkg/cgm"
)

// Placeholder shown for value tokens before the first reading arrives.
const NoValue = "--"

// Values is everything a token may read from.
type Values struct {
	Reading    cgm.Reading
	HasReading bool
	Units      cgm.Units
	Icons      cgm.IconSet
	Now        time.Time
	Stale      bool
}

// tokenFunc renders one placeholder.
type tokenFunc func(v Values) string

// tokens is the closed set of supported placeholders.
var tokens = map[string]tokenFunc{
	"sgv": func(v Values) string {
		if !v.HasReading {
			return NoValue
		}
		return v.Units.Format(v.Reading.SGV)
	},
	"sgv_delta": func(v Values) string {
		if !v.HasReading {
			return NoValue
		}
		return v.Units.Format(v.Reading.Delta)
	},
	"sgv_delta_signed": func(v Values) string {
		if !v.HasReading {
			return NoValue
		}
		return v.Units.FormatSigned(v.Reading.Delta)
	},
	"sgv_mgdl": func(v Values) string {
		if !v.HasReading {
			return NoValue
		}
		return cgm.UnitsMgDL.Format(v.Reading.SGV)
	},
	"sgv_mmol": func(v Values) string {
		if !v.HasReading {
			return NoValue
		}
		return cgm.UnitsMmolL.Format(v.Reading.SGV)
	},
	"direction": func(v Values) string {
		if !v.HasReading {
			return ""
		}
		return v.Icons.Glyph(v.Reading.Direction)
	},
	"direction_name": func(v Values) string {
		if !v.HasReading {
			return ""
		}
		return v.Reading.Direction.String()
	},
	"delta_time_in_minutes": func(v Values) string {
		if !v.HasReading {
			return NoValue
		}
		return strconv.Itoa(v.Reading.ElapsedMinutes(v.Now))
	},
	"time": func(v Values) string {
		if !v.HasReading {
			return NoValue
		}
		return v.Reading.Timestamp.Local().Format("15:04")
	},
	"units": func(v Values) string {
		return string(v.Units)
	},
	"stale": func(v Values) string {
		if v.Stale {
			return "stale"
		}
		return ""
	},
}

// Tokens returns the supported placeholder names, sorted.
func Tokens() []string {
	names := make([]string, 0, len(tokens))
	for name := range tokens {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// part is either literal text or a resolved token.
type part struct {
	literal string
	render  tokenFunc
}

// Template is a compiled label or tooltip format string.
type Template struct {
	source  string
	parts   []part
	unknown []string
}

// Compile parses s once. It never fails: malformed or unknown placeholders
// become literal text and are reported by Unknown.
func Compile(s string) *Template {
	t := &Template{source: s}
	var lit strings.Builder

	flush := func() {
		if lit.Len() > 0 {
			t.parts = append(t.parts, part{literal: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '{' && i+1 < len(s) && s[i+1] == '{':
			lit.WriteByte('{')
			i++
		case c == '}' && i+1 < len(s) && s[i+1] == '}':
			lit.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(s[i+1:], '}')
			if end < 0 {
				lit.WriteString(s[i:])
				i = len(s)
				continue
			}
			name := s[i+1 : i+1+end]
			if k := strings.IndexByte(name, '{'); k >= 0 {
				// An unclosed brace is literal; scanning resumes at the
				// next one, so "{a{sgv}" still renders sgv.
				lit.WriteString(s[i : i+1+k])
				i += k
				continue
			}
			if fn, ok := tokens[name]; ok {
				flush()
				t.parts = append(t.parts, part{render: fn})
			} else {
				if isIdent(name) {
					t.unknown = append(t.unknown, name)
				}
				lit.WriteString(s[i : i+2+end])
			}
			i += end + 1
		default:
			lit.WriteByte(c)
		}
	}
	flush()
	return t
}

// Source returns the uncompiled format string.
func (t *Template) Source() string {
	return t.source
}

// Unknown lists placeholder names that are not in the token table.
func (t *Template) Unknown() []string {
	return t.unknown
}

// Render substitutes every token from v.
func (t *Template) Render(v Values) string {
	var b strings.Builder
	for _, p := range t.parts {
		if p.render != nil {
			b.WriteString(p.render(v))
			continue
		}
		b.WriteString(p.literal)
	}
	return b.String()
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

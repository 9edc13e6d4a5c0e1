package format

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"gitlab.com/tinyland/lab/glucose-pulse/pkg/cgm"
)

func fmtValues(sgv, delta float64, dir cgm.Direction, age time.Duration) Values {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return Values{
		Reading: cgm.Reading{
			SGV:       sgv,
			Delta:     delta,
			Direction: dir,
			Timestamp: now.Add(-age),
		},
		HasReading: true,
		Units:      cgm.UnitsMgDL,
		Icons:      cgm.NewIconSet(nil, ""),
		Now:        now,
	}
}

func TestRenderDefaultTemplates(t *testing.T) {
	v := fmtValues(120, 10, cgm.DirectionFlat, 3*time.Minute+30*time.Second)

	label := Compile("🩸{sgv}{direction}").Render(v)
	if label != "🩸120➡️" {
		t.Errorf("label = %q", label)
	}

	tooltip := Compile("({sgv_delta}) {delta_time_in_minutes} min").Render(v)
	if tooltip != "(10) 3 min" {
		t.Errorf("tooltip = %q", tooltip)
	}
}

func TestRenderMmol(t *testing.T) {
	v := fmtValues(180, -9, cgm.DirectionSingleDown, 0)
	v.Units = cgm.UnitsMmolL

	got := Compile("{sgv} {units} ({sgv_delta_signed}) mg:{sgv_mgdl}").Render(v)
	if got != "10.0 mmol/l (-0.5) mg:180" {
		t.Errorf("render = %q", got)
	}
}

func TestRenderUnknownTokenKeptVerbatim(t *testing.T) {
	tmpl := Compile("{sgv} {bogus} {not a token} {unterminated")
	v := fmtValues(99, 0, cgm.DirectionFlat, 0)

	got := tmpl.Render(v)
	if got != "99 {bogus} {not a token} {unterminated" {
		t.Errorf("render = %q", got)
	}
	if !reflect.DeepEqual(tmpl.Unknown(), []string{"bogus"}) {
		t.Errorf("Unknown() = %v, want [bogus]", tmpl.Unknown())
	}
}

func TestRenderEscapedBraces(t *testing.T) {
	v := fmtValues(100, 0, cgm.DirectionFlat, 0)
	if got := Compile("{{sgv}} = {sgv}").Render(v); got != "{sgv} = 100" {
		t.Errorf("render = %q", got)
	}
}

func TestRenderUnclosedBraceBeforeToken(t *testing.T) {
	v := fmtValues(120, 10, cgm.DirectionFlat, 0)
	tests := []struct {
		in, want string
	}{
		{"{a{sgv}", "{a120"},
		{"{{a{sgv}", "{a120"},
		{"x{ {sgv_delta}", "x{ 10"},
		{"{a{b{sgv} {", "{a{b120 {"},
		{"{a{{sgv}}", "{a{sgv}"},
	}
	for _, tt := range tests {
		tmpl := Compile(tt.in)
		if got := tmpl.Render(v); got != tt.want {
			t.Errorf("Compile(%q).Render = %q, want %q", tt.in, got, tt.want)
		}
		if len(tmpl.Unknown()) != 0 {
			t.Errorf("Compile(%q).Unknown() = %v, want none", tt.in, tmpl.Unknown())
		}
	}
}

func TestRenderWithoutReading(t *testing.T) {
	v := Values{Units: cgm.UnitsMgDL, Icons: cgm.NewIconSet(nil, "")}
	if got := Compile("🩸{sgv}{direction}").Render(v); got != "🩸--" {
		t.Errorf("render = %q", got)
	}
}

func TestRenderUnknownDirection(t *testing.T) {
	v := fmtValues(100, 0, cgm.DirectionUnknown, 0)
	if got := Compile("{direction}|{direction_name}").Render(v); got != "?|unknown" {
		t.Errorf("render = %q", got)
	}
}

func TestRenderStaleToken(t *testing.T) {
	v := fmtValues(100, 0, cgm.DirectionFlat, 0)
	tmpl := Compile("{sgv}{stale}")
	if got := tmpl.Render(v); got != "100" {
		t.Errorf("fresh render = %q", got)
	}
	v.Stale = true
	if got := tmpl.Render(v); got != "100stale" {
		t.Errorf("stale render = %q", got)
	}
}

func TestTokensSortedAndComplete(t *testing.T) {
	names := Tokens()
	for _, want := range []string{"sgv", "sgv_delta", "direction", "delta_time_in_minutes"} {
		found := false
		for _, n := range names {
			if n == want {
				found = true
			}
		}
		if !found {
			t.Errorf("Tokens() missing %q", want)
		}
	}
	if !sortedStrings(names) {
		t.Errorf("Tokens() not sorted: %v", names)
	}
}

func sortedStrings(s []string) bool {
	for i := 1; i < len(s); i++ {
		if strings.Compare(s[i-1], s[i]) > 0 {
			return false
		}
	}
	return true
}

func TestStripMarkup(t *testing.T) {
	in := `<span font="Symbols Nerd Font">🩸</span>120 &amp; rising`
	if got := StripMarkup(in); got != "🩸120 & rising" {
		t.Errorf("StripMarkup = %q", got)
	}
}

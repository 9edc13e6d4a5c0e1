package widget

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"gitlab.com/tinyland/lab/glucose-pulse/pkg/actions"
	"gitlab.com/tinyland/lab/glucose-pulse/pkg/cgm"
	"gitlab.com/tinyland/lab/glucose-pulse/pkg/collectors"
	"gitlab.com/tinyland/lab/glucose-pulse/pkg/collectors/nightscout"
	"gitlab.com/tinyland/lab/glucose-pulse/pkg/config"
)

var wNow = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

// stubClient is a test double for nightscout.EntriesClient.
type stubClient struct {
	mu      sync.Mutex
	entries []nightscout.Entry
	err     error
	hang    bool
	calls   int
}

func (s *stubClient) Entries(ctx context.Context, count int) ([]nightscout.Entry, error) {
	s.mu.Lock()
	s.calls++
	hang, entries, err := s.hang, s.entries, s.err
	s.mu.Unlock()
	if hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return append([]nightscout.Entry(nil), entries...), err
}

func (s *stubClient) set(entries []nightscout.Entry, err error, hang bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries, s.err, s.hang = entries, err, hang
}

func wSettings(t *testing.T) Settings {
	t.Helper()
	g := config.DefaultConfig().Glucose
	g.Host = "https://cgm.example/"
	return SettingsFromConfig(g)
}

func wNew(t *testing.T, s Settings, client nightscout.EntriesClient, opts ...Option) *Widget {
	t.Helper()
	base := []Option{
		WithClient(client),
		WithClock(func() time.Time { return wNow }),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	w, err := New(s, append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return w
}

func TestNewRejectsInvalidUnits(t *testing.T) {
	for _, units := range []string{"mg/L", "MG/DL", "Mmol/L", " mmol/l ", "mg/dl\t", ""} {
		s := wSettings(t)
		s.Units = units
		_, err := New(s, WithClient(&stubClient{}))
		var ce *cgm.ConfigError
		if !errors.As(err, &ce) || ce.Field != "sgv_measurement_units" {
			t.Errorf("units %q: err = %v, want units ConfigError", units, err)
		}
	}
}

func TestNewRejectsBadHost(t *testing.T) {
	for _, host := range []string{"", "cgm.example", "ftp://cgm.example"} {
		s := wSettings(t)
		s.Host = host
		_, err := New(s, WithClient(&stubClient{}))
		var ce *cgm.ConfigError
		if !errors.As(err, &ce) || ce.Field != "host" {
			t.Errorf("host %q: err = %v, want host ConfigError", host, err)
		}
	}
}

func TestNewResolvesEnvSecret(t *testing.T) {
	s := wSettings(t)
	s.Secret = cgm.ParseSecret("env", "NS_SECRET")

	lookup := func(k string) (string, bool) {
		if k == "NS_SECRET" {
			return "hunter2", true
		}
		return "", false
	}
	if _, err := New(s, WithClient(&stubClient{}), WithLookupEnv(lookup)); err != nil {
		t.Fatalf("New with env secret set: %v", err)
	}

	missing := func(string) (string, bool) { return "", false }
	_, err := New(s, WithClient(&stubClient{}), WithLookupEnv(missing))
	var ce *cgm.ConfigError
	if !errors.As(err, &ce) || ce.Field != "secret_env_name" {
		t.Fatalf("err = %v, want secret_env_name ConfigError", err)
	}

	s.Secret = cgm.ParseSecret("env", "")
	_, err = New(s, WithClient(&stubClient{}), WithLookupEnv(lookup))
	if !errors.As(err, &ce) {
		t.Fatalf("empty secret_env_name: err = %v, want ConfigError", err)
	}
}

func TestInitialStateIsPlaceholder(t *testing.T) {
	w := wNew(t, wSettings(t), &stubClient{})
	st := w.Current()
	if st.Class != ClassLoading || st.HasReading() {
		t.Errorf("initial state = %+v", st)
	}
	if st.Label != "🩸--" {
		t.Errorf("initial label = %q", st.Label)
	}
}

func TestPollRendersReadingAndDelta(t *testing.T) {
	client := &stubClient{}
	w := wNew(t, wSettings(t), client)
	w.Seed(cgm.Reading{SGV: 110, Direction: cgm.DirectionFlat, Timestamp: wNow.Add(-8 * time.Minute)})

	client.set([]nightscout.Entry{{SGV: 120, Direction: cgm.DirectionFlat, Date: wNow.Add(-3 * time.Minute)}}, nil, false)
	r, err := w.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if r.Delta != 10 {
		t.Errorf("delta = %v, want 10", r.Delta)
	}

	st := w.Current()
	if !strings.Contains(st.Label, "➡️") || !strings.Contains(st.Label, "120") {
		t.Errorf("label = %q, want flat glyph and 120", st.Label)
	}
	if !strings.Contains(st.Tooltip, "(10)") || !strings.Contains(st.Tooltip, "3 min") {
		t.Errorf("tooltip = %q, want (10) and 3 min", st.Tooltip)
	}
	if st.ElapsedMinutes != 3 || st.Stale || st.Class != ClassOK {
		t.Errorf("state = %+v", st)
	}
}

func TestRenderMmol(t *testing.T) {
	s := wSettings(t)
	s.Units = "mmol/l"
	w := wNew(t, s, &stubClient{})

	st := w.Render(&cgm.Reading{SGV: 180, Direction: cgm.DirectionSingleUp, Timestamp: wNow}, wNow)
	if !strings.Contains(st.Label, "10.0") {
		t.Errorf("label = %q, want 10.0", st.Label)
	}
	if st.Units != cgm.UnitsMmolL {
		t.Errorf("Units = %q", st.Units)
	}
}

func TestRenderUnknownDirection(t *testing.T) {
	w := wNew(t, wSettings(t), &stubClient{})
	st := w.Render(&cgm.Reading{SGV: 100, Direction: cgm.DirectionUnknown, Timestamp: wNow}, wNow)
	if st.Label != "🩸100?" {
		t.Errorf("label = %q, want fallback glyph", st.Label)
	}

	s := wSettings(t)
	s.UnknownIcon = "·"
	w = wNew(t, s, &stubClient{})
	st = w.Render(&cgm.Reading{SGV: 100, Timestamp: wNow}, wNow)
	if st.Label != "🩸100·" {
		t.Errorf("label = %q, want custom fallback glyph", st.Label)
	}
}

func TestRenderStale(t *testing.T) {
	s := wSettings(t)
	s.StaleLabelSuffix = " (old)"
	w := wNew(t, s, &stubClient{})

	st := w.Render(&cgm.Reading{SGV: 100, Direction: cgm.DirectionFlat, Timestamp: wNow.Add(-20 * time.Minute)}, wNow)
	if !st.Stale || st.Class != ClassStale {
		t.Errorf("state = %+v, want stale", st)
	}
	if !strings.HasSuffix(st.Label, " (old)") {
		t.Errorf("label = %q, want stale suffix", st.Label)
	}
	if st.ElapsedMinutes != 20 {
		t.Errorf("ElapsedMinutes = %d", st.ElapsedMinutes)
	}
}

func TestFailedPollKeepsState(t *testing.T) {
	client := &stubClient{}
	client.set([]nightscout.Entry{{SGV: 140, Direction: cgm.DirectionSingleDown, Date: wNow.Add(-time.Minute)}}, nil, false)
	w := wNew(t, wSettings(t), client)
	if _, err := w.Poll(context.Background()); err != nil {
		t.Fatal(err)
	}
	before := w.Current()

	client.set(nil, &cgm.FetchError{Op: "status", StatusCode: 502}, false)
	if _, err := w.Poll(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	after := w.Current()

	if after.Label != before.Label {
		t.Errorf("label changed on failure: %q -> %q", before.Label, after.Label)
	}
	if after.Reading == nil || after.Reading.SGV != 140 {
		t.Errorf("reading lost: %+v", after.Reading)
	}
	if after.Tooltip != before.Tooltip {
		t.Errorf("tooltip changed on failure: %q -> %q", before.Tooltip, after.Tooltip)
	}
	if after.Class != ClassError || !strings.Contains(after.LastError, "HTTP 502") {
		t.Errorf("after = %+v, want error class and last error", after)
	}

	client.set([]nightscout.Entry{{SGV: 150, Date: wNow}}, nil, false)
	if _, err := w.Poll(context.Background()); err != nil {
		t.Fatal(err)
	}
	if st := w.Current(); st.LastError != "" || st.Class != ClassOK {
		t.Errorf("error not cleared after recovery: %+v", st)
	}
}

func TestPollTimeoutKeepsState(t *testing.T) {
	client := &stubClient{}
	client.set([]nightscout.Entry{{SGV: 120, Direction: cgm.DirectionFlat, Date: wNow}}, nil, false)
	s := wSettings(t)
	s.RequestTimeout = 20 * time.Millisecond
	w := wNew(t, s, client)
	if _, err := w.Poll(context.Background()); err != nil {
		t.Fatal(err)
	}
	before := w.Current()

	client.set(nil, nil, true)
	_, err := w.Poll(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	got := w.Current()
	if got.Label != before.Label || got.Tooltip != before.Tooltip {
		t.Errorf("label/tooltip after timeout = %q/%q, want %q/%q", got.Label, got.Tooltip, before.Label, before.Tooltip)
	}
	if got.Reading == nil || got.Reading.SGV != 120 {
		t.Errorf("reading after timeout = %+v, want previous reading", got.Reading)
	}
	if got.LastError == "" {
		t.Error("timeout not recorded in LastError")
	}
}

func TestApplyDropsOlderReading(t *testing.T) {
	var notified []float64
	w := wNew(t, wSettings(t), &stubClient{}, WithOnChange(func(st RenderedState) {
		if st.Reading != nil {
			notified = append(notified, st.Reading.SGV)
		}
	}))

	w.Apply(&cgm.Reading{SGV: 200, Direction: cgm.DirectionFlat, Timestamp: wNow.Add(-time.Minute)}, nil)
	w.Apply(&cgm.Reading{SGV: 100, Direction: cgm.DirectionFlat, Timestamp: wNow.Add(-6 * time.Minute)}, nil)

	st := w.Current()
	if st.Reading == nil || st.Reading.SGV != 200 {
		t.Errorf("reading = %+v, want the newer 200", st.Reading)
	}
	if !strings.Contains(st.Label, "200") {
		t.Errorf("label = %q", st.Label)
	}
	if r, _ := w.Reading(); r.SGV != 200 {
		t.Errorf("Reading().SGV = %v", r.SGV)
	}
	if len(notified) != 1 || notified[0] != 200 {
		t.Errorf("notified = %v, want only the newer reading", notified)
	}

	// An equal timestamp is a re-delivery of the same value and is applied.
	w.Apply(&cgm.Reading{SGV: 201, Direction: cgm.DirectionFlat, Timestamp: wNow.Add(-time.Minute)}, nil)
	if st := w.Current(); st.Reading.SGV != 201 {
		t.Errorf("same-timestamp reading not applied: %+v", st.Reading)
	}
}

func TestConcurrentApplyKeepsNewest(t *testing.T) {
	w := wNew(t, wSettings(t), &stubClient{})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w.Apply(&cgm.Reading{SGV: float64(100 + i), Timestamp: wNow.Add(time.Duration(i-60) * time.Minute)}, nil)
		}(i)
	}
	wg.Wait()

	st := w.Current()
	if st.Reading == nil || st.Reading.SGV != 149 {
		t.Errorf("stored state = %+v, want the newest reading 149", st.Reading)
	}
	if r, _ := w.Reading(); r.SGV != st.Reading.SGV {
		t.Errorf("stored state %v disagrees with reading %v", st.Reading.SGV, r.SGV)
	}
}

func TestLeftClickOpensCGMOnce(t *testing.T) {
	var opened []string
	opener := func(ctx context.Context, url string) error {
		opened = append(opened, url)
		return nil
	}
	w := wNew(t, wSettings(t), &stubClient{}, WithOpener(opener))

	a, err := w.OnClick(context.Background(), actions.ButtonLeft)
	if err != nil {
		t.Fatal(err)
	}
	if a != actions.OpenCGM {
		t.Errorf("action = %q", a)
	}
	if len(opened) != 1 || opened[0] != "https://cgm.example" {
		t.Errorf("opened = %v, want exactly one open of the host", opened)
	}

	for _, b := range []actions.Button{actions.ButtonMiddle, actions.ButtonRight} {
		if _, err := w.OnClick(context.Background(), b); err != nil {
			t.Errorf("%s: %v", b, err)
		}
	}
	if len(opened) != 1 {
		t.Errorf("do_nothing buttons opened the browser: %v", opened)
	}
}

func TestUnknownActionIsNoOp(t *testing.T) {
	s := wSettings(t)
	s.Callbacks = map[string]string{"on_left": "launch_rockets"}
	called := false
	w := wNew(t, s, &stubClient{}, WithOpener(func(context.Context, string) error {
		called = true
		return nil
	}))

	a, err := w.OnClick(context.Background(), actions.ButtonLeft)
	if err != nil || a != "" || called {
		t.Errorf("OnClick = %q, %v (opened=%v), want silent no-op", a, err, called)
	}
	if b := w.Binding(actions.ButtonLeft); b.Known || b.Name != "launch_rockets" {
		t.Errorf("binding = %+v", b)
	}
}

func TestRefreshAction(t *testing.T) {
	client := &stubClient{}
	client.set([]nightscout.Entry{{SGV: 99, Date: wNow}}, nil, false)
	s := wSettings(t)
	s.Callbacks = map[string]string{"on_right": "refresh"}
	w := wNew(t, s, client)

	if a, err := w.OnClick(context.Background(), actions.ButtonRight); err != nil || a != actions.Refresh {
		t.Fatalf("OnClick = %q, %v", a, err)
	}
	if st := w.Current(); st.Reading == nil || st.Reading.SGV != 99 {
		t.Errorf("refresh did not poll: %+v", st)
	}

	triggered := 0
	w = wNew(t, s, client, WithRefresher(func(context.Context) error {
		triggered++
		return nil
	}))
	_, _ = w.OnClick(context.Background(), actions.ButtonRight)
	if triggered != 1 {
		t.Errorf("refresher called %d times, want 1", triggered)
	}
}

func TestHandleUpdate(t *testing.T) {
	var changes []RenderedState
	w := wNew(t, wSettings(t), &stubClient{}, WithOnChange(func(st RenderedState) {
		changes = append(changes, st)
	}))

	w.HandleUpdate(collectors.Update{Source: "other", Data: 1})
	if len(changes) != 0 {
		t.Fatalf("foreign update changed state")
	}

	w.HandleUpdate(collectors.Update{
		Source: nightscout.Name,
		Data:   &cgm.Reading{SGV: 200, Direction: cgm.DirectionDoubleUp, Timestamp: wNow},
	})
	if len(changes) != 1 || changes[0].Label != "🩸200⬆️⬆️" {
		t.Errorf("changes = %+v", changes)
	}

	w.HandleUpdate(collectors.Update{Source: nightscout.Name, Error: collectors.ErrBusy})
	if len(changes) != 1 {
		t.Errorf("busy update produced a state change")
	}
}

func TestTickAdvancesElapsed(t *testing.T) {
	now := wNow
	w := wNew(t, wSettings(t), &stubClient{}, WithClock(func() time.Time { return now }))
	w.Seed(cgm.Reading{SGV: 100, Direction: cgm.DirectionFlat, Timestamp: wNow})
	if w.Current().ElapsedMinutes != 0 {
		t.Fatal("seeded reading should be fresh")
	}
	now = wNow.Add(16 * time.Minute)
	st := w.Tick()
	if st.ElapsedMinutes != 16 || !st.Stale {
		t.Errorf("after tick = %+v", st)
	}
}

func TestPlainLabelStripsMarkup(t *testing.T) {
	s := wSettings(t)
	s.Label = `<span font="Nerd">🩸</span>{sgv}`
	w := wNew(t, s, &stubClient{})
	st := w.Render(&cgm.Reading{SGV: 101, Timestamp: wNow}, wNow)
	if st.PlainLabel() != "🩸101" {
		t.Errorf("PlainLabel() = %q", st.PlainLabel())
	}
	if !strings.Contains(st.Label, "<span") {
		t.Errorf("Label lost markup: %q", st.Label)
	}
}

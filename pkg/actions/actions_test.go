package actions

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseButton(t *testing.T) {
	tests := map[string]Button{
		"left":     ButtonLeft,
		"LEFT":     ButtonLeft,
		"on_right": ButtonRight,
		"middle":   ButtonMiddle,
		"1":        ButtonLeft,
		"3":        ButtonRight,
	}
	for in, want := range tests {
		got, err := ParseButton(in)
		if err != nil || got != want {
			t.Errorf("ParseButton(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	for _, bad := range []string{"back", "4", ""} {
		if _, err := ParseButton(bad); err == nil {
			t.Errorf("ParseButton(%q) should fail", bad)
		}
	}
}

func TestBindingsDefaults(t *testing.T) {
	b := Bindings(nil)
	if got := b[ButtonLeft]; got.Action != OpenCGM || !got.Known {
		t.Errorf("left = %+v, want open_cgm", got)
	}
	if got := b[ButtonMiddle]; got.Action != DoNothing {
		t.Errorf("middle = %+v, want do_nothing", got)
	}
	if got := b[ButtonRight]; got.Action != DoNothing {
		t.Errorf("right = %+v, want do_nothing", got)
	}
}

func TestBindingsPartialOverride(t *testing.T) {
	b := Bindings(map[string]string{"on_right": "refresh", "on_middle": "explode"})
	if got := b[ButtonLeft]; got.Action != OpenCGM {
		t.Errorf("left = %+v, want default open_cgm", got)
	}
	if got := b[ButtonRight]; got.Action != Refresh || !got.Known {
		t.Errorf("right = %+v, want refresh", got)
	}
	if got := b[ButtonMiddle]; got.Known || got.Name != "explode" {
		t.Errorf("middle = %+v, want unknown explode", got)
	}
}

func TestDispatchLeftOpensOnce(t *testing.T) {
	d := NewDispatcher(nil, quietLogger())
	calls := map[Action]int{}
	for _, a := range []Action{OpenCGM, DoNothing, Refresh} {
		a := a
		d.Register(a, func(context.Context) error {
			calls[a]++
			return nil
		})
	}

	got, ran, err := d.Dispatch(context.Background(), ButtonLeft)
	if err != nil || !ran || got != OpenCGM {
		t.Fatalf("Dispatch(left) = %v, %v, %v", got, ran, err)
	}
	if calls[OpenCGM] != 1 {
		t.Errorf("open_cgm calls = %d, want 1", calls[OpenCGM])
	}
	if calls[DoNothing] != 0 || calls[Refresh] != 0 {
		t.Errorf("other actions fired: %v", calls)
	}
}

func TestDispatchUnknownIsNoop(t *testing.T) {
	d := NewDispatcher(map[string]string{"on_left": "launch_rockets"}, quietLogger())
	fired := false
	d.Register(OpenCGM, func(context.Context) error {
		fired = true
		return nil
	})

	_, ran, err := d.Dispatch(context.Background(), ButtonLeft)
	if err != nil || ran {
		t.Errorf("Dispatch = ran %v, err %v; want no-op", ran, err)
	}
	if fired {
		t.Error("open_cgm fired for an unknown binding")
	}
}

func TestDispatchMissingHandler(t *testing.T) {
	d := NewDispatcher(map[string]string{"on_left": "refresh"}, quietLogger())
	a, ran, err := d.Dispatch(context.Background(), ButtonLeft)
	if ran || err != nil || a != Refresh {
		t.Errorf("Dispatch = %v, %v, %v; want refresh not run", a, ran, err)
	}
}

func TestDispatchHandlerError(t *testing.T) {
	d := NewDispatcher(nil, quietLogger())
	boom := errors.New("no browser")
	d.Register(OpenCGM, func(context.Context) error { return boom })

	_, ran, err := d.Dispatch(context.Background(), ButtonLeft)
	if !ran || !errors.Is(err, boom) {
		t.Errorf("Dispatch = ran %v, err %v; want wrapped handler error", ran, err)
	}
}

func TestKnownSorted(t *testing.T) {
	got := Known()
	want := []string{"do_nothing", "open_cgm", "refresh"}
	if len(got) != len(want) {
		t.Fatalf("Known() = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Known()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

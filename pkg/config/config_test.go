package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"

	"gitlab.com/tinyland/lab/glucose-pulse/pkg/cgm"
)

// cfgClearEnv blanks every override so a developer's shell cannot leak into
// the test.
func cfgClearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"GLUCOSE_PULSE_HOST", "GLUCOSE_PULSE_SECRET",
		"GLUCOSE_PULSE_UNITS", "GLUCOSE_PULSE_LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

func cfgWrite(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	g := cfg.Glucose

	if g.Label != "🩸{sgv}{direction}" {
		t.Errorf("Label = %q", g.Label)
	}
	if g.Tooltip != "({sgv_delta}) {delta_time_in_minutes} min" {
		t.Errorf("Tooltip = %q", g.Tooltip)
	}
	if g.Units != "mg/dl" {
		t.Errorf("Units = %q", g.Units)
	}
	if g.PollInterval.Duration != time.Minute {
		t.Errorf("PollInterval = %v", g.PollInterval)
	}
	if g.RequestTimeout.Duration != 10*time.Second {
		t.Errorf("RequestTimeout = %v", g.RequestTimeout)
	}
	if g.StaleAfter.Duration != 15*time.Minute {
		t.Errorf("StaleAfter = %v", g.StaleAfter)
	}
	if got := g.ResolvedCallbacks(); got["on_left"] != "open_cgm" || got["on_middle"] != "do_nothing" || got["on_right"] != "do_nothing" {
		t.Errorf("callbacks = %v", got)
	}
	if got := g.Icons(); len(got) != 7 || got["flat"] != "➡️" || got["double_down"] != "⬇️⬇️" {
		t.Errorf("icons = %v", got)
	}
	if cfg.StateTTL() != 30*time.Minute {
		t.Errorf("StateTTL = %v, want 2x stale_after", cfg.StateTTL())
	}
}

func TestLoadTOMLMergesPartialTables(t *testing.T) {
	cfgClearEnv(t)
	dir := t.TempDir()
	p := cfgWrite(t, dir, "config.toml", `
[general]
log_level = "debug"

[glucose]
host = "https://cgm.example"
secret = "hunter2"
sgv_measurement_units = "mmol/l"
poll_interval = "2m"

[glucose.direction_icons]
flat = "→"

[glucose.callbacks]
on_right = "refresh"
`)

	cfg, err := LoadFromFile(p)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.Path() != p {
		t.Errorf("Path() = %q", cfg.Path())
	}
	g := cfg.Glucose
	if g.Host != "https://cgm.example" || g.Units != "mmol/l" || g.PollInterval.Duration != 2*time.Minute {
		t.Errorf("glucose = %+v", g)
	}
	icons := g.Icons()
	if icons["flat"] != "→" || icons["single_up"] != "⬆️" {
		t.Errorf("icons not merged over defaults: %v", icons)
	}
	cbs := g.ResolvedCallbacks()
	if cbs["on_right"] != "refresh" || cbs["on_left"] != "open_cgm" {
		t.Errorf("callbacks not merged over defaults: %v", cbs)
	}
	if g.Tooltip != DefaultConfig().Glucose.Tooltip {
		t.Errorf("unset key lost its default: tooltip = %q", g.Tooltip)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadYAML(t *testing.T) {
	cfgClearEnv(t)
	dir := t.TempDir()
	p := cfgWrite(t, dir, "config.yaml", `
glucose:
  label: "<span>🩸</span>{sgv}"
  host: http://localhost:1337
  secret: env
  secret_env_name: NS_SECRET
  stale_after: 20m
  direction_icons:
    double_up: "⇈"
`)
	cfg, err := LoadFromFile(p)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	g := cfg.Glucose
	if g.Label != "<span>🩸</span>{sgv}" || g.Secret != "env" || g.SecretEnvName != "NS_SECRET" {
		t.Errorf("glucose = %+v", g)
	}
	if g.StaleAfter.Duration != 20*time.Minute {
		t.Errorf("StaleAfter = %v", g.StaleAfter)
	}
	if g.Icons()["double_up"] != "⇈" {
		t.Errorf("icons = %v", g.Icons())
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	cfgClearEnv(t)
	dir := t.TempDir()

	toml := cfgWrite(t, dir, "a.toml", "[glucose]\nhots = \"https://x\"\n")
	if _, err := LoadFromFile(toml); err == nil || !strings.Contains(err.Error(), "hots") {
		t.Errorf("toml typo err = %v", err)
	}

	yml := cfgWrite(t, dir, "b.yml", "glucose:\n  hots: https://x\n")
	if _, err := LoadFromFile(yml); err == nil {
		t.Error("yaml typo should fail")
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.toml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want ErrNotExist", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	cfgClearEnv(t)
	t.Setenv("GLUCOSE_PULSE_HOST", "https://env.example")
	t.Setenv("GLUCOSE_PULSE_UNITS", "mmol/l")
	t.Setenv("GLUCOSE_PULSE_LOG_LEVEL", "warn")

	cfg, err := LoadFromReader(strings.NewReader("[glucose]\nhost = \"https://file.example\"\n"), FormatTOML)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Glucose.Host != "https://env.example" {
		t.Errorf("Host = %q, env should win", cfg.Glucose.Host)
	}
	if cfg.Glucose.Units != "mmol/l" || cfg.General.LogLevel != "warn" {
		t.Errorf("overrides not applied: %+v %+v", cfg.Glucose, cfg.General)
	}
}

func TestLoadSearchPath(t *testing.T) {
	cfgClearEnv(t)
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	dir := filepath.Join(xdg, AppName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	p := cfgWrite(t, dir, "config.yml", "glucose:\n  host: https://found.example\n")

	if got := FindConfigFile(); got != p {
		t.Errorf("FindConfigFile() = %q, want %q", got, p)
	}
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Glucose.Host != "https://found.example" {
		t.Errorf("Host = %q", cfg.Glucose.Host)
	}
}

func TestDotEnvNextToConfig(t *testing.T) {
	cfgClearEnv(t)
	const key = "GLUCOSE_PULSE_TEST_DOTENV_SECRET"
	t.Cleanup(func() { os.Unsetenv(key) })

	dir := t.TempDir()
	cfgWrite(t, dir, ".env", key+"=from-dotenv\n")
	p := cfgWrite(t, dir, "config.toml", `
[glucose]
host = "https://cgm.example"
secret = "env"
secret_env_name = "`+key+`"
`)

	cfg, err := LoadFromFile(p)
	if err != nil {
		t.Fatal(err)
	}
	if v := os.Getenv(key); v != "from-dotenv" {
		t.Errorf("%s = %q after load", key, v)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidateAggregatesErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.General.LogLevel = "loud"
	cfg.Glucose.Host = "cgm.example"
	cfg.Glucose.Units = "mg/L"
	cfg.Glucose.Secret = "env"
	cfg.Glucose.SecretEnvName = "MISSING"
	cfg.Glucose.DirectionIcons = map[string]string{"sideways": "x"}
	cfg.Glucose.Callbacks = map[string]string{"on_double": "refresh"}
	cfg.Glucose.PollInterval = Duration{time.Millisecond}
	cfg.Glucose.EntriesCount = 0

	err := cfg.validate(func(string) (string, bool) { return "", false })
	var merr *multierror.Error
	if !errors.As(err, &merr) {
		t.Fatalf("err = %T, want *multierror.Error", err)
	}

	fields := map[string]bool{}
	for _, e := range merr.Errors {
		var ce *cgm.ConfigError
		if !errors.As(e, &ce) {
			t.Errorf("aggregated error %v is not a ConfigError", e)
			continue
		}
		fields[ce.Field] = true
	}
	for _, want := range []string{
		"general.log_level", "host", "sgv_measurement_units", "secret_env_name",
		"direction_icons", "callbacks", "poll_interval", "entries_count",
	} {
		if !fields[want] {
			t.Errorf("missing error for %s; got %v", want, fields)
		}
	}
}

func TestValidateRejectsUnitVariants(t *testing.T) {
	for _, units := range []string{"MG/DL", "mmol/L", " mg/dl", "mmol/l ", "mgdl"} {
		cfg := DefaultConfig()
		cfg.Glucose.Host = "https://cgm.example"
		cfg.Glucose.Units = units
		err := cfg.validate(func(string) (string, bool) { return "", false })
		var ce *cgm.ConfigError
		if !errors.As(err, &ce) || ce.Field != "sgv_measurement_units" {
			t.Errorf("units %q: err = %v, want units ConfigError", units, err)
		}
	}
}

func TestEnvUnitsAreNotNormalised(t *testing.T) {
	cfgClearEnv(t)
	t.Setenv("GLUCOSE_PULSE_UNITS", "MMOL/L")

	cfg, err := LoadFromReader(strings.NewReader("[glucose]\nhost = \"https://file.example\"\n"), FormatTOML)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Glucose.Units != "MMOL/L" {
		t.Errorf("Units = %q, want the value as given", cfg.Glucose.Units)
	}
	if err := cfg.validate(func(string) (string, bool) { return "", false }); err == nil {
		t.Error("upper-case units from the environment should fail validation")
	}
}

func TestValidateOK(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Glucose.Host = "https://cgm.example"
	cfg.Glucose.Secret = "env"
	cfg.Glucose.SecretEnvName = "NS"
	lookup := func(k string) (string, bool) { return "s3cret", k == "NS" }
	if err := cfg.validate(lookup); err != nil {
		t.Errorf("validate: %v", err)
	}
}

func TestDurationUnmarshal(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"90s", 90 * time.Second, false},
		{"", 0, false},
		{"soon", 0, true},
		{"-1m", 0, true},
		{"60", time.Minute, false},
		{"1.5", 1500 * time.Millisecond, false},
	}
	for _, tt := range tests {
		var d Duration
		err := d.UnmarshalText([]byte(tt.in))
		if (err != nil) != tt.wantErr {
			t.Errorf("UnmarshalText(%q) err = %v", tt.in, err)
			continue
		}
		if !tt.wantErr && d.Duration != tt.want {
			t.Errorf("UnmarshalText(%q) = %v, want %v", tt.in, d.Duration, tt.want)
		}
	}
}

func TestDurationUnmarshalTOMLNumber(t *testing.T) {
	var d Duration
	if err := d.UnmarshalTOML(int64(120)); err != nil {
		t.Fatalf("UnmarshalTOML(120): %v", err)
	}
	if d.Duration != 2*time.Minute {
		t.Errorf("UnmarshalTOML(120) = %v, want 2m", d.Duration)
	}
	if err := d.UnmarshalTOML("5m"); err != nil || d.Duration != 5*time.Minute {
		t.Errorf("UnmarshalTOML(5m) = %v, %v", d.Duration, err)
	}
	if err := d.UnmarshalTOML([]interface{}{1}); err == nil {
		t.Error("UnmarshalTOML(array) should fail")
	}
}

func TestRuntimePaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.General.CacheDir = "/tmp/gp-cache"

	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	if got := cfg.SocketPath(); got != "/run/user/1000/glucose-pulse/daemon.sock" {
		t.Errorf("SocketPath() = %q", got)
	}

	t.Setenv("XDG_RUNTIME_DIR", "")
	if got := cfg.PIDPath(); got != "/tmp/gp-cache/daemon.pid" {
		t.Errorf("PIDPath() = %q", got)
	}
	cfg.Daemon.SocketPath = "/tmp/custom.sock"
	if got := cfg.SocketPath(); got != "/tmp/custom.sock" {
		t.Errorf("SocketPath() = %q", got)
	}
}

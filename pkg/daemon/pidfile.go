// Package daemon runs glucose-pulse in the background: it owns the collector
// runner and the widget, publishes state to the cache and health file, serves
// IPC requests on a unix socket, and rebuilds the widget when the config file
// changes.
package daemon

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// AcquirePID records this process in the PID file at path. A file naming a
// live process means another daemon owns the socket; a file naming a dead
// one is taken over.
func AcquirePID(path string) error {
	if pid, ok := RunningPID(path); ok {
		return fmt.Errorf("daemon already running (PID %d)", pid)
	}
	if err := writeFileAtomic(path, []byte(strconv.Itoa(os.Getpid())+"\n")); err != nil {
		return fmt.Errorf("write PID file: %w", err)
	}
	return nil
}

// ReleasePID removes the PID file. A missing file is not an error.
func ReleasePID(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove PID file: %w", err)
	}
	return nil
}

func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read PID file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse PID file: %w", err)
	}
	return pid, nil
}

// IsProcessAlive asks gopsutil rather than signalling the process, so it
// works the same for processes owned by other users.
func IsProcessAlive(pid int) bool {
	if pid <= 0 || pid > math.MaxInt32 {
		return false
	}
	alive, err := process.PidExists(int32(pid))
	return err == nil && alive
}

// RunningPID returns the PID recorded at path if that process is alive.
func RunningPID(path string) (int, bool) {
	pid, err := ReadPID(path)
	if err != nil || !IsProcessAlive(pid) {
		return 0, false
	}
	return pid, true
}

// writeFileAtomic replaces path via a temp file in the same directory so
// readers never see a partial write.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// Package platform provides platform-specific abstractions for Darwin (macOS)
// and Linux: daemon service management and handing URLs to the desktop.
package platform

import "runtime"

// Platform identifies the current OS platform.
type Platform string

const (
	// Darwin represents macOS.
	Darwin Platform = "darwin"
	// Linux represents Linux distributions.
	Linux Platform = "linux"
)

// Current returns the platform for the running OS.
func Current() Platform {
	return Platform(runtime.GOOS)
}

// ServiceConfig holds daemon service configuration for launchd or systemd.
type ServiceConfig struct {
	BinaryPath string // absolute path to the glucose-pulse binary
	ConfigPath string // config file passed with --config, may be empty
	LogPath    string // stdout/stderr of the service
}

// ServiceName is the systemd unit name.
const ServiceName = "glucose-pulse.service"

// LaunchdLabel is the launchd job label.
const LaunchdLabel = "com.tinyland.glucose-pulse"

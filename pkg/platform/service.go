package platform

import (
	"fmt"
	"html"
	"path/filepath"
	"strings"
)

// daemonArgs returns the arguments the service starts the binary with.
func daemonArgs(cfg ServiceConfig) []string {
	args := []string{"daemon"}
	if cfg.ConfigPath != "" {
		args = append(args, "--config", cfg.ConfigPath)
	}
	return args
}

// GenerateSystemdUnit renders a systemd user service unit.
func GenerateSystemdUnit(cfg ServiceConfig) string {
	exec := append([]string{cfg.BinaryPath}, daemonArgs(cfg)...)
	return fmt.Sprintf(`[Unit]
Description=glucose-pulse Nightscout glucose poller
After=network-online.target

[Service]
Type=simple
ExecStart=%s
Restart=on-failure
RestartSec=5
StandardOutput=append:%s
StandardError=append:%s
Environment=PATH=/usr/local/bin:/usr/bin:/bin

[Install]
WantedBy=default.target
`, strings.Join(exec, " "), cfg.LogPath, cfg.LogPath)
}

// GenerateLaunchdPlist renders a launchd agent plist.
func GenerateLaunchdPlist(cfg ServiceConfig) string {
	var args strings.Builder
	for _, a := range append([]string{cfg.BinaryPath}, daemonArgs(cfg)...) {
		fmt.Fprintf(&args, "\t\t<string>%s</string>\n", html.EscapeString(a))
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>Label</key>
	<string>%s</string>
	<key>ProgramArguments</key>
	<array>
%s	</array>
	<key>RunAtLoad</key>
	<true/>
	<key>KeepAlive</key>
	<true/>
	<key>StandardOutPath</key>
	<string>%s</string>
	<key>StandardErrorPath</key>
	<string>%s</string>
	<key>EnvironmentVariables</key>
	<dict>
		<key>PATH</key>
		<string>/usr/local/bin:/usr/bin:/bin:/usr/sbin:/sbin</string>
	</dict>
</dict>
</plist>
`, LaunchdLabel, args.String(), html.EscapeString(cfg.LogPath), html.EscapeString(cfg.LogPath))
}

// SystemdUnitPath returns the user unit location under home.
func SystemdUnitPath(home string) string {
	return filepath.Join(home, ".config", "systemd", "user", ServiceName)
}

// LaunchdPlistPath returns the agent plist location under home.
func LaunchdPlistPath(home string) string {
	return filepath.Join(home, "Library", "LaunchAgents", LaunchdLabel+".plist")
}

// ServiceFile returns where the service definition for p lives and what it
// contains, without touching the system.
func ServiceFile(p Platform, home string, cfg ServiceConfig) (string, string, error) {
	switch p {
	case Linux:
		return SystemdUnitPath(home), GenerateSystemdUnit(cfg), nil
	case Darwin:
		return LaunchdPlistPath(home), GenerateLaunchdPlist(cfg), nil
	}
	return "", "", fmt.Errorf("service management is not supported on %s", p)
}

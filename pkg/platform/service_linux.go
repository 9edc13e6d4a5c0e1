//go:build linux

package platform

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// InstallService writes the systemd user unit and enables it.
func InstallService(cfg ServiceConfig) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	unitPath := SystemdUnitPath(home)

	if err := os.MkdirAll(filepath.Dir(unitPath), 0755); err != nil {
		return "", fmt.Errorf("creating systemd user directory: %w", err)
	}
	if err := os.WriteFile(unitPath, []byte(GenerateSystemdUnit(cfg)), 0644); err != nil {
		return "", fmt.Errorf("writing unit file: %w", err)
	}

	if err := exec.Command("systemctl", "--user", "daemon-reload").Run(); err != nil {
		return unitPath, fmt.Errorf("reloading systemd: %w", err)
	}
	if err := exec.Command("systemctl", "--user", "enable", "--now", ServiceName).Run(); err != nil {
		return unitPath, fmt.Errorf("enabling service: %w", err)
	}
	return unitPath, nil
}

// UninstallService stops, disables, and removes the unit.
func UninstallService() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	// Not running is fine.
	_ = exec.Command("systemctl", "--user", "stop", ServiceName).Run()
	_ = exec.Command("systemctl", "--user", "disable", ServiceName).Run()

	if err := os.Remove(SystemdUnitPath(home)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing unit file: %w", err)
	}

	_ = exec.Command("systemctl", "--user", "daemon-reload").Run()
	return nil
}

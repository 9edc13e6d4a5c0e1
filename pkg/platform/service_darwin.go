//go:build darwin

package platform

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// InstallService writes the launchd plist and loads it via launchctl.
func InstallService(cfg ServiceConfig) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	plistPath := LaunchdPlistPath(home)

	if err := os.MkdirAll(filepath.Dir(plistPath), 0755); err != nil {
		return "", fmt.Errorf("creating LaunchAgents directory: %w", err)
	}
	if err := os.WriteFile(plistPath, []byte(GenerateLaunchdPlist(cfg)), 0644); err != nil {
		return "", fmt.Errorf("writing plist: %w", err)
	}

	// Unload first if already loaded.
	_ = exec.Command("launchctl", "unload", plistPath).Run()

	if err := exec.Command("launchctl", "load", plistPath).Run(); err != nil {
		return plistPath, fmt.Errorf("loading launchd service: %w", err)
	}
	return plistPath, nil
}

// UninstallService unloads and removes the plist.
func UninstallService() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	plistPath := LaunchdPlistPath(home)

	_ = exec.Command("launchctl", "unload", plistPath).Run()

	if err := os.Remove(plistPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing plist: %w", err)
	}
	return nil
}

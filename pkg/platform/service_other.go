//go:build !linux && !darwin

package platform

// InstallService is unsupported here.
func InstallService(ServiceConfig) (string, error) {
	_, _, err := ServiceFile(Current(), "", ServiceConfig{})
	return "", err
}

// UninstallService is unsupported here.
func UninstallService() error {
	_, _, err := ServiceFile(Current(), "", ServiceConfig{})
	return err
}

package platform

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
)

// openCommand returns the program and leading args that hand a URL to the
// desktop's default browser.
func openCommand(goos string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler"}
	default:
		return "xdg-open", nil
	}
}

// OpenURL opens url in the default browser and returns once the launcher has
// been started. The launcher outlives ctx so a short click deadline does not
// kill it.
func OpenURL(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, args := openCommand(runtime.GOOS)
	cmd := exec.Command(name, append(args, url)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

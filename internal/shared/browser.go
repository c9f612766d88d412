package shared

import (
	"fmt"
	"os/exec"
	"runtime"
)

// launchers maps GOOS to the command that hands a URL to the default
// browser.
var launchers = map[string][]string{
	"darwin":  {"open"},
	"linux":   {"xdg-open"},
	"windows": {"cmd", "/c", "start"},
}

// OpenBrowser sends url to the user's default browser without waiting
// for it to exit. Platforms without a known launcher get an error so
// the caller can fall back to printing the URL.
func OpenBrowser(url string) error {
	launcher, ok := launchers[runtime.GOOS]
	if !ok {
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	cmd := exec.Command(launcher[0], append(launcher[1:], url)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}

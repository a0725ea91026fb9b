package shared

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
)

var getRuntime = func() string { return runtime.GOOS }

// browserCommand returns the platform command that opens target with the default handler.
func browserCommand(goos, target string) (*exec.Cmd, error) {
	switch goos {
	case "darwin":
		return exec.Command("open", target), nil
	case "linux":
		return exec.Command("xdg-open", target), nil
	case "windows":
		return exec.Command("cmd", "/c", "start", target), nil
	default:
		return nil, fmt.Errorf("%w: cannot open browser on %s", ErrNotImplemented, goos)
	}
}

// OpenReport opens a rendered HTML report in the default system browser.
func OpenReport(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve report path: %w", err)
	}

	cmd, err := browserCommand(getRuntime(), "file://"+filepath.ToSlash(abs))
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}

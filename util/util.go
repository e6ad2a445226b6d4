// util contains small helpers shared by the examples and the callback
// package.
package util

import (
	"fmt"
	"os/exec"
	"runtime"
)

// OpenURL opens the given URL in the platform's default browser.
func OpenURL(url string) error {
	const op = "util.OpenURL"
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%s: unable to open browser: %w", op, err)
	}
	return nil
}

// Package browser opens a reporting device's web page in the system browser.
package browser

import (
	"fmt"
	"io"

	"github.com/pkg/browser"
)

// openURL is swapped out in tests so nothing is launched.
var openURL = browser.OpenURL

func init() {
	// The TUI owns the terminal; the opener's own output would tear the screen.
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard
}

// Open hands url to the platform's default browser.
func Open(url string) error {
	if err := openURL(url); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}

// Package browser hands URLs to the platform's default browser.
package browser

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

// command returns the launcher for goos, or nil when unsupported.
func command(goos, target string) *exec.Cmd {
	switch goos {
	case "darwin":
		return exec.Command("open", target)
	case "linux", "freebsd", "openbsd":
		return exec.Command("xdg-open", target)
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", target)
	}
	return nil
}

// Open opens an http(s) URL in the default browser. Other schemes are
// refused so a crafted result URL cannot launch local handlers.
func Open(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("browser.Open: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("browser.Open: refusing %q URL", u.Scheme)
	}
	cmd := command(runtime.GOOS, u.String())
	if cmd == nil {
		return fmt.Errorf("browser.Open: unsupported OS: %s", runtime.GOOS)
	}
	return cmd.Start()
}

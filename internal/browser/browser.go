// Package browser opens wheel pages in the desktop browser of the machine
// running the server.
package browser

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
	"strings"
)

// Commander starts a process without waiting for it
type Commander interface {
	Start(name string, args ...string) error
}

// RealCommander executes actual commands
type RealCommander struct{}

// Start runs the command in the background
func (RealCommander) Start(name string, args ...string) error {
	return exec.Command(name, args...).Start()
}

var defaultCommander Commander = RealCommander{}

// Page joins a base URL and a page path, e.g. Page("http://10.0.0.2:8081", "/rewards")
func Page(baseURL, path string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid base url %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid base url %q: missing host", baseURL)
	}
	return u.JoinPath(path).String(), nil
}

// Open opens path under baseURL in the default browser
func Open(baseURL, path string) error {
	target, err := Page(baseURL, path)
	if err != nil {
		return err
	}
	return OpenWithCommander(target, defaultCommander, runtime.GOOS)
}

// OpenWithCommander opens target using commander as goos would
func OpenWithCommander(target string, commander Commander, goos string) error {
	var name string
	var args []string

	switch goos {
	case "linux", "freebsd", "openbsd", "netbsd", "dragonfly":
		name = "xdg-open"
		args = []string{target}
	case "darwin":
		name = "open"
		args = []string{target}
	case "windows":
		name = "rundll32"
		args = []string{"url.dll,FileProtocolHandler", target}
	default:
		return fmt.Errorf("unsupported platform: %s", goos)
	}

	if err := commander.Start(name, args...); err != nil {
		return fmt.Errorf("open %s: %w", target, err)
	}
	return nil
}

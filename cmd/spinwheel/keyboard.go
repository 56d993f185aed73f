package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/kdashto/spinwheel/internal/browser"
	"github.com/kdashto/spinwheel/internal/logger"
)

const ctrlC = 0x03

// keyActions carries what the terminal shortcuts act on
type keyActions struct {
	baseURL func() string
	log     *logger.SlogLogger
	out     io.Writer
	quit    func()
	open    func(baseURL, path string) error
}

// listenForKeyboard puts stdin in raw mode and handles single key presses
// until quit. The returned func restores the terminal.
func listenForKeyboard(k *keyActions) (func(), error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("stdin is not a terminal")
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	restore := func() { term.Restore(fd, oldState) }

	go func() {
		buf := make([]byte, 1)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				return
			}
			if n == 1 && !k.handle(buf[0]) {
				return
			}
		}
	}()
	return restore, nil
}

// handle runs the action bound to key. It returns false once the server
// should shut down.
func (k *keyActions) handle(key byte) bool {
	if key == ctrlC {
		return k.shutdown()
	}

	switch strings.ToLower(string(key)) {
	case "o":
		k.openPage("/", "wheel")
	case "r":
		k.openPage("/rewards", "rewards page")
	case "h":
		if k.log.IsHTTPLoggingEnabled() {
			k.log.DisableHTTPLogging()
			fmt.Fprintf(k.out, "%sHTTP logging disabled%s\n", yellow, reset)
		} else {
			k.log.EnableHTTPLogging()
			fmt.Fprintf(k.out, "%sHTTP logging enabled%s\n", green, reset)
		}
	case "l":
		cycleLogLevel(k.log, k.out)
	case "q":
		return k.shutdown()
	case "?":
		printKeyboardHelp(k.out)
	}
	return true
}

func (k *keyActions) shutdown() bool {
	fmt.Fprintf(k.out, "%sShutting down server...%s\n", yellow, reset)
	k.quit()
	return false
}

func (k *keyActions) openPage(path, name string) {
	open := k.open
	if open == nil {
		open = browser.Open
	}
	fmt.Fprintf(k.out, "%sOpening %s in browser...%s\n", cyan, name, reset)
	if err := open(k.baseURL(), path); err != nil {
		fmt.Fprintf(k.out, "%sError opening browser: %v%s\n", red, err, reset)
	}
}

// cycleLogLevel cycles through debug -> info -> warn -> error
func cycleLogLevel(appLog *logger.SlogLogger, out io.Writer) {
	var next string
	switch appLog.GetLevel().String() {
	case "DEBUG":
		next = "info"
	case "INFO":
		next = "warn"
	case "WARN":
		next = "error"
	case "ERROR":
		next = "debug"
	default:
		next = "info"
	}

	appLog.SetLevel(logger.ParseLevel(next))
	fmt.Fprintf(out, "%sLog level: %s%s%s\n", green, yellow, next, reset)
}

// printKeyboardHelp displays all available keyboard shortcuts
func printKeyboardHelp(out io.Writer) {
	fmt.Fprintf(out, "\n%s%s  Keyboard Shortcuts:%s\n", bold, green, reset)
	fmt.Fprintf(out, "    %so%s      - Open the wheel in browser\n", cyan, reset)
	fmt.Fprintf(out, "    %sr%s      - Open the rewards page in browser\n", cyan, reset)
	fmt.Fprintf(out, "    %sh%s      - Toggle HTTP request logging\n", cyan, reset)
	fmt.Fprintf(out, "    %sl%s      - Cycle log level (debug → info → warn → error)\n", cyan, reset)
	fmt.Fprintf(out, "    %sq%s      - Quit server\n", cyan, reset)
	fmt.Fprintf(out, "    %s?%s      - Show this help\n\n", cyan, reset)
}

// crlfWriter turns \n into \r\n for a terminal in raw mode
type crlfWriter struct {
	w io.Writer
}

func (c crlfWriter) Write(p []byte) (int, error) {
	if _, err := io.WriteString(c.w, strings.ReplaceAll(string(p), "\n", "\r\n")); err != nil {
		return 0, err
	}
	return len(p), nil
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/kdashto/spinwheel/internal/app"
	"github.com/kdashto/spinwheel/internal/auth"
	"github.com/kdashto/spinwheel/internal/catalog"
	"github.com/kdashto/spinwheel/internal/config"
	"github.com/kdashto/spinwheel/internal/logger"
	"github.com/kdashto/spinwheel/web"
)

// ANSI escape codes
const (
	clearLine = "\033[2K"
	moveUp    = "\033[%dA"
	reset     = "\033[0m"
	yellow    = "\033[33m"
	red       = "\033[31m"
	green     = "\033[32m"
	cyan      = "\033[36m"
	bold      = "\033[1m"
)

var version = "dev"

const boxWidth = 62

// showStartupAnimation prints the logo, then a reel of prizes that slows
// down under a pointer unless skipSpin is set
func showStartupAnimation(out io.Writer, skipSpin bool) {
	border := strings.Repeat("═", boxWidth)
	logo := []string{
		"    ____        _      __        ___               _ ",
		"   / ___| _ __ (_)_ __ \\ \\      / / |__   ___  ___| |",
		"   \\___ \\| '_ \\| | '_ \\ \\ \\ /\\ / /| '_ \\ / _ \\/ _ \\ |",
		"    ___) | |_) | | | | | \\ V  V / | | | |  __/  __/ |",
		"   |____/| .__/|_|_| |_|  \\_/\\_/  |_| |_|\\___|\\___|_|",
		"         |_|                                         ",
	}

	fmt.Fprintf(out, "\n  %s╔%s╗%s\n", cyan, border, reset)
	for _, line := range logo {
		fmt.Fprintf(out, "  %s║%s%s%s║%s\n", cyan, yellow, pad(line, boxWidth), cyan, reset)
	}
	fmt.Fprintf(out, "  %s╚%s╝%s\n", cyan, border, reset)

	if skipSpin {
		fmt.Fprint(out, "\n")
		return
	}

	names := make([]string, 0, catalog.Default().Len())
	for _, s := range catalog.Default().Segments() {
		names = append(names, s.Name)
	}

	fmt.Fprintf(out, moveUp, 1)
	fmt.Fprintf(out, "%s  %s╠%s╣%s\n", clearLine, cyan, border, reset)

	pos := rand.IntN(len(names))
	delay := 40 * time.Millisecond
	const frames = 18
	for frame := 0; frame < frames; frame++ {
		pos = (pos + 1) % len(names)
		pointer := pad(strings.Repeat(" ", boxWidth/2-1)+"▼", boxWidth)
		reel := reelLine(names, pos, boxWidth)
		fmt.Fprintf(out, "%s  %s║%s%s%s║%s\n", clearLine, cyan, yellow, pointer, cyan, reset)
		fmt.Fprintf(out, "%s  %s║%s%s%s║%s\n", clearLine, cyan, reset, reel, cyan, reset)
		fmt.Fprintf(out, "%s  %s╚%s╝%s\n", clearLine, cyan, border, reset)
		if frame < frames-1 {
			fmt.Fprintf(out, moveUp, 3)
		}
		time.Sleep(delay)
		delay += delay / 6
	}

	fmt.Fprintf(out, moveUp, 3)
	result := pad(fmt.Sprintf("  Today's first prize: %s%s%s", green, names[pos], reset), boxWidth+len(green)+len(reset))
	fmt.Fprintf(out, "%s  %s║%s%s║%s\n", clearLine, cyan, result, cyan, reset)
	fmt.Fprintf(out, "%s  %s║%s%s║%s\n", clearLine, cyan, strings.Repeat(" ", boxWidth), cyan, reset)
	fmt.Fprintf(out, "%s  %s╚%s╝%s\n\n", clearLine, cyan, border, reset)
}

// reelLine centres names[pos] in a line of width runes, neighbours either side
func reelLine(names []string, pos, width int) string {
	n := len(names)
	center := "[" + names[pos] + "]"
	left := names[(pos-1+n)%n] + "  "
	right := "  " + names[(pos+1)%n]

	half := (width - runeLen(center)) / 2
	left = clipLeft(left, half)
	right = clipRight(right, width-half-runeLen(center))
	return pad(strings.Repeat(" ", half-runeLen(left))+left+center+right, width)
}

func runeLen(s string) int { return len([]rune(s)) }

func pad(s string, width int) string {
	if n := runeLen(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

func clipLeft(s string, width int) string {
	r := []rune(s)
	if len(r) > width {
		return string(r[len(r)-width:])
	}
	return s
}

func clipRight(s string, width int) string {
	r := []rune(s)
	if len(r) > width {
		return string(r[:width])
	}
	return s
}

const keyboardText = `
Every option can also be set with a SPINWHEEL_* environment variable
(for example SPINWHEEL_PORT=8080) or in a .env file.

Keyboard Shortcuts (when enabled):
  o              Open the wheel in the browser
  r              Open the rewards page in the browser
  h              Toggle HTTP request logging
  l              Cycle log level (debug → info → warn → error)
  q              Quit server
  ?              Show keyboard help

Examples:
  spinwheel                                   # Run on port 8081 with spinwheel.db
  spinwheel -port 8080 -code lucky-gold-star  # Fixed access code
  spinwheel -store redis -redis redis://cache:6379/2
  spinwheel -kafka broker1:9092 -kafkatopic spin.completed
  spinwheel -catalog prizes.json -cooldown 12h

`

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "%sspinwheel: %v%s\n", red, err, reset)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromOS()
	if errors.Is(err, flag.ErrHelp) {
		fmt.Fprint(os.Stderr, keyboardText)
		return nil
	}
	if err != nil {
		return err
	}
	if cfg.ShowVersion {
		fmt.Printf("spinwheel %s\n", version)
		return nil
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	showStartupAnimation(os.Stdout, cfg.NoAnimate)

	code := cfg.AccessCode
	if code == "" {
		code = auth.GenerateAccessCode()
	}
	userAuth := auth.New(code, cfg.JWTSecret)

	// raw mode turns off output processing, so log lines need explicit CRs
	keyboard := !cfg.NoKeyboard && term.IsTerminal(int(os.Stdin.Fd()))
	var out io.Writer = os.Stdout
	if keyboard {
		out = crlfWriter{w: os.Stdout}
	}
	appLog := logger.NewWithWriter(out, logger.ParseLevel(cfg.LogLevel))

	a, err := app.New(appLog, cfg, web.GetTemplatesFS(), web.GetStaticFS(), userAuth)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appLog.Info("Access code", "code", code)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- a.Run(ctx, fmt.Sprintf(":%d", cfg.Port))
	}()

	if keyboard {
		restore, err := listenForKeyboard(&keyActions{
			baseURL: a.BaseURL,
			log:     appLog,
			out:     out,
			quit:    stop,
		})
		if err != nil {
			appLog.Warn("Keyboard shortcuts unavailable", "error", err)
		} else {
			defer restore()
			printKeyboardHelp(out)
		}
	} else if cfg.NoKeyboard {
		fmt.Printf("\n%sKeyboard shortcuts disabled (use -nokeyboard=false to enable)%s\n\n", yellow, reset)
	}

	return <-serverErr
}

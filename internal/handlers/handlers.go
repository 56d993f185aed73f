package handlers

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/kdashto/spinwheel/internal/auth"
	"github.com/kdashto/spinwheel/internal/services"
	"github.com/kdashto/spinwheel/internal/websocket"
)

// NewStaticServer creates a static file server from an fs.FS
func NewStaticServer(staticFS fs.FS) http.Handler {
	return http.FileServer(http.FS(staticFS))
}

// Templates holds all parsed HTML templates
type Templates struct {
	Wheel   *template.Template
	Rewards *template.Template
	Claim   *template.Template
}

// PageOptions are presentation preferences passed to the wheel page
type PageOptions struct {
	ReducedMotion bool
	Keyboard      bool
	FrameRate     int
}

// HealthChecker reports whether the store is reachable
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Handlers holds all HTTP handler dependencies
type Handlers struct {
	Spin         services.SpinServicer
	Rewards      services.RewardServicer
	Settings     services.SettingsServicer
	Auth         *auth.Auth
	Hub          *websocket.Hub
	Health       HealthChecker
	Page         PageOptions
	Log          HTTPLogger
	templates    *Templates
	staticServer http.Handler
}

// HTTPLogger is an interface for loggers that support HTTP logging control
type HTTPLogger interface {
	IsHTTPLoggingEnabled() bool
}

// New creates a new Handlers instance with all dependencies
func New(
	spin services.SpinServicer,
	rewards services.RewardServicer,
	settings services.SettingsServicer,
	templatesFS fs.FS,
	staticServer http.Handler,
	userAuth *auth.Auth,
	hub *websocket.Hub,
	health HealthChecker,
	page PageOptions,
	log HTTPLogger,
) (*Handlers, error) {
	templates, err := loadTemplates(templatesFS)
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	return &Handlers{
		Spin:         spin,
		Rewards:      rewards,
		Settings:     settings,
		Auth:         userAuth,
		Hub:          hub,
		Health:       health,
		Page:         page,
		Log:          log,
		templates:    templates,
		staticServer: staticServer,
	}, nil
}

// NoopHTTPLogger is a test logger that always returns false for HTTP logging
type NoopHTTPLogger struct{}

func (NoopHTTPLogger) IsHTTPLoggingEnabled() bool { return false }

// Test credentials accepted by the Auth built in NewForTesting
const (
	TestAccessCode = "test-code"
	TestJWTSecret  = "test-secret"
)

// NewForTesting creates a Handlers instance without loading templates (for testing API endpoints)
func NewForTesting(
	spin services.SpinServicer,
	rewards services.RewardServicer,
	settings services.SettingsServicer,
) *Handlers {
	return &Handlers{
		Spin:     spin,
		Rewards:  rewards,
		Settings: settings,
		Auth:     auth.New(TestAccessCode, TestJWTSecret),
		Log:      NoopHTTPLogger{},
		Page:     PageOptions{Keyboard: true},
		// templates left nil - API endpoints don't use templates
	}
}

// loadTemplates parses all templates once at startup
func loadTemplates(templatesFS fs.FS) (*Templates, error) {
	t := &Templates{}
	var err error

	if t.Wheel, err = template.ParseFS(templatesFS, "layout.html", "wheel.html"); err != nil {
		return nil, fmt.Errorf("wheel template: %w", err)
	}
	if t.Rewards, err = template.ParseFS(templatesFS, "layout.html", "rewards.html"); err != nil {
		return nil, fmt.Errorf("rewards template: %w", err)
	}
	if t.Claim, err = template.ParseFS(templatesFS, "layout.html", "claim.html"); err != nil {
		return nil, fmt.Errorf("claim template: %w", err)
	}

	return t, nil
}

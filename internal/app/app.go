package app

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kdashto/spinwheel/internal/auth"
	"github.com/kdashto/spinwheel/internal/catalog"
	"github.com/kdashto/spinwheel/internal/config"
	"github.com/kdashto/spinwheel/internal/events"
	"github.com/kdashto/spinwheel/internal/handlers"
	"github.com/kdashto/spinwheel/internal/logger"
	"github.com/kdashto/spinwheel/internal/repository"
	"github.com/kdashto/spinwheel/internal/repository/redisstore"
	"github.com/kdashto/spinwheel/internal/selection"
	"github.com/kdashto/spinwheel/internal/services"
	"github.com/kdashto/spinwheel/internal/wheel"
	"github.com/kdashto/spinwheel/internal/websocket"
)

const shutdownTimeout = 5 * time.Second

// store is a spin store the app owns and closes
type store interface {
	repository.FullRepository
	Close() error
}

// App holds all application dependencies
type App struct {
	log       logger.Logger
	cfg       *config.Config
	handlers  *handlers.Handlers
	repo      store
	spin      *services.SpinService
	settings  *services.SettingsService
	hub       *websocket.Hub
	publisher events.Publisher
	closed    chan struct{}
}

// New creates and initializes a new application instance
func New(log logger.Logger, cfg *config.Config, templatesFS, staticFS fs.FS, userAuth *auth.Auth) (*App, error) {
	repo, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	publisher, err := newPublisher(log, cfg)
	if err != nil {
		repo.Close()
		return nil, err
	}

	cat := loadCatalog(log, cfg.CatalogPath)

	policyOpts := selection.DefaultOptions()
	policyOpts.ReducedMotion = cfg.ReducedMotion

	settingsService := services.NewSettingsService(log, repo)
	spinService := services.NewSpinService(log, repo, cat, services.SpinOptions{
		Policy:    selection.NewPolicy(policyOpts, nil),
		Driver:    wheel.NewAnimator(nil, cfg.FrameRate),
		Cooldown:  cfg.Cooldown,
		Publisher: publisher,
	})
	rewardService := services.NewRewardService(log, repo, settingsService)

	hub := websocket.New(log, spinService)
	hub.Start()
	spinService.SetBroadcaster(hub)

	userAuth.Subscribe(func(userID string, signedIn bool) {
		if !signedIn {
			spinService.SignOut(userID)
			return
		}
		if err := spinService.SignIn(context.Background(), userID); err != nil {
			log.Warn("Failed to load spin record on sign-in", "user_id", userID, "error", err)
		}
	})

	h, err := handlers.New(
		spinService,
		rewardService,
		settingsService,
		templatesFS,
		handlers.NewStaticServer(staticFS),
		userAuth,
		hub,
		repo,
		handlers.PageOptions{
			ReducedMotion: cfg.ReducedMotion,
			Keyboard:      true,
			FrameRate:     cfg.FrameRate,
		},
		log,
	)
	if err != nil {
		spinService.Close()
		hub.Stop()
		publisher.Close()
		repo.Close()
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	return &App{
		log:       log,
		cfg:       cfg,
		handlers:  h,
		repo:      repo,
		spin:      spinService,
		settings:  settingsService,
		hub:       hub,
		publisher: publisher,
		closed:    make(chan struct{}),
	}, nil
}

func openStore(cfg *config.Config) (store, error) {
	switch cfg.Store {
	case config.StoreRedis:
		s, err := redisstore.New(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open redis store: %w", err)
		}
		return s, nil
	case config.StoreSQLite, "":
		r, err := repository.New(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

func newPublisher(log logger.Logger, cfg *config.Config) (events.Publisher, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return events.Noop{}, nil
	}
	p, err := events.NewKafkaPublisher(log, events.KafkaConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopic,
	})
	if err != nil {
		return nil, err
	}
	log.Info("Publishing spin events", "brokers", strings.Join(cfg.KafkaBrokers, ","), "topic", cfg.KafkaTopic)
	return p, nil
}

// loadCatalog never fails startup. A bad catalog is served as an invalid
// one so the wheel page can show the problem instead of spinning.
func loadCatalog(log logger.Logger, path string) *catalog.Catalog {
	if path == "" {
		return catalog.Default()
	}
	cat, err := catalog.LoadFile(path, catalog.RequireNames(catalog.MovieTicket, catalog.ShoeReward))
	if err != nil {
		log.Error("Failed to load catalog", "path", path, "error", err)
		return catalog.New(nil)
	}
	if cat.Err() != nil {
		log.Error("Catalog is invalid, spins are disabled", "path", path, "error", cat.Err())
	}
	return cat
}

// Router returns the configured HTTP router
func (a *App) Router() chi.Router {
	return a.handlers.Router()
}

// Close performs graceful shutdown of app resources. Safe to call twice.
func (a *App) Close() {
	select {
	case <-a.closed:
		return
	default:
		close(a.closed)
	}

	a.spin.Close()
	a.hub.Stop()
	if err := a.publisher.Close(); err != nil {
		a.log.Warn("Failed to close event publisher", "error", err)
	}
	if err := a.repo.Close(); err != nil {
		a.log.Warn("Failed to close store", "error", err)
	}
}

// BaseURL returns the URL claim QR codes point at
func (a *App) BaseURL() string {
	url, err := a.settings.GetBaseURL(context.Background())
	if err != nil || url == "" {
		return fmt.Sprintf("http://localhost:%d", a.cfg.Port)
	}
	return url
}

// Run serves HTTP on addr until ctx is cancelled
func (a *App) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	if a.cfg.BaseURL != "" {
		if err := a.settings.SetBaseURL(ctx, a.cfg.BaseURL); err != nil {
			a.log.Warn("Failed to set base_url", "error", err)
		}
	} else {
		port := ln.Addr().(*net.TCPAddr).Port
		a.setDefaultBaseURL(fmt.Sprintf("http://%s:%d", getPreferredIP(realNetworkProvider{}), port))
	}

	srv := &http.Server{
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	a.log.Info("Server starting", "url", a.BaseURL())

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// setDefaultBaseURL sets the base URL setting if not already configured
// or if current value uses localhost, which is no use in a QR code
func (a *App) setDefaultBaseURL(baseURL string) {
	ctx := context.Background()
	existing, _ := a.settings.GetBaseURL(ctx)

	if existing == "" || strings.Contains(existing, "localhost") || strings.Contains(existing, "127.0.0.1") {
		if err := a.settings.SetBaseURL(ctx, baseURL); err != nil {
			a.log.Warn("Failed to set default base_url", "error", err)
		} else {
			a.log.Info("Default base URL set", "url", baseURL)
		}
	}
}

// networkInterface wraps net.Interface for testing
type networkInterface interface {
	Flags() net.Flags
	Addrs() ([]net.Addr, error)
}

type realInterface struct {
	iface net.Interface
}

func (r realInterface) Flags() net.Flags {
	return r.iface.Flags
}

func (r realInterface) Addrs() ([]net.Addr, error) {
	return r.iface.Addrs()
}

// networkProvider lists network interfaces
type networkProvider interface {
	Interfaces() ([]networkInterface, error)
}

type realNetworkProvider struct{}

func (realNetworkProvider) Interfaces() ([]networkInterface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	result := make([]networkInterface, len(ifaces))
	for i, iface := range ifaces {
		result[i] = realInterface{iface: iface}
	}
	return result, nil
}

// getPreferredIP returns the best IPv4 address for LAN access, preferring
// private ranges. Falls back to localhost.
func getPreferredIP(provider networkProvider) string {
	ifaces, err := provider.Interfaces()
	if err != nil {
		return "localhost"
	}

	var candidates []net.IP
	for _, iface := range ifaces {
		flags := iface.Flags()
		if flags&net.FlagUp == 0 || flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip == nil || ip.To4() == nil || ip.IsLoopback() {
				continue
			}
			candidates = append(candidates, ip)
		}
	}

	for _, ip := range candidates {
		if ip.IsPrivate() {
			return ip.String()
		}
	}
	if len(candidates) > 0 {
		return candidates[0].String()
	}
	return "localhost"
}

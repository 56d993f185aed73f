package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kdashto/spinwheel/internal/auth"
	"github.com/kdashto/spinwheel/internal/catalog"
	"github.com/kdashto/spinwheel/internal/eligibility"
	"github.com/kdashto/spinwheel/internal/handlers"
	"github.com/kdashto/spinwheel/internal/logger"
	"github.com/kdashto/spinwheel/internal/repository"
	"github.com/kdashto/spinwheel/internal/selection"
	"github.com/kdashto/spinwheel/internal/services"
	"github.com/kdashto/spinwheel/internal/testutil"
	"github.com/kdashto/spinwheel/internal/wheel"
	"github.com/kdashto/spinwheel/internal/websocket"
)

var t0 = testutil.Epoch

type testSetup struct {
	handlers *handlers.Handlers
	router   chi.Router
	repo     *repository.Repository
	spin     *services.SpinService
	settings *services.SettingsService
	clock    *eligibility.MockClock
}

type setupOption func(*services.SpinOptions)

func withDriver(d wheel.Driver) setupOption {
	return func(o *services.SpinOptions) { o.Driver = d }
}

func createTestTemplatesFS() fstest.MapFS {
	return fstest.MapFS{
		"layout.html":  &fstest.MapFile{Data: []byte(`{{define "layout"}}<html><title>{{.Title}}</title><body>{{template "content" .}}</body></html>{{end}}`)},
		"wheel.html":   &fstest.MapFile{Data: []byte(`{{define "content"}}<button>{{.View.ButtonLabel}}</button>{{if .Page.Keyboard}}<kbd>keys</kbd>{{end}}{{end}}`)},
		"rewards.html": &fstest.MapFile{Data: []byte(`{{define "content"}}{{if .List}}{{range .List.Rewards}}<li>{{.Name}}</li>{{end}}<p>{{.List.Summary.KCoins}}</p>{{else}}Sign in{{end}}{{end}}`)},
		"claim.html":   &fstest.MapFile{Data: []byte(`{{define "content"}}{{with .Reward}}<h1>{{.Name}}</h1>{{end}}{{.Error}}{{end}}`)},
	}
}

func newTestSetup(t *testing.T, cat *catalog.Catalog, opts ...setupOption) *testSetup {
	t.Helper()
	if cat == nil {
		cat = catalog.Default()
	}

	repo := testutil.NewTestRepository(t)
	log := logger.Discard()
	clock := eligibility.NewMockClock(t0)

	spinOpts := services.SpinOptions{
		Policy:   selection.NewPolicy(selection.DefaultOptions(), rand.New(rand.NewPCG(1, 2))),
		Driver:   wheel.NewStepAnimator(),
		Clock:    clock,
		Cooldown: eligibility.DefaultCooldown,
	}
	for _, opt := range opts {
		opt(&spinOpts)
	}

	settingsService := services.NewSettingsService(log, repo)
	spinService := services.NewSpinService(log, repo, cat, spinOpts)
	rewardService := services.NewRewardService(log, repo, settingsService)
	hub := websocket.New(log, spinService)
	hub.Start()
	spinService.SetBroadcaster(hub)
	t.Cleanup(func() {
		spinService.Close()
		hub.Stop()
	})

	h, err := handlers.New(
		spinService,
		rewardService,
		settingsService,
		createTestTemplatesFS(),
		handlers.NewStaticServer(fstest.MapFS{"app.js": &fstest.MapFile{Data: []byte("// wheel")}}),
		auth.New(handlers.TestAccessCode, handlers.TestJWTSecret),
		hub,
		repo,
		handlers.PageOptions{Keyboard: true, FrameRate: 60},
		handlers.NoopHTTPLogger{},
	)
	if err != nil {
		t.Fatalf("failed to create handlers: %v", err)
	}

	return &testSetup{
		handlers: h,
		router:   h.Router(),
		repo:     repo,
		spin:     spinService,
		settings: settingsService,
		clock:    clock,
	}
}

// login signs userID in through the API and returns the session cookie
func (s *testSetup) login(t *testing.T, userID string) *http.Cookie {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"user_id":     userID,
		"access_code": handlers.TestAccessCode,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.CookieName {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func (s *testSetup) do(t *testing.T, method, path string, body interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
}

func decodeAPIError(t *testing.T, rec *httptest.ResponseRecorder) handlers.APIError {
	t.Helper()
	var apiErr handlers.APIError
	decodeBody(t, rec, &apiErr)
	return apiErr
}

func TestNew_WithValidTemplates(t *testing.T) {
	h, err := handlers.New(nil, nil, nil, createTestTemplatesFS(), handlers.NewStaticServer(fstest.MapFS{}),
		auth.New("code", ""), nil, nil, handlers.PageOptions{}, handlers.NoopHTTPLogger{})

	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if h == nil {
		t.Fatal("expected handlers to be created")
	}
}

func TestNew_WithMissingTemplate(t *testing.T) {
	for _, missing := range []string{"layout.html", "wheel.html", "rewards.html", "claim.html"} {
		t.Run(missing, func(t *testing.T) {
			fs := createTestTemplatesFS()
			delete(fs, missing)

			_, err := handlers.New(nil, nil, nil, fs, handlers.NewStaticServer(fstest.MapFS{}),
				auth.New("code", ""), nil, nil, handlers.PageOptions{}, handlers.NoopHTTPLogger{})

			if err == nil {
				t.Errorf("expected error when %s is missing", missing)
			}
		})
	}
}

func TestNewForTesting(t *testing.T) {
	h := handlers.NewForTesting(nil, nil, nil)

	if h.Auth == nil {
		t.Fatal("expected test auth to be set")
	}
	if _, err := h.Auth.Login("alice", handlers.TestAccessCode); err != nil {
		t.Errorf("expected test access code to work, got %v", err)
	}
	if h.Log.IsHTTPLoggingEnabled() {
		t.Error("expected HTTP logging to be disabled")
	}
}

func TestHealth(t *testing.T) {
	setup := newTestSetup(t, nil)

	rec := setup.do(t, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp handlers.HealthResponse
	decodeBody(t, rec, &resp)
	if resp.Status != "ok" {
		t.Errorf("expected ok, got %+v", resp)
	}

	setup.repo.Close()
	rec = setup.do(t, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 after the store closed, got %d", rec.Code)
	}
}

func TestStaticFiles(t *testing.T) {
	setup := newTestSetup(t, nil)

	rec := setup.do(t, http.MethodGet, "/static/app.js", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "// wheel" {
		t.Errorf("expected static file, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestSignInTransitionReachesSpinService(t *testing.T) {
	setup := newTestSetup(t, nil)
	signedIn := make(chan string, 1)
	setup.handlers.Auth.Subscribe(func(userID string, in bool) {
		if in {
			setup.spin.SignIn(context.Background(), userID)
			signedIn <- userID
		}
	})

	setup.login(t, "alice")

	select {
	case userID := <-signedIn:
		if userID != "alice" {
			t.Errorf("expected alice, got %s", userID)
		}
	case <-time.After(time.Second):
		t.Fatal("sign-in transition not delivered")
	}
	if view := setup.spin.View(context.Background(), "alice"); !view.SignedIn {
		t.Error("expected a signed-in view")
	}
}

package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kdashto/spinwheel/internal/catalog"
	"github.com/kdashto/spinwheel/internal/handlers"
	"github.com/kdashto/spinwheel/internal/selection"
	"github.com/kdashto/spinwheel/internal/services"
	"github.com/kdashto/spinwheel/internal/testutil"
	"github.com/kdashto/spinwheel/internal/wheel"
)

// blockingDriver keeps a spin running until the service shuts down
type blockingDriver struct {
	started chan struct{}
	once    sync.Once
}

func (d *blockingDriver) Run(ctx context.Context, w *wheel.Wheel, _ func(wheel.Frame)) (wheel.Frame, error) {
	d.once.Do(func() { close(d.started) })
	<-ctx.Done()
	w.Cancel()
	return wheel.Frame{Winner: -1}, ctx.Err()
}

func TestGetWheel_Anonymous(t *testing.T) {
	setup := newTestSetup(t, nil)

	rec := setup.do(t, http.MethodGet, "/api/wheel", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var view services.WheelView
	decodeBody(t, rec, &view)
	if view.SignedIn || view.CanSpin {
		t.Errorf("expected a signed-out view, got %+v", view)
	}
	if view.ButtonLabel != services.LabelLogin {
		t.Errorf("expected %q, got %q", services.LabelLogin, view.ButtonLabel)
	}
	if len(view.Segments) != catalog.Default().Len() {
		t.Errorf("expected %d segments, got %d", catalog.Default().Len(), len(view.Segments))
	}
}

func TestGetWheel_SignedIn(t *testing.T) {
	setup := newTestSetup(t, nil)
	cookie := setup.login(t, "alice")

	rec := setup.do(t, http.MethodGet, "/api/wheel", nil, cookie)

	var view services.WheelView
	decodeBody(t, rec, &view)
	if !view.SignedIn || !view.CanSpin || view.ButtonLabel != services.LabelSpin {
		t.Errorf("expected a ready wheel, got %+v", view)
	}
}

func TestSpin_Gates(t *testing.T) {
	duplicate := catalog.New([]catalog.Segment{
		{ID: "a", Name: "Same", Color: "red"},
		{ID: "b", Name: "Same", Color: "blue"},
	})

	tests := []struct {
		name       string
		cat        *catalog.Catalog
		signIn     bool
		wantStatus int
		wantCode   string
	}{
		{"invalid catalog beats login", duplicate, false, http.StatusServiceUnavailable, handlers.ErrCodeCatalogInvalid},
		{"invalid catalog signed in", duplicate, true, http.StatusServiceUnavailable, handlers.ErrCodeCatalogInvalid},
		{"anonymous", nil, false, http.StatusUnauthorized, handlers.ErrCodeLoginRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setup := newTestSetup(t, tt.cat)
			var cookies []*http.Cookie
			if tt.signIn {
				cookies = append(cookies, setup.login(t, "alice"))
			}

			rec := setup.do(t, http.MethodPost, "/api/wheel/spin", nil, cookies...)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if apiErr := decodeAPIError(t, rec); apiErr.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, apiErr.Code)
			}
		})
	}
}

func TestSpin_CompletesAndStartsCooldown(t *testing.T) {
	setup := newTestSetup(t, nil)
	cookie := setup.login(t, "alice")

	rec := setup.do(t, http.MethodPost, "/api/wheel/spin", nil, cookie)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var started services.SpinStarted
	decodeBody(t, rec, &started)
	if started.SpinNumber != 1 {
		t.Errorf("expected spin number 1, got %d", started.SpinNumber)
	}

	rec = setup.do(t, http.MethodGet, "/api/wheel/result", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var outcome services.SpinOutcome
	decodeBody(t, rec, &outcome)
	if outcome.Segment.Name == "" || outcome.HistoryID == "" {
		t.Errorf("expected a persisted outcome, got %+v", outcome)
	}

	rec = setup.do(t, http.MethodPost, "/api/wheel/spin", nil, cookie)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	apiErr := decodeAPIError(t, rec)
	if apiErr.Code != handlers.ErrCodeCooldownActive || apiErr.WaitTime != "24h 0m 0s" {
		t.Errorf("expected cooldown with 24h wait, got %+v", apiErr)
	}

	rec = setup.do(t, http.MethodGet, "/api/wheel", nil, cookie)
	var view services.WheelView
	decodeBody(t, rec, &view)
	if view.ButtonLabel != "Wait 24h 0m 0s" || view.Winner == nil || view.Winner.Name != outcome.Segment.Name {
		t.Errorf("unexpected view after spin %+v", view)
	}
}

func TestSpin_TargetOverride(t *testing.T) {
	setup := newTestSetup(t, nil)
	// past the guaranteed window, where an override is honoured
	testutil.SeedSpinMeta(t, setup.repo, "alice", 19, 48*time.Hour)
	cookie := setup.login(t, "alice")

	rec := setup.do(t, http.MethodPost, "/api/wheel/spin", handlers.SpinRequest{TargetID: "kcoin-50"}, cookie)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var started services.SpinStarted
	decodeBody(t, rec, &started)
	if started.Tier != selection.TierNormal || started.SpinNumber != 20 {
		t.Errorf("expected normal tier spin 20, got %+v", started)
	}
	if want := catalog.Default().IndexOfID("kcoin-50"); started.TargetIndex != want {
		t.Errorf("expected target index %d, got %d", want, started.TargetIndex)
	}
}

func TestSpin_InvalidJSON(t *testing.T) {
	setup := newTestSetup(t, nil)
	cookie := setup.login(t, "alice")

	req := httptest.NewRequest(http.MethodPost, "/api/wheel/spin", strings.NewReader("{invalid}"))
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	setup.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "JSON") {
		t.Errorf("expected error to mention JSON, got %q", rec.Body.String())
	}
}

func TestSpin_InProgress(t *testing.T) {
	driver := &blockingDriver{started: make(chan struct{})}
	setup := newTestSetup(t, nil, withDriver(driver))
	cookie := setup.login(t, "alice")

	if rec := setup.do(t, http.MethodPost, "/api/wheel/spin", nil, cookie); rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	select {
	case <-driver.started:
	case <-time.After(time.Second):
		t.Fatal("spin did not start")
	}

	rec := setup.do(t, http.MethodPost, "/api/wheel/spin", nil, cookie)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if apiErr := decodeAPIError(t, rec); apiErr.Code != handlers.ErrCodeSpinInProgress {
		t.Errorf("expected %s, got %s", handlers.ErrCodeSpinInProgress, apiErr.Code)
	}

	rec = setup.do(t, http.MethodPost, "/api/wheel/nudge", handlers.NudgeRequest{Direction: 1}, cookie)
	if apiErr := decodeAPIError(t, rec); apiErr.Code != handlers.ErrCodeSpinInProgress {
		t.Errorf("expected nudge to be refused while spinning, got %+v", apiErr)
	}

	var view services.WheelView
	decodeBody(t, setup.do(t, http.MethodGet, "/api/wheel", nil, cookie), &view)
	if !view.Spinning || view.ButtonLabel != services.LabelSpinning {
		t.Errorf("expected spinning view, got %+v", view)
	}
}

func TestResult_RequiresUser(t *testing.T) {
	setup := newTestSetup(t, nil)

	rec := setup.do(t, http.MethodGet, "/api/wheel/result", nil)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
	if apiErr := decodeAPIError(t, rec); apiErr.Code != handlers.ErrCodeLoginRequired {
		t.Errorf("expected LOGIN_REQUIRED, got %s", apiErr.Code)
	}
}

func TestResult_NoSpinYet(t *testing.T) {
	setup := newTestSetup(t, nil)
	cookie := setup.login(t, "alice")

	rec := setup.do(t, http.MethodGet, "/api/wheel/result", nil, cookie)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestNudge(t *testing.T) {
	setup := newTestSetup(t, nil)
	cookie := setup.login(t, "alice")

	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
	}{
		{"clockwise", handlers.NudgeRequest{Direction: 1}, http.StatusOK},
		{"anticlockwise", handlers.NudgeRequest{Direction: -1}, http.StatusOK},
		{"zero", handlers.NudgeRequest{Direction: 0}, http.StatusBadRequest},
		{"too far", handlers.NudgeRequest{Direction: 2}, http.StatusBadRequest},
		{"empty body", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := setup.do(t, http.MethodPost, "/api/wheel/nudge", tt.body, cookie)
			if rec.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHistory(t *testing.T) {
	setup := newTestSetup(t, nil)
	cookie := setup.login(t, "alice")

	setup.do(t, http.MethodPost, "/api/wheel/spin", nil, cookie)
	setup.do(t, http.MethodGet, "/api/wheel/result", nil, cookie)

	rec := setup.do(t, http.MethodGet, "/api/wheel/history?limit=10", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp handlers.HistoryResponse
	decodeBody(t, rec, &resp)
	if len(resp.History) != 1 || resp.History[0].UserID != "alice" || resp.History[0].SpinNumber != 1 {
		t.Errorf("unexpected history %+v", resp.History)
	}

	for _, q := range []string{"limit=abc", "limit=-1", "limit=501"} {
		if rec := setup.do(t, http.MethodGet, "/api/wheel/history?"+q, nil, cookie); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", q, rec.Code)
		}
	}
}

func TestSettings_Public(t *testing.T) {
	setup := newTestSetup(t, nil)
	setup.settings.SetBaseURL(context.Background(), "http://wheel.local")

	rec := setup.do(t, http.MethodGet, "/api/settings", nil)

	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "http://wheel.local") {
		t.Errorf("expected base_url in settings, got %d %s", rec.Code, rec.Body.String())
	}
}

package handlers_test

import (
	"bytes"
	"context"
	"net/http"
	"testing"

	"github.com/kdashto/spinwheel/internal/handlers"
	"github.com/kdashto/spinwheel/internal/services"
)

// spinOnce runs a full spin for the cookie's user and returns its outcome
func spinOnce(t *testing.T, setup *testSetup, cookie *http.Cookie) services.SpinOutcome {
	t.Helper()
	if rec := setup.do(t, http.MethodPost, "/api/wheel/spin", nil, cookie); rec.Code != http.StatusAccepted {
		t.Fatalf("spin failed: %d %s", rec.Code, rec.Body.String())
	}
	var outcome services.SpinOutcome
	decodeBody(t, setup.do(t, http.MethodGet, "/api/wheel/result", nil, cookie), &outcome)
	return outcome
}

func TestGetRewards(t *testing.T) {
	setup := newTestSetup(t, nil)
	cookie := setup.login(t, "alice")
	outcome := spinOnce(t, setup, cookie)

	rec := setup.do(t, http.MethodGet, "/api/rewards", nil, cookie)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var list services.RewardList
	decodeBody(t, rec, &list)
	if len(list.Rewards) != 1 || list.Rewards[0].ID != outcome.HistoryID {
		t.Errorf("unexpected rewards %+v", list.Rewards)
	}
	if list.Summary.Total != 1 || list.Summary.Counts[outcome.Segment.Name] != 1 {
		t.Errorf("unexpected summary %+v", list.Summary)
	}
}

func TestGetRewards_RequiresUser(t *testing.T) {
	setup := newTestSetup(t, nil)

	rec := setup.do(t, http.MethodGet, "/api/rewards", nil)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestGetRewardQR(t *testing.T) {
	setup := newTestSetup(t, nil)
	cookie := setup.login(t, "alice")
	outcome := spinOnce(t, setup, cookie)
	path := "/api/rewards/" + outcome.HistoryID + "/qr"

	// no base_url yet
	rec := setup.do(t, http.MethodGet, path, nil, cookie)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without base_url, got %d", rec.Code)
	}

	if err := setup.settings.SetBaseURL(context.Background(), "http://wheel.local:8080"); err != nil {
		t.Fatal(err)
	}
	rec = setup.do(t, http.MethodGet, path, nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("expected image/png, got %s", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("expected PNG data")
	}

	// another user cannot claim it
	other := setup.login(t, "bob")
	rec = setup.do(t, http.MethodGet, path, nil, other)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for another user's reward, got %d", rec.Code)
	}
	if apiErr := decodeAPIError(t, rec); apiErr.Code != handlers.ErrCodeNotFound {
		t.Errorf("expected NOT_FOUND, got %s", apiErr.Code)
	}
}

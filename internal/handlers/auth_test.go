package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kdashto/spinwheel/internal/auth"
	"github.com/kdashto/spinwheel/internal/handlers"
	"github.com/kdashto/spinwheel/internal/services"
)

func TestHandleLogin(t *testing.T) {
	setup := newTestSetup(t, nil)

	rec := setup.do(t, http.MethodPost, "/api/auth/login", handlers.LoginRequest{
		UserID:     "alice",
		AccessCode: handlers.TestAccessCode,
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp handlers.LoginResponse
	decodeBody(t, rec, &resp)
	if resp.UserID != "alice" || resp.Token == "" {
		t.Errorf("unexpected login response %+v", resp)
	}

	var sessionCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.CookieName {
			sessionCookie = c
		}
	}
	if sessionCookie == nil || sessionCookie.Value != resp.Token {
		t.Error("expected session cookie carrying the token")
	}
}

func TestHandleLogin_Rejections(t *testing.T) {
	setup := newTestSetup(t, nil)

	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
		wantCode   string
	}{
		{"wrong code", handlers.LoginRequest{UserID: "alice", AccessCode: "nope"}, http.StatusUnauthorized, handlers.ErrCodeInvalidCredentials},
		{"blank user", handlers.LoginRequest{UserID: " ", AccessCode: handlers.TestAccessCode}, http.StatusUnauthorized, handlers.ErrCodeInvalidCredentials},
		{"empty body", nil, http.StatusBadRequest, handlers.ErrCodeBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := setup.do(t, http.MethodPost, "/api/auth/login", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
			if apiErr := decodeAPIError(t, rec); apiErr.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, apiErr.Code)
			}
		})
	}
}

func TestHandleMe(t *testing.T) {
	setup := newTestSetup(t, nil)
	cookie := setup.login(t, "alice")

	var me handlers.MeResponse
	decodeBody(t, setup.do(t, http.MethodGet, "/api/auth/me", nil, cookie), &me)
	if !me.SignedIn || me.UserID != "alice" {
		t.Errorf("expected alice, got %+v", me)
	}

	me = handlers.MeResponse{}
	decodeBody(t, setup.do(t, http.MethodGet, "/api/auth/me", nil), &me)
	if me.SignedIn || me.UserID != "" {
		t.Errorf("expected anonymous, got %+v", me)
	}
}

func TestHandleMe_BearerToken(t *testing.T) {
	setup := newTestSetup(t, nil)
	token, err := setup.handlers.Auth.IssueToken("bob", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	setup.router.ServeHTTP(rec, req)

	var me handlers.MeResponse
	decodeBody(t, rec, &me)
	if me.UserID != "bob" {
		t.Errorf("expected bob from bearer token, got %+v", me)
	}
}

func TestHandleLogout(t *testing.T) {
	setup := newTestSetup(t, nil)
	cookie := setup.login(t, "alice")

	rec := setup.do(t, http.MethodPost, "/api/auth/logout", nil, cookie)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	cleared := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.CookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("expected session cookie to be cleared")
	}

	// the old cookie no longer signs the caller in
	var view services.WheelView
	decodeBody(t, setup.do(t, http.MethodGet, "/api/wheel", nil, cookie), &view)
	if view.SignedIn || view.ButtonLabel != services.LabelLogin {
		t.Errorf("expected signed-out view after logout, got %+v", view)
	}
}

package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// transitions records Subscribe notifications
type transitions struct {
	mu     sync.Mutex
	events []string
}

func (tr *transitions) listen(userID string, signedIn bool) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	state := "out"
	if signedIn {
		state = "in"
	}
	tr.events = append(tr.events, userID+":"+state)
}

func (tr *transitions) String() string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return strings.Join(tr.events, ",")
}

func TestNew(t *testing.T) {
	a := New("open-sesame", "")

	if a == nil {
		t.Fatal("expected auth to be created")
	}
	if a.accessCode != "open-sesame" {
		t.Error("expected access code to be set")
	}
	if a.sessions == nil {
		t.Error("expected sessions map to be initialized")
	}
	if a.jwtSecret != nil {
		t.Error("expected bearer tokens to be disabled without a secret")
	}
}

func TestGenerateAccessCode_Format(t *testing.T) {
	code := GenerateAccessCode()

	parts := strings.Split(code, "-")
	if len(parts) != 3 {
		t.Errorf("expected 3 words separated by dashes, got %d parts: %s", len(parts), code)
	}

	for _, part := range parts {
		found := false
		for _, word := range codeWords {
			if part == word {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("word %q not in codeWords list", part)
		}
	}
}

func TestGenerateAccessCode_Randomness(t *testing.T) {
	codes := make(map[string]bool)
	for i := 0; i < 10; i++ {
		codes[GenerateAccessCode()] = true
	}
	if len(codes) < 3 {
		t.Errorf("expected more variety, got only %d unique codes", len(codes))
	}
}

func TestLogin(t *testing.T) {
	a := New("code", "")

	token, err := a.Login("  alice ", "code")
	if err != nil {
		t.Fatalf("expected login to succeed, got %v", err)
	}
	if _, err := uuid.Parse(token); err != nil {
		t.Errorf("expected uuid token, got %q", token)
	}
	userID, ok := a.ValidateSession(token)
	if !ok || userID != "alice" {
		t.Errorf("ValidateSession = %q, %v", userID, ok)
	}
}

func TestLogin_Rejections(t *testing.T) {
	a := New("code", "")

	if _, err := a.Login("alice", "wrong"); err != ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials for wrong code, got %v", err)
	}
	if _, err := a.Login("   ", "code"); err != ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials for blank user, got %v", err)
	}
}

func TestLogout_InvalidatesSession(t *testing.T) {
	a := New("code", "")
	token, _ := a.Login("alice", "code")

	a.Logout(token)

	if _, ok := a.ValidateSession(token); ok {
		t.Error("expected session to be invalid after logout")
	}
}

func TestSubscribe_Transitions(t *testing.T) {
	a := New("code", "")
	tr := &transitions{}
	a.Subscribe(tr.listen)

	first, _ := a.Login("alice", "code")
	second, _ := a.Login("alice", "code") // second device
	a.Logout(first)
	a.Logout(second)
	a.Logout("unknown")

	if got := tr.String(); got != "alice:in,alice:out" {
		t.Errorf("transitions = %q", got)
	}
}

func TestValidateSession_ExpiredSession(t *testing.T) {
	a := New("code", "")
	tr := &transitions{}
	a.Subscribe(tr.listen)
	token, _ := a.Login("alice", "code")

	now := time.Now()
	a.now = func() time.Time { return now.Add(SessionExpiry + time.Minute) }

	if _, ok := a.ValidateSession(token); ok {
		t.Error("expected expired session to be invalid")
	}

	a.mu.RLock()
	_, exists := a.sessions[token]
	a.mu.RUnlock()
	if exists {
		t.Error("expected expired session to be removed")
	}
	if got := tr.String(); got != "alice:in,alice:out" {
		t.Errorf("transitions = %q", got)
	}
}

func TestParseToken(t *testing.T) {
	a := New("code", "s3cret")

	token, err := a.IssueToken("bob", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	userID, err := a.ParseToken(token)
	if err != nil || userID != "bob" {
		t.Errorf("ParseToken = %q, %v", userID, err)
	}

	// subject only
	subOnly := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "carol"})
	signed, _ := subOnly.SignedString([]byte("s3cret"))
	if userID, err := a.ParseToken(signed); err != nil || userID != "carol" {
		t.Errorf("subject token = %q, %v", userID, err)
	}
}

func TestParseToken_Rejections(t *testing.T) {
	a := New("code", "s3cret")
	other := New("code", "different")
	forged, _ := other.IssueToken("bob", time.Hour)
	expired, _ := a.IssueToken("bob", -time.Minute)
	noUser, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{}).SignedString([]byte("s3cret"))

	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", forged},
		{"expired", expired},
		{"no user", noUser},
		{"garbage", "not.a.jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := a.ParseToken(tt.token); err != ErrInvalidToken {
				t.Errorf("expected ErrInvalidToken, got %v", err)
			}
		})
	}

	disabled := New("code", "")
	if _, err := disabled.ParseToken(forged); err != ErrNoJWTSecret {
		t.Errorf("expected ErrNoJWTSecret, got %v", err)
	}
	if _, err := disabled.IssueToken("bob", time.Hour); err != ErrNoJWTSecret {
		t.Errorf("expected ErrNoJWTSecret, got %v", err)
	}
}

func TestUserFromRequest(t *testing.T) {
	a := New("code", "s3cret")
	session, _ := a.Login("alice", "code")
	bearer, _ := a.IssueToken("bob", time.Hour)

	tests := []struct {
		name   string
		cookie string
		header string
		want   string
	}{
		{"cookie", session, "", "alice"},
		{"bearer", "", "Bearer " + bearer, "bob"},
		{"cookie wins", session, "Bearer " + bearer, "alice"},
		{"stale cookie falls back to bearer", "stale", "Bearer " + bearer, "bob"},
		{"wrong scheme", "", "Basic " + bearer, ""},
		{"anonymous", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/wheel", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: CookieName, Value: tt.cookie})
			}
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if got := a.UserFromRequest(req); got != tt.want {
				t.Errorf("UserFromRequest = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIdentifyAndRequireUser(t *testing.T) {
	a := New("code", "")
	token, _ := a.Login("alice", "code")

	var seen string
	handler := a.Identify(a.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest("POST", "/api/wheel/spin", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK || seen != "alice" {
		t.Errorf("expected 200 for alice, got %d (user %q)", rr.Code, seen)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("POST", "/api/wheel/spin", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rr.Code)
	}
	if rr.Header().Get("Content-Type") != "application/json" {
		t.Error("expected JSON content type")
	}
	if !strings.Contains(rr.Body.String(), "LOGIN_REQUIRED") {
		t.Errorf("expected LOGIN_REQUIRED code in body, got: %s", rr.Body.String())
	}
}

func TestUserFromContext_Empty(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if got := UserFromContext(req.Context()); got != "" {
		t.Errorf("expected no user, got %q", got)
	}
}

func TestSetSessionCookie(t *testing.T) {
	rr := httptest.NewRecorder()

	SetSessionCookie(rr, "test-token")

	cookies := rr.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}

	cookie := cookies[0]
	if cookie.Name != CookieName {
		t.Errorf("expected cookie name %s, got %s", CookieName, cookie.Name)
	}
	if cookie.Value != "test-token" {
		t.Errorf("expected cookie value 'test-token', got %s", cookie.Value)
	}
	if !cookie.HttpOnly {
		t.Error("expected HttpOnly to be true")
	}
	if cookie.MaxAge != int(SessionExpiry.Seconds()) {
		t.Errorf("expected MaxAge %d, got %d", int(SessionExpiry.Seconds()), cookie.MaxAge)
	}
}

func TestClearSessionCookie(t *testing.T) {
	rr := httptest.NewRecorder()

	ClearSessionCookie(rr)

	cookies := rr.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	if cookies[0].MaxAge != -1 {
		t.Errorf("expected MaxAge -1 (delete), got %d", cookies[0].MaxAge)
	}
}

func TestConcurrentSessionAccess(t *testing.T) {
	a := New("code", "")
	a.Subscribe(func(string, bool) {})

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func() {
			token, _ := a.Login("alice", "code")
			a.ValidateSession(token)
			a.Logout(token)
			done <- true
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}

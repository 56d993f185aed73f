package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	CookieName    = "spinwheel_session"
	SessionExpiry = 24 * time.Hour
)

var (
	ErrInvalidCredentials = errors.New("invalid user id or access code")
	ErrNoJWTSecret        = errors.New("bearer tokens are not enabled")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// Wheel-themed words for access code generation
var codeWords = []string{
	"spin", "wheel", "lucky", "reward", "coin",
	"ticket", "shoe", "prize", "star", "gold",
	"bonus", "jackpot", "spark", "fortune", "pointer",
	"wedge", "streak", "token", "orbit",
}

// Claims is the bearer token payload issued by the identity provider.
// The subject is used when user_id is absent.
type Claims struct {
	UserID string `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

type session struct {
	userID  string
	expires time.Time
}

// Listener is told when a user signs in or out
type Listener func(userID string, signedIn bool)

// Auth handles user sign-in with a site-wide access code and verifies
// bearer tokens from an external identity provider
type Auth struct {
	accessCode string
	jwtSecret  []byte
	sessions   map[string]session
	mu         sync.RWMutex
	listeners  []Listener
	now        func() time.Time
}

// New creates a new Auth instance. An empty jwtSecret disables bearer tokens.
func New(accessCode, jwtSecret string) *Auth {
	a := &Auth{
		accessCode: accessCode,
		sessions:   make(map[string]session),
		now:        time.Now,
	}
	if jwtSecret != "" {
		a.jwtSecret = []byte(jwtSecret)
	}
	return a
}

// GenerateAccessCode creates a random 3-word access code
func GenerateAccessCode() string {
	words := make([]string, 3)
	for i := range words {
		words[i] = codeWords[randomInt(len(codeWords))]
	}
	return strings.Join(words, "-")
}

// Subscribe registers fn for sign-in and sign-out transitions
func (a *Auth) Subscribe(fn Listener) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, fn)
}

func (a *Auth) notify(userID string, signedIn bool) {
	a.mu.RLock()
	listeners := append([]Listener(nil), a.listeners...)
	a.mu.RUnlock()
	for _, fn := range listeners {
		fn(userID, signedIn)
	}
}

// activeLocked reports whether userID holds an unexpired session
func (a *Auth) activeLocked(userID string) bool {
	now := a.now()
	for _, s := range a.sessions {
		if s.userID == userID && now.Before(s.expires) {
			return true
		}
	}
	return false
}

// Login validates the access code and returns a session token
func (a *Auth) Login(userID, accessCode string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" || accessCode != a.accessCode {
		return "", ErrInvalidCredentials
	}

	token := uuid.NewString()
	a.mu.Lock()
	first := !a.activeLocked(userID)
	a.sessions[token] = session{userID: userID, expires: a.now().Add(SessionExpiry)}
	a.mu.Unlock()

	if first {
		a.notify(userID, true)
	}
	return token, nil
}

// Logout invalidates a session token
func (a *Auth) Logout(token string) {
	a.mu.Lock()
	s, ok := a.sessions[token]
	delete(a.sessions, token)
	last := ok && !a.activeLocked(s.userID)
	a.mu.Unlock()

	if last {
		a.notify(s.userID, false)
	}
}

// ValidateSession returns the user of a valid session token
func (a *Auth) ValidateSession(token string) (string, bool) {
	a.mu.RLock()
	s, exists := a.sessions[token]
	a.mu.RUnlock()

	if !exists {
		return "", false
	}

	if a.now().After(s.expires) {
		a.mu.Lock()
		delete(a.sessions, token)
		last := !a.activeLocked(s.userID)
		a.mu.Unlock()
		if last {
			a.notify(s.userID, false)
		}
		return "", false
	}

	return s.userID, true
}

// IssueToken signs a bearer token for userID
func (a *Auth) IssueToken(userID string, ttl time.Duration) (string, error) {
	if a.jwtSecret == nil {
		return "", ErrNoJWTSecret
	}
	now := a.now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.jwtSecret)
}

// ParseToken verifies an HS256 bearer token and returns its user
func (a *Auth) ParseToken(tokenString string) (string, error) {
	if a.jwtSecret == nil {
		return "", ErrNoJWTSecret
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.jwtSecret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	if claims.UserID != "" {
		return claims.UserID, nil
	}
	if claims.Subject != "" {
		return claims.Subject, nil
	}
	return "", ErrInvalidToken
}

// UserFromRequest returns the signed-in user from the session cookie or a
// bearer token, or "" for anonymous requests
func (a *Auth) UserFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(CookieName); err == nil {
		if userID, ok := a.ValidateSession(cookie.Value); ok {
			return userID
		}
	}

	header := r.Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	userID, err := a.ParseToken(parts[1])
	if err != nil {
		return ""
	}
	return userID
}

type contextKey struct{}

// WithUser returns a context carrying userID
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// UserFromContext returns the user placed by Identify, or ""
func UserFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(contextKey{}).(string)
	return userID
}

// Identify middleware puts the optional signed-in user in the request context
func (a *Auth) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID := a.UserFromRequest(r); userID != "" {
			r = r.WithContext(WithUser(r.Context(), userID))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireUser middleware for API endpoints (returns 401). It expects
// Identify to have run.
func (a *Auth) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserFromContext(r.Context()) != "" {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"code":"LOGIN_REQUIRED","error":"Login required"}`))
	})
}

// SetSessionCookie sets the session cookie on the response
func SetSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(SessionExpiry.Seconds()),
	})
}

// ClearSessionCookie removes the session cookie
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

// randomInt returns a random int in [0, max)
func randomInt(max int) int {
	bytes := make([]byte, 1)
	rand.Read(bytes)
	return int(bytes[0]) % max
}

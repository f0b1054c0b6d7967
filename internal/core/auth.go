package core

import (
	"net/http"
	"strings"
	"sync"
	"time"
)

// AuthResult is returned verbatim to the printer in the protocol
// response body.
type AuthResult struct {
	OK         bool
	HTTPStatus int
	Message    string
}

// AuthCache keeps a rolling "authenticated until" cutoff per restaurant.
// Printers poll every few seconds and the GET job fetch carries no
// Authorization header at all, so a still-valid window counts as
// authorization even without a credential.
type AuthCache struct {
	mu      sync.Mutex
	token   string
	window  time.Duration
	cutoffs map[string]time.Time
	now     func() time.Time
}

func NewAuthCache(token string, window time.Duration) *AuthCache {
	return &AuthCache{
		token:   token,
		window:  window,
		cutoffs: make(map[string]time.Time),
		now:     time.Now,
	}
}

// Authorize decides whether a request for this restaurant is
// authenticated. authorization is the raw Authorization header value,
// empty when the request carried none. Only a successful credential
// check refreshes the cutoff; an active window is used as-is and never
// extended.
func (a *AuthCache) Authorize(restaurantCode, authorization string) AuthResult {
	code := strings.ToLower(restaurantCode)

	a.mu.Lock()
	defer a.mu.Unlock()

	if cutoff, ok := a.cutoffs[code]; ok && a.now().Before(cutoff) {
		return AuthResult{OK: true, HTTPStatus: http.StatusOK, Message: "Authenticated using active time token."}
	}

	if authorization != "" {
		if strings.HasSuffix(authorization, a.token) {
			a.cutoffs[code] = a.now().Add(a.window)
			return AuthResult{OK: true, HTTPStatus: http.StatusOK, Message: "Authenticated using authorization header."}
		}
		return AuthResult{OK: false, HTTPStatus: http.StatusUnauthorized, Message: "Authentication Failed. Invalid Credentials."}
	}

	return AuthResult{OK: false, HTTPStatus: http.StatusUnauthorized, Message: "Authentication Required."}
}

// CutoffTime returns the restaurant's current window expiry and whether
// one exists, expired or not.
func (a *AuthCache) CutoffTime(restaurantCode string) (time.Time, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff, ok := a.cutoffs[strings.ToLower(restaurantCode)]
	return cutoff, ok
}

// ActiveWindows returns the expiry of every window that is still valid.
func (a *AuthCache) ActiveWindows() map[string]time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	active := make(map[string]time.Time)
	for code, cutoff := range a.cutoffs {
		if now.Before(cutoff) {
			active[code] = cutoff
		}
	}
	return active
}

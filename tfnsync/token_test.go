package tfnsync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func tokenEndpoint(t *testing.T, grants *int32, failRefresh bool) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/2.0/token" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		grantType := r.PostFormValue("grant_type")
		if grantType == "refresh_token" && failRefresh {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":"invalid_grant"}`)
			return
		}
		n := atomic.AddInt32(grants, 1)
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  fmt.Sprintf("token-%d", n),
			"refresh_token": fmt.Sprintf("refresh-%d", n),
			"token_type":    "bearer",
			"expires_in":    3600,
		})
	}
}

func newTestTokenManager(t *testing.T, baseURL string) *tokenManager {
	t.Helper()
	t.Setenv("TFN_BASE_URL", baseURL)
	t.Setenv("TFN_API_VERSION", "2.0")
	t.Setenv("TFN_USERNAME", "fleet-api")
	t.Setenv("TFN_PASSWORD", "secret")
	return newTokenManager(testLogger())
}

func TestTokenManager_AcquireCachesUntilExpiry(t *testing.T) {
	var grants int32
	srv := httptest.NewServer(tokenEndpoint(t, &grants, false))
	defer srv.Close()

	m := newTestTokenManager(t, srv.URL)

	token1, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	token2, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if token1 != token2 {
		t.Errorf("expected cached token, got %q then %q", token1, token2)
	}
	if got := atomic.LoadInt32(&grants); got != 1 {
		t.Errorf("expected 1 grant call, got %d", got)
	}
}

func TestTokenManager_RefreshAfterExpiry(t *testing.T) {
	var grants int32
	srv := httptest.NewServer(tokenEndpoint(t, &grants, false))
	defer srv.Close()

	m := newTestTokenManager(t, srv.URL)
	if _, err := m.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	// Pretend the token lifetime has passed.
	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	token, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire after expiry: %v", err)
	}
	if token != "token-2" {
		t.Errorf("expected refreshed token-2, got %q", token)
	}
	if got := atomic.LoadInt32(&grants); got != 2 {
		t.Errorf("expected 2 grant calls, got %d", got)
	}
}

func TestTokenManager_RefreshFailureFallsBackToLogin(t *testing.T) {
	var grants int32
	srv := httptest.NewServer(tokenEndpoint(t, &grants, true))
	defer srv.Close()

	m := newTestTokenManager(t, srv.URL)
	if _, err := m.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	token, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire with failing refresh: %v", err)
	}
	if token == "" {
		t.Fatal("expected a token from the login fallback")
	}
	if got := atomic.LoadInt32(&grants); got != 2 {
		t.Errorf("expected login fallback to issue a second grant, got %d", got)
	}
}

func TestTokenManager_MissingCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no network call expected with unconfigured credentials")
	}))
	defer srv.Close()

	t.Setenv("TFN_BASE_URL", srv.URL)
	t.Setenv("TFN_USERNAME", "")
	t.Setenv("TFN_PASSWORD", "")
	m := newTokenManager(testLogger())

	if _, err := m.Acquire(context.Background()); err == nil {
		t.Fatal("expected error for unconfigured credentials")
	}
}

// Concurrent callers with no valid token must share one login call and all
// see the same token.
func TestTokenManager_SingleFlight(t *testing.T) {
	var grants int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond) // widen the race window
		tokenEndpoint(t, &grants, false)(w, r)
	}))
	defer srv.Close()

	m := newTestTokenManager(t, srv.URL)

	const callers = 10
	tokens := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token, err := m.Acquire(context.Background())
			if err != nil {
				t.Errorf("Acquire: %v", err)
			}
			tokens[i] = token
		}(i)
	}
	wg.Wait()

	if got := atomic.LoadInt32(&grants); got != 1 {
		t.Errorf("expected exactly 1 grant call, got %d", got)
	}
	for i := 1; i < callers; i++ {
		if tokens[i] != tokens[0] {
			t.Errorf("caller %d got %q, caller 0 got %q", i, tokens[i], tokens[0])
		}
	}
}

func TestTokenManager_Logout(t *testing.T) {
	var grants int32
	var logouts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/2.0/logout" {
			if r.Header.Get("Authorization") == "" {
				t.Error("logout without bearer token")
			}
			atomic.AddInt32(&logouts, 1)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		tokenEndpoint(t, &grants, false)(w, r)
	}))
	defer srv.Close()

	m := newTestTokenManager(t, srv.URL)
	if _, err := m.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := m.Logout(context.Background()); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if atomic.LoadInt32(&logouts) != 1 {
		t.Error("expected one logout call")
	}

	// State is cleared: the next Acquire logs in again.
	if _, err := m.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire after logout: %v", err)
	}
	if got := atomic.LoadInt32(&grants); got != 2 {
		t.Errorf("expected a fresh login after logout, got %d grants", got)
	}
}

package tfnsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultBaseURL = "https://live.tfnconnect.com"
const defaultAPIVersion = "2.0"

// tokenExpiryMargin is subtracted from the server-reported lifetime so a
// token is refreshed before it can expire mid-request.
const tokenExpiryMargin = 60 * time.Second

// tokenManager owns the TFN session. The access/refresh token pair and its
// expiry are the only mutable shared state in the sync engine; they are
// read and written only under mu, which also serializes the login, refresh
// and logout calls so concurrent callers reuse one in-flight result.
type tokenManager struct {
	baseURL    string
	apiVersion string
	username   string
	password   string
	http       *http.Client
	logger     *logrus.Logger
	now        func() time.Time

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

func newTokenManager(logger *logrus.Logger) *tokenManager {
	baseURL := strings.TrimSpace(os.Getenv("TFN_BASE_URL"))
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	apiVersion := strings.TrimSpace(os.Getenv("TFN_API_VERSION"))
	if apiVersion == "" {
		apiVersion = defaultAPIVersion
	}

	return &tokenManager{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiVersion: apiVersion,
		username:   strings.TrimSpace(os.Getenv("TFN_USERNAME")),
		password:   strings.TrimSpace(os.Getenv("TFN_PASSWORD")),
		http:       &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
		now:        time.Now,
	}
}

type tokenResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    json.Number `json:"expires_in"`
}

// Acquire returns the cached access token while it is still valid,
// otherwise it refreshes the session, falling back to a full credential
// login when no refresh token exists or the refresh fails for any reason.
func (m *tokenManager) Acquire(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.accessToken != "" && m.now().Before(m.expiresAt) {
		return m.accessToken, nil
	}

	if m.refreshToken != "" {
		if err := m.refresh(ctx); err == nil {
			return m.accessToken, nil
		} else {
			m.logger.WithFields(logrus.Fields{
				"module": "tfnsync",
			}).Warnf("tfn token refresh failed, falling back to login: %v", err)
		}
	}

	if err := m.login(ctx); err != nil {
		m.logger.WithFields(logrus.Fields{
			"module": "tfnsync",
		}).Errorf("tfn login failed: %v", err)
		return "", err
	}
	return m.accessToken, nil
}

// Invalidate discards the cached access token so the next Acquire hits the
// token endpoint again. The refresh token is kept.
func (m *tokenManager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accessToken = ""
	m.expiresAt = time.Time{}
}

// Logout revokes the session on the partner side and clears all cached
// token state. The local state is cleared even when the remote call fails.
func (m *tokenManager) Logout(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	token := m.accessToken
	m.accessToken = ""
	m.refreshToken = ""
	m.expiresAt = time.Time{}

	if token == "" {
		return nil
	}

	endpoint := fmt.Sprintf("%s/api/%s/logout", m.baseURL, m.apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := m.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("tfn logout error %d", resp.StatusCode)
	}
	return nil
}

func (m *tokenManager) login(ctx context.Context) error {
	if m.username == "" || m.password == "" {
		return errors.New("tfn credentials are not configured")
	}
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", m.username)
	form.Set("password", m.password)
	return m.grant(ctx, form)
}

func (m *tokenManager) refresh(ctx context.Context) error {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", m.refreshToken)
	return m.grant(ctx, form)
}

func (m *tokenManager) grant(ctx context.Context, form url.Values) error {
	endpoint := fmt.Sprintf("%s/api/%s/token", m.baseURL, m.apiVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := m.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("tfn token error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return err
	}
	if parsed.AccessToken == "" {
		return errors.New("tfn token response missing access_token")
	}

	lifetime := time.Duration(0)
	if secs, err := parsed.ExpiresIn.Int64(); err == nil && secs > 0 {
		lifetime = time.Duration(secs) * time.Second
	}
	if lifetime > tokenExpiryMargin {
		lifetime -= tokenExpiryMargin
	} else {
		lifetime = 0
	}

	m.accessToken = parsed.AccessToken
	if parsed.RefreshToken != "" {
		m.refreshToken = parsed.RefreshToken
	}
	m.expiresAt = m.now().Add(lifetime)
	return nil
}

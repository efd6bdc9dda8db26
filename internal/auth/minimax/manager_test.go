package minimax

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newManager(t *testing.T) (*TokenManager, *TokenStore) {
	t.Helper()
	store := NewTokenStore(t.TempDir())
	auth := &MiniMaxAuth{httpClient: &http.Client{Timeout: 5 * time.Second}}
	return NewTokenManager(auth, store), store
}

func saveCredential(t *testing.T, store *TokenStore, expiresAt time.Time, refreshToken string) {
	t.Helper()
	ts := NewTokenStorage(&MiniMaxTokenData{
		AccessToken:  "AT1",
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresAt:    expiresAt.Unix(),
	}, RegionCN)
	if err := store.Save(ts); err != nil {
		t.Fatalf("Save: %v", err)
	}
}

func TestGetAccessTokenFreshSkipsNetwork(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	manager, store := newManager(t)
	saveCredential(t, store, time.Now().Add(time.Hour), "RT1")

	token, err := manager.GetAccessToken(context.Background(), testRegion(server.URL))
	if err != nil {
		t.Fatalf("GetAccessToken: %v", err)
	}
	if token != "AT1" {
		t.Fatalf("expected cached token, got %q", token)
	}
	if got := atomic.LoadInt32(&calls); got != 0 {
		t.Fatalf("fresh token must not touch the network, got %d calls", got)
	}
}

func TestGetAccessTokenAbsent(t *testing.T) {
	manager, _ := newManager(t)
	_, err := manager.GetAccessToken(context.Background(), testRegion("http://127.0.0.1:0"))
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestGetAccessTokenCorruptTreatedAsAbsent(t *testing.T) {
	manager, store := newManager(t)
	if err := os.WriteFile(store.Path(RegionCN), []byte("junk"), 0600); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	_, err := manager.GetAccessToken(context.Background(), testRegion("http://127.0.0.1:0"))
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated for corrupt file, got %v", err)
	}
}

func TestGetAccessTokenRefreshesAndPersists(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.PostFormValue("grant_type"); got != "refresh_token" {
			t.Fatalf("unexpected grant_type: %s", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "AT2",
			"refresh_token": "RT2",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	}))
	defer server.Close()

	manager, store := newManager(t)
	saveCredential(t, store, time.Now().Add(-time.Minute), "RT1")

	token, err := manager.GetAccessToken(context.Background(), testRegion(server.URL))
	if err != nil {
		t.Fatalf("GetAccessToken: %v", err)
	}
	if token != "AT2" {
		t.Fatalf("expected refreshed token, got %q", token)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected exactly one refresh call, got %d", got)
	}

	// The rotated credential must be persisted before GetAccessToken returns.
	persisted, err := store.Load(RegionCN)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if persisted.AccessToken != "AT2" || persisted.RefreshToken != "RT2" {
		t.Fatalf("refresh result not persisted: %+v", persisted)
	}
}

func TestGetAccessTokenExpiredWithoutRefreshToken(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	manager, store := newManager(t)
	saveCredential(t, store, time.Now().Add(-time.Minute), "")

	_, err := manager.GetAccessToken(context.Background(), testRegion(server.URL))
	if !errors.Is(err, ErrReauthRequired) {
		t.Fatalf("expected ErrReauthRequired, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 0 {
		t.Fatalf("no refresh token means no network call, got %d", got)
	}
}

func TestGetAccessTokenRevokedClearsCredential(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "invalid_grant"})
	}))
	defer server.Close()

	manager, store := newManager(t)
	saveCredential(t, store, time.Now().Add(-time.Minute), "RT1")

	_, err := manager.GetAccessToken(context.Background(), testRegion(server.URL))
	if !errors.Is(err, ErrReauthRequired) {
		t.Fatalf("expected ErrReauthRequired, got %v", err)
	}
	record, err := store.Load(RegionCN)
	if err != nil {
		t.Fatalf("Load after revocation: %v", err)
	}
	if record != nil {
		t.Fatalf("revoked credential must be cleared, got %+v", record)
	}
}

func TestGetAccessTokenTransientKeepsCredential(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	manager, store := newManager(t)
	saveCredential(t, store, time.Now().Add(-time.Minute), "RT1")

	_, err := manager.GetAccessToken(context.Background(), testRegion(server.URL))
	if !IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
	record, err := store.Load(RegionCN)
	if err != nil {
		t.Fatalf("Load after transient failure: %v", err)
	}
	if record == nil || record.RefreshToken != "RT1" {
		t.Fatalf("stale credential must survive a transient failure: %+v", record)
	}
}

func TestGetAccessTokenSingleFlight(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(50 * time.Millisecond) // widen the race window
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "AT2",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	defer server.Close()

	manager, store := newManager(t)
	saveCredential(t, store, time.Now().Add(-time.Minute), "RT1")

	const workers = 10
	var wg sync.WaitGroup
	tokens := make([]string, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = manager.GetAccessToken(context.Background(), testRegion(server.URL))
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		if tokens[i] != "AT2" {
			t.Fatalf("worker %d: expected shared refresh result, got %q", i, tokens[i])
		}
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected exactly one refresh call across %d callers, got %d", workers, got)
	}
}

func TestForceRefreshIgnoresMargin(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "AT2",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	defer server.Close()

	manager, store := newManager(t)
	saveCredential(t, store, time.Now().Add(time.Hour), "RT1")

	token, err := manager.Refresh(context.Background(), testRegion(server.URL))
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if token != "AT2" {
		t.Fatalf("expected refreshed token, got %q", token)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("forced refresh must hit the network once, got %d", got)
	}
}

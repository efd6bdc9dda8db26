package minimax

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// TokenManager is the primary contract consumed by the LLM client: it hands back
// a currently valid access token, refreshing transparently when the stored
// credential is near or past expiry. Refreshes are single-flighted per region so
// concurrent in-process callers share one network round-trip. Cross-process
// races are tolerated; the store's atomic writes keep the file self-consistent.
type TokenManager struct {
	auth  *MiniMaxAuth
	store *TokenStore
	group singleflight.Group
}

// NewTokenManager creates a manager over the given auth client and store.
func NewTokenManager(auth *MiniMaxAuth, store *TokenStore) *TokenManager {
	return &TokenManager{auth: auth, store: store}
}

// Store exposes the underlying token store.
func (m *TokenManager) Store() *TokenStore {
	return m.store
}

// GetAccessToken returns a currently valid access token for the region. The
// stored file is read fresh on every call; when the token is more than the
// safety margin from expiry it is returned without any network traffic.
func (m *TokenManager) GetAccessToken(ctx context.Context, region RegionConfig) (string, error) {
	token, err, _ := m.group.Do(region.Name, func() (interface{}, error) {
		return m.getAccessToken(ctx, region)
	})
	if err != nil {
		return "", err
	}
	return token.(string), nil
}

func (m *TokenManager) getAccessToken(ctx context.Context, region RegionConfig) (string, error) {
	ts, err := m.store.Load(region.Name)
	if err != nil {
		if errors.Is(err, ErrCorruptTokenFile) {
			// A corrupt file is "no valid credential" here; status reports it distinctly.
			log.Warnf("token file for region %s is corrupt: %v", region.Name, err)
			return "", fmt.Errorf("%w: token file corrupt, run login again", ErrNotAuthenticated)
		}
		return "", err
	}
	if ts == nil {
		return "", fmt.Errorf("%w: no credential stored for region %s", ErrNotAuthenticated, region.Name)
	}

	if !ts.IsExpired() {
		return ts.AccessToken, nil
	}
	if ts.RefreshToken == "" {
		return "", fmt.Errorf("%w: access token expired and no refresh token available", ErrReauthRequired)
	}

	return m.refreshAndPersist(ctx, region, ts)
}

// Refresh forces one refresh round-trip regardless of the expiry margin.
func (m *TokenManager) Refresh(ctx context.Context, region RegionConfig) (string, error) {
	token, err, _ := m.group.Do(region.Name+"/force", func() (interface{}, error) {
		ts, err := m.store.Load(region.Name)
		if err != nil {
			return "", err
		}
		if ts == nil {
			return "", fmt.Errorf("%w: no credential stored for region %s", ErrNotAuthenticated, region.Name)
		}
		if ts.RefreshToken == "" {
			return "", fmt.Errorf("%w: stored credential has no refresh token", ErrReauthRequired)
		}
		return m.refreshAndPersist(ctx, region, ts)
	})
	if err != nil {
		return "", err
	}
	return token.(string), nil
}

// refreshAndPersist exchanges the refresh token and rewrites the store before
// returning the new access token. A rejected refresh token clears the stored
// credential; a transient failure leaves the stale record in place for retry.
func (m *TokenManager) refreshAndPersist(ctx context.Context, region RegionConfig, ts *MiniMaxTokenStorage) (string, error) {
	tokenData, err := m.auth.RefreshTokens(ctx, region, ts.RefreshToken)
	if err != nil {
		if errors.Is(err, ErrReauthRequired) {
			if clearErr := m.store.Clear(region.Name); clearErr != nil {
				log.Warnf("failed to clear revoked credential: %v", clearErr)
			}
		}
		return "", err
	}

	ts.Update(tokenData)
	if err = m.store.Save(ts); err != nil {
		return "", fmt.Errorf("failed to persist refreshed token: %w", err)
	}
	log.Debugf("refreshed access token for region %s, expires at %s", region.Name, ts.ExpiresAtTime().Format("2006-01-02 15:04:05"))
	return ts.AccessToken, nil
}

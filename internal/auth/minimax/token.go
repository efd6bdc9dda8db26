package minimax

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/router-for-me/MiniMaxAuth/internal/misc"
)

const (
	// tokenRecordVersion is the schema version written to new token files.
	tokenRecordVersion = 1
	// tokenRecordType marks the record as a MiniMax credential.
	tokenRecordType = "minimax"
	// refreshMargin is how long before expiry a token is treated as expired.
	refreshMargin = 60 * time.Second
)

// MiniMaxTokenStorage is the on-disk credential record. The file is the source
// of truth across process invocations; in-memory copies are never authoritative.
type MiniMaxTokenStorage struct {
	// Version is the schema version of the record.
	Version int `json:"version"`
	// Type indicates the credential provider, always "minimax" for this storage.
	Type string `json:"type"`
	// AccessToken is the bearer credential used for API requests.
	AccessToken string `json:"access_token"`
	// RefreshToken is used to obtain new access tokens; absent for non-refreshable tokens.
	RefreshToken string `json:"refresh_token,omitempty"`
	// TokenType is the type of token, typically "Bearer".
	TokenType string `json:"token_type,omitempty"`
	// Scope is the OAuth scope granted to the token.
	Scope string `json:"scope,omitempty"`
	// Region is the region tag the credential was issued for.
	Region string `json:"region"`
	// ExpiresAt is the Unix timestamp when the access token expires.
	ExpiresAt int64 `json:"expires_at"`
	// ObtainedAt is the Unix timestamp when the credential was obtained or last refreshed.
	ObtainedAt int64 `json:"obtained_at"`
}

// NewTokenStorage builds a storage record from token data for a region.
func NewTokenStorage(tokenData *MiniMaxTokenData, region string) *MiniMaxTokenStorage {
	return &MiniMaxTokenStorage{
		Version:      tokenRecordVersion,
		Type:         tokenRecordType,
		AccessToken:  tokenData.AccessToken,
		RefreshToken: tokenData.RefreshToken,
		TokenType:    tokenData.TokenType,
		Scope:        tokenData.Scope,
		Region:       region,
		ExpiresAt:    tokenData.ExpiresAt,
		ObtainedAt:   time.Now().Unix(),
	}
}

// Update overwrites the token fields from fresh token data, carrying the old
// refresh token forward when the provider did not rotate it.
func (ts *MiniMaxTokenStorage) Update(tokenData *MiniMaxTokenData) {
	ts.Version = tokenRecordVersion
	ts.Type = tokenRecordType
	ts.AccessToken = tokenData.AccessToken
	if tokenData.RefreshToken != "" {
		ts.RefreshToken = tokenData.RefreshToken
	}
	if tokenData.TokenType != "" {
		ts.TokenType = tokenData.TokenType
	}
	if tokenData.Scope != "" {
		ts.Scope = tokenData.Scope
	}
	ts.ExpiresAt = tokenData.ExpiresAt
	ts.ObtainedAt = time.Now().Unix()
}

// ExpiresAtTime returns the access token expiry as a time.Time.
func (ts *MiniMaxTokenStorage) ExpiresAtTime() time.Time {
	return time.Unix(ts.ExpiresAt, 0)
}

// IsExpired checks if the token has expired or is within the refresh margin.
func (ts *MiniMaxTokenStorage) IsExpired() bool {
	if ts.ExpiresAt <= 0 {
		return false // No expiry set, assume valid
	}
	return !time.Now().Add(refreshMargin).Before(ts.ExpiresAtTime())
}

// NeedsRefresh checks if the token should be refreshed.
func (ts *MiniMaxTokenStorage) NeedsRefresh() bool {
	if ts.RefreshToken == "" {
		return false // Can't refresh without refresh token
	}
	return ts.IsExpired()
}

// TokenStore persists one credential file per region under the auth directory.
type TokenStore struct {
	dir string
}

// NewTokenStore creates a store rooted at the given auth directory.
func NewTokenStore(authDir string) *TokenStore {
	return &TokenStore{dir: authDir}
}

// Path returns the token file path for a region tag.
func (s *TokenStore) Path(region string) string {
	return filepath.Join(s.dir, "minimax-"+region+".json")
}

// Load reads the credential for a region. It returns (nil, nil) when no file
// exists and ErrCorruptTokenFile when the file is present but unusable.
func (s *TokenStore) Load(region string) (*MiniMaxTokenStorage, error) {
	data, err := os.ReadFile(s.Path(region))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var ts MiniMaxTokenStorage
	if err = json.Unmarshal(data, &ts); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptTokenFile, err)
	}
	if ts.AccessToken == "" {
		return nil, fmt.Errorf("%w: access_token missing", ErrCorruptTokenFile)
	}
	if ts.Type != "" && ts.Type != tokenRecordType {
		return nil, fmt.Errorf("%w: unexpected record type %q", ErrCorruptTokenFile, ts.Type)
	}
	return &ts, nil
}

// Save writes the credential atomically: the record is marshalled to a temp file
// with owner-only permissions and renamed over the destination, so a concurrent
// reader never observes a half-written file.
func (s *TokenStore) Save(ts *MiniMaxTokenStorage) error {
	if ts == nil {
		return fmt.Errorf("token storage is nil")
	}
	if ts.Region == "" {
		return fmt.Errorf("token storage has no region")
	}
	ts.Version = tokenRecordVersion
	ts.Type = tokenRecordType

	path := s.Path(ts.Region)
	misc.LogSavingCredentials(path)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create auth directory: %w", err)
	}

	data, err := json.MarshalIndent(ts, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token record: %w", err)
	}
	data = append(data, '\n')

	tmp := path + ".tmp"
	if err = os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err = os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace token file: %w", err)
	}
	return nil
}

// Clear removes the credential file for a region. Removing an absent file is not
// an error.
func (s *TokenStore) Clear(region string) error {
	err := os.Remove(s.Path(region))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}

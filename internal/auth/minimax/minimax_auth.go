package minimax

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/router-for-me/MiniMaxAuth/internal/config"
	"github.com/router-for-me/MiniMaxAuth/internal/util"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

const (
	// MiniMaxOAuthGrantType specifies the grant type for the device code flow.
	MiniMaxOAuthGrantType = "urn:ietf:params:oauth:grant-type:device_code"

	// defaultPollInterval applies when the provider omits the polling interval.
	defaultPollInterval = 5 * time.Second
	// slowDownStep is added to the polling interval on each slow_down response.
	slowDownStep = 5 * time.Second
	// maxPollInterval caps the polling interval regardless of slow_down responses.
	maxPollInterval = 30 * time.Second
	// defaultSessionExpiry applies when the provider omits expires_in.
	defaultSessionExpiry = 300 * time.Second
)

// DeviceSession represents one in-flight device authorization attempt. It is
// consumed entirely by PollForToken and never persisted; the device code and the
// PKCE verifier stay in memory only.
type DeviceSession struct {
	// Region is the resolved region the session was started against.
	Region RegionConfig
	// DeviceCode is the opaque server-issued code used when polling. Never shown to the user.
	DeviceCode string
	// UserCode is the short code the user enters at the verification URI.
	UserCode string
	// VerificationURI is the URL where the user approves the device.
	VerificationURI string
	// VerificationURIComplete is the verification URL with the user code pre-filled.
	VerificationURIComplete string
	// ExpiresAt is the absolute deadline for the whole login attempt.
	ExpiresAt time.Time
	// Interval is the minimum gap between polling requests.
	Interval time.Duration
	// CodeVerifier is the PKCE verifier echoed on every polling request.
	CodeVerifier string
}

// deviceCodeResponse is the wire form of the device-authorization response.
type deviceCodeResponse struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete"`
	ExpiresIn               int    `json:"expires_in"`
	Interval                int    `json:"interval"`
}

// tokenResponse is the wire form of a successful token-endpoint response.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope,omitempty"`
	ExpiresIn    int    `json:"expires_in"`
}

// MiniMaxTokenData holds a credential as returned by the token endpoint.
type MiniMaxTokenData struct {
	// AccessToken is the bearer credential for API requests.
	AccessToken string
	// RefreshToken is used to obtain new access tokens; may be empty.
	RefreshToken string
	// TokenType is the type of token, typically "Bearer".
	TokenType string
	// Scope is the OAuth scope granted to the token.
	Scope string
	// ExpiresAt is the Unix timestamp when the access token expires.
	ExpiresAt int64
}

// MiniMaxAuth drives the MiniMax OAuth device flow and token refresh.
type MiniMaxAuth struct {
	httpClient *http.Client
	// clientID overrides the registry client identifier when non-empty.
	clientID string
}

// NewMiniMaxAuth creates a MiniMaxAuth with a proxy-configured HTTP client.
func NewMiniMaxAuth(cfg *config.Config) *MiniMaxAuth {
	client := &http.Client{Timeout: 30 * time.Second}
	clientID := ""
	if cfg != nil {
		client = util.SetProxy(cfg, client)
		clientID = strings.TrimSpace(cfg.ClientID)
	}
	return &MiniMaxAuth{httpClient: client, clientID: clientID}
}

// clientIDFor returns the effective client identifier for a region.
func (ma *MiniMaxAuth) clientIDFor(region RegionConfig) string {
	if ma.clientID != "" {
		return ma.clientID
	}
	return region.ClientID
}

// generateCodeVerifier generates a cryptographically random PKCE code verifier.
func generateCodeVerifier() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// generateCodeChallenge creates the S256 code challenge for a verifier.
// MiniMax expects the hex encoding of the digest rather than base64url.
func generateCodeChallenge(codeVerifier string) string {
	hash := sha256.Sum256([]byte(codeVerifier))
	return hex.EncodeToString(hash[:])
}

// generateState generates the random state parameter for the authorization request.
func generateState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// InitiateDeviceFlow starts the device authorization flow against the region's
// device-authorization endpoint and returns the session descriptor the poller
// consumes. No state is persisted before this returns.
func (ma *MiniMaxAuth) InitiateDeviceFlow(ctx context.Context, region RegionConfig) (*DeviceSession, error) {
	codeVerifier, err := generateCodeVerifier()
	if err != nil {
		return nil, fmt.Errorf("failed to generate PKCE verifier: %w", err)
	}
	state, err := generateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state: %w", err)
	}

	data := url.Values{}
	data.Set("response_type", "code")
	data.Set("client_id", ma.clientIDFor(region))
	data.Set("scope", region.Scope)
	data.Set("code_challenge", generateCodeChallenge(codeVerifier))
	data.Set("code_challenge_method", "S256")
	data.Set("state", state)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, region.DeviceCodeEndpoint(), strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create device authorization request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := ma.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("device authorization request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read device authorization response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, ma.oauthErrorFromBody(body, resp.StatusCode)
	}

	var result deviceCodeResponse
	if err = json.Unmarshal(body, &result); err != nil {
		return nil, NewOAuthError("invalid_response", fmt.Sprintf("failed to parse device authorization response: %v", err), resp.StatusCode)
	}
	if result.DeviceCode == "" || result.UserCode == "" {
		return nil, NewOAuthError("invalid_response", "device_code or user_code missing in response", resp.StatusCode)
	}

	interval := defaultPollInterval
	if result.Interval > 0 {
		interval = time.Duration(result.Interval) * time.Second
	}
	expiry := defaultSessionExpiry
	if result.ExpiresIn > 0 {
		expiry = time.Duration(result.ExpiresIn) * time.Second
	}

	return &DeviceSession{
		Region:                  region,
		DeviceCode:              result.DeviceCode,
		UserCode:                result.UserCode,
		VerificationURI:         result.VerificationURI,
		VerificationURIComplete: result.VerificationURIComplete,
		ExpiresAt:               time.Now().Add(expiry),
		Interval:                interval,
		CodeVerifier:            codeVerifier,
	}, nil
}

// PollForToken drives the device flow to a terminal outcome. It blocks until the
// user approves, the session expires, the provider denies, or ctx is cancelled.
// Cancellation stops polling immediately without a further request.
func (ma *MiniMaxAuth) PollForToken(ctx context.Context, session *DeviceSession) (*MiniMaxTokenData, error) {
	if session == nil {
		return nil, fmt.Errorf("device session is nil")
	}

	interval := session.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	for {
		remaining := time.Until(session.ExpiresAt)
		if remaining <= 0 {
			return nil, fmt.Errorf("%w: session deadline reached", ErrDeviceCodeExpired)
		}
		wait := interval
		if remaining < wait {
			wait = remaining
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		if !time.Now().Before(session.ExpiresAt) {
			return nil, fmt.Errorf("%w: session deadline reached", ErrDeviceCodeExpired)
		}

		token, slowDown, err := ma.exchangeDeviceCode(ctx, session)
		if err != nil {
			return nil, err
		}
		if token != nil {
			return token, nil
		}
		if slowDown {
			interval += slowDownStep
			if interval > maxPollInterval {
				interval = maxPollInterval
			}
			log.Debugf("provider requested slow_down, polling interval now %v", interval)
		}
	}
}

// exchangeDeviceCode performs one token-endpoint poll. A nil token with a nil
// error means the authorization is still pending; slowDown reports whether the
// provider asked for a longer interval.
func (ma *MiniMaxAuth) exchangeDeviceCode(ctx context.Context, session *DeviceSession) (token *MiniMaxTokenData, slowDown bool, err error) {
	data := url.Values{}
	data.Set("grant_type", MiniMaxOAuthGrantType)
	data.Set("client_id", ma.clientIDFor(session.Region))
	data.Set("device_code", session.DeviceCode)
	data.Set("code_verifier", session.CodeVerifier)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, session.Region.TokenEndpoint(), strings.NewReader(data.Encode()))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := ma.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("token poll request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		errCode := gjson.GetBytes(body, "error").String()
		switch errCode {
		case "authorization_pending":
			return nil, false, nil
		case "slow_down":
			return nil, true, nil
		case "expired_token":
			return nil, false, fmt.Errorf("%w: provider invalidated the device code", ErrDeviceCodeExpired)
		case "access_denied":
			return nil, false, ErrAuthorizationDenied
		}
		return nil, false, ma.oauthErrorFromBody(body, resp.StatusCode)
	}

	var response tokenResponse
	if err = json.Unmarshal(body, &response); err != nil {
		return nil, false, NewOAuthError("invalid_response", fmt.Sprintf("failed to parse token response: %v", err), resp.StatusCode)
	}
	if response.AccessToken == "" {
		return nil, false, NewOAuthError("invalid_response", "access_token missing in token response", resp.StatusCode)
	}

	return tokenDataFromResponse(&response), false, nil
}

// RefreshTokens exchanges a refresh token for a new access token.
// Authorization rejections map to ErrReauthRequired; network failures and
// provider-side errors map to ErrRefreshTransient so callers can retry.
func (ma *MiniMaxAuth) RefreshTokens(ctx context.Context, region RegionConfig, refreshToken string) (*MiniMaxTokenData, error) {
	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("client_id", ma.clientIDFor(region))
	data.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, region.TokenEndpoint(), strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := ma.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRefreshTransient, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRefreshTransient, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden:
		detail := gjson.GetBytes(body, "error").String()
		if desc := gjson.GetBytes(body, "error_description").String(); desc != "" {
			detail = detail + " - " + desc
		}
		if detail == "" {
			detail = strings.TrimSpace(string(body))
		}
		return nil, fmt.Errorf("%w: refresh token rejected (status %d): %s", ErrReauthRequired, resp.StatusCode, detail)
	default:
		return nil, fmt.Errorf("%w: refresh failed with status %d: %s", ErrRefreshTransient, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var response tokenResponse
	if err = json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("%w: failed to parse refresh response: %v", ErrRefreshTransient, err)
	}
	if response.AccessToken == "" {
		return nil, fmt.Errorf("%w: empty access token in refresh response", ErrRefreshTransient)
	}

	return tokenDataFromResponse(&response), nil
}

// RefreshTokensWithRetry retries transient refresh failures with linear backoff.
// Terminal failures (ErrReauthRequired) are returned immediately.
func (ma *MiniMaxAuth) RefreshTokensWithRetry(ctx context.Context, region RegionConfig, refreshToken string, maxRetries int) (*MiniMaxTokenData, error) {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		tokenData, err := ma.RefreshTokens(ctx, region, refreshToken)
		if err == nil {
			return tokenData, nil
		}
		if !IsTransient(err) {
			return nil, err
		}

		lastErr = err
		log.Warnf("token refresh attempt %d failed: %v", attempt+1, err)
	}
	return nil, fmt.Errorf("token refresh failed after %d attempts: %w", maxRetries, lastErr)
}

// tokenDataFromResponse converts a wire token response to MiniMaxTokenData.
func tokenDataFromResponse(response *tokenResponse) *MiniMaxTokenData {
	var expiresAt int64
	if response.ExpiresIn > 0 {
		expiresAt = time.Now().Unix() + int64(response.ExpiresIn)
	}
	return &MiniMaxTokenData{
		AccessToken:  response.AccessToken,
		RefreshToken: response.RefreshToken,
		TokenType:    response.TokenType,
		Scope:        response.Scope,
		ExpiresAt:    expiresAt,
	}
}

// oauthErrorFromBody builds an OAuthError from a provider error body, falling
// back to the raw body when it is not the standard error shape.
func (ma *MiniMaxAuth) oauthErrorFromBody(body []byte, statusCode int) *OAuthError {
	errCode := gjson.GetBytes(body, "error").String()
	if errCode == "" {
		return NewOAuthError("invalid_response", strings.TrimSpace(string(body)), statusCode)
	}
	return NewOAuthError(errCode, gjson.GetBytes(body, "error_description").String(), statusCode)
}

// IsTransient reports whether an error is a retryable refresh failure.
func IsTransient(err error) bool {
	return errors.Is(err, ErrRefreshTransient)
}

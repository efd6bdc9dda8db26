package minimax

import (
	"fmt"
	"strings"
)

const (
	// RegionCN selects the domestic MiniMax platform.
	RegionCN = "cn"
	// RegionGlobal selects the international MiniMax platform.
	RegionGlobal = "global"

	// MiniMaxOAuthClientID is the client identifier for the MiniMax OAuth 2.0 application.
	// Both regions share the same registration.
	MiniMaxOAuthClientID = "78257093-7e40-4613-99e0-527b14b39113"
	// MiniMaxOAuthScope defines the permissions requested by the application.
	MiniMaxOAuthScope = "group_id profile model.completion"
)

// RegionConfig describes one MiniMax region: its endpoints and client registration.
// Entries are pure data; adding a region means adding a registry entry.
type RegionConfig struct {
	// Name is the region tag ("cn" or "global").
	Name string
	// BaseURL is the API origin for the region.
	BaseURL string
	// ClientID is the OAuth client identifier to present to the region.
	ClientID string
	// Scope is the OAuth scope string requested during the device flow.
	Scope string
}

// DeviceCodeEndpoint returns the device-authorization endpoint for the region.
func (r RegionConfig) DeviceCodeEndpoint() string {
	return r.BaseURL + "/oauth/code"
}

// TokenEndpoint returns the token endpoint for the region.
func (r RegionConfig) TokenEndpoint() string {
	return r.BaseURL + "/oauth/token"
}

var regionRegistry = map[string]RegionConfig{
	RegionCN: {
		Name:     RegionCN,
		BaseURL:  "https://api.minimaxi.com",
		ClientID: MiniMaxOAuthClientID,
		Scope:    MiniMaxOAuthScope,
	},
	RegionGlobal: {
		Name:     RegionGlobal,
		BaseURL:  "https://api.minimax.io",
		ClientID: MiniMaxOAuthClientID,
		Scope:    MiniMaxOAuthScope,
	},
}

// ResolveRegion maps a region tag to its configuration.
// The tag comparison is case-insensitive.
func ResolveRegion(tag string) (RegionConfig, error) {
	normalized := strings.ToLower(strings.TrimSpace(tag))
	region, ok := regionRegistry[normalized]
	if !ok {
		return RegionConfig{}, fmt.Errorf("%w: %q (expected %q or %q)", ErrUnknownRegion, tag, RegionCN, RegionGlobal)
	}
	return region, nil
}

// Regions returns the supported region tags.
func Regions() []string {
	return []string{RegionCN, RegionGlobal}
}

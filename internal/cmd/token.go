package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/router-for-me/MiniMaxAuth/internal/auth/minimax"
	"github.com/router-for-me/MiniMaxAuth/internal/config"
)

// DoGetToken prints a currently valid access token for the region, refreshing
// transparently when the stored credential is near or past expiry. Only the
// token is written to stdout so the output can be captured by scripts.
func DoGetToken(ctx context.Context, cfg *config.Config, regionTag string) error {
	region, err := minimax.ResolveRegion(regionTag)
	if err != nil {
		return err
	}
	manager, err := newTokenManager(cfg)
	if err != nil {
		return err
	}

	token, err := manager.GetAccessToken(ctx, region)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

// DoRefresh forces one refresh round-trip regardless of the expiry margin and
// reports the new expiry.
func DoRefresh(ctx context.Context, cfg *config.Config, regionTag string) error {
	region, err := minimax.ResolveRegion(regionTag)
	if err != nil {
		return err
	}
	manager, err := newTokenManager(cfg)
	if err != nil {
		return err
	}

	if _, err = manager.Refresh(ctx, region); err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}

	status := manager.Store().Status(region.Name)
	fmt.Printf("Access token refreshed, expires at %s\n", status.ExpiresAt.Local().Format(time.RFC3339))
	return nil
}

func newTokenManager(cfg *config.Config) (*minimax.TokenManager, error) {
	authDir, err := cfg.ResolveAuthDir()
	if err != nil {
		return nil, err
	}
	return minimax.NewTokenManager(minimax.NewMiniMaxAuth(cfg), minimax.NewTokenStore(authDir)), nil
}

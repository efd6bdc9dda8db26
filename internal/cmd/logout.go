package cmd

import (
	"fmt"

	"github.com/router-for-me/MiniMaxAuth/internal/auth/minimax"
	"github.com/router-for-me/MiniMaxAuth/internal/config"
)

// DoLogout removes the stored credential for the region. Clearing an absent
// credential succeeds silently.
func DoLogout(cfg *config.Config, regionTag string) error {
	region, err := minimax.ResolveRegion(regionTag)
	if err != nil {
		return err
	}
	authDir, err := cfg.ResolveAuthDir()
	if err != nil {
		return err
	}

	store := minimax.NewTokenStore(authDir)
	if err = store.Clear(region.Name); err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	fmt.Printf("Credential for region %s cleared.\n", region.Name)
	return nil
}

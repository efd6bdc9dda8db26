package cmd

import (
	"fmt"
	"time"

	"github.com/router-for-me/MiniMaxAuth/internal/auth/minimax"
	"github.com/router-for-me/MiniMaxAuth/internal/config"
)

// DoStatus prints the state of the stored credential for the region. It is
// read-only: no refresh and no network traffic.
func DoStatus(cfg *config.Config, regionTag string) error {
	region, err := minimax.ResolveRegion(regionTag)
	if err != nil {
		return err
	}
	authDir, err := cfg.ResolveAuthDir()
	if err != nil {
		return err
	}

	store := minimax.NewTokenStore(authDir)
	status := store.Status(region.Name)

	fmt.Printf("Region:     %s\n", status.Region)
	fmt.Printf("Credential: %s\n", status.State)
	switch status.State {
	case minimax.StateValid, minimax.StateExpired:
		fmt.Printf("Expires at: %s\n", status.ExpiresAt.Local().Format(time.RFC3339))
		if status.HasRefreshToken {
			fmt.Println("Refresh:    available")
		} else {
			fmt.Println("Refresh:    not available (re-login required after expiry)")
		}
	case minimax.StateCorrupt:
		fmt.Printf("Token file %s is present but unreadable; run -logout then -login to replace it.\n", store.Path(region.Name))
	case minimax.StateAbsent:
		fmt.Println("Run with -login to authenticate.")
	}
	return nil
}

package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/router-for-me/MiniMaxAuth/internal/auth/minimax"
	"github.com/router-for-me/MiniMaxAuth/internal/browser"
	"github.com/router-for-me/MiniMaxAuth/internal/config"
	log "github.com/sirupsen/logrus"
)

// DoLogin runs the OAuth device flow for the region and saves the credential.
// It requests a device code, displays the user code and verification URL, polls
// until the user approves or the flow terminates, and persists the token file.
func DoLogin(ctx context.Context, cfg *config.Config, regionTag string, options *LoginOptions) error {
	if options == nil {
		options = &LoginOptions{}
	}

	region, err := minimax.ResolveRegion(regionTag)
	if err != nil {
		return err
	}
	authDir, err := cfg.ResolveAuthDir()
	if err != nil {
		return err
	}

	attemptID := uuid.New().String()
	log.WithFields(log.Fields{"region": region.Name, "attempt_id": attemptID}).Debug("starting MiniMax device flow")

	auth := minimax.NewMiniMaxAuth(cfg)
	session, err := auth.InitiateDeviceFlow(ctx, region)
	if err != nil {
		return fmt.Errorf("device authorization failed: %w", err)
	}

	verificationURL := session.VerificationURIComplete
	if verificationURL == "" {
		verificationURL = session.VerificationURI
	}

	fmt.Println()
	fmt.Printf("Please visit: %s\n", verificationURL)
	fmt.Printf("Enter code:   %s\n", session.UserCode)
	fmt.Println()

	if !options.NoBrowser && verificationURL != "" {
		if errOpen := browser.OpenURL(verificationURL); errOpen != nil {
			log.Debugf("failed to open browser: %v", errOpen)
			fmt.Println("Could not open your browser automatically; please open the URL above manually.")
		}
	}

	fmt.Println("Waiting for authorization...")
	tokenData, err := auth.PollForToken(ctx, session)
	if err != nil {
		switch {
		case errors.Is(err, minimax.ErrAuthorizationDenied):
			return fmt.Errorf("authorization was denied; run login again to retry: %w", err)
		case errors.Is(err, minimax.ErrDeviceCodeExpired):
			return fmt.Errorf("the login session expired before approval; run login again: %w", err)
		default:
			return fmt.Errorf("authentication failed: %w", err)
		}
	}

	store := minimax.NewTokenStore(authDir)
	storage := minimax.NewTokenStorage(tokenData, region.Name)
	if err = store.Save(storage); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}

	fmt.Printf("Authentication saved to %s\n", store.Path(region.Name))
	fmt.Println("MiniMax authentication successful!")
	return nil
}

// Package main provides the entry point for the MiniMax auth CLI.
// The tool authenticates a terminal user against the MiniMax platform using the
// OAuth 2.0 Device Authorization Grant and manages the resulting credential
// file consumed by LLM routing tools.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/router-for-me/MiniMaxAuth/internal/auth/minimax"
	"github.com/router-for-me/MiniMaxAuth/internal/buildinfo"
	"github.com/router-for-me/MiniMaxAuth/internal/cmd"
	"github.com/router-for-me/MiniMaxAuth/internal/config"
	"github.com/router-for-me/MiniMaxAuth/internal/logging"
	log "github.com/sirupsen/logrus"
)

var (
	Version           = "dev"
	Commit            = "none"
	BuildDate         = "unknown"
	DefaultConfigPath = ""
)

// Exit codes: 0 success, 1 hard failure, 2 re-authentication required.
const (
	exitOK           = 0
	exitFailure      = 1
	exitReauthNeeded = 2
)

// init initializes the shared logger setup.
func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

// main parses command-line flags, loads configuration, and dispatches to the
// selected operation (login, status, refresh, get-token, or logout).
func main() {
	var login bool
	var status bool
	var refresh bool
	var getToken bool
	var logout bool
	var showVersion bool
	var noBrowser bool
	var regionTag string
	var configPath string

	flag.BoolVar(&login, "login", false, "Login to MiniMax using the OAuth device flow")
	flag.BoolVar(&status, "status", false, "Show the state of the stored credential")
	flag.BoolVar(&refresh, "refresh", false, "Force a token refresh")
	flag.BoolVar(&getToken, "get-token", false, "Print a currently valid access token")
	flag.BoolVar(&logout, "logout", false, "Remove the stored credential")
	flag.BoolVar(&showVersion, "version", false, "Print version information")
	flag.BoolVar(&noBrowser, "no-browser", false, "Don't open browser automatically for OAuth")
	flag.StringVar(&regionTag, "region", "", "MiniMax region: cn or global (default from config)")
	flag.StringVar(&configPath, "config", DefaultConfigPath, "Configure File Path")
	flag.Parse()

	if showVersion {
		fmt.Printf("minimax-auth Version: %s, Commit: %s, BuiltAt: %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)
		return
	}

	// Load environment variables from .env if present.
	if wd, errWd := os.Getwd(); errWd == nil {
		if errLoad := godotenv.Load(filepath.Join(wd, ".env")); errLoad != nil {
			if !errors.Is(errLoad, os.ErrNotExist) {
				log.WithError(errLoad).Warn("failed to load .env file")
			}
		}
	}

	if configPath == "" {
		configPath = defaultConfigPath()
	}
	cfg, err := config.LoadConfigOptional(configPath, true)
	if err != nil {
		log.Errorf("failed to load config: %v", err)
		os.Exit(exitFailure)
	}
	applyEnvOverrides(cfg)
	logging.SetDebug(cfg.Debug)
	if cfg.LoggingToFile {
		if authDir, errDir := cfg.ResolveAuthDir(); errDir == nil {
			logging.EnableFileOutput(authDir)
			defer logging.CloseFileOutput()
		}
	}

	if regionTag == "" {
		regionTag = cfg.Region
	}

	// A user interrupt must stop the device-flow poll loop immediately.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var runErr error
	switch {
	case login:
		runErr = cmd.DoLogin(ctx, cfg, regionTag, &cmd.LoginOptions{NoBrowser: noBrowser})
	case status:
		runErr = cmd.DoStatus(cfg, regionTag)
	case refresh:
		runErr = cmd.DoRefresh(ctx, cfg, regionTag)
	case getToken:
		runErr = cmd.DoGetToken(ctx, cfg, regionTag)
	case logout:
		runErr = cmd.DoLogout(cfg, regionTag)
	default:
		flag.Usage()
		os.Exit(exitFailure)
	}

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			fmt.Fprintln(os.Stderr, "Aborted.")
			os.Exit(exitFailure)
		}
		log.Error(runErr)
		os.Exit(exitCode(runErr))
	}
}

// exitCode maps error kinds to process exit codes so callers can distinguish
// "run login again" from hard failures.
func exitCode(err error) int {
	if errors.Is(err, minimax.ErrNotAuthenticated) || errors.Is(err, minimax.ErrReauthRequired) {
		return exitReauthNeeded
	}
	return exitFailure
}

// applyEnvOverrides lets the environment override config-file settings.
func applyEnvOverrides(cfg *config.Config) {
	lookupEnv := func(keys ...string) (string, bool) {
		for _, key := range keys {
			if value, ok := os.LookupEnv(key); ok {
				if trimmed := strings.TrimSpace(value); trimmed != "" {
					return trimmed, true
				}
			}
		}
		return "", false
	}

	if value, ok := lookupEnv("MINIMAX_AUTH_REGION", "minimax_auth_region"); ok {
		cfg.Region = value
	}
	if value, ok := lookupEnv("MINIMAX_AUTH_CLIENT_ID", "minimax_auth_client_id"); ok {
		cfg.ClientID = value
	}
	if value, ok := lookupEnv("MINIMAX_AUTH_DIR", "minimax_auth_dir"); ok {
		cfg.AuthDir = value
	}
	if value, ok := lookupEnv("MINIMAX_AUTH_PROXY_URL", "minimax_auth_proxy_url"); ok {
		cfg.ProxyURL = value
	}
}

// defaultConfigPath points at a config.yaml inside the auth directory.
func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, config.DefaultAuthDirName, "config.yaml")
}

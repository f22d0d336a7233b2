package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/miss-electronics/proctor-agent/internal/config"
	"github.com/miss-electronics/proctor-agent/internal/gateway"
	"github.com/miss-electronics/proctor-agent/internal/logger"
	"github.com/miss-electronics/proctor-agent/internal/store"
)

// maxAttempts bounds retries on rejected credentials.
const maxAttempts = 5

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	// ─── Open Local Progress Store ─────────────────────────────────────
	progress, err := store.Open(cfg.StorePath, log)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.StorePath).Msg("Failed to open progress store")
	}

	gw := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewayTimeout, log)
	ctx := context.Background()

	// ─── CLI Input ─────────────────────────────────────────────────────
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("=== Exam Sign-In ===")
	fmt.Println("Gateway:", cfg.GatewayBaseURL)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		fmt.Print("Enter Roll Number: ")
		username, _ := reader.ReadString('\n')
		username = strings.TrimSpace(username)
		if username == "" {
			fmt.Println("Error: Roll number is required")
			continue
		}

		fmt.Print("Enter Password: ")
		bytePassword, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println() // Newline after password input
		if err != nil {
			fmt.Println("Error reading password")
			continue
		}

		resp, err := gw.Login(ctx, username, string(bytePassword))
		if err != nil {
			fmt.Printf("Sign-in failed: %v (%d attempt(s) left)\n", err, maxAttempts-attempt)
			continue
		}

		progress.Save(store.KeyAccessToken, resp.Access)
		progress.Save(store.KeyRefreshToken, resp.Refresh)
		progress.Save(store.KeyUserName, resp.Username)

		fmt.Printf("Signed in as %s. The agent can now start the exam session.\n", resp.Username)
		return
	}

	fmt.Println("Too many failed attempts. Please contact the exam administrator.")
	os.Exit(1)
}

// Command gemmyctl manages vendor accounts and drives the tracking API from
// a terminal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gemmy/internal/client"
	"gemmy/internal/logger"
)

var (
	serverURL string
	token     string
	email     string
	password  string
	logLevel  string
	timeout   time.Duration

	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "gemmyctl",
	Short: "Command line client for the Gemmy order tracker",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logger.New(logLevel)
		if err != nil {
			return err
		}
		log = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("GEMMY_SERVER", "http://localhost:8080"), "API base URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("GEMMY_TOKEN"), "Bearer token (skips login)")
	rootCmd.PersistentFlags().StringVar(&email, "email", os.Getenv("GEMMY_EMAIL"), "Vendor email for login")
	rootCmd.PersistentFlags().StringVar(&password, "password", os.Getenv("GEMMY_PASSWORD"), "Vendor password for login")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Timeout for one-shot commands")

	rootCmd.AddCommand(accountCmd, createCmd, statusCmd, messageCmd, watchCmd, exportCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// session returns a client carrying a token. With vendor set it logs in
// using --email and --password unless --token was given; otherwise it falls
// back to an anonymous customer session.
func session(ctx context.Context, vendor bool) (*client.Client, error) {
	c := client.New(serverURL, nil)
	if token != "" {
		c.SetToken(token)
		return c, nil
	}
	if email != "" {
		if _, err := c.Login(ctx, email, password); err != nil {
			return nil, fmt.Errorf("login: %w", err)
		}
		log.Debug("logged in", zap.String("email", email))
		return c, nil
	}
	if vendor {
		return nil, fmt.Errorf("vendor command needs --token or --email/--password")
	}
	if _, err := c.Anonymous(ctx); err != nil {
		return nil, fmt.Errorf("anonymous session: %w", err)
	}
	return c, nil
}

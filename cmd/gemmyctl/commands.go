package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"gemmy/internal/auth"
	"gemmy/internal/budget"
	"gemmy/internal/client"
	"gemmy/internal/config"
	"gemmy/internal/database"
	"gemmy/internal/export"
	"gemmy/internal/poller"
	"gemmy/internal/store"
)

var (
	accountName  string
	accountAdmin bool
	orderEmail   string
	watchEvery   time.Duration
	watchMax     int
	markSeen     bool
	exportOut    string
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage vendor accounts (talks to the database directly)",
}

var accountCreateCmd = &cobra.Command{
	Use:   "create [email] [password]",
	Short: "Create a vendor account, optionally on the admin allow-list",
	Args:  cobra.ExactArgs(2),
	RunE:  createAccount,
}

var createCmd = &cobra.Command{
	Use:   "create [customer-name]",
	Short: "Create an order and print its share link",
	Args:  cobra.ExactArgs(1),
	RunE:  createOrder,
}

var statusCmd = &cobra.Command{
	Use:   "status [track-token] [status]",
	Short: "Move an order to a workflow status",
	Args:  cobra.ExactArgs(2),
	RunE:  updateStatus,
}

var messageCmd = &cobra.Command{
	Use:   "message [track-token] [text...]",
	Short: "Post a message on an order thread",
	Args:  cobra.MinimumNArgs(2),
	RunE:  postMessage,
}

var watchCmd = &cobra.Command{
	Use:   "watch [track-token]",
	Short: "Poll an order's tracking view until interrupted or the refresh budget runs out",
	Args:  cobra.ExactArgs(1),
	RunE:  watchOrder,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Download the zip export of all orders",
	RunE:  exportOrders,
}

func init() {
	accountCreateCmd.Flags().StringVar(&accountName, "name", "", "Display name")
	accountCreateCmd.Flags().BoolVar(&accountAdmin, "admin", true, "Add the account to the admin allow-list")
	accountCmd.AddCommand(accountCreateCmd)

	createCmd.Flags().StringVar(&orderEmail, "customer-email", "", "Customer email")

	watchCmd.Flags().DurationVar(&watchEvery, "interval", budget.DefaultCustomerLimit.Interval, "Time between checks")
	watchCmd.Flags().IntVar(&watchMax, "max-checks", budget.DefaultCustomerLimit.MaxChecks, "Stop after this many checks")
	watchCmd.Flags().BoolVar(&markSeen, "mark-seen", false, "Mark the order as seen by the vendor before watching")

	exportCmd.Flags().StringVarP(&exportOut, "out", "o", ".", "Output directory or file")
}

func createAccount(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	mc, err := database.Connect(ctx, cfg.MongoURI, log)
	if err != nil {
		return err
	}
	defer func() { _ = mc.Disconnect(context.Background()) }()

	db := mc.Database(cfg.DBName)
	if err := database.EnsureIndexes(db, log); err != nil {
		log.Warn("index warning", zap.Error(err))
	}

	svc := auth.NewService(store.NewMongo(db, cfg.MongoTransactions), cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, log)
	account, err := svc.CreateAccount(ctx, args[0], accountName, args[1], accountAdmin)
	if errors.Is(err, store.ErrDuplicate) {
		return fmt.Errorf("account %s already exists", args[0])
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s) admin=%t\n", account.Email, account.ID.Hex(), accountAdmin)
	return nil
}

func createOrder(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	c, err := session(ctx, true)
	if err != nil {
		return err
	}
	created, err := c.CreateOrder(ctx, args[0], orderEmail)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "order:  %s\n", created.OrderID)
	fmt.Fprintf(out, "token:  %s\n", created.Token)
	fmt.Fprintf(out, "share:  %s\n", created.ShareURL)
	return nil
}

func updateStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	c, err := session(ctx, true)
	if err != nil {
		return err
	}
	status, err := c.UpdateStatus(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "status: %s\n", status)
	return nil
}

func postMessage(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	c, err := session(ctx, false)
	if err != nil {
		return err
	}
	msg, err := c.PostMessage(ctx, args[0], strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s: %s\n", msg.At, msg.Sender, msg.Text)
	return nil
}

func watchOrder(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	trackToken := args[0]

	c, err := session(ctx, false)
	if err != nil {
		return err
	}
	if markSeen {
		if err := c.MarkSeen(ctx, trackToken); err != nil {
			return fmt.Errorf("mark seen: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	p := poller.New(func(ctx context.Context) (client.Snapshot, error) {
		return c.Track(ctx, trackToken)
	}, watchEvery, watchMax, func(u poller.Update[client.Snapshot]) {
		fmt.Fprintln(out, describeUpdate(u))
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.Run(gctx) })
	err = g.Wait()

	switch {
	case errors.Is(err, poller.ErrLimitReached):
		fmt.Fprintf(out, "refresh limit reached after %d checks\n", p.Used())
		return nil
	case errors.Is(err, context.Canceled):
		return nil
	default:
		return err
	}
}

// describeUpdate renders one poll result as a single line.
func describeUpdate(u poller.Update[client.Snapshot]) string {
	prefix := fmt.Sprintf("[%d/%d]", u.Used, u.Max)
	if u.Err != nil && !u.Stale {
		return fmt.Sprintf("%s error: %v", prefix, u.Err)
	}

	snap := u.Value
	var line string
	switch {
	case !snap.Found || snap.Tracking == nil:
		line = fmt.Sprintf("%s order not found", prefix)
	default:
		line = fmt.Sprintf("%s %s (%.0f%%) photos=%d messages=%d",
			prefix, snap.StatusLabel, snap.Progress*100,
			len(snap.Tracking.Photos), len(snap.Tracking.Messages))
		if snap.NeedsAttention {
			line += " needs-attention"
		}
		if snap.Tracking.Paid {
			line += " paid"
		}
		if snap.Tracking.Archived {
			line += " archived"
		}
	}
	if u.Err != nil {
		line += fmt.Sprintf(" (stale: %v)", u.Err)
	}
	return line
}

func exportOrders(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	c, err := session(ctx, true)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(exportDir(exportOut), ".gemmy-export-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	name, err := c.Export(ctx, tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	target := exportTarget(exportOut, name, time.Now())
	if err := os.Rename(tmp.Name(), target); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", target)
	return nil
}

func exportDir(out string) string {
	if info, err := os.Stat(out); err == nil && info.IsDir() {
		return out
	}
	return filepath.Dir(out)
}

// exportTarget picks the final path: inside out when it is a directory,
// out itself otherwise.
func exportTarget(out, serverName string, now time.Time) string {
	if info, err := os.Stat(out); err == nil && info.IsDir() {
		if serverName == "" {
			serverName = export.Filename(now)
		}
		return filepath.Join(out, filepath.Base(serverName))
	}
	return out
}

package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"

	"panelsync/internal/app"
)

var (
	cfgPath string

	rootCmd = &cobra.Command{
		Use:   "panelsync [flags]",
		Short: "Live fragment synchronization daemon for the panel dashboard",
		Long: `panelsync keeps panel dashboard fragments, the support chat feed and the
registration charts in sync by polling the panel over HTTP.

Examples:
  panelsync                          # Run with ./config.yaml
  panelsync --config /etc/panelsync/config.yaml
  panelsync version                  # Print build version`,
		RunE:          runDaemon,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "./config.yaml",
		"path to the configuration file (yaml or json)")
	rootCmd.AddCommand(versionCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfgPath, app.Host{})
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	if err := a.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)

	<-ctx.Done()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	return a.Stop(context.Background())
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

// Package cli provides the command-line interface for sftpc.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/avalon/sftpc/internal/constants"
	"github.com/avalon/sftpc/internal/logging"
)

var (
	sitesDir   string
	workers    int
	verbose    bool
	debug      bool

	logger *logging.Logger

	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// Version information, set by main at startup.
var (
	Version   = "v0.1.0-dev"
	BuildTime = "unknown"
)

// NewRootCmd creates the root command for sftpc.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sftpc",
		Short: "SFTP package upload orchestrator",
		Long: `sftpc ` + Version + ` - Built: ` + BuildTime + `

Stages grouped file artifacts ("packages") described by a manifest and
uploads them to remote sites over SFTP, with live progress, bounded
parallelism, cancellation, duplicate suppression, and per-file error
recovery.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = logging.NewDefaultCLILogger()
			if verbose || debug {
				logging.SetGlobalLevel(-1)
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&sitesDir, "sites-dir", "", "Site profile directory (default: $AVALON_SFTPC_SITES, or ./sites next to the binary)")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", constants.DefaultWorkerPoolSize, "Upload worker pool size")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output (same as --verbose)")

	rootCmd.Version = Version + " (" + BuildTime + ")"

	addCompletionCmd(rootCmd)

	return rootCmd
}

// Execute runs the CLI, wiring SIGINT/SIGTERM into a cancellable context
// that upload run propagates down to Controller.Stop().
func Execute() error {
	rootContext, cancelFunc = context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		for sig := range sigChan {
			if sig != nil {
				fmt.Fprintf(os.Stderr, "\nreceived signal %v, cancelling...\n", sig)
				cancelFunc()
			}
		}
	}()

	rootCmd := NewRootCmd()
	AddCommands(rootCmd)
	err := rootCmd.Execute()

	signal.Stop(sigChan)
	close(sigChan)

	return err
}

// AddCommands wires every sftpc subcommand onto root.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newManifestCmd())
	rootCmd.AddCommand(newUploadCmd())
}

// GetLogger returns the global CLI logger, creating a default one if
// Execute hasn't run yet (e.g. under test).
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return logger
}

// GetContext returns the signal-cancellable root context.
func GetContext() context.Context {
	if rootContext == nil {
		return context.Background()
	}
	return rootContext
}

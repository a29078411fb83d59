// Package cli provides the command-line interface for flowsheet-int.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/watertap-org/flowsheet-int/internal/config"
	"github.com/watertap-org/flowsheet-int/internal/logging"
	"github.com/watertap-org/flowsheet-int/internal/version"
)

var (
	// Global flags
	cfgFile     string
	backendURL  string
	flowsheetID string
	verbose     bool
	debug       bool

	// Global logger
	logger *logging.Logger

	// Global context for signal handling
	rootContext context.Context
	cancelFunc  context.CancelFunc
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "flowsheet-int",
		Short: "flowsheet-int - configure and run flowsheet simulations",
		Long: `flowsheet-int ` + version.Version + ` - Built: ` + version.BuildTime + `
Command-line client for a flowsheet simulation backend.

Pick a saved input configuration, edit input variables, lay them out in
two balanced columns, adjust the backend's worker processes and run a
single solve or a parameter sweep.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			initLogger()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Close()
			}
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config-file", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&backendURL, "backend-url", "", "Flowsheet backend base URL (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&flowsheetID, "flowsheet", "f", "", "Flowsheet id (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows debug messages)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug output (same as --verbose)")

	rootCmd.Version = version.Version + " (" + version.BuildTime + ")"

	completionCmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Enable tab-completion for flowsheet-int commands",
		Long: `Generate shell completion scripts to enable tab-completion for flowsheet-int.

QUICK START:

  zsh:
    mkdir -p ~/.zsh/completions
    flowsheet-int completion zsh > ~/.zsh/completions/_flowsheet-int
    # Then add to ~/.zshrc: fpath=(~/.zsh/completions $fpath)

  bash:
    flowsheet-int completion bash | sudo tee /etc/bash_completion.d/flowsheet-int

For detailed instructions, use: flowsheet-int completion [shell] --help`,
	}
	rootCmd.AddCommand(completionCmd)

	completionCmd.AddCommand(&cobra.Command{
		Use:   "bash",
		Short: "Generate bash completion script",
		Long: `Generate the autocompletion script for bash.

QUICK TEST (temporary, current session only):
  source <(flowsheet-int completion bash)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootCmd.Root().GenBashCompletion(cmd.OutOrStdout())
		},
	})

	completionCmd.AddCommand(&cobra.Command{
		Use:   "zsh",
		Short: "Generate zsh completion script",
		Long: `Generate the autocompletion script for zsh.

QUICK TEST (temporary, current session only):
  source <(flowsheet-int completion zsh)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootCmd.Root().GenZshCompletion(cmd.OutOrStdout())
		},
	})

	completionCmd.AddCommand(&cobra.Command{
		Use:   "fish",
		Short: "Generate fish completion script",
		Long: `Generate the autocompletion script for fish.

QUICK TEST (temporary, current session only):
  flowsheet-int completion fish | source`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootCmd.Root().GenFishCompletion(cmd.OutOrStdout(), true)
		},
	})

	completionCmd.AddCommand(&cobra.Command{
		Use:   "powershell",
		Short: "Generate PowerShell completion script",
		Long: `Generate the autocompletion script for PowerShell.

QUICK TEST (temporary, current session only):
  flowsheet-int completion powershell | Out-String | Invoke-Expression`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootCmd.Root().GenPowerShellCompletion(cmd.OutOrStdout())
		},
	})

	// Disable default completion command (we're adding our own above)
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	return rootCmd
}

// initLogger builds the global logger from the config file's [logging]
// section. A config file that cannot be read is reported later by the
// command that needs it.
func initLogger() {
	opts := logging.Options{}
	level := zerolog.InfoLevel

	if cfg, err := loadSettings(); err == nil {
		opts.File = cfg.LogFile
		level = logging.ParseLevel(cfg.LogLevel)
	}
	if verbose || debug {
		level = zerolog.DebugLevel
	}

	logger = logging.NewLogger(opts)
	logging.SetGlobalLevel(level)
}

// Execute runs the CLI.
func Execute() error {
	rootContext, cancelFunc = context.WithCancel(context.Background())
	defer cancelFunc()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Loop so that repeated Ctrl+C does not block the sender
	go func() {
		for sig := range sigChan {
			if sig != nil {
				fmt.Fprintf(os.Stderr, "\nReceived signal %v, cancelling...\n", sig)
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

// AddCommands adds all subcommands to the root command.
func AddCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(newConfigsCmd())
	rootCmd.AddCommand(newLayoutCmd())
	rootCmd.AddCommand(newSubprocessesCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newConfigCmd())
}

// GetLogger returns the global CLI logger.
func GetLogger() *logging.Logger {
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}
	return logger
}

// GetContext returns the global CLI context with signal handling.
// This context will be cancelled when the user presses Ctrl+C.
func GetContext() context.Context {
	if rootContext == nil {
		return context.Background()
	}
	return rootContext
}

// configPath returns --config-file or the default location.
func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	return config.DefaultConfigPath()
}

package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/watertap-org/flowsheet-int/internal/config"
	inthttp "github.com/watertap-org/flowsheet-int/internal/http"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage flowsheet-int configuration",
		Long: `Configuration management commands for flowsheet-int.

Commands:
  init  - Interactive configuration setup
  show  - Display current configuration
  test  - Test the backend connection
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigTestCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration interactively",
		Long: `Interactive configuration setup for flowsheet-int.

The configuration is saved to ~/.config/flowsheet/config unless
--config-file is given. Use --force to overwrite an existing file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			path, err := configPath()
			if err != nil {
				return err
			}

			if !force {
				if _, err := os.Stat(path); err == nil {
					fmt.Fprintf(out, "Configuration already exists at: %s\n", path)
					fmt.Fprintln(out, "Use --force to overwrite or run 'config show' to view current config.")
					return nil
				}
			}

			fmt.Fprintln(out, "Flowsheet Configuration Setup")
			fmt.Fprintln(out, "=============================")
			fmt.Fprintln(out)

			cfg := config.NewConfig()
			reader := bufio.NewReader(cmd.InOrStdin())
			ask := func(prompt, def string) string {
				if def != "" {
					fmt.Fprintf(out, "%s [%s]: ", prompt, def)
				} else {
					fmt.Fprintf(out, "%s: ", prompt)
				}
				input, _ := reader.ReadString('\n')
				input = strings.TrimSpace(input)
				if input == "" {
					return def
				}
				return input
			}

			cfg.BackendURL = ask("Backend URL", cfg.BackendURL)
			cfg.FlowsheetID = ask("Default flowsheet id", "")

			fmt.Fprintln(out)
			if answer := ask("Configure proxy? [y/N]", ""); strings.EqualFold(answer, "y") || strings.EqualFold(answer, "yes") {
				fmt.Fprintln(out, "Proxy modes: no-proxy, system, basic, ntlm")
				cfg.ProxyMode = ask("Proxy mode", "system")
				if cfg.ProxyMode == "basic" || cfg.ProxyMode == "ntlm" {
					cfg.ProxyHost = ask("Proxy host", "")
					if v, err := strconv.Atoi(ask("Proxy port", "8080")); err == nil && v > 0 {
						cfg.ProxyPort = v
					}
					cfg.ProxyUser = ask("Proxy user", "")
				}
			}

			if err := cfg.ValidateConnection(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := config.Save(cfg, path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			GetLogger().Info().Str("path", path).Msg("Configuration saved")

			fmt.Fprintln(out)
			fmt.Fprintf(out, "✓ Configuration saved to: %s\n", path)
			if cfg.ProxyUser != "" {
				fmt.Fprintf(out, "Proxy passwords are not stored. Export %s before running commands.\n", config.EnvProxyPass)
			}
			fmt.Fprintln(out, "Test your configuration with: flowsheet-int config test")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing configuration")

	return cmd
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long: `Display the current configuration settings.

This command shows the merged configuration from:
  1. Configuration file (~/.config/flowsheet/config)
  2. Environment variables (FLOWSHEET_BACKEND_URL, FLOWSHEET_ID, ...)
  3. Command-line flags (--backend-url, --flowsheet)

Priority: flags > environment > config file > defaults`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			path, err := configPath()
			if err != nil {
				return err
			}
			cfg, err := loadSettings()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			fmt.Fprintln(out, "Current Configuration")
			fmt.Fprintln(out, "=====================")
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Backend:")
			fmt.Fprintf(out, "  URL:          %s\n", cfg.BackendURL)
			if cfg.FlowsheetID != "" {
				fmt.Fprintf(out, "  Flowsheet:    %s\n", cfg.FlowsheetID)
			} else {
				fmt.Fprintln(out, "  Flowsheet:    <not set>")
			}
			fmt.Fprintf(out, "  Timeout:      %s\n", cfg.Timeout)
			fmt.Fprintf(out, "  Max Retries:  %d\n", cfg.MaxRetries)
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Proxy Settings:")
			fmt.Fprintf(out, "  Proxy Mode: %s\n", cfg.ProxyMode)
			if cfg.ProxyHost != "" {
				fmt.Fprintf(out, "  Proxy Host: %s\n", cfg.ProxyHost)
				fmt.Fprintf(out, "  Proxy Port: %d\n", cfg.ProxyPort)
			}
			if cfg.ProxyUser != "" {
				fmt.Fprintf(out, "  Proxy User: %s\n", cfg.ProxyUser)
				if cfg.ProxyPassword != "" {
					fmt.Fprintln(out, "  Proxy Password: <set>")
				} else {
					fmt.Fprintln(out, "  Proxy Password: <not set>")
				}
			}
			if cfg.NoProxy != "" {
				fmt.Fprintf(out, "  No Proxy:   %s\n", cfg.NoProxy)
			}
			fmt.Fprintln(out)

			fmt.Fprintln(out, "Logging:")
			fmt.Fprintf(out, "  Level: %s\n", cfg.LogLevel)
			if cfg.LogFile != "" {
				fmt.Fprintf(out, "  File:  %s\n", cfg.LogFile)
			}
			fmt.Fprintf(out, "Notifications: %t\n", cfg.Notifications)
			fmt.Fprintln(out)

			fmt.Fprintf(out, "Configuration file: %s\n", path)
			if _, err := os.Stat(path); os.IsNotExist(err) {
				fmt.Fprintln(out, "  (file does not exist - using defaults)")
			}
			return nil
		},
	}

	return cmd
}

// newConfigTestCmd creates the 'config test' command.
func newConfigTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Test the backend connection",
		Long: `Test the backend connection with current configuration.

Reads the backend's subprocess setting, which needs no flowsheet id.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := GetLogger()
			out := cmd.OutOrStdout()

			cfg, err := loadSettings()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := cfg.ValidateConnection(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if inthttp.NeedsProxyPassword(cfg) {
				return fmt.Errorf("proxy mode %s needs a password: set %s", cfg.ProxyMode, config.EnvProxyPass)
			}

			fmt.Fprintf(out, "Backend URL: %s\n", cfg.BackendURL)
			fmt.Fprintln(out, "Testing connection...")

			client, err := getAPIClient(cfg)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(GetContext(), 10*time.Second)
			defer cancel()

			start := time.Now()
			count, err := client.GetNumberOfSubprocesses(ctx)
			if err != nil {
				logger.Error().Err(err).Msg("Connection test failed")
				fmt.Fprintln(out, "✗ Connection FAILED")
				fmt.Fprintf(out, "  Error: %v\n", err)
				return fmt.Errorf("connection test failed")
			}

			logger.Debug().Dur("elapsed", time.Since(start)).Msg("Connection test successful")

			fmt.Fprintln(out, "✓ Connection SUCCESSFUL")
			fmt.Fprintf(out, "  Subprocesses: %d (max %d)\n", count.Current, count.Max)
			return nil
		},
	}

	return cmd
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Long:  `Display the path to the configuration file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			path, err := configPath()
			if err != nil {
				return err
			}
			if cfgFile == "" {
				fmt.Fprintln(out, "Default configuration path:")
			} else {
				fmt.Fprintln(out, "Configuration path (from --config-file flag):")
			}
			fmt.Fprintf(out, "  %s\n", path)
			fmt.Fprintln(out)

			if info, err := os.Stat(path); err == nil {
				fmt.Fprintln(out, "Status: ✓ File exists")
				fmt.Fprintf(out, "Size:   %d bytes\n", info.Size())
				fmt.Fprintf(out, "Modified: %s\n", info.ModTime().Format("2006-01-02 15:04:05"))
			} else {
				fmt.Fprintln(out, "Status: File does not exist")
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Create a configuration file with: flowsheet-int config init")
			}
			return nil
		},
	}

	return cmd
}

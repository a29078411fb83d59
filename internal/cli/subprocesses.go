package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/watertap-org/flowsheet-int/internal/panel"
)

// newPanelForBackend builds a panel for backend-wide settings, which do not
// need a flowsheet id.
func newPanelForBackend() (*panel.Panel, error) {
	cfg, err := loadSettings()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ValidateConnection(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	client, err := getAPIClient(cfg)
	if err != nil {
		return nil, err
	}
	return panel.New(cfg.FlowsheetID, nil, client, panel.WithLogger(GetLogger())), nil
}

func newSubprocessesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subprocesses",
		Short: "Show or change the backend's number of worker processes",
		Long: `The backend runs sweeps on a pool of worker processes. The pool size
can be changed between 1 and the maximum the backend reports.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Show the current and maximum number of subprocesses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer logBackendStats()

			p, err := newPanelForBackend()
			if err != nil {
				return err
			}
			count, err := p.RefreshSubprocesses(GetContext())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d (max %d)\n", count.Current, count.Max)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set N",
		Short: "Change the number of subprocesses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer logBackendStats()

			p, err := newPanelForBackend()
			if err != nil {
				return err
			}
			// The limit comes from the backend.
			if _, err := p.RefreshSubprocesses(GetContext()); err != nil {
				return err
			}
			if err := p.SetSubprocesses(GetContext(), args[0]); err != nil {
				return err
			}
			count := p.Subprocesses()
			fmt.Fprintf(cmd.OutOrStdout(), "%d (max %d)\n", count.Current, count.Max)
			return nil
		},
	})

	return cmd
}

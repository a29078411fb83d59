package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/watertap-org/flowsheet-int/internal/api"
	"github.com/watertap-org/flowsheet-int/internal/models"
	"github.com/watertap-org/flowsheet-int/internal/panel"
)

// newConfigsCmd creates the 'configs' command group for saved input configs.
func newConfigsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "configs",
		Short: "List, load and delete saved input configurations",
		Long: `Saved input configurations of the selected flowsheet.

Commands:
  list    - List saved configuration names
  load    - Print a saved configuration
  delete  - Delete a saved configuration`,
	}

	cmd.AddCommand(newConfigsListCmd())
	cmd.AddCommand(newConfigsLoadCmd())
	cmd.AddCommand(newConfigsDeleteCmd())

	return cmd
}

// newPanel builds a panel backed by the configured backend.
func newPanel(data *models.FlowsheetData, opts ...panel.Option) (*panel.Panel, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	client, err := getAPIClient(cfg)
	if err != nil {
		return nil, err
	}
	opts = append([]panel.Option{panel.WithLogger(GetLogger())}, opts...)
	return panel.New(cfg.FlowsheetID, data, client, opts...), nil
}

func newConfigsListCmd() *cobra.Command {
	var inputVersion int
	var output string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved configuration names",
		Long: `List the saved input configurations stored for the flowsheet and
input data version.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer logBackendStats()

			data := &models.FlowsheetData{InputData: &models.InputData{Version: inputVersion}}
			p, err := newPanel(data)
			if err != nil {
				return err
			}
			if err := p.Refresh(GetContext()); err != nil {
				return err
			}

			names := p.ConfigNames()
			if output != "" {
				return writeOutput(cmd.OutOrStdout(), output, names)
			}
			if len(names) == 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "No saved configs for %s (version %d)\n", p.FlowsheetID(), inputVersion)
				return nil
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&inputVersion, "version", 0, "Input data version the configs were saved for")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output format: json or yaml (default: one name per line)")

	return cmd
}

func newConfigsLoadCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "load NAME",
		Short: "Print a saved configuration",
		Long: `Load a saved input configuration and print it as flowsheet data
({"name", "inputData", "outputData"}). The output can be edited and passed
back with --file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer logBackendStats()

			name, err := configNameArg(args[0])
			if err != nil {
				return err
			}
			p, err := newPanel(nil)
			if err != nil {
				return err
			}
			if err := p.SelectConfig(GetContext(), name); err != nil {
				if api.IsNotFound(err) {
					return fmt.Errorf("config %q not found for flowsheet %s", name, p.FlowsheetID())
				}
				return err
			}
			return writeOutput(cmd.OutOrStdout(), output, p.Data())
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "json", "Output format: json or yaml")

	return cmd
}

func newConfigsDeleteCmd() *cobra.Command {
	var inputVersion int
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a saved configuration",
		Long:  `Delete a saved input configuration and print the names that remain.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer logBackendStats()

			name, err := configNameArg(args[0])
			if err != nil {
				return err
			}
			data := &models.FlowsheetData{Name: name, InputData: &models.InputData{Version: inputVersion}}
			p, err := newPanel(data)
			if err != nil {
				return err
			}

			// Refresh selects name when the backend lists it.
			if err := p.Refresh(GetContext()); err != nil {
				return err
			}
			if p.ConfigName() != name {
				return fmt.Errorf("config %q not found for flowsheet %s (version %d)", name, p.FlowsheetID(), inputVersion)
			}

			if !yes {
				ok, err := confirm(cmd.InOrStdin(), cmd.ErrOrStderr(), fmt.Sprintf("Delete config %q?", name))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.ErrOrStderr(), "Cancelled")
					return nil
				}
			}

			if err := p.DeleteSelected(GetContext()); err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "✓ Deleted %s\n", name)
			for _, n := range p.ConfigNames() {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&inputVersion, "version", 0, "Input data version the config was saved for")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")

	return cmd
}

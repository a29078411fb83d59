package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/watertap-org/flowsheet-int/internal/models"
	"github.com/watertap-org/flowsheet-int/internal/panel"
	"github.com/watertap-org/flowsheet-int/internal/render"
)

// localFlowsheetID names panels built from a file when no flowsheet is configured.
const localFlowsheetID = "local"

// openPanel builds a panel for --config (a saved config on the backend) or
// --file (a document on disk). A file panel has no backend unless needBackend.
func openPanel(configName, file string, needBackend bool, opts ...panel.Option) (*panel.Panel, error) {
	if configName != "" && file != "" {
		return nil, fmt.Errorf("--config and --file are mutually exclusive")
	}
	if configName == "" && file == "" {
		return nil, fmt.Errorf("one of --config or --file is required")
	}
	if configName != "" {
		var err error
		if configName, err = configNameArg(configName); err != nil {
			return nil, err
		}
	}

	if configName == "" && !needBackend {
		data, err := readFlowsheetFile(file)
		if err != nil {
			return nil, err
		}
		id := localFlowsheetID
		if cfg, err := loadSettings(); err == nil && cfg.FlowsheetID != "" {
			id = cfg.FlowsheetID
		}
		opts = append([]panel.Option{panel.WithLogger(GetLogger())}, opts...)
		return panel.New(id, data, nil, opts...), nil
	}

	var data *models.FlowsheetData
	if file != "" {
		var err error
		if data, err = readFlowsheetFile(file); err != nil {
			return nil, err
		}
	}
	p, err := newPanel(data, opts...)
	if err != nil {
		return nil, err
	}
	if configName != "" {
		if err := p.SelectConfig(GetContext(), configName); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func newLayoutCmd() *cobra.Command {
	var (
		configName string
		file       string
		output     string
		showAll    bool
		mode       string
		width      int
	)

	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Show input variables in two balanced columns",
		Long: `Group the input variables by category, round their values and
balance the groups over two columns.

Sections are placed greedily in category order. Each fixed input weighs
one row and each free input two (value plus bounds). Sections without
inputs are hidden unless --all is given.

Examples:
  flowsheet-int layout --config baseline
  flowsheet-int layout --file inputs.json --output yaml
  flowsheet-int configs load baseline | flowsheet-int layout --file -`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			solveType, err := models.ParseSolveType(mode)
			if err != nil {
				return err
			}

			p, err := openPanel(configName, file, false, panel.WithSolveType(solveType))
			if err != nil {
				return err
			}

			res := p.Layout()
			for _, issue := range res.Issues {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", issue)
			}

			if output != "" && output != "text" {
				return writeOutput(cmd.OutOrStdout(), output, render.NewDocument(res, showAll))
			}

			if width == 0 {
				width = render.TerminalWidth(os.Stdout)
			}
			return render.Columns(cmd.OutOrStdout(), res, render.Options{
				Width:     width,
				ShowAll:   showAll,
				SolveType: p.SolveType(),
			})
		},
	}

	cmd.Flags().StringVar(&configName, "config", "", "Saved configuration to lay out")
	cmd.Flags().StringVar(&file, "file", "", "Flowsheet or input data JSON file ('-' for stdin)")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format: text, json or yaml")
	cmd.Flags().BoolVar(&showAll, "all", false, "Include sections without input variables")
	cmd.Flags().StringVar(&mode, "mode", string(models.SolveSingle), "Solve type: solve or sweep (sweep shows sample counts)")
	cmd.Flags().IntVar(&width, "width", 0, "Total width (default: terminal width)")

	return cmd
}

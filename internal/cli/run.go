package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/watertap-org/flowsheet-int/internal/constants"
	"github.com/watertap-org/flowsheet-int/internal/events"
	"github.com/watertap-org/flowsheet-int/internal/models"
	"github.com/watertap-org/flowsheet-int/internal/notify"
	"github.com/watertap-org/flowsheet-int/internal/panel"
	"github.com/watertap-org/flowsheet-int/internal/progress"
)

// runEdits are the input edits given on the command line, applied in this
// order: values, fixed/free/sweep, bounds, samples.
type runEdits struct {
	set     []string
	fix     []string
	free    []string
	sweep   []string
	lb      []string
	ub      []string
	samples []string
}

// apply performs the edits on p.
func (e runEdits) apply(p *panel.Panel) error {
	for _, s := range e.set {
		key, value, err := splitAssignment(s)
		if err != nil {
			return fmt.Errorf("--set: %w", err)
		}
		if err := p.UpdateValue(key, models.ParseValue(value)); err != nil {
			return fmt.Errorf("--set %s: %w", key, err)
		}
	}

	for _, key := range e.fix {
		if err := p.UpdateFixed(key, true, models.SolveSingle); err != nil {
			return fmt.Errorf("--fix %s: %w", key, err)
		}
	}
	for _, key := range e.free {
		if err := p.UpdateFixed(key, false, models.SolveSingle); err != nil {
			return fmt.Errorf("--free %s: %w", key, err)
		}
	}
	for _, key := range e.sweep {
		if err := p.UpdateFixed(key, false, models.SolveSweep); err != nil {
			return fmt.Errorf("--sweep %s: %w", key, err)
		}
	}

	bounds := []struct {
		bound models.Bound
		specs []string
	}{
		{models.LowerBound, e.lb},
		{models.UpperBound, e.ub},
	}
	for _, b := range bounds {
		for _, s := range b.specs {
			key, value, err := splitAssignment(s)
			if err != nil {
				return fmt.Errorf("--%s: %w", b.bound, err)
			}
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return fmt.Errorf("--%s %s: bound must be a number, got %q", b.bound, key, value)
			}
			if err := p.UpdateBounds(key, b.bound, f); err != nil {
				return fmt.Errorf("--%s %s: %w", b.bound, key, err)
			}
		}
	}

	for _, s := range e.samples {
		key, value, err := splitAssignment(s)
		if err != nil {
			return fmt.Errorf("--samples: %w", err)
		}
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("--samples %s: sample count must be a positive integer, got %q", key, value)
		}
		if err := p.UpdateSamples(key, n); err != nil {
			return fmt.Errorf("--samples %s: %w", key, err)
		}
	}
	return nil
}

func newRunCmd() *cobra.Command {
	var (
		configName string
		file       string
		mode       string
		edits      runEdits
		notifyFlag bool
		outPath    string
		output     string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single solve or a parameter sweep",
		Long: `Load inputs from a saved configuration or a file, apply edits and post
them to the backend's solve or sweep endpoint. The output data is printed,
or written to --out.

A sweep needs at least one input set to sweep (--sweep KEY).

Examples:
  flowsheet-int run --config baseline --set recovery=0.55
  flowsheet-int run --config baseline --mode sweep --sweep recovery --lb recovery=0.3 --ub recovery=0.6 --samples recovery=5
  flowsheet-int run --file inputs.json --notify --out results.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer logBackendStats()

			solveType, err := models.ParseSolveType(mode)
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			bus := events.NewEventBus(constants.EventBusDefaultBuffer)
			ctx, cancel := context.WithCancel(GetContext())
			n := notify.NewNotifier(notify.DefaultConfig(), GetLogger())
			n.SetEnabled(cfg.Notifications || notifyFlag)
			watched := n.Watch(ctx, bus)
			traced := traceEvents(bus, GetLogger())
			defer func() {
				// Let the watchers handle the finish event before leaving.
				bus.Close()
				<-watched
				<-traced
				cancel()
			}()

			p, err := openPanel(configName, file, true, panel.WithSolveType(solveType), panel.WithEventBus(bus))
			if err != nil {
				return err
			}
			if err := edits.apply(p); err != nil {
				return err
			}
			if p.RunDisabled() {
				return fmt.Errorf("%w: %s", panel.ErrRunDisabled, p.RunDisabledReason())
			}

			spin := progress.New()
			spin.Start(fmt.Sprintf("%s of %s", solveType.Label(), p.FlowsheetID()))
			runErr := p.Run(GetContext())
			spin.Finish(nil)
			if runErr != nil {
				return runErr
			}

			out := p.Data().OutputData
			if outPath == "" {
				return writeOutput(cmd.OutOrStdout(), output, out)
			}

			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", outPath, err)
			}
			if err := writeOutput(f, output, out); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "✓ Output written to %s\n", outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&configName, "config", "", "Saved configuration to run")
	cmd.Flags().StringVar(&file, "file", "", "Flowsheet or input data JSON file ('-' for stdin)")
	cmd.Flags().StringVar(&mode, "mode", string(models.SolveSingle), "Solve type: solve or sweep")
	cmd.Flags().StringArrayVar(&edits.set, "set", nil, "Set an input value (KEY=VALUE, repeatable)")
	cmd.Flags().StringArrayVar(&edits.fix, "fix", nil, "Fix an input (KEY, repeatable)")
	cmd.Flags().StringArrayVar(&edits.free, "free", nil, "Free an input (KEY, repeatable)")
	cmd.Flags().StringArrayVar(&edits.sweep, "sweep", nil, "Sweep over an input (KEY, repeatable)")
	cmd.Flags().StringArrayVar(&edits.lb, "lb", nil, "Set a lower bound (KEY=NUMBER, repeatable)")
	cmd.Flags().StringArrayVar(&edits.ub, "ub", nil, "Set an upper bound (KEY=NUMBER, repeatable)")
	cmd.Flags().StringArrayVar(&edits.samples, "samples", nil, "Set a sweep sample count (KEY=N, repeatable)")
	cmd.Flags().BoolVar(&notifyFlag, "notify", false, "Send a desktop notification when the run finishes")
	cmd.Flags().StringVar(&outPath, "out", "", "Write output data to this file instead of stdout")
	cmd.Flags().StringVarP(&output, "output", "o", "json", "Output format: json or yaml")

	return cmd
}

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ppiankov/ugp/internal/ingest"
	"github.com/ppiankov/ugp/internal/model"
	"github.com/ppiankov/ugp/internal/output"
)

// estimateFlags are shared by run and batch
type estimateFlags struct {
	engine     string
	bootstrap  bool
	iterations int
	confidence float64
	seed       uint64
	workers    int
	noCache    bool
	timeout    time.Duration
}

func (f *estimateFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.engine, "engine", "e", "", "engine to use (default: config default_engine)")
	fs.BoolVar(&f.bootstrap, "bootstrap", false, "enable bootstrap uncertainty")
	fs.IntVar(&f.iterations, "iterations", 200, "bootstrap iterations")
	fs.Float64Var(&f.confidence, "confidence", 0.95, "confidence level of the percentile interval")
	fs.Uint64Var(&f.seed, "seed", 0, "master seed for a reproducible bootstrap")
	fs.IntVar(&f.workers, "workers", 1, "concurrent bootstrap iterations")
	fs.BoolVar(&f.noCache, "no-cache", false, "disable the result cache")
	fs.DurationVar(&f.timeout, "timeout", 10*time.Minute, "overall timeout")
}

// apply folds the flags the user set into cfg and returns the bootstrap settings, if any.
// Unset flags leave the config file values in place.
func (f *estimateFlags) apply(fs *pflag.FlagSet, cfg *model.Config) *model.UncertaintyConfig {
	if fs.Changed("iterations") {
		cfg.Uncertainty.Iterations = f.iterations
	}
	if fs.Changed("confidence") {
		cfg.Uncertainty.Confidence = f.confidence
	}
	if fs.Changed("seed") {
		seed := f.seed
		cfg.Uncertainty.Seed = &seed
	}
	if fs.Changed("workers") {
		cfg.Uncertainty.Workers = f.workers
	}

	cfg.Uncertainty.Enabled = f.bootstrap
	if !f.bootstrap {
		return nil
	}
	unc := model.UncertaintyFromSettings(cfg.Uncertainty)
	return &unc
}

// newContext returns the command context bounded by the timeout and cancelled on interrupt
func (f *estimateFlags) newContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

var runFlags struct {
	estimateFlags
	output   string
	markdown bool
}

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run <dataset>",
	Short: "Run geothermobarometry on a dataset",
	Long: `Run reads a dataset (.json, .yaml or .yml; a local path or an
http(s) URL), runs the selected engine and reports the pressure/temperature
estimates.

Without --bootstrap the engine runs once. With --bootstrap it runs on
--iterations resampled copies of the dataset and the summary carries
mean, standard deviation and a percentile interval at --confidence.

Example:
  ugp run sample.json
  ugp run sample.json -e perplex -o result.json
  ugp run https://example.org/sample.yaml -o - | jq .summary
  ugp run sample.yaml --bootstrap --iterations 500 --seed 42 --workers 8`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runFlags.register(runCmd.Flags())
	runCmd.Flags().StringVarP(&runFlags.output, "output", "o", "", "write the result document to this JSON file (- for stdout)")
	runCmd.Flags().BoolVar(&runFlags.markdown, "markdown", false, "render the summary table as Markdown")
}

func runRun(cmd *cobra.Command, args []string) error {
	input := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	unc := runFlags.apply(cmd.Flags(), cfg)

	a, err := newApp(cfg, !runFlags.noCache)
	if err != nil {
		return err
	}

	ctx, cancel := runFlags.newContext()
	defer cancel()

	ds, err := ingest.NewLoader(cfg.HTTP).Load(ctx, input)
	if err != nil {
		return fmt.Errorf("read dataset: %w", err)
	}

	if verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "Dataset:   %s (%d analyses, %s)\n", input, ds.Len(), ds.ReferenceFrame)
		fmt.Fprintf(cmd.ErrOrStderr(), "Engine:    %s\n", engineLabel(runFlags.engine, cfg))
		if unc != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Bootstrap: %d iterations, confidence %.2f, %d workers\n", unc.Iterations, unc.Confidence, unc.Workers)
		}
		fmt.Fprintln(cmd.ErrOrStderr())
	}

	ens, err := a.pipeline.Run(ctx, ds, runFlags.engine, *cfg, unc)
	if flushErr := a.flushMetrics(); flushErr != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", flushErr)
	}
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	switch runFlags.output {
	case "":
		data, err := json.MarshalIndent(ens.Summary, "", "  ")
		if err != nil {
			return model.WithKind(model.ErrSerialization, fmt.Errorf("encode summary: %w", err))
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	case "-":
		if err := output.Encode(cmd.OutOrStdout(), ens); err != nil {
			return err
		}
	default:
		if err := output.WriteJSON(ens, runFlags.output); err != nil {
			return err
		}
		abs, _ := filepath.Abs(runFlags.output)
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote results to %s\n", abs)
	}

	mode := output.ASCII
	if runFlags.markdown {
		mode = output.Markdown
	}
	return output.RenderSummary(cmd.ErrOrStderr(), ens, mode)
}

func engineLabel(name string, cfg *model.Config) string {
	if name == "" {
		return cfg.DefaultEngine + " (default)"
	}
	return name
}

package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/ugp/internal/ingest"
	"github.com/ppiankov/ugp/internal/output"
	"github.com/ppiankov/ugp/internal/pipeline"
	"github.com/ppiankov/ugp/internal/worker"
)

var batchFlags struct {
	estimateFlags
	concurrency int
	outputDir   string
}

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <list-file>",
	Short: "Run many datasets in parallel",
	Long: `Batch runs every dataset named in a list file (one path per line,
'#' starts a comment). Relative paths resolve against the list file's
directory; http(s) URLs are fetched. Each dataset gets its own result document in --output-dir.

The command fails if any dataset failed; the others are still written.

Example:
  ugp batch datasets.txt
  ugp batch datasets.txt --concurrency 8 --output-dir ./results
  ugp batch datasets.txt --bootstrap --iterations 300 --seed 7`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchFlags.register(batchCmd.Flags())
	batchCmd.Flags().IntVar(&batchFlags.concurrency, "concurrency", runtime.NumCPU(), "number of datasets processed at once")
	batchCmd.Flags().StringVar(&batchFlags.outputDir, "output-dir", "./ugp-results", "output directory for result documents")
}

func runBatch(cmd *cobra.Command, args []string) error {
	listFile := args[0]
	stderr := cmd.ErrOrStderr()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	unc := batchFlags.apply(cmd.Flags(), cfg)
	if cmd.Flags().Changed("concurrency") {
		cfg.Concurrency.Workers = batchFlags.concurrency
	}

	a, err := newApp(cfg, !batchFlags.noCache)
	if err != nil {
		return err
	}

	ctx, cancel := batchFlags.newContext()
	defer cancel()

	fmt.Fprintf(stderr, "\n")
	fmt.Fprintf(stderr, "  UGP Batch Processing\n")
	fmt.Fprintf(stderr, "\n")
	fmt.Fprintf(stderr, "  Input file:   %s\n", listFile)
	fmt.Fprintf(stderr, "  Engine:       %s\n", engineLabel(batchFlags.engine, cfg))
	fmt.Fprintf(stderr, "  Workers:      %d\n", cfg.Concurrency.Workers)
	fmt.Fprintf(stderr, "  Output dir:   %s\n", batchFlags.outputDir)
	if unc != nil {
		fmt.Fprintf(stderr, "  Bootstrap:    %d iterations\n", unc.Iterations)
	}
	fmt.Fprintf(stderr, "\n")

	if err := os.MkdirAll(batchFlags.outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	runner := &pipeline.FileRunner{
		Pipeline:    a.pipeline,
		Loader:      ingest.NewLoader(cfg.HTTP),
		Engine:      batchFlags.engine,
		Config:      *cfg,
		Uncertainty: unc,
	}
	processor := worker.NewBatchProcessor(runner, cfg.Concurrency.Workers)

	results, err := processor.ProcessFile(ctx, listFile)
	if flushErr := a.flushMetrics(); flushErr != nil {
		fmt.Fprintf(stderr, "Warning: %v\n", flushErr)
	}
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	used := make(map[string]bool)
	failures := 0
	for _, result := range results {
		if result.Error != nil {
			failures++
			fmt.Fprintf(stderr, "✗ %s: %v\n", result.Path, result.Error)
			continue
		}

		outPath := filepath.Join(batchFlags.outputDir, resultName(result.Path, used))
		if err := output.WriteJSON(*result.Ensemble, outPath); err != nil {
			failures++
			fmt.Fprintf(stderr, "✗ %s: %v\n", result.Path, err)
			continue
		}
		fmt.Fprintf(stderr, "✓ %s -> %s\n", result.Path, outPath)
	}

	fmt.Fprintf(stderr, "\n")
	fmt.Fprintf(stderr, "  Total:     %d datasets\n", len(results))
	fmt.Fprintf(stderr, "  Success:   %d\n", len(results)-failures)
	fmt.Fprintf(stderr, "  Failures:  %d\n", failures)
	fmt.Fprintf(stderr, "\n")

	if failures > 0 {
		return fmt.Errorf("%d of %d datasets failed", failures, len(results))
	}
	return nil
}

// resultName derives a result file name from a dataset path that no earlier call returned
func resultName(datasetPath string, used map[string]bool) string {
	base := filepath.Base(datasetPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" || stem == "." {
		stem = "dataset"
	}

	name := stem + ".result.json"
	for n := 2; used[name]; n++ {
		name = fmt.Sprintf("%s-%d.result.json", stem, n)
	}
	used[name] = true
	return name
}

package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/ugp/internal/model"
)

// Runner runs the pipeline on one dataset file
type Runner interface {
	RunFile(ctx context.Context, path string) (model.PTEnsemble, error)
}

// DatasetJob runs one dataset file
type DatasetJob struct {
	Path   string
	Runner Runner
	index  int
}

// Execute runs the job
func (j *DatasetJob) Execute(ctx context.Context) Result {
	ens, err := j.Runner.RunFile(ctx, j.Path)
	if err != nil {
		return &DatasetResult{Path: j.Path, Error: err, index: j.index}
	}
	return &DatasetResult{Path: j.Path, Ensemble: &ens, index: j.index}
}

// DatasetResult is the outcome of one dataset run
type DatasetResult struct {
	Path     string
	Ensemble *model.PTEnsemble
	Error    error
	index    int
}

// GetError returns the run error
func (r *DatasetResult) GetError() error {
	return r.Error
}

// BatchProcessor runs many datasets concurrently
type BatchProcessor struct {
	runner      Runner
	concurrency int
}

// NewBatchProcessor creates a batch processor
func NewBatchProcessor(runner Runner, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		runner:      runner,
		concurrency: concurrency,
	}
}

// ProcessPaths runs every path and returns one result per path, in input order.
// A cancelled batch marks the datasets it never started as aborted.
func (b *BatchProcessor) ProcessPaths(ctx context.Context, paths []string) []*DatasetResult {
	if len(paths) == 0 {
		return []*DatasetResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for i, path := range paths {
		if !pool.Submit(&DatasetJob{Path: path, Runner: b.runner, index: i}) {
			break
		}
	}

	out := make([]*DatasetResult, len(paths))
	for _, r := range pool.Wait() {
		dr := r.(*DatasetResult)
		out[dr.index] = dr
	}

	for i, path := range paths {
		if out[i] != nil {
			continue
		}
		cause := ctx.Err()
		if cause == nil {
			cause = context.Canceled
		}
		out[i] = &DatasetResult{Path: path, Error: model.Aborted(cause)}
	}
	return out
}

// ProcessFile reads dataset paths from a list file and runs them
func (b *BatchProcessor) ProcessFile(ctx context.Context, listPath string) ([]*DatasetResult, error) {
	paths, err := ReadPathsFromFile(listPath)
	if err != nil {
		return nil, fmt.Errorf("read dataset list: %w", err)
	}

	return b.ProcessPaths(ctx, paths), nil
}

// ReadPathsFromFile reads dataset paths (one per line) from a list file.
// Blank lines and '#' comments are skipped, duplicates dropped, and
// relative paths resolved against the list file's directory. URLs are kept as written.
func ReadPathsFromFile(listPath string) ([]string, error) {
	file, err := os.Open(listPath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	base := filepath.Dir(listPath)
	var paths []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !filepath.IsAbs(line) && !strings.Contains(line, "://") {
			line = filepath.Join(base, line)
		}

		if !seen[line] {
			seen[line] = true
			paths = append(paths, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return paths, nil
}

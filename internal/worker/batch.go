package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ppiankov/veritas/internal/model"
)

// VerifyFunc verifies one claim text
type VerifyFunc func(ctx context.Context, text string) (*model.Result, error)

// VerifyJob verifies a single claim from a batch
type VerifyJob struct {
	Index  int
	Claim  string
	Verify VerifyFunc
}

// Execute executes the verify job
func (j *VerifyJob) Execute(ctx context.Context) Result {
	result, err := j.Verify(ctx, j.Claim)
	return &VerifyResult{
		Index:  j.Index,
		Claim:  j.Claim,
		Result: result,
		Error:  err,
	}
}

// VerifyResult is the outcome of one batch item
type VerifyResult struct {
	Index  int
	Claim  string
	Result *model.Result
	Error  error
}

// GetError returns the error from the verify result
func (r *VerifyResult) GetError() error {
	return r.Error
}

// BatchProcessor verifies many claims concurrently
type BatchProcessor struct {
	verify      VerifyFunc
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(verify VerifyFunc, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		verify:      verify,
		concurrency: concurrency,
	}
}

// ProcessClaims verifies claims concurrently. Results keep input order.
func (b *BatchProcessor) ProcessClaims(ctx context.Context, claims []string) []*VerifyResult {
	if len(claims) == 0 {
		return []*VerifyResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for i, claim := range claims {
		pool.Submit(&VerifyJob{
			Index:  i,
			Claim:  claim,
			Verify: b.verify,
		})
	}

	results := pool.Wait()

	out := make([]*VerifyResult, 0, len(results))
	for _, r := range results {
		out = append(out, r.(*VerifyResult))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// ProcessFile reads claims from a file and verifies them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*VerifyResult, error) {
	claims, err := ReadClaimsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read claims: %w", err)
	}

	return b.ProcessClaims(ctx, claims), nil
}

// ReadClaimsFromFile reads claims from a file (one per line).
// Blank lines and lines starting with # are skipped; duplicates are dropped.
func ReadClaimsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var claims []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			claims = append(claims, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return claims, nil
}

package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/claimwarden/claimwarden/internal/model"
)

// ClaimProcessor processes a single claim into a decision
type ClaimProcessor interface {
	ProcessClaim(ctx context.Context, claim model.ClaimRequest) (model.ClaimDecision, error)
}

// ClaimJob runs one claim through a processor
type ClaimJob struct {
	Claim     model.ClaimRequest
	Processor ClaimProcessor
}

// Execute executes the claim job
func (j *ClaimJob) Execute(ctx context.Context) Result {
	decision, err := j.Processor.ProcessClaim(ctx, j.Claim)
	return &ClaimResult{
		ClaimNumber: j.Claim.ClaimNumber,
		Decision:    decision,
		Error:       err,
	}
}

// ClaimResult is the outcome of one claim in a batch
type ClaimResult struct {
	ClaimNumber string
	Decision    model.ClaimDecision
	Error       error
}

// GetError returns the error from the claim result
func (r *ClaimResult) GetError() error {
	return r.Error
}

// BatchProcessor processes multiple claims concurrently
type BatchProcessor struct {
	processor   ClaimProcessor
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(processor ClaimProcessor, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		processor:   processor,
		concurrency: concurrency,
	}
}

// ProcessClaims processes claims concurrently and returns the results
// sorted by claim number
func (b *BatchProcessor) ProcessClaims(ctx context.Context, claims []model.ClaimRequest) []*ClaimResult {
	if len(claims) == 0 {
		return []*ClaimResult{}
	}

	pool := NewPool(b.concurrency)
	pool.Start()

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			pool.Shutdown()
		case <-done:
		}
	}()

	for _, claim := range claims {
		pool.Submit(&ClaimJob{Claim: claim, Processor: b.processor})
	}

	results := pool.Wait()
	close(done)

	claimResults := make([]*ClaimResult, len(results))
	for i, result := range results {
		claimResults[i] = result.(*ClaimResult)
	}
	sort.Slice(claimResults, func(i, j int) bool {
		return claimResults[i].ClaimNumber < claimResults[j].ClaimNumber
	})
	return claimResults
}

// ProcessFile reads claims from a file and processes them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*ClaimResult, error) {
	claims, err := ReadClaimsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read claims: %w", err)
	}

	return b.ProcessClaims(ctx, claims), nil
}

// ReadClaimsFromFile reads claims from a JSON file. The file holds either
// a JSON array of claims or one claim object per line. Duplicate claim
// numbers are dropped, first occurrence wins.
func ReadClaimsFromFile(filePath string) ([]model.ClaimRequest, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	var claims []model.ClaimRequest
	if err := json.Unmarshal(data, &claims); err != nil {
		claims, err = readClaimLines(data)
		if err != nil {
			return nil, err
		}
	}

	seen := make(map[string]bool)
	var unique []model.ClaimRequest
	for _, claim := range claims {
		if seen[claim.ClaimNumber] {
			continue
		}
		seen[claim.ClaimNumber] = true
		unique = append(unique, claim)
	}
	return unique, nil
}

func readClaimLines(data []byte) ([]model.ClaimRequest, error) {
	var claims []model.ClaimRequest

	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var claim model.ClaimRequest
		if err := json.Unmarshal([]byte(line), &claim); err != nil {
			return nil, fmt.Errorf("parse claim line: %w", err)
		}
		claims = append(claims, claim)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}
	return claims, nil
}

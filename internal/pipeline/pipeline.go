// Package pipeline drives one claim from request to decision. Two
// interchangeable strategies implement the same contract: an explicit state
// graph with deterministic routing, and an autonomous tool-calling agent
// whose outcome is validated against the same rules before it is returned.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/claimwarden/claimwarden/internal/model"
	"github.com/claimwarden/claimwarden/internal/reasoner"
)

// Step names shared by both strategies and recorded in the trace
const (
	StepValidate        = "validate"
	StepGenerateQueries = "generate_queries"
	StepRetrieve        = "retrieve"
	StepPriceCheck      = "price_check"
	StepRecommend       = "recommend"
	StepFinalize        = "finalize"
)

// Pipeline processes a single claim. Business-rule failures become a
// covered=false decision; only infrastructure failures and cancellation
// return an error, and then no decision is produced.
type Pipeline interface {
	ProcessClaim(ctx context.Context, claim model.ClaimRequest) (model.ClaimDecision, error)
}

// ClaimValidator applies the ledger rules to a claim
type ClaimValidator interface {
	Validate(claim model.ClaimRequest) model.ValidationOutcome
}

// PassageSearcher retrieves ranked policy passages for a query
type PassageSearcher interface {
	Search(ctx context.Context, query string, topK int) ([]model.RetrievedPassage, error)
}

// PriceEstimator returns a market repair cost estimate, or nil when none
// could be obtained
type PriceEstimator interface {
	Estimate(ctx context.Context, lossDescription, vehicleDetails string) (*float64, error)
}

// Deps are the collaborators both strategies run against
type Deps struct {
	Validator ClaimValidator
	Searcher  PassageSearcher
	Reasoner  reasoner.Reasoner
	Oracle    PriceEstimator
}

// New creates the pipeline selected by cfg.Pipeline.Strategy
func New(cfg *model.Config, deps Deps) (Pipeline, error) {
	switch strings.ToLower(cfg.Pipeline.Strategy) {
	case "", "graph":
		return NewGraph(cfg, deps), nil
	case "agent":
		return NewAgent(cfg, deps)
	default:
		return nil, fmt.Errorf("unknown pipeline strategy %q (expected graph or agent)", cfg.Pipeline.Strategy)
	}
}

// mergePassages merges per-query results, de-duplicates identical text and
// keeps the topK passages overall by score
func mergePassages(resultSets [][]model.RetrievedPassage, topK int) []model.RetrievedPassage {
	seen := make(map[string]bool)
	var merged []model.RetrievedPassage
	for _, set := range resultSets {
		for _, p := range set {
			if seen[p.Text] {
				continue
			}
			seen[p.Text] = true
			merged = append(merged, p)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	if topK > 0 && len(merged) > topK {
		merged = merged[:topK]
	}
	return merged
}

// fallbackQuery builds the default retrieval query used when the reasoner
// yields nothing usable
func fallbackQuery(claim model.ClaimRequest) string {
	query := "policy coverage for " + claim.LossDescription
	if claim.VehicleDetails != "" {
		query += " " + claim.VehicleDetails
	}
	return query
}

// attachTrace appends the formatted trace to the decision notes
func attachTrace(decision *model.ClaimDecision, trace *model.Trace) {
	if trace.Len() == 0 {
		return
	}
	summary := "--- Processing Trace ---\n" + trace.Format()
	if decision.Notes != "" {
		decision.Notes += "\n\n" + summary
	} else {
		decision.Notes = summary
	}
}

// rejectedDecision builds the terminal decision for a business rejection
func rejectedDecision(claim model.ClaimRequest, reason string) model.ClaimDecision {
	return model.ClaimDecision{
		ClaimNumber: claim.ClaimNumber,
		Covered:     false,
		Notes:       "Claim rejected: " + reason,
	}
}

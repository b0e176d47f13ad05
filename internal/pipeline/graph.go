package pipeline

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/claimwarden/claimwarden/internal/model"
	"github.com/claimwarden/claimwarden/internal/oracle"
	"github.com/claimwarden/claimwarden/internal/reasoner"
)

// Graph node names. Terminal nodes return an empty next node.
const (
	nodeValidate         = StepValidate
	nodeGenerateQueries  = StepGenerateQueries
	nodeRetrieve         = StepRetrieve
	nodePriceCheck       = StepPriceCheck
	nodeRecommend        = StepRecommend
	nodeFinalizeApproved = "finalize_approved"
	nodeFinalizeRejected = "finalize_rejected"
	nodeFinalizeInflated = "finalize_inflated"
	nodeFinalizeFallback = "finalize_fallback"
)

// graphState is the mutable state carried through one graph run. It is
// owned by a single run and discarded afterwards.
type graphState struct {
	claim          model.ClaimRequest
	validation     model.ValidationOutcome
	queries        []string
	passages       []model.RetrievedPassage
	price          model.PriceAssessment
	recommendation model.Recommendation
	decision       model.ClaimDecision
	trace          *model.Trace
}

// nodeFunc executes one step and names the next node ("" terminates)
type nodeFunc func(ctx context.Context, s *graphState) (string, error)

// Graph is the deterministic strategy: steps are wired as explicit nodes
// with conditional edges, so ordering cannot be violated.
type Graph struct {
	cfg   *model.Config
	deps  Deps
	nodes map[string]nodeFunc
}

// NewGraph builds the claim-processing graph
func NewGraph(cfg *model.Config, deps Deps) *Graph {
	g := &Graph{cfg: cfg, deps: deps}
	g.nodes = map[string]nodeFunc{
		nodeValidate:         g.runValidate,
		nodeGenerateQueries:  g.runGenerateQueries,
		nodeRetrieve:         g.runRetrieve,
		nodePriceCheck:       g.runPriceCheck,
		nodeRecommend:        g.runRecommend,
		nodeFinalizeApproved: g.runFinalizeApproved,
		nodeFinalizeRejected: g.runFinalizeRejected,
		nodeFinalizeInflated: g.runFinalizeInflated,
		nodeFinalizeFallback: g.runFinalizeFallback,
	}
	return g
}

// ProcessClaim walks the graph from validation to a terminal node.
// Cancellation is checked between nodes; a cancelled run produces no
// decision.
func (g *Graph) ProcessClaim(ctx context.Context, claim model.ClaimRequest) (model.ClaimDecision, error) {
	if err := claim.Validate(); err != nil {
		return model.ClaimDecision{}, fmt.Errorf("invalid claim request: %w", err)
	}

	state := &graphState{claim: claim, trace: &model.Trace{}}

	current := nodeValidate
	for current != "" {
		if err := ctx.Err(); err != nil {
			return model.ClaimDecision{}, fmt.Errorf("claim run cancelled: %w", err)
		}
		node, ok := g.nodes[current]
		if !ok {
			return model.ClaimDecision{}, fmt.Errorf("graph has no node %q", current)
		}
		next, err := node(ctx, state)
		if err != nil {
			return model.ClaimDecision{}, err
		}
		current = next
	}

	return state.decision, nil
}

func (g *Graph) stepCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.cfg.Pipeline.StepTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, g.cfg.Pipeline.StepTimeout)
}

func (g *Graph) runValidate(ctx context.Context, s *graphState) (string, error) {
	start := time.Now()
	s.validation = g.deps.Validator.Validate(s.claim)

	if !s.validation.IsValid {
		s.trace.Append(StepValidate, time.Since(start), s.validation.Reason)
		return nodeFinalizeRejected, nil
	}
	s.trace.Append(StepValidate, time.Since(start), "valid")
	return nodeGenerateQueries, nil
}

func (g *Graph) runGenerateQueries(ctx context.Context, s *graphState) (string, error) {
	start := time.Now()
	stepCtx, cancel := g.stepCtx(ctx)
	defer cancel()

	qs, err := g.deps.Reasoner.GenerateQueries(stepCtx, s.claim)
	if err != nil || len(qs.Queries) == 0 {
		// Never fail the claim over query generation
		s.queries = []string{fallbackQuery(s.claim)}
		s.trace.AppendWarning(StepGenerateQueries, time.Since(start), "no usable queries from reasoner, using fallback query")
		return nodeRetrieve, nil
	}

	s.queries = qs.Queries
	s.trace.Append(StepGenerateQueries, time.Since(start), fmt.Sprintf("%d queries", len(s.queries)))
	return nodeRetrieve, nil
}

func (g *Graph) runRetrieve(ctx context.Context, s *graphState) (string, error) {
	start := time.Now()
	topK := g.cfg.Index.TopK

	// Queries are independent and side-effect-free, so issue them
	// concurrently. Per-query failures degrade to empty results.
	resultSets := make([][]model.RetrievedPassage, len(s.queries))
	failures := make([]bool, len(s.queries))

	eg, searchCtx := errgroup.WithContext(ctx)
	for i, query := range s.queries {
		i, query := i, query
		eg.Go(func() error {
			passages, err := g.deps.Searcher.Search(searchCtx, query, topK)
			if err != nil {
				failures[i] = true
				return nil
			}
			resultSets[i] = passages
			return nil
		})
	}
	_ = eg.Wait()

	s.passages = mergePassages(resultSets, topK)

	failed := 0
	for _, f := range failures {
		if f {
			failed++
		}
	}
	summary := fmt.Sprintf("%d passages from %d queries", len(s.passages), len(s.queries))
	if failed > 0 {
		s.trace.AppendWarning(StepRetrieve, time.Since(start), fmt.Sprintf("%s (%d queries failed)", summary, failed))
	} else {
		s.trace.Append(StepRetrieve, time.Since(start), summary)
	}
	return nodePriceCheck, nil
}

func (g *Graph) runPriceCheck(ctx context.Context, s *graphState) (string, error) {
	start := time.Now()
	stepCtx, cancel := g.stepCtx(ctx)
	defer cancel()

	estimate, err := g.deps.Oracle.Estimate(stepCtx, s.claim.LossDescription, s.claim.VehicleDetails)
	if err != nil {
		estimate = nil
	}

	s.price = oracle.Assess(s.claim.EstimatedRepairCost, estimate, g.cfg.Pipeline.InflationRatio)

	if err != nil {
		s.trace.AppendWarning(StepPriceCheck, time.Since(start), "market estimate unavailable: "+err.Error())
	} else {
		s.trace.Append(StepPriceCheck, time.Since(start), s.price.Summary)
	}

	if s.price.IsInflated {
		return nodeFinalizeInflated, nil
	}
	return nodeRecommend, nil
}

func (g *Graph) runRecommend(ctx context.Context, s *graphState) (string, error) {
	start := time.Now()
	stepCtx, cancel := g.stepCtx(ctx)
	defer cancel()

	rec, err := g.deps.Reasoner.Recommend(stepCtx, reasoner.RecommendRequest{
		Claim:    s.claim,
		Passages: s.passages,
		Price:    s.price,
	})
	if err != nil {
		s.trace.AppendWarning(StepRecommend, time.Since(start), "reasoner output unusable: "+err.Error())
		return nodeFinalizeFallback, nil
	}

	s.recommendation = rec
	s.trace.Append(StepRecommend, time.Since(start), rec.PolicySection)
	return nodeFinalizeApproved, nil
}

func (g *Graph) runFinalizeApproved(ctx context.Context, s *graphState) (string, error) {
	start := time.Now()

	notes := s.recommendation.Summary
	if s.recommendation.PolicySection != "" {
		notes = fmt.Sprintf("Covered under %s. %s", s.recommendation.PolicySection, s.recommendation.Summary)
	}

	s.decision = model.ClaimDecision{
		ClaimNumber:       s.claim.ClaimNumber,
		Covered:           true,
		Deductible:        s.recommendation.DeductibleOrZero(),
		RecommendedPayout: s.recommendation.SettlementOrZero(),
		Notes:             notes,
	}
	s.trace.Append(StepFinalize, time.Since(start), "approved")
	attachTrace(&s.decision, s.trace)
	return "", nil
}

func (g *Graph) runFinalizeRejected(ctx context.Context, s *graphState) (string, error) {
	start := time.Now()
	s.decision = rejectedDecision(s.claim, s.validation.Reason)
	s.trace.Append(StepFinalize, time.Since(start), "rejected")
	attachTrace(&s.decision, s.trace)
	return "", nil
}

func (g *Graph) runFinalizeInflated(ctx context.Context, s *graphState) (string, error) {
	start := time.Now()
	s.decision = rejectedDecision(s.claim, "estimated repair cost appears inflated. "+s.price.Summary)
	s.trace.Append(StepFinalize, time.Since(start), "rejected for inflated cost")
	attachTrace(&s.decision, s.trace)
	return "", nil
}

// runFinalizeFallback handles a recommendation that could not be parsed
// even tolerantly: the claim is not approved, and the note says why.
func (g *Graph) runFinalizeFallback(ctx context.Context, s *graphState) (string, error) {
	start := time.Now()
	s.decision = model.ClaimDecision{
		ClaimNumber: s.claim.ClaimNumber,
		Covered:     false,
		Notes:       "A coverage recommendation could not be produced from the model output. The claim requires manual review.",
	}
	s.trace.Append(StepFinalize, time.Since(start), "fallback, no usable recommendation")
	attachTrace(&s.decision, s.trace)
	return "", nil
}

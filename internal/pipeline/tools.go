package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kaptinlin/jsonrepair"
	openai "github.com/sashabaranov/go-openai"

	"github.com/claimwarden/claimwarden/internal/model"
	"github.com/claimwarden/claimwarden/internal/oracle"
	"github.com/claimwarden/claimwarden/internal/reasoner"
)

// Tool names exposed to the agent
const (
	toolValidateClaim    = "validate_claim"
	toolGenerateQueries  = "generate_policy_queries"
	toolRetrieveText     = "retrieve_policy_text"
	toolEstimateCost     = "estimate_repair_cost"
	toolRecommend        = "generate_recommendation"
	toolFinalizeDecision = "finalize_decision"
)

func emptyParams() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

// agentTools describes the operations the agent may invoke. The claim
// itself is bound server-side; tools take no claim payload.
func agentTools() []openai.Tool {
	def := func(name, description string, params json.RawMessage) openai.Tool {
		return openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        name,
				Description: description,
				Parameters:  params,
			},
		}
	}

	return []openai.Tool{
		def(toolValidateClaim,
			"Validate the claim against the policy coverage records. Must be called before any decision.",
			emptyParams()),
		def(toolGenerateQueries,
			"Generate targeted search queries for the policy document based on the claim.",
			emptyParams()),
		def(toolRetrieveText,
			"Retrieve relevant policy text passages. Uses previously generated queries unless queries are provided.",
			json.RawMessage(`{
				"type": "object",
				"properties": {
					"queries": {"type": "array", "items": {"type": "string"}, "description": "Optional search queries"}
				}
			}`)),
		def(toolEstimateCost,
			"Look up the typical market repair cost for the claimed damage and compare it to the claimed amount.",
			emptyParams()),
		def(toolRecommend,
			"Generate a coverage recommendation from the claim, retrieved policy text and price comparison.",
			emptyParams()),
		def(toolFinalizeDecision,
			"Record the final coverage decision. Call exactly once, as the last step.",
			json.RawMessage(`{
				"type": "object",
				"properties": {
					"covered": {"type": "boolean"},
					"deductible": {"type": "number"},
					"recommended_payout": {"type": "number"},
					"notes": {"type": "string"}
				},
				"required": ["covered"]
			}`)),
	}
}

// agentRun holds the state accumulated by one agent loop. Tool results are
// recorded here so the postcondition checks can verify them independently
// of whatever the model reports.
type agentRun struct {
	cfg   *model.Config
	deps  Deps
	claim model.ClaimRequest
	trace *model.Trace

	validation     *model.ValidationOutcome
	queries        []string
	passages       []model.RetrievedPassage
	price          *model.PriceAssessment
	recommendation *model.Recommendation
	decision       *model.ClaimDecision
}

func newAgentRun(cfg *model.Config, deps Deps, claim model.ClaimRequest) *agentRun {
	return &agentRun{cfg: cfg, deps: deps, claim: claim, trace: &model.Trace{}}
}

// execute dispatches one tool call and returns the JSON payload for the
// tool response message. Malformed arguments are repaired before parsing;
// unknown tools produce an error payload rather than aborting the run.
func (r *agentRun) execute(ctx context.Context, call openai.ToolCall) string {
	args := call.Function.Arguments
	if args == "" {
		args = "{}"
	}
	if !json.Valid([]byte(args)) {
		if repaired, err := jsonrepair.JSONRepair(args); err == nil {
			args = repaired
		}
	}

	switch call.Function.Name {
	case toolValidateClaim:
		return r.execValidate()
	case toolGenerateQueries:
		return r.execGenerateQueries(ctx)
	case toolRetrieveText:
		return r.execRetrieve(ctx, args)
	case toolEstimateCost:
		return r.execEstimate(ctx)
	case toolRecommend:
		return r.execRecommend(ctx)
	case toolFinalizeDecision:
		return r.execFinalize(args)
	default:
		return fmt.Sprintf(`{"error": "unknown tool %q"}`, call.Function.Name)
	}
}

func (r *agentRun) stepCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.cfg.Pipeline.StepTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.cfg.Pipeline.StepTimeout)
}

func (r *agentRun) execValidate() string {
	start := time.Now()
	outcome := r.deps.Validator.Validate(r.claim)
	r.validation = &outcome

	summary := "valid"
	if !outcome.IsValid {
		summary = outcome.Reason
	}
	r.trace.Append(StepValidate, time.Since(start), summary)

	payload, _ := json.Marshal(outcome)
	return string(payload)
}

func (r *agentRun) execGenerateQueries(ctx context.Context) string {
	start := time.Now()
	stepCtx, cancel := r.stepCtx(ctx)
	defer cancel()

	qs, err := r.deps.Reasoner.GenerateQueries(stepCtx, r.claim)
	if err != nil || len(qs.Queries) == 0 {
		r.queries = []string{fallbackQuery(r.claim)}
		r.trace.AppendWarning(StepGenerateQueries, time.Since(start), "no usable queries from reasoner, using fallback query")
	} else {
		r.queries = qs.Queries
		r.trace.Append(StepGenerateQueries, time.Since(start), fmt.Sprintf("%d queries", len(r.queries)))
	}

	payload, _ := json.Marshal(model.PolicyQuerySet{Queries: r.queries})
	return string(payload)
}

func (r *agentRun) execRetrieve(ctx context.Context, args string) string {
	start := time.Now()

	var params struct {
		Queries []string `json:"queries"`
	}
	_ = json.Unmarshal([]byte(args), &params)

	queries := params.Queries
	if len(queries) == 0 {
		queries = r.queries
	}
	if len(queries) == 0 {
		queries = []string{fallbackQuery(r.claim)}
	}

	topK := r.cfg.Index.TopK
	resultSets := make([][]model.RetrievedPassage, 0, len(queries))
	failed := 0
	for _, query := range queries {
		passages, err := r.deps.Searcher.Search(ctx, query, topK)
		if err != nil {
			failed++
			continue
		}
		resultSets = append(resultSets, passages)
	}

	r.passages = mergePassages(resultSets, topK)

	summary := fmt.Sprintf("%d passages from %d queries", len(r.passages), len(queries))
	if failed > 0 {
		r.trace.AppendWarning(StepRetrieve, time.Since(start), fmt.Sprintf("%s (%d queries failed)", summary, failed))
	} else {
		r.trace.Append(StepRetrieve, time.Since(start), summary)
	}

	payload, _ := json.Marshal(struct {
		Passages []model.RetrievedPassage `json:"passages"`
	}{r.passages})
	return string(payload)
}

func (r *agentRun) execEstimate(ctx context.Context) string {
	price := r.ensurePrice(ctx)
	payload, _ := json.Marshal(price)
	return string(payload)
}

// ensurePrice computes the price assessment if it has not been computed
// yet. Also used by the postcondition checks when the agent skipped the
// price step.
func (r *agentRun) ensurePrice(ctx context.Context) model.PriceAssessment {
	if r.price != nil {
		return *r.price
	}

	start := time.Now()
	stepCtx, cancel := r.stepCtx(ctx)
	defer cancel()

	estimate, err := r.deps.Oracle.Estimate(stepCtx, r.claim.LossDescription, r.claim.VehicleDetails)
	if err != nil {
		estimate = nil
	}

	price := oracle.Assess(r.claim.EstimatedRepairCost, estimate, r.cfg.Pipeline.InflationRatio)
	r.price = &price

	if err != nil {
		r.trace.AppendWarning(StepPriceCheck, time.Since(start), "market estimate unavailable: "+err.Error())
	} else {
		r.trace.Append(StepPriceCheck, time.Since(start), price.Summary)
	}
	return price
}

func (r *agentRun) execRecommend(ctx context.Context) string {
	start := time.Now()

	// A recommendation without a price assessment would let the agent skip
	// the inflation rule, so compute it first.
	price := r.ensurePrice(ctx)

	stepCtx, cancel := r.stepCtx(ctx)
	defer cancel()

	rec, err := r.deps.Reasoner.Recommend(stepCtx, reasoner.RecommendRequest{
		Claim:    r.claim,
		Passages: r.passages,
		Price:    price,
	})
	if err != nil {
		r.trace.AppendWarning(StepRecommend, time.Since(start), "reasoner output unusable: "+err.Error())
		return `{"error": "recommendation could not be generated"}`
	}

	r.recommendation = &rec
	r.trace.Append(StepRecommend, time.Since(start), rec.PolicySection)

	payload, _ := json.Marshal(rec)
	return string(payload)
}

func (r *agentRun) execFinalize(args string) string {
	var d model.ClaimDecision
	if err := json.Unmarshal([]byte(args), &d); err != nil {
		return fmt.Sprintf(`{"error": "invalid decision: %s"}`, err)
	}
	d.ClaimNumber = r.claim.ClaimNumber
	r.decision = &d
	return `{"recorded": true}`
}

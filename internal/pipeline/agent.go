package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/claimwarden/claimwarden/internal/model"
	"github.com/claimwarden/claimwarden/internal/reasoner"
)

const agentSystemPrompt = `You are an autonomous insurance claims adjuster. Process the claim using the available tools.

Workflow:
1. Call validate_claim first. If the claim is invalid, call finalize_decision immediately with covered=false and the validation reason. Do not call any other tool.
2. Call generate_policy_queries, then retrieve_policy_text to gather relevant policy passages.
3. Call estimate_repair_cost to check whether the claimed repair cost is inflated. If it is inflated, finalize with covered=false.
4. Call generate_recommendation, then finalize_decision with the coverage verdict, deductible and recommended payout.

Always end by calling finalize_decision exactly once.`

// chatCompleter is the slice of the OpenAI client the agent loop needs
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Agent drives the claim workflow through an autonomous tool-calling loop.
// The model chooses which step to run next; the loop records what was
// actually executed and enforces the business rules on the way out, so a
// wandering model cannot skip validation or the inflation check.
type Agent struct {
	cfg    *model.Config
	deps   Deps
	client chatCompleter
}

// NewAgent creates the agent strategy from configuration
func NewAgent(cfg *model.Config, deps Deps) (*Agent, error) {
	if cfg.LLM.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required for the agent strategy")
	}

	clientConfig := openai.DefaultConfig(cfg.LLM.APIKey)
	if cfg.LLM.BaseURL != "" {
		clientConfig.BaseURL = cfg.LLM.BaseURL
	}

	return &Agent{cfg: cfg, deps: deps, client: openai.NewClientWithConfig(clientConfig)}, nil
}

// ProcessClaim runs the tool-calling loop until the model finalizes a
// decision or the step budget runs out
func (a *Agent) ProcessClaim(ctx context.Context, claim model.ClaimRequest) (model.ClaimDecision, error) {
	if err := claim.Validate(); err != nil {
		return model.ClaimDecision{}, fmt.Errorf("invalid claim request: %w", err)
	}

	run := newAgentRun(a.cfg, a.deps, claim)

	claimJSON, err := json.Marshal(claim)
	if err != nil {
		return model.ClaimDecision{}, fmt.Errorf("encode claim: %w", err)
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: agentSystemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: "Process this claim:\n" + string(claimJSON)},
	}
	tools := agentTools()

	maxSteps := a.cfg.Pipeline.AgentMaxSteps
	if maxSteps <= 0 {
		maxSteps = 12
	}

	for step := 0; step < maxSteps && run.decision == nil; step++ {
		if err := ctx.Err(); err != nil {
			return model.ClaimDecision{}, fmt.Errorf("claim run cancelled: %w", err)
		}

		msg, err := a.complete(ctx, messages, tools)
		if err != nil {
			run.trace.AppendWarning(StepFinalize, 0, "model unavailable: "+err.Error())
			break
		}
		messages = append(messages, msg)

		if len(msg.ToolCalls) > 0 {
			for _, call := range msg.ToolCalls {
				result := run.execute(ctx, call)
				messages = append(messages, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					ToolCallID: call.ID,
					Content:    result,
				})
				if run.decision != nil {
					break
				}
			}
			continue
		}

		// The model answered in prose instead of calling finalize_decision.
		// Salvage a decision from the text if it contains one.
		if d, err := reasoner.DecodeDecision(msg.Content, claim.ClaimNumber); err == nil {
			run.decision = &d
		}
	}

	return a.conclude(ctx, run), nil
}

// complete runs one turn of the tool-calling conversation
func (a *Agent) complete(ctx context.Context, messages []openai.ChatCompletionMessage, tools []openai.Tool) (openai.ChatCompletionMessage, error) {
	timeout := a.cfg.LLM.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	m := a.cfg.LLM.Model
	if m == "" {
		m = openai.GPT4oMini
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       m,
		Messages:    messages,
		Tools:       tools,
		MaxTokens:   a.cfg.LLM.MaxTokens,
		Temperature: a.cfg.LLM.Temperature,
	})
	if err != nil {
		return openai.ChatCompletionMessage{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return openai.ChatCompletionMessage{}, fmt.Errorf("no response from model")
	}
	return resp.Choices[0].Message, nil
}

// conclude turns the run state into the final decision, enforcing the
// rules the model might have skipped: validation always happens and an
// invalid claim is rejected on the recorded reason alone; no claim is
// approved without a price assessment; an inflated claim is rejected.
func (a *Agent) conclude(ctx context.Context, run *agentRun) model.ClaimDecision {
	claim := run.claim

	if run.validation == nil {
		run.execValidate()
	}

	var decision model.ClaimDecision
	switch {
	case !run.validation.IsValid:
		decision = rejectedDecision(claim, run.validation.Reason)
	case run.decision == nil:
		decision = model.ClaimDecision{
			ClaimNumber: claim.ClaimNumber,
			Covered:     false,
			Notes:       "Processing inconclusive: the step budget was exhausted before a final decision was reached. Manual review required.",
		}
		run.trace.AppendWarning(StepFinalize, 0, "step budget exhausted without a decision")
	default:
		decision = *run.decision
		if decision.Covered {
			price := run.ensurePrice(ctx)
			if price.IsInflated {
				decision = rejectedDecision(claim, "estimated repair cost appears inflated. "+price.Summary)
			}
		}
	}

	if decision.Covered {
		if decision.Deductible < 0 {
			decision.Deductible = 0
		}
		if decision.RecommendedPayout < 0 {
			decision.RecommendedPayout = 0
		}
	} else {
		decision.Deductible = 0
		decision.RecommendedPayout = 0
	}

	attachTrace(&decision, run.trace)
	return decision
}

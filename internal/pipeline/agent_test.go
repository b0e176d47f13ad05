package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claimwarden/claimwarden/internal/model"
)

// scriptedClient plays back a fixed sequence of assistant messages,
// one per completion call
type scriptedClient struct {
	script   []openai.ChatCompletionMessage
	requests []openai.ChatCompletionRequest
	err      error
}

func (s *scriptedClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return openai.ChatCompletionResponse{}, s.err
	}
	if len(s.requests) > len(s.script) {
		return openai.ChatCompletionResponse{}, errors.New("script exhausted")
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: s.script[len(s.requests)-1]}},
	}, nil
}

func toolCallMsg(name, args string) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleAssistant,
		ToolCalls: []openai.ToolCall{{
			ID:       fmt.Sprintf("call-%s", name),
			Type:     openai.ToolTypeFunction,
			Function: openai.FunctionCall{Name: name, Arguments: args},
		}},
	}
}

func proseMsg(content string) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content}
}

func newTestAgent(deps Deps, script ...openai.ChatCompletionMessage) (*Agent, *scriptedClient) {
	cfg := model.DefaultConfig()
	cfg.Pipeline.Strategy = "agent"
	client := &scriptedClient{script: script}
	return &Agent{cfg: cfg, deps: deps, client: client}, client
}

func TestAgent_FullWorkflow(t *testing.T) {
	deps, validator, _, reasonerFake, oracleFake := happyDeps()
	agent, client := newTestAgent(deps,
		toolCallMsg(toolValidateClaim, `{}`),
		toolCallMsg(toolGenerateQueries, `{}`),
		toolCallMsg(toolRetrieveText, `{}`),
		toolCallMsg(toolEstimateCost, `{}`),
		toolCallMsg(toolRecommend, `{}`),
		toolCallMsg(toolFinalizeDecision, `{"covered": true, "deductible": 500, "recommended_payout": 3000, "notes": "Covered under Section 4.2 Collision."}`),
	)

	decision, err := agent.ProcessClaim(context.Background(), testClaim())
	require.NoError(t, err)

	assert.True(t, decision.Covered)
	assert.Equal(t, 500.0, decision.Deductible)
	assert.Equal(t, 3000.0, decision.RecommendedPayout)
	assert.Equal(t, "CLM-2024-001", decision.ClaimNumber)
	assert.Contains(t, decision.Notes, "--- Processing Trace ---")

	assert.Equal(t, 1, validator.calls)
	assert.Equal(t, 1, reasonerFake.recCalls)
	assert.Equal(t, 1, oracleFake.calls)
	assert.Len(t, client.requests, 6)

	// Every request must offer the full tool set
	for _, req := range client.requests {
		assert.Len(t, req.Tools, 6)
	}
}

func TestAgent_InvalidClaimOverridesModelDecision(t *testing.T) {
	deps, validator, _, _, _ := happyDeps()
	validator.outcome = model.ValidationOutcome{IsValid: false, Reason: "policy PN-1 not found in coverage records"}

	// The model ignores the validation result and approves anyway
	agent, _ := newTestAgent(deps,
		toolCallMsg(toolValidateClaim, `{}`),
		toolCallMsg(toolFinalizeDecision, `{"covered": true, "recommended_payout": 99999}`),
	)

	decision, err := agent.ProcessClaim(context.Background(), testClaim())
	require.NoError(t, err)

	assert.False(t, decision.Covered)
	assert.Zero(t, decision.RecommendedPayout)
	assert.Contains(t, decision.Notes, "Claim rejected: policy PN-1 not found in coverage records")
}

func TestAgent_SkippedValidationRunsAnyway(t *testing.T) {
	deps, validator, _, _, _ := happyDeps()
	agent, _ := newTestAgent(deps,
		toolCallMsg(toolEstimateCost, `{}`),
		toolCallMsg(toolFinalizeDecision, `{"covered": false, "notes": "Not covered."}`),
	)

	decision, err := agent.ProcessClaim(context.Background(), testClaim())
	require.NoError(t, err)

	assert.Equal(t, 1, validator.calls, "validation must run even when the model skips it")
	assert.False(t, decision.Covered)
	assert.Contains(t, decision.Notes, "Not covered.")
}

func TestAgent_ApprovalWithoutPriceCheckIsChecked(t *testing.T) {
	deps, _, _, _, oracleFake := happyDeps()
	oracleFake.estimate = floatPtr(2000)

	agent, _ := newTestAgent(deps,
		toolCallMsg(toolValidateClaim, `{}`),
		toolCallMsg(toolFinalizeDecision, `{"covered": true, "recommended_payout": 9000}`),
	)

	claim := testClaim()
	claim.EstimatedRepairCost = 9000

	decision, err := agent.ProcessClaim(context.Background(), claim)
	require.NoError(t, err)

	assert.Equal(t, 1, oracleFake.calls, "an approval without a price check must trigger one")
	assert.False(t, decision.Covered)
	assert.Contains(t, decision.Notes, "inflated")
}

func TestAgent_BudgetExhaustedIsInconclusive(t *testing.T) {
	deps, _, _, _, _ := happyDeps()
	agent, client := newTestAgent(deps,
		proseMsg("Let me think about this claim."),
		proseMsg("Still considering the policy terms."),
		proseMsg("I should look at the coverage dates."),
		proseMsg("Almost there."),
	)
	agent.cfg.Pipeline.AgentMaxSteps = 3

	decision, err := agent.ProcessClaim(context.Background(), testClaim())
	require.NoError(t, err)

	assert.False(t, decision.Covered)
	assert.Contains(t, decision.Notes, "inconclusive")
	assert.Len(t, client.requests, 3)
}

func TestAgent_ProseDecisionSalvaged(t *testing.T) {
	deps, _, _, _, _ := happyDeps()
	agent, _ := newTestAgent(deps,
		toolCallMsg(toolValidateClaim, `{}`),
		toolCallMsg(toolEstimateCost, `{}`),
		proseMsg(`Here is my decision: {"covered": true, "deductible": 500, "recommended_payout": 2800, "notes": "Covered."}`),
	)

	decision, err := agent.ProcessClaim(context.Background(), testClaim())
	require.NoError(t, err)

	assert.True(t, decision.Covered)
	assert.Equal(t, 2800.0, decision.RecommendedPayout)
}

func TestAgent_MalformedToolArgumentsRepaired(t *testing.T) {
	deps, _, _, _, _ := happyDeps()
	agent, _ := newTestAgent(deps,
		toolCallMsg(toolValidateClaim, `{}`),
		toolCallMsg(toolEstimateCost, `{}`),
		toolCallMsg(toolFinalizeDecision, `{'covered': true, 'deductible': 500,}`),
	)

	decision, err := agent.ProcessClaim(context.Background(), testClaim())
	require.NoError(t, err)

	assert.True(t, decision.Covered)
	assert.Equal(t, 500.0, decision.Deductible)
}

func TestAgent_ModelUnavailableIsInconclusive(t *testing.T) {
	deps, validator, _, _, _ := happyDeps()
	agent, client := newTestAgent(deps)
	client.err = errors.New("connection refused")

	decision, err := agent.ProcessClaim(context.Background(), testClaim())
	require.NoError(t, err)

	assert.Equal(t, 1, validator.calls)
	assert.False(t, decision.Covered)
	assert.Contains(t, decision.Notes, "inconclusive")
}

func TestAgent_CancelledContext(t *testing.T) {
	deps, _, _, _, _ := happyDeps()
	agent, _ := newTestAgent(deps)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := agent.ProcessClaim(ctx, testClaim())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

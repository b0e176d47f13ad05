// Package reasoner wraps the language model behind a narrow interface:
// structured context in, structured object out. Responses are treated as
// untrusted and repaired defensively before use.
package reasoner

import (
	"context"
	"fmt"
	"strings"

	"github.com/claimwarden/claimwarden/internal/model"
)

// Reasoner produces the two structured judgments the orchestrator needs
type Reasoner interface {
	// GenerateQueries proposes policy search queries for a claim
	GenerateQueries(ctx context.Context, claim model.ClaimRequest) (model.PolicyQuerySet, error)

	// Recommend produces a coverage recommendation given the claim, the
	// retrieved policy passages and the price assessment
	Recommend(ctx context.Context, req RecommendRequest) (model.Recommendation, error)
}

// RecommendRequest is the context handed to Recommend
type RecommendRequest struct {
	Claim    model.ClaimRequest
	Passages []model.RetrievedPassage
	Price    model.PriceAssessment
}

func describeClaim(claim model.ClaimRequest) string {
	vehicle := claim.VehicleDetails
	if vehicle == "" {
		vehicle = "N/A"
	}
	return fmt.Sprintf(
		"Claim number: %s\nPolicy number: %s\nDate of loss: %s\nLoss description: %s\nEstimated repair cost: $%.2f\nVehicle: %s",
		claim.ClaimNumber, claim.PolicyNumber, claim.DateOfLoss, claim.LossDescription, claim.EstimatedRepairCost, vehicle,
	)
}

func queryPrompt(claim model.ClaimRequest) string {
	return fmt.Sprintf(`You are an insurance policy analyst. Given the claim below, produce 3 to 5 targeted search queries to find the policy sections that govern this claim (coverage type, exclusions, deductibles, limits).

%s

Respond with a JSON object: {"queries": ["...", "..."]}`, describeClaim(claim))
}

func recommendPrompt(req RecommendRequest) string {
	policyText := "No policy text available."
	if len(req.Passages) > 0 {
		parts := make([]string, 0, len(req.Passages))
		for _, p := range req.Passages {
			parts = append(parts, p.Text)
		}
		policyText = strings.Join(parts, "\n\n---\n\n")
	}

	priceInfo := "No market cost data."
	if req.Price.Summary != "" {
		priceInfo = req.Price.Summary
	}

	return fmt.Sprintf(`You are an insurance claims adjuster. Recommend coverage for the claim below using only the policy text provided.

%s

Relevant policy text:
%s

Market cost comparison:
%s

Respond with a JSON object: {"policy_section": "...", "recommendation_summary": "...", "deductible": 500, "settlement_amount": 3000}`,
		describeClaim(req.Claim), policyText, priceInfo)
}

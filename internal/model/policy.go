package model

// PolicyRecord is one row of the coverage ledger
type PolicyRecord struct {
	PolicyNumber         string `json:"policy_number"`
	PremiumDuesRemaining bool   `json:"premium_dues_remaining"`
	CoverageStart        Date   `json:"coverage_start_date"`
	CoverageEnd          Date   `json:"coverage_end_date"`
}

// Covers reports whether the date of loss falls within the coverage window.
// Both boundary dates count as covered.
func (r PolicyRecord) Covers(dateOfLoss Date) bool {
	return !dateOfLoss.Before(r.CoverageStart) && !dateOfLoss.After(r.CoverageEnd)
}

// ValidationOutcome is the result of the rule checks against the ledger.
// Reason names the first failing rule only, never a concatenation.
type ValidationOutcome struct {
	IsValid bool   `json:"is_valid"`
	Reason  string `json:"reason,omitempty"`
}

// PolicyQuerySet holds the search queries proposed for policy retrieval
type PolicyQuerySet struct {
	Queries []string `json:"queries"`
}

// MaxPolicyQueries bounds the query set regardless of what the model proposes
const MaxPolicyQueries = 10

// RetrievedPassage is one matched policy excerpt. Score is a similarity used
// for ranking only; it is not a probability.
type RetrievedPassage struct {
	Text   string  `json:"text"`
	Score  float32 `json:"score"`
	Source string  `json:"source,omitempty"` // chunk identifier in the index
}

// PriceAssessment compares the claimed repair cost against a market estimate.
// A missing estimate never counts as inflation.
type PriceAssessment struct {
	MarketEstimate *float64 `json:"market_estimate,omitempty"`
	ClaimedCost    float64  `json:"claimed_cost"`
	IsInflated     bool     `json:"is_inflated"`
	Summary        string   `json:"summary,omitempty"`
}

// Recommendation is the coverage judgment produced for a valid,
// non-inflated claim
type Recommendation struct {
	PolicySection    string   `json:"policy_section"`
	Summary          string   `json:"recommendation_summary"`
	Deductible       *float64 `json:"deductible,omitempty"`
	SettlementAmount *float64 `json:"settlement_amount,omitempty"`
}

// DeductibleOrZero returns the deductible, clamped to be non-negative
func (r Recommendation) DeductibleOrZero() float64 {
	if r.Deductible == nil || *r.Deductible < 0 {
		return 0
	}
	return *r.Deductible
}

// SettlementOrZero returns the settlement amount, clamped to be non-negative
func (r Recommendation) SettlementOrZero() float64 {
	if r.SettlementAmount == nil || *r.SettlementAmount < 0 {
		return 0
	}
	return *r.SettlementAmount
}

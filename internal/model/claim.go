package model

import (
	"fmt"
	"strings"
	"time"
)

// Date is a calendar day without a time component. Claims and coverage
// windows are compared at day granularity, inclusive on both ends.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

// ParseDate parses an ISO-8601 date (YYYY-MM-DD)
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{t}, nil
}

// MustDate parses an ISO date or panics. Intended for tests and fixtures.
func MustDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

// Before reports whether d falls strictly before other
func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

// After reports whether d falls strictly after other
func (d Date) After(other Date) bool {
	return d.Time.After(other.Time)
}

// MarshalJSON encodes the date as "YYYY-MM-DD"
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

// UnmarshalJSON decodes a "YYYY-MM-DD" string
func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ClaimRequest is the incoming claim payload. Callers are expected to have
// schema-validated it at the boundary; Validate covers the structural
// invariants the engine depends on.
type ClaimRequest struct {
	ClaimNumber         string  `json:"claim_number"`          // Unique claim identifier (e.g. CLM-001)
	PolicyNumber        string  `json:"policy_number"`         // Policy number to validate against records
	ClaimantName        string  `json:"claimant_name"`         // Full name of the claimant
	DateOfLoss          Date    `json:"date_of_loss"`          // Date the loss occurred
	LossDescription     string  `json:"loss_description"`      // Free-text description of the loss event
	EstimatedRepairCost float64 `json:"estimated_repair_cost"` // Claimant's estimated repair cost in USD
	VehicleDetails      string  `json:"vehicle_details,omitempty"`
}

// Validate checks the structural invariants of the claim
func (c *ClaimRequest) Validate() error {
	if strings.TrimSpace(c.ClaimNumber) == "" {
		return fmt.Errorf("claim_number is required")
	}
	if strings.TrimSpace(c.PolicyNumber) == "" {
		return fmt.Errorf("policy_number is required")
	}
	if c.EstimatedRepairCost <= 0 {
		return fmt.Errorf("estimated_repair_cost must be positive, got %.2f", c.EstimatedRepairCost)
	}
	if c.DateOfLoss.IsZero() {
		return fmt.Errorf("date_of_loss is required")
	}
	return nil
}

// ClaimDecision is the final coverage decision. It is the only artifact that
// survives a processing run.
type ClaimDecision struct {
	ClaimNumber       string  `json:"claim_number"`
	Covered           bool    `json:"covered"`
	Deductible        float64 `json:"deductible"`         // Applicable deductible in USD, >= 0
	RecommendedPayout float64 `json:"recommended_payout"` // Recommended settlement payout in USD, >= 0
	Notes             string  `json:"notes,omitempty"`    // Rejection reason, coverage details, trace summary
}

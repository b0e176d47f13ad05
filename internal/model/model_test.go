package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestDate_JSONRoundTrip(t *testing.T) {
	d := MustDate("2024-03-15")

	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"2024-03-15"` {
		t.Errorf("expected quoted date, got %s", data)
	}

	var parsed Date
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !parsed.Equal(d.Time) {
		t.Errorf("round trip changed the date: %v != %v", parsed, d)
	}
}

func TestParseDate_Invalid(t *testing.T) {
	for _, s := range []string{"", "15-03-2024", "2024/03/15", "not a date"} {
		if _, err := ParseDate(s); err == nil {
			t.Errorf("expected error for %q", s)
		}
	}
}

func TestPolicyRecord_CoversInclusiveBounds(t *testing.T) {
	record := PolicyRecord{
		PolicyNumber:  "PN-1",
		CoverageStart: MustDate("2024-01-01"),
		CoverageEnd:   MustDate("2024-12-31"),
	}

	tests := []struct {
		date string
		want bool
	}{
		{"2023-12-31", false},
		{"2024-01-01", true},
		{"2024-06-15", true},
		{"2024-12-31", true},
		{"2025-01-01", false},
	}
	for _, tt := range tests {
		if got := record.Covers(MustDate(tt.date)); got != tt.want {
			t.Errorf("Covers(%s) = %v, want %v", tt.date, got, tt.want)
		}
	}
}

func TestClaimRequest_Validate(t *testing.T) {
	valid := ClaimRequest{
		ClaimNumber:         "CLM-1",
		PolicyNumber:        "PN-1",
		ClaimantName:        "Jordan Avery",
		DateOfLoss:          MustDate("2024-03-15"),
		LossDescription:     "collision",
		EstimatedRepairCost: 1200,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid claim rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*ClaimRequest)
	}{
		{"empty claim number", func(c *ClaimRequest) { c.ClaimNumber = "  " }},
		{"empty policy number", func(c *ClaimRequest) { c.PolicyNumber = "" }},
		{"zero cost", func(c *ClaimRequest) { c.EstimatedRepairCost = 0 }},
		{"negative cost", func(c *ClaimRequest) { c.EstimatedRepairCost = -50 }},
		{"missing date", func(c *ClaimRequest) { c.DateOfLoss = Date{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claim := valid
			tt.mutate(&claim)
			if err := claim.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestRecommendation_ClampsNegatives(t *testing.T) {
	neg := -200.0
	rec := Recommendation{Deductible: &neg, SettlementAmount: &neg}
	if got := rec.DeductibleOrZero(); got != 0 {
		t.Errorf("DeductibleOrZero() = %v, want 0", got)
	}
	if got := rec.SettlementOrZero(); got != 0 {
		t.Errorf("SettlementOrZero() = %v, want 0", got)
	}

	if got := (Recommendation{}).DeductibleOrZero(); got != 0 {
		t.Errorf("nil deductible should be 0, got %v", got)
	}
}

func TestTrace_Format(t *testing.T) {
	trace := &Trace{}
	trace.Append("validate", 120*time.Millisecond, "valid")
	trace.AppendWarning("retrieve", 2*time.Second, "1 queries failed")

	got := trace.Format()
	lines := strings.Split(got, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d:\n%s", len(lines), got)
	}
	if !strings.Contains(lines[0], "[validate] 0.12s | valid") {
		t.Errorf("unexpected first line: %s", lines[0])
	}
	if !strings.Contains(lines[1], "(warning)") {
		t.Errorf("warning marker missing: %s", lines[1])
	}
}

func TestTrace_EntriesIsACopy(t *testing.T) {
	trace := &Trace{}
	trace.Append("validate", 0, "valid")

	entries := trace.Entries()
	entries[0].Step = "mutated"

	if trace.Entries()[0].Step != "validate" {
		t.Error("Entries() must return a copy")
	}
}

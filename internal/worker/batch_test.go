package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/claimwarden/claimwarden/internal/model"
)

type stubProcessor struct {
	failFor string
}

func (p *stubProcessor) ProcessClaim(ctx context.Context, claim model.ClaimRequest) (model.ClaimDecision, error) {
	if claim.ClaimNumber == p.failFor {
		return model.ClaimDecision{}, errors.New("index unavailable")
	}
	return model.ClaimDecision{
		ClaimNumber: claim.ClaimNumber,
		Covered:     true,
		Notes:       "Covered.",
	}, nil
}

func batchClaim(number string) model.ClaimRequest {
	return model.ClaimRequest{
		ClaimNumber:         number,
		PolicyNumber:        "PN-1",
		ClaimantName:        "Jordan Avery",
		DateOfLoss:          model.MustDate("2024-03-15"),
		LossDescription:     "collision",
		EstimatedRepairCost: 1000,
	}
}

func TestBatchProcessor_ProcessClaims(t *testing.T) {
	b := NewBatchProcessor(&stubProcessor{failFor: "CLM-2"}, 4)

	claims := []model.ClaimRequest{
		batchClaim("CLM-3"),
		batchClaim("CLM-1"),
		batchClaim("CLM-2"),
	}

	results := b.ProcessClaims(context.Background(), claims)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	// Sorted by claim number regardless of completion order
	for i, want := range []string{"CLM-1", "CLM-2", "CLM-3"} {
		if results[i].ClaimNumber != want {
			t.Errorf("result %d: expected %s, got %s", i, want, results[i].ClaimNumber)
		}
	}

	if results[1].GetError() == nil {
		t.Error("expected CLM-2 to fail")
	}
	if !results[0].Decision.Covered {
		t.Error("expected CLM-1 to be covered")
	}
}

func TestBatchProcessor_EmptyInput(t *testing.T) {
	b := NewBatchProcessor(&stubProcessor{}, 2)
	if results := b.ProcessClaims(context.Background(), nil); len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestReadClaimsFromFile_Array(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claims.json")
	content := `[
		{"claim_number": "CLM-1", "policy_number": "PN-1", "claimant_name": "A", "date_of_loss": "2024-03-15", "loss_description": "collision", "estimated_repair_cost": 1000},
		{"claim_number": "CLM-2", "policy_number": "PN-1", "claimant_name": "B", "date_of_loss": "2024-03-16", "loss_description": "hail", "estimated_repair_cost": 800},
		{"claim_number": "CLM-1", "policy_number": "PN-1", "claimant_name": "A", "date_of_loss": "2024-03-15", "loss_description": "collision", "estimated_repair_cost": 1000}
	]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	claims, err := ReadClaimsFromFile(path)
	if err != nil {
		t.Fatalf("ReadClaimsFromFile: %v", err)
	}
	if len(claims) != 2 {
		t.Fatalf("expected 2 unique claims, got %d", len(claims))
	}
	if claims[0].ClaimNumber != "CLM-1" || claims[1].ClaimNumber != "CLM-2" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestReadClaimsFromFile_Lines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "claims.jsonl")
	content := strings.Join([]string{
		`# pending review`,
		`{"claim_number": "CLM-1", "policy_number": "PN-1", "claimant_name": "A", "date_of_loss": "2024-03-15", "loss_description": "collision", "estimated_repair_cost": 1000}`,
		``,
		`{"claim_number": "CLM-2", "policy_number": "PN-2", "claimant_name": "B", "date_of_loss": "2024-03-16", "loss_description": "hail", "estimated_repair_cost": 800}`,
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	claims, err := ReadClaimsFromFile(path)
	if err != nil {
		t.Fatalf("ReadClaimsFromFile: %v", err)
	}
	if len(claims) != 2 {
		t.Fatalf("expected 2 claims, got %d", len(claims))
	}
}

func TestReadClaimsFromFile_Missing(t *testing.T) {
	if _, err := ReadClaimsFromFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestReadClaimsFromFile_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("not json at all"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadClaimsFromFile(path); err == nil {
		t.Error("expected error for malformed file")
	}
}

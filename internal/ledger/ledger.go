// Package ledger loads the policy coverage records and applies the
// deterministic validation rules a claim must pass before any reasoning
// happens.
package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/claimwarden/claimwarden/internal/model"
)

// ErrPolicyNotFound is returned by Lookup for unknown policy numbers
var ErrPolicyNotFound = errors.New("policy not found")

// Ledger is a read-only lookup of policy coverage records. Loaded once,
// safe for concurrent reads.
type Ledger struct {
	records map[string]model.PolicyRecord
}

// Load reads the coverage CSV and builds the ledger. A file that cannot be
// read is a fatal infrastructure error. Skipping malformed rows would hide
// ledger corruption, so any bad row fails the load too.
func Load(path string) (*Ledger, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open coverage data: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse reads coverage records from r. The first row must be a header
// containing policy_number, premium_dues_remaining, coverage_start_date and
// coverage_end_date columns, in any order.
func Parse(r io.Reader) (*Ledger, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read coverage header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, required := range []string{"policy_number", "premium_dues_remaining", "coverage_start_date", "coverage_end_date"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("coverage data missing column %q", required)
		}
	}

	records := make(map[string]model.PolicyRecord)
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read coverage row %d: %w", line, err)
		}

		rec, err := parseRecord(row, col)
		if err != nil {
			return nil, fmt.Errorf("coverage row %d: %w", line, err)
		}
		records[rec.PolicyNumber] = rec
	}

	return &Ledger{records: records}, nil
}

func parseRecord(row []string, col map[string]int) (model.PolicyRecord, error) {
	field := func(name string) string {
		i := col[name]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	number := field("policy_number")
	if number == "" {
		return model.PolicyRecord{}, fmt.Errorf("empty policy_number")
	}

	start, err := model.ParseDate(field("coverage_start_date"))
	if err != nil {
		return model.PolicyRecord{}, err
	}
	end, err := model.ParseDate(field("coverage_end_date"))
	if err != nil {
		return model.PolicyRecord{}, err
	}
	if end.Before(start) {
		return model.PolicyRecord{}, fmt.Errorf("policy %s: coverage end %s precedes start %s", number, end, start)
	}

	// The source stores the flag as a "True"/"False" string
	dues := strings.EqualFold(field("premium_dues_remaining"), "true")

	return model.PolicyRecord{
		PolicyNumber:         number,
		PremiumDuesRemaining: dues,
		CoverageStart:        start,
		CoverageEnd:          end,
	}, nil
}

// Len returns the number of loaded policy records
func (l *Ledger) Len() int {
	return len(l.records)
}

// Lookup returns the record for the given policy number, or ErrPolicyNotFound
func (l *Ledger) Lookup(policyNumber string) (model.PolicyRecord, error) {
	rec, ok := l.records[policyNumber]
	if !ok {
		return model.PolicyRecord{}, fmt.Errorf("policy %s: %w", policyNumber, ErrPolicyNotFound)
	}
	return rec, nil
}

// Validate applies the coverage rules to a claim in fixed priority order:
// the policy must exist, must have no outstanding premium dues, and the date
// of loss must fall inside the coverage window (boundaries inclusive). The
// first failing rule determines the reported reason.
func (l *Ledger) Validate(claim model.ClaimRequest) model.ValidationOutcome {
	rec, err := l.Lookup(claim.PolicyNumber)
	if err != nil {
		return model.ValidationOutcome{
			Reason: fmt.Sprintf("policy %s not found in coverage records", claim.PolicyNumber),
		}
	}

	if rec.PremiumDuesRemaining {
		return model.ValidationOutcome{
			Reason: fmt.Sprintf("policy %s has outstanding premium dues", claim.PolicyNumber),
		}
	}

	if !rec.Covers(claim.DateOfLoss) {
		return model.ValidationOutcome{
			Reason: fmt.Sprintf(
				"date of loss %s is outside the coverage period (%s to %s) for policy %s",
				claim.DateOfLoss, rec.CoverageStart, rec.CoverageEnd, claim.PolicyNumber,
			),
		}
	}

	return model.ValidationOutcome{IsValid: true}
}

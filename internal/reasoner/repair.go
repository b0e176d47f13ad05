package reasoner

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/claimwarden/claimwarden/internal/model"
)

// Model output is free-form text that claims to be JSON. Decoding runs a
// ladder: strict parse of the extracted object, then jsonrepair, then
// field-level regex extraction. Callers substitute safe defaults when the
// whole ladder fails.

var fencedJSONRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

func boolFieldRe(name string) *regexp.Regexp {
	return regexp.MustCompile(`"` + name + `"\s*:\s*(true|false)`)
}

func numberFieldRe(name string) *regexp.Regexp {
	return regexp.MustCompile(`"` + name + `"\s*:\s*([\d.]+)`)
}

func stringFieldRe(name string) *regexp.Regexp {
	return regexp.MustCompile(`"` + name + `"\s*:\s*"([^"]*)"`)
}

// extractJSONObject pulls the first JSON object out of text, unwrapping
// markdown fences when present
func extractJSONObject(text string) string {
	if m := fencedJSONRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	start := strings.Index(text, "{")
	if start < 0 {
		return text
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case !inString && c == '{':
			depth++
		case !inString && c == '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return text[start:]
}

// decodeInto attempts strict unmarshal, then a jsonrepair pass
func decodeInto(raw string, v any) error {
	obj := extractJSONObject(raw)
	if err := json.Unmarshal([]byte(obj), v); err == nil {
		return nil
	}
	repaired, err := jsonrepair.JSONRepair(obj)
	if err != nil {
		return fmt.Errorf("repair JSON: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return fmt.Errorf("unmarshal repaired JSON: %w", err)
	}
	return nil
}

// DecodeQuerySet parses a query set from model output, dropping empty
// entries and capping the list
func DecodeQuerySet(raw string) (model.PolicyQuerySet, error) {
	var qs model.PolicyQuerySet
	if err := decodeInto(raw, &qs); err != nil {
		// Last resort: treat quoted strings inside a "queries" array as queries
		qs.Queries = extractQuotedList(raw, "queries")
		if len(qs.Queries) == 0 {
			return model.PolicyQuerySet{}, fmt.Errorf("decode query set: %w", err)
		}
	}

	cleaned := qs.Queries[:0]
	for _, q := range qs.Queries {
		if q = strings.TrimSpace(q); q != "" {
			cleaned = append(cleaned, q)
		}
		if len(cleaned) == model.MaxPolicyQueries {
			break
		}
	}
	qs.Queries = cleaned
	if len(qs.Queries) == 0 {
		return model.PolicyQuerySet{}, fmt.Errorf("no usable queries in model output")
	}
	return qs, nil
}

// DecodeRecommendation parses a recommendation from model output
func DecodeRecommendation(raw string) (model.Recommendation, error) {
	var rec model.Recommendation
	if err := decodeInto(raw, &rec); err != nil {
		rec = fuzzyRecommendation(raw)
		if rec.Summary == "" && rec.PolicySection == "" {
			return model.Recommendation{}, fmt.Errorf("decode recommendation: %w", err)
		}
	}
	if rec.Summary == "" && rec.PolicySection == "" {
		return model.Recommendation{}, fmt.Errorf("recommendation has no content")
	}
	return rec, nil
}

// DecodeDecision parses a final decision from agent output, falling back to
// field-level extraction from loosely formatted text. The fallback requires
// an explicit covered flag; a decision without one is unusable.
func DecodeDecision(raw, claimNumber string) (model.ClaimDecision, error) {
	var d model.ClaimDecision
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &d); err != nil {
		fuzzy, ok := fuzzyDecision(raw)
		if !ok {
			return model.ClaimDecision{}, fmt.Errorf("decode decision: %w", err)
		}
		d = fuzzy
	}
	if d.ClaimNumber == "" {
		d.ClaimNumber = claimNumber
	}
	if d.Deductible < 0 {
		d.Deductible = 0
	}
	if d.RecommendedPayout < 0 {
		d.RecommendedPayout = 0
	}
	return d, nil
}

func extractQuotedList(text, field string) []string {
	idx := strings.Index(text, `"`+field+`"`)
	if idx < 0 {
		return nil
	}
	rest := text[idx:]
	open := strings.Index(rest, "[")
	if open < 0 {
		return nil
	}
	closeIdx := strings.Index(rest[open:], "]")
	if closeIdx < 0 {
		closeIdx = len(rest) - open
	}
	inner := rest[open : open+closeIdx]
	var out []string
	for _, m := range regexp.MustCompile(`"([^"]+)"`).FindAllStringSubmatch(inner, -1) {
		out = append(out, m[1])
	}
	return out
}

func fuzzyRecommendation(text string) model.Recommendation {
	rec := model.Recommendation{}
	if m := stringFieldRe("policy_section").FindStringSubmatch(text); m != nil {
		rec.PolicySection = m[1]
	}
	if m := stringFieldRe("recommendation_summary").FindStringSubmatch(text); m != nil {
		rec.Summary = m[1]
	}
	if m := numberFieldRe("deductible").FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			rec.Deductible = &v
		}
	}
	if m := numberFieldRe("settlement_amount").FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			rec.SettlementAmount = &v
		}
	}
	return rec
}

func fuzzyDecision(text string) (model.ClaimDecision, bool) {
	m := boolFieldRe("covered").FindStringSubmatch(text)
	if m == nil {
		return model.ClaimDecision{}, false
	}
	d := model.ClaimDecision{Covered: m[1] == "true"}
	if m := numberFieldRe("deductible").FindStringSubmatch(text); m != nil {
		d.Deductible, _ = strconv.ParseFloat(m[1], 64)
	}
	if m := numberFieldRe("recommended_payout").FindStringSubmatch(text); m != nil {
		d.RecommendedPayout, _ = strconv.ParseFloat(m[1], 64)
	}
	if m := stringFieldRe("notes").FindStringSubmatch(text); m != nil {
		d.Notes = m[1]
	}
	if m := stringFieldRe("claim_number").FindStringSubmatch(text); m != nil {
		d.ClaimNumber = m[1]
	}
	return d, true
}

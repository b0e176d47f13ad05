package oracle

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/claimwarden/claimwarden/internal/model"
)

// Dollar amounts outside this range are treated as noise (ad prices, phone
// numbers formatted with separators, etc.)
const (
	minPlausibleAmount = 50
	maxPlausibleAmount = 200_000
)

var dollarAmountRe = regexp.MustCompile(`\$\s?([\d,]+(?:\.\d{1,2})?)`)

// ExtractDollarAmounts pulls plausible dollar figures out of free text
func ExtractDollarAmounts(text string) []float64 {
	var amounts []float64
	for _, m := range dollarAmountRe.FindAllStringSubmatch(text, -1) {
		v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil {
			continue
		}
		if v >= minPlausibleAmount && v <= maxPlausibleAmount {
			amounts = append(amounts, v)
		}
	}
	return amounts
}

// Assess compares the claimed cost against the market estimate. A missing
// estimate is never inflation; the claim proceeds on the claimed figure.
func Assess(claimedCost float64, marketEstimate *float64, inflationRatio float64) model.PriceAssessment {
	assessment := model.PriceAssessment{
		ClaimedCost:    claimedCost,
		MarketEstimate: marketEstimate,
	}

	if marketEstimate == nil {
		assessment.Summary = "Market estimate unavailable. Price check skipped."
		return assessment
	}

	threshold := *marketEstimate * (1 + inflationRatio)
	assessment.IsInflated = claimedCost > threshold

	verdict := "Within acceptable range."
	if assessment.IsInflated {
		verdict = "INFLATED: claimed cost exceeds threshold."
	}
	assessment.Summary = fmt.Sprintf(
		"Market estimate: $%.2f. Claimed: $%.2f. Threshold (%d%% above market): $%.2f. %s",
		*marketEstimate, claimedCost, int(inflationRatio*100), threshold, verdict,
	)

	return assessment
}

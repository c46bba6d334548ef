// Package riskmatrix provides deterministic local logic over a materialized
// analysis: level ordering, tallies and the soft-expectation audit. No model
// calls are made here and nothing is fabricated or rewritten.
package riskmatrix

import (
	"fmt"

	"github.com/dshills/contractengine/internal/mdparse"
	"github.com/dshills/contractengine/internal/schema"
)

// LevelOrdinal returns the numeric ordinal for a risk level, used to compare
// severity. Unknown=0, Low=1, Medium=2, High=3; -1 for anything else.
func LevelOrdinal(l schema.RiskLevel) int {
	switch l {
	case schema.RiskUnknown:
		return 0
	case schema.RiskLow:
		return 1
	case schema.RiskMedium:
		return 2
	case schema.RiskHigh:
		return 3
	default:
		return -1
	}
}

// Highest returns the most severe level in items, or RiskUnknown when items
// is empty.
func Highest(items []schema.RiskMatrixItem) schema.RiskLevel {
	best := schema.RiskUnknown
	for _, it := range items {
		if LevelOrdinal(it.RiskLevel) > LevelOrdinal(best) {
			best = it.RiskLevel
		}
	}
	return best
}

// CountByLevel tallies risk-matrix rows per level.
func CountByLevel(items []schema.RiskMatrixItem) (high, medium, low, unknown int) {
	for _, it := range items {
		switch it.RiskLevel {
		case schema.RiskHigh:
			high++
		case schema.RiskMedium:
			medium++
		case schema.RiskLow:
			low++
		case schema.RiskUnknown:
			unknown++
		}
	}
	return
}

// MissingCategories returns the expected categories absent from items, in
// canonical order.
func MissingCategories(items []schema.RiskMatrixItem) []schema.Category {
	seen := make(map[schema.Category]bool, len(items))
	for _, it := range items {
		seen[it.Category] = true
	}
	var missing []schema.Category
	for _, c := range schema.Categories {
		if !seen[c] {
			missing = append(missing, c)
		}
	}
	return missing
}

// DuplicateCategories returns categories that appear more than once, in
// order of their second appearance.
func DuplicateCategories(items []schema.RiskMatrixItem) []schema.Category {
	count := make(map[schema.Category]int, len(items))
	var dups []schema.Category
	for _, it := range items {
		count[it.Category]++
		if count[it.Category] == 2 {
			dups = append(dups, it.Category)
		}
	}
	return dups
}

// Finding codes reported by Audit.
const (
	CodeMissingCategory   = "missing_category"
	CodeDuplicateCategory = "duplicate_category"
	CodeSummaryLength     = "summary_length"
	CodeMissingHeading    = "missing_heading"
	CodeHeadingOrder      = "heading_order"
)

// Finding is one unmet soft expectation.
type Finding struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Audit reports soft expectations the result does not meet: all five risk
// categories present once, a 3–5 bullet executive summary, and the required
// detailedAnalysis headings in order. Findings are informational only.
func Audit(r *schema.AnalysisResult) []Finding {
	if r == nil {
		return nil
	}
	var out []Finding
	for _, c := range MissingCategories(r.RiskMatrix) {
		out = append(out, Finding{
			Code:    CodeMissingCategory,
			Message: fmt.Sprintf("risk matrix has no %s row", c),
		})
	}
	for _, c := range DuplicateCategories(r.RiskMatrix) {
		out = append(out, Finding{
			Code:    CodeDuplicateCategory,
			Message: fmt.Sprintf("risk matrix has more than one %s row", c),
		})
	}
	if n := len(r.ExecutiveSummary); n < 3 || n > 5 {
		out = append(out, Finding{
			Code:    CodeSummaryLength,
			Message: fmt.Sprintf("executive summary has %d bullets, expected 3 to 5", n),
		})
	}
	out = append(out, auditHeadings(r.DetailedAnalysis)...)
	return out
}

func auditHeadings(md string) []Finding {
	position := make(map[string]int)
	for i, h := range mdparse.Headings(md, 2) {
		if _, dup := position[h]; !dup {
			position[h] = i
		}
	}

	var out []Finding
	last := -1
	for _, want := range schema.RequiredHeadings {
		pos, ok := position[want]
		if !ok {
			out = append(out, Finding{
				Code:    CodeMissingHeading,
				Message: fmt.Sprintf("detailedAnalysis lacks heading %q", "## "+want),
			})
			continue
		}
		if pos < last {
			out = append(out, Finding{
				Code:    CodeHeadingOrder,
				Message: fmt.Sprintf("heading %q appears out of order", "## "+want),
			})
		}
		if pos > last {
			last = pos
		}
	}
	return out
}

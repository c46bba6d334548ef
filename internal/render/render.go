// Package render produces output from a materialized schema.AnalysisResult.
package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dshills/contractengine/internal/riskmatrix"
	"github.com/dshills/contractengine/internal/schema"
)

const notSpecified = "Not specified"

// Meta carries the request context shown in the Markdown report.
type Meta struct {
	Edition     string // e.g. "Oil & Gas Edition"; omitted from the title when empty
	Role        string
	DealContext string
	Findings    []riskmatrix.Finding
}

// RenderJSON produces a pretty-printed JSON representation of the result.
// The output round-trips through json.Unmarshal back to an equal result.
func RenderJSON(result *schema.AnalysisResult) ([]byte, error) {
	if result == nil {
		return nil, fmt.Errorf("render: nil result")
	}
	b, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render: json marshal: %w", err)
	}
	return b, nil
}

// RenderMarkdown produces a Markdown report of the result. String content
// from the model is written verbatim except inside table cells, where it is
// escaped so the table stays intact.
func RenderMarkdown(result *schema.AnalysisResult, meta Meta) string {
	if result == nil {
		return ""
	}
	var sb strings.Builder

	sb.WriteString("# Contract Engine")
	if meta.Edition != "" {
		sb.WriteString(": ")
		sb.WriteString(meta.Edition)
	}
	sb.WriteString("\n\n")
	role := meta.Role
	if strings.TrimSpace(role) == "" {
		role = "unspecified"
	}
	fmt.Fprintf(&sb, "Perspective: **%s**  \n", cases.Title(language.English).String(role))
	if meta.DealContext != "" {
		fmt.Fprintf(&sb, "Context: %s\n", meta.DealContext)
	}
	sb.WriteString("\n")

	high, medium, low, unknown := riskmatrix.CountByLevel(result.RiskMatrix)
	sb.WriteString("## Overall Risk\n\n")
	fmt.Fprintf(&sb, "- Overall risk rating: **%s**\n", result.OverallRisk)
	fmt.Fprintf(&sb, "- Risk matrix: **High:** %d | **Medium:** %d | **Low:** %d | **Unknown:** %d\n\n",
		high, medium, low, unknown)

	kc := result.KeyCommercials
	sb.WriteString("## Key Commercial Terms\n\n")
	fmt.Fprintf(&sb, "- **Contract type:** %s\n", orNotSpecified(kc.ContractType))
	fmt.Fprintf(&sb, "- **Value / pricing basis:** %s\n", orNotSpecified(kc.Value))
	fmt.Fprintf(&sb, "- **Pricing model:** %s\n", orNotSpecified(kc.PricingModel))
	fmt.Fprintf(&sb, "- **Duration / term:** %s\n", orNotSpecified(kc.Duration))
	fmt.Fprintf(&sb, "- **Renewal / extension:** %s\n\n", orNotSpecified(kc.RenewalTerms))

	if len(result.ExecutiveSummary) > 0 {
		sb.WriteString("## Executive Summary\n\n")
		for _, b := range result.ExecutiveSummary {
			fmt.Fprintf(&sb, "- %s\n", b)
		}
		sb.WriteString("\n")
	}

	if len(result.RiskMatrix) > 0 {
		sb.WriteString("## Strategic Risk Map\n\n")
		sb.WriteString("| Category | Risk level | Description | Mitigation |\n")
		sb.WriteString("|---|---|---|---|\n")
		for _, it := range result.RiskMatrix {
			fmt.Fprintf(&sb, "| %s | %s | %s | %s |\n",
				it.Category, it.RiskLevel, mdEscape(it.Description), mdEscape(it.Mitigation))
		}
		sb.WriteString("\n")
	}

	sc := result.Scope
	sb.WriteString("## Scope & Payment\n\n")
	fmt.Fprintf(&sb, "- **Payment terms & structure:** %s\n", orNotSpecified(sc.PaymentTerms))
	fmt.Fprintf(&sb, "- **Pricing and billing logic:** %s\n", orNotSpecified(sc.PricingModel))
	writeList(&sb, "Deliverables / outputs", sc.Deliverables, notSpecified)
	sb.WriteString("\n")

	c := result.Compliance
	sb.WriteString("## Compliance\n\n")
	fmt.Fprintf(&sb, "- **Overall compliance risk:** %s\n", c.OverallComplianceRisk)
	fmt.Fprintf(&sb, "- **Summary:** %s\n", orNotSpecified(c.Summary))
	writeList(&sb, "Sanctions flags", c.SanctionsFlags, "None identified")
	writeList(&sb, "Adverse media", c.AdverseMedia, "None identified")
	writeList(&sb, "Financial signals", c.FinancialSignals, "None identified")
	sb.WriteString("\n")

	sb.WriteString("## Detailed Deep-Dive Analysis\n\n")
	sb.WriteString(strings.TrimRight(result.DetailedAnalysis, "\n"))
	sb.WriteString("\n")

	if len(meta.Findings) > 0 {
		sb.WriteString("\n## Review Notes\n\n")
		for _, f := range meta.Findings {
			fmt.Fprintf(&sb, "- `%s`: %s\n", f.Code, f.Message)
		}
	}

	return sb.String()
}

// writeList renders a labelled bullet with nested items, or the fallback
// text when items is empty.
func writeList(sb *strings.Builder, label string, items []string, empty string) {
	if len(items) == 0 {
		fmt.Fprintf(sb, "- **%s:** %s\n", label, empty)
		return
	}
	fmt.Fprintf(sb, "- **%s:**\n", label)
	for _, it := range items {
		fmt.Fprintf(sb, "  - %s\n", it)
	}
}

func orNotSpecified(s string) string {
	if strings.TrimSpace(s) == "" {
		return notSpecified
	}
	return s
}

// mdEscape replaces characters that would break Markdown table cells.
func mdEscape(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", "")
	return s
}

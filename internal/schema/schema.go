// Package schema defines the canonical contract-analysis result and the
// validating constructors that build it from decoded model output.
package schema

// RiskLevel is the closed set of risk ratings used across the result.
type RiskLevel string

const (
	RiskHigh    RiskLevel = "High"
	RiskMedium  RiskLevel = "Medium"
	RiskLow     RiskLevel = "Low"
	RiskUnknown RiskLevel = "Unknown"
)

// RiskLevels lists every valid RiskLevel in descending severity.
var RiskLevels = []RiskLevel{RiskHigh, RiskMedium, RiskLow, RiskUnknown}

// Valid reports whether l is one of the closed set of literal values.
func (l RiskLevel) Valid() bool {
	switch l {
	case RiskHigh, RiskMedium, RiskLow, RiskUnknown:
		return true
	}
	return false
}

// Category is a risk-matrix category.
type Category string

const (
	CategoryLiability   Category = "Liability"
	CategoryHSE         Category = "HSE"
	CategoryPayment     Category = "Payment"
	CategoryTermination Category = "Termination"
	CategoryLegal       Category = "Legal"
)

// Categories lists the five categories a complete risk matrix covers.
var Categories = []Category{
	CategoryLiability,
	CategoryHSE,
	CategoryPayment,
	CategoryTermination,
	CategoryLegal,
}

// Valid reports whether c is one of the five known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryLiability, CategoryHSE, CategoryPayment, CategoryTermination, CategoryLegal:
		return true
	}
	return false
}

// RequiredHeadings are the section headings detailedAnalysis must follow, in order.
var RequiredHeadings = []string{
	"Commercial & Financial Profile",
	"Scope of Work & Technical Review",
	"Liquidated Damages and Service Credits",
	"Liability, Indemnities, Insurance",
	"HSE, Operational and Performance Risk",
	"Term, Termination, Breach and Force Majeure",
	"Legal, Compliance and Governance",
	"Strategic Recommendations",
}

// AnalysisResult is the aggregate root returned for one analysis call.
type AnalysisResult struct {
	OverallRisk      RiskLevel        `json:"overallRisk"`
	KeyCommercials   KeyCommercials   `json:"keyCommercials"`
	ExecutiveSummary []string         `json:"executiveSummary"`
	RiskMatrix       []RiskMatrixItem `json:"riskMatrix"`
	Scope            ScopeInfo        `json:"scope"`
	Compliance       ComplianceInfo   `json:"compliance"`
	DetailedAnalysis string           `json:"detailedAnalysis"`
}

// KeyCommercials holds headline commercial terms. An empty field means
// "not specified".
type KeyCommercials struct {
	Value        string `json:"value"`
	Duration     string `json:"duration"`
	ContractType string `json:"contractType"`
	PricingModel string `json:"pricingModel"`
	RenewalTerms string `json:"renewalTerms"`
}

// RiskMatrixItem is one row of the strategic risk map.
type RiskMatrixItem struct {
	Category    Category  `json:"category"`
	RiskLevel   RiskLevel `json:"riskLevel"`
	Description string    `json:"description"`
	Mitigation  string    `json:"mitigation"`
}

// ScopeInfo summarizes the scope of work.
type ScopeInfo struct {
	PricingModel string   `json:"pricingModel"`
	PaymentTerms string   `json:"paymentTerms"`
	Deliverables []string `json:"deliverables"`
}

// ComplianceInfo summarizes counterparty compliance signals. Empty lists
// mean "none identified".
type ComplianceInfo struct {
	Summary               string    `json:"summary"`
	OverallComplianceRisk RiskLevel `json:"overallComplianceRisk"`
	SanctionsFlags        []string  `json:"sanctionsFlags"`
	AdverseMedia          []string  `json:"adverseMedia"`
	FinancialSignals      []string  `json:"financialSignals"`
}

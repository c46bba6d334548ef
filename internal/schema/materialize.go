package schema

import "fmt"

// requiredTopLevel are the keys Materialize refuses to default.
var requiredTopLevel = []string{
	"overallRisk",
	"keyCommercials",
	"scope",
	"compliance",
	"detailedAnalysis",
}

// Materialize maps a decoded JSON object onto an AnalysisResult. It fails
// with a *ValidationError naming the first offending path. String content is
// passed through verbatim; optional lists default to empty slices.
func Materialize(data map[string]any) (*AnalysisResult, error) {
	root := object{m: data}
	for _, key := range requiredTopLevel {
		if _, ok := root.lookup(key); !ok {
			return nil, root.fail(key, nil, ErrMissingField)
		}
	}

	var (
		r   AnalysisResult
		err error
	)
	if r.OverallRisk, err = root.riskLevel("overallRisk"); err != nil {
		return nil, err
	}

	kc, err := root.object("keyCommercials")
	if err != nil {
		return nil, err
	}
	if r.KeyCommercials, err = keyCommercialsFrom(kc); err != nil {
		return nil, err
	}

	if r.ExecutiveSummary, err = root.stringList("executiveSummary"); err != nil {
		return nil, err
	}

	items, err := root.array("riskMatrix")
	if err != nil {
		return nil, err
	}
	r.RiskMatrix = make([]RiskMatrixItem, 0, len(items))
	for i, v := range items {
		path := fmt.Sprintf("riskMatrix[%d]", i)
		m, ok := v.(map[string]any)
		if !ok {
			return nil, &ValidationError{Path: path, Value: v, Reason: ErrTypeMismatch}
		}
		item, err := riskMatrixItemFrom(object{path: path, m: m})
		if err != nil {
			return nil, err
		}
		r.RiskMatrix = append(r.RiskMatrix, item)
	}

	scope, err := root.object("scope")
	if err != nil {
		return nil, err
	}
	if r.Scope, err = scopeFrom(scope); err != nil {
		return nil, err
	}

	comp, err := root.object("compliance")
	if err != nil {
		return nil, err
	}
	if r.Compliance, err = complianceFrom(comp); err != nil {
		return nil, err
	}

	if r.DetailedAnalysis, err = root.requiredString("detailedAnalysis"); err != nil {
		return nil, err
	}
	return &r, nil
}

func keyCommercialsFrom(o object) (KeyCommercials, error) {
	var (
		kc  KeyCommercials
		err error
	)
	fields := []struct {
		key string
		dst *string
	}{
		{"value", &kc.Value},
		{"duration", &kc.Duration},
		{"contractType", &kc.ContractType},
		{"pricingModel", &kc.PricingModel},
		{"renewalTerms", &kc.RenewalTerms},
	}
	for _, f := range fields {
		if *f.dst, err = o.optionalString(f.key); err != nil {
			return KeyCommercials{}, err
		}
	}
	return kc, nil
}

func riskMatrixItemFrom(o object) (RiskMatrixItem, error) {
	var (
		item RiskMatrixItem
		err  error
	)
	if item.Category, err = o.category("category"); err != nil {
		return RiskMatrixItem{}, err
	}
	if item.RiskLevel, err = o.riskLevel("riskLevel"); err != nil {
		return RiskMatrixItem{}, err
	}
	if item.Description, err = o.nonEmptyString("description"); err != nil {
		return RiskMatrixItem{}, err
	}
	if item.Mitigation, err = o.optionalString("mitigation"); err != nil {
		return RiskMatrixItem{}, err
	}
	return item, nil
}

func scopeFrom(o object) (ScopeInfo, error) {
	var (
		s   ScopeInfo
		err error
	)
	if s.PricingModel, err = o.optionalString("pricingModel"); err != nil {
		return ScopeInfo{}, err
	}
	if s.PaymentTerms, err = o.optionalString("paymentTerms"); err != nil {
		return ScopeInfo{}, err
	}
	if s.Deliverables, err = o.stringList("deliverables"); err != nil {
		return ScopeInfo{}, err
	}
	return s, nil
}

func complianceFrom(o object) (ComplianceInfo, error) {
	var (
		c   ComplianceInfo
		err error
	)
	if c.Summary, err = o.requiredString("summary"); err != nil {
		return ComplianceInfo{}, err
	}
	if c.OverallComplianceRisk, err = o.riskLevel("overallComplianceRisk"); err != nil {
		return ComplianceInfo{}, err
	}
	lists := []struct {
		key string
		dst *[]string
	}{
		{"sanctionsFlags", &c.SanctionsFlags},
		{"adverseMedia", &c.AdverseMedia},
		{"financialSignals", &c.FinancialSignals},
	}
	for _, l := range lists {
		if *l.dst, err = o.stringList(l.key); err != nil {
			return ComplianceInfo{}, err
		}
	}
	return c, nil
}

package schema_test

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/dshills/contractengine/internal/schema"
)

func sampleResult() *schema.AnalysisResult {
	return &schema.AnalysisResult{
		OverallRisk: schema.RiskMedium,
		KeyCommercials: schema.KeyCommercials{
			Value:        "USD 4.2m lump sum",
			Duration:     "36 months",
			ContractType: "Master Services Agreement",
			PricingModel: "Day rates plus reimbursables",
			RenewalTerms: "Two 12-month options at Company's election",
		},
		ExecutiveSummary: []string{
			"Uncapped indemnity for third-party pollution.",
			"Payment at 60 days is above market.",
			"Termination for convenience favours Company.",
		},
		RiskMatrix: []schema.RiskMatrixItem{
			{Category: schema.CategoryLiability, RiskLevel: schema.RiskHigh, Description: "No aggregate cap.", Mitigation: "Cap at contract value."},
			{Category: schema.CategoryHSE, RiskLevel: schema.RiskMedium, Description: "Stop-work authority unclear."},
			{Category: schema.CategoryPayment, RiskLevel: schema.RiskMedium, Description: "60-day terms.", Mitigation: "Negotiate 30 days."},
			{Category: schema.CategoryTermination, RiskLevel: schema.RiskLow, Description: "30 days' notice.", Mitigation: ""},
			{Category: schema.CategoryLegal, RiskLevel: schema.RiskUnknown, Description: "Governing law not stated."},
		},
		Scope: schema.ScopeInfo{
			PricingModel: "Schedule of rates",
			PaymentTerms: "60 days from invoice",
			Deliverables: []string{"Well intervention services", "Daily reports"},
		},
		Compliance: schema.ComplianceInfo{
			Summary:               "No red flags identified.",
			OverallComplianceRisk: schema.RiskLow,
			SanctionsFlags:        []string{},
			AdverseMedia:          []string{},
			FinancialSignals:      []string{"Parent guarantee offered"},
		},
		DetailedAnalysis: "## Commercial & Financial Profile\n\nLump sum.\n",
	}
}

// decode turns v into the generic structure the decoder produces.
func decode(t *testing.T, v any) map[string]any {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return m
}

func TestMaterialize_RoundTrip(t *testing.T) {
	want := sampleResult()
	got, err := schema.Materialize(decode(t, want))
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\n got: %+v\nwant: %+v", got, want)
	}
}

func TestMaterialize_MissingRequiredTopLevel(t *testing.T) {
	for _, key := range []string{"overallRisk", "keyCommercials", "scope", "compliance", "detailedAnalysis"} {
		t.Run(key, func(t *testing.T) {
			m := decode(t, sampleResult())
			delete(m, key)

			_, err := schema.Materialize(m)
			var ve *schema.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if ve.Path != key {
				t.Errorf("Path = %q, want %q", ve.Path, key)
			}
			if !errors.Is(err, schema.ErrMissingField) {
				t.Errorf("expected ErrMissingField, got %v", ve.Reason)
			}
		})
	}
}

func TestMaterialize_NullRequiredIsMissing(t *testing.T) {
	m := decode(t, sampleResult())
	m["compliance"] = nil

	_, err := schema.Materialize(m)
	var ve *schema.ValidationError
	if !errors.As(err, &ve) || ve.Path != "compliance" {
		t.Fatalf("expected missing compliance, got %v", err)
	}
}

func TestMaterialize_InvalidEnums(t *testing.T) {
	cases := []struct {
		name  string
		edit  func(m map[string]any)
		path  string
		value string
	}{
		{
			name:  "overall risk",
			edit:  func(m map[string]any) { m["overallRisk"] = "Severe" },
			path:  "overallRisk",
			value: "Severe",
		},
		{
			name: "risk level lower case",
			edit: func(m map[string]any) {
				m["riskMatrix"].([]any)[2].(map[string]any)["riskLevel"] = "high"
			},
			path:  "riskMatrix[2].riskLevel",
			value: "high",
		},
		{
			name: "compliance risk",
			edit: func(m map[string]any) {
				m["compliance"].(map[string]any)["overallComplianceRisk"] = "Critical"
			},
			path:  "compliance.overallComplianceRisk",
			value: "Critical",
		},
		{
			name: "category",
			edit: func(m map[string]any) {
				m["riskMatrix"].([]any)[0].(map[string]any)["category"] = "Environmental"
			},
			path:  "riskMatrix[0].category",
			value: "Environmental",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			m := decode(t, sampleResult())
			c.edit(m)

			_, err := schema.Materialize(m)
			var ve *schema.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if ve.Path != c.path {
				t.Errorf("Path = %q, want %q", ve.Path, c.path)
			}
			if ve.Value != c.value {
				t.Errorf("Value = %v, want %q", ve.Value, c.value)
			}
			if !errors.Is(err, schema.ErrInvalidEnum) {
				t.Errorf("expected ErrInvalidEnum, got %v", ve.Reason)
			}
		})
	}
}

func TestMaterialize_OptionalDefaults(t *testing.T) {
	m := map[string]any{
		"overallRisk":    "Low",
		"keyCommercials": map[string]any{},
		"scope":          map[string]any{},
		"compliance": map[string]any{
			"summary":               "Nothing noted.",
			"overallComplianceRisk": "Unknown",
		},
		"detailedAnalysis": "",
	}
	got, err := schema.Materialize(m)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if got.ExecutiveSummary == nil || len(got.ExecutiveSummary) != 0 {
		t.Errorf("ExecutiveSummary = %#v, want empty non-nil", got.ExecutiveSummary)
	}
	if got.RiskMatrix == nil || len(got.RiskMatrix) != 0 {
		t.Errorf("RiskMatrix = %#v, want empty non-nil", got.RiskMatrix)
	}
	if got.Scope.Deliverables == nil {
		t.Error("Scope.Deliverables should default to an empty slice")
	}
	for name, list := range map[string][]string{
		"sanctionsFlags":   got.Compliance.SanctionsFlags,
		"adverseMedia":     got.Compliance.AdverseMedia,
		"financialSignals": got.Compliance.FinancialSignals,
	} {
		if list == nil || len(list) != 0 {
			t.Errorf("%s = %#v, want empty non-nil", name, list)
		}
	}
	if got.KeyCommercials != (schema.KeyCommercials{}) {
		t.Errorf("KeyCommercials = %+v, want zero value", got.KeyCommercials)
	}

	// Empty lists marshal as [] rather than null.
	b, err := json.Marshal(got)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back map[string]any
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := back["riskMatrix"].([]any); !ok {
		t.Errorf("riskMatrix marshalled as %v, want []", back["riskMatrix"])
	}
}

func TestMaterialize_MitigationOptional(t *testing.T) {
	m := decode(t, sampleResult())
	delete(m["riskMatrix"].([]any)[1].(map[string]any), "mitigation")

	got, err := schema.Materialize(m)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if got.RiskMatrix[1].Mitigation != "" {
		t.Errorf("Mitigation = %q, want empty", got.RiskMatrix[1].Mitigation)
	}
}

func TestMaterialize_EmptyDescriptionRejected(t *testing.T) {
	m := decode(t, sampleResult())
	m["riskMatrix"].([]any)[3].(map[string]any)["description"] = ""

	_, err := schema.Materialize(m)
	var ve *schema.ValidationError
	if !errors.As(err, &ve) || ve.Path != "riskMatrix[3].description" {
		t.Fatalf("expected riskMatrix[3].description error, got %v", err)
	}
	if !errors.Is(err, schema.ErrEmptyValue) {
		t.Errorf("expected ErrEmptyValue, got %v", ve.Reason)
	}
}

func TestMaterialize_TypeMismatch(t *testing.T) {
	cases := []struct {
		name string
		edit func(m map[string]any)
		path string
	}{
		{"scalar list", func(m map[string]any) { m["executiveSummary"] = "one bullet" }, "executiveSummary"},
		{"list element", func(m map[string]any) { m["executiveSummary"] = []any{"ok", 3.0} }, "executiveSummary[1]"},
		{"object as string", func(m map[string]any) { m["scope"] = "broad" }, "scope"},
		{"number field", func(m map[string]any) { m["keyCommercials"].(map[string]any)["value"] = 100000.0 }, "keyCommercials.value"},
		{"matrix row", func(m map[string]any) { m["riskMatrix"] = []any{"Liability"} }, "riskMatrix[0]"},
		{"deliverables", func(m map[string]any) { m["scope"].(map[string]any)["deliverables"] = "pipes" }, "scope.deliverables"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			m := decode(t, sampleResult())
			c.edit(m)
			_, err := schema.Materialize(m)
			var ve *schema.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if ve.Path != c.path {
				t.Errorf("Path = %q, want %q", ve.Path, c.path)
			}
			if !errors.Is(err, schema.ErrTypeMismatch) {
				t.Errorf("expected ErrTypeMismatch, got %v", ve.Reason)
			}
		})
	}
}

func TestMaterialize_FewerCategoriesAccepted(t *testing.T) {
	m := decode(t, sampleResult())
	m["riskMatrix"] = m["riskMatrix"].([]any)[:2]

	got, err := schema.Materialize(m)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if len(got.RiskMatrix) != 2 {
		t.Errorf("len(RiskMatrix) = %d, want 2 (no fabricated rows)", len(got.RiskMatrix))
	}
}

func TestMaterialize_IgnoresUnknownKeys(t *testing.T) {
	m := decode(t, sampleResult())
	m["vendor_intelligence"] = "extra narrative"
	if _, err := schema.Materialize(m); err != nil {
		t.Fatalf("Materialize: %v", err)
	}
}

func TestParseRiskLevel(t *testing.T) {
	for _, l := range schema.RiskLevels {
		got, err := schema.ParseRiskLevel(string(l))
		if err != nil || got != l {
			t.Errorf("ParseRiskLevel(%q) = %q, %v", l, got, err)
		}
	}
	for _, bad := range []string{"", "HIGH", " High", "Critical"} {
		if _, err := schema.ParseRiskLevel(bad); !errors.Is(err, schema.ErrInvalidEnum) {
			t.Errorf("ParseRiskLevel(%q) = %v, want ErrInvalidEnum", bad, err)
		}
	}
}

func TestParseCategory(t *testing.T) {
	for _, c := range schema.Categories {
		if _, err := schema.ParseCategory(string(c)); err != nil {
			t.Errorf("ParseCategory(%q): %v", c, err)
		}
	}
	if _, err := schema.ParseCategory("hse"); !errors.Is(err, schema.ErrInvalidEnum) {
		t.Errorf("ParseCategory(\"hse\") = %v, want ErrInvalidEnum", err)
	}
}

func TestValidationError_Received(t *testing.T) {
	cases := []struct {
		err  *schema.ValidationError
		want string
	}{
		{&schema.ValidationError{Path: "overallRisk", Value: "Severe", Reason: schema.ErrInvalidEnum}, `"Severe"`},
		{&schema.ValidationError{Path: "scope", Value: []any{}, Reason: schema.ErrTypeMismatch}, "array"},
		{&schema.ValidationError{Path: "scope", Reason: schema.ErrMissingField}, ""},
	}
	for _, c := range cases {
		if got := c.err.Received(); got != c.want {
			t.Errorf("%s: Received() = %q, want %q", c.err.Path, got, c.want)
		}
	}
}

func TestValidationError_Message(t *testing.T) {
	err := &schema.ValidationError{Path: "riskMatrix[2].riskLevel", Value: "Severe", Reason: schema.ErrInvalidEnum}
	want := `schema: riskMatrix[2].riskLevel: value outside closed set (got "Severe")`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	missing := &schema.ValidationError{Path: "compliance", Reason: schema.ErrMissingField}
	if missing.Error() != "schema: compliance: missing required field" {
		t.Errorf("Error() = %q", missing.Error())
	}
}

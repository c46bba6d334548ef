package llm

import (
	"strings"

	"github.com/dshills/contractengine/internal/mdparse"
	"github.com/dshills/contractengine/internal/profile"
	"github.com/dshills/contractengine/internal/schema"
)

// Defaults substituted for absent prompt inputs.
const (
	DefaultPartyRole   = "unspecified"
	DefaultDealContext = "No additional context provided."
)

// JSONTemplate is the literal template embedded in every user instruction.
// Its keys and nesting are the wire contract with the model.
const JSONTemplate = `{
  "overallRisk": "High | Medium | Low | Unknown",
  "keyCommercials": {"value": "", "duration": "", "contractType": "", "pricingModel": "", "renewalTerms": ""},
  "executiveSummary": ["string"],
  "riskMatrix": [{"category": "Liability|HSE|Payment|Termination|Legal", "riskLevel": "High|Medium|Low|Unknown", "description": "", "mitigation": ""}],
  "scope": {"pricingModel": "", "paymentTerms": "", "deliverables": ["string"]},
  "compliance": {"summary": "", "overallComplianceRisk": "High|Medium|Low|Unknown", "sanctionsFlags": ["string"], "adverseMedia": ["string"], "financialSignals": ["string"]},
  "detailedAnalysis": "Markdown with required headings"
}`

const (
	contractBegin = "<<<CONTRACT TEXT BEGIN>>>"
	contractEnd   = "<<<CONTRACT TEXT END>>>"
)

const baseSystemPrompt = `You are Contract Engine, a contract analysis system.

You extract key commercials, scope of work, a risk matrix (Liability, HSE, Payment, Termination, Legal), compliance signals, an executive summary in BLUF style and a structured deep-dive.

Rules:
- Never mention any consulting brand.
- Never claim to be a law firm or to give legal advice.
- Vendor intelligence covers public-facing signals only, never personal data.
- Keep output concise and professional.
- Produce a complete risk matrix with one row for each of the five categories.
- Output ONLY a single JSON object matching the template you are given. No prose, no markdown fences, no text outside the JSON.`

const repairSystemPrompt = `You repair malformed JSON. Return the same content as a single valid JSON object that matches the template you are given. Do not add commentary, markdown fences or any text outside the JSON. Do not invent facts that are not present in the input.`

// Prompt is the pair of instructions sent to the completion endpoint.
type Prompt struct {
	System string
	User   string
}

// BuildPrompt builds the system and user instructions for one analysis. It
// performs no I/O and returns byte-identical output for identical inputs.
// contractText is embedded verbatim.
func BuildPrompt(prof profile.Profile, contractText, partyRole, dealContext string) Prompt {
	return Prompt{
		System: buildSystemPrompt(prof),
		User:   buildUserPrompt(contractText, partyRole, dealContext),
	}
}

func buildSystemPrompt(prof profile.Profile) string {
	var sb strings.Builder
	sb.WriteString(baseSystemPrompt)
	if prof.SystemPromptAddendum != "" {
		sb.WriteString("\n\n")
		sb.WriteString(prof.SystemPromptAddendum)
	}
	return sb.String()
}

func buildUserPrompt(contractText, partyRole, dealContext string) string {
	if strings.TrimSpace(partyRole) == "" {
		partyRole = DefaultPartyRole
	}
	if strings.TrimSpace(dealContext) == "" {
		dealContext = DefaultDealContext
	}

	var sb strings.Builder
	sb.WriteString("Analyze the following contract.\n\n")
	sb.WriteString("ROLE: ")
	sb.WriteString(partyRole)
	sb.WriteString("\nADDITIONAL CONTEXT: ")
	sb.WriteString(dealContext)
	sb.WriteString("\n\nReturn a JSON object with EXACTLY these fields:\n\n")
	sb.WriteString(JSONTemplate)
	sb.WriteString("\n\n")
	writeHeadingRules(&sb)
	sb.WriteString("\nCONTRACT TEXT:\n")
	sb.WriteString(contractBegin)
	sb.WriteString("\n")
	sb.WriteString(contractText)
	sb.WriteString("\n")
	sb.WriteString(contractEnd)
	sb.WriteString("\n")
	return sb.String()
}

func writeHeadingRules(sb *strings.Builder) {
	sb.WriteString("detailedAnalysis must be Markdown using these headings, in this order:\n")
	for _, h := range schema.RequiredHeadings {
		sb.WriteString("## ")
		sb.WriteString(h)
		sb.WriteString("\n")
	}
}

// BuildRepairPrompt builds the instructions for the single repair call. The
// malformed text is embedded verbatim inside a fence longer than any
// backtick run it contains.
func BuildRepairPrompt(malformed string) Prompt {
	fence := mdparse.Fence(malformed)

	var sb strings.Builder
	sb.WriteString("The following text was supposed to be a JSON object but could not be parsed.\n")
	sb.WriteString("Repair it so it is valid JSON matching this template:\n\n")
	sb.WriteString(JSONTemplate)
	sb.WriteString("\n\nMalformed text:\n")
	sb.WriteString(fence)
	sb.WriteString("\n")
	sb.WriteString(malformed)
	sb.WriteString("\n")
	sb.WriteString(fence)
	sb.WriteString("\n")
	return Prompt{System: repairSystemPrompt, User: sb.String()}
}

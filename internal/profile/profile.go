// Package profile defines sector profiles that modulate the analysis prompt.
// Each profile provides a SystemPromptAddendum that is appended to the system
// instruction sent to the completion endpoint.
package profile

import (
	"fmt"
	"sort"
	"strings"
)

// Default is the profile used when none is configured.
const Default = "oil-gas"

// Profile describes a sector-specific analysis emphasis.
type Profile struct {
	Name                 string
	Description          string
	Edition              string // shown in report titles
	SystemPromptAddendum string
}

// builtins is the registry of built-in profiles keyed by name.
var builtins = map[string]Profile{
	"oil-gas": {
		Name:        "oil-gas",
		Description: "Upstream and midstream Oil & Gas service and supply contracts.",
		Edition:     "Oil & Gas Edition",
		SystemPromptAddendum: "Sector: Oil & Gas. Weigh knock-for-knock indemnities, pollution and " +
			"well-control liability, consequential-loss exclusions, HSE obligations, day-rate and " +
			"standby economics, and local-content requirements. Treat uncapped pollution liability " +
			"and missing consequential-loss exclusions as High risk.",
	},
	"general": {
		Name:        "general",
		Description: "Sector-neutral commercial contracts.",
		Edition:     "General Edition",
		SystemPromptAddendum: "Sector: general commercial. Apply standard commercial risk weighting. " +
			"When a clause is ambiguous, state the ambiguity rather than guessing its effect.",
	},
	"construction": {
		Name:        "construction",
		Description: "EPC, construction and installation contracts.",
		Edition:     "Construction Edition",
		SystemPromptAddendum: "Sector: construction and EPC. Weigh delay liquidated damages, " +
			"performance guarantees, variation and change-order mechanisms, retention, defects " +
			"liability periods and site-condition risk allocation.",
	},
	"services": {
		Name:        "services",
		Description: "Professional, IT and managed-services agreements.",
		Edition:     "Services Edition",
		SystemPromptAddendum: "Sector: professional and managed services. Weigh service levels and " +
			"service credits, data protection, intellectual property ownership, key-personnel " +
			"commitments and exit or transition assistance.",
	},
}

// Names returns the built-in profile names in sorted order.
func Names() []string {
	names := make([]string, 0, len(builtins))
	for n := range builtins {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Load returns the named built-in profile or an error if the name is unknown.
func Load(name string) (Profile, error) {
	p, ok := builtins[name]
	if !ok {
		return Profile{}, fmt.Errorf("profile: unknown profile %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return p, nil
}

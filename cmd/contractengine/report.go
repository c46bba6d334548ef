package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/contractengine/internal/profile"
	"github.com/dshills/contractengine/internal/render"
	"github.com/dshills/contractengine/internal/riskmatrix"
	"github.com/dshills/contractengine/internal/schema"
)

type reportFlags struct {
	in          string
	out         string
	role        string
	dealContext string
	profileName string
}

func newReportCmd() *cobra.Command {
	f := &reportFlags{}
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render a saved JSON analysis as a Markdown report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			md, err := runReport(f)
			if err != nil {
				return err
			}
			return writeOutput(f.out, cmd.OutOrStdout(), []byte(md))
		},
	}
	cmd.Flags().StringVarP(&f.in, "in", "i", "", "analysis JSON produced by analyze --format json")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "write the report to this file instead of stdout")
	cmd.Flags().StringVar(&f.role, "role", "", "perspective shown in the report header")
	cmd.Flags().StringVar(&f.dealContext, "context", "", "deal context shown in the report header")
	cmd.Flags().StringVar(&f.profileName, "profile", profile.Default, "profile whose edition names the report")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}

// runReport re-validates the saved analysis through the materializer, so a
// hand-edited file with an invalid enum is rejected the same way a model
// reply would be.
func runReport(f *reportFlags) (string, error) {
	prof, err := profile.Load(f.profileName)
	if err != nil {
		return "", withCode(exitCodeBadInput, err)
	}
	b, err := os.ReadFile(f.in)
	if err != nil {
		return "", withCode(exitCodeBadInput, fmt.Errorf("read analysis: %w", err))
	}
	var data map[string]any
	if err := json.Unmarshal(b, &data); err != nil || data == nil {
		return "", withCode(exitCodeBadInput, fmt.Errorf("parse analysis %s: not a JSON object", f.in))
	}
	result, err := schema.Materialize(data)
	if err != nil {
		return "", withCode(exitCodeValidation, err)
	}
	return render.RenderMarkdown(result, render.Meta{
		Edition:     prof.Edition,
		Role:        f.role,
		DealContext: f.dealContext,
		Findings:    riskmatrix.Audit(result),
	}), nil
}

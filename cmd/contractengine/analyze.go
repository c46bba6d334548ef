package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/contractengine/internal/config"
	"github.com/dshills/contractengine/internal/extract"
	"github.com/dshills/contractengine/internal/llm"
	"github.com/dshills/contractengine/internal/render"
)

// analyzeFlags holds the parsed flags for the analyze subcommand.
type analyzeFlags struct {
	global      *globalFlags
	file        string
	text        string
	role        string
	dealContext string
	format      string
	out         string
	debug       bool
	provider    string
	model       string
	profileName string
	licenseKey  string

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func newAnalyzeCmd(g *globalFlags) *cobra.Command {
	f := &analyzeFlags{global: g}
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze one contract and print the result",
		Long: `Analyze reads contract text from --file (.txt, .docx or .pdf), --text, or
standard input, sends it to the configured completion endpoint and prints the
structured risk analysis as JSON or a Markdown report.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f.stdin = cmd.InOrStdin()
			f.stdout = cmd.OutOrStdout()
			f.stderr = cmd.ErrOrStderr()
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runAnalyze(ctx, f)
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.file, "file", "f", "", "contract file (.txt, .docx, .pdf)")
	fl.StringVar(&f.text, "text", "", "contract text")
	fl.StringVar(&f.role, "role", "", `your side of the deal, e.g. "Buyer"`)
	fl.StringVar(&f.dealContext, "context", "", "additional deal context")
	fl.StringVar(&f.format, "format", "json", "output format: json or markdown")
	fl.StringVarP(&f.out, "out", "o", "", "write output to this file instead of stdout")
	fl.BoolVar(&f.debug, "debug", false, "log prompts and raw completions to stderr")
	fl.StringVar(&f.provider, "provider", "", "override llm.provider (openai, anthropic, google)")
	fl.StringVar(&f.model, "model", "", "override llm.model")
	fl.StringVar(&f.profileName, "profile", "", "override analysis.profile")
	fl.StringVar(&f.licenseKey, "license-key", os.Getenv("CONTRACTENGINE_LICENSE_KEY"), "license key (required unless license.mode is off)")
	cmd.MarkFlagsMutuallyExclusive("file", "text")
	return cmd
}

func runAnalyze(ctx context.Context, f *analyzeFlags) error {
	if f.format != "json" && f.format != "markdown" {
		return withCode(exitCodeBadInput, fmt.Errorf("unknown --format %q (want json or markdown)", f.format))
	}

	cfg, err := loadConfig(f.global, func(c *config.Config) {
		if f.provider != "" {
			c.LLM.Provider = f.provider
		}
		if f.model != "" {
			c.LLM.Model = f.model
		}
		if f.profileName != "" {
			c.Analysis.Profile = f.profileName
		}
		if f.debug {
			c.Log.Level = "debug"
		}
	})
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log, f.stderr)

	if err := checkLicense(ctx, cfg, f.licenseKey); err != nil {
		return err
	}

	text, err := readContract(f)
	if err != nil {
		return withCode(exitCodeBadInput, err)
	}

	engine, prof, err := buildEngine(cfg, logger, nil)
	if err != nil {
		return err
	}

	a, err := engine.Run(ctx, llm.Request{
		ContractText: text,
		PartyRole:    f.role,
		DealContext:  f.dealContext,
	})
	if err != nil {
		return analysisExit(err)
	}

	var out []byte
	if f.format == "markdown" {
		out = []byte(render.RenderMarkdown(a.Result, render.Meta{
			Edition:     prof.Edition,
			Role:        f.role,
			DealContext: f.dealContext,
			Findings:    a.Findings,
		}))
	} else if out, err = render.RenderJSON(a.Result); err != nil {
		return err
	}
	return writeOutput(f.out, f.stdout, out)
}

func readContract(f *analyzeFlags) (string, error) {
	switch {
	case f.file != "":
		return extract.File(f.file)
	case f.text != "":
		return f.text, nil
	case f.stdin != nil:
		b, err := io.ReadAll(f.stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	default:
		return "", errors.New("no contract given: use --file, --text or standard input")
	}
}

func writeOutput(path string, stdout io.Writer, b []byte) error {
	if len(b) == 0 || b[len(b)-1] != '\n' {
		b = append(b, '\n')
	}
	if path == "" {
		_, err := stdout.Write(b)
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

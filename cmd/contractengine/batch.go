package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/contractengine/internal/corpus"
	"github.com/dshills/contractengine/internal/extract"
	"github.com/dshills/contractengine/internal/llm"
	"github.com/dshills/contractengine/internal/profile"
	"github.com/dshills/contractengine/internal/render"
)

type batchFlags struct {
	global      *globalFlags
	root        string
	outDir      string
	format      string
	role        string
	dealContext string
	concurrency int
	ignore      []string
	dryRun      bool
	licenseKey  string

	stdout io.Writer
	stderr io.Writer
}

// batchResult is the outcome for one document.
type batchResult struct {
	doc      corpus.Document
	output   string
	outcome  string
	err      error
	duration time.Duration
}

func newBatchCmd(g *globalFlags) *cobra.Command {
	f := &batchFlags{global: g}
	cmd := &cobra.Command{
		Use:   "batch DIR",
		Short: "Analyze every contract document under a directory",
		Long: `Batch walks DIR for .txt, .md, .docx and .pdf files, analyzes each one and
writes one result per document under --out-dir, mirroring DIR's layout.
A failed document does not stop the others.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f.root = args[0]
			f.stdout = cmd.OutOrStdout()
			f.stderr = cmd.ErrOrStderr()
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runBatch(ctx, f)
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.outDir, "out-dir", "o", "analyses", "directory for results")
	fl.StringVar(&f.format, "format", "json", "output format: json or markdown")
	fl.StringVar(&f.role, "role", "", "your side of every deal in the batch")
	fl.StringVar(&f.dealContext, "context", "", "additional context applied to every document")
	fl.IntVar(&f.concurrency, "concurrency", 4, "analyses in flight at once")
	fl.StringSliceVar(&f.ignore, "ignore", nil, "directory names to skip")
	fl.BoolVar(&f.dryRun, "dry-run", false, "list the documents that would be analyzed and exit")
	fl.StringVar(&f.licenseKey, "license-key", os.Getenv("CONTRACTENGINE_LICENSE_KEY"), "license key (required unless license.mode is off)")
	return cmd
}

func runBatch(ctx context.Context, f *batchFlags) error {
	if f.format != "json" && f.format != "markdown" {
		return withCode(exitCodeBadInput, fmt.Errorf("unknown --format %q (want json or markdown)", f.format))
	}
	if f.concurrency < 1 {
		return withCode(exitCodeBadInput, errors.New("--concurrency must be at least 1"))
	}

	idx, err := corpus.Build(f.root, f.ignore)
	if err != nil {
		return withCode(exitCodeBadInput, err)
	}
	if f.dryRun {
		_, err := io.WriteString(f.stdout, idx.Summary())
		return err
	}
	if len(idx.Documents) == 0 {
		return withCode(exitCodeBadInput, fmt.Errorf("no contract documents found under %s", f.root))
	}

	cfg, err := loadConfig(f.global, nil)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log, f.stderr)

	if err := checkLicense(ctx, cfg, f.licenseKey); err != nil {
		return err
	}
	engine, prof, err := buildEngine(cfg, logger, nil)
	if err != nil {
		return err
	}

	results := make([]batchResult, len(idx.Documents))
	var g errgroup.Group
	g.SetLimit(f.concurrency)
	for i, doc := range idx.Documents {
		g.Go(func() error {
			results[i] = analyzeDocument(ctx, engine, prof, idx, doc, f)
			r := results[i]
			if r.err != nil {
				logger.Warn("batch document failed", "path", doc.Path, "outcome", r.outcome, "error", r.err)
			} else {
				logger.Info("batch document analyzed", "path", doc.Path, "output", r.output, "duration", r.duration)
			}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.err != nil {
			failed++
			fmt.Fprintf(f.stdout, "FAIL  %s  %s: %v\n", r.doc.Path, r.outcome, r.err)
			continue
		}
		fmt.Fprintf(f.stdout, "ok    %s  -> %s\n", r.doc.Path, r.output)
	}
	fmt.Fprintf(f.stdout, "%d analyzed, %d failed, %d skipped\n", len(results)-failed, failed, len(idx.Skipped))

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if failed > 0 {
		return withCode(exitCodeError, fmt.Errorf("%d of %d documents failed", failed, len(results)))
	}
	return nil
}

func analyzeDocument(ctx context.Context, engine *llm.Engine, prof profile.Profile, idx corpus.Index, doc corpus.Document, f *batchFlags) batchResult {
	start := time.Now()
	res := batchResult{doc: doc}
	fail := func(outcome string, err error) batchResult {
		res.outcome, res.err, res.duration = outcome, err, time.Since(start)
		return res
	}

	text, err := extract.File(idx.Abs(doc))
	if err != nil {
		return fail("extract_error", err)
	}
	a, err := engine.Run(ctx, llm.Request{ContractText: text, PartyRole: f.role, DealContext: f.dealContext})
	if err != nil {
		return fail(llm.Outcome(err), err)
	}

	var out []byte
	ext := ".json"
	if f.format == "markdown" {
		ext = ".md"
		out = []byte(render.RenderMarkdown(a.Result, render.Meta{
			Edition:     prof.Edition,
			Role:        f.role,
			DealContext: f.dealContext,
			Findings:    a.Findings,
		}))
	} else if out, err = render.RenderJSON(a.Result); err != nil {
		return fail("render_error", err)
	}

	// msa.pdf becomes msa.pdf.json so msa.docx cannot collide with it.
	target := filepath.Join(f.outDir, filepath.FromSlash(doc.Path+ext))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fail("write_error", err)
	}
	if err := writeOutput(target, nil, out); err != nil {
		return fail("write_error", err)
	}
	res.output = path.Clean(filepath.ToSlash(target))
	res.outcome = llm.Outcome(nil)
	res.duration = time.Since(start)
	return res
}

// Package llm handles completion-endpoint communication, prompt
// construction, the tiered decode-and-repair pipeline and materialization of
// the typed analysis result.
package llm

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/dshills/contractengine/internal/observe"
	"github.com/dshills/contractengine/internal/profile"
	"github.com/dshills/contractengine/internal/riskmatrix"
	"github.com/dshills/contractengine/internal/schema"
)

// Options configures an Engine.
type Options struct {
	Model    string          // reported in events only; the provider owns the model
	Profile  profile.Profile // zero value selects profile.Default
	Timeout  time.Duration   // per completion call; 0 means the caller's context only
	Observer observe.Observer
	Logger   *slog.Logger
}

// Request is one contract analysis.
type Request struct {
	ContractText string
	PartyRole    string // "unspecified" when empty
	DealContext  string // "No additional context provided." when empty
}

// Analysis is a materialized result plus diagnostics about how it was
// obtained.
type Analysis struct {
	Result   *schema.AnalysisResult
	Trace    Trace
	Findings []riskmatrix.Finding
}

// Engine runs analyses against one provider. It holds no per-request state
// and is safe for concurrent use.
type Engine struct {
	profile  profile.Profile
	model    string
	invoker  *Invoker
	decoder  *Decoder
	observer observe.Observer
	logger   *slog.Logger
}

// NewEngine returns an Engine that sends completions to p.
func NewEngine(p Provider, opts Options) *Engine {
	obs := opts.Observer
	if obs == nil {
		obs = observe.NoOp{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	prof := opts.Profile
	if prof.Name == "" {
		prof, _ = profile.Load(profile.Default)
	}
	inv := NewInvoker(p, opts.Timeout, obs, logger)
	return &Engine{
		profile:  prof,
		model:    opts.Model,
		invoker:  inv,
		decoder:  NewDecoder(inv, obs),
		observer: obs,
		logger:   logger,
	}
}

// Profile returns the profile the engine builds prompts with.
func (e *Engine) Profile() profile.Profile { return e.profile }

// Analyze builds the prompt, makes the completion call, decodes the reply
// (with at most one repair call) and materializes the typed result. Errors
// are *TransportError, *DecodeError or *schema.ValidationError, or
// ErrEmptyContract before any network call.
func (e *Engine) Analyze(ctx context.Context, req Request) (*schema.AnalysisResult, error) {
	a, err := e.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	return a.Result, nil
}

// Run is Analyze plus the decode trace and soft-expectation findings.
func (e *Engine) Run(ctx context.Context, req Request) (*Analysis, error) {
	if strings.TrimSpace(req.ContractText) == "" {
		return nil, ErrEmptyContract
	}
	start := time.Now()
	e.emit(ctx, observe.EventAnalysisStart, observe.LevelInfo, map[string]any{
		"profile":     e.profile.Name,
		"model":       e.model,
		"party_role":  req.PartyRole,
		"input_bytes": len(req.ContractText),
	})

	a, err := e.run(ctx, req)

	data := map[string]any{
		observe.KeyOutcome:  Outcome(err),
		observe.KeyDuration: time.Since(start),
	}
	if err != nil {
		data[observe.KeyError] = err.Error()
		if a != nil {
			data["repaired"] = a.Trace.Repaired
		}
		e.emit(ctx, observe.EventAnalysisFailed, observe.LevelError, data)
		return nil, err
	}
	data["repaired"] = a.Trace.Repaired
	data["findings"] = len(a.Findings)
	e.emit(ctx, observe.EventAnalysisComplete, observe.LevelInfo, data)
	return a, nil
}

func (e *Engine) run(ctx context.Context, req Request) (*Analysis, error) {
	prompt := BuildPrompt(e.profile, req.ContractText, req.PartyRole, req.DealContext)

	raw, err := e.invoker.Invoke(ctx, OpAnalyze, prompt)
	if err != nil {
		return nil, err
	}

	a := &Analysis{}
	m, trace, err := e.decoder.Decode(ctx, raw)
	a.Trace = trace
	e.logger.DebugContext(ctx, "decode trace", "final", trace.Final, "repaired", trace.Repaired, "steps", len(trace.Steps))
	if err != nil {
		return a, err
	}

	result, err := schema.Materialize(m)
	if err != nil {
		return a, err
	}
	a.Result = result

	a.Findings = riskmatrix.Audit(result)
	for _, f := range a.Findings {
		e.emit(ctx, observe.EventAuditFinding, observe.LevelWarning, map[string]any{
			"code":    f.Code,
			"message": f.Message,
		})
	}
	return a, nil
}

func (e *Engine) emit(ctx context.Context, t observe.EventType, level observe.Level, data map[string]any) {
	e.observer.OnEvent(ctx, observe.Event{
		Type:      t,
		Level:     level,
		Timestamp: time.Now(),
		Source:    "llm.engine",
		Data:      data,
	})
}

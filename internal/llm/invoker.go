package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/dshills/contractengine/internal/observe"
)

// Fixed completion parameters. The low temperature keeps the model close to
// the template; the token budget covers the eight-section narrative plus
// every structured field.
const (
	Temperature = 0.2
	MaxTokens   = 8192
)

// Completion call operations, used in errors, events and metrics.
const (
	OpAnalyze = "analyze"
	OpRepair  = "repair"
)

// Invoker issues single completion calls. It never retries; any provider
// failure comes back as a *TransportError.
type Invoker struct {
	provider Provider
	timeout  time.Duration
	observer observe.Observer
	logger   *slog.Logger
}

// NewInvoker returns an Invoker bound to p. A zero timeout leaves the
// caller's context in charge; nil observer and logger are replaced with
// no-op and default implementations.
func NewInvoker(p Provider, timeout time.Duration, obs observe.Observer, logger *slog.Logger) *Invoker {
	if obs == nil {
		obs = observe.NoOp{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker{provider: p, timeout: timeout, observer: obs, logger: logger}
}

// Invoke sends prompt to the completion endpoint with JSON mode requested
// and returns the raw reply.
func (inv *Invoker) Invoke(ctx context.Context, op string, prompt Prompt) (string, error) {
	callCtx := ctx
	if inv.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, inv.timeout)
		defer cancel()
	}

	inv.logger.DebugContext(ctx, "completion request", "op", op, "system", prompt.System, "user", prompt.User)

	start := time.Now()
	raw, err := inv.provider.Complete(callCtx, CompletionRequest{
		System:      prompt.System,
		User:        prompt.User,
		MaxTokens:   MaxTokens,
		Temperature: Temperature,
		JSONMode:    true,
	})
	elapsed := time.Since(start)

	data := map[string]any{
		observe.KeyOp:       op,
		observe.KeyOK:       err == nil,
		observe.KeyDuration: elapsed,
	}
	level := observe.LevelInfo
	if err != nil {
		data[observe.KeyError] = err.Error()
		level = observe.LevelError
	}
	inv.observer.OnEvent(ctx, observe.Event{
		Type:      observe.EventCompletion,
		Level:     level,
		Timestamp: start,
		Source:    "llm.invoker",
		Data:      data,
	})

	if err != nil {
		return "", classify(callCtx, op, err)
	}
	inv.logger.DebugContext(ctx, "completion response", "op", op, "raw", raw)
	return raw, nil
}

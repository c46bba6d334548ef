package llm

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/dshills/contractengine/internal/schema"
)

// ErrEmptyContract is returned before any network call when the contract
// text is empty or whitespace only.
var ErrEmptyContract = errors.New("llm: contract text is empty")

// Kind classifies a TransportError for callers that map failures to user
// messages, exit codes or HTTP statuses.
type Kind string

const (
	KindTimeout   Kind = "timeout"
	KindAuth      Kind = "auth"
	KindRateLimit Kind = "rate_limit"
	KindProvider  Kind = "provider"
	KindCanceled  Kind = "canceled"
)

// TransportError is a failure of a completion call: network, auth, rate
// limit, provider-side error or timeout. It is never retried here.
type TransportError struct {
	Op   string // "analyze" or "repair"
	Kind Kind
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("llm: %s call failed (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError is returned when every decode tier has been exhausted. Raw is
// the last text attempted; Repaired reports whether that text came from the
// repair call.
type DecodeError struct {
	Reason   string
	Raw      string
	Repaired bool
}

func (e *DecodeError) Error() string {
	if e.Repaired {
		return fmt.Sprintf("llm: response could not be decoded after repair: %s", e.Reason)
	}
	return fmt.Sprintf("llm: response could not be decoded: %s", e.Reason)
}

// StatusError is returned by providers when the endpoint answered with an
// HTTP error status. It lets classify tell auth and rate-limit failures
// apart without importing every SDK's error type.
type StatusError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %v", e.Provider, e.StatusCode, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

// classify wraps a provider error in a TransportError with the best-fitting
// Kind. ctx is the per-call context so deadline expiry is recognised even
// when the SDK reports it as a generic network error.
func classify(ctx context.Context, op string, err error) *TransportError {
	te := &TransportError{Op: op, Kind: KindProvider, Err: err}

	var se *StatusError
	var ne net.Error
	switch {
	case errors.Is(err, context.Canceled), errors.Is(ctx.Err(), context.Canceled):
		te.Kind = KindCanceled
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		te.Kind = KindTimeout
	case errors.As(err, &se):
		switch {
		case se.StatusCode == 401 || se.StatusCode == 403:
			te.Kind = KindAuth
		case se.StatusCode == 429:
			te.Kind = KindRateLimit
		case se.StatusCode == 408 || se.StatusCode == 504:
			te.Kind = KindTimeout
		}
	case errors.As(err, &ne) && ne.Timeout():
		te.Kind = KindTimeout
	}
	return te
}

// Outcome returns a short label for err used in logs, metrics and API error
// bodies: "ok", "canceled", "transport_error", "decode_error",
// "validation_error", "empty_contract" or "error".
func Outcome(err error) string {
	var te *TransportError
	var de *DecodeError
	var ve *schema.ValidationError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrEmptyContract):
		return "empty_contract"
	case errors.As(err, &te):
		if te.Kind == KindCanceled {
			return "canceled"
		}
		return "transport_error"
	case errors.As(err, &de):
		return "decode_error"
	case errors.As(err, &ve):
		return "validation_error"
	default:
		return "error"
	}
}

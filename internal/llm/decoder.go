package llm

import (
	"context"
	"time"

	"github.com/dshills/contractengine/internal/observe"
)

// State is a Response Decoder state.
type State string

const (
	StateStrictParse   State = "strict_parse"
	StateTolerantParse State = "tolerant_parse"
	StateRepairCall    State = "repair_call"
	StateDone          State = "done"
	StateFail          State = "fail"
)

// Step records one visited state and whether it succeeded.
type Step struct {
	State State  `json:"state"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Trace is the path a response took through the decoder.
type Trace struct {
	Steps    []Step `json:"steps"`
	Repaired bool   `json:"repaired"`
	Final    State  `json:"final"`
}

// Decoder turns a completion reply into a generic JSON object:
//
//	StrictParse -> TolerantParse -> RepairCall -> StrictParse -> FAIL
//
// Each state moves on only when it fails. RepairCall is reachable only from
// TolerantParse on the original text, and StrictParse on repaired text leads
// to FAIL rather than TolerantParse, so at most one repair call is made.
type Decoder struct {
	invoker  *Invoker
	observer observe.Observer
}

// NewDecoder returns a Decoder that uses inv for the repair call.
func NewDecoder(inv *Invoker, obs observe.Observer) *Decoder {
	if obs == nil {
		obs = observe.NoOp{}
	}
	return &Decoder{invoker: inv, observer: obs}
}

// Decode runs the state machine over raw. A failed repair call returns its
// *TransportError; exhausting every tier returns a *DecodeError carrying the
// last text attempted.
func (d *Decoder) Decode(ctx context.Context, raw string) (map[string]any, Trace, error) {
	var (
		tr      Trace
		text    = raw
		lastErr error
		state   = StateStrictParse
	)
	for {
		switch state {
		case StateStrictParse:
			m, err := strictParse(text)
			d.record(ctx, &tr, state, err)
			if err == nil {
				tr.Final = StateDone
				return m, tr, nil
			}
			lastErr = err
			if tr.Repaired {
				state = StateFail
			} else {
				state = StateTolerantParse
			}

		case StateTolerantParse:
			m, err := tolerantParse(text)
			d.record(ctx, &tr, state, err)
			if err == nil {
				tr.Final = StateDone
				return m, tr, nil
			}
			lastErr = err
			state = StateRepairCall

		case StateRepairCall:
			repaired, err := d.invoker.Invoke(ctx, OpRepair, BuildRepairPrompt(raw))
			d.record(ctx, &tr, state, err)
			if err != nil {
				tr.Final = StateFail
				return nil, tr, err
			}
			tr.Repaired = true
			text = repaired
			state = StateStrictParse

		default:
			tr.Final = StateFail
			return nil, tr, &DecodeError{Reason: lastErr.Error(), Raw: text, Repaired: tr.Repaired}
		}
	}
}

func (d *Decoder) record(ctx context.Context, tr *Trace, state State, err error) {
	step := Step{State: state, OK: err == nil}
	level := observe.LevelVerbose
	data := map[string]any{
		observe.KeyState: string(state),
		observe.KeyOK:    step.OK,
	}
	if err != nil {
		step.Error = err.Error()
		data[observe.KeyError] = step.Error
		level = observe.LevelWarning
	}
	tr.Steps = append(tr.Steps, step)
	d.observer.OnEvent(ctx, observe.Event{
		Type:      observe.EventDecodeState,
		Level:     level,
		Timestamp: time.Now(),
		Source:    "llm.decoder",
		Data:      data,
	})
}

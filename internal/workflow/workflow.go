// Package workflow is the graph executor shared by the detection and
// planning engines. A workflow is an immutable directed graph: each phase
// owns one Node and a transition table from typed outcomes to the next
// phase. Nodes never pick successors by name; they return an Outcome and the
// graph decides where it leads, so an invalid route is caught when the graph
// is built or fails loudly as a logic error, never as a silent lookup miss.
package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/disaster-response-coordinator/internal/domain"
)

// Outcome is the typed routing result of one node execution.
type Outcome int

// Outcomes shared by both engines. Each graph maps the subset it uses.
const (
	// OutcomeProceed advances along the single expected edge.
	OutcomeProceed Outcome = iota + 1
	// OutcomeWait routes back to the waiting/idle phase.
	OutcomeWait
	// OutcomeRetry re-enters the same phase (bounded by the node).
	OutcomeRetry
	// OutcomeSignal / OutcomeNoSignal report whether polling found data.
	OutcomeSignal
	OutcomeNoSignal
	// OutcomeThreat / OutcomeNoThreat report heuristic or model verdicts.
	OutcomeThreat
	OutcomeNoThreat
	// OutcomeNeedsConfirmation requests an external search confirmation.
	OutcomeNeedsConfirmation
	// OutcomeConfirmed / OutcomeRejected report the confirmation verdict.
	OutcomeConfirmed
	OutcomeRejected
	// OutcomeEscalate / OutcomeModerate split on the escalation decision.
	OutcomeEscalate
	OutcomeModerate
	// OutcomeFail routes to the error-handling phase.
	OutcomeFail
)

var outcomeNames = map[Outcome]string{
	OutcomeProceed:           "proceed",
	OutcomeWait:              "wait",
	OutcomeRetry:             "retry",
	OutcomeSignal:            "signal",
	OutcomeNoSignal:          "no_signal",
	OutcomeThreat:            "threat",
	OutcomeNoThreat:          "no_threat",
	OutcomeNeedsConfirmation: "needs_confirmation",
	OutcomeConfirmed:         "confirmed",
	OutcomeRejected:          "rejected",
	OutcomeEscalate:          "escalate",
	OutcomeModerate:          "moderate",
	OutcomeFail:              "fail",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Node executes one workflow step. It reads the current run state and
// returns a partial update plus a routing outcome. Transient and data
// failures must be handled inside the node and encoded into the update and
// outcome; a returned error means a configuration or logic failure and
// aborts the run.
type Node interface {
	Run(ctx context.Context, state *domain.RunState) (domain.StateUpdate, Outcome, error)
}

// NodeFunc adapts a function to the Node interface.
type NodeFunc func(ctx context.Context, state *domain.RunState) (domain.StateUpdate, Outcome, error)

func (f NodeFunc) Run(ctx context.Context, state *domain.RunState) (domain.StateUpdate, Outcome, error) {
	return f(ctx, state)
}

// Transition binds a phase's node to its outgoing edges.
type Transition struct {
	Node Node
	Next map[Outcome]domain.Phase
}

// Graph is an immutable workflow definition. Build it once with New and
// share it; it holds no per-run state.
type Graph struct {
	start       domain.Phase
	transitions map[domain.Phase]Transition
	terminal    map[domain.Phase]bool
}

// New validates and builds a graph. Every edge target must be a declared
// phase or terminal, so a misrouted outcome is impossible at run time.
func New(start domain.Phase, transitions map[domain.Phase]Transition, terminal ...domain.Phase) (Graph, error) {
	term := make(map[domain.Phase]bool, len(terminal))
	for _, p := range terminal {
		term[p] = true
	}
	if _, ok := transitions[start]; !ok {
		return Graph{}, fmt.Errorf("workflow: start phase %q has no transition", start)
	}
	for phase, t := range transitions {
		if t.Node == nil {
			return Graph{}, fmt.Errorf("workflow: phase %q has no node", phase)
		}
		if len(t.Next) == 0 {
			return Graph{}, fmt.Errorf("workflow: phase %q has no outgoing edges", phase)
		}
		for outcome, next := range t.Next {
			if _, ok := transitions[next]; !ok && !term[next] {
				return Graph{}, fmt.Errorf("workflow: phase %q routes %s to undeclared phase %q", phase, outcome, next)
			}
		}
	}
	return Graph{start: start, transitions: transitions, terminal: term}, nil
}

// Start returns the graph's entry phase.
func (g Graph) Start() domain.Phase {
	return g.start
}

// Terminal reports whether the phase ends a run.
func (g Graph) Terminal(p domain.Phase) bool {
	return g.terminal[p]
}

// Options bound one Run invocation.
type Options struct {
	// MaxSteps guards against routing cycles. Zero means the default bound.
	MaxSteps int
	// PauseAt stops the run when one of these phases is reached, before its
	// node executes. The detection engine pauses each cycle at waiting.
	PauseAt []domain.Phase
	Logger  *slog.Logger
}

const defaultMaxSteps = 50

// Run executes nodes one at a time from the state's current phase until a
// terminal or pause phase is reached, the step bound trips, or the context
// is cancelled. Each node's update is applied before routing, so the state's
// Phase always reflects exactly where the run stopped.
func (g Graph) Run(ctx context.Context, state *domain.RunState, opts Options) error {
	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = defaultMaxSteps
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pause := make(map[domain.Phase]bool, len(opts.PauseAt))
	for _, p := range opts.PauseAt {
		pause[p] = true
	}

	if state.Phase == "" {
		state.Phase = g.start
	}

	for step := 0; step < maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if g.terminal[state.Phase] || pause[state.Phase] {
			return nil
		}

		t, ok := g.transitions[state.Phase]
		if !ok {
			return fmt.Errorf("%w: no transition for phase %q", domain.ErrLogic, state.Phase)
		}

		update, outcome, err := t.Node.Run(ctx, state)
		if err != nil {
			return fmt.Errorf("phase %q: %w", state.Phase, err)
		}

		next, ok := t.Next[outcome]
		if !ok {
			return fmt.Errorf("%w: phase %q produced unmapped outcome %s", domain.ErrLogic, state.Phase, outcome)
		}

		from := state.Phase
		update.Phase = next
		if err := state.Apply(update); err != nil {
			return fmt.Errorf("phase %q: %w", from, err)
		}
		logger.Debug("workflow step", "from", from, "outcome", outcome.String(), "to", next)
	}
	return fmt.Errorf("%w: step bound %d exceeded at phase %q", domain.ErrLogic, maxSteps, state.Phase)
}

package drift

import (
	"fmt"
	"time"
)

// Guardrail implements the spec §4.G decision table against a single
// session's running state. It is not safe for concurrent use; callers
// serialize per session the same way the PM loop serializes ticks.
type Guardrail struct {
	cfg GuardrailConfig
}

// NewGuardrail builds a Guardrail with cfg (use DefaultGuardrailConfig()
// for spec defaults).
func NewGuardrail(cfg GuardrailConfig) *Guardrail {
	return &Guardrail{cfg: cfg}
}

// Decide scores tool against step, classifies the level, and applies the
// guardrail decision table. state is mutated in place: the prediction is
// appended to the ring (capped at 50, oldest dropped), stats incremented,
// and refresh/redirect counters updated per the table.
func (g *Guardrail) Decide(state *SessionState, step PlanStep, tool ToolUse, now time.Time) Decision {
	score, _ := Score(step, tool)
	level := Classify(score, g.cfg)

	pred := Prediction{
		Score:         score,
		Level:         level,
		ToolName:      tool.Name,
		PlanStepIndex: step.Index,
		Timestamp:     now,
	}

	var action Action
	var reason string

	switch level {
	case LevelAligned:
		action = ActionAllow
		reason = "tool call aligns with the active plan step"

	case LevelMonitor:
		if g.cfg.WarnOnMonitor {
			action = ActionWarn
			reason = "tool call only loosely matches the active plan step"
		} else {
			action = ActionAllow
			reason = "monitor-level drift, warnings disabled"
		}

	case LevelDivergent:
		refreshCount := state.Stats.RefreshesPerStep[step.Index]
		switch {
		case g.cfg.AutoRefresh && refreshCount < g.cfg.MaxRefreshesPerStep:
			action = ActionRefresh
			reason = fmt.Sprintf("divergent tool call, refreshing plan-step context (refresh %d of %d)", refreshCount+1, g.cfg.MaxRefreshesPerStep)
			if state.Stats.RefreshesPerStep == nil {
				state.Stats.RefreshesPerStep = map[int]int{}
			}
			state.Stats.RefreshesPerStep[step.Index] = refreshCount + 1
		case g.cfg.BlockOnDivergent:
			action = ActionRedirect
			reason = "divergent tool call, refresh budget exhausted, redirecting"
			state.Stats.Redirects++
		default:
			action = ActionWarn
			reason = "divergent tool call, blocking disabled"
		}
	}

	pred.Reasons = []string{reason}
	appendPrediction(state, pred)

	return Decision{Prediction: pred, Action: action, Reason: reason}
}

func appendPrediction(state *SessionState, pred Prediction) {
	state.Predictions = append(state.Predictions, pred)
	if len(state.Predictions) > maxRingSize {
		state.Predictions = state.Predictions[len(state.Predictions)-maxRingSize:]
	}

	state.Stats.Total++
	switch pred.Level {
	case LevelAligned:
		state.Stats.Aligned++
	case LevelMonitor:
		state.Stats.Monitor++
	case LevelDivergent:
		state.Stats.Divergent++
	}
}

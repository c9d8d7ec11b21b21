package pm

import "fmt"

// ReviewInput is the evidence the PM loop's work-review step gathers for
// one completed task (spec §4.J step 6): plan completeness, drift, a clean
// worktree, and optionally test results. Grounded on the teacher's review
// board concept (plan completeness / drift / worktree / tests) in
// internal/captain, re-expressed as a pure function over gathered evidence
// rather than a SQLite review_board table.
type ReviewInput struct {
	PlanStepsCompleted   int
	PlanStepsTotal       int
	ConsecutiveDivergent int
	WorktreeClean        bool
	TestsRequired        bool
	TestsPassed          *bool // nil: not run
}

// ReviewResult is the work review's verdict.
type ReviewResult struct {
	Approved bool
	Feedback []string
}

// Review evaluates in against the four review gates. All must be green for
// approval; any failing gate contributes a feedback line.
func Review(in ReviewInput) ReviewResult {
	var feedback []string

	if in.PlanStepsTotal == 0 || in.PlanStepsCompleted < in.PlanStepsTotal {
		feedback = append(feedback, fmt.Sprintf("plan incomplete: step %d of %d", in.PlanStepsCompleted, in.PlanStepsTotal))
	}
	if in.ConsecutiveDivergent > 0 {
		feedback = append(feedback, fmt.Sprintf("%d consecutive divergent tool calls detected", in.ConsecutiveDivergent))
	}
	if !in.WorktreeClean {
		feedback = append(feedback, "worktree has uncommitted changes")
	}
	if in.TestsRequired {
		if in.TestsPassed == nil {
			feedback = append(feedback, "tests required but not run")
		} else if !*in.TestsPassed {
			feedback = append(feedback, "tests failing")
		}
	}

	return ReviewResult{Approved: len(feedback) == 0, Feedback: feedback}
}

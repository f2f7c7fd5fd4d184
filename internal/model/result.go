package model

// RunKind classifies a single test-case result within a run.
type RunKind string

const (
	RunKindSample RunKind = "sample"
	RunKindHidden RunKind = "hidden"
	RunKindCustom RunKind = "custom"
)

// RunStatus is the overall outcome of a code-execution request.
type RunStatus string

const (
	RunStatusOK            RunStatus = "OK"
	RunStatusCompileFailed RunStatus = "COMPILE_FAILED"
)

// TestCaseResult is the normalized per-test-case record produced from
// the execution service's heterogeneous response shapes.
type TestCaseResult struct {
	Kind           RunKind `json:"kind"`
	Input          string  `json:"input"`
	ExpectedOutput string  `json:"expected_output"`
	ActualOutput   string  `json:"actual_output"`
	Passed         bool    `json:"passed"`
}

// CodeRunResult is the outcome of one execution request for one
// question. A transport or compiler failure yields
// RunStatusCompileFailed with Error set and no case results; the
// session survives and the run may be retried.
type CodeRunResult struct {
	QuestionID string           `json:"question_id"`
	Status     RunStatus        `json:"status"`
	Error      string           `json:"error,omitempty"`
	Results    []TestCaseResult `json:"test_case_results"`
}

// Tally counts passed and failed cases in the run.
func (r *CodeRunResult) Tally() (passed, failed int) {
	for _, tc := range r.Results {
		if tc.Passed {
			passed++
		} else {
			failed++
		}
	}
	return passed, failed
}

// AllPassed reports whether the run produced at least one result and
// every result passed. This is the coding-question "answered"
// criterion: the last standard run must be fully green, no stricter
// completeness rule is applied to the hidden set.
func (r *CodeRunResult) AllPassed() bool {
	if r.Status != RunStatusOK || len(r.Results) == 0 {
		return false
	}
	for _, tc := range r.Results {
		if !tc.Passed {
			return false
		}
	}
	return true
}

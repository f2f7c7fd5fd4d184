package model

// SessionState enumerates the exam session lifecycle states.
type SessionState string

const (
	SessionNotStarted SessionState = "NOT_STARTED"
	SessionCreating   SessionState = "CREATING"
	SessionInProgress SessionState = "IN_PROGRESS"
	SessionSubmitting SessionState = "SUBMITTING"
	SessionSubmitted  SessionState = "SUBMITTED"
	SessionFailed     SessionState = "FAILED"
)

// QuestionType distinguishes the two question kinds.
type QuestionType string

const (
	QuestionTypeMCQ    QuestionType = "mcq"
	QuestionTypeCoding QuestionType = "coding"
)

// Position identifies one question in the exam: the subject it lives
// in, its kind, and its id.
type Position struct {
	Subject    string       `json:"subject"`
	Type       QuestionType `json:"question_type"`
	QuestionID string       `json:"question_id"`
}

// QuestionStatus is the per-question mutable interaction state.
// SelectedOption is -1 while no option has been chosen.
type QuestionStatus struct {
	Answered       bool `json:"is_answered"`
	Marked         bool `json:"is_marked"`
	SelectedOption int  `json:"selected_option"`
}

// DefaultQuestionStatus is the value reported for a question that has
// never been interacted with.
func DefaultQuestionStatus() QuestionStatus {
	return QuestionStatus{Answered: false, Marked: false, SelectedOption: -1}
}

// StatusKey builds the composite tracking key for a question. MCQ and
// coding ids live in separate namespaces so the same raw id cannot
// collide across kinds.
func StatusKey(t QuestionType, questionID string) string {
	if t == QuestionTypeCoding {
		return "code_" + questionID
	}
	return "mcq_" + questionID
}

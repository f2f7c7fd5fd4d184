package session

import (
	"github.com/prepnest/exam-engine/internal/model"
)

// AnswerTracker holds the per-question interaction state for one
// session: answered/marked flags, the selected MCQ option, and the
// last saved source code per coding question. Entries are created
// lazily on first interaction and never deleted while the session is
// alive; Reset clears everything on teardown.
//
// The tracker is not safe for concurrent use on its own. The session
// controller serializes all access.
type AnswerTracker struct {
	statuses map[string]*model.QuestionStatus
	code     map[string]string
}

// NewAnswerTracker creates an empty tracker.
func NewAnswerTracker() *AnswerTracker {
	return &AnswerTracker{
		statuses: make(map[string]*model.QuestionStatus),
		code:     make(map[string]string),
	}
}

// SetStatus overwrites the full status record for a question.
func (t *AnswerTracker) SetStatus(questionID string, typ model.QuestionType, answered, marked bool, selectedOption int) {
	key := model.StatusKey(typ, questionID)
	t.statuses[key] = &model.QuestionStatus{
		Answered:       answered,
		Marked:         marked,
		SelectedOption: selectedOption,
	}
}

// Status returns the status for a question, defaulting to
// {false, false, -1} when the question was never touched.
func (t *AnswerTracker) Status(questionID string, typ model.QuestionType) model.QuestionStatus {
	if st, ok := t.statuses[model.StatusKey(typ, questionID)]; ok {
		return *st
	}
	return model.DefaultQuestionStatus()
}

// SelectOption records an MCQ answer. Selecting always marks the
// question answered and keeps any existing mark-for-review flag.
func (t *AnswerTracker) SelectOption(questionID string, option int) {
	cur := t.Status(questionID, model.QuestionTypeMCQ)
	t.SetStatus(questionID, model.QuestionTypeMCQ, true, cur.Marked, option)
}

// ToggleMark flips the mark-for-review flag without touching the
// answered flag or the selected option. Returns the new flag value.
func (t *AnswerTracker) ToggleMark(questionID string, typ model.QuestionType) bool {
	cur := t.Status(questionID, typ)
	t.SetStatus(questionID, typ, cur.Answered, !cur.Marked, cur.SelectedOption)
	return !cur.Marked
}

// SetCodingAnswered sets the derived answered flag for a coding
// question. The controller calls this after every standard run; a
// coding question counts as answered only while its most recent
// standard run passed every included test case.
func (t *AnswerTracker) SetCodingAnswered(questionID string, answered bool) {
	cur := t.Status(questionID, model.QuestionTypeCoding)
	t.SetStatus(questionID, model.QuestionTypeCoding, answered, cur.Marked, cur.SelectedOption)
}

// SetCode saves the latest source code for a coding question.
func (t *AnswerTracker) SetCode(questionID, code string) {
	t.code[questionID] = code
}

// Code returns the saved source code for a coding question.
func (t *AnswerTracker) Code(questionID string) (string, bool) {
	code, ok := t.code[questionID]
	return code, ok
}

// Statuses returns a copy of every lazily created status record,
// keyed by composite id.
func (t *AnswerTracker) Statuses() map[string]model.QuestionStatus {
	out := make(map[string]model.QuestionStatus, len(t.statuses))
	for k, v := range t.statuses {
		out[k] = *v
	}
	return out
}

// Reset drops all tracked state. Used on session teardown only.
func (t *AnswerTracker) Reset() {
	t.statuses = make(map[string]*model.QuestionStatus)
	t.code = make(map[string]string)
}

package session

import (
	"context"
	"encoding/json"

	"github.com/prepnest/exam-engine/internal/model"
)

// ExamSource fetches the immutable exam definition when a session is
// created.
type ExamSource interface {
	CreateExam(ctx context.Context, examID, collection string) (*model.Exam, error)
}

// SubmissionSink receives the final submission payload.
type SubmissionSink interface {
	SubmitExam(ctx context.Context, payload SubmissionPayload) (*SubmitOutcome, error)
}

// SubmitOutcome is the scoring response from the submission sink.
type SubmitOutcome struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Scoring json.RawMessage `json:"scoring,omitempty"`
}

// MCQAnswer is one answered multiple-choice question in the
// submission payload. Option is the selected option letter.
type MCQAnswer struct {
	QuestionID string `json:"question_id"`
	Subject    string `json:"subject"`
	Option     string `json:"selected_option"`
}

// CodingAnswer is one attempted coding question: the last saved
// source code plus the pass/fail tally of the most recent standard
// run. A question whose code was saved but never run carries a 0/0
// tally; a question with no saved code is omitted entirely.
type CodingAnswer struct {
	QuestionID string `json:"question_id"`
	Subject    string `json:"subject"`
	SourceCode string `json:"source_code"`
	Passed     int    `json:"passed"`
	Failed     int    `json:"failed"`
}

// SubmissionPayload is the single payload assembled for final
// submission.
type SubmissionPayload struct {
	SessionID     string         `json:"session_id"`
	ExamID        string         `json:"exam_id"`
	StudentID     int            `json:"student_id"`
	MCQAnswers    []MCQAnswer    `json:"mcq_answers"`
	CodingAnswers []CodingAnswer `json:"coding_answers"`
}

// buildPayloadLocked assembles the submission payload from the live
// session. Caller holds the controller lock. Catalog order makes the
// payload deterministic for a given session state.
func (c *Controller) buildPayloadLocked() SubmissionPayload {
	p := SubmissionPayload{
		SessionID: c.id.String(),
		ExamID:    c.examID,
		StudentID: c.studentID,
	}

	for _, e := range c.cat.MCQ {
		st := c.tracker.Status(e.QuestionID, model.QuestionTypeMCQ)
		if !st.Answered || st.SelectedOption < 0 {
			continue
		}
		p.MCQAnswers = append(p.MCQAnswers, MCQAnswer{
			QuestionID: e.QuestionID,
			Subject:    e.Subject,
			Option:     optionLetter(st.SelectedOption),
		})
	}

	for _, e := range c.cat.Coding {
		code, ok := c.tracker.Code(e.QuestionID)
		if !ok {
			continue
		}
		answer := CodingAnswer{
			QuestionID: e.QuestionID,
			Subject:    e.Subject,
			SourceCode: code,
		}
		if res, ran := c.runResults[e.QuestionID]; ran {
			answer.Passed, answer.Failed = res.Tally()
		}
		p.CodingAnswers = append(p.CodingAnswers, answer)
	}

	return p
}

// optionLetter maps a 0-based option index to its letter ("A", "B", ...).
func optionLetter(idx int) string {
	return string(rune('A' + idx))
}

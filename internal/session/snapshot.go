package session

import (
	"encoding/json"
	"time"

	"github.com/prepnest/exam-engine/internal/catalog"
	"github.com/prepnest/exam-engine/internal/model"
)

// Snapshot is a read-only view of the session for the HTTP surface.
// Exam and catalog entries are only present while the session holds
// the exam (Creating has nothing yet, terminal states have been
// cleared).
type Snapshot struct {
	SessionID        string                          `json:"session_id"`
	State            model.SessionState              `json:"state"`
	Error            string                          `json:"error,omitempty"`
	ExamID           string                          `json:"exam_id"`
	ExamName         string                          `json:"exam_name,omitempty"`
	Deadline         *time.Time                      `json:"deadline,omitempty"`
	RemainingSeconds int                             `json:"remaining_seconds"`
	Paused           bool                            `json:"paused"`
	ActiveSubject    string                          `json:"active_subject,omitempty"`
	ActiveType       model.QuestionType              `json:"active_question_type,omitempty"`
	SelectedMCQID    string                          `json:"selected_mcq_id,omitempty"`
	SelectedCodingID string                          `json:"selected_coding_id,omitempty"`
	Statuses         map[string]model.QuestionStatus `json:"answer_statuses"`
	MCQCatalog       []catalog.Entry                 `json:"mcq_catalog,omitempty"`
	CodingCatalog    []catalog.Entry                 `json:"coding_catalog,omitempty"`
	Exam             *model.Exam                     `json:"exam,omitempty"`
	Scoring          json.RawMessage                 `json:"scoring,omitempty"`
}

// Snapshot returns the current session view.
func (c *Controller) Snapshot() *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// State returns the current lifecycle state.
func (c *Controller) State() model.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) snapshotLocked() *Snapshot {
	snap := &Snapshot{
		SessionID: c.id.String(),
		State:     c.state,
		Error:     c.errMsg,
		ExamID:    c.examID,
		Statuses:  c.tracker.Statuses(),
		Scoring:   c.scoring,
	}

	if c.exam != nil {
		snap.ExamName = c.exam.Name
		snap.Exam = c.exam
		deadline := c.anchor.Deadline()
		snap.Deadline = &deadline
		snap.RemainingSeconds = c.anchor.Remaining()
		snap.ActiveSubject = c.activeSubject
		snap.ActiveType = c.activeType
		snap.SelectedMCQID = c.selectedMCQID
		snap.SelectedCodingID = c.selectedCodingID
	}
	if c.cat != nil {
		snap.MCQCatalog = c.cat.MCQ
		snap.CodingCatalog = c.cat.Coding
	}
	if c.ticker != nil {
		snap.Paused = c.ticker.Paused()
	}

	return snap
}

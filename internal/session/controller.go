// Package session owns the exam session aggregate and its state
// machine: NotStarted → Creating → InProgress → Submitting →
// Submitted, with Failed reachable from Creating and Submitting. All
// collaborators read and mutate session state through the
// controller's narrow API; no component holds a private copy.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prepnest/exam-engine/internal/catalog"
	"github.com/prepnest/exam-engine/internal/codexec"
	"github.com/prepnest/exam-engine/internal/model"
	"github.com/prepnest/exam-engine/internal/timesync"
)

// Controller state errors.
var (
	ErrNotInProgress     = errors.New("session is not in progress")
	ErrCreating          = errors.New("session creation already in flight")
	ErrAlreadySubmitting = errors.New("submission already in progress")
	ErrQuestionNotFound  = errors.New("question not found in exam")
	ErrNoCodeSaved       = errors.New("no source code saved for question")
	ErrNoQuestions       = errors.New("exam has no questions")
)

// Deps are the external collaborators a session controller depends
// on. All are interfaces so tests can substitute fakes.
type Deps struct {
	ExamSource ExamSource
	TimeSource timesync.TimeSource
	Runner     codexec.Runner
	Sink       SubmissionSink
}

// Controller is the top-level state machine for one student's exam
// session. A mutex serializes every mutation; the single-flight
// submit guard is set under that lock before any network call, so a
// countdown-driven auto-submit racing a manual submit can never
// produce two sink calls.
type Controller struct {
	mu sync.Mutex

	id         uuid.UUID
	studentID  int
	examID     string
	collection string

	state  model.SessionState
	errMsg string

	exam   *model.Exam
	cat    *catalog.Catalog
	anchor timesync.Anchor
	ticker *timesync.Ticker

	activeType       model.QuestionType
	activeSubject    string
	selectedMCQID    string
	selectedCodingID string

	tracker       *AnswerTracker
	runResults    map[string]*model.CodeRunResult
	customResults map[string]*model.CodeRunResult
	standardSeq   map[string]uint64
	customSeq     map[string]uint64

	submitInFlight bool
	scoring        json.RawMessage

	deps       Deps
	listeners  *listenerSet
	onTeardown func()
	log        zerolog.Logger
}

// NewController creates a session controller in NotStarted. Nothing
// is fetched until EnsureStarted.
func NewController(studentID int, examID, collection string, deps Deps, log zerolog.Logger) *Controller {
	id := uuid.New()
	return &Controller{
		id:            id,
		studentID:     studentID,
		examID:        examID,
		collection:    collection,
		state:         model.SessionNotStarted,
		tracker:       NewAnswerTracker(),
		runResults:    make(map[string]*model.CodeRunResult),
		customResults: make(map[string]*model.CodeRunResult),
		standardSeq:   make(map[string]uint64),
		customSeq:     make(map[string]uint64),
		deps:          deps,
		listeners:     newListenerSet(),
		log: log.With().
			Str("component", "session").
			Str("session_id", id.String()).
			Int("student_id", studentID).
			Str("exam_id", examID).
			Logger(),
	}
}

// ID returns the session identifier.
func (c *Controller) ID() uuid.UUID {
	return c.id
}

// Subscribe registers an event listener (countdown ticks, pause
// state, terminal submission events). The returned cancel func must
// be called when the listener goes away.
func (c *Controller) Subscribe() (<-chan Event, func()) {
	return c.listeners.subscribe()
}

// EnsureStarted drives NotStarted → Creating → InProgress. It is
// idempotent: once a creation attempt is in flight or the session has
// advanced past Creating, repeated calls return the current snapshot
// without a second exam fetch. A fetch failure lands in Failed with
// the error retained; there is no automatic retry.
func (c *Controller) EnsureStarted(ctx context.Context) (*Snapshot, error) {
	c.mu.Lock()
	switch c.state {
	case model.SessionNotStarted:
		c.state = model.SessionCreating
		c.mu.Unlock()
	default:
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, nil
	}

	exam, err := c.deps.ExamSource.CreateExam(ctx, c.examID, c.collection)
	if err != nil {
		c.failCreation(fmt.Sprintf("create exam: %v", err))
		return nil, fmt.Errorf("create exam: %w", err)
	}

	cat := catalog.Build(exam)
	if cat.Empty() {
		c.failCreation(ErrNoQuestions.Error())
		return nil, ErrNoQuestions
	}

	// One time-authority call per session. Local-clock fallback is
	// handled inside ResolveDeadline; the session never fails to
	// start because the time service is unreachable.
	anchor := timesync.ResolveDeadline(ctx, c.deps.TimeSource, exam.ScheduledStart, exam.DurationMinutes, c.log)

	c.mu.Lock()
	c.exam = exam
	c.cat = cat
	c.anchor = anchor
	c.setPositionLocked(*cat.First())
	c.state = model.SessionInProgress

	c.ticker = timesync.NewTicker(anchor,
		func(remaining int) {
			c.listeners.broadcast(Event{Type: EventTick, Remaining: remaining})
		},
		c.handleExpiry,
		c.log,
	)
	ticker := c.ticker
	snap := c.snapshotLocked()
	c.mu.Unlock()

	ticker.Start()
	c.log.Info().
		Time("deadline", anchor.Deadline()).
		Bool("time_authority", anchor.FromAuthority()).
		Msg("Session started")

	return snap, nil
}

func (c *Controller) failCreation(msg string) {
	c.mu.Lock()
	c.state = model.SessionFailed
	c.errMsg = msg
	c.mu.Unlock()
	c.log.Error().Str("reason", msg).Msg("Session creation failed")
}

// setPositionLocked moves the active selection, maintaining the
// invariant that exactly one of the two selected ids is set,
// matching the active question type.
func (c *Controller) setPositionLocked(pos model.Position) {
	c.activeSubject = pos.Subject
	c.activeType = pos.Type
	if pos.Type == model.QuestionTypeMCQ {
		c.selectedMCQID = pos.QuestionID
		c.selectedCodingID = ""
	} else {
		c.selectedCodingID = pos.QuestionID
		c.selectedMCQID = ""
	}
}

// positionLocked returns the current position.
func (c *Controller) positionLocked() model.Position {
	pos := model.Position{Subject: c.activeSubject, Type: c.activeType}
	if c.activeType == model.QuestionTypeCoding {
		pos.QuestionID = c.selectedCodingID
	} else {
		pos.QuestionID = c.selectedMCQID
	}
	return pos
}

// Navigate moves to the next or previous question in catalog order.
// At a true catalog boundary the position is unchanged and moved is
// false.
func (c *Controller) Navigate(forward bool) (snap *Snapshot, moved bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != model.SessionInProgress {
		return nil, false, ErrNotInProgress
	}

	cur := c.positionLocked()
	var next *model.Position
	if forward {
		next = c.cat.Next(cur)
	} else {
		next = c.cat.Previous(cur)
	}
	if next != nil {
		c.setPositionLocked(*next)
	}
	return c.snapshotLocked(), next != nil, nil
}

// Jump moves directly to a question. The target must exist in the
// exam.
func (c *Controller) Jump(pos model.Position) (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != model.SessionInProgress {
		return nil, ErrNotInProgress
	}

	paper := c.exam.PaperFor(pos.Subject)
	if paper == nil {
		return nil, ErrQuestionNotFound
	}
	switch pos.Type {
	case model.QuestionTypeMCQ:
		if paper.MCQ(pos.QuestionID) == nil {
			return nil, ErrQuestionNotFound
		}
	case model.QuestionTypeCoding:
		if paper.CodingQuestion(pos.QuestionID) == nil {
			return nil, ErrQuestionNotFound
		}
	default:
		return nil, ErrQuestionNotFound
	}

	c.setPositionLocked(pos)
	return c.snapshotLocked(), nil
}

// SelectOption records an MCQ answer. The mark-for-review flag is
// preserved.
func (c *Controller) SelectOption(questionID string, option int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != model.SessionInProgress {
		return ErrNotInProgress
	}
	if c.findMCQLocked(questionID) == nil {
		return ErrQuestionNotFound
	}
	if option < 0 {
		return fmt.Errorf("invalid option index %d", option)
	}
	c.tracker.SelectOption(questionID, option)
	return nil
}

// ToggleMark flips mark-for-review for a question of either kind.
func (c *Controller) ToggleMark(questionID string, typ model.QuestionType) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != model.SessionInProgress {
		return false, ErrNotInProgress
	}
	switch typ {
	case model.QuestionTypeMCQ:
		if c.findMCQLocked(questionID) == nil {
			return false, ErrQuestionNotFound
		}
	case model.QuestionTypeCoding:
		if q, _ := c.findCodingLocked(questionID); q == nil {
			return false, ErrQuestionNotFound
		}
	default:
		return false, ErrQuestionNotFound
	}
	return c.tracker.ToggleMark(questionID, typ), nil
}

// SaveCode stores the latest editor contents for a coding question.
func (c *Controller) SaveCode(questionID, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != model.SessionInProgress {
		return ErrNotInProgress
	}
	if q, _ := c.findCodingLocked(questionID); q == nil {
		return ErrQuestionNotFound
	}
	c.tracker.SetCode(questionID, code)
	return nil
}

// RunStandard executes the saved code against the sample case plus
// all hidden cases. The result fully replaces the prior standard-run
// bucket for the question and re-derives its answered flag; the
// custom-run bucket is untouched. Responses that lose a race to a
// newer run on the same question are dropped, keyed by the per-
// question sequence number taken before the call.
func (c *Controller) RunStandard(ctx context.Context, questionID string) (*model.CodeRunResult, error) {
	c.mu.Lock()
	if c.state != model.SessionInProgress {
		c.mu.Unlock()
		return nil, ErrNotInProgress
	}
	q, subject := c.findCodingLocked(questionID)
	if q == nil {
		c.mu.Unlock()
		return nil, ErrQuestionNotFound
	}
	code, ok := c.tracker.Code(questionID)
	if !ok {
		c.mu.Unlock()
		return nil, ErrNoCodeSaved
	}

	seq := c.standardSeq[questionID] + 1
	c.standardSeq[questionID] = seq

	req := codexec.RunRequest{
		QuestionID: questionID,
		SourceCode: code,
		Language:   c.languageFor(q, subject),
		Cases: append(
			[]codexec.Case{{Kind: model.RunKindSample, Input: q.SampleInput, ExpectedOutput: q.SampleOutput}},
			hiddenCases(q.HiddenTests)...,
		),
	}
	c.mu.Unlock()

	res := c.deps.Runner.Run(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.standardSeq[questionID] != seq {
		// A newer run superseded this one while it was in flight.
		c.log.Debug().Str("question_id", questionID).Msg("Dropping stale standard run result")
		return res, nil
	}
	if c.state == model.SessionInProgress || c.state == model.SessionSubmitting {
		c.runResults[questionID] = res
		c.tracker.SetCodingAnswered(questionID, res.AllPassed())
	}
	return res, nil
}

// RunCustom executes the saved code against user-provided input. The
// result lands in the custom bucket only; standard-run verdicts and
// the answered flag are never altered by a custom run.
func (c *Controller) RunCustom(ctx context.Context, questionID, input string) (*model.CodeRunResult, error) {
	c.mu.Lock()
	if c.state != model.SessionInProgress {
		c.mu.Unlock()
		return nil, ErrNotInProgress
	}
	q, subject := c.findCodingLocked(questionID)
	if q == nil {
		c.mu.Unlock()
		return nil, ErrQuestionNotFound
	}
	code, ok := c.tracker.Code(questionID)
	if !ok {
		c.mu.Unlock()
		return nil, ErrNoCodeSaved
	}

	seq := c.customSeq[questionID] + 1
	c.customSeq[questionID] = seq

	req := codexec.RunRequest{
		QuestionID:  questionID,
		SourceCode:  code,
		Language:    c.languageFor(q, subject),
		CustomRun:   true,
		CustomInput: input,
	}
	c.mu.Unlock()

	res := c.deps.Runner.Run(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.customSeq[questionID] != seq {
		c.log.Debug().Str("question_id", questionID).Msg("Dropping stale custom run result")
		return res, nil
	}
	if c.state == model.SessionInProgress || c.state == model.SessionSubmitting {
		c.customResults[questionID] = res
	}
	return res, nil
}

// Results returns both result buckets for a question.
func (c *Controller) Results(questionID string) (standard, custom *model.CodeRunResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runResults[questionID], c.customResults[questionID]
}

// Pause freezes the visible countdown. The deadline does not move, so
// a paused session earns no extra time.
func (c *Controller) Pause() error {
	c.mu.Lock()
	if c.state != model.SessionInProgress {
		c.mu.Unlock()
		return ErrNotInProgress
	}
	ticker := c.ticker
	c.mu.Unlock()

	ticker.Pause()
	c.listeners.broadcast(Event{Type: EventPaused})
	return nil
}

// Resume lifts a pause.
func (c *Controller) Resume() error {
	c.mu.Lock()
	if c.state != model.SessionInProgress {
		c.mu.Unlock()
		return ErrNotInProgress
	}
	ticker := c.ticker
	c.mu.Unlock()

	ticker.Resume()
	c.listeners.broadcast(Event{Type: EventResumed, Remaining: c.Remaining()})
	return nil
}

// Remaining returns the countdown seconds left, 0 outside InProgress.
func (c *Controller) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != model.SessionInProgress && c.state != model.SessionSubmitting {
		return 0
	}
	return c.anchor.Remaining()
}

// handleExpiry is the countdown's auto-submit trigger. Idempotency is
// enforced by Submit's single-flight guard, not the timer.
func (c *Controller) handleExpiry() {
	c.log.Info().Msg("Deadline reached, auto-submitting")
	if _, err := c.Submit(context.Background()); err != nil &&
		!errors.Is(err, ErrAlreadySubmitting) && !errors.Is(err, ErrNotInProgress) {
		c.log.Error().Err(err).Msg("Auto-submit failed")
	}
}

// Submit performs the single-flight final submission. Both the
// countdown expiry and a manual user request funnel through here; the
// in-flight guard and the Submitting state are set synchronously
// before any network I/O. A failed submission is terminal for the
// attempt: the error is surfaced and the client is sent to the
// dashboard, never back into the timed exam.
func (c *Controller) Submit(ctx context.Context) (*SubmitOutcome, error) {
	c.mu.Lock()
	if c.submitInFlight {
		c.mu.Unlock()
		return nil, ErrAlreadySubmitting
	}
	if c.state != model.SessionInProgress {
		c.mu.Unlock()
		return nil, ErrNotInProgress
	}
	c.submitInFlight = true
	c.state = model.SessionSubmitting
	payload := c.buildPayloadLocked()
	ticker := c.ticker
	c.mu.Unlock()

	if ticker != nil {
		ticker.Stop()
	}

	out, err := c.deps.Sink.SubmitExam(ctx, payload)
	if err == nil && out != nil && !out.Success {
		err = fmt.Errorf("submission rejected: %s", out.Message)
	}

	if err != nil {
		c.mu.Lock()
		c.state = model.SessionFailed
		c.errMsg = err.Error()
		c.mu.Unlock()

		c.log.Error().Err(err).Msg("Submission failed")
		c.listeners.broadcast(Event{
			Type:     EventSubmitFailed,
			ExamID:   c.examID,
			Error:    err.Error(),
			Navigate: NavigateDashboard,
		})
		c.teardown()
		return nil, fmt.Errorf("submit exam: %w", err)
	}

	c.mu.Lock()
	c.state = model.SessionSubmitted
	c.scoring = out.Scoring
	c.clearSessionDataLocked()
	c.mu.Unlock()

	c.log.Info().Msg("Submission succeeded")
	c.listeners.broadcast(Event{
		Type:     EventSubmitted,
		ExamID:   c.examID,
		Scoring:  out.Scoring,
		Navigate: NavigateResults,
	})
	c.teardown()
	return out, nil
}

// Abandon tears the session down without submitting. Used for
// explicit abandonment and logout.
func (c *Controller) Abandon() {
	c.mu.Lock()
	ticker := c.ticker
	c.clearSessionDataLocked()
	c.state = model.SessionNotStarted
	c.mu.Unlock()

	if ticker != nil {
		ticker.Stop()
	}
	c.log.Info().Msg("Session abandoned")
	c.teardown()
}

// teardown runs the registry detach hook and closes listeners.
func (c *Controller) teardown() {
	c.mu.Lock()
	hook := c.onTeardown
	c.onTeardown = nil
	c.mu.Unlock()

	if hook != nil {
		hook()
	}
	c.listeners.closeAll()
}

// clearSessionDataLocked wipes exam data, answers and results. The
// state, error message and scoring payload survive for the final
// snapshot.
func (c *Controller) clearSessionDataLocked() {
	c.exam = nil
	c.cat = nil
	c.ticker = nil
	c.tracker.Reset()
	c.runResults = make(map[string]*model.CodeRunResult)
	c.customResults = make(map[string]*model.CodeRunResult)
	c.activeSubject = ""
	c.activeType = ""
	c.selectedMCQID = ""
	c.selectedCodingID = ""
}

func (c *Controller) findMCQLocked(questionID string) *model.MCQQuestion {
	for i := range c.exam.Papers {
		if q := c.exam.Papers[i].MCQ(questionID); q != nil {
			return q
		}
	}
	return nil
}

func (c *Controller) findCodingLocked(questionID string) (*model.CodingQuestion, string) {
	for i := range c.exam.Papers {
		if q := c.exam.Papers[i].CodingQuestion(questionID); q != nil {
			return q, c.exam.Papers[i].Subject
		}
	}
	return nil, ""
}

// languageFor resolves the execution language from the question's
// subject-language hint, falling back to the paper's subject name.
func (c *Controller) languageFor(q *model.CodingQuestion, subject string) codexec.Language {
	hint := q.SubjectLanguage
	if hint == "" {
		hint = subject
	}
	return codexec.DetectLanguage(hint)
}

func hiddenCases(tests []model.TestCase) []codexec.Case {
	out := make([]codexec.Case, 0, len(tests))
	for _, tc := range tests {
		out = append(out, codexec.Case{
			Kind:           model.RunKindHidden,
			Input:          tc.Input,
			ExpectedOutput: tc.ExpectedOutput,
		})
	}
	return out
}

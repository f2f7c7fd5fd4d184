package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/prepnest/exam-engine/internal/codexec"
	"github.com/prepnest/exam-engine/internal/model"
)

type fakeSource struct {
	mu    sync.Mutex
	calls int
	exam  *model.Exam
	err   error
}

func (f *fakeSource) CreateExam(ctx context.Context, examID, collection string) (*model.Exam, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.exam, f.err
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now(ctx context.Context) (time.Time, error) { return c.now, nil }

type scriptRunner struct {
	fn func(req codexec.RunRequest) *model.CodeRunResult
}

func (r scriptRunner) Run(ctx context.Context, req codexec.RunRequest) *model.CodeRunResult {
	return r.fn(req)
}

type captureSink struct {
	mu      sync.Mutex
	calls   int
	payload SubmissionPayload
	out     *SubmitOutcome
	err     error
}

func (s *captureSink) SubmitExam(ctx context.Context, payload SubmissionPayload) (*SubmitOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.payload = payload
	return s.out, s.err
}

func (s *captureSink) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func testExam() *model.Exam {
	return &model.Exam{
		ID:              "exam-1",
		Name:            "Weekly Assessment",
		ScheduledStart:  time.Now(),
		DurationMinutes: 30,
		Papers: []model.Paper{
			{
				Subject: "Python Programming",
				MCQs: []model.MCQQuestion{
					{ID: "m1", Text: "q", Options: map[string]string{"A": "1", "B": "2"}},
					{ID: "m2", Text: "q", Options: map[string]string{"A": "1", "B": "2"}},
				},
				Coding: []model.CodingQuestion{
					{
						ID:           "c1",
						Text:         "add",
						SampleInput:  "1 2",
						SampleOutput: "3",
						HiddenTests:  []model.TestCase{{Input: "5 5", ExpectedOutput: "10"}},
					},
					{ID: "c2", Text: "sub", SampleInput: "5 2", SampleOutput: "3"},
				},
			},
		},
	}
}

func passingResult(questionID string, cases int) *model.CodeRunResult {
	res := &model.CodeRunResult{QuestionID: questionID, Status: model.RunStatusOK}
	for i := 0; i < cases; i++ {
		res.Results = append(res.Results, model.TestCaseResult{Kind: model.RunKindHidden, Passed: true})
	}
	return res
}

func newTestController(t *testing.T, deps Deps) *Controller {
	t.Helper()
	if deps.ExamSource == nil {
		deps.ExamSource = &fakeSource{exam: testExam()}
	}
	if deps.TimeSource == nil {
		deps.TimeSource = fixedClock{now: time.Now()}
	}
	if deps.Runner == nil {
		deps.Runner = scriptRunner{fn: func(req codexec.RunRequest) *model.CodeRunResult {
			return passingResult(req.QuestionID, len(req.Cases))
		}}
	}
	if deps.Sink == nil {
		deps.Sink = &captureSink{out: &SubmitOutcome{Success: true}}
	}
	ctrl := NewController(7, "exam-1", "weekly", deps, zerolog.Nop())
	t.Cleanup(ctrl.Abandon)
	return ctrl
}

func startSession(t *testing.T, ctrl *Controller) *Snapshot {
	t.Helper()
	snap, err := ctrl.EnsureStarted(context.Background())
	if err != nil {
		t.Fatalf("EnsureStarted failed: %v", err)
	}
	return snap
}

func TestEnsureStartedIsIdempotent(t *testing.T) {
	src := &fakeSource{exam: testExam()}
	ctrl := newTestController(t, Deps{ExamSource: src})

	snap := startSession(t, ctrl)
	if snap.State != model.SessionInProgress {
		t.Fatalf("state = %s, want IN_PROGRESS", snap.State)
	}
	if snap.SelectedMCQID != "m1" || snap.SelectedCodingID != "" {
		t.Errorf("initial selection = %q/%q, want first MCQ only", snap.SelectedMCQID, snap.SelectedCodingID)
	}
	if snap.RemainingSeconds < 1798 || snap.RemainingSeconds > 1800 {
		t.Errorf("remaining = %d, want about 1800", snap.RemainingSeconds)
	}

	again := startSession(t, ctrl)
	if again.State != model.SessionInProgress {
		t.Errorf("second call state = %s, want IN_PROGRESS", again.State)
	}
	if src.callCount() != 1 {
		t.Errorf("exam fetched %d times, want 1", src.callCount())
	}
}

func TestEnsureStartedFetchFailureIsTerminal(t *testing.T) {
	src := &fakeSource{err: errors.New("exam source down")}
	ctrl := newTestController(t, Deps{ExamSource: src})

	if _, err := ctrl.EnsureStarted(context.Background()); err == nil {
		t.Fatal("EnsureStarted should fail when the exam fetch fails")
	}
	if ctrl.State() != model.SessionFailed {
		t.Fatalf("state = %s, want FAILED", ctrl.State())
	}

	// No automatic retry: the failed snapshot comes back without a
	// second fetch.
	snap, err := ctrl.EnsureStarted(context.Background())
	if err != nil {
		t.Fatalf("EnsureStarted on failed session: %v", err)
	}
	if snap.State != model.SessionFailed || snap.Error == "" {
		t.Errorf("snapshot = %s/%q, want FAILED with retained error", snap.State, snap.Error)
	}
	if src.callCount() != 1 {
		t.Errorf("exam fetched %d times, want 1", src.callCount())
	}
}

func TestEnsureStartedRejectsEmptyExam(t *testing.T) {
	src := &fakeSource{exam: &model.Exam{ID: "exam-1", Papers: []model.Paper{{Subject: "Hollow"}}}}
	ctrl := newTestController(t, Deps{ExamSource: src})

	if _, err := ctrl.EnsureStarted(context.Background()); !errors.Is(err, ErrNoQuestions) {
		t.Fatalf("err = %v, want ErrNoQuestions", err)
	}
	if ctrl.State() != model.SessionFailed {
		t.Errorf("state = %s, want FAILED", ctrl.State())
	}
}

func TestNavigateMaintainsSingleSelection(t *testing.T) {
	ctrl := newTestController(t, Deps{})
	startSession(t, ctrl)

	// m1 → m2 → c1: crossing into coding must clear the MCQ selection.
	for _, want := range []struct{ mcq, coding string }{
		{"m2", ""}, {"", "c1"}, {"", "c2"},
	} {
		snap, moved, err := ctrl.Navigate(true)
		if err != nil || !moved {
			t.Fatalf("Navigate = moved=%v err=%v", moved, err)
		}
		if snap.SelectedMCQID != want.mcq || snap.SelectedCodingID != want.coding {
			t.Fatalf("selection = %q/%q, want %q/%q", snap.SelectedMCQID, snap.SelectedCodingID, want.mcq, want.coding)
		}
	}

	// c2 is the last question: forward navigation stays put.
	snap, moved, err := ctrl.Navigate(true)
	if err != nil {
		t.Fatalf("Navigate at boundary: %v", err)
	}
	if moved {
		t.Error("Navigate past the last question should not move")
	}
	if snap.SelectedCodingID != "c2" {
		t.Errorf("selection after boundary = %q, want c2", snap.SelectedCodingID)
	}
}

func TestJumpValidatesTarget(t *testing.T) {
	ctrl := newTestController(t, Deps{})
	startSession(t, ctrl)

	snap, err := ctrl.Jump(model.Position{Subject: "Python Programming", Type: model.QuestionTypeCoding, QuestionID: "c2"})
	if err != nil {
		t.Fatalf("Jump to valid question: %v", err)
	}
	if snap.SelectedCodingID != "c2" || snap.SelectedMCQID != "" {
		t.Errorf("selection = %q/%q, want coding c2 only", snap.SelectedMCQID, snap.SelectedCodingID)
	}

	_, err = ctrl.Jump(model.Position{Subject: "Python Programming", Type: model.QuestionTypeMCQ, QuestionID: "nope"})
	if !errors.Is(err, ErrQuestionNotFound) {
		t.Errorf("Jump to unknown question err = %v, want ErrQuestionNotFound", err)
	}
}

func TestSelectOptionAndToggleMark(t *testing.T) {
	ctrl := newTestController(t, Deps{})
	startSession(t, ctrl)

	if err := ctrl.SelectOption("m1", 1); err != nil {
		t.Fatalf("SelectOption: %v", err)
	}
	if err := ctrl.SelectOption("nope", 0); !errors.Is(err, ErrQuestionNotFound) {
		t.Errorf("SelectOption unknown question err = %v", err)
	}
	if err := ctrl.SelectOption("m1", -2); err == nil {
		t.Error("negative option index should be rejected")
	}

	marked, err := ctrl.ToggleMark("c1", model.QuestionTypeCoding)
	if err != nil || !marked {
		t.Fatalf("ToggleMark = %v/%v, want marked", marked, err)
	}

	snap := ctrl.Snapshot()
	st := snap.Statuses[model.StatusKey(model.QuestionTypeMCQ, "m1")]
	if !st.Answered || st.SelectedOption != 1 {
		t.Errorf("m1 status = %+v, want answered option 1", st)
	}
	if !snap.Statuses[model.StatusKey(model.QuestionTypeCoding, "c1")].Marked {
		t.Error("c1 should be marked")
	}
}

func TestRunStandardBuildsCasesAndDerivesAnswered(t *testing.T) {
	var got codexec.RunRequest
	runner := scriptRunner{fn: func(req codexec.RunRequest) *model.CodeRunResult {
		got = req
		return passingResult(req.QuestionID, len(req.Cases))
	}}
	ctrl := newTestController(t, Deps{Runner: runner})
	startSession(t, ctrl)

	if _, err := ctrl.RunStandard(context.Background(), "c1"); !errors.Is(err, ErrNoCodeSaved) {
		t.Fatalf("run without saved code err = %v, want ErrNoCodeSaved", err)
	}

	if err := ctrl.SaveCode("c1", "print(sum(map(int, input().split())))"); err != nil {
		t.Fatalf("SaveCode: %v", err)
	}
	res, err := ctrl.RunStandard(context.Background(), "c1")
	if err != nil {
		t.Fatalf("RunStandard: %v", err)
	}

	if got.Language != codexec.LanguagePython {
		t.Errorf("language = %s, want python from subject", got.Language)
	}
	if len(got.Cases) != 2 {
		t.Fatalf("sent %d cases, want sample + 1 hidden", len(got.Cases))
	}
	if got.Cases[0].Kind != model.RunKindSample || got.Cases[1].Kind != model.RunKindHidden {
		t.Errorf("case kinds = %s/%s, want sample then hidden", got.Cases[0].Kind, got.Cases[1].Kind)
	}
	if !res.AllPassed() {
		t.Fatal("fake runner result should be fully green")
	}

	snap := ctrl.Snapshot()
	if !snap.Statuses[model.StatusKey(model.QuestionTypeCoding, "c1")].Answered {
		t.Error("fully green standard run should mark the question answered")
	}
}

func TestRunStandardFailureWithdrawsAnswered(t *testing.T) {
	pass := true
	runner := scriptRunner{fn: func(req codexec.RunRequest) *model.CodeRunResult {
		res := passingResult(req.QuestionID, len(req.Cases))
		if !pass {
			res.Results[0].Passed = false
		}
		return res
	}}
	ctrl := newTestController(t, Deps{Runner: runner})
	startSession(t, ctrl)

	ctrl.SaveCode("c1", "solution v1")
	ctrl.RunStandard(context.Background(), "c1")

	pass = false
	ctrl.SaveCode("c1", "solution v2")
	ctrl.RunStandard(context.Background(), "c1")

	snap := ctrl.Snapshot()
	if snap.Statuses[model.StatusKey(model.QuestionTypeCoding, "c1")].Answered {
		t.Error("failing rerun must withdraw the answered flag")
	}
	standard, _ := ctrl.Results("c1")
	if standard.AllPassed() {
		t.Error("standard bucket should hold the latest, failing run")
	}
}

func TestRunCustomDoesNotTouchStandardBucket(t *testing.T) {
	runner := scriptRunner{fn: func(req codexec.RunRequest) *model.CodeRunResult {
		if req.CustomRun {
			return &model.CodeRunResult{
				QuestionID: req.QuestionID,
				Status:     model.RunStatusOK,
				Results:    []model.TestCaseResult{{Kind: model.RunKindCustom, ActualOutput: "out", Passed: true}},
			}
		}
		return passingResult(req.QuestionID, len(req.Cases))
	}}
	ctrl := newTestController(t, Deps{Runner: runner})
	startSession(t, ctrl)

	ctrl.SaveCode("c1", "solution")
	ctrl.RunStandard(context.Background(), "c1")
	if _, err := ctrl.RunCustom(context.Background(), "c1", "9 9"); err != nil {
		t.Fatalf("RunCustom: %v", err)
	}

	standard, custom := ctrl.Results("c1")
	if standard == nil || !standard.AllPassed() {
		t.Error("custom run altered the standard bucket")
	}
	if custom == nil || len(custom.Results) != 1 || custom.Results[0].Kind != model.RunKindCustom {
		t.Errorf("custom bucket = %+v, want one custom record", custom)
	}

	snap := ctrl.Snapshot()
	if !snap.Statuses[model.StatusKey(model.QuestionTypeCoding, "c1")].Answered {
		t.Error("custom run must not withdraw the answered flag")
	}
}

type staleRunner struct {
	mu      sync.Mutex
	calls   int
	entered chan struct{}
	release chan struct{}
}

func (r *staleRunner) Run(ctx context.Context, req codexec.RunRequest) *model.CodeRunResult {
	r.mu.Lock()
	r.calls++
	n := r.calls
	r.mu.Unlock()

	if n == 1 {
		close(r.entered)
		<-r.release
		return &model.CodeRunResult{QuestionID: req.QuestionID, Status: model.RunStatusCompileFailed, Error: "slow stale run"}
	}
	return passingResult(req.QuestionID, len(req.Cases))
}

func TestStaleStandardRunIsDropped(t *testing.T) {
	runner := &staleRunner{entered: make(chan struct{}), release: make(chan struct{})}
	ctrl := newTestController(t, Deps{Runner: runner})
	startSession(t, ctrl)
	ctrl.SaveCode("c1", "solution")

	done := make(chan struct{})
	go func() {
		defer close(done)
		ctrl.RunStandard(context.Background(), "c1")
	}()
	<-runner.entered

	// A second run supersedes the first while it is still in flight.
	if _, err := ctrl.RunStandard(context.Background(), "c1"); err != nil {
		t.Fatalf("superseding run: %v", err)
	}
	close(runner.release)
	<-done

	standard, _ := ctrl.Results("c1")
	if standard == nil || standard.Status != model.RunStatusOK {
		t.Fatalf("standard bucket = %+v, want the newer passing run", standard)
	}
	snap := ctrl.Snapshot()
	if !snap.Statuses[model.StatusKey(model.QuestionTypeCoding, "c1")].Answered {
		t.Error("stale failing run must not withdraw the answered flag")
	}
}

type blockingSink struct {
	mu      sync.Mutex
	calls   int
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (s *blockingSink) SubmitExam(ctx context.Context, payload SubmissionPayload) (*SubmitOutcome, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	s.once.Do(func() { close(s.entered) })
	<-s.release
	return &SubmitOutcome{Success: true}, nil
}

func (s *blockingSink) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestSubmitIsSingleFlight(t *testing.T) {
	sink := &blockingSink{entered: make(chan struct{}), release: make(chan struct{})}
	ctrl := newTestController(t, Deps{Sink: sink})
	startSession(t, ctrl)

	var firstErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, firstErr = ctrl.Submit(context.Background())
	}()
	<-sink.entered

	// A manual submit and a countdown expiry both race the in-flight
	// submission; neither may reach the sink.
	if _, err := ctrl.Submit(context.Background()); !errors.Is(err, ErrAlreadySubmitting) {
		t.Errorf("concurrent Submit err = %v, want ErrAlreadySubmitting", err)
	}
	ctrl.handleExpiry()

	close(sink.release)
	<-done

	if firstErr != nil {
		t.Fatalf("winning submit failed: %v", firstErr)
	}
	if sink.callCount() != 1 {
		t.Fatalf("sink called %d times, want exactly 1", sink.callCount())
	}
	if ctrl.State() != model.SessionSubmitted {
		t.Errorf("state = %s, want SUBMITTED", ctrl.State())
	}
}

func TestSubmitPayloadAssembly(t *testing.T) {
	sink := &captureSink{out: &SubmitOutcome{Success: true}}
	ctrl := newTestController(t, Deps{Sink: sink})
	startSession(t, ctrl)

	ctrl.SelectOption("m1", 1)
	// m2 untouched: omitted. c1 has code but was never run: 0/0 tally.
	// c2 has no saved code: omitted entirely.
	ctrl.SaveCode("c1", "print('draft')")

	if _, err := ctrl.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	p := sink.payload
	if p.ExamID != "exam-1" || p.StudentID != 7 || p.SessionID == "" {
		t.Errorf("payload identity = %+v", p)
	}

	if len(p.MCQAnswers) != 1 {
		t.Fatalf("got %d MCQ answers, want 1", len(p.MCQAnswers))
	}
	if a := p.MCQAnswers[0]; a.QuestionID != "m1" || a.Option != "B" || a.Subject != "Python Programming" {
		t.Errorf("MCQ answer = %+v, want m1 option B", a)
	}

	if len(p.CodingAnswers) != 1 {
		t.Fatalf("got %d coding answers, want 1", len(p.CodingAnswers))
	}
	if a := p.CodingAnswers[0]; a.QuestionID != "c1" || a.SourceCode != "print('draft')" || a.Passed != 0 || a.Failed != 0 {
		t.Errorf("coding answer = %+v, want c1 with 0/0 tally", a)
	}
}

func TestSubmitSuccessClearsSessionData(t *testing.T) {
	ctrl := newTestController(t, Deps{})
	startSession(t, ctrl)
	ctrl.SelectOption("m1", 0)

	events, cancel := ctrl.Subscribe()
	defer cancel()

	if _, err := ctrl.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	snap := ctrl.Snapshot()
	if snap.State != model.SessionSubmitted {
		t.Errorf("state = %s, want SUBMITTED", snap.State)
	}
	if snap.Exam != nil || len(snap.MCQCatalog) != 0 || len(snap.Statuses) != 0 {
		t.Error("exam data should be cleared after successful submission")
	}

	ev := drainFor(t, events, EventSubmitted)
	if ev.Navigate != NavigateResults {
		t.Errorf("navigate = %q, want results", ev.Navigate)
	}
}

func TestSubmitFailureIsTerminal(t *testing.T) {
	sink := &captureSink{err: errors.New("submission service down")}
	ctrl := newTestController(t, Deps{Sink: sink})
	startSession(t, ctrl)

	events, cancel := ctrl.Subscribe()
	defer cancel()

	if _, err := ctrl.Submit(context.Background()); err == nil {
		t.Fatal("Submit should surface the sink failure")
	}
	if ctrl.State() != model.SessionFailed {
		t.Fatalf("state = %s, want FAILED", ctrl.State())
	}

	ev := drainFor(t, events, EventSubmitFailed)
	if ev.Navigate != NavigateDashboard {
		t.Errorf("navigate = %q, want dashboard", ev.Navigate)
	}
	if ev.Error == "" {
		t.Error("failure event should carry the error message")
	}

	// The session never returns to the timed exam.
	if _, err := ctrl.Submit(context.Background()); !errors.Is(err, ErrNotInProgress) {
		t.Errorf("Submit after failure err = %v, want ErrNotInProgress", err)
	}
}

func TestSubmitRejectedOutcomeFails(t *testing.T) {
	sink := &captureSink{out: &SubmitOutcome{Success: false, Message: "duplicate submission"}}
	ctrl := newTestController(t, Deps{Sink: sink})
	startSession(t, ctrl)

	if _, err := ctrl.Submit(context.Background()); err == nil {
		t.Fatal("unsuccessful outcome should be treated as a failure")
	}
	if ctrl.State() != model.SessionFailed {
		t.Errorf("state = %s, want FAILED", ctrl.State())
	}
}

func TestPauseAndResume(t *testing.T) {
	ctrl := newTestController(t, Deps{})
	startSession(t, ctrl)

	if err := ctrl.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if !ctrl.Snapshot().Paused {
		t.Error("snapshot should report paused")
	}

	// Pausing freezes the display only; the countdown keeps running.
	if rem := ctrl.Remaining(); rem == 0 {
		t.Error("Remaining should stay live while paused")
	}

	if err := ctrl.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if ctrl.Snapshot().Paused {
		t.Error("snapshot should report running after resume")
	}
}

func TestOperationsRejectedOutsideInProgress(t *testing.T) {
	ctrl := newTestController(t, Deps{})

	if _, _, err := ctrl.Navigate(true); !errors.Is(err, ErrNotInProgress) {
		t.Errorf("Navigate before start err = %v", err)
	}
	if err := ctrl.SelectOption("m1", 0); !errors.Is(err, ErrNotInProgress) {
		t.Errorf("SelectOption before start err = %v", err)
	}
	if _, err := ctrl.RunStandard(context.Background(), "c1"); !errors.Is(err, ErrNotInProgress) {
		t.Errorf("RunStandard before start err = %v", err)
	}
	if _, err := ctrl.Submit(context.Background()); !errors.Is(err, ErrNotInProgress) {
		t.Errorf("Submit before start err = %v", err)
	}
}

// drainFor reads buffered events until one of the wanted type appears.
func drainFor(t *testing.T, events <-chan Event, want EventType) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatalf("event channel closed before %s arrived", want)
			}
			if ev.Type == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", want)
		}
	}
}

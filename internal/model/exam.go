package model

import (
	"time"
)

// Exam is the full exam definition fetched from the exam source.
// It is immutable once fetched and owned exclusively by the session
// that fetched it.
type Exam struct {
	ID              string    `json:"exam_id"`
	Name            string    `json:"exam_name"`
	ScheduledStart  time.Time `json:"scheduled_start"`
	DurationMinutes int       `json:"total_exam_time_minutes"`
	Papers          []Paper   `json:"papers"`
}

// Paper is one scored section of an exam. The order of papers in
// Exam.Papers defines subject traversal order.
type Paper struct {
	Subject string           `json:"subject"`
	MCQs    []MCQQuestion    `json:"mcq_questions"`
	Coding  []CodingQuestion `json:"coding_questions"`
}

// MCQQuestion is a multiple-choice question. DisplayNumber is assigned
// per subject (1-based) at catalog build time; uniqueness is
// (subject, question id), never the display number alone.
type MCQQuestion struct {
	ID            string            `json:"question_id"`
	DisplayNumber int               `json:"display_number"`
	Text          string            `json:"text"`
	Options       map[string]string `json:"options"`
	ImageURL      string            `json:"image_url,omitempty"`
}

// CodingQuestion is a programming question with sample and hidden
// test cases. SubjectLanguage is the raw subject name used for
// source-language detection.
type CodingQuestion struct {
	ID              string     `json:"question_id"`
	DisplayNumber   int        `json:"display_number"`
	Text            string     `json:"text"`
	Constraints     string     `json:"constraints"`
	SampleInput     string     `json:"sample_input"`
	SampleOutput    string     `json:"sample_output"`
	HiddenTests     []TestCase `json:"hidden_test_cases"`
	SubjectLanguage string     `json:"subject_language"`
}

// TestCase is a single input/expected-output pair. Both sides are
// newline-normalized before any use (CRLF stripped, input lines
// trimmed, expected-output lines right-trimmed).
type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
}

// PaperFor returns the paper for a subject, or nil if the exam has no
// paper with that subject name.
func (e *Exam) PaperFor(subject string) *Paper {
	for i := range e.Papers {
		if e.Papers[i].Subject == subject {
			return &e.Papers[i]
		}
	}
	return nil
}

// MCQ returns the MCQ with the given id within a paper, or nil.
func (p *Paper) MCQ(questionID string) *MCQQuestion {
	for i := range p.MCQs {
		if p.MCQs[i].ID == questionID {
			return &p.MCQs[i]
		}
	}
	return nil
}

// CodingQuestion returns the coding question with the given id within
// a paper, or nil.
func (p *Paper) CodingQuestion(questionID string) *CodingQuestion {
	for i := range p.Coding {
		if p.Coding[i].ID == questionID {
			return &p.Coding[i]
		}
	}
	return nil
}

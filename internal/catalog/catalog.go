package catalog

import (
	"github.com/prepnest/exam-engine/internal/model"
)

// Entry is one question in the flattened catalog, annotated with the
// paper it came from and its per-subject display number.
type Entry struct {
	Subject       string             `json:"subject"`
	Type          model.QuestionType `json:"question_type"`
	QuestionID    string             `json:"question_id"`
	PaperIndex    int                `json:"paper_index"`
	DisplayNumber int                `json:"display_number"`
}

// subjectBlock groups a subject's entries so the navigator can walk
// subject boundaries without re-scanning the flat lists.
type subjectBlock struct {
	subject string
	mcq     []Entry
	coding  []Entry
}

// Catalog is the flat, stable ordering of every question across all
// papers of an exam. Build order is deterministic: papers in exam
// order, MCQs before coding within a paper.
type Catalog struct {
	MCQ    []Entry
	Coding []Entry

	subjects []subjectBlock
}

// Build flattens an exam into a catalog. Display numbers are assigned
// per subject, 1-based, resetting at every paper boundary. Build is a
// pure function of the exam payload: rebuilding from the same exam
// yields an identical catalog.
func Build(exam *model.Exam) *Catalog {
	c := &Catalog{}

	for pi := range exam.Papers {
		paper := &exam.Papers[pi]
		block := subjectBlock{subject: paper.Subject}

		num := 1
		for qi := range paper.MCQs {
			e := Entry{
				Subject:       paper.Subject,
				Type:          model.QuestionTypeMCQ,
				QuestionID:    paper.MCQs[qi].ID,
				PaperIndex:    pi,
				DisplayNumber: num,
			}
			num++
			c.MCQ = append(c.MCQ, e)
			block.mcq = append(block.mcq, e)
		}

		num = 1
		for qi := range paper.Coding {
			e := Entry{
				Subject:       paper.Subject,
				Type:          model.QuestionTypeCoding,
				QuestionID:    paper.Coding[qi].ID,
				PaperIndex:    pi,
				DisplayNumber: num,
			}
			num++
			c.Coding = append(c.Coding, e)
			block.coding = append(block.coding, e)
		}

		c.subjects = append(c.subjects, block)
	}

	return c
}

// Empty reports whether the catalog holds no questions at all.
func (c *Catalog) Empty() bool {
	return len(c.MCQ) == 0 && len(c.Coding) == 0
}

// First returns the position of the first question in catalog order:
// the first subject's first MCQ, else its first coding question,
// skipping subjects with no questions. Nil for an empty catalog.
func (c *Catalog) First() *model.Position {
	for si := range c.subjects {
		if p := c.subjects[si].first(); p != nil {
			return p
		}
	}
	return nil
}

// Last returns the position of the last question in catalog order:
// the last subject's last coding question, else its last MCQ,
// skipping subjects with no questions. Nil for an empty catalog.
func (c *Catalog) Last() *model.Position {
	for si := len(c.subjects) - 1; si >= 0; si-- {
		if p := c.subjects[si].last(); p != nil {
			return p
		}
	}
	return nil
}

// DisplayNumber returns the per-subject display number for a question,
// or 0 if the question is not in the catalog.
func (c *Catalog) DisplayNumber(t model.QuestionType, questionID string) int {
	entries := c.MCQ
	if t == model.QuestionTypeCoding {
		entries = c.Coding
	}
	for i := range entries {
		if entries[i].QuestionID == questionID {
			return entries[i].DisplayNumber
		}
	}
	return 0
}

// first returns the block's first question position (MCQ before
// coding), or nil for a subject with no questions.
func (b *subjectBlock) first() *model.Position {
	if len(b.mcq) > 0 {
		return &model.Position{Subject: b.subject, Type: model.QuestionTypeMCQ, QuestionID: b.mcq[0].QuestionID}
	}
	if len(b.coding) > 0 {
		return &model.Position{Subject: b.subject, Type: model.QuestionTypeCoding, QuestionID: b.coding[0].QuestionID}
	}
	return nil
}

// last returns the block's last question position (coding after MCQ),
// or nil for a subject with no questions.
func (b *subjectBlock) last() *model.Position {
	if len(b.coding) > 0 {
		return &model.Position{Subject: b.subject, Type: model.QuestionTypeCoding, QuestionID: b.coding[len(b.coding)-1].QuestionID}
	}
	if len(b.mcq) > 0 {
		return &model.Position{Subject: b.subject, Type: model.QuestionTypeMCQ, QuestionID: b.mcq[len(b.mcq)-1].QuestionID}
	}
	return nil
}

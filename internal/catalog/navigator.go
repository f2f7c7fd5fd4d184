package catalog

import (
	"github.com/prepnest/exam-engine/internal/model"
)

// Next returns the question after pos in catalog order, crossing
// subject and type boundaries: MCQs first within a subject, then that
// subject's coding questions, then the next subject. Subjects with no
// questions of a kind are skipped, never yielding an empty-subject
// position. Nil is returned only from the true last question.
//
// If pos cannot be located (stale selection), Next restarts from the
// first question overall. Next is pure; callers persist the result.
func (c *Catalog) Next(pos model.Position) *model.Position {
	si, qi := c.locate(pos)
	if si < 0 {
		return c.First()
	}

	block := &c.subjects[si]

	if pos.Type == model.QuestionTypeMCQ {
		if qi+1 < len(block.mcq) {
			return &model.Position{Subject: block.subject, Type: model.QuestionTypeMCQ, QuestionID: block.mcq[qi+1].QuestionID}
		}
		// MCQs exhausted: fall through to this subject's coding set.
		if len(block.coding) > 0 {
			return &model.Position{Subject: block.subject, Type: model.QuestionTypeCoding, QuestionID: block.coding[0].QuestionID}
		}
	} else {
		if qi+1 < len(block.coding) {
			return &model.Position{Subject: block.subject, Type: model.QuestionTypeCoding, QuestionID: block.coding[qi+1].QuestionID}
		}
	}

	// Current subject exhausted: first question of the next non-empty
	// subject.
	for next := si + 1; next < len(c.subjects); next++ {
		if p := c.subjects[next].first(); p != nil {
			return p
		}
	}
	return nil
}

// Previous is the mirror of Next: within coding step backward, fall
// back to the same subject's last MCQ, then to the previous non-empty
// subject's last question. Nil is returned only from the true first
// question. A stale position restarts from the last question overall.
func (c *Catalog) Previous(pos model.Position) *model.Position {
	si, qi := c.locate(pos)
	if si < 0 {
		return c.Last()
	}

	block := &c.subjects[si]

	if pos.Type == model.QuestionTypeCoding {
		if qi > 0 {
			return &model.Position{Subject: block.subject, Type: model.QuestionTypeCoding, QuestionID: block.coding[qi-1].QuestionID}
		}
		// Coding exhausted backward: fall back to this subject's MCQs.
		if len(block.mcq) > 0 {
			return &model.Position{Subject: block.subject, Type: model.QuestionTypeMCQ, QuestionID: block.mcq[len(block.mcq)-1].QuestionID}
		}
	} else {
		if qi > 0 {
			return &model.Position{Subject: block.subject, Type: model.QuestionTypeMCQ, QuestionID: block.mcq[qi-1].QuestionID}
		}
	}

	// Current subject exhausted backward: last question of the
	// previous non-empty subject.
	for prev := si - 1; prev >= 0; prev-- {
		if p := c.subjects[prev].last(); p != nil {
			return p
		}
	}
	return nil
}

// locate scans subjects in catalog order for the one containing the
// position's question under its type. Returns (-1, -1) when the
// position is stale.
func (c *Catalog) locate(pos model.Position) (subjectIdx, questionIdx int) {
	for si := range c.subjects {
		entries := c.subjects[si].mcq
		if pos.Type == model.QuestionTypeCoding {
			entries = c.subjects[si].coding
		}
		for qi := range entries {
			if entries[qi].QuestionID == pos.QuestionID {
				return si, qi
			}
		}
	}
	return -1, -1
}

package workflow

import (
	"strings"

	"github.com/m-mizutani/drover/pkg/domain/model"
)

// Condition is a label gate attached to a job or step. The grammar is
// intentionally small:
//
//	""              -> success (default: run while nothing has failed)
//	"success"       -> same as the default, explicit
//	"always"        -> run regardless of prior failures
//	"label:<name>"  -> run only when the label is present
//	"!label:<name>" -> run only when the label is absent
//
// Multiple clauses may be joined with "&&"; all must hold.
type Condition string

const (
	condAlways  = "always"
	condSuccess = "success"
	labelPrefix = "label:"
)

// Validate checks the condition grammar without evaluating it
func (c Condition) Validate() error {
	for _, clause := range c.clauses() {
		switch {
		case clause == "" || clause == condAlways || clause == condSuccess:
		case strings.HasPrefix(clause, labelPrefix):
			if clause == labelPrefix {
				return ErrBadCondition
			}
		case strings.HasPrefix(clause, "!"+labelPrefix):
			if clause == "!"+labelPrefix {
				return ErrBadCondition
			}
		default:
			return ErrBadCondition
		}
	}
	return nil
}

// Always reports whether the condition demands execution even after a
// prior step failed
func (c Condition) Always() bool {
	for _, clause := range c.clauses() {
		if clause == condAlways {
			return true
		}
	}
	return false
}

// Eval evaluates the label clauses against the label set. The
// always/success clauses are transparent here; they only matter for
// step scheduling after a failure (see Always).
func (c Condition) Eval(labels model.LabelSet) bool {
	for _, clause := range c.clauses() {
		switch {
		case clause == "" || clause == condAlways || clause == condSuccess:
		case strings.HasPrefix(clause, labelPrefix):
			if !labels.Has(clause[len(labelPrefix):]) {
				return false
			}
		case strings.HasPrefix(clause, "!"+labelPrefix):
			if labels.Has(clause[len("!"+labelPrefix):]) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func (c Condition) clauses() []string {
	raw := strings.Split(string(c), "&&")
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		out = append(out, strings.TrimSpace(s))
	}
	return out
}

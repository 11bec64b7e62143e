package merge

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyGroup is returned when a group has fewer than two members
	ErrEmptyGroup = errors.New("group has fewer than 2 members")
	// ErrPrimaryNotFound is returned when the primary id is not a group member
	ErrPrimaryNotFound = errors.New("primary is not a member of the group")
	// ErrPrimaryVanished is returned when the primary was deleted between
	// planning and execution. Nothing was written; re-run detection.
	ErrPrimaryVanished = errors.New("primary contact no longer exists")
)

// PlanningError reports bad input to the planner. No writes have happened.
type PlanningError struct {
	GroupKey  string
	PrimaryID string
	Err       error
}

func (e *PlanningError) Error() string {
	return fmt.Sprintf("cannot plan merge of group %q into %q: %v", e.GroupKey, e.PrimaryID, e.Err)
}

func (e *PlanningError) Unwrap() error { return e.Err }

// Step names an executor step
type Step string

const (
	StepVerifyPrimary  Step = "verify_primary"
	StepUpdateContact  Step = "update_contact"
	StepDeleteContacts Step = "delete_contacts"
	StepUpdateCard     Step = "update_card"
	StepDeleteCards    Step = "delete_cards"
)

// StepError reports the executor step that stopped a merge.
type StepError struct {
	Step     Step
	TargetID string
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("merge step %s failed for %s: %v", e.Step, e.TargetID, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Retryable reports whether the merge can be finished with a card
// reconciliation retry. Only a failed card update leaves the contacts merged
// and the cards untouched.
func (e *StepError) Retryable() bool {
	return e.Step == StepUpdateCard
}

// CleanupFailure is a loser document that could not be deleted
type CleanupFailure struct {
	Kind  string `json:"kind"` // contact or card
	ID    string `json:"id"`
	Error string `json:"error"`
}

// PartialCleanupError is returned when the survivor was written but some
// losers could not be deleted. The merge is logically complete; the
// stragglers reappear in the next detection run.
type PartialCleanupError struct {
	Failures []CleanupFailure
}

func (e *PartialCleanupError) Error() string {
	ids := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		ids[i] = f.Kind + " " + f.ID
	}
	return fmt.Sprintf("merged with %d cleanup failure(s): %s", len(e.Failures), strings.Join(ids, ", "))
}

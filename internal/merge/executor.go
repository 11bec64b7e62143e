package merge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"time"

	"golang.org/x/time/rate"

	"github.com/steveyegge/crm/internal/logger"
	"github.com/steveyegge/crm/internal/types"
)

// Outcome status values
const (
	StatusMerged             = "merged"
	StatusMergedWithWarnings = "merged_with_warnings"
	StatusFailed             = "failed"
)

// MergePlan is everything a merge will write, computed before the first write.
type MergePlan struct {
	GroupKey           string                `json:"group_key"`
	Strategy           types.MatchStrategy   `json:"strategy"`
	MemberIDs          []string              `json:"member_ids"`
	SurvivingContactID string                `json:"surviving_contact_id"`
	ContactPatch       *types.ContactPatch   `json:"contact_patch"`
	ContactsToDelete   []string              `json:"contacts_to_delete"`
	SurvivingCardID    string                `json:"surviving_card_id,omitempty"`
	CardPatch          *types.CardPatch      `json:"card_patch,omitempty"`
	CardsToDelete      []string              `json:"cards_to_delete,omitempty"`
	Cards              *CardMergeResult      `json:"-"`
	Primary            *types.Contact        `json:"-"`
	Result             *types.Contact        `json:"-"` // primary with ContactPatch applied
}

// Validate checks the plan is internally consistent
func (p *MergePlan) Validate() error {
	if p.SurvivingContactID == "" {
		return fmt.Errorf("surviving_contact_id is required")
	}
	if p.ContactPatch == nil {
		return fmt.Errorf("contact_patch is required")
	}
	for _, id := range p.ContactsToDelete {
		if id == p.SurvivingContactID {
			return fmt.Errorf("contacts_to_delete contains the surviving contact %s", id)
		}
	}
	if p.SurvivingCardID == "" && len(p.CardsToDelete) > 0 {
		return fmt.Errorf("cards_to_delete set without a surviving card")
	}
	if p.SurvivingCardID != "" && p.CardPatch == nil {
		return fmt.Errorf("card_patch is required when surviving_card_id is set")
	}
	for _, id := range p.CardsToDelete {
		if id == p.SurvivingCardID {
			return fmt.Errorf("cards_to_delete contains the surviving card %s", id)
		}
	}
	return nil
}

// Equivalent reports whether other would write the same thing as p. The
// contact patch timestamp is ignored; a plan prepared again later from
// unchanged data is equivalent.
func (p *MergePlan) Equivalent(other *MergePlan) bool {
	if p == nil || other == nil {
		return p == other
	}
	if p.SurvivingContactID != other.SurvivingContactID ||
		p.SurvivingCardID != other.SurvivingCardID ||
		!slices.Equal(p.MemberIDs, other.MemberIDs) ||
		!slices.Equal(p.ContactsToDelete, other.ContactsToDelete) ||
		!slices.Equal(p.CardsToDelete, other.CardsToDelete) {
		return false
	}
	if (p.ContactPatch == nil) != (other.ContactPatch == nil) {
		return false
	}
	if p.ContactPatch != nil {
		a, b := *p.ContactPatch, *other.ContactPatch
		a.LastUpdated, b.LastUpdated = time.Time{}, time.Time{}
		if !reflect.DeepEqual(a, b) {
			return false
		}
	}
	return reflect.DeepEqual(p.CardPatch, other.CardPatch)
}

// MergeOutcome reports what a merge actually did
type MergeOutcome struct {
	SurvivingContactID string           `json:"surviving_contact_id"`
	SurvivingCardID    string           `json:"surviving_card_id,omitempty"`
	ContactsMerged     int              `json:"contacts_merged"`
	ContactsDeleted    int              `json:"contacts_deleted"`
	CardsMerged        int              `json:"cards_merged"`
	CardsDeleted       int              `json:"cards_deleted"`
	FailedStep         Step             `json:"failed_step,omitempty"`
	Warnings           []CleanupFailure `json:"warnings,omitempty"`
	Status             string           `json:"status"`
	Duration           time.Duration    `json:"duration"`
}

// Err returns a *PartialCleanupError when the merge left stragglers
func (o *MergeOutcome) Err() error {
	if o == nil || len(o.Warnings) == 0 {
		return nil
	}
	return &PartialCleanupError{Failures: o.Warnings}
}

// Executor applies a MergePlan to the store as an ordered series of steps.
// There is no transaction across contacts and cards: each step is
// independently fallible and a failure after the survivor is written is
// reported as a warning, not rolled back.
type Executor struct {
	store   Store
	limiter *rate.Limiter
	now     func() time.Time
}

// NewExecutor creates an executor. writesPerSecond <= 0 disables throttling.
func NewExecutor(store Store, writesPerSecond float64) *Executor {
	e := &Executor{store: store, now: time.Now}
	if writesPerSecond > 0 {
		burst := int(writesPerSecond)
		if burst < 1 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(writesPerSecond), burst)
	}
	return e
}

// Execute runs the plan. The returned outcome is never nil. The error is a
// *StepError when a step aborted the merge; cleanup failures are reported in
// outcome.Warnings with a nil error.
//
// Cancelling ctx before the primary is verified aborts cleanly. Once the
// first write starts, the remaining steps run to completion regardless of ctx.
func (e *Executor) Execute(ctx context.Context, plan *MergePlan) (*MergeOutcome, error) {
	start := e.now()
	outcome := &MergeOutcome{SurvivingContactID: plan.SurvivingContactID}
	fail := func(step Step, target string, err error) (*MergeOutcome, error) {
		outcome.Status = StatusFailed
		outcome.FailedStep = step
		outcome.Duration = e.now().Sub(start)
		return outcome, &StepError{Step: step, TargetID: target, Err: err}
	}

	if err := plan.Validate(); err != nil {
		return fail(StepVerifyPrimary, plan.SurvivingContactID, fmt.Errorf("invalid plan: %w", err))
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		GroupKey:  logger.Ptr(plan.GroupKey),
		ContactID: logger.Ptr(plan.SurvivingContactID),
		Component: "crm.merge.executor",
	})

	// Step 1: the primary may have been deleted since planning
	if err := ctx.Err(); err != nil {
		return fail(StepVerifyPrimary, plan.SurvivingContactID, err)
	}
	if err := e.step(ctx, StepVerifyPrimary, func(ctx context.Context) error {
		_, err := e.store.GetContact(ctx, plan.SurvivingContactID)
		return err
	}); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			err = ErrPrimaryVanished
		}
		return fail(StepVerifyPrimary, plan.SurvivingContactID, err)
	}

	// From here on nothing cancels the merge.
	wctx := context.WithoutCancel(ctx)

	// Step 2: write the survivor
	patch := *plan.ContactPatch
	patch.LastUpdated = e.now()
	if err := e.step(wctx, StepUpdateContact, func(ctx context.Context) error {
		if err := e.throttle(ctx); err != nil {
			return err
		}
		return e.store.UpdateContact(ctx, plan.SurvivingContactID, &patch)
	}); err != nil {
		return fail(StepUpdateContact, plan.SurvivingContactID, err)
	}
	outcome.ContactsMerged = len(plan.ContactsToDelete) + 1

	// Step 3: delete losing contacts, best effort
	e.cleanupStep(wctx, StepDeleteContacts, func(ctx context.Context) {
		for _, id := range plan.ContactsToDelete {
			err := e.throttle(ctx)
			if err == nil {
				err = e.store.DeleteContact(ctx, id)
			}
			if err != nil {
				slog.WarnContext(ctx, "failed to delete merged contact", "target_id", id, "error", err)
				outcome.Warnings = append(outcome.Warnings, CleanupFailure{Kind: "contact", ID: id, Error: err.Error()})
				continue
			}
			outcome.ContactsDeleted++
		}
	})

	// Step 4: write the surviving card, if the group has a conversation
	if plan.SurvivingCardID != "" {
		outcome.SurvivingCardID = plan.SurvivingCardID
		cardCtx := logger.WithLogFields(wctx, logger.LogFields{CardID: logger.Ptr(plan.SurvivingCardID)})
		if err := e.step(cardCtx, StepUpdateCard, func(ctx context.Context) error {
			if err := e.throttle(ctx); err != nil {
				return err
			}
			return e.store.UpdateCard(ctx, plan.SurvivingCardID, plan.CardPatch)
		}); err != nil {
			// Losing cards still hold history the survivor card does not.
			return fail(StepUpdateCard, plan.SurvivingCardID, err)
		}
		outcome.CardsMerged = len(plan.CardsToDelete) + 1

		// Step 5: delete losing cards, best effort
		e.cleanupStep(cardCtx, StepDeleteCards, func(ctx context.Context) {
			for _, id := range plan.CardsToDelete {
				err := e.throttle(ctx)
				if err == nil {
					err = e.store.DeleteCard(ctx, id)
				}
				if err != nil {
					slog.WarnContext(ctx, "failed to delete merged card", "target_id", id, "error", err)
					outcome.Warnings = append(outcome.Warnings, CleanupFailure{Kind: "card", ID: id, Error: err.Error()})
					continue
				}
				outcome.CardsDeleted++
			}
		})
	}

	outcome.Status = StatusMerged
	if len(outcome.Warnings) > 0 {
		outcome.Status = StatusMergedWithWarnings
	}
	outcome.Duration = e.now().Sub(start)
	return outcome, nil
}

// throttle blocks until the write limiter admits one more store write.
func (e *Executor) throttle(ctx context.Context) error {
	if e.limiter == nil {
		return nil
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("write throttle: %w", err)
	}
	return nil
}

// step runs fn inside a child span.
func (e *Executor) step(ctx context.Context, name Step, fn func(ctx context.Context) error) error {
	sc := logger.StartSpan(ctx, "merge."+string(name))
	defer sc.End()
	ctx = logger.WithLogFields(sc.Context(), logger.LogFields{Step: logger.Ptr(string(name))})

	slog.DebugContext(ctx, "running merge step")
	if err := fn(ctx); err != nil {
		sc.RecordError(err)
		return err
	}
	return nil
}

// cleanupStep runs a best-effort step inside a child span. fn records its
// own failures as outcome warnings.
func (e *Executor) cleanupStep(ctx context.Context, name Step, fn func(ctx context.Context)) {
	sc := logger.StartSpan(ctx, "merge."+string(name))
	defer sc.End()
	ctx = logger.WithLogFields(sc.Context(), logger.LogFields{Step: logger.Ptr(string(name))})

	slog.DebugContext(ctx, "running merge step")
	fn(ctx)
}

package merge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/steveyegge/crm/internal/deduplication"
	"github.com/steveyegge/crm/internal/events"
	"github.com/steveyegge/crm/internal/logger"
	"github.com/steveyegge/crm/internal/types"
)

// Engine detects duplicate contacts and merges them. It holds no locks:
// callers must ensure at most one merge over the same contacts is in flight
// and should re-run detection after every merge.
type Engine struct {
	store    Store
	detector *deduplication.Detector
	policy   SurvivorPolicy
	executor *Executor
	events   EventRecorder
	now      func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithEventRecorder records merge history to r
func WithEventRecorder(r EventRecorder) Option {
	return func(e *Engine) { e.events = r }
}

// WithClock overrides the clock used for LastUpdated and durations
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
		e.executor.now = now
	}
}

// WithSurvivorPolicy overrides the configured card survivor policy
func WithSurvivorPolicy(p SurvivorPolicy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithDetector overrides the configured detector
func WithDetector(d *deduplication.Detector) Option {
	return func(e *Engine) { e.detector = d }
}

// NewEngine creates an engine over store configured by cfg.
func NewEngine(store Store, cfg deduplication.Config, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	detector, err := deduplication.NewDetector(cfg)
	if err != nil {
		return nil, err
	}
	policy, err := SurvivorPolicyByName(cfg.CardSurvivor)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		store:    store,
		detector: detector,
		policy:   policy,
		executor: NewExecutor(store, cfg.WritesPerSecond),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Detect returns the mergeable duplicate groups among contacts. Read-only.
func (e *Engine) Detect(contacts []*types.Contact) []types.DuplicateGroup {
	return e.detector.Detect(contacts)
}

// Run returns the full detection result for contacts. Read-only.
func (e *Engine) Run(contacts []*types.Contact) *deduplication.DetectionResult {
	return e.detector.Run(contacts)
}

// Scan lists every contact from the store and runs detection without
// recording anything.
func (e *Engine) Scan(ctx context.Context) (*deduplication.DetectionResult, error) {
	contacts, err := e.store.ListContacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	return e.detector.Run(contacts), nil
}

// DetectStored is Scan plus history: id collisions and the detection
// summary are recorded as events.
func (e *Engine) DetectStored(ctx context.Context) (*deduplication.DetectionResult, error) {
	result, err := e.Scan(ctx)
	if err != nil {
		return nil, err
	}

	for _, c := range result.IDCollisions {
		e.record(ctx, events.NewMergeEvent(events.EventTypeIDCollisionDetected, c.ID, "",
			events.SeverityWarning, fmt.Sprintf("contact %s listed %d times", c.ID, c.Count),
			map[string]interface{}{"count": c.Count}))
	}
	if ev, err := events.NewDetectionCompletedEvent(
		fmt.Sprintf("found %d duplicate group(s) in %d contacts", result.Stats.GroupCount, result.Stats.TotalContacts),
		events.DetectionCompletedData{
			TotalContacts:     result.Stats.TotalContacts,
			GroupCount:        result.Stats.GroupCount,
			DuplicateContacts: result.Stats.DuplicateContacts,
			IDCollisionCount:  result.Stats.IDCollisionCount,
			ProcessingTimeMs:  result.Stats.ProcessingTimeMs,
		}); err == nil {
		e.record(ctx, ev)
	}
	return result, nil
}

// Prepare computes the full merge plan for group without writing anything.
func (e *Engine) Prepare(ctx context.Context, group types.DuplicateGroup, primaryID string) (*MergePlan, error) {
	patch, err := Plan(group, primaryID, e.now())
	if err != nil {
		return nil, err
	}
	primary := group.Member(primaryID)
	result := patch.Apply(primary)

	cards, err := e.store.ListCardsAcrossThreads(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	cm := Reconcile(group, result, cards, e.policy)

	return &MergePlan{
		GroupKey:           group.Key,
		Strategy:           group.Strategy,
		MemberIDs:          group.IDs(),
		SurvivingContactID: primaryID,
		ContactPatch:       patch,
		ContactsToDelete:   Losers(group, primaryID),
		SurvivingCardID:    cm.SurvivingCardID,
		CardPatch:          cm.Patch,
		CardsToDelete:      cm.CardsToDelete,
		Cards:              cm,
		Primary:            primary,
		Result:             result,
	}, nil
}

// Merge plans and executes the merge of group into primaryID.
//
// On success the outcome status is merged, or merged_with_warnings when
// some losers could not be deleted (outcome.Err() describes them). On
// failure the error is a *PlanningError or *StepError; a StepError for
// update_card is retryable with ReconcileCards.
func (e *Engine) Merge(ctx context.Context, group types.DuplicateGroup, primaryID string) (*MergeOutcome, error) {
	sc := logger.StartSpan(ctx, "merge")
	defer sc.End()
	sc.SetAttributes("group_key", group.Key, "strategy", string(group.Strategy), "primary_id", primaryID)
	ctx = logger.WithLogFields(sc.Context(), logger.LogFields{
		GroupKey:  logger.Ptr(group.Key),
		ContactID: logger.Ptr(primaryID),
		Component: "crm.merge",
	})

	plan, err := e.Prepare(ctx, group, primaryID)
	if err != nil {
		sc.RecordError(err)
		return nil, err
	}
	return e.execute(ctx, sc, plan)
}

// Execute runs a plan previously returned by Prepare.
func (e *Engine) Execute(ctx context.Context, plan *MergePlan) (*MergeOutcome, error) {
	sc := logger.StartSpan(ctx, "merge")
	defer sc.End()
	ctx = logger.WithLogFields(sc.Context(), logger.LogFields{
		GroupKey:  logger.Ptr(plan.GroupKey),
		ContactID: logger.Ptr(plan.SurvivingContactID),
		Component: "crm.merge",
	})
	return e.execute(ctx, sc, plan)
}

func (e *Engine) execute(ctx context.Context, sc *logger.SpanContext, plan *MergePlan) (*MergeOutcome, error) {
	if ev, err := events.NewMergeStartedEvent(plan.SurvivingContactID, plan.GroupKey,
		fmt.Sprintf("merging %d contact(s) into %s", len(plan.ContactsToDelete), plan.SurvivingContactID),
		events.MergeStartedData{
			Strategy:         string(plan.Strategy),
			MemberIDs:        plan.MemberIDs,
			ContactsToDelete: plan.ContactsToDelete,
			SurvivingCardID:  plan.SurvivingCardID,
			CardsToDelete:    plan.CardsToDelete,
		}); err == nil {
		e.record(ctx, ev)
	}

	outcome, err := e.executor.Execute(ctx, plan)
	if err != nil {
		sc.RecordError(err)
		slog.ErrorContext(ctx, "merge failed", "step", outcome.FailedStep, "error", err)
		var stepErr *StepError
		retryable := errors.As(err, &stepErr) && stepErr.Retryable()
		if ev, evErr := events.NewMergeFailedEvent(plan.SurvivingContactID, plan.GroupKey, err.Error(),
			events.MergeFailedData{Step: string(outcome.FailedStep), Error: err.Error(), Retryable: retryable}); evErr == nil {
			e.record(ctx, ev)
		}
		e.recordWarnings(ctx, plan, outcome)
		return outcome, err
	}

	e.recordWarnings(ctx, plan, outcome)
	if ev, evErr := events.NewMergeCompletedEvent(plan.SurvivingContactID, plan.GroupKey,
		fmt.Sprintf("merged %d contact(s) into %s", outcome.ContactsMerged, plan.SurvivingContactID),
		events.MergeCompletedData{
			Status:           outcome.Status,
			ContactsMerged:   outcome.ContactsMerged,
			ContactsDeleted:  outcome.ContactsDeleted,
			CardsMerged:      outcome.CardsMerged,
			CardsDeleted:     outcome.CardsDeleted,
			SurvivingCardID:  outcome.SurvivingCardID,
			WarningCount:     len(outcome.Warnings),
			ProcessingTimeMs: outcome.Duration.Milliseconds(),
		}); evErr == nil {
		e.record(ctx, ev)
	}

	if outcome.Status == StatusMergedWithWarnings {
		slog.WarnContext(ctx, "merge left stragglers", "warnings", len(outcome.Warnings))
	} else {
		slog.InfoContext(ctx, "merge completed",
			"contacts_merged", outcome.ContactsMerged, "cards_merged", outcome.CardsMerged)
	}
	return outcome, nil
}

// ReconcileCards merges every card belonging to contactID into one. It
// finishes a merge whose card step failed: formerIDs are the ids of the
// contacts that were merged away, whose cards still point at them.
func (e *Engine) ReconcileCards(ctx context.Context, contactID string, formerIDs ...string) (*CardMergeResult, *MergeOutcome, error) {
	sc := logger.StartSpan(ctx, "merge.reconcile_cards")
	defer sc.End()
	ctx = logger.WithLogFields(sc.Context(), logger.LogFields{
		ContactID: logger.Ptr(contactID),
		Component: "crm.merge",
	})

	contact, err := e.store.GetContact(ctx, contactID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, nil, fmt.Errorf("contact %s: %w", contactID, ErrPrimaryVanished)
		}
		return nil, nil, fmt.Errorf("failed to get contact %s: %w", contactID, err)
	}

	group := types.DuplicateGroup{Key: contactID, Contacts: []*types.Contact{contact}}
	for _, id := range formerIDs {
		if id != "" && id != contactID {
			group.Contacts = append(group.Contacts, &types.Contact{ID: id})
		}
	}

	cards, err := e.store.ListCardsAcrossThreads(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list cards: %w", err)
	}
	cm := Reconcile(group, contact, cards, e.policy)
	if cm.Empty() {
		return cm, &MergeOutcome{SurvivingContactID: contactID, ContactsMerged: 1, Status: StatusMerged}, nil
	}

	plan := &MergePlan{
		GroupKey:           contactID,
		MemberIDs:          group.IDs(),
		SurvivingContactID: contactID,
		ContactPatch: &types.ContactPatch{
			Name:   contact.Name,
			Email:  contact.Email,
			Phone:  contact.Phone,
			Tags:   contact.Tags,
			Fields: contact.Fields,
		},
		SurvivingCardID: cm.SurvivingCardID,
		CardPatch:       cm.Patch,
		CardsToDelete:   cm.CardsToDelete,
		Cards:           cm,
		Primary:         contact,
		Result:          contact,
	}
	outcome, err := e.executor.Execute(ctx, plan)
	if err != nil {
		sc.RecordError(err)
		return cm, outcome, err
	}

	e.recordWarnings(ctx, plan, outcome)
	e.record(ctx, events.NewMergeEvent(events.EventTypeCardsReconciled, contactID, contactID,
		events.SeverityInfo, fmt.Sprintf("reconciled %d card(s) into %s", outcome.CardsMerged, cm.SurvivingCardID),
		map[string]interface{}{
			"surviving_card_id": cm.SurvivingCardID,
			"cards_merged":      outcome.CardsMerged,
			"cards_deleted":     outcome.CardsDeleted,
		}))
	return cm, outcome, nil
}

func (e *Engine) recordWarnings(ctx context.Context, plan *MergePlan, outcome *MergeOutcome) {
	for _, w := range outcome.Warnings {
		ev, err := events.NewMergeCleanupWarningEvent(plan.SurvivingContactID, plan.GroupKey,
			fmt.Sprintf("could not delete merged %s %s", w.Kind, w.ID),
			events.MergeCleanupWarningData{Kind: w.Kind, TargetID: w.ID, Error: w.Error})
		if err != nil {
			continue
		}
		e.record(ctx, ev)
	}
}

// record stores a history event. History is an audit trail, not part of
// the merge: failures are logged and otherwise ignored.
func (e *Engine) record(ctx context.Context, ev *events.MergeEvent) {
	if e.events == nil || ev == nil {
		return
	}
	ev.Timestamp = e.now()
	if err := e.events.StoreMergeEvent(context.WithoutCancel(ctx), ev); err != nil {
		slog.WarnContext(ctx, "failed to record merge event", "type", ev.Type, "error", err)
	}
}

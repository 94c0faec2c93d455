// Package wizard drives one event meal-planning session: it owns the health
// selection, the budget split, the generated candidates and the selections,
// and sequences them through the wizard steps up to saving the plan.
package wizard

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"mealwizard"
	"mealwizard/budget"
	"mealwizard/generation"
	"mealwizard/health"
	"mealwizard/persist"
	"mealwizard/selection"
)

type instruments struct {
	generations        metric.Int64Counter
	generationFailures metric.Int64Counter
	budgetFallbacks    metric.Int64Counter
	mealsCreated       metric.Int64Counter
	recipesAttached    metric.Int64Counter
	generationDuration metric.Float64Histogram
}

func newInstruments(meter metric.Meter) instruments {
	var in instruments
	in.generations, _ = meter.Int64Counter("wizard_generations_total",
		metric.WithDescription("Total number of recipe generations and item batches started"))
	in.generationFailures, _ = meter.Int64Counter("wizard_generation_failures_total",
		metric.WithDescription("Total number of generations that failed"))
	in.budgetFallbacks, _ = meter.Int64Counter("wizard_budget_fallbacks_total",
		metric.WithDescription("Total number of AI budget suggestions replaced by the local calculation"))
	in.mealsCreated, _ = meter.Int64Counter("wizard_meals_created_total",
		metric.WithDescription("Total number of meals created on events"))
	in.recipesAttached, _ = meter.Int64Counter("wizard_recipes_attached_total",
		metric.WithDescription("Total number of recipes attached to meals"))
	in.generationDuration, _ = meter.Float64Histogram("wizard_generation_duration_seconds",
		metric.WithDescription("Duration of a single category generation in seconds"))
	return in
}

type Option func(*Wizard)

func WithSessionLogger(l mealwizard.SessionLogger) Option {
	return func(w *Wizard) { w.logger = l }
}

func WithTracer(t trace.Tracer) Option {
	return func(w *Wizard) { w.tracer = t }
}

func WithMeter(m metric.Meter) Option {
	return func(w *Wizard) { w.meter = m }
}

// Wizard is the state of one planning session. Components only read each
// other's state; each one mutates its own.
type Wizard struct {
	event    mealwizard.Event
	cfg      mealwizard.WizardConfig
	platform mealwizard.Platform

	logger mealwizard.SessionLogger
	tracer trace.Tracer
	meter  metric.Meter
	inst   instruments

	// mu guards the single-actor state below: step machine, health selection,
	// consider-health flag and budget engine.
	mu             sync.Mutex
	machine        *Machine
	health         *health.Selection
	considerHealth bool
	budget         *budget.Engine

	coordinator *generation.Coordinator
	selections  *selection.Store
	persister   *persist.Orchestrator

	logMu sync.Mutex
	seq   int
}

// Start loads the event and the account's participants and prepares a session
// at the health step with a fresh manual budget split. When the config asks
// for the AI strategy the suggestion is requested right away.
func Start(ctx context.Context, p mealwizard.Platform, eventID, accountID string, cfg mealwizard.WizardConfig, opts ...Option) (*Wizard, error) {
	w := &Wizard{
		cfg:            cfg,
		platform:       p,
		logger:         mealwizard.NewNoOpSessionLogger(),
		tracer:         otel.Tracer(mealwizard.TracerNameWizard),
		meter:          otel.Meter(mealwizard.MeterNameWizard),
		considerHealth: cfg.ConsiderHealth,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.inst = newInstruments(w.meter)

	ctx, span := w.tracer.Start(ctx, "Wizard.Start", trace.WithAttributes(attribute.String("event_id", eventID)))
	defer span.End()

	ev, err := p.GetEvent(ctx, eventID)
	if err != nil {
		span.SetStatus(codes.Error, "load event failed")
		span.RecordError(err)
		return nil, fmt.Errorf("load event %s: %w", eventID, err)
	}
	ev.SelectedCategories = mealwizard.SortCategories(ev.SelectedCategories)
	w.event = ev

	if accountID == "" {
		accountID = ev.AccountID
	}
	known, err := p.ListParticipants(ctx, accountID)
	if err != nil {
		span.SetStatus(codes.Error, "list participants failed")
		span.RecordError(err)
		return nil, fmt.Errorf("list participants of account %s: %w", accountID, err)
	}
	w.health = health.NewSelection(joinParticipants(ev.ParticipantIDs, known))

	w.budget, err = budget.NewEngine(ev.Budget, ev.SelectedCategories, p)
	if err != nil {
		return nil, fmt.Errorf("init budget: %w", err)
	}

	// The store reads candidates from the coordinator and the coordinator
	// selects through the store.
	var coordinator *generation.Coordinator
	w.selections = selection.NewStore(eventID, selection.CandidateFunc(func(cat mealwizard.MealCategory) []mealwizard.RecipeCandidate {
		return coordinator.Candidates(cat)
	}), p)
	coordinator = generation.NewCoordinator(eventID, ev.SelectedCategories, p, w.selections, generation.Options{
		Count: cfg.RecipesPerCategory,
	})
	w.coordinator = coordinator
	w.persister = persist.NewOrchestrator(p)
	w.machine = NewMachine(ev.SelectedCategories, w.canLeave)

	span.SetAttributes(
		attribute.Int("participants", len(ev.ParticipantIDs)),
		attribute.Int("categories", len(ev.SelectedCategories)),
		attribute.Float64("budget", ev.Budget),
	)
	slog.Info("WIZARD: Session started",
		"event_id", eventID,
		"participants", len(ev.ParticipantIDs),
		"categories", ev.SelectedCategories,
		"steps", w.machine.Steps(),
	)
	w.logStep("start", "", map[string]any{"steps": w.machine.Steps(), "budget": ev.Budget}, nil)

	if budget.Strategy(cfg.BudgetStrategy) == budget.StrategyAI {
		w.UseAIBudget(ctx)
	}
	return w, nil
}

// joinParticipants keeps the event's participants in event order. Ids missing
// from the account list are kept without a health profile.
func joinParticipants(ids []string, known []mealwizard.Participant) []mealwizard.Participant {
	out := make([]mealwizard.Participant, 0, len(ids))
	for _, id := range ids {
		i := slices.IndexFunc(known, func(p mealwizard.Participant) bool { return p.ID == id })
		if i < 0 {
			slog.Warn("WIZARD: Participant not found in account", "participant_id", id)
			out = append(out, mealwizard.Participant{ID: id})
			continue
		}
		out = append(out, known[i])
	}
	return out
}

func (w *Wizard) canLeave(s Step) bool {
	if s == StepBudget {
		return w.budget.CanAdvance()
	}
	return true
}

func (w *Wizard) Event() mealwizard.Event { return w.event }

// Step returns the current step and the active category cursor.
func (w *Wizard) Step() (Step, mealwizard.MealCategory) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.machine.Current(), w.machine.Active()
}

func (w *Wizard) Steps() []Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.machine.Steps()
}

func (w *Wizard) Next() (Step, error) {
	w.mu.Lock()
	from := w.machine.Current()
	to, err := w.machine.Next()
	w.mu.Unlock()

	w.logStep("next", "", map[string]any{"from": from, "to": to}, err)
	if err != nil {
		slog.Warn("WIZARD: Forward navigation rejected", "step", string(from), "error", err)
	}
	return to, err
}

func (w *Wizard) Back() (Step, error) {
	w.mu.Lock()
	from := w.machine.Current()
	to, err := w.machine.Back()
	w.mu.Unlock()

	w.logStep("back", "", map[string]any{"from": from, "to": to}, err)
	return to, err
}

// SetActiveCategory moves the category cursor of the current step.
func (w *Wizard) SetActiveCategory(cat mealwizard.MealCategory) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.machine.SetActive(cat)
}

func (w *Wizard) Participants() []mealwizard.Participant {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.health.Participants()
}

// ToggleParticipant flips whether a participant's health profile is considered.
func (w *Wizard) ToggleParticipant(id string) bool {
	w.mu.Lock()
	on := w.health.Toggle(id)
	w.mu.Unlock()

	w.logStep("toggle_participant", "", map[string]any{"participant_id": id, "selected": on}, nil)
	return on
}

func (w *Wizard) SetConsiderHealth(on bool) {
	w.mu.Lock()
	w.considerHealth = on
	w.mu.Unlock()
	w.logStep("consider_health", "", map[string]any{"enabled": on}, nil)
}

func (w *Wizard) ConsiderHealth() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.considerHealth
}

// HealthAggregate recomputes the label counts of the selected participants.
func (w *Wizard) HealthAggregate() mealwizard.HealthAggregate {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.health.Aggregate()
}

// UseManualBudget switches to the manual strategy, recomputing from weights.
func (w *Wizard) UseManualBudget() {
	w.mu.Lock()
	w.budget.Manual()
	w.mu.Unlock()
	w.logStep("budget_strategy", "", map[string]any{"strategy": budget.StrategyManual}, nil)
}

// UseAIBudget switches to the AI strategy. A failed suggestion is replaced by
// the local calculation and never blocks the session.
func (w *Wizard) UseAIBudget(ctx context.Context) budget.Outcome {
	ctx, span := w.tracer.Start(ctx, "Wizard.UseAIBudget")
	defer span.End()

	w.mu.Lock()
	aggregate := w.health.Aggregate()
	if !w.considerHealth {
		aggregate = mealwizard.HealthAggregate{}
	}
	w.mu.Unlock()

	// The remote call runs unlocked so navigation and generation go on meanwhile.
	suggestion := w.budget.Fetch(ctx, w.event.ID)

	w.mu.Lock()
	out := w.budget.Apply(w.event.ID, suggestion, aggregate)
	w.mu.Unlock()

	if out.FellBack {
		w.inst.budgetFallbacks.Add(ctx, 1)
		span.AddEvent("Budget fallback", trace.WithAttributes(attribute.String("cause", fmt.Sprint(out.Cause))))
	}
	w.logStep("budget_strategy", "", map[string]any{
		"strategy":        budget.StrategyAI,
		"fell_back":       out.FellBack,
		"recommendations": out.Recommendations,
	}, out.Cause)
	return out
}

func (w *Wizard) SetPercentage(cat mealwizard.MealCategory, pct float64) error {
	w.mu.Lock()
	err := w.budget.SetPercentage(cat, pct)
	w.mu.Unlock()
	w.logStep("set_percentage", cat, map[string]any{"percentage": pct}, err)
	return err
}

func (w *Wizard) SetAmount(cat mealwizard.MealCategory, amount float64) error {
	w.mu.Lock()
	err := w.budget.SetAmount(cat, amount)
	w.mu.Unlock()
	w.logStep("set_amount", cat, map[string]any{"amount": amount}, err)
	return err
}

// BalanceBudget puts the remainder of the manual split on its largest
// primary category.
func (w *Wizard) BalanceBudget() (mealwizard.MealCategory, bool) {
	w.mu.Lock()
	cat, ok := w.budget.Balance()
	w.mu.Unlock()
	if ok {
		w.logStep("balance_budget", cat, nil, nil)
	}
	return cat, ok
}

// BudgetView is a read-only snapshot of the budget step.
type BudgetView struct {
	Strategy        budget.Strategy
	Total           float64
	Allocations     []mealwizard.MealBudgetAllocation
	Errors          map[mealwizard.MealCategory]string
	PercentageSum   float64
	Remainder       float64
	CanAdvance      bool
	Recommendations []string
}

func (w *Wizard) Budget() BudgetView {
	w.mu.Lock()
	defer w.mu.Unlock()
	return BudgetView{
		Strategy:        w.budget.Strategy(),
		Total:           w.budget.Total(),
		Allocations:     w.budget.Allocations(),
		Errors:          w.budget.Errors(),
		PercentageSum:   w.budget.PercentageSum(),
		Remainder:       w.budget.Remainder(),
		CanAdvance:      w.budget.CanAdvance(),
		Recommendations: w.budget.Recommendations(),
	}
}

// request builds a generation request from the current budget and health state.
func (w *Wizard) request(cat mealwizard.MealCategory, searchTerm string) generation.Request {
	w.mu.Lock()
	defer w.mu.Unlock()

	req := generation.Request{
		Category:       cat,
		Budget:         w.budget.BudgetFor(cat),
		Cuisines:       w.cfg.Cuisines,
		SearchTerm:     searchTerm,
		ConsiderHealth: w.considerHealth,
	}
	if w.considerHealth {
		req.TargetParticipantIDs = w.health.IDs()
	}
	return req
}

// Generate requests recipes for one primary category.
func (w *Wizard) Generate(ctx context.Context, cat mealwizard.MealCategory, searchTerm string) error {
	ctx, span := w.tracer.Start(ctx, "Wizard.Generate", trace.WithAttributes(attribute.String("category", string(cat))))
	defer span.End()

	err := w.generate(ctx, w.request(cat, searchTerm))
	if err != nil {
		span.SetStatus(codes.Error, "generation failed")
		span.RecordError(err)
	}
	return err
}

func (w *Wizard) generate(ctx context.Context, req generation.Request) error {
	attrs := metric.WithAttributes(attribute.String("category", string(req.Category)))
	w.inst.generations.Add(ctx, 1, attrs)

	start := time.Now()
	err := w.coordinator.Generate(ctx, req)
	w.inst.generationDuration.Record(ctx, time.Since(start).Seconds(), attrs)

	if err != nil {
		w.inst.generationFailures.Add(ctx, 1, attrs)
	}
	w.logStep("generate", req.Category, map[string]any{
		"search_term": req.SearchTerm,
		"candidates":  len(w.coordinator.Candidates(req.Category)),
	}, err)
	return err
}

// GenerateAll generates every primary category concurrently and returns the
// failures per category.
func (w *Wizard) GenerateAll(ctx context.Context) map[mealwizard.MealCategory]error {
	ctx, span := w.tracer.Start(ctx, "Wizard.GenerateAll")
	defer span.End()

	primary, _ := mealwizard.SplitCategories(w.event.SelectedCategories)
	reqs := make([]generation.Request, 0, len(primary))
	for _, cat := range primary {
		reqs = append(reqs, w.request(cat, ""))
	}

	attrs := metric.WithAttributes(attribute.String("category", "all"))
	w.inst.generations.Add(ctx, int64(len(reqs)), attrs)
	start := time.Now()
	errs := w.coordinator.GenerateAll(ctx, reqs)
	w.inst.generationDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	w.inst.generationFailures.Add(ctx, int64(len(errs)), attrs)

	span.SetAttributes(attribute.Int("categories", len(reqs)), attribute.Int("failures", len(errs)))
	for _, cat := range primary {
		w.logStep("generate", cat, map[string]any{"candidates": len(w.coordinator.Candidates(cat))}, errs[cat])
	}
	return errs
}

// AddItems creates the named items in an add-on category and refreshes the
// add-on candidates so the new items show up selected.
func (w *Wizard) AddItems(ctx context.Context, cat mealwizard.MealCategory, names []string) ([]string, error) {
	ctx, span := w.tracer.Start(ctx, "Wizard.AddItems", trace.WithAttributes(attribute.String("category", string(cat))))
	defer span.End()

	attrs := metric.WithAttributes(attribute.String("category", string(cat)))
	w.inst.generations.Add(ctx, 1, attrs)

	created, err := w.coordinator.AddItems(ctx, cat, names)
	w.logStep("add_items", cat, map[string]any{"names": names, "created": created}, err)
	if err != nil {
		w.inst.generationFailures.Add(ctx, 1, attrs)
		span.SetStatus(codes.Error, "add items failed")
		span.RecordError(err)
		if len(created) == 0 {
			return nil, err
		}
	}

	if rerr := w.RefreshItems(ctx); rerr != nil && err == nil {
		return created, rerr
	}
	return created, err
}

// RefreshItems reloads the persisted add-on items.
func (w *Wizard) RefreshItems(ctx context.Context) error {
	err := w.coordinator.RefreshItems(ctx)
	if err != nil {
		slog.Error("WIZARD: Failed to refresh items", "event_id", w.event.ID, "error", err)
	}
	return err
}

func (w *Wizard) Candidates(cat mealwizard.MealCategory) []mealwizard.RecipeCandidate {
	return w.coordinator.Candidates(cat)
}

func (w *Wizard) Generation(cat mealwizard.MealCategory) (generation.CategoryState, bool) {
	return w.coordinator.State(cat)
}

func (w *Wizard) Selected(cat mealwizard.MealCategory) []string {
	return w.selections.Selected(cat)
}

func (w *Wizard) CountSelected() int {
	return w.selections.CountSelected()
}

// Toggle flips the selection of a candidate and reports whether it is now selected.
func (w *Wizard) Toggle(cat mealwizard.MealCategory, id string) (bool, error) {
	on, err := w.selections.Toggle(cat, id)
	w.logStep("toggle", cat, map[string]any{"id": id, "selected": on}, err)
	return on, err
}

// Remove deselects a candidate. Add-on items are deleted on the host and
// dropped from the candidates.
func (w *Wizard) Remove(ctx context.Context, cat mealwizard.MealCategory, id string) error {
	err := w.selections.Remove(ctx, cat, id)
	if err == nil && cat.IsAddOn() {
		w.coordinator.Forget(cat, id)
	}
	w.logStep("remove", cat, map[string]any{"id": id}, err)
	return err
}

// Save persists the selections from the review step. Recipes attached before
// a failure are marked saved, so saving again only retries the rest.
func (w *Wizard) Save(ctx context.Context) (persist.Result, error) {
	ctx, span := w.tracer.Start(ctx, "Wizard.Save", trace.WithAttributes(attribute.String("event_id", w.event.ID)))
	defer span.End()

	if step, _ := w.Step(); step != StepReview {
		return persist.Result{}, fmt.Errorf("%w: at %s", ErrNotReviewStep, step)
	}

	res, err := w.persister.Save(ctx, w.event.ID, w.selections)
	for cat, ids := range res.Attached {
		w.coordinator.MarkSaved(cat, ids)
	}

	w.inst.mealsCreated.Add(ctx, int64(len(res.MealsCreated)))
	w.inst.recipesAttached.Add(ctx, int64(res.RecipesAttached))
	span.SetAttributes(
		attribute.Int("meals_created", len(res.MealsCreated)),
		attribute.Int("recipes_attached", res.RecipesAttached),
	)
	if err != nil {
		span.SetStatus(codes.Error, "save failed")
		span.RecordError(err)
	}

	w.logStep("save", "", map[string]any{
		"meals_created":    len(res.MealsCreated),
		"recipes_attached": res.RecipesAttached,
		"already_saved":    res.AlreadySaved,
	}, err)
	return res, err
}

// Summary is a snapshot of the planned meals for reporting.
type Summary struct {
	EventID     string
	EventName   string
	Budget      BudgetView
	Selected    map[mealwizard.MealCategory][]mealwizard.RecipeCandidate
	Categories  []mealwizard.MealCategory
	CountChosen int
}

func (w *Wizard) Summary() Summary {
	s := Summary{
		EventID:     w.event.ID,
		EventName:   w.event.Name,
		Budget:      w.Budget(),
		Selected:    make(map[mealwizard.MealCategory][]mealwizard.RecipeCandidate),
		Categories:  w.selections.Categories(),
		CountChosen: w.selections.CountSelected(),
	}
	for _, cat := range s.Categories {
		s.Selected[cat] = w.selections.SelectedCandidates(cat)
	}
	return s
}

func (w *Wizard) logStep(action string, cat mealwizard.MealCategory, details any, err error) {
	step, _ := w.Step()

	w.logMu.Lock()
	defer w.logMu.Unlock()

	w.seq++
	entry := mealwizard.StepLog{
		Sequence:  w.seq,
		Timestamp: time.Now(),
		Step:      string(step),
		Action:    action,
		Category:  cat,
		Details:   details,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if lerr := w.logger.LogStep(entry); lerr != nil {
		slog.Error("WIZARD: Failed to log step", "action", action, "error", lerr)
	}
}

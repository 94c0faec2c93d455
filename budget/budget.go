// Package budget splits an event budget across its primary meal categories,
// either from static weights or from a remote AI suggestion with a local fallback.
package budget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"mealwizard"
)

type Strategy string

const (
	StrategyManual Strategy = "manual"
	StrategyAI     Strategy = "ai"
)

const (
	// healthBoost is the weight multiplier applied by the local fallback when
	// the health complexity exceeds complexityThreshold.
	healthBoost         = 1.15
	complexityThreshold = 2
)

var (
	ErrUnknownCategory = errors.New("category is not part of the allocation")
	ErrEmptySuggestion = errors.New("budget suggestion returned no allocations")

	hundred = decimal.NewFromInt(100)
)

// Outcome describes how an AI allocation was produced.
type Outcome struct {
	FellBack        bool
	Cause           error
	Recommendations []string
}

// Engine owns the allocation state of one planning session.
type Engine struct {
	total      decimal.Decimal
	categories []mealwizard.MealCategory
	weights    map[mealwizard.MealCategory]int
	suggester  mealwizard.BudgetSuggester
	validate   *validator.Validate

	strategy        Strategy
	allocations     []mealwizard.MealBudgetAllocation
	recommendations []string
}

type Option func(*Engine)

// WithWeights overrides the default per-category weights.
func WithWeights(weights map[mealwizard.MealCategory]int) Option {
	return func(e *Engine) {
		for c, w := range weights {
			e.weights[c] = w
		}
	}
}

// NewEngine creates an engine for the primary categories of an event and
// computes the initial manual allocation.
func NewEngine(total float64, categories []mealwizard.MealCategory, suggester mealwizard.BudgetSuggester, opts ...Option) (*Engine, error) {
	if total < 0 {
		return nil, fmt.Errorf("total budget must not be negative: %v", total)
	}

	primary, _ := mealwizard.SplitCategories(categories)

	e := &Engine{
		total:      decimal.NewFromFloat(total),
		categories: primary,
		weights:    make(map[mealwizard.MealCategory]int, len(primary)),
		suggester:  suggester,
		validate:   validator.New(),
	}
	for _, c := range primary {
		e.weights[c] = c.Defaults().Weight
	}
	for _, opt := range opts {
		opt(e)
	}

	e.Manual()
	return e, nil
}

func (e *Engine) Strategy() Strategy { return e.strategy }

func (e *Engine) Total() float64 { return e.total.InexactFloat64() }

func (e *Engine) Categories() []mealwizard.MealCategory { return slices.Clone(e.categories) }

func (e *Engine) Recommendations() []string { return slices.Clone(e.recommendations) }

// Allocations returns a copy of the current allocation records.
func (e *Engine) Allocations() []mealwizard.MealBudgetAllocation {
	return slices.Clone(e.allocations)
}

// Allocation returns the record of one category.
func (e *Engine) Allocation(cat mealwizard.MealCategory) (mealwizard.MealBudgetAllocation, bool) {
	i := e.index(cat)
	if i < 0 {
		return mealwizard.MealBudgetAllocation{}, false
	}
	return e.allocations[i], true
}

// BudgetFor returns the budget amount of a category, or nil when it has none.
func (e *Engine) BudgetFor(cat mealwizard.MealCategory) *float64 {
	a, ok := e.Allocation(cat)
	if !ok {
		return nil
	}
	amount := a.BudgetAmount
	return &amount
}

// Manual switches to the manual strategy and recomputes the split from weights.
func (e *Engine) Manual() {
	e.strategy = StrategyManual
	e.recommendations = nil
	e.allocations = e.weighted(1, "")
}

// SetPercentage sets one category's percentage and recomputes its amount.
// Sibling categories are left untouched.
func (e *Engine) SetPercentage(cat mealwizard.MealCategory, pct float64) error {
	i := e.index(cat)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownCategory, cat)
	}
	if err := e.validate.Var(pct, "gte=0,lte=100"); err != nil {
		return fmt.Errorf("invalid percentage %v for %s: %w", pct, cat, err)
	}

	p := decimal.NewFromFloat(pct)
	e.allocations[i].Percentage = pct
	e.allocations[i].BudgetAmount = amountOf(p, e.total)
	return nil
}

// SetAmount sets one category's amount and recomputes every percentage against
// the new allocated total.
func (e *Engine) SetAmount(cat mealwizard.MealCategory, amount float64) error {
	i := e.index(cat)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownCategory, cat)
	}
	if err := e.validate.Var(amount, "gte=0"); err != nil {
		return fmt.Errorf("invalid amount %v for %s: %w", amount, cat, err)
	}

	e.allocations[i].BudgetAmount = amount

	allocated := decimal.Zero
	for _, a := range e.allocations {
		allocated = allocated.Add(decimal.NewFromFloat(a.BudgetAmount))
	}

	for j := range e.allocations {
		if allocated.IsZero() {
			e.allocations[j].Percentage = 0
			continue
		}
		e.allocations[j].Percentage = decimal.NewFromFloat(e.allocations[j].BudgetAmount).
			Div(allocated).Mul(hundred).Round(0).InexactFloat64()
	}
	return nil
}

// Suggestion is a split fetched from the suggester and not yet applied.
type Suggestion struct {
	allocations     []mealwizard.MealBudgetAllocation
	recommendations []string
	err             error
}

// Suggest switches to the AI strategy and asks the suggester for a split. A
// failed or unusable suggestion falls back to a local weighted split; the
// strategy stays AI either way.
func (e *Engine) Suggest(ctx context.Context, eventID string, aggregate mealwizard.HealthAggregate) Outcome {
	return e.Apply(eventID, e.Fetch(ctx, eventID), aggregate)
}

// Fetch calls the suggester. It touches no allocation state, so callers may
// run it without holding the lock that guards the engine.
func (e *Engine) Fetch(ctx context.Context, eventID string) Suggestion {
	allocations, recommendations, err := e.fromSuggester(ctx, eventID)
	return Suggestion{allocations: allocations, recommendations: recommendations, err: err}
}

// Apply switches to the AI strategy and stores a fetched suggestion, or the
// local fallback when the suggestion failed.
func (e *Engine) Apply(eventID string, s Suggestion, aggregate mealwizard.HealthAggregate) Outcome {
	e.strategy = StrategyAI

	if s.err == nil {
		e.allocations = s.allocations
		e.recommendations = s.recommendations
		slog.Info("BUDGET: Applied AI suggestion", "event_id", eventID, "categories", len(s.allocations))
		return Outcome{Recommendations: slices.Clone(s.recommendations)}
	}

	slog.Warn("BUDGET: AI suggestion failed, using local calculation", "event_id", eventID, "error", s.err)

	boost, reasoning := 1.0, "Local estimate from default meal weights."
	if c := aggregate.Complexity(); c > complexityThreshold {
		boost = healthBoost
		reasoning = fmt.Sprintf("Local estimate from default meal weights, adjusted for %d dietary restrictions and allergies.", c)
	}
	e.allocations = e.weighted(boost, reasoning)
	e.recommendations = nil

	return Outcome{FellBack: true, Cause: s.err}
}

func (e *Engine) fromSuggester(ctx context.Context, eventID string) ([]mealwizard.MealBudgetAllocation, []string, error) {
	if e.suggester == nil {
		return nil, nil, errors.New("no budget suggester configured")
	}

	s, err := e.suggester.SuggestBudget(ctx, eventID)
	if err != nil {
		return nil, nil, fmt.Errorf("suggest budget: %w", err)
	}
	if len(s.Allocations) == 0 {
		return nil, nil, ErrEmptySuggestion
	}

	out := make([]mealwizard.MealBudgetAllocation, 0, len(s.Allocations))
	for _, sa := range s.Allocations {
		a := mealwizard.MealBudgetAllocation{
			Category:      sa.Category,
			BudgetAmount:  sa.SuggestedBudget,
			Percentage:    sa.Percentage,
			MinPercentage: sa.Category.Defaults().MinPercentage,
			Reasoning:     sa.Reasoning,
		}
		if err := e.validate.Struct(a); err != nil {
			return nil, nil, fmt.Errorf("invalid suggested allocation for %q: %w", sa.Category, err)
		}
		out = append(out, a)
	}
	return out, s.Recommendations, nil
}

// weighted normalizes the category weights, each multiplied by boost.
func (e *Engine) weighted(boost float64, reasoning string) []mealwizard.MealBudgetAllocation {
	b := decimal.NewFromFloat(boost)

	sum := decimal.Zero
	for _, c := range e.categories {
		sum = sum.Add(decimal.NewFromInt(int64(e.weights[c])).Mul(b))
	}

	out := make([]mealwizard.MealBudgetAllocation, 0, len(e.categories))
	for _, c := range e.categories {
		pct := decimal.Zero
		if !sum.IsZero() {
			pct = decimal.NewFromInt(int64(e.weights[c])).Mul(b).Div(sum).Mul(hundred).Round(0)
		}
		out = append(out, mealwizard.MealBudgetAllocation{
			Category:      c,
			Percentage:    pct.InexactFloat64(),
			BudgetAmount:  amountOf(pct, e.total),
			MinPercentage: c.Defaults().MinPercentage,
			Reasoning:     reasoning,
		})
	}
	return out
}

// Errors returns a message per category whose percentage is below its minimum.
func (e *Engine) Errors() map[mealwizard.MealCategory]string {
	errs := make(map[mealwizard.MealCategory]string)
	for _, a := range e.allocations {
		if a.Percentage < a.MinPercentage {
			errs[a.Category] = fmt.Sprintf("%s needs at least %v%% of the budget", a.Category, a.MinPercentage)
		}
	}
	return errs
}

// PercentageSum sums the percentages of the primary categories.
func (e *Engine) PercentageSum() float64 {
	return e.percentageSum().InexactFloat64()
}

// Remainder is what the primary percentages are missing to reach 100.
func (e *Engine) Remainder() float64 {
	return hundred.Sub(e.percentageSum()).InexactFloat64()
}

func (e *Engine) percentageSum() decimal.Decimal {
	sum := decimal.Zero
	for _, a := range e.allocations {
		if a.Category.IsPrimary() {
			sum = sum.Add(decimal.NewFromFloat(a.Percentage))
		}
	}
	return sum
}

// CanAdvance reports whether the budget step may be left. An event without
// primary categories has nothing to split and always passes.
func (e *Engine) CanAdvance() bool {
	if e.strategy == StrategyAI || len(e.categories) == 0 {
		return true
	}
	return len(e.Errors()) == 0 && e.percentageSum().Equal(hundred)
}

func (e *Engine) index(cat mealwizard.MealCategory) int {
	return slices.IndexFunc(e.allocations, func(a mealwizard.MealBudgetAllocation) bool {
		return a.Category == cat
	})
}

func amountOf(pct, total decimal.Decimal) float64 {
	return pct.Div(hundred).Mul(total).Round(0).InexactFloat64()
}

// Balance moves the remainder onto the primary category with the largest
// percentage so the split sums to exactly 100. It reports the category it
// adjusted, or false when there was nothing to move.
func (e *Engine) Balance() (mealwizard.MealCategory, bool) {
	rem := hundred.Sub(e.percentageSum())
	if rem.IsZero() {
		return "", false
	}

	largest := -1
	for i, a := range e.allocations {
		if !a.Category.IsPrimary() {
			continue
		}
		if largest < 0 || a.Percentage > e.allocations[largest].Percentage {
			largest = i
		}
	}
	if largest < 0 {
		return "", false
	}

	a := &e.allocations[largest]
	p := decimal.NewFromFloat(a.Percentage).Add(rem)
	if p.IsNegative() || p.GreaterThan(hundred) {
		return "", false
	}
	a.Percentage = p.InexactFloat64()
	a.BudgetAmount = amountOf(p, e.total)
	slog.Info("BUDGET: Balanced split", "category", string(a.Category), "percentage", a.Percentage)
	return a.Category, true
}

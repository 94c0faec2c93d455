// Package generation coordinates per-category recipe generation and add-on item
// creation, merging results into deduplicated candidate lists that keep the
// organizer's selections.
package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"mealwizard"
)

var (
	ErrAlreadyGenerating = errors.New("generation already in progress for category")
	ErrNotPrimary        = errors.New("category does not take generated recipes")
	ErrNotAddOn          = errors.New("category does not take line items")
	ErrUnknownCategory   = errors.New("category is not part of the event")
)

const (
	defaultCount    = 3
	defaultItemUnit = "servings"
)

// Selector is the read/select surface of the selection store.
type Selector interface {
	Selected(cat mealwizard.MealCategory) []string
	Select(cat mealwizard.MealCategory, ids ...string) error
	Retain(cat mealwizard.MealCategory, ids []string)
}

type platform interface {
	mealwizard.RecipeGenerator
	mealwizard.ItemStore
}

// Request asks for recipes of one primary category.
type Request struct {
	Category             mealwizard.MealCategory
	Budget               *float64
	Cuisines             []string
	SearchTerm           string
	ConsiderHealth       bool
	TargetParticipantIDs []string
	// AutoSelect selects every new candidate once generation succeeds.
	AutoSelect bool
}

type Options struct {
	// Count is the number of recipes requested per generation.
	Count int
	// ItemQuantity and ItemUnit are used for created add-on items.
	ItemQuantity float64
	ItemUnit     string
}

// Coordinator owns the candidate lists of one planning session. It is safe for
// concurrent use; different categories generate independently.
type Coordinator struct {
	eventID  string
	platform platform
	selector Selector
	opts     Options
	validate *validator.Validate
	newID    func() string

	mu     sync.Mutex
	states map[mealwizard.MealCategory]*CategoryState
}

func NewCoordinator(eventID string, categories []mealwizard.MealCategory, p platform, sel Selector, opts Options) *Coordinator {
	if opts.Count <= 0 {
		opts.Count = defaultCount
	}
	if opts.ItemQuantity <= 0 {
		opts.ItemQuantity = 1
	}
	if opts.ItemUnit == "" {
		opts.ItemUnit = defaultItemUnit
	}

	c := &Coordinator{
		eventID:  eventID,
		platform: p,
		selector: sel,
		opts:     opts,
		validate: validator.New(),
		newID:    uuid.NewString,
		states:   make(map[mealwizard.MealCategory]*CategoryState),
	}
	for _, cat := range mealwizard.SortCategories(categories) {
		c.states[cat] = &CategoryState{Category: cat}
	}
	return c
}

// State returns a copy of the category's record.
func (c *Coordinator) State(cat mealwizard.MealCategory) (CategoryState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.states[cat]
	if !ok {
		return CategoryState{}, false
	}
	return st.clone(), true
}

// States returns a copy of every record in canonical category order.
func (c *Coordinator) States() []CategoryState {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]CategoryState, 0, len(c.states))
	for _, cat := range mealwizard.AllCategories() {
		if st, ok := c.states[cat]; ok {
			out = append(out, st.clone())
		}
	}
	return out
}

// Candidates returns the candidate list of a category.
func (c *Coordinator) Candidates(cat mealwizard.MealCategory) []mealwizard.RecipeCandidate {
	c.mu.Lock()
	defer c.mu.Unlock()

	if st, ok := c.states[cat]; ok {
		return slices.Clone(st.Candidates)
	}
	return nil
}

// Generate requests recipes for a primary category and merges them with the
// selected prior candidates. On failure the prior candidates are kept and the
// category is left in StatusError.
func (c *Coordinator) Generate(ctx context.Context, req Request) error {
	if !req.Category.IsPrimary() {
		return fmt.Errorf("%w: %s", ErrNotPrimary, req.Category)
	}

	prior, err := c.begin(req.Category, req.AutoSelect)
	if err != nil {
		return err
	}

	greq := mealwizard.GenerateRequest{
		Category:             req.Category,
		Count:                c.opts.Count,
		Budget:               req.Budget,
		Cuisines:             req.Cuisines,
		SearchTerm:           strings.TrimSpace(req.SearchTerm),
		ConsiderHealth:       req.ConsiderHealth,
		TargetParticipantIDs: req.TargetParticipantIDs,
	}
	if !req.ConsiderHealth {
		greq.TargetParticipantIDs = nil
	}

	slog.Info("GENERATION: Requesting recipes",
		"event_id", c.eventID,
		"category", string(req.Category),
		"count", greq.Count,
		"search_term", greq.SearchTerm,
		"consider_health", greq.ConsiderHealth,
	)

	raw, err := c.generate(ctx, greq)
	if err != nil {
		c.fail(req.Category, err)
		slog.Error("GENERATION: Failed to generate recipes", "category", string(req.Category), "error", err)
		return fmt.Errorf("generate %s recipes: %w", req.Category, err)
	}

	fresh := make([]mealwizard.RecipeCandidate, 0, len(raw))
	for _, r := range raw {
		fresh = append(fresh, c.toCandidate(r))
	}
	merged := Merge(prior, c.selector.Selected(req.Category), fresh)

	c.mu.Lock()
	st := c.states[req.Category]
	st.Candidates = merged
	st.Status = StatusReady
	st.Err = nil
	st.LastSearchTerm = greq.SearchTerm
	c.mu.Unlock()

	// Selections made while the call was in flight may point at dropped candidates.
	c.selector.Retain(req.Category, ids(merged))

	slog.Info("GENERATION: Recipes merged",
		"category", string(req.Category),
		"generated", len(fresh),
		"candidates", len(merged),
	)

	c.afterGenerate(req.Category)
	return nil
}

func (c *Coordinator) generate(ctx context.Context, req mealwizard.GenerateRequest) ([]mealwizard.RawRecipe, error) {
	if err := c.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid generation request: %w", err)
	}
	return c.platform.GenerateRecipes(ctx, c.eventID, req)
}

// GenerateAll runs one generation per request concurrently. Failures are
// reported per category and never cancel sibling generations.
func (c *Coordinator) GenerateAll(ctx context.Context, reqs []Request) map[mealwizard.MealCategory]error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs = make(map[mealwizard.MealCategory]error)
	)

	for _, req := range reqs {
		g.Go(func() error {
			if err := c.Generate(ctx, req); err != nil {
				mu.Lock()
				errs[req.Category] = err
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return errs
}

// AddItems creates a persisted line item for every name not already present in
// the add-on category. Names are matched case-sensitively; duplicates are
// skipped. The new items become candidates on the next RefreshItems, where they
// are selected automatically. A failed create aborts the remaining names.
func (c *Coordinator) AddItems(ctx context.Context, cat mealwizard.MealCategory, names []string) ([]string, error) {
	if !cat.IsAddOn() {
		return nil, fmt.Errorf("%w: %s", ErrNotAddOn, cat)
	}
	if _, err := c.begin(cat, false); err != nil {
		return nil, err
	}

	existing, err := c.platform.ListItems(ctx, c.eventID)
	if err != nil {
		c.fail(cat, err)
		return nil, fmt.Errorf("list %s items: %w", cat, err)
	}

	present := make(map[string]bool)
	for _, it := range existing {
		if it.Category == cat {
			present[it.Name] = true
		}
	}

	var created []string
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if present[name] {
			slog.Info("GENERATION: Skipping existing item", "category", string(cat), "name", name)
			continue
		}

		id, err := c.platform.CreateItem(ctx, c.eventID, mealwizard.NewItem{
			Name:     name,
			Category: cat,
			Quantity: c.opts.ItemQuantity,
			Unit:     c.opts.ItemUnit,
		})
		if err != nil {
			c.fail(cat, err)
			slog.Error("GENERATION: Failed to create item", "category", string(cat), "name", name, "error", err)
			return created, fmt.Errorf("create %s item %q: %w", cat, name, err)
		}
		present[name] = true
		created = append(created, id)
	}

	c.mu.Lock()
	st := c.states[cat]
	st.Status = StatusReady
	st.Err = nil
	st.LastSearchTerm = strings.Join(names, ", ")
	if len(created) > 0 {
		st.AutoSelect = true
	}
	c.mu.Unlock()

	slog.Info("GENERATION: Items created", "category", string(cat), "requested", len(names), "created", len(created))
	return created, nil
}

// RefreshItems rebuilds the add-on candidate lists from the persisted items and
// runs the auto-select hook for each add-on category.
func (c *Coordinator) RefreshItems(ctx context.Context) error {
	items, err := c.platform.ListItems(ctx, c.eventID)
	if err != nil {
		return fmt.Errorf("list items: %w", err)
	}

	byCat := make(map[mealwizard.MealCategory][]mealwizard.RecipeCandidate)
	for _, it := range items {
		byCat[it.Category] = append(byCat[it.Category], fromItem(it))
	}

	var refreshed []mealwizard.MealCategory
	c.mu.Lock()
	for cat, st := range c.states {
		if !cat.IsAddOn() {
			continue
		}
		st.Candidates = byCat[cat]
		refreshed = append(refreshed, cat)
	}
	c.mu.Unlock()

	for _, cat := range refreshed {
		c.selector.Retain(cat, ids(byCat[cat]))
		c.afterGenerate(cat)
	}
	return nil
}

// Forget drops a candidate from a category's list.
func (c *Coordinator) Forget(cat mealwizard.MealCategory, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if st, ok := c.states[cat]; ok {
		st.Candidates = slices.DeleteFunc(st.Candidates, func(rc mealwizard.RecipeCandidate) bool { return rc.ID == id })
	}
}

// MarkSaved flags the given candidates as attached to the remote event.
func (c *Coordinator) MarkSaved(cat mealwizard.MealCategory, ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.states[cat]
	if !ok {
		return
	}
	for i := range st.Candidates {
		if slices.Contains(ids, st.Candidates[i].ID) {
			st.Candidates[i].IsSaved = true
		}
	}
}

// begin moves a category into StatusGenerating and returns its prior candidates.
func (c *Coordinator) begin(cat mealwizard.MealCategory, autoSelect bool) ([]mealwizard.RecipeCandidate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.states[cat]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, cat)
	}
	if st.Status == StatusGenerating {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyGenerating, cat)
	}

	st.Status = StatusGenerating
	st.Err = nil
	if autoSelect {
		st.AutoSelect = true
	}
	return slices.Clone(st.Candidates), nil
}

// fail leaves the candidates untouched and records the error.
func (c *Coordinator) fail(cat mealwizard.MealCategory, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.states[cat]
	st.Status = StatusError
	st.Err = err
}

// afterGenerate selects every not-yet-selected candidate of a category flagged
// for auto-selection, once, then clears the flag. It must run without c.mu held.
func (c *Coordinator) afterGenerate(cat mealwizard.MealCategory) {
	c.mu.Lock()
	st, ok := c.states[cat]
	if !ok || !st.AutoSelect || len(st.Candidates) == 0 {
		c.mu.Unlock()
		return
	}
	st.AutoSelect = false
	candidates := ids(st.Candidates)
	c.mu.Unlock()

	selected := c.selector.Selected(cat)
	pending := slices.DeleteFunc(candidates, func(id string) bool { return slices.Contains(selected, id) })
	if len(pending) == 0 {
		return
	}

	if err := c.selector.Select(cat, pending...); err != nil {
		slog.Error("GENERATION: Auto-select failed", "category", string(cat), "error", err)
		return
	}
	slog.Info("GENERATION: Auto-selected candidates", "category", string(cat), "count", len(pending))
}

func (c *Coordinator) toCandidate(r mealwizard.RawRecipe) mealwizard.RecipeCandidate {
	id := strings.TrimSpace(r.ID)
	if id == "" {
		id = c.newID()
	}
	return mealwizard.RecipeCandidate{
		ID:              id,
		Name:            r.Name,
		Description:     r.Description,
		Cuisine:         r.Cuisine,
		EstimatedCost:   r.EstimatedCost,
		PrepTimeMinutes: r.PrepTimeMinutes,
		Ingredients:     r.Ingredients,
		DietaryTags:     r.DietaryTags,
	}
}

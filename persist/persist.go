// Package persist saves the selected recipes of a planning session against the
// remote event, creating at most one meal per category.
package persist

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"mealwizard"
)

const mealNotes = "Planned with the event meal wizard"

// Selection is the read side of the selection store.
type Selection interface {
	Categories() []mealwizard.MealCategory
	SelectedCandidates(cat mealwizard.MealCategory) []mealwizard.RecipeCandidate
}

type platform interface {
	GetEvent(ctx context.Context, eventID string) (mealwizard.Event, error)
	mealwizard.MealWriter
}

// Result reports what a save did, including the part done before a failure.
type Result struct {
	MealsCreated    []mealwizard.Meal                    `json:"meals_created"`
	Attached        map[mealwizard.MealCategory][]string `json:"attached"`
	RecipesAttached int                                  `json:"recipes_attached"`
	AlreadySaved    int                                  `json:"already_saved"`
}

// SaveError is the single error surfaced when a save aborts.
type SaveError struct {
	Category mealwizard.MealCategory
	Stage    string
	Err      error
}

func (e *SaveError) Error() string {
	if e.Category == "" {
		return fmt.Sprintf("save aborted at %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("save aborted at %s for %s: %v", e.Stage, e.Category, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }

// Orchestrator writes selections to the host. Saves are serialized so the
// meal lookup and creation of a category never race.
type Orchestrator struct {
	platform platform
	mu       sync.Mutex
}

func NewOrchestrator(p platform) *Orchestrator {
	return &Orchestrator{platform: p}
}

// Save attaches every selected, not yet saved recipe of the primary categories
// to the event, creating a missing meal once per category. Add-on categories
// are skipped; their items were persisted when created. The first failure
// aborts the loop; work done before it stays persisted.
func (o *Orchestrator) Save(ctx context.Context, eventID string, sel Selection) (Result, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	res := Result{Attached: make(map[mealwizard.MealCategory][]string)}

	ev, err := o.platform.GetEvent(ctx, eventID)
	if err != nil {
		return res, &SaveError{Stage: "load event", Err: err}
	}
	servings := servingsOf(ev)

	for _, cat := range sel.Categories() {
		if cat.IsAddOn() {
			slog.Info("PERSIST: Skipping add-on category", "category", string(cat))
			continue
		}

		candidates := sel.SelectedCandidates(cat)
		pending := slices.DeleteFunc(slices.Clone(candidates), func(c mealwizard.RecipeCandidate) bool { return c.IsSaved })
		res.AlreadySaved += len(candidates) - len(pending)
		if len(pending) == 0 {
			continue
		}

		meal, ok := ev.MealFor(cat)
		if !ok {
			nm := mealwizard.NewMeal{
				Category:      cat,
				ScheduledTime: cat.Defaults().ScheduledTime,
				Notes:         mealNotes,
			}
			id, err := o.platform.CreateMeal(ctx, eventID, nm)
			if err != nil {
				slog.Error("PERSIST: Failed to create meal", "category", string(cat), "error", err)
				return res, &SaveError{Category: cat, Stage: "create meal", Err: err}
			}
			meal = mealwizard.Meal{ID: id, Category: cat, ScheduledTime: nm.ScheduledTime, Notes: nm.Notes}
			ev.ExistingMeals = append(ev.ExistingMeals, meal)
			res.MealsCreated = append(res.MealsCreated, meal)
			slog.Info("PERSIST: Created meal", "category", string(cat), "meal_id", id)
		}

		for _, c := range pending {
			err := o.platform.AttachRecipe(ctx, eventID, meal.ID, mealwizard.RecipeAttachment{
				RecipeID: c.ID,
				Servings: servings,
			})
			if err != nil {
				slog.Error("PERSIST: Failed to attach recipe", "category", string(cat), "recipe_id", c.ID, "error", err)
				return res, &SaveError{Category: cat, Stage: "attach recipe " + c.ID, Err: err}
			}
			res.Attached[cat] = append(res.Attached[cat], c.ID)
			res.RecipesAttached++
		}
	}

	slog.Info("PERSIST: Save complete",
		"event_id", eventID,
		"meals_created", len(res.MealsCreated),
		"recipes_attached", res.RecipesAttached,
		"already_saved", res.AlreadySaved,
	)
	return res, nil
}

// servingsOf falls back to the participant count, then 1, when the event has
// no serving count configured.
func servingsOf(ev mealwizard.Event) int {
	switch {
	case ev.Servings > 0:
		return ev.Servings
	case len(ev.ParticipantIDs) > 0:
		return len(ev.ParticipantIDs)
	default:
		return 1
	}
}

package wizard

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"mealwizard"
	"mealwizard/persist"
)

// RunOptions steer an unattended session.
type RunOptions struct {
	// Picks is how many candidates are selected in a primary category that
	// has no selection after generation.
	Picks int
	Items map[mealwizard.MealCategory][]string
}

// ParseItems groups "category:name" entries by add-on category. A bare name
// goes to the first add-on category of the event.
func ParseItems(entries []string, categories []mealwizard.MealCategory) map[mealwizard.MealCategory][]string {
	_, addOn := mealwizard.SplitCategories(categories)
	out := make(map[mealwizard.MealCategory][]string)

	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}

		cat, name, found := strings.Cut(e, ":")
		if !found {
			if len(addOn) == 0 {
				slog.Warn("WIZARD: No add-on category for item", "item", e)
				continue
			}
			cat, name = string(addOn[0]), e
		}

		c := mealwizard.MealCategory(strings.ToLower(strings.TrimSpace(cat)))
		if !c.IsAddOn() {
			slog.Warn("WIZARD: Item category is not an add-on", "item", e)
			continue
		}
		out[c] = append(out[c], strings.TrimSpace(name))
	}
	return out
}

// Run walks the session from its current step to the review step and saves
// the plan. The manual split is balanced when it blocks the budget step.
// Generation failures are logged and leave their category without a pick.
func Run(ctx context.Context, w *Wizard, opts RunOptions) (persist.Result, error) {
	if opts.Picks <= 0 {
		opts.Picks = 1
	}

	for {
		step, _ := w.Step()
		switch step {
		case StepBudget:
			if !w.Budget().CanAdvance {
				w.BalanceBudget()
			}

		case StepMainCourses:
			for cat, err := range w.GenerateAll(ctx) {
				slog.Warn("WIZARD: Category generation failed", "category", string(cat), "error", err)
			}
			primary, _ := mealwizard.SplitCategories(w.Event().SelectedCategories)
			for _, cat := range primary {
				pick(w, cat, opts.Picks)
			}

		case StepExtras:
			_, addOn := mealwizard.SplitCategories(w.Event().SelectedCategories)
			for _, cat := range addOn {
				names := opts.Items[cat]
				if len(names) == 0 {
					continue
				}
				if _, err := w.AddItems(ctx, cat, names); err != nil {
					slog.Warn("WIZARD: Failed to add items", "category", string(cat), "error", err)
				}
			}

		case StepReview:
			return w.Save(ctx)
		}

		if _, err := w.Next(); err != nil {
			return persist.Result{}, fmt.Errorf("leave %s: %w", step, err)
		}
	}
}

func pick(w *Wizard, cat mealwizard.MealCategory, n int) {
	if len(w.Selected(cat)) > 0 {
		return
	}
	for i, c := range w.Candidates(cat) {
		if i == n {
			break
		}
		if _, err := w.Toggle(cat, c.ID); err != nil {
			slog.Warn("WIZARD: Failed to select candidate", "category", string(cat), "id", c.ID, "error", err)
		}
	}
}

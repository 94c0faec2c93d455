// Package mock is a deterministic AI backend. It serves canned recipes per
// category and a budget split from the default category weights, so the CLI
// and tests can run a full session without a model.
package mock

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"

	"mealwizard"
)

var catalog = map[mealwizard.MealCategory][]mealwizard.RawRecipe{
	mealwizard.Breakfast: {
		{Name: "Masala omelette", Cuisine: "indian", EstimatedCost: 18, PrepTimeMinutes: 15, Ingredients: []string{"eggs", "onion", "green chili", "coriander"}},
		{Name: "Overnight oats", Cuisine: "american", EstimatedCost: 12, PrepTimeMinutes: 10, Ingredients: []string{"oats", "milk", "berries"}, DietaryTags: []string{"vegetarian"}},
		{Name: "Poha", Cuisine: "indian", EstimatedCost: 10, PrepTimeMinutes: 20, Ingredients: []string{"flattened rice", "peanuts", "turmeric"}, DietaryTags: []string{"vegan"}},
	},
	mealwizard.Brunch: {
		{Name: "Shakshuka", Cuisine: "middle eastern", EstimatedCost: 22, PrepTimeMinutes: 30, Ingredients: []string{"eggs", "tomato", "peppers"}, DietaryTags: []string{"vegetarian"}},
		{Name: "Avocado toast", Cuisine: "american", EstimatedCost: 20, PrepTimeMinutes: 10, Ingredients: []string{"bread", "avocado", "lime"}, DietaryTags: []string{"vegan"}},
	},
	mealwizard.Lunch: {
		{Name: "Chana masala", Cuisine: "indian", EstimatedCost: 25, PrepTimeMinutes: 40, Ingredients: []string{"chickpeas", "tomato", "onion", "garam masala"}, DietaryTags: []string{"vegan", "gluten-free"}},
		{Name: "Caprese pasta salad", Cuisine: "italian", EstimatedCost: 30, PrepTimeMinutes: 25, Ingredients: []string{"pasta", "mozzarella", "tomato", "basil"}, DietaryTags: []string{"vegetarian"}},
		{Name: "Chicken shawarma wraps", Cuisine: "middle eastern", EstimatedCost: 45, PrepTimeMinutes: 50, Ingredients: []string{"chicken", "flatbread", "yogurt", "garlic"}},
		{Name: "Black bean tacos", Cuisine: "mexican", EstimatedCost: 22, PrepTimeMinutes: 30, Ingredients: []string{"black beans", "tortillas", "salsa"}, DietaryTags: []string{"vegan"}},
	},
	mealwizard.Dinner: {
		{Name: "Paneer butter masala", Cuisine: "indian", EstimatedCost: 55, PrepTimeMinutes: 60, Ingredients: []string{"paneer", "butter", "cream", "tomato"}, DietaryTags: []string{"vegetarian", "gluten-free"}},
		{Name: "Mushroom risotto", Cuisine: "italian", EstimatedCost: 48, PrepTimeMinutes: 45, Ingredients: []string{"arborio rice", "mushrooms", "parmesan"}, DietaryTags: []string{"vegetarian"}},
		{Name: "Grilled salmon", Cuisine: "american", EstimatedCost: 90, PrepTimeMinutes: 35, Ingredients: []string{"salmon", "lemon", "asparagus"}, DietaryTags: []string{"gluten-free"}},
		{Name: "Thai green curry", Cuisine: "thai", EstimatedCost: 50, PrepTimeMinutes: 45, Ingredients: []string{"coconut milk", "tofu", "green curry paste"}, DietaryTags: []string{"vegan"}},
	},
	mealwizard.Dessert: {
		{Name: "Gulab jamun", Cuisine: "indian", EstimatedCost: 20, PrepTimeMinutes: 45, Ingredients: []string{"milk powder", "sugar", "cardamom"}, DietaryTags: []string{"vegetarian"}},
		{Name: "Fruit salad", Cuisine: "american", EstimatedCost: 15, PrepTimeMinutes: 15, Ingredients: []string{"seasonal fruit", "mint"}, DietaryTags: []string{"vegan", "gluten-free"}},
	},
}

// Backend implements the local platform's AI backend.
type Backend struct{}

func NewBackend() *Backend {
	return &Backend{}
}

// SuggestBudget splits the budget by the default category weights.
func (b *Backend) SuggestBudget(ctx context.Context, ev mealwizard.Event, participants []mealwizard.Participant) (mealwizard.BudgetSuggestion, error) {
	slog.Info("MOCK_AI: Suggesting budget", "event_id", ev.ID)

	primary, _ := mealwizard.SplitCategories(ev.SelectedCategories)
	total := 0
	for _, c := range primary {
		total += c.Defaults().Weight
	}
	if total == 0 {
		return mealwizard.BudgetSuggestion{}, nil
	}

	var out mealwizard.BudgetSuggestion
	assigned := 0.0
	for i, c := range primary {
		pct := math.Round(float64(c.Defaults().Weight) / float64(total) * 100)
		if i == len(primary)-1 {
			pct = 100 - assigned
		}
		assigned += pct
		out.Allocations = append(out.Allocations, mealwizard.SuggestedAllocation{
			Category:        c,
			Percentage:      pct,
			SuggestedBudget: math.Round(pct / 100 * ev.Budget),
			Reasoning:       fmt.Sprintf("Default share for %s.", c),
		})
	}
	out.Recommendations = []string{"Cook staples like rice and lentils in bulk."}
	if len(participants) > 0 {
		out.Recommendations = append(out.Recommendations,
			fmt.Sprintf("Label dishes clearly for the %d participants with health profiles.", countProfiles(participants)))
	}
	return out, nil
}

// GenerateRecipes returns catalog recipes of the category, filtered by search
// term, cuisine, dietary restrictions and budget, up to the requested count.
func (b *Backend) GenerateRecipes(ctx context.Context, ev mealwizard.Event, req mealwizard.GenerateRequest, participants []mealwizard.Participant) ([]mealwizard.RawRecipe, error) {
	slog.Info("MOCK_AI: Generating recipes", "event_id", ev.ID, "category", string(req.Category), "count", req.Count)

	required := requiredTags(participants)
	var out []mealwizard.RawRecipe
	for _, r := range catalog[req.Category] {
		if len(out) == req.Count {
			break
		}
		if req.SearchTerm != "" && !strings.Contains(strings.ToLower(r.Name), strings.ToLower(req.SearchTerm)) {
			continue
		}
		if len(req.Cuisines) > 0 && !slices.Contains(req.Cuisines, r.Cuisine) {
			continue
		}
		if req.Budget != nil && r.EstimatedCost > *req.Budget {
			continue
		}
		if !hasAll(r.DietaryTags, required) {
			continue
		}
		r.Servings = max(ev.Servings, 1)
		r.Ingredients = slices.Clone(r.Ingredients)
		r.DietaryTags = slices.Clone(r.DietaryTags)
		out = append(out, r)
	}
	return out, nil
}

// requiredTags collects the dietary restrictions the catalog can tag for.
func requiredTags(participants []mealwizard.Participant) []string {
	var tags []string
	for _, p := range participants {
		if p.HealthProfile == nil {
			continue
		}
		for _, d := range p.HealthProfile.DietaryRestrictions {
			d = strings.ToLower(strings.TrimSpace(d))
			if d != "" && !slices.Contains(tags, d) {
				tags = append(tags, d)
			}
		}
	}
	return tags
}

func hasAll(tags, required []string) bool {
	for _, r := range required {
		// vegan dishes satisfy vegetarians
		if r == "vegetarian" && slices.Contains(tags, "vegan") {
			continue
		}
		if !slices.Contains(tags, r) {
			return false
		}
	}
	return true
}

func countProfiles(participants []mealwizard.Participant) int {
	n := 0
	for _, p := range participants {
		if p.HealthProfile != nil {
			n++
		}
	}
	return n
}

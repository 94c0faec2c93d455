package bedrock

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"mealwizard"
	"mealwizard/health"
)

const budgetSystemPrompt = `You are an event catering budget planner.

GOAL:
Split the event's total budget across its meal categories. Percentages must add up to 100 and amounts must add up to the total budget.
Give heavier meals a larger share. When participants have many dietary restrictions or allergies, allow for pricier specialty ingredients.

Answer ONLY by calling the submit_budget tool. Add up to three short, practical money-saving recommendations.`

const recipesSystemPrompt = `You are a chef planning recipes for a group event.

GOAL:
Propose distinct recipes for the requested meal category. Respect every dietary restriction and never use an ingredient a participant is allergic to.
Keep the estimated cost of each recipe, for all servings, within the category budget when one is given.

Answer ONLY by calling the submit_recipes tool.`

func budgetPrompt(ev mealwizard.Event, participants []mealwizard.Participant) string {
	primary, _ := mealwizard.SplitCategories(ev.SelectedCategories)
	names := make([]string, 0, len(primary))
	for _, c := range primary {
		names = append(names, string(c))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Event: %s\n", eventName(ev))
	fmt.Fprintf(&b, "Total budget: %.2f\n", ev.Budget)
	fmt.Fprintf(&b, "Servings: %d\n", ev.Servings)
	fmt.Fprintf(&b, "Meal categories: %s\n", strings.Join(names, ", "))
	writeHealth(&b, participants)
	return b.String()
}

func recipesPrompt(ev mealwizard.Event, req mealwizard.GenerateRequest, participants []mealwizard.Participant) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Event: %s\n", eventName(ev))
	fmt.Fprintf(&b, "Meal category: %s\n", req.Category)
	fmt.Fprintf(&b, "Number of recipes: %d\n", req.Count)
	fmt.Fprintf(&b, "Servings: %d\n", max(ev.Servings, 1))
	if req.Budget != nil {
		fmt.Fprintf(&b, "Category budget: %.2f\n", *req.Budget)
	}
	if len(req.Cuisines) > 0 {
		fmt.Fprintf(&b, "Preferred cuisines: %s\n", strings.Join(req.Cuisines, ", "))
	}
	if req.SearchTerm != "" {
		fmt.Fprintf(&b, "The organizer is looking for: %s\n", req.SearchTerm)
	}
	if req.ConsiderHealth {
		writeHealth(&b, participants)
	}
	return b.String()
}

func writeHealth(b *strings.Builder, participants []mealwizard.Participant) {
	ids := make([]string, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.ID)
	}
	agg := health.Aggregate(participants, ids)
	if agg.ConsideredParticipantCount == 0 {
		return
	}

	fmt.Fprintf(b, "Participants considered: %d\n", agg.ConsideredParticipantCount)
	writeCounts(b, "Dietary restrictions", agg.DietaryRestrictionCounts)
	writeCounts(b, "Allergies", agg.AllergyCounts)
	writeCounts(b, "Health conditions", agg.HealthConditionCounts)
}

func writeCounts(b *strings.Builder, label string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	parts := make([]string, 0, len(counts))
	for _, k := range slices.Sorted(maps.Keys(counts)) {
		parts = append(parts, fmt.Sprintf("%s (%d)", k, counts[k]))
	}
	fmt.Fprintf(b, "%s: %s\n", label, strings.Join(parts, ", "))
}

func eventName(ev mealwizard.Event) string {
	if ev.Name != "" {
		return ev.Name
	}
	return ev.ID
}

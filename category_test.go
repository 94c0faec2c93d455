package mealwizard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategoryGroups(t *testing.T) {
	tests := []struct {
		category MealCategory
		primary  bool
		addOn    bool
	}{
		{Breakfast, true, false},
		{Lunch, true, false},
		{Dinner, true, false},
		{Dessert, true, false},
		{Snacks, false, true},
		{Beverages, false, true},
		{MealCategory("midnight"), false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			assert.Equal(t, tt.primary, tt.category.IsPrimary())
			assert.Equal(t, tt.addOn, tt.category.IsAddOn())
		})
	}
}

func TestSortCategories(t *testing.T) {
	got := SortCategories([]MealCategory{Snacks, Dinner, "unknown", Breakfast, Dinner})
	assert.Equal(t, []MealCategory{Breakfast, Dinner, Snacks}, got)
}

func TestSplitCategories(t *testing.T) {
	primary, addOn := SplitCategories([]MealCategory{Beverages, Lunch, Snacks, Breakfast})
	assert.Equal(t, []MealCategory{Breakfast, Lunch}, primary)
	assert.Equal(t, []MealCategory{Snacks, Beverages}, addOn)

	primary, addOn = SplitCategories(nil)
	assert.Empty(t, primary)
	assert.Empty(t, addOn)
}

func TestEventMealFor(t *testing.T) {
	ev := Event{ExistingMeals: []Meal{{ID: "m1", Category: Lunch}, {ID: "m2", Category: Dinner}}}

	m, ok := ev.MealFor(Dinner)
	assert.True(t, ok)
	assert.Equal(t, "m2", m.ID)

	_, ok = ev.MealFor(Breakfast)
	assert.False(t, ok)
}

func TestHealthAggregateComplexity(t *testing.T) {
	h := HealthAggregate{
		DietaryRestrictionCounts: map[string]int{"vegan": 2, "halal": 1},
		AllergyCounts:            map[string]int{"peanut": 1},
		HealthConditionCounts:    map[string]int{"diabetes": 3},
	}
	assert.Equal(t, 3, h.Complexity())
}

func TestHealthAggregateComplexityCountsSharedLabelsOnce(t *testing.T) {
	h := HealthAggregate{
		DietaryRestrictionCounts: map[string]int{"gluten-free": 2, "vegan": 1},
		AllergyCounts:            map[string]int{"gluten-free": 1, "peanut": 1},
	}
	assert.Equal(t, 3, h.Complexity())
}

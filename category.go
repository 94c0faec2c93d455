package mealwizard

import (
	"log/slog"
	"slices"
)

// MealCategory tags a meal type of an event.
type MealCategory string

const (
	Breakfast MealCategory = "breakfast"
	Brunch    MealCategory = "brunch"
	Lunch     MealCategory = "lunch"
	Dinner    MealCategory = "dinner"
	Dessert   MealCategory = "dessert"
	Snacks    MealCategory = "snacks"
	Beverages MealCategory = "beverages"
)

// CategoryGroup splits categories by how the wizard treats them.
type CategoryGroup int

const (
	// GroupPrimary categories take part in budget allocation and stage AI recipes locally.
	GroupPrimary CategoryGroup = iota
	// GroupAddOn categories are persisted immediately as line items.
	GroupAddOn
)

func (g CategoryGroup) String() string {
	if g == GroupAddOn {
		return "add-on"
	}
	return "primary"
}

// CategoryDefaults are the static per-category settings.
type CategoryDefaults struct {
	Group         CategoryGroup
	Weight        int
	MinPercentage float64
	ScheduledTime string
}

// categoryOrder is the canonical iteration order.
var categoryOrder = []MealCategory{Breakfast, Brunch, Lunch, Dinner, Dessert, Snacks, Beverages}

var categoryDefaults = map[MealCategory]CategoryDefaults{
	Breakfast: {Group: GroupPrimary, Weight: 20, MinPercentage: 10, ScheduledTime: "08:00"},
	Brunch:    {Group: GroupPrimary, Weight: 25, MinPercentage: 10, ScheduledTime: "10:30"},
	Lunch:     {Group: GroupPrimary, Weight: 30, MinPercentage: 15, ScheduledTime: "12:30"},
	Dinner:    {Group: GroupPrimary, Weight: 40, MinPercentage: 20, ScheduledTime: "19:00"},
	Dessert:   {Group: GroupPrimary, Weight: 10, MinPercentage: 5, ScheduledTime: "20:30"},
	Snacks:    {Group: GroupAddOn, ScheduledTime: "16:00"},
	Beverages: {Group: GroupAddOn, ScheduledTime: "15:00"},
}

func (c MealCategory) Valid() bool {
	_, ok := categoryDefaults[c]
	return ok
}

func (c MealCategory) Defaults() CategoryDefaults {
	return categoryDefaults[c]
}

func (c MealCategory) Group() CategoryGroup {
	return categoryDefaults[c].Group
}

func (c MealCategory) IsAddOn() bool {
	return c.Valid() && c.Group() == GroupAddOn
}

func (c MealCategory) IsPrimary() bool {
	return c.Valid() && c.Group() == GroupPrimary
}

// AllCategories returns every known category in canonical order.
func AllCategories() []MealCategory {
	return slices.Clone(categoryOrder)
}

// SortCategories returns the known categories of cats, deduplicated and in
// canonical order. Unknown categories are dropped.
func SortCategories(cats []MealCategory) []MealCategory {
	out := make([]MealCategory, 0, len(cats))
	for _, c := range categoryOrder {
		if slices.Contains(cats, c) {
			out = append(out, c)
		}
	}
	for _, c := range cats {
		if !c.Valid() {
			slog.Warn("CATEGORY: Dropping unknown meal category", "category", string(c))
		}
	}
	return out
}

// SplitCategories sorts cats and partitions them into primary and add-on groups.
func SplitCategories(cats []MealCategory) (primary, addOn []MealCategory) {
	for _, c := range SortCategories(cats) {
		if c.IsAddOn() {
			addOn = append(addOn, c)
		} else {
			primary = append(primary, c)
		}
	}
	return primary, addOn
}

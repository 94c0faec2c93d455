package mealwizard

import (
	"context"
	"net/http"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type SlackClient interface {
	PostMessage(ctx context.Context, channel string, message string) error
}

// BudgetSuggester asks the host for an AI-backed budget split of an event.
type BudgetSuggester interface {
	SuggestBudget(ctx context.Context, eventID string) (BudgetSuggestion, error)
}

// RecipeGenerator asks the host for AI-generated recipes for one meal category.
type RecipeGenerator interface {
	GenerateRecipes(ctx context.Context, eventID string, req GenerateRequest) ([]RawRecipe, error)
}

// MealWriter persists meals and recipe attachments on an event.
type MealWriter interface {
	CreateMeal(ctx context.Context, eventID string, meal NewMeal) (string, error)
	AttachRecipe(ctx context.Context, eventID, mealID string, att RecipeAttachment) error
}

// ItemStore manages the inventory-like line items used by add-on categories.
type ItemStore interface {
	CreateItem(ctx context.Context, eventID string, item NewItem) (string, error)
	DeleteItem(ctx context.Context, eventID, itemID string) error
	ListItems(ctx context.Context, eventID string) ([]Item, error)
}

// EventReader reads the event and account participants the wizard plans for.
type EventReader interface {
	GetEvent(ctx context.Context, eventID string) (Event, error)
	ListParticipants(ctx context.Context, accountID string) ([]Participant, error)
}

// Platform is the full set of host operations the wizard core consumes.
type Platform interface {
	BudgetSuggester
	RecipeGenerator
	MealWriter
	ItemStore
	EventReader
}

// HealthProfile carries a participant's optional health constraints.
type HealthProfile struct {
	DietaryRestrictions []string `json:"dietary_restrictions,omitempty"`
	Allergies           []string `json:"allergies,omitempty"`
	HealthConditions    []string `json:"health_conditions,omitempty"`
}

type Participant struct {
	ID            string         `json:"id"`
	Name          string         `json:"name,omitempty"`
	HealthProfile *HealthProfile `json:"health_profile,omitempty"`
}

// Meal is a meal entity already attached to an event.
type Meal struct {
	ID            string       `json:"id"`
	Category      MealCategory `json:"category"`
	ScheduledTime string       `json:"scheduled_time,omitempty"`
	Notes         string       `json:"notes,omitempty"`
	RecipeIDs     []string     `json:"recipe_ids,omitempty"`
}

type Event struct {
	ID                 string         `json:"id"`
	AccountID          string         `json:"account_id,omitempty"`
	Name               string         `json:"name,omitempty"`
	ParticipantIDs     []string       `json:"participant_ids"`
	SelectedCategories []MealCategory `json:"selected_categories"`
	ExistingMeals      []Meal         `json:"existing_meals,omitempty"`
	Budget             float64        `json:"budget"`
	Servings           int            `json:"servings"`
}

// MealFor returns the first existing meal of the given category.
func (e Event) MealFor(cat MealCategory) (Meal, bool) {
	for _, m := range e.ExistingMeals {
		if m.Category == cat {
			return m, true
		}
	}
	return Meal{}, false
}

type NewMeal struct {
	Category      MealCategory `json:"category"`
	ScheduledTime string       `json:"scheduled_time"`
	Notes         string       `json:"notes,omitempty"`
}

type RecipeAttachment struct {
	RecipeID string `json:"recipe_id"`
	Servings int    `json:"servings"`
	Notes    string `json:"notes,omitempty"`
}

// Item is a persisted add-on line item (snacks, beverages).
type Item struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Category      MealCategory `json:"category"`
	Quantity      float64      `json:"quantity"`
	Unit          string       `json:"unit,omitempty"`
	EstimatedCost float64      `json:"estimated_cost,omitempty"`
}

type NewItem struct {
	Name          string       `json:"name"`
	Category      MealCategory `json:"category"`
	Quantity      float64      `json:"quantity"`
	Unit          string       `json:"unit,omitempty"`
	EstimatedCost float64      `json:"estimated_cost,omitempty"`
}

// SuggestedAllocation is one category of a remote budget suggestion.
type SuggestedAllocation struct {
	Category        MealCategory `json:"category"`
	SuggestedBudget float64      `json:"suggested_budget"`
	Percentage      float64      `json:"percentage"`
	Reasoning       string       `json:"reasoning,omitempty"`
}

type BudgetSuggestion struct {
	Allocations     []SuggestedAllocation `json:"allocations"`
	Recommendations []string              `json:"recommendations,omitempty"`
}

// GenerateRequest bounds a recipe generation call for one category.
// A nil Budget means no budget constraint.
type GenerateRequest struct {
	Category             MealCategory `json:"category" validate:"required"`
	Count                int          `json:"count" validate:"min=1,max=10"`
	Budget               *float64     `json:"budget,omitempty" validate:"omitempty,gte=0"`
	Cuisines             []string     `json:"cuisines,omitempty"`
	SearchTerm           string       `json:"search_term,omitempty"`
	ConsiderHealth       bool         `json:"consider_health"`
	TargetParticipantIDs []string     `json:"target_participant_ids,omitempty"`
}

// RawRecipe is a recipe as returned by the generation service. ID may be empty.
type RawRecipe struct {
	ID              string   `json:"id,omitempty"`
	Name            string   `json:"name"`
	Description     string   `json:"description,omitempty"`
	Cuisine         string   `json:"cuisine,omitempty"`
	EstimatedCost   float64  `json:"estimated_cost,omitempty"`
	PrepTimeMinutes int      `json:"prep_time_minutes,omitempty"`
	Servings        int      `json:"servings,omitempty"`
	Ingredients     []string `json:"ingredients,omitempty"`
	DietaryTags     []string `json:"dietary_tags,omitempty"`
}

// RecipeCandidate is a recipe or item shown to the organizer. IsSaved marks
// candidates already attached to the remote event.
type RecipeCandidate struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Description     string   `json:"description,omitempty"`
	Cuisine         string   `json:"cuisine,omitempty"`
	EstimatedCost   float64  `json:"estimated_cost,omitempty"`
	PrepTimeMinutes int      `json:"prep_time_minutes,omitempty"`
	Ingredients     []string `json:"ingredients,omitempty"`
	DietaryTags     []string `json:"dietary_tags,omitempty"`
	IsSaved         bool     `json:"is_saved"`
}

// MealBudgetAllocation is the budget share of one meal category.
type MealBudgetAllocation struct {
	Category      MealCategory `json:"category" validate:"required"`
	BudgetAmount  float64      `json:"budget_amount" validate:"gte=0"`
	Percentage    float64      `json:"percentage" validate:"gte=0,lte=100"`
	MinPercentage float64      `json:"min_percentage" validate:"gte=0"`
	Reasoning     string       `json:"reasoning,omitempty"`
}

// HealthAggregate counts health labels across the considered participants.
type HealthAggregate struct {
	DietaryRestrictionCounts   map[string]int `json:"dietary_restriction_counts"`
	AllergyCounts              map[string]int `json:"allergy_counts"`
	HealthConditionCounts      map[string]int `json:"health_condition_counts"`
	ConsideredParticipantCount int            `json:"considered_participant_count"`
}

// Complexity is the number of distinct dietary restriction and allergy labels.
func (h HealthAggregate) Complexity() int {
	n := len(h.DietaryRestrictionCounts)
	for label := range h.AllergyCounts {
		if _, ok := h.DietaryRestrictionCounts[label]; !ok {
			n++
		}
	}
	return n
}

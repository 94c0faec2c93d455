package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealwizard"
	"mealwizard/storage"
)

type fakeBackend struct {
	suggestion   mealwizard.BudgetSuggestion
	recipes      []mealwizard.RawRecipe
	err          error
	participants []mealwizard.Participant
}

func (f *fakeBackend) SuggestBudget(ctx context.Context, ev mealwizard.Event, participants []mealwizard.Participant) (mealwizard.BudgetSuggestion, error) {
	f.participants = participants
	return f.suggestion, f.err
}

func (f *fakeBackend) GenerateRecipes(ctx context.Context, ev mealwizard.Event, req mealwizard.GenerateRequest, participants []mealwizard.Participant) ([]mealwizard.RawRecipe, error) {
	f.participants = participants
	return append([]mealwizard.RawRecipe(nil), f.recipes...), f.err
}

func newPlatform(t *testing.T, backend Backend) (*Platform, *storage.TestEventState) {
	t.Helper()
	state := storage.NewTestEventState(nil)
	p := New(state, backend)
	n := 0
	p.newID = func() string { n++; return fmt.Sprintf("id-%d", n) }

	err := p.PutEvent(context.Background(), mealwizard.Event{
		ID:                 "ev-1",
		AccountID:          "acct-1",
		ParticipantIDs:     []string{"p1", "p2"},
		SelectedCategories: []mealwizard.MealCategory{mealwizard.Lunch, mealwizard.Snacks},
		Budget:             200,
		Servings:           4,
	}, []mealwizard.Participant{
		{ID: "p1", HealthProfile: &mealwizard.HealthProfile{Allergies: []string{"gluten"}}},
		{ID: "p2"},
		{ID: "p3"},
	})
	require.NoError(t, err)
	return p, state
}

func TestEventsAndParticipants(t *testing.T) {
	p, _ := newPlatform(t, nil)
	ctx := context.Background()

	ev, err := p.GetEvent(ctx, "ev-1")
	require.NoError(t, err)
	assert.Equal(t, 200.0, ev.Budget)
	assert.Equal(t, []mealwizard.MealCategory{mealwizard.Lunch, mealwizard.Snacks}, ev.SelectedCategories)

	participants, err := p.ListParticipants(ctx, "acct-1")
	require.NoError(t, err)
	assert.Len(t, participants, 3)

	_, err = p.GetEvent(ctx, "missing")
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestMealsAndAttachments(t *testing.T) {
	p, state := newPlatform(t, nil)
	ctx := context.Background()

	mealID, err := p.CreateMeal(ctx, "ev-1", mealwizard.NewMeal{Category: mealwizard.Lunch, ScheduledTime: "12:30"})
	require.NoError(t, err)
	require.NoError(t, p.AttachRecipe(ctx, "ev-1", mealID, mealwizard.RecipeAttachment{RecipeID: "r-1", Servings: 4}))

	ev, err := p.GetEvent(ctx, "ev-1")
	require.NoError(t, err)
	meal, ok := ev.MealFor(mealwizard.Lunch)
	require.True(t, ok)
	assert.Equal(t, []string{"r-1"}, meal.RecipeIDs)
	assert.Equal(t, "12:30", meal.ScheduledTime)

	atts, err := p.Attachments(ctx, "ev-1")
	require.NoError(t, err)
	assert.Equal(t, []Attachment{{MealID: mealID, RecipeID: "r-1", Servings: 4}}, atts)

	err = p.AttachRecipe(ctx, "ev-1", "nope", mealwizard.RecipeAttachment{RecipeID: "r-2"})
	assert.ErrorIs(t, err, ErrMealNotFound)

	var doc Document
	data, err := state.Load(ctx)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Len(t, doc.Events["ev-1"].ExistingMeals, 1, "document is written through")
}

func TestItems(t *testing.T) {
	p, _ := newPlatform(t, nil)
	ctx := context.Background()

	id, err := p.CreateItem(ctx, "ev-1", mealwizard.NewItem{Name: "Chips", Category: mealwizard.Snacks, Quantity: 2, Unit: "bags"})
	require.NoError(t, err)

	items, err := p.ListItems(ctx, "ev-1")
	require.NoError(t, err)
	assert.Equal(t, []mealwizard.Item{{ID: id, Name: "Chips", Category: mealwizard.Snacks, Quantity: 2, Unit: "bags"}}, items)

	require.NoError(t, p.DeleteItem(ctx, "ev-1", id))
	assert.ErrorIs(t, p.DeleteItem(ctx, "ev-1", id), ErrItemNotFound)

	items, err = p.ListItems(ctx, "ev-1")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestGenerateRecipesStoresRecipes(t *testing.T) {
	backend := &fakeBackend{recipes: []mealwizard.RawRecipe{{Name: "Dal"}, {ID: "kept", Name: "Rice"}}}
	p, _ := newPlatform(t, backend)
	ctx := context.Background()

	got, err := p.GenerateRecipes(ctx, "ev-1", mealwizard.GenerateRequest{
		Category:             mealwizard.Lunch,
		Count:                2,
		ConsiderHealth:       true,
		TargetParticipantIDs: []string{"p1"},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.NotEmpty(t, got[0].ID)
	assert.Equal(t, "kept", got[1].ID)

	require.Len(t, backend.participants, 1)
	assert.Equal(t, "p1", backend.participants[0].ID)

	r, ok, err := p.Recipe(ctx, got[0].ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Dal", r.Name)

	_, err = p.GenerateRecipes(ctx, "ev-1", mealwizard.GenerateRequest{Category: mealwizard.Lunch, Count: 1})
	require.NoError(t, err)
	assert.Nil(t, backend.participants, "health is not shared when not considered")
}

func TestBackendErrors(t *testing.T) {
	p, _ := newPlatform(t, nil)
	_, err := p.SuggestBudget(context.Background(), "ev-1")
	assert.ErrorIs(t, err, ErrNoBackend)

	p, _ = newPlatform(t, &fakeBackend{err: errors.New("quota exceeded")})
	_, err = p.SuggestBudget(context.Background(), "ev-1")
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestSuggestBudgetSendsEventParticipants(t *testing.T) {
	backend := &fakeBackend{suggestion: mealwizard.BudgetSuggestion{Recommendations: []string{"ok"}}}
	p, _ := newPlatform(t, backend)

	got, err := p.SuggestBudget(context.Background(), "ev-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, got.Recommendations)
	assert.Len(t, backend.participants, 2, "only the event's participants")
}

func TestStorageFailure(t *testing.T) {
	p := New(storage.NewTestEventStateWithError(), nil)
	_, err := p.GetEvent(context.Background(), "ev-1")
	assert.ErrorContains(t, err, "load event document")
}

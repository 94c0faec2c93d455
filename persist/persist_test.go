package persist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealwizard"
)

type attachCall struct {
	MealID string
	mealwizard.RecipeAttachment
}

type fakePlatform struct {
	mu        sync.Mutex
	event     mealwizard.Event
	getErr    error
	createErr error
	attachErr map[string]error
	created   []mealwizard.NewMeal
	attached  []attachCall
}

func (f *fakePlatform) GetEvent(ctx context.Context, eventID string) (mealwizard.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return mealwizard.Event{}, f.getErr
	}
	ev := f.event
	ev.ExistingMeals = append([]mealwizard.Meal(nil), f.event.ExistingMeals...)
	return ev, nil
}

func (f *fakePlatform) CreateMeal(ctx context.Context, eventID string, meal mealwizard.NewMeal) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created = append(f.created, meal)
	id := fmt.Sprintf("meal-%d", len(f.created))
	f.event.ExistingMeals = append(f.event.ExistingMeals, mealwizard.Meal{ID: id, Category: meal.Category})
	return id, nil
}

func (f *fakePlatform) AttachRecipe(ctx context.Context, eventID, mealID string, att mealwizard.RecipeAttachment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.attachErr[att.RecipeID]; err != nil {
		return err
	}
	f.attached = append(f.attached, attachCall{MealID: mealID, RecipeAttachment: att})
	return nil
}

type fakeSelection struct {
	mu       sync.Mutex
	selected map[mealwizard.MealCategory][]mealwizard.RecipeCandidate
}

func (s *fakeSelection) Categories() []mealwizard.MealCategory {
	var out []mealwizard.MealCategory
	for _, c := range mealwizard.AllCategories() {
		if len(s.selected[c]) > 0 {
			out = append(out, c)
		}
	}
	return out
}

func (s *fakeSelection) SelectedCandidates(cat mealwizard.MealCategory) []mealwizard.RecipeCandidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]mealwizard.RecipeCandidate(nil), s.selected[cat]...)
}

func (s *fakeSelection) markSaved(res Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for cat, ids := range res.Attached {
		for i := range s.selected[cat] {
			for _, id := range ids {
				if s.selected[cat][i].ID == id {
					s.selected[cat][i].IsSaved = true
				}
			}
		}
	}
}

func newEvent() mealwizard.Event {
	return mealwizard.Event{
		ID:                 "ev1",
		ParticipantIDs:     []string{"p1", "p2", "p3"},
		SelectedCategories: []mealwizard.MealCategory{mealwizard.Lunch, mealwizard.Dinner, mealwizard.Snacks},
		Budget:             300,
		Servings:           8,
	}
}

func TestSaveCreatesOneMealPerSelectedCategory(t *testing.T) {
	p := &fakePlatform{event: newEvent()}
	sel := &fakeSelection{selected: map[mealwizard.MealCategory][]mealwizard.RecipeCandidate{
		mealwizard.Lunch: {{ID: "r1"}, {ID: "r2"}},
	}}

	res, err := NewOrchestrator(p).Save(context.Background(), "ev1", sel)
	require.NoError(t, err)

	require.Len(t, p.created, 1)
	assert.Equal(t, mealwizard.NewMeal{Category: mealwizard.Lunch, ScheduledTime: "12:30", Notes: mealNotes}, p.created[0])
	assert.Equal(t, []attachCall{
		{MealID: "meal-1", RecipeAttachment: mealwizard.RecipeAttachment{RecipeID: "r1", Servings: 8}},
		{MealID: "meal-1", RecipeAttachment: mealwizard.RecipeAttachment{RecipeID: "r2", Servings: 8}},
	}, p.attached)

	assert.Equal(t, 2, res.RecipesAttached)
	assert.Len(t, res.MealsCreated, 1)
	assert.Equal(t, []string{"r1", "r2"}, res.Attached[mealwizard.Lunch])
}

func TestSaveReusesExistingMeal(t *testing.T) {
	ev := newEvent()
	ev.ExistingMeals = []mealwizard.Meal{{ID: "dinner-meal", Category: mealwizard.Dinner}}
	p := &fakePlatform{event: ev}
	sel := &fakeSelection{selected: map[mealwizard.MealCategory][]mealwizard.RecipeCandidate{
		mealwizard.Dinner: {{ID: "r9"}},
		mealwizard.Lunch:  {{ID: "r1"}},
	}}

	res, err := NewOrchestrator(p).Save(context.Background(), "ev1", sel)
	require.NoError(t, err)

	require.Len(t, p.created, 1)
	assert.Equal(t, mealwizard.Lunch, p.created[0].Category)
	require.Len(t, p.attached, 2)
	assert.Equal(t, "meal-1", p.attached[0].MealID)
	assert.Equal(t, "dinner-meal", p.attached[1].MealID)
	assert.Equal(t, 2, res.RecipesAttached)
}

func TestSaveIsIdempotent(t *testing.T) {
	p := &fakePlatform{event: newEvent()}
	sel := &fakeSelection{selected: map[mealwizard.MealCategory][]mealwizard.RecipeCandidate{
		mealwizard.Lunch:  {{ID: "r1"}, {ID: "r2"}},
		mealwizard.Dinner: {{ID: "r3"}},
	}}
	o := NewOrchestrator(p)

	first, err := o.Save(context.Background(), "ev1", sel)
	require.NoError(t, err)
	assert.Equal(t, 3, first.RecipesAttached)
	sel.markSaved(first)

	for range 2 {
		again, err := o.Save(context.Background(), "ev1", sel)
		require.NoError(t, err)
		assert.Empty(t, again.MealsCreated)
		assert.Zero(t, again.RecipesAttached)
		assert.Equal(t, 3, again.AlreadySaved)
	}

	assert.Len(t, p.created, 2)
	assert.Len(t, p.attached, 3)
}

func TestSaveSkipsMealWhenEverythingIsSaved(t *testing.T) {
	p := &fakePlatform{event: newEvent()}
	sel := &fakeSelection{selected: map[mealwizard.MealCategory][]mealwizard.RecipeCandidate{
		mealwizard.Lunch:  {{ID: "r1", IsSaved: true}, {ID: "r2", IsSaved: true}},
		mealwizard.Dinner: {{ID: "r3", IsSaved: true}, {ID: "r4"}},
	}}

	res, err := NewOrchestrator(p).Save(context.Background(), "ev1", sel)
	require.NoError(t, err)

	require.Len(t, p.created, 1, "no meal is created for a category with nothing left to attach")
	assert.Equal(t, mealwizard.Dinner, p.created[0].Category)
	assert.Equal(t, []attachCall{
		{MealID: "meal-1", RecipeAttachment: mealwizard.RecipeAttachment{RecipeID: "r4", Servings: 8}},
	}, p.attached)
	assert.Equal(t, 3, res.AlreadySaved)
	assert.Equal(t, 1, res.RecipesAttached)
}

func TestSaveSkipsAddOnCategories(t *testing.T) {
	p := &fakePlatform{event: newEvent()}
	sel := &fakeSelection{selected: map[mealwizard.MealCategory][]mealwizard.RecipeCandidate{
		mealwizard.Snacks:    {{ID: "item-1", IsSaved: true}},
		mealwizard.Beverages: {{ID: "item-2"}},
	}}

	res, err := NewOrchestrator(p).Save(context.Background(), "ev1", sel)
	require.NoError(t, err)
	assert.Empty(t, p.created)
	assert.Empty(t, p.attached)
	assert.Zero(t, res.RecipesAttached)
}

func TestSaveAbortsOnFirstFailure(t *testing.T) {
	p := &fakePlatform{
		event:     newEvent(),
		attachErr: map[string]error{"r3": errors.New("recipe locked")},
	}
	sel := &fakeSelection{selected: map[mealwizard.MealCategory][]mealwizard.RecipeCandidate{
		mealwizard.Breakfast: {{ID: "r1"}},
		mealwizard.Lunch:     {{ID: "r2"}, {ID: "r3"}, {ID: "r4"}},
		mealwizard.Dinner:    {{ID: "r5"}},
	}}

	res, err := NewOrchestrator(p).Save(context.Background(), "ev1", sel)
	require.Error(t, err)

	var saveErr *SaveError
	require.ErrorAs(t, err, &saveErr)
	assert.Equal(t, mealwizard.Lunch, saveErr.Category)
	assert.ErrorContains(t, err, "recipe locked")

	assert.Equal(t, 2, res.RecipesAttached, "breakfast and the first lunch recipe stay persisted")
	assert.Equal(t, []string{"r1"}, res.Attached[mealwizard.Breakfast])
	assert.Equal(t, []string{"r2"}, res.Attached[mealwizard.Lunch])
	assert.Len(t, p.created, 2, "dinner is never reached")
}

func TestSaveMealCreationFailure(t *testing.T) {
	p := &fakePlatform{event: newEvent(), createErr: errors.New("conflict")}
	sel := &fakeSelection{selected: map[mealwizard.MealCategory][]mealwizard.RecipeCandidate{
		mealwizard.Lunch: {{ID: "r1"}},
	}}

	res, err := NewOrchestrator(p).Save(context.Background(), "ev1", sel)
	var saveErr *SaveError
	require.ErrorAs(t, err, &saveErr)
	assert.Equal(t, "create meal", saveErr.Stage)
	assert.Zero(t, res.RecipesAttached)
	assert.Empty(t, p.attached)
}

func TestSaveEventLoadFailure(t *testing.T) {
	p := &fakePlatform{getErr: errors.New("not found")}
	_, err := NewOrchestrator(p).Save(context.Background(), "ev1", &fakeSelection{})
	assert.EqualError(t, err, "save aborted at load event: not found")
}

func TestSaveConcurrentCallsCreateOneMeal(t *testing.T) {
	p := &fakePlatform{event: newEvent()}
	sel := &fakeSelection{selected: map[mealwizard.MealCategory][]mealwizard.RecipeCandidate{
		mealwizard.Dinner: {{ID: "r1"}},
	}}
	o := NewOrchestrator(p)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := o.Save(context.Background(), "ev1", sel)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, p.created, 1)
}

func TestServingsOf(t *testing.T) {
	assert.Equal(t, 8, servingsOf(mealwizard.Event{Servings: 8, ParticipantIDs: []string{"a"}}))
	assert.Equal(t, 2, servingsOf(mealwizard.Event{ParticipantIDs: []string{"a", "b"}}))
	assert.Equal(t, 1, servingsOf(mealwizard.Event{}))
}

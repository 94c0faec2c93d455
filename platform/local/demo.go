package local

import (
	"context"
	"errors"

	"mealwizard"
)

// DemoEvent is the event seeded into an empty document so a fresh checkout
// has something to plan.
func DemoEvent(eventID string) (mealwizard.Event, []mealwizard.Participant) {
	ev := mealwizard.Event{
		ID:                 eventID,
		AccountID:          "demo-account",
		Name:               "Team offsite",
		ParticipantIDs:     []string{"demo-ana", "demo-bo", "demo-cy"},
		SelectedCategories: []mealwizard.MealCategory{mealwizard.Lunch, mealwizard.Dinner, mealwizard.Snacks, mealwizard.Beverages},
		Budget:             600,
		Servings:           12,
	}
	participants := []mealwizard.Participant{
		{ID: "demo-ana", Name: "Ana", HealthProfile: &mealwizard.HealthProfile{DietaryRestrictions: []string{"vegetarian"}}},
		{ID: "demo-bo", Name: "Bo", HealthProfile: &mealwizard.HealthProfile{Allergies: []string{"peanuts"}}},
		{ID: "demo-cy", Name: "Cy"},
	}
	return ev, participants
}

// EnsureEvent seeds the demo event under eventID unless it already exists.
// It reports whether it seeded.
func (p *Platform) EnsureEvent(ctx context.Context, eventID string) (bool, error) {
	_, err := p.GetEvent(ctx, eventID)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrEventNotFound) {
		return false, err
	}

	ev, participants := DemoEvent(eventID)
	if err := p.PutEvent(ctx, ev, participants); err != nil {
		return false, err
	}
	return true, nil
}

// Package local is a self-contained host platform. Events, participants, meals
// and items live in one JSON document kept in an EventState; budget
// suggestions and recipes come from an AI backend.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"mealwizard"
	"mealwizard/storage"
)

var (
	ErrEventNotFound = errors.New("event not found")
	ErrMealNotFound  = errors.New("meal not found")
	ErrItemNotFound  = errors.New("item not found")
	ErrNoBackend     = errors.New("no AI backend configured")
)

// Backend produces budget suggestions and recipes for an event.
type Backend interface {
	SuggestBudget(ctx context.Context, ev mealwizard.Event, participants []mealwizard.Participant) (mealwizard.BudgetSuggestion, error)
	GenerateRecipes(ctx context.Context, ev mealwizard.Event, req mealwizard.GenerateRequest, participants []mealwizard.Participant) ([]mealwizard.RawRecipe, error)
}

// Attachment is a recipe attached to a meal.
type Attachment struct {
	MealID   string `json:"meal_id"`
	RecipeID string `json:"recipe_id"`
	Servings int    `json:"servings"`
	Notes    string `json:"notes,omitempty"`
}

// EventRecord is the stored form of an event.
type EventRecord struct {
	mealwizard.Event
	Items       []mealwizard.Item `json:"items,omitempty"`
	Attachments []Attachment      `json:"attachments,omitempty"`
}

// Document is the whole persisted state.
type Document struct {
	Events   map[string]*EventRecord             `json:"events"`
	Accounts map[string][]mealwizard.Participant `json:"accounts"`
	Recipes  map[string]mealwizard.RawRecipe     `json:"recipes,omitempty"`
}

// Platform implements mealwizard.Platform. Every mutation loads the document,
// applies the change and saves it back under one lock.
type Platform struct {
	mu      sync.Mutex
	state   storage.EventState
	backend Backend
	newID   func() string
}

func New(state storage.EventState, backend Backend) *Platform {
	return &Platform{state: state, backend: backend, newID: uuid.NewString}
}

func (p *Platform) load(ctx context.Context) (*Document, error) {
	doc := &Document{}
	data, err := p.state.Load(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("load event document: %w", err)
	default:
		if err := json.Unmarshal(data, doc); err != nil {
			return nil, fmt.Errorf("decode event document: %w", err)
		}
	}
	if doc.Events == nil {
		doc.Events = map[string]*EventRecord{}
	}
	if doc.Accounts == nil {
		doc.Accounts = map[string][]mealwizard.Participant{}
	}
	if doc.Recipes == nil {
		doc.Recipes = map[string]mealwizard.RawRecipe{}
	}
	return doc, nil
}

func (p *Platform) save(ctx context.Context, doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode event document: %w", err)
	}
	if err := p.state.Save(ctx, data); err != nil {
		return fmt.Errorf("save event document: %w", err)
	}
	return nil
}

// update runs fn against the event record and saves the document when fn succeeds.
func (p *Platform) update(ctx context.Context, eventID string, fn func(doc *Document, rec *EventRecord) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	doc, err := p.load(ctx)
	if err != nil {
		return err
	}
	rec, ok := doc.Events[eventID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrEventNotFound, eventID)
	}
	if err := fn(doc, rec); err != nil {
		return err
	}
	return p.save(ctx, doc)
}

// view loads the event and its participants without saving.
func (p *Platform) view(ctx context.Context, eventID string) (mealwizard.Event, []mealwizard.Participant, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	doc, err := p.load(ctx)
	if err != nil {
		return mealwizard.Event{}, nil, err
	}
	rec, ok := doc.Events[eventID]
	if !ok {
		return mealwizard.Event{}, nil, fmt.Errorf("%w: %s", ErrEventNotFound, eventID)
	}

	var participants []mealwizard.Participant
	for _, pt := range doc.Accounts[rec.AccountID] {
		if slices.Contains(rec.ParticipantIDs, pt.ID) {
			participants = append(participants, pt)
		}
	}
	return rec.Event, participants, nil
}

// PutEvent creates or replaces an event. Used to seed the document.
func (p *Platform) PutEvent(ctx context.Context, ev mealwizard.Event, participants []mealwizard.Participant) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	doc, err := p.load(ctx)
	if err != nil {
		return err
	}
	doc.Events[ev.ID] = &EventRecord{Event: ev}
	for _, pt := range participants {
		acct := doc.Accounts[ev.AccountID]
		if i := slices.IndexFunc(acct, func(x mealwizard.Participant) bool { return x.ID == pt.ID }); i >= 0 {
			acct[i] = pt
		} else {
			acct = append(acct, pt)
		}
		doc.Accounts[ev.AccountID] = acct
	}
	return p.save(ctx, doc)
}

func (p *Platform) GetEvent(ctx context.Context, eventID string) (mealwizard.Event, error) {
	ev, _, err := p.view(ctx, eventID)
	return ev, err
}

func (p *Platform) ListParticipants(ctx context.Context, accountID string) ([]mealwizard.Participant, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	doc, err := p.load(ctx)
	if err != nil {
		return nil, err
	}
	return slices.Clone(doc.Accounts[accountID]), nil
}

func (p *Platform) SuggestBudget(ctx context.Context, eventID string) (mealwizard.BudgetSuggestion, error) {
	if p.backend == nil {
		return mealwizard.BudgetSuggestion{}, ErrNoBackend
	}
	ev, participants, err := p.view(ctx, eventID)
	if err != nil {
		return mealwizard.BudgetSuggestion{}, err
	}
	return p.backend.SuggestBudget(ctx, ev, participants)
}

// GenerateRecipes asks the backend for recipes and stores them so they can be
// attached later. Recipes without an id get one.
func (p *Platform) GenerateRecipes(ctx context.Context, eventID string, req mealwizard.GenerateRequest) ([]mealwizard.RawRecipe, error) {
	if p.backend == nil {
		return nil, ErrNoBackend
	}
	ev, participants, err := p.view(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if req.ConsiderHealth && len(req.TargetParticipantIDs) > 0 {
		participants = slices.DeleteFunc(participants, func(pt mealwizard.Participant) bool {
			return !slices.Contains(req.TargetParticipantIDs, pt.ID)
		})
	} else if !req.ConsiderHealth {
		participants = nil
	}

	recipes, err := p.backend.GenerateRecipes(ctx, ev, req, participants)
	if err != nil {
		return nil, err
	}
	for i := range recipes {
		if strings.TrimSpace(recipes[i].ID) == "" {
			recipes[i].ID = p.newID()
		}
	}

	err = p.update(ctx, eventID, func(doc *Document, _ *EventRecord) error {
		for _, r := range recipes {
			doc.Recipes[r.ID] = r
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.Info("LOCAL: Stored generated recipes", "event_id", eventID, "category", string(req.Category), "count", len(recipes))
	return recipes, nil
}

func (p *Platform) CreateMeal(ctx context.Context, eventID string, meal mealwizard.NewMeal) (string, error) {
	id := p.newID()
	err := p.update(ctx, eventID, func(_ *Document, rec *EventRecord) error {
		rec.ExistingMeals = append(rec.ExistingMeals, mealwizard.Meal{
			ID:            id,
			Category:      meal.Category,
			ScheduledTime: meal.ScheduledTime,
			Notes:         meal.Notes,
		})
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *Platform) AttachRecipe(ctx context.Context, eventID, mealID string, att mealwizard.RecipeAttachment) error {
	return p.update(ctx, eventID, func(_ *Document, rec *EventRecord) error {
		i := slices.IndexFunc(rec.ExistingMeals, func(m mealwizard.Meal) bool { return m.ID == mealID })
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrMealNotFound, mealID)
		}
		rec.ExistingMeals[i].RecipeIDs = append(rec.ExistingMeals[i].RecipeIDs, att.RecipeID)
		rec.Attachments = append(rec.Attachments, Attachment{
			MealID:   mealID,
			RecipeID: att.RecipeID,
			Servings: att.Servings,
			Notes:    att.Notes,
		})
		return nil
	})
}

func (p *Platform) CreateItem(ctx context.Context, eventID string, item mealwizard.NewItem) (string, error) {
	id := p.newID()
	err := p.update(ctx, eventID, func(_ *Document, rec *EventRecord) error {
		rec.Items = append(rec.Items, mealwizard.Item{
			ID:            id,
			Name:          item.Name,
			Category:      item.Category,
			Quantity:      item.Quantity,
			Unit:          item.Unit,
			EstimatedCost: item.EstimatedCost,
		})
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *Platform) DeleteItem(ctx context.Context, eventID, itemID string) error {
	return p.update(ctx, eventID, func(_ *Document, rec *EventRecord) error {
		n := len(rec.Items)
		rec.Items = slices.DeleteFunc(rec.Items, func(it mealwizard.Item) bool { return it.ID == itemID })
		if len(rec.Items) == n {
			return fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
		}
		return nil
	})
}

func (p *Platform) ListItems(ctx context.Context, eventID string) ([]mealwizard.Item, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	doc, err := p.load(ctx)
	if err != nil {
		return nil, err
	}
	rec, ok := doc.Events[eventID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEventNotFound, eventID)
	}
	return slices.Clone(rec.Items), nil
}

// Attachments returns the recipes attached across the event's meals.
func (p *Platform) Attachments(ctx context.Context, eventID string) ([]Attachment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	doc, err := p.load(ctx)
	if err != nil {
		return nil, err
	}
	rec, ok := doc.Events[eventID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEventNotFound, eventID)
	}
	return slices.Clone(rec.Attachments), nil
}

// Recipe looks up a stored generated recipe.
func (p *Platform) Recipe(ctx context.Context, id string) (mealwizard.RawRecipe, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	doc, err := p.load(ctx)
	if err != nil {
		return mealwizard.RawRecipe{}, false, err
	}
	r, ok := doc.Recipes[id]
	return r, ok, nil
}

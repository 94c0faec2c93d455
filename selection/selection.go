// Package selection tracks which candidate ids are selected per meal category.
package selection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"mealwizard"
)

var ErrUnknownCandidate = errors.New("candidate is not in the category's list")

// CandidateSource exposes the current candidate list of a category.
type CandidateSource interface {
	Candidates(cat mealwizard.MealCategory) []mealwizard.RecipeCandidate
}

// CandidateFunc adapts a function to CandidateSource.
type CandidateFunc func(cat mealwizard.MealCategory) []mealwizard.RecipeCandidate

func (f CandidateFunc) Candidates(cat mealwizard.MealCategory) []mealwizard.RecipeCandidate {
	return f(cat)
}

type itemDeleter interface {
	DeleteItem(ctx context.Context, eventID, itemID string) error
}

// Store holds the selected ids per category in selection order. It is safe for
// concurrent use.
type Store struct {
	mu       sync.RWMutex
	selected map[mealwizard.MealCategory][]string
	source   CandidateSource
	items    itemDeleter
	eventID  string
}

func NewStore(eventID string, source CandidateSource, items itemDeleter) *Store {
	return &Store{
		selected: make(map[mealwizard.MealCategory][]string),
		source:   source,
		items:    items,
		eventID:  eventID,
	}
}

// Toggle flips id in the category's selection and reports whether it is now
// selected. Only ids present in the category's candidates can be selected.
func (s *Store) Toggle(cat mealwizard.MealCategory, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := slices.Index(s.selected[cat], id); i >= 0 {
		s.selected[cat] = slices.Delete(s.selected[cat], i, i+1)
		return false, nil
	}
	if !s.known(cat, id) {
		return false, fmt.Errorf("%w: %s/%s", ErrUnknownCandidate, cat, id)
	}
	s.selected[cat] = append(s.selected[cat], id)
	return true, nil
}

// Select adds the ids not yet selected. Unknown ids fail the whole call.
func (s *Store) Select(cat mealwizard.MealCategory, ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if !s.known(cat, id) {
			return fmt.Errorf("%w: %s/%s", ErrUnknownCandidate, cat, id)
		}
	}
	for _, id := range ids {
		if !slices.Contains(s.selected[cat], id) {
			s.selected[cat] = append(s.selected[cat], id)
		}
	}
	return nil
}

// Remove deselects id. For add-on categories the underlying item is deleted
// remotely first and local state changes only when that succeeds.
func (s *Store) Remove(ctx context.Context, cat mealwizard.MealCategory, id string) error {
	if cat.IsAddOn() {
		if s.items == nil {
			return errors.New("no item store configured")
		}
		if err := s.items.DeleteItem(ctx, s.eventID, id); err != nil {
			slog.Error("SELECTION: Failed to delete item", "category", string(cat), "item_id", id, "error", err)
			return fmt.Errorf("delete item %s: %w", id, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected[cat] = slices.DeleteFunc(s.selected[cat], func(sel string) bool { return sel == id })
	return nil
}

// Retain drops selections of cat whose id is not in ids.
func (s *Store) Retain(cat mealwizard.MealCategory, ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected[cat] = slices.DeleteFunc(s.selected[cat], func(sel string) bool { return !slices.Contains(ids, sel) })
}

func (s *Store) IsSelected(cat mealwizard.MealCategory, id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Contains(s.selected[cat], id)
}

// Selected returns the selected ids of a category in selection order.
func (s *Store) Selected(cat mealwizard.MealCategory) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.selected[cat])
}

// SelectedCandidates resolves the selected ids of a category against its candidates.
func (s *Store) SelectedCandidates(cat mealwizard.MealCategory) []mealwizard.RecipeCandidate {
	ids := s.Selected(cat)
	if len(ids) == 0 {
		return nil
	}

	byID := make(map[string]mealwizard.RecipeCandidate)
	for _, c := range s.source.Candidates(cat) {
		byID[c.ID] = c
	}

	out := make([]mealwizard.RecipeCandidate, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

// CountSelected sums the selection sizes across all categories.
func (s *Store) CountSelected() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, ids := range s.selected {
		n += len(ids)
	}
	return n
}

// Categories returns the categories with at least one selection, in canonical order.
func (s *Store) Categories() []mealwizard.MealCategory {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []mealwizard.MealCategory
	for _, c := range mealwizard.AllCategories() {
		if len(s.selected[c]) > 0 {
			out = append(out, c)
		}
	}
	return out
}

func (s *Store) known(cat mealwizard.MealCategory, id string) bool {
	return slices.ContainsFunc(s.source.Candidates(cat), func(c mealwizard.RecipeCandidate) bool {
		return c.ID == id
	})
}

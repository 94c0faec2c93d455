// Package health reduces participant health profiles into aggregate label counts.
package health

import (
	"slices"
	"strings"

	"mealwizard"
)

// Selection is the set of participants whose health constraints are considered.
// The zero value considers nobody.
type Selection struct {
	participants []mealwizard.Participant
	selected     map[string]bool
}

// NewSelection starts with every given participant selected.
func NewSelection(participants []mealwizard.Participant) *Selection {
	s := &Selection{
		participants: slices.Clone(participants),
		selected:     make(map[string]bool, len(participants)),
	}
	for _, p := range participants {
		s.selected[p.ID] = true
	}
	return s
}

// Toggle flips a participant's inclusion. Unknown ids are ignored.
func (s *Selection) Toggle(id string) bool {
	if !s.known(id) {
		return false
	}
	s.selected[id] = !s.selected[id]
	return s.selected[id]
}

// Set replaces the selection with ids, ignoring unknown ones.
func (s *Selection) Set(ids []string) {
	s.selected = make(map[string]bool, len(ids))
	for _, id := range ids {
		if s.known(id) {
			s.selected[id] = true
		}
	}
}

// IDs returns the selected participant ids in participant order.
func (s *Selection) IDs() []string {
	ids := make([]string, 0, len(s.selected))
	for _, p := range s.participants {
		if s.selected[p.ID] {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

func (s *Selection) Participants() []mealwizard.Participant {
	return slices.Clone(s.participants)
}

// Aggregate recomputes the counts from the current selection.
func (s *Selection) Aggregate() mealwizard.HealthAggregate {
	return Aggregate(s.participants, s.IDs())
}

func (s *Selection) known(id string) bool {
	return slices.ContainsFunc(s.participants, func(p mealwizard.Participant) bool { return p.ID == id })
}

// Aggregate counts dietary restrictions, allergies and health conditions across
// the participants whose id is in selected. Participants without a profile still
// count as considered. Labels are trimmed; empty labels are skipped.
func Aggregate(participants []mealwizard.Participant, selected []string) mealwizard.HealthAggregate {
	agg := mealwizard.HealthAggregate{
		DietaryRestrictionCounts: map[string]int{},
		AllergyCounts:            map[string]int{},
		HealthConditionCounts:    map[string]int{},
	}

	want := make(map[string]bool, len(selected))
	for _, id := range selected {
		want[id] = true
	}

	for _, p := range participants {
		if !want[p.ID] {
			continue
		}
		agg.ConsideredParticipantCount++
		if p.HealthProfile == nil {
			continue
		}
		count(agg.DietaryRestrictionCounts, p.HealthProfile.DietaryRestrictions)
		count(agg.AllergyCounts, p.HealthProfile.Allergies)
		count(agg.HealthConditionCounts, p.HealthProfile.HealthConditions)
	}

	return agg
}

func count(into map[string]int, labels []string) {
	for _, l := range labels {
		if l = strings.TrimSpace(l); l != "" {
			into[l]++
		}
	}
}

package generation

import (
	"slices"

	"mealwizard"
)

// Status is the generation lifecycle of one category.
type Status int

const (
	StatusIdle Status = iota
	StatusGenerating
	StatusError
	StatusReady
)

func (s Status) String() string {
	switch s {
	case StatusGenerating:
		return "generating"
	case StatusError:
		return "error"
	case StatusReady:
		return "ready"
	default:
		return "idle"
	}
}

// CategoryState is the generation record of one category. Err is set only
// while Status is StatusError.
type CategoryState struct {
	Category       mealwizard.MealCategory
	Status         Status
	Candidates     []mealwizard.RecipeCandidate
	LastSearchTerm string
	Err            error
	AutoSelect     bool
}

func (s CategoryState) clone() CategoryState {
	s.Candidates = slices.Clone(s.Candidates)
	return s
}

// Merge builds the candidate list after a generation: fresh candidates first
// (deduplicated by id, first occurrence wins), then the prior candidates that
// are selected and not replaced by a fresh one. Unselected prior candidates are
// dropped. A fresh candidate replacing a saved prior one stays saved.
func Merge(prior []mealwizard.RecipeCandidate, selected []string, fresh []mealwizard.RecipeCandidate) []mealwizard.RecipeCandidate {
	saved := make(map[string]bool)
	for _, c := range prior {
		if c.IsSaved {
			saved[c.ID] = true
		}
	}

	seen := make(map[string]bool, len(fresh)+len(prior))
	out := make([]mealwizard.RecipeCandidate, 0, len(fresh)+len(selected))

	for _, c := range fresh {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		if saved[c.ID] {
			c.IsSaved = true
		}
		out = append(out, c)
	}

	for _, c := range prior {
		if seen[c.ID] || !slices.Contains(selected, c.ID) {
			continue
		}
		seen[c.ID] = true
		out = append(out, c)
	}

	return out
}

func ids(cands []mealwizard.RecipeCandidate) []string {
	out := make([]string, 0, len(cands))
	for _, c := range cands {
		out = append(out, c.ID)
	}
	return out
}

func fromItem(it mealwizard.Item) mealwizard.RecipeCandidate {
	return mealwizard.RecipeCandidate{
		ID:            it.ID,
		Name:          it.Name,
		EstimatedCost: it.EstimatedCost,
		IsSaved:       true,
	}
}

package wizard

import (
	"errors"
	"fmt"
	"slices"

	"mealwizard"
)

type Step string

const (
	StepHealth      Step = "health"
	StepBudget      Step = "budget"
	StepMainCourses Step = "main-courses"
	StepExtras      Step = "extras"
	StepReview      Step = "review"
)

var (
	ErrStepBlocked    = errors.New("step validation has not passed")
	ErrNoNextStep     = errors.New("already at the last step")
	ErrNoPreviousStep = errors.New("already at the first step")
	ErrInactiveGroup  = errors.New("category is not part of the current step")
	ErrNotReviewStep  = errors.New("plan can only be saved from the review step")
)

// Guard reports whether the given step may be left going forward.
type Guard func(Step) bool

// Steps computes the step sequence for a set of categories. The main-courses
// and extras steps are present only when their category group is non-empty.
func Steps(categories []mealwizard.MealCategory) []Step {
	primary, addOn := mealwizard.SplitCategories(categories)

	steps := []Step{StepHealth, StepBudget}
	if len(primary) > 0 {
		steps = append(steps, StepMainCourses)
	}
	if len(addOn) > 0 {
		steps = append(steps, StepExtras)
	}
	return append(steps, StepReview)
}

// Machine walks the steps strictly linearly and tracks the active category of
// the main-courses and extras steps.
type Machine struct {
	steps   []Step
	pos     int
	primary []mealwizard.MealCategory
	addOn   []mealwizard.MealCategory
	active  mealwizard.MealCategory
	guard   Guard
}

func NewMachine(categories []mealwizard.MealCategory, guard Guard) *Machine {
	primary, addOn := mealwizard.SplitCategories(categories)
	if guard == nil {
		guard = func(Step) bool { return true }
	}
	return &Machine{
		steps:   Steps(categories),
		primary: primary,
		addOn:   addOn,
		guard:   guard,
	}
}

func (m *Machine) Current() Step { return m.steps[m.pos] }

func (m *Machine) Steps() []Step { return slices.Clone(m.steps) }

func (m *Machine) Index() int { return m.pos }

func (m *Machine) IsLast() bool { return m.pos == len(m.steps)-1 }

// Active is the category cursor of the main-courses or extras step, empty on
// any other step.
func (m *Machine) Active() mealwizard.MealCategory { return m.active }

// Next advances one step unless the guard rejects leaving the current one.
func (m *Machine) Next() (Step, error) {
	if m.IsLast() {
		return m.Current(), ErrNoNextStep
	}
	if !m.guard(m.Current()) {
		return m.Current(), fmt.Errorf("%w: %s", ErrStepBlocked, m.Current())
	}
	m.pos++
	m.enter()
	return m.Current(), nil
}

// Back returns to the previous step. Going back is never guarded.
func (m *Machine) Back() (Step, error) {
	if m.pos == 0 {
		return m.Current(), ErrNoPreviousStep
	}
	m.pos--
	m.enter()
	return m.Current(), nil
}

// SetActive moves the category cursor within the current step's group.
func (m *Machine) SetActive(cat mealwizard.MealCategory) error {
	if !slices.Contains(m.group(), cat) {
		return fmt.Errorf("%w: %s on %s", ErrInactiveGroup, cat, m.Current())
	}
	m.active = cat
	return nil
}

func (m *Machine) enter() {
	m.active = ""
	if g := m.group(); len(g) > 0 {
		m.active = g[0]
	}
}

func (m *Machine) group() []mealwizard.MealCategory {
	switch m.Current() {
	case StepMainCourses:
		return m.primary
	case StepExtras:
		return m.addOn
	default:
		return nil
	}
}

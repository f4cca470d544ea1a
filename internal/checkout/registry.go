// Package checkout implements the multi-step checkout flow: an ordered
// registry of step handlers and the orchestrator that drives a customer
// through them.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/northcart/commerce/internal/domain"
)

var (
	// ErrNoStepsRegistered indicates the registry holds no handlers. This is a
	// fatal configuration error.
	ErrNoStepsRegistered = errors.New("checkout: no steps registered")
	// ErrStepConflict indicates two handlers claim the same route.
	ErrStepConflict = errors.New("checkout: step route already registered")
)

// FieldError is one user-facing validation message tied to a form field.
type FieldError struct {
	Field   string
	Message string
}

// StepDescriptor declares a step handler's position and route identity.
// Actions[0] is the canonical action the step is addressed by.
type StepDescriptor struct {
	Order         int
	Area          string
	Controller    string
	Actions       []string
	ProgressLabel string
}

// CanonicalRoute is the route the orchestrator redirects to for this step.
func (d StepDescriptor) CanonicalRoute() domain.Route {
	action := ""
	if len(d.Actions) > 0 {
		action = d.Actions[0]
	}
	return domain.Route{Area: d.Area, Controller: d.Controller, Action: action}
}

// Matches reports whether the descriptor claims the given route.
func (d StepDescriptor) Matches(route domain.Route) bool {
	if !strings.EqualFold(d.Area, route.Area) || !strings.EqualFold(d.Controller, route.Controller) {
		return false
	}
	for _, action := range d.Actions {
		if strings.EqualFold(action, route.Action) {
			return true
		}
	}
	return false
}

// StepResult is what a handler reports after processing its page.
type StepResult struct {
	Success bool
	Errors  []FieldError
	// SkipPage asks the orchestrator to move the customer off this page
	// without showing it.
	SkipPage bool
	// Redirect overrides the orchestrator's adjacent-step resolution.
	Redirect *domain.Route
	View     string
}

// Handler processes one checkout step.
type Handler interface {
	Descriptor() StepDescriptor
	Process(ctx context.Context, state *State) (StepResult, error)
}

// Step is a registered handler with its resolved descriptor.
type Step struct {
	Handler    Handler
	Descriptor StepDescriptor
	seq        int
}

// Registry holds the ordered step list. Built once at startup, immutable
// afterwards from the orchestrator's point of view.
type Registry struct {
	steps []Step
	// singlePage degenerates the flow to the final confirmation step.
	singlePage bool
}

// NewRegistry constructs an empty registry. With singlePage enabled the step
// list collapses to the last-ordered (confirmation) step.
func NewRegistry(singlePage bool) *Registry {
	return &Registry{singlePage: singlePage}
}

// Register appends a handler. Steps sort ascending by Order; ties keep
// registration order.
func (r *Registry) Register(h Handler) error {
	if h == nil {
		return errors.New("checkout: handler is required")
	}
	desc := h.Descriptor()
	if strings.TrimSpace(desc.Controller) == "" || len(desc.Actions) == 0 {
		return fmt.Errorf("checkout: step descriptor needs a controller and at least one action (order %d)", desc.Order)
	}
	for _, existing := range r.steps {
		for _, action := range desc.Actions {
			if existing.Descriptor.Matches(domain.Route{Area: desc.Area, Controller: desc.Controller, Action: action}) {
				return fmt.Errorf("%w: %s/%s", ErrStepConflict, desc.Controller, action)
			}
		}
	}

	r.steps = append(r.steps, Step{Handler: h, Descriptor: desc, seq: len(r.steps)})
	sort.SliceStable(r.steps, func(i, j int) bool {
		if r.steps[i].Descriptor.Order != r.steps[j].Descriptor.Order {
			return r.steps[i].Descriptor.Order < r.steps[j].Descriptor.Order
		}
		return r.steps[i].seq < r.steps[j].seq
	})
	return nil
}

// Steps returns the ordered step list.
func (r *Registry) Steps() []Step {
	if r.singlePage && len(r.steps) > 0 {
		return r.steps[len(r.steps)-1:]
	}
	return r.steps
}

// StepFor resolves the step claiming the given route, matching actions
// case-insensitively.
func (r *Registry) StepFor(route domain.Route) (Step, bool) {
	for _, step := range r.Steps() {
		if step.Descriptor.Matches(route) {
			return step, true
		}
	}
	return Step{}, false
}

// Adjacent returns the nearest step with a strictly greater (forward) or
// strictly lesser (backward) order value.
func (r *Registry) Adjacent(current Step, forward bool) (Step, bool) {
	steps := r.Steps()
	if forward {
		for _, step := range steps {
			if step.Descriptor.Order > current.Descriptor.Order {
				return step, true
			}
		}
		return Step{}, false
	}
	for i := len(steps) - 1; i >= 0; i-- {
		if steps[i].Descriptor.Order < current.Descriptor.Order {
			return steps[i], true
		}
	}
	return Step{}, false
}

// First returns the first step of the flow.
func (r *Registry) First() (Step, bool) {
	steps := r.Steps()
	if len(steps) == 0 {
		return Step{}, false
	}
	return steps[0], true
}

// Last returns the final (confirmation) step of the flow.
func (r *Registry) Last() (Step, bool) {
	steps := r.Steps()
	if len(steps) == 0 {
		return Step{}, false
	}
	return steps[len(steps)-1], true
}

// Empty reports whether no handler is registered.
func (r *Registry) Empty() bool {
	return len(r.steps) == 0
}

package checkout

import (
	"context"
	"testing"

	"github.com/northcart/commerce/internal/domain"
)

type stubHandler struct {
	desc   StepDescriptor
	result StepResult
	err    error
	calls  int
}

func (h *stubHandler) Descriptor() StepDescriptor { return h.desc }

func (h *stubHandler) Process(context.Context, *State) (StepResult, error) {
	h.calls++
	return h.result, h.err
}

func step(order int, action string) *stubHandler {
	return &stubHandler{
		desc:   StepDescriptor{Order: order, Controller: checkoutController, Actions: []string{action}},
		result: StepResult{Success: true},
	}
}

func TestRegistryOrdering(t *testing.T) {
	registry := NewRegistry(false)
	for _, h := range []*stubHandler{step(30, "C"), step(10, "A"), step(20, "B")} {
		if err := registry.Register(h); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}

	steps := registry.Steps()
	if len(steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(steps))
	}
	for i, want := range []string{"A", "B", "C"} {
		if got := steps[i].Descriptor.Actions[0]; got != want {
			t.Fatalf("step %d: expected %s, got %s", i, want, got)
		}
	}

	// Adjacent forward always returns the smallest strictly greater order.
	for i, s := range steps {
		next, ok := registry.Adjacent(s, true)
		if i == len(steps)-1 {
			if ok {
				t.Fatalf("expected no step after the last one")
			}
			continue
		}
		if !ok || next.Descriptor.Order != steps[i+1].Descriptor.Order {
			t.Fatalf("adjacent of step %d: got ok=%v order=%d", i, ok, next.Descriptor.Order)
		}
	}
	if _, ok := registry.Adjacent(steps[0], false); ok {
		t.Fatalf("expected no step before the first one")
	}
	prev, ok := registry.Adjacent(steps[2], false)
	if !ok || prev.Descriptor.Actions[0] != "B" {
		t.Fatalf("expected B before C, got ok=%v %+v", ok, prev.Descriptor)
	}
}

func TestRegistryTieKeepsRegistrationOrder(t *testing.T) {
	registry := NewRegistry(false)
	first := step(10, "First")
	second := step(10, "Second")
	if err := registry.Register(first); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := registry.Register(second); err != nil {
		t.Fatalf("Register: %v", err)
	}

	steps := registry.Steps()
	if steps[0].Descriptor.Actions[0] != "First" || steps[1].Descriptor.Actions[0] != "Second" {
		t.Fatalf("tie should keep registration order, got %s then %s",
			steps[0].Descriptor.Actions[0], steps[1].Descriptor.Actions[0])
	}
}

func TestRegistryRejectsDuplicateRoute(t *testing.T) {
	registry := NewRegistry(false)
	if err := registry.Register(step(10, "Payment")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := registry.Register(step(20, "payment")); err == nil {
		t.Fatalf("expected duplicate route registration to fail")
	}
}

func TestRegistryStepForIsCaseInsensitive(t *testing.T) {
	registry := NewRegistry(false)
	if err := registry.Register(step(10, "BillingAddress")); err != nil {
		t.Fatalf("Register: %v", err)
	}

	found, ok := registry.StepFor(domain.Route{Controller: "checkout", Action: "billingaddress"})
	if !ok || found.Descriptor.Order != 10 {
		t.Fatalf("expected case-insensitive route match, got ok=%v", ok)
	}
	if _, ok := registry.StepFor(domain.Route{Controller: "Checkout", Action: "Nope"}); ok {
		t.Fatalf("expected no match for unknown action")
	}
}

func TestRegistrySinglePageMode(t *testing.T) {
	registry := NewRegistry(true)
	for _, h := range []*stubHandler{step(10, "A"), step(50, "Confirm"), step(20, "B")} {
		if err := registry.Register(h); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}

	steps := registry.Steps()
	if len(steps) != 1 || steps[0].Descriptor.Actions[0] != "Confirm" {
		t.Fatalf("single page mode should expose only the confirmation step, got %d steps", len(steps))
	}
}

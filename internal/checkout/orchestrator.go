package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/northcart/commerce/internal/domain"
)

// Well-known routes outside the step list.
var (
	// RouteCart is the shopping cart page customers fall back to.
	RouteCart = domain.Route{Controller: "ShoppingCart", Action: "Cart"}
	// RouteIndex is the checkout entry page.
	RouteIndex = domain.Route{Controller: "Checkout", Action: "Index"}
	// RouteCompleted is the post-placement confirmation page.
	RouteCompleted = domain.Route{Controller: "Checkout", Action: "Completed"}
)

var (
	// ErrNoNextStep indicates the flow cannot advance past the current step.
	ErrNoNextStep = errors.New("checkout: no next step resolvable")
)

// State is the explicit checkout context threaded through every operation:
// the cart, the current route, and the request's parsed inputs. Handlers
// mutate Cart and Customer in place; the orchestrator persists nothing itself.
type State struct {
	Cart     *domain.Cart
	Customer *domain.Customer

	// Route identifies the page the request targets.
	Route domain.Route
	// Referrer is the parsed HTTP referrer route, nil when unparseable.
	Referrer *domain.Route

	Form      map[string]string
	Selection map[string]any
}

// NavKind tags the orchestrator's navigation decision.
type NavKind string

const (
	// NavStay keeps the customer on the current page (optionally with errors).
	NavStay NavKind = "stay"
	// NavRedirect sends the customer to another checkout route.
	NavRedirect NavKind = "redirect"
	// NavRedirectCart sends the customer back to the cart page.
	NavRedirectCart NavKind = "redirect_cart"
	// NavAuthRequired challenges an unregistered customer to sign in.
	NavAuthRequired NavKind = "auth_required"
	// NavRedirectURL follows an external (payment provider) redirect.
	NavRedirectURL NavKind = "redirect_url"
	// NavCompleted lands on the order-completed page.
	NavCompleted NavKind = "completed"
)

// Navigation is the orchestrator's answer to "what happens next".
type Navigation struct {
	Kind     NavKind
	Route    domain.Route
	URL      string
	OrderID  string
	View     string
	Errors   []FieldError
	Warnings []string
}

// CartValidator revalidates the cart and its items, returning user-facing
// warnings. An empty slice means the cart is placeable.
type CartValidator interface {
	ValidateCart(ctx context.Context, cart domain.Cart, customer domain.Customer) ([]string, error)
}

// PlacementResult is the placement outcome the orchestrator navigates on.
type PlacementResult struct {
	OrderID string
	// Approved is false when the payment gateway declined; DeclineReasons
	// carries the gateway's messages.
	Approved       bool
	DeclineReasons []string
	// RedirectURL is set when the payment provider requires a browser
	// round-trip to finish the payment.
	RedirectURL string
}

// OrderPlacer runs the order placement pipeline for a validated checkout.
type OrderPlacer interface {
	PlaceFromCheckout(ctx context.Context, cart domain.Cart, customer domain.Customer) (PlacementResult, error)
}

// CustomerStore persists checkout-session mutations made by step handlers.
type CustomerStore interface {
	Update(ctx context.Context, customer domain.Customer) error
}

// Settings carries the orchestrator policy knobs.
type Settings struct {
	// AnonymousCheckoutAllowed lets unregistered customers check out.
	AnonymousCheckoutAllowed bool
	// QuickCheckout runs every step non-interactively until one fails.
	QuickCheckout bool
	// MinOrderInterval is the minimum wall-clock gap between two orders of one
	// customer. Zero disables the guard.
	MinOrderInterval time.Duration
	// MaxWarnings caps how many validation warnings are surfaced at once.
	MaxWarnings int
}

// Orchestrator drives Start, Process, Advance and Complete over the step
// registry.
type Orchestrator struct {
	registry  *Registry
	validator CartValidator
	placer    OrderPlacer
	customers CustomerStore
	settings  Settings
	now       func() time.Time
	logger    func(ctx context.Context, event string, fields map[string]any)
}

// OrchestratorDeps wires the orchestrator's collaborators.
type OrchestratorDeps struct {
	Registry  *Registry
	Validator CartValidator
	Placer    OrderPlacer
	Customers CustomerStore
	Settings  Settings
	Clock     func() time.Time
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

// NewOrchestrator validates dependencies and constructs the orchestrator. An
// empty step registry is rejected outright.
func NewOrchestrator(deps OrchestratorDeps) (*Orchestrator, error) {
	if deps.Registry == nil {
		return nil, errors.New("checkout orchestrator: registry is required")
	}
	if deps.Registry.Empty() {
		return nil, ErrNoStepsRegistered
	}
	if deps.Validator == nil {
		return nil, errors.New("checkout orchestrator: cart validator is required")
	}
	if deps.Placer == nil {
		return nil, errors.New("checkout orchestrator: order placer is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	settings := deps.Settings
	if settings.MaxWarnings <= 0 {
		settings.MaxWarnings = 10
	}

	return &Orchestrator{
		registry:  deps.Registry,
		validator: deps.Validator,
		placer:    deps.Placer,
		customers: deps.Customers,
		settings:  settings,
		now:       func() time.Time { return clock().UTC() },
		logger:    logger,
	}, nil
}

// Start enters the checkout flow: preliminary guards, stale-state reset, full
// cart revalidation, then delegation to Advance.
func (o *Orchestrator) Start(ctx context.Context, state *State) (Navigation, error) {
	if nav, blocked := o.preliminary(state); blocked {
		return nav, nil
	}

	o.resetCheckoutData(ctx, state)

	warnings, err := o.validator.ValidateCart(ctx, *state.Cart, *state.Customer)
	if err != nil {
		return Navigation{}, fmt.Errorf("checkout start: %w", err)
	}
	if len(warnings) > 0 {
		return Navigation{Kind: NavRedirectCart, Warnings: o.capWarnings(warnings)}, nil
	}

	if first, ok := o.registry.First(); ok {
		state.Route = first.Descriptor.CanonicalRoute()
	}
	return o.Advance(ctx, state)
}

// Process runs the step matching the current route and decides where the
// customer goes next.
func (o *Orchestrator) Process(ctx context.Context, state *State) (Navigation, error) {
	if nav, blocked := o.preliminary(state); blocked {
		return nav, nil
	}

	step, ok := o.registry.StepFor(state.Route)
	if !ok {
		return Navigation{Kind: NavRedirectCart}, nil
	}

	result, err := step.Handler.Process(ctx, state)
	if err != nil {
		return Navigation{}, fmt.Errorf("checkout process %s: %w", step.Descriptor.CanonicalRoute().Action, err)
	}
	o.persistCustomer(ctx, state)

	if result.Redirect != nil {
		return Navigation{Kind: NavRedirect, Route: *result.Redirect}, nil
	}
	if result.SkipPage {
		adjacent, ok := o.adjacentByReferrer(ctx, state, step)
		if !ok {
			return Navigation{Kind: NavRedirectCart}, nil
		}
		return Navigation{Kind: NavRedirect, Route: adjacent.Descriptor.CanonicalRoute()}, nil
	}
	return Navigation{Kind: NavStay, View: result.View, Errors: result.Errors}, nil
}

// Advance moves the customer to the next unsatisfied step. With quick
// checkout enabled every step runs in order until one fails.
func (o *Orchestrator) Advance(ctx context.Context, state *State) (Navigation, error) {
	if nav, blocked := o.preliminary(state); blocked {
		return nav, nil
	}

	if o.settings.QuickCheckout {
		return o.advanceQuick(ctx, state)
	}

	step, ok := o.registry.StepFor(state.Route)
	if !ok {
		if first, ok := o.registry.First(); ok {
			return Navigation{Kind: NavRedirect, Route: first.Descriptor.CanonicalRoute()}, nil
		}
		return Navigation{}, ErrNoStepsRegistered
	}

	result, err := step.Handler.Process(ctx, state)
	if err != nil {
		return Navigation{}, fmt.Errorf("checkout advance %s: %w", step.Descriptor.CanonicalRoute().Action, err)
	}
	o.persistCustomer(ctx, state)

	if !result.Success {
		return Navigation{Kind: NavStay, View: result.View, Errors: result.Errors}, nil
	}
	next, ok := o.registry.Adjacent(step, true)
	if !ok {
		return Navigation{}, fmt.Errorf("%w: after %s", ErrNoNextStep, step.Descriptor.CanonicalRoute().Action)
	}
	return Navigation{Kind: NavRedirect, Route: next.Descriptor.CanonicalRoute()}, nil
}

func (o *Orchestrator) advanceQuick(ctx context.Context, state *State) (Navigation, error) {
	for _, step := range o.registry.Steps() {
		state.Route = step.Descriptor.CanonicalRoute()
		result, err := step.Handler.Process(ctx, state)
		if err != nil {
			return Navigation{}, fmt.Errorf("checkout quick advance %s: %w", state.Route.Action, err)
		}
		if !result.Success {
			o.persistCustomer(ctx, state)
			if result.Redirect != nil {
				return Navigation{Kind: NavRedirect, Route: *result.Redirect, Errors: result.Errors}, nil
			}
			return Navigation{Kind: NavRedirect, Route: state.Route, Errors: result.Errors}, nil
		}
	}
	o.persistCustomer(ctx, state)

	last, ok := o.registry.Last()
	if !ok {
		return Navigation{}, ErrNoStepsRegistered
	}
	return Navigation{Kind: NavRedirect, Route: last.Descriptor.CanonicalRoute()}, nil
}

// Complete revalidates, enforces the minimum order interval and hands the
// cart to the placement pipeline.
func (o *Orchestrator) Complete(ctx context.Context, state *State) (Navigation, error) {
	if nav, blocked := o.preliminary(state); blocked {
		return nav, nil
	}

	warnings, err := o.validator.ValidateCart(ctx, *state.Cart, *state.Customer)
	if err != nil {
		return Navigation{}, fmt.Errorf("checkout complete: %w", err)
	}
	if len(warnings) > 0 {
		return Navigation{Kind: NavRedirectCart, Warnings: o.capWarnings(warnings)}, nil
	}

	if msg, blocked := o.minOrderIntervalBlocked(state.Customer); blocked {
		return Navigation{Kind: NavStay, Errors: []FieldError{{Message: msg}}}, nil
	}

	result, err := o.placer.PlaceFromCheckout(ctx, *state.Cart, *state.Customer)
	if err != nil {
		o.logger(ctx, "checkout.complete.failed", map[string]any{
			"customer_id": state.Customer.ID,
			"error":       err.Error(),
		})
		return Navigation{Kind: NavStay, Errors: []FieldError{{Message: "the order could not be placed"}}}, nil
	}
	if !result.Approved {
		nav := Navigation{Kind: NavStay}
		if payment, ok := o.paymentStep(); ok {
			nav = Navigation{Kind: NavRedirect, Route: payment.Descriptor.CanonicalRoute()}
		}
		for _, reason := range result.DeclineReasons {
			nav.Errors = append(nav.Errors, FieldError{Message: reason})
		}
		if len(nav.Errors) == 0 {
			nav.Errors = []FieldError{{Message: "payment was declined"}}
		}
		return nav, nil
	}

	if result.RedirectURL != "" {
		return Navigation{Kind: NavRedirectURL, URL: result.RedirectURL, OrderID: result.OrderID}, nil
	}
	return Navigation{Kind: NavCompleted, Route: RouteCompleted, OrderID: result.OrderID}, nil
}

// preliminary applies the guards shared by every entry point: anonymous
// checkout policy, then non-empty cart. A missing customer counts as an
// unregistered guest and a missing cart as an empty one.
func (o *Orchestrator) preliminary(state *State) (Navigation, bool) {
	registered := state.Customer != nil && state.Customer.IsRegistered
	if !o.settings.AnonymousCheckoutAllowed && !registered {
		return Navigation{Kind: NavAuthRequired}, true
	}
	if state.Customer == nil {
		state.Customer = &domain.Customer{}
	}
	if state.Cart == nil || len(state.Cart.Items) == 0 {
		return Navigation{Kind: NavRedirectCart}, true
	}
	return Navigation{}, false
}

// adjacentByReferrer resolves which neighbour a forced page skip should land
// on. Unparseable referrers fall back to forward; this is a best-effort
// heuristic, not a guarantee.
func (o *Orchestrator) adjacentByReferrer(ctx context.Context, state *State, current Step) (Step, bool) {
	forward := true
	switch {
	case state.Referrer == nil || state.Referrer.IsZero():
		// fallback forward
		o.logger(ctx, "checkout.adjacent.fallback_forward", map[string]any{
			"step": current.Descriptor.CanonicalRoute().Action,
		})
	case state.Referrer.Equal(RouteIndex):
		forward = true
	default:
		if last, ok := o.registry.Last(); ok && last.Descriptor.Matches(*state.Referrer) {
			forward = false
			break
		}
		if from, ok := o.registry.StepFor(*state.Referrer); ok {
			forward = from.Descriptor.Order < current.Descriptor.Order
		}
	}
	return o.registry.Adjacent(current, forward)
}

func (o *Orchestrator) minOrderIntervalBlocked(customer *domain.Customer) (string, bool) {
	if o.settings.MinOrderInterval <= 0 || customer.MinOrderPlacementExempted {
		return "", false
	}
	if customer.LastOrderPlacedAt == nil {
		return "", false
	}
	elapsed := o.now().Sub(*customer.LastOrderPlacedAt)
	if elapsed >= o.settings.MinOrderInterval {
		return "", false
	}
	return "orders cannot be placed this quickly one after another", true
}

// resetCheckoutData clears selections left over from an earlier checkout run.
func (o *Orchestrator) resetCheckoutData(ctx context.Context, state *State) {
	if state.Customer == nil {
		return
	}
	state.Customer.SelectedShippingOption = nil
	state.Customer.SelectedPaymentMethod = ""
	state.Customer.SelectedPickupInStore = false
	state.Customer.CheckoutAttributesDesc = ""
	o.persistCustomer(ctx, state)
}

// persistCustomer flushes handler mutations; persistence failures are logged
// and otherwise tolerated, the in-memory state stays authoritative for the
// rest of the request.
func (o *Orchestrator) persistCustomer(ctx context.Context, state *State) {
	if o.customers == nil {
		return
	}
	if err := o.customers.Update(ctx, *state.Customer); err != nil {
		o.logger(ctx, "checkout.customer_update.failed", map[string]any{
			"customer_id": state.Customer.ID,
			"error":       err.Error(),
		})
	}
}

func (o *Orchestrator) paymentStep() (Step, bool) {
	return o.registry.StepFor(RoutePaymentMethod)
}

func (o *Orchestrator) capWarnings(warnings []string) []string {
	if len(warnings) > o.settings.MaxWarnings {
		return warnings[:o.settings.MaxWarnings]
	}
	return warnings
}

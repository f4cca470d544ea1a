package checkout

import (
	"context"
	"errors"
	"strings"

	"github.com/northcart/commerce/internal/domain"
	"github.com/northcart/commerce/internal/pricing"
)

// Built-in step ordering. Gaps leave room for store-specific steps.
const (
	OrderBillingAddress  = 10
	OrderShippingAddress = 20
	OrderShippingMethod  = 30
	OrderPaymentMethod   = 40
	OrderConfirm         = 50
)

const checkoutController = "Checkout"

// Canonical routes of the built-in steps.
var (
	RouteBillingAddress  = domain.Route{Controller: checkoutController, Action: "BillingAddress"}
	RouteShippingAddress = domain.Route{Controller: checkoutController, Action: "ShippingAddress"}
	RouteShippingMethod  = domain.Route{Controller: checkoutController, Action: "ShippingMethod"}
	RoutePaymentMethod   = domain.Route{Controller: checkoutController, Action: "PaymentMethod"}
	RouteConfirm         = domain.Route{Controller: checkoutController, Action: "Confirm"}
)

// Selection keys handlers read from State.Selection.
const (
	SelectionBillingAddress  = "billing_address"
	SelectionShippingAddress = "shipping_address"
	SelectionShipToSame      = "ship_to_same_address"
	SelectionShippingOption  = "shipping_option"
	SelectionPaymentMethod   = "payment_method"
	SelectionPickupInStore   = "pickup_in_store"
)

// TotalCalculator is the slice of the pricing engine the payment step needs.
type TotalCalculator interface {
	CartGrandTotal(ctx context.Context, cart domain.Cart, customer domain.Customer) (pricing.GrandTotal, error)
}

// PaymentMethodDirectory lists the payment methods currently accepting
// orders.
type PaymentMethodDirectory interface {
	ActiveMethodNames() []string
}

// BillingAddressStep captures the billing address.
type BillingAddressStep struct{}

// Descriptor implements Handler.
func (BillingAddressStep) Descriptor() StepDescriptor {
	return StepDescriptor{
		Order:         OrderBillingAddress,
		Controller:    checkoutController,
		Actions:       []string{"BillingAddress", "SelectBillingAddress"},
		ProgressLabel: "Address",
	}
}

// Process implements Handler. An address submitted with the request wins over
// the stored one; a stored address lets the page be skipped.
func (BillingAddressStep) Process(_ context.Context, state *State) (StepResult, error) {
	if addr, ok := state.Selection[SelectionBillingAddress].(*domain.Address); ok && addr != nil {
		state.Customer.BillingAddress = addr
		return StepResult{Success: true}, nil
	}
	if state.Customer.BillingAddress != nil {
		return StepResult{Success: true, SkipPage: true}, nil
	}
	return StepResult{
		View:   "billing_address",
		Errors: []FieldError{{Field: "billing_address", Message: "a billing address is required"}},
	}, nil
}

// ShippingAddressStep captures the shipping address for shippable carts.
type ShippingAddressStep struct{}

// Descriptor implements Handler.
func (ShippingAddressStep) Descriptor() StepDescriptor {
	return StepDescriptor{
		Order:         OrderShippingAddress,
		Controller:    checkoutController,
		Actions:       []string{"ShippingAddress", "SelectShippingAddress"},
		ProgressLabel: "Shipping",
	}
}

// Process implements Handler.
func (ShippingAddressStep) Process(_ context.Context, state *State) (StepResult, error) {
	if !state.Cart.RequiresShipping() {
		state.Customer.ShippingAddress = nil
		state.Cart.Requirements = state.Cart.Requirements.Without(domain.RequireShippingAddress)
		return StepResult{Success: true, SkipPage: true}, nil
	}

	if pickup, ok := state.Selection[SelectionPickupInStore].(bool); ok && pickup {
		state.Customer.SelectedPickupInStore = true
		state.Customer.ShippingAddress = nil
		return StepResult{Success: true}, nil
	}
	if same, ok := state.Selection[SelectionShipToSame].(bool); ok && same && state.Customer.BillingAddress != nil {
		clone := *state.Customer.BillingAddress
		state.Customer.ShippingAddress = &clone
		return StepResult{Success: true}, nil
	}
	if addr, ok := state.Selection[SelectionShippingAddress].(*domain.Address); ok && addr != nil {
		state.Customer.ShippingAddress = addr
		return StepResult{Success: true}, nil
	}
	if state.Customer.ShippingAddress != nil {
		return StepResult{Success: true, SkipPage: true}, nil
	}
	return StepResult{
		View:   "shipping_address",
		Errors: []FieldError{{Field: "shipping_address", Message: "a shipping address is required"}},
	}, nil
}

// ShippingMethodStep selects a shipping rate. With exactly one active rate
// method the page is never shown; its quote is selected automatically.
type ShippingMethodStep struct {
	rates pricing.ShippingRateProvider
}

// NewShippingMethodStep constructs the shipping method step.
func NewShippingMethodStep(rates pricing.ShippingRateProvider) (*ShippingMethodStep, error) {
	if rates == nil {
		return nil, errors.New("shipping method step: rate provider is required")
	}
	return &ShippingMethodStep{rates: rates}, nil
}

// Descriptor implements Handler.
func (*ShippingMethodStep) Descriptor() StepDescriptor {
	return StepDescriptor{
		Order:         OrderShippingMethod,
		Controller:    checkoutController,
		Actions:       []string{"ShippingMethod", "SelectShippingMethod"},
		ProgressLabel: "Shipping method",
	}
}

// Process implements Handler.
func (s *ShippingMethodStep) Process(ctx context.Context, state *State) (StepResult, error) {
	if !state.Cart.RequiresShipping() || state.Customer.SelectedPickupInStore {
		state.Customer.SelectedShippingOption = nil
		state.Cart.Requirements = state.Cart.Requirements.Without(domain.RequireShippingMethod)
		return StepResult{Success: true, SkipPage: true}, nil
	}

	if opt, ok := state.Selection[SelectionShippingOption].(*domain.ShippingOption); ok && opt != nil {
		state.Customer.SelectedShippingOption = opt
		return StepResult{Success: true}, nil
	}

	methods, err := s.rates.ActiveMethods(ctx)
	if err != nil {
		return StepResult{}, err
	}
	if len(methods) == 0 {
		return StepResult{}, pricing.ErrNoShippingMethods
	}
	if len(methods) == 1 {
		rate, err := methods[0].FixedRate(ctx, *state.Cart)
		if err != nil {
			return StepResult{}, err
		}
		state.Customer.SelectedShippingOption = &domain.ShippingOption{
			Name:       methods[0].SystemName(),
			SystemName: methods[0].SystemName(),
			Rate:       rate,
		}
		return StepResult{Success: true, SkipPage: true}, nil
	}

	if state.Customer.SelectedShippingOption != nil {
		return StepResult{Success: true}, nil
	}
	return StepResult{
		View:   "shipping_method",
		Errors: []FieldError{{Field: "shipping_method", Message: "a shipping method must be selected"}},
	}, nil
}

// PaymentMethodStep selects the payment method. Carts with nothing left to
// pay skip the page.
type PaymentMethodStep struct {
	totals  TotalCalculator
	methods PaymentMethodDirectory
}

// NewPaymentMethodStep constructs the payment method step.
func NewPaymentMethodStep(totals TotalCalculator, methods PaymentMethodDirectory) (*PaymentMethodStep, error) {
	if totals == nil {
		return nil, errors.New("payment method step: total calculator is required")
	}
	if methods == nil {
		return nil, errors.New("payment method step: method directory is required")
	}
	return &PaymentMethodStep{totals: totals, methods: methods}, nil
}

// Descriptor implements Handler.
func (*PaymentMethodStep) Descriptor() StepDescriptor {
	return StepDescriptor{
		Order:         OrderPaymentMethod,
		Controller:    checkoutController,
		Actions:       []string{"PaymentMethod", "SelectPaymentMethod"},
		ProgressLabel: "Payment",
	}
}

// Process implements Handler.
func (s *PaymentMethodStep) Process(ctx context.Context, state *State) (StepResult, error) {
	total, err := s.totals.CartGrandTotal(ctx, *state.Cart, *state.Customer)
	if err != nil {
		return StepResult{}, err
	}
	if total.Total != nil && total.Total.IsZero() {
		state.Customer.SelectedPaymentMethod = ""
		state.Cart.Requirements = state.Cart.Requirements.Without(domain.RequirePayment)
		return StepResult{Success: true, SkipPage: true}, nil
	}

	if name, ok := state.Selection[SelectionPaymentMethod].(string); ok && name != "" {
		if !s.isActive(name) {
			return StepResult{
				View:   "payment_method",
				Errors: []FieldError{{Field: "payment_method", Message: "the selected payment method is not available"}},
			}, nil
		}
		state.Customer.SelectedPaymentMethod = strings.ToLower(strings.TrimSpace(name))
		return StepResult{Success: true}, nil
	}
	if state.Customer.SelectedPaymentMethod != "" && s.isActive(state.Customer.SelectedPaymentMethod) {
		return StepResult{Success: true}, nil
	}
	return StepResult{
		View:   "payment_method",
		Errors: []FieldError{{Field: "payment_method", Message: "a payment method must be selected"}},
	}, nil
}

func (s *PaymentMethodStep) isActive(name string) bool {
	for _, active := range s.methods.ActiveMethodNames() {
		if strings.EqualFold(active, strings.TrimSpace(name)) {
			return true
		}
	}
	return false
}

// ConfirmStep is the terminal review page; it never blocks.
type ConfirmStep struct{}

// Descriptor implements Handler.
func (ConfirmStep) Descriptor() StepDescriptor {
	return StepDescriptor{
		Order:         OrderConfirm,
		Controller:    checkoutController,
		Actions:       []string{"Confirm"},
		ProgressLabel: "Confirm",
	}
}

// Process implements Handler.
func (ConfirmStep) Process(context.Context, *State) (StepResult, error) {
	return StepResult{Success: true, View: "confirm"}, nil
}

// RegisterDefaultSteps wires the five built-in steps into the registry.
func RegisterDefaultSteps(registry *Registry, rates pricing.ShippingRateProvider, totals TotalCalculator, methods PaymentMethodDirectory) error {
	shippingMethod, err := NewShippingMethodStep(rates)
	if err != nil {
		return err
	}
	paymentMethod, err := NewPaymentMethodStep(totals, methods)
	if err != nil {
		return err
	}
	for _, handler := range []Handler{
		BillingAddressStep{},
		ShippingAddressStep{},
		shippingMethod,
		paymentMethod,
		ConfirmStep{},
	} {
		if err := registry.Register(handler); err != nil {
			return err
		}
	}
	return nil
}

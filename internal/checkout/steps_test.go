package checkout

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/northcart/commerce/internal/domain"
	"github.com/northcart/commerce/internal/pricing"
)

type fixedRateMethod struct {
	name string
	rate decimal.Decimal
}

func (m fixedRateMethod) SystemName() string { return m.name }

func (m fixedRateMethod) FixedRate(context.Context, domain.Cart) (decimal.Decimal, error) {
	return m.rate, nil
}

type fakeRates struct {
	methods []pricing.ShippingRateMethod
}

func (r fakeRates) ActiveMethods(context.Context) ([]pricing.ShippingRateMethod, error) {
	return r.methods, nil
}

type fakeTotals struct {
	total decimal.Decimal
}

func (f fakeTotals) CartGrandTotal(context.Context, domain.Cart, domain.Customer) (pricing.GrandTotal, error) {
	total := f.total
	return pricing.GrandTotal{Total: &total}, nil
}

type fakeDirectory struct {
	names []string
}

func (d fakeDirectory) ActiveMethodNames() []string { return d.names }

func shippableState() *State {
	state := testState()
	state.Cart.Items[0].IsShippable = true
	return state
}

func TestShippingAddressStepSkipsVirtualCarts(t *testing.T) {
	state := testState() // no shippable item
	result, err := (ShippingAddressStep{}).Process(context.Background(), state)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !result.Success || !result.SkipPage {
		t.Fatalf("expected skip for virtual cart, got %+v", result)
	}
	if state.Cart.Requirements.Has(domain.RequireShippingAddress) {
		t.Fatalf("expected shipping address requirement to be cleared")
	}
}

func TestShippingMethodStepAutoSelectsSingleMethod(t *testing.T) {
	step, err := NewShippingMethodStep(fakeRates{methods: []pricing.ShippingRateMethod{
		fixedRateMethod{name: "shipping.flat", rate: decimal.RequireFromString("4.90")},
	}})
	if err != nil {
		t.Fatalf("NewShippingMethodStep: %v", err)
	}

	state := shippableState()
	result, err := step.Process(context.Background(), state)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !result.Success || !result.SkipPage {
		t.Fatalf("single method should be auto-selected and skipped, got %+v", result)
	}
	opt := state.Customer.SelectedShippingOption
	if opt == nil || opt.SystemName != "shipping.flat" || !opt.Rate.Equal(decimal.RequireFromString("4.90")) {
		t.Fatalf("unexpected selected option: %+v", opt)
	}
}

func TestShippingMethodStepRequiresChoiceAmongMany(t *testing.T) {
	step, err := NewShippingMethodStep(fakeRates{methods: []pricing.ShippingRateMethod{
		fixedRateMethod{name: "shipping.flat", rate: decimal.RequireFromString("4.90")},
		fixedRateMethod{name: "shipping.express", rate: decimal.RequireFromString("9.90")},
	}})
	if err != nil {
		t.Fatalf("NewShippingMethodStep: %v", err)
	}

	state := shippableState()
	result, err := step.Process(context.Background(), state)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.Success || len(result.Errors) == 0 {
		t.Fatalf("expected a selection error with two methods, got %+v", result)
	}

	state.Selection[SelectionShippingOption] = &domain.ShippingOption{
		SystemName: "shipping.express",
		Rate:       decimal.RequireFromString("9.90"),
	}
	result, err = step.Process(context.Background(), state)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected explicit selection to succeed, got %+v", result)
	}
}

func TestShippingMethodStepFailsWithoutMethods(t *testing.T) {
	step, err := NewShippingMethodStep(fakeRates{})
	if err != nil {
		t.Fatalf("NewShippingMethodStep: %v", err)
	}
	if _, err := step.Process(context.Background(), shippableState()); err == nil {
		t.Fatalf("expected a configuration error with no active methods")
	}
}

func TestPaymentMethodStepSkipsZeroTotal(t *testing.T) {
	step, err := NewPaymentMethodStep(fakeTotals{total: decimal.Zero}, fakeDirectory{names: []string{"payments.manual"}})
	if err != nil {
		t.Fatalf("NewPaymentMethodStep: %v", err)
	}

	state := testState()
	state.Customer.SelectedPaymentMethod = "payments.manual"
	result, err := step.Process(context.Background(), state)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !result.Success || !result.SkipPage {
		t.Fatalf("expected zero total to skip the payment page, got %+v", result)
	}
	if state.Customer.SelectedPaymentMethod != "" {
		t.Fatalf("expected the payment method to be cleared for a free order")
	}
	if state.Cart.Requirements.Has(domain.RequirePayment) {
		t.Fatalf("expected the payment requirement to be cleared")
	}
}

func TestPaymentMethodStepValidatesSelection(t *testing.T) {
	step, err := NewPaymentMethodStep(
		fakeTotals{total: decimal.RequireFromString("25.00")},
		fakeDirectory{names: []string{"payments.manual", "payments.stripe"}},
	)
	if err != nil {
		t.Fatalf("NewPaymentMethodStep: %v", err)
	}

	state := testState()
	state.Selection[SelectionPaymentMethod] = "payments.paypal"
	result, err := step.Process(context.Background(), state)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.Success {
		t.Fatalf("expected an inactive method to be rejected")
	}

	state.Selection[SelectionPaymentMethod] = "Payments.Stripe"
	result, err = step.Process(context.Background(), state)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !result.Success || state.Customer.SelectedPaymentMethod != "payments.stripe" {
		t.Fatalf("expected the selection to be normalized, got %q", state.Customer.SelectedPaymentMethod)
	}
}

package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/northcart/commerce/internal/domain"
)

// MethodConfig carries the store-level settings for one registered gateway.
type MethodConfig struct {
	Active bool

	// AdditionalFee is charged on top of the order total when the method is
	// selected. When AdditionalFeeUsePercentage is set the fee is a
	// percentage of the cart item total instead of a fixed amount.
	AdditionalFee              decimal.Decimal
	AdditionalFeeUsePercentage bool

	// RoundTotalEnabled opts the method into order-total denomination
	// rounding.
	RoundTotalEnabled bool
}

type registration struct {
	gateway Gateway
	config  MethodConfig
}

// Manager is the gateway registry. It routes operations by payment method
// system name and doubles as the payment fee source for total calculation.
type Manager struct {
	methods map[string]registration
	order   []string
}

// NewManager builds a registry over the supplied gateways.
func NewManager() *Manager {
	return &Manager{methods: make(map[string]registration)}
}

// Register adds a gateway under its system name. Registering the same name
// twice is a configuration bug and returns an error.
func (m *Manager) Register(gateway Gateway, config MethodConfig) error {
	if gateway == nil {
		return errors.New("payments: gateway is nil")
	}
	key := normalizeMethodName(gateway.SystemName())
	if key == "" {
		return errors.New("payments: gateway has empty system name")
	}
	if _, exists := m.methods[key]; exists {
		return fmt.Errorf("payments: duplicate gateway registration %q", key)
	}
	m.methods[key] = registration{gateway: gateway, config: config}
	m.order = append(m.order, key)
	return nil
}

// Gateway resolves an active gateway by system name.
func (m *Manager) Gateway(systemName string) (Gateway, error) {
	reg, ok := m.methods[normalizeMethodName(systemName)]
	if !ok || !reg.config.Active {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, systemName)
	}
	return reg.gateway, nil
}

// ActiveMethodNames lists the active system names in registration order.
func (m *Manager) ActiveMethodNames() []string {
	names := make([]string, 0, len(m.order))
	for _, key := range m.order {
		if m.methods[key].config.Active {
			names = append(names, key)
		}
	}
	return names
}

// AdditionalFee implements the payment fee lookup used by total calculation.
func (m *Manager) AdditionalFee(_ context.Context, methodSystemName string, cart domain.Cart) (decimal.Decimal, error) {
	reg, ok := m.methods[normalizeMethodName(methodSystemName)]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnsupportedMethod, methodSystemName)
	}
	fee := reg.config.AdditionalFee
	if fee.Sign() <= 0 {
		return decimal.Zero, nil
	}
	if !reg.config.AdditionalFeeUsePercentage {
		return fee, nil
	}
	itemTotal := decimal.Zero
	for _, item := range cart.Items {
		itemTotal = itemTotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return itemTotal.Mul(fee).Div(decimal.NewFromInt(100)), nil
}

// RoundTotalEnabled implements the rounding opt-in lookup.
func (m *Manager) RoundTotalEnabled(methodSystemName string) bool {
	reg, ok := m.methods[normalizeMethodName(methodSystemName)]
	return ok && reg.config.RoundTotalEnabled
}

func normalizeMethodName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

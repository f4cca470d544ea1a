package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/northcart/commerce/internal/domain"
	"github.com/northcart/commerce/internal/payments"
	"github.com/northcart/commerce/internal/pricing"
	"github.com/northcart/commerce/internal/repositories"
)

var errFakeNotFound = errors.New("not found")

// memRegistry is an in-memory repositories.Registry for service tests.
type memRegistry struct {
	carts     *memCartRepo
	customers *memCustomerRepo
	orders    *memOrderRepo
	giftCards *memGiftCardRepo
	usage     *memDiscountUsageRepo
	recurring *memRecurringRepo
	counters  *memCounterRepo
}

func newMemRegistry() *memRegistry {
	return &memRegistry{
		carts:     &memCartRepo{carts: map[string]domain.Cart{}},
		customers: &memCustomerRepo{customers: map[string]domain.Customer{}},
		orders:    &memOrderRepo{orders: map[string]domain.Order{}},
		giftCards: &memGiftCardRepo{cards: map[string]domain.GiftCard{}},
		usage:     &memDiscountUsageRepo{},
		recurring: &memRecurringRepo{payments: map[string]domain.RecurringPayment{}},
		counters:  &memCounterRepo{},
	}
}

func (r *memRegistry) Close(context.Context) error                        { return nil }
func (r *memRegistry) Carts() repositories.CartRepository                 { return r.carts }
func (r *memRegistry) Customers() repositories.CustomerRepository         { return r.customers }
func (r *memRegistry) Orders() repositories.OrderRepository               { return r.orders }
func (r *memRegistry) GiftCards() repositories.GiftCardRepository         { return r.giftCards }
func (r *memRegistry) DiscountUsage() repositories.DiscountUsageRepository {
	return r.usage
}
func (r *memRegistry) RecurringPayments() repositories.RecurringPaymentRepository {
	return r.recurring
}
func (r *memRegistry) Counters() repositories.CounterRepository { return r.counters }
func (r *memRegistry) Health() repositories.HealthRepository    { return nil }

func (r *memRegistry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memCartRepo struct {
	carts   map[string]domain.Cart
	deleted []string
}

func (m *memCartRepo) Save(_ context.Context, cart domain.Cart) (domain.Cart, error) {
	if cart.ID == "" {
		cart.ID = fmt.Sprintf("cart_%d", len(m.carts)+1)
	}
	m.carts[cart.ID] = cart
	return cart, nil
}

func (m *memCartRepo) FindByID(_ context.Context, cartID string) (domain.Cart, error) {
	cart, ok := m.carts[cartID]
	if !ok {
		return domain.Cart{}, errFakeNotFound
	}
	return cart, nil
}

func (m *memCartRepo) FindByCustomer(_ context.Context, customerID string) (domain.Cart, error) {
	for _, cart := range m.carts {
		if cart.CustomerID == customerID {
			return cart, nil
		}
	}
	return domain.Cart{}, errFakeNotFound
}

func (m *memCartRepo) Delete(_ context.Context, cartID string) error {
	delete(m.carts, cartID)
	m.deleted = append(m.deleted, cartID)
	return nil
}

type memCustomerRepo struct {
	customers map[string]domain.Customer
	// adjustments records every balance mutation as "kind:delta".
	adjustments []string
}

func (m *memCustomerRepo) FindByID(_ context.Context, customerID string) (domain.Customer, error) {
	customer, ok := m.customers[customerID]
	if !ok {
		return domain.Customer{}, errFakeNotFound
	}
	return customer, nil
}

func (m *memCustomerRepo) Update(_ context.Context, customer domain.Customer) error {
	m.customers[customer.ID] = customer
	return nil
}

func (m *memCustomerRepo) AdjustRewardPoints(_ context.Context, customerID string, delta int, _ string) (int, error) {
	customer, ok := m.customers[customerID]
	if !ok {
		return 0, errFakeNotFound
	}
	customer.RewardPointsBalance += delta
	m.customers[customerID] = customer
	m.adjustments = append(m.adjustments, fmt.Sprintf("points:%d", delta))
	return customer.RewardPointsBalance, nil
}

func (m *memCustomerRepo) AdjustCreditBalance(_ context.Context, customerID string, delta decimal.Decimal, _ string) (decimal.Decimal, error) {
	customer, ok := m.customers[customerID]
	if !ok {
		return decimal.Zero, errFakeNotFound
	}
	customer.CreditBalance = customer.CreditBalance.Add(delta)
	m.customers[customerID] = customer
	m.adjustments = append(m.adjustments, fmt.Sprintf("credit:%s", delta))
	return customer.CreditBalance, nil
}

type memOrderRepo struct {
	orders  map[string]domain.Order
	inserts int
}

func (m *memOrderRepo) Insert(_ context.Context, order domain.Order) error {
	if _, exists := m.orders[order.ID]; exists {
		return errors.New("already exists")
	}
	m.orders[order.ID] = order
	m.inserts++
	return nil
}

func (m *memOrderRepo) Update(_ context.Context, order domain.Order) error {
	if _, exists := m.orders[order.ID]; !exists {
		return errFakeNotFound
	}
	m.orders[order.ID] = order
	return nil
}

func (m *memOrderRepo) FindByID(_ context.Context, orderID string) (domain.Order, error) {
	order, ok := m.orders[orderID]
	if !ok {
		return domain.Order{}, errFakeNotFound
	}
	return order, nil
}

func (m *memOrderRepo) ListByCustomer(_ context.Context, customerID string, filter repositories.OrderListFilter) ([]domain.Order, error) {
	var out []domain.Order
	for _, order := range m.orders {
		if order.CustomerID != customerID {
			continue
		}
		if order.Deleted && !filter.IncludeDeleted {
			continue
		}
		if filter.Status != nil && order.OrderStatus != *filter.Status {
			continue
		}
		out = append(out, order)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *memOrderRepo) AddNote(_ context.Context, orderID string, note domain.OrderNote) error {
	order, ok := m.orders[orderID]
	if !ok {
		return errFakeNotFound
	}
	order.Notes = append(order.Notes, note)
	m.orders[orderID] = order
	return nil
}

func (m *memOrderRepo) SoftDelete(_ context.Context, orderID string, _ time.Time) error {
	order, ok := m.orders[orderID]
	if !ok {
		return errFakeNotFound
	}
	order.Deleted = true
	m.orders[orderID] = order
	return nil
}

type memGiftCardRepo struct {
	cards  map[string]domain.GiftCard
	usages []domain.GiftCardUsage
}

func (m *memGiftCardRepo) Insert(_ context.Context, card domain.GiftCard) error {
	m.cards[card.ID] = card
	return nil
}

func (m *memGiftCardRepo) Update(_ context.Context, card domain.GiftCard) error {
	if _, exists := m.cards[card.ID]; !exists {
		return errFakeNotFound
	}
	m.cards[card.ID] = card
	return nil
}

func (m *memGiftCardRepo) FindByID(_ context.Context, cardID string) (domain.GiftCard, error) {
	card, ok := m.cards[cardID]
	if !ok {
		return domain.GiftCard{}, errFakeNotFound
	}
	return card, nil
}

func (m *memGiftCardRepo) FindByCode(_ context.Context, code string) (domain.GiftCard, error) {
	for _, card := range m.cards {
		if card.Code == code {
			return card, nil
		}
	}
	return domain.GiftCard{}, errFakeNotFound
}

func (m *memGiftCardRepo) ListUsableByCustomer(_ context.Context, customerID string) ([]domain.GiftCard, error) {
	var out []domain.GiftCard
	for _, card := range m.cards {
		if card.CustomerID == customerID && card.Active && card.RemainingValue.IsPositive() {
			out = append(out, card)
		}
	}
	return out, nil
}

func (m *memGiftCardRepo) ListByPurchasedWithOrderItem(_ context.Context, orderItemIDs []string) ([]domain.GiftCard, error) {
	ids := make(map[string]struct{}, len(orderItemIDs))
	for _, id := range orderItemIDs {
		ids[id] = struct{}{}
	}
	var out []domain.GiftCard
	for _, card := range m.cards {
		if _, ok := ids[card.PurchasedWithOrderItemID]; ok {
			out = append(out, card)
		}
	}
	return out, nil
}

func (m *memGiftCardRepo) RecordUsage(_ context.Context, usage domain.GiftCardUsage) error {
	m.usages = append(m.usages, usage)
	return nil
}

type memDiscountUsageRepo struct {
	records []domain.DiscountUsage
}

func (m *memDiscountUsageRepo) Record(_ context.Context, usage domain.DiscountUsage) error {
	m.records = append(m.records, usage)
	return nil
}

func (m *memDiscountUsageRepo) CountByDiscount(_ context.Context, discountID string) (int, error) {
	n := 0
	for _, rec := range m.records {
		if rec.DiscountID == discountID {
			n++
		}
	}
	return n, nil
}

func (m *memDiscountUsageRepo) CountByDiscountAndCustomer(_ context.Context, discountID, customerID string) (int, error) {
	n := 0
	for _, rec := range m.records {
		if rec.DiscountID == discountID && rec.CustomerID == customerID {
			n++
		}
	}
	return n, nil
}

type memRecurringRepo struct {
	payments map[string]domain.RecurringPayment
}

func (m *memRecurringRepo) Insert(_ context.Context, payment domain.RecurringPayment) error {
	m.payments[payment.ID] = payment
	return nil
}

func (m *memRecurringRepo) Update(_ context.Context, payment domain.RecurringPayment) error {
	if _, exists := m.payments[payment.ID]; !exists {
		return errFakeNotFound
	}
	m.payments[payment.ID] = payment
	return nil
}

func (m *memRecurringRepo) FindByID(_ context.Context, paymentID string) (domain.RecurringPayment, error) {
	payment, ok := m.payments[paymentID]
	if !ok {
		return domain.RecurringPayment{}, errFakeNotFound
	}
	return payment, nil
}

func (m *memRecurringRepo) FindByInitialOrder(_ context.Context, orderID string) (domain.RecurringPayment, error) {
	for _, payment := range m.payments {
		if payment.InitialOrderID == orderID {
			return payment, nil
		}
	}
	return domain.RecurringPayment{}, errFakeNotFound
}

func (m *memRecurringRepo) ListDue(_ context.Context, before time.Time, limit int) ([]domain.RecurringPayment, error) {
	var out []domain.RecurringPayment
	for _, payment := range m.payments {
		if payment.Active && !payment.NextCycleAt().After(before) {
			out = append(out, payment)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memCounterRepo struct {
	seq int64
}

func (m *memCounterRepo) Next(_ context.Context, _ string, step int64) (int64, error) {
	m.seq += step
	return m.seq, nil
}

// stubGateway scripts gateway responses per operation.
type stubGateway struct {
	name    string
	result  payments.Result
	err     error
	support payments.RecurringSupport

	processed []payments.ProcessRequest
	recurred  []payments.RecurringProcessRequest
	captured  []payments.CaptureRequest
	refunded  []payments.RefundRequest
	voided    []payments.VoidRequest
}

func (g *stubGateway) SystemName() string { return g.name }

func (g *stubGateway) Process(_ context.Context, req payments.ProcessRequest) (payments.Result, error) {
	g.processed = append(g.processed, req)
	return g.result, g.err
}

func (g *stubGateway) ProcessRecurring(_ context.Context, req payments.RecurringProcessRequest) (payments.Result, error) {
	g.recurred = append(g.recurred, req)
	return g.result, g.err
}

func (g *stubGateway) Capture(_ context.Context, req payments.CaptureRequest) (payments.Result, error) {
	g.captured = append(g.captured, req)
	return g.result, g.err
}

func (g *stubGateway) Refund(_ context.Context, req payments.RefundRequest) (payments.Result, error) {
	g.refunded = append(g.refunded, req)
	return g.result, g.err
}

func (g *stubGateway) Void(_ context.Context, req payments.VoidRequest) (payments.Result, error) {
	g.voided = append(g.voided, req)
	return g.result, g.err
}

func (g *stubGateway) SupportsCapture() bool       { return true }
func (g *stubGateway) SupportsRefund() bool        { return true }
func (g *stubGateway) SupportsPartialRefund() bool { return true }
func (g *stubGateway) SupportsVoid() bool          { return true }

func (g *stubGateway) RecurringSupport() payments.RecurringSupport {
	if g.support == "" {
		return payments.RecurringManual
	}
	return g.support
}

type stubResolver struct {
	gateway *stubGateway
}

func (r stubResolver) Gateway(name string) (payments.Gateway, error) {
	if r.gateway == nil || r.gateway.name != name {
		return nil, payments.ErrUnsupportedMethod
	}
	return r.gateway, nil
}

// stubCalculator returns fixed totals regardless of the cart contents.
type stubCalculator struct {
	total decimal.Decimal
}

func (c stubCalculator) CartSubTotal(_ context.Context, _ domain.Cart, _ domain.Customer, _ bool) (pricing.SubTotal, error) {
	return pricing.SubTotal{WithoutDiscount: c.total, WithDiscount: c.total}, nil
}

func (c stubCalculator) CartShippingTotal(context.Context, domain.Cart, domain.Customer) (*pricing.ShippingTotal, error) {
	return &pricing.ShippingTotal{}, nil
}

func (c stubCalculator) CartTaxTotal(context.Context, domain.Cart, domain.Customer, string) (pricing.TaxTotal, error) {
	return pricing.TaxTotal{Rates: pricing.NewRateBuckets()}, nil
}

func (c stubCalculator) CartGrandTotal(context.Context, domain.Cart, domain.Customer) (pricing.GrandTotal, error) {
	total := c.total
	return pricing.GrandTotal{Total: &total}, nil
}

func (c stubCalculator) ItemUnitPrices(_ context.Context, item domain.CartItem, _ domain.Customer, _ string) (decimal.Decimal, decimal.Decimal, decimal.Decimal, error) {
	return item.UnitPrice, item.UnitPrice, decimal.Zero, nil
}

type recordingNotifier struct {
	customerEvents []string
	ownerEvents    []string
}

func (n *recordingNotifier) NotifyCustomer(_ context.Context, event string, _ domain.Order) (string, error) {
	n.customerEvents = append(n.customerEvents, event)
	return "msg_" + event, nil
}

func (n *recordingNotifier) NotifyStoreOwner(_ context.Context, event string, _ domain.Order) (string, error) {
	n.ownerEvents = append(n.ownerEvents, event)
	return "msg_owner_" + event, nil
}

// testService builds a Service over fresh fakes with a deterministic clock and
// id sequence.
func testService(t *testing.T, deps Deps) (*Service, *memRegistry) {
	t.Helper()
	registry := newMemRegistry()
	if deps.Repos == nil {
		deps.Repos = registry
	} else {
		registry = deps.Repos.(*memRegistry)
	}
	if deps.Calc == nil {
		deps.Calc = stubCalculator{total: decimal.RequireFromString("50.00")}
	}
	if deps.Gateways == nil {
		deps.Gateways = stubResolver{gateway: &stubGateway{
			name:   "payments.manual",
			result: payments.Result{Outcome: payments.OutcomeApproved, PaymentStatus: domain.PaymentStatusPaid},
		}}
	}
	if deps.Clock == nil {
		base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
		deps.Clock = func() time.Time { return base }
	}
	if deps.IDGen == nil {
		seq := 0
		deps.IDGen = func(prefix string) string {
			seq++
			return fmt.Sprintf("%s%d", prefix, seq)
		}
	}

	service, err := NewService(deps)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return service, registry
}

func placementCart() domain.Cart {
	return domain.Cart{
		ID:         "cart_1",
		CustomerID: "cust_1",
		Currency:   "USD",
		Items: []domain.CartItem{{
			ID:        "ci_1",
			ProductID: "prod_1",
			SKU:       "SKU-1",
			Name:      "Widget",
			Quantity:  2,
			UnitPrice: decimal.RequireFromString("25.00"),
		}},
	}
}

func placementCustomer() domain.Customer {
	return domain.Customer{
		ID:                    "cust_1",
		Email:                 "jo@example.com",
		IsRegistered:          true,
		SelectedPaymentMethod: "payments.manual",
	}
}

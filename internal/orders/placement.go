package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/northcart/commerce/internal/domain"
	"github.com/northcart/commerce/internal/payments"
	"github.com/northcart/commerce/internal/platform/money"
	"github.com/northcart/commerce/internal/pricing"
)

const orderNumberCounter = "orders"

// InventoryAdjuster is the external stock boundary. Optional; a nil adjuster
// skips stock movements.
type InventoryAdjuster interface {
	AdjustStock(ctx context.Context, productID string, delta int) error
}

// EventPublisher raises order domain events to the message bus. Optional;
// publish failures never fail a placement.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event string, order domain.Order) (string, error)
}

// SetInventoryAdjuster wires the optional stock boundary.
func (s *Service) SetInventoryAdjuster(inventory InventoryAdjuster) { s.inventory = inventory }

// SetEventPublisher wires the optional event bus.
func (s *Service) SetEventPublisher(events EventPublisher) { s.events = events }

// PlaceRequest describes one placement run. InitialOrder is set only for
// recurring cycles, whose item and customer data come from the template order
// rather than the live cart.
type PlaceRequest struct {
	Cart         domain.Cart
	Customer     domain.Customer
	InitialOrder *domain.Order
}

// PlaceResult is the placement outcome. A declined payment is reported
// in-band: Approved false, no order persisted.
type PlaceResult struct {
	Order          *domain.Order
	Approved       bool
	DeclineReasons []string
	RedirectURL    string
}

// placementState is the mutable context shared by the pipeline stages.
type placementState struct {
	cart         domain.Cart
	customer     domain.Customer
	initialOrder *domain.Order

	order     domain.Order
	grand     pricing.GrandTotal
	recurring bool
	gateway   payments.Gateway

	// discounts seen across all stages, deduplicated by id for usage history.
	appliedDiscounts map[string]domain.Discount

	// paymentFault records a gateway fault; the order is still persisted in a
	// pending state when set.
	paymentFault error
}

// Place runs the placement pipeline. Before the payment stage any failure
// aborts with no persisted side effects; once payment has been charged the
// pipeline commits to persisting the order and downstream failures degrade to
// logged order notes.
func (s *Service) Place(ctx context.Context, req PlaceRequest) (PlaceResult, error) {
	ctx, span := tracer.Start(ctx, "orders.place", trace.WithAttributes(
		attribute.String("cart.id", req.Cart.ID),
		attribute.String("customer.id", req.Customer.ID),
	))
	defer span.End()

	st := &placementState{
		cart:             req.Cart,
		customer:         req.Customer,
		initialOrder:     req.InitialOrder,
		recurring:        req.Cart.ContainsRecurringItem() || req.InitialOrder != nil,
		appliedDiscounts: make(map[string]domain.Discount),
	}

	// Stages 1-3: nothing is persisted yet, any failure aborts cleanly.
	if err := s.validatePlacement(ctx, st); err != nil {
		return PlaceResult{}, err
	}
	s.applyCustomerData(st)
	if err := s.applyPricingData(ctx, st); err != nil {
		return PlaceResult{}, err
	}

	// Stage 4: the commit point.
	result, err := s.processPayment(ctx, st)
	if err != nil {
		return PlaceResult{}, err
	}
	if !result.Approved() && st.paymentFault == nil {
		return PlaceResult{Approved: false, DeclineReasons: result.DeclineReasons}, nil
	}

	// Stage 5: a charged payment must always have an order row, so the order
	// is inserted before items are materialized.
	if err := s.persistOrder(ctx, st); err != nil {
		return PlaceResult{}, fmt.Errorf("persist order after payment: %w", err)
	}

	// Stages 6-9 run on a persisted order; failures degrade to notes.
	s.addOrderItems(ctx, st)
	s.addAssociatedData(ctx, st)
	s.finalizePlacement(ctx, st)
	s.reevaluateLifecycle(ctx, st)

	return PlaceResult{Order: &st.order, Approved: true}, nil
}

// ValidateCart runs the cart-level validations shared by checkout entry and
// placement. Returned warnings are user-facing.
func (s *Service) ValidateCart(ctx context.Context, cart domain.Cart, customer domain.Customer) ([]string, error) {
	var warnings []string
	if len(cart.Items) == 0 {
		warnings = append(warnings, "the cart is empty")
		return warnings, nil
	}

	type cycle struct {
		length int
		period domain.RecurringCyclePeriod
		total  int
	}
	cycles := make(map[cycle]struct{})
	for _, item := range cart.Items {
		if item.Quantity <= 0 {
			warnings = append(warnings, fmt.Sprintf("item %s has no quantity", item.ProductID))
		}
		if item.UnitPrice.IsNegative() {
			warnings = append(warnings, fmt.Sprintf("item %s has an invalid price", item.ProductID))
		}
		if item.IsRecurring {
			cycles[cycle{item.RecurringCycleLength, item.RecurringCyclePeriod, item.RecurringTotalCycles}] = struct{}{}
		}
	}
	if len(cycles) > 1 {
		warnings = append(warnings, "recurring items in one cart must share the same cycle")
	}
	return warnings, nil
}

// validatePlacement is stage 1: cart validation, payment method resolution,
// recurring support and order-total bounds.
func (s *Service) validatePlacement(ctx context.Context, st *placementState) error {
	var total decimal.Decimal
	if st.initialOrder != nil {
		// A recurring cycle recharges the template order; there is no live
		// cart to validate.
		total = st.initialOrder.Total
	} else {
		warnings, err := s.ValidateCart(ctx, st.cart, st.customer)
		if err != nil {
			return err
		}
		if len(warnings) > 0 {
			return &ValidationError{Warnings: warnings}
		}

		grand, err := s.calc.CartGrandTotal(ctx, st.cart, st.customer)
		if err != nil {
			return fmt.Errorf("calculate order total: %w", err)
		}
		if grand.Total == nil {
			return &ValidationError{Warnings: []string{"the shipping total cannot be calculated yet"}}
		}
		st.grand = grand
		total = *grand.Total

		if s.settings.MinOrderTotal.IsPositive() && total.LessThan(s.settings.MinOrderTotal) {
			return &ValidationError{Warnings: []string{fmt.Sprintf("the order total is below the minimum of %s", s.settings.MinOrderTotal)}}
		}
		if s.settings.MaxOrderTotal.IsPositive() && total.GreaterThan(s.settings.MaxOrderTotal) {
			return &ValidationError{Warnings: []string{fmt.Sprintf("the order total is above the maximum of %s", s.settings.MaxOrderTotal)}}
		}
	}

	if total.IsPositive() {
		method := st.customer.SelectedPaymentMethod
		if st.initialOrder != nil {
			method = st.initialOrder.PaymentMethodSystemName
		}
		gateway, err := s.gateways.Gateway(method)
		if err != nil {
			return &ValidationError{Warnings: []string{"the selected payment method is not available"}}
		}
		st.gateway = gateway

		if st.recurring && gateway.RecurringSupport() == payments.RecurringNotSupported {
			return ErrRecurringNotSupported
		}
	}
	return nil
}

// applyCustomerData is stage 2: snapshot customer state onto the order, from
// the live customer for a fresh order or from the initial order for a
// recurring cycle, never a mix.
func (s *Service) applyCustomerData(st *placementState) {
	st.order = domain.Order{
		CustomerID:   st.customer.ID,
		StoreID:      st.cart.StoreID,
		CurrencyRate: decimal.NewFromInt(1),

		OrderStatus:   domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
	}

	if initial := st.initialOrder; initial != nil {
		st.order.CurrencyCode = initial.CurrencyCode
		st.order.CurrencyRate = initial.CurrencyRate
		st.order.VATNumber = initial.VATNumber
		st.order.CheckoutAttributeDescription = initial.CheckoutAttributeDescription
		st.order.BillingAddress = initial.BillingAddress
		st.order.ShippingAddress = initial.ShippingAddress
		st.order.ShippingMethod = initial.ShippingMethod
		st.order.PickupInStore = initial.PickupInStore
		st.order.PaymentMethodSystemName = initial.PaymentMethodSystemName
		return
	}

	st.order.CurrencyCode = st.cart.Currency
	if st.order.CurrencyCode == "" {
		st.order.CurrencyCode = s.settings.PrimaryCurrency
	}
	if st.customer.VATNumberValid {
		st.order.VATNumber = st.customer.VATNumber
	}
	st.order.CheckoutAttributeDescription = st.customer.CheckoutAttributesDesc
	st.order.BillingAddress = st.customer.BillingAddress
	st.order.ShippingAddress = st.customer.ShippingAddress
	st.order.PickupInStore = st.customer.SelectedPickupInStore
	if opt := st.customer.SelectedShippingOption; opt != nil {
		st.order.ShippingMethod = opt.Name
	}
	st.order.PaymentMethodSystemName = st.customer.SelectedPaymentMethod
}

// applyPricingData is stage 3: run the calculation engine once per component
// and copy every numeric result onto the order row.
func (s *Service) applyPricingData(ctx context.Context, st *placementState) error {
	if initial := st.initialOrder; initial != nil {
		// A recurring cycle recharges the template order's amounts.
		st.order.SubtotalExclTax = initial.SubtotalExclTax
		st.order.SubtotalInclTax = initial.SubtotalInclTax
		st.order.SubtotalDiscountExclTax = initial.SubtotalDiscountExclTax
		st.order.SubtotalDiscountInclTax = initial.SubtotalDiscountInclTax
		st.order.ShippingExclTax = initial.ShippingExclTax
		st.order.ShippingInclTax = initial.ShippingInclTax
		st.order.PaymentFeeExclTax = initial.PaymentFeeExclTax
		st.order.PaymentFeeInclTax = initial.PaymentFeeInclTax
		st.order.TaxTotal = initial.TaxTotal
		st.order.TaxRates = initial.TaxRates
		st.order.DiscountTotal = initial.DiscountTotal
		st.order.Total = initial.Total
		return nil
	}

	subExcl, err := s.calc.CartSubTotal(ctx, st.cart, st.customer, false)
	if err != nil {
		return fmt.Errorf("subtotal excl tax: %w", err)
	}
	subIncl, err := s.calc.CartSubTotal(ctx, st.cart, st.customer, true)
	if err != nil {
		return fmt.Errorf("subtotal incl tax: %w", err)
	}
	st.order.SubtotalExclTax = subExcl.WithoutDiscount
	st.order.SubtotalInclTax = subIncl.WithoutDiscount
	st.order.SubtotalDiscountExclTax = subExcl.Discount
	st.order.SubtotalDiscountInclTax = subIncl.Discount
	s.collectDiscount(st, subExcl.AppliedDiscount)

	shipping, err := s.calc.CartShippingTotal(ctx, st.cart, st.customer)
	if err != nil {
		return fmt.Errorf("shipping total: %w", err)
	}
	if shipping == nil {
		return &ValidationError{Warnings: []string{"the shipping total cannot be calculated yet"}}
	}
	st.order.ShippingExclTax = shipping.ExclTax
	st.order.ShippingInclTax = shipping.InclTax
	s.collectDiscount(st, shipping.AppliedDiscount)

	tax, err := s.calc.CartTaxTotal(ctx, st.cart, st.customer, st.order.PaymentMethodSystemName)
	if err != nil {
		return fmt.Errorf("tax total: %w", err)
	}
	st.order.TaxTotal = tax.Amount
	st.order.TaxRates = tax.Rates.Serialize()

	st.order.DiscountTotal = st.grand.Discount
	s.collectDiscount(st, st.grand.AppliedDiscount)
	st.order.RoundingDiff = st.grand.RoundingDifference
	st.order.Total = *st.grand.Total
	st.order.RedeemedRewardPoints = st.grand.RedeemedRewardPoints
	st.order.RedeemedRewardPointsAmount = st.grand.RedeemedRewardAmount
	st.order.UsedCreditBalance = st.grand.UseCreditBalance
	return nil
}

func (s *Service) collectDiscount(st *placementState, discount *domain.Discount) {
	if discount == nil {
		return
	}
	st.appliedDiscounts[discount.ID] = *discount
}

// processPayment is stage 4. A declined result aborts the placement with no
// order row; an unexpected gateway fault is recorded and the order is still
// persisted pending so a charged payment can never lose its order.
func (s *Service) processPayment(ctx context.Context, st *placementState) (payments.Result, error) {
	// The id is assigned before the charge so gateway transactions and
	// webhook callbacks can reference the order they settle.
	st.order.ID = s.idGen("ord_")

	if !st.order.Total.IsPositive() {
		// Nothing to charge.
		st.order.PaymentStatus = domain.PaymentStatusPaid
		return payments.Result{Outcome: payments.OutcomeApproved, PaymentStatus: domain.PaymentStatusPaid}, nil
	}

	var (
		result payments.Result
		err    error
	)
	if st.initialOrder != nil {
		result, err = st.gateway.ProcessRecurring(ctx, payments.RecurringProcessRequest{
			OrderID:                    st.order.ID,
			InitialOrderID:             st.initialOrder.ID,
			CustomerID:                 st.customer.ID,
			Amount:                     st.order.Total,
			Currency:                   st.order.CurrencyCode,
			AuthorizationTransactionID: st.initialOrder.AuthorizationTransactionID,
			SubscriptionTransactionID:  st.initialOrder.SubscriptionTransactionID,
			IdempotencyKey:             s.idGen("pay_"),
		})
	} else {
		result, err = st.gateway.Process(ctx, payments.ProcessRequest{
			OrderID:        st.order.ID,
			CustomerID:     st.customer.ID,
			Amount:         st.order.Total,
			Currency:       st.order.CurrencyCode,
			IdempotencyKey: s.idGen("pay_"),
			Metadata:       map[string]string{"order_id": st.order.ID},
		})
	}
	if err != nil {
		s.logger(ctx, "orders.payment.fault", map[string]any{
			"customer_id": st.customer.ID,
			"method":      st.order.PaymentMethodSystemName,
			"error":       err.Error(),
		})
		st.paymentFault = err
		return payments.Result{}, nil
	}
	if result.Approved() {
		st.order.PaymentStatus = result.PaymentStatus
		st.order.AuthorizationTransactionID = result.AuthorizationTransactionID
		st.order.CaptureTransactionID = result.CaptureTransactionID
		st.order.SubscriptionTransactionID = result.SubscriptionTransactionID
	}
	return result, nil
}

// persistOrder is stage 5: issue the order number and insert the bare order
// row.
func (s *Service) persistOrder(ctx context.Context, st *placementState) error {
	now := s.now()

	seq, err := s.repos.Counters().Next(ctx, orderNumberCounter, 1)
	if err != nil {
		return fmt.Errorf("issue order number: %w", err)
	}
	st.order.OrderNumber = fmt.Sprintf("%06d", seq)

	if !st.cart.RequiresShipping() && st.initialOrder == nil {
		st.order.ShippingStatus = domain.ShippingStatusNotRequired
	} else {
		st.order.ShippingStatus = domain.ShippingStatusNotYetShipped
		if st.initialOrder != nil && st.initialOrder.ShippingStatus == domain.ShippingStatusNotRequired {
			st.order.ShippingStatus = domain.ShippingStatusNotRequired
		}
	}
	if st.order.PaymentStatus == domain.PaymentStatusPaid && !st.order.Total.IsPositive() {
		// Free orders are settled from the start.
		st.order.PaidAt = &now
	}
	st.order.CreatedAt = now
	st.order.UpdatedAt = now

	if err := s.repos.Orders().Insert(ctx, st.order); err != nil {
		return err
	}
	if st.paymentFault != nil {
		s.addNote(ctx, &st.order, fmt.Sprintf("payment processing failed unexpectedly: %v", st.paymentFault))
	}
	return nil
}

// addOrderItems is stage 6: materialize line items, issue gift cards and
// adjust stock.
func (s *Service) addOrderItems(ctx context.Context, st *placementState) {
	if initial := st.initialOrder; initial != nil {
		for _, item := range initial.Items {
			copied := item
			copied.ID = s.idGen("item_")
			copied.OrderID = st.order.ID
			st.order.Items = append(st.order.Items, copied)
		}
	} else {
		for _, cartItem := range st.cart.Items {
			item, err := s.materializeItem(ctx, st, cartItem)
			if err != nil {
				s.addNote(ctx, &st.order, fmt.Sprintf("failed to materialize item %s: %v", cartItem.ProductID, err))
				continue
			}
			st.order.Items = append(st.order.Items, item)
		}
	}

	if err := s.repos.Orders().Update(ctx, st.order); err != nil {
		s.logger(ctx, "orders.items.persist_failed", map[string]any{
			"order_id": st.order.ID,
			"error":    err.Error(),
		})
	}

	for _, item := range st.order.Items {
		s.issueGiftCards(ctx, st, item)
		s.adjustStock(ctx, &st.order, item.ProductID, -item.Quantity)
		for _, child := range item.ChildItems {
			s.adjustStock(ctx, &st.order, child.ProductID, -child.Quantity*item.Quantity)
		}
	}
}

func (s *Service) materializeItem(ctx context.Context, st *placementState, cartItem domain.CartItem) (domain.OrderItem, error) {
	excl, incl, rate, err := s.calc.ItemUnitPrices(ctx, cartItem, st.customer, st.order.CurrencyCode)
	if err != nil {
		return domain.OrderItem{}, err
	}

	qty := decimal.NewFromInt(int64(cartItem.Quantity))
	item := domain.OrderItem{
		ID:               s.idGen("item_"),
		OrderID:          st.order.ID,
		ProductID:        cartItem.ProductID,
		SKU:              cartItem.SKU,
		Name:             cartItem.Name,
		Quantity:         cartItem.Quantity,
		UnitPriceExclTax: excl,
		UnitPriceInclTax: incl,
		PriceExclTax:     money.Round(excl.Mul(qty), st.order.CurrencyCode),
		PriceInclTax:     money.Round(incl.Mul(qty), st.order.CurrencyCode),
		TaxRate:          rate,
		IsShippable:      cartItem.IsShippable,
		IsGiftCard:       cartItem.IsGiftCard,
		Attributes:       cartItem.Attributes,
	}
	for _, child := range cartItem.ChildItems {
		sub, err := s.materializeItem(ctx, st, child)
		if err != nil {
			return domain.OrderItem{}, err
		}
		item.ChildItems = append(item.ChildItems, sub)
	}
	return item, nil
}

// issueGiftCards creates one inactive gift card per unit of a gift card item.
// Activation happens through the lifecycle trigger status.
func (s *Service) issueGiftCards(ctx context.Context, st *placementState, item domain.OrderItem) {
	if !item.IsGiftCard {
		return
	}
	for i := 0; i < item.Quantity; i++ {
		card := domain.GiftCard{
			ID:                       s.idGen("gc_"),
			Code:                     strings.ToUpper(uuid.NewString()),
			CustomerID:               st.customer.ID,
			InitialValue:             item.UnitPriceExclTax,
			RemainingValue:           item.UnitPriceExclTax,
			Active:                   false,
			PurchasedWithOrderItemID: item.ID,
			CreatedAt:                s.now(),
		}
		if err := s.repos.GiftCards().Insert(ctx, card); err != nil {
			s.addNote(ctx, &st.order, fmt.Sprintf("failed to issue gift card for item %s: %v", item.ID, err))
		}
	}
}

func (s *Service) adjustStock(ctx context.Context, order *domain.Order, productID string, delta int) {
	if s.inventory == nil {
		return
	}
	if err := s.inventory.AdjustStock(ctx, productID, delta); err != nil {
		s.addNote(ctx, order, fmt.Sprintf("stock adjustment for %s failed: %v", productID, err))
	}
}

// addAssociatedData is stage 7: usage history, balance debits and the
// recurring schedule.
func (s *Service) addAssociatedData(ctx context.Context, st *placementState) {
	now := s.now()

	for _, discount := range st.appliedDiscounts {
		usage := domain.DiscountUsage{
			ID:         s.idGen("du_"),
			DiscountID: discount.ID,
			OrderID:    st.order.ID,
			CustomerID: st.customer.ID,
			CreatedAt:  now,
		}
		if err := s.repos.DiscountUsage().Record(ctx, usage); err != nil {
			s.addNote(ctx, &st.order, fmt.Sprintf("failed to record usage of discount %s: %v", discount.ID, err))
		}
	}

	for _, applied := range st.grand.AppliedGiftCards {
		card := applied.GiftCard
		card.RemainingValue = money.ClampZero(card.RemainingValue.Sub(applied.AmountUsed))
		if err := s.repos.GiftCards().Update(ctx, card); err != nil {
			s.addNote(ctx, &st.order, fmt.Sprintf("failed to debit gift card %s: %v", card.ID, err))
			continue
		}
		usage := domain.GiftCardUsage{
			ID:         s.idGen("gcu_"),
			GiftCardID: card.ID,
			OrderID:    st.order.ID,
			Amount:     applied.AmountUsed,
			CreatedAt:  now,
		}
		if err := s.repos.GiftCards().RecordUsage(ctx, usage); err != nil {
			s.addNote(ctx, &st.order, fmt.Sprintf("failed to record usage of gift card %s: %v", card.ID, err))
		}
	}

	if st.order.RedeemedRewardPoints > 0 {
		if _, err := s.repos.Customers().AdjustRewardPoints(ctx, st.customer.ID, -st.order.RedeemedRewardPoints,
			fmt.Sprintf("redeemed on order %s", st.order.OrderNumber)); err != nil {
			s.addNote(ctx, &st.order, fmt.Sprintf("failed to debit reward points: %v", err))
		}
	}
	if st.order.UsedCreditBalance.IsPositive() {
		if _, err := s.repos.Customers().AdjustCreditBalance(ctx, st.customer.ID, st.order.UsedCreditBalance.Neg(),
			fmt.Sprintf("used on order %s", st.order.OrderNumber)); err != nil {
			s.addNote(ctx, &st.order, fmt.Sprintf("failed to debit credit balance: %v", err))
		}
	}

	if st.recurring && st.initialOrder == nil {
		length, period, total, ok := st.cart.RecurringCycleInfo()
		if ok {
			payment := domain.RecurringPayment{
				ID:             s.idGen("rp_"),
				InitialOrderID: st.order.ID,
				CustomerID:     st.customer.ID,
				CycleLength:    length,
				CyclePeriod:    period,
				TotalCycles:    total,
				Active:         true,
				StartedAt:      now,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if err := s.repos.RecurringPayments().Insert(ctx, payment); err != nil {
				s.addNote(ctx, &st.order, fmt.Sprintf("failed to create recurring payment schedule: %v", err))
			}
		}
	}
}

// finalizePlacement is stage 8: audit note, notifications, cart deletion and
// checkout session reset.
func (s *Service) finalizePlacement(ctx context.Context, st *placementState) {
	s.addNote(ctx, &st.order, "order placed")
	s.notifyCustomer(ctx, &st.order, EventOrderPlaced)
	s.notifyStoreOwner(ctx, &st.order, EventOrderPlaced)

	if st.initialOrder == nil {
		if err := s.repos.Carts().Delete(ctx, st.cart.ID); err != nil {
			s.logger(ctx, "orders.cart_delete.failed", map[string]any{
				"order_id": st.order.ID,
				"cart_id":  st.cart.ID,
				"error":    err.Error(),
			})
		}

		now := s.now()
		st.customer.SelectedShippingOption = nil
		st.customer.SelectedPaymentMethod = ""
		st.customer.SelectedPickupInStore = false
		st.customer.CheckoutAttributesDesc = ""
		st.customer.UseCreditBalance = decimal.Zero
		st.customer.LastOrderPlacedAt = &now
		if err := s.repos.Customers().Update(ctx, st.customer); err != nil {
			s.logger(ctx, "orders.customer_reset.failed", map[string]any{
				"order_id":    st.order.ID,
				"customer_id": st.customer.ID,
				"error":       err.Error(),
			})
		}
	}
}

// reevaluateLifecycle is stage 9: run the state machine and raise events.
func (s *Service) reevaluateLifecycle(ctx context.Context, st *placementState) {
	if err := s.checkOrderStatus(ctx, &st.order); err != nil {
		s.logger(ctx, "orders.lifecycle.failed", map[string]any{
			"order_id": st.order.ID,
			"error":    err.Error(),
		})
	}
	s.publishEvent(ctx, EventOrderPlaced, st.order)
	if st.order.PaymentStatus == domain.PaymentStatusPaid {
		s.publishEvent(ctx, EventOrderPaid, st.order)
	}
}

func (s *Service) publishEvent(ctx context.Context, event string, order domain.Order) {
	if s.events == nil {
		return
	}
	if _, err := s.events.PublishOrderEvent(ctx, event, order); err != nil {
		s.logger(ctx, "orders.event.publish_failed", map[string]any{
			"order_id": order.ID,
			"event":    event,
			"error":    err.Error(),
		})
	}
}

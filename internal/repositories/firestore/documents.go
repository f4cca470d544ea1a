package firestore

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/northcart/commerce/internal/domain"
)

// Monetary values are stored as canonical decimal strings so Firestore never
// sees binary floats.

func decString(d decimal.Decimal) string { return d.String() }

func parseDec(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

type addressDocument struct {
	Recipient  string  `firestore:"recipient,omitempty"`
	Line1      string  `firestore:"line1,omitempty"`
	Line2      *string `firestore:"line2,omitempty"`
	City       string  `firestore:"city,omitempty"`
	State      *string `firestore:"state,omitempty"`
	PostalCode string  `firestore:"postalCode,omitempty"`
	Country    string  `firestore:"country,omitempty"`
	Phone      *string `firestore:"phone,omitempty"`
	Email      string  `firestore:"email,omitempty"`
}

func addressToDocument(addr *domain.Address) *addressDocument {
	if addr == nil {
		return nil
	}
	return &addressDocument{
		Recipient:  addr.Recipient,
		Line1:      addr.Line1,
		Line2:      addr.Line2,
		City:       addr.City,
		State:      addr.State,
		PostalCode: addr.PostalCode,
		Country:    addr.Country,
		Phone:      addr.Phone,
		Email:      addr.Email,
	}
}

func addressFromDocument(doc *addressDocument) *domain.Address {
	if doc == nil {
		return nil
	}
	return &domain.Address{
		Recipient:  doc.Recipient,
		Line1:      doc.Line1,
		Line2:      doc.Line2,
		City:       doc.City,
		State:      doc.State,
		PostalCode: doc.PostalCode,
		Country:    doc.Country,
		Phone:      doc.Phone,
		Email:      doc.Email,
	}
}

type cartItemDocument struct {
	ID                       string            `firestore:"id"`
	ProductID                string            `firestore:"productId"`
	SKU                      string            `firestore:"sku,omitempty"`
	Name                     string            `firestore:"name,omitempty"`
	Quantity                 int               `firestore:"quantity"`
	UnitPrice                string            `firestore:"unitPrice"`
	TaxCategoryID            string            `firestore:"taxCategoryId,omitempty"`
	WeightGrams              int               `firestore:"weightGrams,omitempty"`
	IsShippable              bool              `firestore:"isShippable"`
	IsGiftCard               bool              `firestore:"isGiftCard,omitempty"`
	AdditionalShippingCharge string            `firestore:"additionalShippingCharge,omitempty"`
	IsRecurring              bool              `firestore:"isRecurring,omitempty"`
	RecurringCycleLength     int               `firestore:"recurringCycleLength,omitempty"`
	RecurringCyclePeriod     string            `firestore:"recurringCyclePeriod,omitempty"`
	RecurringTotalCycles     int               `firestore:"recurringTotalCycles,omitempty"`
	Attributes               map[string]string `firestore:"attributes,omitempty"`
	ChildItems               []cartItemDocument `firestore:"childItems,omitempty"`
}

func cartItemToDocument(item domain.CartItem) cartItemDocument {
	doc := cartItemDocument{
		ID:                       item.ID,
		ProductID:                item.ProductID,
		SKU:                      item.SKU,
		Name:                     item.Name,
		Quantity:                 item.Quantity,
		UnitPrice:                decString(item.UnitPrice),
		TaxCategoryID:            item.TaxCategoryID,
		WeightGrams:              item.WeightGrams,
		IsShippable:              item.IsShippable,
		IsGiftCard:               item.IsGiftCard,
		AdditionalShippingCharge: decString(item.AdditionalShippingCharge),
		IsRecurring:              item.IsRecurring,
		RecurringCycleLength:     item.RecurringCycleLength,
		RecurringCyclePeriod:     string(item.RecurringCyclePeriod),
		RecurringTotalCycles:     item.RecurringTotalCycles,
		Attributes:               item.Attributes,
	}
	for _, child := range item.ChildItems {
		doc.ChildItems = append(doc.ChildItems, cartItemToDocument(child))
	}
	return doc
}

func cartItemFromDocument(doc cartItemDocument) domain.CartItem {
	item := domain.CartItem{
		ID:                       doc.ID,
		ProductID:                doc.ProductID,
		SKU:                      doc.SKU,
		Name:                     doc.Name,
		Quantity:                 doc.Quantity,
		UnitPrice:                parseDec(doc.UnitPrice),
		TaxCategoryID:            doc.TaxCategoryID,
		WeightGrams:              doc.WeightGrams,
		IsShippable:              doc.IsShippable,
		IsGiftCard:               doc.IsGiftCard,
		AdditionalShippingCharge: parseDec(doc.AdditionalShippingCharge),
		IsRecurring:              doc.IsRecurring,
		RecurringCycleLength:     doc.RecurringCycleLength,
		RecurringCyclePeriod:     domain.RecurringCyclePeriod(doc.RecurringCyclePeriod),
		RecurringTotalCycles:     doc.RecurringTotalCycles,
		Attributes:               doc.Attributes,
	}
	for _, child := range doc.ChildItems {
		item.ChildItems = append(item.ChildItems, cartItemFromDocument(child))
	}
	return item
}

type checkoutAttributeDocument struct {
	Name            string `firestore:"name"`
	Value           string `firestore:"value"`
	PriceAdjustment string `firestore:"priceAdjustment,omitempty"`
	TaxCategoryID   string `firestore:"taxCategoryId,omitempty"`
}

type cartDocument struct {
	CustomerID         string                      `firestore:"customerId"`
	StoreID            string                      `firestore:"storeId,omitempty"`
	Currency           string                      `firestore:"currency"`
	Items              []cartItemDocument          `firestore:"items"`
	Requirements       int                         `firestore:"requirements"`
	CheckoutAttributes []checkoutAttributeDocument `firestore:"checkoutAttributes,omitempty"`
	CreatedAt          time.Time                   `firestore:"createdAt"`
	UpdatedAt          time.Time                   `firestore:"updatedAt"`
}

func cartToDocument(cart domain.Cart) cartDocument {
	doc := cartDocument{
		CustomerID:   cart.CustomerID,
		StoreID:      cart.StoreID,
		Currency:     cart.Currency,
		Requirements: int(cart.Requirements),
		CreatedAt:    cart.CreatedAt.UTC(),
		UpdatedAt:    cart.UpdatedAt.UTC(),
	}
	for _, item := range cart.Items {
		doc.Items = append(doc.Items, cartItemToDocument(item))
	}
	for _, attr := range cart.CheckoutAttributes {
		doc.CheckoutAttributes = append(doc.CheckoutAttributes, checkoutAttributeDocument{
			Name:            attr.Name,
			Value:           attr.Value,
			PriceAdjustment: decString(attr.PriceAdjustment),
			TaxCategoryID:   attr.TaxCategoryID,
		})
	}
	return doc
}

func cartFromDocument(id string, doc cartDocument) domain.Cart {
	cart := domain.Cart{
		ID:           id,
		CustomerID:   doc.CustomerID,
		StoreID:      doc.StoreID,
		Currency:     doc.Currency,
		Requirements: domain.CartRequirement(doc.Requirements),
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}
	for _, item := range doc.Items {
		cart.Items = append(cart.Items, cartItemFromDocument(item))
	}
	for _, attr := range doc.CheckoutAttributes {
		cart.CheckoutAttributes = append(cart.CheckoutAttributes, domain.CheckoutAttribute{
			Name:            attr.Name,
			Value:           attr.Value,
			PriceAdjustment: parseDec(attr.PriceAdjustment),
			TaxCategoryID:   attr.TaxCategoryID,
		})
	}
	return cart
}

type orderItemDocument struct {
	ID               string              `firestore:"id"`
	ProductID        string              `firestore:"productId"`
	SKU              string              `firestore:"sku,omitempty"`
	Name             string              `firestore:"name,omitempty"`
	Quantity         int                 `firestore:"quantity"`
	UnitPriceExclTax string              `firestore:"unitPriceExclTax"`
	UnitPriceInclTax string              `firestore:"unitPriceInclTax"`
	PriceExclTax     string              `firestore:"priceExclTax"`
	PriceInclTax     string              `firestore:"priceInclTax"`
	DiscountExclTax  string              `firestore:"discountExclTax,omitempty"`
	DiscountInclTax  string              `firestore:"discountInclTax,omitempty"`
	TaxRate          string              `firestore:"taxRate,omitempty"`
	IsShippable      bool                `firestore:"isShippable"`
	IsGiftCard       bool                `firestore:"isGiftCard,omitempty"`
	Attributes       map[string]string   `firestore:"attributes,omitempty"`
	ChildItems       []orderItemDocument `firestore:"childItems,omitempty"`
}

func orderItemToDocument(item domain.OrderItem) orderItemDocument {
	doc := orderItemDocument{
		ID:               item.ID,
		ProductID:        item.ProductID,
		SKU:              item.SKU,
		Name:             item.Name,
		Quantity:         item.Quantity,
		UnitPriceExclTax: decString(item.UnitPriceExclTax),
		UnitPriceInclTax: decString(item.UnitPriceInclTax),
		PriceExclTax:     decString(item.PriceExclTax),
		PriceInclTax:     decString(item.PriceInclTax),
		DiscountExclTax:  decString(item.DiscountExclTax),
		DiscountInclTax:  decString(item.DiscountInclTax),
		TaxRate:          decString(item.TaxRate),
		IsShippable:      item.IsShippable,
		IsGiftCard:       item.IsGiftCard,
		Attributes:       item.Attributes,
	}
	for _, child := range item.ChildItems {
		doc.ChildItems = append(doc.ChildItems, orderItemToDocument(child))
	}
	return doc
}

func orderItemFromDocument(orderID string, doc orderItemDocument) domain.OrderItem {
	item := domain.OrderItem{
		ID:               doc.ID,
		OrderID:          orderID,
		ProductID:        doc.ProductID,
		SKU:              doc.SKU,
		Name:             doc.Name,
		Quantity:         doc.Quantity,
		UnitPriceExclTax: parseDec(doc.UnitPriceExclTax),
		UnitPriceInclTax: parseDec(doc.UnitPriceInclTax),
		PriceExclTax:     parseDec(doc.PriceExclTax),
		PriceInclTax:     parseDec(doc.PriceInclTax),
		DiscountExclTax:  parseDec(doc.DiscountExclTax),
		DiscountInclTax:  parseDec(doc.DiscountInclTax),
		TaxRate:          parseDec(doc.TaxRate),
		IsShippable:      doc.IsShippable,
		IsGiftCard:       doc.IsGiftCard,
		Attributes:       doc.Attributes,
	}
	for _, child := range doc.ChildItems {
		item.ChildItems = append(item.ChildItems, orderItemFromDocument(orderID, child))
	}
	return item
}

type orderNoteDocument struct {
	ID        string    `firestore:"id"`
	Text      string    `firestore:"text"`
	CreatedAt time.Time `firestore:"createdAt"`
}

type shipmentDocument struct {
	ID             string         `firestore:"id"`
	TrackingNumber string         `firestore:"trackingNumber,omitempty"`
	ItemQuantities map[string]int `firestore:"itemQuantities"`
	ShippedAt      *time.Time     `firestore:"shippedAt,omitempty"`
	DeliveredAt    *time.Time     `firestore:"deliveredAt,omitempty"`
	CreatedAt      time.Time      `firestore:"createdAt"`
}

type orderDocument struct {
	OrderNumber string `firestore:"orderNumber"`
	CustomerID  string `firestore:"customerId"`
	StoreID     string `firestore:"storeId,omitempty"`

	CurrencyCode string `firestore:"currencyCode"`
	CurrencyRate string `firestore:"currencyRate,omitempty"`

	OrderStatus    string `firestore:"orderStatus"`
	PaymentStatus  string `firestore:"paymentStatus"`
	ShippingStatus string `firestore:"shippingStatus"`

	SubtotalExclTax         string `firestore:"subtotalExclTax"`
	SubtotalInclTax         string `firestore:"subtotalInclTax"`
	SubtotalDiscountExclTax string `firestore:"subtotalDiscountExclTax,omitempty"`
	SubtotalDiscountInclTax string `firestore:"subtotalDiscountInclTax,omitempty"`
	ShippingExclTax         string `firestore:"shippingExclTax,omitempty"`
	ShippingInclTax         string `firestore:"shippingInclTax,omitempty"`
	PaymentFeeExclTax       string `firestore:"paymentFeeExclTax,omitempty"`
	PaymentFeeInclTax       string `firestore:"paymentFeeInclTax,omitempty"`
	TaxTotal                string `firestore:"taxTotal,omitempty"`
	TaxRates                string `firestore:"taxRates,omitempty"`
	DiscountTotal           string `firestore:"discountTotal,omitempty"`
	RoundingDiff            string `firestore:"roundingDiff,omitempty"`
	Total                   string `firestore:"total"`
	RefundedAmount          string `firestore:"refundedAmount,omitempty"`

	RedeemedRewardPoints       int    `firestore:"redeemedRewardPoints,omitempty"`
	RedeemedRewardPointsAmount string `firestore:"redeemedRewardPointsAmount,omitempty"`
	RewardPointsWereAdded      bool   `firestore:"rewardPointsWereAdded,omitempty"`
	RewardPointsEarned         int    `firestore:"rewardPointsEarned,omitempty"`

	UsedCreditBalance string `firestore:"usedCreditBalance,omitempty"`

	PaymentMethodSystemName    string `firestore:"paymentMethodSystemName,omitempty"`
	AuthorizationTransactionID string `firestore:"authorizationTransactionId,omitempty"`
	CaptureTransactionID       string `firestore:"captureTransactionId,omitempty"`
	SubscriptionTransactionID  string `firestore:"subscriptionTransactionId,omitempty"`

	BillingAddress  *addressDocument `firestore:"billingAddress,omitempty"`
	ShippingAddress *addressDocument `firestore:"shippingAddress,omitempty"`
	ShippingMethod  string           `firestore:"shippingMethod,omitempty"`
	PickupInStore   bool             `firestore:"pickupInStore,omitempty"`

	CheckoutAttributeDescription string `firestore:"checkoutAttributeDescription,omitempty"`
	VATNumber                    string `firestore:"vatNumber,omitempty"`

	Items     []orderItemDocument `firestore:"items"`
	Notes     []orderNoteDocument `firestore:"notes,omitempty"`
	Shipments []shipmentDocument  `firestore:"shipments,omitempty"`

	Deleted bool `firestore:"deleted"`

	PaidAt      *time.Time `firestore:"paidAt,omitempty"`
	CancelledAt *time.Time `firestore:"cancelledAt,omitempty"`
	CreatedAt   time.Time  `firestore:"createdAt"`
	UpdatedAt   time.Time  `firestore:"updatedAt"`
}

func orderToDocument(order domain.Order) orderDocument {
	doc := orderDocument{
		OrderNumber:                  order.OrderNumber,
		CustomerID:                   order.CustomerID,
		StoreID:                      order.StoreID,
		CurrencyCode:                 order.CurrencyCode,
		CurrencyRate:                 decString(order.CurrencyRate),
		OrderStatus:                  string(order.OrderStatus),
		PaymentStatus:                string(order.PaymentStatus),
		ShippingStatus:               string(order.ShippingStatus),
		SubtotalExclTax:              decString(order.SubtotalExclTax),
		SubtotalInclTax:              decString(order.SubtotalInclTax),
		SubtotalDiscountExclTax:      decString(order.SubtotalDiscountExclTax),
		SubtotalDiscountInclTax:      decString(order.SubtotalDiscountInclTax),
		ShippingExclTax:              decString(order.ShippingExclTax),
		ShippingInclTax:              decString(order.ShippingInclTax),
		PaymentFeeExclTax:            decString(order.PaymentFeeExclTax),
		PaymentFeeInclTax:            decString(order.PaymentFeeInclTax),
		TaxTotal:                     decString(order.TaxTotal),
		TaxRates:                     order.TaxRates,
		DiscountTotal:                decString(order.DiscountTotal),
		RoundingDiff:                 decString(order.RoundingDiff),
		Total:                        decString(order.Total),
		RefundedAmount:               decString(order.RefundedAmount),
		RedeemedRewardPoints:         order.RedeemedRewardPoints,
		RedeemedRewardPointsAmount:   decString(order.RedeemedRewardPointsAmount),
		RewardPointsWereAdded:        order.RewardPointsWereAdded,
		RewardPointsEarned:           order.RewardPointsEarned,
		UsedCreditBalance:            decString(order.UsedCreditBalance),
		PaymentMethodSystemName:      order.PaymentMethodSystemName,
		AuthorizationTransactionID:   order.AuthorizationTransactionID,
		CaptureTransactionID:         order.CaptureTransactionID,
		SubscriptionTransactionID:    order.SubscriptionTransactionID,
		BillingAddress:               addressToDocument(order.BillingAddress),
		ShippingAddress:              addressToDocument(order.ShippingAddress),
		ShippingMethod:               order.ShippingMethod,
		PickupInStore:                order.PickupInStore,
		CheckoutAttributeDescription: order.CheckoutAttributeDescription,
		VATNumber:                    order.VATNumber,
		Deleted:                      order.Deleted,
		PaidAt:                       order.PaidAt,
		CancelledAt:                  order.CancelledAt,
		CreatedAt:                    order.CreatedAt.UTC(),
		UpdatedAt:                    order.UpdatedAt.UTC(),
	}
	for _, item := range order.Items {
		doc.Items = append(doc.Items, orderItemToDocument(item))
	}
	for _, note := range order.Notes {
		doc.Notes = append(doc.Notes, orderNoteDocument{ID: note.ID, Text: note.Text, CreatedAt: note.CreatedAt})
	}
	for _, shipment := range order.Shipments {
		doc.Shipments = append(doc.Shipments, shipmentDocument{
			ID:             shipment.ID,
			TrackingNumber: shipment.TrackingNumber,
			ItemQuantities: shipment.ItemQuantities,
			ShippedAt:      shipment.ShippedAt,
			DeliveredAt:    shipment.DeliveredAt,
			CreatedAt:      shipment.CreatedAt,
		})
	}
	return doc
}

func orderFromDocument(id string, doc orderDocument) domain.Order {
	order := domain.Order{
		ID:                           id,
		OrderNumber:                  doc.OrderNumber,
		CustomerID:                   doc.CustomerID,
		StoreID:                      doc.StoreID,
		CurrencyCode:                 doc.CurrencyCode,
		CurrencyRate:                 parseDec(doc.CurrencyRate),
		OrderStatus:                  domain.OrderStatus(doc.OrderStatus),
		PaymentStatus:                domain.PaymentStatus(doc.PaymentStatus),
		ShippingStatus:               domain.ShippingStatus(doc.ShippingStatus),
		SubtotalExclTax:              parseDec(doc.SubtotalExclTax),
		SubtotalInclTax:              parseDec(doc.SubtotalInclTax),
		SubtotalDiscountExclTax:      parseDec(doc.SubtotalDiscountExclTax),
		SubtotalDiscountInclTax:      parseDec(doc.SubtotalDiscountInclTax),
		ShippingExclTax:              parseDec(doc.ShippingExclTax),
		ShippingInclTax:              parseDec(doc.ShippingInclTax),
		PaymentFeeExclTax:            parseDec(doc.PaymentFeeExclTax),
		PaymentFeeInclTax:            parseDec(doc.PaymentFeeInclTax),
		TaxTotal:                     parseDec(doc.TaxTotal),
		TaxRates:                     doc.TaxRates,
		DiscountTotal:                parseDec(doc.DiscountTotal),
		RoundingDiff:                 parseDec(doc.RoundingDiff),
		Total:                        parseDec(doc.Total),
		RefundedAmount:               parseDec(doc.RefundedAmount),
		RedeemedRewardPoints:         doc.RedeemedRewardPoints,
		RedeemedRewardPointsAmount:   parseDec(doc.RedeemedRewardPointsAmount),
		RewardPointsWereAdded:        doc.RewardPointsWereAdded,
		RewardPointsEarned:           doc.RewardPointsEarned,
		UsedCreditBalance:            parseDec(doc.UsedCreditBalance),
		PaymentMethodSystemName:      doc.PaymentMethodSystemName,
		AuthorizationTransactionID:   doc.AuthorizationTransactionID,
		CaptureTransactionID:         doc.CaptureTransactionID,
		SubscriptionTransactionID:    doc.SubscriptionTransactionID,
		BillingAddress:               addressFromDocument(doc.BillingAddress),
		ShippingAddress:              addressFromDocument(doc.ShippingAddress),
		ShippingMethod:               doc.ShippingMethod,
		PickupInStore:                doc.PickupInStore,
		CheckoutAttributeDescription: doc.CheckoutAttributeDescription,
		VATNumber:                    doc.VATNumber,
		Deleted:                      doc.Deleted,
		PaidAt:                       doc.PaidAt,
		CancelledAt:                  doc.CancelledAt,
		CreatedAt:                    doc.CreatedAt,
		UpdatedAt:                    doc.UpdatedAt,
	}
	for _, item := range doc.Items {
		order.Items = append(order.Items, orderItemFromDocument(id, item))
	}
	for _, note := range doc.Notes {
		order.Notes = append(order.Notes, domain.OrderNote{ID: note.ID, OrderID: id, Text: note.Text, CreatedAt: note.CreatedAt})
	}
	for _, shipment := range doc.Shipments {
		order.Shipments = append(order.Shipments, domain.Shipment{
			ID:             shipment.ID,
			OrderID:        id,
			TrackingNumber: shipment.TrackingNumber,
			ItemQuantities: shipment.ItemQuantities,
			ShippedAt:      shipment.ShippedAt,
			DeliveredAt:    shipment.DeliveredAt,
			CreatedAt:      shipment.CreatedAt,
		})
	}
	return order
}

type shippingOptionDocument struct {
	Name       string `firestore:"name"`
	SystemName string `firestore:"systemName"`
	Rate       string `firestore:"rate"`
}

type customerDocument struct {
	Email        string `firestore:"email,omitempty"`
	IsRegistered bool   `firestore:"isRegistered"`

	CurrencyCode     string `firestore:"currencyCode,omitempty"`
	LanguageCode     string `firestore:"languageCode,omitempty"`
	PricesIncludeTax bool   `firestore:"pricesIncludeTax"`

	IsTaxExempt    bool   `firestore:"isTaxExempt,omitempty"`
	VATNumber      string `firestore:"vatNumber,omitempty"`
	VATNumberValid bool   `firestore:"vatNumberValid,omitempty"`

	HasFreeShipping bool `firestore:"hasFreeShipping,omitempty"`

	UseRewardPoints     bool `firestore:"useRewardPoints,omitempty"`
	RewardPointsBalance int  `firestore:"rewardPointsBalance"`

	CreditBalance    string `firestore:"creditBalance,omitempty"`
	UseCreditBalance string `firestore:"useCreditBalance,omitempty"`

	BillingAddress  *addressDocument `firestore:"billingAddress,omitempty"`
	ShippingAddress *addressDocument `firestore:"shippingAddress,omitempty"`

	SelectedShippingOption    *shippingOptionDocument `firestore:"selectedShippingOption,omitempty"`
	SelectedPaymentMethod     string                  `firestore:"selectedPaymentMethod,omitempty"`
	SelectedPickupInStore     bool                    `firestore:"selectedPickupInStore,omitempty"`
	CheckoutAttributesDesc    string                  `firestore:"checkoutAttributesDesc,omitempty"`
	LastOrderPlacedAt         *time.Time              `firestore:"lastOrderPlacedAt,omitempty"`
	MinOrderPlacementExempted bool                    `firestore:"minOrderPlacementExempted,omitempty"`
}

func customerToDocument(customer domain.Customer) customerDocument {
	doc := customerDocument{
		Email:                     customer.Email,
		IsRegistered:              customer.IsRegistered,
		CurrencyCode:              customer.CurrencyCode,
		LanguageCode:              customer.LanguageCode,
		PricesIncludeTax:          customer.PricesIncludeTax,
		IsTaxExempt:               customer.IsTaxExempt,
		VATNumber:                 customer.VATNumber,
		VATNumberValid:            customer.VATNumberValid,
		HasFreeShipping:           customer.HasFreeShipping,
		UseRewardPoints:           customer.UseRewardPoints,
		RewardPointsBalance:       customer.RewardPointsBalance,
		CreditBalance:             decString(customer.CreditBalance),
		UseCreditBalance:          decString(customer.UseCreditBalance),
		BillingAddress:            addressToDocument(customer.BillingAddress),
		ShippingAddress:           addressToDocument(customer.ShippingAddress),
		SelectedPaymentMethod:     customer.SelectedPaymentMethod,
		SelectedPickupInStore:     customer.SelectedPickupInStore,
		CheckoutAttributesDesc:    customer.CheckoutAttributesDesc,
		LastOrderPlacedAt:         customer.LastOrderPlacedAt,
		MinOrderPlacementExempted: customer.MinOrderPlacementExempted,
	}
	if opt := customer.SelectedShippingOption; opt != nil {
		doc.SelectedShippingOption = &shippingOptionDocument{
			Name:       opt.Name,
			SystemName: opt.SystemName,
			Rate:       decString(opt.Rate),
		}
	}
	return doc
}

func customerFromDocument(id string, doc customerDocument) domain.Customer {
	customer := domain.Customer{
		ID:                        id,
		Email:                     doc.Email,
		IsRegistered:              doc.IsRegistered,
		CurrencyCode:              doc.CurrencyCode,
		LanguageCode:              doc.LanguageCode,
		PricesIncludeTax:          doc.PricesIncludeTax,
		IsTaxExempt:               doc.IsTaxExempt,
		VATNumber:                 doc.VATNumber,
		VATNumberValid:            doc.VATNumberValid,
		HasFreeShipping:           doc.HasFreeShipping,
		UseRewardPoints:           doc.UseRewardPoints,
		RewardPointsBalance:       doc.RewardPointsBalance,
		CreditBalance:             parseDec(doc.CreditBalance),
		UseCreditBalance:          parseDec(doc.UseCreditBalance),
		BillingAddress:            addressFromDocument(doc.BillingAddress),
		ShippingAddress:           addressFromDocument(doc.ShippingAddress),
		SelectedPaymentMethod:     doc.SelectedPaymentMethod,
		SelectedPickupInStore:     doc.SelectedPickupInStore,
		CheckoutAttributesDesc:    doc.CheckoutAttributesDesc,
		LastOrderPlacedAt:         doc.LastOrderPlacedAt,
		MinOrderPlacementExempted: doc.MinOrderPlacementExempted,
	}
	if opt := doc.SelectedShippingOption; opt != nil {
		customer.SelectedShippingOption = &domain.ShippingOption{
			Name:       opt.Name,
			SystemName: opt.SystemName,
			Rate:       parseDec(opt.Rate),
		}
	}
	return customer
}

type giftCardDocument struct {
	Code                     string    `firestore:"code"`
	CustomerID               string    `firestore:"customerId,omitempty"`
	InitialValue             string    `firestore:"initialValue"`
	RemainingValue           string    `firestore:"remainingValue"`
	Active                   bool      `firestore:"active"`
	PurchasedWithOrderItemID string    `firestore:"purchasedWithOrderItemId,omitempty"`
	CreatedAt                time.Time `firestore:"createdAt"`
}

func giftCardToDocument(card domain.GiftCard) giftCardDocument {
	return giftCardDocument{
		Code:                     card.Code,
		CustomerID:               card.CustomerID,
		InitialValue:             decString(card.InitialValue),
		RemainingValue:           decString(card.RemainingValue),
		Active:                   card.Active,
		PurchasedWithOrderItemID: card.PurchasedWithOrderItemID,
		CreatedAt:                card.CreatedAt.UTC(),
	}
}

func giftCardFromDocument(id string, doc giftCardDocument) domain.GiftCard {
	return domain.GiftCard{
		ID:                       id,
		Code:                     doc.Code,
		CustomerID:               doc.CustomerID,
		InitialValue:             parseDec(doc.InitialValue),
		RemainingValue:           parseDec(doc.RemainingValue),
		Active:                   doc.Active,
		PurchasedWithOrderItemID: doc.PurchasedWithOrderItemID,
		CreatedAt:                doc.CreatedAt,
	}
}

type giftCardUsageDocument struct {
	GiftCardID string    `firestore:"giftCardId"`
	OrderID    string    `firestore:"orderId"`
	Amount     string    `firestore:"amount"`
	CreatedAt  time.Time `firestore:"createdAt"`
}

type discountUsageDocument struct {
	DiscountID string    `firestore:"discountId"`
	OrderID    string    `firestore:"orderId"`
	CustomerID string    `firestore:"customerId,omitempty"`
	CreatedAt  time.Time `firestore:"createdAt"`
}

type recurringHistoryDocument struct {
	OrderID   string    `firestore:"orderId"`
	CycleNum  int       `firestore:"cycleNum"`
	CreatedAt time.Time `firestore:"createdAt"`
}

type recurringPaymentDocument struct {
	InitialOrderID    string                     `firestore:"initialOrderId"`
	CustomerID        string                     `firestore:"customerId"`
	CycleLength       int                        `firestore:"cycleLength"`
	CyclePeriod       string                     `firestore:"cyclePeriod"`
	TotalCycles       int                        `firestore:"totalCycles"`
	Active            bool                       `firestore:"active"`
	LastPaymentFailed bool                       `firestore:"lastPaymentFailed,omitempty"`
	FailedAttempts    int                        `firestore:"failedAttempts,omitempty"`
	StartedAt         time.Time                  `firestore:"startedAt"`
	NextCycleAt       time.Time                  `firestore:"nextCycleAt"`
	History           []recurringHistoryDocument `firestore:"history,omitempty"`
	CreatedAt         time.Time                  `firestore:"createdAt"`
	UpdatedAt         time.Time                  `firestore:"updatedAt"`
}

func recurringToDocument(payment domain.RecurringPayment) recurringPaymentDocument {
	doc := recurringPaymentDocument{
		InitialOrderID:    payment.InitialOrderID,
		CustomerID:        payment.CustomerID,
		CycleLength:       payment.CycleLength,
		CyclePeriod:       string(payment.CyclePeriod),
		TotalCycles:       payment.TotalCycles,
		Active:            payment.Active,
		LastPaymentFailed: payment.LastPaymentFailed,
		FailedAttempts:    payment.FailedAttempts,
		StartedAt:         payment.StartedAt.UTC(),
		NextCycleAt:       payment.NextCycleAt().UTC(),
		CreatedAt:         payment.CreatedAt.UTC(),
		UpdatedAt:         payment.UpdatedAt.UTC(),
	}
	for _, entry := range payment.History {
		doc.History = append(doc.History, recurringHistoryDocument{
			OrderID:   entry.OrderID,
			CycleNum:  entry.CycleNum,
			CreatedAt: entry.CreatedAt,
		})
	}
	return doc
}

func recurringFromDocument(id string, doc recurringPaymentDocument) domain.RecurringPayment {
	payment := domain.RecurringPayment{
		ID:                id,
		InitialOrderID:    doc.InitialOrderID,
		CustomerID:        doc.CustomerID,
		CycleLength:       doc.CycleLength,
		CyclePeriod:       domain.RecurringCyclePeriod(doc.CyclePeriod),
		TotalCycles:       doc.TotalCycles,
		Active:            doc.Active,
		LastPaymentFailed: doc.LastPaymentFailed,
		FailedAttempts:    doc.FailedAttempts,
		StartedAt:         doc.StartedAt,
		CreatedAt:         doc.CreatedAt,
		UpdatedAt:         doc.UpdatedAt,
	}
	for _, entry := range doc.History {
		payment.History = append(payment.History, domain.RecurringPaymentHistoryEntry{
			OrderID:   entry.OrderID,
			CycleNum:  entry.CycleNum,
			CreatedAt: entry.CreatedAt,
		})
	}
	return payment
}

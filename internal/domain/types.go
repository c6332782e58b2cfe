package domain

import (
	"time"
)

// Address is the postal destination collected on the shipping step. Region
// must be one of the supported Ghana regions; postal code is optional and
// intentionally unvalidated.
type Address struct {
	ID         string
	UserID     string
	Recipient  string
	Street     string
	City       string
	Region     RegionCode
	PostalCode string
	Country    string
	Phone      string
	CreatedAt  time.Time
}

// CartItem is a single line of a cart snapshot. UnitPrice is in GHS and
// UnitWeightKg is the shipping weight per unit.
type CartItem struct {
	ProductID    string
	Name         string
	Quantity     int
	UnitPrice    float64
	UnitWeightKg float64
}

// CartSnapshot is the read-only view of a cart handed to the checkout flow.
// Checkout never mutates the cart except to clear it on a successful order.
type CartSnapshot struct {
	ID        string
	UserID    string
	Currency  string
	Items     []CartItem
	UpdatedAt time.Time
}

// Subtotal returns the sum of quantity times unit price across all lines,
// rounded to the cent boundary.
func (c CartSnapshot) Subtotal() float64 {
	var total float64
	for _, item := range c.Items {
		if item.Quantity <= 0 || item.UnitPrice <= 0 {
			continue
		}
		total += item.UnitPrice * float64(item.Quantity)
	}
	return Round2(total)
}

// TotalWeightKg returns the summed shipping weight of the snapshot.
func (c CartSnapshot) TotalWeightKg() float64 {
	var weight float64
	for _, item := range c.Items {
		if item.Quantity <= 0 || item.UnitWeightKg <= 0 {
			continue
		}
		weight += item.UnitWeightKg * float64(item.Quantity)
	}
	return weight
}

// DeliveryMethod enumerates the supported delivery options.
type DeliveryMethod string

const (
	// DeliveryStandard is the default road delivery option.
	DeliveryStandard DeliveryMethod = "standard"
	// DeliveryExpress is the expedited option, not available for all regions.
	DeliveryExpress DeliveryMethod = "express"
)

// ParseDeliveryMethod validates a wire value against the known methods.
func ParseDeliveryMethod(value string) (DeliveryMethod, bool) {
	switch DeliveryMethod(value) {
	case DeliveryStandard, DeliveryExpress:
		return DeliveryMethod(value), true
	default:
		return "", false
	}
}

// Multiplier returns the pricing multiplier applied to the shipping subtotal.
func (m DeliveryMethod) Multiplier() float64 {
	if m == DeliveryExpress {
		return 2.0
	}
	return 1.0
}

// ShippingQuote is the derived cost breakdown for one (address, items,
// method) combination. All amounts are GHS rounded to two decimals. Quotes
// are never persisted; they are recomputed whenever the inputs change.
type ShippingQuote struct {
	BaseRate         float64
	DistanceRate     float64
	WeightRate       float64
	MethodMultiplier float64
	Total            float64
	EstimatedDays    string
	Method           DeliveryMethod
}

// OrderStatus enumerates valid lifecycle states for orders.
type OrderStatus string

const (
	// OrderStatusPending indicates the order exists but payment has not settled.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusPaid indicates the payment processor confirmed settlement.
	OrderStatusPaid OrderStatus = "paid"
	// OrderStatusConfirmed indicates the order was acknowledged for fulfilment.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusShipped indicates the order has left the warehouse.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered indicates the order reached the customer.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled indicates the order was cancelled.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// ParseOrderStatus validates a wire value against the known statuses.
func ParseOrderStatus(value string) (OrderStatus, bool) {
	switch OrderStatus(value) {
	case OrderStatusPending, OrderStatusPaid, OrderStatusConfirmed,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return OrderStatus(value), true
	default:
		return "", false
	}
}

// CanTransitionTo reports whether the status change is a legal move in the
// order lifecycle. Admin overrides go through the same table.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	allowed, ok := orderStatusTransitions[s]
	if !ok {
		return false
	}
	for _, candidate := range allowed {
		if candidate == next {
			return true
		}
	}
	return false
}

var orderStatusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusPaid, OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusPaid:      {OrderStatusConfirmed, OrderStatusShipped, OrderStatusCancelled},
	OrderStatusConfirmed: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:   {OrderStatusDelivered},
}

// OrderLineItem mirrors cart items at the time of checkout. UnitPrice is the
// server-side catalog price, never the client-supplied one.
type OrderLineItem struct {
	ProductID string
	Name      string
	Quantity  int
	UnitPrice float64
	Total     float64
}

// OrderContact stores the customer contact snapshot used for notifications.
type OrderContact struct {
	Name  string
	Email string
	Phone string
}

// Order is the persisted outcome of a completed checkout submission.
// Immutable after creation except for Status and PaymentReference.
type Order struct {
	ID               string
	UserID           string
	Status           OrderStatus
	Currency         string
	Items            []OrderLineItem
	ShippingAddress  Address
	ShippingMethod   DeliveryMethod
	ShippingCost     float64
	Subtotal         float64
	Tax              float64
	Total            float64
	Payment          PaymentDetails
	PaymentReference string
	Contact          OrderContact
	IdempotencyToken string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	PaidAt           *time.Time
}

// PaymentIntentStatus mirrors the processor-side intent lifecycle.
type PaymentIntentStatus string

const (
	// PaymentIntentPending indicates the intent awaits customer action.
	PaymentIntentPending PaymentIntentStatus = "pending"
	// PaymentIntentSettled indicates funds were captured by the processor.
	PaymentIntentSettled PaymentIntentStatus = "settled"
	// PaymentIntentFailed indicates the processor reported a failure.
	PaymentIntentFailed PaymentIntentStatus = "failed"
)

// PaymentIntent is the local mirror of one payment attempt held by the
// external processor. Amount is in minor units (pesewas).
type PaymentIntent struct {
	Reference string
	Amount    int64
	Currency  string
	Status    PaymentIntentStatus
}

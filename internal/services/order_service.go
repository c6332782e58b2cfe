package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/adomherbals/api/internal/domain"
	"github.com/adomherbals/api/internal/events"
	"github.com/adomherbals/api/internal/repositories"
)

var (
	// ErrOrderInvalidInput indicates the caller supplied invalid input parameters.
	ErrOrderInvalidInput = errors.New("orders: invalid input")
	// ErrOrderNotFound indicates the requested order does not exist.
	ErrOrderNotFound = errors.New("orders: not found")
	// ErrOrderUnavailable indicates order dependencies are currently unavailable.
	ErrOrderUnavailable = errors.New("orders: unavailable")
	// ErrOrderIllegalTransition indicates the requested status change is not
	// a legal move in the order lifecycle.
	ErrOrderIllegalTransition = errors.New("orders: illegal status transition")
	// ErrAddressCreationFailed indicates the shipping address could not be
	// persisted; no order is created in that case.
	ErrAddressCreationFailed = errors.New("orders: address creation failed")
	// ErrOrderCreationFailed indicates the order payload was rejected after
	// the address was stored.
	ErrOrderCreationFailed = errors.New("orders: order creation failed")
)

// defaultTaxRate is the flat VAT applied to the goods subtotal.
const defaultTaxRate = 0.15

// OrderServiceDeps wires the dependencies required by the order service.
type OrderServiceDeps struct {
	Orders    repositories.OrderRepository
	Addresses repositories.AddressRepository
	Catalog   repositories.ProductCatalog
	Publisher events.Publisher
	Clock     func() time.Time
	NewID     func() string
	TaxRate   float64
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders    repositories.OrderRepository
	addresses repositories.AddressRepository
	catalog   repositories.ProductCatalog
	publisher events.Publisher
	now       func() time.Time
	newID     func() string
	taxRate   float64
	logger    func(ctx context.Context, event string, fields map[string]any)
}

// NewOrderService constructs an OrderService validating required dependencies.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Addresses == nil {
		return nil, errors.New("order service: address repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("order service: product catalog is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.NewID
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	taxRate := deps.TaxRate
	if taxRate == 0 {
		taxRate = defaultTaxRate
	} else if taxRate < 0 {
		taxRate = 0
	}

	return &orderService{
		orders:    deps.Orders,
		addresses: deps.Addresses,
		catalog:   deps.Catalog,
		publisher: publisher,
		now: func() time.Time {
			return clock().UTC()
		},
		newID:   newID,
		taxRate: taxRate,
		logger:  logger,
	}, nil
}

// AssembleOrder persists the shipping address, recomputes totals from the
// catalog, and stores the order. The address write always precedes the order
// write; an address failure leaves no partial state behind. The idempotency
// token makes a retried submission return the already created order.
func (s *orderService) AssembleOrder(ctx context.Context, cmd AssembleOrderCommand) (domain.Order, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return domain.Order{}, ErrOrderInvalidInput
	}
	if len(cmd.Cart.Items) == 0 {
		return domain.Order{}, ErrOrderInvalidInput
	}
	region, ok := domain.RegionByCode(cmd.Shipping.Region)
	if !ok {
		return domain.Order{}, ErrOrderInvalidInput
	}

	now := s.now()
	address := domain.Address{
		ID:         s.newID(),
		UserID:     userID,
		Recipient:  strings.TrimSpace(cmd.Shipping.Name),
		Street:     strings.TrimSpace(cmd.Shipping.Street),
		City:       strings.TrimSpace(cmd.Shipping.City),
		Region:     region.Code,
		PostalCode: strings.TrimSpace(cmd.Shipping.PostalCode),
		Country:    "GH",
		Phone:      strings.TrimSpace(cmd.Shipping.Phone),
		CreatedAt:  now,
	}

	stored, err := s.addresses.Insert(ctx, address)
	if err != nil {
		s.logger(ctx, "orders.address_failed", map[string]any{
			"userID": userID,
			"error":  err.Error(),
		})
		return domain.Order{}, errors.Join(ErrAddressCreationFailed, err)
	}

	items, subtotal, err := s.priceLineItems(ctx, cmd.Cart.Items)
	if err != nil {
		return domain.Order{}, err
	}
	tax := domain.Round2(subtotal * s.taxRate)
	total := domain.Round2(subtotal + tax + cmd.Quote.Total)

	order := domain.Order{
		ID:              s.newID(),
		UserID:          userID,
		Status:          domain.OrderStatusPending,
		Currency:        "GHS",
		Items:           items,
		ShippingAddress: stored,
		ShippingMethod:  cmd.Quote.Method,
		ShippingCost:    cmd.Quote.Total,
		Subtotal:        subtotal,
		Tax:             tax,
		Total:           total,
		Payment:         cmd.Payment,
		Contact: domain.OrderContact{
			Name:  strings.TrimSpace(cmd.Shipping.Name),
			Email: strings.TrimSpace(cmd.Shipping.Email),
			Phone: strings.TrimSpace(cmd.Shipping.Phone),
		},
		IdempotencyToken: strings.TrimSpace(cmd.IdempotencyToken),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	created, err := s.orders.Insert(ctx, order)
	if err != nil {
		s.logger(ctx, "orders.create_failed", map[string]any{
			"userID": userID,
			"error":  err.Error(),
		})
		return domain.Order{}, errors.Join(ErrOrderCreationFailed, err)
	}

	if created.ID == order.ID {
		if err := s.publisher.OrderCreated(ctx, created); err != nil {
			s.logger(ctx, "orders.event_failed", map[string]any{
				"orderID": created.ID,
				"event":   "OrderCreated",
				"error":   err.Error(),
			})
		}
	}

	return created, nil
}

// priceLineItems resolves authoritative prices from the catalog; client
// figures are carried only as a display fallback when a product has been
// retired since it was added to the cart.
func (s *orderService) priceLineItems(ctx context.Context, items []domain.CartItem) ([]domain.OrderLineItem, float64, error) {
	lines := make([]domain.OrderLineItem, 0, len(items))
	var subtotal float64
	for _, item := range items {
		if strings.TrimSpace(item.ProductID) == "" || item.Quantity <= 0 {
			return nil, 0, ErrOrderInvalidInput
		}
		canonical, err := s.catalog.Lookup(ctx, item.ProductID)
		if err != nil {
			return nil, 0, errors.Join(ErrOrderCreationFailed, err)
		}
		lineTotal := domain.Round2(canonical.UnitPrice * float64(item.Quantity))
		lines = append(lines, domain.OrderLineItem{
			ProductID: item.ProductID,
			Name:      canonical.Name,
			Quantity:  item.Quantity,
			UnitPrice: canonical.UnitPrice,
			Total:     lineTotal,
		})
		subtotal += lineTotal
	}
	return lines, domain.Round2(subtotal), nil
}

// GetOrder returns the order when it belongs to the user.
func (s *orderService) GetOrder(ctx context.Context, userID, orderID string) (domain.Order, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(orderID) == "" {
		return domain.Order{}, ErrOrderInvalidInput
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, s.translateRepoError(err)
	}
	if order.UserID != userID {
		return domain.Order{}, ErrOrderNotFound
	}
	return order, nil
}

// ListOrders returns the user's orders, newest first.
func (s *orderService) ListOrders(ctx context.Context, userID string, limit int) ([]domain.Order, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrOrderInvalidInput
	}
	orders, err := s.orders.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, s.translateRepoError(err)
	}
	return orders, nil
}

// UpdateStatus applies a lifecycle transition, rejecting illegal moves. The
// same path serves payment settlement and admin overrides.
func (s *orderService) UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, paymentReference string) (domain.Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return domain.Order{}, ErrOrderInvalidInput
	}
	if _, ok := domain.ParseOrderStatus(string(status)); !ok {
		return domain.Order{}, ErrOrderInvalidInput
	}

	current, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, s.translateRepoError(err)
	}
	if current.Status == status {
		return current, nil
	}
	if !current.Status.CanTransitionTo(status) {
		return domain.Order{}, ErrOrderIllegalTransition
	}

	updated, err := s.orders.UpdateStatus(ctx, orderID, status, paymentReference)
	if err != nil {
		return domain.Order{}, s.translateRepoError(err)
	}

	if status == domain.OrderStatusPaid {
		if err := s.publisher.OrderPaid(ctx, updated); err != nil {
			s.logger(ctx, "orders.event_failed", map[string]any{
				"orderID": updated.ID,
				"event":   "OrderPaid",
				"error":   err.Error(),
			})
		}
	}
	return updated, nil
}

func (s *orderService) translateRepoError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrOrderNotFound
		default:
			return ErrOrderUnavailable
		}
	}
	return ErrOrderUnavailable
}

package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	domain "github.com/adomherbals/api/internal/domain"
	"github.com/adomherbals/api/internal/payments"
	"github.com/adomherbals/api/internal/repositories"
)

var (
	// ErrCheckoutInvalidInput indicates the caller supplied invalid input parameters.
	ErrCheckoutInvalidInput = errors.New("checkout: invalid input")
	// ErrCheckoutUnavailable indicates checkout dependencies are currently unavailable.
	ErrCheckoutUnavailable = errors.New("checkout: unavailable")
	// ErrCheckoutCartEmpty indicates the cart has no lines to check out.
	ErrCheckoutCartEmpty = errors.New("checkout: cart is empty")
	// ErrCheckoutSessionNotFound indicates the session does not exist or
	// belongs to another user.
	ErrCheckoutSessionNotFound = errors.New("checkout: session not found")
	// ErrCheckoutInvalidState indicates the operation is not legal in the
	// session's current state.
	ErrCheckoutInvalidState = errors.New("checkout: operation not allowed in current state")
	// ErrCheckoutSubmitInFlight indicates a submission is already running
	// for this session.
	ErrCheckoutSubmitInFlight = errors.New("checkout: submission already in flight")
	// ErrCheckoutSubmissionFailed indicates order assembly or payment
	// initialization failed; the session is back at review for retry.
	ErrCheckoutSubmissionFailed = errors.New("checkout: submission failed")
)

const cancelledMessage = "payment cancelled"

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// paymentInitializer abstracts payments.Manager for easier testing.
type paymentInitializer interface {
	Initialize(ctx context.Context, paymentCtx payments.PaymentContext, req payments.InitializeRequest) (payments.InitializeResult, error)
}

// CheckoutServiceDeps wires the dependencies required by the checkout service.
type CheckoutServiceDeps struct {
	Carts    repositories.CartRepository
	Profiles repositories.ProfileRepository
	Shipping ShippingCalculator
	Orders   OrderService
	Payments paymentInitializer
	Clock    func() time.Time
	Logger   func(ctx context.Context, event string, fields map[string]any)
	// CallbackURL is the verification route the processor redirects back to.
	CallbackURL string
	// UnsupportedRegionFallback enables a conservative default quote for
	// destinations missing from the shipping table instead of blocking the
	// shipping step.
	UnsupportedRegionFallback bool
	NewSessionID              func() string
	NewToken                  func() string
}

type checkoutService struct {
	carts       repositories.CartRepository
	profiles    repositories.ProfileRepository
	shipping    ShippingCalculator
	orders      OrderService
	payments    paymentInitializer
	now         func() time.Time
	logger      func(ctx context.Context, event string, fields map[string]any)
	callbackURL string
	fallback    bool
	newID       func() string
	newToken    func() string

	mu       sync.Mutex
	sessions map[string]*CheckoutSession
}

// NewCheckoutService constructs a CheckoutService validating required dependencies.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Carts == nil {
		return nil, errors.New("checkout service: cart repository is required")
	}
	if deps.Shipping == nil {
		return nil, errors.New("checkout service: shipping calculator is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("checkout service: order service is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("checkout service: payment manager is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	newID := deps.NewSessionID
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	newToken := deps.NewToken
	if newToken == nil {
		newToken = uuid.NewString
	}

	return &checkoutService{
		carts:    deps.Carts,
		profiles: deps.Profiles,
		shipping: deps.Shipping,
		orders:   deps.Orders,
		payments: deps.Payments,
		now: func() time.Time {
			return clock().UTC()
		},
		logger:      logger,
		callbackURL: strings.TrimSpace(deps.CallbackURL),
		fallback:    deps.UnsupportedRegionFallback,
		newID:       newID,
		newToken:    newToken,
		sessions:    make(map[string]*CheckoutSession),
	}, nil
}

// StartSession snapshots the cart and opens a new session at the shipping
// step, pre-filled from the user profile when one exists.
func (s *checkoutService) StartSession(ctx context.Context, userID string) (CheckoutSession, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return CheckoutSession{}, ErrCheckoutInvalidInput
	}

	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return CheckoutSession{}, s.translateCartError(err)
	}
	if len(cart.Items) == 0 {
		return CheckoutSession{}, ErrCheckoutCartEmpty
	}

	session := CheckoutSession{
		ID:               s.newID(),
		UserID:           userID,
		State:            StateShippingInfo,
		Cart:             cart,
		IdempotencyToken: s.newToken(),
		Shipping:         ShippingForm{Method: domain.DeliveryStandard, Country: "GH"},
	}
	s.prefillFromProfile(ctx, &session)

	s.mu.Lock()
	s.sessions[session.ID] = &session
	s.mu.Unlock()

	s.logger(ctx, "checkout.session_started", map[string]any{
		"sessionID": session.ID,
		"userID":    userID,
		"items":     len(cart.Items),
	})
	return session, nil
}

func (s *checkoutService) prefillFromProfile(ctx context.Context, session *CheckoutSession) {
	if s.profiles == nil {
		return
	}
	profile, err := s.profiles.FindByUserID(ctx, session.UserID)
	if err != nil {
		return
	}
	session.Shipping.Name = profile.Name
	session.Shipping.Email = profile.Email
	session.Shipping.Phone = profile.Phone
	if addr := profile.DefaultAddress; addr != nil {
		session.Shipping.Street = addr.Street
		session.Shipping.City = addr.City
		session.Shipping.Region = string(addr.Region)
		session.Shipping.PostalCode = addr.PostalCode
	}
}

// GetSession returns the session when it belongs to the user.
func (s *checkoutService) GetSession(_ context.Context, sessionID, userID string) (CheckoutSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := s.lookupLocked(sessionID, userID)
	if err != nil {
		return CheckoutSession{}, err
	}
	return *session, nil
}

func (s *checkoutService) lookupLocked(sessionID, userID string) (*CheckoutSession, error) {
	session, ok := s.sessions[strings.TrimSpace(sessionID)]
	if !ok || session.UserID != strings.TrimSpace(userID) {
		return nil, ErrCheckoutSessionNotFound
	}
	return session, nil
}

// SubmitShipping validates the shipping form, computes a fresh quote, and
// advances to the payment step. The quote is always recomputed; nothing is
// cached across address edits.
func (s *checkoutService) SubmitShipping(ctx context.Context, sessionID, userID string, form ShippingForm) (CheckoutSession, error) {
	if err := validateShippingForm(form, s.fallback); err != nil {
		return CheckoutSession{}, err
	}
	if form.Method == "" {
		form.Method = domain.DeliveryStandard
	}
	form.Country = "GH"

	quote, err := s.quoteFor(form, s.cartItems(sessionID, userID))
	if err != nil {
		return CheckoutSession{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := s.lookupLocked(sessionID, userID)
	if err != nil {
		return CheckoutSession{}, err
	}
	if session.State != StateShippingInfo {
		return CheckoutSession{}, ErrCheckoutInvalidState
	}

	session.Shipping = form
	session.Quote = &quote
	session.State = StatePaymentInfo
	session.FailureMessage = ""
	return *session, nil
}

func (s *checkoutService) cartItems(sessionID, userID string) []domain.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := s.lookupLocked(sessionID, userID)
	if err != nil {
		return nil
	}
	return session.Cart.Items
}

func (s *checkoutService) quoteFor(form ShippingForm, items []domain.CartItem) (domain.ShippingQuote, error) {
	address := domain.Address{Region: domain.RegionCode(strings.ToLower(strings.TrimSpace(form.Region)))}
	quote, err := s.shipping.Calculate(address, items, form.Method)
	if err == nil {
		return quote, nil
	}
	if errors.Is(err, ErrUnsupportedRegion) && s.fallback {
		return s.conservativeQuote(items, form.Method), nil
	}
	return domain.ShippingQuote{}, err
}

// conservativeQuote prices an unknown destination like the most expensive
// row of the region table so the estimate never undercharges.
func (s *checkoutService) conservativeQuote(items []domain.CartItem, method domain.DeliveryMethod) domain.ShippingQuote {
	worst := domain.Address{Region: domain.RegionUpperEast}
	quote, err := s.shipping.Calculate(worst, items, domain.DeliveryStandard)
	if err != nil {
		return domain.ShippingQuote{Method: method, MethodMultiplier: method.Multiplier()}
	}
	quote.Method = method
	quote.MethodMultiplier = method.Multiplier()
	quote.Total = domain.Round2(quote.Total * method.Multiplier())
	quote.EstimatedDays = "5-10 business days"
	return quote
}

// SubmitPayment validates the fields required for the selected method and
// advances to review. Raw card data is never retained.
func (s *checkoutService) SubmitPayment(_ context.Context, sessionID, userID string, form PaymentForm) (CheckoutSession, error) {
	details, err := paymentDetailsFromForm(form)
	if err != nil {
		return CheckoutSession{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := s.lookupLocked(sessionID, userID)
	if err != nil {
		return CheckoutSession{}, err
	}
	if session.State != StatePaymentInfo {
		return CheckoutSession{}, ErrCheckoutInvalidState
	}

	session.Payment = details
	session.State = StateReviewOrder
	session.FailureMessage = ""
	return *session, nil
}

// Back navigates one step backwards. Entered values are preserved so nothing
// is retyped. A failed session returns to review for retry.
func (s *checkoutService) Back(_ context.Context, sessionID, userID string) (CheckoutSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := s.lookupLocked(sessionID, userID)
	if err != nil {
		return CheckoutSession{}, err
	}

	switch session.State {
	case StatePaymentInfo:
		session.State = StateShippingInfo
	case StateReviewOrder:
		session.State = StatePaymentInfo
	case StateFailed:
		session.State = StateReviewOrder
		session.FailureMessage = ""
	default:
		return CheckoutSession{}, ErrCheckoutInvalidState
	}
	return *session, nil
}

// Submit runs the single mutating transition: order assembly followed by
// payment initialization. Exactly one submission can be in flight per
// session; re-entrant calls fail fast while the first is running. A session
// whose order was already created retries only the payment step.
func (s *checkoutService) Submit(ctx context.Context, sessionID, userID string) (SubmitOutcome, error) {
	s.mu.Lock()
	session, err := s.lookupLocked(sessionID, userID)
	if err != nil {
		s.mu.Unlock()
		return SubmitOutcome{}, err
	}
	switch session.State {
	case StateSubmitting:
		s.mu.Unlock()
		return SubmitOutcome{}, ErrCheckoutSubmitInFlight
	case StateReviewOrder:
	default:
		s.mu.Unlock()
		return SubmitOutcome{}, ErrCheckoutInvalidState
	}
	if session.Quote == nil {
		s.mu.Unlock()
		return SubmitOutcome{}, ErrCheckoutInvalidState
	}
	session.State = StateSubmitting
	session.FailureMessage = ""
	snapshot := *session
	s.mu.Unlock()

	order, failureMsg, err := s.runSubmission(ctx, &snapshot)

	s.mu.Lock()
	defer s.mu.Unlock()
	stored, lookupErr := s.lookupLocked(sessionID, userID)
	if lookupErr != nil {
		return SubmitOutcome{}, lookupErr
	}
	stored.OrderID = snapshot.OrderID
	// A cancel issued while the submission was running already moved the
	// session to failed; that outcome wins over whatever the submission
	// produced. The order id is still recorded so a retry after Back skips
	// re-assembly.
	if stored.State == StateFailed {
		if err != nil {
			return SubmitOutcome{Session: *stored}, err
		}
		stored.PaymentReference = snapshot.PaymentReference
		return SubmitOutcome{Session: *stored, Order: order}, nil
	}
	if err != nil {
		stored.State = StateReviewOrder
		stored.FailureMessage = failureMsg
		return SubmitOutcome{Session: *stored}, err
	}
	stored.State = StateSucceeded
	stored.PaymentReference = snapshot.PaymentReference
	stored.AuthorizationURL = snapshot.AuthorizationURL
	stored.Instructions = snapshot.Instructions
	return SubmitOutcome{Session: *stored, Order: order}, nil
}

// runSubmission performs the sequential order-create and payment-init calls
// outside the session lock. Address creation precedes order creation, which
// precedes payment initialization; no step is skipped or reordered.
func (s *checkoutService) runSubmission(ctx context.Context, session *CheckoutSession) (domain.Order, string, error) {
	var order domain.Order
	var err error

	if session.OrderID == "" {
		order, err = s.orders.AssembleOrder(ctx, AssembleOrderCommand{
			UserID:           session.UserID,
			Cart:             session.Cart,
			Shipping:         session.Shipping,
			Payment:          session.Payment,
			Quote:            *session.Quote,
			IdempotencyToken: session.IdempotencyToken,
		})
		if err != nil {
			s.logger(ctx, "checkout.assemble_failed", map[string]any{
				"sessionID": session.ID,
				"error":     err.Error(),
			})
			return domain.Order{}, err.Error(), errors.Join(ErrCheckoutSubmissionFailed, err)
		}
		session.OrderID = order.ID
	} else {
		order, err = s.orders.GetOrder(ctx, session.UserID, session.OrderID)
		if err != nil {
			return domain.Order{}, err.Error(), errors.Join(ErrCheckoutSubmissionFailed, err)
		}
	}

	if !session.Payment.RequiresGateway() {
		if err := s.carts.Clear(ctx, session.UserID); err != nil {
			s.logger(ctx, "checkout.cart_clear_failed", map[string]any{
				"sessionID": session.ID,
				"error":     err.Error(),
			})
		}
		return order, "", nil
	}

	result, err := s.initializePayment(ctx, session, order)
	if err != nil {
		s.logger(ctx, "checkout.payment_init_failed", map[string]any{
			"sessionID": session.ID,
			"orderID":   order.ID,
			"error":     err.Error(),
		})
		var gatewayErr *payments.GatewayError
		if errors.As(err, &gatewayErr) {
			return domain.Order{}, gatewayErr.Message, errors.Join(ErrCheckoutSubmissionFailed, err)
		}
		return domain.Order{}, err.Error(), errors.Join(ErrCheckoutSubmissionFailed, err)
	}

	session.PaymentReference = result.Reference
	session.AuthorizationURL = result.AuthorizationURL
	session.Instructions = result.Instructions
	return order, "", nil
}

func (s *checkoutService) initializePayment(ctx context.Context, session *CheckoutSession, order domain.Order) (payments.InitializeResult, error) {
	req := payments.InitializeRequest{
		AmountMinor: domain.ToMinorUnits(order.Total),
		Currency:    order.Currency,
		Email:       session.Shipping.Email,
		Reference:   order.ID,
		Metadata: map[string]string{
			"orderId":   order.ID,
			"sessionId": session.ID,
		},
		IdempotencyKey: session.IdempotencyToken,
	}
	if s.callbackURL != "" {
		req.CallbackURL = fmt.Sprintf("%s?orderId=%s", s.callbackURL, order.ID)
	}

	switch session.Payment.Method {
	case domain.PaymentMethodCard:
		req.Channels = []string{"card"}
	case domain.PaymentMethodMobileMoney:
		req.MobileMoney = &payments.MobileMoneyCharge{
			Provider: string(session.Payment.MobileMoney.Provider),
			Number:   session.Payment.MobileMoney.Number,
		}
	}

	return s.payments.Initialize(ctx, payments.PaymentContext{Method: string(session.Payment.Method)}, req)
}

// Cancel records an abandoned or user-cancelled payment attempt. The cart is
// untouched and any created order is kept so retry skips re-creating it.
func (s *checkoutService) Cancel(_ context.Context, sessionID, userID string) (CheckoutSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, err := s.lookupLocked(sessionID, userID)
	if err != nil {
		return CheckoutSession{}, err
	}
	switch session.State {
	case StateSucceeded:
		if session.Payment.RequiresGateway() {
			session.State = StateFailed
			session.FailureMessage = cancelledMessage
		} else {
			return CheckoutSession{}, ErrCheckoutInvalidState
		}
	case StateSubmitting, StateReviewOrder, StatePaymentInfo, StateShippingInfo:
		session.State = StateFailed
		session.FailureMessage = cancelledMessage
	default:
		return CheckoutSession{}, ErrCheckoutInvalidState
	}
	return *session, nil
}

func (s *checkoutService) translateCartError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		if repoErr.IsNotFound() {
			return ErrCheckoutCartEmpty
		}
	}
	return ErrCheckoutUnavailable
}

func validateShippingForm(form ShippingForm, allowUnknownRegion bool) error {
	fields := make(map[string]string)
	if strings.TrimSpace(form.Name) == "" {
		fields["name"] = "name is required"
	}
	email := strings.TrimSpace(form.Email)
	if email == "" {
		fields["email"] = "email is required"
	} else if !emailPattern.MatchString(email) {
		fields["email"] = "email is invalid"
	}
	if strings.TrimSpace(form.Phone) == "" {
		fields["phone"] = "phone is required"
	}
	if strings.TrimSpace(form.Street) == "" {
		fields["street"] = "street is required"
	}
	if strings.TrimSpace(form.City) == "" {
		fields["city"] = "city is required"
	}
	if strings.TrimSpace(form.Region) == "" {
		fields["region"] = "region is required"
	} else if _, ok := domain.RegionByCode(form.Region); !ok && !allowUnknownRegion {
		fields["region"] = "region is not supported"
	}
	if form.Method != "" {
		if _, ok := domain.ParseDeliveryMethod(string(form.Method)); !ok {
			fields["method"] = "delivery method is unknown"
		}
	}
	// Postal code is optional and carries no format validation.
	return newValidationError(fields)
}

func paymentDetailsFromForm(form PaymentForm) (domain.PaymentDetails, error) {
	method, ok := domain.ParsePaymentMethod(strings.ToLower(strings.TrimSpace(form.Method)))
	if !ok {
		return domain.PaymentDetails{}, newValidationError(map[string]string{"method": "payment method is unknown"})
	}

	fields := make(map[string]string)
	details := domain.PaymentDetails{Method: method}

	switch method {
	case domain.PaymentMethodCard:
		if strings.TrimSpace(form.CardNumber) == "" {
			fields["cardNumber"] = "card number is required"
		}
		if strings.TrimSpace(form.CardExpiry) == "" {
			fields["cardExpiry"] = "card expiry is required"
		}
		if strings.TrimSpace(form.CardCVV) == "" {
			fields["cardCvv"] = "card cvv is required"
		}
		holder := strings.TrimSpace(form.CardHolder)
		if holder == "" {
			fields["cardHolder"] = "cardholder name is required"
		}
		if len(fields) == 0 {
			details.Card = &domain.CardDetails{HolderName: holder}
		}
	case domain.PaymentMethodMobileMoney:
		provider, ok := domain.ParseMobileMoneyProvider(form.MomoProvider)
		if !ok {
			fields["momoProvider"] = "mobile money provider is unknown"
		}
		number := strings.TrimSpace(form.MomoNumber)
		if number == "" {
			fields["momoNumber"] = "mobile money number is required"
		}
		if len(fields) == 0 {
			details.MobileMoney = &domain.MobileMoneyDetails{Provider: provider, Number: number}
		}
	case domain.PaymentMethodCashOnDelivery, domain.PaymentMethodPayPal:
		// No extra fields.
	}

	if err := newValidationError(fields); err != nil {
		return domain.PaymentDetails{}, err
	}
	return details, nil
}

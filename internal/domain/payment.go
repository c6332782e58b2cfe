package domain

import "strings"

// PaymentMethod enumerates the checkout payment options.
type PaymentMethod string

const (
	// PaymentMethodCard pays by card through the gateway widget.
	PaymentMethodCard PaymentMethod = "card"
	// PaymentMethodMobileMoney pays through a Ghanaian mobile money wallet.
	PaymentMethodMobileMoney PaymentMethod = "mobile_money"
	// PaymentMethodCashOnDelivery settles in cash when the order is delivered.
	PaymentMethodCashOnDelivery PaymentMethod = "cash_on_delivery"
	// PaymentMethodPayPal pays through a PayPal order approval flow.
	PaymentMethodPayPal PaymentMethod = "paypal"
)

// ParsePaymentMethod validates a wire value against the known methods.
func ParsePaymentMethod(value string) (PaymentMethod, bool) {
	switch PaymentMethod(value) {
	case PaymentMethodCard, PaymentMethodMobileMoney, PaymentMethodCashOnDelivery, PaymentMethodPayPal:
		return PaymentMethod(value), true
	default:
		return "", false
	}
}

// MobileMoneyProvider enumerates the supported wallet networks.
type MobileMoneyProvider string

const (
	// MomoMTN is the MTN Mobile Money network.
	MomoMTN MobileMoneyProvider = "mtn"
	// MomoVodafone is the Telecel (Vodafone) Cash network.
	MomoVodafone MobileMoneyProvider = "vodafone"
	// MomoAirtelTigo is the AirtelTigo Money network.
	MomoAirtelTigo MobileMoneyProvider = "airteltigo"
)

// ParseMobileMoneyProvider validates a wire value against the known networks.
func ParseMobileMoneyProvider(value string) (MobileMoneyProvider, bool) {
	switch MobileMoneyProvider(strings.ToLower(strings.TrimSpace(value))) {
	case MomoMTN, MomoVodafone, MomoAirtelTigo:
		return MobileMoneyProvider(strings.ToLower(strings.TrimSpace(value))), true
	default:
		return "", false
	}
}

// CardDetails carries the fields required for a card payment. The PAN never
// leaves the gateway widget; only the cardholder name is retained locally.
type CardDetails struct {
	HolderName string
}

// MobileMoneyDetails carries the wallet used for a mobile money charge.
type MobileMoneyDetails struct {
	Provider MobileMoneyProvider
	Number   string
}

// PaymentDetails is the tagged union over the per-method payloads. Exactly
// one of Card, MobileMoney is set depending on Method; cash on delivery and
// PayPal carry no extra fields.
type PaymentDetails struct {
	Method      PaymentMethod
	Card        *CardDetails
	MobileMoney *MobileMoneyDetails
}

// RequiresGateway reports whether the method settles through the external
// payment processor. Cash on delivery is the only method that does not.
func (p PaymentDetails) RequiresGateway() bool {
	return p.Method != PaymentMethodCashOnDelivery
}

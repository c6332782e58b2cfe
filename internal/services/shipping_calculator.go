package services

import (
	"errors"

	domain "github.com/adomherbals/api/internal/domain"
)

var (
	// ErrUnsupportedRegion indicates the destination region is not in the
	// shipping table.
	ErrUnsupportedRegion = errors.New("shipping: unsupported region")
	// ErrMethodUnavailable indicates the delivery method is not offered for
	// the destination region.
	ErrMethodUnavailable = errors.New("shipping: delivery method unavailable for region")
)

// ShippingRates holds the tunable pricing constants. All figures are GHS.
type ShippingRates struct {
	BaseRate  float64
	PerKmRate float64
	PerKgRate float64
}

// DefaultShippingRates are the production pricing constants.
var DefaultShippingRates = ShippingRates{
	BaseRate:  10.00,
	PerKmRate: 0.05,
	PerKgRate: 2.50,
}

var estimatedDays = map[domain.DeliveryMethod]struct{ near, remote string }{
	domain.DeliveryStandard: {near: "3-5 business days", remote: "4-7 business days"},
	domain.DeliveryExpress:  {near: "1-2 business days", remote: "2-4 business days"},
}

type shippingCalculator struct {
	rates ShippingRates
}

// NewShippingCalculator constructs a calculator over the region table using
// the given rates; zero-valued rates fall back to the defaults.
func NewShippingCalculator(rates ShippingRates) ShippingCalculator {
	if rates.BaseRate <= 0 {
		rates.BaseRate = DefaultShippingRates.BaseRate
	}
	if rates.PerKmRate <= 0 {
		rates.PerKmRate = DefaultShippingRates.PerKmRate
	}
	if rates.PerKgRate <= 0 {
		rates.PerKgRate = DefaultShippingRates.PerKgRate
	}
	return &shippingCalculator{rates: rates}
}

// Calculate derives a quote from the region table and the parcel weight. It
// is a pure function of its inputs: callers recompute whenever the address,
// item set, or method changes rather than caching across edits.
func (c *shippingCalculator) Calculate(address domain.Address, items []domain.CartItem, method domain.DeliveryMethod) (domain.ShippingQuote, error) {
	region, ok := domain.RegionByCode(string(address.Region))
	if !ok {
		return domain.ShippingQuote{}, ErrUnsupportedRegion
	}
	if method == domain.DeliveryExpress && !region.ExpressAvailable {
		return domain.ShippingQuote{}, ErrMethodUnavailable
	}

	var weight float64
	for _, item := range items {
		if item.Quantity <= 0 || item.UnitWeightKg <= 0 {
			continue
		}
		weight += item.UnitWeightKg * float64(item.Quantity)
	}

	distanceRate := region.DistanceKm * c.rates.PerKmRate * region.RiskMultiplier
	weightRate := weight * c.rates.PerKgRate
	subtotal := c.rates.BaseRate + distanceRate + weightRate

	eta := estimatedDays[method]
	days := eta.near
	if region.Remote() {
		days = eta.remote
	}

	return domain.ShippingQuote{
		BaseRate:         domain.Round2(c.rates.BaseRate),
		DistanceRate:     domain.Round2(distanceRate),
		WeightRate:       domain.Round2(weightRate),
		MethodMultiplier: method.Multiplier(),
		Total:            domain.Round2(subtotal * method.Multiplier()),
		EstimatedDays:    days,
		Method:           method,
	}, nil
}

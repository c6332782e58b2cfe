package services

import (
	"testing"

	"github.com/stretchr/testify/require"

	domain "github.com/adomherbals/api/internal/domain"
)

func TestShippingCalculatorGreaterAccraStandard(t *testing.T) {
	t.Parallel()

	calc := NewShippingCalculator(DefaultShippingRates)

	address := domain.Address{Region: domain.RegionGreaterAccra}
	items := []domain.CartItem{
		{ProductID: "prd-moringa", Quantity: 1, UnitWeightKg: 0.5},
		{ProductID: "prd-neem", Quantity: 1, UnitWeightKg: 0.3},
	}

	quote, err := calc.Calculate(address, items, domain.DeliveryStandard)
	require.NoError(t, err)

	// base 10.00 + 15km x 0.05 x 1.0 + 0.8kg x 2.50 = 12.75
	require.InDelta(t, 0.75, quote.DistanceRate, 1e-9)
	require.InDelta(t, 2.00, quote.WeightRate, 1e-9)
	require.InDelta(t, 12.75, quote.Total, 1e-9)
	require.Equal(t, 1.0, quote.MethodMultiplier)
	require.Equal(t, "3-5 business days", quote.EstimatedDays)
}

func TestShippingCalculatorExpressDoublesSubtotal(t *testing.T) {
	t.Parallel()

	calc := NewShippingCalculator(DefaultShippingRates)

	address := domain.Address{Region: domain.RegionGreaterAccra}
	items := []domain.CartItem{{ProductID: "prd-shea", Quantity: 2, UnitWeightKg: 0.4}}

	standard, err := calc.Calculate(address, items, domain.DeliveryStandard)
	require.NoError(t, err)
	express, err := calc.Calculate(address, items, domain.DeliveryExpress)
	require.NoError(t, err)

	require.InDelta(t, domain.Round2(standard.Total*2), express.Total, 1e-9)
	require.Equal(t, "1-2 business days", express.EstimatedDays)
}

func TestShippingCalculatorRegionTable(t *testing.T) {
	t.Parallel()

	calc := NewShippingCalculator(DefaultShippingRates)
	items := []domain.CartItem{{ProductID: "prd-prekese", Quantity: 1, UnitWeightKg: 1.0}}

	cases := []struct {
		name      string
		region    domain.RegionCode
		wantTotal float64
		wantDays  string
	}{
		// base 10 + dist x 0.05 x risk + 1kg x 2.50
		{name: "ashanti", region: domain.RegionAshanti, wantTotal: 25.00, wantDays: "3-5 business days"},
		{name: "northern remote", region: domain.RegionNorthern, wantTotal: 55.90, wantDays: "4-7 business days"},
		{name: "upper east remote", region: domain.RegionUpperEast, wantTotal: 72.50, wantDays: "4-7 business days"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			quote, err := calc.Calculate(domain.Address{Region: tc.region}, items, domain.DeliveryStandard)
			require.NoError(t, err)
			require.InDelta(t, tc.wantTotal, quote.Total, 1e-9)
			require.Equal(t, tc.wantDays, quote.EstimatedDays)
		})
	}
}

func TestShippingCalculatorUnsupportedRegion(t *testing.T) {
	t.Parallel()

	calc := NewShippingCalculator(DefaultShippingRates)

	quote, err := calc.Calculate(domain.Address{Region: "lagos"}, nil, domain.DeliveryStandard)
	require.ErrorIs(t, err, ErrUnsupportedRegion)
	require.Equal(t, domain.ShippingQuote{}, quote)
}

func TestShippingCalculatorExpressUnavailable(t *testing.T) {
	t.Parallel()

	calc := NewShippingCalculator(DefaultShippingRates)

	_, err := calc.Calculate(domain.Address{Region: domain.RegionNorthern}, nil, domain.DeliveryExpress)
	require.ErrorIs(t, err, ErrMethodUnavailable)
}

func TestShippingCalculatorDeterministic(t *testing.T) {
	t.Parallel()

	calc := NewShippingCalculator(DefaultShippingRates)
	address := domain.Address{Region: domain.RegionVolta}
	items := []domain.CartItem{
		{ProductID: "prd-moringa", Quantity: 3, UnitWeightKg: 0.25},
		{ProductID: "prd-hibiscus", Quantity: 1, UnitWeightKg: 0.6},
	}

	first, err := calc.Calculate(address, items, domain.DeliveryExpress)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := calc.Calculate(address, items, domain.DeliveryExpress)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

package domain

import "testing"

func TestRegionByCode(t *testing.T) {
	region, ok := RegionByCode("Greater-Accra")
	if !ok {
		t.Fatal("expected greater-accra to resolve")
	}
	if region.Code != RegionGreaterAccra {
		t.Fatalf("resolved %q, want %q", region.Code, RegionGreaterAccra)
	}

	if _, ok := RegionByCode("ablekuma"); ok {
		t.Fatal("unknown region must not resolve")
	}
}

func TestRegionsSortedAndComplete(t *testing.T) {
	regions := Regions()
	if len(regions) != 16 {
		t.Fatalf("expected 16 regions, got %d", len(regions))
	}
	for i := 1; i < len(regions); i++ {
		if regions[i-1].Name > regions[i].Name {
			t.Fatalf("regions not sorted: %q before %q", regions[i-1].Name, regions[i].Name)
		}
	}
}

func TestRemoteFlagFollowsThreshold(t *testing.T) {
	northern, _ := RegionByCode(string(RegionNorthern))
	if !northern.Remote() {
		t.Fatal("northern should be remote")
	}
	accra, _ := RegionByCode(string(RegionGreaterAccra))
	if accra.Remote() {
		t.Fatal("greater accra should not be remote")
	}
}

func TestOrderStatusTransitions(t *testing.T) {
	cases := []struct {
		from OrderStatus
		to   OrderStatus
		ok   bool
	}{
		{OrderStatusPending, OrderStatusPaid, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPaid, OrderStatusConfirmed, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusDelivered, OrderStatusPending, false},
		{OrderStatusCancelled, OrderStatusPaid, false},
		{OrderStatusPending, OrderStatusDelivered, false},
	}

	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.ok {
			t.Fatalf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

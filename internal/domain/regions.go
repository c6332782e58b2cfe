package domain

import (
	"sort"
	"strings"
)

// RegionCode identifies one of the sixteen Ghanaian administrative regions.
type RegionCode string

const (
	RegionGreaterAccra RegionCode = "greater-accra"
	RegionAshanti      RegionCode = "ashanti"
	RegionEastern      RegionCode = "eastern"
	RegionCentral      RegionCode = "central"
	RegionWestern      RegionCode = "western"
	RegionWesternNorth RegionCode = "western-north"
	RegionVolta        RegionCode = "volta"
	RegionOti          RegionCode = "oti"
	RegionBono         RegionCode = "bono"
	RegionBonoEast     RegionCode = "bono-east"
	RegionAhafo        RegionCode = "ahafo"
	RegionNorthern     RegionCode = "northern"
	RegionSavannah     RegionCode = "savannah"
	RegionNorthEast    RegionCode = "north-east"
	RegionUpperEast    RegionCode = "upper-east"
	RegionUpperWest    RegionCode = "upper-west"
)

// Region describes the shipping profile of one destination region relative
// to the Accra fulfilment hub.
type Region struct {
	Code             RegionCode
	Name             string
	DistanceKm       float64
	RiskMultiplier   float64
	ExpressAvailable bool
}

// RemoteRiskThreshold marks the risk multiplier above which a region is
// treated as remote and delivery estimates are lengthened.
const RemoteRiskThreshold = 1.3

// regionTable is the static shipping table. Distances are road kilometres
// from the Accra hub; risk multipliers reflect logistics cost and road
// conditions on the route.
var regionTable = map[RegionCode]Region{
	RegionGreaterAccra: {Code: RegionGreaterAccra, Name: "Greater Accra", DistanceKm: 15, RiskMultiplier: 1.0, ExpressAvailable: true},
	RegionEastern:      {Code: RegionEastern, Name: "Eastern", DistanceKm: 85, RiskMultiplier: 1.0, ExpressAvailable: true},
	RegionCentral:      {Code: RegionCentral, Name: "Central", DistanceKm: 145, RiskMultiplier: 1.1, ExpressAvailable: true},
	RegionVolta:        {Code: RegionVolta, Name: "Volta", DistanceKm: 160, RiskMultiplier: 1.15, ExpressAvailable: true},
	RegionAshanti:      {Code: RegionAshanti, Name: "Ashanti", DistanceKm: 250, RiskMultiplier: 1.0, ExpressAvailable: true},
	RegionWestern:      {Code: RegionWestern, Name: "Western", DistanceKm: 240, RiskMultiplier: 1.15, ExpressAvailable: true},
	RegionWesternNorth: {Code: RegionWesternNorth, Name: "Western North", DistanceKm: 310, RiskMultiplier: 1.3, ExpressAvailable: false},
	RegionOti:          {Code: RegionOti, Name: "Oti", DistanceKm: 300, RiskMultiplier: 1.35, ExpressAvailable: false},
	RegionBono:         {Code: RegionBono, Name: "Bono", DistanceKm: 350, RiskMultiplier: 1.2, ExpressAvailable: true},
	RegionBonoEast:     {Code: RegionBonoEast, Name: "Bono East", DistanceKm: 400, RiskMultiplier: 1.25, ExpressAvailable: false},
	RegionAhafo:        {Code: RegionAhafo, Name: "Ahafo", DistanceKm: 380, RiskMultiplier: 1.25, ExpressAvailable: false},
	RegionNorthern:     {Code: RegionNorthern, Name: "Northern", DistanceKm: 620, RiskMultiplier: 1.4, ExpressAvailable: false},
	RegionSavannah:     {Code: RegionSavannah, Name: "Savannah", DistanceKm: 660, RiskMultiplier: 1.45, ExpressAvailable: false},
	RegionNorthEast:    {Code: RegionNorthEast, Name: "North East", DistanceKm: 690, RiskMultiplier: 1.5, ExpressAvailable: false},
	RegionUpperEast:    {Code: RegionUpperEast, Name: "Upper East", DistanceKm: 800, RiskMultiplier: 1.5, ExpressAvailable: false},
	RegionUpperWest:    {Code: RegionUpperWest, Name: "Upper West", DistanceKm: 780, RiskMultiplier: 1.5, ExpressAvailable: false},
}

// RegionByCode resolves a region from its wire code, case-insensitively.
func RegionByCode(code string) (Region, bool) {
	region, ok := regionTable[RegionCode(strings.ToLower(strings.TrimSpace(code)))]
	return region, ok
}

// Remote reports whether the region's risk multiplier exceeds the remote
// threshold.
func (r Region) Remote() bool {
	return r.RiskMultiplier > RemoteRiskThreshold
}

// Regions returns the full shipping table sorted by region name, for the
// shipping-step region picker.
func Regions() []Region {
	regions := make([]Region, 0, len(regionTable))
	for _, region := range regionTable {
		regions = append(regions, region)
	}
	sort.Slice(regions, func(i, j int) bool {
		return regions[i].Name < regions[j].Name
	})
	return regions
}

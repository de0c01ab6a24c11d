package geo

import (
	"math"

	"github.com/shopspring/decimal"
)

const earthRadiusKM = 6371.0

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Latitude  float64
	Longitude float64
}

// Valid reports whether the point is inside the WGS84 coordinate ranges.
func (p Point) Valid() bool {
	return p.Latitude >= -90 && p.Latitude <= 90 && p.Longitude >= -180 && p.Longitude <= 180
}

// PricingModel holds the delivery fee and time constants.
type PricingModel struct {
	BaseFee      decimal.Decimal
	PerKMFee     decimal.Decimal
	MinFee       decimal.Decimal
	MaxFee       decimal.Decimal
	BaseMinutes  int
	MinutesPerKM int
}

// DefaultPricing mirrors the platform defaults: fee = clamp(500 + km*100, 500, 5000),
// eta = 30 + 10*km minutes.
func DefaultPricing() PricingModel {
	return PricingModel{
		BaseFee:      decimal.NewFromInt(500),
		PerKMFee:     decimal.NewFromInt(100),
		MinFee:       decimal.NewFromInt(500),
		MaxFee:       decimal.NewFromInt(5000),
		BaseMinutes:  30,
		MinutesPerKM: 10,
	}
}

// Quote is a delivery fee and travel-time estimate for a shop/drop-off pair.
type Quote struct {
	DistanceKM       float64
	Fee              decimal.Decimal
	EstimatedMinutes int
}

// Distance returns the great-circle distance between two points in kilometres,
// rounded to 0.01 km.
func Distance(a, b Point) float64 {
	latA := radians(a.Latitude)
	latB := radians(b.Latitude)
	dLat := radians(b.Latitude - a.Latitude)
	dLng := radians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return math.Round(earthRadiusKM*c*100) / 100
}

// QuoteFor prices a delivery between shop and drop-off. The second return is
// false when either point is missing or out of range; callers must then treat
// distance-dependent values as unknown rather than substituting defaults.
func (m PricingModel) QuoteFor(shop, dropoff *Point) (Quote, bool) {
	if shop == nil || dropoff == nil || !shop.Valid() || !dropoff.Valid() {
		return Quote{}, false
	}

	km := Distance(*shop, *dropoff)
	fee := m.BaseFee.Add(m.PerKMFee.Mul(decimal.NewFromFloat(km)))
	if fee.LessThan(m.MinFee) {
		fee = m.MinFee
	}
	if fee.GreaterThan(m.MaxFee) {
		fee = m.MaxFee
	}

	return Quote{
		DistanceKM:       km,
		Fee:              fee.Round(2),
		EstimatedMinutes: m.BaseMinutes + int(math.Round(float64(m.MinutesPerKM)*km)),
	}, true
}

// PointFrom builds a Point from nullable coordinates, returning nil when
// either is absent.
func PointFrom(lat, lng *float64) *Point {
	if lat == nil || lng == nil {
		return nil
	}
	return &Point{Latitude: *lat, Longitude: *lng}
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

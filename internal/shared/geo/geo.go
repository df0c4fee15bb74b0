package geo

import "math"

// EarthRadiusMeters is the mean earth radius. Every distance and speed in the
// engine is measured on a sphere of this radius.
const EarthRadiusMeters = 6371000.0

// Fix is one raw location sample. Speed and accuracy are optional.
type Fix struct {
	Latitude        float64  `json:"latitude"`
	Longitude       float64  `json:"longitude"`
	TimestampMillis int64    `json:"timestamp_ms"`
	Speed           *float64 `json:"speed_mps,omitempty"`
	Accuracy        *float64 `json:"accuracy_m,omitempty"`
}

// HaversineKm is the great-circle distance in kilometers between two
// coordinates given in degrees.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c / 1000
}

// DistanceMeters is the great-circle distance between two fixes.
func DistanceMeters(a, b Fix) float64 {
	return HaversineKm(a.Latitude, a.Longitude, b.Latitude, b.Longitude) * 1000
}

// Float returns a pointer to v, for the optional Fix fields.
func Float(v float64) *float64 { return &v }

package codec

import (
	"math"
	"strconv"

	"github.com/vinicius-lino-figueiredo/docadapter/domain"
)

// ValidateGeoPoint checks coordinate ranges: latitude within [-90, 90] and
// longitude within [-180, 180].
func ValidateGeoPoint(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return domain.Invalid("GeoPoint latitude and longitude must be valid numbers")
	}
	switch {
	case lat < -90:
		return domain.Invalid("GeoPoint latitude out of bounds: %s < -90.0.", num(lat))
	case lat > 90:
		return domain.Invalid("GeoPoint latitude out of bounds: %s > 90.0.", num(lat))
	case lng < -180:
		return domain.Invalid("GeoPoint longitude out of bounds: %s < -180.0.", num(lng))
	case lng > 180:
		return domain.Invalid("GeoPoint longitude out of bounds: %s > 180.0.", num(lng))
	}
	return nil
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Point accepts a tagged geo point or a raw native [longitude, latitude] pair
// and returns the validated point.
func Point(v any) (domain.GeoPoint, bool, error) {
	var g domain.GeoPoint
	switch t := v.(type) {
	case domain.GeoPoint:
		g = t
	default:
		lng, lat, ok := pair(v)
		if !ok {
			return domain.GeoPoint{}, false, nil
		}
		g = domain.GeoPoint{Latitude: lat, Longitude: lng}
	}
	if err := ValidateGeoPoint(g.Latitude, g.Longitude); err != nil {
		return domain.GeoPoint{}, true, err
	}
	return g, true, nil
}

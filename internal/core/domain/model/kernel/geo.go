package kernel

import (
	"errors"
	"fmt"

	"dispatch/internal/pkg/errs"
)

const (
	LatitudeMin  = -90.0
	LatitudeMax  = 90.0
	LongitudeMin = -180.0
	LongitudeMax = 180.0
)

// Geo is a WGS84 coordinate of a drop-off point. The zero value is (0, 0),
// which stores use when the customer shared no location.
type Geo struct {
	latitude  float64
	longitude float64
}

// NewGeo validates both coordinates against their ranges.
func NewGeo(latitude, longitude float64) (Geo, error) {
	var g Geo
	if err := errors.Join(g.setLatitude(latitude), g.setLongitude(longitude)); err != nil {
		return Geo{}, err
	}
	return g, nil
}

func (g Geo) Latitude() float64 {
	return g.latitude
}

func (g Geo) Longitude() float64 {
	return g.longitude
}

// IsZero reports whether no coordinate was provided.
func (g Geo) IsZero() bool {
	return g.latitude == 0 && g.longitude == 0
}

func (g Geo) String() string {
	return fmt.Sprintf("Geo(%.6f,%.6f)", g.latitude, g.longitude)
}

func (g *Geo) setLatitude(latitude float64) error {
	if latitude < LatitudeMin || latitude > LatitudeMax {
		return errs.NewValueIsOutOfRangeError("latitude", latitude, LatitudeMin, LatitudeMax)
	}
	g.latitude = latitude
	return nil
}

func (g *Geo) setLongitude(longitude float64) error {
	if longitude < LongitudeMin || longitude > LongitudeMax {
		return errs.NewValueIsOutOfRangeError("longitude", longitude, LongitudeMin, LongitudeMax)
	}
	g.longitude = longitude
	return nil
}

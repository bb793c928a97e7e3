package domain

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// GeoPoint is a selected map location with the display metadata returned by the
// place search collaborator.
type GeoPoint struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Latitude    float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude   float64 `json:"longitude" validate:"gte=-180,lte=180"`
	DisplayName string  `json:"display_name,omitempty"`
	Importance  float64 `json:"importance,omitempty" validate:"gte=0"`
	Type        string  `json:"type,omitempty"`
}

// Validate checks coordinate ranges. NaN coordinates fail both bounds.
func (p GeoPoint) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid location: %w", err)
	}
	return nil
}

// Label returns the most descriptive name available for logs and filenames.
func (p GeoPoint) Label() string {
	switch {
	case p.Name != "":
		return p.Name
	case p.DisplayName != "":
		return p.DisplayName
	default:
		return fmt.Sprintf("%.4f,%.4f", p.Latitude, p.Longitude)
	}
}

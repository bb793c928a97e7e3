package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGeoPoint_Validate(t *testing.T) {
	cases := []struct {
		name    string
		point   GeoPoint
		wantErr bool
	}{
		{name: "origin", point: GeoPoint{}},
		{name: "poles and antimeridian", point: GeoPoint{Latitude: 90, Longitude: -180}},
		{name: "typical", point: GeoPoint{Latitude: 37.77, Longitude: -122.42, Importance: 0.6}},
		{name: "latitude too high", point: GeoPoint{Latitude: 90.01}, wantErr: true},
		{name: "latitude too low", point: GeoPoint{Latitude: -91}, wantErr: true},
		{name: "longitude too high", point: GeoPoint{Longitude: 180.5}, wantErr: true},
		{name: "NaN latitude", point: GeoPoint{Latitude: math.NaN()}, wantErr: true},
		{name: "negative importance", point: GeoPoint{Importance: -1}, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.point.Validate()
			if tc.wantErr {
				assert.ErrorContains(t, err, "invalid location")
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestGeoPoint_Label(t *testing.T) {
	assert.Equal(t, "Redding", GeoPoint{Name: "Redding", DisplayName: "Redding, CA"}.Label())
	assert.Equal(t, "Redding, CA", GeoPoint{DisplayName: "Redding, CA"}.Label())
	assert.Equal(t, "40.5865,-122.3917", GeoPoint{Latitude: 40.58654, Longitude: -122.39168}.Label())
}

// Package capture turns a rendered map region into the PNG upload sent to the
// classifier.
package capture

import (
	"context"
	"errors"
	"image"
)

// ErrRegionNotMounted is returned by a Region that has nothing to render yet.
var ErrRegionNotMounted = errors.New("region not mounted")

// Region is a render surface that can be moved to a point and rasterized.
type Region interface {
	// ZoomTo starts a view transition centred on the point. Rendering is only
	// stable once the transition has settled.
	ZoomTo(ctx context.Context, lat, lon float64) error
	// Render rasterizes the current view.
	Render(ctx context.Context) (image.Image, error)
}

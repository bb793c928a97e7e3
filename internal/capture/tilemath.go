package capture

import "math"

// maxMercatorLat is the latitude limit of the Web Mercator tile pyramid.
const maxMercatorLat = 85.05112878

// tilePosition converts WGS84 coordinates to fractional slippy-map tile
// coordinates at zoom z.
func tilePosition(lat, lon float64, z int) (x, y float64) {
	lat = math.Max(-maxMercatorLat, math.Min(maxMercatorLat, lat))
	n := math.Exp2(float64(z))
	latRad := lat * math.Pi / 180

	x = (lon + 180) / 360 * n
	y = (1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2 * n
	return x, y
}

// wrapTile folds a tile column onto [0, n).
func wrapTile(x, n int) int {
	x %= n
	if x < 0 {
		x += n
	}
	return x
}

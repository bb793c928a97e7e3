package domain

import "context"

// PlaceSearcher resolves free-text queries into selectable points.
type PlaceSearcher interface {
	// Search returns at most limit matches, optionally restricted to an ISO
	// 3166-1 alpha-2 country code.
	Search(ctx context.Context, query string, limit int, country string) ([]GeoPoint, error)
}

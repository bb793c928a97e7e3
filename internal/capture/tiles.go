package capture

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"

	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

const (
	tileSize         = 256
	maxTileBytes     = 4 << 20
	tileFetchWorkers = 8
)

// background fills tiles that are missing or outside the pyramid.
var background = color.RGBA{R: 32, G: 32, B: 32, A: 255}

// TileRegion renders an N×N window of slippy-map tiles centred on the last
// zoomed point. The tile URL template uses {z}, {x}, and {y} placeholders.
type TileRegion struct {
	template   string
	zoom       int
	grid       int
	httpClient *http.Client
	logger     *slog.Logger

	mu      sync.Mutex
	mounted bool
	centerX float64 // fractional tile coordinates at zoom
	centerY float64
}

// NewTileRegion creates a tile render surface. grid is the window width in
// tiles.
func NewTileRegion(template string, zoom, grid int, httpClient *http.Client, logger *slog.Logger) *TileRegion {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &TileRegion{
		template:   template,
		zoom:       zoom,
		grid:       max(grid, 1),
		httpClient: httpClient,
		logger:     logger,
	}
}

// ZoomTo centres the window on the point. Tiles are fetched lazily by Render.
func (r *TileRegion) ZoomTo(ctx context.Context, lat, lon float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return fmt.Errorf("zoom target out of range: %f,%f", lat, lon)
	}

	x, y := tilePosition(lat, lon, r.zoom)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.centerX, r.centerY = x, y
	r.mounted = true
	return nil
}

// Render composes the tiles under the window into one image. Tiles that fail to
// load are left blank; Render fails only when no tile loads.
func (r *TileRegion) Render(ctx context.Context) (image.Image, error) {
	r.mu.Lock()
	mounted, cx, cy := r.mounted, r.centerX, r.centerY
	r.mu.Unlock()
	if !mounted {
		return nil, ErrRegionNotMounted
	}

	side := r.grid * tileSize
	canvas := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	// World-pixel origin of the canvas so the point lands in the centre.
	originX := int(math.Floor(cx*tileSize)) - side/2
	originY := int(math.Floor(cy*tileSize)) - side/2
	n := 1 << r.zoom

	var (
		mu     sync.Mutex
		loaded int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(tileFetchWorkers)

	for ty := floorDiv(originY, tileSize); ty <= floorDiv(originY+side-1, tileSize); ty++ {
		if ty < 0 || ty >= n {
			continue
		}
		for tx := floorDiv(originX, tileSize); tx <= floorDiv(originX+side-1, tileSize); tx++ {
			at := image.Pt(tx*tileSize-originX, ty*tileSize-originY)
			col, row := wrapTile(tx, n), ty
			g.Go(func() error {
				tile, err := r.fetchTile(gctx, col, row)
				if err != nil {
					if gctx.Err() != nil {
						return gctx.Err()
					}
					r.logger.Debug("tile fetch failed", "z", r.zoom, "x", col, "y", row, "error", err)
					return nil
				}
				mu.Lock()
				defer mu.Unlock()
				dst := image.Rectangle{Min: at, Max: at.Add(image.Pt(tileSize, tileSize))}
				draw.Draw(canvas, dst, tile, tile.Bounds().Min, draw.Src)
				loaded++
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if loaded == 0 {
		return nil, fmt.Errorf("no tiles loaded at zoom %d", r.zoom)
	}
	return canvas, nil
}

func (r *TileRegion) fetchTile(ctx context.Context, x, y int) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.tileURL(x, y), nil)
	if err != nil {
		return nil, fmt.Errorf("create tile request: %w", err)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tile request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tile server returned status %d", resp.StatusCode)
	}
	img, _, err := image.Decode(io.LimitReader(resp.Body, maxTileBytes))
	if err != nil {
		return nil, fmt.Errorf("decode tile: %w", err)
	}
	return img, nil
}

func (r *TileRegion) tileURL(x, y int) string {
	return strings.NewReplacer(
		"{z}", strconv.Itoa(r.zoom),
		"{x}", strconv.Itoa(x),
		"{y}", strconv.Itoa(y),
	).Replace(r.template)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

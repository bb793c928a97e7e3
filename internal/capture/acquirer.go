package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"log/slog"
	"time"

	"github.com/couchcryptid/wildfire-analysis/internal/domain"
	"github.com/couchcryptid/wildfire-analysis/internal/observability"
	"github.com/jonboulle/clockwork"
	xdraw "golang.org/x/image/draw"
)

// DefaultSettleDelay covers the render surface's zoom and pan animation.
const DefaultSettleDelay = 300 * time.Millisecond

// Acquirer captures a Region as a named PNG image.
type Acquirer struct {
	settle  time.Duration
	maxEdge int
	clock   clockwork.Clock
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewAcquirer creates an Acquirer. A maxEdge of zero keeps the native size.
func NewAcquirer(settle time.Duration, maxEdge int, clock clockwork.Clock, metrics *observability.Metrics, logger *slog.Logger) *Acquirer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Acquirer{
		settle:  settle,
		maxEdge: maxEdge,
		clock:   clock,
		metrics: metrics,
		logger:  logger,
	}
}

// Acquire waits for the region to settle, rasterizes it, and packages the PNG
// as classification-<epochMillis>.png. Capturing before the settle delay
// elapses is never allowed.
func (a *Acquirer) Acquire(ctx context.Context, region Region) (domain.Image, error) {
	if region == nil {
		return domain.Image{}, domain.ErrRegionNotReady
	}

	if a.settle > 0 {
		select {
		case <-ctx.Done():
			return domain.Image{}, ctx.Err()
		case <-a.clock.After(a.settle):
		}
	}

	img, err := region.Render(ctx)
	switch {
	case errors.Is(err, ErrRegionNotMounted):
		return domain.Image{}, domain.ErrRegionNotReady
	case ctx.Err() != nil:
		return domain.Image{}, ctx.Err()
	case err != nil:
		return domain.Image{}, &domain.CaptureError{Err: err}
	case img == nil || img.Bounds().Empty():
		return domain.Image{}, &domain.CaptureError{Err: errors.New("render produced no pixels")}
	}

	img = a.downscale(img)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return domain.Image{}, &domain.CaptureError{Err: fmt.Errorf("encode png: %w", err)}
	}
	if buf.Len() == 0 {
		return domain.Image{}, &domain.CaptureError{Err: errors.New("encoded image is empty")}
	}
	a.metrics.CaptureBytes.Observe(float64(buf.Len()))

	name := fmt.Sprintf("classification-%d.png", a.clock.Now().UnixMilli())
	b := img.Bounds()
	a.logger.Debug("region captured", "file", name, "width", b.Dx(), "height", b.Dy(), "bytes", buf.Len())

	return domain.Image{Name: name, ContentType: "image/png", Data: buf.Bytes()}, nil
}

// downscale shrinks img so its longest edge fits maxEdge, keeping the aspect.
func (a *Acquirer) downscale(img image.Image) image.Image {
	b := img.Bounds()
	longest := max(b.Dx(), b.Dy())
	if a.maxEdge <= 0 || longest <= a.maxEdge {
		return img
	}

	w := max(1, b.Dx()*a.maxEdge/longest)
	h := max(1, b.Dy()*a.maxEdge/longest)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

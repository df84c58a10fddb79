package screenshot

import (
	"bytes"
	"context"
	"image"
	"image/png"

	"github.com/actionsum/actionlog/internal/bucket"
	"github.com/actionsum/actionlog/internal/layout"
	"github.com/actionsum/actionlog/pkg/window"

	"github.com/pkg/errors"
)

// ErrCapture marks a failed pixel read. The pass is skipped and nothing is written.
var ErrCapture = errors.New("capture error")

const bytesPerPixel = 4

// Grabber reads raw pixels for a rectangle of the root surface.
// Pixels are returned in BGRX order, four bytes each, row-major without padding.
type Grabber interface {
	Grab(ctx context.Context, geom window.Geometry) ([]byte, error)
}

// Capturer turns an observation into a PNG artifact on disk.
type Capturer struct {
	grabber Grabber
	layout  *layout.Layout
}

// New creates a Capturer writing through l.
func New(grabber Grabber, l *layout.Layout) *Capturer {
	return &Capturer{grabber: grabber, layout: l}
}

// Capture grabs the observation's rectangle and writes it to the bucket's
// hour partition. It returns the artifact path.
func (c *Capturer) Capture(ctx context.Context, obs *window.Observation, b bucket.Bucket) (string, error) {
	if obs == nil || !obs.Geometry.Valid() {
		return "", errors.Wrap(ErrCapture, window.ErrNoGeometry.Error())
	}

	raw, err := c.grabber.Grab(ctx, obs.Geometry)
	if err != nil {
		return "", errors.Wrapf(ErrCapture, "grab %dx%d: %v", obs.Geometry.Width, obs.Geometry.Height, err)
	}

	img, err := FromBGRX(raw, obs.Geometry.Width, obs.Geometry.Height)
	if err != nil {
		return "", err
	}

	// Encode fully before touching the disk so a failure never leaves a partial file.
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", errors.Wrapf(ErrCapture, "encode: %v", err)
	}

	if err := c.layout.EnsurePartition(b); err != nil {
		return "", err
	}

	path := c.layout.ArtifactPath(b, obs.ClassName)
	if err := c.layout.WriteFile(path, buf.Bytes()); err != nil {
		return "", err
	}

	return path, nil
}

// FromBGRX converts a BGRX buffer into an opaque RGBA image.
func FromBGRX(raw []byte, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Wrap(ErrCapture, window.ErrNoGeometry.Error())
	}
	want := width * height * bytesPerPixel
	if len(raw) < want {
		return nil, errors.Wrapf(ErrCapture, "short pixel buffer: got %d bytes, want %d", len(raw), want)
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i, j := 0, 0; i < want; i, j = i+bytesPerPixel, j+bytesPerPixel {
		img.Pix[j] = raw[i+2]
		img.Pix[j+1] = raw[i+1]
		img.Pix[j+2] = raw[i]
		img.Pix[j+3] = 0xff
	}
	return img, nil
}

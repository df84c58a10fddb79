package window

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrTransient marks an active window that vanished or could not be queried
	// during a poll. Callers skip the current pass.
	ErrTransient = errors.New("transient window error")

	// ErrNoGeometry is returned when a window has no capturable area.
	ErrNoGeometry = errors.New("window has no capturable area")
)

// Handle identifies a window within a windowing-system session.
type Handle uint32

// Geometry is a window rectangle in root coordinates.
type Geometry struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Valid reports whether the rectangle has a positive area.
func (g Geometry) Valid() bool {
	return g.Width > 0 && g.Height > 0
}

// Observation is one sample of the focused window.
// ClassName may be empty for windows without a class hint.
type Observation struct {
	Handle     Handle
	ClassName  string
	Title      string
	Geometry   Geometry
	CapturedAt time.Time
}

// Inspector resolves the currently focused window.
type Inspector interface {
	// CurrentWindow returns the focused window, or nil when nothing holds focus.
	// Failures wrap ErrTransient.
	CurrentWindow(ctx context.Context) (*Observation, error)

	// DisplayServer returns the windowing system name ("x11").
	DisplayServer() string

	// Close releases the underlying session.
	Close() error
}

// IsTransient reports whether err should only skip the current pass.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

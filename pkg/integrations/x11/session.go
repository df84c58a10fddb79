package x11

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/actionsum/actionlog/pkg/window"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
	"github.com/pkg/errors"
)

// DefaultTimeout bounds each request to the X server.
const DefaultTimeout = 2 * time.Second

const (
	atomActiveWindow = "_NET_ACTIVE_WINDOW"
	atomNetWMName    = "_NET_WM_NAME"
	atomWMName       = "WM_NAME"
	atomWMClass      = "WM_CLASS"
	atomUTF8String   = "UTF8_STRING"

	// property lengths are in 32-bit units
	nameLength  = 1024
	classLength = 256

	bytesPerPixel = 4
	allPlanes     = 0xffffffff
)

// Session owns one connection to the X server. It resolves the focused
// window and grabs pixels from the root window. Safe for sequential use.
type Session struct {
	conn       *xgb.Conn
	root       xproto.Window
	rootWidth  int
	rootHeight int
	atoms      map[string]xproto.Atom
	timeout    time.Duration
	now        func() time.Time
}

// Open connects to display (empty means $DISPLAY) and interns the atoms used by the session.
func Open(display string, timeout time.Duration) (*Session, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	conn, err := xgb.NewConnDisplay(display)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to X server")
	}

	screen := xproto.Setup(conn).DefaultScreen(conn)
	s := &Session{
		conn:       conn,
		root:       screen.Root,
		rootWidth:  int(screen.WidthInPixels),
		rootHeight: int(screen.HeightInPixels),
		atoms:      make(map[string]xproto.Atom),
		timeout:    timeout,
		now:        time.Now,
	}

	names := []string{atomActiveWindow, atomNetWMName, atomWMName, atomWMClass, atomUTF8String}
	for _, name := range names {
		reply, err := await(context.Background(), timeout, xproto.InternAtom(conn, false, uint16(len(name)), name).Reply)
		if err != nil {
			conn.Close()
			return nil, errors.Wrapf(err, "failed to intern atom %s", name)
		}
		s.atoms[name] = reply.Atom
	}

	return s, nil
}

// DisplayServer returns "x11".
func (s *Session) DisplayServer() string {
	return "x11"
}

// RootSize returns the root window dimensions.
func (s *Session) RootSize() (int, int) {
	return s.rootWidth, s.rootHeight
}

// Close releases the connection.
func (s *Session) Close() error {
	s.conn.Close()
	return nil
}

// CurrentWindow resolves the focused window. It returns nil without error when
// no window holds focus. Any X error, including a window destroyed mid-poll,
// wraps window.ErrTransient.
func (s *Session) CurrentWindow(ctx context.Context) (*window.Observation, error) {
	active, err := s.activeWindow(ctx)
	if err != nil {
		return nil, transient(err, "read active window")
	}
	if !focused(active, s.root) {
		return nil, nil
	}

	classReply, err := s.property(ctx, active, s.atoms[atomWMClass], xproto.AtomString, classLength)
	if err != nil {
		return nil, transient(err, fmt.Sprintf("read WM_CLASS of 0x%x", uint32(active)))
	}
	classData, _ := propertyValue(classReply)
	className := parseWMClass(classData)

	title, err := s.windowName(ctx, active)
	if err != nil {
		return nil, transient(err, fmt.Sprintf("read name of 0x%x", uint32(active)))
	}

	geom, err := s.geometry(ctx, active)
	if err != nil {
		return nil, transient(err, fmt.Sprintf("read geometry of 0x%x", uint32(active)))
	}

	return &window.Observation{
		Handle:     window.Handle(active),
		ClassName:  className,
		Title:      title,
		Geometry:   geom,
		CapturedAt: s.now(),
	}, nil
}

// Grab reads a rectangle of the root window as BGRX pixels. Capturing through
// the root includes decorations and whatever overlaps the window.
func (s *Session) Grab(ctx context.Context, geom window.Geometry) ([]byte, error) {
	if !geom.Valid() {
		return nil, window.ErrNoGeometry
	}

	reply, err := await(ctx, s.timeout, xproto.GetImage(s.conn, xproto.ImageFormatZPixmap,
		xproto.Drawable(s.root), int16(geom.X), int16(geom.Y),
		uint16(geom.Width), uint16(geom.Height), allPlanes).Reply)
	if err != nil {
		return nil, errors.Wrap(err, "GetImage")
	}

	want := geom.Width * geom.Height * bytesPerPixel
	if len(reply.Data) < want {
		return nil, fmt.Errorf("unsupported pixel layout: depth %d, %d bytes for %dx%d",
			reply.Depth, len(reply.Data), geom.Width, geom.Height)
	}
	return reply.Data[:want], nil
}

func (s *Session) activeWindow(ctx context.Context) (xproto.Window, error) {
	reply, err := s.property(ctx, s.root, s.atoms[atomActiveWindow], xproto.GetPropertyTypeAny, 1)
	if err != nil {
		return 0, err
	}
	return decodeWindow(reply), nil
}

func (s *Session) windowName(ctx context.Context, w xproto.Window) (string, error) {
	wmName, err := s.property(ctx, w, s.atoms[atomWMName], xproto.GetPropertyTypeAny, nameLength)
	if err != nil {
		return "", err
	}

	var netWMName *xproto.GetPropertyReply
	if _, ok := propertyValue(wmName); !ok {
		netWMName, err = s.property(ctx, w, s.atoms[atomNetWMName], s.atoms[atomUTF8String], nameLength)
		if err != nil {
			return "", err
		}
	}
	return chooseName(wmName, netWMName), nil
}

func (s *Session) geometry(ctx context.Context, w xproto.Window) (window.Geometry, error) {
	geom, err := await(ctx, s.timeout, xproto.GetGeometry(s.conn, xproto.Drawable(w)).Reply)
	if err != nil {
		return window.Geometry{}, err
	}

	// GetGeometry is relative to the parent, which is the frame under a reparenting WM.
	origin, err := await(ctx, s.timeout, xproto.TranslateCoordinates(s.conn, w, s.root, 0, 0).Reply)
	if err != nil {
		return window.Geometry{}, err
	}

	return clip(window.Geometry{
		X:      int(origin.DstX),
		Y:      int(origin.DstY),
		Width:  int(geom.Width),
		Height: int(geom.Height),
	}, s.rootWidth, s.rootHeight), nil
}

func (s *Session) property(ctx context.Context, w xproto.Window, atom, typ xproto.Atom, length uint32) (*xproto.GetPropertyReply, error) {
	return await(ctx, s.timeout, xproto.GetProperty(s.conn, false, w, atom, typ, 0, length).Reply)
}

// propertyValue reports whether the property exists on the window. An
// existing property may still have an empty value.
func propertyValue(reply *xproto.GetPropertyReply) ([]byte, bool) {
	if reply == nil || reply.Type == xproto.AtomNone {
		return nil, false
	}
	return reply.Value, true
}

// chooseName prefers WM_NAME, even when empty, and uses _NET_WM_NAME only
// when WM_NAME is not set.
func chooseName(wmName, netWMName *xproto.GetPropertyReply) string {
	data, ok := propertyValue(wmName)
	if !ok {
		data, _ = propertyValue(netWMName)
	}
	return strings.TrimRight(string(data), "\x00")
}

// decodeWindow reads a WINDOW-typed property value; unset or short values are 0.
func decodeWindow(reply *xproto.GetPropertyReply) xproto.Window {
	data, ok := propertyValue(reply)
	if !ok || len(data) < 4 {
		return 0
	}
	return xproto.Window(binary.LittleEndian.Uint32(data))
}

// focused reports whether active names a client window rather than nothing or the root.
func focused(active, root xproto.Window) bool {
	return active != 0 && active != root
}

// parseWMClass returns the class (second) field of a WM_CLASS value.
func parseWMClass(data []byte) string {
	parts := strings.Split(strings.TrimRight(string(data), "\x00"), "\x00")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// clip intersects g with the root surface.
func clip(g window.Geometry, rootWidth, rootHeight int) window.Geometry {
	x0, y0 := max(g.X, 0), max(g.Y, 0)
	x1, y1 := min(g.X+g.Width, rootWidth), min(g.Y+g.Height, rootHeight)
	if x1 <= x0 || y1 <= y0 {
		return window.Geometry{X: x0, Y: y0}
	}
	return window.Geometry{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

func transient(err error, msg string) error {
	return errors.Wrapf(window.ErrTransient, "%s: %v", msg, err)
}

// await waits for an X reply, giving up after timeout or when ctx ends.
func await[T any](ctx context.Context, timeout time.Duration, reply func() (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := reply()
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

package detector

import (
	"fmt"
	"os"
	"time"

	"github.com/actionsum/actionlog/pkg/integrations/x11"
)

// New opens a windowing-system session. Only X11 (including XWayland) can
// serve both focus lookup and root-window pixel capture.
func New(display string, timeout time.Duration) (*x11.Session, error) {
	if display == "" && os.Getenv("DISPLAY") == "" {
		return nil, fmt.Errorf("no X11 display available (display server: %s)", DetectDisplayServer())
	}

	session, err := x11.Open(display, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to open X11 session: %w", err)
	}
	return session, nil
}

func DetectDisplayServer() string {
	sessionType := os.Getenv("XDG_SESSION_TYPE")
	waylandDisplay := os.Getenv("WAYLAND_DISPLAY")
	x11Display := os.Getenv("DISPLAY")

	if sessionType == "wayland" || waylandDisplay != "" {
		return "wayland"
	}

	if sessionType == "x11" || x11Display != "" {
		return "x11"
	}

	return "unknown"
}

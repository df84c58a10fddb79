package window

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pkg/errors"
)

type MockInspector struct {
	observation *Observation
	err         error
	closeError  error
}

func (m *MockInspector) CurrentWindow(ctx context.Context) (*Observation, error) {
	return m.observation, m.err
}

func (m *MockInspector) DisplayServer() string {
	return "x11"
}

func (m *MockInspector) Close() error {
	return m.closeError
}

func TestMockInspector(t *testing.T) {
	var _ Inspector = (*MockInspector)(nil)

	mock := &MockInspector{
		observation: &Observation{
			Handle:     42,
			ClassName:  "Firefox",
			Title:      "Docs",
			Geometry:   Geometry{X: 0, Y: 0, Width: 800, Height: 600},
			CapturedAt: time.Date(2024, 6, 1, 10, 0, 7, 0, time.UTC),
		},
	}

	obs, err := mock.CurrentWindow(context.Background())
	if err != nil {
		t.Fatalf("CurrentWindow() error: %v", err)
	}
	if obs.ClassName != "Firefox" {
		t.Errorf("ClassName = %s, want Firefox", obs.ClassName)
	}
	if !obs.Geometry.Valid() {
		t.Error("Geometry.Valid() = false, want true")
	}

	if err := mock.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}

func TestGeometryValid(t *testing.T) {
	tests := []struct {
		name string
		geom Geometry
		want bool
	}{
		{name: "Positive area", geom: Geometry{Width: 1, Height: 1}, want: true},
		{name: "Offset origin", geom: Geometry{X: -10, Y: 20, Width: 640, Height: 480}, want: true},
		{name: "Zero width", geom: Geometry{Width: 0, Height: 10}, want: false},
		{name: "Zero height", geom: Geometry{Width: 10, Height: 0}, want: false},
		{name: "Negative width", geom: Geometry{Width: -5, Height: 10}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.geom.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "Sentinel", err: ErrTransient, want: true},
		{name: "Wrapped", err: errors.Wrap(ErrTransient, "get property"), want: true},
		{name: "fmt wrapped", err: fmt.Errorf("poll: %w", ErrTransient), want: true},
		{name: "Other", err: errors.New("disk full"), want: false},
		{name: "Nil", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestNoActiveWindow(t *testing.T) {
	mock := &MockInspector{}

	obs, err := mock.CurrentWindow(context.Background())
	if err != nil {
		t.Errorf("CurrentWindow() error: %v", err)
	}
	if obs != nil {
		t.Errorf("CurrentWindow() = %+v, want nil", obs)
	}
}

package scope

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/comview/pkg/config"
	"github.com/itohio/comview/pkg/sample"
)

// Trace is one channel's history as drawn by the scope.
type Trace struct {
	Name    string
	Color   color.Color
	Samples []float64 // oldest first
}

// displayTrace is a downsampled Trace. n is the length before downsampling.
type displayTrace struct {
	name   string
	color  color.Color
	points []float64
	n      int
}

// ScopeWidget is a custom Fyne widget that plots the sample history of
// several channels against a shared Y axis. Scrolling zooms the Y axis and
// a double tap resets it.
type ScopeWidget struct {
	widget.BaseWidget

	// Data (protected by mu)
	mu     sync.RWMutex
	traces []displayTrace
	window int // samples across the X axis

	// Auto-scaling, narrowed by zoom around its center
	autoLo, autoHi float64
	zoom           float64
	yMin, yMax     float64

	// Display settings
	maxDisplayPoints int
}

// New creates a new ScopeWidget showing window samples across the X axis.
func New(window int) *ScopeWidget {
	s := &ScopeWidget{
		window:           max(window, 2),
		autoHi:           1,
		zoom:             1,
		yMin:             0,
		yMax:             1,
		maxDisplayPoints: 1000, // Limit points for efficient rendering
	}
	s.ExtendBaseWidget(s)
	s.Refresh()
	return s
}

// SetWindow changes the number of samples across the X axis.
func (s *ScopeWidget) SetWindow(window int) {
	s.mu.Lock()
	s.window = max(window, 2)
	s.mu.Unlock()
	s.Refresh()
}

// UpdateData replaces the plotted traces. The Y axis always includes
// bounds and grows to fit samples outside of it.
// This should be called from the UI goroutine, e.g. using fyne.Do().
func (s *ScopeWidget) UpdateData(traces []Trace, bounds config.Range) {
	s.mu.Lock()

	// Downsample for display, reusing the previous buffers
	prev := s.traces
	s.traces = make([]displayTrace, len(traces))
	for i, t := range traces {
		var dst []float64
		if i < len(prev) {
			dst = prev[i].points
		}
		s.traces[i] = displayTrace{
			name:   t.Name,
			color:  t.Color,
			points: sample.Downsample(dst, t.Samples, s.maxDisplayPoints),
			n:      len(t.Samples),
		}
	}

	s.autoLo, s.autoHi = yRange(traces, bounds)
	s.yMin, s.yMax = zoomRange(s.autoLo, s.autoHi, s.zoom)
	s.mu.Unlock()

	// Must be outside lock to avoid potential deadlock
	s.Refresh()
}

var (
	_ fyne.Scrollable     = (*ScopeWidget)(nil)
	_ fyne.DoubleTappable = (*ScopeWidget)(nil)
)

// yRange returns bounds grown to include every sample, with a small margin
// when data lies outside of bounds.
func yRange(traces []Trace, bounds config.Range) (float64, float64) {
	lo, hi := bounds.Lo, bounds.Hi
	grown := false
	for _, t := range traces {
		tlo, thi, ok := sample.Bounds(t.Samples)
		if !ok {
			continue
		}
		if tlo < lo {
			lo, grown = tlo, true
		}
		if thi > hi {
			hi, grown = thi, true
		}
	}

	span := hi - lo
	if span <= 0 {
		return lo - 0.5, hi + 0.5
	}
	if grown {
		margin := span * 0.05
		lo -= margin
		hi += margin
	}
	return lo, hi
}

// Scrolled zooms the Y axis in when scrolling up and out when scrolling down.
func (s *ScopeWidget) Scrolled(ev *fyne.ScrollEvent) {
	if ev.Scrolled.DY == 0 {
		return
	}
	factor := zoomStep
	if ev.Scrolled.DY < 0 {
		factor = 1 / zoomStep
	}
	s.setZoom(func(z float64) float64 { return z * factor })
}

// DoubleTapped resets the zoom to the auto-scaled range.
func (s *ScopeWidget) DoubleTapped(*fyne.PointEvent) {
	s.setZoom(func(float64) float64 { return 1 })
}

// Zoom returns the current zoom factor, 1 when showing the auto-scaled range.
func (s *ScopeWidget) Zoom() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.zoom
}

func (s *ScopeWidget) setZoom(next func(float64) float64) {
	s.mu.Lock()
	s.zoom = min(max(next(s.zoom), minZoom), maxZoom)
	s.yMin, s.yMax = zoomRange(s.autoLo, s.autoHi, s.zoom)
	s.mu.Unlock()
	s.Refresh()
}

const (
	zoomStep = 1.25
	minZoom  = 0.25
	maxZoom  = 64
)

// zoomRange narrows [lo, hi] by zoom around its center. zoom < 1 widens it.
func zoomRange(lo, hi, zoom float64) (float64, float64) {
	mid := lo + (hi-lo)/2
	half := (hi - lo) / 2 / zoom
	return mid - half, mid + half
}

// CreateRenderer creates the widget renderer.
func (s *ScopeWidget) CreateRenderer() fyne.WidgetRenderer {
	background := canvas.NewRectangle(color.RGBA{R: 20, G: 20, B: 20, A: 255})
	return &scopeRenderer{
		scope:      s,
		background: background,
		objects:    []fyne.CanvasObject{background},
	}
}

// ParseColor parses a "#rrggbb" or "#rrggbbaa" string.
func ParseColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 && len(hex) != 8 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	if len(hex) == 6 {
		v = v<<8 | 0xff
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// FormatColor renders c as "#rrggbb", or "#rrggbbaa" when c is translucent.
func FormatColor(c color.Color) string {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	if n.A == 0xff {
		return fmt.Sprintf("#%02x%02x%02x", n.R, n.G, n.B)
	}
	return fmt.Sprintf("#%02x%02x%02x%02x", n.R, n.G, n.B, n.A)
}

package scope

import (
	"image/color"
	"math"
	"testing"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/comview/pkg/config"
)

func TestYRange(t *testing.T) {
	bounds := config.Range{Lo: 0, Hi: 3.3}

	tests := []struct {
		name   string
		traces []Trace
		lo, hi float64
	}{
		{"no traces", nil, 0, 3.3},
		{"empty trace", []Trace{{Samples: nil}}, 0, 3.3},
		{"inside bounds", []Trace{{Samples: []float64{1, 2}}}, 0, 3.3},
		{"above bounds", []Trace{{Samples: []float64{1, 10}}}, -0.5, 10.5},
		{"across traces", []Trace{{Samples: []float64{-10}}, {Samples: []float64{10}}}, -11, 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, hi := yRange(tt.traces, bounds)
			assert.InDelta(t, tt.lo, lo, 1e-9)
			assert.InDelta(t, tt.hi, hi, 1e-9)
		})
	}
}

func TestYRange_Degenerate(t *testing.T) {
	lo, hi := yRange(nil, config.Range{Lo: 5, Hi: 5})
	assert.Less(t, lo, hi)
}

func TestProject(t *testing.T) {
	tests := []struct {
		v    float64
		want float32
		ok   bool
	}{
		{0, 110, true},
		{10, 10, true},
		{5, 60, true},
		{-100, 110, true},
		{math.Inf(1), 10, true},
		{math.NaN(), 0, false},
	}
	for _, tt := range tests {
		got, ok := project(tt.v, 0, 10, 10, 100)
		assert.Equal(t, tt.ok, ok, "v=%v", tt.v)
		if ok {
			assert.InDelta(t, tt.want, got, 1e-4, "v=%v", tt.v)
		}
	}
}

func TestXPos(t *testing.T) {
	assert.InDelta(t, 60, xPos(0, 11, 60, 100), 1e-4)
	assert.InDelta(t, 110, xPos(5, 11, 60, 100), 1e-4)
	assert.InDelta(t, 160, xPos(10, 11, 60, 100), 1e-4)
	assert.InDelta(t, 60, xPos(3, 1, 60, 100), 1e-4)
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#ff8000")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 0xff, G: 0x80, B: 0x00, A: 0xff}, c)

	c, err = ParseColor("00ff0080")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 0x00, G: 0xff, B: 0x00, A: 0x80}, c)

	for _, bad := range []string{"", "#fff", "#gggggg", "#1234567"} {
		_, err := ParseColor(bad)
		assert.Error(t, err, bad)
	}
}

func TestFormatColor(t *testing.T) {
	assert.Equal(t, "#ff8000", FormatColor(color.NRGBA{R: 0xff, G: 0x80, A: 0xff}))
	assert.Equal(t, "#00ff0080", FormatColor(color.NRGBA{G: 0xff, A: 0x80}))

	c, err := ParseColor(config.DefaultChannel("").Color)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultChannel("").Color, FormatColor(c))
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "0", formatValue(0.0001))
	assert.Equal(t, "1.650", formatValue(1.65))
	assert.Equal(t, "-3.300", formatValue(-3.3))
	assert.Equal(t, "1024.0", formatValue(1024))
}

func TestZoomRange(t *testing.T) {
	tests := []struct {
		name   string
		zoom   float64
		lo, hi float64
	}{
		{"identity", 1, 0, 10},
		{"zoom in", 2, 2.5, 7.5},
		{"zoom out", 0.5, -5, 15},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, hi := zoomRange(0, 10, tt.zoom)
			assert.InDelta(t, tt.lo, lo, 1e-9)
			assert.InDelta(t, tt.hi, hi, 1e-9)
		})
	}
}

func scrollBy(dy float32) *fyne.ScrollEvent {
	return &fyne.ScrollEvent{Scrolled: fyne.NewDelta(0, dy)}
}

func yAxis(s *ScopeWidget) (float64, float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.yMin, s.yMax
}

func TestScopeWidget_ScrollZoomAndReset(t *testing.T) {
	test.NewTempApp(t)
	s := New(100)
	bounds := config.Range{Lo: 0, Hi: 8}
	traces := []Trace{{Name: "COM3", Color: color.White, Samples: []float64{1, 2, 3}}}
	s.UpdateData(traces, bounds)

	lo, hi := yAxis(s)
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 8.0, hi)

	s.Scrolled(scrollBy(10))
	assert.Equal(t, zoomStep, s.Zoom())
	lo, hi = yAxis(s)
	assert.InDelta(t, 0.8, lo, 1e-9)
	assert.InDelta(t, 7.2, hi, 1e-9)

	// Zoom survives new data
	s.UpdateData(traces, bounds)
	lo, hi = yAxis(s)
	assert.InDelta(t, 0.8, lo, 1e-9)
	assert.InDelta(t, 7.2, hi, 1e-9)

	s.Scrolled(scrollBy(0))
	assert.Equal(t, zoomStep, s.Zoom())

	s.DoubleTapped(&fyne.PointEvent{})
	assert.Equal(t, 1.0, s.Zoom())
	lo, hi = yAxis(s)
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 8.0, hi)
}

func TestScopeWidget_ZoomLimits(t *testing.T) {
	test.NewTempApp(t)
	s := New(100)

	for range 100 {
		s.Scrolled(scrollBy(1))
	}
	assert.Equal(t, float64(maxZoom), s.Zoom())

	for range 100 {
		s.Scrolled(scrollBy(-1))
	}
	assert.Equal(t, minZoom, s.Zoom())
	lo, hi := yAxis(s)
	assert.InDelta(t, -1.5, lo, 1e-9)
	assert.InDelta(t, 2.5, hi, 1e-9)
}

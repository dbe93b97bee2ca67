package scope

import (
	"image/color"
	"math"
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"github.com/chewxy/math32"
)

var (
	gridColor  = color.RGBA{R: 40, G: 40, B: 40, A: 255}
	labelColor = color.RGBA{R: 150, G: 150, B: 150, A: 255}
)

const (
	marginLeft   = float32(60)
	marginRight  = float32(20)
	marginTop    = float32(20)
	marginBottom = float32(40)
)

// scopeRenderer renders the scope widget.
type scopeRenderer struct {
	scope *ScopeWidget

	background *canvas.Rectangle

	// Objects list for Fyne
	objects []fyne.CanvasObject

	// Track last size to detect changes
	lastSize fyne.Size
}

// plotArea is the screen rectangle the traces are drawn into.
type plotArea struct {
	x, y, w, h float32
}

// MinSize returns the minimum size of the widget.
func (r *scopeRenderer) MinSize() fyne.Size {
	return fyne.NewSize(400, 300)
}

// Layout arranges the widget components.
func (r *scopeRenderer) Layout(size fyne.Size) {
	r.background.Resize(size)

	if r.lastSize != size {
		r.lastSize = size
		// Use BaseWidget.Refresh() to properly trigger Fyne's refresh cycle
		r.scope.BaseWidget.Refresh()
	}
}

// Refresh redraws the grid and all traces.
func (r *scopeRenderer) Refresh() {
	r.scope.mu.RLock()
	traces := r.scope.traces
	window := r.scope.window
	yMin, yMax := r.scope.yMin, r.scope.yMax
	r.scope.mu.RUnlock()

	size := r.scope.Size()
	if size.Width == 0 || size.Height == 0 {
		return
	}

	r.objects = []fyne.CanvasObject{r.background}

	area := plotArea{
		x: marginLeft,
		y: marginTop,
		w: size.Width - marginLeft - marginRight,
		h: size.Height - marginTop - marginBottom,
	}
	if area.w <= 0 || area.h <= 0 {
		return
	}

	for _, t := range traces {
		window = max(window, t.n)
	}

	r.drawGrid(area, yMin, yMax, window)
	for i, t := range traces {
		r.drawTrace(area, t, yMin, yMax, window)
		r.drawLegend(area, i, t)
	}
}

// drawGrid draws the oscilloscope-style grid with value and sample labels.
func (r *scopeRenderer) drawGrid(area plotArea, yMin, yMax float64, window int) {
	numHLines := 8
	for i := range numHLines + 1 {
		y := area.y + float32(i)*area.h/float32(numHLines)
		r.addLine(gridColor, 1, fyne.NewPos(area.x, y), fyne.NewPos(area.x+area.w, y))

		value := yMax - float64(i)*(yMax-yMin)/float64(numHLines)
		text := canvas.NewText(formatValue(value), labelColor)
		text.TextSize = 10
		text.Alignment = fyne.TextAlignTrailing
		text.Move(fyne.NewPos(area.x-5, y-6))
		r.objects = append(r.objects, text)
	}

	numVLines := 10
	for i := range numVLines + 1 {
		x := area.x + float32(i)*area.w/float32(numVLines)
		r.addLine(gridColor, 1, fyne.NewPos(x, area.y), fyne.NewPos(x, area.y+area.h))

		index := i * (window - 1) / numVLines
		text := canvas.NewText(strconv.Itoa(index), labelColor)
		text.TextSize = 10
		text.Alignment = fyne.TextAlignCenter
		text.Move(fyne.NewPos(x-20, area.y+area.h+5))
		r.objects = append(r.objects, text)
	}
}

// drawTrace draws one trace as connected segments. NaN points break the
// line.
func (r *scopeRenderer) drawTrace(area plotArea, t displayTrace, yMin, yMax float64, window int) {
	if len(t.points) < 2 {
		return
	}

	var prev fyne.Position
	havePrev := false
	for k, v := range t.points {
		y, ok := project(v, yMin, yMax, area.y, area.h)
		if !ok {
			havePrev = false
			continue
		}
		// Point k stands for input sample k*n/len(points)
		index := k * t.n / len(t.points)
		pos := fyne.NewPos(xPos(index, window, area.x, area.w), y)
		if havePrev {
			r.addLine(t.color, 1.5, prev, pos)
		}
		prev, havePrev = pos, true
	}
}

func (r *scopeRenderer) drawLegend(area plotArea, i int, t displayTrace) {
	text := canvas.NewText(t.name, t.color)
	text.TextSize = 11
	text.Alignment = fyne.TextAlignLeading
	text.Move(fyne.NewPos(area.x+10, area.y+10+float32(i)*14))
	r.objects = append(r.objects, text)
}

func (r *scopeRenderer) addLine(c color.Color, width float32, p1, p2 fyne.Position) {
	line := canvas.NewLine(c)
	line.Position1 = p1
	line.Position2 = p2
	line.StrokeWidth = width
	r.objects = append(r.objects, line)
}

// Objects returns all canvas objects for rendering.
func (r *scopeRenderer) Objects() []fyne.CanvasObject {
	return r.objects
}

// Destroy cleans up resources.
func (r *scopeRenderer) Destroy() {}

// project maps v in [lo, hi] to a screen Y coordinate inside [y0, y0+h],
// with lo at the bottom. Values off the axis are clamped to its edge.
// ok is false for NaN.
func project(v, lo, hi float64, y0, h float32) (float32, bool) {
	t := float32((v - lo) / (hi - lo))
	if math32.IsNaN(t) {
		return 0, false
	}
	t = math32.Max(0, math32.Min(1, t))
	return y0 + h - t*h, true
}

// xPos maps sample index i of a window to a screen X coordinate.
func xPos(i, window int, x0, w float32) float32 {
	if window < 2 {
		return x0
	}
	return x0 + float32(i)/float32(window-1)*w
}

// formatValue renders an axis label, with fewer decimals for large values.
func formatValue(v float64) string {
	if math.Abs(v) < 0.0005 {
		return "0"
	}
	prec := 3
	if math.Abs(v) >= 100 {
		prec = 1
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}

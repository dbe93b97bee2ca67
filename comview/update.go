package main

import (
	"context"
	"image/color"
	"sync/atomic"
	"time"

	"fyne.io/fyne/v2"

	"github.com/itohio/comview/pkg/channel"
	"github.com/itohio/comview/pkg/scope"
)

var fallbackColor = color.NRGBA{R: 0xff, A: 0xff}

// runRenderLoop pushes the channel histories to the scope every refresh
// interval until ctx is done. A frame is skipped while the previous one is
// still queued on the UI thread.
func runRenderLoop(ctx context.Context, state *appState) {
	interval := state.cfg.RefreshInterval
	if interval <= 0 {
		interval = 16 * time.Millisecond // ~60 FPS
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pending atomic.Bool
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if !pending.CompareAndSwap(false, true) {
			continue
		}
		traces := collectTraces(state.sup.Channels())
		bounds := state.sup.GlobalBounds()

		fyne.Do(func() {
			defer pending.Store(false)
			state.scopeWidget.UpdateData(traces, bounds)
		})
	}
}

// collectTraces snapshots the history of every channel. Snapshots are
// immutable so no copy is needed.
func collectTraces(channels []*channel.Controller) []scope.Trace {
	traces := make([]scope.Trace, 0, len(channels))
	for _, c := range channels {
		cfg := c.Config()
		col, err := scope.ParseColor(cfg.Color)
		if err != nil {
			col = fallbackColor
		}
		traces = append(traces, scope.Trace{
			Name:    cfg.Port,
			Color:   col,
			Samples: c.Samples(),
		})
	}
	return traces
}

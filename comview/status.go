package main

import (
	"context"
	"fmt"
	"os"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/widget"
	"github.com/sirupsen/logrus"
)

// statusHook is a logrus hook that shows warnings and errors in the status
// bar of the main window.
type statusHook struct {
	lines chan string
}

func newStatusHook(ctx context.Context, label *widget.Label) *statusHook {
	h := &statusHook{lines: make(chan string, 16)}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case line := <-h.lines:
				fyne.Do(func() { label.SetText(line) })
			}
		}
	}()
	return h
}

func (h *statusHook) Levels() []logrus.Level {
	return []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel, logrus.WarnLevel}
}

func (h *statusHook) Fire(entry *logrus.Entry) error {
	select {
	case h.lines <- formatStatus(entry):
	default:
		// Buffer full, the entry still reaches the regular log output
		_, _ = fmt.Fprintf(os.Stderr, "status: dropped log: %s\n", entry.Message)
	}
	return nil
}

// formatStatus renders an entry as "15:04:05 COM3: message: error".
func formatStatus(entry *logrus.Entry) string {
	line := entry.Time.Format("15:04:05") + " "
	if dev, ok := entry.Data["device"]; ok {
		line += fmt.Sprintf("%v: ", dev)
	}
	line += entry.Message
	if err, ok := entry.Data[logrus.ErrorKey]; ok {
		line += fmt.Sprintf(": %v", err)
	}
	return line
}

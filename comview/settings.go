package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/comview/pkg/config"
)

// showSettingsDialog displays a settings dialog with tabs for the options
// that are not edited on the control panel.
func showSettingsDialog(state *appState) {
	tabs := container.NewAppTabs(
		createTimingTab(state),
		createTemplateTab(state),
		createMockTab(state),
	)

	content := container.NewBorder(nil, nil, nil, nil, tabs)
	content.Resize(fyne.NewSize(500, 400))

	d := dialog.NewCustom("Settings", "Close", content, state.window)
	d.Resize(fyne.NewSize(500, 400))
	d.Show()
}

func storeSettings(state *appState) {
	if err := saveConfig(state); err != nil {
		dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
	}
}

// createTimingTab creates the tab with device and UI intervals. Changes
// apply to channels started afterwards and on the next launch.
func createTimingTab(state *appState) *container.TabItem {
	readTimeoutEntry := widget.NewEntry()
	readTimeoutEntry.SetText(state.cfg.ReadTimeout.String())

	refreshEntry := widget.NewEntry()
	refreshEntry.SetText(state.cfg.RefreshInterval.String())

	livenessEntry := widget.NewEntry()
	livenessEntry.SetText(state.cfg.LivenessInterval.String())

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Read timeout", Widget: readTimeoutEntry, HintText: "Applies to newly added channels"},
			{Text: "Plot refresh", Widget: refreshEntry, HintText: "Applies on restart"},
			{Text: "Liveness check", Widget: livenessEntry, HintText: "Applies on restart"},
		},
		OnSubmit: func() {
			if d, err := time.ParseDuration(readTimeoutEntry.Text); err == nil && d > 0 {
				state.cfg.ReadTimeout = d
			}
			if d, err := time.ParseDuration(refreshEntry.Text); err == nil && d > 0 {
				state.cfg.RefreshInterval = d
			}
			if d, err := time.ParseDuration(livenessEntry.Text); err == nil && d > 0 {
				state.cfg.LivenessInterval = d
			}
			storeSettings(state)
		},
	}

	return container.NewTabItem("Timing", form)
}

// createTemplateTab edits the settings given to newly added channels.
func createTemplateTab(state *appState) *container.TabItem {
	tpl := &state.cfg.Channel

	baudSelect := widget.NewSelect(baudOptions(), nil)
	baudSelect.SetSelected(strconv.Itoa(tpl.BaudRate))

	inLo, inHi := widget.NewEntry(), widget.NewEntry()
	inLo.SetText(formatBound(tpl.Input.Lo))
	inHi.SetText(formatBound(tpl.Input.Hi))
	outLo, outHi := widget.NewEntry(), widget.NewEntry()
	outLo.SetText(formatBound(tpl.Output.Lo))
	outHi.SetText(formatBound(tpl.Output.Hi))

	convert := widget.NewCheck("Convert", nil)
	convert.SetChecked(tpl.Convert)

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Baud rate", Widget: baudSelect},
			{Text: "Input", Widget: container.NewGridWithColumns(2, inLo, inHi)},
			{Text: "", Widget: convert},
			{Text: "Output", Widget: container.NewGridWithColumns(2, outLo, outHi)},
		},
		OnSubmit: func() {
			next := *tpl
			if baud, err := strconv.Atoi(baudSelect.Selected); err == nil {
				next.BaudRate = baud
				next.CustomBaud = false
			}
			if r, err := parseRange(inLo.Text, inHi.Text); err == nil {
				next.Input = r
			}
			if r, err := parseRange(outLo.Text, outHi.Text); err == nil {
				next.Output = r
			}
			next.Convert = convert.Checked

			// The template has no port; validate it as if it had one
			check := next
			check.Port = "template"
			if err := check.Validate(); err != nil {
				dialog.ShowError(err, state.window)
				return
			}
			*tpl = next
			storeSettings(state)
		},
	}

	return container.NewTabItem("New Channel", form)
}

func parseRange(lo, hi string) (config.Range, error) {
	l, err := parseRangeBound(lo)
	if err != nil {
		return config.Range{}, err
	}
	h, err := parseRangeBound(hi)
	if err != nil {
		return config.Range{}, err
	}
	r := config.Range{Lo: l, Hi: h}
	return r, r.Validate()
}

// createMockTab creates the Mock device configuration tab.
func createMockTab(state *appState) *container.TabItem {
	portsEntry := widget.NewEntry()
	portsEntry.SetText(strings.Join(state.cfg.Mock.Ports, ", "))

	amplitudeEntry := widget.NewEntry()
	amplitudeEntry.SetText(fmt.Sprintf("%.1f", state.cfg.Mock.Amplitude))

	offsetEntry := widget.NewEntry()
	offsetEntry.SetText(fmt.Sprintf("%.1f", state.cfg.Mock.Offset))

	periodEntry := widget.NewEntry()
	periodEntry.SetText(state.cfg.Mock.Period.String())

	noiseLevelEntry := widget.NewEntry()
	noiseLevelEntry.SetText(fmt.Sprintf("%.3f", state.cfg.Mock.NoiseLevel))

	sampleRateEntry := widget.NewEntry()
	sampleRateEntry.SetText(state.cfg.Mock.SampleRate.String())

	form := &widget.Form{
		Items: []*widget.FormItem{
			{Text: "Ports", Widget: portsEntry, HintText: "Comma separated, applies on restart"},
			{Text: "Amplitude", Widget: amplitudeEntry},
			{Text: "Offset", Widget: offsetEntry},
			{Text: "Period", Widget: periodEntry},
			{Text: "Noise Level", Widget: noiseLevelEntry},
			{Text: "Sample Rate", Widget: sampleRateEntry},
		},
		OnSubmit: func() {
			var ports []string
			for _, p := range strings.Split(portsEntry.Text, ",") {
				if p = strings.TrimSpace(p); p != "" {
					ports = append(ports, p)
				}
			}
			if len(ports) > 0 {
				state.cfg.Mock.Ports = ports
			}
			if a, err := strconv.ParseFloat(amplitudeEntry.Text, 64); err == nil {
				state.cfg.Mock.Amplitude = a
			}
			if o, err := strconv.ParseFloat(offsetEntry.Text, 64); err == nil {
				state.cfg.Mock.Offset = o
			}
			if p, err := time.ParseDuration(periodEntry.Text); err == nil {
				state.cfg.Mock.Period = p
			}
			if nl, err := strconv.ParseFloat(noiseLevelEntry.Text, 64); err == nil {
				state.cfg.Mock.NoiseLevel = nl
			}
			if sr, err := time.ParseDuration(sampleRateEntry.Text); err == nil {
				state.cfg.Mock.SampleRate = sr
			}
			storeSettings(state)
		},
	}

	return container.NewTabItem("Mock", form)
}

package main

import (
	"fmt"
	"image/color"
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/comview/pkg/channel"
	"github.com/itohio/comview/pkg/config"
	"github.com/itohio/comview/pkg/scope"
)

// channelCard shows and edits the settings of one channel. Edit widgets are
// disabled while the channel runs.
type channelCard struct {
	panel *controlPanel
	ctrl  *channel.Controller

	baudSelect  *widget.Select
	customCheck *widget.Check
	customEntry *widget.Entry
	swatch      *canvas.Rectangle
	colorBtn    *widget.Button
	inLo, inHi  *widget.Entry
	outLo       *widget.Entry
	outHi       *widget.Entry
	convert     *widget.Check
	startBtn    *widget.Button
	stopBtn     *widget.Button
	removeBtn   *widget.Button
	errLabel    *widget.Label

	content fyne.CanvasObject
}

func newChannelCard(p *controlPanel, c *channel.Controller) *channelCard {
	card := &channelCard{panel: p, ctrl: c}

	card.baudSelect = widget.NewSelect(baudOptions(), func(s string) {
		if baud, err := strconv.Atoi(s); err == nil {
			card.update(func(cfg *config.ChannelConfig) { cfg.BaudRate = baud })
		}
	})
	card.customEntry = widget.NewEntry()
	card.customEntry.OnSubmitted = func(s string) {
		baud, err := strconv.Atoi(s)
		if err != nil {
			card.showError(fmt.Errorf("invalid baud rate %q", s))
			return
		}
		card.update(func(cfg *config.ChannelConfig) { cfg.BaudRate = baud })
	}
	card.customCheck = widget.NewCheck("Custom baud rate", func(on bool) {
		card.update(func(cfg *config.ChannelConfig) {
			cfg.CustomBaud = on
			if !on && config.ValidateBaud(cfg.BaudRate, false) != nil {
				cfg.BaudRate = config.DefaultBaudRate
			}
		})
	})

	card.swatch = canvas.NewRectangle(color.Transparent)
	card.swatch.SetMinSize(fyne.NewSize(24, 24))
	card.colorBtn = widget.NewButtonWithIcon("", theme.ColorPaletteIcon(), card.pickColor)

	card.inLo = card.rangeEntry(func(cfg *config.ChannelConfig, v float64) { cfg.Input.SetLo(v) })
	card.inHi = card.rangeEntry(func(cfg *config.ChannelConfig, v float64) { cfg.Input.SetHi(v) })
	card.outLo = card.rangeEntry(func(cfg *config.ChannelConfig, v float64) { cfg.Output.SetLo(v) })
	card.outHi = card.rangeEntry(func(cfg *config.ChannelConfig, v float64) { cfg.Output.SetHi(v) })
	card.convert = widget.NewCheck("Convert", func(on bool) {
		card.update(func(cfg *config.ChannelConfig) { cfg.Convert = on })
	})

	card.startBtn = widget.NewButtonWithIcon("Start", theme.MediaPlayIcon(), card.start)
	card.stopBtn = widget.NewButtonWithIcon("Stop", theme.MediaStopIcon(), card.stop)
	card.removeBtn = widget.NewButtonWithIcon("", theme.DeleteIcon(), func() {
		p.removeChannel(c)
	})
	card.errLabel = widget.NewLabel("")
	card.errLabel.Wrapping = fyne.TextWrapWord
	card.errLabel.Importance = widget.DangerImportance

	form := widget.NewForm(
		widget.NewFormItem("Baud rate", card.baudSelect),
		widget.NewFormItem("", card.customCheck),
		widget.NewFormItem("Custom", card.customEntry),
		widget.NewFormItem("Line color", container.NewHBox(card.swatch, card.colorBtn)),
		widget.NewFormItem("Input", container.NewGridWithColumns(2, card.inLo, card.inHi)),
		widget.NewFormItem("", card.convert),
		widget.NewFormItem("Output", container.NewGridWithColumns(2, card.outLo, card.outHi)),
	)

	header := container.NewBorder(nil, nil, nil, card.removeBtn,
		widget.NewLabelWithStyle(c.Port(), fyne.TextAlignLeading, fyne.TextStyle{Bold: true}))
	buttons := container.NewGridWithColumns(2, card.startBtn, card.stopBtn)

	card.content = container.NewVBox(widget.NewSeparator(), header, form, buttons, card.errLabel)
	return card
}

func (card *channelCard) rangeEntry(apply func(cfg *config.ChannelConfig, v float64)) *widget.Entry {
	e := widget.NewEntry()
	e.OnSubmitted = func(s string) {
		v, err := parseRangeBound(s)
		if err != nil {
			card.showError(err)
			card.sync()
			return
		}
		card.update(func(cfg *config.ChannelConfig) { apply(cfg, v) })
	}
	return e
}

// update applies change to a copy of the channel settings and stores it.
// The widgets are reset to the stored settings when the change is rejected.
func (card *channelCard) update(change func(cfg *config.ChannelConfig)) {
	cfg := card.ctrl.Config()
	change(&cfg)
	if cfg == card.ctrl.Config() {
		return
	}
	if err := card.ctrl.SetConfig(cfg); err != nil {
		card.showError(err)
	}
	card.sync()
}

func (card *channelCard) pickColor() {
	picker := dialog.NewColorPicker("Line color", card.ctrl.Port(), func(c color.Color) {
		card.update(func(cfg *config.ChannelConfig) { cfg.Color = scope.FormatColor(c) })
	}, card.panel.state.window)
	picker.Advanced = true
	if c, err := scope.ParseColor(card.ctrl.Config().Color); err == nil {
		picker.SetColor(c)
	}
	picker.Show()
}

func (card *channelCard) start() {
	if err := card.ctrl.Start(); err != nil {
		dialog.ShowError(err, card.panel.state.window)
	}
	card.sync()
}

func (card *channelCard) stop() {
	if err := card.ctrl.Stop(); err != nil {
		card.showError(err)
	}
	card.sync()
}

func (card *channelCard) showError(err error) {
	card.errLabel.SetText(err.Error())
}

// sync shows the stored settings and the running state on the card.
func (card *channelCard) sync() {
	cfg := card.ctrl.Config()
	running := card.ctrl.IsRunning()

	baud := strconv.Itoa(cfg.BaudRate)
	if cfg.CustomBaud {
		card.baudSelect.ClearSelected()
	} else {
		card.baudSelect.SetSelected(baud)
	}
	card.customCheck.SetChecked(cfg.CustomBaud)
	card.customEntry.SetText(baud)

	if c, err := scope.ParseColor(cfg.Color); err == nil {
		card.swatch.FillColor = c
		card.swatch.Refresh()
	}

	card.inLo.SetText(formatBound(cfg.Input.Lo))
	card.inHi.SetText(formatBound(cfg.Input.Hi))
	card.outLo.SetText(formatBound(cfg.Output.Lo))
	card.outHi.SetText(formatBound(cfg.Output.Hi))
	card.convert.SetChecked(cfg.Convert)

	setEnabled(!running, card.customCheck, card.colorBtn, card.inLo, card.inHi, card.convert, card.removeBtn)
	setEnabled(!running && !cfg.CustomBaud, card.baudSelect)
	setEnabled(!running && cfg.CustomBaud, card.customEntry)
	setEnabled(!running && cfg.Convert, card.outLo, card.outHi)
	setEnabled(!running && cfg.Port != "", card.startBtn)
	setEnabled(running, card.stopBtn)

	if running {
		card.errLabel.SetText("")
	} else if err := card.ctrl.Err(); err != nil {
		card.showError(err)
	}
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func setEnabled(enabled bool, widgets ...fyne.Disableable) {
	for _, w := range widgets {
		if enabled {
			w.Enable()
		} else {
			w.Disable()
		}
	}
}

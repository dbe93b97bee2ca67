package main

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/itohio/comview/pkg/channel"
	"github.com/itohio/comview/pkg/config"
	"github.com/itohio/comview/pkg/device"
	"github.com/itohio/comview/pkg/supervisor"
)

// controlPanel is the side panel with the device picker, the history length
// and one card per channel.
type controlPanel struct {
	state *appState

	lookBehindEntry *widget.Entry
	deviceSelect    *widget.Select
	deviceMap       map[string]string // display name -> device name
	addBtn          *widget.Button

	cardsBox *fyne.Container
	cards    map[*channel.Controller]*channelCard

	content fyne.CanvasObject
}

func newControlPanel(state *appState) *controlPanel {
	p := &controlPanel{
		state: state,
		cards: make(map[*channel.Controller]*channelCard),
	}

	p.lookBehindEntry = widget.NewEntry()
	p.lookBehindEntry.SetText(strconv.Itoa(state.sup.LookBehind()))
	p.lookBehindEntry.OnSubmitted = p.setLookBehind

	p.deviceSelect = widget.NewSelect(nil, nil)
	p.addBtn = widget.NewButton("+", p.addChannel)

	form := widget.NewForm(
		widget.NewFormItem("Max data points", p.lookBehindEntry),
		widget.NewFormItem("Device", container.NewBorder(nil, nil, nil, p.addBtn, p.deviceSelect)),
	)

	p.cardsBox = container.NewVBox()
	scroll := container.NewVScroll(p.cardsBox)
	scroll.SetMinSize(fyne.NewSize(320, 400))

	p.content = container.NewBorder(
		container.NewVBox(widget.NewLabelWithStyle("Control Panel", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}), form),
		nil, nil, nil,
		scroll,
	)

	p.updateDevices()
	p.syncCards()
	return p
}

// setLookBehind applies the history length typed by the operator. The
// entry shows the clamped value afterwards.
func (p *controlPanel) setLookBehind(text string) {
	n, err := strconv.Atoi(text)
	if err != nil {
		p.lookBehindEntry.SetText(strconv.Itoa(p.state.sup.LookBehind()))
		return
	}
	n = p.state.sup.SetLookBehind(n)
	p.state.scopeWidget.SetWindow(n)
	p.lookBehindEntry.SetText(strconv.Itoa(n))
}

// refreshDevices re-enumerates the devices. Channels disappear when no
// device is left.
func (p *controlPanel) refreshDevices() {
	if err := p.state.sup.Refresh(); err != nil {
		dialog.ShowError(err, p.state.window)
		return
	}
	p.updateDevices()
	p.syncCards()
}

// updateDevices fills the device picker with the current candidates.
func (p *controlPanel) updateDevices() {
	candidates := p.state.sup.Candidates()

	descriptions := make(map[string]string)
	if !p.state.useMock {
		if ports, err := device.Ports(); err == nil {
			for _, port := range ports {
				descriptions[port.Name] = port.Description
			}
		}
	}

	options := make([]string, 0, len(candidates))
	p.deviceMap = make(map[string]string, len(candidates))
	for _, name := range candidates {
		displayName := name
		if d := descriptions[name]; d != "" && d != name {
			displayName = fmt.Sprintf("%s (%s)", name, d)
		}
		options = append(options, displayName)
		p.deviceMap[displayName] = name
	}

	selected := p.deviceMap[p.deviceSelect.Selected]
	p.deviceSelect.SetOptions(options)
	switch {
	case len(options) == 0:
		p.deviceSelect.ClearSelected()
	case selected == "":
		p.deviceSelect.SetSelectedIndex(0)
	default:
		for display, name := range p.deviceMap {
			if name == selected {
				p.deviceSelect.SetSelected(display)
			}
		}
	}
	p.updateAddButton()
}

func (p *controlPanel) updateAddButton() {
	if len(p.state.sup.Unassigned()) == 0 {
		p.addBtn.Disable()
	} else {
		p.addBtn.Enable()
	}
}

// addChannel adds a channel for the selected device, or for the next free
// device when the selected one already has a channel.
func (p *controlPanel) addChannel() {
	sup := p.state.sup

	var err error
	if name := p.deviceMap[p.deviceSelect.Selected]; name != "" {
		_, err = sup.AddChannel(name)
		if errors.Is(err, supervisor.ErrExists) {
			_, err = sup.AddNext()
		}
	} else {
		_, err = sup.AddNext()
	}
	if err != nil {
		dialog.ShowError(err, p.state.window)
		return
	}
	p.syncCards()
}

// removeChannel removes a stopped channel and its card.
func (p *controlPanel) removeChannel(c *channel.Controller) {
	if err := p.state.sup.RemoveChannel(c.Port()); err != nil {
		dialog.ShowError(err, p.state.window)
	}
	p.syncCards()
}

// syncCards makes the cards match the supervisor's channels and refreshes
// the running state shown on each card.
func (p *controlPanel) syncCards() {
	channels := p.state.sup.Channels()

	live := make(map[*channel.Controller]bool, len(channels))
	objects := make([]fyne.CanvasObject, 0, len(channels))
	for _, c := range channels {
		live[c] = true
		card, ok := p.cards[c]
		if !ok {
			card = newChannelCard(p, c)
			p.cards[c] = card
		}
		card.sync()
		objects = append(objects, card.content)
	}
	for c := range p.cards {
		if !live[c] {
			delete(p.cards, c)
		}
	}

	p.cardsBox.Objects = objects
	p.cardsBox.Refresh()
	p.updateAddButton()
}

// parseRangeBound parses a range bound typed by the operator. Only finite
// numbers are accepted.
func parseRangeBound(text string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, fmt.Errorf("invalid number %q", text)
	}
	return v, nil
}

// baudOptions renders config.BaudRates for a select widget.
func baudOptions() []string {
	options := make([]string, 0, len(config.BaudRates))
	for _, b := range config.BaudRates {
		options = append(options, strconv.Itoa(b))
	}
	return options
}

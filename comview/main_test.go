package main

import (
	"errors"
	"image/color"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/comview/pkg/channel"
	"github.com/itohio/comview/pkg/config"
	"github.com/itohio/comview/pkg/device"
)

func TestFormatStatus(t *testing.T) {
	at := time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)

	entry := logrus.NewEntry(logrus.New()).WithTime(at).WithField("device", "COM3").WithError(errors.New("unplugged"))
	entry.Message = "Reader exited"
	assert.Equal(t, "15:04:05 COM3: Reader exited: unplugged", formatStatus(entry))

	entry = logrus.NewEntry(logrus.New()).WithTime(at)
	entry.Message = "No devices available"
	assert.Equal(t, "15:04:05 No devices available", formatStatus(entry))
}

func TestParseRange(t *testing.T) {
	r, err := parseRange("0", "3.3")
	require.NoError(t, err)
	assert.Equal(t, config.Range{Lo: 0, Hi: 3.3}, r)

	_, err = parseRange("5", "1")
	assert.ErrorIs(t, err, config.ErrInvalidRange)

	_, err = parseRange("x", "1")
	assert.Error(t, err)
}

func TestParseRangeBound(t *testing.T) {
	v, err := parseRangeBound(" 3.3 ")
	require.NoError(t, err)
	assert.Equal(t, 3.3, v)

	for _, bad := range []string{"inf", "-Inf", "+infinity", "NaN", "", "1,5"} {
		_, err := parseRangeBound(bad)
		assert.Error(t, err, bad)
	}

	_, err = parseRange("-inf", "1024")
	assert.Error(t, err)
}

func TestBaudOptions(t *testing.T) {
	options := baudOptions()
	require.Len(t, options, len(config.BaudRates))
	assert.Equal(t, "9600", options[0])
	assert.Contains(t, options, "115200")
}

func TestFormatBound(t *testing.T) {
	assert.Equal(t, "1024", formatBound(1024))
	assert.Equal(t, "3.3", formatBound(3.3))
	assert.Equal(t, "-0.5", formatBound(-0.5))
}

func TestCollectTraces(t *testing.T) {
	cfg := config.Default()
	cfg.Mock.Ports = []string{"MOCK0"}
	cfg.Mock.SampleRate = time.Millisecond
	mock := device.NewMock(&cfg.Mock)

	good := config.DefaultChannel("MOCK0")
	good.Color = "#00ff00"
	bad := config.DefaultChannel("MOCK1")
	bad.Color = "green"

	a := channel.New(good, 100, mock)
	b := channel.New(bad, 100, mock)
	require.NoError(t, a.Start())
	defer a.Stop()

	require.Eventually(t, func() bool { return len(a.Samples()) > 0 }, 2*time.Second, time.Millisecond)

	traces := collectTraces([]*channel.Controller{a, b})
	require.Len(t, traces, 2)
	assert.Equal(t, "MOCK0", traces[0].Name)
	assert.Equal(t, color.NRGBA{G: 0xff, A: 0xff}, traces[0].Color)
	assert.NotEmpty(t, traces[0].Samples)
	assert.Equal(t, fallbackColor, traces[1].Color)
	assert.Empty(t, traces[1].Samples)
}

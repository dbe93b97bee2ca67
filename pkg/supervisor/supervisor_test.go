package supervisor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/comview/pkg/channel"
	"github.com/itohio/comview/pkg/config"
	"github.com/itohio/comview/pkg/device"
)

const (
	waitFor = 2 * time.Second
	tick    = time.Millisecond
)

// fakeEnum returns a settable device list.
type fakeEnum struct {
	mu      sync.Mutex
	devices []string
	err     error
}

func (e *fakeEnum) set(devices []string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.devices, e.err = devices, err
}

func (e *fakeEnum) List() ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.devices, e.err
}

func newTestSupervisor(t *testing.T, devices ...string) (*Supervisor, *device.Mock, *fakeEnum) {
	t.Helper()

	cfg := config.Default()
	cfg.LookBehind = 100
	cfg.Mock.Ports = []string{"COM3", "COM4", "COM5"}
	cfg.Mock.SampleRate = time.Millisecond

	mock := device.NewMock(&cfg.Mock)
	enum := &fakeEnum{devices: devices}

	log := logrus.New()
	log.SetLevel(logrus.DebugLevel)

	s := New(cfg, mock, enum, log)
	require.NoError(t, s.Refresh())
	t.Cleanup(s.StopAll)
	return s, mock, enum
}

func ports(channels []*channel.Controller) []string {
	result := make([]string, 0, len(channels))
	for _, c := range channels {
		result = append(result, c.Port())
	}
	return result
}

func TestSupervisor_New(t *testing.T) {
	cfg := config.Default()
	cfg.LookBehind = 1
	cfg.Channels = []config.ChannelConfig{
		config.DefaultChannel("COM3"),
		config.DefaultChannel("COM3"),
		config.DefaultChannel(""),
		config.DefaultChannel("COM4"),
	}

	s := New(cfg, device.NewMock(nil), &fakeEnum{}, nil)

	assert.Equal(t, config.MinLookBehind, s.LookBehind())
	assert.Equal(t, []string{"COM3", "COM4"}, ports(s.Channels()))
	for _, c := range s.Channels() {
		assert.False(t, c.IsRunning())
	}
}

func TestSupervisor_AddChannel(t *testing.T) {
	s, _, _ := newTestSupervisor(t, "COM3", "COM4")

	c, err := s.AddChannel("COM3")
	require.NoError(t, err)
	assert.False(t, c.IsRunning())
	assert.Equal(t, "COM3", c.Config().Port)
	assert.Equal(t, config.DefaultBaudRate, c.Config().BaudRate)

	_, err = s.AddChannel("COM3")
	assert.ErrorIs(t, err, ErrExists)
	assert.Len(t, s.Channels(), 1)

	_, err = s.AddChannel("")
	assert.ErrorIs(t, err, channel.ErrNoDevice)

	_, err = s.AddChannel("COM4")
	require.NoError(t, err)
	assert.Equal(t, []string{"COM3", "COM4"}, ports(s.Channels()))

	// Every candidate already has a channel
	_, err = s.AddChannel("COM5")
	assert.ErrorIs(t, err, ErrNoCandidates)
	assert.Empty(t, s.Unassigned())
}

func TestSupervisor_AddNext(t *testing.T) {
	s, _, _ := newTestSupervisor(t, "COM3", "COM4")

	c, err := s.AddNext()
	require.NoError(t, err)
	assert.Equal(t, "COM3", c.Port())

	c, err = s.AddNext()
	require.NoError(t, err)
	assert.Equal(t, "COM4", c.Port())

	_, err = s.AddNext()
	assert.ErrorIs(t, err, ErrNoCandidates)
}

func TestSupervisor_AddChannelUsesTemplate(t *testing.T) {
	s, _, _ := newTestSupervisor(t, "COM3")
	s.cfg.Channel.BaudRate = 9600
	s.cfg.Channel.Convert = true

	c, err := s.AddChannel("COM3")
	require.NoError(t, err)
	assert.Equal(t, 9600, c.Config().BaudRate)
	assert.True(t, c.Config().Convert)
	assert.Equal(t, "", s.cfg.Channel.Port)
}

func TestSupervisor_RemoveChannel(t *testing.T) {
	s, _, _ := newTestSupervisor(t, "COM3", "COM4")

	assert.ErrorIs(t, s.RemoveChannel("COM3"), ErrNotFound)

	c, err := s.AddChannel("COM3")
	require.NoError(t, err)
	require.NoError(t, c.Start())

	assert.ErrorIs(t, s.RemoveChannel("COM3"), channel.ErrRunning)
	assert.Len(t, s.Channels(), 1)

	require.NoError(t, c.Stop())
	require.NoError(t, s.RemoveChannel("COM3"))
	assert.Empty(t, s.Channels())

	_, ok := s.Channel("COM3")
	assert.False(t, ok)
}

// A channel whose device vanished is stopped and can be removed.
func TestSupervisor_RemoveDeadChannel(t *testing.T) {
	s, mock, _ := newTestSupervisor(t, "COM3")

	c, err := s.AddChannel("COM3")
	require.NoError(t, err)
	require.NoError(t, c.Start())

	mock.Unplug("COM3")
	require.Eventually(t, func() bool { return !c.IsRunning() }, waitFor, tick)
	require.NoError(t, s.RemoveChannel("COM3"))
	assert.False(t, mock.IsOpen("COM3"))
}

func TestSupervisor_RefreshEmptyStopsAll(t *testing.T) {
	s, mock, enum := newTestSupervisor(t, "COM3", "COM4")

	for range 2 {
		c, err := s.AddNext()
		require.NoError(t, err)
		require.NoError(t, c.Start())
	}
	channels := s.Channels()
	require.Len(t, channels, 2)
	require.Eventually(t, func() bool {
		return len(channels[0].Samples()) > 0 && len(channels[1].Samples()) > 0
	}, waitFor, tick)

	enum.set(nil, nil)
	require.NoError(t, s.Refresh())

	assert.Empty(t, s.Channels())
	assert.Empty(t, s.Candidates())
	for _, c := range channels {
		assert.False(t, c.IsRunning())
		assert.False(t, mock.IsOpen(c.Port()))
	}
}

func TestSupervisor_RefreshKeepsChannels(t *testing.T) {
	s, _, enum := newTestSupervisor(t, "COM3", "COM4")

	c, err := s.AddChannel("COM3")
	require.NoError(t, err)
	require.NoError(t, c.Start())

	enum.set([]string{"COM4"}, nil)
	require.NoError(t, s.Refresh())

	assert.Equal(t, []string{"COM4"}, s.Candidates())
	assert.Equal(t, []string{"COM3"}, ports(s.Channels()))
	assert.True(t, c.IsRunning())
}

func TestSupervisor_RefreshError(t *testing.T) {
	s, _, enum := newTestSupervisor(t, "COM3")
	_, err := s.AddChannel("COM3")
	require.NoError(t, err)

	enumErr := errors.New("permission denied")
	enum.set(nil, enumErr)

	assert.ErrorIs(t, s.Refresh(), enumErr)
	assert.Equal(t, []string{"COM3"}, s.Candidates())
	assert.Len(t, s.Channels(), 1)
}

func TestSupervisor_GlobalBounds(t *testing.T) {
	s, _, _ := newTestSupervisor(t, "COM3", "COM4")
	assert.Equal(t, config.Range{Lo: 0, Hi: 1024}, s.GlobalBounds())

	a, err := s.AddChannel("COM3")
	require.NoError(t, err)
	cfg := a.Config()
	cfg.Input = config.Range{Lo: -5, Hi: 10}
	require.NoError(t, a.SetConfig(cfg))
	assert.Equal(t, config.Range{Lo: -5, Hi: 10}, s.GlobalBounds())

	b, err := s.AddChannel("COM4")
	require.NoError(t, err)
	cfg = b.Config()
	cfg.Input = config.Range{Lo: 0, Hi: 100}
	require.NoError(t, b.SetConfig(cfg))
	assert.Equal(t, config.Range{Lo: -5, Hi: 100}, s.GlobalBounds())

	// Converted channels contribute their output range
	cfg.Convert = true
	require.NoError(t, b.SetConfig(cfg))
	assert.Equal(t, config.Range{Lo: -5, Hi: 10}, s.GlobalBounds())
}

func TestSupervisor_SetLookBehind(t *testing.T) {
	s, _, _ := newTestSupervisor(t, "COM3", "COM4")
	_, err := s.AddChannel("COM3")
	require.NoError(t, err)

	tests := []struct {
		in   int
		want int
	}{
		{500, 500},
		{1, config.MinLookBehind},
		{100_000, config.MaxLookBehind},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, s.SetLookBehind(tt.in))
		assert.Equal(t, tt.want, s.LookBehind())
	}

	c, err := s.AddChannel("COM4")
	require.NoError(t, err)
	require.NoError(t, c.Start())
	s.SetLookBehind(config.MinLookBehind)

	require.Eventually(t, func() bool {
		return len(c.Samples()) == config.MinLookBehind
	}, waitFor, tick)
	time.Sleep(10 * time.Millisecond)
	assert.Len(t, c.Samples(), config.MinLookBehind)
}

func TestSupervisor_Configs(t *testing.T) {
	s, _, _ := newTestSupervisor(t, "COM3", "COM4")
	_, err := s.AddChannel("COM4")
	require.NoError(t, err)
	_, err = s.AddChannel("COM3")
	require.NoError(t, err)

	cfgs := s.Configs()
	require.Len(t, cfgs, 2)
	assert.Equal(t, "COM4", cfgs[0].Port)
	assert.Equal(t, "COM3", cfgs[1].Port)
}

func TestSupervisor_Watch(t *testing.T) {
	s, mock, _ := newTestSupervisor(t, "COM3", "COM4")
	a, err := s.AddChannel("COM3")
	require.NoError(t, err)
	b, err := s.AddChannel("COM4")
	require.NoError(t, err)
	require.NoError(t, a.Start())
	require.NoError(t, b.Start())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopped := make(chan []string, 1)
	go s.Watch(ctx, 5*time.Millisecond, func(ids []string) { stopped <- ids })

	mock.Unplug("COM4")

	select {
	case ids := <-stopped:
		assert.Equal(t, []string{"COM4"}, ids)
	case <-time.After(waitFor):
		t.Fatal("Watch did not report the stopped channel")
	}
	assert.Error(t, b.Err())
	assert.True(t, a.IsRunning())
}

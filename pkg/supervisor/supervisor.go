// Package supervisor manages the set of telemetry channels: it creates and
// removes them, tracks which devices are available and aggregates the plot
// bounds across channels.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/itohio/comview/pkg/channel"
	"github.com/itohio/comview/pkg/config"
	"github.com/itohio/comview/pkg/device"
)

// DefaultBounds is returned by GlobalBounds when there are no channels.
var DefaultBounds = config.Range{Lo: 0, Hi: 1024}

var (
	// ErrExists is returned when a channel for the device already exists.
	ErrExists = errors.New("channel already exists")
	// ErrNotFound is returned when no channel exists for the device.
	ErrNotFound = errors.New("channel not found")
	// ErrNoCandidates is returned when every available device already has a channel.
	ErrNoCandidates = errors.New("no unassigned devices")
)

// Supervisor owns the ordered collection of channel controllers.
type Supervisor struct {
	cfg    *config.Config
	opener device.Opener
	enum   device.Enumerator
	log    *logrus.Logger

	mu         sync.Mutex
	lookBehind int
	candidates []string
	channels   []*channel.Controller // creation order
}

// New creates a Supervisor. Channels listed in cfg.Channels are restored in
// the stopped state; duplicates are skipped. Call Refresh to load the list
// of available devices.
func New(cfg *config.Config, opener device.Opener, enum device.Enumerator, log *logrus.Logger) *Supervisor {
	if log == nil {
		log = logrus.StandardLogger()
	}

	s := &Supervisor{
		cfg:        cfg,
		opener:     opener,
		enum:       enum,
		log:        log,
		lookBehind: config.ClampLookBehind(cfg.LookBehind),
	}

	for _, ch := range cfg.Channels {
		if ch.Port == "" || s.indexLocked(ch.Port) >= 0 {
			s.log.WithField("device", ch.Port).Warn("Skipping channel from config")
			continue
		}
		s.channels = append(s.channels, s.newController(ch))
	}

	return s
}

func (s *Supervisor) newController(cfg config.ChannelConfig) *channel.Controller {
	return channel.New(cfg, s.lookBehind, s.opener,
		channel.WithReadTimeout(s.cfg.ReadTimeout),
		channel.WithLogger(s.log),
	)
}

// Refresh re-queries the available devices. If none are left every channel
// is stopped and removed; otherwise only the candidate list changes.
func (s *Supervisor) Refresh() error {
	devices, err := s.enum.List()
	if err != nil {
		return fmt.Errorf("failed to refresh devices: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.candidates = devices
	if len(devices) > 0 {
		s.log.WithField("devices", devices).Debug("Devices refreshed")
		return nil
	}

	s.log.Warn("No devices available, removing all channels")
	s.stopAllLocked()
	s.channels = nil
	return nil
}

// Candidates returns the devices found by the last Refresh.
func (s *Supervisor) Candidates() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.candidates)
}

// Unassigned returns the candidate devices that have no channel yet.
func (s *Supervisor) Unassigned() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unassignedLocked()
}

func (s *Supervisor) unassignedLocked() []string {
	var result []string
	for _, d := range s.candidates {
		if s.indexLocked(d) < 0 {
			result = append(result, d)
		}
	}
	return result
}

// AddChannel creates a stopped channel for id with the template settings.
func (s *Supervisor) AddChannel(id string) (*channel.Controller, error) {
	if id == "" {
		return nil, channel.ErrNoDevice
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexLocked(id) >= 0 {
		return nil, fmt.Errorf("%w: %s", ErrExists, id)
	}
	if len(s.unassignedLocked()) == 0 {
		return nil, ErrNoCandidates
	}

	cfg := s.cfg.Channel
	cfg.Port = id
	c := s.newController(cfg)
	s.channels = append(s.channels, c)

	s.log.WithField("device", id).Info("Channel added")
	return c, nil
}

// AddNext adds a channel for the first candidate device without one.
func (s *Supervisor) AddNext() (*channel.Controller, error) {
	s.mu.Lock()
	free := s.unassignedLocked()
	s.mu.Unlock()

	if len(free) == 0 {
		return nil, ErrNoCandidates
	}
	return s.AddChannel(free[0])
}

// RemoveChannel removes the stopped channel for id. A channel whose reader
// died is treated as stopped.
func (s *Supervisor) RemoveChannel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	c := s.channels[i]
	if c.IsRunning() {
		return fmt.Errorf("cannot remove %s: %w", id, channel.ErrRunning)
	}
	if err := c.Stop(); err != nil && !errors.Is(err, channel.ErrNotRunning) {
		return err
	}

	s.channels = slices.Delete(s.channels, i, i+1)
	s.log.WithField("device", id).Info("Channel removed")
	return nil
}

// Channel returns the channel for id.
func (s *Supervisor) Channel(id string) (*channel.Controller, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexLocked(id)
	if i < 0 {
		return nil, false
	}
	return s.channels[i], true
}

// Channels returns the channels in creation order.
func (s *Supervisor) Channels() []*channel.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.channels)
}

// Configs returns the settings of every channel in creation order.
func (s *Supervisor) Configs() []config.ChannelConfig {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]config.ChannelConfig, 0, len(s.channels))
	for _, c := range s.channels {
		result = append(result, c.Config())
	}
	return result
}

// GlobalBounds returns the union of the display ranges of all channels,
// used for axis scaling. DefaultBounds is returned when there are none.
func (s *Supervisor) GlobalBounds() config.Range {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.channels) == 0 {
		return DefaultBounds
	}

	bounds := s.channels[0].DisplayRange()
	for _, c := range s.channels[1:] {
		bounds = bounds.Union(c.DisplayRange())
	}
	return bounds
}

// LookBehind returns the per-channel history length.
func (s *Supervisor) LookBehind() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookBehind
}

// SetLookBehind clamps n to the accepted range and applies it to every
// channel, running or not. It returns the applied value.
func (s *Supervisor) SetLookBehind(n int) int {
	n = config.ClampLookBehind(n)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lookBehind = n
	for _, c := range s.channels {
		c.SetLookBehind(n)
	}
	return n
}

// StopAll stops every running channel and waits for their readers.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopAllLocked()
}

func (s *Supervisor) stopAllLocked() {
	var g errgroup.Group
	for _, c := range s.channels {
		g.Go(func() error {
			if err := c.Stop(); err != nil && !errors.Is(err, channel.ErrNotRunning) {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.log.WithError(err).Error("Failed to stop channel")
	}
}

// Reconcile joins the readers that died on their own and returns the ids of
// their channels.
func (s *Supervisor) Reconcile() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for _, c := range s.channels {
		if c.Reconcile() {
			ids = append(ids, c.Port())
		}
	}
	return ids
}

// Watch calls Reconcile every interval until ctx is done and passes the ids
// of channels that stopped on their own to onStopped.
func (s *Supervisor) Watch(ctx context.Context, interval time.Duration, onStopped func(ids []string)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ids := s.Reconcile(); len(ids) > 0 && onStopped != nil {
				onStopped(ids)
			}
		}
	}
}

func (s *Supervisor) indexLocked(id string) int {
	return slices.IndexFunc(s.channels, func(c *channel.Controller) bool {
		return c.Port() == id
	})
}

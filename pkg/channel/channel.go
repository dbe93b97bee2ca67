// Package channel runs the ingestion pipeline of a single telemetry device:
// it owns the device settings, the sample history and the background reader
// that turns the device byte stream into samples.
package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/itohio/comview/pkg/config"
	"github.com/itohio/comview/pkg/device"
	"github.com/itohio/comview/pkg/sample"
)

const (
	// DefaultReadTimeout is the device poll interval. The reader checks for
	// cancellation once per poll.
	DefaultReadTimeout = 10 * time.Millisecond
	// ReadBufferSize is the number of bytes requested per device read.
	ReadBufferSize = 256
)

var (
	// ErrRunning is returned for operations that require a stopped channel.
	ErrRunning = errors.New("channel is running")
	// ErrNotRunning is returned by Stop on a stopped channel.
	ErrNotRunning = errors.New("channel is not running")
	// ErrNoDevice is returned by Start when no port is configured.
	ErrNoDevice = errors.New("no device selected")
)

// Controller owns one device's settings, its sample Buffer and the
// lifecycle of its reader goroutine.
//
// A reader exists and its context is live iff the channel is running. A
// reader that stopped on its own after a fatal read error is joined lazily
// by the next call that looks at the running state.
//
// lifecycle serializes Start, Stop and SetConfig, and is held while a device
// is opened or a reader is joined. mu guards the fields and is never held
// across blocking calls, so accessors stay responsive during a Stop.
type Controller struct {
	opener      device.Opener
	readTimeout time.Duration
	buf         *sample.Buffer
	log         *logrus.Entry

	lifecycle sync.Mutex

	mu      sync.Mutex
	cfg     config.ChannelConfig
	session *session // non-nil iff running
	readErr error    // fatal error that ended the last session, if any
}

// session is one run of the reader goroutine.
type session struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{} // closed after the reader exited and closed the port
	err    error         // written by the reader before done is closed

	stopping bool // Stop is joining the reader; guarded by Controller.mu
}

// Option configures a Controller.
type Option func(*Controller)

// WithReadTimeout sets the device poll interval.
func WithReadTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.readTimeout = d
		}
	}
}

// WithLogger sets the logger the controller derives its entries from.
func WithLogger(log *logrus.Logger) Option {
	return func(c *Controller) {
		if log != nil {
			c.log = logrus.NewEntry(log)
		}
	}
}

// New creates a stopped Controller for cfg keeping lookBehind samples.
func New(cfg config.ChannelConfig, lookBehind int, opener device.Opener, opts ...Option) *Controller {
	c := &Controller{
		opener:      opener,
		readTimeout: DefaultReadTimeout,
		buf:         sample.NewBuffer(lookBehind),
		log:         logrus.NewEntry(logrus.StandardLogger()),
		cfg:         cfg,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.WithField("device", cfg.Port)
	return c
}

// Port returns the device identifier of the channel.
func (c *Controller) Port() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.Port
}

// Config returns a copy of the channel settings.
func (c *Controller) Config() config.ChannelConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// SetConfig replaces the channel settings. It fails with ErrRunning while
// the channel runs and with a validation error for invalid settings. The
// device identifier cannot be changed.
func (c *Controller) SetConfig(cfg config.ChannelConfig) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reconcileLocked()
	if c.session != nil {
		return ErrRunning
	}
	if cfg.Port != c.cfg.Port {
		return fmt.Errorf("cannot move channel %s to %s", c.cfg.Port, cfg.Port)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	c.cfg = cfg
	return nil
}

// DisplayRange returns the range the channel's samples are plotted against.
func (c *Controller) DisplayRange() config.Range {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.DisplayRange()
}

// Samples returns the current sample history, oldest first.
// The returned slice must not be modified.
func (c *Controller) Samples() []float64 {
	return c.buf.Snapshot()
}

// SetLookBehind changes how many samples are kept. Allowed while running.
func (c *Controller) SetLookBehind(n int) {
	c.buf.SetCapacity(n)
}

// ClearSamples drops the sample history.
func (c *Controller) ClearSamples() {
	c.buf.Clear()
}

// IsRunning reports whether the reader is active. A reader that has died
// is joined first, so a channel whose device vanished reports false.
func (c *Controller) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reconcileLocked()
	return c.session != nil
}

// Reconcile joins a reader that exited on its own and reports whether it
// did so.
func (c *Controller) Reconcile() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconcileLocked()
}

// Err returns the read error that ended the last session, or nil.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reconcileLocked()
	return c.readErr
}

// Start opens the device and launches the reader. The channel stays stopped
// if the device cannot be opened.
func (c *Controller) Start() error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	c.reconcileLocked()
	running := c.session != nil
	cfg := c.cfg
	c.mu.Unlock()

	if running {
		return ErrRunning
	}
	if cfg.Port == "" {
		return ErrNoDevice
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	port, err := c.opener.Open(cfg.Port, cfg.BaudRate, c.readTimeout)
	if err != nil {
		return fmt.Errorf("failed to start %s: %w", cfg.Port, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &session{
		id:     uuid.NewString(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	log := c.log.WithField("session", s.id)

	r := &reader{
		port:      port,
		buf:       c.buf,
		transform: sample.Transform(cfg),
		log:       log,
	}
	go func() {
		defer close(s.done)
		s.err = r.run(ctx)
	}()

	c.mu.Lock()
	c.session = s
	c.readErr = nil
	c.mu.Unlock()

	log.WithField("baud", cfg.BaudRate).Info("Channel started")
	return nil
}

// Stop signals the reader to exit and blocks until it has exited and the
// device is closed. The channel reports running until then.
func (c *Controller) Stop() error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	if c.reconcileLocked() || c.session == nil {
		c.mu.Unlock()
		return ErrNotRunning
	}
	s := c.session
	s.stopping = true
	c.mu.Unlock()

	s.cancel()
	<-s.done

	c.mu.Lock()
	c.session = nil
	c.readErr = s.err
	c.mu.Unlock()

	c.log.WithField("session", s.id).Info("Channel stopped")
	return nil
}

// reconcileLocked joins a reader that has already exited. Sessions being
// joined by Stop are left to it. Must hold c.mu.
func (c *Controller) reconcileLocked() bool {
	s := c.session
	if s == nil || s.stopping {
		return false
	}
	select {
	case <-s.done:
	default:
		return false
	}

	s.cancel()
	c.session = nil
	c.readErr = s.err
	c.log.WithField("session", s.id).WithError(s.err).Warn("Reader exited, channel stopped")
	return true
}

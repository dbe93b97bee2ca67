package device

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/itohio/comview/pkg/config"
)

// Mock simulates a set of telemetry devices for testing and development.
// Each opened port emits one "value\n" line per SampleRate following a
// sine wave with a little deterministic noise.
type Mock struct {
	cfg *config.MockConfig

	mu        sync.Mutex
	open      map[string]*mockPort
	unplugged map[string]bool
}

// NewMock creates a new mock device set. cfg is copied.
func NewMock(cfg *config.MockConfig) *Mock {
	if cfg != nil {
		c := *cfg
		c.Ports = slices.Clone(cfg.Ports)
		cfg = &c
	} else {
		cfg = &config.MockConfig{
			Ports:      []string{"MOCK0"},
			Amplitude:  400,
			Offset:     512,
			Period:     2 * time.Second,
			NoiseLevel: 10,
			SampleRate: 10 * time.Millisecond,
		}
	}

	return &Mock{
		cfg:       cfg,
		open:      make(map[string]*mockPort),
		unplugged: make(map[string]bool),
	}
}

// List returns the configured ports that are currently plugged in.
func (m *Mock) List() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]string, 0, len(m.cfg.Ports))
	for _, name := range m.cfg.Ports {
		if !m.unplugged[name] {
			result = append(result, name)
		}
	}
	return result, nil
}

// Open opens a simulated port. Like a real serial port it can be opened only
// once at a time.
func (m *Mock) Open(name string, baudRate int, readTimeout time.Duration) (Port, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !slices.Contains(m.cfg.Ports, name) || m.unplugged[name] {
		return nil, fmt.Errorf("failed to open mock port %s: no such device", name)
	}
	if _, busy := m.open[name]; busy {
		return nil, fmt.Errorf("failed to open mock port %s: device busy", name)
	}
	if baudRate <= 0 {
		return nil, fmt.Errorf("failed to open mock port %s: invalid baud rate %d", name, baudRate)
	}

	now := time.Now()
	p := &mockPort{
		mock:      m,
		name:      name,
		timeout:   readTimeout,
		startTime: now,
		next:      now,
		closed:    make(chan struct{}),
		unplug:    make(chan struct{}),
	}
	m.open[name] = p
	return p, nil
}

// Unplug simulates removing a device: it disappears from List and an open
// port fails its next Read.
func (m *Mock) Unplug(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.unplugged[name] = true
	if p, ok := m.open[name]; ok {
		p.unplugOnce.Do(func() { close(p.unplug) })
	}
}

// Plug reverses Unplug.
func (m *Mock) Plug(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.unplugged, name)
}

// IsOpen reports whether the named port is currently open.
func (m *Mock) IsOpen(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.open[name]
	return ok
}

func (m *Mock) release(p *mockPort) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.open[p.name] == p {
		delete(m.open, p.name)
	}
}

// mockPort is a single open simulated connection.
type mockPort struct {
	mock    *Mock
	name    string
	timeout time.Duration

	// Only touched by the reading goroutine
	startTime time.Time
	next      time.Time
	pending   []byte

	closeOnce  sync.Once
	closed     chan struct{}
	unplugOnce sync.Once
	unplug     chan struct{}
}

// Read waits up to the read timeout for the next simulated line.
func (p *mockPort) Read(b []byte) (int, error) {
	select {
	case <-p.closed:
		return 0, ErrClosed
	case <-p.unplug:
		return 0, fmt.Errorf("mock port %s: device disconnected", p.name)
	default:
	}

	if len(p.pending) == 0 {
		wait := time.Until(p.next)
		timedOut := false
		if wait > p.timeout {
			wait = p.timeout
			timedOut = true
		}

		if wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-p.closed:
				timer.Stop()
				return 0, ErrClosed
			case <-p.unplug:
				timer.Stop()
				return 0, fmt.Errorf("mock port %s: device disconnected", p.name)
			case <-timer.C:
			}
		}
		if timedOut {
			return 0, ErrTimeout
		}

		p.pending = p.generateLine(p.next)
		p.next = p.next.Add(max(p.mock.cfg.SampleRate, time.Millisecond))
	}

	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

// Close closes the simulated connection. It is safe to call more than once.
func (p *mockPort) Close() error {
	p.closeOnce.Do(func() {
		close(p.closed)
		p.mock.release(p)
	})
	return nil
}

// generateLine renders the simulated value at time at.
func (p *mockPort) generateLine(at time.Time) []byte {
	cfg := p.mock.cfg
	elapsed := at.Sub(p.startTime).Seconds()

	value := cfg.Offset
	if cfg.Period > 0 {
		value += cfg.Amplitude * math.Sin(2*math.Pi*elapsed/cfg.Period.Seconds())
	}

	// Deterministic noise, same as two beating oscillators
	noise := (math.Sin(elapsed*1000) + math.Cos(elapsed*1300)) * cfg.NoiseLevel * 0.5
	value += noise

	line := strconv.AppendFloat(nil, value, 'f', 3, 64)
	return append(line, '\n')
}

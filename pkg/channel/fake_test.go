package channel

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/itohio/comview/pkg/device"
)

// fakeOpener hands out scripted ports and tracks how many are open at once.
type fakeOpener struct {
	mu      sync.Mutex
	ports   []*fakePort
	openErr error
	opens   int

	// closeGate, when set, holds every Close until it is closed
	closeGate chan struct{}

	open    atomic.Int32
	maxOpen atomic.Int32
}

func (o *fakeOpener) Open(name string, baudRate int, readTimeout time.Duration) (device.Port, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.openErr != nil {
		return nil, o.openErr
	}
	o.opens++

	n := o.open.Add(1)
	for {
		m := o.maxOpen.Load()
		if n <= m || o.maxOpen.CompareAndSwap(m, n) {
			break
		}
	}

	p := &fakePort{
		opener:  o,
		name:    name,
		baud:    baudRate,
		timeout: readTimeout,
		data:    make(chan []byte, 64),
		fail:    make(chan error, 1),
		closed:  make(chan struct{}),
		gate:    o.closeGate,
	}
	o.ports = append(o.ports, p)
	return p, nil
}

func (o *fakeOpener) last() *fakePort {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.ports) == 0 {
		return nil
	}
	return o.ports[len(o.ports)-1]
}

// fakePort delivers chunks pushed with send, one per Read, and times out
// after the configured read timeout when nothing is queued.
type fakePort struct {
	opener  *fakeOpener
	name    string
	baud    int
	timeout time.Duration

	data   chan []byte
	fail   chan error
	reads  atomic.Int32
	once   sync.Once
	closed chan struct{}

	gate        chan struct{}
	closeCalled atomic.Bool
}

func (p *fakePort) send(chunks ...string) {
	for _, c := range chunks {
		p.data <- []byte(c)
	}
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.reads.Add(1)
	select {
	case <-p.closed:
		return 0, device.ErrClosed
	default:
	}

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case chunk := <-p.data:
		if len(chunk) > len(b) {
			panic(fmt.Sprintf("chunk of %d bytes exceeds read buffer", len(chunk)))
		}
		return copy(b, chunk), nil
	case err := <-p.fail:
		return 0, err
	case <-timer.C:
		return 0, device.ErrTimeout
	}
}

func (p *fakePort) Close() error {
	p.once.Do(func() {
		p.closeCalled.Store(true)
		if p.gate != nil {
			<-p.gate
		}
		// Simulate a slow driver close
		time.Sleep(5 * time.Millisecond)
		p.opener.open.Add(-1)
		close(p.closed)
	})
	return nil
}

func (p *fakePort) isClosed() bool {
	select {
	case <-p.closed:
		return true
	default:
		return false
	}
}

var errUnplugged = errors.New("device unplugged")

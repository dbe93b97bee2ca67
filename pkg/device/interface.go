package device

import (
	"errors"
	"time"
)

var (
	// ErrTimeout is returned by Port.Read when no bytes arrived within the
	// read timeout. It is the polling tick of a reader, not a failure.
	ErrTimeout = errors.New("read timeout")
	// ErrClosed is returned by Port.Read after Close.
	ErrClosed = errors.New("port closed")
)

// Port is an open connection to a telemetry device.
type Port interface {
	// Read reads up to len(p) bytes, waiting at most the timeout given to
	// Opener.Open. It returns ErrTimeout when nothing arrived.
	Read(p []byte) (int, error)
	Close() error
}

// Opener opens device connections.
type Opener interface {
	Open(name string, baudRate int, readTimeout time.Duration) (Port, error)
}

// Enumerator lists the identifiers of the devices currently available.
type Enumerator interface {
	List() ([]string, error)
}

// Ensure Serial implements Opener and Enumerator.
var (
	_ Opener     = Serial{}
	_ Enumerator = Serial{}
)

// Ensure Mock implements Opener and Enumerator.
var (
	_ Opener     = (*Mock)(nil)
	_ Enumerator = (*Mock)(nil)
)

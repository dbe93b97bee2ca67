package device

import (
	"fmt"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// PortInfo describes a serial port for display in a port picker.
type PortInfo struct {
	Name        string
	Description string
}

// Serial opens and lists real serial ports.
type Serial struct{}

// Open opens the named serial port with 8N1 framing at baudRate. Reads on the
// returned Port wait at most readTimeout.
func (Serial) Open(name string, baudRate int, readTimeout time.Duration) (Port, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
	}

	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}

	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", name, err)
	}

	return &serialPort{port: port}, nil
}

// List returns the names of the available serial ports.
func (Serial) List() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return ports, nil
}

// Ports returns the available serial ports with USB product details where
// the platform provides them.
func Ports() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		// Fall back to plain names
		names, err := Serial{}.List()
		if err != nil {
			return nil, err
		}
		result := make([]PortInfo, 0, len(names))
		for _, name := range names {
			result = append(result, PortInfo{Name: name, Description: name})
		}
		return result, nil
	}

	result := make([]PortInfo, 0, len(details))
	for _, d := range details {
		result = append(result, PortInfo{
			Name:        d.Name,
			Description: describe(d),
		})
	}
	return result, nil
}

func describe(d *enumerator.PortDetails) string {
	if !d.IsUSB {
		return d.Name
	}
	if d.Product != "" {
		return fmt.Sprintf("%s (%s)", d.Name, d.Product)
	}
	return fmt.Sprintf("%s (USB %s:%s)", d.Name, d.VID, d.PID)
}

// serialPort adapts serial.Port to Port.
type serialPort struct {
	port serial.Port
}

// Read translates the zero-byte return of an expired read timeout into
// ErrTimeout.
func (p *serialPort) Read(b []byte) (int, error) {
	n, err := p.port.Read(b)
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, ErrTimeout
	}
	return n, nil
}

func (p *serialPort) Close() error {
	return p.port.Close()
}

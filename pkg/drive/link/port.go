package link

import (
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// Port abstracts the serial byte stream. Read must honor a bounded
// read timeout, returning (0, nil) or io.EOF when no data arrived,
// so a Query deadline can be enforced without cancellation.
type Port interface {
	io.ReadWriteCloser

	// Flush discards unread input so stale replies from timed-out
	// exchanges are never misread as current ones.
	Flush() error
}

// PortOpener opens a Port. Used by the Link to (re)open its port
// during initialization and recovery.
type PortOpener func() (Port, error)

// Config holds serial port configuration.
type Config struct {
	// Device path, e.g. /dev/ttyACM0.
	Device string
	// Baud rate. The motor controller talks at 115200.
	Baud int
	// ReadTimeout bounds a single Read on the port. It only needs
	// to be short enough for the Query deadline to be checked at a
	// reasonable granularity.
	ReadTimeout time.Duration
}

// DefaultBaud is the controller's fixed UART baud rate.
const DefaultBaud = 115200

type nativePort struct {
	port *serial.Port
}

// Open opens a native serial port.
func Open(conf *Config) (Port, error) {
	baud := conf.Baud
	if baud == 0 {
		baud = DefaultBaud
	}
	readTimeout := conf.ReadTimeout
	if readTimeout == 0 {
		readTimeout = 20 * time.Millisecond
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        conf.Device,
		Baud:        baud,
		ReadTimeout: readTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %v", conf.Device, err)
	}
	return &nativePort{port: port}, nil
}

// Opener returns a PortOpener for the config.
func (c *Config) Opener() PortOpener {
	return func() (Port, error) { return Open(c) }
}

func (p *nativePort) Read(b []byte) (int, error)  { return p.port.Read(b) }
func (p *nativePort) Write(b []byte) (int, error) { return p.port.Write(b) }
func (p *nativePort) Close() error                { return p.port.Close() }
func (p *nativePort) Flush() error                { return p.port.Flush() }

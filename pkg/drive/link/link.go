// Package link owns the serial byte stream to the motor controller
// and frames the line-delimited ASCII exchanges on it. Commands are
// opaque text; interpretation belongs to the axis layer.
//
// The protocol is strictly synchronous: one request, then at most one
// reply. The Link has exactly one owner and is never shared between
// goroutines.
package link

import (
	"io"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/golang/glog"
)

// DefaultTimeout bounds a Query waiting for its reply line. A blocked
// Query cannot be interrupted mid-flight, so the default keeps the
// worst-case control-loop stall short.
const DefaultTimeout = 200 * time.Millisecond

// maxReplyLen bounds a reply line. The longest legitimate replies are
// short feedback pairs; anything longer is a babbling controller.
const maxReplyLen = 256

// Link provides synchronous command/response exchange over a Port.
type Link struct {
	Timeout time.Duration

	open PortOpener
	port Port
}

// New creates a Link and opens its port.
func New(open PortOpener) (*Link, error) {
	port, err := open()
	if err != nil {
		return nil, err
	}
	return &Link{Timeout: DefaultTimeout, open: open, port: port}, nil
}

// Send writes a command terminated by a line break. No reply is expected.
func (l *Link) Send(command string) error {
	if l.port == nil {
		return ErrClosed
	}
	glog.V(3).Infof("TX %q", command)
	_, err := l.port.Write([]byte(command + "\n"))
	return err
}

// Query writes a command and blocks up to Timeout reading one
// line-delimited reply. Unread input is discarded first so a stale
// reply from a previous timed-out exchange can never be misread as
// the answer to this command.
func (l *Link) Query(command string) (string, error) {
	if l.port == nil {
		return "", ErrClosed
	}
	if err := l.port.Flush(); err != nil {
		return "", err
	}
	if err := l.Send(command); err != nil {
		return "", err
	}
	timeout := l.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	deadline := time.Now().Add(timeout)

	var line []byte
	buf := make([]byte, 1)
	for {
		n, err := l.port.Read(buf)
		if n > 0 {
			switch buf[0] {
			case '\n':
				reply, ok := decodeLine(line)
				if !ok {
					return "", &GarbledError{Reply: line}
				}
				glog.V(3).Infof("RX %q", reply)
				return reply, nil
			case '\r':
			default:
				line = append(line, buf[0])
				if len(line) >= maxReplyLen {
					return "", &GarbledError{Reply: line}
				}
			}
		} else if err != nil && err != io.EOF {
			// A port read timeout surfaces as (0, nil) or io.EOF;
			// anything else is a transport fault.
			return "", err
		}
		// Checked on every iteration: a controller streaming bytes
		// without a line break must not hold the loop past the
		// deadline.
		if time.Now().After(deadline) {
			glog.Warningf("no reply for %q within %v", command, timeout)
			return "", ErrTimeout
		}
	}
}

// Reopen closes the current port and opens a fresh one. Used by the
// recovery procedure after the controller reboots.
func (l *Link) Reopen() error {
	if l.port != nil {
		l.port.Close()
		l.port = nil
	}
	port, err := l.open()
	if err != nil {
		return err
	}
	l.port = port
	return nil
}

// Close implements io.Closer.
func (l *Link) Close() error {
	if l.port == nil {
		return nil
	}
	err := l.port.Close()
	l.port = nil
	return err
}

func decodeLine(line []byte) (string, bool) {
	if !utf8.Valid(line) {
		return "", false
	}
	s := string(line)
	for _, r := range s {
		if !unicode.IsPrint(r) && r != '\t' {
			return "", false
		}
	}
	return strings.TrimSpace(s), true
}

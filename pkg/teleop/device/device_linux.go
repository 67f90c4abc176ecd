// +build linux

package device

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"syscall"
	"unsafe"
)

// Gamepad is an open joystick device node.
type Gamepad struct {
	file    *os.File
	index   int
	name    string
	axes    uint8
	buttons uint8
}

const (
	iocGAXES    uint = 0x80016a11
	iocGBUTTONS uint = 0x80016a12
	iocGNAME    uint = 0x80ff6a13

	flagInit uint8 = 0x80
)

// Open opens /dev/input/js<index>.
func Open(index int) (*Gamepad, error) {
	f, err := os.OpenFile(fmt.Sprintf("/dev/input/js%d", index), os.O_RDONLY, 0666)
	if err != nil {
		return nil, err
	}
	g := &Gamepad{file: f, index: index}
	if err := g.describe(); err != nil {
		f.Close()
		return nil, err
	}
	return g, nil
}

// Detect opens the first present device at or after startIndex. A nil
// Gamepad with nil error means nothing is attached.
func Detect(startIndex int) (*Gamepad, error) {
	for index := startIndex; index < 256; index++ {
		g, err := Open(index)
		if os.IsNotExist(err) {
			continue
		}
		return g, err
	}
	return nil, nil
}

func (g *Gamepad) describe() error {
	if errno := g.ioctl(iocGAXES, unsafe.Pointer(&g.axes)); errno != 0 {
		return errno
	}
	if errno := g.ioctl(iocGBUTTONS, unsafe.Pointer(&g.buttons)); errno != 0 {
		return errno
	}
	var buf [256]byte
	if errno := g.ioctl(iocGNAME, unsafe.Pointer(&buf)); errno != 0 {
		return errno
	}
	g.name = string(buf[:])
	if pos := bytes.IndexByte(buf[:], 0); pos >= 0 {
		g.name = string(buf[:pos])
	}
	return nil
}

// Index returns the device index on the system.
func (g *Gamepad) Index() int { return g.index }

// Name returns the device name reported by the kernel.
func (g *Gamepad) Name() string { return g.name }

// AxisCount returns the number of axes.
func (g *Gamepad) AxisCount() int { return int(g.axes) }

// ButtonCount returns the number of buttons.
func (g *Gamepad) ButtonCount() int { return int(g.buttons) }

// Close implements io.Closer.
func (g *Gamepad) Close() error { return g.file.Close() }

// ReadEvent blocks until the next event. Events of unknown kinds are
// skipped.
func (g *Gamepad) ReadEvent() (Event, error) {
	var buf [8]byte
	for {
		if _, err := g.file.Read(buf[:]); err != nil {
			return Event{}, err
		}
		kind := buf[6]
		ev := Event{
			Kind:  EventKind(kind &^ flagInit),
			Index: int(buf[7]),
			Value: int16(binary.LittleEndian.Uint16(buf[4:6])),
			Init:  kind&flagInit != 0,
		}
		if ev.Kind == KindButton || ev.Kind == KindAxis {
			return ev, nil
		}
	}
}

func (g *Gamepad) ioctl(req uint, ptr unsafe.Pointer) syscall.Errno {
	_, _, err := syscall.Syscall(syscall.SYS_IOCTL, uintptr(g.file.Fd()), uintptr(req), uintptr(ptr))
	return err
}

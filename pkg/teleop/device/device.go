// Package device reads events from gamepads attached through the
// kernel joystick interface.
package device

// EventKind discriminates gamepad events.
type EventKind uint8

// Event kinds.
const (
	KindButton EventKind = 1
	KindAxis   EventKind = 2
)

// Event is one state change reported by the gamepad. Axis values
// range -32767..32767; button values are 0 or 1. Init events replay
// the current state right after open.
type Event struct {
	Kind  EventKind
	Index int
	Value int16
	Init  bool
}

// Pressed reports a button event as pressed.
func (e Event) Pressed() bool { return e.Value != 0 }

// Normalized maps an axis value into -1.0..1.0.
func (e Event) Normalized() float64 { return float64(e.Value) / 32767 }

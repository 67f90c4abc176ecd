// Package axis maps semantic motor operations onto the controller's
// line commands, scoped to one of the two motor axes. The direction
// sign is applied here so positive robot-frame motion is consistent
// regardless of physical motor wiring.
package axis

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/golang/glog"
)

// Conn is the synchronous command/response channel to the hardware.
// Implemented by *link.Link.
type Conn interface {
	Send(command string) error
	Query(command string) (string, error)
}

// ControlMode selects what quantity the controller servos.
type ControlMode int

// Control modes as written to the control_mode register.
const (
	Voltage ControlMode = iota
	Torque
	Velocity
	Position
)

func (m ControlMode) String() string {
	switch m {
	case Voltage:
		return "voltage"
	case Torque:
		return "torque"
	case Velocity:
		return "velocity"
	case Position:
		return "position"
	}
	return fmt.Sprintf("control_mode(%d)", int(m))
}

// InputMode selects the hardware-side setpoint shaping.
type InputMode int

// Input modes as written to the input_mode register.
const (
	// InputVelRamp ramps toward the setpoint at vel_ramp_rate.
	InputVelRamp InputMode = 1
	// InputPassthrough applies the setpoint immediately.
	InputPassthrough InputMode = 2
)

// Requested axis states.
const (
	stateIdle       = 1
	stateClosedLoop = 8
)

// ErrorUnknown is reported when the error register cannot be read or
// parsed. It must be treated as a fault, never as "no error".
const ErrorUnknown = -1

// torqueBiasNm compensates static friction and gear backlash near
// zero torque.
const torqueBiasNm = 0.05

// Role identifies which wheel an axis drives.
type Role int

// Axis roles.
const (
	Left Role = iota
	Right
)

func (r Role) String() string {
	if r == Right {
		return "right"
	}
	return "left"
}

// Controller issues commands for one axis over a shared Conn.
// The index, direction and role are calibration constants fixed at
// construction; the control mode and idle flag are the only mutable
// state and change solely through explicit commands.
type Controller struct {
	conn      Conn
	index     int
	direction float64
	role      Role

	mode ControlMode
	idle bool
}

// New creates a Controller for one axis. direction must be +1 or -1.
func New(conn Conn, index int, direction int, role Role) (*Controller, error) {
	if direction != 1 && direction != -1 {
		return nil, fmt.Errorf("axis %d: direction must be +1 or -1, got %d", index, direction)
	}
	return &Controller{
		conn:      conn,
		index:     index,
		direction: float64(direction),
		role:      role,
	}, nil
}

// Index returns the hardware axis index.
func (c *Controller) Index() int { return c.index }

// Role returns the wheel this axis drives.
func (c *Controller) Role() Role { return c.role }

// Mode returns the last configured control mode.
func (c *Controller) Mode() ControlMode { return c.mode }

// Idle indicates the axis has been explicitly commanded into idle.
func (c *Controller) Idle() bool { return c.idle }

// ConfigureMode writes the control-mode and input-mode registers.
// Two writes, no read-back: the hardware is trusted to accept them.
func (c *Controller) ConfigureMode(mode ControlMode, input InputMode) error {
	if err := c.Send("w axis%d.controller.config.control_mode %d", int(mode)); err != nil {
		return err
	}
	if err := c.Send("w axis%d.controller.config.input_mode %d", int(input)); err != nil {
		return err
	}
	c.mode = mode
	glog.Infof("axis %d (%s): %s mode, input_mode %d", c.index, c.role, mode, int(input))
	return nil
}

// SetVelocity writes the velocity setpoint in rotations/sec. Range
// clipping is the caller's responsibility.
func (c *Controller) SetVelocity(rps float64) error {
	return c.Send("w axis%d.controller.input_vel %.4f", rps*c.direction)
}

// SetVelocityRPM is SetVelocity with the setpoint in RPM.
func (c *Controller) SetVelocityRPM(rpm float64) error {
	return c.SetVelocity(rpm / 60)
}

// SetTorque writes the torque setpoint in N·m and latches it. A small
// fixed bias in the direction of motion compensates static friction.
func (c *Controller) SetTorque(nm float64) error {
	bias := torqueBiasNm * c.direction
	if nm < 0 {
		bias = -bias
	}
	if err := c.Send("c %d %.4f", nm*c.direction+bias); err != nil {
		return err
	}
	// Torque input latches only on an explicit update pulse.
	return c.Send("u %d")
}

// PositionVelocity queries the combined feedback pair: position in
// turns and velocity in rotations/sec, direction applied to both.
func (c *Controller) PositionVelocity() (positionTurns, velocityRPS float64, err error) {
	reply, err := c.Query("f %d")
	if err != nil {
		return 0, 0, err
	}
	fields := strings.Fields(reply)
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("axis %d: malformed feedback %q", c.index, reply)
	}
	pos, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("axis %d: bad position in %q: %v", c.index, reply, err)
	}
	vel, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("axis %d: bad velocity in %q: %v", c.index, reply, err)
	}
	return pos * c.direction, vel * c.direction, nil
}

// ErrorCode queries the axis error register. The reply may be
// formatted as hex or decimal text; non-digit characters are stripped
// before parsing. An unparseable reply yields ErrorUnknown, which
// callers must treat as a fault.
func (c *Controller) ErrorCode() (int, error) {
	reply, err := c.Query("r axis%d.error")
	if err != nil {
		return ErrorUnknown, err
	}
	code, ok := parseErrorCode(reply)
	if !ok {
		glog.Warningf("axis %d: unexpected error register %q", c.index, reply)
		return ErrorUnknown, nil
	}
	return code, nil
}

// ClearErrors writes zero to the error register and re-requests
// closed-loop control. The axis is no longer idle afterwards.
func (c *Controller) ClearErrors() error {
	if err := c.Send("w axis%d.error 0"); err != nil {
		return err
	}
	if err := c.Send("w axis%d.requested_state %d", stateClosedLoop); err != nil {
		return err
	}
	c.idle = false
	return nil
}

// Start requests closed-loop control.
func (c *Controller) Start() error {
	if err := c.Send("w axis%d.requested_state %d", stateClosedLoop); err != nil {
		return err
	}
	c.idle = false
	return nil
}

// SetIdle fully de-energizes the axis. No velocity or torque command
// may be issued until ClearErrors or a recovery re-arms it.
func (c *Controller) SetIdle() error {
	if err := c.Send("w axis%d.requested_state %d", stateIdle); err != nil {
		return err
	}
	c.idle = true
	glog.V(1).Infof("axis %d (%s) idle", c.index, c.role)
	return nil
}

// SetCurrentLimit sets the motor current limit in amps.
func (c *Controller) SetCurrentLimit(amps float64) error {
	return c.Send("w axis%d.motor.config.current_lim %.1f", amps)
}

// SetVelocityLimit sets the controller velocity limit in turns/sec.
func (c *Controller) SetVelocityLimit(rps float64) error {
	return c.Send("w axis%d.controller.config.vel_limit %.1f", rps)
}

// ConfigureVelRamp sets the acceleration used in InputVelRamp mode,
// in rotations/sec².
func (c *Controller) ConfigureVelRamp(rate float64) error {
	return c.Send("w axis%d.controller.config.vel_ramp_rate %.3f", rate)
}

// VelRampRate reads back the configured ramp rate. Diagnostics only.
func (c *Controller) VelRampRate() (float64, error) {
	reply, err := c.Query("r axis%d.controller.config.vel_ramp_rate")
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(reply, 64)
}

// SetWatchdog enables or disables the hardware command watchdog.
func (c *Controller) SetWatchdog(enabled bool) error {
	v := 0
	if enabled {
		v = 1
	}
	return c.Send("w axis%d.config.enable_watchdog %d", v)
}

// Send formats a command with the axis index as the first argument
// and writes it with no reply expected.
func (c *Controller) Send(format string, args ...interface{}) error {
	return c.conn.Send(fmt.Sprintf(format, prepend(c.index, args)...))
}

// Query formats a command with the axis index as the first argument
// and reads one reply line.
func (c *Controller) Query(format string, args ...interface{}) (string, error) {
	return c.conn.Query(fmt.Sprintf(format, prepend(c.index, args)...))
}

func prepend(index int, args []interface{}) []interface{} {
	return append([]interface{}{index}, args...)
}

func parseErrorCode(reply string) (int, bool) {
	var digits strings.Builder
	for _, r := range reply {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return 0, false
	}
	code, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0, false
	}
	return code, true
}

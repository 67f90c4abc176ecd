// Package drive is the velocity command-and-supervise layer sitting
// directly above the dual-axis motor controller. It converts body
// velocity intents into per-axis commands, polls controller health,
// and recovers the hardware on faults without ever propagating an
// error to the caller: a crashed control process is strictly worse
// for a moving robot than an idle one.
package drive

import (
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/David-Feldt/waffle-car/pkg/drive/axis"
	"github.com/David-Feldt/waffle-car/pkg/drive/kinematics"
	"github.com/David-Feldt/waffle-car/pkg/drive/link"
	fx "github.com/David-Feldt/waffle-car/pkg/framework"
)

// State of the facade.
type State int

// Facade states. Recovering is transient: it exits to Active on
// success or back to Uninitialized for a retry on the next command.
const (
	Uninitialized State = iota
	Active
	Idle
	Recovering
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Idle:
		return "idle"
	case Recovering:
		return "recovering"
	}
	return "uninitialized"
}

// MotorControl is the single entry point for drivetrain control.
// It is owned by one control-loop goroutine; none of its methods
// are safe for concurrent use.
type MotorControl struct {
	conf  Config
	link  *link.Link
	left  *axis.Controller
	right *axis.Controller

	state State

	// Smoothing state: exponentially approaches the latest target.
	currentLinear  float64
	currentAngular float64

	// Monotonic command counter driving the health-check cadence.
	cycle uint64
}

// New creates the facade over an open link and runs the initial
// reset-and-initialize sequence. Initialization failures are logged,
// not returned: the first command retries recovery.
func New(conf *Config, l *link.Link) (*MotorControl, error) {
	left, err := axis.New(l, conf.LeftAxis, conf.LeftDir, axis.Left)
	if err != nil {
		return nil, err
	}
	right, err := axis.New(l, conf.RightAxis, conf.RightDir, axis.Right)
	if err != nil {
		return nil, err
	}
	m := &MotorControl{conf: *conf, link: l, left: left, right: right}
	// Hand-built configs may leave these zero. A zero check cadence
	// would divide by zero; a zero smoothing factor would pin every
	// wheel target at zero while reporting active.
	if m.conf.HealthCheckEvery == 0 {
		m.conf.HealthCheckEvery = defaultConfig.HealthCheckEvery
	}
	if m.conf.Smoothing <= 0 || m.conf.Smoothing > 1 {
		m.conf.Smoothing = defaultConfig.Smoothing
	}
	glog.Infof("motor control: axes left=%d(dir %+d) right=%d(dir %+d), wheel radius %.4fm, track %.3fm",
		conf.LeftAxis, conf.LeftDir, conf.RightAxis, conf.RightDir,
		conf.WheelRadiusM, conf.TrackWidthM)
	m.recover("startup")
	return m, nil
}

// State returns the current facade state.
func (m *MotorControl) State() State { return m.state }

// Conf returns a copy of the effective configuration.
func (m *MotorControl) Conf() Config { return m.conf }

// Left exposes the left axis for bench tooling.
func (m *MotorControl) Left() *axis.Controller { return m.left }

// Right exposes the right axis for bench tooling.
func (m *MotorControl) Right() *axis.Controller { return m.right }

// SetVelocity commands a body-frame velocity. It never returns an
// error: faults are handled by recovery and the caller only observes
// a dropped command.
func (m *MotorControl) SetVelocity(linearMPS, angularRadPS float64) {
	// Zero intent fully de-energizes the drivetrain instead of
	// holding zero velocity under closed-loop control.
	if linearMPS == 0 && angularRadPS == 0 {
		if m.state != Idle {
			glog.V(1).Info("zero velocity and yaw, stopping all movement")
			m.Stop()
		}
		return
	}

	if m.state == Uninitialized || m.state == Recovering {
		m.recover("command before initialization")
		return
	}

	if m.state == Idle {
		if err := m.rearm(); err != nil {
			m.EmergencyStop(fmt.Sprintf("re-arm failed: %v", err))
			m.recover("re-arm failed")
			return
		}
		m.state = Active
	}

	m.cycle++
	if m.cycle%m.conf.HealthCheckEvery == 0 {
		if reason, faulted := m.checkHealth(); faulted {
			m.left.DumpErrors()
			m.right.DumpErrors()
			m.EmergencyStop(reason)
			m.recover(reason)
			// The triggering command is dropped, not retried.
			return
		}
	}

	linearMPS = kinematics.Clip(linearMPS, m.conf.MaxLinearMPS)
	angularRadPS = kinematics.Clip(angularRadPS, m.conf.MaxAngularRadPS)
	m.currentLinear += (linearMPS - m.currentLinear) * m.conf.Smoothing
	m.currentAngular += (angularRadPS - m.currentAngular) * m.conf.Smoothing

	leftMPS, rightMPS := kinematics.BodyToWheel(m.currentLinear, m.currentAngular, m.conf.TrackWidthM)
	leftRPM := kinematics.MPSToRPM(leftMPS, m.conf.WheelRadiusM)
	rightRPM := kinematics.MPSToRPM(rightMPS, m.conf.WheelRadiusM)
	glog.V(2).Infof("wheel targets: left %.3f m/s (%.1f rpm), right %.3f m/s (%.1f rpm)",
		leftMPS, leftRPM, rightMPS, rightRPM)

	if err := m.left.SetVelocityRPM(leftRPM); err != nil {
		m.EmergencyStop(fmt.Sprintf("left velocity write failed: %v", err))
		m.recover("left velocity write failed")
		return
	}
	if err := m.right.SetVelocityRPM(rightRPM); err != nil {
		m.EmergencyStop(fmt.Sprintf("right velocity write failed: %v", err))
		m.recover("right velocity write failed")
		return
	}
}

// Stop writes zero velocity to both axes and idles them. Internal
// errors are logged but the transition to Idle is always recorded so
// subsequent commands re-arm correctly.
func (m *MotorControl) Stop() {
	if err := m.stop(); err != nil {
		glog.Errorf("stop: %v", err)
	}
}

func (m *MotorControl) stop() error {
	var errs fx.AggregatedError
	errs.Add(m.left.SetVelocity(0), m.right.SetVelocity(0))
	errs.Add(m.left.SetIdle(), m.right.SetIdle())
	m.state = Idle
	m.currentLinear, m.currentAngular = 0, 0
	return errs.Aggregate()
}

// EmergencyStop halts the drivetrain through an ordered list of
// fallback stages. Each stage is attempted until one succeeds; a
// failing stage never blocks the next. Total failure is logged as
// critical and does not crash the caller.
func (m *MotorControl) EmergencyStop(reason string) {
	glog.Errorf("EMERGENCY STOP: %s", reason)
	stages := []struct {
		name string
		run  func() error
	}{
		{"stop and idle", m.stop},
		{"raw zero velocity", func() error {
			var errs fx.AggregatedError
			errs.Add(m.left.SetVelocity(0), m.right.SetVelocity(0))
			return errs.Aggregate()
		}},
		{"force idle", func() error {
			var errs fx.AggregatedError
			errs.Add(m.left.SetIdle(), m.right.SetIdle())
			return errs.Aggregate()
		}},
	}
	for _, stage := range stages {
		if err := stage.run(); err != nil {
			glog.Errorf("emergency stop stage %q failed: %v", stage.name, err)
			continue
		}
		return
	}
	glog.Error("CRITICAL: all emergency stop stages failed")
}

// LeftVelocity returns the measured left wheel speed in m/s. On any
// link failure it triggers recovery and returns 0.0: callers must
// treat a zero reading as unknown, not necessarily stopped.
func (m *MotorControl) LeftVelocity() float64 {
	return m.wheelVelocity(m.left)
}

// RightVelocity is LeftVelocity for the right wheel.
func (m *MotorControl) RightVelocity() float64 {
	return m.wheelVelocity(m.right)
}

func (m *MotorControl) wheelVelocity(c *axis.Controller) float64 {
	_, rps, err := c.PositionVelocity()
	if err != nil {
		glog.Errorf("axis %d feedback failed: %v", c.Index(), err)
		m.recover("feedback query failed")
		return 0.0
	}
	return kinematics.RPMToMPS(rps*60, m.conf.WheelRadiusM)
}

// DumpErrors reports the decoded error breakdown of both axes.
func (m *MotorControl) DumpErrors() map[string]map[string][]string {
	return map[string]map[string][]string{
		"left":  m.left.DumpErrors(),
		"right": m.right.DumpErrors(),
	}
}

// Close stops the drivetrain and releases the serial port.
func (m *MotorControl) Close() error {
	m.Stop()
	return m.link.Close()
}

func (m *MotorControl) rearm() error {
	glog.V(1).Info("re-arming idle axes")
	if err := m.left.ClearErrors(); err != nil {
		return err
	}
	return m.right.ClearErrors()
}

func (m *MotorControl) checkHealth() (string, bool) {
	glog.V(2).Info("periodic error check")
	for _, c := range []*axis.Controller{m.left, m.right} {
		code, err := c.ErrorCode()
		if err != nil {
			return fmt.Sprintf("axis %d error check failed: %v", c.Index(), err), true
		}
		if code == axis.ErrorUnknown {
			return fmt.Sprintf("axis %d error register unreadable", c.Index()), true
		}
		if code != 0 {
			return fmt.Sprintf("axis %d fault 0x%x", c.Index(), code), true
		}
	}
	return "", false
}

// recover runs the hardware reset and re-initialization sequence:
// de-energize, reboot, settle, reopen the link, clear errors, re-arm
// closed-loop velocity control with passthrough input and current
// limits. Failures are logged as critical and retried on the next
// command instead of crashing the owning process.
func (m *MotorControl) recover(reason string) {
	m.state = Recovering
	glog.Warningf("recovering motor controller: %s", reason)

	// Best-effort de-energize. Errors are expected when the fault
	// is a dead link.
	m.left.SetVelocity(0)
	m.right.SetVelocity(0)

	if err := m.reset(); err != nil {
		glog.Errorf("CRITICAL: recovery failed, will retry on next command: %v", err)
		m.state = Uninitialized
		return
	}
	m.state = Active
	m.cycle = 0
	m.currentLinear, m.currentAngular = 0, 0
	glog.Info("motor controller recovered")
}

func (m *MotorControl) reset() error {
	if err := m.link.Send("sr"); err != nil {
		// The controller may still reboot; the reopen below decides.
		glog.Warningf("reboot command failed: %v", err)
	}
	time.Sleep(m.conf.RebootSettle)
	if err := m.link.Reopen(); err != nil {
		return fmt.Errorf("reopen link: %v", err)
	}
	for _, c := range []*axis.Controller{m.left, m.right} {
		if err := c.ClearErrors(); err != nil {
			return err
		}
		if err := c.Start(); err != nil {
			return err
		}
		if err := c.ConfigureMode(axis.Velocity, axis.InputPassthrough); err != nil {
			return err
		}
		if err := c.SetVelocityLimit(m.conf.VelocityLimitRPS); err != nil {
			return err
		}
		if err := c.SetCurrentLimit(m.conf.CurrentLimitA); err != nil {
			return err
		}
	}
	m.logConfiguration()
	return nil
}

// logConfiguration reads back the applied configuration for audit.
func (m *MotorControl) logConfiguration() {
	registers := []string{
		"controller.config.control_mode",
		"controller.config.input_mode",
		"controller.config.vel_ramp_rate",
		"controller.config.vel_limit",
		"motor.config.current_lim",
	}
	for _, c := range []*axis.Controller{m.left, m.right} {
		for _, reg := range registers {
			value, err := c.Query("r axis%d." + reg)
			if err != nil {
				glog.V(1).Infof("axis %d: read %s: %v", c.Index(), reg, err)
				continue
			}
			glog.Infof("axis %d (%s): %s = %s", c.Index(), c.Role(), reg, value)
		}
	}
}

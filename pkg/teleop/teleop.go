// Package teleop turns gamepad input into body velocity targets.
package teleop

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/David-Feldt/waffle-car/pkg/drive/msgs"
	fx "github.com/David-Feldt/waffle-car/pkg/framework"
	"github.com/David-Feldt/waffle-car/pkg/teleop/device"
)

// SlotTarget is the loop slot the controller posts velocity targets
// to, one per iteration while a gamepad is attached.
const SlotTarget = "teleop.target"

// Gamepad axis and button assignment, DualShock layout.
const (
	axisLeftX   = 0
	axisLeftY   = 1
	axisRightX  = 2
	axisRightY  = 3
	axisTrigL2  = 4
	axisTrigR2  = 5
	buttonCross = 0 // emergency stop
	buttonOpts  = 9 // quit
)

// Controller reads one gamepad and maps its state to velocity
// targets. Trigger input wins over the right stick, which wins over
// the left stick; the cross button forces a zero target regardless.
type Controller struct {
	conf Config

	// OnQuit is invoked once when the quit button is pressed.
	OnQuit func()

	lock    sync.Mutex
	axes    [8]float64
	buttons [16]bool

	attached bool
	quitSent bool
}

// AddToLoop implements LoopAdder.
func (c *Controller) AddToLoop(loop *fx.Loop) {
	loop.AddController(fx.StageSense, c)
}

// Run owns the gamepad: it detects, reads events into the shared
// state, and re-detects after a disconnect.
func (c *Controller) Run(ctx context.Context) error {
	for {
		pad, err := c.open()
		if err != nil {
			glog.Errorf("gamepad open failed: %v", err)
		} else if pad == nil {
			glog.V(1).Info("no gamepad detected")
		} else {
			glog.Infof("gamepad %d %q: %d axes, %d buttons",
				pad.Index(), pad.Name(), pad.AxisCount(), pad.ButtonCount())
			c.readEvents(ctx, pad)
			c.detach()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

func (c *Controller) open() (*device.Gamepad, error) {
	if c.conf.DeviceIndex >= 0 {
		return device.Open(c.conf.DeviceIndex)
	}
	return device.Detect(0)
}

func (c *Controller) readEvents(ctx context.Context, pad *device.Gamepad) {
	c.lock.Lock()
	c.attached = true
	c.lock.Unlock()

	// The device read does not honor the context; closing the
	// device unblocks it.
	err := fx.RunWithContextCloser(ctx, pad, func() error {
		for {
			ev, err := pad.ReadEvent()
			if err != nil {
				return err
			}
			if c.conf.Verbose && !ev.Init {
				glog.Infof("gamepad event: kind=%d index=%d value=%d", ev.Kind, ev.Index, ev.Value)
			}
			c.apply(ev)
		}
	})
	if err != nil && err != context.Canceled {
		glog.Warningf("gamepad read failed: %v", err)
	}
}

func (c *Controller) apply(ev device.Event) {
	c.lock.Lock()
	defer c.lock.Unlock()
	switch ev.Kind {
	case device.KindAxis:
		if ev.Index < len(c.axes) {
			c.axes[ev.Index] = ev.Normalized()
		}
	case device.KindButton:
		if ev.Index < len(c.buttons) && !ev.Init {
			c.buttons[ev.Index] = ev.Pressed()
		}
	}
}

func (c *Controller) detach() {
	c.lock.Lock()
	c.attached = false
	c.axes = [8]float64{}
	c.buttons = [16]bool{}
	c.lock.Unlock()
}

// Control implements Controller: it posts the current velocity
// target every iteration while a gamepad is attached, so a released
// pad decays to zero at the consumer instead of freezing the last
// command.
func (c *Controller) Control(cc fx.ControlContext) error {
	c.lock.Lock()
	attached := c.attached
	axes := c.axes
	estop := c.buttons[buttonCross]
	quit := c.buttons[buttonOpts]
	c.lock.Unlock()

	if quit && !c.quitSent {
		c.quitSent = true
		glog.Info("quit button pressed")
		if c.OnQuit != nil {
			c.OnQuit()
		}
	}
	if !attached {
		return nil
	}
	target := c.target(axes, estop)
	cc.Post(SlotTarget, target)
	return nil
}

func (c *Controller) target(axes [8]float64, estop bool) *msgs.VelocityTarget {
	if estop {
		return &msgs.VelocityTarget{}
	}
	leftX := Deadzone(axes[axisLeftX], c.conf.StickDeadzone)
	leftY := Deadzone(-axes[axisLeftY], c.conf.StickDeadzone)
	rightX := Deadzone(axes[axisRightX], c.conf.StickDeadzone)
	rightY := Deadzone(-axes[axisRightY], c.conf.StickDeadzone)
	// Triggers rest at -1; map to 0..1.
	l2 := triggerValue(axes[axisTrigL2], c.conf.TriggerDeadzone)
	r2 := triggerValue(axes[axisTrigR2], c.conf.TriggerDeadzone)

	switch {
	case l2 > 0 || r2 > 0:
		if l2 > r2 {
			return &msgs.VelocityTarget{LinearMPS: -l2 * c.conf.MaxLinearMPS}
		}
		return &msgs.VelocityTarget{LinearMPS: r2 * c.conf.MaxLinearMPS}
	case rightX != 0 || rightY != 0:
		return &msgs.VelocityTarget{
			LinearMPS:    rightY * c.conf.MaxLinearMPS,
			AngularRadPS: rightX * c.conf.MaxAngularRadPS,
		}
	default:
		return &msgs.VelocityTarget{
			LinearMPS:    leftY * c.conf.MaxLinearMPS,
			AngularRadPS: leftX * c.conf.MaxAngularRadPS,
		}
	}
}

// Deadzone suppresses values inside the zone and rescales the rest
// so output still spans the full -1..1 range.
func Deadzone(value, zone float64) float64 {
	switch {
	case value > zone:
		return (value - zone) / (1 - zone)
	case value < -zone:
		return (value + zone) / (1 - zone)
	}
	return 0
}

func triggerValue(raw, zone float64) float64 {
	v := (raw + 1) / 2
	if v <= zone {
		return 0
	}
	return v
}

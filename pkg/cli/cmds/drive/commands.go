// Package drive provides shell commands operating the drivetrain.
package drive

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/David-Feldt/waffle-car/pkg/cli/sh"
	"github.com/David-Feldt/waffle-car/pkg/drive/axis"
)

func parseFloat(c *ishell.Context, arg, name string) (float64, bool) {
	val, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		c.Err(fmt.Errorf("invalid %s: %v", name, err))
		return 0, false
	}
	return val, true
}

var (
	// DriveCmd commands a body velocity.
	DriveCmd = ishell.Cmd{
		Name:    "drive",
		Aliases: []string{"d"},
		Help:    "LINEAR(m/s) [ANGULAR(rad/s)]",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("LINEAR required"))
				return
			}
			s := sh.ShellFrom(c)
			if !s.RestoreVelocityMode(c) {
				return
			}
			linear, ok := parseFloat(c, c.Args[0], "LINEAR")
			if !ok {
				return
			}
			var angular float64
			if len(c.Args) > 1 {
				if angular, ok = parseFloat(c, c.Args[1], "ANGULAR"); !ok {
					return
				}
			}
			s.Motor.SetVelocity(linear, angular)
		},
	}

	// TurnCmd commands a pure rotation.
	TurnCmd = ishell.Cmd{
		Name:    "turn",
		Aliases: []string{"t"},
		Help:    "ANGULAR(rad/s)",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("ANGULAR required"))
				return
			}
			s := sh.ShellFrom(c)
			if !s.RestoreVelocityMode(c) {
				return
			}
			angular, ok := parseFloat(c, c.Args[0], "ANGULAR")
			if !ok {
				return
			}
			s.Motor.SetVelocity(0, angular)
		},
	}

	// StopCmd stops and idles the drivetrain.
	StopCmd = ishell.Cmd{
		Name:    "stop",
		Aliases: []string{"s"},
		Help:    "",
		Func: func(c *ishell.Context) {
			sh.ShellFrom(c).Motor.Stop()
			c.Println("stopped")
		},
	}

	// EStopCmd runs the emergency stop cascade.
	EStopCmd = ishell.Cmd{
		Name: "estop",
		Help: "",
		Func: func(c *ishell.Context) {
			sh.ShellFrom(c).Motor.EmergencyStop("shell estop")
		},
	}

	// StateCmd prints the facade state.
	StateCmd = ishell.Cmd{
		Name: "state",
		Help: "",
		Func: func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			state := s.Motor.State().String()
			if s.PrintJSON(c, map[string]string{"state": state}) {
				return
			}
			c.Println(state)
		},
	}

	// ErrorsCmd dumps decoded axis error registers.
	ErrorsCmd = ishell.Cmd{
		Name:    "errors",
		Aliases: []string{"e"},
		Help:    "",
		Func: func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			dump := s.Motor.DumpErrors()
			if s.PrintJSON(c, dump) {
				return
			}
			for _, side := range []string{"left", "right"} {
				if len(dump[side]) == 0 {
					c.Printf("%s: clean\n", side)
					continue
				}
				for sub, flags := range dump[side] {
					c.Printf("%s %s: %s\n", side, sub, strings.Join(flags, ", "))
				}
			}
		},
	}

	// VelCmd prints measured wheel velocities.
	VelCmd = ishell.Cmd{
		Name:    "vel",
		Aliases: []string{"v"},
		Help:    "",
		Func: func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			left, right := s.Motor.LeftVelocity(), s.Motor.RightVelocity()
			if s.PrintJSON(c, map[string]float64{"left_mps": left, "right_mps": right}) {
				return
			}
			c.Printf("left %.3f m/s, right %.3f m/s\n", left, right)
		},
	}

	// ConfigCmd prints the effective configuration.
	ConfigCmd = ishell.Cmd{
		Name: "config",
		Help: "",
		Func: func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			conf := s.Motor.Conf()
			if s.PrintJSON(c, conf) {
				return
			}
			c.Printf("%+v\n", conf)
		},
	}

	// TorqueCmd applies raw torque to both axes.
	TorqueCmd = ishell.Cmd{
		Name:    "torque",
		Aliases: []string{"tq"},
		Help:    "LEFT(Nm) [RIGHT(Nm)]",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("LEFT required"))
				return
			}
			leftNm, ok := parseFloat(c, c.Args[0], "LEFT")
			if !ok {
				return
			}
			rightNm := leftNm
			if len(c.Args) > 1 {
				if rightNm, ok = parseFloat(c, c.Args[1], "RIGHT"); !ok {
					return
				}
			}
			s := sh.ShellFrom(c)
			for _, ctl := range []*axis.Controller{s.Motor.Left(), s.Motor.Right()} {
				if ctl.Mode() != axis.Torque {
					if err := ctl.ConfigureMode(axis.Torque, axis.InputPassthrough); err != nil {
						c.Err(err)
						return
					}
				}
			}
			s.TorqueMode = true
			if err := s.Motor.Left().SetTorque(leftNm); err != nil {
				c.Err(err)
				return
			}
			if err := s.Motor.Right().SetTorque(rightNm); err != nil {
				c.Err(err)
			}
		},
	}

	// WASDCmd reads drive keys line by line until q.
	WASDCmd = ishell.Cmd{
		Name: "wasd",
		Help: "",
		Func: func(c *ishell.Context) {
			s := sh.ShellFrom(c)
			if !s.RestoreVelocityMode(c) {
				return
			}
			c.Println("w/s forward/back, a/d turn, space stop, q quit")
			for {
				line, err := c.ReadLineErr()
				if !wasdStep(s.Motor, c.Printf, line, err) {
					return
				}
			}
		},
	}
)

// Key speeds of the wasd drive mode.
const (
	wasdLinearMPS    = 1.0
	wasdAngularRadPS = 2.0
)

// wasdMotor is the slice of the facade the wasd loop drives.
type wasdMotor interface {
	SetVelocity(linearMPS, angularRadPS float64)
	Stop()
}

// wasdStep applies one key line and reports whether the session
// continues. A read error counts as quit, so a closed stdin ends the
// session instead of spinning it.
func wasdStep(m wasdMotor, print func(format string, args ...interface{}), line string, err error) bool {
	if err != nil {
		m.Stop()
		return false
	}
	switch strings.TrimSpace(line) {
	case "w":
		m.SetVelocity(wasdLinearMPS, 0)
	case "s":
		m.SetVelocity(-wasdLinearMPS, 0)
	case "a":
		m.SetVelocity(0, wasdAngularRadPS)
	case "d":
		m.SetVelocity(0, -wasdAngularRadPS)
	case "":
		m.Stop()
	case "q":
		m.Stop()
		return false
	default:
		print("unknown key %q\n", line)
	}
	return true
}

func init() {
	sh.AddCmds(
		&DriveCmd,
		&TurnCmd,
		&StopCmd,
		&EStopCmd,
		&StateCmd,
		&ErrorsCmd,
		&VelCmd,
		&ConfigCmd,
		&TorqueCmd,
		&WASDCmd,
	)
}

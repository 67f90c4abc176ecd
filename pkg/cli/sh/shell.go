// Package sh provides the interactive bench shell over the motor
// control facade. It talks to the hardware directly over serial, not
// through the broker, and is meant for calibration and debugging.
package sh

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"

	"github.com/abiosoft/ishell"

	"github.com/David-Feldt/waffle-car/pkg/drive"
	"github.com/David-Feldt/waffle-car/pkg/drive/axis"
)

// Shell provides an ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell *ishell.Shell
	Motor *drive.MotorControl

	// TorqueMode remembers a torque-mode switch so velocity commands
	// can restore velocity control first.
	TorqueMode bool
}

const shellKey = "$shell"

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands []*ishell.Cmd
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by command providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell over an initialized facade.
func New(motor *drive.MotorControl) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell: ishell.New(),
		Motor: motor,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt("drive > ")
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// PrintJSON marshals v when JSON output is selected and reports
// whether it printed.
func (s *Shell) PrintJSON(c *ishell.Context, v interface{}) bool {
	if !s.OutputJSON {
		return false
	}
	out, err := json.Marshal(v)
	if err != nil {
		c.Err(err)
		return true
	}
	c.Println(string(out))
	return true
}

// RestoreVelocityMode switches both axes back to velocity control
// after torque-mode commands.
func (s *Shell) RestoreVelocityMode(c *ishell.Context) bool {
	if !s.TorqueMode {
		return true
	}
	for _, ctl := range []*axis.Controller{s.Motor.Left(), s.Motor.Right()} {
		if err := ctl.ConfigureMode(axis.Velocity, axis.InputPassthrough); err != nil {
			c.Err(fmt.Errorf("restore velocity mode: %v", err))
			return false
		}
	}
	s.TorqueMode = false
	return true
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	motor, err := drive.NewConfig().NewMotorControl()
	if err != nil {
		log.Fatalln(err)
	}
	defer motor.Close()
	New(motor).Run(flag.Args()...)
}

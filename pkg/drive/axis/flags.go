package axis

import (
	"fmt"
	"strings"

	"github.com/golang/glog"
)

// Static tables decoding the hardware error bitmasks into flag names,
// one table per subsystem. Read-only configuration data; diagnostics
// only, never drives control decisions.

type errorFlag struct {
	bit  int
	name string
}

// Subsystems in the order they are reported.
var subsystems = []string{"axis", "motor", "encoder", "controller"}

var errorFlags = map[string][]errorFlag{
	"axis": {
		{0x1, "invalid state"},
		{0x40, "motor failed"},
		{0x80, "sensorless estimator failed"},
		{0x100, "encoder failed"},
		{0x200, "controller failed"},
		{0x800, "watchdog timer expired"},
		{0x1000, "min endstop pressed"},
		{0x2000, "max endstop pressed"},
		{0x4000, "estop requested"},
		{0x20000, "homing without endstop"},
		{0x40000, "over temp"},
		{0x80000, "unknown position"},
	},
	"motor": {
		{0x1, "phase resistance out of range"},
		{0x2, "phase inductance out of range"},
		{0x8, "drv fault"},
		{0x10, "control deadline missed"},
		{0x80, "modulation magnitude"},
		{0x400, "current sense saturation"},
		{0x1000, "current limit violation"},
		{0x10000, "modulation is nan"},
		{0x20000, "motor thermistor over temp"},
		{0x40000, "fet thermistor over temp"},
		{0x80000, "timer update missed"},
		{0x100000, "current measurement unavailable"},
		{0x200000, "controller failed"},
		{0x400000, "i bus out of range"},
		{0x800000, "brake resistor disarmed"},
		{0x1000000, "system level"},
		{0x2000000, "bad timing"},
		{0x4000000, "unknown phase estimate"},
		{0x8000000, "unknown phase vel"},
		{0x10000000, "unknown torque"},
		{0x20000000, "unknown current command"},
	},
	"encoder": {
		{0x1, "unstable gain"},
		{0x2, "cpr polepairs mismatch"},
		{0x4, "no response"},
		{0x8, "unsupported encoder mode"},
		{0x10, "illegal hall state"},
		{0x20, "index not found yet"},
		{0x40, "abs spi timeout"},
		{0x80, "abs spi com fail"},
		{0x100, "abs spi not ready"},
		{0x200, "hall not calibrated yet"},
	},
	"controller": {
		{0x1, "overspeed"},
		{0x2, "invalid input mode"},
		{0x4, "unstable gain"},
		{0x8, "invalid mirror axis"},
		{0x10, "invalid load encoder"},
		{0x20, "invalid estimate"},
		{0x40, "invalid circular range"},
		{0x80, "spinout detected"},
	},
}

// DecodeFlags expands an error bitmask into the named flags of a
// subsystem. Bits without a table entry are reported verbatim.
func DecodeFlags(subsystem string, code int) []string {
	var names []string
	remaining := code
	for _, f := range errorFlags[subsystem] {
		if code&f.bit != 0 {
			names = append(names, f.name)
			remaining &^= f.bit
		}
	}
	if remaining != 0 {
		names = append(names, fmt.Sprintf("unrecognized bits 0x%x", remaining))
	}
	return names
}

// DumpErrors reads and decodes the error register of every subsystem
// of this axis. The result maps subsystem name to decoded flag names;
// unreadable registers map to a single diagnostic entry.
func (c *Controller) DumpErrors() map[string][]string {
	out := make(map[string][]string, len(subsystems))
	for _, sub := range subsystems {
		register := fmt.Sprintf("axis%d.error", c.index)
		if sub != "axis" {
			register = fmt.Sprintf("axis%d.%s.error", c.index, sub)
		}
		reply, err := c.conn.Query("r " + register)
		if err != nil {
			out[sub] = []string{fmt.Sprintf("unreadable: %v", err)}
			continue
		}
		code, ok := parseErrorCode(reply)
		if !ok {
			out[sub] = []string{fmt.Sprintf("unparseable register %q", reply)}
			continue
		}
		if code == 0 {
			continue
		}
		names := DecodeFlags(sub, code)
		out[sub] = names
		glog.Errorf("axis %d (%s) %s.error=0x%x: %s",
			c.index, c.role, sub, code, strings.Join(names, ", "))
	}
	return out
}

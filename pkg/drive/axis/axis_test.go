package axis

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeConn records sent commands and serves scripted replies keyed
// by command.
type fakeConn struct {
	sent    []string
	replies map[string]string
}

func newFakeConn() *fakeConn {
	return &fakeConn{replies: make(map[string]string)}
}

func (c *fakeConn) Send(command string) error {
	c.sent = append(c.sent, command)
	return nil
}

func (c *fakeConn) Query(command string) (string, error) {
	c.sent = append(c.sent, command)
	reply, ok := c.replies[command]
	if !ok {
		return "", errors.New("no scripted reply for " + command)
	}
	return reply, nil
}

func TestNewRejectsBadDirection(t *testing.T) {
	_, err := New(newFakeConn(), 0, 0, Left)
	require.Error(t, err)
	_, err = New(newFakeConn(), 0, 2, Left)
	require.Error(t, err)
}

func TestSetVelocityAppliesDirection(t *testing.T) {
	conn := newFakeConn()
	fwd, err := New(conn, 0, 1, Left)
	require.NoError(t, err)
	rev, err := New(conn, 1, -1, Right)
	require.NoError(t, err)

	require.NoError(t, fwd.SetVelocity(1.5))
	require.NoError(t, rev.SetVelocity(1.5))
	require.NoError(t, fwd.SetVelocityRPM(90))
	require.Equal(t, []string{
		"w axis0.controller.input_vel 1.5000",
		"w axis1.controller.input_vel -1.5000",
		"w axis0.controller.input_vel 1.5000",
	}, conn.sent)
}

func TestSetTorqueBiasAndLatch(t *testing.T) {
	conn := newFakeConn()
	c, err := New(conn, 1, -1, Right)
	require.NoError(t, err)

	require.NoError(t, c.SetTorque(0.5))
	require.NoError(t, c.SetTorque(-0.5))
	require.Equal(t, []string{
		"c 1 -0.5500", // (0.5 * -1) + (0.05 * -1)
		"u 1",
		"c 1 0.5500",
		"u 1",
	}, conn.sent)
}

func TestConfigureMode(t *testing.T) {
	conn := newFakeConn()
	c, err := New(conn, 0, 1, Left)
	require.NoError(t, err)

	require.NoError(t, c.ConfigureMode(Velocity, InputPassthrough))
	require.Equal(t, Velocity, c.Mode())
	require.Equal(t, []string{
		"w axis0.controller.config.control_mode 2",
		"w axis0.controller.config.input_mode 2",
	}, conn.sent)
}

func TestPositionVelocity(t *testing.T) {
	conn := newFakeConn()
	conn.replies["f 1"] = "2027.5 -1.25"
	c, err := New(conn, 1, -1, Right)
	require.NoError(t, err)

	pos, vel, err := c.PositionVelocity()
	require.NoError(t, err)
	require.InDelta(t, -2027.5, pos, 1e-9)
	require.InDelta(t, 1.25, vel, 1e-9)

	conn.replies["f 1"] = "just-one-field"
	_, _, err = c.PositionVelocity()
	require.Error(t, err)
}

func TestErrorCode(t *testing.T) {
	testCases := []struct {
		name  string
		reply string
		code  int
	}{
		{"zero", "0", 0},
		{"decimal", "2048", 2048},
		{"hex formatted", "0x21", 21}, // non-digits stripped, not hex-decoded
		{"noise around digits", " 17\t", 17},
		{"no digits", "flux capacitor", ErrorUnknown},
		{"empty", "", ErrorUnknown},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			conn := newFakeConn()
			conn.replies["r axis0.error"] = tc.reply
			c, err := New(conn, 0, 1, Left)
			require.NoError(t, err)
			code, err := c.ErrorCode()
			require.NoError(t, err)
			require.Equal(t, tc.code, code)
		})
	}
}

func TestIdleTransitions(t *testing.T) {
	conn := newFakeConn()
	c, err := New(conn, 0, 1, Left)
	require.NoError(t, err)
	require.False(t, c.Idle())

	require.NoError(t, c.SetIdle())
	require.True(t, c.Idle())

	require.NoError(t, c.ClearErrors())
	require.False(t, c.Idle())
	require.Equal(t, []string{
		"w axis0.requested_state 1",
		"w axis0.error 0",
		"w axis0.requested_state 8",
	}, conn.sent)
}

func TestDecodeFlags(t *testing.T) {
	require.Equal(t,
		[]string{"invalid state", "watchdog timer expired"},
		DecodeFlags("axis", 0x801))
	require.Equal(t,
		[]string{"overspeed", "unrecognized bits 0x10000"},
		DecodeFlags("controller", 0x10001))
	require.Nil(t, DecodeFlags("motor", 0))
}

func TestDumpErrors(t *testing.T) {
	conn := newFakeConn()
	conn.replies["r axis0.error"] = "0x801"
	conn.replies["r axis0.motor.error"] = "0"
	conn.replies["r axis0.encoder.error"] = "garbage"
	conn.replies["r axis0.controller.error"] = "1"
	c, err := New(conn, 0, 1, Left)
	require.NoError(t, err)

	dump := c.DumpErrors()
	// "0x801" strips to 0801 = decimal 801 = 0x321.
	require.Contains(t, dump, "axis")
	require.Contains(t, dump["encoder"][0], "unparseable")
	require.Equal(t, []string{"overspeed"}, dump["controller"])
	require.NotContains(t, dump, "motor")
}

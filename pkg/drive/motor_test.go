package drive

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/David-Feldt/waffle-car/pkg/drive/kinematics"
	"github.com/David-Feldt/waffle-car/pkg/drive/link"
)

// fakeController emulates the dual-axis motor controller at the far
// end of the serial link: it parses written command lines and queues
// reply lines for queries.
type fakeController struct {
	writes  []string
	pending []byte

	errors  map[int]int     // axis -> error register
	velRPS  map[int]float64 // axis -> feedback velocity
	reboots int
	mute    bool // swallow queries to simulate a dead controller
}

func newFakeController() *fakeController {
	return &fakeController{
		errors: map[int]int{0: 0, 1: 0},
		velRPS: map[int]float64{0: 0, 1: 0},
	}
}

func (f *fakeController) Write(b []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(b), "\n"), "\n") {
		f.handle(line)
	}
	return len(b), nil
}

func (f *fakeController) handle(line string) {
	f.writes = append(f.writes, line)
	var n int
	switch {
	case line == "sr":
		f.reboots++
	case scan(line, "w axis%d.error 0", &n):
		f.errors[n] = 0
	case f.mute:
	case scan(line, "r axis%d.error", &n):
		f.reply(fmt.Sprintf("%d", f.errors[n]))
	case scan(line, "f %d", &n):
		f.reply(fmt.Sprintf("123.4 %.4f", f.velRPS[n]))
	case strings.HasPrefix(line, "r "):
		f.reply("0")
	}
}

func scan(line, format string, n *int) bool {
	_, err := fmt.Sscanf(line, format, n)
	return err == nil
}

func (f *fakeController) reply(line string) {
	f.pending = append(f.pending, (line + "\n")...)
}

func (f *fakeController) Read(b []byte) (int, error) {
	if len(f.pending) == 0 {
		time.Sleep(time.Millisecond)
		return 0, nil
	}
	n := copy(b, f.pending)
	f.pending = f.pending[n:]
	return n, nil
}

func (f *fakeController) Close() error { return nil }

func (f *fakeController) Flush() error {
	f.pending = nil
	return nil
}

func (f *fakeController) countWrites(substr string) int {
	count := 0
	for _, w := range f.writes {
		if strings.Contains(w, substr) {
			count++
		}
	}
	return count
}

func testConfig() *Config {
	conf := NewConfig()
	conf.LeftAxis, conf.RightAxis = 0, 1
	conf.LeftDir, conf.RightDir = 1, 1
	conf.TrackWidthM = 0.5
	conf.Smoothing = 1.0 // deterministic targets
	conf.QueryTimeout = 30 * time.Millisecond
	conf.RebootSettle = 0
	return conf
}

func newTestMotorControl(t *testing.T, conf *Config) (*MotorControl, *fakeController) {
	fake := newFakeController()
	l, err := link.New(func() (link.Port, error) { return fake, nil })
	require.NoError(t, err)
	l.Timeout = conf.QueryTimeout
	m, err := New(conf, l)
	require.NoError(t, err)
	return m, fake
}

func TestStartupInitialization(t *testing.T) {
	m, fake := newTestMotorControl(t, testConfig())
	require.Equal(t, Active, m.State())
	require.Equal(t, 1, fake.reboots)
	for _, axisN := range []int{0, 1} {
		require.Equal(t, 1, fake.countWrites(fmt.Sprintf("w axis%d.controller.config.control_mode 2", axisN)))
		require.Equal(t, 1, fake.countWrites(fmt.Sprintf("w axis%d.controller.config.input_mode 2", axisN)))
		require.Equal(t, 1, fake.countWrites(fmt.Sprintf("w axis%d.motor.config.current_lim", axisN)))
		require.Equal(t, 1, fake.countWrites(fmt.Sprintf("w axis%d.error 0", axisN)))
	}
}

func TestZeroFastPath(t *testing.T) {
	m, fake := newTestMotorControl(t, testConfig())

	zeroBefore := fake.countWrites("input_vel 0.0000")
	m.SetVelocity(0, 0)
	require.Equal(t, Idle, m.State())
	require.Equal(t, zeroBefore+2, fake.countWrites("input_vel 0.0000"))
	require.Equal(t, 1, fake.countWrites("w axis0.requested_state 1"))
	require.Equal(t, 1, fake.countWrites("w axis1.requested_state 1"))

	// Already idle: repeated zero intent issues nothing new.
	before := len(fake.writes)
	m.SetVelocity(0, 0)
	require.Len(t, fake.writes, before)
}

func TestRearmAfterIdle(t *testing.T) {
	m, fake := newTestMotorControl(t, testConfig())
	m.Stop()
	require.Equal(t, Idle, m.State())

	clearsBefore := fake.countWrites("w axis0.error 0")
	m.SetVelocity(1.0, 0)
	require.Equal(t, Active, m.State())
	require.Equal(t, clearsBefore+1, fake.countWrites("w axis0.error 0"))
}

func TestDirectionSigns(t *testing.T) {
	conf := testConfig()
	conf.RightDir = -1
	m, fake := newTestMotorControl(t, conf)

	m.SetVelocity(1.0, 0)
	// Both wheels target 1.0 m/s pre-direction; the right axis sign
	// is flipped on the wire.
	rps := kinematics.MPSToRPM(1.0, conf.WheelRadiusM) / 60
	require.Equal(t, 1, fake.countWrites(fmt.Sprintf("w axis0.controller.input_vel %.4f", rps)))
	require.Equal(t, 1, fake.countWrites(fmt.Sprintf("w axis1.controller.input_vel %.4f", -rps)))
}

func TestVelocityClipping(t *testing.T) {
	conf := testConfig()
	m, fake := newTestMotorControl(t, conf)

	m.SetVelocity(100, 0)
	maxRPS := kinematics.MPSToRPM(conf.MaxLinearMPS, conf.WheelRadiusM) / 60
	require.Equal(t, 1, fake.countWrites(fmt.Sprintf("w axis0.controller.input_vel %.4f", maxRPS)))

	m.SetVelocity(-100, 0)
	require.Equal(t, 1, fake.countWrites(fmt.Sprintf("w axis0.controller.input_vel %.4f", -maxRPS)))
}

func TestHealthCheckTriggersRecoveryOnce(t *testing.T) {
	conf := testConfig()
	m, fake := newTestMotorControl(t, conf)
	startupReboots := fake.reboots

	// Fault the left axis. The hardware clears it when the error
	// register is written during recovery.
	fake.errors[0] = 2048

	for i := uint64(0); i < conf.HealthCheckEvery; i++ {
		m.SetVelocity(1.0, 0)
	}
	require.Equal(t, startupReboots+1, fake.reboots)
	require.Equal(t, Active, m.State())
	require.Equal(t, 0, fake.errors[0])

	// Healthy again: another full cadence triggers nothing.
	for i := uint64(0); i < conf.HealthCheckEvery; i++ {
		m.SetVelocity(1.0, 0)
	}
	require.Equal(t, startupReboots+1, fake.reboots)
}

func TestZeroValueConfigDefaults(t *testing.T) {
	conf := testConfig()
	conf.HealthCheckEvery = 0
	conf.Smoothing = 0
	m, fake := newTestMotorControl(t, conf)

	before := fake.countWrites("w axis0.controller.input_vel")
	m.SetVelocity(1.0, 0)
	require.Equal(t, Active, m.State())
	require.Equal(t, before+1, fake.countWrites("w axis0.controller.input_vel"))
	require.Equal(t, defaultConfig.HealthCheckEvery, m.Conf().HealthCheckEvery)
	require.Equal(t, defaultConfig.Smoothing, m.Conf().Smoothing)
}

func TestFeedbackVelocity(t *testing.T) {
	conf := testConfig()
	m, fake := newTestMotorControl(t, conf)

	fake.velRPS[0] = 2.0
	fake.velRPS[1] = -1.5
	require.InDelta(t, kinematics.RPMToMPS(120, conf.WheelRadiusM), m.LeftVelocity(), 1e-6)
	require.InDelta(t, kinematics.RPMToMPS(-90, conf.WheelRadiusM), m.RightVelocity(), 1e-6)
}

func TestQueryTimeoutRecovers(t *testing.T) {
	conf := testConfig()
	m, fake := newTestMotorControl(t, conf)
	startupReboots := fake.reboots

	fake.mute = true
	vel := m.LeftVelocity()
	require.Equal(t, 0.0, vel)
	require.Equal(t, startupReboots+1, fake.reboots)

	// Recovery completed without throwing; commands stay callable.
	fake.mute = false
	m.SetVelocity(1.0, 0)
	require.NotEqual(t, Recovering, m.State())
	require.True(t, fake.countWrites("w axis0.controller.input_vel") > 0)
}

func TestEmergencyStopFallsBack(t *testing.T) {
	m, fake := newTestMotorControl(t, testConfig())
	m.EmergencyStop("test reason")
	require.Equal(t, Idle, m.State())
	require.True(t, fake.countWrites("w axis0.requested_state 1") >= 1)
	require.True(t, fake.countWrites("w axis1.requested_state 1") >= 1)
}

func TestDumpErrors(t *testing.T) {
	m, fake := newTestMotorControl(t, testConfig())
	fake.errors[1] = 2048 // watchdog timer expired
	dump := m.DumpErrors()
	require.Contains(t, dump["right"]["axis"], "watchdog timer expired")
	require.NotContains(t, dump["left"], "axis")
}

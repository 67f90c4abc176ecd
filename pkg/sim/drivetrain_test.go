package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestDrivetrain() *Drivetrain {
	// Instant wheel response keeps expectations exact.
	return &Drivetrain{TrackWidthM: 0.5, MaxLinearMPS: 4.0}
}

func TestStraightLine(t *testing.T) {
	d := newTestDrivetrain()
	d.SetTarget(1.0, 0)
	for i := 0; i < 100; i++ {
		d.Step(0.01)
	}
	pose := d.Pose()
	require.InDelta(t, 1.0, pose.X, 1e-9)
	require.InDelta(t, 0.0, pose.Y, 1e-9)
	require.InDelta(t, 0.0, pose.Heading.Radians(), 1e-9)

	left, right := d.WheelVelocities()
	require.InDelta(t, 1.0, left, 1e-9)
	require.InDelta(t, 1.0, right, 1e-9)
}

func TestTurnInPlace(t *testing.T) {
	d := newTestDrivetrain()
	d.SetTarget(0, math.Pi) // half a revolution per second
	for i := 0; i < 100; i++ {
		d.Step(0.01)
	}
	pose := d.Pose()
	require.InDelta(t, 0.0, pose.X, 1e-9)
	require.InDelta(t, 0.0, pose.Y, 1e-9)
	// One second at pi rad/s wraps to the normalized boundary.
	require.InDelta(t, math.Pi, math.Abs(pose.Heading.Radians()), 1e-9)

	left, right := d.WheelVelocities()
	require.InDelta(t, -left, right, 1e-9)
}

func TestArcCurvesSmoothly(t *testing.T) {
	d := newTestDrivetrain()
	d.SetTarget(1.0, 1.0)
	for i := 0; i < 100; i++ {
		d.Step(0.01)
	}
	pose := d.Pose()
	// Unit speed with 1 rad/s yaw is the unit circle: after 1s the
	// robot is at (sin 1, 1-cos 1) heading 1 rad.
	require.InDelta(t, math.Sin(1), pose.X, 1e-3)
	require.InDelta(t, 1-math.Cos(1), pose.Y, 1e-3)
	require.InDelta(t, 1.0, pose.Heading.Radians(), 1e-9)
}

func TestWheelSpeedClipping(t *testing.T) {
	d := newTestDrivetrain()
	d.SetTarget(100, 0)
	d.Step(0.01)
	left, right := d.WheelVelocities()
	require.InDelta(t, d.MaxLinearMPS, left, 1e-9)
	require.InDelta(t, d.MaxLinearMPS, right, 1e-9)
}

func TestResponseLag(t *testing.T) {
	d := newTestDrivetrain()
	d.ResponseTau = 0.1
	d.SetTarget(1.0, 0)
	d.Step(0.1) // one time constant
	left, _ := d.WheelVelocities()
	require.InDelta(t, 1-math.Exp(-1), left, 1e-9)
	for i := 0; i < 100; i++ {
		d.Step(0.1)
	}
	left, _ = d.WheelVelocities()
	require.InDelta(t, 1.0, left, 1e-3)
}

func TestAngleNormalization(t *testing.T) {
	require.InDelta(t, -math.Pi/2, AngleFromRadians(3*math.Pi/2).Radians(), 1e-9)
	require.InDelta(t, 180.0, AngleFromDegrees(180).Degrees(), 1e-9)
	require.InDelta(t, 0.0, AngleFromRadians(4*math.Pi).Radians(), 1e-9)
}

package kinematics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBodyToWheel(t *testing.T) {
	testCases := []struct {
		name            string
		linear, angular float64
		track           float64
		left, right     float64
	}{
		{"straight", 1.0, 0.0, 0.5, 1.0, 1.0},
		{"spin in place", 0.0, 2.0, 0.5, -0.5, 0.5},
		{"arc", 1.0, 2.0, 0.5, 0.5, 1.5},
		{"reverse", -1.0, 0.0, 0.5, -1.0, -1.0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			left, right := BodyToWheel(tc.linear, tc.angular, tc.track)
			require.InDelta(t, tc.left, left, 1e-9)
			require.InDelta(t, tc.right, right, 1e-9)
		})
	}
}

func TestBodyToWheelAntisymmetric(t *testing.T) {
	for _, angular := range []float64{0.5, 1.0, 3.7, 8.0} {
		left, right := BodyToWheel(0, angular, 0.5)
		leftNeg, rightNeg := BodyToWheel(0, -angular, 0.5)
		require.InDelta(t, right, leftNeg, 1e-9)
		require.InDelta(t, left, rightNeg, 1e-9)
	}
}

func TestWheelToBodyInverse(t *testing.T) {
	const track = 0.42
	for _, tc := range []struct{ linear, angular float64 }{
		{0, 0}, {1.5, 0}, {0, 4}, {-2, 3}, {3.9, -7.5},
	} {
		left, right := BodyToWheel(tc.linear, tc.angular, track)
		linear, angular := WheelToBody(left, right, track)
		require.InDelta(t, tc.linear, linear, 1e-9)
		require.InDelta(t, tc.angular, angular, 1e-9)
	}
}

func TestRPMRoundTrip(t *testing.T) {
	const radius = 0.0825
	for _, mps := range []float64{-4.0, -1.3, -0.01, 0, 0.01, 1.3, 4.0} {
		require.InDelta(t, mps, RPMToMPS(MPSToRPM(mps, radius), radius), 1e-9)
	}
}

func TestClip(t *testing.T) {
	require.Equal(t, 4.0, Clip(100, 4))
	require.Equal(t, -4.0, Clip(-100, 4))
	require.Equal(t, 3.5, Clip(3.5, 4))
	require.Equal(t, 0.0, Clip(0, 4))
}

func TestClippedBounds(t *testing.T) {
	const (
		maxLinear  = 4.0
		maxAngular = 8.0
		track      = 0.5
	)
	// Wheel targets computed from clipped inputs never exceed the
	// bound implied by the maxima.
	bound := maxLinear + track*maxAngular/2
	for _, tc := range []struct{ linear, angular float64 }{
		{100, 0}, {-100, 0}, {0, 100}, {100, 100}, {-100, -100}, {1e9, -1e9},
	} {
		left, right := BodyToWheel(Clip(tc.linear, maxLinear), Clip(tc.angular, maxAngular), track)
		require.True(t, left <= bound && left >= -bound, "left %v outside ±%v", left, bound)
		require.True(t, right <= bound && right >= -bound, "right %v outside ±%v", right, bound)
	}
}

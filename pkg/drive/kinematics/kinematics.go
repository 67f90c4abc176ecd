// Package kinematics provides the differential-drive velocity
// decomposition. All functions are pure; clipping and smoothing are
// the caller's responsibility.
package kinematics

import "math"

// BodyToWheel decomposes a body-frame velocity into per-wheel linear
// speeds. Positive angular rate turns toward the side with the slower
// wheel: the angular component is subtracted from the left wheel and
// added to the right.
func BodyToWheel(linearMPS, angularRadPS, trackWidthM float64) (leftMPS, rightMPS float64) {
	angularComponent := trackWidthM * angularRadPS / 2
	return linearMPS - angularComponent, linearMPS + angularComponent
}

// WheelToBody is the inverse of BodyToWheel, used on the feedback path.
func WheelToBody(leftMPS, rightMPS, trackWidthM float64) (linearMPS, angularRadPS float64) {
	linearMPS = (leftMPS + rightMPS) / 2
	angularRadPS = (rightMPS - leftMPS) / trackWidthM
	return
}

// MPSToRPM converts a linear wheel speed to wheel revolutions per minute.
func MPSToRPM(mps, wheelRadiusM float64) float64 {
	return mps / (2 * math.Pi * wheelRadiusM) * 60
}

// RPMToMPS converts wheel revolutions per minute to a linear wheel speed.
func RPMToMPS(rpm, wheelRadiusM float64) float64 {
	return rpm * 2 * math.Pi * wheelRadiusM / 60
}

// Clip bounds v to [-limit, limit].
func Clip(v, limit float64) float64 {
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}

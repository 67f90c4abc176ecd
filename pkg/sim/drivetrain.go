package sim

import (
	"math"

	"github.com/David-Feldt/waffle-car/pkg/drive/kinematics"
)

// Drivetrain simulates a differential drive. Wheel speeds approach
// their targets with a first-order lag so commanded steps come out
// as ramps, like a velocity controller would produce.
type Drivetrain struct {
	TrackWidthM  float64
	MaxLinearMPS float64
	// ResponseTau is the wheel speed time constant in seconds. Zero
	// means wheels respond instantly.
	ResponseTau float64

	pose         Pose
	targetLeft   float64
	targetRight  float64
	currentLeft  float64
	currentRight float64
}

// SetTarget applies a body velocity target.
func (d *Drivetrain) SetTarget(linearMPS, angularRadPS float64) {
	left, right := kinematics.BodyToWheel(linearMPS, angularRadPS, d.TrackWidthM)
	d.targetLeft = kinematics.Clip(left, d.MaxLinearMPS)
	d.targetRight = kinematics.Clip(right, d.MaxLinearMPS)
}

// Step advances the simulation by dt seconds.
func (d *Drivetrain) Step(dt float64) {
	if dt <= 0 {
		return
	}
	alpha := 1.0
	if d.ResponseTau > 0 {
		alpha = 1 - math.Exp(-dt/d.ResponseTau)
	}
	d.currentLeft += (d.targetLeft - d.currentLeft) * alpha
	d.currentRight += (d.targetRight - d.currentRight) * alpha
	linear, angular := kinematics.WheelToBody(d.currentLeft, d.currentRight, d.TrackWidthM)
	d.pose = d.pose.Advance(linear, angular, dt)
}

// WheelVelocities reports the current wheel ground speeds.
func (d *Drivetrain) WheelVelocities() (leftMPS, rightMPS float64) {
	return d.currentLeft, d.currentRight
}

// Pose reports the dead-reckoned pose.
func (d *Drivetrain) Pose() Pose { return d.pose }

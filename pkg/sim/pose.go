// Package sim provides a simulated drivetrain for running the stack
// without hardware.
package sim

import "math"

// Angle is a heading in radians, normalized to (-pi, pi].
type Angle float64

// AngleFromRadians creates an Angle from radians.
func AngleFromRadians(r float64) Angle {
	return Angle(normalizeRadians(r))
}

// AngleFromDegrees creates an Angle from degrees.
func AngleFromDegrees(d float64) Angle {
	return AngleFromRadians(d * math.Pi / 180)
}

// AddRadians rotates the angle.
func (a Angle) AddRadians(r float64) Angle {
	return AngleFromRadians(float64(a) + r)
}

// Radians gets the angle in radians.
func (a Angle) Radians() float64 { return float64(a) }

// Degrees gets the angle in degrees.
func (a Angle) Degrees() float64 { return float64(a) * 180 / math.Pi }

// Pose is a planar position plus heading.
type Pose struct {
	X, Y    float64
	Heading Angle
}

// Advance integrates a body velocity over dt seconds. Rotation is
// applied at the midpoint so arcs curve instead of stair-stepping.
func (p Pose) Advance(linear, angular, dt float64) Pose {
	mid := p.Heading.AddRadians(angular * dt / 2)
	p.X += linear * dt * math.Cos(mid.Radians())
	p.Y += linear * dt * math.Sin(mid.Radians())
	p.Heading = p.Heading.AddRadians(angular * dt)
	return p
}

func normalizeRadians(r float64) float64 {
	if r >= 2*math.Pi || r <= -2*math.Pi {
		r = math.Remainder(r, 2*math.Pi)
	}
	if r > math.Pi {
		r -= 2 * math.Pi
	} else if r <= -math.Pi {
		r += 2 * math.Pi
	}
	return r
}

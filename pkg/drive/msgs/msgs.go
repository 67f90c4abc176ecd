// Package msgs defines the message schemas and topics spoken between
// the drive node and its peers.
//
// Producer: teleop and planning nodes (targets), drive node (feedback)
// Consumer: drive node (targets), monitoring (feedback, heartbeats)
package msgs

import (
	"encoding/json"
	"time"
)

// Topics. The drive node subscribes to TopicTarget and publishes the
// other two.
const (
	TopicTarget    = "drive/target"
	TopicWheels    = "drive/wheels"
	TopicPose      = "drive/pose"
	TopicHeartbeat = "drive/heartbeat"
)

// VelocityTarget is a body-frame velocity intent.
type VelocityTarget struct {
	LinearMPS    float64 `json:"linear_mps"`
	AngularRadPS float64 `json:"angular_radps"`
}

// Zero reports whether the target commands no motion at all.
func (t *VelocityTarget) Zero() bool {
	return t.LinearMPS == 0 && t.AngularRadPS == 0
}

// WheelVelocities is measured per-wheel ground speed.
type WheelVelocities struct {
	LeftMPS  float64 `json:"left_mps"`
	RightMPS float64 `json:"right_mps"`
}

// Pose2D is a dead-reckoned planar pose.
type Pose2D struct {
	XM         float64 `json:"x_m"`
	YM         float64 `json:"y_m"`
	HeadingRad float64 `json:"heading_rad"`
}

// Heartbeat is published periodically so monitors can tell a silent
// node from a dead one.
type Heartbeat struct {
	Node      string    `json:"node"`
	MachineID string    `json:"machine_id"`
	State     string    `json:"state,omitempty"`
	Time      time.Time `json:"time"`
}

// Encode serializes a message for the wire.
func Encode(m interface{}) ([]byte, error) {
	return json.Marshal(m)
}

// Decode deserializes a wire payload into m.
func Decode(payload []byte, m interface{}) error {
	return json.Unmarshal(payload, m)
}

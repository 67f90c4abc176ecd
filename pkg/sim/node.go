package sim

import (
	"time"

	"github.com/golang/glog"

	"github.com/David-Feldt/waffle-car/pkg/comm/mqtt"
	"github.com/David-Feldt/waffle-car/pkg/drive/msgs"
	fx "github.com/David-Feldt/waffle-car/pkg/framework"
)

const slotTarget = "sim.target"

// Feedback is published every publishEvery iterations.
const publishEvery = 5

// Node runs a Drivetrain on the control loop and speaks the same
// topics as a real drive node.
type Node struct {
	train *Drivetrain
	queue *mqtt.Queue

	lastStep time.Time
	ticks    uint64
}

// NewNode creates a simulator node.
func NewNode(train *Drivetrain, queue *mqtt.Queue) *Node {
	return &Node{train: train, queue: queue}
}

// AddToLoop implements LoopAdder.
func (n *Node) AddToLoop(loop *fx.Loop) {
	loop.AddController(fx.StageControl, n)
	n.queue.Sub(msgs.TopicTarget, func(topic string, payload []byte) {
		var target msgs.VelocityTarget
		if err := msgs.Decode(payload, &target); err != nil {
			glog.Warningf("bad velocity target: %v", err)
			return
		}
		loop.Post(slotTarget, &target)
	})
}

// Control implements Controller: consume the latest target, advance
// the physics, publish feedback.
func (n *Node) Control(cc fx.ControlContext) error {
	if v, ok := cc.Take(slotTarget); ok {
		target := v.(*msgs.VelocityTarget)
		n.train.SetTarget(target.LinearMPS, target.AngularRadPS)
	}
	if !n.lastStep.IsZero() {
		n.train.Step(cc.Time().Sub(n.lastStep).Seconds())
	}
	n.lastStep = cc.Time()

	if n.ticks++; n.ticks%publishEvery == 0 {
		n.publish()
	}
	return nil
}

func (n *Node) publish() {
	left, right := n.train.WheelVelocities()
	if payload, err := msgs.Encode(&msgs.WheelVelocities{LeftMPS: left, RightMPS: right}); err == nil {
		n.queue.Pub(msgs.TopicWheels, payload)
	}
	pose := n.train.Pose()
	if payload, err := msgs.Encode(&msgs.Pose2D{
		XM:         pose.X,
		YM:         pose.Y,
		HeadingRad: pose.Heading.Radians(),
	}); err == nil {
		n.queue.Pub(msgs.TopicPose, payload)
	}
}

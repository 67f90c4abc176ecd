package drive

import (
	"context"
	"flag"
	"os"
	"sync/atomic"
	"time"

	"github.com/denisbrodbeck/machineid"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"

	"github.com/David-Feldt/waffle-car/pkg/comm/mqtt"
	"github.com/David-Feldt/waffle-car/pkg/drive/msgs"
	fx "github.com/David-Feldt/waffle-car/pkg/framework"
)

// Bus is the slice of the broker queue the node needs.
type Bus interface {
	Sub(topic string, handler mqtt.Handler) *mqtt.Subscription
	Pub(topic string, payload []byte) paho.Token
}

// SlotTarget is the loop slot incoming velocity targets are posted
// to by the broker subscription.
const SlotTarget = "drive.target"

// NodeConfig defines the configuration for the drive node.
type NodeConfig struct {
	BrokerURL string
	NodeName  string
	// CommandTimeout stops the drivetrain when no target arrives in
	// time, so a dead publisher cannot leave the robot driving.
	CommandTimeout time.Duration
	HeartbeatEvery time.Duration
}

var defaultNodeConfig = NodeConfig{
	BrokerURL:      "mqtt://127.0.0.1:1883",
	NodeName:       "drived",
	CommandTimeout: time.Second,
	HeartbeatEvery: 500 * time.Millisecond,
}

func init() {
	if brokerURL := os.Getenv("WAFFLE_BROKER_URL"); brokerURL != "" {
		defaultNodeConfig.BrokerURL = brokerURL
	}
}

// SetupNodeFlags sets command line flags for the drive node.
func SetupNodeFlags() {
	flag.StringVar(&defaultNodeConfig.BrokerURL, "broker", defaultNodeConfig.BrokerURL, "MQTT broker URL.")
	flag.StringVar(&defaultNodeConfig.NodeName, "node-name", defaultNodeConfig.NodeName, "Node name in heartbeats.")
	flag.DurationVar(&defaultNodeConfig.CommandTimeout, "command-timeout", defaultNodeConfig.CommandTimeout, "Stop when no velocity target arrives within this duration.")
	flag.DurationVar(&defaultNodeConfig.HeartbeatEvery, "heartbeat-every", defaultNodeConfig.HeartbeatEvery, "Heartbeat publish interval.")
}

// NewNodeConfig creates a node config with defaults.
func NewNodeConfig() *NodeConfig {
	conf := defaultNodeConfig
	return &conf
}

// NewNode creates a Node using the config.
func (c *NodeConfig) NewNode(motor *MotorControl, queue Bus) *Node {
	return &Node{conf: *c, motor: motor, queue: queue, machineID: machineID()}
}

// Node bridges the broker and the motor control facade. Targets
// arrive on the broker goroutine and are handed to the control loop
// through a slot; only the loop goroutine touches the facade.
type Node struct {
	conf      NodeConfig
	motor     *MotorControl
	queue     Bus
	machineID string

	lastCommand time.Time
	state       atomic.Value // State, for the heartbeat goroutine
}

// AddToLoop implements LoopAdder.
func (n *Node) AddToLoop(loop *fx.Loop) {
	loop.AddController(fx.StageActuate, n)
	loop.AddRunnable(fx.NamedRun("heartbeat", fx.RunnableFunc(n.heartbeat)))
	n.queue.Sub(msgs.TopicTarget, func(topic string, payload []byte) {
		var target msgs.VelocityTarget
		if err := msgs.Decode(payload, &target); err != nil {
			glog.Warningf("bad velocity target: %v", err)
			return
		}
		loop.Post(SlotTarget, &target)
		loop.TriggerNext()
	})
}

// Control implements Controller: apply the latest target, or stop on
// command timeout.
func (n *Node) Control(cc fx.ControlContext) error {
	defer n.state.Store(n.motor.State())
	if v, ok := cc.Take(SlotTarget); ok {
		target := v.(*msgs.VelocityTarget)
		n.lastCommand = cc.Time()
		n.motor.SetVelocity(target.LinearMPS, target.AngularRadPS)
		n.publishWheels()
		return nil
	}
	if n.motor.State() == Active && cc.Time().Sub(n.lastCommand) > n.conf.CommandTimeout {
		glog.Warningf("no velocity target for %v, stopping", n.conf.CommandTimeout)
		n.motor.Stop()
	}
	return nil
}

func (n *Node) publishWheels() {
	payload, err := msgs.Encode(&msgs.WheelVelocities{
		LeftMPS:  n.motor.LeftVelocity(),
		RightMPS: n.motor.RightVelocity(),
	})
	if err != nil {
		glog.Errorf("encode wheel velocities: %v", err)
		return
	}
	n.queue.Pub(msgs.TopicWheels, payload)
}

func (n *Node) heartbeat(ctx context.Context) error {
	ticker := time.NewTicker(n.conf.HeartbeatEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			hb := msgs.Heartbeat{
				Node:      n.conf.NodeName,
				MachineID: n.machineID,
				Time:      now,
			}
			if state, ok := n.state.Load().(State); ok {
				hb.State = state.String()
			}
			payload, err := msgs.Encode(&hb)
			if err != nil {
				return err
			}
			n.queue.Pub(msgs.TopicHeartbeat, payload)
		}
	}
}

func machineID() string {
	id, err := machineid.ID()
	if err != nil {
		glog.Warningf("machine ID unavailable: %v", err)
		return "unknown"
	}
	return id
}

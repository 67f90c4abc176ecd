package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"os"

	"github.com/golang/glog"
	"github.com/joho/godotenv"

	"github.com/David-Feldt/waffle-car/pkg/comm/mqtt"
	"github.com/David-Feldt/waffle-car/pkg/drive/msgs"
	"github.com/David-Feldt/waffle-car/pkg/framework"
	"github.com/David-Feldt/waffle-car/pkg/teleop"
)

var brokerURL = "mqtt://127.0.0.1:1883"

func init() {
	godotenv.Load()
	if v := os.Getenv("WAFFLE_BROKER_URL"); v != "" {
		brokerURL = v
	}
	flag.StringVar(&brokerURL, "broker", brokerURL, "MQTT broker URL.")
	teleop.SetupFlags()
}

func main() {
	flag.Parse()

	queue, err := mqtt.NewQueueFromURL(brokerURL)
	if err != nil {
		glog.Exitf("broker URL: %v", err)
	}
	if err = queue.Connect(); err != nil {
		glog.Exitf("broker connect: %v", err)
	}
	defer queue.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ctl := teleop.NewConfig().NewController()
	ctl.OnQuit = cancel

	loop := framework.NewLoop().Add(ctl)
	loop.AddController(framework.StageActuate, framework.ControlFunc(func(cc framework.ControlContext) error {
		v, ok := cc.Take(teleop.SlotTarget)
		if !ok {
			return nil
		}
		payload, err := msgs.Encode(v)
		if err != nil {
			return err
		}
		queue.Pub(msgs.TopicTarget, payload)
		return nil
	}))

	runner := framework.NewRunnerWith(ctx).HandleSignals()
	runner.Go(framework.NamedRun("loop", framework.RunnableFunc(loop.Run)))
	if err = runner.Wait(); err != nil {
		glog.Errorf("exit: %v", err)
	}
}

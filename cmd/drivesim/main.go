package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"os"

	"github.com/golang/glog"
	"github.com/joho/godotenv"

	"github.com/David-Feldt/waffle-car/pkg/comm/mqtt"
	"github.com/David-Feldt/waffle-car/pkg/framework"
	"github.com/David-Feldt/waffle-car/pkg/sim"
)

var brokerURL = "mqtt://127.0.0.1:1883"

func init() {
	godotenv.Load()
	if v := os.Getenv("WAFFLE_BROKER_URL"); v != "" {
		brokerURL = v
	}
	flag.StringVar(&brokerURL, "broker", brokerURL, "MQTT broker URL.")
	sim.SetupFlags()
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

	train := sim.NewConfig().NewDrivetrain()
	loop := framework.NewLoop().Add(sim.NewNode(train, queue))

	runner := framework.NewRunner().HandleSignals()
	runner.Go(framework.NamedRun("loop", framework.RunnableFunc(loop.Run)))
	if err = runner.Wait(); err != nil {
		glog.Errorf("exit: %v", err)
	}
}

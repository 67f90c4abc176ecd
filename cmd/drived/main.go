package main

//go-build: CGO_ENABLED=0

import (
	"flag"

	"github.com/golang/glog"
	"github.com/joho/godotenv"

	"github.com/David-Feldt/waffle-car/pkg/comm/mqtt"
	"github.com/David-Feldt/waffle-car/pkg/drive"
	"github.com/David-Feldt/waffle-car/pkg/framework"
)

func init() {
	godotenv.Load()
	drive.SetupFlags()
	drive.SetupNodeFlags()
}

func main() {
	flag.Parse()

	nodeConf := drive.NewNodeConfig()
	queue, err := mqtt.NewQueueFromURL(nodeConf.BrokerURL)
	if err != nil {
		glog.Exitf("broker URL: %v", err)
	}
	motor, err := drive.NewConfig().NewMotorControl()
	if err != nil {
		glog.Exitf("motor control: %v", err)
	}
	defer motor.Close()

	if err = queue.Connect(); err != nil {
		glog.Exitf("broker connect: %v", err)
	}
	defer queue.Close()

	loop := framework.NewLoop().Add(nodeConf.NewNode(motor, queue))
	runner := framework.NewRunner().HandleSignals()
	runner.Go(framework.NamedRun("loop", framework.RunnableFunc(loop.Run)))
	if err = runner.Wait(); err != nil {
		glog.Errorf("exit: %v", err)
	}
}

package main

import (
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/David-Feldt/waffle-car/pkg/comm/mqtt"
	"github.com/David-Feldt/waffle-car/pkg/drive/msgs"
)

var brokerURL = "mqtt://127.0.0.1:1883"

func init() {
	godotenv.Load()
	if v := os.Getenv("WAFFLE_BROKER_URL"); v != "" {
		brokerURL = v
	}
	flag.StringVar(&brokerURL, "broker", brokerURL, "MQTT broker URL.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(brokerURL)
	if err != nil {
		log.Fatalln(err)
	}
	if err = q.Connect(); err != nil {
		log.Fatalln(err)
	}

	q.Sub("drive/#", func(topic string, payload []byte) {
		var msg interface{}
		switch topic {
		case msgs.TopicTarget:
			msg = new(msgs.VelocityTarget)
		case msgs.TopicWheels:
			msg = new(msgs.WheelVelocities)
		case msgs.TopicPose:
			msg = new(msgs.Pose2D)
		case msgs.TopicHeartbeat:
			msg = new(msgs.Heartbeat)
		default:
			log.Printf("%s: %s", topic, payload)
			return
		}
		if err := msgs.Decode(payload, msg); err != nil {
			log.Printf("%s: bad message: %v", topic, err)
			return
		}
		log.Printf("%s: %+v", topic, msg)
	})
	select {}
}

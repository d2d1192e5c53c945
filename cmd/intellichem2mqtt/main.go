package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/spirilis/intellichem2mqtt/internal/bridge"
	"github.com/spirilis/intellichem2mqtt/internal/bus"
	"github.com/spirilis/intellichem2mqtt/internal/config"
)

var (
	serialPath   = kingpin.Flag("device", "Path to the RS-485 serial port device").Required().String()
	address      = kingpin.Flag("address", "IntelliChem controller address (144-158)").Default("144").Uint8()
	directionPin = kingpin.Flag("direction-pin", "GPIO pin asserting RS-485 TX direction; negative for auto-direction transceivers").Default("-1").Int()
	pollInterval = kingpin.Flag("poll-interval", "Status poll interval").Default("30s").Duration()
	liveness     = kingpin.Flag("liveness-threshold", "How long without a status response before the link is considered stale").Default("30s").Duration()
	brokerURI    = kingpin.Flag("broker", "MQTT broker URI, e.g. tcp://localhost:1883").Required().String()
	brokerUser   = kingpin.Flag("broker-user", "MQTT broker username").Default("").String()
	brokerPass   = kingpin.Flag("broker-pass", "MQTT broker password").Default("").String()
	topicPrefix  = kingpin.Flag("topic-prefix", "MQTT topic prefix").Default(config.DefaultTopicPrefix).String()
	debug        = kingpin.Flag("debug", "Enable debug logging").Short('v').Bool()
)

func main() {
	kingpin.Version("0.1")
	kingpin.Parse()

	log := logrus.New()
	if *debug {
		log.SetLevel(logrus.DebugLevel)
	}

	creds, err := loadCredentials()
	if err != nil {
		log.WithError(err).Fatal("intellichem2mqtt: failed to load credentials")
	}

	phy, err := bus.OpenSerial(*serialPath)
	if err != nil {
		log.WithError(err).Fatal("intellichem2mqtt: failed to open serial port")
	}

	dir, err := newDirectionController(log)
	if err != nil {
		log.WithError(err).Fatal("intellichem2mqtt: failed to configure direction GPIO")
	}

	cfg := bus.DefaultConfig()
	cfg.Address = *address
	cfg.PollInterval = *pollInterval
	cfg.LivenessThreshold = *liveness

	poller := bus.New(phy, dir, cfg, log.WithField("component", "bus"))

	opts := mqtt.NewClientOptions().
		AddBroker(creds.BrokerURI).
		SetClientID(fmt.Sprintf("%s-%d", creds.TopicPrefix, os.Getpid()))
	if creds.BrokerUser != "" {
		opts.SetUsername(creds.BrokerUser)
		opts.SetPassword(creds.BrokerPass)
	}

	br := bridge.New(opts, creds.TopicPrefix, poller.StateUpdates(), poller.Commands(), log.WithField("component", "bridge"))

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	if err := br.Connect(); err != nil {
		log.WithError(err).Fatal("intellichem2mqtt: initial broker connect failed")
	}

	done := make(chan struct{})
	go func() {
		poller.Run(ctx)
		close(done)
	}()
	go br.Run(ctx)

	log.WithFields(logrus.Fields{
		"device":  *serialPath,
		"address": cfg.Address,
		"broker":  creds.BrokerURI,
		"prefix":  creds.TopicPrefix,
	}).Info("intellichem2mqtt: running")

	<-sig
	log.Info("intellichem2mqtt: shutting down")
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Warn("intellichem2mqtt: bus poller did not shut down cleanly")
	}

	if closer, ok := dir.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			log.WithError(err).Warn("intellichem2mqtt: direction GPIO close failed")
		}
	}
}

func loadCredentials() (config.Credentials, error) {
	src := config.StaticSource{Credentials: config.Credentials{
		BrokerURI:   *brokerURI,
		BrokerUser:  *brokerUser,
		BrokerPass:  *brokerPass,
		TopicPrefix: *topicPrefix,
	}}
	return src.Load()
}

func newDirectionController(log *logrus.Logger) (bus.DirectionController, error) {
	if *directionPin < 0 {
		return bus.NoopDirectionController{}, nil
	}
	ctrl, err := bus.NewRPIODirectionController(*directionPin)
	if err != nil {
		return nil, err
	}
	log.WithField("pin", *directionPin).Info("intellichem2mqtt: direction GPIO configured")
	return ctrl, nil
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cansniffer "github.com/samsamfire/gocansniffer"
	"github.com/samsamfire/gocansniffer/pkg/can"
	"github.com/samsamfire/gocansniffer/pkg/config"
	"github.com/samsamfire/gocansniffer/pkg/sniffer"
	"github.com/samsamfire/gocansniffer/pkg/transport"
	log "github.com/sirupsen/logrus"

	_ "github.com/samsamfire/gocansniffer/pkg/can/socketcan"
	_ "github.com/samsamfire/gocansniffer/pkg/can/socketcanv2"
	_ "github.com/samsamfire/gocansniffer/pkg/can/virtual"
)

func main() {
	// Command line arguments, they override the configuration file
	configPath := flag.String("c", "", "configuration file (ini)")
	canInterface := flag.String("i", "", "can interface e.g. "+fmt.Sprint(can.Registered()))
	channel := flag.String("channel", "", "can channel e.g. can0, vcan0")
	serialPort := flag.String("serial", "", "host serial port, standard input/output if empty")
	verbose := flag.Bool("v", false, "debug logs")
	dumpConfig := flag.Bool("dump-config", false, "print the resulting configuration and exit")
	listPorts := flag.Bool("list-ports", false, "list serial ports and exit")
	flag.Parse()

	// Logs go to stderr, stdout may carry the host link
	log.SetOutput(os.Stderr)

	if *listPorts {
		ports, err := transport.Ports()
		if err != nil {
			log.Fatalf("[SNIFFER] failed to list serial ports : %v", err)
		}
		for _, port := range ports {
			fmt.Println(port)
		}
		return
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("[SNIFFER] failed to load %v : %v", *configPath, err)
		}
	}
	if *canInterface != "" {
		cfg.CAN.Interface = *canInterface
	}
	if *channel != "" {
		cfg.CAN.Channel = *channel
	}
	if *serialPort != "" {
		cfg.Serial.Port = *serialPort
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[SNIFFER] invalid configuration : %v", err)
	}
	log.SetLevel(cfg.LogLevel())
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}
	if *dumpConfig {
		_, _ = cfg.WriteTo(os.Stdout)
		return
	}

	if err := run(cfg); err != nil {
		log.Fatalf("[SNIFFER] %v", err)
	}
}

func run(cfg *config.Config) error {
	bus, err := can.NewBus(cfg.CAN.Interface, cfg.CAN.Channel)
	if err != nil {
		return err
	}
	if err := bus.Connect(); err != nil {
		return fmt.Errorf("failed to connect %v %v : %w", cfg.CAN.Interface, cfg.CAN.Channel, err)
	}
	defer bus.Disconnect()

	var link transport.Link
	if cfg.Serial.Port == "" {
		link = transport.NewStdio()
	} else {
		link, err = transport.OpenSerial(cfg.Serial.Port, int(cfg.Serial.Baud))
		if err != nil {
			return err
		}
	}
	defer link.Close()

	s, err := sniffer.NewSniffer(bus, cansniffer.NewSystemClock(), link, cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		err := link.Listen(ctx, s.Input())
		if err != nil && !errors.Is(err, context.Canceled) {
			// Host link lost, nothing left to do
			log.Errorf("[SNIFFER] host link closed : %v", err)
			stop()
		}
	}()

	log.Infof("[SNIFFER] running on %v %v", cfg.CAN.Interface, cfg.CAN.Channel)
	return s.Run(ctx)
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/samsamfire/gocansniffer/pkg/transport"
	log "github.com/sirupsen/logrus"
)

func main() {
	port := flag.String("p", "", "device serial port e.g. /dev/ttyACM0")
	baud := flag.Int("b", transport.DefaultBaudrate, "serial baudrate")
	verbose := flag.Bool("v", false, "debug logs")
	flag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}
	if *port == "" {
		ports, err := transport.Ports()
		if err != nil {
			log.Fatalf("[INSPECT] failed to list serial ports : %v", err)
		}
		fmt.Fprintf(os.Stderr, "no port given (-p), available ports : %v\n", ports)
		os.Exit(2)
	}

	link, err := transport.OpenSerial(*port, *baud)
	if err != nil {
		log.Fatalf("[INSPECT] %v", err)
	}
	defer link.Close()

	shell := newShell()
	in := newInspector(shellWriter{shell}, link)
	defer in.StopCapture()
	shell.Set(inspectorKey, in)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		err := link.Listen(ctx, in)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Errorf("[INSPECT] device link closed : %v", err)
		}
	}()

	// Commands given as arguments run once, without the interactive shell
	if flag.NArg() > 0 {
		if err := shell.Process(flag.Args()...); err != nil {
			log.Errorf("[INSPECT] %v", err)
		}
		return
	}
	shell.Run()
}

package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/abiosoft/ishell"
	"github.com/samsamfire/gocansniffer/pkg/transport"
)

const (
	inspectorKey = "$inspector"
	prompt       = "cansniffer > "
	maxReplayGap = time.Second
)

var commands = []*ishell.Cmd{
	&SendCmd,
	&MonitorCmd,
	&StopCmd,
	&CaptureCmd,
	&ReplayCmd,
	&StatsCmd,
	&PortsCmd,
}

// shellWriter prints the device output through the shell
type shellWriter struct {
	shell *ishell.Shell
}

func (w shellWriter) Write(p []byte) (int, error) {
	w.shell.Print(string(p))
	return len(p), nil
}

func newShell() *ishell.Shell {
	shell := ishell.New()
	shell.SetPrompt(prompt)
	for _, cmd := range commands {
		shell.AddCmd(cmd)
	}
	return shell
}

func inspectorFrom(c *ishell.Context) *inspector {
	return c.Get(inspectorKey).(*inspector)
}

var (
	// SendCmd sends a command line to the device.
	SendCmd = ishell.Cmd{
		Name:    "send",
		Aliases: []string{"s"},
		Help:    "LINE... e.g. send can start",
		Func: func(c *ishell.Context) {
			if len(c.Args) == 0 {
				c.Err(fmt.Errorf("command line expected"))
				return
			}
			if err := inspectorFrom(c).Send(strings.Join(c.Args, " ")); err != nil {
				c.Err(err)
			}
		},
	}

	// MonitorCmd prints decoded frames.
	MonitorCmd = ishell.Cmd{
		Name: "monitor",
		Help: "print received frames",
		Func: func(c *ishell.Context) {
			inspectorFrom(c).setMonitoring(true)
		},
	}

	// StopCmd stops printing frames, capture keeps running.
	StopCmd = ishell.Cmd{
		Name: "stop",
		Help: "stop printing received frames",
		Func: func(c *ishell.Context) {
			inspectorFrom(c).setMonitoring(false)
		},
	}

	// CaptureCmd records received frames to a file.
	CaptureCmd = ishell.Cmd{
		Name: "capture",
		Help: "FILE|stop",
		Func: func(c *ishell.Context) {
			in := inspectorFrom(c)
			if len(c.Args) != 1 {
				c.Err(fmt.Errorf("capture file or stop expected"))
				return
			}
			if c.Args[0] == "stop" {
				c.Printf("%d frames captured\n", in.StopCapture())
				return
			}
			if err := in.StartCapture(c.Args[0]); err != nil {
				c.Err(err)
			}
		},
	}

	// ReplayCmd prints a capture, optionally sending its frames again.
	ReplayCmd = ishell.Cmd{
		Name: "replay",
		Help: "FILE [send]",
		Func: func(c *ishell.Context) {
			if len(c.Args) == 0 {
				c.Err(fmt.Errorf("capture file expected"))
				return
			}
			send := len(c.Args) > 1 && c.Args[1] == "send"
			file, err := os.Open(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			defer file.Close()
			count, err := inspectorFrom(c).Replay(file, send, maxReplayGap)
			if err != nil {
				c.Err(err)
			}
			c.Printf("%d frames replayed\n", count)
		},
	}

	// StatsCmd shows decoding counters.
	StatsCmd = ishell.Cmd{
		Name: "stats",
		Help: "decoding counters",
		Func: func(c *ishell.Context) {
			s := inspectorFrom(c).Stats()
			c.Printf("frames: %d, text: %d, errors: %d\n", s.Frames, s.Texts, s.Errors)
		},
	}

	// PortsCmd lists the serial ports.
	PortsCmd = ishell.Cmd{
		Name: "ports",
		Help: "list serial ports",
		Func: func(c *ishell.Context) {
			ports, err := transport.Ports()
			if err != nil {
				c.Err(err)
				return
			}
			for _, port := range ports {
				c.Println(port)
			}
		},
	}
)

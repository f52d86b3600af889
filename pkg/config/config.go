package config

import (
	"fmt"
	"io"
	"math"

	cansniffer "github.com/samsamfire/gocansniffer"
	"github.com/samsamfire/gocansniffer/pkg/format"
	log "github.com/sirupsen/logrus"
	"gopkg.in/ini.v1"
)

type CANConfig struct {
	Interface string
	Channel   string
	Bitrate   uint32
}

type SerialConfig struct {
	Port string // Empty for standard input/output
	Baud uint32
}

type ParserConfig struct {
	QueueSize     uint32
	StrictNumbers bool
}

type ProcessorConfig struct {
	QueueSize uint32
}

type SequenceConfig struct {
	MaxSequences  uint32
	MinIntervalMs uint32
}

type BusLoadConfig struct {
	WindowMs         uint32
	ReportIntervalMs uint32
	Baudrate         uint32 // 0 follows the CAN bitrate
	TickMs           uint32
}

type OutputConfig struct {
	RawFormat    string
	ParsedFormat string
	Color        bool
	BufferSize   uint32
}

type LogConfig struct {
	Level string
}

// Config holds every tunable of the sniffer
type Config struct {
	CAN       CANConfig
	Serial    SerialConfig
	Parser    ParserConfig
	Processor ProcessorConfig
	Sequence  SequenceConfig
	BusLoad   BusLoadConfig
	Output    OutputConfig
	Log       LogConfig
}

// Default returns the firmware defaults
func Default() *Config {
	return &Config{
		CAN:       CANConfig{Interface: "virtual", Channel: "vcan0", Bitrate: 500000},
		Serial:    SerialConfig{Baud: 115200},
		Parser:    ParserConfig{QueueSize: 100},
		Processor: ProcessorConfig{QueueSize: 64},
		Sequence:  SequenceConfig{MaxSequences: 4, MinIntervalMs: 1},
		BusLoad:   BusLoadConfig{WindowMs: 1000, ReportIntervalMs: 1000, TickMs: 100},
		Output:    OutputConfig{RawFormat: "console", ParsedFormat: "detailed", Color: true, BufferSize: 256},
		Log:       LogConfig{Level: "info"},
	}
}

// Load reads an ini file (path, []byte or io.Reader) over the defaults
// and validates the result
func Load(source any) (*Config, error) {
	file, err := ini.Load(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cansniffer.ErrInvalidParam, err)
	}
	config := Default()
	if err := config.read(file); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	log.Debugf("[CONFIG] loaded %+v", *config)
	return config, nil
}

func (c *Config) read(file *ini.File) error {
	var err error
	section := file.Section("can")
	c.CAN.Interface = section.Key("interface").MustString(c.CAN.Interface)
	c.CAN.Channel = section.Key("channel").MustString(c.CAN.Channel)
	if c.CAN.Bitrate, err = readUint(section, "bitrate", c.CAN.Bitrate); err != nil {
		return err
	}

	section = file.Section("serial")
	c.Serial.Port = section.Key("port").MustString(c.Serial.Port)
	if c.Serial.Baud, err = readUint(section, "baud", c.Serial.Baud); err != nil {
		return err
	}

	section = file.Section("parser")
	if c.Parser.QueueSize, err = readUint(section, "queue_size", c.Parser.QueueSize); err != nil {
		return err
	}
	if c.Parser.StrictNumbers, err = readBool(section, "strict_numbers", c.Parser.StrictNumbers); err != nil {
		return err
	}

	section = file.Section("processor")
	if c.Processor.QueueSize, err = readUint(section, "queue_size", c.Processor.QueueSize); err != nil {
		return err
	}

	section = file.Section("sequence")
	if c.Sequence.MaxSequences, err = readUint(section, "max_sequences", c.Sequence.MaxSequences); err != nil {
		return err
	}
	if c.Sequence.MinIntervalMs, err = readUint(section, "min_interval_ms", c.Sequence.MinIntervalMs); err != nil {
		return err
	}

	section = file.Section("busload")
	if c.BusLoad.WindowMs, err = readUint(section, "window_ms", c.BusLoad.WindowMs); err != nil {
		return err
	}
	if c.BusLoad.ReportIntervalMs, err = readUint(section, "report_interval_ms", c.BusLoad.ReportIntervalMs); err != nil {
		return err
	}
	if c.BusLoad.Baudrate, err = readUint(section, "baudrate", c.BusLoad.Baudrate); err != nil {
		return err
	}
	if c.BusLoad.TickMs, err = readUint(section, "tick_ms", c.BusLoad.TickMs); err != nil {
		return err
	}

	section = file.Section("output")
	c.Output.RawFormat = section.Key("raw_format").MustString(c.Output.RawFormat)
	c.Output.ParsedFormat = section.Key("parsed_format").MustString(c.Output.ParsedFormat)
	if c.Output.Color, err = readBool(section, "color", c.Output.Color); err != nil {
		return err
	}
	if c.Output.BufferSize, err = readUint(section, "buffer_size", c.Output.BufferSize); err != nil {
		return err
	}

	c.Log.Level = file.Section("log").Key("level").MustString(c.Log.Level)
	return nil
}

func readUint(section *ini.Section, name string, defaultValue uint32) (uint32, error) {
	if !section.HasKey(name) {
		return defaultValue, nil
	}
	value, err := section.Key(name).Uint64()
	if err != nil || value > math.MaxUint32 {
		return 0, fmt.Errorf("%w: [%v] %v = %q", cansniffer.ErrInvalidParam, section.Name(), name, section.Key(name).String())
	}
	return uint32(value), nil
}

func readBool(section *ini.Section, name string, defaultValue bool) (bool, error) {
	if !section.HasKey(name) {
		return defaultValue, nil
	}
	value, err := section.Key(name).Bool()
	if err != nil {
		return false, fmt.Errorf("%w: [%v] %v = %q", cansniffer.ErrInvalidParam, section.Name(), name, section.Key(name).String())
	}
	return value, nil
}

// Validate rejects settings the sniffer cannot run with
func (c *Config) Validate() error {
	if c.CAN.Interface == "" {
		return fmt.Errorf("%w: empty can interface", cansniffer.ErrInvalidParam)
	}
	if c.CAN.Bitrate == 0 {
		return fmt.Errorf("%w: can bitrate 0", cansniffer.ErrInvalidParam)
	}
	for name, size := range map[string]uint32{
		"parser queue_size":      c.Parser.QueueSize,
		"processor queue_size":   c.Processor.QueueSize,
		"sequence max_sequences": c.Sequence.MaxSequences,
		"output buffer_size":     c.Output.BufferSize,
	} {
		if size == 0 || size > math.MaxUint16 {
			return fmt.Errorf("%w: %v %v out of range", cansniffer.ErrInvalidParam, name, size)
		}
	}
	if c.BusLoad.WindowMs == 0 || c.BusLoad.TickMs == 0 || c.BusLoad.ReportIntervalMs == 0 {
		return fmt.Errorf("%w: busload intervals must be above 0", cansniffer.ErrInvalidParam)
	}
	if _, err := format.ParseFormat(c.Output.RawFormat); err != nil {
		return err
	}
	if _, err := format.ParseFormat(c.Output.ParsedFormat); err != nil {
		return err
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %v", cansniffer.ErrInvalidParam, err)
	}
	return nil
}

// LoadBaudrate is the baudrate used for bus load estimation
func (c *Config) LoadBaudrate() uint32 {
	if c.BusLoad.Baudrate != 0 {
		return c.BusLoad.Baudrate
	}
	return c.CAN.Bitrate
}

// LogLevel returns the parsed log level, info if invalid
func (c *Config) LogLevel() log.Level {
	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// Formats returns the parsed raw and parsed output formats
func (c *Config) Formats() (raw format.Format, parsed format.Format, err error) {
	raw, err = format.ParseFormat(c.Output.RawFormat)
	if err != nil {
		return
	}
	parsed, err = format.ParseFormat(c.Output.ParsedFormat)
	return
}

// WriteTo writes the configuration as an ini file
func (c *Config) WriteTo(w io.Writer) (int64, error) {
	file := ini.Empty()
	sections := []struct {
		name string
		keys [][2]string
	}{
		{"can", [][2]string{
			{"interface", c.CAN.Interface},
			{"channel", c.CAN.Channel},
			{"bitrate", fmt.Sprint(c.CAN.Bitrate)},
		}},
		{"serial", [][2]string{
			{"port", c.Serial.Port},
			{"baud", fmt.Sprint(c.Serial.Baud)},
		}},
		{"parser", [][2]string{
			{"queue_size", fmt.Sprint(c.Parser.QueueSize)},
			{"strict_numbers", fmt.Sprint(c.Parser.StrictNumbers)},
		}},
		{"processor", [][2]string{
			{"queue_size", fmt.Sprint(c.Processor.QueueSize)},
		}},
		{"sequence", [][2]string{
			{"max_sequences", fmt.Sprint(c.Sequence.MaxSequences)},
			{"min_interval_ms", fmt.Sprint(c.Sequence.MinIntervalMs)},
		}},
		{"busload", [][2]string{
			{"window_ms", fmt.Sprint(c.BusLoad.WindowMs)},
			{"report_interval_ms", fmt.Sprint(c.BusLoad.ReportIntervalMs)},
			{"baudrate", fmt.Sprint(c.BusLoad.Baudrate)},
			{"tick_ms", fmt.Sprint(c.BusLoad.TickMs)},
		}},
		{"output", [][2]string{
			{"raw_format", c.Output.RawFormat},
			{"parsed_format", c.Output.ParsedFormat},
			{"color", fmt.Sprint(c.Output.Color)},
			{"buffer_size", fmt.Sprint(c.Output.BufferSize)},
		}},
		{"log", [][2]string{
			{"level", c.Log.Level},
		}},
	}
	for _, s := range sections {
		section, err := file.NewSection(s.name)
		if err != nil {
			return 0, err
		}
		for _, kv := range s.keys {
			if _, err := section.NewKey(kv[0], kv[1]); err != nil {
				return 0, err
			}
		}
	}
	return file.WriteTo(w)
}

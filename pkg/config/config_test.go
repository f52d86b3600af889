package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	cansniffer "github.com/samsamfire/gocansniffer"
	"github.com/samsamfire/gocansniffer/pkg/format"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	config := Default()
	assert.Nil(t, config.Validate())
	assert.EqualValues(t, 500000, config.LoadBaudrate())
	assert.Equal(t, log.InfoLevel, config.LogLevel())
	raw, parsed, err := config.Formats()
	assert.Nil(t, err)
	assert.Equal(t, format.Console, raw)
	assert.Equal(t, format.Detailed, parsed)
}

func TestLoadOverridesDefaults(t *testing.T) {
	source := []byte(`
[can]
interface = socketcanv2
channel = can1
bitrate = 250000

[parser]
strict_numbers = true

[busload]
baudrate = 125000

[output]
raw_format = framed
color = false

[log]
level = debug
`)
	config, err := Load(source)
	require.Nil(t, err)
	assert.Equal(t, "socketcanv2", config.CAN.Interface)
	assert.Equal(t, "can1", config.CAN.Channel)
	assert.EqualValues(t, 250000, config.CAN.Bitrate)
	assert.True(t, config.Parser.StrictNumbers)
	assert.EqualValues(t, 100, config.Parser.QueueSize)
	assert.EqualValues(t, 125000, config.LoadBaudrate())
	assert.Equal(t, "framed", config.Output.RawFormat)
	assert.False(t, config.Output.Color)
	assert.Equal(t, log.DebugLevel, config.LogLevel())
	assert.EqualValues(t, 4, config.Sequence.MaxSequences)
}

func TestLoadRejectsInvalid(t *testing.T) {
	for _, source := range []string{
		"[can]\nbitrate = 0\n",
		"[can]\nbitrate = fast\n",
		"[parser]\nqueue_size = 0\n",
		"[processor]\nqueue_size = 70000\n",
		"[output]\nraw_format = json\n",
		"[output]\ncolor = maybe\n",
		"[busload]\nwindow_ms = 0\n",
		"[log]\nlevel = loud\n",
	} {
		_, err := Load([]byte(source))
		assert.NotNil(t, err, source)
	}
	_, err := Load([]byte("[output]\nraw_format = json\n"))
	assert.ErrorIs(t, err, cansniffer.ErrUnsupportedFormat)
	_, err = Load([]byte("[can]\nbitrate = 0\n"))
	assert.ErrorIs(t, err, cansniffer.ErrInvalidParam)
}

func TestWriteToRoundTrip(t *testing.T) {
	config := Default()
	config.Serial.Port = "/dev/ttyACM0"
	config.Sequence.MaxSequences = 8
	buf := &bytes.Buffer{}
	_, err := config.WriteTo(buf)
	require.Nil(t, err)

	path := filepath.Join(t.TempDir(), "sniffer.ini")
	require.Nil(t, os.WriteFile(path, buf.Bytes(), 0o644))
	loaded, err := Load(path)
	require.Nil(t, err)
	assert.Equal(t, config, loaded)
}

package config

import (
	"github.com/pkg/errors"
)

const (
	DefaultBlockSize = 4096
	SectorSize       = 512
)

var (
	ErrDeviceNotFound  = errors.New("device name is required")
	ErrInvalidEmitMode = errors.New("invalid emit mode")
)

type MarkerMode int

const (
	MarkerByte     MarkerMode = 0 // single trailing marker byte
	MarkerMetadata MarkerMode = 1 // trailing docblk meta structure
)

func (m MarkerMode) String() string {
	if m == MarkerMetadata {
		return "DOCBLK_META"
	}

	return "BLK_MARKER"
}

type EmitMode string

const (
	// EmitBlock writes one rewritten trace line per inspected block.
	EmitBlock EmitMode = "block"
	// EmitEvent writes the trace line once, followed by the labels of every block in its range.
	EmitEvent EmitMode = "event"
)

type Config struct {
	BlockSize     int64
	Marker        MarkerMode
	DevicePath    string
	Emit          EmitMode
	MetricsListen string
}

func Default() Config {
	return Config{
		BlockSize: DefaultBlockSize,
		Marker:    MarkerByte,
		Emit:      EmitBlock,
	}
}

// Verify checks the device path and normalizes the remaining options.
// A bad block size or marker mode falls back to the default.
func (c *Config) Verify() error {
	if len(c.DevicePath) == 0 {
		return ErrDeviceNotFound
	}

	if c.BlockSize <= 0 || c.BlockSize%SectorSize != 0 {
		c.BlockSize = DefaultBlockSize
	}

	if c.Marker != MarkerByte && c.Marker != MarkerMetadata {
		c.Marker = MarkerByte
	}

	switch c.Emit {
	case "":
		c.Emit = EmitBlock
	case EmitBlock, EmitEvent:
	default:
		return errors.Wrapf(ErrInvalidEmitMode, "%q", c.Emit)
	}

	return nil
}

// SectorsPerBlock is the length field value written for one block in block emit mode.
func (c *Config) SectorsPerBlock() int64 {
	return c.BlockSize / SectorSize
}

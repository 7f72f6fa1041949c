package levelport

import (
	"errors"
	"io"
	"time"
)

var ErrNoData = errors.New("no data received from level")

// LevelReader captures one export dump from a digital level over serial.
type LevelReader struct {
	port        string
	baudrate    uint
	idleTimeout time.Duration
	serialPort  io.ReadWriteCloser
}

// Capture is a saved export.
type Capture struct {
	Path        string `json:"path"`
	Dialect     string `json:"dialect"`
	Sets        int    `json:"sets"`
	Bytes       int    `json:"bytes"`
	Fingerprint string `json:"fingerprint"`
}

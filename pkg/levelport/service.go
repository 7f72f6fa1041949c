// Package levelport reads instrument exports straight from a digital level's
// serial port and stores them for upload.
package levelport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/NotCoffee418/staff_calibration/pkg/instrument"
	"github.com/google/uuid"
	"github.com/jacobsa/go-serial/serial"
	"github.com/sirupsen/logrus"
)

const readChunk = 4096

func NewLevelReader(port string, baudrate uint, idleTimeout time.Duration) *LevelReader {
	return &LevelReader{
		port:        port,
		baudrate:    baudrate,
		idleTimeout: idleTimeout,
	}
}

// Capture waits for the level to start sending and returns everything it
// sent until the line stayed quiet for the idle timeout.
func (l *LevelReader) Capture(ctx context.Context) ([]byte, error) {
	if err := l.connect(); err != nil {
		return nil, err
	}
	defer l.disconnect()
	return readDump(ctx, l.serialPort, l.idleTimeout)
}

func (l *LevelReader) connect() error {
	options := serial.OpenOptions{
		PortName:        l.port,
		BaudRate:        l.baudrate,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
	}

	port, err := serial.Open(options)
	if err != nil {
		return fmt.Errorf("failed to open serial port: %w", err)
	}

	l.serialPort = port
	logrus.WithField("port", l.port).Info("Connected to level")
	return nil
}

func (l *LevelReader) disconnect() {
	if l.serialPort != nil {
		l.serialPort.Close()
		l.serialPort = nil
		logrus.WithField("port", l.port).Info("Disconnected from level")
	}
}

// readDump collects data from r. The idle timer only starts once the first
// bytes arrived, so the operator can start the transfer at any time.
func readDump(ctx context.Context, r io.Reader, idle time.Duration) ([]byte, error) {
	type chunk struct {
		data []byte
		err  error
	}
	// Stops the reader goroutine on every return path, including idle.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks := make(chan chunk, 16)
	go func() {
		defer close(chunks)
		for {
			if ctx.Err() != nil {
				return
			}
			buf := make([]byte, readChunk)
			n, err := r.Read(buf)
			if n > 0 || err != nil {
				select {
				case chunks <- chunk{data: buf[:n], err: err}:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	var dump bytes.Buffer
	var timeout <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeout:
			return dump.Bytes(), nil
		case c, ok := <-chunks:
			if !ok {
				return finish(dump.Bytes())
			}
			dump.Write(c.data)
			if c.err == io.EOF {
				return finish(dump.Bytes())
			}
			if c.err != nil {
				return nil, fmt.Errorf("read from level: %w", c.err)
			}
			if dump.Len() > 0 {
				timeout = time.After(idle)
			}
		}
	}
}

func finish(dump []byte) ([]byte, error) {
	if len(dump) == 0 {
		return nil, ErrNoData
	}
	return dump, nil
}

// SaveCapture validates a dump as an instrument export and writes it to dir
// as capture-<uuid>.asc.
func SaveCapture(dir string, content []byte) (*Capture, error) {
	parsed, err := instrument.ParseFile(content)
	if err != nil {
		return nil, err
	}
	if len(parsed.Sets) == 0 {
		return nil, fmt.Errorf("capture holds no level run: %w", ErrNoData)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, fmt.Sprintf("capture-%s.asc", uuid.New().String()))
	if err := os.WriteFile(path, content, 0644); err != nil {
		return nil, err
	}

	c := &Capture{
		Path:        path,
		Dialect:     parsed.Dialect.String(),
		Sets:        len(parsed.Sets),
		Bytes:       len(content),
		Fingerprint: instrument.Fingerprint(content),
	}
	logrus.WithFields(logrus.Fields{
		"path":        c.Path,
		"dialect":     c.Dialect,
		"sets":        c.Sets,
		"fingerprint": c.Fingerprint,
	}).Info("Capture saved")
	return c, nil
}

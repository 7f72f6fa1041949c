package levelport

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/NotCoffee418/staff_calibration/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func export() string {
	var b strings.Builder
	b.WriteString("BFOD capture\n")
	b.WriteString("|---------|---------|---------|---------|------------|---------|---------|---------|---------|---------|\n")
	for i := 0; i < 8; i++ {
		fmt.Fprintf(&b, "|%.5f||||||3|0.00001|%d||\n", 0.5+float64(i)*0.3, i+1)
	}
	return b.String()
}

func TestReadDumpStopsWhenIdle(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	go func() {
		for _, part := range []string{"BFOD ", "line one\n", "line two\n"} {
			pw.Write([]byte(part))
			time.Sleep(5 * time.Millisecond)
		}
	}()

	dump, err := readDump(context.Background(), pr, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "BFOD line one\nline two\n", string(dump))
}

// gatedReader returns its first chunk at once and keeps streaming once
// release is closed.
type gatedReader struct {
	release chan struct{}
	reads   atomic.Int64
}

func (g *gatedReader) Read(p []byte) (int, error) {
	if g.reads.Add(1) > 1 {
		<-g.release
	}
	return copy(p, "BFOD\n"), nil
}

func TestReadDumpStopsReaderAfterIdle(t *testing.T) {
	r := &gatedReader{release: make(chan struct{})}

	dump, err := readDump(context.Background(), r, 30*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "BFOD\n", string(dump))

	before := r.reads.Load()
	close(r.release)
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, r.reads.Load()-before, int64(1))
}

func TestReadDumpEOF(t *testing.T) {
	dump, err := readDump(context.Background(), strings.NewReader("all at once"), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "all at once", string(dump))

	_, err = readDump(context.Background(), strings.NewReader(""), time.Minute)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestReadDumpCancelled(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := readDump(ctx, pr, time.Minute)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSaveCapture(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "captures")
	c, err := SaveCapture(dir, []byte(export()))
	require.NoError(t, err)
	assert.Equal(t, "BFOD", c.Dialect)
	assert.Equal(t, 1, c.Sets)
	assert.True(t, strings.HasPrefix(filepath.Base(c.Path), "capture-"))
	assert.Equal(t, ".asc", filepath.Ext(c.Path))

	content, err := os.ReadFile(c.Path)
	require.NoError(t, err)
	assert.Equal(t, export(), string(content))

	_, err = SaveCapture(dir, []byte("garbage"))
	assert.ErrorIs(t, err, types.ErrUnsupportedFormat)
}

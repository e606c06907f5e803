package application

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeTestPNG writes a w x h gradient PNG and returns its path.
func writeTestPNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: uint8(x ^ y), A: 255})
		}
	}

	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	f, err := os.Create(p)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return p
}

func decodeTestPNG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

// fakeTranscoder records calls and can hold or fail individual paths.
// It tracks how many calls overlap so tests can assert serialization.
type fakeTranscoder struct {
	mu     sync.Mutex
	calls  []string
	gates  map[string]chan struct{}
	fails  map[string]error
	panics map[string]bool

	started   chan string
	active    atomic.Int32
	maxActive atomic.Int32
}

func newFakeTranscoder() *fakeTranscoder {
	return &fakeTranscoder{
		gates:   make(map[string]chan struct{}),
		fails:   make(map[string]error),
		panics:  make(map[string]bool),
		started: make(chan string, 64),
	}
}

// hold makes calls for path block until the returned func is called.
func (f *fakeTranscoder) hold(path string) func() {
	gate := make(chan struct{})
	f.mu.Lock()
	f.gates[path] = gate
	f.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (f *fakeTranscoder) Transcode(path string, width int) ([]byte, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		m := f.maxActive.Load()
		if n <= m || f.maxActive.CompareAndSwap(m, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, path)
	gate := f.gates[path]
	err := f.fails[path]
	shouldPanic := f.panics[path]
	f.mu.Unlock()

	f.started <- path
	if gate != nil {
		<-gate
	}
	if shouldPanic {
		panic("decoder blew up")
	}
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("%s@%d", path, width)), nil
}

func (f *fakeTranscoder) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

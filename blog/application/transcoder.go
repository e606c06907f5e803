package application

import (
	"bytes"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/dfryer1193/goblog-images/blog/domain"
	"github.com/disintegration/imaging"
)

// Transcoder turns a source image into PNG bytes no wider than width.
type Transcoder interface {
	Transcode(path string, width int) ([]byte, error)
}

// PNGTranscoder decodes with imaging and re-encodes as PNG, downscaling with
// Lanczos when the source is wider than requested. It never upscales.
//
// A PNGTranscoder reuses one encode buffer between calls and is not safe for
// concurrent use; run it behind a ResizeWorker.
type PNGTranscoder struct {
	buf  bytes.Buffer
	busy atomic.Bool
}

func NewPNGTranscoder() *PNGTranscoder {
	return &PNGTranscoder{}
}

func (t *PNGTranscoder) Transcode(path string, width int) ([]byte, error) {
	if !t.busy.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("%w: transcoder entered concurrently", domain.ErrProcessingFailure)
	}
	defer t.busy.Store(false)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSourceUnreadable, err)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %w", domain.ErrProcessingFailure, path, err)
	}

	if width > 0 && img.Bounds().Dx() > width {
		// Height 0 keeps the aspect ratio.
		img = imaging.Resize(img, width, 0, imaging.Lanczos)
	}

	t.buf.Reset()
	if err := imaging.Encode(&t.buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("%w: encoding %s: %w", domain.ErrProcessingFailure, path, err)
	}

	return bytes.Clone(t.buf.Bytes()), nil
}

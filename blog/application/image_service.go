package application

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dfryer1193/goblog-images/blog/domain"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// DefaultMaxWidth bounds the widths a caller may ask for.
const DefaultMaxWidth = 4096

// Resizer queues resize work. *ResizeWorker is the production implementation.
type Resizer interface {
	Enqueue(sourcePath string, width int) (*ResizeJob, error)
}

type ServiceConfig struct {
	MaxWidth int

	// DedupeInFlight collapses concurrent misses for the same key into one job.
	DedupeInFlight bool
}

// ImageService resolves image ids and serves resized renditions through the
// cache, queueing a resize on a miss.
type ImageService struct {
	registry domain.Registry
	cache    domain.CacheStore
	resizer  Resizer

	maxWidth int
	dedupe   bool
	inFlight singleflight.Group
}

func NewImageService(registry domain.Registry, cache domain.CacheStore, resizer Resizer, cfg ServiceConfig) *ImageService {
	if cfg.MaxWidth <= 0 {
		cfg.MaxWidth = DefaultMaxWidth
	}
	return &ImageService{
		registry: registry,
		cache:    cache,
		resizer:  resizer,
		maxWidth: cfg.MaxWidth,
		dedupe:   cfg.DedupeInFlight,
	}
}

// Resolve maps id to its source file and stats it. The modification time is
// read on every call so keys follow edits on disk.
func (s *ImageService) Resolve(id string) (domain.ImageSource, error) {
	if id == "" {
		return domain.ImageSource{}, fmt.Errorf("%w: id", domain.ErrMissingParameter)
	}

	path, ok := s.registry.Lookup(id)
	if !ok {
		return domain.ImageSource{}, fmt.Errorf("%w: %s", domain.ErrUnknownImage, id)
	}

	info, err := os.Stat(path)
	if err != nil {
		return domain.ImageSource{}, fmt.Errorf("%w: %w", domain.ErrSourceUnreadable, err)
	}
	if info.IsDir() {
		return domain.ImageSource{}, fmt.Errorf("%w: %s is a directory", domain.ErrSourceUnreadable, path)
	}

	return domain.ImageSource{
		ID:      id,
		Path:    path,
		ModTime: info.ModTime(),
	}, nil
}

// Resized returns src as PNG at most width pixels wide. hit reports whether
// the bytes came from the cache.
//
// On a miss the resize is queued and its result is written to the cache
// before returning. The wait is detached from ctx's cancellation: the job
// runs to completion and is cached even if the caller goes away.
func (s *ImageService) Resized(ctx context.Context, src domain.ImageSource, width int) (data []byte, hit bool, err error) {
	if width <= 0 || width > s.maxWidth {
		return nil, false, fmt.Errorf("%w: w must be between 1 and %d", domain.ErrInvalidParameter, s.maxWidth)
	}

	key := domain.DeriveKey(src.Path, width, src.ModTime)

	data, err = s.cache.Get(ctx, key)
	switch {
	case err == nil:
		log.Debug().Str("id", src.ID).Int("width", width).Str("key", key.String()).Msg("Image cache hit")
		return data, true, nil
	case !errors.Is(err, domain.ErrCacheMiss):
		log.Warn().Err(err).Str("key", key.String()).Msg("Image cache lookup failed, resizing instead")
	}

	log.Info().Str("id", src.ID).Str("path", src.Path).Int("width", width).Msg("Resizing the image")

	jobCtx := context.WithoutCancel(ctx)
	if !s.dedupe {
		data, err = s.resizeAndStore(jobCtx, src.Path, width, key)
		return data, false, err
	}

	v, err, _ := s.inFlight.Do(key.String(), func() (any, error) {
		return s.resizeAndStore(jobCtx, src.Path, width, key)
	})
	if err != nil {
		return nil, false, err
	}
	return v.([]byte), false, nil
}

func (s *ImageService) resizeAndStore(ctx context.Context, path string, width int, key domain.CacheKey) ([]byte, error) {
	job, err := s.resizer.Enqueue(path, width)
	if err != nil {
		return nil, err
	}

	data, err := job.Wait(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, data); err != nil {
		// The bytes are still correct; the next request just resizes again.
		log.Error().Err(err).Str("key", key.String()).Msg("Failed to store resized image")
	}
	return data, nil
}

package application

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dfryer1193/goblog-images/blog/domain"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// maxPostDepth matches the content layout: posts/<slug>.md or posts/<slug>/index.md.
const maxPostDepth = 2

// ImageIndex is an in-memory domain.Registry. It is safe for concurrent use.
type ImageIndex struct {
	mu    sync.RWMutex
	paths map[string]string
}

var _ domain.Registry = (*ImageIndex)(nil)

func NewImageIndex() *ImageIndex {
	return &ImageIndex{
		paths: make(map[string]string),
	}
}

// Register maps id to path, replacing any earlier mapping.
func (x *ImageIndex) Register(id, path string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.paths[id] = path
}

func (x *ImageIndex) Lookup(id string) (string, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	p, ok := x.paths[id]
	return p, ok
}

func (x *ImageIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.paths)
}

// manifest is the YAML form of a registry: images: {id: path}.
type manifest struct {
	Images map[string]string `yaml:"images"`
}

// LoadManifest registers every entry of the YAML manifest at file. Relative
// paths are resolved against the manifest's directory.
func (x *ImageIndex) LoadManifest(file string) (int, error) {
	raw, err := os.ReadFile(file)
	if err != nil {
		return 0, fmt.Errorf("failed to read image manifest: %w", err)
	}

	var m manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return 0, fmt.Errorf("failed to parse image manifest %s: %w", file, err)
	}

	dir := filepath.Dir(file)
	for id, p := range m.Images {
		if id == "" || p == "" {
			return 0, fmt.Errorf("image manifest %s has an empty id or path", file)
		}
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		x.Register(id, p)
	}
	return len(m.Images), nil
}

// ScanPosts walks the markdown posts under root and registers every local
// image they reference as "<slug>/<basename>". A reference to a file that
// does not exist is an error, like a broken build.
func (x *ImageIndex) ScanPosts(root string, extractor ImageReferenceExtractor) (int, error) {
	registered := 0
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, p)
		if d.IsDir() {
			if rel != "." && strings.Count(rel, string(filepath.Separator))+1 >= maxPostDepth {
				return fs.SkipDir
			}
			return nil
		}
		if filepath.Ext(p) != ".md" {
			return nil
		}

		n, err := x.registerPost(p, extractor)
		if err != nil {
			return fmt.Errorf("post %s: %w", rel, err)
		}
		registered += n
		return nil
	})
	if err != nil {
		return registered, fmt.Errorf("failed to scan posts in %s: %w", root, err)
	}
	return registered, nil
}

func (x *ImageIndex) registerPost(file string, extractor ImageReferenceExtractor) (int, error) {
	markdown, err := os.ReadFile(file)
	if err != nil {
		return 0, err
	}

	refs, err := extractor.Extract(markdown)
	if err != nil {
		return 0, err
	}

	slug := postSlug(file)
	dir := filepath.Dir(file)
	for _, ref := range refs {
		imagePath := filepath.Join(dir, filepath.FromSlash(ref))
		if _, err := os.Lstat(imagePath); err != nil {
			return 0, fmt.Errorf("image %s: %w", ref, err)
		}

		id := slug + "/" + filepath.Base(imagePath)
		x.Register(id, imagePath)
		log.Debug().Str("id", id).Str("path", imagePath).Msg("Registered image")
	}
	return len(refs), nil
}

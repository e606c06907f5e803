package application

import (
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

var (
	frontMatterDelim = []byte("---")
	htmlImgSrcRegex  = regexp.MustCompile(`<img src="([^"]+)"`)
)

// frontMatter is the part of a post's YAML header that references images.
type frontMatter struct {
	Extra struct {
		PreviewImage struct {
			Href string `yaml:"href"`
			Alt  string `yaml:"alt"`
		} `yaml:"preview_image"`
	} `yaml:"extra"`
}

// ImageReferenceExtractor lists the local images a post points at.
type ImageReferenceExtractor interface {
	Extract(markdown []byte) ([]string, error)
}

type markdownImageExtractor struct {
	md goldmark.Markdown
}

func NewImageReferenceExtractor() ImageReferenceExtractor {
	return &markdownImageExtractor{
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
			),
		),
	}
}

// Extract returns the relative image destinations in markdown, in document
// order: the front matter preview image, markdown images, and <img src> tags
// inside raw HTML blocks.
func (e *markdownImageExtractor) Extract(markdown []byte) ([]string, error) {
	fm, body, err := splitFrontMatter(markdown)
	if err != nil {
		return nil, err
	}

	var refs []string
	if href := fm.Extra.PreviewImage.Href; href != "" && isRelativeLink(href) {
		refs = append(refs, href)
	}

	doc := e.md.Parser().Parse(text.NewReader(body))
	err = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Image:
			if dest := string(node.Destination); isRelativeLink(dest) {
				refs = append(refs, dest)
			}
		case *ast.HTMLBlock:
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				refs = append(refs, htmlImageSources(seg.Value(body))...)
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk markdown: %w", err)
	}

	return refs, nil
}

func htmlImageSources(line []byte) []string {
	var srcs []string
	for _, m := range htmlImgSrcRegex.FindAllSubmatch(line, -1) {
		if src := string(m[1]); isRelativeLink(src) {
			srcs = append(srcs, src)
		}
	}
	return srcs
}

// splitFrontMatter separates a leading "---" delimited YAML header from the body.
func splitFrontMatter(markdown []byte) (frontMatter, []byte, error) {
	var fm frontMatter

	if !bytes.HasPrefix(markdown, frontMatterDelim) {
		return fm, markdown, nil
	}

	rest := markdown[len(frontMatterDelim):]
	end := bytes.Index(rest, append([]byte("\n"), frontMatterDelim...))
	if end < 0 {
		return fm, markdown, nil
	}

	if err := yaml.Unmarshal(rest[:end], &fm); err != nil {
		return fm, nil, fmt.Errorf("failed to parse front matter: %w", err)
	}

	body := rest[end+1+len(frontMatterDelim):]
	return fm, bytes.TrimLeft(body, "\r\n"), nil
}

// isRelativeLink reports whether dest points inside the site rather than at
// another host.
func isRelativeLink(dest string) bool {
	if dest == "" {
		return false
	}

	if strings.HasPrefix(dest, "/") {
		return !strings.HasPrefix(dest, "//")
	}

	if strings.Contains(dest, ":") {
		return false
	}

	return true
}

// postSlug names a post the way its URL does: index.md takes its directory's
// name, any other file its own name up to the first dot.
func postSlug(file string) string {
	base := filepath.Base(file)
	if base == "index.md" {
		return filepath.Base(filepath.Dir(file))
	}
	slug, _, _ := strings.Cut(base, ".")
	return slug
}

package application

import (
	"path/filepath"
	"reflect"
	"testing"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name     string
		markdown string
		expected []string
	}{
		{
			name:     "No images",
			markdown: "# Title\n\nJust words.",
			expected: nil,
		},
		{
			name:     "Markdown image",
			markdown: "Intro\n\n![a cat](cat.png)\n",
			expected: []string{"cat.png"},
		},
		{
			name:     "Remote images are skipped",
			markdown: "![x](https://example.com/x.png)\n\n![y](//cdn.example.com/y.png)\n",
			expected: nil,
		},
		{
			name: "Labeled image block",
			markdown: "Before\n\n<labeled-img>\n" +
				"  <img src=\"diagram.png\" alt=\"diagram\">\n" +
				"  <p>caption</p>\n</labeled-img>\n\nAfter\n",
			expected: []string{"diagram.png"},
		},
		{
			name: "Preview image in front matter",
			markdown: "---\ntitle: Hello\nextra:\n  preview_image:\n    href: cover.png\n    alt: cover\n---\n\n" +
				"![inline](inline.png)\n",
			expected: []string{"cover.png", "inline.png"},
		},
		{
			name:     "Front matter without preview image",
			markdown: "---\ntitle: Hello\n---\nBody ![a](a.png)\n",
			expected: []string{"a.png"},
		},
		{
			name:     "Nested path",
			markdown: "![p](./img/photo.png)\n",
			expected: []string{"./img/photo.png"},
		},
	}

	extractor := NewImageReferenceExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refs, err := extractor.Extract([]byte(tt.markdown))
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			if !reflect.DeepEqual(refs, tt.expected) {
				t.Errorf("Extract() = %q, want %q", refs, tt.expected)
			}
		})
	}
}

func TestExtract_BadFrontMatter(t *testing.T) {
	extractor := NewImageReferenceExtractor()
	_, err := extractor.Extract([]byte("---\nextra: [unclosed\n---\nbody\n"))
	if err == nil {
		t.Error("Extract() expected an error for malformed front matter")
	}
}

func TestSplitFrontMatter(t *testing.T) {
	tests := []struct {
		name     string
		markdown string
		href     string
		body     string
	}{
		{
			name:     "No front matter",
			markdown: "# Title\n",
			body:     "# Title\n",
		},
		{
			name:     "Unterminated front matter is body",
			markdown: "---\ntitle: x\n",
			body:     "---\ntitle: x\n",
		},
		{
			name:     "Front matter with href",
			markdown: "---\nextra:\n  preview_image:\n    href: p.png\n---\n\nText\n",
			href:     "p.png",
			body:     "Text\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fm, body, err := splitFrontMatter([]byte(tt.markdown))
			if err != nil {
				t.Fatalf("splitFrontMatter() error = %v", err)
			}
			if fm.Extra.PreviewImage.Href != tt.href {
				t.Errorf("href = %q, want %q", fm.Extra.PreviewImage.Href, tt.href)
			}
			if string(body) != tt.body {
				t.Errorf("body = %q, want %q", body, tt.body)
			}
		})
	}
}

func TestPostSlug(t *testing.T) {
	tests := []struct {
		file     string
		expected string
	}{
		{file: filepath.Join("posts", "hello-world.md"), expected: "hello-world"},
		{file: filepath.Join("posts", "hello.draft.md"), expected: "hello"},
		{file: filepath.Join("posts", "deep-dive", "index.md"), expected: "deep-dive"},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			if got := postSlug(tt.file); got != tt.expected {
				t.Errorf("postSlug(%q) = %q, want %q", tt.file, got, tt.expected)
			}
		})
	}
}

func TestIsRelativeLink(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected bool
	}{
		{
			name:     "Absolute HTTP URL",
			url:      "http://example.com/page",
			expected: false,
		},
		{
			name:     "Absolute HTTPS URL",
			url:      "https://example.com/page",
			expected: false,
		},
		{
			name:     "Protocol-relative URL",
			url:      "//example.com/page",
			expected: false,
		},
		{
			name:     "Mailto link",
			url:      "mailto:user@example.com",
			expected: false,
		},
		{
			name:     "Tel link",
			url:      "tel:+1234567890",
			expected: false,
		},
		{
			name:     "Data URI",
			url:      "data:image/png;base64,iVBOR...",
			expected: false,
		},
		{
			name:     "JavaScript URI",
			url:      "javascript:alert('test')",
			expected: false,
		},
		{
			name:     "Absolute path",
			url:      "/about/contact",
			expected: true,
		},
		{
			name:     "Relative path with ./",
			url:      "./images/photo.jpg",
			expected: true,
		},
		{
			name:     "Relative path with ../",
			url:      "../docs/readme.md",
			expected: true,
		},
		{
			name:     "Simple filename",
			url:      "image.png",
			expected: true,
		},
		{
			name:     "Relative path",
			url:      "posts/my-post.html",
			expected: true,
		},
		{
			name:     "Empty string",
			url:      "",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isRelativeLink(tt.url)
			if result != tt.expected {
				t.Errorf("isRelativeLink(%q) = %v, want %v", tt.url, result, tt.expected)
			}
		})
	}
}

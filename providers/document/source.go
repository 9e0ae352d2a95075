package document

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// Placeholder is the document text used when no filing can be read.
const Placeholder = "Dummy PDF text with tables & figures about a fictional company FY2024."

// ErrUnsupportedFormat is returned for files FileSource cannot turn into text.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Source yields the text of one document.
type Source interface {
	Text(ctx context.Context) (string, error)
	// Location identifies the document in logs and run context.
	Location() string
}

// FileSource reads a filing from disk. Pages are separated by form feeds
// when the extractor preserved them.
type FileSource struct {
	Path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (source *FileSource) Location() string {
	return source.Path
}

func (source *FileSource) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ext := strings.ToLower(filepath.Ext(source.Path))
	switch ext {
	case ".txt", ".md", ".markdown":
		return readFile(source.Path)

	case ".html", ".htm":
		raw, err := readFile(source.Path)
		if err != nil {
			return "", err
		}
		markdown, err := htmltomarkdown.ConvertString(raw)
		if err != nil {
			return "", fmt.Errorf("convert %s to markdown: %w", source.Path, err)
		}
		return markdown, nil

	case ".pdf":
		extracted := strings.TrimSuffix(source.Path, filepath.Ext(source.Path)) + ".txt"
		if _, err := os.Stat(extracted); err != nil {
			return "", fmt.Errorf("%w: %s has no extracted text file %s", ErrUnsupportedFormat, source.Path, extracted)
		}
		return readFile(extracted)

	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	return string(data), nil
}

// StaticSource serves in-memory text, for demos and tests.
type StaticSource struct {
	Name    string
	Content string
}

func (source StaticSource) Location() string {
	if source.Name == "" {
		return "static"
	}
	return source.Name
}

func (source StaticSource) Text(ctx context.Context) (string, error) {
	return source.Content, ctx.Err()
}

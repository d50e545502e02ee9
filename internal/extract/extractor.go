// Package extract provides text extraction from the supported document formats.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/agilerag/internal/models"
)

// SupportedExtensions is the fixed format table, lowercase with the leading dot.
var SupportedExtensions = []string{".pdf", ".docx", ".doc", ".txt", ".md", ".markdown"}

// Section is one block of text extracted from a file.
// Page is 1-based and zero when the format has no pages; Heading is set for markdown sections.
type Section struct {
	Text       string
	Page       int
	TotalPages int
	Heading    string
}

// IsSupported reports whether path has a supported extension (case-insensitive).
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedExtensions {
		if s == ext {
			return true
		}
	}
	return false
}

// Extractor extracts sections of plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and returns its sections.
// Unsupported or unparseable files yield a *models.FormatError; read failures are returned wrapped.
func (e *Extractor) Extract(path string) ([]Section, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !IsSupported(path) {
		return nil, unsupported(path, ext)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	sections, err := e.ExtractBytes(content, ext)
	if fe, ok := err.(*models.FormatError); ok {
		fe.Path = path
	}
	return sections, err
}

// ExtractBytes extracts sections from content based on ext, which includes the leading dot.
func (e *Extractor) ExtractBytes(content []byte, ext string) ([]Section, error) {
	ext = strings.ToLower(ext)
	var (
		sections []Section
		err      error
	)
	switch ext {
	case ".pdf":
		sections, err = extractPDF(content)
	case ".docx":
		sections, err = extractDOCX(content)
	case ".doc":
		sections, err = extractDOC(content)
	case ".md", ".markdown":
		sections, err = extractMarkdown(content)
	case ".txt":
		sections, err = extractPlain(content)
	default:
		return nil, unsupported("", ext)
	}
	if err != nil {
		return nil, &models.FormatError{Ext: ext, Supported: SupportedExtensions, Err: err}
	}
	return sections, nil
}

func unsupported(path, ext string) error {
	return &models.FormatError{Path: path, Ext: ext, Supported: SupportedExtensions}
}

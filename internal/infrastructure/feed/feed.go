// Package feed reads normalized supplier feeds into SupplierProducts.
package feed

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/storefront/landedcost/internal/domain/integration"
)

// Supported feed formats
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

var (
	// ErrEmptyFeed is returned when a feed has no content
	ErrEmptyFeed = errors.New("feed is empty")
	// ErrInvalidEncoding is returned for feeds that are not UTF-8
	ErrInvalidEncoding = errors.New("feed is not valid UTF-8")
	// ErrUnsupportedFormat is returned for unknown format names
	ErrUnsupportedFormat = errors.New("unsupported feed format")
)

// Reader parses one feed document
type Reader interface {
	Read(r io.Reader) ([]integration.SupplierProduct, error)
}

// ParseError locates a malformed value in a feed
type ParseError struct {
	Line    int
	Column  string
	Message string
}

func (e *ParseError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("line %d, column %q: %s", e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// NewReader returns the reader for format
func NewReader(format string) (Reader, error) {
	switch strings.ToLower(format) {
	case FormatJSON:
		return JSONReader{}, nil
	case FormatCSV:
		return CSVReader{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// DetectFormat infers the format from the file extension, falling back to
// fallback when the extension is not recognized
func DetectFormat(path, fallback string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".csv":
		return FormatCSV
	default:
		return fallback
	}
}

// ReadFile opens path and parses it with the reader for format. An empty
// format is inferred from the extension.
func ReadFile(path, format string) ([]integration.SupplierProduct, error) {
	if format == "" {
		format = DetectFormat(path, FormatJSON)
	}
	reader, err := NewReader(format)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open feed: %w", err)
	}
	defer f.Close()

	products, err := reader.Read(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s feed %s: %w", format, path, err)
	}
	return products, nil
}

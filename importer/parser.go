package importer

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Format statement file format
type Format string

const (
	FormatCSV Format = "csv"
	FormatOFX Format = "ofx"
)

// DetectFormat picks the format from the file extension.
func DetectFormat(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(strings.TrimSpace(filename))) {
	case ".csv":
		return FormatCSV, nil
	case ".ofx":
		return FormatOFX, nil
	}
	return "", fmt.Errorf("%w: %q (use .csv ou .ofx)", ErrUnsupportedFormat, filepath.Base(filename))
}

// Draft a raw transaction as read from the file. Amount is signed; Type is
// set only when the file states the direction explicitly.
type Draft struct {
	Line        int
	Date        time.Time
	Description string
	Amount      decimal.Decimal
	Type        string
}

// ParseResult parsed drafts plus the rows that were rejected.
type ParseResult struct {
	Drafts []Draft
	Errors []RowError
}

func (r *ParseResult) reject(line int, format string, args ...any) {
	r.Errors = append(r.Errors, RowError{Line: line, Reason: fmt.Sprintf(format, args...)})
}

// Parser converts a statement file into drafts. A malformed row is reported
// in ParseResult.Errors; only an unreadable file returns an error.
type Parser interface {
	Parse(r io.Reader) (*ParseResult, error)
	Format() Format
}

// Registry holds parsers by format.
type Registry struct {
	parsers map[Format]Parser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[Format]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	if _, ok := r.parsers[p.Format()]; ok {
		panic("duplicate parser format: " + string(p.Format()))
	}
	r.parsers[p.Format()] = p
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format Format) Parser {
	return r.parsers[format]
}

// DefaultRegistry registers the CSV parser with opts and the OFX parser.
func DefaultRegistry(opts CSVOptions) *Registry {
	r := NewRegistry()
	r.Register(NewCSVParser(opts))
	r.Register(NewOFXParser())
	return r
}

package importer

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat the file extension is neither CSV nor OFX.
	ErrUnsupportedFormat = errors.New("formato de arquivo não suportado")
	// ErrMalformedFile the file cannot be read as its declared format.
	ErrMalformedFile = errors.New("arquivo inválido")
)

// RowError a single rejected row. Line is the 1-based line in a CSV file and
// the 1-based transaction position in an OFX file.
type RowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

func (e RowError) Error() string {
	return fmt.Sprintf("linha %d: %s", e.Line, e.Reason)
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedFile, fmt.Sprintf(format, args...))
}

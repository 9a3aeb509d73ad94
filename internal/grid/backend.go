package grid

import (
	"errors"
	"fmt"
	"strings"
)

// Format identifies an on-disk encoding. It is handed to the backend as-is.
type Format string

const (
	// FormatNetCDF is the classic CDF-1 encoding.
	FormatNetCDF Format = "netcdf"
	// FormatNetCDF64 is the CDF-2 64-bit offset encoding.
	FormatNetCDF64 Format = "netcdf64"
)

// Formats lists every supported output format.
var Formats = []Format{FormatNetCDF, FormatNetCDF64}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if strings.EqualFold(s, string(f)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown format %q", s)
}

// Compression levels accepted by the backends.
const (
	MinCompression = 0
	MaxCompression = 9
)

// WriteMode selects whether existing outputs are replaced or extended.
type WriteMode string

const (
	ModeCreate WriteMode = "create"
	ModeAppend WriteMode = "append"
)

// ParseWriteMode validates a write mode name.
func ParseWriteMode(s string) (WriteMode, error) {
	switch WriteMode(strings.ToLower(s)) {
	case ModeCreate:
		return ModeCreate, nil
	case ModeAppend:
		return ModeAppend, nil
	}
	return "", fmt.Errorf("unknown write mode %q", s)
}

// ErrNotExist is returned by Stat and Open for missing files.
var ErrNotExist = errors.New("file does not exist")

// CreateOptions are passed through to Backend.Create.
type CreateOptions struct {
	Format      Format
	Compression int
	Mode        WriteMode
}

// Reader is an open input file. Readers are not safe for concurrent use;
// every worker opens its own.
type Reader interface {
	Path() string
	Schema() *Schema
	// Read returns the whole variable. For record variables this is every
	// record stored in this file.
	Read(name string) (Array, error)
	Close() error
}

// Writer is an open output file.
type Writer interface {
	Path() string
	// Schema returns the header of a file opened for append, or nil when the
	// file is new and still needs Define.
	Schema() *Schema
	// Records is the current length of the unlimited dimension.
	Records() int
	// Define fixes the header. It must be called exactly once on a new file,
	// before any Write or Append.
	Define(s *Schema) error
	// Write stores a whole non-record variable.
	Write(name string, a Array) error
	// Append stores records of a record variable starting at record start.
	Append(name string, start int, a Array) error
	Close() error
}

// Backend opens inputs and creates outputs for one storage format.
type Backend interface {
	// Stat checks that path names an existing regular file.
	Stat(path string) error
	Open(path string) (Reader, error)
	Create(path string, opts CreateOptions) (Writer, error)
}

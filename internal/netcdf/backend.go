package netcdf

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/specialistvlad/gridreshaper/internal/grid"
)

// Backend implements grid.Backend on the local file system.
type Backend struct {
	// Logger receives debug notes about ignored options. Nil uses slog.Default.
	Logger *slog.Logger
}

// New returns a file-system backend.
func New(logger *slog.Logger) *Backend {
	return &Backend{Logger: logger}
}

func (b *Backend) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}

// Stat implements grid.Backend.
func (b *Backend) Stat(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", path, grid.ErrNotExist)
	}
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s: not a regular file", path)
	}
	return nil
}

// Open implements grid.Backend.
func (b *Backend) Open(path string) (grid.Reader, error) {
	r, err := Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, grid.ErrNotExist)
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Create implements grid.Backend. Compression is accepted for every format
// but has no effect on the classic encodings.
func (b *Backend) Create(path string, opts grid.CreateOptions) (grid.Writer, error) {
	var version byte
	switch opts.Format {
	case grid.FormatNetCDF, "":
		version = 1
	case grid.FormatNetCDF64:
		version = 2
	default:
		return nil, fmt.Errorf("%s: unsupported format %q", path, opts.Format)
	}
	if opts.Compression > 0 {
		b.logger().Debug("Compression level ignored by classic format.", "path", path, "compression", opts.Compression, "format", opts.Format)
	}
	if opts.Mode == grid.ModeAppend {
		if _, err := os.Stat(path); err == nil {
			return appendWriter(path)
		}
	}
	w, err := createWriter(path, version)
	if err != nil {
		return nil, err
	}
	return w, nil
}

package combine

import (
	"compress/gzip"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// Reader reads one CSV file, transparently decompressing when the path
// carries a .gz suffix. CSV is exposed directly so callers can tune parsing
// (field counts, record reuse) for their access pattern.
type Reader struct {
	CSV *csv.Reader

	f  *os.File
	gz *gzip.Reader
}

// OpenReader opens path for CSV reading.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	r := &Reader{f: f}
	var src io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		r.gz = gz
		src = gz
	}
	r.CSV = csv.NewReader(src)
	return r, nil
}

// Close releases the underlying file handles.
func (r *Reader) Close() error {
	if r.gz != nil {
		if err := r.gz.Close(); err != nil {
			r.f.Close()
			return err
		}
	}
	return r.f.Close()
}

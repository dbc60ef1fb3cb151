package imaging

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// Algorithm names a compression format for image files.
type Algorithm string

const (
	None   Algorithm = "none"
	Gzip   Algorithm = "gzip"
	Zlib   Algorithm = "zlib"
	Bzip2  Algorithm = "bzip2"
	Snappy Algorithm = "snappy"
	S2     Algorithm = "s2"
	Zstd   Algorithm = "zstd"
	Zip    Algorithm = "zip"
)

// ErrUnsupported is returned for an unknown algorithm name or extension.
var ErrUnsupported = errors.New("unsupported compression algorithm")

var extensions = []struct {
	alg Algorithm
	ext string
}{
	{None, ""},
	{Gzip, ".gz"},
	{Zlib, ".zlib"},
	{Bzip2, ".bz2"},
	{Snappy, ".snappy"},
	{S2, ".s2"},
	{Zstd, ".zst"},
	{Zip, ".zip"},
}

// Algorithms lists the supported algorithms.
func Algorithms() []Algorithm {
	out := make([]Algorithm, 0, len(extensions))
	for _, e := range extensions {
		out = append(out, e.alg)
	}
	return out
}

// ParseAlgorithm validates an algorithm name.
func ParseAlgorithm(name string) (Algorithm, error) {
	for _, e := range extensions {
		if string(e.alg) == strings.ToLower(name) {
			return e.alg, nil
		}
	}
	return "", errors.Wrapf(ErrUnsupported, "%q", name)
}

// Extension returns the file name suffix of a.
func (a Algorithm) Extension() (string, error) {
	for _, e := range extensions {
		if e.alg == a {
			return e.ext, nil
		}
	}
	return "", errors.Wrapf(ErrUnsupported, "%q", string(a))
}

// DetectAlgorithm guesses the algorithm of an image from its file name.
// Unknown suffixes are treated as uncompressed.
func DetectAlgorithm(path string) Algorithm {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range extensions {
		if e.ext != "" && e.ext == ext {
			return e.alg
		}
	}
	return None
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// zipEntryWriter closes the archive together with its single entry.
type zipEntryWriter struct {
	io.Writer
	archive *zip.Writer
}

func (z *zipEntryWriter) Close() error {
	return z.archive.Close()
}

func newWriter(a Algorithm, out io.Writer, entry string) (io.WriteCloser, error) {
	switch a {
	case None:
		return nopWriteCloser{out}, nil
	case Gzip:
		return gzip.NewWriter(out), nil
	case Zlib:
		return zlib.NewWriter(out), nil
	case Bzip2:
		return bzip2.NewWriter(out, &bzip2.WriterConfig{})
	case Snappy:
		return snappy.NewBufferedWriter(out), nil
	case S2:
		return s2.NewWriter(out), nil
	case Zstd:
		return zstd.NewWriter(out)
	case Zip:
		archive := zip.NewWriter(out)
		w, err := archive.Create(entry)
		if err != nil {
			_ = archive.Close()
			return nil, errors.Wrap(err, "creating zip entry")
		}
		return &zipEntryWriter{Writer: w, archive: archive}, nil
	}
	return nil, errors.Wrapf(ErrUnsupported, "%q", string(a))
}

type multiCloser struct {
	io.Reader
	closers []io.Closer
}

func (m *multiCloser) Close() error {
	var first error
	for _, c := range m.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// openReader opens an image file and returns its decompressed content.
func openReader(a Algorithm, path string) (io.ReadCloser, error) {
	if a == Zip {
		archive, err := zip.OpenReader(path)
		if err != nil {
			return nil, errors.Wrapf(err, "opening %s", path)
		}
		if len(archive.File) == 0 {
			_ = archive.Close()
			return nil, errors.Errorf("%s: empty zip archive", path)
		}
		entry, err := archive.File[0].Open()
		if err != nil {
			_ = archive.Close()
			return nil, err
		}
		return &multiCloser{Reader: entry, closers: []io.Closer{entry, archive}}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}
	r, closer, err := newReader(a, f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	closers := []io.Closer{f}
	if closer != nil {
		closers = append([]io.Closer{closer}, closers...)
	}
	return &multiCloser{Reader: r, closers: closers}, nil
}

func newReader(a Algorithm, in io.Reader) (io.Reader, io.Closer, error) {
	switch a {
	case None:
		return in, nil, nil
	case Gzip:
		r, err := gzip.NewReader(in)
		return r, r, err
	case Zlib:
		r, err := zlib.NewReader(in)
		return r, r, err
	case Bzip2:
		r, err := bzip2.NewReader(in, &bzip2.ReaderConfig{})
		return r, r, err
	case Snappy:
		return snappy.NewReader(in), nil, nil
	case S2:
		return s2.NewReader(in), nil, nil
	case Zstd:
		d, err := zstd.NewReader(in)
		if err != nil {
			return nil, nil, err
		}
		rc := d.IOReadCloser()
		return rc, rc, nil
	}
	return nil, nil, errors.Wrapf(ErrUnsupported, "%q", string(a))
}

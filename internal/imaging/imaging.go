// Package imaging copies a region of a block device to a compressed image
// file and back.
package imaging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const chunkSize = 16384

// ErrImageTooLarge is returned when an image holds more data than the
// target region.
var ErrImageTooLarge = errors.New("image is larger than the target region")

// Region is a byte range of a device.
type Region struct {
	Offset int64
	Length int64
}

// Options control a transfer.
type Options struct {
	Algorithm Algorithm
	// Progress receives a live summary; nil disables it.
	Progress io.Writer
	Log      *logrus.Entry
}

func (o Options) log() *logrus.Entry {
	if o.Log != nil {
		return o.Log
	}
	return logrus.WithField("component", "imaging")
}

// Result summarizes a finished transfer.
type Result struct {
	Path    string
	Read    int64
	Written int64
	Elapsed time.Duration
}

// Ratio returns uncompressed over compressed size for a backup.
func (r Result) Ratio() string {
	if r.Written == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.2f:1", float64(r.Read)/float64(r.Written))
}

// ImagePath appends the algorithm's extension to path unless it is
// already there.
func ImagePath(path string, a Algorithm) (string, error) {
	ext, err := a.Extension()
	if err != nil {
		return "", err
	}
	if ext != "" && !strings.HasSuffix(strings.ToLower(path), ext) {
		path += ext
	}
	return path, nil
}

// Backup compresses region of src into a new image file at path. The
// returned Result carries the final file name.
func Backup(src io.ReaderAt, region Region, path string, opts Options) (Result, error) {
	if opts.Algorithm == "" {
		opts.Algorithm = Gzip
	}
	path, err := ImagePath(path, opts.Algorithm)
	if err != nil {
		return Result{}, err
	}

	out, err := os.Create(path)
	if err != nil {
		return Result{}, errors.Wrap(err, "creating image")
	}
	defer func() {
		_ = out.Close()
	}()

	cw := &countingWriter{w: out}
	w, err := newWriter(opts.Algorithm, cw, "region.bin")
	if err != nil {
		return Result{}, err
	}

	opts.log().Debugf("Writing %d bytes at offset %d to %s", region.Length, region.Offset, path)
	start := time.Now()
	p := newProgress(opts.Progress, region.Length)
	defer p.stop()

	in := io.NewSectionReader(src, region.Offset, region.Length)
	read, err := transfer(in, w, p, func() int64 { return cw.count })
	if err != nil {
		return Result{}, errors.Wrap(err, "writing image")
	}
	if read != region.Length {
		return Result{}, errors.Wrapf(io.ErrUnexpectedEOF, "read %d of %d bytes", read, region.Length)
	}
	if err := w.Close(); err != nil {
		return Result{}, errors.Wrap(err, "finishing compressed stream")
	}
	if err := out.Sync(); err != nil {
		return Result{}, err
	}
	p.update(read, cw.count, true)

	return Result{Path: path, Read: read, Written: cw.count, Elapsed: time.Since(start)}, nil
}

// Restore decompresses the image at path into region of dst. The algorithm
// defaults to the one implied by the file name. The image is checked to
// fit before anything is written; an image shorter than the region only
// overwrites its own length.
func Restore(path string, dst io.WriterAt, region Region, opts Options) (Result, error) {
	if opts.Algorithm == "" {
		opts.Algorithm = DetectAlgorithm(path)
	}
	size, err := imageSize(opts.Algorithm, path, region.Length+1)
	if err != nil {
		return Result{}, err
	}
	if size > region.Length {
		return Result{}, errors.Wrapf(ErrImageTooLarge, "region holds %d bytes", region.Length)
	}
	if size < region.Length {
		opts.log().Warnf("Image %s holds %d bytes, region is %d bytes", path, size, region.Length)
	}

	r, err := openReader(opts.Algorithm, path)
	if err != nil {
		return Result{}, err
	}
	defer r.Close()

	start := time.Now()
	p := newProgress(opts.Progress, size)
	defer p.stop()

	out := &countingWriter{w: io.NewOffsetWriter(dst, region.Offset)}
	read, err := transfer(io.LimitReader(r, region.Length), out, p, func() int64 { return out.count })
	if err != nil {
		return Result{}, errors.Wrap(err, "restoring image")
	}
	p.update(read, out.count, true)

	return Result{Path: path, Read: read, Written: out.count, Elapsed: time.Since(start)}, nil
}

// imageSize returns the decompressed size of an image, counting at most
// limit bytes.
func imageSize(a Algorithm, path string, limit int64) (int64, error) {
	r, err := openReader(a, path)
	if err != nil {
		return 0, err
	}
	defer r.Close()
	n, err := io.Copy(io.Discard, io.LimitReader(r, limit))
	if err != nil {
		return 0, errors.Wrapf(err, "reading %s", path)
	}
	return n, nil
}

// transfer copies in to out in chunks, reporting progress.
func transfer(in io.Reader, out io.Writer, p *progress, written func() int64) (int64, error) {
	var (
		total int64
		buf   = make([]byte, chunkSize)
	)
	for {
		n, err := in.Read(buf)
		if n > 0 {
			if _, wErr := out.Write(buf[:n]); wErr != nil {
				return total, wErr
			}
			total += int64(n)
			p.update(total, written(), false)
		}
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

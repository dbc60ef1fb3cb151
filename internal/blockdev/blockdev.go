// Package blockdev queries block devices and disk images: logical sector
// size, total size, mount points and the filesystem a region holds.
package blockdev

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// DefaultSectorSize is used when the device does not report one.
const DefaultSectorSize = 512

// ErrNotMounted is returned by MountPoint when the device is not mounted.
var ErrNotMounted = errors.New("device is not mounted")

// Size returns the size of a block device or image file in bytes.
func Size(f *os.File) (int64, error) {
	if size, err := deviceSize(f); err == nil {
		return size, nil
	}
	fi, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if fi.Mode().IsRegular() {
		return fi.Size(), nil
	}
	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, errors.Wrapf(err, "sizing %s", f.Name())
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	return size, nil
}

// SectorSize returns the logical sector size of f, DefaultSectorSize for
// regular files.
func SectorSize(f *os.File) int {
	if size, err := sectorSize(f); err == nil && size > 0 {
		return size
	}
	return DefaultSectorSize
}

// MountPoint scans a mountinfo table for devPath.
func MountPoint(mountinfo io.Reader, devPath string) (string, error) {
	scanner := bufio.NewScanner(mountinfo)
	for scanner.Scan() {
		before, after, ok := strings.Cut(scanner.Text(), " - ")
		if !ok {
			continue
		}
		mountFields := strings.Fields(before)
		sourceFields := strings.Fields(after)
		if len(mountFields) < 5 || len(sourceFields) < 2 {
			continue
		}
		if sourceFields[1] == devPath {
			return mountFields[4], nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", errors.Wrapf(ErrNotMounted, "%s", devPath)
}

// FindMountPoint looks devPath up in /proc/self/mountinfo.
func FindMountPoint(devPath string) (string, error) {
	f, err := os.Open("/proc/self/mountinfo")
	if err != nil {
		return "", err
	}
	defer f.Close()
	return MountPoint(f, devPath)
}

// Unmount detaches the filesystem mounted at target.
func Unmount(target string) error {
	if err := unmount(target); err != nil {
		return errors.Wrapf(err, "failed to unmount %s", target)
	}
	return nil
}

//go:build !linux

package blockdev

import (
	"os"

	"github.com/pkg/errors"
)

var errUnsupported = errors.New("block device ioctls are only available on linux")

func deviceSize(*os.File) (int64, error) {
	return 0, errUnsupported
}

func sectorSize(*os.File) (int, error) {
	return 0, errUnsupported
}

func unmount(string) error {
	return errUnsupported
}
